package node

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTruncateByRunes(t *testing.T) {
	assert.Equal(t, "", TruncateByRunes("abc", 0))
	assert.Equal(t, "abc", TruncateByRunes("abc", 5))
	assert.Equal(t, "ab", TruncateByRunes("abcd", 2))
	// 多字节字符按 rune 截断，不会截出半个字符
	assert.Equal(t, "量子", TruncateByRunes("量子计算", 2))
}

func TestTailByRunes(t *testing.T) {
	assert.Equal(t, "", TailByRunes("abc", 0))
	assert.Equal(t, "abc", TailByRunes("abc", 5))
	assert.Equal(t, "cd", TailByRunes("abcd", 2))
	assert.Equal(t, "计算", TailByRunes("量子计算", 2))
}

func TestCountWords(t *testing.T) {
	assert.Equal(t, 0, CountWords(""))
	// CJK 逐字计数
	assert.Equal(t, 4, CountWords("量子计算"))
	// 英文按空白分词
	assert.Equal(t, 3, CountWords("hello brave world"))
	// 混排
	assert.Equal(t, 6, CountWords("量子计算 quantum computing"))
	// 标点不计数且分断单词
	assert.Equal(t, 2, CountWords("hello,world"))
}

func TestCountWords_LongText(t *testing.T) {
	text := strings.Repeat("机", 120)
	assert.Equal(t, 120, CountWords(text))
}

func TestNormalizeWhitespace(t *testing.T) {
	assert.Equal(t, "a b c", NormalizeWhitespace("  a\n\tb   c  "))
	assert.Equal(t, "", NormalizeWhitespace("   "))
}
