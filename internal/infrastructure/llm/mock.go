package llm

import (
	"fmt"
	"unicode/utf8"
)

// mockPromptPreviewRunes mock 响应中回显的提示词长度
const mockPromptPreviewRunes = 120

// mockResult 构造确定性 mock 响应：同一提示词永远得到同一输出。
// 文本中固定包含 "mock response" 标记，便于测试与排查识别。
func mockResult(prompt string) Result {
	preview := prompt
	if utf8.RuneCountInString(preview) > mockPromptPreviewRunes {
		n := 0
		for i := range preview {
			if n == mockPromptPreviewRunes {
				preview = preview[:i]
				break
			}
			n++
		}
	}

	text := fmt.Sprintf(
		"[mock response] 未配置 llm.api_key，当前为本地占位模式，不会调用外部模型。\n\n提示词摘要：%s\n\n这是一段占位正文，用于在无凭证环境下验证完整生成流程。",
		preview,
	)
	return Result{Text: text, Kind: KindMock}
}
