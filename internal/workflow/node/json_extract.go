// Package node 提供工作流节点间共享的解析与文本工具
package node

import (
	"encoding/json"
	"errors"
	"io"
	"strings"
)

// ExtractJSONValue 尝试从模型输出中截取"第一个完整 JSON 对象/数组"。
// 这是一个容错逻辑：模型可能会在 JSON 前后夹杂多余文本或代码栅栏。
func ExtractJSONValue(s string) string {
	raw := strings.TrimSpace(s)
	if raw == "" {
		return raw
	}

	// 剥掉 ```json ... ``` 代码栅栏
	if strings.HasPrefix(raw, "```") {
		raw = strings.TrimPrefix(raw, "```json")
		raw = strings.TrimPrefix(raw, "```")
		if i := strings.LastIndex(raw, "```"); i >= 0 {
			raw = raw[:i]
		}
		raw = strings.TrimSpace(raw)
	}

	// 如果模型输出夹杂了其它文本，尽量截取第一个 JSON 值（对象/数组）。
	objStart := strings.Index(raw, "{")
	arrStart := strings.Index(raw, "[")
	start := -1
	end := -1
	switch {
	case objStart >= 0 && (arrStart < 0 || objStart < arrStart):
		start = objStart
		end = strings.LastIndex(raw, "}")
	case arrStart >= 0:
		start = arrStart
		end = strings.LastIndex(raw, "]")
	}
	if start >= 0 && end > start {
		raw = raw[start : end+1]
	}

	// 简单校验：确保至少能被 Decoder 消费到一个 JSON 起始。
	dec := json.NewDecoder(strings.NewReader(raw))
	dec.UseNumber()
	tok, err := dec.Token()
	if err == nil {
		if d, ok := tok.(json.Delim); ok && (d == '{' || d == '[') {
			return raw
		}
	}

	// 最后兜底：尝试读取到 EOF 为止，避免调用方误用。
	dec = json.NewDecoder(strings.NewReader(raw))
	for {
		_, e := dec.Token()
		if e != nil {
			if errors.Is(e, io.EOF) {
				break
			}
			return strings.TrimSpace(s)
		}
	}
	return raw
}

// UnmarshalLenient 截取 JSON 片段后反序列化到 v
func UnmarshalLenient(s string, v any) error {
	return json.Unmarshal([]byte(ExtractJSONValue(s)), v)
}

// DecodeStringList 解析字符串数组形式的模型输出。
// 兼容两种形状：["a","b"] 与 {"queries": ["a","b"]}。
func DecodeStringList(s string) ([]string, error) {
	raw := ExtractJSONValue(s)

	var list []string
	if err := json.Unmarshal([]byte(raw), &list); err == nil {
		return compactStrings(list), nil
	}

	var wrapped map[string][]string
	if err := json.Unmarshal([]byte(raw), &wrapped); err == nil {
		for _, v := range wrapped {
			if len(v) > 0 {
				return compactStrings(v), nil
			}
		}
	}

	return nil, errors.New("not a string list")
}

func compactStrings(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		s = strings.TrimSpace(s)
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}
