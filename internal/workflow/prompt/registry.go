// Package prompt 提供嵌入式提示词模板注册表
package prompt

import (
	"embed"
	"fmt"
	"strings"
	"sync"
	"text/template"
)

//go:embed templates/*.txt
var templatesFS embed.FS

// PromptID 提示词模板标识
type PromptID string

const (
	PromptTopicRewriteV1    PromptID = "topic_rewrite_v1"
	PromptSearchPlanV1      PromptID = "search_plan_v1"
	PromptSearchExecV1      PromptID = "search_exec_v1"
	PromptSummaryV1         PromptID = "summary_v1"
	PromptSectionGenV1      PromptID = "section_gen_v1"
	PromptLongformChunkV1   PromptID = "longform_chunk_v1"
	PromptTermExtractV1     PromptID = "term_extract_v1"
	PromptTermExpandV1      PromptID = "term_expand_v1"
	PromptContentValidateV1 PromptID = "content_validate_v1"
)

type templatePair struct {
	system *template.Template
	user   *template.Template
}

// Registry 模板注册表，惰性解析并缓存
type Registry struct {
	mu    sync.RWMutex
	cache map[PromptID]*templatePair
}

// NewRegistry 创建模板注册表
func NewRegistry() *Registry {
	return &Registry{
		cache: make(map[PromptID]*templatePair),
	}
}

// Render 渲染指定模板，返回 system 与 user 两段提示词
func (r *Registry) Render(id PromptID, data any) (system string, user string, err error) {
	if r == nil {
		return "", "", fmt.Errorf("prompt registry is nil")
	}

	pair, err := r.pair(id)
	if err != nil {
		return "", "", err
	}

	var sysBuf, userBuf strings.Builder
	if err := pair.system.Execute(&sysBuf, data); err != nil {
		return "", "", fmt.Errorf("render system prompt %s: %w", id, err)
	}
	if err := pair.user.Execute(&userBuf, data); err != nil {
		return "", "", fmt.Errorf("render user prompt %s: %w", id, err)
	}
	return strings.TrimSpace(sysBuf.String()), strings.TrimSpace(userBuf.String()), nil
}

func (r *Registry) pair(id PromptID) (*templatePair, error) {
	r.mu.RLock()
	if p, ok := r.cache[id]; ok {
		r.mu.RUnlock()
		return p, nil
	}
	r.mu.RUnlock()

	r.mu.Lock()
	defer r.mu.Unlock()
	if p, ok := r.cache[id]; ok {
		return p, nil
	}

	systemPath, userPath, err := resolvePromptFiles(id)
	if err != nil {
		return nil, err
	}
	system, err := parseEmbeddedTemplate(systemPath)
	if err != nil {
		return nil, err
	}
	user, err := parseEmbeddedTemplate(userPath)
	if err != nil {
		return nil, err
	}

	p := &templatePair{system: system, user: user}
	r.cache[id] = p
	return p, nil
}

func resolvePromptFiles(id PromptID) (systemFile string, userFile string, err error) {
	switch id {
	case PromptTopicRewriteV1, PromptSearchPlanV1, PromptSearchExecV1,
		PromptSummaryV1, PromptSectionGenV1, PromptLongformChunkV1,
		PromptTermExtractV1, PromptTermExpandV1, PromptContentValidateV1:
		return fmt.Sprintf("templates/%s.system.txt", id), fmt.Sprintf("templates/%s.user.txt", id), nil
	default:
		return "", "", fmt.Errorf("unknown prompt id: %s", id)
	}
}

func parseEmbeddedTemplate(path string) (*template.Template, error) {
	b, err := templatesFS.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return template.New(path).Parse(strings.TrimSpace(string(b)))
}
