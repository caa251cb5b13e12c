package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "configs"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "configs", "config.yaml"), []byte(content), 0o644))
	t.Chdir(dir)
}

func TestLoad_Defaults(t *testing.T) {
	writeConfig(t, "app:\n  name: deepwrite-ai-api\n")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "deepwrite-ai-api", cfg.App.Name)
	assert.Equal(t, "development", cfg.App.Env)
	assert.Equal(t, 8080, cfg.Server.HTTP.Port)
	assert.Equal(t, "localhost", cfg.Cache.Redis.Host)
	assert.Equal(t, "data/history", cfg.History.DataDir)

	// LLM 默认值：无 key 即 mock 模式，超时按长文生成量级
	assert.Empty(t, cfg.LLM.APIKey)
	assert.Equal(t, "deepseek-chat", cfg.LLM.Model)
	assert.Equal(t, 30*time.Minute, cfg.LLM.Timeout)
	assert.Equal(t, 3, cfg.LLM.MaxRetries)

	assert.Equal(t, 1000, cfg.Generation.MinWordCount)
	assert.Equal(t, 3000, cfg.Generation.DefaultWordCount)
	assert.Equal(t, 500, cfg.Generation.AuditLogCap)

	assert.False(t, cfg.Features.Validation.Enabled)
	assert.True(t, cfg.Features.KeywordExtraction.EnabledByDefault)
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	writeConfig(t, `
server:
  http:
    port: 9999
llm:
  model: gpt-4o-mini
  timeout: 5m
`)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 9999, cfg.Server.HTTP.Port)
	assert.Equal(t, "gpt-4o-mini", cfg.LLM.Model)
	assert.Equal(t, 5*time.Minute, cfg.LLM.Timeout)
	// 未覆盖的键仍取默认值
	assert.Equal(t, 3, cfg.LLM.MaxRetries)
}

func TestLoad_EnvPlaceholder(t *testing.T) {
	t.Setenv("TEST_LLM_KEY", "sk-from-env")
	writeConfig(t, `
llm:
  api_key: ${TEST_LLM_KEY:}
  base_url: ${TEST_LLM_BASE:https://api.example.com/v1}
`)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "sk-from-env", cfg.LLM.APIKey)
	// 未设置的变量取占位符默认值
	assert.Equal(t, "https://api.example.com/v1", cfg.LLM.BaseURL)
}

func TestExpandEnv(t *testing.T) {
	t.Setenv("EXPAND_TEST_VAR", "value")

	assert.Equal(t, "value", expandEnv("${EXPAND_TEST_VAR}"))
	assert.Equal(t, "value", expandEnv("${EXPAND_TEST_VAR:fallback}"))
	assert.Equal(t, "fallback", expandEnv("${EXPAND_TEST_UNSET:fallback}"))
	// 无默认值且未定义的变量保留原样
	assert.Equal(t, "${EXPAND_TEST_UNSET}", expandEnv("${EXPAND_TEST_UNSET}"))
}

func TestMustLoad_PanicsWithoutConfig(t *testing.T) {
	t.Chdir(t.TempDir())
	assert.Panics(t, func() { MustLoad() })
}
