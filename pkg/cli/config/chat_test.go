package config_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/m-mizutani/gt"
	"github.com/secmon-lab/recall/pkg/cli/config"
)

func writeChatConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "chat.toml")
	gt.NoError(t, os.WriteFile(path, []byte(body), 0600))
	return path
}

func TestDefaultChatConfig(t *testing.T) {
	cfg := config.DefaultChatConfig()
	gt.NoError(t, cfg.Validate())

	gt.Equal(t, cfg.Retrieval.Policy, "pull-then-filter")
	gt.Equal(t, cfg.Persist.Mode, "sync-critical")
	gt.Equal(t, cfg.Retrieval.PullLimit, 5)
	gt.Equal(t, cfg.Retrieval.QueryLimit, 3)
	gt.Equal(t, cfg.Archive.Bucket, "")
}

func TestLoadChatConfiguration(t *testing.T) {
	t.Run("overrides defaults", func(t *testing.T) {
		path := writeChatConfig(t, `
system_prompt = "You are a terse assistant."

[retrieval]
policy = "filter-in-query"
query_limit = 7

[persist]
mode = "background"

[archive]
bucket = "recall-exchanges"
`)

		cfg := gt.R1(config.LoadChatConfiguration(path)).NoError(t)
		gt.Equal(t, cfg.SystemPrompt, "You are a terse assistant.")
		gt.Equal(t, cfg.Retrieval.Policy, "filter-in-query")
		gt.Equal(t, cfg.Retrieval.QueryLimit, 7)
		gt.Equal(t, cfg.Persist.Mode, "background")
		gt.Equal(t, cfg.ArchiveBucket(), "recall-exchanges")

		// Untouched fields keep their defaults
		gt.Equal(t, cfg.Retrieval.PullLimit, 5)
		gt.Equal(t, cfg.Embedding.CacheCapacity, 500)
	})

	t.Run("rejects unknown retrieval policy", func(t *testing.T) {
		path := writeChatConfig(t, `
[retrieval]
policy = "push-then-pray"
`)
		_, err := config.LoadChatConfiguration(path)
		gt.Error(t, err)
		gt.True(t, errors.Is(err, config.ErrInvalidConfig))
	})

	t.Run("rejects out of range threshold", func(t *testing.T) {
		path := writeChatConfig(t, `
[retrieval]
pull_threshold = 3.5
`)
		_, err := config.LoadChatConfiguration(path)
		gt.Error(t, err)
		gt.True(t, errors.Is(err, config.ErrInvalidConfig))
	})

	t.Run("rejects non-positive cache capacity", func(t *testing.T) {
		path := writeChatConfig(t, `
[embedding]
cache_capacity = 0
`)
		_, err := config.LoadChatConfiguration(path)
		gt.Error(t, err)
		gt.True(t, errors.Is(err, config.ErrInvalidConfig))
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := config.LoadChatConfiguration("/no/such/chat.toml")
		gt.Error(t, err)
	})
}
