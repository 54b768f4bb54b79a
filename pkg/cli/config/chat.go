package config

import (
	"os"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/pelletier/go-toml/v2"
	"github.com/secmon-lab/recall/pkg/domain/types"
	"github.com/secmon-lab/recall/pkg/service/embedding"
	"github.com/secmon-lab/recall/pkg/service/reply"
	"github.com/secmon-lab/recall/pkg/usecase"
	"github.com/urfave/cli/v3"
)

// Chat holds CLI flags for the chat pipeline tuning file
type Chat struct {
	configPath string
}

// Flags returns CLI flags for chat configuration
func (c *Chat) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "chat-config",
			Usage:       "Path to chat pipeline configuration file (TOML)",
			Sources:     cli.EnvVars("RECALL_CHAT_CONFIG"),
			Destination: &c.configPath,
		},
	}
}

// Configure loads the chat configuration from the configured path.
// Defaults are used when no path is given.
func (c *Chat) Configure() (*ChatConfig, error) {
	if c.configPath == "" {
		return DefaultChatConfig(), nil
	}
	return LoadChatConfiguration(c.configPath)
}

// ChatConfig represents the chat pipeline configuration
type ChatConfig struct {
	SystemPrompt string          `toml:"system_prompt"`
	Retrieval    RetrievalConfig `toml:"retrieval"`
	Persist      PersistConfig   `toml:"persist"`
	Embedding    EmbeddingConfig `toml:"embedding"`
	Reply        ReplyConfig     `toml:"reply"`
	Archive      ArchiveConfig   `toml:"archive"`
}

// RetrievalConfig tunes the memory retrieval stage
type RetrievalConfig struct {
	Policy         string  `toml:"policy"`
	PullLimit      int     `toml:"pull_limit"`
	PullThreshold  float64 `toml:"pull_threshold"`
	QueryLimit     int     `toml:"query_limit"`
	QueryThreshold float64 `toml:"query_threshold"`
	TimeoutSec     int     `toml:"timeout_sec"`
}

// PersistConfig tunes the durable write stage
type PersistConfig struct {
	Mode string `toml:"mode"`
}

// EmbeddingConfig tunes the embedding gateway
type EmbeddingConfig struct {
	CacheCapacity int `toml:"cache_capacity"`
	TimeoutSec    int `toml:"timeout_sec"`
}

// ReplyConfig tunes the reply generator
type ReplyConfig struct {
	TimeoutSec int `toml:"timeout_sec"`
}

// ArchiveConfig configures the optional exchange archive
type ArchiveConfig struct {
	Bucket string `toml:"bucket"`
}

// DefaultChatConfig returns the configuration used when no file is provided
func DefaultChatConfig() *ChatConfig {
	return &ChatConfig{
		Retrieval: RetrievalConfig{
			Policy:         types.RetrievalPull.String(),
			PullLimit:      usecase.DefaultPullLimit,
			PullThreshold:  usecase.DefaultPullThreshold,
			QueryLimit:     usecase.DefaultQueryLimit,
			QueryThreshold: usecase.DefaultQueryThreshold,
			TimeoutSec:     int(usecase.DefaultRetrievalTimeout / time.Second),
		},
		Persist: PersistConfig{
			Mode: types.PersistSyncCritical.String(),
		},
		Embedding: EmbeddingConfig{
			CacheCapacity: embedding.DefaultCacheCapacity,
			TimeoutSec:    int(embedding.DefaultTimeout / time.Second),
		},
		Reply: ReplyConfig{
			TimeoutSec: int(reply.DefaultTimeout / time.Second),
		},
	}
}

// Validate checks if the ChatConfig is valid
func (c *ChatConfig) Validate() error {
	if _, err := types.ParseRetrievalPolicy(c.Retrieval.Policy); err != nil {
		return goerr.Wrap(ErrInvalidConfig, "invalid retrieval policy", goerr.V("policy", c.Retrieval.Policy))
	}
	if _, err := types.ParsePersistMode(c.Persist.Mode); err != nil {
		return goerr.Wrap(ErrInvalidConfig, "invalid persist mode", goerr.V("mode", c.Persist.Mode))
	}
	if c.Retrieval.PullLimit <= 0 || c.Retrieval.QueryLimit <= 0 {
		return goerr.Wrap(ErrInvalidConfig, "retrieval limits must be positive",
			goerr.V("pull_limit", c.Retrieval.PullLimit),
			goerr.V("query_limit", c.Retrieval.QueryLimit))
	}
	if c.Retrieval.PullThreshold < 0 || c.Retrieval.PullThreshold > 2 {
		return goerr.Wrap(ErrInvalidConfig, "pull threshold must be a cosine distance between 0 and 2",
			goerr.V("threshold", c.Retrieval.PullThreshold))
	}
	if c.Retrieval.QueryThreshold < 0 || c.Retrieval.QueryThreshold > 2 {
		return goerr.Wrap(ErrInvalidConfig, "query threshold must be a cosine distance between 0 and 2",
			goerr.V("threshold", c.Retrieval.QueryThreshold))
	}
	if c.Retrieval.TimeoutSec <= 0 || c.Embedding.TimeoutSec <= 0 || c.Reply.TimeoutSec <= 0 {
		return goerr.Wrap(ErrInvalidConfig, "timeouts must be positive")
	}
	if c.Embedding.CacheCapacity <= 0 {
		return goerr.Wrap(ErrInvalidConfig, "embedding cache capacity must be positive",
			goerr.V("capacity", c.Embedding.CacheCapacity))
	}
	return nil
}

// ChatOptions converts the configuration into chat use case options
func (c *ChatConfig) ChatOptions() []usecase.ChatOption {
	policy, _ := types.ParseRetrievalPolicy(c.Retrieval.Policy)
	mode, _ := types.ParsePersistMode(c.Persist.Mode)

	return []usecase.ChatOption{
		usecase.WithRetrievalPolicy(policy),
		usecase.WithPersistMode(mode),
		usecase.WithPullRetrieval(c.Retrieval.PullLimit, c.Retrieval.PullThreshold),
		usecase.WithQueryRetrieval(c.Retrieval.QueryLimit, c.Retrieval.QueryThreshold),
		usecase.WithRetrievalTimeout(time.Duration(c.Retrieval.TimeoutSec) * time.Second),
	}
}

// EmbeddingOptions converts the configuration into embedding service options
func (c *ChatConfig) EmbeddingOptions() []embedding.Option {
	return []embedding.Option{
		embedding.WithCacheCapacity(c.Embedding.CacheCapacity),
		embedding.WithTimeout(time.Duration(c.Embedding.TimeoutSec) * time.Second),
	}
}

// ReplyOptions converts the configuration into reply service options
func (c *ChatConfig) ReplyOptions() []reply.Option {
	opts := []reply.Option{
		reply.WithTimeout(time.Duration(c.Reply.TimeoutSec) * time.Second),
	}
	if c.SystemPrompt != "" {
		opts = append(opts, reply.WithSystemPrompt(c.SystemPrompt))
	}
	return opts
}

// ArchiveBucket returns the configured archive bucket name, empty when
// archiving is disabled.
func (c *ChatConfig) ArchiveBucket() string {
	return c.Archive.Bucket
}

// LoadChatConfiguration loads the chat configuration from a TOML file.
// Omitted fields fall back to their defaults.
func LoadChatConfiguration(path string) (*ChatConfig, error) {
	// #nosec G304 - path is expected to be provided by CLI argument
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to read chat config file", goerr.V("path", path))
	}

	config := DefaultChatConfig()
	if err := toml.Unmarshal(data, config); err != nil {
		return nil, goerr.Wrap(err, "failed to parse TOML chat config", goerr.V("path", path))
	}

	if err := config.Validate(); err != nil {
		return nil, goerr.Wrap(err, "chat config validation failed", goerr.V("path", path))
	}

	return config, nil
}
