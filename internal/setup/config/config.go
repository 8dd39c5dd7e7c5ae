package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/knadh/koanf/parsers/toml/v2"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

var (
	ErrConfigFileNotFound    = errors.New("could not find config file in any config path")
	ErrConfigVersionMissing  = errors.New("config file is missing version field")
	ErrConfigVersionMismatch = errors.New("config file version mismatch")
	ErrInvalidConfig         = errors.New("invalid config")
	ErrInvalidCommunity      = errors.New("invalid community config")
)

// RepositoryVersion is the repository version tag for config file references.
const RepositoryVersion = "v0.3.0"

// Current version of the config files.
const (
	CurrentCommonVersion = 1
	CurrentBotVersion    = 1
)

// Config represents the entire application configuration.
type Config struct {
	Common CommonConfig
	Bot    BotConfig
}

// CommonConfig contains configuration shared between the bot and the db tool.
type CommonConfig struct {
	// Version of the common config.
	Version    int        `koanf:"version"`
	Debug      Debug      `koanf:"debug"`
	Database   Database   `koanf:"database"`
	PostgreSQL PostgreSQL `koanf:"postgresql"`
	SQLite     SQLite     `koanf:"sqlite"`
	Redis      Redis      `koanf:"redis"`
	RateLimit  RateLimit  `koanf:"ratelimit"`
	LLM        LLM        `koanf:"llm"`
	Telemetry  Telemetry  `koanf:"telemetry"`
}

// Debug contains debug-related configuration.
type Debug struct {
	// Log level (debug, info, warn, error).
	LogLevel string `koanf:"log_level"`
	// Maximum log sessions to keep.
	MaxLogsToKeep int `koanf:"max_logs_to_keep"`
}

// Database selects the storage driver.
type Database struct {
	// Driver is either "postgres" or "sqlite".
	Driver string `koanf:"driver"`
}

// PostgreSQL contains database connection configuration.
type PostgreSQL struct {
	// Database hostname.
	Host string `koanf:"host"`
	// Database port.
	Port int `koanf:"port"`
	// Database username.
	User string `koanf:"user"`
	// Database password.
	Password string `koanf:"password"`
	// Database name.
	DBName string `koanf:"db_name"`
	// Maximum open connections.
	MaxOpenConns int `koanf:"max_open_conns"`
	// Maximum idle connections.
	MaxIdleConns int `koanf:"max_idle_conns"`
	// Connection lifetime in minutes.
	MaxLifetime int `koanf:"max_lifetime"`
	// Idle timeout in minutes.
	MaxIdleTime int `koanf:"max_idle_time"`
}

// SQLite contains single-node database configuration.
type SQLite struct {
	// Path to the database file, or ":memory:".
	Path string `koanf:"path"`
}

// Redis contains Redis connection configuration.
type Redis struct {
	// Redis hostname.
	Host string `koanf:"host"`
	// Redis port.
	Port int `koanf:"port"`
	// Redis username.
	Username string `koanf:"username"`
	// Redis password.
	Password string `koanf:"password"`
	// Disable client side caching for servers without CLIENT TRACKING.
	DisableCache bool `koanf:"disable_cache"`
}

// RateLimit selects where rate windows and cooldowns live.
type RateLimit struct {
	// Backend is "memory" (default) or "redis".
	Backend string `koanf:"backend"`
}

// LLM contains language model provider configuration.
type LLM struct {
	// Provider is "gemini" or "openai".
	Provider string `koanf:"provider"`
	// API key for the provider.
	APIKey string `koanf:"api_key"`
	// Base URL for OpenAI-compatible endpoints.
	BaseURL string `koanf:"base_url"`
	// Model used for intent classification.
	ClassifyModel string `koanf:"classify_model"`
	// Model used for reply generation.
	GenerateModel string `koanf:"generate_model"`
	// Model used for naturalness judgment.
	JudgeModel string `koanf:"judge_model"`
	// Maximum output tokens for generated replies.
	MaxOutputTokens int `koanf:"max_output_tokens"`
	// Request timeout in milliseconds.
	RequestTimeout int `koanf:"request_timeout"`
	// Maximum concurrent model requests.
	MaxConcurrent int `koanf:"max_concurrent"`
}

// Telemetry contains tracing configuration.
type Telemetry struct {
	// Enable query and pipeline tracing.
	EnableTracing bool `koanf:"enable_tracing"`
}

// BotConfig contains persona bot specific configuration.
type BotConfig struct {
	// Version of the bot config.
	Version int `koanf:"version"`
	// Discord connection settings.
	Discord Discord `koanf:"discord"`
	// Default replies per community per 24 hours.
	DailyCap int `koanf:"daily_cap"`
	// Messages of channel history given to the generator.
	RecentHistory int `koanf:"recent_history"`
	// Classifier context window in minutes.
	ClassifierWindowMinutes int `koanf:"classifier_window_minutes"`
	// Maximum classifier context messages.
	ClassifierWindowSize int `koanf:"classifier_window_size"`
	// Past responses injected as exemplars.
	ExemplarLimit int `koanf:"exemplar_limit"`
	// Keyword to topic mapping for user profiling.
	TopicKeywords map[string]string `koanf:"topic_keywords"`
	// Reaction emoji classification.
	Reactions Reactions `koanf:"reactions"`
	// Persona profile.
	Persona Persona `koanf:"persona"`
	// Community rule sets.
	Communities []Community `koanf:"communities"`
}

// Discord contains Discord-related configuration.
type Discord struct {
	// Bot token.
	Token string `koanf:"token"`
	// Owner user ID, always answered.
	OwnerID string `koanf:"owner_id"`
	// Maximum messages handled at once.
	MaxConcurrentHandlers int `koanf:"max_concurrent_handlers"`
}

// Reactions lists emoji treated as feedback.
type Reactions struct {
	Positive []string `koanf:"positive"`
	Negative []string `koanf:"negative"`
}

// Persona describes who the bot speaks as.
type Persona struct {
	Name        string            `koanf:"name"`
	Description string            `koanf:"description"`
	Tone        string            `koanf:"tone"`
	Language    string            `koanf:"language"`
	Fillers     []string          `koanf:"fillers"`
	Emojis      []string          `koanf:"emojis"`
	NeverSay    []string          `koanf:"never_say"`
	Examples    []PersonaExample  `koanf:"examples"`
	Patterns    map[string]string `koanf:"patterns"`
}

// PersonaExample is a hand-written few-shot example.
type PersonaExample struct {
	Context     string `koanf:"context"`
	UserMessage string `koanf:"user_message"`
	Reply       string `koanf:"reply"`
}

// Community contains the rule set and prompt context of one server.
type Community struct {
	// Server ID.
	ID string `koanf:"id"`
	// Display name.
	Name string `koanf:"name"`
	// Short description used in the system prompt.
	Description string `koanf:"description"`
	// Frequent topics.
	Topics []string `koanf:"topics"`
	// Tone specific to this server.
	SpecificTone string `koanf:"specific_tone"`
	// Extra prompt context.
	ExtraContext string `koanf:"extra_context"`
	// People the persona should recognize.
	KeyMembers []KeyMember `koanf:"key_members"`
	// Official answers to frequent questions.
	CannedAnswers map[string]string `koanf:"canned_answers"`
	// Official links.
	Links map[string]string `koanf:"links"`
	// Allow-list of channels. Empty means every channel.
	ActiveChannels []string `koanf:"active_channels"`
	// Deny-list of channels, checked before the allow-list.
	IgnoredChannels []string `koanf:"ignored_channels"`
	// Reply when mentioned. Defaults to true.
	RespondIfMentioned *bool `koanf:"respond_if_mentioned"`
	// Seconds between replies in one channel. Defaults to 30.
	CooldownSeconds *int `koanf:"cooldown_seconds"`
	// Ask the classifier about non-question messages. Defaults to true.
	RespondIfTopicRelevant *bool `koanf:"respond_if_topic_relevant"`
	// Overrides the bot daily cap when positive.
	DailyCap int `koanf:"daily_cap"`
}

// KeyMember is a notable person in a community.
type KeyMember struct {
	Name     string `koanf:"name"`
	Relation string `koanf:"relation"`
	Notes    string `koanf:"notes"`
}

// DefaultConfigPaths returns the directories searched for config files.
func DefaultConfigPaths() ([]string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("failed to get home directory: %w", err)
	}

	return []string{
		".chorus",
		homeDir + "/.chorus/config",
		"/etc/chorus/config",
		"/app/config",
		"config",
		".",
	}, nil
}

// LoadConfig loads configuration from the default search paths.
// Returns the config and the directory the first file was found in.
func LoadConfig() (*Config, string, error) {
	paths, err := DefaultConfigPaths()
	if err != nil {
		return nil, "", err
	}

	return LoadConfigFrom(paths...)
}

// LoadConfigFrom loads, defaults and validates configuration from the given paths.
func LoadConfigFrom(paths ...string) (*Config, string, error) {
	var cfg Config

	usedPath, err := loadFile("common", paths, &cfg.Common)
	if err != nil {
		return nil, "", err
	}

	if _, err := loadFile("bot", paths, &cfg.Bot); err != nil {
		return nil, "", err
	}

	// Check versions for each config file
	if err := checkConfigVersion("common", cfg.Common.Version, CurrentCommonVersion); err != nil {
		return nil, "", err
	}

	if err := checkConfigVersion("bot", cfg.Bot.Version, CurrentBotVersion); err != nil {
		return nil, "", err
	}

	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, "", err
	}

	return &cfg, usedPath, nil
}

// loadFile loads the first <name>.toml found in paths into out.
func loadFile(name string, paths []string, out any) (string, error) {
	for _, path := range paths {
		k := koanf.New(".")

		err := k.Load(file.Provider(filepath.Join(path, name+".toml")), toml.Parser())
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}

		if err != nil {
			return "", fmt.Errorf("failed to parse %s.toml in %s: %w", name, path, err)
		}

		if err := k.Unmarshal("", out); err != nil {
			return "", fmt.Errorf("error unmarshaling %s.toml: %w", name, err)
		}

		return path, nil
	}

	return "", fmt.Errorf("%w: %s.toml", ErrConfigFileNotFound, name)
}

// checkConfigVersion checks if the config file version is correct.
func checkConfigVersion(name string, current, expected int) error {
	if current == 0 {
		return fmt.Errorf("%w: %s.toml", ErrConfigVersionMissing, name)
	}

	if current != expected {
		return fmt.Errorf(
			"%w: %s.toml (got: %d, expected: %d)\n"+
				"Please update your config file from: https://github.com/robalyx/chorus/tree/%s/config/%s.toml",
			ErrConfigVersionMismatch,
			name,
			current,
			expected,
			RepositoryVersion,
			name,
		)
	}

	return nil
}
