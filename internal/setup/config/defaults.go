package config

import (
	"fmt"
	"maps"
	"slices"

	"github.com/robalyx/chorus/pkg/utils"
)

const (
	DefaultDailyCap                = 15
	DefaultCooldownSeconds         = 30
	DefaultRecentHistory           = 15
	DefaultClassifierWindowMinutes = 10
	DefaultClassifierWindowSize    = 10
	DefaultExemplarLimit           = 3
	DefaultMaxConcurrentHandlers   = 8
	DefaultMaxOutputTokens         = 500
	DefaultRequestTimeout          = 30000
	DefaultMaxConcurrentLLM        = 4
	DefaultMaxLogsToKeep           = 10
)

// ModelPair names a provider's reply model and its cheaper helper model.
type ModelPair struct {
	Main string
	Fast string
}

var (
	// DefaultModels are used when the llm section names no models.
	DefaultModels = map[string]ModelPair{
		"gemini": {Main: "gemini-2.5-flash", Fast: "gemini-2.0-flash-lite"},
		"openai": {Main: "gpt-4o", Fast: "gpt-4o-mini"},
	}

	// DefaultPositiveReactions are the emoji counted as approval.
	DefaultPositiveReactions = []string{"👍", "❤️", "🔥", "✅", "💯", "🙌", "👏", "😊", "🎯", "⭐"}
	// DefaultNegativeReactions are the emoji counted as disapproval.
	DefaultNegativeReactions = []string{"👎", "❌", "😕", "🤔"}

	// DefaultTopicKeywords maps message keywords to tracked user topics.
	DefaultTopicKeywords = map[string]string{
		"neo":            "NEO Software",
		"formación":      "formación",
		"bloque":         "bloques formativos",
		"directo":        "directos/eventos",
		"zoom":           "directos/eventos",
		"creator talk":   "Creator Talks",
		"reel":           "contenido/reels",
		"instagram":      "Instagram",
		"tiktok":         "TikTok",
		"youtube":        "YouTube",
		"nicho":          "nicho/marca personal",
		"marca personal": "nicho/marca personal",
		"contenido":      "creación de contenido",
		"suscripción":    "suscripción NEO",
		"cancelar":       "cancelar suscripción",
		"acceso":         "acceso plataforma",
		"grabación":      "grabaciones",
		"ticket":         "soporte técnico",
		"notion":         "Notion",
		"venta":          "ventas/cierre",
		"cliente":        "clientes",
	}
)

// ApplyDefaults fills every optional field so that consumers never need
// existence checks.
func (c *Config) ApplyDefaults() {
	if c.Common.Debug.LogLevel == "" {
		c.Common.Debug.LogLevel = "info"
	}

	if c.Common.Debug.MaxLogsToKeep <= 0 {
		c.Common.Debug.MaxLogsToKeep = DefaultMaxLogsToKeep
	}

	if c.Common.Database.Driver == "" {
		c.Common.Database.Driver = "postgres"
	}

	if c.Common.SQLite.Path == "" {
		c.Common.SQLite.Path = "data/chorus.db"
	}

	if c.Common.RateLimit.Backend == "" {
		c.Common.RateLimit.Backend = "memory"
	}

	llm := &c.Common.LLM
	if llm.Provider == "" {
		llm.Provider = "gemini"
	}

	models, ok := DefaultModels[llm.Provider]
	if ok {
		if llm.ClassifyModel == "" {
			llm.ClassifyModel = models.Fast
		}

		if llm.JudgeModel == "" {
			llm.JudgeModel = models.Fast
		}

		if llm.GenerateModel == "" {
			llm.GenerateModel = models.Main
		}
	}

	if llm.MaxOutputTokens <= 0 {
		llm.MaxOutputTokens = DefaultMaxOutputTokens
	}

	if llm.RequestTimeout <= 0 {
		llm.RequestTimeout = DefaultRequestTimeout
	}

	if llm.MaxConcurrent <= 0 {
		llm.MaxConcurrent = DefaultMaxConcurrentLLM
	}

	bot := &c.Bot
	if bot.DailyCap <= 0 {
		bot.DailyCap = DefaultDailyCap
	}

	if bot.RecentHistory <= 0 {
		bot.RecentHistory = DefaultRecentHistory
	}

	if bot.ClassifierWindowMinutes <= 0 {
		bot.ClassifierWindowMinutes = DefaultClassifierWindowMinutes
	}

	if bot.ClassifierWindowSize <= 0 {
		bot.ClassifierWindowSize = DefaultClassifierWindowSize
	}

	if bot.ExemplarLimit <= 0 {
		bot.ExemplarLimit = DefaultExemplarLimit
	}

	if bot.Discord.MaxConcurrentHandlers <= 0 {
		bot.Discord.MaxConcurrentHandlers = DefaultMaxConcurrentHandlers
	}

	if len(bot.TopicKeywords) == 0 {
		bot.TopicKeywords = maps.Clone(DefaultTopicKeywords)
	}

	if len(bot.Reactions.Positive) == 0 {
		bot.Reactions.Positive = slices.Clone(DefaultPositiveReactions)
	}

	if len(bot.Reactions.Negative) == 0 {
		bot.Reactions.Negative = slices.Clone(DefaultNegativeReactions)
	}

	for i := range bot.Communities {
		community := &bot.Communities[i]
		if community.RespondIfMentioned == nil {
			community.RespondIfMentioned = utils.Ptr(true)
		}

		if community.RespondIfTopicRelevant == nil {
			community.RespondIfTopicRelevant = utils.Ptr(true)
		}

		if community.CooldownSeconds == nil {
			community.CooldownSeconds = utils.Ptr(DefaultCooldownSeconds)
		}
	}
}

// Validate checks the defaulted config for values the bot cannot run with.
func (c *Config) Validate() error {
	switch c.Common.Database.Driver {
	case "postgres", "sqlite":
	default:
		return fmt.Errorf("%w: unknown database driver %q", ErrInvalidConfig, c.Common.Database.Driver)
	}

	switch c.Common.RateLimit.Backend {
	case "memory", "redis":
	default:
		return fmt.Errorf("%w: unknown ratelimit backend %q", ErrInvalidConfig, c.Common.RateLimit.Backend)
	}

	switch c.Common.LLM.Provider {
	case "gemini", "openai":
	default:
		return fmt.Errorf("%w: unknown llm provider %q", ErrInvalidConfig, c.Common.LLM.Provider)
	}

	seen := make(map[string]struct{}, len(c.Bot.Communities))
	for i, community := range c.Bot.Communities {
		if community.ID == "" {
			return fmt.Errorf("%w: communities[%d] has no id", ErrInvalidCommunity, i)
		}

		if _, dup := seen[community.ID]; dup {
			return fmt.Errorf("%w: duplicate community id %s", ErrInvalidCommunity, community.ID)
		}
		seen[community.ID] = struct{}{}

		if community.CooldownSeconds != nil && *community.CooldownSeconds < 0 {
			return fmt.Errorf("%w: community %s has negative cooldown", ErrInvalidCommunity, community.ID)
		}

		if community.DailyCap < 0 {
			return fmt.Errorf("%w: community %s has negative daily cap", ErrInvalidCommunity, community.ID)
		}
	}

	return nil
}

// DailyCapFor returns the community override or the bot-wide cap.
func (c *Config) DailyCapFor(community *Community) int {
	if community != nil && community.DailyCap > 0 {
		return community.DailyCap
	}

	return c.Bot.DailyCap
}

// Community returns the community config with the given ID.
func (c *Config) Community(id string) (*Community, bool) {
	for i := range c.Bot.Communities {
		if c.Bot.Communities[i].ID == id {
			return &c.Bot.Communities[i], true
		}
	}

	return nil, false
}
