package gate

import (
	"time"

	"github.com/robalyx/chorus/internal/setup/config"
)

// RuleSet is the immutable reply policy of one community.
type RuleSet struct {
	CommunityID            string
	CommunityName          string
	ActiveChannels         map[string]struct{}
	IgnoredChannels        map[string]struct{}
	RespondIfMentioned     bool
	RespondIfTopicRelevant bool
	Cooldown               time.Duration
	DailyCap               int
}

// Ignores reports whether the channel is on the deny-list.
func (r *RuleSet) Ignores(channelID string) bool {
	_, ok := r.IgnoredChannels[channelID]
	return ok
}

// Allows reports whether the allow-list admits the channel.
// An empty allow-list admits every channel.
func (r *RuleSet) Allows(channelID string) bool {
	if len(r.ActiveChannels) == 0 {
		return true
	}

	_, ok := r.ActiveChannels[channelID]

	return ok
}

// RuleBook maps community IDs to their rule sets.
type RuleBook map[string]*RuleSet

// NewRuleBook builds the rule sets of every configured community.
// The config must already have defaults applied.
func NewRuleBook(cfg *config.Config) RuleBook {
	book := make(RuleBook, len(cfg.Bot.Communities))

	for i := range cfg.Bot.Communities {
		community := &cfg.Bot.Communities[i]

		rules := &RuleSet{
			CommunityID:            community.ID,
			CommunityName:          community.Name,
			ActiveChannels:         toSet(community.ActiveChannels),
			IgnoredChannels:        toSet(community.IgnoredChannels),
			RespondIfMentioned:     deref(community.RespondIfMentioned, true),
			RespondIfTopicRelevant: deref(community.RespondIfTopicRelevant, true),
			Cooldown:               time.Duration(deref(community.CooldownSeconds, config.DefaultCooldownSeconds)) * time.Second,
			DailyCap:               cfg.DailyCapFor(community),
		}
		book[community.ID] = rules
	}

	return book
}

// Lookup returns the rule set of a community.
func (b RuleBook) Lookup(communityID string) (*RuleSet, bool) {
	rules, ok := b[communityID]
	return rules, ok
}

func toSet(values []string) map[string]struct{} {
	set := make(map[string]struct{}, len(values))
	for _, v := range values {
		set[v] = struct{}{}
	}

	return set
}

func deref[T any](ptr *T, fallback T) T {
	if ptr == nil {
		return fallback
	}

	return *ptr
}
