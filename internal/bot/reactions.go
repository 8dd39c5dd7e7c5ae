package bot

import (
	"strings"

	"github.com/robalyx/chorus/internal/setup/config"
)

// variationSelector is dropped so "❤" and "❤️" compare equal.
const variationSelector = "\uFE0F"

// Reactions classifies emoji as positive or negative feedback.
type Reactions struct {
	positive map[string]struct{}
	negative map[string]struct{}
}

// NewReactions creates a classifier from the configured emoji sets.
func NewReactions(cfg *config.Reactions) *Reactions {
	return &Reactions{
		positive: emojiSet(cfg.Positive),
		negative: emojiSet(cfg.Negative),
	}
}

// Classify reports the direction of an emoji. ok is false for emoji that
// carry no feedback.
func (r *Reactions) Classify(emoji string) (positive, ok bool) {
	key := normalizeEmoji(emoji)
	if key == "" {
		return false, false
	}

	if _, found := r.positive[key]; found {
		return true, true
	}

	if _, found := r.negative[key]; found {
		return false, true
	}

	return false, false
}

func emojiSet(values []string) map[string]struct{} {
	set := make(map[string]struct{}, len(values))
	for _, v := range values {
		if key := normalizeEmoji(v); key != "" {
			set[key] = struct{}{}
		}
	}

	return set
}

func normalizeEmoji(emoji string) string {
	return strings.ReplaceAll(strings.TrimSpace(emoji), variationSelector, "")
}
