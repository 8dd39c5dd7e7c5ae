package quality

import (
	"context"
	"regexp"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"
)

// DefaultBannedPhrases are stock phrases that make a reply sound like an assistant.
var DefaultBannedPhrases = []string{
	"¡claro!",
	"¡por supuesto!",
	"¡excelente pregunta!",
	"como modelo de lenguaje",
	"como ia",
	"como asistente",
	"no puedo ayudarte con eso",
	"¡gran pregunta!",
	"absolutamente",
	"definitivamente puedo",
	"estaré encantado",
	"con mucho gusto",
	"¡hola! soy",
	"como inteligencia artificial",
}

var (
	bulletPattern   = regexp.MustCompile(`(?m)^\s*[-•*]\s`)
	sentencePattern = regexp.MustCompile(`[^.!?]+[.!?]*`)
)

// Rejection names a reason a candidate reply was refused.
type Rejection string

const (
	RejectBannedPhrase  Rejection = "banned_phrase"
	RejectTooLong       Rejection = "too_long"
	RejectExclamations  Rejection = "too_many_exclamations"
	RejectBullets       Rejection = "too_many_bullets"
	RejectEmptyTruncate Rejection = "truncation_empty"
	RejectUnnatural     Rejection = "unnatural"
	RejectJudgeError    Rejection = "judge_error"
)

// Limits are the thresholds of the local screen.
type Limits struct {
	// MaxLength is the longest accepted reply in characters.
	MaxLength int
	// TruncateLength is the strict upper bound of a truncated reply.
	TruncateLength int
	// MaxExclamations is the most "!" a reply may contain.
	MaxExclamations int
	// MaxBullets is the most bulleted lines a reply may contain.
	MaxBullets int
}

// DefaultLimits returns the standard thresholds.
func DefaultLimits() Limits {
	return Limits{
		MaxLength:       500,
		TruncateLength:  300,
		MaxExclamations: 3,
		MaxBullets:      2,
	}
}

// Judge decides whether a reply reads like a person wrote it.
type Judge interface {
	JudgeNaturalness(ctx context.Context, text string) (bool, error)
}

// Verdict is the outcome of filtering a candidate reply.
type Verdict struct {
	// Text is the reply to send. Empty unless Accepted.
	Text      string
	Accepted  bool
	Truncated bool
	// Rejections lists every violation found. Empty when accepted.
	Rejections []Rejection
}

// Filter screens generated replies locally, then asks the judge.
type Filter struct {
	banned []string
	limits Limits
	judge  Judge
	logger *zap.Logger
}

// NewFilter creates a filter. Banned phrases are matched case-insensitively.
func NewFilter(banned []string, limits Limits, judge Judge, logger *zap.Logger) *Filter {
	lowered := make([]string, 0, len(banned))
	for _, phrase := range banned {
		if phrase = strings.ToLower(strings.TrimSpace(phrase)); phrase != "" {
			lowered = append(lowered, phrase)
		}
	}

	return &Filter{
		banned: lowered,
		limits: limits,
		judge:  judge,
		logger: logger.Named("quality"),
	}
}

// Screen runs the local checks and returns every violation found.
func (f *Filter) Screen(text string) []Rejection {
	var rejections []Rejection

	lowered := strings.ToLower(text)
	for _, phrase := range f.banned {
		if strings.Contains(lowered, phrase) {
			rejections = append(rejections, RejectBannedPhrase)
			break
		}
	}

	if utf8.RuneCountInString(text) > f.limits.MaxLength {
		rejections = append(rejections, RejectTooLong)
	}

	if strings.Count(text, "!") > f.limits.MaxExclamations {
		rejections = append(rejections, RejectExclamations)
	}

	if len(bulletPattern.FindAllStringIndex(text, -1)) > f.limits.MaxBullets {
		rejections = append(rejections, RejectBullets)
	}

	return rejections
}

// Filter returns the text to send, possibly truncated, or a rejection.
// Length alone is recoverable by truncation; every other violation is final.
// The judge is only consulted once the local screen passed.
func (f *Filter) Filter(ctx context.Context, text string) Verdict {
	text = strings.TrimSpace(text)
	rejections := f.Screen(text)
	truncated := false

	switch {
	case len(rejections) == 1 && rejections[0] == RejectTooLong:
		shortened := Truncate(text, f.limits.TruncateLength)
		if shortened == "" {
			return f.reject(text, RejectTooLong, RejectEmptyTruncate)
		}

		f.logger.Debug("Truncated long reply",
			zap.Int("from", utf8.RuneCountInString(text)),
			zap.Int("to", utf8.RuneCountInString(shortened)))

		text = shortened
		truncated = true
	case len(rejections) > 0:
		return f.reject(text, rejections...)
	}

	natural, err := f.judge.JudgeNaturalness(ctx, text)
	if err != nil {
		f.logger.Warn("Naturalness judgment failed", zap.Error(err))
		return f.reject(text, RejectJudgeError)
	}

	if !natural {
		return f.reject(text, RejectUnnatural)
	}

	return Verdict{Text: text, Accepted: true, Truncated: truncated}
}

func (f *Filter) reject(text string, rejections ...Rejection) Verdict {
	reasons := make([]string, len(rejections))
	for i, r := range rejections {
		reasons[i] = string(r)
	}

	f.logger.Info("Reply rejected",
		zap.Strings("reasons", reasons),
		zap.String("text", text))

	return Verdict{Rejections: rejections}
}

// Truncate keeps whole leading sentences while the result stays strictly
// shorter than limit characters. A period is added when the kept text does
// not end in terminal punctuation. It returns "" when not even the first
// sentence fits.
func Truncate(text string, limit int) string {
	var kept []string

	for _, match := range sentencePattern.FindAllString(text, -1) {
		sentence := strings.TrimSpace(match)
		if sentence == "" || strings.Trim(sentence, ".!?") == "" {
			continue
		}

		candidate := withPeriod(strings.Join(append(kept, sentence), " "))
		if utf8.RuneCountInString(candidate) >= limit {
			break
		}

		kept = append(kept, sentence)
	}

	if len(kept) == 0 {
		return ""
	}

	return withPeriod(strings.Join(kept, " "))
}

func withPeriod(s string) string {
	if strings.HasSuffix(s, ".") || strings.HasSuffix(s, "!") || strings.HasSuffix(s, "?") {
		return s
	}

	return s + "."
}
