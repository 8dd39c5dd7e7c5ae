package trainer

import (
	"math"
	"regexp"
	"slices"
	"strings"
	"unicode/utf8"

	"github.com/robalyx/chorus/pkg/utils"
)

const (
	topEmojis         = 10
	topWords          = 30
	topFillers        = 15
	minFillerCount    = 3
	minWordLength     = 3
	capsMinLength     = 6
	capsShare         = 0.1
	sampleThreshold   = 10
	shortSampleLength = 5
)

var (
	emojiPattern = regexp.MustCompile(`[\x{1F600}-\x{1F64F}\x{1F300}-\x{1F5FF}\x{1F680}-\x{1F6FF}` +
		`\x{1F900}-\x{1F9FF}\x{1FA00}-\x{1FAFF}\x{2600}-\x{26FF}\x{2700}-\x{27BF}]`)
	wordPattern = regexp.MustCompile(`[\p{L}\p{N}_]+`)
)

// stopWords are skipped in word and filler counts. Entries are folded.
var stopWords = map[string]struct{}{}

func init() {
	for _, w := range strings.Fields(`de la el en y a que es se no un una los las por con para lo me
		mi te tu le al del ya si pero the an is it to in of and i you he she we they my your do does`) {
		stopWords[w] = struct{}{}
	}
}

// Style summarizes how a person writes.
type Style struct {
	MessageCount    int
	AverageLength   int
	Emojis          []string
	Words           []string
	Fillers         []string
	FrequentCaps    bool
	ExclamationRate float64
	QuestionRate    float64
	Examples        []string
}

// Analyze measures the writing style of a set of messages. Words are folded
// before counting, so "Qué" and "que" are the same word.
func Analyze(texts []string) *Style {
	style := &Style{MessageCount: len(texts)}
	if len(texts) == 0 {
		return style
	}

	normalizer := utils.NewTextNormalizer()

	emojis := newCounter()
	words := newCounter()
	fillers := newCounter()

	var totalLength, caps, exclamations, questions int

	for _, text := range texts {
		length := utf8.RuneCountInString(text)
		totalLength += length

		for _, emoji := range emojiPattern.FindAllString(text, -1) {
			emojis.add(emoji)
		}

		folded := normalizer.Normalize(text)

		for _, word := range wordPattern.FindAllString(folded, -1) {
			if !isStopWord(word) && utf8.RuneCountInString(word) >= minWordLength {
				words.add(word)
			}
		}

		tokens := strings.Fields(folded)
		for i := 0; i+1 < len(tokens); i++ {
			if !isStopWord(tokens[i]) && !isStopWord(tokens[i+1]) {
				fillers.add(tokens[i] + " " + tokens[i+1])
			}
		}

		if length >= capsMinLength && text == strings.ToUpper(text) {
			caps++
		}

		exclamations += strings.Count(text, "!")
		questions += strings.Count(text, "?")
	}

	n := float64(len(texts))

	style.AverageLength = int(math.Round(float64(totalLength) / n))
	style.Emojis = emojis.top(topEmojis, 1)
	style.Words = words.top(topWords, 1)
	style.Fillers = fillers.top(topFillers, minFillerCount)
	style.FrequentCaps = float64(caps)/n > capsShare
	style.ExclamationRate = round2(float64(exclamations) / n)
	style.QuestionRate = round2(float64(questions) / n)
	style.Examples = samples(texts)

	return style
}

// samples picks short, medium and long messages from larger sets, or the
// shortest few from small ones.
func samples(texts []string) []string {
	sorted := slices.Clone(texts)
	slices.SortStableFunc(sorted, func(a, b string) int {
		return utf8.RuneCountInString(a) - utf8.RuneCountInString(b)
	})

	n := len(sorted)
	if n <= sampleThreshold {
		return sorted[:min(n, shortSampleLength)]
	}

	return []string{sorted[n/4], sorted[n/2], sorted[3*n/4]}
}

func isStopWord(word string) bool {
	_, ok := stopWords[word]
	return ok
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// counter counts occurrences and ranks ties by first appearance.
type counter struct {
	counts map[string]int
	order  []string
}

func newCounter() *counter {
	return &counter{counts: make(map[string]int)}
}

func (c *counter) add(key string) {
	if _, ok := c.counts[key]; !ok {
		c.order = append(c.order, key)
	}
	c.counts[key]++
}

// top returns up to n keys seen at least minCount times, most frequent first.
func (c *counter) top(n, minCount int) []string {
	keys := slices.Clone(c.order)
	slices.SortStableFunc(keys, func(a, b string) int {
		return c.counts[b] - c.counts[a]
	})

	keys = keys[:min(n, len(keys))]

	out := make([]string, 0, len(keys))
	for _, key := range keys {
		if c.counts[key] >= minCount {
			out = append(out, key)
		}
	}

	return out
}
