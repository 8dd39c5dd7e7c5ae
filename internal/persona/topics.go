package persona

import (
	"cmp"
	"slices"
	"strings"

	"github.com/robalyx/chorus/pkg/utils"
)

type topicKeyword struct {
	keyword string
	topic   string
}

// TopicDetector finds tracked topics mentioned in a message.
type TopicDetector struct {
	normalizer *utils.TextNormalizer
	keywords   []topicKeyword
}

// NewTopicDetector creates a detector from a keyword to topic mapping.
// Keywords match regardless of case and accents.
func NewTopicDetector(keywords map[string]string) *TopicDetector {
	normalizer := utils.NewTextNormalizer()

	entries := make([]topicKeyword, 0, len(keywords))
	for keyword, topic := range keywords {
		folded := normalizer.Normalize(keyword)
		if folded == "" || topic == "" {
			continue
		}
		entries = append(entries, topicKeyword{keyword: folded, topic: topic})
	}

	slices.SortFunc(entries, func(a, b topicKeyword) int {
		return cmp.Compare(a.keyword, b.keyword)
	})

	return &TopicDetector{normalizer: normalizer, keywords: entries}
}

// Detect returns the distinct topics mentioned in text, sorted by name.
func (d *TopicDetector) Detect(text string) []string {
	folded := d.normalizer.Normalize(text)
	if folded == "" {
		return nil
	}

	var found []string
	for _, entry := range d.keywords {
		if strings.Contains(folded, entry.keyword) && !slices.Contains(found, entry.topic) {
			found = append(found, entry.topic)
		}
	}

	slices.Sort(found)

	return found
}
