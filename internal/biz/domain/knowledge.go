package domain

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

const (
	// MaxFactsPerChat caps stored facts; pruning keeps the
	// highest-confidence ones.
	MaxFactsPerChat = 50
	// MaxTopicHistory caps the rolling topic list.
	MaxTopicHistory = 20
	// DefaultConfidenceBoost is added when a known fact is observed again.
	DefaultConfidenceBoost = 5
)

// Fact is a discrete, confidence-scored piece of information inferred
// from conversation history.
type Fact struct {
	Category      string    `json:"category"`
	Content       string    `json:"content"`
	Confidence    int       `json:"confidence"` // 0-100
	Source        string    `json:"source,omitempty"`
	About         string    `json:"about,omitempty"`
	FirstObserved time.Time `json:"firstObserved"`
	LastObserved  time.Time `json:"lastObserved"`
	Mentions      int       `json:"mentions"`
}

// FactKey returns the dedup key for a fact: category plus trimmed,
// lowercased content. Facts with equal keys are the same fact.
func FactKey(category, content string) string {
	return strings.ToLower(strings.TrimSpace(category)) + "\x00" + strings.ToLower(strings.TrimSpace(content))
}

// KnowledgeMetadata carries derived per-chat signals alongside facts
type KnowledgeMetadata struct {
	ConversationTone string   `json:"conversationTone,omitempty"`
	PrimaryLanguage  string   `json:"primaryLanguage,omitempty"`
	RelationshipType string   `json:"relationshipType,omitempty"`
	Topics           []string `json:"topics,omitempty"`
}

// ChatKnowledge is everything learned about one chat
type ChatKnowledge struct {
	ChatID           string    `json:"chatId"`
	Facts            []Fact    `json:"facts"`
	ConversationTone string    `json:"conversationTone,omitempty"`
	PrimaryLanguage  string    `json:"primaryLanguage,omitempty"`
	RelationshipType string    `json:"relationshipType,omitempty"`
	TopicHistory     []string  `json:"topicHistory,omitempty"`
	UpdatedAt        time.Time `json:"updatedAt"`
}

// MergeFacts folds incoming facts into the knowledge record. A fact that
// already exists (same category, case-insensitive content) gets its
// confidence bumped to min(100, max(existing, incoming)+boost), its
// mention count incremented and its lastObserved refreshed. New facts are
// inserted with mentions=1. After merging, the fact list is pruned to
// MaxFactsPerChat keeping the highest-confidence entries.
func (k *ChatKnowledge) MergeFacts(incoming []Fact, boost int, now time.Time) {
	if boost <= 0 {
		boost = DefaultConfidenceBoost
	}
	byKey := make(map[string]int, len(k.Facts))
	for i := range k.Facts {
		byKey[FactKey(k.Facts[i].Category, k.Facts[i].Content)] = i
	}

	for _, f := range incoming {
		if strings.TrimSpace(f.Content) == "" {
			continue
		}
		key := FactKey(f.Category, f.Content)
		if i, ok := byKey[key]; ok {
			existing := &k.Facts[i]
			higher := existing.Confidence
			if f.Confidence > higher {
				higher = f.Confidence
			}
			existing.Confidence = min(100, higher+boost)
			existing.Mentions++
			existing.LastObserved = now
			if f.About != "" {
				existing.About = f.About
			}
			continue
		}
		f.Confidence = clampConfidence(f.Confidence)
		f.Mentions = 1
		f.FirstObserved = now
		f.LastObserved = now
		k.Facts = append(k.Facts, f)
		byKey[key] = len(k.Facts) - 1
	}

	if len(k.Facts) > MaxFactsPerChat {
		sort.SliceStable(k.Facts, func(i, j int) bool {
			return k.Facts[i].Confidence > k.Facts[j].Confidence
		})
		k.Facts = k.Facts[:MaxFactsPerChat]
	}
	k.UpdatedAt = now
}

// MergeMetadata applies last-write-wins metadata and folds topics into
// the deduplicated, capped topic history (most recent kept).
func (k *ChatKnowledge) MergeMetadata(meta KnowledgeMetadata) {
	if meta.ConversationTone != "" {
		k.ConversationTone = meta.ConversationTone
	}
	if meta.PrimaryLanguage != "" {
		k.PrimaryLanguage = meta.PrimaryLanguage
	}
	if meta.RelationshipType != "" {
		k.RelationshipType = meta.RelationshipType
	}
	for _, topic := range meta.Topics {
		topic = strings.TrimSpace(topic)
		if topic == "" {
			continue
		}
		k.TopicHistory = appendTopic(k.TopicHistory, topic)
	}
	if len(k.TopicHistory) > MaxTopicHistory {
		k.TopicHistory = k.TopicHistory[len(k.TopicHistory)-MaxTopicHistory:]
	}
}

func appendTopic(topics []string, topic string) []string {
	lower := strings.ToLower(topic)
	for i, t := range topics {
		if strings.ToLower(t) == lower {
			// Move the existing entry to the recent end
			return append(append(topics[:i:i], topics[i+1:]...), t)
		}
	}
	return append(topics, topic)
}

// FormatForPrompt renders a deterministic, category-grouped text block
// for inclusion in AI requests. Pure function of the receiver.
func (k *ChatKnowledge) FormatForPrompt() string {
	if len(k.Facts) == 0 && k.ConversationTone == "" && k.RelationshipType == "" {
		return ""
	}

	var sb strings.Builder
	sb.WriteString("## Known about this chat\n")
	if k.RelationshipType != "" {
		sb.WriteString(fmt.Sprintf("- Relationship: %s\n", k.RelationshipType))
	}
	if k.ConversationTone != "" {
		sb.WriteString(fmt.Sprintf("- Tone: %s\n", k.ConversationTone))
	}
	if k.PrimaryLanguage != "" {
		sb.WriteString(fmt.Sprintf("- Language: %s\n", k.PrimaryLanguage))
	}
	if len(k.TopicHistory) > 0 {
		sb.WriteString(fmt.Sprintf("- Recent topics: %s\n", strings.Join(k.TopicHistory, ", ")))
	}

	if len(k.Facts) > 0 {
		grouped := make(map[string][]Fact)
		var categories []string
		for _, f := range k.Facts {
			cat := strings.ToLower(strings.TrimSpace(f.Category))
			if cat == "" {
				cat = "other"
			}
			if _, seen := grouped[cat]; !seen {
				categories = append(categories, cat)
			}
			grouped[cat] = append(grouped[cat], f)
		}
		sort.Strings(categories)

		for _, cat := range categories {
			sb.WriteString(fmt.Sprintf("\n### %s\n", cat))
			facts := grouped[cat]
			sort.SliceStable(facts, func(i, j int) bool {
				if facts[i].Confidence != facts[j].Confidence {
					return facts[i].Confidence > facts[j].Confidence
				}
				return facts[i].Content < facts[j].Content
			})
			for _, f := range facts {
				if f.About != "" {
					sb.WriteString(fmt.Sprintf("- %s (about %s, confidence %d)\n", f.Content, f.About, f.Confidence))
				} else {
					sb.WriteString(fmt.Sprintf("- %s (confidence %d)\n", f.Content, f.Confidence))
				}
			}
		}
	}

	return sb.String()
}

func clampConfidence(c int) int {
	if c < 0 {
		return 0
	}
	if c > 100 {
		return 100
	}
	return c
}
