package issues

import (
	"sort"
	"strings"
)

// Category 表示反馈评论中可识别的问题类别。
type Category string

const (
	CulturalRelevance Category = "cultural_relevance"
	MedicalAccuracy   Category = "medical_accuracy"
	Clarity           Category = "clarity"
	Completeness      Category = "completeness"
	Relevance         Category = "relevance"
	TechnicalIssue    Category = "technical_issue"
	Language          Category = "language"
)

// order 决定输出顺序，同时也是计数相同时的次序。
var order = []Category{
	CulturalRelevance,
	MedicalAccuracy,
	Clarity,
	Completeness,
	Relevance,
	TechnicalIssue,
	Language,
}

var keywordBuckets = map[Category][]string{
	CulturalRelevance: {"cultural", "tradition", "local", "belief", "inappropriate"},
	MedicalAccuracy:   {"wrong", "incorrect", "accurate", "inaccurate", "misleading"},
	Clarity:           {"unclear", "confusing", "vague", "complex", "difficult"},
	Completeness:      {"incomplete", "missing", "lacking", "partial", "more information"},
	Relevance:         {"irrelevant", "not relevant", "unrelated", "off-topic"},
	TechnicalIssue:    {"error", "bug", "crash", "failed", "technical", "not working"},
	Language:          {"language", "translation", "pidgin", "dialect", "accent"},
}

// Detect 返回评论命中的问题类别，按固定顺序排列。
func Detect(comment string) []Category {
	normalized := strings.ToLower(strings.TrimSpace(comment))
	if normalized == "" {
		return nil
	}

	var found []Category
	for _, category := range order {
		for _, word := range keywordBuckets[category] {
			if strings.Contains(normalized, word) {
				found = append(found, category)
				break
			}
		}
	}
	return found
}

// Tag 在关键词之外，把被标记为文化不适当的反馈归入 cultural_relevance。
func Tag(comment string, culturallyAppropriate bool) []Category {
	found := Detect(comment)
	if culturallyAppropriate {
		return found
	}
	for _, c := range found {
		if c == CulturalRelevance {
			return found
		}
	}
	return append([]Category{CulturalRelevance}, found...)
}

// Count 是某一类问题出现的次数。
type Count struct {
	Category Category `json:"category"`
	Count    int      `json:"count"`
}

// Common 统计一组评论中最常见的问题，按次数降序，最多返回 limit 条；limit<=0 表示不限。
func Common(comments []string, limit int) []Count {
	counts := make(map[Category]int)
	for _, comment := range comments {
		for _, c := range Detect(comment) {
			counts[c]++
		}
	}

	out := make([]Count, 0, len(counts))
	for _, category := range order {
		if n := counts[category]; n > 0 {
			out = append(out, Count{Category: category, Count: n})
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Count > out[j].Count })

	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}
