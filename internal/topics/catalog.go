package topics

// The catalog is the single source of truth for topic identifiers. Both the
// context assembler and the tool schema generator consult it, so the id set
// offered to the model always matches the ids accepted back from it.

// TopicOther is the sentinel id offered alongside the catalog topics
const TopicOther = "other"

// topicIDs is the ordered set of valid topic identifiers
var topicIDs = []string{
	"algebra",
	"geometry",
	"calculus",
	"statistics",
	"probability",
	"linear_algebra",
	"discrete_math",
}

var topicNames = map[string]map[string]string{
	"zh": {
		"algebra":        "代数",
		"geometry":       "几何",
		"calculus":       "微积分",
		"statistics":     "统计",
		"probability":    "概率论",
		"linear_algebra": "线性代数",
		"discrete_math":  "离散数学",
	},
	"en": {
		"algebra":        "Algebra",
		"geometry":       "Geometry",
		"calculus":       "Calculus",
		"statistics":     "Statistics",
		"probability":    "Probability",
		"linear_algebra": "Linear Algebra",
		"discrete_math":  "Discrete Mathematics",
	},
	"ms": {
		"algebra":        "Algebra",
		"geometry":       "Geometri",
		"calculus":       "Kalkulus",
		"statistics":     "Statistik",
		"probability":    "Kebarangkalian",
		"linear_algebra": "Aljabar Linear",
		"discrete_math":  "Matematik Diskret",
	},
}

// Available returns the ordered topic ids plus the "other" sentinel.
// The result is a fresh slice; callers may not mutate the catalog.
func Available() []string {
	ids := make([]string, 0, len(topicIDs)+1)
	ids = append(ids, topicIDs...)
	ids = append(ids, TopicOther)
	return ids
}

// IsValid reports whether id is a catalog topic or the "other" sentinel
func IsValid(id string) bool {
	if id == TopicOther {
		return true
	}
	for _, t := range topicIDs {
		if t == id {
			return true
		}
	}
	return false
}

// Name returns the localized display name for a topic id.
// Unknown languages fall back to English; unknown ids fall back to the raw id.
func Name(topicID, lang string) string {
	names, ok := topicNames[lang]
	if !ok {
		names = topicNames["en"]
	}
	if name, ok := names[topicID]; ok {
		return name
	}
	return topicID
}

// Names returns the full localized catalog for a language, in catalog order
func Names(lang string) []string {
	names := make([]string, len(topicIDs))
	for i, id := range topicIDs {
		names[i] = Name(id, lang)
	}
	return names
}
