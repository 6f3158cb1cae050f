package category

import (
	"strings"
	"unicode"

	"github.com/cloudflare/ahocorasick"
	"github.com/lithammer/fuzzysearch/fuzzy"

	"github.com/insightdelivered/spendsense/internal/models"
)

// Classifier derives a category label from a transaction description.
type Classifier interface {
	Classify(description string) string
}

// minFuzzyKeyword is the shortest keyword eligible for fuzzy matching.
const minFuzzyKeyword = 5

// Engine matches every keyword of every rule in a single Aho-Corasick pass
// and returns the lowest-index rule that hit. Engines are immutable and safe
// for concurrent use.
type Engine struct {
	rules   []Rule
	matcher *ahocorasick.Matcher
	owners  [][]int // rule indexes per dictionary entry
}

// NewEngine builds an engine over the ordered rules.
func NewEngine(rules []Rule) *Engine {
	e := &Engine{rules: rules}

	index := make(map[string]int)
	var dict [][]byte
	for ri, r := range rules {
		for _, kw := range r.Keywords {
			kw = strings.ToUpper(strings.TrimSpace(kw))
			if kw == "" {
				continue
			}
			if at, ok := index[kw]; ok {
				e.owners[at] = append(e.owners[at], ri)
				continue
			}
			index[kw] = len(dict)
			dict = append(dict, []byte(kw))
			e.owners = append(e.owners, []int{ri})
		}
	}
	if len(dict) > 0 {
		e.matcher = ahocorasick.NewMatcher(dict)
	}
	return e
}

// NewDefault builds an engine over DefaultRules.
func NewDefault() *Engine {
	return NewEngine(DefaultRules())
}

// Classify returns the category of the first matching rule, or
// models.Uncategorized.
func (e *Engine) Classify(description string) string {
	upper := strings.ToUpper(description)
	if upper == "" || e.matcher == nil {
		return models.Uncategorized
	}

	best := -1
	for _, hit := range e.matcher.Match([]byte(upper)) {
		for _, ri := range e.owners[hit] {
			if best == -1 || ri < best {
				best = ri
			}
		}
	}
	if best >= 0 {
		return e.rules[best].Category
	}

	if ri := e.fuzzyMatch(upper); ri >= 0 {
		return e.rules[ri].Category
	}
	return models.Uncategorized
}

func (e *Engine) fuzzyMatch(upper string) int {
	words := strings.FieldsFunc(upper, func(r rune) bool {
		return !unicode.IsLetter(r)
	})
	for ri, r := range e.rules {
		if !r.Fuzzy {
			continue
		}
		for _, kw := range r.Keywords {
			kw = strings.ToUpper(kw)
			if len(kw) < minFuzzyKeyword || strings.ContainsAny(kw, " .-/") {
				continue
			}
			for _, w := range words {
				if fuzzy.LevenshteinDistance(kw, w) <= 1 {
					return ri
				}
			}
		}
	}
	return -1
}
