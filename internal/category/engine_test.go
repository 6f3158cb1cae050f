package category

import (
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/insightdelivered/spendsense/internal/models"
)

func TestEngine_DefaultRules(t *testing.T) {
	engine := NewDefault()

	tests := []struct {
		description string
		expected    string
	}{
		{"Grocery", "Grocery"},
		{"Salary", "Salary"},
		{"WHOLE FOODS MARKET AUSTIN", "Grocery"},
		{"PAYMENT - THANK YOU / PAIEMENT - MERCI", "Payments"},
		{"AMAZON PRIME*2K4", "Subscriptions"},
		{"AMAZON.CA MARKETPLACE", "Shopping"},
		{"UBER EATS TORONTO", "Dining"},
		{"UBER TRIP HELP.UBER.COM", "Transport"},
		{"HOTEL ZUM HIRSCH MUNICH DEU", "Travel"},
		{"Transfer to savings", models.Uncategorized},
		{"", models.Uncategorized},
	}

	for _, tt := range tests {
		t.Run(tt.description, func(t *testing.T) {
			assert.Equal(t, tt.expected, engine.Classify(tt.description))
		})
	}
}

func TestEngine_FirstRuleWins(t *testing.T) {
	engine := NewEngine([]Rule{
		{Category: "Coffee", Keywords: []string{"STARBUCKS"}},
		{Category: "Dining", Keywords: []string{"STARBUCKS", "RESTAURANT"}},
	})

	assert.Equal(t, "Coffee", engine.Classify("starbucks restaurant #12"))
	assert.Equal(t, "Dining", engine.Classify("Corner Restaurant"))
}

func TestEngine_Fuzzy(t *testing.T) {
	engine := NewEngine([]Rule{
		{Category: "Grocery", Keywords: []string{"GROCERY", "ALDI"}, Fuzzy: true},
		{Category: "Salary", Keywords: []string{"SALARY"}},
	})

	assert.Equal(t, "Grocery", engine.Classify("GROCRY OUTLET"), "one deletion")
	assert.Equal(t, models.Uncategorized, engine.Classify("ALDO SHOES"), "short keywords are exact only")
	assert.Equal(t, models.Uncategorized, engine.Classify("SALERY"), "rule without fuzzy flag")
	assert.Equal(t, models.Uncategorized, engine.Classify("GRCRY"), "two edits")
}

func TestEngine_NoRules(t *testing.T) {
	assert.Equal(t, models.Uncategorized, NewEngine(nil).Classify("anything"))
}

func TestEngine_Concurrent(t *testing.T) {
	engine := NewDefault()
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				assert.Equal(t, "Grocery", engine.Classify("LOBLAWS #1234"))
			}
		}()
	}
	wg.Wait()
}

func TestLoadRules(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "rules.yaml")
	doc := `rules:
  - category: Pets
    keywords: [PETSMART, VET CLINIC]
  - category: Grocery
    keywords: [grocery]
    fuzzy: true
`
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))

	rules, err := LoadRules(path)
	require.NoError(t, err)
	require.Len(t, rules, 2)
	assert.Equal(t, "Pets", rules[0].Category)
	assert.True(t, rules[1].Fuzzy)

	engine := NewEngine(rules)
	assert.Equal(t, "Pets", engine.Classify("PETSMART #88"))
	assert.Equal(t, "Grocery", engine.Classify("Grocery"))
	assert.Equal(t, models.Uncategorized, engine.Classify("Salary"), "file rules replace the defaults")
}

func TestParseRules_Invalid(t *testing.T) {
	tests := map[string]string{
		"not yaml":    "rules: [",
		"empty":       "rules: []",
		"no category": "rules:\n  - keywords: [A]\n",
		"no keywords": "rules:\n  - category: A\n",
	}
	for name, doc := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := ParseRules([]byte(doc))
			assert.Error(t, err)
		})
	}

	_, err := LoadRules(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
