package category

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Rule assigns Category to descriptions containing any of Keywords.
// Rules are ordered; the first matching rule wins.
type Rule struct {
	Category string   `yaml:"category"`
	Keywords []string `yaml:"keywords"`
	// Fuzzy allows a description word within one edit of a keyword.
	Fuzzy bool `yaml:"fuzzy"`
}

type ruleFile struct {
	Rules []Rule `yaml:"rules"`
}

// DefaultRules is the built-in taxonomy. Subscriptions sit above Shopping
// so that "AMAZON PRIME" is not filed as a purchase.
func DefaultRules() []Rule {
	return []Rule{
		{Category: "Payments", Keywords: []string{"PAYMENT - THANK YOU", "PAYMENT RECEIVED", "PAIEMENT", "AUTOPAY", "CREDIT CARD PAYMENT"}},
		{Category: "Salary", Keywords: []string{"SALARY", "PAYROLL", "WAGE DEPOSIT", "DIRECT DEP", "GEHALT"}, Fuzzy: true},
		{Category: "Grocery", Keywords: []string{"GROCERY", "GROCERIES", "SUPERMARKET", "WHOLE FOODS", "LOBLAWS", "SOBEYS", "METRO", "COSTCO", "TRADER JOE", "ALDI", "LIDL", "REWE", "EDEKA"}, Fuzzy: true},
		{Category: "Dining", Keywords: []string{"RESTAURANT", "CAFE", "COFFEE", "STARBUCKS", "TIM HORTONS", "MCDONALD", "BAKERY", "PIZZA", "UBER EATS", "DOORDASH", "SKIPTHEDISHES"}, Fuzzy: true},
		{Category: "Transport", Keywords: []string{"UBER", "LYFT", "TAXI", "TRANSIT", "PRESTO", "PARKING", "SHELL", "ESSO", "PETRO", "CHEVRON", "FUEL"}},
		{Category: "Travel", Keywords: []string{"HOTEL", "AIRBNB", "AIR CANADA", "WESTJET", "AIRLINE", "EXPEDIA", "BOOKING.COM", "LUFTHANSA"}, Fuzzy: true},
		{Category: "Subscriptions", Keywords: []string{"NETFLIX", "SPOTIFY", "AMAZON PRIME", "DISNEY PLUS", "APPLE.COM/BILL", "YOUTUBE PREMIUM"}},
		{Category: "Utilities", Keywords: []string{"HYDRO", "ELECTRIC", "ENBRIDGE", "ROGERS", "BELL CANADA", "TELUS", "INTERNET", "WATER"}},
		{Category: "Shopping", Keywords: []string{"AMAZON", "AMZN", "WALMART", "TARGET", "BEST BUY", "IKEA", "BOOKSHOP", "PHARMACY", "SHOPPERS DRUG"}},
		{Category: "Fees", Keywords: []string{"ANNUAL FEE", "INTEREST CHARGE", "SERVICE CHARGE", "FOREIGN TRANSACTION FEE", "OVERLIMIT"}},
	}
}

// LoadRules reads an ordered rule list from a YAML file of the form:
//
//	rules:
//	  - category: Grocery
//	    keywords: [GROCERY, SUPERMARKET]
//	    fuzzy: true
func LoadRules(path string) ([]Rule, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading category rules: %w", err)
	}
	return ParseRules(data)
}

// ParseRules decodes and validates a YAML rule document.
func ParseRules(data []byte) ([]Rule, error) {
	var f ruleFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parsing category rules: %w", err)
	}
	if len(f.Rules) == 0 {
		return nil, errors.New("category rules: no rules defined")
	}
	for i, r := range f.Rules {
		if strings.TrimSpace(r.Category) == "" {
			return nil, fmt.Errorf("category rules: rule %d has no category", i+1)
		}
		if len(r.Keywords) == 0 {
			return nil, fmt.Errorf("category rules: rule %d (%s) has no keywords", i+1, r.Category)
		}
	}
	return f.Rules, nil
}
