package entity

import "fmt"

var passwordRuleTexts = map[string]string{
	"whitespacesDeclined":           "No whitespaces allowed",
	"specialCharactersRequired":     "Special characters are required",
	"upperCaseRequired":             "Uppercase characters are required",
	"lowerCaseRequired":             "Lowercase characters are required",
	"lettersRequired":               "Letters are required",
	"digitsRequired":                "Digits are required",
	"alphabeticalSequenceDeclined":  "No alphabetical sequences allowed",
	"numericSequenceDeclined":       "No numeric sequences allowed",
	"keyboardSequenceDeclined":      "No keyboard sequences allowed",
	"blacklistedCharactersDeclined": "No blacklisted characters allowed",
	"repeatedCharactersDeclined":    "No repeated characters allowed",
	"dictionaryWordsDeclined":       "No dictionary words allowed",
}

// Describe returns a readable text for known rules and the raw name otherwise.
func (r PasswordRule) Describe() string {
	switch r.Name {
	case "minimumLengthRequired":
		return fmt.Sprintf("Minimal length: %v", r.Details["length"])
	case "maximumLengthRequired":
		return fmt.Sprintf("Maximal length: %v", r.Details["length"])
	}

	if text, exists := passwordRuleTexts[r.Name]; exists {
		return text
	}

	return r.Name
}

func DescribePasswordRules(rules []PasswordRule) []string {
	texts := make([]string, 0, len(rules))
	for _, rule := range rules {
		texts = append(texts, rule.Describe())
	}

	return texts
}
