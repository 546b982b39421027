package langadapter

import (
	"fmt"

	"github.com/abadojack/whatlanggo"
	"github.com/jgivc/csclient/internal/entity"
)

type langAdapter struct {
	options whatlanggo.Options
}

func NewLangAdapter() *langAdapter {
	return &langAdapter{}
}

// NewLangAdapterWithWhitelist limits detection to the given languages.
func NewLangAdapterWithWhitelist(langs ...whatlanggo.Lang) *langAdapter {
	whitelist := make(map[whatlanggo.Lang]bool, len(langs))
	for _, lang := range langs {
		whitelist[lang] = true
	}

	return &langAdapter{options: whatlanggo.Options{Whitelist: whitelist}}
}

// Detect returns the single best guess with its confidence as probability.
func (a *langAdapter) Detect(text string) ([]entity.LanguageProbability, error) {
	info := whatlanggo.DetectWithOptions(text, a.options)

	code := info.Lang.Iso6391()
	if code == "" {
		return nil, fmt.Errorf("cannot detect language")
	}

	return []entity.LanguageProbability{{Language: code, Probability: info.Confidence}}, nil
}
