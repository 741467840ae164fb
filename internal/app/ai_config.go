package app

import (
	"strings"

	"github.com/charlesng35/longevity/internal/generator"
)

const (
	ProviderOpenAI = "openai"
	ProviderStatic = "static"
)

// UsesOpenAI reports whether recommendations come from the chat completion API.
func (c AIConfig) UsesOpenAI() bool {
	return strings.EqualFold(strings.TrimSpace(c.Provider), ProviderOpenAI) && strings.TrimSpace(c.APIKey) != ""
}

// GeneratorConfig converts the AI section into the generator package representation.
func (c AIConfig) GeneratorConfig() generator.Config {
	return generator.Config{
		APIKey:            strings.TrimSpace(c.APIKey),
		BaseURL:           strings.TrimSpace(c.BaseURL),
		Model:             strings.TrimSpace(c.Model),
		Temperature:       c.Temperature,
		Timeout:           c.Timeout,
		RequestsPerMinute: c.RequestsPerMinute,
		Burst:             c.Burst,
		MaxItems:          c.MaxItems,
	}
}
