package llm

import (
	"fmt"
	"strings"
)

// ProviderOpenAI is the only provider wired today.
const ProviderOpenAI = "openai"

// Model is a parsed "provider:name" identifier.
type Model struct {
	Provider string
	Name     string
}

// ParseModel accepts "provider:name" or a bare model name, which defaults to
// the OpenAI provider.
func ParseModel(id string) (Model, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return Model{}, fmt.Errorf("model identifier is empty")
	}
	provider, name, found := strings.Cut(id, ":")
	if !found {
		return Model{Provider: ProviderOpenAI, Name: id}, nil
	}
	provider = strings.ToLower(strings.TrimSpace(provider))
	name = strings.TrimSpace(name)
	if name == "" {
		return Model{}, fmt.Errorf("model identifier %q has no model name", id)
	}
	if provider != ProviderOpenAI {
		return Model{}, fmt.Errorf("unsupported model provider %q", provider)
	}
	return Model{Provider: provider, Name: name}, nil
}

// String renders the identifier in "provider:name" form.
func (m Model) String() string {
	return m.Provider + ":" + m.Name
}
