package llm

import (
	"net/http"
	"sort"
	"strings"
	"sync"
)

// Provider adapts one wire format. The client owns transport, logging and error kinds; a
// provider only shapes URLs, headers and bodies.
type Provider interface {
	Name() string

	// BuildURL turns a configured base URL (possibly empty) into the completion endpoint.
	BuildURL(baseURL string) string

	SetHeaders(req *http.Request, apiKey string)

	// BuildRequestBody encodes one completion request. A nil temperature leaves the
	// endpoint default in place.
	BuildRequestBody(model string, messages []Message, temperature *float64, maxTokens int) ([]byte, error)

	ParseResponse(body []byte) (*Response, error)
}

var (
	providerMu sync.RWMutex
	providers  = make(map[string]Provider)
	// aliases map vendor names onto the wire format they speak, so "groq" in a config file
	// resolves to the OpenAI-compatible adapter.
	aliases = make(map[string]string)
)

// RegisterProvider makes p available under its name and any extra aliases.
func RegisterProvider(p Provider, alias ...string) {
	providerMu.Lock()
	defer providerMu.Unlock()
	providers[p.Name()] = p
	for _, a := range alias {
		aliases[strings.ToLower(a)] = p.Name()
	}
}

// GetProvider resolves a provider by name or alias, case-insensitively. It returns nil for
// unknown names.
func GetProvider(name string) Provider {
	providerMu.RLock()
	defer providerMu.RUnlock()
	key := strings.ToLower(strings.TrimSpace(name))
	if p, ok := providers[key]; ok {
		return p
	}
	return providers[aliases[key]]
}

// ListProviders returns registered provider names and aliases, sorted.
func ListProviders() []string {
	providerMu.RLock()
	defer providerMu.RUnlock()

	names := make([]string, 0, len(providers)+len(aliases))
	for name := range providers {
		names = append(names, name)
	}
	for a := range aliases {
		names = append(names, a)
	}
	sort.Strings(names)
	return names
}
