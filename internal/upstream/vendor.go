package upstream

import "net/http"

// Фиксированные эндпоинты вендоров
const (
	ClaudeMessagesURL   = "https://api.anthropic.com/v1/messages"
	OpenAIChatURL       = "https://api.openai.com/v1/chat/completions"
	AnthropicVersion    = "2023-06-01"
	headerAnthropicVer  = "anthropic-version"
	headerAnthropicKey  = "x-api-key"
	headerAuthorization = "Authorization"
	contentTypeJSON     = "application/json"
	headerContentType   = "Content-Type"
)

// Vendor описывает один upstream: куда отправлять запрос
// и как приложить к нему серверный ключ.
type Vendor struct {
	// Name используется в логах и метриках
	Name string
	// DisplayName попадает в тело ошибки "<DisplayName> API key not configured"
	DisplayName string
	Endpoint    string
	// Authorize кладет ключ в заголовки в формате, который ожидает вендор
	Authorize func(h http.Header, apiKey string)
}

// Claude - Anthropic Messages API: ключ в x-api-key плюс версия протокола
func Claude() Vendor {
	return Vendor{
		Name:        "claude",
		DisplayName: "Claude",
		Endpoint:    ClaudeMessagesURL,
		Authorize: func(h http.Header, apiKey string) {
			h.Set(headerAnthropicKey, apiKey)
			h.Set(headerAnthropicVer, AnthropicVersion)
		},
	}
}

// OpenAI - Chat Completions API с Bearer токеном
func OpenAI() Vendor {
	return Vendor{
		Name:        "openai",
		DisplayName: "OpenAI",
		Endpoint:    OpenAIChatURL,
		Authorize: func(h http.Header, apiKey string) {
			h.Set(headerAuthorization, "Bearer "+apiKey)
		},
	}
}
