package types

// ErrorResponse - единое тело ошибки, которое формирует сам прокси.
// Ошибки вендора сюда не заворачиваются, они отдаются как есть.
type ErrorResponse struct {
	Error string `json:"error"`
}

// HealthResponse - ответ GET /health
type HealthResponse struct {
	Status    string  `json:"status"`
	Timestamp string  `json:"timestamp"`
	Uptime    float64 `json:"uptime"` // секунды
}

// ServiceInfo - ответ GET /
type ServiceInfo struct {
	Service   string            `json:"service"`
	Version   string            `json:"version"`
	Endpoints map[string]string `json:"endpoints"`
	Usage     string            `json:"usage"`
}

// Сообщения ошибок, которые видит клиент
const (
	MsgInternalError   = "Internal server error"
	MsgNotFound        = "Endpoint not found"
	MsgAPIKeyRequired  = "API key required"
	MsgInvalidAPIKey   = "Invalid API key"
	MsgBodyTooLarge    = "Request body too large"
	MsgInvalidJSONBody = "Invalid JSON body"
)
