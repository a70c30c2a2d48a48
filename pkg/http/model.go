package http

// Envelope is the body of every JSON response written by this package.
type Envelope struct {
	Status    int    `json:"status"`
	Message   string `json:"message"`
	RequestID string `json:"requestId,omitempty"`
	Data      any    `json:"data,omitempty"`
}

// ValidationError describes one rejected request field.
type ValidationError struct {
	Code    string         `json:"code"`
	Field   string         `json:"field,omitempty"`
	Message string         `json:"message"`
	Params  map[string]any `json:"params,omitempty"`
}

// Page is a list result with its total count.
type Page struct {
	Rows  any   `json:"rows"`
	Total int64 `json:"total"`
}
