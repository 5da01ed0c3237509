package server

// ToggleContactRequest is the manual override gate payload.
type ToggleContactRequest struct {
	PhoneNumber string `json:"phone_number"`
	IsActive    bool   `json:"is_active"`
	SessionID   string `json:"session_id,omitempty"`
}

// HealthResponse reports store and gateway reachability.
type HealthResponse struct {
	Status        string `json:"status"`
	Redis         string `json:"redis"`
	GatewayOnline bool   `json:"gateway_online"`
	GatewayError  string `json:"gateway_error,omitempty"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail contains error information
type ErrorDetail struct {
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
}
