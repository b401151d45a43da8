package model

// Response is the JSON envelope for every API reply.
type Response struct {
	Success bool        `json:"success"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
	Count   *int        `json:"count,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// NewSuccessResponse wraps data in a successful envelope.
func NewSuccessResponse(message string, data interface{}) Response {
	return Response{Success: true, Message: message, Data: data}
}

// NewListResponse wraps a list together with its length.
func NewListResponse(data interface{}, count int) Response {
	return Response{Success: true, Data: data, Count: &count}
}

// NewErrorResponse builds a failure envelope. details is optional.
func NewErrorResponse(message, details string) Response {
	return Response{Success: false, Message: message, Error: details}
}
