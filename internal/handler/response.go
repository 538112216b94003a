package handler

type Response struct {
	Status  string      `json:"status"`
	Message string      `json:"message,omitempty"`
	Kind    string      `json:"kind,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

func NewSuccessResponse(data interface{}) *Response {
	return &Response{
		Status: "success",
		Data:   data,
	}
}

func NewErrorResponse(message string) *Response {
	return &Response{
		Status:  "error",
		Message: message,
	}
}

// NewRejectionResponse carries a machine-readable kind alongside the
// human-readable message, plus interpolation data for localized rendering.
func NewRejectionResponse(kind, message string, data interface{}) *Response {
	return &Response{
		Status:  "rejected",
		Kind:    kind,
		Message: message,
		Data:    data,
	}
}
