package response

// Response is the JSON error body shared by all endpoints.
type Response struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func Error(err, message string) Response {
	return Response{Error: err, Message: message}
}
