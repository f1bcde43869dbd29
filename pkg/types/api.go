package types

// InvokeRequest is the body of POST /invoke.
type InvokeRequest struct {
	// Optional model code. If empty, the server uses the first registered model.
	// example: gpt-3.5-turbo
	Model string `json:"model,omitempty" example:"gpt-3.5-turbo"`
	// Conversation so far, oldest first.
	Messages []Message `json:"messages"`
}

// NewUserRequest builds a request carrying a single user message.
func NewUserRequest(model, content string) InvokeRequest {
	return InvokeRequest{
		Model:    model,
		Messages: []Message{{Role: RoleUser, Content: content}},
	}
}

// ModelsResponse wraps the list of models returned by GET /models.
type ModelsResponse struct {
	// List of available models.
	Models []Model `json:"models"`
}

// ErrorResponse is a consistent JSON error payload.
type ErrorResponse struct {
	// Error message.
	// example: invalid JSON body
	Error string `json:"error" example:"invalid JSON body"`
	// HTTP status code.
	// example: 400
	Code int `json:"code" example:"400"`
}
