package types

// Role identifies the author of a chat message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleSystem, RoleUser, RoleAssistant, RoleTool:
		return true
	}
	return false
}

// Message is one chat turn.
type Message struct {
	// example: user
	Role Role `json:"role" example:"user"`
	// example: Write a haiku about the ocean.
	Content string `json:"content" example:"Write a haiku about the ocean."`
}

// Model describes a model a provider can serve.
type Model struct {
	// Stable code used to select the model, "<provider>::<name>".
	// example: openai::gpt-3.5-turbo
	ID string `json:"id" example:"openai::gpt-3.5-turbo"`
	// Name as known by the provider.
	// example: gpt-3.5-turbo
	Name string `json:"name" example:"gpt-3.5-turbo"`
	// Provider that serves the model.
	// example: openai
	Provider string `json:"provider" example:"openai"`
}
