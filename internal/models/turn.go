package models

type Role string

const (
	RoleUser  Role = "user"
	RoleModel Role = "model"
)

// ChatTurn is one message exchanged with the generative backend.
type ChatTurn struct {
	Role Role   `json:"role"`
	Text string `json:"text"`
}

// UserTurn wraps user input.
func UserTurn(text string) ChatTurn {
	return ChatTurn{Role: RoleUser, Text: text}
}

// ModelTurn wraps a backend reply.
func ModelTurn(text string) ChatTurn {
	return ChatTurn{Role: RoleModel, Text: text}
}
