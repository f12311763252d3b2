package assistant

import "errors"

var (
	// ErrEmptyInput rejects a chat message that is blank after trimming.
	ErrEmptyInput = errors.New("message is empty")
	// ErrMissingInput rejects a document question without filename or question.
	ErrMissingInput = errors.New("missing filename or question")
	// ErrChatFailure wraps transport and decode failures of a chat turn.
	ErrChatFailure = errors.New("chat failed")
	// ErrAskFailure wraps transport and decode failures of a document question.
	ErrAskFailure = errors.New("document question failed")
)

// Replies returned as successful answers when the backend has nothing usable.
const (
	NoProperResponse = "😶 AI didn't return a proper response."
	NoAnswer         = "🤖 AI returned no answer."
	NoReadableText   = "❌ No readable text found in the uploaded file."
)
