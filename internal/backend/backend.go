package backend

import "context"

// GenerationParams are applied to a single Send call
type GenerationParams struct {
	Temperature       float64
	MaxOutputTokens   int
	SystemInstruction string // Persona text, empty sends none
}

// Reply is the generated text for one turn
type Reply struct {
	Text         string
	PromptTokens int
	ReplyTokens  int
}

// Chat is a conversation handle held by the provider. History lives inside
// the handle; a new handle starts empty.
type Chat interface {
	// ID uniquely identifies this handle
	ID() string

	// Model returns the model the handle is bound to
	Model() string

	// Send submits one user turn and returns the model's reply
	Send(ctx context.Context, text string, params GenerationParams) (Reply, error)
}

// Opener creates chat handles. The key is passed per call so a changed
// credential only affects handles opened afterwards.
type Opener interface {
	Open(ctx context.Context, apiKey, model string) (Chat, error)
}
