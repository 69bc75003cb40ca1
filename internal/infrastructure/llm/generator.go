// Package llm talks to the hosted language model: the AI student that
// listens to explanations, the explanation scorer, topic extraction and
// study notes.
package llm

import "context"

// Role identifies the author of a conversation turn.
type Role string

const (
	RoleUser  Role = "user"
	RoleModel Role = "model"
)

// Turn is one message of a conversation.
type Turn struct {
	Role Role
	Text string
}

// Request is a single generation call.
type Request struct {
	// System is the system instruction. Optional.
	System string

	// History precedes Prompt. It must start with a user turn.
	History []Turn

	Prompt string

	Temperature     float32
	MaxOutputTokens int32

	// JSON asks the model for an application/json response.
	JSON bool
}

// Generator produces text for a request.
type Generator interface {
	Generate(ctx context.Context, req Request) (string, error)
}

// GeneratorFunc adapts a function to Generator.
type GeneratorFunc func(ctx context.Context, req Request) (string, error)

// Generate calls f.
func (f GeneratorFunc) Generate(ctx context.Context, req Request) (string, error) {
	return f(ctx, req)
}
