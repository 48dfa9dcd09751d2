// Package model wraps the generative model whose output some categories are
// scored on. The engine treats a call as synchronous and side-effect free.
package model

import (
	"context"
	"errors"
)

// PlaceholderOutput is returned when no model endpoint is configured.
const PlaceholderOutput = "[MODEL OUTPUT PLACEHOLDER]"

// ErrUnavailable marks failures of the model dependency itself.
var ErrUnavailable = errors.New("model unavailable")

// Model produces an output for one prompt.
type Model interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Func adapts a plain function to Model.
type Func func(ctx context.Context, prompt string) (string, error)

func (f Func) Generate(ctx context.Context, prompt string) (string, error) {
	return f(ctx, prompt)
}

// Placeholder returns a model that answers every prompt with PlaceholderOutput.
func Placeholder() Model {
	return Func(func(ctx context.Context, _ string) (string, error) {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		return PlaceholderOutput, nil
	})
}
