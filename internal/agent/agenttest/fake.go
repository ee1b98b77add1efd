// Package agenttest provides a scriptable fake Executor for tests of
// packages that depend on the opaque Agent Executor contract.
package agenttest

import (
	"context"

	"github.com/kugutsu/pipeline/internal/agent"
)

// Fake is an agent.Executor whose responses are scripted by the test.
type Fake struct {
	// Responses is consumed in order, one per Execute call. If exhausted,
	// the last entry is reused.
	Responses []Response

	// Invocations records every prompt this Fake was asked to execute.
	Invocations []string

	calls int
}

// Response scripts one Execute call's outcome.
type Response struct {
	Messages []agent.Message
	Result   agent.Result
}

// Execute implements agent.Executor.
func (f *Fake) Execute(ctx context.Context, prompt string, opts agent.Options) (<-chan agent.Message, <-chan agent.Result) {
	f.Invocations = append(f.Invocations, prompt)

	idx := f.calls
	if idx >= len(f.Responses) {
		idx = len(f.Responses) - 1
	}
	f.calls++

	messages := make(chan agent.Message, 16)
	results := make(chan agent.Result, 1)

	if idx < 0 {
		close(messages)
		results <- agent.Result{Success: true}
		close(results)
		return messages, results
	}

	resp := f.Responses[idx]
	go func() {
		defer close(messages)
		defer close(results)
		for _, m := range resp.Messages {
			select {
			case <-ctx.Done():
				results <- agent.Result{Success: false, Error: ctx.Err()}
				return
			case messages <- m:
			}
		}
		results <- resp.Result
	}()

	return messages, results
}

// CallCount returns how many times Execute was invoked.
func (f *Fake) CallCount() int {
	return f.calls
}

var _ agent.Executor = (*Fake)(nil)
