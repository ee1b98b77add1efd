package agent

import "context"

// Executor is the opaque Agent Executor contract (spec §6): one call,
// `execute(prompt, opts) -> asyncStream<Message> + terminal status`.
// Concrete implementations may be subprocess-based or API-based; stages
// depend only on this interface.
type Executor interface {
	// Execute streams Messages on the returned channel as they are
	// produced, and delivers exactly one Result on the result channel
	// once the invocation terminates (success, failure, or ctx
	// cancellation). Both channels are closed after the Result is sent.
	Execute(ctx context.Context, prompt string, opts Options) (<-chan Message, <-chan Result)
}
