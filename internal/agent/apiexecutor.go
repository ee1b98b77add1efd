package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/google/uuid"
)

// APIExecutor is a concrete Executor backed directly by the Anthropic
// Messages API, grounded on the subprocess-vs-API adapter split the
// teacher's ClaudeRunner/ClaudeAPIAdapter pair establishes: callers only
// ever see the Executor interface, never this type.
type APIExecutor struct {
	client anthropic.Client
	model  anthropic.Model

	mu       sync.Mutex
	sessions map[string][]anthropic.MessageParam
}

// APIExecutorConfig configures an APIExecutor.
type APIExecutorConfig struct {
	APIKey string
	Model  anthropic.Model
}

// NewAPIExecutor creates an APIExecutor against the live Anthropic API.
func NewAPIExecutor(cfg APIExecutorConfig) *APIExecutor {
	model := cfg.Model
	if model == "" {
		model = anthropic.ModelClaudeSonnet4_5
	}
	return &APIExecutor{
		client:   anthropic.NewClient(option.WithAPIKey(cfg.APIKey)),
		model:    model,
		sessions: make(map[string][]anthropic.MessageParam),
	}
}

// Execute implements Executor.
func (e *APIExecutor) Execute(ctx context.Context, prompt string, opts Options) (<-chan Message, <-chan Result) {
	messages := make(chan Message, 64)
	results := make(chan Result, 1)

	go e.run(ctx, prompt, opts, messages, results)

	return messages, results
}

func (e *APIExecutor) run(ctx context.Context, prompt string, opts Options, messages chan<- Message, results chan<- Result) {
	defer close(messages)
	defer close(results)

	started := time.Now()

	history := e.historyFor(opts.ResumeHandle)
	history = append(history, anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)))
	messages <- Message{Kind: MessageUserInput, Timestamp: time.Now(), Text: prompt}

	maxTurns := opts.MaxTurns
	if maxTurns <= 0 {
		maxTurns = 1
	}

	params := anthropic.MessageNewParams{
		Model:     e.model,
		MaxTokens: 8192,
		Messages:  history,
	}

	stream := e.client.Messages.NewStreaming(ctx, params)

	acc := anthropic.Message{}
	var inputTokens, outputTokens int
	for stream.Next() {
		event := stream.Current()
		if err := acc.Accumulate(event); err != nil {
			results <- Result{Success: false, Error: fmt.Errorf("accumulate stream event: %w", err), Duration: time.Since(started)}
			return
		}

		switch delta := event.AsAny().(type) {
		case anthropic.ContentBlockDeltaEvent:
			if text := delta.Delta.Text; text != "" {
				messages <- Message{Kind: MessageAssistantText, Timestamp: time.Now(), Text: text}
			}
		}
	}
	if err := stream.Err(); err != nil {
		messages <- Message{Kind: MessageError, Timestamp: time.Now(), Text: err.Error()}
		results <- Result{Success: false, Error: err, Duration: time.Since(started)}
		return
	}

	for _, block := range acc.Content {
		switch variant := block.AsAny().(type) {
		case anthropic.ToolUseBlock:
			input := map[string]any{}
			if len(variant.Input) > 0 {
				if err := json.Unmarshal(variant.Input, &input); err != nil {
					messages <- Message{Kind: MessageError, Timestamp: time.Now(), Text: fmt.Sprintf("decode tool input for %s: %v", variant.Name, err)}
				}
			}
			messages <- Message{
				Kind:      MessageToolInvocation,
				Timestamp: time.Now(),
				ToolName:  variant.Name,
				ToolInput: input,
			}
		}
	}

	if acc.Usage.InputTokens > 0 || acc.Usage.OutputTokens > 0 {
		inputTokens = int(acc.Usage.InputTokens)
		outputTokens = int(acc.Usage.OutputTokens)
	}

	sessionHandle := opts.ResumeHandle
	if sessionHandle == "" {
		sessionHandle = uuid.NewString()
	}
	history = append(history, acc.ToParam())
	e.saveHistory(sessionHandle, history)

	messages <- Message{Kind: MessageSessionMarker, Timestamp: time.Now(), SessionHandle: sessionHandle}

	results <- Result{
		Success:       true,
		SessionHandle: sessionHandle,
		InputTokens:   inputTokens,
		OutputTokens:  outputTokens,
		Duration:      time.Since(started),
	}
}

func (e *APIExecutor) historyFor(sessionHandle string) []anthropic.MessageParam {
	if sessionHandle == "" {
		return nil
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	existing := e.sessions[sessionHandle]
	out := make([]anthropic.MessageParam, len(existing))
	copy(out, existing)
	return out
}

func (e *APIExecutor) saveHistory(sessionHandle string, history []anthropic.MessageParam) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.sessions[sessionHandle] = history
}

// Verify APIExecutor implements Executor at compile time.
var _ Executor = (*APIExecutor)(nil)
