// Package agent defines the Agent Executor contract (spec §6): the
// opaque, LLM-backed runner every pipeline stage invokes to turn a
// prompt and a working directory into a transcript and a result.
package agent

import "time"

// MessageKind is one member of the Agent Executor's message union.
type MessageKind string

const (
	MessageUserInput      MessageKind = "user-input"
	MessageAssistantText  MessageKind = "assistant-text"
	MessageToolInvocation MessageKind = "tool-invocation"
	MessageToolResult     MessageKind = "tool-result"
	MessageSystemNotice   MessageKind = "system-notice"
	MessageError          MessageKind = "error"
	MessageSessionMarker  MessageKind = "session-marker"
)

// Message is one item streamed from an Executor invocation.
type Message struct {
	Kind      MessageKind
	Timestamp time.Time

	// Text carries assistant-text, system-notice, and error content.
	Text string

	// ToolName and ToolInput are present on tool-invocation.
	ToolName  string
	ToolInput map[string]any

	// ToolResultOK and ToolResultPayload are present on tool-result.
	ToolResultOK      bool
	ToolResultPayload string

	// SessionHandle is present on session-marker: the opaque handle a
	// later Execute call can pass as ResumeHandle to continue this
	// conversation.
	SessionHandle string
}

// Options configures one Executor.Execute invocation.
type Options struct {
	WorkingDirectory string
	MaxTurns         int
	ToolAllowList    []string
	// ResumeHandle, if non-empty, resumes a prior session. Empty starts
	// a fresh session.
	ResumeHandle string
}

// Result is the terminal status of one Execute invocation.
type Result struct {
	Success       bool
	Error         error
	SessionHandle string
	InputTokens   int
	OutputTokens  int
	Duration      time.Duration
}
