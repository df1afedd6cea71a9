package domain

import "context"

// ToolInvoker dispatches a named tool with a raw, possibly loosely-typed
// argument and returns the uniform result envelope. It never returns a Go
// error: failures (including unknown tool names) are rendered inside the
// envelope so one failing call cannot abort a conversation.
type ToolInvoker interface {
	Invoke(ctx context.Context, name string, rawArg any) ToolResult
}

// ConversationRecorder is the append-only record of a single session.
// Implementations seed the fixed System entry at ordinal 0 on construction.
type ConversationRecorder interface {
	// Append adds one entry and returns its ordinal.
	Append(role Role, content string) int

	// History returns a stable snapshot of all entries in order, starting
	// with the System entry at ordinal 0.
	History() []ConversationEntry
}
