package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

// =============================================================================
// Core Configuration
// =============================================================================

type Config struct {
	Fleet        FleetConfig        `json:"fleet"`
	Snapshot     SnapshotConfig     `json:"snapshot"`
	Gateway      GatewayConfig      `json:"gateway"`
	Retry        RetryConfig        `json:"retry"`
	Conversation ConversationConfig `json:"conversation"`
	Infra        InfraConfig        `json:"infra"`
}

// FleetConfig holds the connection settings for the device-management API.
// APIKey is normally left empty in the file and supplied via the MERAKI_KEY
// environment variable.
type FleetConfig struct {
	BaseURL          string `json:"baseUrl"`
	APIKey           string `json:"apiKey,omitempty"`
	DefaultNetworkID string `json:"defaultNetworkId"` // network used by camera tools
	TimeoutSeconds   int    `json:"timeoutSeconds"`   // per remote call
}

// SnapshotConfig controls the camera snapshot workflow.
type SnapshotConfig struct {
	ImageDir        string `json:"imageDir"`
	SettleDelayMS   int    `json:"settleDelayMs"`   // wait before the first fetch attempt
	PollIntervalMS  int    `json:"pollIntervalMs"`  // initial poll interval after the settle delay
	MaxIntervalMS   int    `json:"maxIntervalMs"`   // backoff cap
	DeadlineSeconds int    `json:"deadlineSeconds"` // overall budget per capture
}

type GatewayConfig struct {
	Port      int    `json:"port"`
	AuthToken string `json:"authToken,omitempty"` // when set, requires Authorization: Bearer <token>
}

// RetryConfig controls retry behaviour for remote fleet API reads.
type RetryConfig struct {
	MaxRetries     int `json:"maxRetries"`     // Maximum retry attempts (0 = no retries)
	InitialBackoff int `json:"initialBackoff"` // Initial backoff in milliseconds
	MaxBackoff     int `json:"maxBackoff"`     // Maximum backoff in milliseconds
	Multiplier     int `json:"multiplier"`     // Backoff multiplier (e.g. 2 for exponential doubling)
}

type ConversationConfig struct {
	HistoryPath string `json:"historyPath,omitempty"` // JSONL file; empty disables persistence
}

type InfraConfig struct {
	LogFormat string `json:"logFormat"` // "text" | "json"
	LogLevel  string `json:"logLevel"`  // "debug" | "info" | "warn" | "error"
}

// =============================================================================
// Conversation
// =============================================================================

// Role identifies who produced a conversation entry.
type Role string

const (
	RoleSystem Role = "system"
	RoleUser   Role = "user"
	RoleAgent  Role = "agent"
)

// ConversationEntry is one turn in a session's append-only record. The
// System entry at ordinal 0 is fixed at store creation and never removed.
type ConversationEntry struct {
	Ordinal   int       `json:"ordinal"`
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// =============================================================================
// Tool Result Envelope
// =============================================================================

// ToolError is a tool-level failure rendered for narration. It carries the
// tool name and the argument that caused it so the agent can suggest a fix.
type ToolError struct {
	Message     string `json:"message"`
	Tool        string `json:"tool,omitempty"`
	RawArgument string `json:"rawArgument,omitempty"`
}

func (e *ToolError) Error() string { return e.Message }

// ToolResult is the uniform envelope every tool handler returns. Exactly one
// of Data or Err is set: a failed call never mixes real data with an error.
type ToolResult struct {
	OK   bool       `json:"ok"`
	Data any        `json:"data,omitempty"`
	Err  *ToolError `json:"error,omitempty"`
}

// OKResult wraps a success payload.
func OKResult(data any) ToolResult {
	return ToolResult{OK: true, Data: data}
}

// ErrResult builds an error envelope for the given tool and raw argument.
func ErrResult(tool string, rawArg any, format string, args ...any) ToolResult {
	return ToolResult{
		OK: false,
		Err: &ToolError{
			Message:     fmt.Sprintf(format, args...),
			Tool:        tool,
			RawArgument: StringifyArg(rawArg),
		},
	}
}

// StringifyArg renders a raw call argument for the error record. JSON is
// preferred; values that cannot marshal fall back to fmt.
func StringifyArg(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case json.RawMessage:
		return string(t)
	}
	if b, err := json.Marshal(v); err == nil {
		return string(b)
	}
	return fmt.Sprintf("%v", v)
}
