// Package llm defines the seam between the assistant core and its backend
// LLM clients. The core never performs network I/O itself; it only decides
// which client to invoke.
package llm

import "context"

// Result is the outcome of one streamed completion, including the token
// counts needed for cost accounting.
type Result struct {
	Text                string
	InputTokens         int
	OutputTokens        int
	CacheReadTokens     int
	CacheCreationTokens int
}

// Client produces a streamed completion for a prompt. Implementations call
// onToken for each token as it arrives; onToken may be nil.
type Client interface {
	Stream(ctx context.Context, prompt string, onToken func(token string)) (*Result, error)
}
