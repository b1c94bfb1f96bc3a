package llm

import (
	"context"
	"strings"
	"sync"
)

// Scripted is an in-memory Client that replays canned responses. It backs
// tests and the offline serve loop.
type Scripted struct {
	mu        sync.Mutex
	responses []string
	err       error
	next      int
	calls     int
	prompts   []string
}

// NewScripted returns a client that cycles through the given responses.
func NewScripted(responses ...string) *Scripted {
	if len(responses) == 0 {
		responses = []string{"Acknowledged."}
	}
	return &Scripted{responses: responses}
}

// Fail makes every subsequent call return err instead of a response.
func (s *Scripted) Fail(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
}

// Stream replays the next canned response word by word.
func (s *Scripted) Stream(ctx context.Context, prompt string, onToken func(string)) (*Result, error) {
	s.mu.Lock()
	s.calls++
	s.prompts = append(s.prompts, prompt)
	err := s.err
	text := s.responses[s.next%len(s.responses)]
	s.next++
	s.mu.Unlock()

	if err != nil {
		return nil, err
	}

	words := strings.Fields(text)
	for i, w := range words {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}
		if onToken != nil {
			token := w
			if i < len(words)-1 {
				token += " "
			}
			onToken(token)
		}
	}

	return &Result{
		Text:         text,
		InputTokens:  len(strings.Fields(prompt)),
		OutputTokens: len(words),
	}, nil
}

// Calls returns how many times Stream was invoked.
func (s *Scripted) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

// Prompts returns the prompts seen so far.
func (s *Scripted) Prompts() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.prompts...)
}
