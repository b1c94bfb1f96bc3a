package tools

import (
	"context"
	"errors"
	"testing"
)

func TestExecute(t *testing.T) {
	r := NewRegistry()
	r.Register("echo", func(_ context.Context, args map[string]string) (string, error) {
		return args["text"], nil
	})

	out, err := r.Execute(context.Background(), "echo", map[string]string{"text": "hello"})
	if err != nil {
		t.Fatal(err)
	}
	if out != "hello" {
		t.Errorf("expected hello, got %q", out)
	}
}

func TestUnknownTool(t *testing.T) {
	r := NewRegistry()

	_, err := r.Execute(context.Background(), "missing", nil)
	if !errors.Is(err, ErrUnknownTool) {
		t.Errorf("expected ErrUnknownTool, got %v", err)
	}
}

func TestNames(t *testing.T) {
	r := NewRegistry()
	r.Register("a", func(context.Context, map[string]string) (string, error) { return "", nil })
	r.Register("b", func(context.Context, map[string]string) (string, error) { return "", nil })

	if len(r.Names()) != 2 {
		t.Errorf("expected 2 names, got %v", r.Names())
	}
}
