package taskqueue

import (
	"context"
	"encoding/json"
	"testing"
)

func TestRegistry_GetUnregisteredType(t *testing.T) {
	r := NewRegistry()
	if _, err := r.Get("nope"); err == nil {
		t.Fatal("expected an error for an unregistered task type")
	}
}

func TestRegistry_RegisterAndGet(t *testing.T) {
	r := NewRegistry()
	called := false
	r.Register(TypeBackfillUser, HandlerFunc(func(ctx context.Context, task *Task) (json.RawMessage, error) {
		called = true
		return nil, nil
	}))

	h, err := r.Get(TypeBackfillUser)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if _, err := h.Handle(context.Background(), &Task{}); err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if !called {
		t.Error("expected registered handler to run")
	}
}
