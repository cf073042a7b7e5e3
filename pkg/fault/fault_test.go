package fault

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestKindOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{"direct", New(NotFound, "student missing"), NotFound},
		{"wrapped cause", Wrap(Transport, errors.New("conn reset"), "list students"), Transport},
		{"rewrapped with fmt", fmt.Errorf("outer: %w", New(Conflict, "name taken")), Conflict},
		{"plain error", errors.New("boom"), Unknown},
		{"nil", nil, Unknown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := KindOf(tt.err); got != tt.want {
				t.Errorf("KindOf = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestWrapNil(t *testing.T) {
	if err := Wrap(Transport, nil, "ignored"); err != nil {
		t.Errorf("Wrap(nil) = %v, want nil", err)
	}
}

func TestUserMessageHidesTransportDetail(t *testing.T) {
	err := Wrap(Transport, errors.New("dial tcp 10.0.0.3:5432: i/o timeout"), "create document")
	msg := UserMessage(err)
	if msg == "" {
		t.Fatal("empty user message")
	}
	if strings.Contains(msg, "10.0.0.3") {
		t.Errorf("transport message leaked backend detail: %q", msg)
	}
}

func TestUserMessageVerbatimForValidation(t *testing.T) {
	err := New(Validation, "title is required")
	if got := UserMessage(err); got != "title is required" {
		t.Errorf("UserMessage = %q, want verbatim", got)
	}
}
