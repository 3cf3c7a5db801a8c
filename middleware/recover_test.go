package middleware

import (
	"errors"
	"testing"

	"github.com/modfin/mimex/envelope"
)

func TestRecover(t *testing.T) {
	t.Run("No panic", func(t *testing.T) {
		handler := func(e *envelope.Envelope) error {
			return nil
		}

		recoveredHandler := Recover(handler)
		env := &envelope.Envelope{}

		if err := recoveredHandler(env); err != nil {
			t.Errorf("Expected no error, got %v", err)
		}
	})

	t.Run("Error passes through", func(t *testing.T) {
		want := errors.New("boom")
		handler := func(e *envelope.Envelope) error {
			return want
		}

		err := Recover(handler)(&envelope.Envelope{})
		if !errors.Is(err, want) {
			t.Errorf("Expected %v, got %v", want, err)
		}
	})

	t.Run("With panic", func(t *testing.T) {
		handler := func(e *envelope.Envelope) error {
			panic("test panic")
		}

		recoveredHandler := Recover(handler)
		env := &envelope.Envelope{}

		err := recoveredHandler(env)
		if err == nil {
			t.Fatal("Expected error value, got nil")
		}
		if err.Error() != "recovered: test panic" {
			t.Errorf("Expected error value 'recovered: test panic', got '%v'", err)
		}
	})
}
