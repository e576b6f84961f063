package transport

import (
	"errors"
	"testing"
)

func TestTransportErrorUnwraps(t *testing.T) {
	inner := errors.New("connection refused")
	err := error(&TransportError{Transport: "tcp", Op: "dial", Err: inner})

	if got := err.Error(); got != "tcp dial: connection refused" {
		t.Fatalf("unexpected message: %q", got)
	}
	if !errors.Is(err, inner) {
		t.Fatal("expected the wrapped error to surface through errors.Is")
	}
	var te *TransportError
	if !errors.As(err, &te) || te.Op != "dial" {
		t.Fatalf("expected TransportError with op dial, got %+v", te)
	}
}
