package common

import (
	"errors"
	"fmt"
	"testing"
)

func TestErrIs(t *testing.T) {
	err := NewErr("Engine", NotFound, "42")

	if !Is(err, NotFound) {
		t.Fatalf("%v should be NotFound", err)
	}

	if Is(err, DuplicateID) {
		t.Fatalf("%v should not be DuplicateID", err)
	}

	wrapped := fmt.Errorf("searching: %w", err)
	if !Is(wrapped, NotFound) {
		t.Fatalf("wrapped error should still be NotFound")
	}

	if Is(errors.New("Not Found"), NotFound) {
		t.Fatalf("plain errors are never typed")
	}
}

func TestErrIsWalksChain(t *testing.T) {
	remote := NewErr("Engine", NotFound, "42")
	underlay := WrapErr("Underlay", RemoteError, "127.0.0.1:1", remote)
	client := WrapErr("Client", NotFound, "SearchByNumID", underlay)

	for _, kind := range []ErrType{NotFound, RemoteError} {
		if !Is(client, kind) {
			t.Fatalf("%v should be %v", client, kind)
		}
	}

	if Is(client, Timeout) {
		t.Fatalf("%v should not be Timeout", client)
	}

	// Plain errors in the middle end the walk.
	hidden := WrapErr("Client", Closed, "", errors.New("plain"))
	if Is(hidden, NotFound) {
		t.Fatalf("a plain cause carries no kind")
	}
}

func TestErrUnwrap(t *testing.T) {
	cause := errors.New("connection refused")
	err := WrapErr("Underlay", Unreachable, "127.0.0.1:1", cause)

	if !errors.Is(err, cause) {
		t.Fatalf("cause should be reachable through Unwrap")
	}

	expected := "Underlay, 127.0.0.1:1, Unreachable: connection refused"
	if err.Error() != expected {
		t.Fatalf("Error() should be %q, not %q", expected, err.Error())
	}
}

func TestErrTypeString(t *testing.T) {
	if Closed.String() != "Closed" {
		t.Fatalf("bad string %q", Closed.String())
	}
	if ErrType(100).String() != "Unknown" {
		t.Fatalf("out of range kinds should be Unknown")
	}
}
