package conversation

import (
	"fmt"
	"testing"
)

func TestErrorPredicates(t *testing.T) {
	notFound := ErrNotFound("topic", "t1")
	inconsistent := ErrInconsistent("message", "m1", "parent link points to a missing message")
	invalid := ErrInvalidOp("delete message", "cascade required to delete a root message")

	if !IsNotFound(notFound) || IsNotFound(invalid) || IsNotFound(inconsistent) {
		t.Fatal("IsNotFound should match only not-found errors")
	}
	if !IsDataInconsistent(inconsistent) || IsDataInconsistent(notFound) {
		t.Fatal("IsDataInconsistent should match only inconsistency errors")
	}
	if !IsInvalidOperation(invalid) || IsInvalidOperation(notFound) {
		t.Fatal("IsInvalidOperation should match only invalid-operation errors")
	}
}

func TestErrorPredicatesUnwrap(t *testing.T) {
	wrapped := fmt.Errorf("loading branch: %w", ErrNotFound("message", "m1"))
	if !IsNotFound(wrapped) {
		t.Fatal("predicates should see through wrapping")
	}
	if IsNotFound(fmt.Errorf("plain error")) {
		t.Fatal("plain errors should not match")
	}
}

func TestErrorMessages(t *testing.T) {
	if got := ErrNotFound("topic", "t1").Error(); got != "topic not found: t1" {
		t.Fatalf("unexpected message %q", got)
	}
	if got := ErrInvalidOp("delete message", "cascade required").Error(); got != `invalid operation "delete message": cascade required` {
		t.Fatalf("unexpected message %q", got)
	}
	if got := ErrInconsistent("topic", "", "no active node").Error(); got != "inconsistent topic: no active node" {
		t.Fatalf("unexpected message %q", got)
	}
}
