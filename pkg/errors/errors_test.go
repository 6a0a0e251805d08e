package errors

import (
	"errors"
	"net/http"
	"testing"
)

func TestAppErrorMessageIncludesInternal(t *testing.T) {
	base := New("TEST", "something failed", http.StatusBadGateway)
	wrapped := base.WithInternal(errors.New("dial tcp: refused"))

	if wrapped.Error() != "something failed: dial tcp: refused" {
		t.Fatalf("unexpected message: %s", wrapped.Error())
	}
	if base.Internal != nil {
		t.Fatal("WithInternal must not mutate the original error")
	}
}

func TestFromErrorPassesThroughAppErrors(t *testing.T) {
	err := Wrap(errors.New("boom"), "wrapped")

	got := FromError(err)
	if got.Code != "INTERNAL_ERROR" {
		t.Fatalf("unexpected code: %s", got.Code)
	}
}

func TestFromErrorDefaultsToInternal(t *testing.T) {
	got := FromError(errors.New("plain"))
	if got.Code != ErrInternalServer.Code {
		t.Fatalf("unexpected code: %s", got.Code)
	}
	if !errors.Is(got, got.Internal) {
		t.Fatal("expected internal error to unwrap")
	}
}

func TestFromErrorNil(t *testing.T) {
	if FromError(nil) != nil {
		t.Fatal("expected nil for nil input")
	}
}
