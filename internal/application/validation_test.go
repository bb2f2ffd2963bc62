package application

import (
	"errors"
	"fmt"
	"testing"

	"github.com/example/community-events/internal/persistence"
)

func TestMapStoreError(t *testing.T) {
	t.Parallel()

	if mapStoreError(nil) != nil {
		t.Fatalf("expected nil to pass through")
	}
	if err := mapStoreError(fmt.Errorf("get event: %w", persistence.ErrNotFound)); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	unavailable := mapStoreError(fmt.Errorf("ping: %w", persistence.ErrUnavailable))
	if !errors.Is(unavailable, ErrStoreUnavailable) {
		t.Fatalf("expected ErrStoreUnavailable, got %v", unavailable)
	}
	if ErrorKind(unavailable) != "store_unavailable" {
		t.Fatalf("unexpected kind %q", ErrorKind(unavailable))
	}

	other := errors.New("disk full")
	if mapStoreError(other) != other {
		t.Fatalf("expected unrelated errors to pass through")
	}
}

func TestErrorKind(t *testing.T) {
	t.Parallel()

	cases := map[error]string{
		ErrDuplicateRSVP: "duplicate_rsvp",
		fmt.Errorf("%w: pending", ErrInvalidTransition): "invalid_transition",
		newValidationError("name", "name is required"):  "validation",
		errors.New("boom"): "unexpected",
	}
	for err, want := range cases {
		if got := ErrorKind(err); got != want {
			t.Fatalf("ErrorKind(%v) = %q, want %q", err, got, want)
		}
	}
	if ErrorKind(nil) != "" {
		t.Fatalf("expected empty kind for nil")
	}
}

func TestValidateStructUsesFieldTags(t *testing.T) {
	t.Parallel()

	vErr := validateStruct(rsvpRules{EventID: "e1", Name: "Bisi", Email: "bisi@", Phone: "0800"})
	if got := vErr.FieldErrors["email"]; got != "email is invalid" {
		t.Fatalf("unexpected email message %q (all: %#v)", got, vErr.FieldErrors)
	}

	if vErr := validateStruct(rsvpRules{EventID: "e1", Name: "Bisi", Email: "bisi@example.com"}); vErr.HasErrors() {
		t.Fatalf("expected valid rules, got %#v", vErr.FieldErrors)
	}
}
