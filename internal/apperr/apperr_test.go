package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestCodeOfWrapped(t *testing.T) {
	inner := New(CodeNotFound, "file missing")
	wrapped := fmt.Errorf("handler: %w", inner)

	if CodeOf(wrapped) != CodeNotFound {
		t.Fatalf("expected NOT_FOUND, got %q", CodeOf(wrapped))
	}
	if !IsCode(wrapped, CodeNotFound) {
		t.Error("IsCode should match through wrapping")
	}
	if IsCode(wrapped, CodeStorageFault) {
		t.Error("IsCode matched wrong code")
	}
}

func TestCodeOfPlainError(t *testing.T) {
	if CodeOf(errors.New("plain")) != "" {
		t.Error("plain error should carry no code")
	}
}

func TestErrorMessage(t *testing.T) {
	e := Wrap(CodeStorageFault, "write blob", errors.New("disk full"))
	if e.Error() != "write blob: disk full" {
		t.Errorf("unexpected message: %s", e.Error())
	}
	if errors.Unwrap(e) == nil {
		t.Error("expected wrapped cause")
	}
}

func TestHTTPStatus(t *testing.T) {
	cases := map[Code]int{
		CodeMissingCredential: http.StatusUnauthorized,
		CodeInvalidCredential: http.StatusUnauthorized,
		CodeCredentialExpired: http.StatusUnauthorized,
		CodeNotFound:          http.StatusNotFound,
		CodePayloadTooLarge:   http.StatusRequestEntityTooLarge,
		CodeTooManyFiles:      http.StatusBadRequest,
		CodeStorageFault:      http.StatusInternalServerError,
	}
	for code, want := range cases {
		if got := HTTPStatus(code); got != want {
			t.Errorf("HTTPStatus(%s) = %d, want %d", code, got, want)
		}
	}
}
