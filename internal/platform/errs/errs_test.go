package errs

import (
	"errors"
	"fmt"
	"testing"
)

func TestCodeOfUnwrapsThroughWrapping(t *testing.T) {
	base := NotFound("object missing", errors.New("NoSuchKey"))
	wrapped := fmt.Errorf("download failed: %w", base)

	if !IsNotFound(wrapped) {
		t.Fatalf("IsNotFound(wrapped): want=true got=false")
	}
	if IsStorage(wrapped) {
		t.Fatalf("IsStorage(wrapped): want=false got=true")
	}
	if got := CodeOf(wrapped); got != CodeNotFound {
		t.Fatalf("CodeOf: want=%q got=%q", CodeNotFound, got)
	}
}

func TestCodeOfPlainError(t *testing.T) {
	if got := CodeOf(errors.New("plain")); got != "" {
		t.Fatalf("CodeOf(plain): want empty got=%q", got)
	}
	if IsValidation(nil) {
		t.Fatalf("IsValidation(nil): want=false got=true")
	}
}

func TestErrorMessageIncludesCause(t *testing.T) {
	err := Storage("upload failed", errors.New("connection reset"))
	want := "upload failed: connection reset"
	if err.Error() != want {
		t.Fatalf("Error(): want=%q got=%q", want, err.Error())
	}
	if errors.Unwrap(err) == nil {
		t.Fatalf("Unwrap: want cause got nil")
	}
}
