package secrets

import (
	"errors"
	"testing"

	"github.com/zalando/go-keyring"
)

func TestPortableBackend(t *testing.T) {
	keyring.MockInit()

	entry, err := NewEntry("svc", "lee", WithBuilder(NewPortableBuilder()))
	if err != nil {
		t.Fatalf("NewEntry failed: %v", err)
	}
	if entry.Kind() != BackendPortable {
		t.Errorf("Expected portable backend, got %s", entry.Kind())
	}

	if _, err := entry.GetPassword(); !errors.Is(err, ErrNoEntry) {
		t.Errorf("Expected ErrNoEntry, got %v", err)
	}
	if err := entry.SetPassword("pw"); err != nil {
		t.Fatalf("SetPassword failed: %v", err)
	}
	if got, err := entry.GetPassword(); err != nil || got != "pw" {
		t.Errorf("Expected 'pw', got %q (%v)", got, err)
	}
	if err := entry.DeleteCredential(); err != nil {
		t.Fatalf("DeleteCredential failed: %v", err)
	}
	if err := entry.DeleteCredential(); !errors.Is(err, ErrNoEntry) {
		t.Errorf("Expected ErrNoEntry on second delete, got %v", err)
	}
}

func TestPortableBackend_PlatformError(t *testing.T) {
	keyring.MockInitWithError(errors.New("keyring locked"))
	defer keyring.MockInit()

	entry, err := NewEntry("svc", "max", WithBuilder(NewPortableBuilder()))
	if err != nil {
		t.Fatalf("NewEntry failed: %v", err)
	}
	if err := entry.SetPassword("pw"); !errors.Is(err, ErrPlatformFailure) {
		t.Errorf("Expected ErrPlatformFailure, got %v", err)
	}
}

func TestPortableBackend_RejectsTarget(t *testing.T) {
	_, err := NewEntryWithTarget("t", "svc", "u", WithBuilder(NewPortableBuilder()))
	if !errors.Is(err, ErrInvalid) {
		t.Errorf("Expected ErrInvalid, got %v", err)
	}
}
