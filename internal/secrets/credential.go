package secrets

import (
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync/atomic"
	"unicode/utf8"
)

// Credential is a backend handle bound to one identity. It refers to zero or
// one stored secret and is owned by the Entry that built it.
type Credential interface {
	// GetSecret returns the stored bytes
	GetSecret() ([]byte, error)

	// SetSecret creates or overwrites the stored bytes
	SetSecret(secret []byte) error

	// Delete removes the stored secret from the native store
	Delete() error

	// Kind reports the backend the handle resolved to (diagnostics only)
	Kind() BackendKind
}

// Builder constructs credentials for one backend
type Builder interface {
	Build(target *string, service, user string) (Credential, error)
	Kind() BackendKind
}

// Finder is implemented by builders whose native store supports bulk search
type Finder interface {
	Find(service string, target *string) ([]Found, error)
}

// PasswordCodec is implemented by credentials whose platform stores text in
// an encoding other than UTF-8. Wrappers expose the wrapped credential with
// Unwrap so the codec is still found.
type PasswordCodec interface {
	EncodePassword(password string) []byte
	DecodePassword(secret []byte) (string, error)
}

// BackendKind names a concrete backend
type BackendKind string

const (
	BackendKeychain      BackendKind = "keychain"
	BackendWinCred       BackendKind = "wincred"
	BackendSecretService BackendKind = "secret-service"
	BackendKeyutils      BackendKind = "keyutils"
	BackendPortable      BackendKind = "portable"
	BackendMock          BackendKind = "mock"
	BackendAuto          BackendKind = "auto"
)

// ParseBackendKind accepts the names used in configuration and flags
func ParseBackendKind(s string) (BackendKind, error) {
	switch k := BackendKind(strings.ToLower(strings.TrimSpace(s))); k {
	case "", BackendAuto:
		return BackendAuto, nil
	case BackendKeychain, BackendWinCred, BackendSecretService, BackendKeyutils, BackendPortable, BackendMock:
		return k, nil
	case "secretservice", "dbus":
		return BackendSecretService, nil
	case "keyctl", "kernel":
		return BackendKeyutils, nil
	default:
		return "", fmt.Errorf("unknown backend %q", s)
	}
}

// Identity is the logical address of a credential
type Identity struct {
	Service string
	User    string
	Target  *string
}

// Equal compares identities structurally, including the target
func (id Identity) Equal(other Identity) bool {
	if id.Service != other.Service || id.User != other.User {
		return false
	}
	if id.Target == nil || other.Target == nil {
		return id.Target == nil && other.Target == nil
	}
	return *id.Target == *other.Target
}

func (id Identity) String() string {
	if id.Target != nil {
		return fmt.Sprintf("%s@%s [%s]", id.User, id.Service, *id.Target)
	}
	return fmt.Sprintf("%s@%s", id.User, id.Service)
}

// Found is one (account, secret) pair produced by enumeration
type Found struct {
	Account string

	// Secret is the stored bytes, except on Credential Manager where the
	// blob is decoded from UTF-16 and Secret holds UTF-8 text. Blobs that
	// are not UTF-16 (odd length) are left out of the results there. Raw
	// bytes written with SetSecret come back unchanged only from GetSecret.
	Secret []byte
}

// Password returns the secret as text if it is valid UTF-8
func (f Found) Password() (string, bool) {
	if !utf8.Valid(f.Secret) {
		return "", false
	}
	return string(f.Secret), true
}

var logger atomic.Pointer[slog.Logger]

func init() {
	logger.Store(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

// SetLogger installs the logger used for backend selection and enumeration
// diagnostics. Secret values are never logged.
func SetLogger(l *slog.Logger) {
	if l == nil {
		l = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	logger.Store(l)
}

func log() *slog.Logger {
	return logger.Load()
}

// stringPtr is a helper for optional targets
func stringPtr(s string) *string {
	return &s
}

// targetOr returns the target or a default
func targetOr(target *string, def string) string {
	if target == nil {
		return def
	}
	return *target
}
