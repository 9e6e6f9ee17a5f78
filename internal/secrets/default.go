package secrets

import (
	"fmt"
	"sync"
)

// BackendConfig tunes backend construction
type BackendConfig struct {
	SecretService SecretServiceConfig
	Keyutils      KeyutilsConfig
}

// SecretServiceConfig tunes the Secret Service backend
type SecretServiceConfig struct {
	// Encryption is "dh" (default) or "plain"
	Encryption string
}

// KeyutilsConfig tunes the kernel keyring backend
type KeyutilsConfig struct {
	// SkipPersistent stops new keys being linked into the persistent keyring
	SkipPersistent bool
}

var defaults struct {
	mu        sync.Mutex
	installed Builder
	used      bool

	once    sync.Once
	builder Builder
	err     error
}

// SetDefaultBuilder installs the process-wide builder. It must be called
// before the first entry or enumeration uses the default; afterwards it
// returns ErrBuilderInstalled.
func SetDefaultBuilder(b Builder) error {
	defaults.mu.Lock()
	defer defaults.mu.Unlock()
	if defaults.used || defaults.installed != nil {
		return ErrBuilderInstalled
	}
	defaults.installed = b
	return nil
}

// DefaultBuilder resolves the process-wide builder once: the installed one
// if any, otherwise the platform's native selection.
func DefaultBuilder() (Builder, error) {
	defaults.once.Do(func() {
		defaults.mu.Lock()
		defaults.used = true
		installed := defaults.installed
		defaults.mu.Unlock()

		if installed != nil {
			defaults.builder = installed
			return
		}
		defaults.builder, defaults.err = platformBuilder(BackendConfig{})
		if defaults.err == nil {
			log().Debug("default backend selected", "backend", defaults.builder.Kind())
		}
	})
	return defaults.builder, defaults.err
}

// BuilderFor constructs the builder for kind. BackendAuto selects the
// platform's native backend.
func BuilderFor(kind BackendKind, cfg BackendConfig) (Builder, error) {
	switch kind {
	case BackendAuto, "":
		return platformBuilder(cfg)
	case BackendKeychain:
		return newKeychainBuilder()
	case BackendWinCred:
		return newWinCredBuilder()
	case BackendSecretService:
		return NewSecretServiceBuilder(cfg.SecretService), nil
	case BackendKeyutils:
		return newKeyutilsBuilder(cfg.Keyutils)
	case BackendPortable:
		return NewPortableBuilder(), nil
	case BackendMock:
		return NewMockBuilder(), nil
	default:
		return nil, &PlatformError{Op: "select", Msg: fmt.Sprintf("unknown backend %q", kind), Err: ErrInvalid}
	}
}

func unavailable(kind BackendKind) error {
	return &PlatformError{
		Op:  "select",
		Msg: fmt.Sprintf("%s backend is not available on this platform", kind),
		Err: ErrBackendNotAvail,
	}
}
