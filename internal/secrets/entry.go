package secrets

import (
	"errors"
	"strings"
	"unicode/utf8"
)

// Entry binds one identity to one backend credential for its whole life.
// Dropping an Entry does not touch the stored secret.
type Entry struct {
	id   Identity
	cred Credential
}

// Option configures entry construction
type Option func(*entryOptions)

type entryOptions struct {
	builder Builder
	err     error
}

// WithBuilder builds the entry's credential with b instead of the default
func WithBuilder(b Builder) Option {
	return func(o *entryOptions) {
		o.builder = b
	}
}

// WithBackend forces a specific backend for this entry only
func WithBackend(kind BackendKind) Option {
	return func(o *entryOptions) {
		b, err := BuilderFor(kind, BackendConfig{})
		if err != nil {
			o.err = err
			return
		}
		o.builder = b
	}
}

// NewEntry creates an entry for service and user on the default target
func NewEntry(service, user string, opts ...Option) (*Entry, error) {
	return newEntry(nil, service, user, opts)
}

// NewEntryWithTarget creates an entry whose native location is given
// explicitly by target
func NewEntryWithTarget(target, service, user string, opts ...Option) (*Entry, error) {
	return newEntry(stringPtr(target), service, user, opts)
}

func newEntry(target *string, service, user string, opts []Option) (*Entry, error) {
	var o entryOptions
	for _, opt := range opts {
		opt(&o)
	}
	if o.err != nil {
		return nil, NewSecretError("new", service, user, o.err)
	}

	if err := validateIdentity("new", service, user); err != nil {
		return nil, NewSecretError("new", service, user, err)
	}

	b := o.builder
	if b == nil {
		var err error
		if b, err = DefaultBuilder(); err != nil {
			return nil, NewSecretError("new", service, user, err)
		}
	}

	cred, err := b.Build(target, service, user)
	if err != nil {
		return nil, NewSecretError("new", service, user, err)
	}

	log().Debug("entry created", "backend", cred.Kind(), "service", service, "user", user)
	return &Entry{
		id:   Identity{Service: service, User: user, Target: target},
		cred: cred,
	}, nil
}

// Identity returns a copy of the identity the entry was built for
func (e *Entry) Identity() Identity {
	id := e.id
	if id.Target != nil {
		id.Target = stringPtr(*id.Target)
	}
	return id
}

// Kind returns the backend the entry resolved to
func (e *Entry) Kind() BackendKind {
	return e.cred.Kind()
}

// Credential exposes the backend handle for diagnostics
func (e *Entry) Credential() Credential {
	return e.cred
}

// SetPassword stores password as this entry's secret.
//
// Fails with ErrAmbiguous if more than one native item matches the entry.
// That only happens on some platforms, and only when another application
// wrote a colliding item.
func (e *Entry) SetPassword(password string) error {
	if !utf8.ValidString(password) {
		return e.wrap("set-password", invalidErr("set-password", "password", "is not valid UTF-8"))
	}
	var secret []byte
	if codec := codecOf(e.cred); codec != nil {
		secret = codec.EncodePassword(password)
	} else {
		secret = []byte(password)
	}
	return e.wrap("set-password", e.cred.SetSecret(secret))
}

// GetPassword retrieves the stored secret as text. Returns ErrNoEntry if
// there is none and a BadEncodingError if the stored bytes are not text.
func (e *Entry) GetPassword() (string, error) {
	secret, err := e.cred.GetSecret()
	if err != nil {
		return "", e.wrap("get-password", err)
	}
	if codec := codecOf(e.cred); codec != nil {
		password, err := codec.DecodePassword(secret)
		if err != nil {
			return "", e.wrap("get-password", &BadEncodingError{Secret: secret, Err: err})
		}
		return password, nil
	}
	if !utf8.Valid(secret) {
		return "", e.wrap("get-password", &BadEncodingError{Secret: secret})
	}
	return string(secret), nil
}

// SetSecret stores arbitrary bytes
func (e *Entry) SetSecret(secret []byte) error {
	return e.wrap("set-secret", e.cred.SetSecret(secret))
}

// GetSecret returns the stored bytes unchanged
func (e *Entry) GetSecret() ([]byte, error) {
	secret, err := e.cred.GetSecret()
	if err != nil {
		return nil, e.wrap("get-secret", err)
	}
	return secret, nil
}

// DeleteCredential removes the stored secret. The Entry stays usable.
func (e *Entry) DeleteCredential() error {
	return e.wrap("delete", e.cred.Delete())
}

// DeletePassword is an alias for DeleteCredential
func (e *Entry) DeletePassword() error {
	return e.DeleteCredential()
}

// TryDelete deletes the stored secret and only reports whether it worked
func (e *Entry) TryDelete() bool {
	return e.DeleteCredential() == nil
}

func (e *Entry) wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	return NewSecretError(op, e.id.Service, e.id.User, err)
}

// codecOf finds a PasswordCodec on cred or anything it wraps
func codecOf(cred Credential) PasswordCodec {
	for cred != nil {
		if codec, ok := cred.(PasswordCodec); ok {
			return codec
		}
		u, ok := cred.(interface{ Unwrap() Credential })
		if !ok {
			return nil
		}
		cred = u.Unwrap()
	}
	return nil
}

// validateIdentity rejects identities no backend can address
func validateIdentity(op, service, user string) error {
	if service == "" {
		return invalidErr(op, "service", "must not be empty")
	}
	if user == "" {
		return invalidErr(op, "user", "must not be empty")
	}
	if strings.ContainsRune(service, 0) {
		return invalidErr(op, "service", "contains a NUL byte")
	}
	if strings.ContainsRune(user, 0) {
		return invalidErr(op, "user", "contains a NUL byte")
	}
	return nil
}

// IsNotFound reports whether err means the secret does not exist
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNoEntry)
}
