package secrets

import (
	"errors"
	"fmt"
)

// Error kinds. Every error returned by this package matches exactly one of
// ErrNoEntry, ErrAmbiguous or ErrPlatformFailure via errors.Is, except text
// decoding failures which match ErrBadEncoding.
var (
	ErrNoEntry         = errors.New("no matching entry found in secure storage")
	ErrAmbiguous       = errors.New("entry is matched by multiple credentials")
	ErrPlatformFailure = errors.New("platform secure storage failure")
	ErrBadEncoding     = errors.New("stored secret is not valid text")

	// Reported wrapped in a PlatformError.
	ErrInvalid          = errors.New("invalid credential attribute")
	ErrNotSupported     = errors.New("operation not supported by this backend")
	ErrBackendNotAvail  = errors.New("secrets backend not available")
	ErrBuilderInstalled = errors.New("default credential builder already in use")
)

// SecretError wraps an error with the identity and operation it came from
type SecretError struct {
	Op      string
	Service string
	User    string
	Err     error
}

func (e *SecretError) Error() string {
	if e.Service != "" && e.User != "" {
		return fmt.Sprintf("secret operation '%s' failed for %s:%s: %v",
			e.Op, e.Service, e.User, e.Err)
	} else if e.Service != "" {
		return fmt.Sprintf("secret operation '%s' failed for service %s: %v",
			e.Op, e.Service, e.Err)
	}
	return fmt.Sprintf("secret operation '%s' failed: %v", e.Op, e.Err)
}

func (e *SecretError) Unwrap() error {
	return e.Err
}

// NewSecretError creates a new SecretError
func NewSecretError(op, service, user string, err error) *SecretError {
	return &SecretError{
		Op:      op,
		Service: service,
		User:    user,
		Err:     err,
	}
}

// PlatformError is a failure reported by the native store or raised while
// talking to it. Code carries the native status (OSStatus, Win32 error,
// errno) when there is one.
type PlatformError struct {
	Op   string
	Code int
	Msg  string
	Err  error
}

func (e *PlatformError) Error() string {
	msg := e.Msg
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if e.Code != 0 {
		return fmt.Sprintf("%s: %s (code %d)", e.Op, msg, e.Code)
	}
	return fmt.Sprintf("%s: %s", e.Op, msg)
}

func (e *PlatformError) Unwrap() error {
	return e.Err
}

func (e *PlatformError) Is(target error) bool {
	return target == ErrPlatformFailure
}

// platformErr wraps err as a PlatformError for op
func platformErr(op string, err error) error {
	if err == nil {
		return nil
	}
	var pe *PlatformError
	if errors.As(err, &pe) {
		return err
	}
	return &PlatformError{Op: op, Err: err}
}

// invalidErr reports a malformed identity attribute
func invalidErr(op, attr, reason string) error {
	return &PlatformError{
		Op:  op,
		Msg: fmt.Sprintf("%s %s", attr, reason),
		Err: ErrInvalid,
	}
}

// AmbiguousError reports how many native items matched one identity.
type AmbiguousError struct {
	Count int
}

func (e *AmbiguousError) Error() string {
	return fmt.Sprintf("%v (%d matches)", ErrAmbiguous, e.Count)
}

func (e *AmbiguousError) Is(target error) bool {
	return target == ErrAmbiguous
}

// BadEncodingError carries the stored bytes that could not be decoded as text
type BadEncodingError struct {
	Secret []byte
	Err    error
}

func (e *BadEncodingError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%v: %v", ErrBadEncoding, e.Err)
	}
	return ErrBadEncoding.Error()
}

func (e *BadEncodingError) Unwrap() error {
	return e.Err
}

func (e *BadEncodingError) Is(target error) bool {
	return target == ErrBadEncoding
}
