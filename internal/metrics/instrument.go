package metrics

import (
	"fmt"
	"time"

	"github.com/phillarmonic/credstore/internal/secrets"
)

// Instrument wraps b so every credential it builds, and every enumeration
// it runs, is measured on m. Password codecs on the wrapped credentials stay
// reachable through Unwrap.
func Instrument(b secrets.Builder, m *Metrics) secrets.Builder {
	return &builder{inner: b, m: m}
}

type builder struct {
	inner secrets.Builder
	m     *Metrics
}

func (b *builder) Kind() secrets.BackendKind {
	return b.inner.Kind()
}

func (b *builder) Build(target *string, service, user string) (secrets.Credential, error) {
	start := time.Now()
	cred, err := b.inner.Build(target, service, user)
	b.m.Record(b.inner.Kind(), "build", start, err)
	if err != nil {
		return nil, err
	}
	return &credential{inner: cred, m: b.m}, nil
}

func (b *builder) Find(service string, target *string) ([]secrets.Found, error) {
	finder, ok := b.inner.(secrets.Finder)
	if !ok {
		return nil, &secrets.PlatformError{
			Op:  "find",
			Msg: fmt.Sprintf("%s backend cannot enumerate credentials", b.inner.Kind()),
			Err: secrets.ErrNotSupported,
		}
	}
	start := time.Now()
	found, err := finder.Find(service, target)
	b.m.Record(b.inner.Kind(), "find", start, err)
	if err == nil {
		b.m.RecordEnumerated(b.inner.Kind(), len(found))
	}
	return found, err
}

type credential struct {
	inner secrets.Credential
	m     *Metrics
}

// Unwrap exposes the native credential
func (c *credential) Unwrap() secrets.Credential {
	return c.inner
}

func (c *credential) Kind() secrets.BackendKind {
	return c.inner.Kind()
}

func (c *credential) GetSecret() ([]byte, error) {
	start := time.Now()
	secret, err := c.inner.GetSecret()
	c.m.Record(c.inner.Kind(), "get", start, err)
	return secret, err
}

func (c *credential) SetSecret(secret []byte) error {
	start := time.Now()
	err := c.inner.SetSecret(secret)
	c.m.Record(c.inner.Kind(), "set", start, err)
	return err
}

func (c *credential) Delete() error {
	start := time.Now()
	err := c.inner.Delete()
	c.m.Record(c.inner.Kind(), "delete", start, err)
	return err
}
