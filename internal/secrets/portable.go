package secrets

import (
	"errors"

	"github.com/zalando/go-keyring"
)

// PortableBuilder stores secrets through go-keyring, which reaches the same
// native stores through their command line or D-Bus front ends. It has no
// target namespaces and no enumeration.
type PortableBuilder struct{}

// NewPortableBuilder creates a portable builder
func NewPortableBuilder() *PortableBuilder {
	return &PortableBuilder{}
}

// Kind implements Builder
func (b *PortableBuilder) Kind() BackendKind {
	return BackendPortable
}

// Build implements Builder
func (b *PortableBuilder) Build(target *string, service, user string) (Credential, error) {
	if err := validateIdentity("build", service, user); err != nil {
		return nil, err
	}
	if target != nil {
		return nil, invalidErr("build", "target", "is not supported by the portable backend")
	}
	return &PortableCredential{service: service, user: user}, nil
}

// PortableCredential is a go-keyring handle
type PortableCredential struct {
	service string
	user    string
}

// Kind implements Credential
func (c *PortableCredential) Kind() BackendKind {
	return BackendPortable
}

// GetSecret implements Credential
func (c *PortableCredential) GetSecret() ([]byte, error) {
	value, err := keyring.Get(c.service, c.user)
	if err != nil {
		return nil, c.mapErr("get", err)
	}
	return []byte(value), nil
}

// SetSecret implements Credential
func (c *PortableCredential) SetSecret(secret []byte) error {
	return c.mapErr("set", keyring.Set(c.service, c.user, string(secret)))
}

// Delete implements Credential
func (c *PortableCredential) Delete() error {
	return c.mapErr("delete", keyring.Delete(c.service, c.user))
}

func (c *PortableCredential) mapErr(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, keyring.ErrNotFound) {
		return ErrNoEntry
	}
	return platformErr(op, err)
}
