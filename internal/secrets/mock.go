package secrets

import (
	"bytes"
	"errors"
	"sync"
)

const mockDefaultTarget = "default"

// MockBuilder is an in-process backend. It keeps physical items in insertion
// order so tests can seed collisions the way a third-party writer would,
// and it can inject failures into the next operation of a credential.
type MockBuilder struct {
	mu    sync.Mutex
	items []*mockItem
}

type mockItem struct {
	target  string
	service string
	user    string
	secret  []byte
	corrupt bool
}

// NewMockBuilder creates an empty mock store
func NewMockBuilder() *MockBuilder {
	return &MockBuilder{}
}

// Kind implements Builder
func (b *MockBuilder) Kind() BackendKind {
	return BackendMock
}

// Build implements Builder
func (b *MockBuilder) Build(target *string, service, user string) (Credential, error) {
	if err := validateIdentity("build", service, user); err != nil {
		return nil, err
	}
	return &MockCredential{
		store:   b,
		target:  targetOr(target, mockDefaultTarget),
		service: service,
		user:    user,
	}, nil
}

// Seed adds a physical item without checking for an existing match
func (b *MockBuilder) Seed(target *string, service, user string, secret []byte) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.items = append(b.items, &mockItem{
		target:  targetOr(target, mockDefaultTarget),
		service: service,
		user:    user,
		secret:  bytes.Clone(secret),
	})
}

// SeedCorrupt adds an item whose secret cannot be read back
func (b *MockBuilder) SeedCorrupt(target *string, service, user string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.items = append(b.items, &mockItem{
		target:  targetOr(target, mockDefaultTarget),
		service: service,
		user:    user,
		corrupt: true,
	})
}

// Len reports the number of physical items
func (b *MockBuilder) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.items)
}

// Find implements Finder
func (b *MockBuilder) Find(service string, target *string) ([]Found, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	found := make([]Found, 0)
	for _, item := range b.items {
		if item.service != service {
			continue
		}
		if target != nil && item.target != *target {
			continue
		}
		if item.corrupt {
			log().Debug("skipping unreadable item", "backend", BackendMock, "service", service)
			continue
		}
		found = append(found, Found{Account: item.user, Secret: bytes.Clone(item.secret)})
	}
	return found, nil
}

// matches returns the indexes of items for the identity; callers hold mu
func (b *MockBuilder) matches(target, service, user string) []int {
	var idx []int
	for i, item := range b.items {
		if item.target == target && item.service == service && item.user == user {
			idx = append(idx, i)
		}
	}
	return idx
}

// MockCredential is the handle built by MockBuilder
type MockCredential struct {
	store   *MockBuilder
	target  string
	service string
	user    string

	errMu   sync.Mutex
	nextErr error
}

// SetError makes the next operation on this credential fail with err
func (c *MockCredential) SetError(err error) {
	c.errMu.Lock()
	defer c.errMu.Unlock()
	c.nextErr = err
}

func (c *MockCredential) takeError() error {
	c.errMu.Lock()
	defer c.errMu.Unlock()
	err := c.nextErr
	c.nextErr = nil
	if err != nil && !errors.Is(err, ErrNoEntry) && !errors.Is(err, ErrAmbiguous) {
		return platformErr("mock", err)
	}
	return err
}

// Kind implements Credential
func (c *MockCredential) Kind() BackendKind {
	return BackendMock
}

// GetSecret implements Credential
func (c *MockCredential) GetSecret() ([]byte, error) {
	if err := c.takeError(); err != nil {
		return nil, err
	}
	c.store.mu.Lock()
	defer c.store.mu.Unlock()

	idx := c.store.matches(c.target, c.service, c.user)
	switch len(idx) {
	case 0:
		return nil, ErrNoEntry
	case 1:
		item := c.store.items[idx[0]]
		if item.corrupt {
			return nil, &PlatformError{Op: "get", Msg: "stored item is unreadable"}
		}
		return bytes.Clone(item.secret), nil
	default:
		return nil, &AmbiguousError{Count: len(idx)}
	}
}

// SetSecret implements Credential
func (c *MockCredential) SetSecret(secret []byte) error {
	if err := c.takeError(); err != nil {
		return err
	}
	c.store.mu.Lock()
	defer c.store.mu.Unlock()

	idx := c.store.matches(c.target, c.service, c.user)
	switch len(idx) {
	case 0:
		c.store.items = append(c.store.items, &mockItem{
			target:  c.target,
			service: c.service,
			user:    c.user,
			secret:  bytes.Clone(secret),
		})
		return nil
	case 1:
		item := c.store.items[idx[0]]
		item.secret = bytes.Clone(secret)
		item.corrupt = false
		return nil
	default:
		return &AmbiguousError{Count: len(idx)}
	}
}

// Delete implements Credential
func (c *MockCredential) Delete() error {
	if err := c.takeError(); err != nil {
		return err
	}
	c.store.mu.Lock()
	defer c.store.mu.Unlock()

	idx := c.store.matches(c.target, c.service, c.user)
	switch len(idx) {
	case 0:
		return ErrNoEntry
	case 1:
		i := idx[0]
		c.store.items = append(c.store.items[:i], c.store.items[i+1:]...)
		return nil
	default:
		return &AmbiguousError{Count: len(idx)}
	}
}
