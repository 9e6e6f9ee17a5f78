package secrets

import (
	"github.com/phillarmonic/credstore/internal/pool"
)

// AsyncEntry runs an Entry's operations on a worker pool so callers can
// bound how long they wait. Abandoning a wait never interrupts the native
// call; it completes in its worker and the result is dropped.
type AsyncEntry struct {
	entry *Entry
	pool  *pool.Pool
}

// NewAsyncEntry offloads e's operations onto p
func NewAsyncEntry(e *Entry, p *pool.Pool) *AsyncEntry {
	return &AsyncEntry{entry: e, pool: p}
}

// Entry returns the wrapped entry
func (a *AsyncEntry) Entry() *Entry {
	return a.entry
}

func (a *AsyncEntry) SetPassword(password string) *pool.Future[struct{}] {
	return pool.Submit(a.pool, func() (struct{}, error) {
		return struct{}{}, a.entry.SetPassword(password)
	})
}

func (a *AsyncEntry) GetPassword() *pool.Future[string] {
	return pool.Submit(a.pool, a.entry.GetPassword)
}

func (a *AsyncEntry) SetSecret(secret []byte) *pool.Future[struct{}] {
	return pool.Submit(a.pool, func() (struct{}, error) {
		return struct{}{}, a.entry.SetSecret(secret)
	})
}

func (a *AsyncEntry) GetSecret() *pool.Future[[]byte] {
	return pool.Submit(a.pool, a.entry.GetSecret)
}

func (a *AsyncEntry) DeleteCredential() *pool.Future[struct{}] {
	return pool.Submit(a.pool, func() (struct{}, error) {
		return struct{}{}, a.entry.DeleteCredential()
	})
}

// FindCredentialsAsync enumerates service on b from a pool worker
func FindCredentialsAsync(p *pool.Pool, b Builder, service string, target *string) *pool.Future[[]Found] {
	return pool.Submit(p, func() ([]Found, error) {
		return FindWith(b, service, target)
	})
}
