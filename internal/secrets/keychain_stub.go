//go:build !darwin

package secrets

// newKeychainBuilder is not available on non-Darwin platforms
func newKeychainBuilder() (Builder, error) {
	return nil, unavailable(BackendKeychain)
}
