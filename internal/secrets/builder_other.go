//go:build !linux && !darwin && !windows && !freebsd

package secrets

// Everything else goes through go-keyring, which knows the remaining
// platforms it supports and reports the rest as unsupported
func platformBuilder(cfg BackendConfig) (Builder, error) {
	return NewPortableBuilder(), nil
}
