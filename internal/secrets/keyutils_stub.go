//go:build !linux

package secrets

// newKeyutilsBuilder is not available outside Linux
func newKeyutilsBuilder(cfg KeyutilsConfig) (Builder, error) {
	return nil, unavailable(BackendKeyutils)
}
