//go:build darwin

package secrets

func platformBuilder(cfg BackendConfig) (Builder, error) {
	return newKeychainBuilder()
}
