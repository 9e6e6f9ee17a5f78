//go:build freebsd

package secrets

// FreeBSD has no kernel keyring, so the Secret Service is the only choice
func platformBuilder(cfg BackendConfig) (Builder, error) {
	return NewSecretServiceBuilder(cfg.SecretService), nil
}
