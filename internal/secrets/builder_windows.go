//go:build windows

package secrets

func platformBuilder(cfg BackendConfig) (Builder, error) {
	return newWinCredBuilder()
}
