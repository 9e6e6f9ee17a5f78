//go:build !windows

package secrets

// newWinCredBuilder is not available on non-Windows platforms
func newWinCredBuilder() (Builder, error) {
	return nil, unavailable(BackendWinCred)
}
