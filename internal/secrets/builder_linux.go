//go:build linux

package secrets

// linuxBuilder prefers the Secret Service and falls back to the kernel
// keyrings when no daemon answers. The choice is made by a process-wide
// probe the first time anything is built or enumerated.
type linuxBuilder struct {
	probe    *Prober
	service  Builder
	keyutils Builder
}

func platformBuilder(cfg BackendConfig) (Builder, error) {
	keyutils, err := newKeyutilsBuilder(cfg.Keyutils)
	if err != nil {
		return nil, err
	}
	return &linuxBuilder{
		probe:    secretServiceProbe,
		service:  NewSecretServiceBuilder(cfg.SecretService),
		keyutils: keyutils,
	}, nil
}

func (b *linuxBuilder) selected() Builder {
	if b.probe.Available() {
		return b.service
	}
	return b.keyutils
}

// Kind reports the backend the probe selected
func (b *linuxBuilder) Kind() BackendKind {
	return b.selected().Kind()
}

func (b *linuxBuilder) Build(target *string, service, user string) (Credential, error) {
	return b.selected().Build(target, service, user)
}

func (b *linuxBuilder) Find(service string, target *string) ([]Found, error) {
	f, ok := b.selected().(Finder)
	if !ok {
		return nil, &PlatformError{Op: "find", Err: ErrNotSupported}
	}
	return f.Find(service, target)
}
