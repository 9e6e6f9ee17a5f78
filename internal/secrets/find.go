package secrets

import (
	"errors"
	"fmt"
)

// FindCredentials lists every (account, secret) pair stored for service on
// the default backend. A service with nothing stored yields an empty slice;
// items that cannot be decoded are skipped.
func FindCredentials(service string, target *string) ([]Found, error) {
	b, err := DefaultBuilder()
	if err != nil {
		return nil, NewSecretError("find", service, "", err)
	}
	return FindWith(b, service, target)
}

// FindWith enumerates on a specific builder
func FindWith(b Builder, service string, target *string) ([]Found, error) {
	if service == "" {
		return nil, NewSecretError("find", service, "", invalidErr("find", "service", "must not be empty"))
	}

	finder, ok := b.(Finder)
	if !ok {
		return nil, NewSecretError("find", service, "", &PlatformError{
			Op:  "find",
			Msg: fmt.Sprintf("%s backend cannot enumerate credentials", b.Kind()),
			Err: ErrNotSupported,
		})
	}

	found, err := finder.Find(service, target)
	if err != nil {
		if errors.Is(err, ErrNoEntry) {
			return []Found{}, nil
		}
		return nil, NewSecretError("find", service, "", err)
	}
	if found == nil {
		found = []Found{}
	}
	log().Debug("enumerated credentials", "backend", b.Kind(), "service", service, "count", len(found))
	return found, nil
}

// FindPassword returns the first readable password stored for service on
// the default backend. ok is false when there is none.
func FindPassword(service string) (password string, ok bool, err error) {
	found, err := FindCredentials(service, nil)
	if err != nil {
		return "", false, err
	}
	for _, f := range found {
		if pw, valid := f.Password(); valid {
			return pw, true, nil
		}
	}
	return "", false, nil
}
