//go:build linux

package secrets

import (
	"encoding/binary"
	"errors"

	"golang.org/x/sys/unix"
)

// KeyutilsBuilder stores credentials as "user" keys in the kernel keyrings.
// Keys live in the session keyring and are linked into the user's
// persistent keyring so they survive logout.
type KeyutilsBuilder struct {
	cfg KeyutilsConfig
}

func newKeyutilsBuilder(cfg KeyutilsConfig) (Builder, error) {
	return &KeyutilsBuilder{cfg: cfg}, nil
}

// Kind implements Builder
func (b *KeyutilsBuilder) Kind() BackendKind {
	return BackendKeyutils
}

// Build implements Builder. The target is the key description.
func (b *KeyutilsBuilder) Build(target *string, service, user string) (Credential, error) {
	if err := validateIdentity("build", service, user); err != nil {
		return nil, err
	}
	desc := targetOr(target, keyutilsDescription(service, user))
	if desc == "" {
		return nil, invalidErr("build", "target", "must not be empty")
	}
	return &KeyutilsCredential{desc: desc, persist: !b.cfg.SkipPersistent}, nil
}

// Find implements Finder over the session and persistent keyrings
func (b *KeyutilsBuilder) Find(service string, target *string) ([]Found, error) {
	rings := []int{unix.KEY_SPEC_SESSION_KEYRING}
	if ring, err := persistentKeyring(); err == nil {
		rings = append(rings, ring)
	}

	seen := make(map[int]bool)
	var found []Found
	for i, ring := range rings {
		ids, err := keyringContents(ring)
		if err != nil {
			if i == 0 {
				return nil, err
			}
			log().Debug("skipping keyring", "backend", BackendKeyutils, "keyring", ring, "error", err)
			continue
		}
		for _, id := range ids {
			if seen[id] {
				continue
			}
			seen[id] = true

			described, err := unix.KeyctlString(unix.KEYCTL_DESCRIBE, id)
			if err != nil {
				continue
			}
			keyType, desc, ok := parseKeyDescribe(described)
			if !ok || keyType != "user" {
				continue
			}
			account, ok := matchKeyutilsKey(desc, service, target)
			if !ok {
				continue
			}
			secret, err := readKey(id)
			if err != nil {
				log().Debug("skipping key", "backend", BackendKeyutils, "key", id, "error", err)
				continue
			}
			found = append(found, Found{Account: account, Secret: secret})
		}
	}
	return found, nil
}

// KeyutilsCredential is a user key identified by its description
type KeyutilsCredential struct {
	desc    string
	persist bool
}

// Kind implements Credential
func (c *KeyutilsCredential) Kind() BackendKind {
	return BackendKeyutils
}

// search finds the key through the session keyring and anything it links
func (c *KeyutilsCredential) search(op string) (int, error) {
	id, err := unix.KeyctlSearch(unix.KEY_SPEC_SESSION_KEYRING, "user", c.desc, 0)
	if err == nil {
		return id, nil
	}
	if ring, perr := persistentKeyring(); perr == nil {
		if id, err = unix.KeyctlSearch(ring, "user", c.desc, 0); err == nil {
			return id, nil
		}
	}
	if isMissingKey(err) {
		return 0, ErrNoEntry
	}
	return 0, keyutilsErr(op, err)
}

// GetSecret implements Credential
func (c *KeyutilsCredential) GetSecret() ([]byte, error) {
	id, err := c.search("get")
	if err != nil {
		return nil, err
	}
	secret, err := readKey(id)
	if err != nil {
		if isMissingKey(err) {
			return nil, ErrNoEntry
		}
		return nil, keyutilsErr("get", err)
	}
	return secret, nil
}

// SetSecret implements Credential. add_key replaces the payload of an
// existing key with the same type and description.
func (c *KeyutilsCredential) SetSecret(secret []byte) error {
	id, err := unix.AddKey("user", c.desc, secret, unix.KEY_SPEC_SESSION_KEYRING)
	if err != nil {
		return keyutilsErr("set", err)
	}
	if !c.persist {
		return nil
	}
	ring, err := persistentKeyring()
	if err != nil {
		log().Debug("persistent keyring unavailable", "backend", BackendKeyutils, "error", err)
		return nil
	}
	if _, err := unix.KeyctlInt(unix.KEYCTL_LINK, id, ring, 0, 0); err != nil {
		return keyutilsErr("set", err)
	}
	return nil
}

// Delete implements Credential. Invalidation removes the key from every
// keyring that links it.
func (c *KeyutilsCredential) Delete() error {
	id, err := c.search("delete")
	if err != nil {
		return err
	}
	if _, err := unix.KeyctlInt(unix.KEYCTL_INVALIDATE, id, 0, 0, 0); err != nil {
		if !errors.Is(err, unix.EOPNOTSUPP) {
			return keyutilsErr("delete", err)
		}
		if _, err := unix.KeyctlInt(unix.KEYCTL_REVOKE, id, 0, 0, 0); err != nil {
			return keyutilsErr("delete", err)
		}
	}
	return nil
}

func persistentKeyring() (int, error) {
	return unix.KeyctlInt(unix.KEYCTL_GET_PERSISTENT, -1, unix.KEY_SPEC_SESSION_KEYRING, 0, 0)
}

// readKey reads a key payload, growing the buffer if it changed in between
func readKey(id int) ([]byte, error) {
	size, err := unix.KeyctlBuffer(unix.KEYCTL_READ, id, nil, 0)
	if err != nil {
		return nil, err
	}
	for {
		buf := make([]byte, size)
		n, err := unix.KeyctlBuffer(unix.KEYCTL_READ, id, buf, 0)
		if err != nil {
			return nil, err
		}
		if n <= len(buf) {
			return buf[:n], nil
		}
		size = n
	}
}

// keyringContents lists the serials linked from ring
func keyringContents(ring int) ([]int, error) {
	raw, err := readKey(ring)
	if err != nil {
		return nil, keyutilsErr("find", err)
	}
	ids := make([]int, 0, len(raw)/4)
	for i := 0; i+4 <= len(raw); i += 4 {
		ids = append(ids, int(int32(binary.NativeEndian.Uint32(raw[i:]))))
	}
	return ids, nil
}

func isMissingKey(err error) bool {
	return errors.Is(err, unix.ENOKEY) || errors.Is(err, unix.EKEYREVOKED) || errors.Is(err, unix.EKEYEXPIRED)
}

func keyutilsErr(op string, err error) error {
	var errno unix.Errno
	if errors.As(err, &errno) {
		return &PlatformError{Op: op, Code: int(errno), Msg: errno.Error()}
	}
	return platformErr(op, err)
}
