//go:build windows

package secrets

import (
	"bytes"
	"errors"
	"fmt"
	"unsafe"

	"github.com/danieljoos/wincred"
	"golang.org/x/sys/windows"
)

// Native limits from wincred.h
const (
	credMaxBlobSize       = 5 * 512
	credMaxTargetLength   = 32767
	credMaxUserNameLength = 513
)

var (
	modadvapi32        = windows.NewLazySystemDLL("advapi32.dll")
	procCredEnumerateW = modadvapi32.NewProc("CredEnumerateW")
	procCredFree       = modadvapi32.NewProc("CredFree")
)

// nativeCredential mirrors CREDENTIALW
type nativeCredential struct {
	Flags              uint32
	Type               uint32
	TargetName         *uint16
	Comment            *uint16
	LastWritten        windows.Filetime
	CredentialBlobSize uint32
	CredentialBlob     *byte
	Persist            uint32
	AttributeCount     uint32
	Attributes         uintptr
	TargetAlias        *uint16
	UserName           *uint16
}

// WinCredBuilder provides Windows Credential Manager storage
type WinCredBuilder struct{}

func newWinCredBuilder() (Builder, error) {
	return &WinCredBuilder{}, nil
}

// Kind implements Builder
func (b *WinCredBuilder) Kind() BackendKind {
	return BackendWinCred
}

// Build implements Builder
func (b *WinCredBuilder) Build(target *string, service, user string) (Credential, error) {
	if err := validateIdentity("build", service, user); err != nil {
		return nil, err
	}
	name := targetOr(target, winCredDefaultTarget(service, user))
	if name == "" {
		return nil, invalidErr("build", "target", "must not be empty")
	}
	if len(name) > credMaxTargetLength {
		return nil, invalidErr("build", "target", fmt.Sprintf("is longer than %d characters", credMaxTargetLength))
	}
	if len(user) > credMaxUserNameLength {
		return nil, invalidErr("build", "user", fmt.Sprintf("is longer than %d characters", credMaxUserNameLength))
	}
	return &WinCredCredential{target: name, service: service, user: user}, nil
}

// Find implements Finder
func (b *WinCredBuilder) Find(service string, target *string) ([]Found, error) {
	records, err := enumerateCredentials(winCredFilter(service, target))
	if err != nil {
		return nil, err
	}
	return collectRecords(records), nil
}

// enumerateCredentials copies every record matching filter out of the
// native array and frees the array with a single CredFree.
func enumerateCredentials(filter string) ([]credRecord, error) {
	filterPtr, err := windows.UTF16PtrFromString(filter)
	if err != nil {
		return nil, invalidErr("find", "filter", "contains a NUL character")
	}

	var count uint32
	var list **nativeCredential
	ret, _, callErr := procCredEnumerateW.Call(
		uintptr(unsafe.Pointer(filterPtr)),
		0,
		uintptr(unsafe.Pointer(&count)),
		uintptr(unsafe.Pointer(&list)),
	)
	if list != nil {
		defer procCredFree.Call(uintptr(unsafe.Pointer(list)))
	}
	if ret == 0 {
		if errors.Is(callErr, windows.ERROR_NOT_FOUND) {
			return nil, nil
		}
		return nil, winCredErr("find", callErr)
	}

	records := make([]credRecord, 0, count)
	for _, c := range unsafe.Slice(list, int(count)) {
		if c == nil {
			continue
		}
		rec := credRecord{
			Type:       c.Type,
			TargetName: windows.UTF16PtrToString(c.TargetName),
			UserName:   windows.UTF16PtrToString(c.UserName),
		}
		if c.CredentialBlob != nil && c.CredentialBlobSize > 0 {
			rec.Blob = bytes.Clone(unsafe.Slice(c.CredentialBlob, int(c.CredentialBlobSize)))
		}
		records = append(records, rec)
	}
	return records, nil
}

// WinCredCredential is a generic credential keyed by its target name
type WinCredCredential struct {
	target  string
	service string
	user    string
}

// Kind implements Credential
func (c *WinCredCredential) Kind() BackendKind {
	return BackendWinCred
}

// EncodePassword stores text as UTF-16, the platform's own convention
func (c *WinCredCredential) EncodePassword(password string) []byte {
	return encodeUTF16Blob(password)
}

// DecodePassword implements PasswordCodec
func (c *WinCredCredential) DecodePassword(secret []byte) (string, error) {
	return decodeUTF16Blob(secret)
}

// GetSecret implements Credential. Target names are unique, so a lookup
// can never be ambiguous.
func (c *WinCredCredential) GetSecret() ([]byte, error) {
	cred, err := wincred.GetGenericCredential(c.target)
	if err != nil {
		if errors.Is(err, wincred.ErrElementNotFound) {
			return nil, ErrNoEntry
		}
		return nil, winCredErr("get", err)
	}
	return cred.CredentialBlob, nil
}

// SetSecret implements Credential
func (c *WinCredCredential) SetSecret(secret []byte) error {
	if len(secret) > credMaxBlobSize {
		return &PlatformError{
			Op:  "set",
			Msg: fmt.Sprintf("secret is %d bytes, the limit is %d", len(secret), credMaxBlobSize),
			Err: ErrInvalid,
		}
	}
	cred := wincred.NewGenericCredential(c.target)
	cred.UserName = c.user
	cred.Comment = fmt.Sprintf("credstore entry for service %q", c.service)
	cred.CredentialBlob = secret
	cred.Persist = wincred.PersistLocalMachine
	if err := cred.Write(); err != nil {
		return winCredErr("set", err)
	}
	return nil
}

// Delete implements Credential
func (c *WinCredCredential) Delete() error {
	cred, err := wincred.GetGenericCredential(c.target)
	if err != nil {
		if errors.Is(err, wincred.ErrElementNotFound) {
			return ErrNoEntry
		}
		return winCredErr("delete", err)
	}
	if err := cred.Delete(); err != nil {
		return winCredErr("delete", err)
	}
	return nil
}

func winCredErr(op string, err error) error {
	var errno windows.Errno
	if errors.As(err, &errno) {
		return &PlatformError{Op: op, Code: int(errno), Msg: errno.Error()}
	}
	return platformErr(op, err)
}
