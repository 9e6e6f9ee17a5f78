//go:build darwin

package secrets

/*
#cgo LDFLAGS: -framework CoreFoundation -framework Security
#pragma clang diagnostic ignored "-Wdeprecated-declarations"
#include <stdlib.h>
#include <stdint.h>
#include <CoreFoundation/CoreFoundation.h>
#include <Security/Security.h>

static uintptr_t credstore_copy_matching(const char *service, OSStatus *status) {
	CFStringRef svc = CFStringCreateWithCString(kCFAllocatorDefault, service, kCFStringEncodingUTF8);
	if (svc == NULL) {
		*status = errSecParam;
		return 0;
	}
	const void *keys[] = { kSecClass, kSecAttrService, kSecMatchLimit, kSecReturnRef, kSecReturnAttributes };
	const void *values[] = { kSecClassGenericPassword, svc, kSecMatchLimitAll, kCFBooleanTrue, kCFBooleanTrue };
	CFDictionaryRef query = CFDictionaryCreate(kCFAllocatorDefault, keys, values, 5,
		&kCFTypeDictionaryKeyCallBacks, &kCFTypeDictionaryValueCallBacks);
	CFRelease(svc);
	CFTypeRef result = NULL;
	*status = SecItemCopyMatching(query, &result);
	CFRelease(query);
	return (uintptr_t)result;
}

static CFTypeID credstore_type_id(uintptr_t ref) { return CFGetTypeID((CFTypeRef)ref); }
static void credstore_retain(uintptr_t ref) { CFRetain((CFTypeRef)ref); }
static void credstore_release(uintptr_t ref) { CFRelease((CFTypeRef)ref); }
static CFIndex credstore_array_len(uintptr_t ref) { return CFArrayGetCount((CFArrayRef)ref); }
static uintptr_t credstore_array_at(uintptr_t ref, CFIndex i) {
	return (uintptr_t)CFArrayGetValueAtIndex((CFArrayRef)ref, i);
}

static CFTypeID credstore_item_type(void) { return SecKeychainItemGetTypeID(); }

static char *credstore_cfstring(CFTypeRef value) {
	if (value == NULL || CFGetTypeID(value) != CFStringGetTypeID()) {
		return NULL;
	}
	CFStringRef s = (CFStringRef)value;
	CFIndex size = CFStringGetMaximumSizeForEncoding(CFStringGetLength(s), kCFStringEncodingUTF8) + 1;
	char *buf = malloc(size);
	if (buf == NULL) {
		return NULL;
	}
	if (!CFStringGetCString(s, buf, size, kCFStringEncodingUTF8)) {
		free(buf);
		return NULL;
	}
	return buf;
}

static char *credstore_dict_account(uintptr_t ref) {
	return credstore_cfstring(CFDictionaryGetValue((CFDictionaryRef)ref, kSecAttrAccount));
}

static char *credstore_item_account(uintptr_t ref) {
	const void *item = (const void *)ref;
	CFArrayRef items = CFArrayCreate(kCFAllocatorDefault, &item, 1, &kCFTypeArrayCallBacks);
	const void *keys[] = { kSecClass, kSecMatchItemList, kSecReturnAttributes, kSecMatchLimit };
	const void *values[] = { kSecClassGenericPassword, items, kCFBooleanTrue, kSecMatchLimitOne };
	CFDictionaryRef query = CFDictionaryCreate(kCFAllocatorDefault, keys, values, 4,
		&kCFTypeDictionaryKeyCallBacks, &kCFTypeDictionaryValueCallBacks);
	CFRelease(items);
	CFTypeRef attrs = NULL;
	OSStatus status = SecItemCopyMatching(query, &attrs);
	CFRelease(query);
	if (status != errSecSuccess || attrs == NULL) {
		return NULL;
	}
	char *account = NULL;
	if (CFGetTypeID(attrs) == CFDictionaryGetTypeID()) {
		account = credstore_cfstring(CFDictionaryGetValue((CFDictionaryRef)attrs, kSecAttrAccount));
	}
	CFRelease(attrs);
	return account;
}
*/
import "C"

import (
	"errors"
	"fmt"
	"strings"
	"unsafe"

	"github.com/keybase/go-keychain"
)

// defaultKeychainDomain is the only keychain domain the search list reaches
const defaultKeychainDomain = "User"

// KeychainBuilder provides macOS Keychain storage
type KeychainBuilder struct {
	rt *darwinRuntime
}

func newKeychainBuilder() (Builder, error) {
	return &KeychainBuilder{rt: newDarwinRuntime()}, nil
}

// Kind implements Builder
func (b *KeychainBuilder) Kind() BackendKind {
	return BackendKeychain
}

// Build implements Builder. The target names a keychain domain.
func (b *KeychainBuilder) Build(target *string, service, user string) (Credential, error) {
	if err := validateIdentity("build", service, user); err != nil {
		return nil, err
	}
	if target != nil && *target != "" && !strings.EqualFold(*target, defaultKeychainDomain) {
		switch strings.ToLower(*target) {
		case "system", "common", "dynamic":
			return nil, invalidErr("build", "target", fmt.Sprintf("keychain domain %q is not supported", *target))
		default:
			return nil, invalidErr("build", "target", fmt.Sprintf("%q is not a keychain domain", *target))
		}
	}
	return &KeychainCredential{service: service, account: user}, nil
}

// Find implements Finder. Keychain searches have no target filter.
func (b *KeychainBuilder) Find(service string, _ *string) ([]Found, error) {
	cs := C.CString(service)
	defer C.free(unsafe.Pointer(cs))

	var status C.OSStatus
	result := C.credstore_copy_matching(cs, &status)
	switch int(status) {
	case int(C.errSecSuccess):
	case int(C.errSecItemNotFound):
		return []Found{}, nil
	default:
		return nil, keychainErr("find", keychain.Error(int(status)))
	}

	accounts := searchAccounts(b.rt, cfRef(result))
	return collectFound(BackendKeychain, accounts, func(account string) ([]byte, error) {
		return readKeychainData(service, account)
	}), nil
}

// KeychainCredential is a generic password item addressed by service and account
type KeychainCredential struct {
	service string
	account string
}

// Kind implements Credential
func (c *KeychainCredential) Kind() BackendKind {
	return BackendKeychain
}

func (c *KeychainCredential) query() keychain.Item {
	item := keychain.NewItem()
	item.SetSecClass(keychain.SecClassGenericPassword)
	item.SetService(c.service)
	item.SetAccount(c.account)
	return item
}

// matches counts the items the identity resolves to
func (c *KeychainCredential) matches(op string) (int, error) {
	query := c.query()
	query.SetMatchLimit(keychain.MatchLimitAll)
	query.SetReturnAttributes(true)

	results, err := keychain.QueryItem(query)
	if err != nil {
		if errors.Is(err, keychain.ErrorItemNotFound) {
			return 0, nil
		}
		return 0, keychainErr(op, err)
	}
	return len(results), nil
}

// GetSecret implements Credential
func (c *KeychainCredential) GetSecret() ([]byte, error) {
	n, err := c.matches("get")
	if err != nil {
		return nil, err
	}
	switch {
	case n == 0:
		return nil, ErrNoEntry
	case n > 1:
		return nil, &AmbiguousError{Count: n}
	}
	return readKeychainData(c.service, c.account)
}

// SetSecret implements Credential
func (c *KeychainCredential) SetSecret(secret []byte) error {
	n, err := c.matches("set")
	if err != nil {
		return err
	}
	switch {
	case n > 1:
		return &AmbiguousError{Count: n}
	case n == 1:
		update := keychain.NewItem()
		update.SetData(secret)
		if err := keychain.UpdateItem(c.query(), update); err != nil {
			return keychainErr("set", err)
		}
		return nil
	}

	item := c.query()
	item.SetLabel(fmt.Sprintf("%s (%s)", c.service, c.account))
	item.SetData(secret)
	item.SetSynchronizable(keychain.SynchronizableNo)
	item.SetAccessible(keychain.AccessibleWhenUnlocked)
	if err := keychain.AddItem(item); err != nil {
		return keychainErr("set", err)
	}
	return nil
}

// Delete implements Credential
func (c *KeychainCredential) Delete() error {
	n, err := c.matches("delete")
	if err != nil {
		return err
	}
	switch {
	case n == 0:
		return ErrNoEntry
	case n > 1:
		return &AmbiguousError{Count: n}
	}
	if err := keychain.DeleteItem(c.query()); err != nil {
		if errors.Is(err, keychain.ErrorItemNotFound) {
			return ErrNoEntry
		}
		return keychainErr("delete", err)
	}
	return nil
}

func readKeychainData(service, account string) ([]byte, error) {
	query := keychain.NewItem()
	query.SetSecClass(keychain.SecClassGenericPassword)
	query.SetService(service)
	query.SetAccount(account)
	query.SetMatchLimit(keychain.MatchLimitOne)
	query.SetReturnData(true)

	results, err := keychain.QueryItem(query)
	if err != nil {
		if errors.Is(err, keychain.ErrorItemNotFound) {
			return nil, ErrNoEntry
		}
		return nil, keychainErr("get", err)
	}
	if len(results) == 0 {
		return nil, ErrNoEntry
	}
	return results[0].Data, nil
}

func keychainErr(op string, err error) error {
	var kerr keychain.Error
	if errors.As(err, &kerr) {
		return &PlatformError{Op: op, Code: int(kerr), Msg: kerr.Error()}
	}
	return platformErr(op, err)
}

// darwinRuntime is the cgo implementation of cfRuntime
type darwinRuntime struct {
	tt typeTable
}

func newDarwinRuntime() *darwinRuntime {
	return &darwinRuntime{tt: typeTable{
		array:       uintptr(C.CFArrayGetTypeID()),
		dictionary:  uintptr(C.CFDictionaryGetTypeID()),
		data:        uintptr(C.CFDataGetTypeID()),
		item:        uintptr(C.credstore_item_type()),
		certificate: uintptr(C.SecCertificateGetTypeID()),
		key:         uintptr(C.SecKeyGetTypeID()),
		identity:    uintptr(C.SecIdentityGetTypeID()),
	}}
}

func (r *darwinRuntime) types() typeTable { return r.tt }

func (r *darwinRuntime) typeID(ref cfRef) uintptr {
	return uintptr(C.credstore_type_id(C.uintptr_t(ref)))
}

func (r *darwinRuntime) retain(ref cfRef)  { C.credstore_retain(C.uintptr_t(ref)) }
func (r *darwinRuntime) release(ref cfRef) { C.credstore_release(C.uintptr_t(ref)) }

func (r *darwinRuntime) arrayLen(ref cfRef) int {
	return int(C.credstore_array_len(C.uintptr_t(ref)))
}

func (r *darwinRuntime) arrayAt(ref cfRef, i int) cfRef {
	return cfRef(C.credstore_array_at(C.uintptr_t(ref), C.CFIndex(i)))
}

func (r *darwinRuntime) account(kind itemKind, ref cfRef) (string, bool) {
	var cs *C.char
	switch kind {
	case kindDictionary:
		cs = C.credstore_dict_account(C.uintptr_t(ref))
	case kindItemReference:
		cs = C.credstore_item_account(C.uintptr_t(ref))
	}
	if cs == nil {
		return "", false
	}
	defer C.free(unsafe.Pointer(cs))
	return C.GoString(cs), true
}
