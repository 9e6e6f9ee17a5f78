package secrets

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"math/big"

	"github.com/godbus/dbus/v5"
	"golang.org/x/crypto/hkdf"
)

// Transfer algorithms from the freedesktop Secret Service API
const (
	ssAlgPlain = "plain"
	ssAlgDH    = "dh-ietf1024-sha256-aes128-cbc-pkcs7"

	ssContentType = "text/plain"
)

// ietf1024Prime is the Second Oakley Group (RFC 2409), generator 2
var ietf1024Prime, _ = new(big.Int).SetString(
	"FFFFFFFFFFFFFFFFC90FDAA22168C234C4C6628B80DC1CD1"+
		"29024E088A67CC74020BBEA63B139B22514A08798E3404DD"+
		"EF9519B3CD3A431B302B0A6DF25F14374FE1356D6D51C245"+
		"E485B576625E7EC6F44C42E9A637ED6B0BFF5CB6F406B7ED"+
		"EE386BFB5A899FA5AE9F24117C4B1FE649286651ECE65381"+
		"FFFFFFFFFFFFFFFF", 16)

var ietf1024Generator = big.NewInt(2)

const ietf1024Bytes = 128

// ssSecret is the (oayays) secret structure
type ssSecret struct {
	Session     dbus.ObjectPath
	Parameters  []byte
	Value       []byte
	ContentType string
}

// ssSession is an open transfer session. key is nil for plain sessions.
type ssSession struct {
	path dbus.ObjectPath
	key  []byte
}

// openSession negotiates a transfer session. DH is preferred; the plain
// algorithm is used when configured or when the daemon does not support DH.
func openSession(service dbus.BusObject, encryption string) (*ssSession, error) {
	if encryption == ssAlgPlain {
		return openPlainSession(service)
	}
	sess, err := openDHSession(service)
	if err == nil {
		return sess, nil
	}
	if dbusErrorName(err) == "org.freedesktop.DBus.Error.NotSupported" {
		log().Debug("secret service rejected dh session, using plain transfer")
		return openPlainSession(service)
	}
	return nil, err
}

func openPlainSession(service dbus.BusObject) (*ssSession, error) {
	var output dbus.Variant
	var path dbus.ObjectPath
	err := service.Call(ssServiceIface+".OpenSession", 0, ssAlgPlain, dbus.MakeVariant("")).Store(&output, &path)
	if err != nil {
		return nil, dbusErr("open-session", err)
	}
	return &ssSession{path: path}, nil
}

func openDHSession(service dbus.BusObject) (*ssSession, error) {
	priv, pub, err := newDHKeypair(rand.Reader)
	if err != nil {
		return nil, platformErr("open-session", err)
	}

	var output dbus.Variant
	var path dbus.ObjectPath
	err = service.Call(ssServiceIface+".OpenSession", 0, ssAlgDH, dbus.MakeVariant(pub.Bytes())).Store(&output, &path)
	if err != nil {
		return nil, dbusErr("open-session", err)
	}

	serverPub, ok := output.Value().([]byte)
	if !ok {
		return nil, &PlatformError{Op: "open-session", Msg: fmt.Sprintf("unexpected server key type %s", output.Signature())}
	}
	key, err := deriveSessionKey(priv, new(big.Int).SetBytes(serverPub))
	if err != nil {
		return nil, platformErr("open-session", err)
	}
	return &ssSession{path: path, key: key}, nil
}

// newDHKeypair draws a private exponent and computes the public value
func newDHKeypair(random io.Reader) (priv, pub *big.Int, err error) {
	limit := new(big.Int).Sub(ietf1024Prime, big.NewInt(2))
	priv, err = rand.Int(random, limit)
	if err != nil {
		return nil, nil, err
	}
	priv.Add(priv, big.NewInt(1))
	pub = new(big.Int).Exp(ietf1024Generator, priv, ietf1024Prime)
	return priv, pub, nil
}

// deriveSessionKey computes the shared secret and expands it with
// HKDF-SHA256 (no salt, no info) into an AES-128 key
func deriveSessionKey(priv, peer *big.Int) ([]byte, error) {
	upper := new(big.Int).Sub(ietf1024Prime, big.NewInt(1))
	if peer.Cmp(big.NewInt(1)) <= 0 || peer.Cmp(upper) >= 0 {
		return nil, errors.New("peer public key out of range")
	}
	shared := new(big.Int).Exp(peer, priv, ietf1024Prime)
	ikm := shared.FillBytes(make([]byte, ietf1024Bytes))

	key := make([]byte, 16)
	if _, err := io.ReadFull(hkdf.New(sha256.New, ikm, nil, nil), key); err != nil {
		return nil, err
	}
	return key, nil
}

func (s *ssSession) encrypt(secret []byte) (ssSecret, error) {
	if s.key == nil {
		return ssSecret{Session: s.path, Parameters: []byte{}, Value: secret, ContentType: ssContentType}, nil
	}
	block, err := aes.NewCipher(s.key)
	if err != nil {
		return ssSecret{}, err
	}
	iv := make([]byte, aes.BlockSize)
	if _, err := rand.Read(iv); err != nil {
		return ssSecret{}, err
	}
	padded := pkcs7Pad(secret, aes.BlockSize)
	out := make([]byte, len(padded))
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(out, padded)
	return ssSecret{Session: s.path, Parameters: iv, Value: out, ContentType: ssContentType}, nil
}

func (s *ssSession) decrypt(secret ssSecret) ([]byte, error) {
	if s.key == nil {
		return secret.Value, nil
	}
	if len(secret.Parameters) != aes.BlockSize {
		return nil, fmt.Errorf("secret has a %d byte iv", len(secret.Parameters))
	}
	if len(secret.Value) == 0 || len(secret.Value)%aes.BlockSize != 0 {
		return nil, fmt.Errorf("ciphertext length %d is not a multiple of the block size", len(secret.Value))
	}
	block, err := aes.NewCipher(s.key)
	if err != nil {
		return nil, err
	}
	out := make([]byte, len(secret.Value))
	cipher.NewCBCDecrypter(block, secret.Parameters).CryptBlocks(out, secret.Value)
	return pkcs7Unpad(out, aes.BlockSize)
}

func pkcs7Pad(data []byte, size int) []byte {
	n := size - len(data)%size
	return append(bytes.Clone(data), bytes.Repeat([]byte{byte(n)}, n)...)
}

func pkcs7Unpad(data []byte, size int) ([]byte, error) {
	if len(data) == 0 || len(data)%size != 0 {
		return nil, errors.New("invalid padded length")
	}
	n := int(data[len(data)-1])
	if n == 0 || n > size {
		return nil, errors.New("invalid padding")
	}
	for _, b := range data[len(data)-n:] {
		if int(b) != n {
			return nil, errors.New("invalid padding")
		}
	}
	return data[:len(data)-n], nil
}
