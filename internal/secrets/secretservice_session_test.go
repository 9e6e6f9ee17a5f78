package secrets

import (
	"bytes"
	"crypto/rand"
	"errors"
	"math/big"
	"testing"

	"github.com/godbus/dbus/v5"
)

func TestDeriveSessionKey_Agreement(t *testing.T) {
	clientPriv, clientPub, err := newDHKeypair(rand.Reader)
	if err != nil {
		t.Fatalf("client keypair: %v", err)
	}
	serverPriv, serverPub, err := newDHKeypair(rand.Reader)
	if err != nil {
		t.Fatalf("server keypair: %v", err)
	}

	clientKey, err := deriveSessionKey(clientPriv, serverPub)
	if err != nil {
		t.Fatalf("client derive: %v", err)
	}
	serverKey, err := deriveSessionKey(serverPriv, clientPub)
	if err != nil {
		t.Fatalf("server derive: %v", err)
	}

	if len(clientKey) != 16 {
		t.Errorf("Expected a 16 byte key, got %d", len(clientKey))
	}
	if !bytes.Equal(clientKey, serverKey) {
		t.Error("Both sides must derive the same key")
	}
}

func TestDeriveSessionKey_RejectsDegeneratePeer(t *testing.T) {
	priv, _, err := newDHKeypair(rand.Reader)
	if err != nil {
		t.Fatalf("keypair: %v", err)
	}
	for _, peer := range []*big.Int{
		big.NewInt(0),
		big.NewInt(1),
		new(big.Int).Sub(ietf1024Prime, big.NewInt(1)),
		ietf1024Prime,
	} {
		if _, err := deriveSessionKey(priv, peer); err == nil {
			t.Errorf("Expected peer %s to be rejected", peer.Text(16))
		}
	}
}

func TestSession_EncryptDecrypt(t *testing.T) {
	key := make([]byte, 16)
	if _, err := rand.Read(key); err != nil {
		t.Fatal(err)
	}
	sess := &ssSession{path: dbus.ObjectPath("/org/freedesktop/secrets/session/1"), key: key}

	for _, plain := range [][]byte{{}, []byte("hunter2"), bytes.Repeat([]byte{0xab}, 16), bytes.Repeat([]byte("x"), 33)} {
		secret, err := sess.encrypt(plain)
		if err != nil {
			t.Fatalf("encrypt: %v", err)
		}
		if secret.Session != sess.path || len(secret.Parameters) != 16 {
			t.Errorf("Unexpected secret envelope: %+v", secret)
		}
		if len(secret.Value)%16 != 0 || len(secret.Value) <= len(plain) {
			t.Errorf("Unexpected ciphertext length %d for %d bytes", len(secret.Value), len(plain))
		}
		got, err := sess.decrypt(secret)
		if err != nil {
			t.Fatalf("decrypt: %v", err)
		}
		if !bytes.Equal(got, plain) {
			t.Errorf("Expected %q, got %q", plain, got)
		}
	}
}

func TestSession_DecryptRejectsMalformed(t *testing.T) {
	sess := &ssSession{key: make([]byte, 16)}
	good, err := sess.encrypt([]byte("pw"))
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name   string
		secret ssSecret
	}{
		{"short iv", ssSecret{Parameters: good.Parameters[:8], Value: good.Value}},
		{"empty value", ssSecret{Parameters: good.Parameters}},
		{"partial block", ssSecret{Parameters: good.Parameters, Value: good.Value[:10]}},
		{"wrong key", func() ssSecret {
			other := &ssSession{key: bytes.Repeat([]byte{1}, 16)}
			s, _ := other.encrypt([]byte("pw"))
			return s
		}()},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// a wrong key yields garbage padding almost always; a valid-looking
			// result must at least not equal the plaintext
			got, err := sess.decrypt(tt.secret)
			if err == nil && bytes.Equal(got, []byte("pw")) {
				t.Error("Expected malformed secret to be rejected")
			}
		})
	}
}

func TestSession_Plain(t *testing.T) {
	sess := &ssSession{path: "/s/plain"}
	secret, err := sess.encrypt([]byte("clear"))
	if err != nil {
		t.Fatal(err)
	}
	if string(secret.Value) != "clear" || len(secret.Parameters) != 0 || secret.ContentType != ssContentType {
		t.Errorf("Unexpected plain secret: %+v", secret)
	}
	got, err := sess.decrypt(secret)
	if err != nil || string(got) != "clear" {
		t.Errorf("Expected 'clear', got %q (%v)", got, err)
	}
}

func TestPKCS7(t *testing.T) {
	padded := pkcs7Pad([]byte("abc"), 16)
	if len(padded) != 16 || padded[15] != 13 {
		t.Errorf("Unexpected padding: %v", padded)
	}
	full := pkcs7Pad(bytes.Repeat([]byte{1}, 16), 16)
	if len(full) != 32 || full[31] != 16 {
		t.Errorf("A full block must gain a whole padding block, got %d bytes", len(full))
	}

	bad := append(bytes.Repeat([]byte{0}, 15), 0)
	if _, err := pkcs7Unpad(bad, 16); err == nil {
		t.Error("Expected zero padding byte to be rejected")
	}
	inconsistent := append(bytes.Repeat([]byte{0}, 14), 3, 2)
	if _, err := pkcs7Unpad(inconsistent, 16); err == nil {
		t.Error("Expected inconsistent padding to be rejected")
	}
}

func TestDBusErrorName(t *testing.T) {
	err := dbusErr("open-session", dbus.Error{Name: "org.freedesktop.DBus.Error.NotSupported"})
	if dbusErrorName(err) != "org.freedesktop.DBus.Error.NotSupported" {
		t.Errorf("Expected error name to survive wrapping, got %q", dbusErrorName(err))
	}
	if !errors.Is(err, ErrPlatformFailure) {
		t.Errorf("Expected ErrPlatformFailure, got %v", err)
	}
	if dbusErrorName(errors.New("plain")) != "" {
		t.Error("Expected no name for a non-D-Bus error")
	}
}
