package secrets

import "testing"

func TestKeyutilsDescription(t *testing.T) {
	desc := keyutilsDescription("myapp", "alice@example.com")
	if desc != "credstore:alice@example.com@myapp" {
		t.Fatalf("Unexpected description %q", desc)
	}
	service, user, ok := parseKeyutilsDescription(desc)
	if !ok || service != "myapp" || user != "alice@example.com" {
		t.Errorf("Expected (myapp, alice@example.com), got (%q, %q, %v)", service, user, ok)
	}

	for _, bad := range []string{"other:alice@myapp", "credstore:alice", "credstore:@myapp", "credstore:alice@"} {
		if _, _, ok := parseKeyutilsDescription(bad); ok {
			t.Errorf("Expected %q to be rejected", bad)
		}
	}
}

func TestParseKeyDescribe(t *testing.T) {
	keyType, desc, ok := parseKeyDescribe("user;1000;1000;3f010000;credstore:alice@myapp")
	if !ok || keyType != "user" || desc != "credstore:alice@myapp" {
		t.Errorf("Unexpected parse: %q %q %v", keyType, desc, ok)
	}

	_, desc, ok = parseKeyDescribe("user;0;0;3f010000;with;semicolons")
	if !ok || desc != "with;semicolons" {
		t.Errorf("Expected description to keep semicolons, got %q", desc)
	}

	if _, _, ok := parseKeyDescribe("keyring;0;0"); ok {
		t.Error("Expected short describe output to be rejected")
	}
}

func TestMatchKeyutilsKey(t *testing.T) {
	tests := []struct {
		name    string
		desc    string
		service string
		target  *string
		account string
		ok      bool
	}{
		{"default layout", "credstore:alice@myapp", "myapp", nil, "alice", true},
		{"other service", "credstore:alice@other", "myapp", nil, "", false},
		{"foreign key", "ssh:agent", "myapp", nil, "", false},
		{"explicit target", "custom-key", "myapp", stringPtr("custom-key"), "", true},
		{"target mismatch", "credstore:alice@myapp", "myapp", stringPtr("custom-key"), "", false},
		{"target in default layout", "credstore:bob@myapp", "myapp", stringPtr("credstore:bob@myapp"), "bob", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			account, ok := matchKeyutilsKey(tt.desc, tt.service, tt.target)
			if ok != tt.ok || account != tt.account {
				t.Errorf("Expected (%q, %v), got (%q, %v)", tt.account, tt.ok, account, ok)
			}
		})
	}
}
