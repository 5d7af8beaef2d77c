package auth

import (
	"errors"
	"testing"

	"github.com/Spandai/samantha-telegram-agent/pkg/config"
)

func testKeys() []*APIKeyInfo {
	return []*APIKeyInfo{
		{Name: "web", Key: "sk-web-0123456789", Enabled: true},
		{Name: "shortcuts", Key: "sk-ios-0123456789", Enabled: true, Users: []string{"42"}},
		{Name: "old", Key: "sk-old-0123456789", Enabled: false},
	}
}

func TestAPIKeyValidator_Validate(t *testing.T) {
	v := NewAPIKeyValidator(testKeys())

	tests := []struct {
		name     string
		key      string
		wantName string
		wantErr  error
	}{
		{"valid key", "sk-web-0123456789", "web", nil},
		{"scoped key", "sk-ios-0123456789", "shortcuts", nil},
		{"disabled key", "sk-old-0123456789", "", ErrDisabledKey},
		{"unknown key", "sk-nope", "", ErrInvalidKey},
		{"empty key", "", "", ErrInvalidKey},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			info, err := v.Validate(tt.key)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Validate(%q) error = %v, want %v", tt.key, err, tt.wantErr)
			}
			if err == nil && info.Name != tt.wantName {
				t.Errorf("Validate(%q) name = %q, want %q", tt.key, info.Name, tt.wantName)
			}
		})
	}
}

func TestAPIKeyValidator_Replace(t *testing.T) {
	v := NewAPIKeyValidator(testKeys())
	if v.Len() != 3 {
		t.Fatalf("Len() = %d, want 3", v.Len())
	}

	v.Replace([]*APIKeyInfo{{Name: "rotated", Key: "sk-new-0123456789", Enabled: true}})

	if v.Len() != 1 {
		t.Errorf("Len() = %d, want 1", v.Len())
	}
	if _, err := v.Validate("sk-web-0123456789"); !errors.Is(err, ErrInvalidKey) {
		t.Errorf("replaced key still valid: %v", err)
	}
	if _, err := v.Validate("sk-new-0123456789"); err != nil {
		t.Errorf("new key rejected: %v", err)
	}
}

func TestAPIKeyInfo_AllowsUser(t *testing.T) {
	open := &APIKeyInfo{Name: "web"}
	scoped := &APIKeyInfo{Name: "shortcuts", Users: []string{"42", "43"}}

	if !open.AllowsUser("7") {
		t.Error("unrestricted key must allow any user")
	}
	if !scoped.AllowsUser("43") {
		t.Error("scoped key must allow listed users")
	}
	if scoped.AllowsUser("7") {
		t.Error("scoped key must reject unlisted users")
	}
}

func TestKeysFromConfig(t *testing.T) {
	keys := KeysFromConfig(config.ServerConfig{
		APIKey: "sk-env-0123456789",
		APIKeys: []config.APIKeyConfig{
			{Name: "shortcuts", Key: "sk-ios-0123456789", Users: []string{"42"}},
			{Name: "old", Key: "sk-old-0123456789", Disabled: true},
		},
	})

	if len(keys) != 3 {
		t.Fatalf("got %d keys, want 3", len(keys))
	}
	if keys[0].Name != "env" || !keys[0].Enabled || len(keys[0].Users) != 0 {
		t.Errorf("unexpected env key %+v", keys[0])
	}
	if keys[1].Users[0] != "42" || !keys[1].Enabled {
		t.Errorf("unexpected scoped key %+v", keys[1])
	}
	if keys[2].Enabled {
		t.Error("disabled key must not be enabled")
	}

	if got := KeysFromConfig(config.ServerConfig{}); len(got) != 0 {
		t.Errorf("expected no keys, got %d", len(got))
	}
}
