package auth

import (
	"errors"
	"sync"

	"github.com/Spandai/samantha-telegram-agent/pkg/config"
)

var (
	// ErrInvalidKey is returned for unknown keys.
	ErrInvalidKey = errors.New("invalid API key")

	// ErrDisabledKey is returned for keys configured with disabled: true.
	ErrDisabledKey = errors.New("API key disabled")
)

// APIKeyValidator validates API keys against a configured set of keys.
// The set can be swapped at runtime with Replace.
type APIKeyValidator struct {
	mu   sync.RWMutex
	keys map[string]*APIKeyInfo
}

// NewAPIKeyValidator creates a new API key validator with the given keys
func NewAPIKeyValidator(keys []*APIKeyInfo) *APIKeyValidator {
	v := &APIKeyValidator{}
	v.Replace(keys)
	return v
}

// KeysFromConfig converts the server key configuration. A non-empty
// single APIKey is added as an unrestricted key named "env".
func KeysFromConfig(cfg config.ServerConfig) []*APIKeyInfo {
	keys := make([]*APIKeyInfo, 0, len(cfg.APIKeys)+1)
	if cfg.APIKey != "" {
		keys = append(keys, &APIKeyInfo{Name: "env", Key: cfg.APIKey, Enabled: true})
	}
	for _, k := range cfg.APIKeys {
		keys = append(keys, &APIKeyInfo{
			Name:    k.Name,
			Key:     k.Key,
			Enabled: !k.Disabled,
			Users:   k.Users,
		})
	}
	return keys
}

// Validate checks if the given API key is valid and returns its info
func (v *APIKeyValidator) Validate(key string) (*APIKeyInfo, error) {
	v.mu.RLock()
	defer v.mu.RUnlock()

	info, ok := v.keys[key]
	if !ok {
		return nil, ErrInvalidKey
	}
	if !info.Enabled {
		return nil, ErrDisabledKey
	}
	return info, nil
}

// Len returns the number of configured keys, disabled ones included.
func (v *APIKeyValidator) Len() int {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return len(v.keys)
}

// Replace swaps the whole key set.
func (v *APIKeyValidator) Replace(keys []*APIKeyInfo) {
	keyMap := make(map[string]*APIKeyInfo, len(keys))
	for _, key := range keys {
		keyMap[key.Key] = key
	}

	v.mu.Lock()
	defer v.mu.Unlock()
	v.keys = keyMap
}
