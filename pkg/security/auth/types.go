package auth

import "slices"

// APIKeyInfo represents an API key with metadata
type APIKeyInfo struct {
	Name    string
	Key     string
	Enabled bool

	// Users lists the conversation users the key may act for. Empty means
	// any user.
	Users []string
}

// AllowsUser reports whether the key may read or act for userID.
func (i *APIKeyInfo) AllowsUser(userID string) bool {
	return len(i.Users) == 0 || slices.Contains(i.Users, userID)
}

// Validator validates API keys.
type Validator interface {
	Validate(key string) (*APIKeyInfo, error)
}
