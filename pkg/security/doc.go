// Package security holds the access control of the HTTP API.
//
// Subpackage auth validates API keys sent as bearer tokens or in the
// X-API-Key header and scopes each key to a set of conversation users.
package security
