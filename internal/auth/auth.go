// Package auth implements the session authentication gate's
// Authenticator collaborator.
package auth

import "crypto/subtle"

// Authenticator verifies a username/password-hash pair presented by an
// Authenticate command. Implementations must not leak timing
// information about partial matches.
type Authenticator interface {
	Authenticate(username, passwordHash string) bool
}

// StaticTokenAuthenticator accepts any username paired with a single
// configured bearer token, compared in constant time. This replaces the
// source's "username == password" placeholder (see DESIGN.md's Open
// Question decision) with a credential scheme that does not require a
// user database.
type StaticTokenAuthenticator struct {
	token string
}

// NewStaticTokenAuthenticator creates an authenticator that accepts
// passwordHash values equal to token.
func NewStaticTokenAuthenticator(token string) *StaticTokenAuthenticator {
	return &StaticTokenAuthenticator{token: token}
}

// Authenticate ignores username and compares passwordHash to the
// configured token in constant time.
func (a *StaticTokenAuthenticator) Authenticate(_ string, passwordHash string) bool {
	if len(passwordHash) != len(a.token) {
		// still run a comparison so the call's timing does not leak length.
		subtle.ConstantTimeCompare([]byte(passwordHash), []byte(passwordHash))
		return false
	}
	return subtle.ConstantTimeCompare([]byte(passwordHash), []byte(a.token)) == 1
}

// CredentialMapAuthenticator accepts a fixed set of username/token
// pairs, for deployments with more than one named viewer.
type CredentialMapAuthenticator struct {
	credentials map[string]string
}

// NewCredentialMapAuthenticator creates an authenticator backed by a
// username -> token map.
func NewCredentialMapAuthenticator(credentials map[string]string) *CredentialMapAuthenticator {
	cp := make(map[string]string, len(credentials))
	for k, v := range credentials {
		cp[k] = v
	}
	return &CredentialMapAuthenticator{credentials: cp}
}

// Authenticate compares passwordHash against the token registered for
// username, in constant time.
func (a *CredentialMapAuthenticator) Authenticate(username, passwordHash string) bool {
	want, ok := a.credentials[username]
	if !ok {
		// compare against something of matching length so lookup misses
		// and wrong-password misses take similar time.
		subtle.ConstantTimeCompare([]byte(passwordHash), []byte(passwordHash))
		return false
	}
	return subtle.ConstantTimeCompare([]byte(passwordHash), []byte(want)) == 1
}
