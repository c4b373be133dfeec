package models

// Identity is a provisioned player account. The roster is fixed at startup and never
// mutated by the service.
type Identity struct {
	ID             string `json:"id" yaml:"id"`
	DisplayName    string `json:"display_name" yaml:"display_name"`
	CredentialHash string `json:"-" yaml:"password_hash"`
}

// SessionClaims is the signed payload of a session token.
type SessionClaims struct {
	IdentityID string `json:"sub"`
	IssuedAt   int64  `json:"iat"`
}
