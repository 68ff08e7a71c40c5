package jwt

import "github.com/golang-jwt/jwt"

// Payload is the identity carried by tokens issued by the authentication service.
// The server only verifies these tokens; it never issues them to clients.
type Payload struct {
	jwt.StandardClaims

	// ID is the user id as known to the user directory.
	ID string `json:"id"`

	// Username is informational; authorization decisions use ID only.
	Username string `json:"username,omitempty"`
}
