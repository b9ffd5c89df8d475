package auth

import (
	"encoding/json"
	"time"
)

// Token is the bearer token returned by a successful login. It is held in
// memory only and never printed: String and MarshalJSON are redacted.
type Token struct {
	value    string
	issuedAt time.Time
}

// NewToken wraps a raw bearer token
func NewToken(value string) Token {
	return Token{value: value, issuedAt: time.Now()}
}

// Value returns the raw token for the Authorization header
func (t Token) Value() string {
	return t.value
}

// IssuedAt is when the login completed
func (t Token) IssuedAt() time.Time {
	return t.issuedAt
}

// IsZero reports whether the token is empty
func (t Token) IsZero() bool {
	return t.value == ""
}

func (t Token) String() string {
	if t.value == "" {
		return "Token(<empty>)"
	}
	return "Token(<redacted>)"
}

func (t Token) GoString() string {
	return t.String()
}

func (t Token) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}
