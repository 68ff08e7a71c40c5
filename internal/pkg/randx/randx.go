/*
Package randx generates identifiers: UUIDs for persisted records and short
cryptographically random Base62 tokens for live sessions.
*/
package randx

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"

	"github.com/google/uuid"
)

const (
	// Base62Chars defines the character set used for Base62 encoding (0-9, A-Z, a-z).
	Base62Chars = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz"

	// Base62Len is the number of characters in Base62Chars.
	Base62Len = int64(len(Base62Chars))

	// SessionIDLength is the length of the random part of a session id.
	SessionIDLength = 16

	// SessionIDPrefix marks live-session ids so they are never confused with record ids.
	SessionIDPrefix = "sess_"
)

// Base62 returns n cryptographically random Base62 characters.
func Base62(n int) (string, error) {
	result := make([]byte, n)

	for i := range n {
		num, err := rand.Int(rand.Reader, big.NewInt(Base62Len))
		if err != nil {
			return "", fmt.Errorf("failed to generate random number: %w", err)
		}
		result[i] = Base62Chars[num.Int64()]
	}

	return string(result), nil
}

// SessionID generates an id for a live connection.
func SessionID() (string, error) {
	raw, err := Base62(SessionIDLength)
	if err != nil {
		return "", err
	}
	return SessionIDPrefix + raw, nil
}

// IsValidSessionID reports whether id has the shape produced by SessionID.
func IsValidSessionID(id string) bool {
	raw, ok := strings.CutPrefix(id, SessionIDPrefix)
	if !ok || len(raw) != SessionIDLength {
		return false
	}

	for _, char := range raw {
		if !strings.ContainsRune(Base62Chars, char) {
			return false
		}
	}
	return true
}

// RecordID generates a UUID v4 string for rooms, conversations and messages.
func RecordID() string {
	return uuid.NewString()
}

// IsValidRecordID reports whether id parses as a UUID.
func IsValidRecordID(id string) bool {
	return uuid.Validate(id) == nil
}
