package util

import (
	"github.com/google/uuid"
)

// GenerateUUID returns a random v4 UUID string.
func GenerateUUID() string {
	return uuid.NewString()
}

// IsUUID reports whether s is a well-formed UUID. Purchase ids arriving from
// the gateway are checked with it before touching the database.
func IsUUID(s string) bool {
	_, err := uuid.Parse(s)
	return err == nil
}
