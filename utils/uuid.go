package utils

import (
	"github.com/google/uuid"
)

// GenerateID returns a new unique identifier string
func GenerateID() string {
	return uuid.New().String()
}

// GeneratePrefixedID returns a unique identifier with a readable prefix, e.g. "conn-<uuid>"
func GeneratePrefixedID(prefix string) string {
	return prefix + "-" + uuid.NewString()
}
