package payment

import (
	"encoding/base64"

	"github.com/google/uuid"
)

// NewAuthToken returns a fresh random token for LockFunds: the base64
// encoding of a version 4 UUID string.
func NewAuthToken() (string, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString([]byte(id.String())), nil
}
