package mysql

import (
	"crypto/sha256"
	"encoding/base64"
	"strings"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// newLetterID builds "<app>:<sha256 of raw record>:<uuidv7>": letters of the same
// record share a prefix, and the uuid keeps repeated failures apart.
func newLetterID(appID string, raw []byte) (string, error) {
	uid, err := uuid.NewV7()
	if err != nil {
		return "", errors.WithStack(err)
	}

	hash := sha256.Sum256(raw)

	const separator = ":"
	return strings.Join(
		[]string{
			appID,
			base64.RawURLEncoding.EncodeToString(hash[:]),
			uid.String(),
		},
		separator,
	), nil
}
