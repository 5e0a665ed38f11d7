package auth

import (
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"golang.org/x/crypto/bcrypt"
)

// localHashCost is deliberately conservative and is never request-controlled.
const localHashCost = 8

const dateLayout = "2006-01-02"

// bcrypt digests look like "$2a$08$<22 salt chars><31 hash chars>"; the
// first 29 bytes carry the algorithm, cost and salt.
const bcryptSaltPrefixLen = 29

// hashSecret produces the bcrypt digest of a secret together with its
// cost+salt prefix, stored alongside the digest.
func hashSecret(secret string) (hash, salt string, err error) {
	if secret == "" {
		return "", "", errors.New("secret is empty")
	}
	digest, err := bcrypt.GenerateFromPassword([]byte(secret), localHashCost)
	if err != nil {
		return "", "", err
	}
	h := string(digest)
	if len(h) < bcryptSaltPrefixLen {
		return "", "", errors.New("malformed bcrypt digest")
	}
	return h, h[:bcryptSaltPrefixLen], nil
}

// verifySecret reports whether the secret matches the stored digest.
// bcrypt compares in constant time.
func verifySecret(hash, secret string) bool {
	if hash == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(secret)) == nil
}

// deriveTokenValue builds the opaque bearer string for a session: a fresh
// bcrypt digest over the canonical binding of owner, address and expiry,
// rendered as hex. Two derivations over identical inputs differ because
// bcrypt salts are random.
func deriveTokenValue(username, clientIP string, validUntil time.Time) (string, error) {
	canonical := fmt.Sprintf("%s@%s;valid_until:%s", username, clientIP, validUntil.Format(dateLayout))
	digest, err := bcrypt.GenerateFromPassword([]byte(canonical), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return hex.EncodeToString(digest), nil
}

// dateOnly truncates a timestamp to its UTC calendar day. Token expiry is
// evaluated at day granularity: a token is valid through its expiry date.
func dateOnly(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
