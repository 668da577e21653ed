package utils

import (
	"crypto/rand"
	"math/big"
	"regexp"
)

const (
	inviteHashLength  = 12
	inviteHashCharset = "abcdefghijklmnopqrstuvwxyz0123456789"
)

var inviteHashPattern = regexp.MustCompile(`^[a-z0-9]{12}$`)

// GenerateInviteHash returns a random 12-char invite code (a-z, 0-9)
// used as the shareable project identifier.
func GenerateInviteHash() (string, error) {
	buf := make([]byte, inviteHashLength)
	max := big.NewInt(int64(len(inviteHashCharset)))
	for i := range buf {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		buf[i] = inviteHashCharset[n.Int64()]
	}
	return string(buf), nil
}

// ValidInviteHash reports whether s looks like an invite code.
func ValidInviteHash(s string) bool {
	return inviteHashPattern.MatchString(s)
}
