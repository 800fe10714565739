package usecase

import (
	"crypto/rand"
	"io"
)

// generateRedemptionCode creates a secure, random, and human-readable
// code for a redemption token. The staff terminal may scan it or type
// it, so the character set avoids ambiguous glyphs like O/0, I/1, l.
// Format: XXXX-XXXX-XXXX
func generateRedemptionCode() (string, error) {
	const chars = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
	const codeLength = 12

	buffer := make([]byte, codeLength)
	if _, err := io.ReadFull(rand.Reader, buffer); err != nil {
		return "", err
	}

	for i := 0; i < codeLength; i++ {
		buffer[i] = chars[int(buffer[i])%len(chars)]
	}

	return string(buffer[0:4]) + "-" + string(buffer[4:8]) + "-" + string(buffer[8:12]), nil
}
