package utils

import (
	"crypto/rand"
	"encoding/hex"
	"strings"
)

// GenerateCode returns n random bytes hex-encoded, so the result is
// 2*n characters long.
func GenerateCode(n int) (string, error) {
	byt := make([]byte, n)
	if _, err := rand.Read(byt); err != nil {
		return "", err
	}
	return strings.ToUpper(hex.EncodeToString(byt)), nil
}

// GenerateOTP returns a numeric reference code of the given length.
func GenerateOTP(length int) (string, error) {
	const digits = "0123456789"

	code := make([]byte, length)
	if _, err := rand.Read(code); err != nil {
		return "", err
	}

	for i := range code {
		code[i] = digits[int(code[i])%len(digits)]
	}

	return string(code), nil
}
