package utils

import (
	"crypto/rand"
	"encoding/base64"
	"time"
)

const (
	ShareTokenBytes = 32

	orderSuffixLen = 6
	// no 0/O or 1/I so numbers survive being read over the phone
	orderAlphabet = "23456789ABCDEFGHJKLMNPQRSTUVWXYZ"
)

// GenerateShareToken returns a URL-safe random token with 256 bits of entropy.
func GenerateShareToken() (string, error) {
	b := make([]byte, ShareTokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// GenerateOrderNumber returns a customer-facing number like ORD-20261018-K7Q2XM.
// The orders table enforces uniqueness.
func GenerateOrderNumber() string {
	return orderNumberAt(time.Now().UTC())
}

func orderNumberAt(now time.Time) string {
	b := make([]byte, orderSuffixLen)
	// crypto/rand.Read never returns an error on supported platforms
	_, _ = rand.Read(b)
	for i := range b {
		b[i] = orderAlphabet[int(b[i])%len(orderAlphabet)]
	}
	return "ORD-" + now.Format("20060102") + "-" + string(b)
}
