// Package randutil generates random strings for test data such as throwaway
// usernames and email local parts.
package randutil

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"strconv"
	"strings"
)

// Alphabet is the character set drawn from. It skips 'a' and 'X' through 'Z'.
const Alphabet = "bcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVW"

var alphabetSize = big.NewInt(int64(len(Alphabet)))

func pick() (byte, error) {
	n, err := rand.Int(rand.Reader, alphabetSize)
	if err != nil {
		return 0, fmt.Errorf("reading random source: %w", err)
	}
	return Alphabet[n.Int64()], nil
}

// ASCIIString returns n characters drawn uniformly from Alphabet.
func ASCIIString(n int) (string, error) {
	if n < 0 {
		return "", fmt.Errorf("negative length %d", n)
	}
	b := make([]byte, n)
	for i := range b {
		c, err := pick()
		if err != nil {
			return "", err
		}
		b[i] = c
	}
	return string(b), nil
}

// CodePoints draws n characters like ASCIIString but renders each as its
// decimal code point, concatenated, so the result has between 2n and 3n digits.
func CodePoints(n int) (string, error) {
	if n < 0 {
		return "", fmt.Errorf("negative length %d", n)
	}
	var sb strings.Builder
	for i := 0; i < n; i++ {
		c, err := pick()
		if err != nil {
			return "", err
		}
		sb.WriteString(strconv.Itoa(int(c)))
	}
	return sb.String(), nil
}

// MustASCIIString is ASCIIString for callers that cannot handle an error.
func MustASCIIString(n int) string {
	s, err := ASCIIString(n)
	if err != nil {
		panic(err)
	}
	return s
}
