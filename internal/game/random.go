// internal/game/random.go
//
// Game code and target generation, both backed by crypto/rand.

package game

import (
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"math/big"
)

// CodeAlphabet excludes the visually ambiguous 0/O and 1/I.
const CodeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// GenerateCode returns a random game code of length n drawn from CodeAlphabet.
func GenerateCode(n int) (string, error) {
	code := make([]byte, n)
	max := big.NewInt(int64(len(CodeAlphabet)))
	for i := range code {
		v, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("generate code: %w", err)
		}
		code[i] = CodeAlphabet[v.Int64()]
	}
	return string(code), nil
}

// RandomTarget draws a target angle uniformly from [-TargetRange, TargetRange).
// crypto/rand keeps the target unpredictable to the guesser.
func RandomTarget() (float64, error) {
	var b [8]byte
	if _, err := rand.Read(b[:]); err != nil {
		return 0, fmt.Errorf("generate target: %w", err)
	}
	// 53 random bits -> [0,1)
	u := float64(binary.BigEndian.Uint64(b[:])>>11) / (1 << 53)
	return u*2*TargetRange - TargetRange, nil
}
