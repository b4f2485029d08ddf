// Package textutil provides small text helpers shared by the ingestion
// pipeline.
package textutil

import (
	"crypto/md5"
	"encoding/hex"
	"unicode/utf8"
)

// Truncate cuts s to at most maxLen Unicode characters.
func Truncate(s string, maxLen int) string {
	if utf8.RuneCountInString(s) <= maxLen {
		return s
	}
	runes := []rune(s)
	return string(runes[:maxLen])
}

// HashString returns the hex MD5 digest of s. Used for content change
// detection, not for anything security sensitive.
func HashString(s string) string {
	hash := md5.Sum([]byte(s))
	return hex.EncodeToString(hash[:])
}
