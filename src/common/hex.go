package common

import (
	"encoding/hex"
	"strings"
)

// EncodeToString returns the lowercase hex representation of hexBytes, without
// prefix. Proof-of-work difficulty is expressed on this form.
func EncodeToString(hexBytes []byte) string {
	return hex.EncodeToString(hexBytes)
}

// HasZeroPrefix reports whether the hex string starts with n '0' digits.
func HasZeroPrefix(hexString string, n int) bool {
	if n <= 0 {
		return true
	}
	if len(hexString) < n {
		return false
	}
	return strings.Count(hexString[:n], "0") == n
}

// Short truncates a hash for log output.
func Short(hexString string) string {
	if len(hexString) <= 10 {
		return hexString
	}
	return hexString[:10]
}
