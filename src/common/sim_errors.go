package common

import "fmt"

// SimErrType enumerates the local, non-fatal error conditions raised by the
// protocol state machines.
type SimErrType uint32

const (
	// KeyNotFound ...
	KeyNotFound SimErrType = iota
	// InvalidProof is a block whose stored hash does not meet the difficulty.
	InvalidProof
	// HashMismatch is a block whose stored hash does not recompute.
	HashMismatch
	// BrokenLink is a chain where a previous-hash does not match.
	BrokenLink
	// EmptyTransaction ...
	EmptyTransaction
)

// SimErr ...
type SimErr struct {
	dataType string
	errType  SimErrType
	key      string
}

// NewSimErr ...
func NewSimErr(dataType string, errType SimErrType, key string) SimErr {
	return SimErr{
		dataType: dataType,
		errType:  errType,
		key:      key,
	}
}

// Error ...
func (e SimErr) Error() string {
	m := ""
	switch e.errType {
	case KeyNotFound:
		m = "Not Found"
	case InvalidProof:
		m = "Invalid Proof"
	case HashMismatch:
		m = "Hash Mismatch"
	case BrokenLink:
		m = "Broken Link"
	case EmptyTransaction:
		m = "Empty Transaction"
	}

	return fmt.Sprintf("%s, %s, %s", e.dataType, e.key, m)
}

// IsSimErr checks that an error is of type SimErr and that its code matches
// the provided SimErrType.
func IsSimErr(err error, t SimErrType) bool {
	simErr, ok := err.(SimErr)
	return ok && simErr.errType == t
}
