package crypto

import (
	"crypto/sha256"

	"github.com/mosaicnetworks/blocksim/src/common"
)

// SHA256 returns the SHA256 hash of the data.
func SHA256(data []byte) []byte {
	hasher := sha256.New()
	hasher.Write(data)
	hash := hasher.Sum(nil)
	return hash
}

// SHA256Hex returns the lowercase hex form of SHA256(data), which is the form
// blocks are identified by.
func SHA256Hex(data []byte) string {
	return common.EncodeToString(SHA256(data))
}
