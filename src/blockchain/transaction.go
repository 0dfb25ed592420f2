package blockchain

import (
	"fmt"

	"github.com/mosaicnetworks/blocksim/src/common"
)

// Transaction is an opaque, immutable payload authored by a node.
type Transaction struct {
	Author    int    `codec:"author"`
	Content   string `codec:"content"`
	Timestamp int64  `codec:"timestamp"`
	ID        string `codec:"trans_id"`
}

// NewTransaction creates a transaction stamped with the virtual time ts (in
// nanoseconds).
func NewTransaction(id string, author int, ts int64) Transaction {
	return Transaction{
		Author:    author,
		Content:   fmt.Sprintf("transaction %s from node %d at %d", id, author, ts),
		Timestamp: ts,
		ID:        id,
	}
}

// Marshal ...
func (t *Transaction) Marshal() ([]byte, error) {
	return common.Encode(t)
}

// Unmarshal ...
func (t *Transaction) Unmarshal(data []byte) error {
	return common.Decode(data, t)
}
