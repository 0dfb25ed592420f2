package blockchain

import (
	"fmt"

	"github.com/mosaicnetworks/blocksim/src/common"
	"github.com/mosaicnetworks/blocksim/src/crypto"
)

// GenesisPreviousHash is the previous-hash of the genesis block.
const GenesisPreviousHash = "0"

// BlockBody is the hashed part of a block.
type BlockBody struct {
	Index        int           `codec:"index"`
	Nonce        int           `codec:"nonce"`
	PreviousHash string        `codec:"previous_hash"`
	Timestamp    int64         `codec:"timestamp"`
	Transactions []Transaction `codec:"transactions"`
}

// Hash returns the lowercase hex SHA256 of the canonical encoding of the body.
func (bb *BlockBody) Hash() (string, error) {
	data, err := common.Encode(bb)
	if err != nil {
		return "", err
	}
	return crypto.SHA256Hex(data), nil
}

// Block is a BlockBody plus the hash its producer claims for it. A received
// block is only trusted once Verify succeeds.
type Block struct {
	Body BlockBody `codec:"body"`
	Hash string    `codec:"hash"`
}

// NewBlock ...
func NewBlock(index int, txs []Transaction, ts int64, previousHash string) *Block {
	body := BlockBody{
		Index:        index,
		PreviousHash: previousHash,
		Timestamp:    ts,
		Transactions: txs,
	}
	return &Block{Body: body}
}

// NewGenesisBlock returns the block every chain starts from.
func NewGenesisBlock() *Block {
	b := NewBlock(0, []Transaction{}, 0, GenesisPreviousHash)
	b.Hash, _ = b.ComputeHash()
	return b
}

// Index ...
func (b *Block) Index() int {
	return b.Body.Index
}

// PreviousHash ...
func (b *Block) PreviousHash() string {
	return b.Body.PreviousHash
}

// Transactions ...
func (b *Block) Transactions() []Transaction {
	return b.Body.Transactions
}

// ComputeHash recomputes the hash from the body, ignoring the stored one.
func (b *Block) ComputeHash() (string, error) {
	return b.Body.Hash()
}

// Verify checks that the stored hash recomputes and has difficulty leading
// zeros.
func (b *Block) Verify(difficulty int) error {
	h, err := b.ComputeHash()
	if err != nil {
		return err
	}
	if h != b.Hash {
		return common.NewSimErr("Block", common.HashMismatch, common.Short(b.Hash))
	}
	if !common.HasZeroPrefix(h, difficulty) {
		return common.NewSimErr("Block", common.InvalidProof, common.Short(b.Hash))
	}
	return nil
}

// Marshal returns the wire form, hash included.
func (b *Block) Marshal() ([]byte, error) {
	return common.Encode(b)
}

// Unmarshal ...
func (b *Block) Unmarshal(data []byte) error {
	return common.Decode(data, b)
}

func (b *Block) String() string {
	return fmt.Sprintf("Block{index=%d, txs=%d, hash=%s, prev=%s}",
		b.Index(), len(b.Body.Transactions), common.Short(b.Hash), common.Short(b.Body.PreviousHash))
}
