package blockchain

import (
	"github.com/mosaicnetworks/blocksim/src/common"
	"github.com/mosaicnetworks/blocksim/src/config"
	"github.com/sirupsen/logrus"
)

// Result is the outcome of Consensus.
type Result int

const (
	// Rejected blocks failed validation, or arrived at a cleared chain.
	Rejected Result = iota
	// Duplicate blocks were already known in the chain, a fork, or the orphan
	// pool.
	Duplicate
	// Extended means the block was appended to the main chain.
	Extended
	// ForkExtended means the block extended the tip of a known fork.
	ForkExtended
	// Forked means the block started a new fork rooted in the main chain.
	Forked
	// Orphaned means the parent is unknown; the block waits in the pool.
	Orphaned
)

// Accepted reports whether the block was attached somewhere.
func (r Result) Accepted() bool {
	return r == Extended || r == ForkExtended || r == Forked
}

func (r Result) String() string {
	switch r {
	case Rejected:
		return "Rejected"
	case Duplicate:
		return "Duplicate"
	case Extended:
		return "Extended"
	case ForkExtended:
		return "ForkExtended"
	case Forked:
		return "Forked"
	case Orphaned:
		return "Orphaned"
	default:
		return "Unknown"
	}
}

// Fork is a sequence of blocks branching off the main chain after position
// Base.
type Fork struct {
	Blocks []*Block
	Base   int
}

// Tip is the hash of the last block of the fork.
func (f *Fork) Tip() string {
	return f.Blocks[len(f.Blocks)-1].Hash
}

// Len is the length the main chain would have if it adopted this fork.
func (f *Fork) Len() int {
	return f.Base + 1 + len(f.Blocks)
}

// Blockchain is a node's local view of the ledger: the main chain, the forks
// competing with it, the orphans waiting for their parent, and the pool of
// unconfirmed transactions.
type Blockchain struct {
	difficulty   int
	maxNonce     int
	blockTxLimit int
	tieBreak     string
	maxOrphans   int
	maxMempool   int

	chain    []*Block
	position map[string]int // main chain hash => position

	forks     []*Fork          // first-seen order
	forkByTip map[string]*Fork // tip hash => fork

	orphans   []*Block
	orphanSet map[string]bool

	known map[string]bool // every hash ever placed in the chain or a fork

	mempool []Transaction

	logger *logrus.Entry
}

// NewBlockchain returns a chain holding only the genesis block.
func NewBlockchain(conf *config.Config, logger *logrus.Entry) *Blockchain {
	bc := &Blockchain{
		difficulty:   conf.Difficulty,
		maxNonce:     conf.MaxNonce,
		blockTxLimit: conf.BlockTxLimit,
		tieBreak:     conf.ForkTieBreak,
		maxOrphans:   conf.MaxOrphans,
		maxMempool:   conf.MaxMempool,
		logger:       logger,
	}
	bc.reset()
	bc.appendMain(NewGenesisBlock())
	return bc
}

func (bc *Blockchain) reset() {
	bc.chain = []*Block{}
	bc.position = make(map[string]int)
	bc.forks = []*Fork{}
	bc.forkByTip = make(map[string]*Fork)
	bc.orphans = []*Block{}
	bc.orphanSet = make(map[string]bool)
	bc.known = make(map[string]bool)
	bc.mempool = []Transaction{}
}

// Clear drops every block and transaction. It is used when a node churns out.
func (bc *Blockchain) Clear() {
	bc.reset()
}

// Chain returns the main chain.
func (bc *Blockchain) Chain() []*Block {
	return bc.chain
}

// Len ...
func (bc *Blockchain) Len() int {
	return len(bc.chain)
}

// Tip returns the last block of the main chain, or nil after Clear.
func (bc *Blockchain) Tip() *Block {
	if len(bc.chain) == 0 {
		return nil
	}
	return bc.chain[len(bc.chain)-1]
}

// Forks returns the forks in first-seen order.
func (bc *Blockchain) Forks() []*Fork {
	return bc.forks
}

// Orphans ...
func (bc *Blockchain) Orphans() []*Block {
	return bc.orphans
}

// Mempool returns the unconfirmed transactions, oldest first.
func (bc *Blockchain) Mempool() []Transaction {
	return bc.mempool
}

// InMainChain reports whether a block hash is part of the main chain.
func (bc *Blockchain) InMainChain(hash string) bool {
	_, ok := bc.position[hash]
	return ok
}

// AddTransaction appends a transaction to the mempool. When the pool is
// bounded and full, the oldest transaction is dropped first.
func (bc *Blockchain) AddTransaction(tx Transaction) error {
	if tx.ID == "" {
		return common.NewSimErr("Transaction", common.EmptyTransaction, "")
	}
	if bc.maxMempool > 0 && len(bc.mempool) >= bc.maxMempool {
		bc.mempool = bc.mempool[1:]
	}
	bc.mempool = append(bc.mempool, tx)
	return nil
}

// RemoveConfirmed drops from the mempool every transaction included in b. It
// runs for every block that joins the main chain, re-attached orphans and
// reorgs included.
func (bc *Blockchain) RemoveConfirmed(b *Block) {
	if len(bc.mempool) == 0 || len(b.Body.Transactions) == 0 {
		return
	}
	confirmed := make(map[string]bool, len(b.Body.Transactions))
	for _, tx := range b.Body.Transactions {
		confirmed[tx.ID] = true
	}
	pending := bc.mempool[:0:0]
	for _, tx := range bc.mempool {
		if !confirmed[tx.ID] {
			pending = append(pending, tx)
		}
	}
	bc.mempool = pending
}

// Mine builds a block from the oldest pending transactions and searches for a
// nonce meeting the difficulty, at most MaxNonce attempts. On success the
// block is appended to the main chain and its transactions leave the mempool.
func (bc *Blockchain) Mine(now int64) (*Block, bool) {
	tip := bc.Tip()
	if len(bc.mempool) == 0 || tip == nil {
		return nil, false
	}

	n := len(bc.mempool)
	if bc.blockTxLimit > 0 && n > bc.blockTxLimit {
		n = bc.blockTxLimit
	}
	txs := make([]Transaction, n)
	copy(txs, bc.mempool[:n])

	block := NewBlock(tip.Index()+1, txs, now, tip.Hash)
	for nonce := 0; nonce <= bc.maxNonce; nonce++ {
		block.Body.Nonce = nonce
		h, err := block.ComputeHash()
		if err != nil {
			bc.logger.WithError(err).Error("Computing block hash")
			return nil, false
		}
		if common.HasZeroPrefix(h, bc.difficulty) {
			block.Hash = h
			bc.appendMain(block)
			bc.mempool = bc.mempool[n:]
			bc.resolveForks()
			bc.retryOrphans()
			return block, true
		}
	}

	bc.logger.WithField("index", block.Index()).Debug("Nonce search exhausted")
	return nil, false
}

// Consensus validates a received block and attaches it to the main chain, to a
// fork, or to the orphan pool. The first matching case wins:
//
//  1. its parent is the tip: extend the main chain
//  2. its parent is a fork tip: extend that fork
//  3. its parent is elsewhere in the main chain: start a new fork there
//  4. otherwise: keep it as an orphan
//
// Every accepted block gives the orphans another chance, repeatedly, until
// none of them attaches.
func (bc *Blockchain) Consensus(b *Block) Result {
	if len(bc.chain) == 0 {
		return Rejected
	}
	if err := b.Verify(bc.difficulty); err != nil {
		bc.logger.WithError(err).Debug("Rejecting block")
		return Rejected
	}
	if bc.known[b.Hash] || bc.orphanSet[b.Hash] {
		return Duplicate
	}

	res := bc.attach(b)
	if res == Orphaned {
		bc.addOrphan(b)
		return res
	}
	bc.retryOrphans()
	return res
}

func (bc *Blockchain) attach(b *Block) Result {
	prev := b.PreviousHash()

	if prev == bc.Tip().Hash {
		bc.appendMain(b)
		bc.RemoveConfirmed(b)
		bc.resolveForks()
		return Extended
	}

	if f, ok := bc.forkByTip[prev]; ok {
		f.Blocks = append(f.Blocks, b)
		delete(bc.forkByTip, prev)
		bc.forkByTip[b.Hash] = f
		bc.known[b.Hash] = true
		bc.resolveForks()
		return ForkExtended
	}

	if pos, ok := bc.position[prev]; ok {
		bc.addFork(&Fork{Blocks: []*Block{b}, Base: pos})
		bc.known[b.Hash] = true
		bc.logger.WithField("base", pos).Debug("New fork")
		return Forked
	}

	return Orphaned
}

func (bc *Blockchain) appendMain(b *Block) {
	bc.position[b.Hash] = len(bc.chain)
	bc.chain = append(bc.chain, b)
	bc.known[b.Hash] = true
}

func (bc *Blockchain) addFork(f *Fork) {
	bc.forks = append(bc.forks, f)
	bc.forkByTip[f.Tip()] = f
}

func (bc *Blockchain) removeFork(f *Fork) {
	for i, g := range bc.forks {
		if g == f {
			bc.forks = append(bc.forks[:i], bc.forks[i+1:]...)
			break
		}
	}
	delete(bc.forkByTip, f.Tip())
}

func (bc *Blockchain) addOrphan(b *Block) {
	if bc.maxOrphans > 0 && len(bc.orphans) >= bc.maxOrphans {
		delete(bc.orphanSet, bc.orphans[0].Hash)
		bc.orphans = bc.orphans[1:]
	}
	bc.orphans = append(bc.orphans, b)
	bc.orphanSet[b.Hash] = true
}

func (bc *Blockchain) retryOrphans() {
	for attached := true; attached; {
		attached = false
		for i := 0; i < len(bc.orphans); i++ {
			o := bc.orphans[i]
			if bc.attach(o) == Orphaned {
				continue
			}
			bc.orphans = append(bc.orphans[:i], bc.orphans[i+1:]...)
			delete(bc.orphanSet, o.Hash)
			attached = true
			i--
		}
	}
}

// resolveForks adopts the longest fork if it is more than one block longer
// than the main chain. Equally long forks are ordered by the tie-break
// policy.
func (bc *Blockchain) resolveForks() {
	var best *Fork
	bestLen := len(bc.chain)
	for _, f := range bc.forks {
		l := f.Len()
		switch {
		case l > bestLen:
			best, bestLen = f, l
		case l == bestLen && best != nil &&
			bc.tieBreak == config.TieBreakHash && f.Tip() < best.Tip():
			best = f
		}
	}

	if best == nil || bestLen <= len(bc.chain)+1 {
		return
	}
	bc.reorg(best)
}

// reorg replaces the main chain suffix after f.Base with f. The displaced
// suffix becomes a fork itself, and forks rooted inside it are re-based onto
// the common ancestor so their lengths stay correct.
func (bc *Blockchain) reorg(f *Fork) {
	base := f.Base
	displaced := make([]*Block, len(bc.chain)-base-1)
	copy(displaced, bc.chain[base+1:])

	bc.removeFork(f)

	for _, g := range bc.forks {
		if g.Base > base {
			prefix := displaced[:g.Base-base]
			blocks := make([]*Block, 0, len(prefix)+len(g.Blocks))
			blocks = append(blocks, prefix...)
			g.Blocks = append(blocks, g.Blocks...)
			g.Base = base
		}
	}

	for _, b := range displaced {
		delete(bc.position, b.Hash)
	}
	bc.chain = bc.chain[:base+1]
	for _, b := range f.Blocks {
		bc.appendMain(b)
		bc.RemoveConfirmed(b)
	}

	if len(displaced) > 0 {
		bc.addFork(&Fork{Blocks: displaced, Base: base})
	}

	bc.logger.WithFields(logrus.Fields{
		"base":   base,
		"length": len(bc.chain),
		"tip":    common.Short(bc.Tip().Hash),
	}).Debug("Fork resolved")
}

// ValidateChain checks that every stored hash recomputes and that the
// previous-hash links hold, starting from GenesisPreviousHash.
func ValidateChain(chain []*Block) error {
	prev := GenesisPreviousHash
	for _, b := range chain {
		h, err := b.ComputeHash()
		if err != nil {
			return err
		}
		if h != b.Hash {
			return common.NewSimErr("Block", common.HashMismatch, common.Short(b.Hash))
		}
		if b.PreviousHash() != prev {
			return common.NewSimErr("Block", common.BrokenLink, common.Short(b.Hash))
		}
		prev = b.Hash
	}
	return nil
}

// IsValidChain ...
func IsValidChain(chain []*Block) bool {
	return ValidateChain(chain) == nil
}
