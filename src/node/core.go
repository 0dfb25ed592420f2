package node

import (
	"github.com/mosaicnetworks/blocksim/src/blockchain"
	"github.com/mosaicnetworks/blocksim/src/config"
	"github.com/sirupsen/logrus"
)

// Core is the chain-keeping part of a node: the Blockchain, the mempool it
// holds, and the mining state machine. It does not talk to the network.
type Core struct {
	id int

	// chain is the local copy of the blockchain, forks, orphans and mempool
	// included.
	chain *blockchain.Blockchain

	// miner nodes keep received transactions and mine blocks out of them.
	miner bool

	// mining is set while a MineTimeout is pending. attempt numbers mining
	// attempts, so that the timeout of an interrupted attempt is ignored.
	mining  bool
	attempt int

	blockTxLimit int

	logger *logrus.Entry
}

// NewCore is a factory method that returns a new Core object
func NewCore(id int, conf *config.Config, logger *logrus.Entry) *Core {
	return &Core{
		id:           id,
		chain:        blockchain.NewBlockchain(conf, logger),
		blockTxLimit: conf.BlockTxLimit,
		logger:       logger,
	}
}

// Chain returns the underlying Blockchain.
func (c *Core) Chain() *blockchain.Blockchain {
	return c.chain
}

// Miner ...
func (c *Core) Miner() bool {
	return c.miner
}

// SetMiner turns the node into a miner.
func (c *Core) SetMiner() {
	c.miner = true
}

// Mining reports whether a mining attempt is in progress.
func (c *Core) Mining() bool {
	return c.mining
}

// Attempt is the number of the current or last mining attempt.
func (c *Core) Attempt() int {
	return c.attempt
}

// AddTransaction keeps a received transaction if the node is a miner. It
// returns true when the mempool just reached a full block and a new mining
// attempt starts; the caller then arms the MineTimeout.
func (c *Core) AddTransaction(tx blockchain.Transaction) bool {
	if !c.miner {
		return false
	}
	if err := c.chain.AddTransaction(tx); err != nil {
		c.logger.WithError(err).Debug("Rejecting transaction")
		return false
	}
	if c.mining || len(c.chain.Mempool()) < c.blockTxLimit {
		return false
	}
	c.mining = true
	c.attempt++
	return true
}

// ProcessBlock runs consensus on a received block. An accepted block
// interrupts the mining attempt in progress. The Blockchain confirms the
// transactions of every block that becomes canonical.
func (c *Core) ProcessBlock(b *blockchain.Block) blockchain.Result {
	res := c.chain.Consensus(b)

	c.logger.WithFields(logrus.Fields{
		"index":  b.Index(),
		"result": res.String(),
	}).Debug("Consensus")

	if res.Accepted() {
		c.mining = false
	}
	return res
}

// Mine ends mining attempt attempt. Stale attempts are ignored. now is the
// block timestamp.
func (c *Core) Mine(attempt int, now int64) (*blockchain.Block, bool) {
	if !c.mining || attempt != c.attempt {
		return nil, false
	}
	c.mining = false
	return c.chain.Mine(now)
}

// Clear drops the chain, forks, orphans and mempool, and stops mining.
func (c *Core) Clear() {
	c.chain.Clear()
	c.mining = false
}

// ChainHashes returns the hashes of the main chain, genesis first.
func (c *Core) ChainHashes() []string {
	chain := c.chain.Chain()
	res := make([]string, len(chain))
	for i, b := range chain {
		res[i] = b.Hash
	}
	return res
}
