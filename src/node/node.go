package node

import (
	"math/rand"
	"time"

	"github.com/mosaicnetworks/blocksim/src/blockchain"
	"github.com/mosaicnetworks/blocksim/src/broadcast"
	"github.com/mosaicnetworks/blocksim/src/churn"
	"github.com/mosaicnetworks/blocksim/src/common"
	"github.com/mosaicnetworks/blocksim/src/config"
	"github.com/mosaicnetworks/blocksim/src/net"
	"github.com/mosaicnetworks/blocksim/src/peers"
	"github.com/mosaicnetworks/blocksim/src/report"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

//Node defines a blocksim node. It is a kernel entity: everything it does is
//a reaction to a payload delivered by the kernel.
type Node struct {
	id     int
	conf   *config.Config
	logger *logrus.Entry

	core *Core

	trans  net.Transport
	rng    *rand.Rand
	ids    *common.IDGenerator
	roster *churn.Roster

	membership peers.Membership
	broadcast  broadcast.Strategy

	transactionsMade int
}

//NewNode is a factory method that returns a Node instance running the
//membership and broadcast strategies named in conf. grid is only required
//by the naive membership.
func NewNode(conf *config.Config,
	id int,
	trans net.Transport,
	rng *rand.Rand,
	ids *common.IDGenerator,
	roster *churn.Roster,
	grid *peers.Grid,
) (*Node, error) {

	logger := conf.Logger().WithField("node", id)

	n := &Node{
		id:     id,
		conf:   conf,
		logger: logger,
		core:   NewCore(id, conf, logger),
		trans:  trans,
		rng:    rng,
		ids:    ids,
		roster: roster,
	}

	switch conf.Membership {
	case config.Naive:
		if grid == nil {
			return nil, errors.New("naive membership requires a grid")
		}
		n.membership = peers.NewNaive(trans, conf, grid, rng, n, logger)
	case config.Dimple:
		n.membership = peers.NewDimple(trans, conf, rng, n, logger)
	default:
		n.membership = peers.NewBrahms(trans, conf, rng, n, logger)
	}

	bconf := broadcast.NewConfig(conf)
	switch conf.Broadcast {
	case config.Flood:
		n.broadcast = broadcast.NewFlood(trans, bconf, n.membership, n.onDeliver, logger)
	default:
		n.broadcast = broadcast.NewPlumTree(trans, bconf, n.membership, n.onDeliver, n.onLinkFailure, logger)
	}

	return n, nil
}

//Start bootstraps the membership and arms the end-of-run report
func (n *Node) Start() {
	n.membership.Start()
	n.trans.Schedule(net.TriggerReport{}, n.conf.ReportTime()-n.trans.Now())
}

//Deliver implements sim.Entity. A departed node only still answers the
//report trigger and passes the transaction token on.
func (n *Node) Deliver(payload interface{}) error {
	active := n.getState() == Active

	switch p := payload.(type) {
	case *net.GossipMessage:
		if active {
			n.broadcast.Deliver(p)
		}
	case net.MembershipMessage:
		if active {
			n.membership.Process(p)
		}
	case net.RepairTimeout, net.AckTimeout:
		if active {
			n.broadcast.Timeout(p)
		}
	case net.ViewRound, net.ResponseTimeout:
		if active {
			n.membership.Tick(p)
		}
	case net.MineTimeout:
		if active {
			n.mine(p.Attempt)
		}
	case net.BecomeMiner:
		if active {
			n.core.SetMiner()
			n.logger.Debug("Became miner")
		}
	case net.ChurnOut:
		if active {
			n.churnOut()
		}
	case net.CreateTransaction:
		n.createTransaction(active)
	case net.TriggerReport:
		n.sendReport(active)
	default:
		return UnknownPayloadError{Node: n.id, Payload: payload}
	}
	return nil
}

// ViewChanged implements peers.Listener.
func (n *Node) ViewChanged(view []int) {
	n.broadcast.SyncPeers(view)
}

// PeerDown implements peers.Listener.
func (n *Node) PeerDown(id int) {
	n.broadcast.Evict(id)
}

// onLinkFailure is called by the broadcast layer when a peer did not
// acknowledge in time. Only this side of the link forgets the peer.
func (n *Node) onLinkFailure(peer int) {
	n.logger.WithField("peer", peer).Debug("Link failure")
	n.membership.Evict(peer)
}

// onDeliver interprets payloads delivered for the first time.
func (n *Node) onDeliver(kind net.PayloadKind, id string, data []byte) {
	switch kind {
	case net.BlockPayload:
		var b blockchain.Block
		if err := b.Unmarshal(data); err != nil {
			n.logger.WithError(err).WithField("msg_id", id).Debug("Decoding block")
			return
		}
		n.core.ProcessBlock(&b)

	case net.TransactionPayload:
		if !n.core.Miner() {
			return
		}
		var tx blockchain.Transaction
		if err := tx.Unmarshal(data); err != nil {
			n.logger.WithError(err).WithField("msg_id", id).Debug("Decoding transaction")
			return
		}
		if n.core.AddTransaction(tx) {
			delay := time.Duration(n.rng.ExpFloat64() * float64(n.conf.MiningMean))
			n.trans.Schedule(net.MineTimeout{Attempt: n.core.Attempt()}, delay)
			n.logger.WithFields(logrus.Fields{
				"attempt": n.core.Attempt(),
				"delay":   delay,
			}).Debug("Start mining")
		}
	}
}

func (n *Node) mine(attempt int) {
	block, ok := n.core.Mine(attempt, int64(n.trans.Now()))
	if !ok {
		return
	}

	data, err := block.Marshal()
	if err != nil {
		n.logger.WithError(err).Error("Encoding block")
		return
	}

	id := n.ids.Next("B")
	n.logger.WithFields(logrus.Fields{
		"msg_id": id,
		"index":  block.Index(),
		"txs":    len(block.Transactions()),
	}).Debug("Mined block")

	n.broadcast.Broadcast(net.BlockPayload, id, data)
}

// createTransaction holds the transaction token: an active non-miner creates
// a transaction, then the token moves on to a random up node.
func (n *Node) createTransaction(active bool) {
	next, ok := n.roster.Random(n.rng)
	delay := time.Duration(n.rng.ExpFloat64() * float64(n.conf.TxMean))

	if active && !n.core.Miner() {
		tx := blockchain.NewTransaction(n.ids.Next("T"), n.id, int64(n.trans.Now()))
		data, err := tx.Marshal()
		if err != nil {
			n.logger.WithError(err).Error("Encoding transaction")
		} else {
			n.trans.Schedule(&net.GossipMessage{
				Type:   net.Broadcast,
				Kind:   net.TransactionPayload,
				Data:   data,
				ID:     tx.ID,
				Sender: n.id,
			}, n.conf.Lookahead)
			n.transactionsMade++
		}
	}

	if ok {
		n.trans.Send(next, net.CreateTransaction{}, delay)
	}
}

func (n *Node) churnOut() {
	n.roster.Depart(n.id)
	n.core.Clear()
	n.broadcast.Reset()
	n.membership.Reset()
	n.logger.Debug("Churned out")
}

func (n *Node) sendReport(active bool) {
	r := &report.NodeReport{
		Node:             n.id,
		Messages:         n.broadcast.Stats(),
		Degree:           n.broadcast.Degree(),
		TransactionsMade: n.transactionsMade,
		Chain:            n.core.ChainHashes(),
		Miner:            n.core.Miner(),
		Active:           active,
	}
	n.trans.SendTo(report.CollectorAddress, r, n.conf.Lookahead)
}

// ID ...
func (n *Node) ID() int {
	return n.id
}

// Core ...
func (n *Node) Core() *Core {
	return n.core
}

// Membership ...
func (n *Node) Membership() peers.Membership {
	return n.membership
}

// Broadcast ...
func (n *Node) Broadcast() broadcast.Strategy {
	return n.broadcast
}

// TransactionsMade ...
func (n *Node) TransactionsMade() int {
	return n.transactionsMade
}

// State ...
func (n *Node) State() State {
	return n.getState()
}
