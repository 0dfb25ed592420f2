package broadcast

import (
	"sort"

	"github.com/mosaicnetworks/blocksim/src/net"
	"github.com/mosaicnetworks/blocksim/src/report"
)

// record is everything a node knows about one payload id. Counters exist as
// soon as the id is mentioned, the payload only once it is held.
type record struct {
	held   bool
	kind   net.PayloadKind
	data   []byte
	round  int
	gossip int
	ihave  int
	graft  int
}

// messageCache is the seen-message cache with its per-id counters.
type messageCache struct {
	records map[string]*record
}

func newMessageCache() *messageCache {
	return &messageCache{records: make(map[string]*record)}
}

func (c *messageCache) get(id string) *record {
	r, ok := c.records[id]
	if !ok {
		r = &record{}
		c.records[id] = r
	}
	return r
}

func (c *messageCache) has(id string) bool {
	r, ok := c.records[id]
	return ok && r.held
}

func (c *messageCache) store(id string, kind net.PayloadKind, data []byte, round int) *record {
	r := c.get(id)
	r.held = true
	r.kind = kind
	r.data = data
	r.round = round
	return r
}

func (c *messageCache) stats() []report.MessageReport {
	res := []report.MessageReport{}
	for id, r := range c.records {
		if !r.held {
			continue
		}
		res = append(res, report.MessageReport{
			ID:     id,
			Round:  r.round,
			Gossip: r.gossip,
			IHave:  r.ihave,
			Graft:  r.graft,
		})
	}
	sort.Slice(res, func(i, j int) bool { return res[i].ID < res[j].ID })
	return res
}

func (c *messageCache) reset() {
	c.records = make(map[string]*record)
}
