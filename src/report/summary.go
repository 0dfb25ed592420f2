package report

import (
	"sort"

	"github.com/mosaicnetworks/blocksim/src/common"
	"github.com/sirupsen/logrus"
)

// MessageSummary aggregates the reports of every node about one payload.
type MessageSummary struct {
	ID          string
	Holders     int
	Reliability float64
	Latency     int
	RMR         float64
	Gossip      int
	IHave       int
	Graft       int
}

// Summary is the outcome of a run.
type Summary struct {
	Name     string
	Messages []MessageSummary

	// Averages over Messages.
	Reliability float64
	Holders     float64
	Latency     float64
	RMR         float64
	Gossip      float64
	IHave       float64
	Graft       float64

	MedianLatency float64
	ShortestPath  float64

	Degree    float64
	MinDegree int
	MaxDegree int

	Miners       int
	Transactions int
	LongestChain int
	AverageChain float64

	Reports  int
	Departed int
}

// Marshal ...
func (s *Summary) Marshal() ([]byte, error) {
	return common.Encode(s)
}

// Unmarshal ...
func (s *Summary) Unmarshal(data []byte) error {
	return common.Decode(data, s)
}

type messageTotals struct {
	holders int
	latency int
	gossip  int
	ihave   int
	graft   int
}

// Summarize aggregates node reports. expected is the number of nodes that
// should still be up, n(1-f), and is the denominator of every per-node
// average.
func Summarize(name string, reports []*NodeReport, expected float64) *Summary {
	s := &Summary{Name: name}
	if expected <= 0 {
		expected = 1
	}

	totals := make(map[string]*messageTotals)
	degree := 0
	roundSum := 0
	chainSum := 0
	s.MinDegree = -1

	for _, r := range reports {
		s.Reports++
		if !r.Active {
			s.Departed++
			continue
		}

		degree += r.Degree
		if r.Degree > s.MaxDegree {
			s.MaxDegree = r.Degree
		}
		if s.MinDegree < 0 || r.Degree < s.MinDegree {
			s.MinDegree = r.Degree
		}

		for _, m := range r.Messages {
			roundSum += m.Round
			t, ok := totals[m.ID]
			if !ok {
				t = &messageTotals{}
				totals[m.ID] = t
			}
			t.holders++
			if m.Round > t.latency {
				t.latency = m.Round
			}
			t.gossip += m.Gossip
			t.ihave += m.IHave
			t.graft += m.Graft
		}

		s.Transactions += r.TransactionsMade
		if len(r.Chain) > s.LongestChain {
			s.LongestChain = len(r.Chain)
		}
		chainSum += len(r.Chain)
		if r.Miner {
			s.Miners++
		}
	}
	if s.MinDegree < 0 {
		s.MinDegree = 0
	}
	s.Degree = float64(degree) / expected

	ids := make([]string, 0, len(totals))
	for id := range totals {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	latencies := make([]int, 0, len(ids))
	for _, id := range ids {
		t := totals[id]
		ms := MessageSummary{
			ID:          id,
			Holders:     t.holders,
			Reliability: float64(t.holders) / expected * 100,
			Latency:     t.latency,
			Gossip:      t.gossip,
			IHave:       t.ihave,
			Graft:       t.graft,
		}
		if t.holders > 1 {
			ms.RMR = float64(t.gossip)/float64(t.holders-1) - 1
		}
		s.Messages = append(s.Messages, ms)
		latencies = append(latencies, t.latency)

		s.Reliability += ms.Reliability
		s.Holders += float64(ms.Holders)
		s.Latency += float64(ms.Latency)
		s.RMR += ms.RMR
		s.Gossip += float64(ms.Gossip)
		s.IHave += float64(ms.IHave)
		s.Graft += float64(ms.Graft)
	}

	if n := float64(len(s.Messages)); n > 0 {
		s.Reliability /= n
		s.Holders /= n
		s.Latency /= n
		s.RMR /= n
		s.Gossip /= n
		s.IHave /= n
		s.Graft /= n
		s.ShortestPath = float64(roundSum) / n / expected
	}
	s.MedianLatency = common.Median(latencies)

	if s.LongestChain > 0 {
		s.AverageChain = float64(chainSum) / expected / float64(s.LongestChain) * 100
	}

	return s
}

// Log prints the summary, one debug line per payload and the aggregates at
// info level.
func (s *Summary) Log(logger *logrus.Entry) {
	for _, m := range s.Messages {
		logger.WithFields(logrus.Fields{
			"id":          m.ID,
			"reliability": m.Reliability,
			"nodes":       m.Holders,
			"latency":     m.Latency,
			"rmr":         m.RMR,
			"gossip":      m.Gossip,
			"ihave":       m.IHave,
			"graft":       m.Graft,
		}).Debug("Message")
	}

	logger.WithFields(logrus.Fields{
		"miners":        s.Miners,
		"transactions":  s.Transactions,
		"longest_chain": s.LongestChain,
		"average_chain": s.AverageChain,
	}).Info("Blockchain")

	logger.WithFields(logrus.Fields{
		"messages":       len(s.Messages),
		"reliability":    s.Reliability,
		"nodes":          s.Holders,
		"latency":        s.Latency,
		"median_latency": s.MedianLatency,
		"rmr":            s.RMR,
		"gossip":         s.Gossip,
		"ihave":          s.IHave,
		"graft":          s.Graft,
	}).Info("Average")

	logger.WithFields(logrus.Fields{
		"degree":        s.Degree,
		"min":           s.MinDegree,
		"max":           s.MaxDegree,
		"shortest_path": s.ShortestPath,
		"departed":      s.Departed,
	}).Info("Overlay")
}
