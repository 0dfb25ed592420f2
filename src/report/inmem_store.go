package report

import (
	"sort"
	"sync"

	cm "github.com/mosaicnetworks/blocksim/src/common"
)

// InmemStore implements the Store interface with maps. It is safe for
// concurrent use so that the runs of a sweep can share it.
type InmemStore struct {
	sync.RWMutex
	reports   map[string]map[int]*NodeReport
	summaries map[string]*Summary
}

// NewInmemStore ...
func NewInmemStore() *InmemStore {
	return &InmemStore{
		reports:   make(map[string]map[int]*NodeReport),
		summaries: make(map[string]*Summary),
	}
}

// SetNodeReport implements the Store interface.
func (s *InmemStore) SetNodeReport(run string, r *NodeReport) error {
	s.Lock()
	defer s.Unlock()
	if _, ok := s.reports[run]; !ok {
		s.reports[run] = make(map[int]*NodeReport)
	}
	s.reports[run][r.Node] = r
	return nil
}

// GetNodeReport implements the Store interface.
func (s *InmemStore) GetNodeReport(run string, node int) (*NodeReport, error) {
	s.RLock()
	defer s.RUnlock()
	r, ok := s.reports[run][node]
	if !ok {
		return nil, cm.NewSimErr("NodeReport", cm.KeyNotFound, string(reportKey(run, node)))
	}
	return r, nil
}

// NodeReports implements the Store interface.
func (s *InmemStore) NodeReports(run string) ([]*NodeReport, error) {
	s.RLock()
	defer s.RUnlock()
	res := []*NodeReport{}
	for _, r := range s.reports[run] {
		res = append(res, r)
	}
	sort.Slice(res, func(i, j int) bool { return res[i].Node < res[j].Node })
	return res, nil
}

// SetSummary implements the Store interface.
func (s *InmemStore) SetSummary(summary *Summary) error {
	s.Lock()
	defer s.Unlock()
	s.summaries[summary.Name] = summary
	return nil
}

// GetSummary implements the Store interface.
func (s *InmemStore) GetSummary(run string) (*Summary, error) {
	s.RLock()
	defer s.RUnlock()
	summary, ok := s.summaries[run]
	if !ok {
		return nil, cm.NewSimErr("Summary", cm.KeyNotFound, run)
	}
	return summary, nil
}

// Runs implements the Store interface.
func (s *InmemStore) Runs() ([]string, error) {
	s.RLock()
	defer s.RUnlock()
	res := []string{}
	for run := range s.summaries {
		res = append(res, run)
	}
	sort.Strings(res)
	return res, nil
}

// Close implements the Store interface.
func (s *InmemStore) Close() error {
	return nil
}

// StorePath implements the Store interface.
func (s *InmemStore) StorePath() string {
	return ""
}
