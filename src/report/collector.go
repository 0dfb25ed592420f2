package report

import (
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// Collector is the kernel entity receiving NodeReports. On Finalize it builds
// the Summary, prints it, and archives everything in its Store if it has one.
type Collector struct {
	name     string
	expected float64
	store    Store
	reports  []*NodeReport
	summary  *Summary
	logger   *logrus.Entry
}

// NewCollector ... store may be nil.
func NewCollector(name string, nodes int, failRate float64, store Store, logger *logrus.Entry) *Collector {
	return &Collector{
		name:     name,
		expected: float64(nodes) * (1 - failRate),
		store:    store,
		reports:  []*NodeReport{},
		logger:   logger,
	}
}

// Deliver implements sim.Entity.
func (c *Collector) Deliver(payload interface{}) error {
	switch p := payload.(type) {
	case *NodeReport:
		c.reports = append(c.reports, p)
		if c.store != nil {
			if err := c.store.SetNodeReport(c.name, p); err != nil {
				return errors.Wrapf(err, "archiving report of node %d", p.Node)
			}
		}
	case Finalize:
		c.summary = Summarize(c.name, c.reports, c.expected)
		c.summary.Log(c.logger)
		if c.store != nil {
			if err := c.store.SetSummary(c.summary); err != nil {
				return errors.Wrap(err, "archiving summary")
			}
		}
	default:
		return errors.Errorf("collector: unexpected payload %T", payload)
	}
	return nil
}

// Reports returns the reports received so far.
func (c *Collector) Reports() []*NodeReport {
	return c.reports
}

// Summary is nil until Finalize has been delivered.
func (c *Collector) Summary() *Summary {
	return c.summary
}
