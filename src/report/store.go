package report

// Store is an archive of finished runs, keyed by run name.
type Store interface {
	// SetNodeReport saves the report of one node.
	SetNodeReport(run string, r *NodeReport) error
	// GetNodeReport retrieves the report of one node.
	GetNodeReport(run string, node int) (*NodeReport, error)
	// NodeReports returns every report of a run, ordered by node.
	NodeReports(run string) ([]*NodeReport, error)
	// SetSummary saves the summary of a run under its name.
	SetSummary(s *Summary) error
	// GetSummary retrieves the summary of a run.
	GetSummary(run string) (*Summary, error)
	// Runs lists the names of the archived runs.
	Runs() ([]string, error)
	// Close closes the underlying database.
	Close() error
	// StorePath returns the filepath of the underlying database.
	StorePath() string
}
