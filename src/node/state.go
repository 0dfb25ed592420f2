package node

// State captures the state of a blocksim node: Active or Departed
type State uint32

const (
	//Active is the initial state of a node. It gossips, mines if it is a
	//miner, and takes part in membership.
	Active State = iota
	//Departed is a node churned out of the network. It ignores messages and
	//timers for the rest of the run.
	Departed
)

// String ...
func (s State) String() string {
	switch s {
	case Active:
		return "Active"
	case Departed:
		return "Departed"
	default:
		return "Unknown"
	}
}

// getState asks the roster, which is the only record of liveness.
func (n *Node) getState() State {
	if n.roster.IsActive(n.id) {
		return Active
	}
	return Departed
}
