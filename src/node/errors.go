package node

import "fmt"

// UnknownPayloadError is returned by Deliver for payloads no handler claims.
// It aborts the simulation.
type UnknownPayloadError struct {
	Node    int
	Payload interface{}
}

func (e UnknownPayloadError) Error() string {
	return fmt.Sprintf("node %d: unknown payload %T", e.Node, e.Payload)
}

// IsUnknownPayload ...
func IsUnknownPayload(err error) bool {
	_, ok := err.(UnknownPayloadError)
	return ok
}
