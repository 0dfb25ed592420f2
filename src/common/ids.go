package common

import (
	"io"

	"github.com/google/uuid"
)

// IDGenerator derives transaction and message identifiers from the
// simulation's random source, so two runs with the same seed produce the same
// identifiers.
type IDGenerator struct {
	src io.Reader
}

// NewIDGenerator ...
func NewIDGenerator(src io.Reader) *IDGenerator {
	return &IDGenerator{src: src}
}

// Next returns a fresh identifier of the form <prefix>-<uuid>.
func (g *IDGenerator) Next(prefix string) string {
	u := uuid.Must(uuid.NewRandomFromReader(g.src))
	return prefix + "-" + u.String()
}
