package security

import (
	"github.com/oklog/ulid/v2"

	"github.com/arklim/library-staff-auth/internal/core/port"
)

// ULIDGenerator issues 26-character lexicographically sortable identifiers.
type ULIDGenerator struct{}

// NewULIDGenerator returns a generator backed by ulid.Make, which is monotonic and safe for concurrent use.
func NewULIDGenerator() ULIDGenerator {
	return ULIDGenerator{}
}

// NewID returns a new ULID string.
func (ULIDGenerator) NewID() string {
	return ulid.Make().String()
}

var _ port.IDGenerator = ULIDGenerator{}
