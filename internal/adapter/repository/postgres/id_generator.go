
package postgres

import (
	"github.com/oklog/ulid/v2"
)

// ULIDGenerator issues ids for server-created rows: documents, journals
// and their lines. ULIDs sort by creation time, which keeps the b-tree
// indexes on these hot tables append-friendly.
type ULIDGenerator struct{}

// NewULIDGenerator creates a new ULIDGenerator.
func NewULIDGenerator() *ULIDGenerator {
	return &ULIDGenerator{}
}

// Generate returns a new ULID string.
func (g *ULIDGenerator) Generate() string {
	return ulid.Make().String()
}
