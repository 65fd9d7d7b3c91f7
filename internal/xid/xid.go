package xid

import (
	"github.com/google/uuid"
)

// New returns an opaque document id. The prefix names the collection so ids
// stay recognisable in logs.
func New(prefix string) string {
	id, err := uuid.NewV7()
	if err != nil {
		id = uuid.New()
	}
	if prefix == "" {
		return id.String()
	}
	return prefix + "_" + id.String()
}
