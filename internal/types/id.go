// README: Identifier type for rides, bookings, vehicles and users.
package types

import (
	"strings"

	"github.com/google/uuid"
)

type ID string

// NewID returns a 32 character hex identifier.
func NewID() ID {
	return ID(strings.ReplaceAll(uuid.NewString(), "-", ""))
}

func (id ID) String() string {
	return string(id)
}
