package leasing

import "github.com/xraph/leasing/id"

// ID is the primary identifier type for all Leasing entities.
type ID = id.ID

// Prefix identifies the entity type encoded in a TypeID.
type Prefix = id.Prefix
