package stitch

import "github.com/stitchhq/stitch/id"

// ID is the primary identifier type for all stitch entities.
type ID = id.ID

// Prefix identifies the entity type encoded in a TypeID.
type Prefix = id.Prefix
