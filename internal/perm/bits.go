package perm

// Agent permission bits. Keep these stable; they are persisted on agent
// records and carried in tokens.
const (
	// ViewAllDescendants lets an agent see and bill every agent below it,
	// not only direct children.
	ViewAllDescendants int64 = 0x20

	// EditSettlement lets an agent change rates and cycle configuration for
	// agents it can see.
	EditSettlement int64 = 0x40
)

func Has(permissions, bit int64) bool { return permissions&bit == bit }
