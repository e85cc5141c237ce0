package capture

import "strings"

// Kind identifies a capture buffer kind.
type Kind uint8

const (
	// KindSpawns captures entity spawn candidates.
	KindSpawns Kind = 1 << iota
	// KindDrops captures item drops grouped by contributing owner.
	KindDrops
	// KindBlocks captures block changes.
	KindBlocks
)

// AllKinds lists every kind in a stable order.
var AllKinds = []Kind{KindSpawns, KindDrops, KindBlocks}

func (k Kind) String() string {
	switch k {
	case KindSpawns:
		return "spawns"
	case KindDrops:
		return "drops"
	case KindBlocks:
		return "blocks"
	default:
		return "unknown"
	}
}

// Set is a bitset of capture kinds.
type Set uint8

// NewSet builds a set from kinds.
func NewSet(kinds ...Kind) Set {
	var s Set
	return s.With(kinds...)
}

// Has reports whether k is in the set.
func (s Set) Has(k Kind) bool {
	return s&Set(k) != 0
}

// With returns the set with kinds added.
func (s Set) With(kinds ...Kind) Set {
	for _, k := range kinds {
		s |= Set(k)
	}
	return s
}

// Without returns the set with kinds removed.
func (s Set) Without(kinds ...Kind) Set {
	for _, k := range kinds {
		s &^= Set(k)
	}
	return s
}

// Kinds returns the members in AllKinds order.
func (s Set) Kinds() []Kind {
	var out []Kind
	for _, k := range AllKinds {
		if s.Has(k) {
			out = append(out, k)
		}
	}
	return out
}

func (s Set) String() string {
	if s == 0 {
		return "none"
	}
	names := make([]string, 0, len(AllKinds))
	for _, k := range s.Kinds() {
		names = append(names, k.String())
	}
	return strings.Join(names, "|")
}
