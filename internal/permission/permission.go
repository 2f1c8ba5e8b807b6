// Package permission defines the closed capability set used to gate every
// privileged operation. Grants are kept as a uint64 bitset so membership
// and intersection checks are single instructions.
package permission

// Permission identifies one capability. The numeric value is stable: it is
// what the credential store persists and what the API exposes.
type Permission int

const (
	Visitor Permission = iota
	Member
	Organizer
	Admin

	permCount // keep last
)

func (p Permission) Valid() bool {
	return p >= 0 && p < permCount
}

func (p Permission) String() string {
	switch p {
	case Visitor:
		return "visitor"
	case Member:
		return "member"
	case Organizer:
		return "organizer"
	case Admin:
		return "admin"
	default:
		return "unknown"
	}
}

// Set is a bitset over Permission values.
type Set uint64

func NewSet(perms ...Permission) Set {
	var s Set
	for _, p := range perms {
		s = s.Add(p)
	}
	return s
}

// FromIDs builds a set from raw permission ids, silently skipping values
// outside the closed range.
func FromIDs(ids []int) Set {
	var s Set
	for _, id := range ids {
		s = s.Add(Permission(id))
	}
	return s
}

func (s Set) Add(p Permission) Set {
	if !p.Valid() {
		return s
	}
	return s | 1<<uint(p)
}

func (s Set) Has(p Permission) bool {
	if !p.Valid() {
		return false
	}
	return s&(1<<uint(p)) != 0
}

// Intersects reports whether any capability is shared between both sets.
// This is the gate's OR semantics: one match authorizes.
func (s Set) Intersects(other Set) bool {
	return s&other != 0
}

// IDs returns the contained permission ids in ascending order.
func (s Set) IDs() []int {
	ids := make([]int, 0, permCount)
	for p := Permission(0); p < permCount; p++ {
		if s.Has(p) {
			ids = append(ids, int(p))
		}
	}
	return ids
}
