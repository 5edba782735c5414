package domain

// Favorites is an ordered collection of quotes, unique by ID.
// Insertion order is preserved; operations return new slices and never
// modify the receiver's backing array.
type Favorites []Quote

// IndexOf returns the position of the quote with the given id, or -1.
func (f Favorites) IndexOf(id string) int {
	for i, q := range f {
		if q.ID == id {
			return i
		}
	}

	return -1
}

// Contains reports whether a quote with the same id is present.
func (f Favorites) Contains(id string) bool {
	return f.IndexOf(id) >= 0
}

// Toggle removes the first quote sharing q's id, or appends q if none does.
// It returns the resulting collection and whether q is now a member.
func (f Favorites) Toggle(q Quote) (Favorites, bool) {
	idx := f.IndexOf(q.ID)
	if idx >= 0 {
		next := make(Favorites, 0, len(f)-1)
		next = append(next, f[:idx]...)
		next = append(next, f[idx+1:]...)

		return next, false
	}

	next := make(Favorites, 0, len(f)+1)
	next = append(next, f...)
	next = append(next, q)

	return next, true
}

// Dedupe drops later entries whose id was already seen, keeping first occurrences.
// Stored collections written by older builds may contain duplicates.
func (f Favorites) Dedupe() Favorites {
	seen := make(map[string]struct{}, len(f))
	out := make(Favorites, 0, len(f))

	for _, q := range f {
		if _, dup := seen[q.ID]; dup {
			continue
		}

		seen[q.ID] = struct{}{}
		out = append(out, q)
	}

	return out
}

// Clone returns an independent copy. A nil collection clones to an empty one.
func (f Favorites) Clone() Favorites {
	out := make(Favorites, len(f))
	copy(out, f)

	return out
}

// IDs returns the quote ids in collection order.
func (f Favorites) IDs() []string {
	ids := make([]string, len(f))
	for i, q := range f {
		ids[i] = q.ID
	}

	return ids
}
