package pagination

// IDSet tracks the ids already present in a loaded list.
type IDSet map[string]struct{}

// Has reports whether id is in the set.
func (s IDSet) Has(id string) bool {
	_, ok := s[id]
	return ok
}

// AppendUnique appends the items of incoming whose id is not yet in seen,
// records them in seen, and returns the extended list with the number added.
// Duplicates inside incoming are dropped too.
func AppendUnique[T any](list []T, seen IDSet, incoming []T, id func(T) string) ([]T, int) {
	added := 0
	for _, item := range incoming {
		key := id(item)
		if seen.Has(key) {
			continue
		}
		seen[key] = struct{}{}
		list = append(list, item)
		added++
	}
	if skipped := len(incoming) - added; skipped > 0 {
		RecordDuplicatesSuppressed(skipped)
	}
	return list, added
}
