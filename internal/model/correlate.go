package model

import (
	"fmt"
	"strings"
)

// CorrelationKey derives the matching key from a record UID: the bare
// function name with the file and class qualifiers stripped. Keys find
// candidate matches between decompiled and source records; they are never
// an identity.
func CorrelationKey(uid string) string {
	key := uid
	if i := strings.LastIndex(key, ":"); i >= 0 {
		key = key[i+1:]
	}
	if i := strings.LastIndex(key, "."); i >= 0 {
		key = key[i+1:]
	}

	return key
}

// Stripper produces the stripped form of a decompiled function.
type Stripper func(DecompiledFunction) (DecompiledFunction, error)

// Correlate pairs each decompiled function with every source function
// sharing its correlation key. Decompiled functions whose key has no
// source candidate are dropped silently. When two source functions share a
// key (overloads, same-named functions in unrelated files) the whole
// candidate group is kept; disambiguation belongs to downstream consumers.
// A non-nil strip is applied to each matched decompiled function after key
// lookup, so stripping never hides a match.
func Correlate(source *SourceDataset, decompiled []DecompiledFunction, strip Stripper) (*DecompiledDataset, error) {
	candidates := make(map[string][]SourceFunction)
	for _, fn := range source.Functions() {
		key := CorrelationKey(fn.UID)
		candidates[key] = append(candidates[key], fn)
	}

	entries := make([]DecompiledEntry, 0, len(decompiled))
	for _, fn := range decompiled {
		group, ok := candidates[CorrelationKey(fn.UID)]
		if !ok {
			continue
		}
		if strip != nil {
			stripped, err := strip(fn)
			if err != nil {
				return nil, fmt.Errorf("stripping %s: %w", fn.UID, err)
			}
			fn = stripped
		}
		entries = append(entries, DecompiledEntry{
			Decompiled: fn,
			Sources:    NewSourceDataset(group),
		})
	}

	return NewDecompiledDataset(entries), nil
}
