package model

// SourceDataset is an insertion-ordered mapping from UID to SourceFunction.
// Built once, read-only afterward. When a UID repeats during construction
// the later record wins while the UID keeps its original position.
type SourceDataset struct {
	uids  []string
	byUID map[string]SourceFunction
}

// NewSourceDataset builds a dataset from records, last write per UID wins.
func NewSourceDataset(functions []SourceFunction) *SourceDataset {
	ds := &SourceDataset{byUID: make(map[string]SourceFunction, len(functions))}
	for _, fn := range functions {
		if _, seen := ds.byUID[fn.UID]; !seen {
			ds.uids = append(ds.uids, fn.UID)
		}
		ds.byUID[fn.UID] = fn
	}

	return ds
}

// Get returns the record stored under uid.
func (d *SourceDataset) Get(uid string) (SourceFunction, bool) {
	fn, ok := d.byUID[uid]

	return fn, ok
}

// Len returns the number of records.
func (d *SourceDataset) Len() int {
	return len(d.uids)
}

// UIDs returns the UIDs in insertion order.
func (d *SourceDataset) UIDs() []string {
	uids := make([]string, len(d.uids))
	copy(uids, d.uids)

	return uids
}

// Functions returns the records in insertion order.
func (d *SourceDataset) Functions() []SourceFunction {
	functions := make([]SourceFunction, 0, len(d.uids))
	for _, uid := range d.uids {
		functions = append(functions, d.byUID[uid])
	}

	return functions
}

// DecompiledEntry pairs one decompiled function with every source function
// sharing its correlation key.
type DecompiledEntry struct {
	Decompiled DecompiledFunction
	Sources    *SourceDataset
}

// DecompiledDataset is an insertion-ordered mapping from a decompiled
// function's UID to its entry.
type DecompiledDataset struct {
	uids  []string
	byUID map[string]DecompiledEntry
}

// NewDecompiledDataset builds a dataset from entries, last write per UID wins.
func NewDecompiledDataset(entries []DecompiledEntry) *DecompiledDataset {
	ds := &DecompiledDataset{byUID: make(map[string]DecompiledEntry, len(entries))}
	for _, entry := range entries {
		uid := entry.Decompiled.UID
		if _, seen := ds.byUID[uid]; !seen {
			ds.uids = append(ds.uids, uid)
		}
		ds.byUID[uid] = entry
	}

	return ds
}

// Get returns the entry stored under uid.
func (d *DecompiledDataset) Get(uid string) (DecompiledEntry, bool) {
	entry, ok := d.byUID[uid]

	return entry, ok
}

// Len returns the number of entries.
func (d *DecompiledDataset) Len() int {
	return len(d.uids)
}

// UIDs returns the UIDs in insertion order.
func (d *DecompiledDataset) UIDs() []string {
	uids := make([]string, len(d.uids))
	copy(uids, d.uids)

	return uids
}

// Entries returns the entries in insertion order.
func (d *DecompiledDataset) Entries() []DecompiledEntry {
	entries := make([]DecompiledEntry, 0, len(d.uids))
	for _, uid := range d.uids {
		entries = append(entries, d.byUID[uid])
	}

	return entries
}

// Lookup returns every entry whose candidate sources contain sourceUID.
func (d *DecompiledDataset) Lookup(sourceUID string) []DecompiledEntry {
	var matches []DecompiledEntry
	for _, uid := range d.uids {
		entry := d.byUID[uid]
		if _, ok := entry.Sources.Get(sourceUID); ok {
			matches = append(matches, entry)
		}
	}

	return matches
}

// ToSourceDataset flattens the nested candidate sources into one dataset.
func (d *DecompiledDataset) ToSourceDataset() *SourceDataset {
	var functions []SourceFunction
	for _, uid := range d.uids {
		functions = append(functions, d.byUID[uid].Sources.Functions()...)
	}

	return NewSourceDataset(functions)
}
