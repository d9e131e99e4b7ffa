package words

import "github.com/abhisek/smartrepeat/internal/stage"

// DifficultEntry is a word answered incorrectly, tagged with the stage that
// first recorded it.
type DifficultEntry struct {
	Word   Word
	Source stage.Stage
}

// DifficultSet accumulates difficult words across stages. Each key is stored
// once; the first stage to record a key keeps the source tag.
type DifficultSet struct {
	entries []DifficultEntry
	index   map[string]int
}

// NewDifficultSet returns an empty set.
func NewDifficultSet() *DifficultSet {
	return &DifficultSet{index: make(map[string]int)}
}

// Record adds w with the given source. It reports whether w was new; a
// repeated key is a no-op.
func (d *DifficultSet) Record(w Word, source stage.Stage) bool {
	k := w.Key()
	if k == "" {
		return false
	}
	if d.index == nil {
		d.index = make(map[string]int)
	}
	if _, ok := d.index[k]; ok {
		return false
	}
	d.index[k] = len(d.entries)
	d.entries = append(d.entries, DifficultEntry{Word: w, Source: source})
	return true
}

// RecordAll records every word in ws and returns how many were new.
func (d *DifficultSet) RecordAll(ws []Word, source stage.Stage) int {
	n := 0
	for _, w := range ws {
		if d.Record(w, source) {
			n++
		}
	}
	return n
}

// All returns the recorded words in first-recorded order.
func (d *DifficultSet) All() []Word {
	if d == nil {
		return nil
	}
	out := make([]Word, len(d.entries))
	for i, e := range d.entries {
		out[i] = e.Word
	}
	return out
}

// Entries returns a copy of the recorded entries.
func (d *DifficultSet) Entries() []DifficultEntry {
	if d == nil {
		return nil
	}
	out := make([]DifficultEntry, len(d.entries))
	copy(out, d.entries)
	return out
}

// Source returns the owning stage for key.
func (d *DifficultSet) Source(key string) (stage.Stage, bool) {
	if d == nil {
		return 0, false
	}
	i, ok := d.index[NormalizeKey(key)]
	if !ok {
		return 0, false
	}
	return d.entries[i].Source, true
}

// Contains reports whether key has been recorded.
func (d *DifficultSet) Contains(key string) bool {
	_, ok := d.Source(key)
	return ok
}

func (d *DifficultSet) Len() int {
	if d == nil {
		return 0
	}
	return len(d.entries)
}

// Reset clears the set. Only pipeline completion or an explicit restart
// should call it.
func (d *DifficultSet) Reset() {
	d.entries = nil
	d.index = make(map[string]int)
}

// Clone returns an independent copy.
func (d *DifficultSet) Clone() *DifficultSet {
	c := NewDifficultSet()
	if d == nil {
		return c
	}
	for _, e := range d.entries {
		c.Record(e.Word, e.Source)
	}
	return c
}
