package application

import (
	"sort"
	"time"

	alarms "linesim/internal/alarms/domain"
)

const (
	// SequenceGap is the largest gap between consecutive members of a cascading sequence.
	SequenceGap = 300 * time.Second
	// MinSequenceLength is the shortest run kept as a cascading sequence.
	MinSequenceLength = 3
	// CommonPatternMin is the group size from which a group counts as common.
	CommonPatternMin = 5
	// CommonPatternCap bounds the members exposed per common pattern.
	CommonPatternCap = 10
)

// Pattern is a frequently seen (module, severity) group.
type Pattern struct {
	Key    alarms.GroupKey `json:"key"`
	Alarms []alarms.Alarm  `json:"alarms"`
}

// DurationStats aggregates alarm durations in milliseconds.
type DurationStats struct {
	Mean  float64 `json:"mean_ms"`
	Min   int64   `json:"min_ms"`
	Max   int64   `json:"max_ms"`
	Count int     `json:"count"`
}

// Summary reports index sizes.
type Summary struct {
	Alarms         int `json:"alarms"`
	Groups         int `json:"groups"`
	CommonPatterns int `json:"common_patterns"`
	Sequences      int `json:"sequences"`
	Modules        int `json:"modules"`
}

// Index holds read-only views derived from a parsed alarm set.
// It is built once and never mutated, so concurrent readers need no locking.
type Index struct {
	all       []alarms.Alarm
	keys      []alarms.GroupKey
	groups    map[alarms.GroupKey][]alarms.Alarm
	common    []Pattern
	sequences [][]alarms.Alarm
	stats     map[alarms.GroupKey]DurationStats
	modules   []string
	messages  map[string][]string
}

// NewIndex derives groups, common patterns, cascading sequences, duration statistics
// and message catalogs from records.
func NewIndex(records []alarms.Alarm) *Index {
	idx := &Index{
		all:      append([]alarms.Alarm(nil), records...),
		groups:   make(map[alarms.GroupKey][]alarms.Alarm),
		stats:    make(map[alarms.GroupKey]DurationStats),
		messages: make(map[string][]string),
	}
	idx.buildGroups()
	idx.buildCommon()
	idx.sequences = DetectSequences(idx.all, SequenceGap, MinSequenceLength)
	idx.buildStats()
	idx.buildMessages()
	return idx
}

func (idx *Index) buildGroups() {
	for _, alarm := range idx.all {
		key := alarm.Key()
		if _, ok := idx.groups[key]; !ok {
			idx.keys = append(idx.keys, key)
		}
		idx.groups[key] = append(idx.groups[key], alarm)
	}
}

func (idx *Index) buildCommon() {
	for _, key := range idx.keys {
		members := idx.groups[key]
		if len(members) < CommonPatternMin {
			continue
		}
		if len(members) > CommonPatternCap {
			members = members[:CommonPatternCap]
		}
		idx.common = append(idx.common, Pattern{Key: key, Alarms: append([]alarms.Alarm(nil), members...)})
	}
}

func (idx *Index) buildStats() {
	type acc struct {
		sum   int64
		min   int64
		max   int64
		count int
	}
	accs := make(map[alarms.GroupKey]*acc)
	for _, alarm := range idx.all {
		ms, ok := alarm.DurationMillis()
		if !ok {
			continue
		}
		key := alarm.Key()
		a := accs[key]
		if a == nil {
			a = &acc{min: ms, max: ms}
			accs[key] = a
		}
		a.sum += ms
		a.count++
		if ms < a.min {
			a.min = ms
		}
		if ms > a.max {
			a.max = ms
		}
	}
	for key, a := range accs {
		idx.stats[key] = DurationStats{
			Mean:  float64(a.sum) / float64(a.count),
			Min:   a.min,
			Max:   a.max,
			Count: a.count,
		}
	}
}

func (idx *Index) buildMessages() {
	seen := make(map[string]map[string]struct{})
	for _, alarm := range idx.all {
		set, ok := seen[alarm.Module]
		if !ok {
			set = make(map[string]struct{})
			seen[alarm.Module] = set
			idx.modules = append(idx.modules, alarm.Module)
		}
		if _, dup := set[alarm.Message]; dup {
			continue
		}
		set[alarm.Message] = struct{}{}
		idx.messages[alarm.Module] = append(idx.messages[alarm.Module], alarm.Message)
	}
}

// DetectSequences partitions records into cascading sequences.
// Records are stably sorted by activation time and scanned once; a gap strictly greater
// than maxGap closes the running sequence, which is kept only with at least minLen members.
func DetectSequences(records []alarms.Alarm, maxGap time.Duration, minLen int) [][]alarms.Alarm {
	if len(records) == 0 {
		return nil
	}
	sorted := append([]alarms.Alarm(nil), records...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].ActivatedAt.Before(sorted[j].ActivatedAt)
	})

	var sequences [][]alarms.Alarm
	current := []alarms.Alarm{sorted[0]}
	for _, alarm := range sorted[1:] {
		last := current[len(current)-1]
		if alarm.ActivatedAt.Sub(last.ActivatedAt) > maxGap {
			if len(current) >= minLen {
				sequences = append(sequences, current)
			}
			current = []alarms.Alarm{alarm}
			continue
		}
		current = append(current, alarm)
	}
	if len(current) >= minLen {
		sequences = append(sequences, current)
	}
	return sequences
}

// Alarms returns the full pool in input order.
func (idx *Index) Alarms() []alarms.Alarm {
	return idx.all
}

// Groups returns group keys in first-seen order.
func (idx *Index) Groups() []alarms.GroupKey {
	return append([]alarms.GroupKey(nil), idx.keys...)
}

// Group returns the members of a group in insertion order.
func (idx *Index) Group(key alarms.GroupKey) []alarms.Alarm {
	return idx.groups[key]
}

// CommonPatterns returns groups with at least five members, capped to their first ten.
func (idx *Index) CommonPatterns() []Pattern {
	return idx.common
}

// Sequences returns the cascading sequences in time order.
func (idx *Index) Sequences() [][]alarms.Alarm {
	return idx.sequences
}

// DurationStats returns per-group duration statistics. Groups without durations are absent.
func (idx *Index) DurationStats() map[alarms.GroupKey]DurationStats {
	out := make(map[alarms.GroupKey]DurationStats, len(idx.stats))
	for key, stats := range idx.stats {
		out[key] = stats
	}
	return out
}

// Stats returns the duration statistics of one group.
func (idx *Index) Stats(key alarms.GroupKey) (DurationStats, bool) {
	stats, ok := idx.stats[key]
	return stats, ok
}

// Modules returns modules in first-seen order.
func (idx *Index) Modules() []string {
	return append([]string(nil), idx.modules...)
}

// MessageCatalog returns the distinct messages of each module in first-seen order.
func (idx *Index) MessageCatalog() map[string][]string {
	out := make(map[string][]string, len(idx.messages))
	for module, messages := range idx.messages {
		out[module] = append([]string(nil), messages...)
	}
	return out
}

// ByModule returns every alarm raised by module.
func (idx *Index) ByModule(module string) []alarms.Alarm {
	var out []alarms.Alarm
	for _, alarm := range idx.all {
		if alarm.Module == module {
			out = append(out, alarm)
		}
	}
	return out
}

// Summary reports the index sizes.
func (idx *Index) Summary() Summary {
	return Summary{
		Alarms:         len(idx.all),
		Groups:         len(idx.keys),
		CommonPatterns: len(idx.common),
		Sequences:      len(idx.sequences),
		Modules:        len(idx.modules),
	}
}
