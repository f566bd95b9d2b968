// eviction.go: victim-selection strategies for a Segment.
//
// spec §9 calls for "a small sum type EvictionPolicy ∈ {LRU, LFU} with a
// trait/interface carrying the four hook methods; no runtime subclassing
// needed" — grounded on other_examples/agilira-metis's EvictionPolicy
// interface (EvictKey over a map + list), adapted here to the segment's
// own map[string]*entry rather than a doubly-linked list, since segments
// are kept small and scan linearly (spec §4.2).
package chronos

// EvictionPolicy selects a victim key when a Segment is over budget and
// tracks whatever bookkeeping it needs across accesses/inserts/removals.
// Both LRU and LFU scan the segment table linearly; this is acceptable
// because segments are small (spec §4.2).
type EvictionPolicy interface {
	// SelectVictim returns the key to evict from table, or "" if table is
	// empty.
	SelectVictim(table map[string]*entry) string
	// OnAccess is called after a successful Get.
	OnAccess(key string, e *entry)
	// OnInsert is called after a new or replacing Set.
	OnInsert(key string, e *entry)
	// OnRemove is called after a key leaves the table, by any path.
	OnRemove(key string)
}

// PolicyKind names a built-in eviction policy.
type PolicyKind string

const (
	PolicyLRU PolicyKind = "LRU"
	PolicyLFU PolicyKind = "LFU"
)

// NewEvictionPolicy builds the policy named by kind, defaulting to LRU for
// an empty string. Returns NewErrInvalidEviction for any other name.
func NewEvictionPolicy(kind PolicyKind) (EvictionPolicy, error) {
	switch kind {
	case "", PolicyLRU:
		return lruPolicy{}, nil
	case PolicyLFU:
		return lfuPolicy{}, nil
	default:
		return nil, NewErrInvalidEviction(string(kind))
	}
}

// lruPolicy evicts the key with the smallest last_access_mono. It is
// stateless: all the information it needs already lives on the entry.
type lruPolicy struct{}

func (lruPolicy) SelectVictim(table map[string]*entry) string {
	var victim string
	var oldest int64
	first := true
	for k, e := range table {
		la := e.loadLastAccessMono()
		if first || la < oldest {
			victim, oldest, first = k, la, false
		}
	}
	return victim
}

func (lruPolicy) OnAccess(key string, e *entry) {}
func (lruPolicy) OnInsert(key string, e *entry) {}
func (lruPolicy) OnRemove(key string)           {}

// lfuPolicy evicts the key with the smallest access_count, breaking ties
// toward the older last_access_mono (spec §4.2).
type lfuPolicy struct{}

func (lfuPolicy) SelectVictim(table map[string]*entry) string {
	var victim string
	var minCount, tieLastAccess int64
	first := true
	for k, e := range table {
		count := e.loadAccessCount()
		la := e.loadLastAccessMono()
		switch {
		case first:
			victim, minCount, tieLastAccess, first = k, count, la, false
		case count < minCount:
			victim, minCount, tieLastAccess = k, count, la
		case count == minCount && la < tieLastAccess:
			victim, tieLastAccess = k, la
		}
	}
	return victim
}

func (lfuPolicy) OnAccess(key string, e *entry) {}
func (lfuPolicy) OnInsert(key string, e *entry) {}
func (lfuPolicy) OnRemove(key string)           {}
