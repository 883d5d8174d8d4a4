package hub

import "time"

// participant is a snapshot of a user taken when they entered the waiting
// pool or a room. Carrying the snapshot means match notification and room
// operations never need another profile lookup.
type participant struct {
	UserID      string
	ConnID      string
	Alias       string
	Gender      string
	Rating      float64
	RatingCount int
}

// waitingEntry is a pooled user plus the time they joined, used for
// wait-timeout eviction and the match-latency histogram.
type waitingEntry struct {
	participant
	JoinedAt time.Time
}

// waitingPool is the FIFO queue of users looking for a match. At most one
// entry per user. Not safe for concurrent use — callers hold the hub mutex.
type waitingPool struct {
	entries []*waitingEntry
	index   map[string]*waitingEntry // userID -> entry
}

func newWaitingPool() *waitingPool {
	return &waitingPool{index: make(map[string]*waitingEntry)}
}

// add appends an entry to the tail of the queue. Adding a user who is
// already pooled is a no-op.
func (p *waitingPool) add(e *waitingEntry) bool {
	if _, ok := p.index[e.UserID]; ok {
		return false
	}
	p.entries = append(p.entries, e)
	p.index[e.UserID] = e
	return true
}

// remove deletes a user's entry wherever it sits in the queue. Returns
// false if the user was not pooled.
func (p *waitingPool) remove(userID string) bool {
	if _, ok := p.index[userID]; !ok {
		return false
	}
	delete(p.index, userID)
	for i, e := range p.entries {
		if e.UserID == userID {
			p.entries = append(p.entries[:i], p.entries[i+1:]...)
			break
		}
	}
	return true
}

func (p *waitingPool) contains(userID string) bool {
	_, ok := p.index[userID]
	return ok
}

// firstEligible scans head-to-tail and returns the first entry that is not
// the requester and not in the excluded set. The entry stays pooled; the
// caller removes it once the match is committed.
func (p *waitingPool) firstEligible(selfID string, excluded map[string]struct{}) *waitingEntry {
	for _, e := range p.entries {
		if e.UserID == selfID {
			continue
		}
		if _, blocked := excluded[e.UserID]; blocked {
			continue
		}
		return e
	}
	return nil
}

// expired returns and removes every entry older than the cutoff.
func (p *waitingPool) expired(cutoff time.Time) []*waitingEntry {
	var out []*waitingEntry
	kept := p.entries[:0]
	for _, e := range p.entries {
		if e.JoinedAt.Before(cutoff) {
			out = append(out, e)
			delete(p.index, e.UserID)
		} else {
			kept = append(kept, e)
		}
	}
	p.entries = kept
	return out
}

func (p *waitingPool) len() int {
	return len(p.entries)
}
