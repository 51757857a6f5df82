// Package decision classifies per-window alpha band powers into
// attention or focus states. It contains two engines sharing one
// smoothing mechanism: Lateralization decodes spatial attention from
// the inter-hemisphere power asymmetry, Focus decodes mental effort
// from alpha suppression against a calibrated personal baseline.
package decision

// Vote is one entry in a smoothing history.
type Vote[S comparable] struct {
	State      S
	Confidence float64
}

// Smoother keeps a bounded history of (state, confidence) votes and
// resolves them into a single stable state. Both engines push one
// vote per processed window; they differ only in how the winner is
// picked, so the two resolution strategies live here as methods.
type Smoother[S comparable] struct {
	votes    []Vote[S]
	capacity int
}

// NewSmoother returns a smoother holding at most capacity votes.
func NewSmoother[S comparable](capacity int) *Smoother[S] {
	if capacity < 1 {
		capacity = 1
	}
	return &Smoother[S]{capacity: capacity}
}

// Push appends a vote, evicting the oldest once at capacity.
func (s *Smoother[S]) Push(state S, confidence float64) {
	if len(s.votes) == s.capacity {
		copy(s.votes, s.votes[1:])
		s.votes = s.votes[:len(s.votes)-1]
	}
	s.votes = append(s.votes, Vote[S]{State: state, Confidence: confidence})
}

// Len reports the number of votes currently held.
func (s *Smoother[S]) Len() int { return len(s.votes) }

// Votes returns a copy of the history, oldest first.
func (s *Smoother[S]) Votes() []Vote[S] {
	out := make([]Vote[S], len(s.votes))
	copy(out, s.votes)
	return out
}

// Last returns the most recent vote. ok is false when empty.
func (s *Smoother[S]) Last() (Vote[S], bool) {
	if len(s.votes) == 0 {
		return Vote[S]{}, false
	}
	return s.votes[len(s.votes)-1], true
}

// Reset discards the history.
func (s *Smoother[S]) Reset() {
	s.votes = s.votes[:0]
}

// Weighted sums confidence per candidate state and picks the state
// with the highest sum, ties resolving to the earliest candidate in
// order. It also reports the winning sum and the confidence average
// over the whole history. ok is false when the history is empty.
func (s *Smoother[S]) Weighted(order ...S) (winner S, sum, avg float64, ok bool) {
	if len(s.votes) == 0 {
		return winner, 0, 0, false
	}

	scores := make(map[S]float64, len(order))
	total := 0.0
	for _, v := range s.votes {
		scores[v.State] += v.Confidence
		total += v.Confidence
	}

	winner = order[0]
	sum = scores[order[0]]
	for _, cand := range order[1:] {
		if scores[cand] > sum {
			winner = cand
			sum = scores[cand]
		}
	}
	return winner, sum, total / float64(len(s.votes)), true
}

// Majority counts votes per candidate state, ignoring any state not
// listed in order, and picks the highest count with ties resolving to
// the earliest candidate. agreement is the winning count divided by
// the full history length, ignored entries included. ok is false when
// no vote counted.
func (s *Smoother[S]) Majority(order ...S) (winner S, agreement float64, ok bool) {
	if len(s.votes) == 0 {
		return winner, 0, false
	}

	counts := make(map[S]int, len(order))
	counted := 0
	for _, v := range s.votes {
		for _, cand := range order {
			if v.State == cand {
				counts[cand]++
				counted++
				break
			}
		}
	}
	if counted == 0 {
		return winner, 0, false
	}

	winner = order[0]
	best := counts[order[0]]
	for _, cand := range order[1:] {
		if counts[cand] > best {
			winner = cand
			best = counts[cand]
		}
	}
	return winner, float64(best) / float64(len(s.votes)), true
}
