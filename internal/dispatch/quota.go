package dispatch

// Quota tracks today's instant sends. Reserved slots belong to sends that are
// in flight and count against the remaining allowance until they resolve.
type Quota struct {
	limit    int
	used     int
	reserved int
}

// NewQuota returns a counter allowing limit sends per day. Negative limits are treated as zero.
func NewQuota(limit int) Quota {
	if limit < 0 {
		limit = 0
	}
	return Quota{limit: limit}
}

// Limit returns the configured daily allowance.
func (q *Quota) Limit() int { return q.limit }

// Used returns the number of successful sends since the last reset.
func (q *Quota) Used() int { return q.used }

// Remaining returns the sends left today, never below zero.
func (q *Quota) Remaining() int {
	if r := q.limit - q.used - q.reserved; r > 0 {
		return r
	}
	return 0
}

func (q *Quota) reserve() { q.reserved++ }

func (q *Quota) release() {
	if q.reserved > 0 {
		q.reserved--
	}
}

func (q *Quota) consume() { q.used++ }

// Reset zeroes the used counter. In-flight reservations are kept.
func (q *Quota) Reset() { q.used = 0 }
