package queue

import (
	"strings"
	"time"

	"caseline/internal/domain"
)

// Queue names a workbasket view. Classification is pure: a case's membership
// is a function of the case and the reference date only, so the same case
// classifies identically everywhere it is displayed.
type Queue string

const (
	All         Queue = "all"
	Active      Queue = "active"
	Escalations Queue = "escalations"
	Completed   Queue = "completed"
	Returned    Queue = "returned"
)

var Queues = []Queue{All, Active, Escalations, Completed, Returned}

func (q Queue) Valid() bool {
	for _, known := range Queues {
		if q == known {
			return true
		}
	}
	return false
}

// Review-reason phrases that pull a case into the escalations queue even
// before a formal escalation is recorded.
var escalationPhrases = []string{
	"GFC Intelligence",
	"Risk drivers",
	"Client escalation",
	"TRMS referral",
}

// Matches reports whether the case belongs to the queue on the given
// reference date. A case may belong to several queues at once; membership in
// one never excludes another.
func Matches(c domain.Case, q Queue, ref time.Time) bool {
	switch q {
	case All:
		return true
	case Active:
		return c.Status.Active()
	case Escalations:
		if c.Status == domain.StatusEscalated || c.EscalationPending {
			return true
		}
		for _, reason := range c.ReviewReasons {
			for _, phrase := range escalationPhrases {
				if strings.Contains(reason, phrase) {
					return true
				}
			}
		}
		return false
	case Completed:
		if c.Status != domain.StatusCompleted || c.CompletedAt == nil {
			return false
		}
		return sameDay(*c.CompletedAt, ref)
	case Returned:
		return c.Status == domain.StatusReturned
	}
	return false
}

// Classify lists every queue the case belongs to, in Queues order.
func Classify(c domain.Case, ref time.Time) []Queue {
	var out []Queue
	for _, q := range Queues {
		if Matches(c, q, ref) {
			out = append(out, q)
		}
	}
	return out
}

// Filter keeps the cases matching the queue, preserving input order.
func Filter(cases []domain.Case, q Queue, ref time.Time) []domain.Case {
	var out []domain.Case
	for _, c := range cases {
		if Matches(c, q, ref) {
			out = append(out, c)
		}
	}
	return out
}

// DaysIn returns whole days since the case last changed status. Unparseable
// timestamps count as zero.
func DaysIn(c domain.Case, now time.Time) int {
	changed, err := time.Parse(time.RFC3339, c.StatusChangedAt)
	if err != nil {
		return 0
	}
	d := int(now.Sub(changed).Hours() / 24)
	if d < 0 {
		return 0
	}
	return d
}

func sameDay(ts string, ref time.Time) bool {
	t, err := time.Parse(time.RFC3339, ts)
	if err != nil {
		return false
	}
	y1, m1, d1 := t.UTC().Date()
	y2, m2, d2 := ref.UTC().Date()
	return y1 == y2 && m1 == m2 && d1 == d2
}
