package library

import (
	"fmt"
	"strings"
)

// BorrowPolicy decides what borrowing does to a user and a book. Implementations
// mutate only the two records they are given and keep no state of their own.
type BorrowPolicy interface {
	Name() string
	ExecuteBorrow(u *User, b *Book) (Outcome, error)
}

// StrictAvailability lends only available books and rejects everything else.
type StrictAvailability struct{}

func (StrictAvailability) Name() string { return "strict" }

func (StrictAvailability) ExecuteBorrow(u *User, b *Book) (Outcome, error) {
	if u.Holds(b.Key) {
		return Outcome{}, fmt.Errorf("%w: '%s' is already borrowed by you", ErrInvalidState, b.Title)
	}
	if !b.Available {
		return Outcome{}, fmt.Errorf("book '%s' is %w", b.Title, ErrUnavailable)
	}
	lend(u, b)
	return Outcome{Kind: OutcomeBorrowed, Title: b.Title}, nil
}

// QueueOnUnavailable lends available books and puts the user on the waiting
// list of unavailable ones. Repeating the call reports the same position.
type QueueOnUnavailable struct{}

func (QueueOnUnavailable) Name() string { return "queue" }

func (QueueOnUnavailable) ExecuteBorrow(u *User, b *Book) (Outcome, error) {
	if u.Holds(b.Key) {
		return Outcome{}, fmt.Errorf("%w: '%s' is already borrowed by you", ErrInvalidState, b.Title)
	}
	if b.Available {
		lend(u, b)
		return Outcome{Kind: OutcomeBorrowed, Title: b.Title}, nil
	}
	pos, added := enqueue(u, b)
	if !added {
		return Outcome{Kind: OutcomeAlreadyQueued, Title: b.Title, Position: pos}, nil
	}
	return Outcome{Kind: OutcomeQueued, Title: b.Title, Position: pos}, nil
}

// DefaultPolicy is assigned to users that never chose one.
func DefaultPolicy() BorrowPolicy { return QueueOnUnavailable{} }

// PolicyLabel is the human readable name shown in user listings.
func PolicyLabel(p BorrowPolicy) string {
	switch p.(type) {
	case nil:
		return PolicyLabel(DefaultPolicy())
	case StrictAvailability:
		return "Strict availability"
	case QueueOnUnavailable:
		return "Queue on unavailable"
	default:
		return p.Name()
	}
}

// ParsePolicy maps a config or menu value to a policy.
func ParsePolicy(name string) (BorrowPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "strict", "strict availability", "strictavailability":
		return StrictAvailability{}, nil
	case "queue", "queue on unavailable", "queueonunavailable", "":
		return QueueOnUnavailable{}, nil
	}
	return nil, fmt.Errorf("%w: unknown borrow policy %q", ErrInvalid, name)
}
