package library

import "fmt"

// OutcomeKind names what a successful lending operation did.
type OutcomeKind int

const (
	OutcomeBorrowed OutcomeKind = iota + 1
	OutcomeQueued
	OutcomeAlreadyQueued
	OutcomeReserved
	OutcomeReturned
	OutcomeReassigned
	OutcomeCancelled
)

// Outcome is the result value of a borrow, reserve, return or cancel call.
type Outcome struct {
	Kind     OutcomeKind
	Title    string
	Position int    // queue position for Queued, AlreadyQueued and Reserved
	NextUser string // new borrower for Reassigned
}

func (o Outcome) String() string {
	switch o.Kind {
	case OutcomeBorrowed:
		return fmt.Sprintf("Book '%s' successfully borrowed", o.Title)
	case OutcomeQueued:
		return fmt.Sprintf("Book '%s' is unavailable. You have been added to the waiting list at position %d", o.Title, o.Position)
	case OutcomeAlreadyQueued:
		return fmt.Sprintf("You are already on the waiting list for '%s' at position %d", o.Title, o.Position)
	case OutcomeReserved:
		return fmt.Sprintf("Book '%s' reserved for you at position %d", o.Title, o.Position)
	case OutcomeReturned:
		return fmt.Sprintf("Book '%s' returned successfully", o.Title)
	case OutcomeReassigned:
		return fmt.Sprintf("Book '%s' returned and automatically issued to %s", o.Title, o.NextUser)
	case OutcomeCancelled:
		return fmt.Sprintf("Reservation for '%s' cancelled", o.Title)
	default:
		return "no change"
	}
}
