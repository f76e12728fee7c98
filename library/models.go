package library

import (
	"fmt"
	"slices"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// Book represents catalog metadata and current availability of a book.
// Key is assigned by the store and is the identity used by loans and
// reservations; ID is the caller's catalog number and may repeat.
type Book struct {
	Key       int64   `json:"-"`
	ID        int     `json:"id" validate:"gte=0"`
	Title     string  `json:"title" validate:"required"`
	Author    string  `json:"author" validate:"required"`
	Genre     string  `json:"genre"`
	Year      int     `json:"year" validate:"gte=0"`
	Available bool    `json:"available"`
	Queue     []int64 `json:"-"` // user keys, longest waiting first
}

// NewBook returns an available book with an empty waiting list.
func NewBook(id int, title, author, genre string, year int) *Book {
	return &Book{
		ID:        id,
		Title:     title,
		Author:    author,
		Genre:     genre,
		Year:      year,
		Available: true,
	}
}

// Validate checks the catalog fields.
func (b *Book) Validate() error {
	if err := validate.Struct(b); err != nil {
		return fmt.Errorf("%w: book %d: %v", ErrInvalid, b.ID, err)
	}
	return nil
}

// QueuePosition returns the 1-based position of the user in the waiting list, or 0.
func (b *Book) QueuePosition(userKey int64) int {
	return slices.Index(b.Queue, userKey) + 1
}

func (b *Book) clone() *Book {
	c := *b
	c.Queue = slices.Clone(b.Queue)
	return &c
}

// User represents a registered library user.
type User struct {
	Key      int64        `json:"-"`
	ID       int          `json:"id" validate:"gte=0"`
	Name     string       `json:"name" validate:"required"`
	Email    string       `json:"email" validate:"omitempty,email"`
	Borrowed []int64      `json:"-"` // book keys
	Policy   BorrowPolicy `json:"-" validate:"-"`
}

// NewUser returns a user without a chosen policy; the manager assigns its
// default when the user is added.
func NewUser(id int, name, email string) *User {
	return &User{
		ID:    id,
		Name:  name,
		Email: email,
	}
}

// Validate checks the registration fields.
func (u *User) Validate() error {
	if err := validate.Struct(u); err != nil {
		return fmt.Errorf("%w: user %d: %v", ErrInvalid, u.ID, err)
	}
	return nil
}

// Holds reports whether the user currently has the book.
func (u *User) Holds(bookKey int64) bool {
	return slices.Contains(u.Borrowed, bookKey)
}

func (u *User) release(bookKey int64) {
	u.Borrowed = slices.DeleteFunc(u.Borrowed, func(k int64) bool { return k == bookKey })
}

func (u *User) policy() BorrowPolicy {
	if u.Policy == nil {
		return DefaultPolicy()
	}
	return u.Policy
}

func (u *User) clone() *User {
	c := *u
	c.Borrowed = slices.Clone(u.Borrowed)
	return &c
}

// lend flips the book to held and records it on the user.
func lend(u *User, b *Book) {
	b.Available = false
	u.Borrowed = append(u.Borrowed, b.Key)
}

// enqueue appends the user unless already waiting and returns the 1-based position.
func enqueue(u *User, b *Book) (pos int, added bool) {
	if pos := b.QueuePosition(u.Key); pos > 0 {
		return pos, false
	}
	b.Queue = append(b.Queue, u.Key)
	return len(b.Queue), true
}
