package library

import (
	"fmt"
	"slices"
	"strings"
)

// Store holds every book and user of a session. Implementations hand out copies;
// lending changes reach the store only through Commit.
type Store interface {
	AddBook(b *Book) error
	RemoveBook(key int64) error
	FindBookByTitle(title string) (*Book, error)
	BookByKey(key int64) (*Book, error)
	ListBooks() ([]*Book, error)

	AddUser(u *User) error
	FindUserByID(id int) (*User, error)
	UserByKey(key int64) (*User, error)
	ListUsers() ([]*User, error)

	// Commit writes back availability, waiting lists, borrowed sets and policies
	// of the given records as one change.
	Commit(books []*Book, users []*User) error
	Close() error
}

// firstByTitle is the title lookup shared by all stores: case-insensitive exact
// match, first in insertion order.
func firstByTitle(books []*Book, title string) (*Book, error) {
	title = strings.TrimSpace(title)
	for _, b := range books {
		if strings.EqualFold(b.Title, title) {
			return b, nil
		}
	}
	return nil, fmt.Errorf("book '%s' %w", title, ErrNotFound)
}

// MemoryStore keeps records in insertion-ordered slices.
type MemoryStore struct {
	strictIDs bool
	nextKey   int64
	books     []*Book
	users     []*User
}

// NewMemoryStore returns an empty store. With strictIDs, repeated book or user
// ids are rejected with ErrDuplicate instead of being stored alongside.
func NewMemoryStore(strictIDs bool) *MemoryStore {
	return &MemoryStore{strictIDs: strictIDs}
}

func (s *MemoryStore) AddBook(b *Book) error {
	if s.strictIDs && slices.ContainsFunc(s.books, func(x *Book) bool { return x.ID == b.ID }) {
		return fmt.Errorf("book id %d: %w", b.ID, ErrDuplicate)
	}
	s.nextKey++
	b.Key = s.nextKey
	s.books = append(s.books, b.clone())
	return nil
}

func (s *MemoryStore) RemoveBook(key int64) error {
	s.books = slices.DeleteFunc(s.books, func(b *Book) bool { return b.Key == key })
	return nil
}

func (s *MemoryStore) FindBookByTitle(title string) (*Book, error) {
	b, err := firstByTitle(s.books, title)
	if err != nil {
		return nil, err
	}
	return b.clone(), nil
}

func (s *MemoryStore) BookByKey(key int64) (*Book, error) {
	i := slices.IndexFunc(s.books, func(b *Book) bool { return b.Key == key })
	if i < 0 {
		return nil, fmt.Errorf("book #%d %w", key, ErrNotFound)
	}
	return s.books[i].clone(), nil
}

func (s *MemoryStore) ListBooks() ([]*Book, error) {
	out := make([]*Book, 0, len(s.books))
	for _, b := range s.books {
		out = append(out, b.clone())
	}
	return out, nil
}

func (s *MemoryStore) AddUser(u *User) error {
	if s.strictIDs && slices.ContainsFunc(s.users, func(x *User) bool { return x.ID == u.ID }) {
		return fmt.Errorf("user id %d: %w", u.ID, ErrDuplicate)
	}
	s.nextKey++
	u.Key = s.nextKey
	s.users = append(s.users, u.clone())
	return nil
}

func (s *MemoryStore) FindUserByID(id int) (*User, error) {
	i := slices.IndexFunc(s.users, func(u *User) bool { return u.ID == id })
	if i < 0 {
		return nil, fmt.Errorf("user %d %w", id, ErrNotFound)
	}
	return s.users[i].clone(), nil
}

func (s *MemoryStore) UserByKey(key int64) (*User, error) {
	i := slices.IndexFunc(s.users, func(u *User) bool { return u.Key == key })
	if i < 0 {
		return nil, fmt.Errorf("user #%d %w", key, ErrNotFound)
	}
	return s.users[i].clone(), nil
}

func (s *MemoryStore) ListUsers() ([]*User, error) {
	out := make([]*User, 0, len(s.users))
	for _, u := range s.users {
		out = append(out, u.clone())
	}
	return out, nil
}

func (s *MemoryStore) Commit(books []*Book, users []*User) error {
	// Resolve every slot first so a missing record leaves the store untouched.
	bookIdx := make([]int, len(books))
	for i, b := range books {
		bookIdx[i] = slices.IndexFunc(s.books, func(x *Book) bool { return x.Key == b.Key })
		if bookIdx[i] < 0 {
			return fmt.Errorf("commit book #%d: %w", b.Key, ErrNotFound)
		}
	}
	userIdx := make([]int, len(users))
	for i, u := range users {
		userIdx[i] = slices.IndexFunc(s.users, func(x *User) bool { return x.Key == u.Key })
		if userIdx[i] < 0 {
			return fmt.Errorf("commit user #%d: %w", u.Key, ErrNotFound)
		}
	}
	for i, b := range books {
		s.books[bookIdx[i]] = b.clone()
	}
	for i, u := range users {
		s.users[userIdx[i]] = u.clone()
	}
	return nil
}

func (s *MemoryStore) Close() error { return nil }
