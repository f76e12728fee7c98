package library

import (
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
)

// Manager is the lending service. It owns the borrow, return and reservation
// rules; all records live in the Store.
type Manager struct {
	mu            sync.Mutex
	store         Store
	defaultPolicy BorrowPolicy
	logger        *slog.Logger
}

// Option configures a Manager.
type Option func(*Manager)

// WithLogger sets the logger used for state transitions.
func WithLogger(l *slog.Logger) Option {
	return func(m *Manager) {
		m.logger = l
	}
}

// WithDefaultPolicy sets the policy given to users added without one.
func WithDefaultPolicy(p BorrowPolicy) Option {
	return func(m *Manager) {
		m.defaultPolicy = p
	}
}

// NewManager returns a lending service over store.
func NewManager(store Store, opts ...Option) *Manager {
	m := &Manager{
		store:         store,
		defaultPolicy: DefaultPolicy(),
		logger:        slog.Default(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Close closes the underlying store.
func (m *Manager) Close() error { return m.store.Close() }

// ------------------ Catalog ------------------

func (m *Manager) AddBook(b *Book) error {
	if err := b.Validate(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.store.AddBook(b); err != nil {
		return err
	}
	m.logger.Debug("book added", "id", b.ID, "title", b.Title)
	return nil
}

// RemoveBook deletes the first book with the given title. A book that is held
// or has a waiting list cannot be removed.
func (m *Manager) RemoveBook(title string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	b, err := m.store.FindBookByTitle(title)
	if err != nil {
		return err
	}
	if !b.Available {
		return fmt.Errorf("%w: '%s' is currently borrowed", ErrInvalidState, b.Title)
	}
	if len(b.Queue) > 0 {
		return fmt.Errorf("%w: '%s' has %d waiting", ErrInvalidState, b.Title, len(b.Queue))
	}
	if err := m.store.RemoveBook(b.Key); err != nil {
		return err
	}
	m.logger.Debug("book removed", "id", b.ID, "title", b.Title)
	return nil
}

func (m *Manager) ListBooks() ([]*Book, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.store.ListBooks()
}

// SearchBooks returns books whose title, author or genre contains q, ignoring case.
func (m *Manager) SearchBooks(q string) ([]*Book, error) {
	q = strings.ToLower(strings.TrimSpace(q))
	if q == "" {
		return []*Book{}, nil
	}
	books, err := m.ListBooks()
	if err != nil {
		return nil, err
	}
	results := []*Book{}
	for _, b := range books {
		if strings.Contains(strings.ToLower(b.Title), q) ||
			strings.Contains(strings.ToLower(b.Author), q) ||
			strings.Contains(strings.ToLower(b.Genre), q) {
			results = append(results, b)
		}
	}
	return results, nil
}

// WaitingList resolves a book's queue to users, longest waiting first.
func (m *Manager) WaitingList(b *Book) ([]*User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	users := make([]*User, 0, len(b.Queue))
	for _, key := range b.Queue {
		u, err := m.store.UserByKey(key)
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, nil
}

// ------------------ Users ------------------

func (m *Manager) AddUser(u *User) error {
	if err := u.Validate(); err != nil {
		return err
	}
	if u.Policy == nil {
		u.Policy = m.defaultPolicy
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.store.AddUser(u); err != nil {
		return err
	}
	m.logger.Debug("user added", "id", u.ID, "name", u.Name)
	return nil
}

func (m *Manager) FindUser(id int) (*User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.store.FindUserByID(id)
}

func (m *Manager) ListUsers() ([]*User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.store.ListUsers()
}

// BorrowedBooks returns the books the user currently holds.
func (m *Manager) BorrowedBooks(userID int) ([]*Book, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, err := m.store.FindUserByID(userID)
	if err != nil {
		return nil, err
	}
	books := make([]*Book, 0, len(u.Borrowed))
	for _, key := range u.Borrowed {
		b, err := m.store.BookByKey(key)
		if err != nil {
			return nil, err
		}
		books = append(books, b)
	}
	return books, nil
}

// SetPolicy swaps the user's borrow policy; the next Borrow uses it.
func (m *Manager) SetPolicy(userID int, p BorrowPolicy) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, err := m.store.FindUserByID(userID)
	if err != nil {
		return err
	}
	u.Policy = p
	if err := m.store.Commit(nil, []*User{u}); err != nil {
		return err
	}
	m.logger.Info("borrow policy changed", "user", u.ID, "policy", p.Name())
	return nil
}

// ------------------ Circulation ------------------

// Borrow looks the book up by title and applies the user's borrow policy.
func (m *Manager) Borrow(userID int, title string) (Outcome, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	u, b, err := m.lookup(userID, title)
	if err != nil {
		return Outcome{}, err
	}
	out, err := u.policy().ExecuteBorrow(u, b)
	if err != nil {
		return Outcome{}, err
	}
	if out.Kind == OutcomeAlreadyQueued {
		return out, nil
	}
	if err := m.store.Commit([]*Book{b}, []*User{u}); err != nil {
		return Outcome{}, err
	}
	m.logger.Info("borrow", "user", u.ID, "book", b.ID, "title", b.Title, "outcome", out.Kind, "position", out.Position)
	return out, nil
}

// ReturnBook takes the book back from the user. If someone is waiting, the
// longest waiting user receives it in the same commit and the book never
// becomes available in between.
func (m *Manager) ReturnBook(userID int, title string) (Outcome, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	u, b, err := m.lookup(userID, title)
	if err != nil {
		return Outcome{}, err
	}
	if !u.Holds(b.Key) {
		return Outcome{}, fmt.Errorf("%w: '%s' is not borrowed by this user", ErrInvalidState, b.Title)
	}
	u.release(b.Key)

	if len(b.Queue) == 0 {
		b.Available = true
		if err := m.store.Commit([]*Book{b}, []*User{u}); err != nil {
			return Outcome{}, err
		}
		m.logger.Info("return", "user", u.ID, "book", b.ID, "title", b.Title)
		return Outcome{Kind: OutcomeReturned, Title: b.Title}, nil
	}

	next, err := m.store.UserByKey(b.Queue[0])
	if err != nil {
		return Outcome{}, fmt.Errorf("next in queue for '%s': %w", b.Title, err)
	}
	b.Queue = b.Queue[1:]
	next.Borrowed = append(next.Borrowed, b.Key)
	if err := m.store.Commit([]*Book{b}, []*User{u, next}); err != nil {
		return Outcome{}, err
	}
	m.logger.Info("return reassigned", "user", u.ID, "book", b.ID, "title", b.Title, "next", next.ID, "waiting", len(b.Queue))
	return Outcome{Kind: OutcomeReassigned, Title: b.Title, NextUser: next.Name}, nil
}

// Reserve puts the user on the waiting list explicitly. It backs the follow-up
// offered after a strict borrow was rejected. An available book is lent at once.
func (m *Manager) Reserve(userID int, title string) (Outcome, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	u, b, err := m.lookup(userID, title)
	if err != nil {
		return Outcome{}, err
	}
	if u.Holds(b.Key) {
		return Outcome{}, fmt.Errorf("%w: you can't reserve '%s' because you have already borrowed it", ErrInvalidState, b.Title)
	}

	var out Outcome
	if b.Available {
		lend(u, b)
		out = Outcome{Kind: OutcomeBorrowed, Title: b.Title}
	} else {
		pos, added := enqueue(u, b)
		if !added {
			return Outcome{}, fmt.Errorf("%w: you have already reserved '%s'", ErrInvalidState, b.Title)
		}
		out = Outcome{Kind: OutcomeReserved, Title: b.Title, Position: pos}
	}
	if err := m.store.Commit([]*Book{b}, []*User{u}); err != nil {
		return Outcome{}, err
	}
	m.logger.Info("reserve", "user", u.ID, "book", b.ID, "title", b.Title, "outcome", out.Kind, "position", out.Position)
	return out, nil
}

// CancelReservation takes the user off the book's waiting list.
func (m *Manager) CancelReservation(userID int, title string) (Outcome, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	u, b, err := m.lookup(userID, title)
	if err != nil {
		return Outcome{}, err
	}
	pos := b.QueuePosition(u.Key)
	if pos == 0 {
		return Outcome{}, fmt.Errorf("%w: no reservation for '%s'", ErrInvalidState, b.Title)
	}
	b.Queue = slices.Delete(b.Queue, pos-1, pos)
	if err := m.store.Commit([]*Book{b}, nil); err != nil {
		return Outcome{}, err
	}
	m.logger.Info("reservation cancelled", "user", u.ID, "book", b.ID, "title", b.Title)
	return Outcome{Kind: OutcomeCancelled, Title: b.Title}, nil
}

func (m *Manager) lookup(userID int, title string) (*User, *Book, error) {
	u, err := m.store.FindUserByID(userID)
	if err != nil {
		return nil, nil, err
	}
	b, err := m.store.FindBookByTitle(title)
	if err != nil {
		return nil, nil, err
	}
	return u, b, nil
}
