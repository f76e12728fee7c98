// Package shell runs the numbered text menu that drives a lending session.
package shell

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"

	"library-lending/library"
)

const menu = `
Library Management System
1. Add book
2. Remove book
3. Borrow book
4. Return book
5. Add user
6. Select current user
7. View all books
8. View all users
9. Change borrowing strategy
10. Cancel reservation
11. Search books
0. Exit`

// ParseError reports numeric menu input that could not be read.
type ParseError struct {
	Field string
	Input string
	Err   error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("invalid %s: %q is not a number", e.Field, e.Input)
}

func (e *ParseError) Unwrap() error { return e.Err }

// Session is one operator at the console. It is not safe for concurrent use.
type Session struct {
	mgr         *library.Manager
	sc          *bufio.Scanner
	out         io.Writer
	interactive bool
	logger      *slog.Logger

	current *library.User
}

// Option configures a Session.
type Option func(*Session)

// Interactive prints the menu before every choice.
func Interactive(on bool) Option {
	return func(s *Session) {
		s.interactive = on
	}
}

// WithLogger sets the session logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Session) {
		s.logger = l
	}
}

// New returns a session reading commands from in and writing results to out.
func New(mgr *library.Manager, in io.Reader, out io.Writer, opts ...Option) *Session {
	s := &Session{
		mgr:    mgr,
		sc:     bufio.NewScanner(in),
		out:    out,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run processes menu choices until exit or end of input.
func (s *Session) Run() error {
	for {
		if s.interactive {
			s.println(menu)
		}
		s.printf("Choose an option: ")
		if !s.sc.Scan() {
			s.println()
			return s.sc.Err()
		}
		choice := strings.TrimSpace(s.sc.Text())
		s.logger.Debug("menu choice", "choice", choice)

		switch choice {
		case "1":
			s.handleAddBook()
		case "2":
			s.handleRemoveBook()
		case "3":
			s.handleBorrow()
		case "4":
			s.handleReturn()
		case "5":
			s.handleAddUser()
		case "6":
			s.handleSelectUser()
		case "7":
			s.handleListBooks()
		case "8":
			s.handleListUsers()
		case "9":
			s.handleChangePolicy()
		case "10":
			s.handleCancelReservation()
		case "11":
			s.handleSearch()
		case "0":
			s.println("Goodbye!")
			return nil
		case "":
			continue
		default:
			s.println("Invalid option.")
		}
	}
}

func (s *Session) handleAddBook() {
	id, ok := s.askInt("Enter book ID: ", "book ID")
	if !ok {
		return
	}
	title, ok := s.ask("Enter book title: ")
	if !ok {
		return
	}
	author, ok := s.ask("Enter book author: ")
	if !ok {
		return
	}
	genre, ok := s.ask("Enter book genre: ")
	if !ok {
		return
	}
	year, ok := s.askInt("Enter publication year: ", "year")
	if !ok {
		return
	}

	if err := s.mgr.AddBook(library.NewBook(id, title, author, genre, year)); err != nil {
		s.printErr(err)
		return
	}
	s.println("Book added successfully.")
}

func (s *Session) handleRemoveBook() {
	title, ok := s.ask("Enter book title to remove: ")
	if !ok {
		return
	}
	if err := s.mgr.RemoveBook(title); err != nil {
		s.printErr(err)
		return
	}
	s.println("Book removed.")
}

func (s *Session) handleBorrow() {
	if !s.requireUser() {
		return
	}
	title, ok := s.ask("Enter book title to borrow: ")
	if !ok {
		return
	}
	out, err := s.mgr.Borrow(s.current.ID, title)
	if err == nil {
		s.println(out.String())
		return
	}
	s.printErr(err)
	if !errors.Is(err, library.ErrUnavailable) {
		return
	}

	answer, ok := s.ask("Do you want to reserve it? (yes/no): ")
	if !ok || !strings.EqualFold(answer, "yes") {
		return
	}
	out, err = s.mgr.Reserve(s.current.ID, title)
	if err != nil {
		s.printErr(err)
		return
	}
	s.println(out.String())
}

func (s *Session) handleReturn() {
	if !s.requireUser() {
		return
	}
	title, ok := s.ask("Enter book title to return: ")
	if !ok {
		return
	}
	out, err := s.mgr.ReturnBook(s.current.ID, title)
	if err != nil {
		s.printErr(err)
		return
	}
	s.println(out.String())
}

func (s *Session) handleAddUser() {
	id, ok := s.askInt("Enter user ID: ", "user ID")
	if !ok {
		return
	}
	name, ok := s.ask("Enter user name: ")
	if !ok {
		return
	}
	email, ok := s.ask("Enter user email (optional): ")
	if !ok {
		return
	}
	if err := s.mgr.AddUser(library.NewUser(id, name, email)); err != nil {
		s.printErr(err)
		return
	}
	s.println("User added successfully.")
}

func (s *Session) handleSelectUser() {
	id, ok := s.askInt("Enter user ID: ", "user ID")
	if !ok {
		return
	}
	u, err := s.mgr.FindUser(id)
	if err != nil {
		s.println("User not found")
		return
	}
	s.current = u
	s.printf("Current user set to %s\n", u.Name)
}

func (s *Session) handleListBooks() {
	books, err := s.mgr.ListBooks()
	if err != nil {
		s.printErr(err)
		return
	}
	if len(books) == 0 {
		s.println("No books in the library.")
		return
	}
	s.printBooks(books)
}

func (s *Session) handleSearch() {
	q, ok := s.ask("Search: ")
	if !ok {
		return
	}
	books, err := s.mgr.SearchBooks(q)
	if err != nil {
		s.printErr(err)
		return
	}
	if len(books) == 0 {
		s.println("No matching books.")
		return
	}
	s.printBooks(books)
}

func (s *Session) printBooks(books []*library.Book) {
	for _, b := range books {
		s.printf("ID: %d, Title: %s, Author: %s, Genre: %s, Year: %d, Available: %t\n",
			b.ID, b.Title, b.Author, b.Genre, b.Year, b.Available)
		if len(b.Queue) == 0 {
			continue
		}
		waiting, err := s.mgr.WaitingList(b)
		if err != nil {
			s.printErr(err)
			continue
		}
		names := make([]string, 0, len(waiting))
		for _, u := range waiting {
			names = append(names, u.Name)
		}
		s.printf("   Waiting list: %s\n", strings.Join(names, ", "))
	}
}

func (s *Session) handleListUsers() {
	users, err := s.mgr.ListUsers()
	if err != nil {
		s.printErr(err)
		return
	}
	if len(users) == 0 {
		s.println("No users registered.")
		return
	}
	for _, u := range users {
		email := u.Email
		if email == "" {
			email = "-"
		}
		s.printf("ID: %d, Name: %s, Email: %s, Borrowed books: %d, Strategy: %s\n",
			u.ID, u.Name, email, len(u.Borrowed), library.PolicyLabel(u.Policy))
	}
}

func (s *Session) handleChangePolicy() {
	if !s.requireUser() {
		return
	}
	s.println("1. Strict availability")
	s.println("2. Queue on unavailable")
	choice, ok := s.ask("Choose a strategy: ")
	if !ok {
		return
	}

	var (
		p   library.BorrowPolicy
		err error
	)
	switch choice {
	case "1":
		p = library.StrictAvailability{}
	case "2":
		p = library.QueueOnUnavailable{}
	default:
		if p, err = library.ParsePolicy(choice); err != nil || choice == "" {
			s.println("Invalid strategy.")
			return
		}
	}
	if err := s.mgr.SetPolicy(s.current.ID, p); err != nil {
		s.printErr(err)
		return
	}
	s.printf("Borrowing strategy for %s set to %s\n", s.current.Name, library.PolicyLabel(p))
}

func (s *Session) handleCancelReservation() {
	if !s.requireUser() {
		return
	}
	title, ok := s.ask("Enter book title: ")
	if !ok {
		return
	}
	out, err := s.mgr.CancelReservation(s.current.ID, title)
	if err != nil {
		s.printErr(err)
		return
	}
	s.println(out.String())
}

// ---------------------------------------------------------------------------
// Input and output helpers
// ---------------------------------------------------------------------------

func (s *Session) requireUser() bool {
	if s.current == nil {
		s.println("Please select a current user first.")
		return false
	}
	return true
}

func (s *Session) ask(prompt string) (string, bool) {
	s.printf("%s", prompt)
	if !s.sc.Scan() {
		return "", false
	}
	return strings.TrimSpace(s.sc.Text()), true
}

func (s *Session) askInt(prompt, field string) (int, bool) {
	text, ok := s.ask(prompt)
	if !ok {
		return 0, false
	}
	n, err := strconv.Atoi(text)
	if err != nil {
		s.printErr(&ParseError{Field: field, Input: text, Err: err})
		return 0, false
	}
	return n, true
}

func (s *Session) printErr(err error) {
	s.logger.Debug("operation failed", "error", err)
	s.printf("Error: %v\n", err)
}

func (s *Session) printf(format string, args ...any) {
	fmt.Fprintf(s.out, format, args...)
}

func (s *Session) println(args ...any) {
	fmt.Fprintln(s.out, args...)
}
