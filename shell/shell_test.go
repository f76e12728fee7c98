package shell

import (
	"bytes"
	"errors"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"library-lending/library"
)

func newManager(t *testing.T) *library.Manager {
	t.Helper()
	m := library.NewManager(library.NewMemoryStore(false))
	for _, b := range library.SeedBooks() {
		require.NoError(t, m.AddBook(b))
	}
	for _, u := range library.SeedUsers() {
		require.NoError(t, m.AddUser(u))
	}
	return m
}

func runScript(t *testing.T, m *library.Manager, lines ...string) string {
	t.Helper()
	var out bytes.Buffer
	s := New(m, strings.NewReader(strings.Join(lines, "\n")+"\n"), &out)
	require.NoError(t, s.Run())
	return out.String()
}

func TestBorrowQueueAndReturn(t *testing.T) {
	m := newManager(t)
	out := runScript(t, m,
		"6", "1", // select User A
		"3", "Book One",
		"6", "2", // select User B
		"3", "book one",
		"3", "Book One",
		"7",
		"6", "1",
		"4", "Book One",
		"0",
	)

	assert.Contains(t, out, "Current user set to User A")
	assert.Contains(t, out, "Book 'Book One' successfully borrowed")
	assert.Contains(t, out, "added to the waiting list at position 1")
	assert.Contains(t, out, "You are already on the waiting list for 'Book One' at position 1")
	assert.Contains(t, out, "ID: 1, Title: Book One, Author: Author A, Genre: Fiction, Year: 2000, Available: false")
	assert.Contains(t, out, "   Waiting list: User B")
	assert.Contains(t, out, "Book 'Book One' returned and automatically issued to User B")
	assert.True(t, strings.HasSuffix(out, "Goodbye!\n"))
	assert.NotContains(t, out, "Library Management System", "menu is only shown interactively")
}

func TestStrictBorrowOffersReservation(t *testing.T) {
	m := newManager(t)
	out := runScript(t, m,
		"6", "1",
		"3", "Book Two",
		"6", "2",
		"9", "1",
		"3", "Book Two", "yes",
		"3", "Book Two", "yes",
		"0",
	)

	assert.Contains(t, out, "Borrowing strategy for User B set to Strict availability")
	assert.Contains(t, out, "Error: book 'Book Two' is currently unavailable")
	assert.Contains(t, out, "Book 'Book Two' reserved for you at position 1")
	assert.Contains(t, out, "you have already reserved 'Book Two'")

	books, err := m.ListBooks()
	require.NoError(t, err)
	assert.Len(t, books[1].Queue, 1)
}

func TestCommandsNeedCurrentUser(t *testing.T) {
	out := runScript(t, newManager(t), "3", "4", "9", "10", "0")
	assert.Equal(t, 4, strings.Count(out, "Please select a current user first."))
}

func TestAddAndListRecords(t *testing.T) {
	m := library.NewManager(library.NewMemoryStore(false))
	out := runScript(t, m,
		"7",
		"8",
		"1", "7", "Dune", "Frank Herbert", "SciFi", "1965",
		"1", "8", "Untitled", "Nobody", "", "soon",
		"5", "3", "Carol", "",
		"7",
		"8",
		"11", "herbert",
		"11", "zzz",
		"42",
		"0",
	)

	assert.Contains(t, out, "No books in the library.")
	assert.Contains(t, out, "No users registered.")
	assert.Contains(t, out, "Book added successfully.")
	assert.Contains(t, out, `Error: invalid year: "soon" is not a number`)
	assert.Contains(t, out, "User added successfully.")
	assert.Contains(t, out, "ID: 3, Name: Carol, Email: -, Borrowed books: 0, Strategy: Queue on unavailable")
	assert.Equal(t, 2, strings.Count(out, "Title: Dune"))
	assert.Contains(t, out, "No matching books.")
	assert.Contains(t, out, "Invalid option.")
}

func TestRemoveAndCancel(t *testing.T) {
	m := newManager(t)
	out := runScript(t, m,
		"6", "1",
		"3", "Book Three",
		"6", "2",
		"3", "Book Three",
		"10", "Book Three",
		"10", "Book Three",
		"2", "Book Three",
		"2", "Book Two",
		"2", "Missing",
		"0",
	)

	assert.Contains(t, out, "Reservation for 'Book Three' cancelled")
	assert.Contains(t, out, "no reservation for 'Book Three'")
	assert.Contains(t, out, "'Book Three' is currently borrowed")
	assert.Equal(t, 1, strings.Count(out, "Book removed."))
	assert.Contains(t, out, "Error: book 'Missing' not found")
}

func TestSelectUnknownUser(t *testing.T) {
	out := runScript(t, newManager(t), "6", "99", "6", "abc", "0")
	assert.Contains(t, out, "User not found")
	assert.Contains(t, out, `invalid user ID: "abc" is not a number`)
}

func TestInvalidStrategy(t *testing.T) {
	out := runScript(t, newManager(t), "6", "1", "9", "lottery", "9", "", "0")
	assert.Equal(t, 2, strings.Count(out, "Invalid strategy."))
}

func TestRunStopsAtEndOfInput(t *testing.T) {
	var out bytes.Buffer
	s := New(newManager(t), strings.NewReader("6\n1\n3\n"), &out)
	require.NoError(t, s.Run())
	assert.NotContains(t, out.String(), "Goodbye!")
}

func TestInteractivePrintsMenu(t *testing.T) {
	var out bytes.Buffer
	s := New(newManager(t), strings.NewReader("0\n"), &out, Interactive(true))
	require.NoError(t, s.Run())
	assert.Contains(t, out.String(), "11. Search books")
}

func TestParseError(t *testing.T) {
	_, cause := strconv.Atoi("x")
	err := &ParseError{Field: "year", Input: "x", Err: cause}
	assert.Equal(t, `invalid year: "x" is not a number`, err.Error())
	assert.True(t, errors.Is(err, strconv.ErrSyntax))
}
