package library

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// eachStore runs fn against every Store implementation.
func eachStore(t *testing.T, strictIDs bool, fn func(t *testing.T, s Store)) {
	t.Helper()
	t.Run("memory", func(t *testing.T) {
		fn(t, NewMemoryStore(strictIDs))
	})
	t.Run("sqlite", func(t *testing.T) {
		s, err := NewSQLiteStore(strictIDs)
		require.NoError(t, err)
		t.Cleanup(func() { s.Close() })
		fn(t, s)
	})
}

func TestStoreAddAndFindBookByTitle(t *testing.T) {
	eachStore(t, false, func(t *testing.T, s Store) {
		require.NoError(t, s.AddBook(NewBook(1, "Book One", "Author A", "Fiction", 2000)))
		require.NoError(t, s.AddBook(NewBook(2, "Book Two", "Author B", "Science", 2005)))

		b, err := s.FindBookByTitle("book one")
		require.NoError(t, err)
		assert.Equal(t, 1, b.ID)
		assert.Equal(t, "Book One", b.Title)
		assert.True(t, b.Available)

		_, err = s.FindBookByTitle("Book")
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestStoreDuplicateTitlesResolveToFirstInserted(t *testing.T) {
	eachStore(t, false, func(t *testing.T, s Store) {
		require.NoError(t, s.AddBook(NewBook(7, "Dune", "Herbert", "SF", 1965)))
		require.NoError(t, s.AddBook(NewBook(8, "DUNE", "Someone Else", "SF", 2021)))

		b, err := s.FindBookByTitle("dune")
		require.NoError(t, err)
		assert.Equal(t, 7, b.ID)
	})
}

func TestStoreDuplicateIDs(t *testing.T) {
	eachStore(t, false, func(t *testing.T, s Store) {
		require.NoError(t, s.AddBook(NewBook(1, "A", "X", "", 1)))
		require.NoError(t, s.AddBook(NewBook(1, "B", "Y", "", 2)))
		books, err := s.ListBooks()
		require.NoError(t, err)
		require.Len(t, books, 2)
		assert.NotEqual(t, books[0].Key, books[1].Key)

		require.NoError(t, s.AddUser(NewUser(5, "Ann", "")))
		require.NoError(t, s.AddUser(NewUser(5, "Ben", "")))
		u, err := s.FindUserByID(5)
		require.NoError(t, err)
		assert.Equal(t, "Ann", u.Name)
	})

	eachStore(t, true, func(t *testing.T, s Store) {
		require.NoError(t, s.AddBook(NewBook(1, "A", "X", "", 1)))
		assert.ErrorIs(t, s.AddBook(NewBook(1, "B", "Y", "", 2)), ErrDuplicate)

		require.NoError(t, s.AddUser(NewUser(5, "Ann", "")))
		assert.ErrorIs(t, s.AddUser(NewUser(5, "Ben", "")), ErrDuplicate)

		books, err := s.ListBooks()
		require.NoError(t, err)
		assert.Len(t, books, 1)
	})
}

func TestStoreRemoveBook(t *testing.T) {
	eachStore(t, false, func(t *testing.T, s Store) {
		b := NewBook(1, "Gone", "X", "", 1)
		require.NoError(t, s.AddBook(b))
		require.NoError(t, s.RemoveBook(b.Key))
		require.NoError(t, s.RemoveBook(b.Key), "removing twice is a no-op")

		_, err := s.FindBookByTitle("Gone")
		assert.ErrorIs(t, err, ErrNotFound)
		_, err = s.BookByKey(b.Key)
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestStoreUserLookup(t *testing.T) {
	eachStore(t, false, func(t *testing.T, s Store) {
		u := NewUser(3, "Carol", "carol@example.com")
		u.Policy = StrictAvailability{}
		require.NoError(t, s.AddUser(u))

		got, err := s.FindUserByID(3)
		require.NoError(t, err)
		assert.Equal(t, "carol@example.com", got.Email)
		assert.Equal(t, StrictAvailability{}, got.Policy)

		byKey, err := s.UserByKey(u.Key)
		require.NoError(t, err)
		assert.Equal(t, got.ID, byKey.ID)

		_, err = s.FindUserByID(99)
		assert.ErrorIs(t, err, ErrNotFound)
		_, err = s.UserByKey(12345)
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestStoreHandsOutCopies(t *testing.T) {
	eachStore(t, false, func(t *testing.T, s Store) {
		require.NoError(t, s.AddBook(NewBook(1, "Book", "X", "", 1)))
		b, err := s.FindBookByTitle("Book")
		require.NoError(t, err)
		b.Available = false

		again, err := s.FindBookByTitle("Book")
		require.NoError(t, err)
		assert.True(t, again.Available, "uncommitted change must not leak into the store")
	})
}

func TestStoreCommitLoanAndQueue(t *testing.T) {
	eachStore(t, false, func(t *testing.T, s Store) {
		b := NewBook(1, "Book", "X", "", 1)
		alice := NewUser(1, "Alice", "")
		bob := NewUser(2, "Bob", "")
		require.NoError(t, s.AddBook(b))
		require.NoError(t, s.AddUser(alice))
		require.NoError(t, s.AddUser(bob))

		lend(alice, b)
		enqueue(bob, b)
		bob.Policy = StrictAvailability{}
		require.NoError(t, s.Commit([]*Book{b}, []*User{alice, bob}))

		got, err := s.BookByKey(b.Key)
		require.NoError(t, err)
		assert.False(t, got.Available)
		assert.Equal(t, []int64{bob.Key}, got.Queue)

		gotAlice, err := s.UserByKey(alice.Key)
		require.NoError(t, err)
		assert.Equal(t, []int64{b.Key}, gotAlice.Borrowed)

		gotBob, err := s.UserByKey(bob.Key)
		require.NoError(t, err)
		assert.Empty(t, gotBob.Borrowed)
		assert.Equal(t, StrictAvailability{}, gotBob.Policy)

		// Hand-off from Alice to Bob in one commit.
		alice.release(b.Key)
		b.Queue = b.Queue[1:]
		bob.Borrowed = append(bob.Borrowed, b.Key)
		require.NoError(t, s.Commit([]*Book{b}, []*User{bob, alice}))

		users, err := s.ListUsers()
		require.NoError(t, err)
		require.Len(t, users, 2)
		assert.Empty(t, users[0].Borrowed)
		assert.Equal(t, []int64{b.Key}, users[1].Borrowed)

		books, err := s.ListBooks()
		require.NoError(t, err)
		assert.Empty(t, books[0].Queue)
		assert.False(t, books[0].Available)
	})
}

func TestStoreCommitUnknownRecord(t *testing.T) {
	eachStore(t, false, func(t *testing.T, s Store) {
		ghost := NewBook(1, "Ghost", "X", "", 1)
		ghost.Key = 999
		assert.ErrorIs(t, s.Commit([]*Book{ghost}, nil), ErrNotFound)
	})
}

func TestSQLiteStoresAreIndependent(t *testing.T) {
	a, err := NewSQLiteStore(false)
	require.NoError(t, err)
	defer a.Close()
	b, err := NewSQLiteStore(false)
	require.NoError(t, err)
	defer b.Close()

	require.NoError(t, a.AddBook(NewBook(1, "Only In A", "X", "", 1)))

	books, err := b.ListBooks()
	require.NoError(t, err)
	assert.Empty(t, books)
}
