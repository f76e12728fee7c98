package library

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
)

// SQLiteStore keeps the session in an in-memory SQLite database. The database
// lives as long as the store's single connection and is gone after Close.
type SQLiteStore struct {
	db        *sqlx.DB
	strictIDs bool
}

type bookRow struct {
	PK        int64  `db:"pk"`
	ID        int    `db:"id"`
	Title     string `db:"title"`
	Author    string `db:"author"`
	Genre     string `db:"genre"`
	Year      int    `db:"year"`
	Available bool   `db:"available"`
}

type userRow struct {
	PK     int64  `db:"pk"`
	ID     int    `db:"id"`
	Name   string `db:"name"`
	Email  string `db:"email"`
	Policy string `db:"policy"`
}

type linkRow struct {
	Owner int64 `db:"owner"`
	Other int64 `db:"other"`
}

// NewSQLiteStore opens a private in-memory database and applies the schema.
func NewSQLiteStore(strictIDs bool) (*SQLiteStore, error) {
	// A unique shared-cache name keeps independent stores apart within one process.
	dsn := fmt.Sprintf("file:library-%s?mode=memory&cache=shared&_foreign_keys=1&_busy_timeout=5000", uuid.NewString())
	db, err := sqlx.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// One connection: the memory database disappears with its last connection.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := applyMigrations(db); err != nil {
		db.Close()
		return nil, err
	}
	return &SQLiteStore{db: db, strictIDs: strictIDs}, nil
}

// Close drops the database.
func (s *SQLiteStore) Close() error { return s.db.Close() }

// ---------------------------------------------------------------------------
// Schema migration
// ---------------------------------------------------------------------------

const schemaVersion = 1

func applyMigrations(db *sqlx.DB) error {
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS meta (key TEXT PRIMARY KEY, value TEXT);`); err != nil {
		return err
	}

	var current int
	_ = db.Get(&current, `SELECT value FROM meta WHERE key='schema_version';`)
	if current >= schemaVersion {
		return nil
	}

	tx, err := db.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmts := []string{
		`CREATE TABLE IF NOT EXISTS users (
            pk INTEGER PRIMARY KEY AUTOINCREMENT,
            id INTEGER NOT NULL,
            name TEXT NOT NULL,
            email TEXT NOT NULL DEFAULT '',
            policy TEXT NOT NULL
        );`,
		`CREATE TABLE IF NOT EXISTS books (
            pk INTEGER PRIMARY KEY AUTOINCREMENT,
            id INTEGER NOT NULL,
            title TEXT NOT NULL,
            author TEXT NOT NULL,
            genre TEXT NOT NULL DEFAULT '',
            year INTEGER NOT NULL,
            available BOOLEAN NOT NULL DEFAULT 1
        );`,
		// A book has at most one holder.
		`CREATE TABLE IF NOT EXISTS loans (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            book_pk INTEGER NOT NULL UNIQUE REFERENCES books(pk) ON DELETE CASCADE,
            user_pk INTEGER NOT NULL REFERENCES users(pk)
        );`,
		`CREATE TABLE IF NOT EXISTS reservations (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            book_pk INTEGER NOT NULL REFERENCES books(pk) ON DELETE CASCADE,
            user_pk INTEGER NOT NULL REFERENCES users(pk),
            UNIQUE(book_pk, user_pk)
        );`,
		`CREATE INDEX IF NOT EXISTS idx_books_id ON books(id);`,
		`CREATE INDEX IF NOT EXISTS idx_users_id ON users(id);`,
	}
	for _, stmt := range stmts {
		if _, err := tx.Exec(stmt); err != nil {
			return fmt.Errorf("apply migration: %w", err)
		}
	}
	if _, err := tx.Exec(`INSERT INTO meta(key,value) VALUES('schema_version',?)
        ON CONFLICT(key) DO UPDATE SET value=excluded.value;`, schemaVersion); err != nil {
		return fmt.Errorf("apply migration: %w", err)
	}

	return tx.Commit()
}

// ---------------------------------------------------------------------------
// Books
// ---------------------------------------------------------------------------

func (s *SQLiteStore) AddBook(b *Book) error {
	if s.strictIDs {
		var exists bool
		if err := s.db.Get(&exists, `SELECT EXISTS(SELECT 1 FROM books WHERE id=?)`, b.ID); err != nil {
			return err
		}
		if exists {
			return fmt.Errorf("book id %d: %w", b.ID, ErrDuplicate)
		}
	}
	res, err := s.db.Exec(`INSERT INTO books(id,title,author,genre,year,available) VALUES(?,?,?,?,?,?)`,
		b.ID, b.Title, b.Author, b.Genre, b.Year, b.Available)
	if err != nil {
		return err
	}
	if b.Key, err = res.LastInsertId(); err != nil {
		return err
	}
	// Held or queued state supplied by the caller is stored too.
	return s.Commit([]*Book{b}, nil)
}

func (s *SQLiteStore) RemoveBook(key int64) error {
	_, err := s.db.Exec(`DELETE FROM books WHERE pk=?`, key)
	return err
}

func (s *SQLiteStore) FindBookByTitle(title string) (*Book, error) {
	books, err := s.ListBooks()
	if err != nil {
		return nil, err
	}
	return firstByTitle(books, title)
}

func (s *SQLiteStore) BookByKey(key int64) (*Book, error) {
	var r bookRow
	err := s.db.Get(&r, `SELECT pk,id,title,author,genre,year,available FROM books WHERE pk=?`, key)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("book #%d %w", key, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	var queue []int64
	if err := s.db.Select(&queue, `SELECT user_pk FROM reservations WHERE book_pk=? ORDER BY id`, key); err != nil {
		return nil, err
	}
	return r.book(queue), nil
}

// ListBooks returns all books in insertion order with their waiting lists.
func (s *SQLiteStore) ListBooks() ([]*Book, error) {
	var rows []bookRow
	if err := s.db.Select(&rows, `SELECT pk,id,title,author,genre,year,available FROM books ORDER BY pk`); err != nil {
		return nil, err
	}
	var links []linkRow
	if err := s.db.Select(&links, `SELECT book_pk AS owner, user_pk AS other FROM reservations ORDER BY id`); err != nil {
		return nil, err
	}
	queues := groupLinks(links)

	books := make([]*Book, 0, len(rows))
	for _, r := range rows {
		books = append(books, r.book(queues[r.PK]))
	}
	return books, nil
}

func (r bookRow) book(queue []int64) *Book {
	return &Book{
		Key:       r.PK,
		ID:        r.ID,
		Title:     r.Title,
		Author:    r.Author,
		Genre:     r.Genre,
		Year:      r.Year,
		Available: r.Available,
		Queue:     queue,
	}
}

// ---------------------------------------------------------------------------
// Users
// ---------------------------------------------------------------------------

func (s *SQLiteStore) AddUser(u *User) error {
	if s.strictIDs {
		var exists bool
		if err := s.db.Get(&exists, `SELECT EXISTS(SELECT 1 FROM users WHERE id=?)`, u.ID); err != nil {
			return err
		}
		if exists {
			return fmt.Errorf("user id %d: %w", u.ID, ErrDuplicate)
		}
	}
	res, err := s.db.Exec(`INSERT INTO users(id,name,email,policy) VALUES(?,?,?,?)`,
		u.ID, u.Name, u.Email, u.policy().Name())
	if err != nil {
		return err
	}
	if u.Key, err = res.LastInsertId(); err != nil {
		return err
	}
	return s.Commit(nil, []*User{u})
}

func (s *SQLiteStore) FindUserByID(id int) (*User, error) {
	var pk int64
	err := s.db.Get(&pk, `SELECT pk FROM users WHERE id=? ORDER BY pk LIMIT 1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("user %d %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return s.UserByKey(pk)
}

func (s *SQLiteStore) UserByKey(key int64) (*User, error) {
	var r userRow
	err := s.db.Get(&r, `SELECT pk,id,name,email,policy FROM users WHERE pk=?`, key)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("user #%d %w", key, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	var borrowed []int64
	if err := s.db.Select(&borrowed, `SELECT book_pk FROM loans WHERE user_pk=? ORDER BY id`, key); err != nil {
		return nil, err
	}
	return r.user(borrowed)
}

// ListUsers returns all users in registration order with their borrowed books.
func (s *SQLiteStore) ListUsers() ([]*User, error) {
	var rows []userRow
	if err := s.db.Select(&rows, `SELECT pk,id,name,email,policy FROM users ORDER BY pk`); err != nil {
		return nil, err
	}
	var links []linkRow
	if err := s.db.Select(&links, `SELECT user_pk AS owner, book_pk AS other FROM loans ORDER BY id`); err != nil {
		return nil, err
	}
	loans := groupLinks(links)

	users := make([]*User, 0, len(rows))
	for _, r := range rows {
		u, err := r.user(loans[r.PK])
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, nil
}

func (r userRow) user(borrowed []int64) (*User, error) {
	policy, err := ParsePolicy(r.Policy)
	if err != nil {
		return nil, fmt.Errorf("user %d: %w", r.ID, err)
	}
	return &User{
		Key:      r.PK,
		ID:       r.ID,
		Name:     r.Name,
		Email:    r.Email,
		Borrowed: borrowed,
		Policy:   policy,
	}, nil
}

func groupLinks(links []linkRow) map[int64][]int64 {
	out := make(map[int64][]int64)
	for _, l := range links {
		out[l.Owner] = append(out[l.Owner], l.Other)
	}
	return out
}

// ---------------------------------------------------------------------------
// Commit
// ---------------------------------------------------------------------------

// Commit rewrites availability, waiting lists, loans and policies in one
// transaction. All loans of the given users are cleared before any is
// re-inserted so a hand-off between them never trips the single-holder rule.
func (s *SQLiteStore) Commit(books []*Book, users []*User) error {
	tx, err := s.db.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, b := range books {
		if err := execOne(tx, `UPDATE books SET available=? WHERE pk=?`, b.Available, b.Key); err != nil {
			return fmt.Errorf("commit book #%d: %w", b.Key, err)
		}
		if _, err := tx.Exec(`DELETE FROM reservations WHERE book_pk=?`, b.Key); err != nil {
			return err
		}
		for _, userKey := range b.Queue {
			if _, err := tx.Exec(`INSERT INTO reservations(book_pk,user_pk) VALUES(?,?)`, b.Key, userKey); err != nil {
				return fmt.Errorf("queue user #%d on book #%d: %w", userKey, b.Key, err)
			}
		}
	}

	for _, u := range users {
		if err := execOne(tx, `UPDATE users SET policy=? WHERE pk=?`, u.policy().Name(), u.Key); err != nil {
			return fmt.Errorf("commit user #%d: %w", u.Key, err)
		}
		if _, err := tx.Exec(`DELETE FROM loans WHERE user_pk=?`, u.Key); err != nil {
			return err
		}
	}
	for _, u := range users {
		for _, bookKey := range u.Borrowed {
			if _, err := tx.Exec(`INSERT INTO loans(book_pk,user_pk) VALUES(?,?)`, bookKey, u.Key); err != nil {
				return fmt.Errorf("lend book #%d to user #%d: %w", bookKey, u.Key, err)
			}
		}
	}

	return tx.Commit()
}

// execOne runs an update that must touch exactly one row.
func execOne(tx *sqlx.Tx, query string, args ...any) error {
	res, err := tx.Exec(query, args...)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
