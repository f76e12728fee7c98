package library

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// Canonical column layouts. The first line of every file is a header and is skipped.
const (
	BookColumns = "id,title,author,year,genre"
	UserColumns = "id,name,email"
)

const (
	bookFields = 5
	userFields = 3
)

// LoadReport describes one bulk load. Rows that cannot be used are skipped
// and listed in Problems rather than failing the load.
type LoadReport struct {
	Source   string
	Rows     int
	Loaded   int
	Skipped  int
	Problems []string
}

func (r *LoadReport) skip(line int, format string, args ...any) {
	r.Skipped++
	r.Problems = append(r.Problems, fmt.Sprintf("Line %d: %s", line, fmt.Sprintf(format, args...)))
}

func (r LoadReport) String() string {
	return fmt.Sprintf("%s: %d rows, %d loaded, %d skipped", r.Source, r.Rows, r.Loaded, r.Skipped)
}

// LoadBooksFile reads books from path. A missing file yields no books.
func LoadBooksFile(path string) ([]*Book, LoadReport, error) {
	f, err := os.Open(filepath.Clean(path))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, LoadReport{Source: path}, nil
	}
	if err != nil {
		return nil, LoadReport{Source: path}, err
	}
	defer f.Close()
	books, report, err := LoadBooks(f)
	report.Source = path
	return books, report, err
}

// LoadUsersFile reads users from path. A missing file yields no users.
func LoadUsersFile(path string) ([]*User, LoadReport, error) {
	f, err := os.Open(filepath.Clean(path))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, LoadReport{Source: path}, nil
	}
	if err != nil {
		return nil, LoadReport{Source: path}, err
	}
	defer f.Close()
	users, report, err := LoadUsers(f)
	report.Source = path
	return users, report, err
}

// LoadBooks parses rows laid out as BookColumns.
func LoadBooks(r io.Reader) ([]*Book, LoadReport, error) {
	var books []*Book
	report, err := readRows(r, bookFields, func(line int, rec []string, report *LoadReport) {
		id, err := strconv.Atoi(rec[0])
		if err != nil {
			report.skip(line, "invalid id %q", rec[0])
			return
		}
		year, err := strconv.Atoi(rec[3])
		if err != nil {
			report.skip(line, "invalid year %q", rec[3])
			return
		}
		b := NewBook(id, rec[1], rec[2], rec[4], year)
		if err := b.Validate(); err != nil {
			report.skip(line, "%v", err)
			return
		}
		books = append(books, b)
	})
	return books, report, err
}

// LoadUsers parses rows laid out as UserColumns. The email column may be empty.
func LoadUsers(r io.Reader) ([]*User, LoadReport, error) {
	var users []*User
	report, err := readRows(r, userFields, func(line int, rec []string, report *LoadReport) {
		id, err := strconv.Atoi(rec[0])
		if err != nil {
			report.skip(line, "invalid id %q", rec[0])
			return
		}
		u := NewUser(id, rec[1], rec[2])
		if err := u.Validate(); err != nil {
			report.skip(line, "%v", err)
			return
		}
		users = append(users, u)
	})
	return users, report, err
}

// readRows skips the header and hands every record with the expected field
// count to parse. parse either appends a record or calls report.skip.
func readRows(r io.Reader, fields int, parse func(line int, rec []string, report *LoadReport)) (LoadReport, error) {
	var report LoadReport
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1 // counts are checked per row
	reader.TrimLeadingSpace = true

	if _, err := reader.Read(); err != nil {
		if err == io.EOF {
			return report, nil
		}
		return report, fmt.Errorf("failed to read header: %w", err)
	}

	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		report.Rows++
		if err != nil {
			var perr *csv.ParseError
			if !errors.As(err, &perr) {
				return report, err
			}
			report.skip(perr.StartLine, "%v", perr.Err)
			continue
		}
		line, _ := reader.FieldPos(0)
		if len(record) != fields {
			report.skip(line, "expected %d fields, got %d", fields, len(record))
			continue
		}
		for i := range record {
			record[i] = strings.TrimSpace(record[i])
		}
		before := report.Skipped
		parse(line, record, &report)
		if report.Skipped == before {
			report.Loaded++
		}
	}
	return report, nil
}

// ImportBooks adds loaded books through the manager. Books the store refuses,
// such as repeated ids in strict mode, move from loaded to skipped.
func ImportBooks(m *Manager, books []*Book, report *LoadReport) error {
	for _, b := range books {
		if err := m.AddBook(b); err != nil {
			if !errors.Is(err, ErrDuplicate) && !errors.Is(err, ErrInvalid) {
				return err
			}
			report.reject(err)
		}
	}
	return nil
}

// ImportUsers is ImportBooks for users.
func ImportUsers(m *Manager, users []*User, report *LoadReport) error {
	for _, u := range users {
		if err := m.AddUser(u); err != nil {
			if !errors.Is(err, ErrDuplicate) && !errors.Is(err, ErrInvalid) {
				return err
			}
			report.reject(err)
		}
	}
	return nil
}

func (r *LoadReport) reject(err error) {
	r.Loaded--
	r.Skipped++
	r.Problems = append(r.Problems, err.Error())
}
