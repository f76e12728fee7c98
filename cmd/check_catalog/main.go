package main

import (
	"fmt"
	"os"
	"strings"

	"library-lending/library"
)

// check_catalog loads a book file and a user file the way a session would and
// prints what was imported and which rows were skipped.
//
//	go run ./cmd/check_catalog [books.csv] [users.csv]
func main() {
	booksFile, usersFile := "books.csv", "users.csv"
	if len(os.Args) > 1 {
		booksFile = os.Args[1]
	}
	if len(os.Args) > 2 {
		usersFile = os.Args[2]
	}

	// Strict ids so repeated rows show up in the report.
	manager := library.NewManager(library.NewMemoryStore(true))
	defer manager.Close()

	fmt.Printf("Importing books from %s (%s)...\n", booksFile, library.BookColumns)
	books, bookReport, err := library.LoadBooksFile(booksFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error reading books: %v\n", err)
		os.Exit(1)
	}
	if err := library.ImportBooks(manager, books, &bookReport); err != nil {
		fmt.Fprintf(os.Stderr, "Error importing books: %v\n", err)
		os.Exit(1)
	}
	printReport(bookReport)

	fmt.Printf("\nImporting users from %s (%s)...\n", usersFile, library.UserColumns)
	users, userReport, err := library.LoadUsersFile(usersFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error reading users: %v\n", err)
		os.Exit(1)
	}
	if err := library.ImportUsers(manager, users, &userReport); err != nil {
		fmt.Fprintf(os.Stderr, "Error importing users: %v\n", err)
		os.Exit(1)
	}
	printReport(userReport)

	all, err := manager.ListBooks()
	if err != nil {
		fmt.Printf("Error retrieving books: %v\n", err)
		os.Exit(1)
	}
	if len(all) > 0 {
		fmt.Println("\nImported books:")
		fmt.Printf("%-5s %-40s %-25s %-15s %-4s\n", "ID", "Title", "Author", "Genre", "Year")
		fmt.Println(strings.Repeat("-", 93))
		for _, b := range all {
			fmt.Printf("%-5d %-40s %-25s %-15s %-4d\n", b.ID, truncateString(b.Title, 40), truncateString(b.Author, 25), truncateString(b.Genre, 15), b.Year)
		}
	}

	if bookReport.Skipped+userReport.Skipped > 0 {
		os.Exit(2)
	}
}

func printReport(r library.LoadReport) {
	fmt.Printf("Rows: %d | Loaded: %d | Skipped: %d\n", r.Rows, r.Loaded, r.Skipped)
	for _, p := range r.Problems {
		fmt.Printf("  SKIPPED - %s\n", p)
	}
}

func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return s[:maxLen]
	}
	return s[:maxLen-3] + "..."
}
