package library

// SeedBooks returns the demo catalog used when no book file is available.
func SeedBooks() []*Book {
	return []*Book{
		NewBook(1, "Book One", "Author A", "Fiction", 2000),
		NewBook(2, "Book Two", "Author B", "Science", 2005),
		NewBook(3, "Book Three", "Author C", "History", 2010),
	}
}

// SeedUsers returns the demo users used when no user file is available.
func SeedUsers() []*User {
	return []*User{
		NewUser(1, "User A", ""),
		NewUser(2, "User B", ""),
	}
}
