package storage

import "time"

// User is a document of the users collection keyed by its ID
type User struct {
	ID       string
	LoggedIn bool
}

// Message is a single entry of a user's chat log
type Message struct {
	ID        string
	UserID    string
	Text      string
	Timestamp time.Time
}
