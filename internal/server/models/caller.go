package models

// Caller is the authenticated identity behind a request. A nil *Caller is an
// anonymous caller.
type Caller struct {
	ID   string
	Name string
}
