// Package models defines the server-side data models shared by the
// repositories, the index and the services.
package models

import "time"

// Book is the canonical catalog record. Empty optional strings mean absent.
type Book struct {
	ID          string
	Title       string `validate:"required,max=255"`
	Author      string `validate:"max=255"`
	PublishedOn *time.Time
	Description string
	// CreatorID is empty for books created anonymously.
	CreatorID string
	// Cover is nil when the book has no cover image.
	Cover     *BlobRef
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Clone returns a deep copy, so stored values never alias caller values.
func (b *Book) Clone() *Book {
	if b == nil {
		return nil
	}
	c := *b
	if b.PublishedOn != nil {
		t := *b.PublishedOn
		c.PublishedOn = &t
	}
	if b.Cover != nil {
		ref := *b.Cover
		c.Cover = &ref
	}
	return &c
}

// Upload is a cover image supplied by the caller.
type Upload struct {
	FileName string
	Content  []byte
}

// BookInput carries the fields accepted on create.
type BookInput struct {
	Title       string
	Author      string
	PublishedOn *time.Time
	Description string
	Cover       *Upload
}

// BookFields is a partial update: nil pointers leave the stored value alone.
// A PublishedOn pointing at the zero time clears the date.
type BookFields struct {
	Title       *string
	Author      *string
	PublishedOn *time.Time
	Description *string
	Cover       *Upload
	RemoveCover bool
}

// DateOnly truncates t to midnight UTC of its calendar day.
func DateOnly(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
