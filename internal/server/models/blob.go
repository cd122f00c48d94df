package models

import "time"

// BlobRef points a book at its cover blob in object storage.
type BlobRef struct {
	// Key is cover_images/{book_id}/{file_name}.
	Key         string
	FileName    string
	ContentType string
	// URL is derived from Key on read and never persisted.
	URL string
}

// ObjectInfo describes a stored object as returned by listings.
type ObjectInfo struct {
	Key          string
	Size         int64
	LastModified time.Time
}
