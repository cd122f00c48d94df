package models

import "time"

// IndexRecord is the subset of a book mirrored into the secondary index.
type IndexRecord struct {
	ID          string
	Title       string
	Author      string
	PublishedOn *time.Time
	CreatorID   string
	CoverKey    string
	UpdatedAt   time.Time
}

func NewIndexRecord(b *Book) IndexRecord {
	rec := IndexRecord{
		ID:        b.ID,
		Title:     b.Title,
		Author:    b.Author,
		CreatorID: b.CreatorID,
		UpdatedAt: b.UpdatedAt,
	}
	if b.PublishedOn != nil {
		t := *b.PublishedOn
		rec.PublishedOn = &t
	}
	if b.Cover != nil {
		rec.CoverKey = b.Cover.Key
	}
	return rec
}

type IndexOp string

const (
	IndexOpUpsert IndexOp = "upsert"
	IndexOpDelete IndexOp = "delete"
)

// IndexEvent is an outbox row asking the propagator to refresh one book in
// the index.
type IndexEvent struct {
	ID        int64
	BookID    string
	Op        IndexOp
	Attempts  int
	CreatedAt time.Time
}
