package content

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound is returned when an entry cannot be located or is hidden from the viewer.
var ErrNotFound = errors.New("content entry not found")

// ErrForbidden is returned when the author may not manage the entry.
var ErrForbidden = errors.New("content entry not editable")

// Kind names one content collection.
type Kind string

const (
	KindAnnouncement Kind = "announcement"
	KindBlogPost     Kind = "blog_post"
	KindHallOfFame   Kind = "hall_of_fame"
	KindBusiness     Kind = "business"
)

var collections = map[string]Kind{
	"announcements": KindAnnouncement,
	"blogPosts":     KindBlogPost,
	"hallOfFame":    KindHallOfFame,
	"businesses":    KindBusiness,
}

// ParseKind accepts a kind or its collection name.
func ParseKind(raw string) (Kind, bool) {
	if kind, ok := collections[raw]; ok {
		return kind, true
	}
	kind := Kind(raw)
	return kind, kind.Valid()
}

// Valid reports whether k is a known kind.
func (k Kind) Valid() bool {
	switch k {
	case KindAnnouncement, KindBlogPost, KindHallOfFame, KindBusiness:
		return true
	}
	return false
}

// Collection returns the collection name the kind is published under.
func (k Kind) Collection() string {
	for name, kind := range collections {
		if kind == k {
			return name
		}
	}
	return ""
}

// Entry is one announcement, blog post, hall of fame inductee or business listing.
type Entry struct {
	ID        uuid.UUID `db:"id" json:"id"`
	Kind      Kind      `db:"kind" json:"kind"`
	Title     string    `db:"title" json:"title"`
	Summary   string    `db:"summary" json:"summary"`
	Body      string    `db:"body" json:"body"`
	ImageURL  string    `db:"image_url" json:"imageUrl"`
	LinkURL   string    `db:"link_url" json:"linkUrl"`
	Category  string    `db:"category" json:"category"`
	ClassYear *int      `db:"class_year" json:"classYear,omitempty"`
	AuthorID  uuid.UUID `db:"author_id" json:"authorId"`
	Published bool      `db:"published" json:"published"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt time.Time `db:"updated_at" json:"updatedAt"`
}

// Input carries the editable fields of an entry.
type Input struct {
	Title     string `json:"title"`
	Summary   string `json:"summary"`
	Body      string `json:"body"`
	ImageURL  string `json:"imageUrl"`
	LinkURL   string `json:"linkUrl"`
	Category  string `json:"category"`
	ClassYear *int   `json:"classYear"`
	Published *bool  `json:"published"`
}

// Author identifies who is reading or writing content.
type Author struct {
	ID       uuid.UUID
	Admin    bool
	Approved bool
}

// ListOptions filters content listings.
type ListOptions struct {
	Kind               Kind
	IncludeUnpublished bool
	AuthorID           *uuid.UUID
	Limit              int
}
