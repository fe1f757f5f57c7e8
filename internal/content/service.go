package content

import (
	"context"
	"html"
	"log/slog"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
	"github.com/google/uuid"
	"github.com/microcosm-cc/bluemonday"

	"alumni/internal/apperr"
)

// Service applies publishing rules to content entries.
type Service struct {
	repo   Repository
	logger *slog.Logger
	body   *bluemonday.Policy
	plain  *bluemonday.Policy
	now    func() time.Time
}

// NewService wires the content store.
func NewService(repo Repository, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Service{
		repo:   repo,
		logger: logger,
		body:   bluemonday.UGCPolicy(),
		plain:  bluemonday.StrictPolicy(),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// List returns entries of kind visible to viewer. Unpublished entries are shown to admins only.
func (s *Service) List(ctx context.Context, viewer Author, kind Kind, limit int) ([]Entry, error) {
	if !kind.Valid() {
		return nil, apperr.Invalid("kind", "unknown content kind")
	}
	return s.repo.List(ctx, ListOptions{Kind: kind, IncludeUnpublished: viewer.Admin, Limit: limit})
}

// Get returns one entry if viewer may see it.
func (s *Service) Get(ctx context.Context, viewer Author, id uuid.UUID) (Entry, error) {
	entry, err := s.repo.Get(ctx, id)
	if err != nil {
		return Entry{}, err
	}
	if !entry.Published && !viewer.Admin {
		return Entry{}, ErrNotFound
	}
	return entry, nil
}

// Create publishes a new entry of kind on behalf of author.
func (s *Service) Create(ctx context.Context, author Author, kind Kind, input Input) (Entry, error) {
	if !kind.Valid() {
		return Entry{}, apperr.Invalid("kind", "unknown content kind")
	}
	if !canCreate(author, kind) {
		return Entry{}, ErrForbidden
	}
	input = s.sanitize(input)
	if err := validateInput(input, s.now()); err != nil {
		return Entry{}, err
	}

	now := s.now()
	entry := Entry{
		ID:        uuid.New(),
		Kind:      kind,
		AuthorID:  author.ID,
		Published: true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	apply(&entry, input)

	created, err := s.repo.Create(ctx, entry)
	if err != nil {
		return Entry{}, err
	}
	s.logger.Info("content entry created", "entry_id", created.ID, "kind", kind, "author_id", author.ID)
	return created, nil
}

// Update replaces the editable fields of an entry.
func (s *Service) Update(ctx context.Context, author Author, id uuid.UUID, input Input) (Entry, error) {
	entry, err := s.repo.Get(ctx, id)
	if err != nil {
		return Entry{}, err
	}
	if !canManage(author, entry) {
		return Entry{}, ErrForbidden
	}
	input = s.sanitize(input)
	if err := validateInput(input, s.now()); err != nil {
		return Entry{}, err
	}

	apply(&entry, input)
	entry.UpdatedAt = s.now()
	return s.repo.Update(ctx, entry)
}

// Delete removes an entry.
func (s *Service) Delete(ctx context.Context, author Author, id uuid.UUID) error {
	entry, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	if !canManage(author, entry) {
		return ErrForbidden
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.logger.Info("content entry deleted", "entry_id", id, "kind", entry.Kind, "author_id", author.ID)
	return nil
}

// canCreate: admins manage every kind, approved members may list their own business.
func canCreate(author Author, kind Kind) bool {
	if author.Admin {
		return true
	}
	return kind == KindBusiness && author.Approved
}

func canManage(author Author, entry Entry) bool {
	if author.Admin {
		return true
	}
	return entry.Kind == KindBusiness && author.Approved && entry.AuthorID == author.ID
}

func (s *Service) sanitize(input Input) Input {
	input.Title = s.plainText(input.Title)
	input.Summary = s.plainText(input.Summary)
	input.Category = s.plainText(input.Category)
	input.Body = strings.TrimSpace(s.body.Sanitize(input.Body))
	input.ImageURL = strings.TrimSpace(input.ImageURL)
	input.LinkURL = strings.TrimSpace(input.LinkURL)
	return input
}

// plainText strips markup but stores the text itself unescaped, so "&" survives repeated edits.
func (s *Service) plainText(value string) string {
	return strings.TrimSpace(html.UnescapeString(s.plain.Sanitize(value)))
}

func validateInput(input Input, now time.Time) error {
	err := validation.ValidateStruct(&input,
		validation.Field(&input.Title, validation.Required, validation.RuneLength(1, 200)),
		validation.Field(&input.Summary, validation.RuneLength(0, 500)),
		validation.Field(&input.Body, validation.RuneLength(0, 20000)),
		validation.Field(&input.Category, validation.RuneLength(0, 80)),
		validation.Field(&input.ImageURL, is.URL),
		validation.Field(&input.LinkURL, is.URL),
		validation.Field(&input.ClassYear, validation.Min(1900), validation.Max(now.Year()+6)),
	)
	return apperr.Validation(err)
}

func apply(entry *Entry, input Input) {
	entry.Title = input.Title
	entry.Summary = input.Summary
	entry.Body = input.Body
	entry.ImageURL = input.ImageURL
	entry.LinkURL = input.LinkURL
	entry.Category = input.Category
	entry.ClassYear = input.ClassYear
	if input.Published != nil {
		entry.Published = *input.Published
	}
}
