package repository

import (
	"context"
	"errors"
	"time"

	"github.com/Siddarth2230/linklytics/internal/models"
)

var (
	ErrNotFound      = errors.New("record not found")
	ErrDuplicateCode = errors.New("short code or alias already exists")
	// ErrUnavailable marks transient infrastructure failures (lost connection, timeout).
	ErrUnavailable = errors.New("store unavailable")
)

// LinkRepository is the durable store for links and their click events.
type LinkRepository interface {
	// Create inserts a new link. It fails with ErrDuplicateCode if the short code or
	// alias collides with an existing link's short code or alias.
	Create(ctx context.Context, link *models.Link) error

	FindByCode(ctx context.Context, code string) (*models.Link, error)
	FindByOwnerAndCode(ctx context.Context, ownerID, code string) (*models.Link, error)

	// ListByOwner returns the owner's links newest first, leaving out any whose
	// expiry is at or before asOf.
	ListByOwner(ctx context.Context, ownerID string, asOf time.Time, limit int) ([]models.Link, error)

	// IncrementClickCount atomically adds one click and returns the new count.
	IncrementClickCount(ctx context.Context, id string) (int64, error)

	// DeleteCascade removes a link together with all its click events.
	DeleteCascade(ctx context.Context, id string) error

	// InsertClickEvent fails with ErrNotFound if the link no longer exists.
	InsertClickEvent(ctx context.Context, event *models.ClickEvent) error
	ListClickEvents(ctx context.Context, linkID string, limit int, newestFirst bool) ([]models.ClickEvent, error)

	// Analytics reads an owner's link and its newest events from one consistent view.
	Analytics(ctx context.Context, ownerID, code string, limit int) (*models.Link, []models.ClickEvent, error)

	Close() error
}
