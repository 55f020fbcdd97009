package service

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/Siddarth2230/linklytics/internal/geo"
	"github.com/Siddarth2230/linklytics/internal/models"
	"github.com/Siddarth2230/linklytics/internal/policy"
	"github.com/Siddarth2230/linklytics/internal/repository"
	"github.com/Siddarth2230/linklytics/pkg/metrics"
)

// ingest records a permitted click. The counter is advanced first so that a
// capped link never hands out more than MaxClicks redirects: a request whose
// increment lands past the cap is turned into ClickExhausted and writes no event.
// Geolocation and the event insert are best-effort.
//
// A link deleted after it was read (possibly refilling a cache tier from the
// stale read) fails here with ErrNotFound; both tiers are dropped again.
func (s *LinkService) ingest(ctx context.Context, link *models.Link, req ResolveRequest, now time.Time) (Resolution, error) {
	count, err := s.advance(ctx, link.ID)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		s.invalidate(ctx, link.ShortCode)
		return Resolution{}, ErrNotFound
	case err != nil:
		metrics.IngestFailures.WithLabelValues("counter").Inc()
		log.Printf("ingest: click counter for %s not advanced: %v", link.ShortCode, err)
		count = link.ClickCount
	case link.MaxClicks > 0 && count > link.MaxClicks:
		return Resolution{Verdict: policy.ClickExhausted}, nil
	}

	loc := s.locate(ctx, req.SourceAddress)

	referrer := req.Referrer
	if referrer == "" {
		referrer = models.DirectReferrer
	}
	event := &models.ClickEvent{
		ID:            uuid.NewString(),
		LinkID:        link.ID,
		Timestamp:     now.UTC(),
		Referrer:      referrer,
		SourceAddress: req.SourceAddress,
		Country:       loc.Country,
		City:          loc.City,
	}
	if err := s.repo.InsertClickEvent(ctx, event); err != nil {
		metrics.IngestFailures.WithLabelValues("event").Inc()
		log.Printf("ingest: click event for %s dropped: %v", link.ShortCode, err)
	}

	return Resolution{Verdict: policy.Allowed, OriginalURL: link.OriginalURL, ClickCount: count}, nil
}

// advance increments the stored counter, retrying once on a transient failure.
func (s *LinkService) advance(ctx context.Context, id string) (int64, error) {
	count, err := s.repo.IncrementClickCount(ctx, id)
	if err != nil && errors.Is(err, repository.ErrUnavailable) {
		log.Printf("ingest: retrying click counter for link %s: %v", id, err)
		count, err = s.repo.IncrementClickCount(ctx, id)
	}
	return count, err
}

func (s *LinkService) locate(ctx context.Context, addr string) geo.Location {
	if s.geoTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.geoTimeout)
		defer cancel()
	}
	loc, err := geo.Resolve(ctx, s.locator, addr)
	if err != nil && !errors.Is(err, geo.ErrNoLocation) {
		metrics.IngestFailures.WithLabelValues("geo").Inc()
		log.Printf("ingest: geo lookup for %q failed: %v", addr, err)
	}
	return loc
}
