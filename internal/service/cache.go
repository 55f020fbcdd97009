package service

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/Siddarth2230/linklytics/internal/models"
	"github.com/Siddarth2230/linklytics/internal/repository"
	"github.com/Siddarth2230/linklytics/pkg/cache"
	"github.com/Siddarth2230/linklytics/pkg/metrics"
)

// cachedLink is the shared-cache encoding of a link. Unlike the API shape it
// keeps the password secret.
type cachedLink struct {
	ID             string     `json:"id"`
	OriginalURL    string     `json:"originalUrl"`
	ShortCode      string     `json:"shortCode"`
	CustomAlias    *string    `json:"customAlias,omitempty"`
	PasswordSecret *string    `json:"passwordSecret,omitempty"`
	MaxClicks      int64      `json:"maxClicks"`
	ClickCount     int64      `json:"clickCount"`
	ExpireAt       *time.Time `json:"expireAt,omitempty"`
	OwnerID        string     `json:"ownerId"`
	CreatedAt      time.Time  `json:"createdAt"`
}

func toCached(l *models.Link) cachedLink {
	return cachedLink{
		ID:             l.ID,
		OriginalURL:    l.OriginalURL,
		ShortCode:      l.ShortCode,
		CustomAlias:    l.CustomAlias,
		PasswordSecret: l.PasswordSecret,
		MaxClicks:      l.MaxClicks,
		ClickCount:     l.ClickCount,
		ExpireAt:       l.ExpireAt,
		OwnerID:        l.OwnerID,
		CreatedAt:      l.CreatedAt,
	}
}

func (c cachedLink) link() *models.Link {
	return &models.Link{
		ID:             c.ID,
		OriginalURL:    c.OriginalURL,
		ShortCode:      c.ShortCode,
		CustomAlias:    c.CustomAlias,
		PasswordSecret: c.PasswordSecret,
		MaxClicks:      c.MaxClicks,
		ClickCount:     c.ClickCount,
		ExpireAt:       c.ExpireAt,
		OwnerID:        c.OwnerID,
		CreatedAt:      c.CreatedAt,
	}
}

// cacheable: a capped link's verdict depends on its live counter, so it is
// always read from the store.
func cacheable(l *models.Link) bool {
	return l.MaxClicks == 0
}

// lookup reads through L1, then L2, then the store.
func (s *LinkService) lookup(ctx context.Context, code string) (*models.Link, error) {
	if s.l1 != nil {
		if l, ok := s.l1.Get(code); ok {
			metrics.CacheHits.WithLabelValues("l1").Inc()
			return &l, nil
		}
		metrics.CacheMisses.WithLabelValues("l1").Inc()
	}

	if s.l2 != nil {
		var c cachedLink
		err := s.l2.Get(ctx, code, &c)
		switch {
		case err == nil:
			metrics.CacheHits.WithLabelValues("l2").Inc()
			link := c.link()
			s.fillL1(link)
			return link, nil
		case errors.Is(err, cache.ErrCacheMiss):
			metrics.CacheMisses.WithLabelValues("l2").Inc()
		default:
			log.Printf("cache: l2 get %s: %v", code, err)
		}
	}

	link, err := s.repo.FindByCode(ctx, code)
	if err != nil {
		return nil, storeErr(err)
	}
	if cacheable(link) && (s.l1 != nil || s.l2 != nil) {
		s.fillL1(link)
		if s.l2 != nil {
			if err := s.l2.Set(ctx, code, toCached(link)); err != nil {
				log.Printf("cache: l2 set %s: %v", code, err)
			}
		}
		// A delete committed between the read and the fill has already
		// invalidated; check again so the fill does not resurrect the link.
		if _, err := s.repo.FindByCode(ctx, code); errors.Is(err, repository.ErrNotFound) {
			s.invalidate(ctx, code)
			return nil, ErrNotFound
		}
	}
	return link, nil
}

func (s *LinkService) fillL1(link *models.Link) {
	if s.l1 == nil || !cacheable(link) {
		return
	}
	s.l1.Put(link.ShortCode, *link)
	metrics.CacheSize.WithLabelValues("l1").Set(float64(s.l1.Len()))
}

func (s *LinkService) invalidate(ctx context.Context, code string) {
	if s.l1 != nil {
		s.l1.Delete(code)
		metrics.CacheSize.WithLabelValues("l1").Set(float64(s.l1.Len()))
	}
	if s.l2 != nil {
		if err := s.l2.Delete(ctx, code); err != nil {
			log.Printf("cache: l2 delete %s: %v", code, err)
		}
	}
}
