package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Siddarth2230/linklytics/internal/geo"
	"github.com/Siddarth2230/linklytics/internal/models"
	"github.com/Siddarth2230/linklytics/internal/policy"
	"github.com/Siddarth2230/linklytics/internal/ratelimit"
	"github.com/Siddarth2230/linklytics/internal/repository"
	"github.com/Siddarth2230/linklytics/pkg/cache"
	"github.com/Siddarth2230/linklytics/pkg/idgen"
	"github.com/Siddarth2230/linklytics/pkg/metrics"
)

const (
	maxURLLength    = 2048
	maxListLimit    = 100
	generateRetries = 6
)

// Options tunes a LinkService. Zero values pick the defaults.
type Options struct {
	BaseURL        string // prefix for the returned short links
	ListLimit      int    // default 20
	AnalyticsLimit int    // default 50
	BcryptCost     int    // default bcrypt.DefaultCost
	GeoTimeout     time.Duration // bounds locators that honour ctx; MaxMind only checks it before reading

	L1 *cache.LRU[models.Link] // optional in-process cache
	L2 *cache.RedisCache       // optional shared cache

	Now func() time.Time
}

// LinkService creates, resolves and reports on short links.
type LinkService struct {
	repo    repository.LinkRepository
	gen     idgen.Generator
	limiter ratelimit.Limiter
	locator geo.Locator

	baseURL        string
	listLimit      int
	analyticsLimit int
	bcryptCost     int
	geoTimeout     time.Duration
	l1             *cache.LRU[models.Link]
	l2             *cache.RedisCache
	now            func() time.Time
}

func NewLinkService(repo repository.LinkRepository, gen idgen.Generator, limiter ratelimit.Limiter, locator geo.Locator, opts Options) *LinkService {
	if limiter == nil {
		limiter = ratelimit.NewMemory(ratelimit.DefaultLimit, ratelimit.DefaultWindow)
	}
	if locator == nil {
		locator = geo.Nop{}
	}
	if opts.ListLimit <= 0 {
		opts.ListLimit = 20
	}
	if opts.AnalyticsLimit <= 0 {
		opts.AnalyticsLimit = 50
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &LinkService{
		repo:           repo,
		gen:            gen,
		limiter:        limiter,
		locator:        locator,
		baseURL:        strings.TrimRight(opts.BaseURL, "/"),
		listLimit:      min(opts.ListLimit, maxListLimit),
		analyticsLimit: opts.AnalyticsLimit,
		bcryptCost:     opts.BcryptCost,
		geoTimeout:     opts.GeoTimeout,
		l1:             opts.L1,
		l2:             opts.L2,
		now:            opts.Now,
	}
}

// CreateLink rate-limits the owner, validates the request, then stores the link
// under the requested alias or a generated code.
func (s *LinkService) CreateLink(ctx context.Context, ownerID string, req models.ShortenRequest) (*models.ShortenResponse, error) {
	if ownerID == "" {
		return nil, ErrMissingOwner
	}
	now := s.now().UTC()

	// Nothing below runs for a denied request.
	ok, err := s.limiter.Admit(ctx, ownerID, now)
	if err != nil {
		log.Printf("CreateLink: rate limiter failed for owner %s: %v", ownerID, err)
		return nil, fmt.Errorf("%w: rate limiter: %v", ErrStoreUnavailable, err)
	}
	if !ok {
		metrics.RateLimited.Inc()
		return nil, ErrRateLimited
	}

	link, err := s.newLink(ownerID, req, now)
	if err != nil {
		return nil, err
	}

	if req.CustomAlias != nil {
		alias := *req.CustomAlias
		if err := idgen.ValidateAlias(alias); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrValidation, err)
		}
		link.ShortCode = alias
		link.CustomAlias = &alias

		// The unique constraint is the only check, so concurrent claims of the
		// same alias cannot both succeed.
		if err := s.repo.Create(ctx, link); err != nil {
			if errors.Is(err, repository.ErrDuplicateCode) {
				return nil, ErrAliasTaken
			}
			return nil, err
		}
		metrics.LinksCreated.WithLabelValues("alias").Inc()
		return s.response(link), nil
	}

	for i := 0; i < generateRetries; i++ {
		code, err := s.gen.Generate(ctx)
		if err != nil {
			return nil, fmt.Errorf("generate short code: %w", err)
		}
		link.ShortCode = code

		err = s.repo.Create(ctx, link)
		if err == nil {
			metrics.LinksCreated.WithLabelValues("generated").Inc()
			return s.response(link), nil
		}
		if !errors.Is(err, repository.ErrDuplicateCode) {
			return nil, err
		}
		log.Printf("Save race detected for code=%s, retrying (attempt %d/%d)", code, i+1, generateRetries)
	}
	return nil, ErrGenExhausted
}

func (s *LinkService) newLink(ownerID string, req models.ShortenRequest, now time.Time) (*models.Link, error) {
	originalURL, err := normalizeURL(req.OriginalURL)
	if err != nil {
		return nil, err
	}
	if req.MaxClicks < 0 {
		return nil, ErrInvalidMaxClicks
	}

	link := &models.Link{
		ID:          uuid.NewString(),
		OriginalURL: originalURL,
		MaxClicks:   req.MaxClicks,
		OwnerID:     ownerID,
		CreatedAt:   now,
	}

	if req.ExpireAt != nil {
		if !req.ExpireAt.After(now) {
			return nil, ErrInvalidExpiry
		}
		expireAt := req.ExpireAt.UTC()
		link.ExpireAt = &expireAt
	}

	if req.Password != nil {
		if *req.Password == "" {
			return nil, ErrEmptyPassword
		}
		secret, err := policy.HashPassword(*req.Password, s.bcryptCost)
		if err != nil {
			return nil, fmt.Errorf("hash password: %w", err)
		}
		link.PasswordSecret = &secret
	}
	return link, nil
}

func (s *LinkService) response(link *models.Link) *models.ShortenResponse {
	return &models.ShortenResponse{
		ShortCode: link.ShortCode,
		ShortLink: s.ShortLink(link.ShortCode),
	}
}

// ShortLink is the public redirect URL for code.
func (s *LinkService) ShortLink(code string) string {
	if s.baseURL == "" {
		return code
	}
	return s.baseURL + "/" + code
}

// ResolveRequest is one redirect attempt.
type ResolveRequest struct {
	ShortCode     string
	Password      *string
	SourceAddress string
	Referrer      string
}

// Resolution carries the verdict. OriginalURL is only set when Verdict is Allowed.
type Resolution struct {
	Verdict       policy.Verdict
	OriginalURL   string
	ClickCount    int64
	WrongPassword bool
}

// ResolveLink evaluates the link's access policy and, when allowed, records the click.
// Verdicts other than Allowed are results, not errors.
func (s *LinkService) ResolveLink(ctx context.Context, req ResolveRequest) (*Resolution, error) {
	if req.ShortCode == "" {
		return nil, ErrNotFound
	}
	link, err := s.lookup(ctx, req.ShortCode)
	if err != nil {
		return nil, err
	}

	now := s.now()
	d := policy.Evaluate(link, now, req.Password)
	var res Resolution
	if d.Verdict == policy.Allowed {
		if res, err = s.ingest(ctx, link, req, now); err != nil {
			return nil, err
		}
	} else {
		res = Resolution{Verdict: d.Verdict, WrongPassword: d.WrongPassword}
	}
	metrics.Resolutions.WithLabelValues(res.Verdict.String()).Inc()
	return &res, nil
}

// ValidatePassword runs the same checks as ResolveLink but records nothing.
func (s *LinkService) ValidatePassword(ctx context.Context, code string, password *string) (*Resolution, error) {
	if code == "" {
		return nil, ErrNotFound
	}
	link, err := s.lookup(ctx, code)
	if err != nil {
		return nil, err
	}

	d := policy.Evaluate(link, s.now(), password)
	if d.Verdict != policy.Allowed {
		return &Resolution{Verdict: d.Verdict, WrongPassword: d.WrongPassword}, nil
	}
	return &Resolution{Verdict: policy.Allowed, OriginalURL: link.OriginalURL, ClickCount: link.ClickCount}, nil
}

// ListOwnerLinks returns the owner's unexpired links, newest first.
func (s *LinkService) ListOwnerLinks(ctx context.Context, ownerID string, limit int) ([]models.Link, error) {
	if ownerID == "" {
		return nil, ErrMissingOwner
	}
	if limit <= 0 {
		limit = s.listLimit
	}
	limit = min(limit, maxListLimit)

	links, err := s.repo.ListByOwner(ctx, ownerID, s.now(), limit)
	if err != nil {
		return nil, err
	}
	if links == nil {
		links = []models.Link{}
	}
	return links, nil
}

// GetAnalytics returns the owner's link with its most recent clicks. Expired
// and exhausted links are still reported.
func (s *LinkService) GetAnalytics(ctx context.Context, ownerID, code string) (*models.AnalyticsResponse, error) {
	if ownerID == "" {
		return nil, ErrMissingOwner
	}
	link, clicks, err := s.repo.Analytics(ctx, ownerID, code, s.analyticsLimit)
	if err != nil {
		return nil, storeErr(err)
	}
	if clicks == nil {
		clicks = []models.ClickEvent{}
	}
	return &models.AnalyticsResponse{URL: link, Clicks: clicks}, nil
}

// DeleteLink removes the owner's link and all of its clicks.
func (s *LinkService) DeleteLink(ctx context.Context, ownerID, code string) error {
	if ownerID == "" {
		return ErrMissingOwner
	}
	link, err := s.repo.FindByOwnerAndCode(ctx, ownerID, code)
	if err != nil {
		return storeErr(err)
	}
	if err := s.repo.DeleteCascade(ctx, link.ID); err != nil {
		return storeErr(err)
	}
	s.invalidate(ctx, link.ShortCode)
	return nil
}

// normalizeURL adds https:// when no http(s) scheme is given, then checks that
// the result is an absolute http(s) URL with a plausible host.
func normalizeURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" || len(raw) > maxURLLength {
		return "", ErrInvalidURL
	}
	lower := strings.ToLower(raw)
	if !strings.HasPrefix(lower, "http://") && !strings.HasPrefix(lower, "https://") {
		raw = "https://" + raw
	}

	parsed, err := url.Parse(raw)
	if err != nil {
		return "", ErrInvalidURL
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return "", ErrInvalidURL
	}
	host := parsed.Hostname()
	if host == "" || strings.ContainsAny(host, " \t") {
		return "", ErrInvalidURL
	}
	if host != "localhost" && !strings.Contains(host, ".") && !strings.Contains(host, ":") {
		return "", ErrInvalidURL
	}
	return parsed.String(), nil
}
