package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/Siddarth2230/linklytics/internal/models"
	"github.com/Siddarth2230/linklytics/internal/policy"
	"github.com/Siddarth2230/linklytics/internal/ratelimit"
	"github.com/Siddarth2230/linklytics/internal/repository"
	"github.com/Siddarth2230/linklytics/pkg/cache"
	"github.com/Siddarth2230/linklytics/pkg/idgen"
)

const owner = "user-1"

type clock struct {
	mu sync.Mutex
	t  time.Time
}

func newClock() *clock {
	return &clock{t: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

// stubRepo counts writes and injects failures in front of a Memory store.
type stubRepo struct {
	repository.LinkRepository
	creates     atomic.Int32
	incCalls    atomic.Int32
	incFailures atomic.Int32 // upcoming increments that fail
	eventErr    error
	afterFind   func() // runs once, after the next FindByCode read
}

func (r *stubRepo) FindByCode(ctx context.Context, code string) (*models.Link, error) {
	link, err := r.LinkRepository.FindByCode(ctx, code)
	if hook := r.afterFind; hook != nil {
		r.afterFind = nil
		hook()
	}
	return link, err
}

func (r *stubRepo) Create(ctx context.Context, link *models.Link) error {
	r.creates.Add(1)
	return r.LinkRepository.Create(ctx, link)
}

func (r *stubRepo) IncrementClickCount(ctx context.Context, id string) (int64, error) {
	r.incCalls.Add(1)
	if r.incFailures.Load() > 0 {
		r.incFailures.Add(-1)
		return 0, fmt.Errorf("%w: connection reset", repository.ErrUnavailable)
	}
	return r.LinkRepository.IncrementClickCount(ctx, id)
}

func (r *stubRepo) InsertClickEvent(ctx context.Context, event *models.ClickEvent) error {
	if r.eventErr != nil {
		return r.eventErr
	}
	return r.LinkRepository.InsertClickEvent(ctx, event)
}

// seqGen hands out codes in order and repeats the last one.
type seqGen struct {
	mu    sync.Mutex
	codes []string
	calls int
}

func (g *seqGen) Generate(context.Context) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	i := min(g.calls, len(g.codes)-1)
	g.calls++
	return g.codes[i], nil
}

type fixture struct {
	svc   *LinkService
	repo  *stubRepo
	clock *clock
}

func newFixture(t *testing.T, gen idgen.Generator, opts Options) *fixture {
	t.Helper()
	if gen == nil {
		gen = idgen.NewRandomGenerator(idgen.DefaultLength)
	}
	c := newClock()
	repo := &stubRepo{LinkRepository: repository.NewMemory()}
	opts.BaseURL = "http://sho.rt"
	opts.BcryptCost = bcrypt.MinCost
	opts.Now = c.Now
	svc := NewLinkService(repo, gen, ratelimit.NewMemory(10, time.Minute), nil, opts)
	return &fixture{svc: svc, repo: repo, clock: c}
}

func (f *fixture) create(t *testing.T, req models.ShortenRequest) *models.ShortenResponse {
	t.Helper()
	resp, err := f.svc.CreateLink(context.Background(), owner, req)
	if err != nil {
		t.Fatalf("CreateLink(%+v): %v", req, err)
	}
	return resp
}

func (f *fixture) resolve(t *testing.T, code string, pw *string) *Resolution {
	t.Helper()
	res, err := f.svc.ResolveLink(context.Background(), ResolveRequest{ShortCode: code, Password: pw, SourceAddress: "203.0.113.7"})
	if err != nil {
		t.Fatalf("ResolveLink(%s): %v", code, err)
	}
	return res
}

func (f *fixture) events(t *testing.T, code string) []models.ClickEvent {
	t.Helper()
	link, err := f.repo.FindByCode(context.Background(), code)
	if err != nil {
		t.Fatalf("FindByCode(%s): %v", code, err)
	}
	events, err := f.repo.ListClickEvents(context.Background(), link.ID, 0, true)
	if err != nil {
		t.Fatalf("ListClickEvents: %v", err)
	}
	return events
}

func strPtr(s string) *string { return &s }

func TestCreateLink_GeneratedCode(t *testing.T) {
	f := newFixture(t, nil, Options{})

	resp := f.create(t, models.ShortenRequest{OriginalURL: "  example.com/path  "})
	if len(resp.ShortCode) != idgen.DefaultLength {
		t.Errorf("ShortCode = %q, want length %d", resp.ShortCode, idgen.DefaultLength)
	}
	if resp.ShortLink != "http://sho.rt/"+resp.ShortCode {
		t.Errorf("ShortLink = %q", resp.ShortLink)
	}

	link, err := f.repo.FindByCode(context.Background(), resp.ShortCode)
	if err != nil {
		t.Fatalf("FindByCode: %v", err)
	}
	if link.OriginalURL != "https://example.com/path" {
		t.Errorf("OriginalURL = %q, want https://example.com/path", link.OriginalURL)
	}
	if link.OwnerID != owner || link.ClickCount != 0 || link.HasPassword() {
		t.Errorf("unexpected link %+v", link)
	}
	if !link.CreatedAt.Equal(f.clock.Now()) {
		t.Errorf("CreatedAt = %v, want %v", link.CreatedAt, f.clock.Now())
	}
}

func TestCreateLink_Validation(t *testing.T) {
	f := newFixture(t, nil, Options{})
	f.svc.limiter = ratelimit.NewMemory(100, time.Minute)
	now := f.clock.Now()
	past := now.Add(-time.Minute)

	tests := []struct {
		name string
		req  models.ShortenRequest
		want error
	}{
		{"empty url", models.ShortenRequest{OriginalURL: ""}, ErrInvalidURL},
		{"blank url", models.ShortenRequest{OriginalURL: "   "}, ErrInvalidURL},
		{"no dot in host", models.ShortenRequest{OriginalURL: "intranet"}, ErrInvalidURL},
		{"space in host", models.ShortenRequest{OriginalURL: "not a url"}, ErrInvalidURL},
		{"too long", models.ShortenRequest{OriginalURL: "https://example.com/" + strings.Repeat("a", maxURLLength)}, ErrInvalidURL},
		{"negative max clicks", models.ShortenRequest{OriginalURL: "example.com", MaxClicks: -1}, ErrInvalidMaxClicks},
		{"past expiry", models.ShortenRequest{OriginalURL: "example.com", ExpireAt: &past}, ErrInvalidExpiry},
		{"expiry equal to now", models.ShortenRequest{OriginalURL: "example.com", ExpireAt: &now}, ErrInvalidExpiry},
		{"empty password", models.ShortenRequest{OriginalURL: "example.com", Password: strPtr("")}, ErrEmptyPassword},
		{"short alias", models.ShortenRequest{OriginalURL: "example.com", CustomAlias: strPtr("ab")}, ErrValidation},
		{"reserved alias", models.ShortenRequest{OriginalURL: "example.com", CustomAlias: strPtr("API")}, ErrValidation},
		{"empty alias", models.ShortenRequest{OriginalURL: "example.com", CustomAlias: strPtr("")}, ErrValidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.CreateLink(context.Background(), owner, tt.req)
			if !errors.Is(err, tt.want) {
				t.Fatalf("err = %v, want %v", err, tt.want)
			}
			if !errors.Is(err, ErrValidation) {
				t.Errorf("err = %v is not a validation error", err)
			}
		})
	}
	if n := f.repo.creates.Load(); n != 0 {
		t.Errorf("store saw %d creates for invalid requests", n)
	}

	if _, err := f.svc.CreateLink(context.Background(), "", models.ShortenRequest{OriginalURL: "example.com"}); !errors.Is(err, ErrMissingOwner) {
		t.Errorf("missing owner: err = %v", err)
	}
}

func TestCreateLink_AcceptedURLs(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"https://example.com", "https://example.com"},
		{"http://example.com/a?b=c", "http://example.com/a?b=c"},
		{"HTTPS://Example.com/x", "https://Example.com/x"},
		{"localhost:8080/x", "https://localhost:8080/x"},
		{"sub.example.co.uk", "https://sub.example.co.uk"},
	}
	for _, tt := range tests {
		got, err := normalizeURL(tt.in)
		if err != nil {
			t.Errorf("normalizeURL(%q): %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("normalizeURL(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestCreateLink_Alias(t *testing.T) {
	f := newFixture(t, nil, Options{})

	resp := f.create(t, models.ShortenRequest{OriginalURL: "example.com", CustomAlias: strPtr("my-link")})
	if resp.ShortCode != "my-link" || resp.ShortLink != "http://sho.rt/my-link" {
		t.Errorf("resp = %+v", resp)
	}

	_, err := f.svc.CreateLink(context.Background(), "user-2", models.ShortenRequest{OriginalURL: "other.com", CustomAlias: strPtr("my-link")})
	if !errors.Is(err, ErrAliasTaken) {
		t.Fatalf("second claim: err = %v, want ErrAliasTaken", err)
	}

	if res := f.resolve(t, "my-link", nil); res.Verdict != policy.Allowed || res.OriginalURL != "https://example.com" {
		t.Errorf("resolve alias = %+v", res)
	}
}

func TestCreateLink_AliasCollidesWithGeneratedCode(t *testing.T) {
	f := newFixture(t, &seqGen{codes: []string{"Abc234"}}, Options{})
	f.create(t, models.ShortenRequest{OriginalURL: "example.com"})

	_, err := f.svc.CreateLink(context.Background(), owner, models.ShortenRequest{OriginalURL: "example.com", CustomAlias: strPtr("Abc234")})
	if !errors.Is(err, ErrAliasTaken) {
		t.Errorf("err = %v, want ErrAliasTaken", err)
	}
}

func TestCreateLink_ConcurrentAlias(t *testing.T) {
	f := newFixture(t, nil, Options{})

	const n = 8
	var wg sync.WaitGroup
	var ok, taken atomic.Int32
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := f.svc.CreateLink(context.Background(), fmt.Sprintf("user-%d", i), models.ShortenRequest{
				OriginalURL: "example.com", CustomAlias: strPtr("launch"),
			})
			switch {
			case err == nil:
				ok.Add(1)
			case errors.Is(err, ErrAliasTaken):
				taken.Add(1)
			default:
				t.Errorf("unexpected err: %v", err)
			}
		}(i)
	}
	wg.Wait()

	if ok.Load() != 1 || taken.Load() != n-1 {
		t.Errorf("ok=%d taken=%d, want 1 and %d", ok.Load(), taken.Load(), n-1)
	}
}

func TestCreateLink_RegeneratesOnCollision(t *testing.T) {
	gen := &seqGen{codes: []string{"AAAAAA", "AAAAAA", "BBBBBB"}}
	f := newFixture(t, gen, Options{})

	first := f.create(t, models.ShortenRequest{OriginalURL: "example.com"})
	second := f.create(t, models.ShortenRequest{OriginalURL: "example.com"})
	if first.ShortCode != "AAAAAA" || second.ShortCode != "BBBBBB" {
		t.Errorf("codes = %s, %s", first.ShortCode, second.ShortCode)
	}
	if n := f.repo.creates.Load(); n != 3 {
		t.Errorf("creates = %d, want 3", n)
	}
}

func TestCreateLink_GenExhausted(t *testing.T) {
	gen := &seqGen{codes: []string{"AAAAAA"}}
	f := newFixture(t, gen, Options{})
	f.create(t, models.ShortenRequest{OriginalURL: "example.com"})

	_, err := f.svc.CreateLink(context.Background(), owner, models.ShortenRequest{OriginalURL: "example.com"})
	if !errors.Is(err, ErrGenExhausted) {
		t.Fatalf("err = %v, want ErrGenExhausted", err)
	}
	if gen.calls != 1+generateRetries {
		t.Errorf("generator calls = %d, want %d", gen.calls, 1+generateRetries)
	}
}

func TestCreateLink_RateLimited(t *testing.T) {
	gen := &seqGen{codes: []string{"c1", "c2", "c3", "c4", "c5", "c6", "c7", "c8", "c9", "c10", "c11", "c12"}}
	f := newFixture(t, gen, Options{})

	for i := 0; i < 10; i++ {
		f.create(t, models.ShortenRequest{OriginalURL: "example.com"})
	}

	_, err := f.svc.CreateLink(context.Background(), owner, models.ShortenRequest{OriginalURL: "example.com"})
	if !errors.Is(err, ErrRateLimited) {
		t.Fatalf("11th create: err = %v, want ErrRateLimited", err)
	}
	if n := f.repo.creates.Load(); n != 10 {
		t.Errorf("creates = %d, want 10", n)
	}
	if gen.calls != 10 {
		t.Errorf("generator calls = %d, want 10", gen.calls)
	}

	// Other owners are unaffected.
	if _, err := f.svc.CreateLink(context.Background(), "user-2", models.ShortenRequest{OriginalURL: "example.com"}); err != nil {
		t.Errorf("other owner: %v", err)
	}

	f.clock.Advance(time.Minute + time.Second)
	if _, err := f.svc.CreateLink(context.Background(), owner, models.ShortenRequest{OriginalURL: "example.com"}); err != nil {
		t.Errorf("after window: %v", err)
	}
}

func TestResolveLink_MaxClicks(t *testing.T) {
	f := newFixture(t, nil, Options{})
	code := f.create(t, models.ShortenRequest{OriginalURL: "example.com", MaxClicks: 2}).ShortCode

	for i, want := range []int64{1, 2} {
		res := f.resolve(t, code, nil)
		if res.Verdict != policy.Allowed || res.ClickCount != want {
			t.Errorf("resolve #%d = %+v, want Allowed with count %d", i+1, res, want)
		}
	}
	res := f.resolve(t, code, nil)
	if res.Verdict != policy.ClickExhausted || res.OriginalURL != "" {
		t.Errorf("resolve #3 = %+v, want ClickExhausted", res)
	}

	events := f.events(t, code)
	if len(events) != 2 {
		t.Fatalf("events = %d, want 2", len(events))
	}
	for _, e := range events {
		if e.Referrer != models.DirectReferrer || e.Country != "Unknown" || e.City != "Unknown" || e.SourceAddress != "203.0.113.7" {
			t.Errorf("event = %+v", e)
		}
	}
}

func TestResolveLink_Password(t *testing.T) {
	f := newFixture(t, nil, Options{})
	code := f.create(t, models.ShortenRequest{OriginalURL: "example.com", Password: strPtr("Secr3t!")}).ShortCode

	tests := []struct {
		name  string
		pw    *string
		want  policy.Verdict
		wrong bool
	}{
		{"no password", nil, policy.PasswordRequired, false},
		{"wrong password", strPtr("nope"), policy.PasswordRequired, true},
		{"empty password", strPtr(""), policy.PasswordRequired, true},
		{"right password", strPtr("Secr3t!"), policy.Allowed, false},
	}
	for _, tt := range tests {
		res := f.resolve(t, code, tt.pw)
		if res.Verdict != tt.want || res.WrongPassword != tt.wrong {
			t.Errorf("%s: got %+v, want %v wrong=%v", tt.name, res, tt.want, tt.wrong)
		}
		if tt.want != policy.Allowed && res.OriginalURL != "" {
			t.Errorf("%s: destination leaked", tt.name)
		}
	}

	if n := len(f.events(t, code)); n != 1 {
		t.Errorf("events = %d, want 1", n)
	}
}

func TestResolveLink_TerminalHidesPassword(t *testing.T) {
	f := newFixture(t, nil, Options{})
	expireAt := f.clock.Now().Add(time.Hour)
	code := f.create(t, models.ShortenRequest{OriginalURL: "example.com", Password: strPtr("pw"), ExpireAt: &expireAt}).ShortCode

	f.clock.Advance(2 * time.Hour)
	for _, pw := range []*string{nil, strPtr("pw"), strPtr("bad")} {
		res := f.resolve(t, code, pw)
		if res.Verdict != policy.Expired || res.WrongPassword {
			t.Errorf("pw=%v: got %+v, want bare Expired", pw, res)
		}
	}
}

func TestResolveLink_Expiry(t *testing.T) {
	f := newFixture(t, nil, Options{L1: cache.NewLRU[models.Link](16, time.Hour)})
	expireAt := f.clock.Now().Add(time.Hour)
	code := f.create(t, models.ShortenRequest{OriginalURL: "example.com", ExpireAt: &expireAt}).ShortCode

	if res := f.resolve(t, code, nil); res.Verdict != policy.Allowed {
		t.Fatalf("before expiry = %+v", res)
	}
	f.clock.Advance(2 * time.Hour)
	if res := f.resolve(t, code, nil); res.Verdict != policy.Expired {
		t.Errorf("after expiry = %+v, want Expired", res)
	}
}

func TestResolveLink_NotFound(t *testing.T) {
	f := newFixture(t, nil, Options{})
	for _, code := range []string{"", "missing"} {
		if _, err := f.svc.ResolveLink(context.Background(), ResolveRequest{ShortCode: code}); !errors.Is(err, ErrNotFound) {
			t.Errorf("code %q: err = %v, want ErrNotFound", code, err)
		}
	}
}

func TestResolveLink_ConcurrentExhaustion(t *testing.T) {
	f := newFixture(t, nil, Options{})
	const maxClicks = 5
	code := f.create(t, models.ShortenRequest{OriginalURL: "example.com", MaxClicks: maxClicks}).ShortCode

	var wg sync.WaitGroup
	var allowed atomic.Int32
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := f.svc.ResolveLink(context.Background(), ResolveRequest{ShortCode: code})
			if err != nil {
				t.Errorf("ResolveLink: %v", err)
				return
			}
			if res.Verdict == policy.Allowed {
				allowed.Add(1)
			}
		}()
	}
	wg.Wait()

	if allowed.Load() != maxClicks {
		t.Errorf("allowed = %d, want %d", allowed.Load(), maxClicks)
	}
	if n := len(f.events(t, code)); n != maxClicks {
		t.Errorf("events = %d, want %d", n, maxClicks)
	}
	if res := f.resolve(t, code, nil); res.Verdict != policy.ClickExhausted {
		t.Errorf("after race = %+v, want ClickExhausted", res)
	}
}

func TestResolveLink_CounterRetry(t *testing.T) {
	f := newFixture(t, nil, Options{})
	code := f.create(t, models.ShortenRequest{OriginalURL: "example.com"}).ShortCode

	f.repo.incFailures.Store(1)
	res := f.resolve(t, code, nil)
	if res.Verdict != policy.Allowed || res.ClickCount != 1 {
		t.Errorf("one failure = %+v, want Allowed with count 1", res)
	}
	if n := f.repo.incCalls.Load(); n != 2 {
		t.Errorf("increment calls = %d, want 2", n)
	}

	// Two failures in a row: redirect still succeeds with the last known count.
	f.repo.incFailures.Store(2)
	res = f.resolve(t, code, nil)
	if res.Verdict != policy.Allowed || res.ClickCount != 1 {
		t.Errorf("two failures = %+v, want Allowed with count 1", res)
	}
	if n := f.repo.incCalls.Load(); n != 4 {
		t.Errorf("increment calls = %d, want 4", n)
	}
	if n := len(f.events(t, code)); n != 2 {
		t.Errorf("events = %d, want 2", n)
	}
}

func TestResolveLink_EventFailureDoesNotBlock(t *testing.T) {
	f := newFixture(t, nil, Options{})
	code := f.create(t, models.ShortenRequest{OriginalURL: "example.com"}).ShortCode

	f.repo.eventErr = fmt.Errorf("%w: disk full", repository.ErrUnavailable)
	res := f.resolve(t, code, nil)
	if res.Verdict != policy.Allowed || res.OriginalURL != "https://example.com" || res.ClickCount != 1 {
		t.Errorf("res = %+v", res)
	}
}

func TestResolveLink_Referrer(t *testing.T) {
	f := newFixture(t, nil, Options{})
	code := f.create(t, models.ShortenRequest{OriginalURL: "example.com"}).ShortCode

	_, err := f.svc.ResolveLink(context.Background(), ResolveRequest{ShortCode: code, Referrer: "https://news.example/"})
	if err != nil {
		t.Fatalf("ResolveLink: %v", err)
	}
	events := f.events(t, code)
	if len(events) != 1 || events[0].Referrer != "https://news.example/" {
		t.Errorf("events = %+v", events)
	}
	if !events[0].Timestamp.Equal(f.clock.Now()) {
		t.Errorf("timestamp = %v, want %v", events[0].Timestamp, f.clock.Now())
	}
}

func TestValidatePassword_NoSideEffects(t *testing.T) {
	f := newFixture(t, nil, Options{})
	code := f.create(t, models.ShortenRequest{OriginalURL: "example.com", Password: strPtr("Secr3t!"), MaxClicks: 1}).ShortCode

	for i := 0; i < 3; i++ {
		res, err := f.svc.ValidatePassword(context.Background(), code, strPtr("Secr3t!"))
		if err != nil {
			t.Fatalf("ValidatePassword: %v", err)
		}
		if res.Verdict != policy.Allowed || res.OriginalURL != "https://example.com" {
			t.Errorf("res = %+v", res)
		}
	}
	res, err := f.svc.ValidatePassword(context.Background(), code, strPtr("wrong"))
	if err != nil {
		t.Fatalf("ValidatePassword: %v", err)
	}
	if res.Verdict != policy.PasswordRequired || !res.WrongPassword {
		t.Errorf("wrong pw = %+v", res)
	}

	if n := f.repo.incCalls.Load(); n != 0 {
		t.Errorf("increment calls = %d, want 0", n)
	}
	if n := len(f.events(t, code)); n != 0 {
		t.Errorf("events = %d, want 0", n)
	}
	if _, err := f.svc.ValidatePassword(context.Background(), "missing", nil); !errors.Is(err, ErrNotFound) {
		t.Errorf("missing: err = %v", err)
	}
}

func TestListOwnerLinks(t *testing.T) {
	f := newFixture(t, nil, Options{})
	soon := f.clock.Now().Add(time.Hour)

	a := f.create(t, models.ShortenRequest{OriginalURL: "a.com"}).ShortCode
	f.clock.Advance(time.Second)
	b := f.create(t, models.ShortenRequest{OriginalURL: "b.com", ExpireAt: &soon}).ShortCode
	f.clock.Advance(time.Second)
	c := f.create(t, models.ShortenRequest{OriginalURL: "c.com"}).ShortCode
	if _, err := f.svc.CreateLink(context.Background(), "user-2", models.ShortenRequest{OriginalURL: "x.com"}); err != nil {
		t.Fatalf("CreateLink: %v", err)
	}

	codes := func(links []models.Link) []string {
		out := make([]string, 0, len(links))
		for _, l := range links {
			out = append(out, l.ShortCode)
		}
		return out
	}

	links, err := f.svc.ListOwnerLinks(context.Background(), owner, 0)
	if err != nil {
		t.Fatalf("ListOwnerLinks: %v", err)
	}
	if got, want := strings.Join(codes(links), ","), strings.Join([]string{c, b, a}, ","); got != want {
		t.Errorf("codes = %s, want %s", got, want)
	}

	links, _ = f.svc.ListOwnerLinks(context.Background(), owner, 1)
	if len(links) != 1 || links[0].ShortCode != c {
		t.Errorf("limit 1 = %v", codes(links))
	}

	f.clock.Advance(2 * time.Hour)
	links, _ = f.svc.ListOwnerLinks(context.Background(), owner, 0)
	if got, want := strings.Join(codes(links), ","), c+","+a; got != want {
		t.Errorf("after expiry codes = %s, want %s", got, want)
	}

	links, err = f.svc.ListOwnerLinks(context.Background(), "nobody", 0)
	if err != nil || links == nil || len(links) != 0 {
		t.Errorf("empty owner = %v, %v; want empty non-nil slice", links, err)
	}
}

func TestGetAnalytics(t *testing.T) {
	f := newFixture(t, nil, Options{AnalyticsLimit: 2})
	code := f.create(t, models.ShortenRequest{OriginalURL: "example.com", MaxClicks: 3}).ShortCode

	for i := 0; i < 3; i++ {
		f.resolve(t, code, nil)
		f.clock.Advance(time.Second)
	}

	resp, err := f.svc.GetAnalytics(context.Background(), owner, code)
	if err != nil {
		t.Fatalf("GetAnalytics: %v", err)
	}
	if resp.URL.ShortCode != code || resp.URL.ClickCount != 3 {
		t.Errorf("URL = %+v", resp.URL)
	}
	if len(resp.Clicks) != 2 {
		t.Fatalf("clicks = %d, want 2", len(resp.Clicks))
	}
	if !resp.Clicks[0].Timestamp.After(resp.Clicks[1].Timestamp) {
		t.Errorf("clicks not newest first: %v, %v", resp.Clicks[0].Timestamp, resp.Clicks[1].Timestamp)
	}

	// Exhausted links still report.
	if res := f.resolve(t, code, nil); res.Verdict != policy.ClickExhausted {
		t.Fatalf("verdict = %v", res.Verdict)
	}
	if _, err := f.svc.GetAnalytics(context.Background(), owner, code); err != nil {
		t.Errorf("exhausted analytics: %v", err)
	}

	if _, err := f.svc.GetAnalytics(context.Background(), "user-2", code); !errors.Is(err, ErrNotFound) {
		t.Errorf("other owner: err = %v, want ErrNotFound", err)
	}

	fresh := f.create(t, models.ShortenRequest{OriginalURL: "example.com"}).ShortCode
	resp, err = f.svc.GetAnalytics(context.Background(), owner, fresh)
	if err != nil || resp.Clicks == nil || len(resp.Clicks) != 0 {
		t.Errorf("fresh link clicks = %v, %v; want empty non-nil slice", resp, err)
	}
}

func TestDeleteLink(t *testing.T) {
	f := newFixture(t, nil, Options{L1: cache.NewLRU[models.Link](16, time.Hour)})
	code := f.create(t, models.ShortenRequest{OriginalURL: "example.com", CustomAlias: strPtr("gone-soon")}).ShortCode
	f.resolve(t, code, nil) // warms the cache

	if err := f.svc.DeleteLink(context.Background(), "user-2", code); !errors.Is(err, ErrNotFound) {
		t.Errorf("other owner delete: err = %v, want ErrNotFound", err)
	}
	if err := f.svc.DeleteLink(context.Background(), owner, code); err != nil {
		t.Fatalf("DeleteLink: %v", err)
	}

	if _, err := f.svc.ResolveLink(context.Background(), ResolveRequest{ShortCode: code}); !errors.Is(err, ErrNotFound) {
		t.Errorf("resolve after delete: err = %v, want ErrNotFound", err)
	}
	if _, err := f.svc.GetAnalytics(context.Background(), owner, code); !errors.Is(err, ErrNotFound) {
		t.Errorf("analytics after delete: err = %v, want ErrNotFound", err)
	}
	if err := f.svc.DeleteLink(context.Background(), owner, code); !errors.Is(err, ErrNotFound) {
		t.Errorf("second delete: err = %v, want ErrNotFound", err)
	}

	// The alias is free again.
	f.create(t, models.ShortenRequest{OriginalURL: "example.org", CustomAlias: strPtr("gone-soon")})
}
