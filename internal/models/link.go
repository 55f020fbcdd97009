package models

import "time"

// Link is a short code mapped to a destination, with its access-control state.
// Everything except ClickCount is fixed at creation.
type Link struct {
	ID             string     `json:"id" db:"id"`
	OriginalURL    string     `json:"originalUrl" db:"original_url"`
	ShortCode      string     `json:"shortCode" db:"short_code"`
	CustomAlias    *string    `json:"customAlias,omitempty" db:"custom_alias"`
	PasswordSecret *string    `json:"-" db:"password_secret"`
	MaxClicks      int64      `json:"maxClicks" db:"max_clicks"`
	ClickCount     int64      `json:"clicks" db:"click_count"`
	ExpireAt       *time.Time `json:"expireAt,omitempty" db:"expire_at"`
	OwnerID        string     `json:"userId" db:"owner_id"`
	CreatedAt      time.Time  `json:"createdAt" db:"created_at"`
}

// HasPassword reports whether the link is password gated.
func (l *Link) HasPassword() bool {
	return l.PasswordSecret != nil
}

// ClickEvent is one permitted resolution of a link.
type ClickEvent struct {
	ID            string    `json:"id" db:"id"`
	LinkID        string    `json:"-" db:"link_id"`
	Timestamp     time.Time `json:"timestamp" db:"clicked_at"`
	Referrer      string    `json:"referrer" db:"referrer"`
	SourceAddress string    `json:"ip" db:"source_address"`
	Country       string    `json:"country" db:"country"`
	City          string    `json:"city" db:"city"`
}

// DirectReferrer is recorded when a click carries no referrer.
const DirectReferrer = "Direct"

type ShortenRequest struct {
	OriginalURL string     `json:"originalUrl"`
	CustomAlias *string    `json:"customAlias,omitempty"`
	Password    *string    `json:"password,omitempty"`
	MaxClicks   int64      `json:"maxClicks,omitempty"`
	ExpireAt    *time.Time `json:"expireAt,omitempty"`
}

type ShortenResponse struct {
	ShortCode string `json:"shortCode"`
	ShortLink string `json:"shortLink"`
}

type AnalyticsResponse struct {
	URL    *Link        `json:"url"`
	Clicks []ClickEvent `json:"clicks"`
}
