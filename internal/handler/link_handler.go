package handler

import (
	"encoding/json"
	"errors"
	"log"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"github.com/Siddarth2230/linklytics/internal/middleware"
	"github.com/Siddarth2230/linklytics/internal/models"
	"github.com/Siddarth2230/linklytics/internal/policy"
	"github.com/Siddarth2230/linklytics/internal/service"
)

type LinkHandler struct {
	service    *service.LinkService
	clientURL  string
	trustProxy bool
}

// NewLinkHandler builds the HTTP handlers. clientURL, if set, is where
// password-gated redirects send the browser; trustProxy makes the first
// X-Forwarded-For entry the recorded source address.
func NewLinkHandler(svc *service.LinkService, clientURL string, trustProxy bool) *LinkHandler {
	return &LinkHandler{
		service:    svc,
		clientURL:  strings.TrimRight(clientURL, "/"),
		trustProxy: trustProxy,
	}
}

// shortenPayload is the wire form of a creation request. Empty strings mean
// "not set", which is what browser forms send.
type shortenPayload struct {
	OriginalURL string      `json:"originalUrl"`
	CustomAlias string      `json:"customAlias"`
	Password    string      `json:"password"`
	MaxClicks   json.Number `json:"maxClicks"`
	ExpireAt    string      `json:"expireAt"`
}

var expireLayouts = []string{time.RFC3339, "2006-01-02T15:04", "2006-01-02"}

func (p shortenPayload) request() (models.ShortenRequest, error) {
	req := models.ShortenRequest{OriginalURL: p.OriginalURL}
	if p.CustomAlias != "" {
		req.CustomAlias = &p.CustomAlias
	}
	if p.Password != "" {
		req.Password = &p.Password
	}
	if p.MaxClicks != "" {
		n, err := p.MaxClicks.Int64()
		if err != nil {
			return req, errors.New("maxClicks must be an integer")
		}
		req.MaxClicks = n
	}
	if p.ExpireAt != "" {
		var parsed bool
		for _, layout := range expireLayouts {
			if t, err := time.Parse(layout, p.ExpireAt); err == nil {
				req.ExpireAt = &t
				parsed = true
				break
			}
		}
		if !parsed {
			return req, errors.New("expireAt must be an RFC 3339 timestamp")
		}
	}
	return req, nil
}

// POST /api/urls/shorten
func (h *LinkHandler) Shorten(w http.ResponseWriter, r *http.Request) {
	ownerID, _ := middleware.OwnerID(r.Context())

	var payload shortenPayload
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request payload")
		return
	}
	req, err := payload.request()
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	resp, err := h.service.CreateLink(r.Context(), ownerID, req)
	if err != nil {
		writeServiceError(w, "Shorten", err)
		return
	}
	writeJSON(w, http.StatusCreated, resp)
}

// GET /api/urls
func (h *LinkHandler) List(w http.ResponseWriter, r *http.Request) {
	ownerID, _ := middleware.OwnerID(r.Context())

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		limit = n
	}

	links, err := h.service.ListOwnerLinks(r.Context(), ownerID, limit)
	if err != nil {
		writeServiceError(w, "List", err)
		return
	}
	writeJSON(w, http.StatusOK, links)
}

// GET /api/urls/{code}/analytics
func (h *LinkHandler) Analytics(w http.ResponseWriter, r *http.Request) {
	ownerID, _ := middleware.OwnerID(r.Context())

	resp, err := h.service.GetAnalytics(r.Context(), ownerID, mux.Vars(r)["code"])
	if err != nil {
		writeServiceError(w, "Analytics", err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// DELETE /api/urls/{code}
func (h *LinkHandler) Delete(w http.ResponseWriter, r *http.Request) {
	ownerID, _ := middleware.OwnerID(r.Context())

	if err := h.service.DeleteLink(r.Context(), ownerID, mux.Vars(r)["code"]); err != nil {
		writeServiceError(w, "Delete", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "URL deleted"})
}

// GET /api/urls/{code}/validate?pw=
func (h *LinkHandler) Validate(w http.ResponseWriter, r *http.Request) {
	res, err := h.service.ValidatePassword(r.Context(), mux.Vars(r)["code"], password(r))
	if err != nil {
		writeServiceError(w, "Validate", err)
		return
	}

	switch res.Verdict {
	case policy.Allowed:
		writeJSON(w, http.StatusOK, map[string]string{"originalUrl": res.OriginalURL})
	case policy.PasswordRequired:
		msg := "password required"
		if res.WrongPassword {
			msg = "invalid password"
		}
		writeError(w, http.StatusUnauthorized, msg)
	default:
		writeTerminal(w, res.Verdict)
	}
}

// GET /{code}?pw= - redirect to the destination
func (h *LinkHandler) Redirect(w http.ResponseWriter, r *http.Request) {
	code := mux.Vars(r)["code"]
	if code == "" {
		writeError(w, http.StatusBadRequest, "missing short code")
		return
	}

	res, err := h.service.ResolveLink(r.Context(), service.ResolveRequest{
		ShortCode:     code,
		Password:      password(r),
		SourceAddress: h.clientIP(r),
		Referrer:      r.Referer(),
	})
	if err != nil {
		writeServiceError(w, "Redirect", err)
		return
	}

	switch res.Verdict {
	case policy.Allowed:
		// 302 so browsers come back through here and every click is counted.
		http.Redirect(w, r, res.OriginalURL, http.StatusFound)
	case policy.PasswordRequired:
		if h.clientURL != "" {
			http.Redirect(w, r, h.clientURL+"/password/"+url.PathEscape(code), http.StatusFound)
			return
		}
		msg := "password required"
		if res.WrongPassword {
			msg = "invalid password"
		}
		writeError(w, http.StatusUnauthorized, msg)
	default:
		writeTerminal(w, res.Verdict)
	}
}

// GET /health
func (h *LinkHandler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

// password reads ?pw=. An empty value counts as no password.
func password(r *http.Request) *string {
	pw := r.URL.Query().Get("pw")
	if pw == "" {
		return nil
	}
	return &pw
}

func (h *LinkHandler) clientIP(r *http.Request) string {
	if h.trustProxy {
		if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
			first, _, _ := strings.Cut(fwd, ",")
			if ip := strings.TrimSpace(first); ip != "" {
				return ip
			}
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func writeTerminal(w http.ResponseWriter, v policy.Verdict) {
	switch v {
	case policy.Expired:
		writeError(w, http.StatusGone, "link expired")
	case policy.ClickExhausted:
		writeError(w, http.StatusGone, "click limit reached")
	default:
		log.Printf("unexpected verdict %v", v)
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

// writeServiceError maps service errors to HTTP responses
func writeServiceError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, service.ErrValidation):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrAliasTaken):
		writeError(w, http.StatusConflict, err.Error()) // 409 Conflict
	case errors.Is(err, service.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, service.ErrRateLimited):
		writeError(w, http.StatusTooManyRequests, err.Error())
	case errors.Is(err, service.ErrStoreUnavailable):
		log.Printf("%s error: %v", op, err)
		writeError(w, http.StatusServiceUnavailable, "service temporarily unavailable")
	default:
		// unknown/internal error
		log.Printf("%s error: %v", op, err)
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

// helper: write JSON response
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(v); err != nil {
		// Log encoding error (can't write response now)
		log.Printf("writeJSON encode error: %v", err)
	}
}

// helper: write an error message in JSON form { "error": "msg" }
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
