package httpapi

import (
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/yourname/shortreg/internal/core"
	"github.com/yourname/shortreg/internal/store"
)

type createReq struct {
	URL       string `json:"url"`
	Validity  *int   `json:"validity,omitempty"`
	Shortcode string `json:"shortcode,omitempty"`
}

type createResp struct {
	ShortLink string `json:"shortLink"`
	Expiry    string `json:"expiry"`
	LogID     string `json:"logID"`
}

type errResp struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	LogID   string `json:"logID,omitempty"`
}

func (rt *Router) handleCreate(w http.ResponseWriter, r *http.Request) {
	if !rt.limiter.Allow(clientIP(r)) {
		writeError(w, http.StatusTooManyRequests, "rate_limited", "too many requests, please try again later", "")
		return
	}

	var req createReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "request body must be valid JSON", "")
		return
	}

	res, err := rt.svc.Create(core.CreateRequest{
		TargetURL: req.URL,
		Validity:  req.Validity,
		Code:      strings.TrimSpace(req.Shortcode),
	})
	if err != nil {
		status, kind := errStatus(err)
		logID := ""
		if errors.Is(err, store.ErrInvalidURL) {
			// Correlation id for cross-referencing audit logs.
			logID = uuid.NewString()
		}
		writeError(w, status, kind, err.Error(), logID)
		return
	}

	writeJSON(w, createResp{
		ShortLink: rt.shortLink(r, res.Mapping.Code),
		Expiry:    res.Mapping.ExpiresAt.UTC().Format(time.RFC3339),
		LogID:     res.LogID,
	}, http.StatusCreated)
}

func (rt *Router) handleRedirect(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")
	m, err := rt.svc.Redirect(code, r.Referer(), clientIP(r))
	if err != nil {
		status, kind := errStatus(err)
		writeError(w, status, kind, err.Error(), "")
		return
	}
	http.Redirect(w, r, m.TargetURL, http.StatusFound)
}

type clickData struct {
	ClickTimestamp string `json:"clickTimestamp"`
	SourceReferrer string `json:"sourceReferrer"`
	GeoLocation    string `json:"geoLocation"`
}

type statsResp struct {
	OriginalURL  string      `json:"originalUrl"`
	CreationDate string      `json:"creationDate"`
	ExpiryDate   string      `json:"expiryDate"`
	TotalClicks  int         `json:"totalClicks"`
	ClicksData   []clickData `json:"clicksData"`
}

func (rt *Router) handleStats(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")
	rep, err := rt.svc.Stats(code)
	if err != nil {
		status, kind := errStatus(err)
		writeError(w, status, kind, err.Error(), "")
		return
	}

	clicks := make([]clickData, len(rep.Clicks))
	for i, c := range rep.Clicks {
		clicks[i] = clickData{
			ClickTimestamp: c.Timestamp.UTC().Format(time.RFC3339),
			SourceReferrer: c.Referrer,
			GeoLocation:    c.Location,
		}
	}
	writeJSON(w, statsResp{
		OriginalURL:  rep.OriginalURL,
		CreationDate: rep.CreatedAt.UTC().Format(time.RFC3339),
		ExpiryDate:   rep.ExpiresAt.UTC().Format(time.RFC3339),
		TotalClicks:  rep.TotalClicks,
		ClicksData:   clicks,
	}, http.StatusOK)
}

func (rt *Router) handleDocs(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]any{
		"name":    "shortreg",
		"version": "1.0.0",
		"endpoints": map[string]any{
			"create": map[string]string{
				"method": http.MethodPost,
				"path":   "/shorturls",
				"body":   `{"url": "...", "validity": minutes?, "shortcode": "..."?}`,
			},
			"redirect": map[string]string{
				"method": http.MethodGet,
				"path":   "/{shortcode}",
			},
			"stats": map[string]string{
				"method": http.MethodGet,
				"path":   "/shorturls/{shortcode}/stats",
			},
		},
	}, http.StatusOK)
}

func (rt *Router) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

func (rt *Router) handleReady(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ready"))
}

// shortLink builds the absolute link for code, falling back to the request
// host when no base URL is configured.
func (rt *Router) shortLink(r *http.Request, code string) string {
	base := strings.TrimRight(rt.cfg.BaseURL, "/")
	if base == "" {
		scheme := "http"
		if r.TLS != nil {
			scheme = "https"
		}
		base = scheme + "://" + r.Host
	}
	return base + "/" + code
}

// errStatus maps a domain error to its HTTP status and stable wire kind.
func errStatus(err error) (int, string) {
	switch {
	case errors.Is(err, store.ErrInvalidURL):
		return http.StatusBadRequest, "invalid_url"
	case errors.Is(err, store.ErrInvalidValidity):
		return http.StatusBadRequest, "invalid_validity"
	case errors.Is(err, store.ErrInvalidShortcode):
		return http.StatusBadRequest, "invalid_shortcode"
	case errors.Is(err, store.ErrCodeInUse):
		return http.StatusConflict, "code_in_use"
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, store.ErrExpired):
		return http.StatusGone, "expired"
	case errors.Is(err, store.ErrGenerationExhausted):
		return http.StatusInternalServerError, "generation_exhausted"
	default:
		return http.StatusInternalServerError, "internal"
	}
}

func writeError(w http.ResponseWriter, status int, kind, msg, logID string) {
	writeJSON(w, errResp{Error: kind, Message: msg, LogID: logID}, status)
}

func writeJSON(w http.ResponseWriter, v any, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func clientIP(r *http.Request) string {
	// Try X-Forwarded-For or Real-IP first
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		parts := strings.Split(xff, ",")
		return strings.TrimSpace(parts[0])
	}
	if rip := r.Header.Get("X-Real-Ip"); rip != "" {
		return rip
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
