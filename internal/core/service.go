package core

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/yourname/shortreg/internal/metrics"
	"github.com/yourname/shortreg/internal/store"
)

// DefaultValidityMinutes applies when a create request omits the validity
// window.
const DefaultValidityMinutes = 30

var codeRe = regexp.MustCompile(`^[A-Za-z0-9]{3,20}$`)

// AuditSink receives free-text audit events. Implementations must be
// fire-and-forget; the service never checks whether delivery succeeded.
type AuditSink interface {
	Record(event string)
}

// Service composes the shortcode registry and the click ledger behind the
// operations the HTTP layer needs.
type Service struct {
	reg    *store.Registry
	ledger *store.Ledger
	audit  AuditSink
}

func NewService(reg *store.Registry, ledger *store.Ledger, sink AuditSink) *Service {
	return &Service{reg: reg, ledger: ledger, audit: sink}
}

// CreateRequest is the input to Create. A nil Validity means the default
// window; zero or negative values are rejected.
type CreateRequest struct {
	TargetURL string
	Validity  *int
	Code      string
}

// CreateResult is a freshly inserted mapping plus an opaque correlation id
// for cross-referencing audit logs. The id is not a domain entity.
type CreateResult struct {
	Mapping store.Mapping
	LogID   string
}

// Create validates the request and inserts a mapping, generating a code when
// none is requested. All validation happens before any mutation.
func (s *Service) Create(req CreateRequest) (CreateResult, error) {
	target, err := normalizeURL(req.TargetURL)
	if err != nil {
		s.audit.Record(fmt.Sprintf("Invalid URL attempt: %s", req.TargetURL))
		metrics.CreateFailures.WithLabelValues("invalid_url").Inc()
		return CreateResult{}, store.ErrInvalidURL
	}

	validity := DefaultValidityMinutes
	if req.Validity != nil {
		validity = *req.Validity
	}
	if validity <= 0 {
		s.audit.Record(fmt.Sprintf("Invalid validity: %d", validity))
		metrics.CreateFailures.WithLabelValues("invalid_validity").Inc()
		return CreateResult{}, store.ErrInvalidValidity
	}

	if req.Code != "" && !codeRe.MatchString(req.Code) {
		s.audit.Record(fmt.Sprintf("Invalid shortcode format: %s", req.Code))
		metrics.CreateFailures.WithLabelValues("invalid_shortcode").Inc()
		return CreateResult{}, store.ErrInvalidShortcode
	}

	m, replaced, err := s.reg.Create(target, time.Duration(validity)*time.Minute, req.Code)
	if err != nil {
		s.audit.Record(fmt.Sprintf("Create rejected for shortcode %q: %v", req.Code, err))
		metrics.CreateFailures.WithLabelValues(failureKind(err)).Inc()
		return CreateResult{}, err
	}
	if replaced {
		// The slot held an expired mapping; its clicks belong to the prior
		// generation of the code, not this one.
		s.ledger.Drop(m.Code)
	}

	metrics.Creates.Inc()
	s.audit.Record(fmt.Sprintf("Created short URL: %s -> %s (valid %dm)", m.Code, target, validity))
	return CreateResult{Mapping: m, LogID: uuid.NewString()}, nil
}

// Redirect resolves code and records the click. The click is appended for
// every successful resolution, exactly once, before the caller emits the
// redirect; only audit delivery is asynchronous.
func (s *Service) Redirect(code, referrer, location string) (store.Mapping, error) {
	m, err := s.reg.Resolve(code)
	if err != nil {
		switch err {
		case store.ErrExpired:
			metrics.ExpiredHits.Inc()
			s.audit.Record(fmt.Sprintf("Expired shortcode access: %s", code))
		case store.ErrNotFound:
			metrics.NotFoundHits.Inc()
			s.audit.Record(fmt.Sprintf("Shortcode not found: %s", code))
		}
		return store.Mapping{}, err
	}

	s.ledger.Record(code, referrer, location)
	metrics.ClicksRecorded.Inc()
	metrics.Redirects.Inc()
	metrics.RedirectByCode.WithLabelValues(code).Inc()
	s.audit.Record(fmt.Sprintf("Redirect: %s -> %s", code, m.TargetURL))
	return m, nil
}

// StatsReport joins a mapping (live or lapsed) with its click history.
type StatsReport struct {
	OriginalURL string
	CreatedAt   time.Time
	ExpiresAt   time.Time
	TotalClicks int
	Clicks      []store.ClickRecord
}

// Stats reports on code whether or not it has expired; only a slot that
// never existed yields ErrNotFound.
func (s *Service) Stats(code string) (StatsReport, error) {
	m, err := s.reg.Get(code)
	if err != nil {
		return StatsReport{}, err
	}
	rep := s.ledger.Snapshot(code)
	return StatsReport{
		OriginalURL: m.TargetURL,
		CreatedAt:   rep.CreatedAt,
		ExpiresAt:   m.ExpiresAt,
		TotalClicks: rep.TotalClicks,
		Clicks:      rep.Records,
	}, nil
}

func failureKind(err error) string {
	switch err {
	case store.ErrCodeInUse:
		return "code_in_use"
	case store.ErrGenerationExhausted:
		return "generation_exhausted"
	default:
		return "internal"
	}
}

func normalizeURL(raw string) (string, error) {
	parsed, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return "", err
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return "", store.ErrInvalidURL
	}
	if parsed.Host == "" {
		return "", store.ErrInvalidURL
	}
	return parsed.String(), nil
}
