package httpapi_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourname/shortreg/internal/audit"
	"github.com/yourname/shortreg/internal/config"
	"github.com/yourname/shortreg/internal/core"
	httpapi "github.com/yourname/shortreg/internal/http"
	"github.com/yourname/shortreg/internal/shortid"
	"github.com/yourname/shortreg/internal/store"
)

var codeRe = regexp.MustCompile(`^[A-Za-z0-9]{3,20}$`)

type testClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

func newTestServer(t *testing.T) (*httptest.Server, *testClock) {
	t.Helper()

	clk := &testClock{t: time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)}
	cfg := config.Config{
		BaseURL:       "http://sho.rt",
		CodeLength:    6,
		CreateRateRPS: 0, // disable limiter in tests
	}
	registry := store.NewRegistry(shortid.New(cfg.CodeLength), clk.Now)
	ledger := store.NewLedger(clk.Now)
	svc := core.NewService(registry, ledger, audit.Nop{})

	srv := httptest.NewServer(httpapi.NewRouter(cfg, svc))
	t.Cleanup(srv.Close)
	return srv, clk
}

func postJSON(t *testing.T, url string, body any) (*http.Response, []byte) {
	t.Helper()
	b, err := json.Marshal(body)
	require.NoError(t, err)
	res, err := http.Post(url, "application/json", bytes.NewReader(b))
	require.NoError(t, err)
	data, _ := io.ReadAll(res.Body)
	res.Body.Close()
	return res, data
}

func noRedirectClient() *http.Client {
	return &http.Client{
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
}

func TestCreateRedirectStatsFlow(t *testing.T) {
	srv, clk := newTestServer(t)

	res, body := postJSON(t, srv.URL+"/shorturls", map[string]any{
		"url":      "https://example.com",
		"validity": 1,
	})
	require.Equal(t, http.StatusCreated, res.StatusCode, "body: %s", body)

	var created struct {
		ShortLink string `json:"shortLink"`
		Expiry    string `json:"expiry"`
		LogID     string `json:"logID"`
	}
	require.NoError(t, json.Unmarshal(body, &created))
	require.NotEmpty(t, created.LogID)

	var code string
	_, err := fmt.Sscanf(created.ShortLink, "http://sho.rt/%s", &code)
	require.NoError(t, err)
	assert.True(t, codeRe.MatchString(code), "code %q", code)

	expiry, err := time.Parse(time.RFC3339, created.Expiry)
	require.NoError(t, err)
	assert.Equal(t, clk.Now().Add(time.Minute).UTC(), expiry)

	// Redirect, inspecting Location instead of following it.
	redir, err := noRedirectClient().Get(srv.URL + "/" + code)
	require.NoError(t, err)
	redir.Body.Close()
	assert.Equal(t, http.StatusFound, redir.StatusCode)
	assert.Equal(t, "https://example.com", redir.Header.Get("Location"))

	// The click must be visible immediately.
	statsRes, statsBody := get(t, srv.URL+"/shorturls/"+code+"/stats")
	require.Equal(t, http.StatusOK, statsRes.StatusCode)

	var stats struct {
		OriginalURL string `json:"originalUrl"`
		ExpiryDate  string `json:"expiryDate"`
		TotalClicks int    `json:"totalClicks"`
		ClicksData  []struct {
			ClickTimestamp string `json:"clickTimestamp"`
			SourceReferrer string `json:"sourceReferrer"`
			GeoLocation    string `json:"geoLocation"`
		} `json:"clicksData"`
	}
	require.NoError(t, json.Unmarshal(statsBody, &stats))
	assert.Equal(t, "https://example.com", stats.OriginalURL)
	assert.Equal(t, created.Expiry, stats.ExpiryDate)
	require.Equal(t, 1, stats.TotalClicks)
	assert.Equal(t, store.NoReferrer, stats.ClicksData[0].SourceReferrer)
	assert.NotEmpty(t, stats.ClicksData[0].GeoLocation)
}

func TestCreateRejections(t *testing.T) {
	srv, _ := newTestServer(t)

	tests := []struct {
		name       string
		body       map[string]any
		wantStatus int
		wantKind   string
	}{
		{"invalid url", map[string]any{"url": "not-a-url"}, http.StatusBadRequest, "invalid_url"},
		{"zero validity", map[string]any{"url": "https://a.com", "validity": 0}, http.StatusBadRequest, "invalid_validity"},
		{"short code", map[string]any{"url": "https://a.com", "shortcode": "ab"}, http.StatusBadRequest, "invalid_shortcode"},
		{"bad code chars", map[string]any{"url": "https://a.com", "shortcode": "ab_cd"}, http.StatusBadRequest, "invalid_shortcode"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, body := postJSON(t, srv.URL+"/shorturls", tt.body)
			assert.Equal(t, tt.wantStatus, res.StatusCode)

			var e struct {
				Error   string `json:"error"`
				Message string `json:"message"`
				LogID   string `json:"logID"`
			}
			require.NoError(t, json.Unmarshal(body, &e))
			assert.Equal(t, tt.wantKind, e.Error)
			assert.NotEmpty(t, e.Message)
			if tt.wantKind == "invalid_url" {
				assert.NotEmpty(t, e.LogID, "invalid url responses carry a correlation id")
			}
		})
	}
}

func TestDuplicateExplicitCode(t *testing.T) {
	srv, _ := newTestServer(t)

	res, _ := postJSON(t, srv.URL+"/shorturls", map[string]any{"url": "https://a.com", "shortcode": "mine42"})
	require.Equal(t, http.StatusCreated, res.StatusCode)

	res2, body := postJSON(t, srv.URL+"/shorturls", map[string]any{"url": "https://a.com", "shortcode": "mine42"})
	assert.Equal(t, http.StatusConflict, res2.StatusCode)

	var e struct {
		Error string `json:"error"`
	}
	require.NoError(t, json.Unmarshal(body, &e))
	assert.Equal(t, "code_in_use", e.Error)
}

func TestConcurrentCreateSameCode(t *testing.T) {
	srv, _ := newTestServer(t)

	const workers = 10
	statuses := make([]int, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			res, _ := postJSON(t, srv.URL+"/shorturls", map[string]any{
				"url":       fmt.Sprintf("https://example.com/%d", i),
				"shortcode": "race77",
			})
			statuses[i] = res.StatusCode
		}(i)
	}
	wg.Wait()

	var created, conflicted int
	for _, s := range statuses {
		switch s {
		case http.StatusCreated:
			created++
		case http.StatusConflict:
			conflicted++
		default:
			t.Fatalf("unexpected status %d", s)
		}
	}
	assert.Equal(t, 1, created)
	assert.Equal(t, workers-1, conflicted)
}

func TestRedirectMissingAndExpired(t *testing.T) {
	srv, clk := newTestServer(t)
	client := noRedirectClient()

	res, err := client.Get(srv.URL + "/nosuch")
	require.NoError(t, err)
	res.Body.Close()
	assert.Equal(t, http.StatusNotFound, res.StatusCode)

	cres, _ := postJSON(t, srv.URL+"/shorturls", map[string]any{"url": "https://example.com", "validity": 1, "shortcode": "brief7"})
	require.Equal(t, http.StatusCreated, cres.StatusCode)

	clk.Advance(2 * time.Minute)

	res, err = client.Get(srv.URL + "/brief7")
	require.NoError(t, err)
	body, _ := io.ReadAll(res.Body)
	res.Body.Close()
	assert.Equal(t, http.StatusGone, res.StatusCode, "expired is gone, not missing")

	var e struct {
		Error string `json:"error"`
	}
	require.NoError(t, json.Unmarshal(body, &e))
	assert.Equal(t, "expired", e.Error)

	// Reuse after expiry: new mapping, new target.
	cres, _ = postJSON(t, srv.URL+"/shorturls", map[string]any{"url": "https://new.example", "validity": 1, "shortcode": "brief7"})
	require.Equal(t, http.StatusCreated, cres.StatusCode)

	res, err = client.Get(srv.URL + "/brief7")
	require.NoError(t, err)
	res.Body.Close()
	assert.Equal(t, http.StatusFound, res.StatusCode)
	assert.Equal(t, "https://new.example", res.Header.Get("Location"))
}

func TestStatsUnknownCode(t *testing.T) {
	srv, _ := newTestServer(t)

	res, body := get(t, srv.URL+"/shorturls/ghost1/stats")
	assert.Equal(t, http.StatusNotFound, res.StatusCode)

	var e struct {
		Error string `json:"error"`
	}
	require.NoError(t, json.Unmarshal(body, &e))
	assert.Equal(t, "not_found", e.Error)
}

func TestReferrerAttribution(t *testing.T) {
	srv, _ := newTestServer(t)

	res, _ := postJSON(t, srv.URL+"/shorturls", map[string]any{"url": "https://example.com", "shortcode": "refd99"})
	require.Equal(t, http.StatusCreated, res.StatusCode)

	req, _ := http.NewRequest(http.MethodGet, srv.URL+"/refd99", nil)
	req.Header.Set("Referer", "https://ref.example/page")
	rres, err := noRedirectClient().Do(req)
	require.NoError(t, err)
	rres.Body.Close()
	require.Equal(t, http.StatusFound, rres.StatusCode)

	_, body := get(t, srv.URL+"/shorturls/refd99/stats")
	var stats struct {
		ClicksData []struct {
			SourceReferrer string `json:"sourceReferrer"`
		} `json:"clicksData"`
	}
	require.NoError(t, json.Unmarshal(body, &stats))
	require.Len(t, stats.ClicksData, 1)
	assert.Equal(t, "https://ref.example/page", stats.ClicksData[0].SourceReferrer)
}

func TestOperationalEndpoints(t *testing.T) {
	srv, _ := newTestServer(t)

	res, _ := get(t, srv.URL+"/healthz")
	assert.Equal(t, http.StatusOK, res.StatusCode)

	res, body := get(t, srv.URL+"/api")
	assert.Equal(t, http.StatusOK, res.StatusCode)
	var doc struct {
		Name string `json:"name"`
	}
	require.NoError(t, json.Unmarshal(body, &doc))
	assert.Equal(t, "shortreg", doc.Name)
	assert.Equal(t, "nosniff", res.Header.Get("X-Content-Type-Options"))
}

func get(t *testing.T, url string) (*http.Response, []byte) {
	t.Helper()
	res, err := http.Get(url)
	require.NoError(t, err)
	data, _ := io.ReadAll(res.Body)
	res.Body.Close()
	return res, data
}
