package hypothesis

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"uxpulse/api/models"
)

func testIssue() *models.UXIssue {
	return &models.UXIssue{
		IssueType:        models.IssueRageClick,
		Location:         "https://site.ru/apply",
		AffectedSessions: 12,
		ImpactScore:      1.2,
		Description:      "12 rapid repeat clicks or reloads detected on this page.",
	}
}

func TestForIssue_FallbackWithoutCredentials(t *testing.T) {
	c := &Client{httpClient: http.DefaultClient}

	result := c.ForIssue(context.Background(), testIssue(), nil)
	assert.Equal(t, fallbacks[models.IssueRageClick], result)
}

func TestForIssue_UsesBackend(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Api-Key secret", r.Header.Get("Authorization"))
		w.Write([]byte(`{"result":{"alternatives":[{"message":{"role":"assistant","text":"{\"hypothesis\":\"H\",\"fix\":\"F\"}"}}]}}`))
	}))
	defer srv.Close()

	c := &Client{
		httpClient: &http.Client{Timeout: time.Second},
		endpoint:   srv.URL,
		folderID:   "folder",
		apiKey:     "secret",
	}

	result := c.ForIssue(context.Background(), testIssue(), nil)
	assert.Equal(t, Result{Hypothesis: "H", Fix: "F"}, result)
}

func TestForIssue_FallbackOnBackendError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "quota exceeded", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c := &Client{
		httpClient: &http.Client{Timeout: time.Second},
		endpoint:   srv.URL,
		folderID:   "folder",
		apiKey:     "secret",
	}

	result := c.ForIssue(context.Background(), testIssue(), nil)
	assert.Equal(t, fallbacks[models.IssueRageClick], result)
}

func TestForIssue_FallbackOnMalformedAnswer(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"result":{"alternatives":[{"message":{"role":"assistant","text":"not json"}}]}}`))
	}))
	defer srv.Close()

	c := &Client{
		httpClient: &http.Client{Timeout: time.Second},
		endpoint:   srv.URL,
		folderID:   "folder",
		apiKey:     "secret",
	}

	result := c.ForIssue(context.Background(), testIssue(), nil)
	assert.Equal(t, fallbacks[models.IssueRageClick], result)
}

func TestFallbackFor_UnknownType(t *testing.T) {
	assert.Equal(t, genericFallback, fallbackFor(models.IssueType("SOMETHING")))
}

func TestFunnelCommentary_Fallback(t *testing.T) {
	c := &Client{httpClient: http.DefaultClient}
	funnel := &models.ConversionFunnel{Name: "Landing → Apply"}
	metrics := &models.FunnelMetrics{TotalEntered: 100, TotalCompleted: 40, OverallConversion: 40}

	text := c.FunnelCommentary(context.Background(), funnel, metrics)
	assert.Contains(t, text, "100 users entered")
	assert.Contains(t, text, "40.0% conversion")
}
