package store

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"uxpulse/api/models"
)

func TestAttachHits_SingleSession(t *testing.T) {
	start := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	sessions := []models.VisitSession{
		{VisitID: "v1", ClientID: "c1", StartTime: start},
	}
	hits := []models.PageHit{
		{ClientID: "c1", Timestamp: start.Add(time.Minute), URL: "/b"},
		{ClientID: "c1", Timestamp: start.Add(time.Second), URL: "/a"},
	}

	AttachHits(sessions, hits)
	require.Len(t, sessions[0].Hits, 2)
	assert.Equal(t, "/a", sessions[0].Hits[0].URL, "hits come back time-ordered")
}

func TestAttachHits_SplitsByStartTime(t *testing.T) {
	morning := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	evening := morning.Add(8 * time.Hour)
	sessions := []models.VisitSession{
		{VisitID: "v2", ClientID: "c1", StartTime: evening},
		{VisitID: "v1", ClientID: "c1", StartTime: morning},
	}
	hits := []models.PageHit{
		{ClientID: "c1", Timestamp: morning.Add(time.Minute), URL: "/morning"},
		{ClientID: "c1", Timestamp: evening.Add(time.Minute), URL: "/evening"},
		{ClientID: "c1", Timestamp: morning.Add(-time.Hour), URL: "/early"},
	}

	AttachHits(sessions, hits)

	var first, second *models.VisitSession
	for i := range sessions {
		switch sessions[i].VisitID {
		case "v1":
			first = &sessions[i]
		case "v2":
			second = &sessions[i]
		}
	}
	require.Len(t, first.Hits, 2, "morning hit plus the pre-session hit")
	assert.Equal(t, "/early", first.Hits[0].URL)
	require.Len(t, second.Hits, 1)
	assert.Equal(t, "/evening", second.Hits[0].URL)
}

func TestAttachHits_UnknownClientDropped(t *testing.T) {
	sessions := []models.VisitSession{{VisitID: "v1", ClientID: "c1"}}
	hits := []models.PageHit{{ClientID: "ghost", URL: "/x"}}

	AttachHits(sessions, hits)
	assert.Empty(t, sessions[0].Hits)
}
