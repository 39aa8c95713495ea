package handlers

import (
	"context"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"uxpulse/api/models"
	"uxpulse/api/pipeline"
	"uxpulse/api/store"
)

// VersionHandlers serves product versions, their daily rollups, and the
// raw-event chart queries.
type VersionHandlers struct {
	Versions *store.VersionStore
	Events   *store.EventStore
	Stats    *store.StatsStore
	Runner   *pipeline.Runner
}

func NewVersionHandlers(versions *store.VersionStore, events *store.EventStore, stats *store.StatsStore, runner *pipeline.Runner) *VersionHandlers {
	return &VersionHandlers{Versions: versions, Events: events, Stats: stats, Runner: runner}
}

func (h *VersionHandlers) ListVersions(c *gin.Context) {
	versions, err := h.Versions.ListVersions(c.Request.Context())
	if err != nil {
		log.Printf("Error listing versions: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve versions"})
		return
	}
	c.JSON(http.StatusOK, versions)
}

func (h *VersionHandlers) GetVersion(c *gin.Context) {
	version, ok := h.versionFromParam(c)
	if !ok {
		return
	}

	sessions, err := h.Events.CountSessions(c.Request.Context(), version.ID)
	if err != nil {
		log.Printf("Error counting sessions for version %d: %v", version.ID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve version data"})
		return
	}

	resp := gin.H{"version": version, "session_count": sessions}
	if sessions > 0 {
		start, end, err := h.Events.SessionWindow(c.Request.Context(), version.ID)
		if err != nil {
			log.Printf("Error getting session window for version %d: %v", version.ID, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve version data"})
			return
		}
		resp["first_session"] = start
		resp["last_session"] = end
	}
	c.JSON(http.StatusOK, resp)
}

func (h *VersionHandlers) GetDailyStats(c *gin.Context) {
	version, ok := h.versionFromParam(c)
	if !ok {
		return
	}

	stats, err := h.Versions.ListDailyStats(c.Request.Context(), version.ID)
	if err != nil {
		log.Printf("Error listing daily stats for version %d: %v", version.ID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve daily statistics"})
		return
	}
	c.JSON(http.StatusOK, stats)
}

func (h *VersionHandlers) GetSessionCounts(c *gin.Context) {
	version, ok := h.versionFromParam(c)
	if !ok {
		return
	}
	interval := c.DefaultQuery("interval", "Day")

	ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
	defer cancel()

	results, err := h.Stats.SessionCountsOverTime(ctx, version.ID, interval)
	if err != nil {
		log.Printf("Error getting session counts for version %d: %v", version.ID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve session statistics"})
		return
	}
	c.JSON(http.StatusOK, results)
}

func (h *VersionHandlers) GetUniqueVisitors(c *gin.Context) {
	version, ok := h.versionFromParam(c)
	if !ok {
		return
	}
	interval := c.DefaultQuery("interval", "Day")

	ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
	defer cancel()

	results, err := h.Stats.UniqueVisitorsOverTime(ctx, version.ID, interval)
	if err != nil {
		log.Printf("Error getting unique visitors for version %d: %v", version.ID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve visitor statistics"})
		return
	}
	c.JSON(http.StatusOK, results)
}

func (h *VersionHandlers) GetTopURLs(c *gin.Context) {
	version, ok := h.versionFromParam(c)
	if !ok {
		return
	}

	var limit uint64 = 10
	if limitParam := c.Query("limit"); limitParam != "" {
		parsed, err := strconv.ParseUint(limitParam, 10, 64)
		if err != nil || parsed == 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid 'limit' parameter. Must be a positive integer."})
			return
		}
		limit = parsed
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
	defer cancel()

	results, err := h.Stats.TopPageURLs(ctx, version.ID, limit)
	if err != nil {
		log.Printf("Error getting top URLs for version %d: %v", version.ID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve top pages"})
		return
	}
	c.JSON(http.StatusOK, results)
}

// IngestRequest is the JSON body of a version ingest: the analytics
// export's sessions and hits plus the version label.
type IngestRequest struct {
	VersionName string                `json:"version_name" binding:"required"`
	ReleaseDate time.Time             `json:"release_date"`
	Sessions    []models.VisitSession `json:"sessions" binding:"required"`
	Hits        []models.PageHit      `json:"hits"`
}

func (h *VersionHandlers) Ingest(c *gin.Context) {
	var req IngestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		log.Printf("Error binding ingest JSON: %v", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}
	if req.ReleaseDate.IsZero() {
		req.ReleaseDate = time.Now().UTC()
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 60*time.Second)
	defer cancel()

	version, err := h.Runner.Ingest(ctx, req.VersionName, req.ReleaseDate, req.Sessions, req.Hits)
	if err != nil {
		log.Printf("Error ingesting version %q: %v", req.VersionName, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to ingest version data"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"version":  version,
		"sessions": len(req.Sessions),
		"hits":     len(req.Hits),
	})
}

// versionFromParam resolves the :versionId path parameter, writing the
// error response itself when the version is missing or malformed.
func (h *VersionHandlers) versionFromParam(c *gin.Context) (*models.ProductVersion, bool) {
	id, err := strconv.Atoi(c.Param("versionId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid version ID"})
		return nil, false
	}
	version, err := h.Versions.GetVersionByID(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Version not found"})
		return nil, false
	}
	return version, true
}
