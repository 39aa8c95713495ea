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

// FunnelHandlers serves funnel definitions, discovery, and metrics
// calculation for a version.
type FunnelHandlers struct {
	Versions *store.VersionStore
	Funnels  *store.FunnelStore
	Runner   *pipeline.Runner
}

func NewFunnelHandlers(versions *store.VersionStore, funnels *store.FunnelStore, runner *pipeline.Runner) *FunnelHandlers {
	return &FunnelHandlers{Versions: versions, Funnels: funnels, Runner: runner}
}

func (h *FunnelHandlers) ListFunnels(c *gin.Context) {
	version, ok := h.versionFromParam(c)
	if !ok {
		return
	}

	funnels, err := h.Funnels.ListFunnels(c.Request.Context(), version.ID)
	if err != nil {
		log.Printf("Error listing funnels for version %d: %v", version.ID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve funnels"})
		return
	}

	type funnelView struct {
		models.ConversionFunnel
		Metrics *models.StoredFunnelMetrics `json:"cached_metrics,omitempty"`
	}
	views := make([]funnelView, 0, len(funnels))
	for i := range funnels {
		view := funnelView{ConversionFunnel: funnels[i]}
		cached, err := h.Funnels.GetFreshMetrics(c.Request.Context(), funnels[i].ID)
		if err != nil {
			log.Printf("Error loading cached metrics for funnel %s: %v", funnels[i].ID, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve funnel metrics"})
			return
		}
		view.Metrics = cached
		views = append(views, view)
	}
	c.JSON(http.StatusOK, views)
}

// CreateFunnelRequest is the body for defining a preset funnel by hand.
type CreateFunnelRequest struct {
	Name            string             `json:"name" binding:"required"`
	Description     string             `json:"description"`
	Steps           models.FunnelSteps `json:"steps" binding:"required"`
	RequireSequence *bool              `json:"require_sequence"`
	AllowSkipSteps  bool               `json:"allow_skip_steps"`
}

func (h *FunnelHandlers) CreateFunnel(c *gin.Context) {
	version, ok := h.versionFromParam(c)
	if !ok {
		return
	}

	var req CreateFunnelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}
	if len(req.Steps) < 2 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "A funnel needs at least two steps"})
		return
	}

	funnel := models.ConversionFunnel{
		VersionID:       version.ID,
		Name:            req.Name,
		Description:     req.Description,
		Steps:           req.Steps,
		IsPreset:        true,
		RequireSequence: true,
		AllowSkipSteps:  req.AllowSkipSteps,
	}
	if req.RequireSequence != nil {
		funnel.RequireSequence = *req.RequireSequence
	}

	if err := h.Funnels.CreateFunnel(c.Request.Context(), &funnel); err != nil {
		log.Printf("Error creating funnel %q for version %d: %v", req.Name, version.ID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create funnel"})
		return
	}
	c.JSON(http.StatusCreated, funnel)
}

// Discover mines the version's sessions and replaces its auto-discovered
// funnels.
func (h *FunnelHandlers) Discover(c *gin.Context) {
	version, ok := h.versionFromParam(c)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 120*time.Second)
	defer cancel()

	funnels, err := h.Runner.DiscoverFunnels(ctx, version, pipeline.DiscoverOptions{})
	if err != nil {
		log.Printf("Error discovering funnels for version %d: %v", version.ID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Funnel discovery failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"version": version.Name, "funnels_discovered": len(funnels), "funnels": funnels})
}

// Calculate computes metrics for the version's funnels. Query flags:
// cohorts=true adds the per-cohort breakdown, force=true bypasses the
// cached metrics, funnel_id restricts to one funnel.
func (h *FunnelHandlers) Calculate(c *gin.Context) {
	version, ok := h.versionFromParam(c)
	if !ok {
		return
	}
	opts := pipeline.CalcOptions{
		IncludeCohorts: c.Query("cohorts") == "true",
		Force:          c.Query("force") == "true",
		FunnelID:       c.Query("funnel_id"),
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 120*time.Second)
	defer cancel()

	results, err := h.Runner.CalculateFunnels(ctx, version, opts)
	if err != nil {
		log.Printf("Error calculating funnels for version %d: %v", version.ID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Funnel calculation failed"})
		return
	}
	c.JSON(http.StatusOK, results)
}

func (h *FunnelHandlers) GetTopPaths(c *gin.Context) {
	version, ok := h.versionFromParam(c)
	if !ok {
		return
	}

	limit := 20
	if limitParam := c.Query("limit"); limitParam != "" {
		parsed, err := strconv.Atoi(limitParam)
		if err != nil || parsed <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid 'limit' parameter. Must be a positive integer."})
			return
		}
		limit = parsed
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 60*time.Second)
	defer cancel()

	paths, err := h.Runner.TopPaths(ctx, version, limit)
	if err != nil {
		log.Printf("Error getting top paths for version %d: %v", version.ID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve top paths"})
		return
	}
	c.JSON(http.StatusOK, paths)
}

// RefreshHypotheses regenerates hypothesis and fix texts for a version's
// stored issues.
func (h *FunnelHandlers) RefreshHypotheses(c *gin.Context) {
	version, ok := h.versionFromParam(c)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 120*time.Second)
	defer cancel()

	refreshed, err := h.Runner.RefreshHypotheses(ctx, version)
	if err != nil {
		log.Printf("Error refreshing hypotheses for version %d: %v", version.ID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to refresh hypotheses"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"version": version.Name, "issues_refreshed": refreshed})
}

func (h *FunnelHandlers) versionFromParam(c *gin.Context) (*models.ProductVersion, bool) {
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
