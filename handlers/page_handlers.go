package handlers

import (
	"log"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"uxpulse/api/models"
	"uxpulse/api/store"
	"uxpulse/api/utils"
)

// PageHandlers serves per-page aggregates and the user cohorts of a
// version.
type PageHandlers struct {
	Versions *store.VersionStore
	Pages    *store.PageStore
	Cohorts  *store.CohortStore
}

func NewPageHandlers(versions *store.VersionStore, pages *store.PageStore, cohorts *store.CohortStore) *PageHandlers {
	return &PageHandlers{Versions: versions, Pages: pages, Cohorts: cohorts}
}

func (h *PageHandlers) ListPageMetrics(c *gin.Context) {
	version, ok := h.versionFromParam(c)
	if !ok {
		return
	}

	pages, err := h.Pages.ListPageMetrics(c.Request.Context(), version.ID)
	if err != nil {
		log.Printf("Error listing page metrics for version %d: %v", version.ID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve page metrics"})
		return
	}

	type pageView struct {
		models.PageMetrics
		PageName string `json:"page_name"`
	}
	views := make([]pageView, 0, len(pages))
	for _, page := range pages {
		views = append(views, pageView{PageMetrics: page, PageName: utils.ReadablePageName(page.URL)})
	}
	c.JSON(http.StatusOK, views)
}

func (h *PageHandlers) ListCohorts(c *gin.Context) {
	version, ok := h.versionFromParam(c)
	if !ok {
		return
	}

	cohorts, err := h.Cohorts.ListCohorts(c.Request.Context(), version.ID)
	if err != nil {
		log.Printf("Error listing cohorts for version %d: %v", version.ID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve cohorts"})
		return
	}
	c.JSON(http.StatusOK, cohorts)
}

// ReplaceCohortsRequest carries cohort definitions produced by an external
// segmentation job.
type ReplaceCohortsRequest struct {
	Cohorts []models.UserCohort `json:"cohorts" binding:"required"`
}

func (h *PageHandlers) ReplaceCohorts(c *gin.Context) {
	version, ok := h.versionFromParam(c)
	if !ok {
		return
	}

	var req ReplaceCohortsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	if err := h.Cohorts.ReplaceCohorts(c.Request.Context(), version.ID, req.Cohorts); err != nil {
		log.Printf("Error replacing cohorts for version %d: %v", version.ID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to store cohorts"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"version": version.Name, "cohorts": len(req.Cohorts)})
}

func (h *PageHandlers) versionFromParam(c *gin.Context) (*models.ProductVersion, bool) {
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
