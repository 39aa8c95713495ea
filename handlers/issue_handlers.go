package handlers

import (
	"context"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"uxpulse/api/analysis"
	"uxpulse/api/models"
	"uxpulse/api/pipeline"
	"uxpulse/api/store"
	"uxpulse/api/utils"
)

// IssueHandlers serves detected issues, lifecycle history, and the
// version-to-version comparison.
type IssueHandlers struct {
	Versions *store.VersionStore
	Issues   *store.IssueStore
	Pages    *store.PageStore
	Runner   *pipeline.Runner
}

func NewIssueHandlers(versions *store.VersionStore, issues *store.IssueStore, pages *store.PageStore, runner *pipeline.Runner) *IssueHandlers {
	return &IssueHandlers{Versions: versions, Issues: issues, Pages: pages, Runner: runner}
}

func (h *IssueHandlers) ListIssues(c *gin.Context) {
	version, ok := h.versionFromParam(c)
	if !ok {
		return
	}

	issues, err := h.Issues.ListIssues(c.Request.Context(), version.ID)
	if err != nil {
		log.Printf("Error listing issues for version %d: %v", version.ID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve issues"})
		return
	}

	severity := models.Severity(c.Query("severity"))
	issueType := models.IssueType(c.Query("type"))
	if severity != "" || issueType != "" {
		filtered := issues[:0]
		for _, issue := range issues {
			if severity != "" && issue.Severity != severity {
				continue
			}
			if issueType != "" && issue.IssueType != issueType {
				continue
			}
			filtered = append(filtered, issue)
		}
		issues = filtered
	}

	type issueView struct {
		models.UXIssue
		PageName string `json:"page_name"`
	}
	views := make([]issueView, 0, len(issues))
	for _, issue := range issues {
		views = append(views, issueView{UXIssue: issue, PageName: utils.ReadablePageName(issue.Location)})
	}
	c.JSON(http.StatusOK, views)
}

func (h *IssueHandlers) ListLifecycles(c *gin.Context) {
	version, ok := h.versionFromParam(c)
	if !ok {
		return
	}

	records, err := h.Issues.ListLifecycles(c.Request.Context(), version.ID)
	if err != nil {
		log.Printf("Error listing lifecycles for version %d: %v", version.ID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve issue lifecycles"})
		return
	}
	c.JSON(http.StatusOK, records)
}

// GetIssueHistory returns one issue key's lifecycle across all versions.
func (h *IssueHandlers) GetIssueHistory(c *gin.Context) {
	issueType := models.IssueType(c.Query("type"))
	location := c.Query("location")
	if issueType == "" || location == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "type and location query parameters are required"})
		return
	}
	if norm := analysis.NormalizeURL(location); norm != "" {
		location = norm
	}

	records, err := h.Issues.IssueHistory(c.Request.Context(), issueType, location)
	if err != nil {
		log.Printf("Error getting issue history for %s at %s: %v", issueType, location, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve issue history"})
		return
	}
	c.JSON(http.StatusOK, records)
}

// RunAnalysis triggers the detector suite for a version.
func (h *IssueHandlers) RunAnalysis(c *gin.Context) {
	version, ok := h.versionFromParam(c)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 120*time.Second)
	defer cancel()

	issues, err := h.Runner.Analyze(ctx, version)
	if err != nil {
		log.Printf("Error analyzing version %d: %v", version.ID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Analysis failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"version": version.Name, "issues_found": len(issues)})
}

// CompareVersions diffs two versions' issues and funnel conversions.
func (h *IssueHandlers) CompareVersions(c *gin.Context) {
	idA, errA := strconv.Atoi(c.Query("a"))
	idB, errB := strconv.Atoi(c.Query("b"))
	if errA != nil || errB != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "a and b query parameters must be version IDs"})
		return
	}

	ctx := c.Request.Context()
	versionA, err := h.Versions.GetVersionByID(ctx, idA)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Version A not found"})
		return
	}
	versionB, err := h.Versions.GetVersionByID(ctx, idB)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Version B not found"})
		return
	}

	issuesA, err := h.Issues.ListIssues(ctx, versionA.ID)
	if err != nil {
		log.Printf("Error listing issues for version %d: %v", versionA.ID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve issues"})
		return
	}
	issuesB, err := h.Issues.ListIssues(ctx, versionB.ID)
	if err != nil {
		log.Printf("Error listing issues for version %d: %v", versionB.ID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve issues"})
		return
	}

	funnels, err := h.compareFunnels(ctx, versionA, versionB)
	if err != nil {
		log.Printf("Error comparing funnels between versions %d and %d: %v", versionA.ID, versionB.ID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to compare funnels"})
		return
	}

	comparison := analysis.CompareVersions(issuesA, issuesB, funnels)

	statsA, err := h.Versions.ListDailyStats(ctx, versionA.ID)
	if err != nil {
		log.Printf("Error loading daily stats for version %d: %v", versionA.ID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to compare traffic"})
		return
	}
	statsB, err := h.Versions.ListDailyStats(ctx, versionB.ID)
	if err != nil {
		log.Printf("Error loading daily stats for version %d: %v", versionB.ID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to compare traffic"})
		return
	}
	comparison.Traffic = analysis.CompareTraffic(statsA, statsB)

	pagesA, err := h.Pages.ListPageMetrics(ctx, versionA.ID)
	if err != nil {
		log.Printf("Error loading page metrics for version %d: %v", versionA.ID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to compare pages"})
		return
	}
	pagesB, err := h.Pages.ListPageMetrics(ctx, versionB.ID)
	if err != nil {
		log.Printf("Error loading page metrics for version %d: %v", versionB.ID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to compare pages"})
		return
	}
	comparison.Pages = analysis.ComparePages(pagesA, pagesB)

	comparison.Alerts = analysis.BuildAlerts(&comparison)

	c.JSON(http.StatusOK, gin.H{
		"version_a":  versionA,
		"version_b":  versionB,
		"comparison": comparison,
	})
}

// compareFunnels pairs funnels by name across two versions and compares
// those present in both with calculated metrics.
func (h *IssueHandlers) compareFunnels(ctx context.Context, versionA, versionB *models.ProductVersion) ([]analysis.FunnelComparison, error) {
	metricsA, err := h.Runner.CalculateFunnels(ctx, versionA, pipeline.CalcOptions{})
	if err != nil {
		return nil, err
	}
	metricsB, err := h.Runner.CalculateFunnels(ctx, versionB, pipeline.CalcOptions{})
	if err != nil {
		return nil, err
	}

	nameOf := func(version *models.ProductVersion) (map[string]string, error) {
		funnels, err := h.Runner.Funnels.ListFunnels(ctx, version.ID)
		if err != nil {
			return nil, err
		}
		names := make(map[string]string, len(funnels))
		for _, f := range funnels {
			names[f.ID] = f.Name
		}
		return names, nil
	}
	namesA, err := nameOf(versionA)
	if err != nil {
		return nil, err
	}
	namesB, err := nameOf(versionB)
	if err != nil {
		return nil, err
	}

	byNameA := make(map[string]models.FunnelMetrics)
	for _, stored := range metricsA {
		byNameA[namesA[stored.FunnelID]] = stored.Metrics
	}

	var comparisons []analysis.FunnelComparison
	for _, stored := range metricsB {
		name := namesB[stored.FunnelID]
		a, ok := byNameA[name]
		if !ok {
			continue
		}
		comparisons = append(comparisons, analysis.CompareFunnel(name, a, stored.Metrics))
	}
	return comparisons, nil
}

func (h *IssueHandlers) versionFromParam(c *gin.Context) (*models.ProductVersion, bool) {
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
