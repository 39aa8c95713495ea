package pipeline

import (
	"sort"
	"time"

	"uxpulse/api/analysis"
	"uxpulse/api/models"
)

// ComputePageMetrics rolls a version's sessions up into per-page
// aggregates keyed by normalized location. Cohorts, when provided, yield
// the dominant-cohort label per page.
func ComputePageMetrics(versionID int, sessions []models.VisitSession, cohorts []models.UserCohort) []models.PageMetrics {
	type pageAccum struct {
		url         string
		title       string
		views       int
		visitors    map[string]struct{}
		timeSum     float64
		timeCount   int
		scrollSum   float64
		scrollCount int
		exits       int
		entries     int
		bounces     int
		byCohort    map[string]int
		byDevice    map[string]int
	}

	cohortOf := make(map[string]string)
	for _, cohort := range cohorts {
		for _, id := range cohort.MemberClientIDs {
			cohortOf[id] = cohort.Name
		}
	}

	pages := make(map[string]*pageAccum)
	accumFor := func(loc string) *pageAccum {
		acc, ok := pages[loc]
		if !ok {
			acc = &pageAccum{
				url:      loc,
				visitors: make(map[string]struct{}),
				byCohort: make(map[string]int),
				byDevice: make(map[string]int),
			}
			pages[loc] = acc
		}
		return acc
	}

	for i := range sessions {
		session := &sessions[i]
		for h := range session.Hits {
			hit := &session.Hits[h]
			loc := analysis.NormalizeURL(hit.URL)
			if loc == "" {
				continue
			}
			acc := accumFor(loc)
			acc.views++
			acc.visitors[session.ClientID] = struct{}{}
			if acc.title == "" && hit.Title != "" {
				acc.title = hit.Title
			}
			if hit.TimeOnPage > 0 {
				acc.timeSum += hit.TimeOnPage
				acc.timeCount++
			}
			if hit.ScrollDepth > 0 {
				acc.scrollSum += hit.ScrollDepth
				acc.scrollCount++
			}
			if hit.IsExit || h == len(session.Hits)-1 {
				acc.exits++
			}
			if name, ok := cohortOf[session.ClientID]; ok {
				acc.byCohort[name]++
			}
			if session.Device != "" {
				acc.byDevice[session.Device]++
			}
		}

		if entry := analysis.NormalizeURL(session.EntryPage); entry != "" {
			acc := accumFor(entry)
			acc.entries++
			if session.Bounced {
				acc.bounces++
			}
		}
	}

	result := make([]models.PageMetrics, 0, len(pages))
	for _, acc := range pages {
		page := models.PageMetrics{
			VersionID:      versionID,
			URL:            acc.url,
			PageTitle:      acc.title,
			TotalViews:     acc.views,
			UniqueVisitors: len(acc.visitors),
			AvgScrollDepth: -1,
			DominantCohort: dominantKey(acc.byCohort),
			DominantDevice: dominantKey(acc.byDevice),
		}
		if acc.timeCount > 0 {
			page.AvgTimeOnPage = acc.timeSum / float64(acc.timeCount)
		}
		if acc.scrollCount > 0 {
			page.AvgScrollDepth = acc.scrollSum / float64(acc.scrollCount)
		}
		if acc.views > 0 {
			page.ExitRate = float64(acc.exits) / float64(acc.views) * 100
		}
		if acc.entries > 0 {
			page.BounceRate = float64(acc.bounces) / float64(acc.entries) * 100
		}
		result = append(result, page)
	}

	sort.Slice(result, func(a, b int) bool {
		if result[a].TotalViews != result[b].TotalViews {
			return result[a].TotalViews > result[b].TotalViews
		}
		return result[a].URL < result[b].URL
	})
	return result
}

func dominantKey(counts map[string]int) string {
	best := ""
	bestCount := 0
	for key, count := range counts {
		if count > bestCount || (count == bestCount && key < best) {
			best = key
			bestCount = count
		}
	}
	return best
}

// ComputeDailyStats rolls sessions up per calendar day (UTC).
func ComputeDailyStats(versionID int, sessions []models.VisitSession) []models.DailyStat {
	type dayAccum struct {
		sessions    int
		visitors    map[string]struct{}
		pageViews   int
		bounces     int
		durationSum float64
		goals       int
	}

	days := make(map[time.Time]*dayAccum)
	for i := range sessions {
		session := &sessions[i]
		day := session.StartTime.UTC().Truncate(24 * time.Hour)
		acc, ok := days[day]
		if !ok {
			acc = &dayAccum{visitors: make(map[string]struct{})}
			days[day] = acc
		}
		acc.sessions++
		acc.visitors[session.ClientID] = struct{}{}
		acc.pageViews += session.PageViews
		acc.durationSum += float64(session.DurationSec)
		if session.Bounced {
			acc.bounces++
		}
		if session.HasGoals() {
			acc.goals++
		}
	}

	result := make([]models.DailyStat, 0, len(days))
	for day, acc := range days {
		stat := models.DailyStat{
			VersionID:     versionID,
			Date:          day,
			TotalSessions: acc.sessions,
			Visitors:      len(acc.visitors),
			PageViews:     acc.pageViews,
			GoalSessions:  acc.goals,
		}
		if acc.sessions > 0 {
			stat.BounceRate = float64(acc.bounces) / float64(acc.sessions) * 100
			stat.AvgDuration = acc.durationSum / float64(acc.sessions)
		}
		result = append(result, stat)
	}

	sort.Slice(result, func(a, b int) bool { return result[a].Date.Before(result[b].Date) })
	return result
}
