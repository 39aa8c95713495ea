package analysis

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"

	"uxpulse/api/models"
)

// Draft is a candidate issue produced by one detector, before hypothesis
// enrichment and lifecycle annotation.
type Draft struct {
	Type             models.IssueType
	Severity         models.Severity
	Location         string
	Description      string
	AffectedSessions int
	ImpactScore      float64

	// MetricsSummary is the short figures string handed to the hypothesis
	// generator.
	MetricsSummary string

	// loopNodes marks locations the high-bounce detector must not
	// re-report; only the back-and-forth detector sets it.
	loopNodes []string
}

// Detector scans one behavioral signature. The set of detectors is closed:
// adding one means adding a type here and wiring it into Suite, which the
// compiler checks, rather than registering a name in a map.
type Detector interface {
	Type() models.IssueType
	Detect(run *RunContext) []Draft
}

// Suite runs the full detector battery in a fixed order. Order matters in
// one place: the back-and-forth loop detector runs before high bounce so
// its locations can be suppressed there instead of double-reported.
type Suite struct {
	rage      *RageClickDetector
	navLoop   *NavLoopDetector
	backForth *BackForthLoopDetector
	wandering *WanderingDetector
	bounce    *HighBounceDetector
	form      *StalledFormDetector
	dropoff   *FunnelDropoffDetector
	dead      *DeadClickDetector
	scanDrop  *ScanAndDropDetector
	search    *SearchFailDetector
}

// NewSuite builds the standard battery with default thresholds.
func NewSuite() *Suite {
	return &Suite{
		rage:      &RageClickDetector{},
		navLoop:   &NavLoopDetector{},
		backForth: &BackForthLoopDetector{},
		wandering: &WanderingDetector{MinSessions: WanderingMinSessions},
		bounce:    &HighBounceDetector{},
		form:      &StalledFormDetector{},
		dropoff:   &FunnelDropoffDetector{Stages: []string{"/", "/lists", "/rating", "/apply"}},
		dead:      &DeadClickDetector{MinViews: MinPageViewsForAlert},
		scanDrop:  &ScanAndDropDetector{MinViews: MinPageViewsForAlert},
		search:    &SearchFailDetector{MinViews: MinPageViewsForAlert},
	}
}

// Detectors exposes the battery in execution order.
func (s *Suite) Detectors() []Detector {
	return []Detector{
		s.rage, s.navLoop, s.backForth, s.wandering, s.bounce,
		s.form, s.dropoff, s.dead, s.scanDrop, s.search,
	}
}

// Run executes every detector against the run context and returns all
// drafts, at most one per (type, location).
func (s *Suite) Run(run *RunContext) []Draft {
	suppressed := make(map[string]struct{})
	var drafts []Draft
	seen := make(map[string]struct{})

	for _, det := range s.Detectors() {
		if hb, ok := det.(*HighBounceDetector); ok {
			hb.suppress = suppressed
		}
		for _, draft := range det.Detect(run) {
			key := string(draft.Type) + "\x1f" + draft.Location
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			for _, node := range draft.loopNodes {
				suppressed[node] = struct{}{}
			}
			drafts = append(drafts, draft)
		}
	}
	return drafts
}

// hitsByClient groups every hit in the run by client, ordered by timestamp.
// A client's hits arrive partitioned across their sessions, so each group is
// the concatenation of all that client's session slices.
func hitsByClient(run *RunContext) map[string][]models.PageHit {
	grouped := make(map[string][]models.PageHit)
	for i := range run.Sessions {
		session := &run.Sessions[i]
		if len(session.Hits) == 0 {
			continue
		}
		grouped[session.ClientID] = append(grouped[session.ClientID], session.Hits...)
	}
	for _, hits := range grouped {
		sort.SliceStable(hits, func(a, b int) bool {
			return hits[a].Timestamp.Before(hits[b].Timestamp)
		})
	}
	return grouped
}

// clientsWithGoals returns the clients that recorded any goal completion.
func clientsWithGoals(run *RunContext) map[string]struct{} {
	set := make(map[string]struct{})
	for i := range run.Sessions {
		if run.Sessions[i].HasGoals() {
			set[run.Sessions[i].ClientID] = struct{}{}
		}
	}
	return set
}

// topCounts returns up to limit keys ordered by count descending, name
// ascending for determinism.
func topCounts(counts map[string]int, limit int) []string {
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(a, b int) bool {
		if counts[keys[a]] != counts[keys[b]] {
			return counts[keys[a]] > counts[keys[b]]
		}
		return keys[a] < keys[b]
	})
	if len(keys) > limit {
		keys = keys[:limit]
	}
	return keys
}

// RageClickDetector finds rapid repeat hits on the same URL by the same
// client: frustration clicks or frantic reloads.
type RageClickDetector struct{}

func (d *RageClickDetector) Type() models.IssueType { return models.IssueRageClick }

func (d *RageClickDetector) Detect(run *RunContext) []Draft {
	counts := make(map[string]int)
	for _, hits := range hitsByClient(run) {
		for i := 1; i < len(hits); i++ {
			if hits[i].URL != hits[i-1].URL {
				continue
			}
			if hits[i].Timestamp.Sub(hits[i-1].Timestamp) >= RageClickGap {
				continue
			}
			loc := NormalizeURL(hits[i].URL)
			if loc == "" {
				continue
			}
			counts[loc]++
		}
	}

	var drafts []Draft
	for _, loc := range topCounts(counts, TopLocationsPerDetector) {
		count := counts[loc]
		drafts = append(drafts, Draft{
			Type:             models.IssueRageClick,
			Severity:         models.SeverityWarning,
			Location:         loc,
			Description:      fmt.Sprintf("%d rapid repeat clicks or reloads detected on this page.", count),
			AffectedSessions: count,
			ImpactScore:      capImpact(float64(count) * 0.1),
			MetricsSummary:   fmt.Sprintf("rage events: %d", count),
		})
	}
	return drafts
}

// NavLoopDetector finds clients returning to the same page more than
// NavLoopMinVisits times within the run window.
type NavLoopDetector struct{}

func (d *NavLoopDetector) Type() models.IssueType { return models.IssueNavLoop }

func (d *NavLoopDetector) Detect(run *RunContext) []Draft {
	visits := make(map[string]map[string]int)
	for client, hits := range hitsByClient(run) {
		for i := range hits {
			loc := NormalizeURL(hits[i].URL)
			if loc == "" {
				continue
			}
			if visits[client] == nil {
				visits[client] = make(map[string]int)
			}
			visits[client][loc]++
		}
	}

	loopers := make(map[string]int)
	for _, perURL := range visits {
		for loc, n := range perURL {
			if n > NavLoopMinVisits {
				loopers[loc]++
			}
		}
	}

	var drafts []Draft
	for _, loc := range topCounts(loopers, TopLocationsPerDetector) {
		count := loopers[loc]
		drafts = append(drafts, Draft{
			Type:             models.IssueNavLoop,
			Severity:         models.SeverityWarning,
			Location:         loc,
			Description:      fmt.Sprintf("Users keep returning to this page (%d looping visitors).", count),
			AffectedSessions: count,
			ImpactScore:      capImpact(float64(count) * 0.15),
			MetricsSummary:   fmt.Sprintf("looping visitors: %d", count),
		})
	}
	return drafts
}

// BackForthLoopDetector finds 2- and 3-hop windows whose endpoints match
// (A→B→A, A→B→C→A) with at least two distinct locations. Two-node loops
// are canonicalized by sorting the pair so A→B→A and B→A→B count as one
// pattern.
type BackForthLoopDetector struct{}

func (d *BackForthLoopDetector) Type() models.IssueType { return models.IssueBackForthLoop }

func (d *BackForthLoopDetector) Detect(run *RunContext) []Draft {
	type loopStat struct {
		count   int
		users   map[string]struct{}
		display string
		nodes   []string
	}
	stats := make(map[string]*loopStat)

	for client, hits := range hitsByClient(run) {
		urls := make([]string, len(hits))
		for i := range hits {
			urls[i] = hits[i].URL
		}
		for idx := range urls {
			for _, window := range []int{2, 3} {
				if idx < window {
					continue
				}
				seq := urls[idx-window : idx+1]
				norm := make([]string, len(seq))
				for i, u := range seq {
					norm[i] = NormalizeURL(u)
				}
				if norm[0] == "" || norm[len(norm)-1] == "" || norm[0] != norm[len(norm)-1] {
					continue
				}
				if distinctCount(norm) < 2 {
					continue
				}
				key, display, nodes := canonicalLoop(norm)
				st, ok := stats[key]
				if !ok {
					st = &loopStat{users: make(map[string]struct{}), display: display, nodes: nodes}
					stats[key] = st
				}
				st.count++
				st.users[client] = struct{}{}
			}
		}
	}

	keys := make([]string, 0, len(stats))
	for k := range stats {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(a, b int) bool {
		if stats[keys[a]].count != stats[keys[b]].count {
			return stats[keys[a]].count > stats[keys[b]].count
		}
		return keys[a] < keys[b]
	})
	if len(keys) > TopLocationsPerDetector {
		keys = keys[:TopLocationsPerDetector]
	}

	var drafts []Draft
	for _, key := range keys {
		st := stats[key]
		users := len(st.users)
		drafts = append(drafts, Draft{
			Type:     models.IssueBackForthLoop,
			Severity: models.SeverityWarning,
			Location: st.display,
			Description: fmt.Sprintf("Users cycle through %s (%d patterns, %d users).",
				st.display, st.count, users),
			AffectedSessions: users,
			ImpactScore:      capImpact(float64(st.count) * 0.12),
			MetricsSummary:   fmt.Sprintf("loop %s: %d repeats, %d users", st.display, st.count, users),
			loopNodes:        st.nodes,
		})
	}
	return drafts
}

func distinctCount(values []string) int {
	set := make(map[string]struct{}, len(values))
	for _, v := range values {
		set[v] = struct{}{}
	}
	return len(set)
}

func canonicalLoop(norm []string) (key, display string, nodes []string) {
	set := make(map[string]struct{}, len(norm))
	for _, v := range norm {
		set[v] = struct{}{}
	}
	if len(set) == 2 {
		pair := make([]string, 0, 2)
		for v := range set {
			pair = append(pair, v)
		}
		sort.Strings(pair)
		key = strings.Join(pair, "\x1f")
		display = fmt.Sprintf("%s -> %s -> %s", pair[0], pair[1], pair[0])
		return key, display, pair
	}
	key = strings.Join(norm, "\x1f")
	display = strings.Join(norm, " -> ")
	nodes = norm[1 : len(norm)-1]
	return key, display, nodes
}

// WanderingDetector finds deep sessions that never reached a goal, grouped
// by entry page. Groups smaller than MinSessions are noise and suppressed.
type WanderingDetector struct {
	MinSessions int
}

func (d *WanderingDetector) Type() models.IssueType { return models.IssueWandering }

func (d *WanderingDetector) Detect(run *RunContext) []Draft {
	counts := make(map[string]int)
	depthSum := make(map[string]int)
	for i := range run.Sessions {
		session := &run.Sessions[i]
		if session.PageViews <= WanderingMinPageViews || session.HasGoals() {
			continue
		}
		entry := NormalizeURL(session.EntryPage)
		if entry == "" {
			continue
		}
		counts[entry]++
		depthSum[entry] += session.PageViews
	}

	var drafts []Draft
	for _, entry := range topCounts(counts, TopLocationsPerDetector) {
		count := counts[entry]
		if count < d.MinSessions {
			continue
		}
		avgDepth := float64(depthSum[entry]) / float64(count)
		drafts = append(drafts, Draft{
			Type:             models.IssueWandering,
			Severity:         models.SeverityWarning,
			Location:         entry,
			Description:      fmt.Sprintf("Users wander through %.1f pages on average without reaching any goal.", avgDepth),
			AffectedSessions: count,
			ImpactScore:      capImpact(float64(count) * 0.1),
			MetricsSummary:   fmt.Sprintf("sessions: %d, avg depth: %.1f", count, avgDepth),
		})
	}
	return drafts
}

// HighBounceDetector finds pages hit by sessions that left within
// BounceMaxDuration seconds. Locations already flagged as back-and-forth
// loops are suppressed to avoid double-reporting the same page.
type HighBounceDetector struct {
	suppress map[string]struct{}
}

func (d *HighBounceDetector) Type() models.IssueType { return models.IssueHighBounce }

func (d *HighBounceDetector) Detect(run *RunContext) []Draft {
	bouncedClients := make(map[string]struct{})
	for i := range run.Sessions {
		if run.Sessions[i].DurationSec < BounceMaxDuration {
			bouncedClients[run.Sessions[i].ClientID] = struct{}{}
		}
	}

	counts := make(map[string]int)
	for client, hits := range hitsByClient(run) {
		if _, ok := bouncedClients[client]; !ok {
			continue
		}
		for i := range hits {
			loc := NormalizeURL(hits[i].URL)
			if loc == "" {
				continue
			}
			counts[loc]++
		}
	}

	var drafts []Draft
	for _, loc := range topCounts(counts, TopLocationsPerDetector) {
		if _, covered := d.suppress[loc]; covered {
			continue
		}
		count := counts[loc]
		drafts = append(drafts, Draft{
			Type:             models.IssueHighBounce,
			Severity:         models.SeverityCritical,
			Location:         loc,
			Description:      fmt.Sprintf("High bounce: %d users left almost immediately.", count),
			AffectedSessions: count,
			ImpactScore:      capImpact(float64(count) * 0.2),
			MetricsSummary:   fmt.Sprintf("bounces: %d", count),
		})
	}
	return drafts
}

var formURLPattern = regexp.MustCompile(`(?i)/form|/apply|/request|/anket|/zayav`)

// StalledFormDetector finds users dwelling on form pages beyond
// FormStallDuration without a goal completion. Form hits are grouped into
// quasi-sessions split wherever the gap between consecutive hits exceeds
// FormSessionGap, and spans beyond FormMaxDuration are rejected as corrupt.
type StalledFormDetector struct{}

func (d *StalledFormDetector) Type() models.IssueType { return models.IssueStalledForm }

func (d *StalledFormDetector) Detect(run *RunContext) []Draft {
	type formSpan struct {
		client   string
		url      string
		duration time.Duration
	}

	withGoals := clientsWithGoals(run)
	var spans []formSpan

	for client, hits := range hitsByClient(run) {
		var formHits []models.PageHit
		for i := range hits {
			if formURLPattern.MatchString(hits[i].URL) {
				formHits = append(formHits, hits[i])
			}
		}
		if len(formHits) == 0 {
			continue
		}

		start := 0
		for i := 1; i <= len(formHits); i++ {
			if i < len(formHits) && formHits[i].Timestamp.Sub(formHits[i-1].Timestamp) <= FormSessionGap {
				continue
			}
			group := formHits[start:i]
			start = i
			duration := group[len(group)-1].Timestamp.Sub(group[0].Timestamp)
			if duration > FormMaxDuration {
				continue
			}
			spans = append(spans, formSpan{client: client, url: group[0].URL, duration: duration})
		}
	}

	counts := make(map[string]int)
	durationSum := make(map[string]time.Duration)
	for _, span := range spans {
		if span.duration <= FormStallDuration {
			continue
		}
		if _, converted := withGoals[span.client]; converted {
			continue
		}
		loc := NormalizeURL(span.url)
		if loc == "" {
			continue
		}
		counts[loc]++
		durationSum[loc] += span.duration
	}

	var drafts []Draft
	for _, loc := range topCounts(counts, TopLocationsPerDetector) {
		count := counts[loc]
		avg := durationSum[loc].Seconds() / float64(count)
		drafts = append(drafts, Draft{
			Type:             models.IssueStalledForm,
			Severity:         models.SeverityWarning,
			Location:         loc,
			Description:      fmt.Sprintf("Users spend %.1fs on this form without submitting (%d sessions).", avg, count),
			AffectedSessions: count,
			ImpactScore:      capImpact(float64(count) * 0.15),
			MetricsSummary:   fmt.Sprintf("stalled sessions: %d, avg time on form: %.1fs", count, avg),
		})
	}
	return drafts
}

// FunnelDropoffDetector checks a fixed staged path for conversion collapses
// between consecutive stages.
type FunnelDropoffDetector struct {
	Stages []string
}

func (d *FunnelDropoffDetector) Type() models.IssueType { return models.IssueFunnelDropoff }

func (d *FunnelDropoffDetector) Detect(run *RunContext) []Draft {
	stageUsers := make([]map[string]struct{}, len(d.Stages))
	for i, stage := range d.Stages {
		stageUsers[i] = make(map[string]struct{})
		target := NormalizeURL(stage)
		for client, hits := range hitsByClient(run) {
			for h := range hits {
				if NormalizeURL(hits[h].URL) == target {
					stageUsers[i][client] = struct{}{}
					break
				}
			}
		}
	}

	var drafts []Draft
	for i := 0; i+1 < len(d.Stages); i++ {
		entered := stageUsers[i]
		if len(entered) < DropoffMinEntered {
			continue
		}
		progressed := 0
		for client := range stageUsers[i+1] {
			if _, ok := entered[client]; ok {
				progressed++
			}
		}
		conversion := float64(progressed) / float64(len(entered))
		if conversion >= DropoffMinConversion {
			continue
		}
		lost := len(entered) - progressed
		from := NormalizeURL(d.Stages[i])
		to := NormalizeURL(d.Stages[i+1])
		drafts = append(drafts, Draft{
			Type:     models.IssueFunnelDropoff,
			Severity: models.SeverityCritical,
			Location: from,
			Description: fmt.Sprintf("Critical drop-off between %s and %s. Conversion: %.1f%%.",
				from, to, conversion*100),
			AffectedSessions: lost,
			ImpactScore:      capImpact(float64(lost) * 0.2),
			MetricsSummary:   fmt.Sprintf("conversion %s -> %s: %.1f%%, users lost: %d", from, to, conversion*100, lost),
		})
	}
	return drafts
}

// validPageAggregate guards the page-level detectors against malformed
// aggregates; a bad page is skipped, never aborts the pass.
func validPageAggregate(p *models.PageMetrics) bool {
	if p.URL == "" || p.TotalViews < 0 {
		return false
	}
	if p.ExitRate < 0 || p.ExitRate > 100 {
		return false
	}
	return p.AvgTimeOnPage >= 0
}

// DeadClickDetector finds pages people leave immediately without engaging:
// high exit, near-zero dwell, no meaningful scrolling.
type DeadClickDetector struct {
	MinViews int
}

func (d *DeadClickDetector) Type() models.IssueType { return models.IssueDeadClick }

func (d *DeadClickDetector) Detect(run *RunContext) []Draft {
	var candidates []models.PageMetrics
	for _, page := range run.Pages.AllPages() {
		if !validPageAggregate(&page) || page.TotalViews < d.MinViews {
			continue
		}
		if page.ExitRate < DeadClickMinExitRate || page.AvgTimeOnPage > DeadClickMaxAvgTime {
			continue
		}
		if page.HasScrollData() && page.AvgScrollDepth > DeadClickMaxScroll {
			continue
		}
		candidates = append(candidates, page)
	}
	sort.Slice(candidates, func(a, b int) bool {
		if candidates[a].ExitRate != candidates[b].ExitRate {
			return candidates[a].ExitRate > candidates[b].ExitRate
		}
		return candidates[a].URL < candidates[b].URL
	})
	if len(candidates) > TopLocationsPerDetector {
		candidates = candidates[:TopLocationsPerDetector]
	}

	var drafts []Draft
	for _, page := range candidates {
		loc := NormalizeURL(page.URL)
		if loc == "" {
			continue
		}
		drafts = append(drafts, Draft{
			Type:     models.IssueDeadClick,
			Severity: models.SeverityWarning,
			Location: loc,
			Description: fmt.Sprintf("Looks like dead clicks: exit %.1f%%, dwell %.1fs.",
				page.ExitRate, page.AvgTimeOnPage),
			AffectedSessions: page.TotalViews,
			ImpactScore:      capImpact(page.ExitRate / 8),
			MetricsSummary: fmt.Sprintf("exit rate: %.1f%%, avg time: %.1fs, scroll: %.1f",
				page.ExitRate, page.AvgTimeOnPage, page.AvgScrollDepth),
		})
	}
	return drafts
}

// ScanAndDropDetector finds pages users scroll through almost entirely and
// then abandon fast: content that gets scanned but never converts.
type ScanAndDropDetector struct {
	MinViews int
}

func (d *ScanAndDropDetector) Type() models.IssueType { return models.IssueScanAndDrop }

func (d *ScanAndDropDetector) Detect(run *RunContext) []Draft {
	var drafts []Draft
	pages := run.Pages.AllPages()
	sort.Slice(pages, func(a, b int) bool { return pages[a].ExitRate > pages[b].ExitRate })

	for _, page := range pages {
		if len(drafts) >= TopLocationsPerDetector {
			break
		}
		if !validPageAggregate(&page) || page.TotalViews < d.MinViews {
			continue
		}
		if !page.HasScrollData() || page.AvgScrollDepth < ScanDropMinScroll {
			continue
		}
		if page.ExitRate <= ScanDropMinExitRate || page.AvgTimeOnPage >= ScanDropMaxAvgTime {
			continue
		}
		loc := NormalizeURL(page.URL)
		if loc == "" {
			continue
		}
		drafts = append(drafts, Draft{
			Type:     models.IssueScanAndDrop,
			Severity: models.SeverityWarning,
			Location: loc,
			Description: fmt.Sprintf("Users scan the full page (scroll %.0f%%) and still leave within %.0fs.",
				page.AvgScrollDepth, page.AvgTimeOnPage),
			AffectedSessions: page.TotalViews,
			ImpactScore:      capImpact(page.ExitRate / 10),
			MetricsSummary: fmt.Sprintf("scroll: %.1f%%, exit rate: %.1f%%, avg time: %.1fs",
				page.AvgScrollDepth, page.ExitRate, page.AvgTimeOnPage),
		})
	}
	return drafts
}

// searchMarkers identify search result pages in URLs.
var searchMarkers = []string{"/search", "search=", "?q=", "&q="}

// SearchFailDetector finds search pages users abandon: high exit right
// after searching means results did not answer the query.
type SearchFailDetector struct {
	MinViews int
}

func (d *SearchFailDetector) Type() models.IssueType { return models.IssueSearchFail }

func (d *SearchFailDetector) Detect(run *RunContext) []Draft {
	var drafts []Draft
	pages := run.Pages.AllPages()
	sort.Slice(pages, func(a, b int) bool { return pages[a].ExitRate > pages[b].ExitRate })

	for _, page := range pages {
		if len(drafts) >= TopLocationsPerDetector {
			break
		}
		if !validPageAggregate(&page) || page.TotalViews < d.MinViews {
			continue
		}
		if !isSearchURL(page.URL) || page.ExitRate <= SearchFailMinExitRate {
			continue
		}
		loc := NormalizeURL(page.URL)
		if loc == "" {
			continue
		}
		drafts = append(drafts, Draft{
			Type:     models.IssueSearchFail,
			Severity: models.SeverityWarning,
			Location: loc,
			Description: fmt.Sprintf("Search results page with %.1f%% exit rate: users do not find what they searched for.",
				page.ExitRate),
			AffectedSessions: page.TotalViews,
			ImpactScore:      capImpact(page.ExitRate / 8),
			MetricsSummary:   fmt.Sprintf("exit rate: %.1f%%, views: %d", page.ExitRate, page.TotalViews),
		})
	}
	return drafts
}

func isSearchURL(raw string) bool {
	lower := strings.ToLower(raw)
	for _, marker := range searchMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}
