package utils

import "strings"

// pageNamePatterns maps URL fragments to readable dashboard labels,
// checked in order so more specific fragments win.
var pageNamePatterns = []struct {
	fragment string
	name     string
}{
	{"/apply/thanks", "Application thank-you page"},
	{"/apply", "Application form"},
	{"/bachelor/programs", "Bachelor programs"},
	{"/base/programs", "Bachelor programs"},
	{"/magistracy/programs", "Master programs"},
	{"/programs", "Programs catalog"},
	{"/rating", "Ratings"},
	{"/lists", "Applicant lists"},
	{"/search", "Search"},
	{"/news", "News"},
	{"/events/open-day", "Open day"},
	{"/events", "Events"},
	{"/contacts", "Contacts"},
	{"/about", "About"},
	{"/request", "Callback request"},
}

// ReadablePageName turns a location URL into a short dashboard label. URLs
// matching no pattern fall back to the cleaned path, and the bare root
// becomes "Home page".
func ReadablePageName(location string) string {
	lower := strings.ToLower(location)
	for _, p := range pageNamePatterns {
		if strings.Contains(lower, p.fragment) {
			return p.name
		}
	}

	path := lower
	if i := strings.Index(path, "://"); i >= 0 {
		path = path[i+3:]
		if j := strings.Index(path, "/"); j >= 0 {
			path = path[j:]
		} else {
			path = "/"
		}
	}
	if k := strings.IndexAny(path, "?#"); k >= 0 {
		path = path[:k]
	}
	path = strings.Trim(path, "/")
	if path == "" {
		return "Home page"
	}
	return "/" + path
}
