package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestReadablePageName(t *testing.T) {
	cases := map[string]string{
		"https://site.ru/apply/thanks":         "Application thank-you page",
		"https://site.ru/apply":                "Application form",
		"https://site.ru/base/programs/math":   "Bachelor programs",
		"https://site.ru/search?q=math":        "Search",
		"https://site.ru/":                     "Home page",
		"https://site.ru/some/unknown/page":    "/some/unknown/page",
		"/rating":                              "Ratings",
		"https://site.ru/unknown?utm_source=x": "/unknown",
	}
	for in, want := range cases {
		assert.Equal(t, want, ReadablePageName(in), "input %q", in)
	}
}

func TestIsValidInterval(t *testing.T) {
	assert.True(t, IsValidInterval("Day"))
	assert.True(t, IsValidInterval("Hour"))
	assert.False(t, IsValidInterval("day"))
	assert.False(t, IsValidInterval("Fortnight"))
	assert.False(t, IsValidInterval(""))
}
