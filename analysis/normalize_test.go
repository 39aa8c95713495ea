package analysis

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeURL_StripsTrackingParams(t *testing.T) {
	got := NormalizeURL("https://X/a/?utm_source=x")
	assert.Equal(t, "https://x/a", got)
}

func TestNormalizeURL_KeepsMeaningfulQuery(t *testing.T) {
	got := NormalizeURL("https://site.ru/search/?q=math&utm_campaign=spring")
	assert.Equal(t, "https://site.ru/search?q=math", got)
}

func TestNormalizeURL_Idempotent(t *testing.T) {
	inputs := []string{
		"https://X/a/?utm_source=x",
		"https://site.ru/programs/math/",
		"/programs/math/",
		"https://site.ru/",
		"HTTP://SITE.RU/About",
	}
	for _, in := range inputs {
		once := NormalizeURL(in)
		assert.Equal(t, once, NormalizeURL(once), "input %q", in)
	}
}

func TestNormalizeURL_MalformedReturnsEmpty(t *testing.T) {
	assert.Equal(t, "", NormalizeURL("://missing-scheme"))
	assert.Equal(t, "", NormalizeURL("   "))
}

func TestNormalizeURL_BarePath(t *testing.T) {
	assert.Equal(t, "/programs/math", NormalizeURL("/programs/math/"))
}

func TestNormalizeForDiscovery_CollapsesSections(t *testing.T) {
	got := NormalizeForDiscovery("https://site.ru/base/programs/12345/page.php/")
	assert.Equal(t, "/bachelor/programs/page/", got)
}

func TestNormalizeForDiscovery_DropsIDSegments(t *testing.T) {
	assert.Equal(t, "/programs/", NormalizeForDiscovery("/programs/98765/"))
	assert.Equal(t, "/news/", NormalizeForDiscovery("/news/2024/"))
	assert.Equal(t, "/programs/", NormalizeForDiscovery("/programs/ab/"))
}

func TestNormalizeForDiscovery_CapsDepth(t *testing.T) {
	got := NormalizeForDiscovery("/one/two/three/four/five/")
	assert.Equal(t, "/one/two/three/", got)
}

func TestNormalizeForDiscovery_Root(t *testing.T) {
	assert.Equal(t, "/", NormalizeForDiscovery("https://site.ru/"))
}

func TestNormalizeForDiscovery_Idempotent(t *testing.T) {
	inputs := []string{
		"https://site.ru/base/programs/12345/page.php/",
		"/one/two/three/four/",
		"/",
	}
	for _, in := range inputs {
		once := NormalizeForDiscovery(in)
		assert.Equal(t, once, NormalizeForDiscovery(once), "input %q", in)
	}
}

func TestEquivalentPath(t *testing.T) {
	assert.Equal(t, "/bachelor/programs/math", equivalentPath("/base/programs/math"))
	assert.Equal(t, "/magistracy/programs", equivalentPath("/magistracy/programs"))
}
