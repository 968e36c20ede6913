package steps

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAllowedByRobotsHeuristicBlocksKnownPaths(t *testing.T) {
	require.False(t, allowedByRobotsHeuristic("https://example.com/admin/users"))
	require.False(t, allowedByRobotsHeuristic("https://example.com/Login"))
	require.False(t, allowedByRobotsHeuristic("https://example.com/cgi-bin/foo"))
	require.False(t, allowedByRobotsHeuristic("https://example.com/private/photos"))
}

func TestAllowedByRobotsHeuristicAllowsOrdinaryPaths(t *testing.T) {
	require.True(t, allowedByRobotsHeuristic("https://example.com/gallery/page1"))
}

func TestResolveURLJoinsRelativeRef(t *testing.T) {
	base, err := url.Parse("https://example.com/gallery/")
	require.NoError(t, err)
	require.Equal(t, "https://example.com/gallery/photo.jpg", resolveURL(base, "photo.jpg"))
	require.Equal(t, "https://example.com/other", resolveURL(base, "/other"))
}

func TestResolveURLReturnsEmptyOnUnparseableRef(t *testing.T) {
	base, err := url.Parse("https://example.com/")
	require.NoError(t, err)
	require.Equal(t, "", resolveURL(base, "http://[::1"))
}

func TestSameHostComparesHostOnly(t *testing.T) {
	base, err := url.Parse("https://example.com/gallery/")
	require.NoError(t, err)
	require.True(t, sameHost(base, "https://example.com/other/page"))
	require.False(t, sameHost(base, "https://other.com/page"))
}
