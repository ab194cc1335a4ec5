package btcforge

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFilterStableTags(t *testing.T) {
	in := []string{"v29.1", "v29.1rc2", "v29.0", "v28.2rc1", "v28.1", "v0.10.10-RC1"}
	assert.Equal(t, []string{"v29.1", "v29.0", "v28.1"}, filterStableTags(in, 10))
}

func TestFilterStableTagsCapped(t *testing.T) {
	var in []string
	for i := 0; i < 15; i++ {
		in = append(in, fmt.Sprintf("v%d.0", 30-i))
	}
	got := filterStableTags(in, 10)
	require.Len(t, got, 10)
	assert.Equal(t, "v30.0", got[0])
	assert.Equal(t, "v21.0", got[9])
}

func TestFetchVersionsParsesReleases(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.NotEmpty(t, r.Header.Get("User-Agent"))
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `[
			{"tag_name": "v29.1"},
			{"tag_name": "v29.1rc1"},
			{"tag_name": "v29.0"}
		]`)
	}))
	defer srv.Close()

	tags, err := fetchVersions(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, []string{"v29.1", "v29.0"}, tags)
}

func TestFetchVersionsNonOKStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "rate limited", http.StatusForbidden)
	}))
	defer srv.Close()

	_, err := fetchVersions(context.Background(), srv.URL)
	var netErr *NetworkError
	require.ErrorAs(t, err, &netErr)
	assert.Equal(t, srv.URL, netErr.URL)
}

func TestFetchVersionsBadJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"not": "a list"}`)
	}))
	defer srv.Close()

	_, err := fetchVersions(context.Background(), srv.URL)
	var netErr *NetworkError
	assert.ErrorAs(t, err, &netErr)
}
