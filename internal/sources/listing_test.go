package sources

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const listingPage = `<html><body>
<dl id="articles">
  <dt>
    <a name="item1">[1]</a>
    <a href="/abs/2610.11111" title="Abstract" id="2610.11111">arXiv:2610.11111</a>
  </dt>
  <dd>
    <div class="meta">
      <div class="list-title mathjax"><span class="descriptor">Title:</span>
        Backdoor Triggers in Code Models
      </div>
      <div class="list-authors"><a href="/a/doe_j_1">Jane Doe</a>, <a href="/a/roe_r_1">Rick Roe</a></div>
      <p class="mathjax">We plant triggers in
        code completion models.</p>
    </div>
  </dd>
  <dt>
    <a href="/abs/2610.22222" title="Abstract" id="2610.22222">arXiv:2610.22222</a>
  </dt>
  <dd>
    <div class="meta">
      <div class="list-title mathjax"><span class="descriptor">Title:</span> Membership Inference at Scale</div>
      <p class="mathjax">Shadow models are not needed.</p>
    </div>
  </dd>
</dl>
</body></html>`

func newListingServer(t *testing.T) (*httptest.Server, *[]string) {
	t.Helper()
	var (
		mu      sync.Mutex
		queries []string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		queries = append(queries, r.URL.Path+"?"+r.URL.RawQuery)
		mu.Unlock()
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, listingPage)
	}))
	t.Cleanup(srv.Close)
	return srv, &queries
}

func TestListingSource_Fetch(t *testing.T) {
	srv, queries := newListingServer(t)

	src := NewListingSource(ListingConfig{URLs: []string{srv.URL + "/list/cs.CR/new"}, PageSize: 10}, srv.Client(), nil)
	src.now = func() time.Time { return time.Date(2026, 10, 16, 0, 0, 0, 0, time.UTC) }

	docs, err := src.Fetch(context.Background())
	require.NoError(t, err)
	require.Len(t, docs, 2)

	assert.Equal(t, "2610.11111", docs[0].ID)
	assert.Equal(t, "Backdoor Triggers in Code Models", docs[0].Title)
	assert.Equal(t, "We plant triggers in code completion models.", docs[0].Body)
	assert.Equal(t, "https://arxiv.org/abs/2610.11111", docs[0].URL)
	assert.Equal(t, "2026-10-16T00:00:00Z", docs[0].PublishedAt)
	assert.Equal(t, []string{"Jane Doe", "Rick Roe"}, docs[0].Metadata["authors"])
	assert.Equal(t, "Membership Inference at Scale", docs[1].Title)

	require.Len(t, *queries, 1, "a short page ends the listing")
	assert.Contains(t, (*queries)[0], "show=10")
	assert.Contains(t, (*queries)[0], "skip=0")
}

func TestListingSource_DedupesAcrossCategoriesAndCaps(t *testing.T) {
	srv, _ := newListingServer(t)

	src := NewListingSource(ListingConfig{
		URLs:     []string{srv.URL + "/list/cs.CR/new", srv.URL + "/list/cs.LG/new"},
		PageSize: 10,
	}, srv.Client(), nil)

	docs, err := src.Fetch(context.Background())
	require.NoError(t, err)
	assert.Len(t, docs, 2)

	src.config.MaxResults = 1
	docs, err = src.Fetch(context.Background())
	require.NoError(t, err)
	assert.Len(t, docs, 1)
}

func TestListingSource_Errors(t *testing.T) {
	_, err := NewListingSource(ListingConfig{}, nil, nil).Fetch(context.Background())
	assert.Error(t, err)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	}))
	defer srv.Close()

	_, err = NewListingSource(ListingConfig{URLs: []string{srv.URL}}, srv.Client(), nil).Fetch(context.Background())
	assert.ErrorContains(t, err, "404")
}
