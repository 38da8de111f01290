package sources

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"radar/internal/queue"
	"radar/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const atomPage = `<?xml version="1.0" encoding="UTF-8"?>
<feed xmlns="http://www.w3.org/2005/Atom">
  <title>ArXiv Query</title>
  <id>http://arxiv.org/api/query</id>
  <updated>2026-10-16T00:00:00Z</updated>
  <entry>
    <id>http://arxiv.org/abs/2610.01234v1</id>
    <published>2026-10-15T18:00:00Z</published>
    <updated>2026-10-15T18:00:00Z</updated>
    <title>Universal Jailbreak via
      Suffix Optimization</title>
    <summary>  We show that &lt;b&gt;gradient&lt;/b&gt; based suffixes jailbreak aligned LLMs.  </summary>
    <author><name>Ada Lovelace</name></author>
    <author><name>Alan Turing</name></author>
    <link href="http://arxiv.org/abs/2610.01234v1" rel="alternate" type="text/html"/>
    <category term="cs.CR" scheme="http://arxiv.org/schemas/atom"/>
  </entry>
  <entry>
    <id>http://arxiv.org/abs/2609.00001v2</id>
    <published>2026-09-01T10:00:00Z</published>
    <updated>2026-09-01T10:00:00Z</updated>
    <title>An Older Paper</title>
    <summary>Too old to matter.</summary>
    <link href="http://arxiv.org/abs/2609.00001v2" rel="alternate" type="text/html"/>
  </entry>
</feed>`

func newArxivServer(t *testing.T) (*httptest.Server, *[]string) {
	t.Helper()
	var (
		mu      sync.Mutex
		queries []string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		queries = append(queries, r.URL.RawQuery)
		mu.Unlock()
		w.Header().Set("Content-Type", "application/atom+xml")
		fmt.Fprint(w, atomPage)
	}))
	t.Cleanup(srv.Close)
	return srv, &queries
}

func testSource(baseURL string) *ArxivSource {
	src := NewArxivSource(ArxivConfig{BaseURL: baseURL, Query: "cat:cs.CR", MaxResults: 10, DaysBack: 2}, nil)
	src.now = func() time.Time { return time.Date(2026, 10, 16, 12, 0, 0, 0, time.UTC) }
	return src
}

func TestArxivSource_Fetch(t *testing.T) {
	srv, queries := newArxivServer(t)

	docs, err := testSource(srv.URL).Fetch(context.Background())
	require.NoError(t, err)
	require.Len(t, docs, 1, "entries past the date limit stop the fetch")

	doc := docs[0]
	assert.Equal(t, "2610.01234v1", doc.ID)
	assert.Equal(t, "Universal Jailbreak via Suffix Optimization", doc.Title)
	assert.Equal(t, "We show that gradient based suffixes jailbreak aligned LLMs.", doc.Body)
	assert.Equal(t, "arxiv", doc.Source)
	assert.Equal(t, "http://arxiv.org/abs/2610.01234v1", doc.URL)
	assert.Equal(t, "2026-10-15T18:00:00Z", doc.PublishedAt)
	assert.Equal(t, []string{"Ada Lovelace", "Alan Turing"}, doc.Metadata["authors"])

	require.Len(t, *queries, 1)
	assert.Contains(t, (*queries)[0], "search_query=cat%3Acs.CR")
	assert.Contains(t, (*queries)[0], "sortBy=submittedDate")
}

func TestArxivSource_MaxResults(t *testing.T) {
	srv, _ := newArxivServer(t)
	src := testSource(srv.URL)
	src.config.DaysBack = 365
	src.config.MaxResults = 1

	docs, err := src.Fetch(context.Background())
	require.NoError(t, err)
	assert.Len(t, docs, 1)
}

func TestIngest_QueuesEnvelopes(t *testing.T) {
	srv, _ := newArxivServer(t)
	q := testutil.NewMemoryQueue()
	ctx := context.Background()
	require.NoError(t, q.EnsureGroup(ctx, queue.PendingTopic, "agent_group"))

	n, err := Ingest(ctx, testSource(srv.URL), q, queue.PendingTopic, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	entries, err := q.ReadNew(ctx, queue.PendingTopic, "agent_group", "w1", 10, 0)
	require.NoError(t, err)
	require.Len(t, entries, 1)

	env, err := queue.Decode(entries[0])
	require.NoError(t, err)
	assert.Equal(t, "2610.01234v1", env.ID)
}

func TestIngest_FetchError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "rate limited", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := Ingest(context.Background(), testSource(srv.URL), testutil.NewMemoryQueue(), queue.PendingTopic, nil, nil)
	assert.Error(t, err)
}

func TestStripHTML(t *testing.T) {
	assert.Equal(t, "a & b", stripHTML("<p>a &amp; b</p>"))
	assert.Equal(t, "x y", collapse(" x \n\t y "))
}
