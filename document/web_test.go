package document

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const blogPost = `<!DOCTYPE html>
<html lang="en">
<head><title>LLM Powered Autonomous Agents</title></head>
<body>
  <nav class="menu">Home | Posts | Archive</nav>
  <header class="post-header">
    <h1 class="post-title">LLM Powered Autonomous Agents</h1>
    <div class="post-meta">Date: June 23, 2023</div>
  </header>
  <div class="post-content">
    <h2>Task Decomposition</h2>
    <p>Chain of thought has become a <b>standard</b> prompting technique.</p>
    <script>alert("x")</script>
  </div>
  <footer>Copyright</footer>
</body>
</html>`

func newBlogServer(t *testing.T, hits *atomic.Int32) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits != nil {
			hits.Add(1)
		}
		switch r.URL.Path {
		case "/missing":
			http.NotFound(w, r)
		default:
			w.Header().Set("Content-Type", "text/html")
			fmt.Fprint(w, blogPost)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestWebLoader_ClassFilter(t *testing.T) {
	srv := newBlogServer(t, nil)
	loader := NewWebLoader([]string{srv.URL + "/posts/agent"},
		WithClasses("post-title", "post-header", "post-content"),
		WithRateLimit(100, 10))

	docs, err := loader.Load(context.Background())
	require.NoError(t, err)
	require.Len(t, docs, 1)

	doc := docs[0]
	assert.Contains(t, doc.PageContent, "LLM Powered Autonomous Agents")
	assert.Contains(t, doc.PageContent, "Chain of thought has become a standard prompting technique.")
	assert.NotContains(t, doc.PageContent, "Home | Posts")
	assert.NotContains(t, doc.PageContent, "Copyright")
	assert.Equal(t, srv.URL+"/posts/agent", doc.Metadata[MetaSource])
	assert.Equal(t, "LLM Powered Autonomous Agents", doc.Metadata[MetaTitle])
	assert.Equal(t, "en", doc.Metadata[MetaLanguage])
}

func TestWebLoader_Markdown(t *testing.T) {
	srv := newBlogServer(t, nil)
	loader := NewWebLoader([]string{srv.URL},
		WithClasses("post-content"),
		WithFormat(FormatMarkdown),
		WithRateLimit(100, 10))

	docs, err := loader.Load(context.Background())
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Contains(t, docs[0].PageContent, "## Task Decomposition")
	assert.Contains(t, docs[0].PageContent, "**standard**")
	assert.NotContains(t, docs[0].PageContent, "alert")
}

func TestWebLoader_MultipleURLsKeepOrder(t *testing.T) {
	var hits atomic.Int32
	srv := newBlogServer(t, &hits)
	urls := []string{srv.URL + "/a", srv.URL + "/b", srv.URL + "/c"}

	docs, err := NewWebLoader(urls, WithClasses("post-content"), WithRateLimit(100, 10), WithConcurrency(2)).
		Load(context.Background())
	require.NoError(t, err)
	require.Len(t, docs, 3)
	for i, d := range docs {
		assert.Equal(t, urls[i], d.Metadata[MetaSource])
	}
	assert.EqualValues(t, 3, hits.Load())
}

func TestWebLoader_HTTPError(t *testing.T) {
	srv := newBlogServer(t, nil)
	_, err := NewWebLoader([]string{srv.URL + "/missing"}, WithRateLimit(100, 10)).Load(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 404")
}

func TestWebLoader_CanceledContext(t *testing.T) {
	srv := newBlogServer(t, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewWebLoader([]string{srv.URL}).Load(ctx)
	assert.Error(t, err)
}

func TestNormalizeText(t *testing.T) {
	in := "  a   b \n\n\n\t\n c  "
	assert.Equal(t, "a b\n\nc", normalizeText(in))
	assert.False(t, strings.HasPrefix(normalizeText("\n\nx"), "\n"))
}

func TestWebLoader_NestedMatchesNotDuplicated(t *testing.T) {
	srv := newBlogServer(t, nil)
	docs, err := NewWebLoader([]string{srv.URL}, WithClasses("post-title", "post-header"), WithRateLimit(100, 10)).
		Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, strings.Count(docs[0].PageContent, "LLM Powered Autonomous Agents"))
	assert.Contains(t, docs[0].PageContent, "June 23, 2023")
	assert.NotContains(t, docs[0].PageContent, "alert")
}
