package render

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"testing/fstest"
	"time"

	"github.com/alexedwards/scs/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testFS() fstest.MapFS {
	return fstest.MapFS{
		"layouts/base.html": {Data: []byte(`{{define "base"}}<title>{{.Title}}</title>
{{template "flash" .}}


{{template "content" .}}
{{range .Nav}}[{{.Title}}]{{end}} {{.Version}} {{.CurrentYear}}{{end}}`)},
		"partials/flash.html": {Data: []byte(`{{define "flash"}}{{if .Flash}}<p class="{{.FlashType}}">{{.Flash}}</p>{{end}}{{end}}`)},
		"admin/hello.html":    {Data: []byte(`{{define "content"}}Hello {{.Data}} {{truncate "abcdef" 3}}{{end}}`)},
		"admin/broken.html":   {Data: []byte(`{{define "content"}}{{.Data.Missing}}{{end}}`)},
	}
}

func newTestRenderer(t *testing.T, sm *scs.SessionManager) *Renderer {
	t.Helper()
	r, err := New(Config{
		TemplatesFS:    testFS(),
		SessionManager: sm,
		Nav:            []NavItem{{Name: "ads", Title: "Ads", URL: "/admin/ads"}},
		Version:        "1.2.3",
	})
	require.NoError(t, err)
	r.now = func() time.Time { return time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC) }
	return r
}

func TestNew_RequiresAdminTemplates(t *testing.T) {
	_, err := New(Config{TemplatesFS: fstest.MapFS{
		"layouts/base.html": {Data: []byte(`{{define "base"}}{{end}}`)},
	}})
	assert.Error(t, err)
}

func TestRender(t *testing.T) {
	r := newTestRenderer(t, nil)
	assert.True(t, r.Has("admin/hello"))
	assert.False(t, r.Has("admin/missing"))

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	err := r.Render(w, req, http.StatusTeapot, "admin/hello", TemplateData{Title: "Greeting", Data: "world"})
	require.NoError(t, err)

	assert.Equal(t, http.StatusTeapot, w.Code)
	assert.Equal(t, "text/html; charset=utf-8", w.Header().Get("Content-Type"))
	body := w.Body.String()
	assert.Contains(t, body, "<title>Greeting</title>")
	assert.Contains(t, body, "Hello world abc...")
	assert.Contains(t, body, "[Ads] 1.2.3 2026")
	assert.NotContains(t, body, "\n\n", "blank lines are compacted")
}

func TestRender_UnknownTemplate(t *testing.T) {
	r := newTestRenderer(t, nil)
	w := httptest.NewRecorder()
	err := r.Render(w, httptest.NewRequest(http.MethodGet, "/", nil), http.StatusOK, "admin/nope", TemplateData{})
	assert.Error(t, err)
}

func TestRender_ExecutionErrorWritesNothing(t *testing.T) {
	r := newTestRenderer(t, nil)
	w := httptest.NewRecorder()
	err := r.Render(w, httptest.NewRequest(http.MethodGet, "/", nil), http.StatusOK, "admin/broken", TemplateData{Data: 42})
	require.Error(t, err)
	assert.Zero(t, w.Body.Len())
}

func TestRender_FlashIsShownOnce(t *testing.T) {
	sm := scs.New()
	r := newTestRenderer(t, sm)

	var first, second string
	h := sm.LoadAndSave(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		r.SetFlash(req, "Ad created", FlashSuccess)

		rec := httptest.NewRecorder()
		require.NoError(t, r.Render(rec, req, http.StatusOK, "admin/hello", TemplateData{Data: "x"}))
		first = rec.Body.String()

		rec = httptest.NewRecorder()
		require.NoError(t, r.Render(rec, req, http.StatusOK, "admin/hello", TemplateData{Data: "x"}))
		second = rec.Body.String()
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Contains(t, first, `<p class="success">Ad created</p>`)
	assert.NotContains(t, second, "Ad created")
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		in   string
		n    int
		want string
	}{
		{"short", 10, "short"},
		{"exactly", 7, "exactly"},
		{"Grüße aus Köln", 5, "Grüße..."},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, truncate(tt.in, tt.n))
	}
}

func TestTemplateFuncs(t *testing.T) {
	funcs := templateFuncs()

	formatDateTime := funcs["formatDateTime"].(func(time.Time) string)
	assert.Equal(t, "never", formatDateTime(time.Time{}))
	assert.Equal(t, "Mar 1, 2026 14:05", formatDateTime(time.Date(2026, 3, 1, 14, 5, 0, 0, time.UTC)))

	percent := funcs["percent"].(func(float64) string)
	assert.Equal(t, "66.7%", percent(200.0/3))

	seq := funcs["seq"].(func(int, int) []int)
	assert.Equal(t, []int{2, 3, 4}, seq(2, 4))

	countryName := funcs["countryName"].(func(string) string)
	assert.True(t, strings.HasPrefix(countryName("DE"), "German"))
}
