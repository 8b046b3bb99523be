package handler

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alexedwards/scs/v2"
	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"
	"github.com/stretchr/testify/require"

	"github.com/olegiv/feedadmin/internal/backend"
	"github.com/olegiv/feedadmin/internal/cache"
	"github.com/olegiv/feedadmin/internal/geoip"
	"github.com/olegiv/feedadmin/internal/placement"
	"github.com/olegiv/feedadmin/internal/render"
	"github.com/olegiv/feedadmin/internal/resource"
	"github.com/olegiv/feedadmin/internal/scheduler"
	"github.com/olegiv/feedadmin/internal/service"
	"github.com/olegiv/feedadmin/internal/testutil"
	"github.com/olegiv/feedadmin/web"
)

// fakeBackend is an in-memory content backend.
type fakeBackend struct {
	mu          sync.Mutex
	collections map[string]map[string]backend.Record
	nextID      int
	listCalls   map[string]int
	lastMethod  string
	lastType    string
	failLists   bool
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		collections: make(map[string]map[string]backend.Record),
		listCalls:   make(map[string]int),
	}
}

func (f *fakeBackend) seed(collection string, recs ...backend.Record) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.collections[collection] == nil {
		f.collections[collection] = make(map[string]backend.Record)
	}
	for _, rec := range recs {
		f.nextID++
		id := strconv.Itoa(f.nextID)
		rec["id"] = float64(f.nextID)
		f.collections[collection][id] = rec
	}
}

func (f *fakeBackend) record(collection, id string) (backend.Record, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec, ok := f.collections[collection][id]
	return rec, ok
}

func (f *fakeBackend) lists(collection string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.listCalls[collection]
}

func (f *fakeBackend) setFailLists(fail bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failLists = fail
}

func (f *fakeBackend) handler() http.Handler {
	r := chi.NewRouter()
	r.Get("/{collection}", f.list)
	r.Post("/{collection}", f.write)
	r.Get("/{collection}/{id}", f.get)
	r.Put("/{collection}/{id}", f.write)
	r.Patch("/{collection}/{id}", f.write)
	r.Delete("/{collection}/{id}", f.remove)
	return r
}

func (f *fakeBackend) list(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	name := chi.URLParam(r, "collection")
	f.listCalls[name]++
	if f.failLists {
		http.Error(w, "database offline", http.StatusInternalServerError)
		return
	}

	ids := make([]int, 0, len(f.collections[name]))
	for id := range f.collections[name] {
		n, _ := strconv.Atoi(id)
		ids = append(ids, n)
	}
	sortInts(ids)
	out := make([]backend.Record, 0, len(ids))
	for _, id := range ids {
		out = append(out, f.collections[name][strconv.Itoa(id)])
	}
	_ = json.NewEncoder(w).Encode(map[string]any{"items": out})
}

func (f *fakeBackend) get(w http.ResponseWriter, r *http.Request) {
	rec, ok := f.record(chi.URLParam(r, "collection"), chi.URLParam(r, "id"))
	if !ok {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":"not found"}`))
		return
	}
	_ = json.NewEncoder(w).Encode(rec)
}

func (f *fakeBackend) write(w http.ResponseWriter, r *http.Request) {
	rec := backend.Record{}
	contentType := r.Header.Get("Content-Type")
	if strings.HasPrefix(contentType, "multipart/") {
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		for k, v := range r.MultipartForm.Value {
			rec[k] = v[0]
		}
		for k, files := range r.MultipartForm.File {
			rec[k+"Url"] = "https://cdn.example.com/" + files[0].Filename
		}
	} else if err := json.NewDecoder(r.Body).Decode(&rec); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	switch rec.String("title") {
	case "taken":
		w.WriteHeader(http.StatusConflict)
		_, _ = w.Write([]byte(`{"error":"title already taken"}`))
		return
	case "boom":
		http.Error(w, "internal", http.StatusInternalServerError)
		return
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastMethod, f.lastType = r.Method, contentType

	name := chi.URLParam(r, "collection")
	if f.collections[name] == nil {
		f.collections[name] = make(map[string]backend.Record)
	}
	id := chi.URLParam(r, "id")
	if id == "" {
		f.nextID++
		id = strconv.Itoa(f.nextID)
	} else if _, ok := f.collections[name][id]; !ok {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	n, _ := strconv.Atoi(id)
	rec["id"] = float64(n)
	f.collections[name][id] = rec
	_ = json.NewEncoder(w).Encode(rec)
}

func (f *fakeBackend) remove(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	name, id := chi.URLParam(r, "collection"), chi.URLParam(r, "id")
	if _, ok := f.collections[name][id]; !ok {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":"no such item"}`))
		return
	}
	delete(f.collections[name], id)
	w.WriteHeader(http.StatusNoContent)
}

func sortInts(a []int) {
	for i := 1; i < len(a); i++ {
		for j := i; j > 0 && a[j] < a[j-1]; j-- {
			a[j], a[j-1] = a[j-1], a[j]
		}
	}
}

// fakeJobs stands in for the scheduler.
type fakeJobs struct {
	triggered []string
	failWith  error
	probe     scheduler.ProbeResult
}

func (f *fakeJobs) List() []scheduler.JobInfo {
	return []scheduler.JobInfo{{Name: scheduler.JobPurgeEvents, Description: "Purge old activity", Schedule: "30 3 * * *"}}
}

func (f *fakeJobs) TriggerNow(name string) error {
	if name != scheduler.JobPurgeEvents {
		return scheduler.ErrJobNotFound
	}
	if f.failWith != nil {
		return f.failWith
	}
	f.triggered = append(f.triggered, name)
	return nil
}

func (f *fakeJobs) Probe() scheduler.ProbeResult { return f.probe }

func testRegistry() *resource.Registry {
	title := resource.Field{Name: "title", Label: "Title", Kind: resource.KindText, Required: true}
	active := resource.Field{Name: "isActive", Label: "Active", Kind: resource.KindBool}
	return resource.NewRegistry().MustRegister(
		&resource.Resource{
			Name: "banners", Title: "Banners", Singular: "Banner",
			Fields: []resource.Field{
				title,
				{Name: "link", Label: "Link", Kind: resource.KindURL},
				active,
			},
			Placement: &resource.PlacementSpec{
				Key: "placement", AfterKey: "afterNth", EveryKey: "repeatEvery", CountKey: "repeatCount",
				ZeroCount: placement.ZeroMeansOnce, MinAfter: 1,
			},
			ListColumns: []string{"title", "isActive"},
		},
		&resource.Resource{
			Name: "posters", Title: "Posters", Singular: "Poster", UpdateMethod: http.MethodPatch,
			Fields: []resource.Field{
				title,
				{Name: "poster", Label: "Poster", Kind: resource.KindFile, Required: true, Accept: resource.AcceptImage},
			},
			ListColumns: []string{"title"},
		},
		&resource.Resource{
			Name: "geo-ads", Title: "Geo ads", Singular: "Geo ad",
			Fields: []resource.Field{
				title,
				{Name: "countries", Label: "Countries", Kind: resource.KindCountries, Required: true},
				{Name: "priority", Label: "Priority", Kind: resource.KindNumber},
				active,
			},
			ListColumns: []string{"title", "countries"},
		},
	)
}

type testEnv struct {
	t        *testing.T
	router   http.Handler
	backend  *fakeBackend
	server   *httptest.Server
	activity *service.ActivityService
	lists    *cache.ListCache
	jobs     *fakeJobs
	cookies  []*http.Cookie
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	fb := newFakeBackend()
	srv := httptest.NewServer(fb.handler())
	t.Cleanup(srv.Close)

	client, err := backend.New(backend.Options{BaseURL: srv.URL, Timeout: 2 * time.Second})
	require.NoError(t, err)

	db := testutil.TestDB(t)

	mem := cache.NewMemoryCache(cache.MemoryCacheOptions{DefaultTTL: time.Minute})
	t.Cleanup(func() { _ = mem.Close() })
	lists := cache.NewListCache(mem, client, time.Minute, testutil.TestLoggerSilent())

	registry := testRegistry()
	sm := scs.New()
	renderer := newTestRenderer(t, sm, registry)

	activity := service.NewActivityService(db)
	jobs := &fakeJobs{}
	cacheHandler := NewCacheHandler(renderer, lists, cache.Info{Backend: "memory"}, activity)
	admin := &Admin{
		Dashboard: NewDashboardHandler(renderer, registry, client, cacheHandler, activity, jobs),
		Resources: NewResourceHandler(registry, client, lists, activity, renderer, 1<<20),
		Placement: NewPlacementHandler(renderer, registry),
		Geo:       NewGeoHandler(renderer, registry, lists, geoip.NewLookup()),
		Events:    NewEventsHandler(activity, renderer, registry),
		Cache:     cacheHandler,
	}
	health := NewHealthHandler(db, client, jobs, "test")

	r := chi.NewRouter()
	r.Use(sm.LoadAndSave)
	admin.Mount(r)
	health.MountHealth(r)

	return &testEnv{
		t:        t,
		router:   r,
		backend:  fb,
		server:   srv,
		activity: activity,
		lists:    lists,
		jobs:     jobs,
	}
}

// newTestRenderer parses the embedded admin templates.
func newTestRenderer(t *testing.T, sm *scs.SessionManager, registry *resource.Registry) *render.Renderer {
	t.Helper()
	var nav []render.NavItem
	if registry != nil {
		for _, res := range registry.List() {
			nav = append(nav, render.NavItem{Name: res.Name, Title: res.Title, URL: "/admin/" + res.Name})
		}
	}
	renderer, err := render.New(render.Config{TemplatesFS: web.Templates(), SessionManager: sm, Nav: nav, Version: "test"})
	require.NoError(t, err)
	return renderer
}

// do serves a request and keeps the session cookie for the next one.
func (e *testEnv) do(req *http.Request) *httptest.ResponseRecorder {
	e.t.Helper()
	for _, c := range e.cookies {
		req.AddCookie(c)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	if cookies := w.Result().Cookies(); len(cookies) > 0 {
		e.cookies = cookies
	}
	return w
}

func (e *testEnv) get(target string) *httptest.ResponseRecorder {
	return e.do(httptest.NewRequest(http.MethodGet, target, nil))
}

func (e *testEnv) postForm(target string, form url.Values) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, target, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return e.do(req)
}

func (e *testEnv) postMultipart(target string, form url.Values, field, filename string, data []byte) *httptest.ResponseRecorder {
	e.t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, vs := range form {
		for _, v := range vs {
			require.NoError(e.t, mw.WriteField(k, v))
		}
	}
	if field != "" {
		part, err := mw.CreateFormFile(field, filename)
		require.NoError(e.t, err)
		_, err = io.Copy(part, bytes.NewReader(data))
		require.NoError(e.t, err)
	}
	require.NoError(e.t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, target, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return e.do(req)
}

func pngBytes(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 4, 3))
	img.Set(1, 1, color.RGBA{R: 255, A: 255})
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}
