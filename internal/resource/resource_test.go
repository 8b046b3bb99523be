// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package resource

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/olegiv/feedadmin/internal/backend"
	"github.com/olegiv/feedadmin/internal/placement"
)

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	img.Set(0, 0, color.RGBA{R: 255, A: 255})
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

// mp4Bytes is the smallest header net/http sniffs as video/mp4.
func mp4Bytes() []byte {
	b := []byte{0, 0, 0, 0x18}
	b = append(b, "ftypmp42"...)
	b = append(b, 0, 0, 0, 0)
	b = append(b, "mp42isom"...)
	return b
}

// multipartFiles builds parsed file headers the way net/http hands them
// to handlers.
func multipartFiles(t *testing.T, files map[string][]byte) map[string][]*multipart.FileHeader {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for field, data := range files {
		part, err := w.CreateFormFile(field, field+".bin")
		require.NoError(t, err)
		_, err = part.Write(data)
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, "/", &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	require.NoError(t, req.ParseMultipartForm(10<<20))
	return req.MultipartForm.File
}

func mustGet(t *testing.T, name string) *Resource {
	t.Helper()
	res, ok := Default().Get(name)
	require.True(t, ok, "resource %s", name)
	return res
}

func TestDefaultRegistry(t *testing.T) {
	reg := Default()
	names := make([]string, 0)
	for _, res := range reg.List() {
		names = append(names, res.Name)
		assert.NotEmpty(t, res.Title)
		assert.NotEmpty(t, res.Endpoint)
		assert.Contains(t, []string{http.MethodPut, http.MethodPatch}, res.Method())
	}
	assert.Equal(t, []string{
		"ads", "small-ads", "geo-ads", "movies", "news", "news-hub", "feeds", "shorts",
		"tweets", "banner-configs", "cartoons", "spotlights", "videos", "video-sections",
	}, names)

	var withRule []string
	for _, res := range reg.WithPlacement() {
		withRule = append(withRule, res.Name)
	}
	assert.Equal(t, []string{"small-ads", "banner-configs", "cartoons", "spotlights", "video-sections"}, withRule)
}

func TestRegistry_RejectsDuplicatesAndBadMethods(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.Register(&Resource{Name: "x"}))
	assert.Error(t, reg.Register(&Resource{Name: "x"}))
	assert.Error(t, reg.Register(&Resource{Name: ""}))
	assert.Error(t, reg.Register(&Resource{Name: "y", UpdateMethod: http.MethodPost}))

	res, ok := reg.Get("x")
	require.True(t, ok)
	assert.Equal(t, "x", res.Endpoint, "endpoint defaults to name")
	assert.Equal(t, "title", res.TitleKey)
}

func TestUploadFieldNamesAreWireNames(t *testing.T) {
	movies := mustGet(t, "movies")
	var names []string
	for _, f := range movies.FileFields() {
		names = append(names, f.Name)
	}
	assert.Equal(t, []string{"poster", "background"}, names)
	assert.True(t, mustGet(t, "videos").HasFiles())
	assert.False(t, mustGet(t, "feeds").HasFiles())
}

func TestDecode_RequiredAndFormats(t *testing.T) {
	feeds := mustGet(t, "feeds")

	tests := []struct {
		name      string
		form      url.Values
		wantField string
		wantMsg   string
	}{
		{"missing name", url.Values{"url": {"https://example.com/rss"}}, "name", "Name is required"},
		{"bad url", url.Values{"name": {"World"}, "url": {"example.com"}}, "url", "Feed URL must be a valid http(s) URL"},
		{"bad language", url.Values{"name": {"World"}, "url": {"https://e.com"}, "language": {"not a tag"}}, "language", "BCP 47"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sub, errs := feeds.Decode(tt.form, nil, DecodeOptions{Creating: true})
			assert.Nil(t, sub)
			require.True(t, errs.Has(tt.wantField), "errors: %v", errs)
			assert.Contains(t, errs[tt.wantField], tt.wantMsg)
		})
	}
}

func TestDecode_ValidFeed(t *testing.T) {
	sub, errs := mustGet(t, "feeds").Decode(url.Values{
		"name":     {"  World  "},
		"url":      {"https://example.com/rss"},
		"language": {"pt-BR"},
		"isActive": {"on"},
	}, nil, DecodeOptions{Creating: true})
	require.Empty(t, errs)

	assert.Equal(t, "World", sub.Body.Fields["name"])
	assert.Equal(t, "pt-BR", sub.Body.Fields["language"])
	assert.Equal(t, true, sub.Body.Fields["isActive"])
	assert.Equal(t, "", sub.Body.Fields["category"])
	assert.False(t, sub.Body.IsMultipart())
	assert.False(t, sub.HasRule)
}

func TestDecode_NumbersListsCountriesDates(t *testing.T) {
	geo := mustGet(t, "geo-ads")
	files := multipartFiles(t, map[string][]byte{"media": pngBytes(t, 4, 3)})

	sub, errs := geo.Decode(url.Values{
		"title":     {"Summer"},
		"countries": {"de, at ch;DE"},
		"priority":  {"5"},
	}, files, DecodeOptions{Creating: true})
	require.Empty(t, errs)
	assert.Equal(t, []string{"DE", "AT", "CH"}, sub.Body.Fields["countries"])
	assert.Equal(t, int64(5), sub.Body.Fields["priority"])
	require.Len(t, sub.Body.Files, 1)
	assert.Equal(t, "media", sub.Body.Files[0].Field)
	assert.Equal(t, "image/png", sub.Body.Files[0].ContentType)

	_, errs = geo.Decode(url.Values{
		"title":     {"Summer"},
		"countries": {"DE, XX"},
		"priority":  {"5000"},
	}, files, DecodeOptions{Creating: true})
	assert.Contains(t, errs["countries"], `"XX"`)
	assert.Equal(t, "Priority must be at most 1000", errs["priority"])

	ads := mustGet(t, "ads")
	sub, errs = ads.Decode(url.Values{
		"title":    {"Launch"},
		"startsAt": {"2026-03-01T09:30"},
		"endsAt":   {"tomorrow"},
	}, files, DecodeOptions{Creating: true})
	assert.Nil(t, sub)
	assert.Equal(t, "Ends at must be a date and time", errs["endsAt"])

	sub, errs = ads.Decode(url.Values{
		"title":    {"Launch"},
		"startsAt": {"2026-03-01T09:30"},
	}, files, DecodeOptions{Creating: true})
	require.Empty(t, errs)
	assert.Equal(t, "2026-03-01T09:30:00Z", sub.Body.Fields["startsAt"])
	_, hasEnd := sub.Body.Fields["endsAt"]
	assert.False(t, hasEnd)
}

func TestDecode_SelectAndLength(t *testing.T) {
	movies := mustGet(t, "movies")
	_, errs := movies.Decode(url.Values{
		"title": {strings.Repeat("x", 201)},
		"genre": {"western"},
		"year":  {"1700"},
	}, nil, DecodeOptions{})
	assert.Equal(t, "Title must be at most 200 characters", errs["title"])
	assert.Contains(t, errs["genre"], "must be one of: action, comedy")
	assert.Equal(t, "Year must be at least 1888", errs["year"])
	assert.False(t, errs.Has("poster"), "uploads are optional on update")
}

func TestDecode_SlugDerivedFromTitle(t *testing.T) {
	movies := mustGet(t, "movies")
	sub, errs := movies.Decode(url.Values{"title": {"Das Boot: Director's Cut"}}, nil, DecodeOptions{})
	require.Empty(t, errs)
	assert.Equal(t, "das-boot-director-s-cut", sub.Body.Fields["slug"])

	_, errs = movies.Decode(url.Values{"title": {"X"}, "slug": {"Bad Slug"}}, nil, DecodeOptions{})
	assert.Contains(t, errs["slug"], "lowercase letters")
}

func TestDecode_RequiredUploadOnlyOnCreate(t *testing.T) {
	movies := mustGet(t, "movies")
	_, errs := movies.Decode(url.Values{"title": {"Heat"}}, nil, DecodeOptions{Creating: true})
	assert.Equal(t, "Poster is required", errs["poster"])

	files := multipartFiles(t, map[string][]byte{
		"poster":     pngBytes(t, 2, 3),
		"background": mp4Bytes(),
	})
	_, errs = movies.Decode(url.Values{"title": {"Heat"}}, files, DecodeOptions{Creating: true})
	assert.False(t, errs.Has("poster"))
	assert.Equal(t, "Background: file type is not accepted here", errs["background"])
}

func TestDecode_UploadLimit(t *testing.T) {
	files := multipartFiles(t, map[string][]byte{"media": pngBytes(t, 64, 64)})
	_, errs := mustGet(t, "small-ads").Decode(url.Values{
		"title":      {"Tiny"},
		RuleAfterKey: {"3"},
	}, files, DecodeOptions{Creating: true, MaxUploadBytes: 10})
	assert.Equal(t, "Image: file is too large", errs["media"])
}

func TestDecode_PlacementWireShapes(t *testing.T) {
	files := multipartFiles(t, map[string][]byte{"media": pngBytes(t, 1, 1)})

	t.Run("nested bounded", func(t *testing.T) {
		sub, errs := mustGet(t, "banner-configs").Decode(url.Values{
			"title":      {"Top"},
			"screen":     {"home"},
			RuleAfterKey: {"10"},
			RuleEveryKey: {"5"},
			RuleKindKey:  {"bounded"},
			RuleCountKey: {"3"},
		}, files, DecodeOptions{Creating: true})
		require.Empty(t, errs)
		assert.Equal(t, map[string]any{"afterNth": 10, "repeatEvery": 5, "repeatCount": 3}, sub.Body.Fields["placement"])
		assert.Equal(t, []int{10, 15, 20, 25}, placement.Slots(sub.Rule, placement.Bound{}))
	})

	t.Run("flat unbounded", func(t *testing.T) {
		sub, errs := mustGet(t, "small-ads").Decode(url.Values{
			"title":      {"Tiny"},
			RuleAfterKey: {"4"},
			RuleEveryKey: {"6"},
			RuleKindKey:  {"unbounded"},
		}, files, DecodeOptions{Creating: true})
		require.Empty(t, errs)
		assert.Equal(t, 4, sub.Body.Fields["placementIndex"])
		assert.Equal(t, 6, sub.Body.Fields["repeatEvery"])
		assert.Equal(t, 0, sub.Body.Fields["repeatCount"])
	})

	t.Run("unbounded rejected where zero means once", func(t *testing.T) {
		_, errs := mustGet(t, "spotlights").Decode(url.Values{
			"title":      {"Hero"},
			RuleAfterKey: {"2"},
			RuleEveryKey: {"3"},
			RuleKindKey:  {"unbounded"},
		}, nil, DecodeOptions{Creating: true})
		assert.Contains(t, errs[RuleField], "cannot repeat without a limit")
	})

	t.Run("min position", func(t *testing.T) {
		_, errs := mustGet(t, "video-sections").Decode(url.Values{
			"title":      {"Trending"},
			"layout":     {"grid"},
			RuleAfterKey: {"0"},
		}, nil, DecodeOptions{Creating: true})
		assert.Equal(t, "First position must be at least 1", errs[RuleField])

		sub, errs := mustGet(t, "spotlights").Decode(url.Values{
			"title":      {"Hero"},
			RuleAfterKey: {"0"},
		}, nil, DecodeOptions{Creating: true})
		require.Empty(t, errs)
		assert.Equal(t, map[string]any{"afterNth": 0, "repeatEvery": 0, "repeatCount": 0}, sub.Body.Fields["anchor"])
	})

	t.Run("invalid rules", func(t *testing.T) {
		cartoons := mustGet(t, "cartoons")
		tests := []struct {
			form url.Values
			want string
		}{
			{url.Values{RuleAfterKey: {"x"}}, "Placement values must be whole numbers"},
			{url.Values{RuleAfterKey: {"2"}, RuleKindKey: {"sometimes"}}, "Unknown repeat mode"},
			{url.Values{RuleAfterKey: {"2"}, RuleEveryKey: {"3"}, RuleKindKey: {"bounded"}}, "A bounded repeat needs a count of at least 1"},
			{url.Values{RuleAfterKey: {"2"}, RuleKindKey: {"unbounded"}}, "Repeating needs a repeat interval greater than 0"},
			{url.Values{RuleAfterKey: {"2"}, RuleEveryKey: {"-1"}}, "Repeat interval must not be negative"},
		}
		for _, tt := range tests {
			tt.form.Set("title", "Kids")
			_, errs := cartoons.Decode(tt.form, nil, DecodeOptions{})
			assert.Equal(t, tt.want, errs[RuleField], "form %v", tt.form)
		}
	})
}

func TestItem_RuleAndFormValues(t *testing.T) {
	small := mustGet(t, "small-ads")
	item := small.NewItem(backend.Record{
		"_id":            "s1",
		"title":          "Tiny",
		"placementIndex": float64(3),
		"repeatEvery":    float64(4),
		"repeatCount":    float64(0),
		"isActive":       true,
	})
	rule, ok := item.Rule()
	require.True(t, ok)
	assert.Equal(t, placement.Unbounded, rule.Repeat.Kind)

	v := item.FormValues()
	assert.Equal(t, "3", v.Get(RuleAfterKey))
	assert.Equal(t, "unbounded", v.Get(RuleKindKey))
	assert.Equal(t, "true", v.Get("isActive"))

	banner := mustGet(t, "banner-configs").NewItem(backend.Record{
		"id":        "b1",
		"title":     "Top",
		"placement": map[string]any{"afterNth": float64(5), "repeatEvery": float64(2), "repeatCount": float64(0)},
		"startsAt":  "2026-01-02T03:04:00Z",
	})
	rule, ok = banner.Rule()
	require.True(t, ok)
	assert.Equal(t, placement.Once, rule.Repeat.Kind, "banner configs read repeatCount 0 as no repeats")
	assert.Equal(t, "2026-01-02T03:04", banner.FormValues().Get("startsAt"))

	_, ok = mustGet(t, "cartoons").NewItem(backend.Record{"id": "c1"}).Rule()
	assert.False(t, ok)
	_, ok = mustGet(t, "feeds").NewItem(backend.Record{"id": "f1"}).Rule()
	assert.False(t, ok)
}

func TestItem_RoundTripThroughForm(t *testing.T) {
	video := mustGet(t, "video-sections")
	rec := backend.Record{
		"id":        "v1",
		"title":     "Trending",
		"layout":    "grid",
		"videoIds":  []any{"a", "b"},
		"countries": []any{"DE", "FR"},
		"injection": map[string]any{"afterNth": float64(2), "repeatEvery": float64(5), "repeatCount": float64(3)},
	}
	form := video.NewItem(rec).FormValues()
	sub, errs := video.Decode(form, nil, DecodeOptions{})
	require.Empty(t, errs)
	assert.Equal(t, []string{"a", "b"}, sub.Body.Fields["videoIds"])
	assert.Equal(t, []string{"DE", "FR"}, sub.Body.Fields["countries"])
	assert.Equal(t, map[string]any{"afterNth": 2, "repeatEvery": 5, "repeatCount": 3}, sub.Body.Fields["injection"])
}

func TestItem_SingleSlotSavesUnchanged(t *testing.T) {
	banners := mustGet(t, "banner-configs")
	rec := backend.Record{
		"id":        "b7",
		"title":     "Top",
		"screen":    "home",
		"placement": map[string]any{"afterNth": float64(3), "repeatEvery": float64(5), "repeatCount": float64(0)},
	}
	sub, errs := banners.Decode(banners.NewItem(rec).FormValues(), nil, DecodeOptions{})
	require.Empty(t, errs)
	assert.Equal(t, map[string]any{"afterNth": 3, "repeatEvery": 5, "repeatCount": 0}, sub.Body.Fields["placement"])
}

func TestItem_MatchesAndTitle(t *testing.T) {
	feeds := mustGet(t, "feeds")
	item := feeds.NewItem(backend.Record{"id": "f1", "name": "World News", "url": "https://example.com/world"})
	assert.Equal(t, "World News", item.Title())
	assert.True(t, item.Matches("world"))
	assert.True(t, item.Matches("EXAMPLE.com"))
	assert.False(t, item.Matches("sports"))
	assert.True(t, item.Matches(""))

	untitled := feeds.NewItem(backend.Record{"id": "f2"})
	assert.Equal(t, "f2", untitled.Title())
}

func TestInspect(t *testing.T) {
	up, err := Inspect(pngBytes(t, 7, 5), AcceptImage)
	require.NoError(t, err)
	assert.Equal(t, "image/png", up.ContentType)
	assert.Equal(t, 7, up.Width)
	assert.Equal(t, 5, up.Height)

	up, err = Inspect(mp4Bytes(), AcceptMedia)
	require.NoError(t, err)
	assert.Equal(t, AcceptVideo, up.Family)

	_, err = Inspect(mp4Bytes(), AcceptImage)
	assert.ErrorIs(t, err, ErrUploadUnsupported)

	_, err = Inspect([]byte("<svg xmlns='http://www.w3.org/2000/svg'></svg>"), AcceptImage)
	assert.ErrorIs(t, err, ErrUploadUnsupported)

	truncated := pngBytes(t, 3, 3)[:20]
	_, err = Inspect(truncated, AcceptImage)
	assert.ErrorIs(t, err, ErrUploadCorrupt)

	fakeWebP := append([]byte("RIFF\x00\x00\x00\x00WEBPVP8 "), make([]byte, 8)...)
	_, err = Inspect(fakeWebP, AcceptImage)
	assert.ErrorIs(t, err, ErrUploadCorrupt)

	_, err = Inspect(nil, AcceptImage)
	assert.ErrorIs(t, err, ErrUploadEmpty)
}

func TestRenderMarkdown(t *testing.T) {
	html, err := RenderMarkdown("# Breaking\n\n**bold** <script>alert(1)</script>\n\n| a | b |\n|---|---|\n| 1 | 2 |")
	require.NoError(t, err)
	s := string(html)
	assert.Contains(t, s, "<h1")
	assert.Contains(t, s, "<strong>bold</strong>")
	assert.Contains(t, s, "<table>")
	assert.NotContains(t, s, "<script>")
}

func TestSplitList(t *testing.T) {
	assert.Equal(t, []string{"a", "b", "c"}, SplitList("a, b\nc;a\r\n"))
	assert.Empty(t, SplitList("  , ;"))
}
