// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package resource

import (
	"fmt"
	"net/http"
	"sync"

	"github.com/olegiv/feedadmin/internal/placement"
)

// Registry is an ordered catalog of resources.
type Registry struct {
	mu        sync.RWMutex
	resources []*Resource
	byName    map[string]*Resource
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{byName: make(map[string]*Resource)}
}

// Register adds a resource. Names must be unique and non-empty.
func (r *Registry) Register(res *Resource) error {
	if res == nil || res.Name == "" {
		return fmt.Errorf("resource: empty name")
	}
	if res.Endpoint == "" {
		res.Endpoint = res.Name
	}
	if res.Singular == "" {
		res.Singular = res.Title
	}
	if res.TitleKey == "" {
		res.TitleKey = "title"
	}
	if m := res.Method(); m != http.MethodPut && m != http.MethodPatch {
		return fmt.Errorf("resource %s: unsupported update method %q", res.Name, m)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byName[res.Name]; exists {
		return fmt.Errorf("resource %s already registered", res.Name)
	}
	r.resources = append(r.resources, res)
	r.byName[res.Name] = res
	return nil
}

// MustRegister is Register that panics on error, for static catalogs.
func (r *Registry) MustRegister(resources ...*Resource) *Registry {
	for _, res := range resources {
		if err := r.Register(res); err != nil {
			panic(err)
		}
	}
	return r
}

// Get returns the resource with the given name.
func (r *Registry) Get(name string) (*Resource, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	res, ok := r.byName[name]
	return res, ok
}

// List returns all resources in registration order.
func (r *Registry) List() []*Resource {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Resource, len(r.resources))
	copy(out, r.resources)
	return out
}

// WithPlacement returns the resources that carry a placement rule.
func (r *Registry) WithPlacement() []*Resource {
	var out []*Resource
	for _, res := range r.List() {
		if res.Placement != nil {
			out = append(out, res)
		}
	}
	return out
}

// Shared field definitions.
var (
	fieldTitle    = Field{Name: "title", Label: "Title", Kind: KindText, Required: true, Rules: "max=200"}
	fieldActive   = Field{Name: "isActive", Label: "Active", Kind: KindBool}
	fieldPriority = Field{Name: "priority", Label: "Priority", Kind: KindNumber, Rules: "gte=0,lte=1000",
		Help: "Higher priority wins when several items target the same slot."}
	fieldLink     = Field{Name: "link", Label: "Target link", Kind: KindURL}
	fieldStartsAt = Field{Name: "startsAt", Label: "Starts at", Kind: KindDateTime}
	fieldEndsAt   = Field{Name: "endsAt", Label: "Ends at", Kind: KindDateTime}
)

// Default returns the catalog of collections served by the content backend.
func Default() *Registry {
	return NewRegistry().MustRegister(
		&Resource{
			Name: "ads", Title: "Ads", Singular: "Ad",
			Fields: []Field{
				fieldTitle,
				{Name: "media", Label: "Creative", Kind: KindFile, Required: true, Accept: AcceptMedia},
				fieldLink,
				{Name: "advertiser", Label: "Advertiser", Kind: KindText},
				fieldPriority,
				fieldStartsAt,
				fieldEndsAt,
				fieldActive,
			},
			ListColumns: []string{"title", "advertiser", "priority", "isActive"},
		},
		&Resource{
			Name: "small-ads", Title: "Small ads", Singular: "Small ad",
			Fields: []Field{
				fieldTitle,
				{Name: "media", Label: "Image", Kind: KindFile, Required: true, Accept: AcceptImage},
				fieldLink,
				fieldActive,
			},
			Placement:   flat(placement.ZeroMeansUnbounded),
			ListColumns: []string{"title", "placementIndex", "repeatEvery", "repeatCount", "isActive"},
		},
		&Resource{
			Name: "geo-ads", Title: "Geo ads", Singular: "Geo ad",
			Fields: []Field{
				fieldTitle,
				{Name: "media", Label: "Creative", Kind: KindFile, Required: true, Accept: AcceptMedia},
				fieldLink,
				{Name: "countries", Label: "Countries", Kind: KindCountries, Required: true,
					Help: "ISO 3166 alpha-2 codes separated by commas, e.g. DE, AT, CH."},
				fieldPriority,
				fieldActive,
			},
			ListColumns: []string{"title", "countries", "priority", "isActive"},
		},
		&Resource{
			Name: "movies", Title: "Movies", Singular: "Movie",
			Fields: []Field{
				fieldTitle,
				{Name: "slug", Label: "Slug", Kind: KindSlug, From: "title"},
				{Name: "description", Label: "Description", Kind: KindTextarea},
				{Name: "genre", Label: "Genre", Kind: KindSelect,
					Options: []string{"action", "comedy", "documentary", "drama", "family", "horror", "thriller"}},
				{Name: "year", Label: "Year", Kind: KindNumber, Rules: "gte=1888,lte=2100"},
				{Name: "trailerUrl", Label: "Trailer URL", Kind: KindURL},
				{Name: "poster", Label: "Poster", Kind: KindFile, Required: true, Accept: AcceptImage},
				{Name: "background", Label: "Background", Kind: KindFile, Accept: AcceptImage},
				fieldActive,
			},
			ListColumns: []string{"title", "genre", "year", "isActive"},
		},
		&Resource{
			Name: "news", Title: "News", Singular: "News article",
			Fields: []Field{
				fieldTitle,
				{Name: "slug", Label: "Slug", Kind: KindSlug, From: "title"},
				{Name: "summary", Label: "Summary", Kind: KindTextarea, Rules: "max=500"},
				{Name: "body", Label: "Body", Kind: KindMarkdown, Required: true},
				{Name: "language", Label: "Language", Kind: KindLanguage, Help: "BCP 47 tag, e.g. en or pt-BR."},
				{Name: "source", Label: "Source URL", Kind: KindURL},
				{Name: "media", Label: "Cover image", Kind: KindFile, Accept: AcceptImage},
				{Name: "publishedAt", Label: "Published at", Kind: KindDateTime},
				fieldActive,
			},
			ListColumns: []string{"title", "language", "publishedAt", "isActive"},
		},
		&Resource{
			Name: "news-hub", Title: "News hub", Singular: "News hub entry",
			UpdateMethod: http.MethodPatch,
			Fields: []Field{
				fieldTitle,
				{Name: "category", Label: "Category", Kind: KindSelect,
					Options: []string{"world", "business", "sports", "tech", "entertainment"}},
				{Name: "articleIds", Label: "Article IDs", Kind: KindList, Help: "One news ID per line."},
				{Name: "language", Label: "Language", Kind: KindLanguage},
				fieldPriority,
				fieldActive,
			},
			ListColumns: []string{"title", "category", "language", "isActive"},
		},
		&Resource{
			Name: "feeds", Title: "Feeds", Singular: "Feed",
			Fields: []Field{
				{Name: "name", Label: "Name", Kind: KindText, Required: true},
				{Name: "url", Label: "Feed URL", Kind: KindURL, Required: true},
				{Name: "category", Label: "Category", Kind: KindText},
				{Name: "language", Label: "Language", Kind: KindLanguage},
				fieldActive,
			},
			ListColumns: []string{"name", "url", "category", "isActive"},
			TitleKey:    "name",
		},
		&Resource{
			Name: "shorts", Title: "Shorts", Singular: "Short",
			Fields: []Field{
				fieldTitle,
				{Name: "media", Label: "Video", Kind: KindFile, Required: true, Accept: AcceptVideo},
				{Name: "poster", Label: "Poster", Kind: KindFile, Accept: AcceptImage},
				{Name: "tags", Label: "Tags", Kind: KindList},
				fieldActive,
			},
			ListColumns: []string{"title", "tags", "isActive"},
		},
		&Resource{
			Name: "tweets", Title: "Tweets", Singular: "Tweet",
			Fields: []Field{
				{Name: "author", Label: "Author handle", Kind: KindText, Required: true},
				{Name: "text", Label: "Text", Kind: KindTextarea, Required: true, Rules: "max=280"},
				{Name: "url", Label: "Tweet URL", Kind: KindURL},
				{Name: "media", Label: "Attached image", Kind: KindFile, Accept: AcceptImage},
				fieldActive,
			},
			ListColumns: []string{"author", "text", "isActive"},
			TitleKey:    "text",
		},
		&Resource{
			Name: "banner-configs", Title: "Banner configs", Singular: "Banner config",
			Fields: []Field{
				fieldTitle,
				{Name: "media", Label: "Banner", Kind: KindFile, Required: true, Accept: AcceptImage},
				fieldLink,
				{Name: "screen", Label: "Screen", Kind: KindSelect, Required: true,
					Options: []string{"home", "news", "movies", "videos"}},
				fieldPriority,
				fieldStartsAt,
				fieldEndsAt,
				fieldActive,
			},
			Placement:   nested("placement", placement.ZeroMeansOnce, 1),
			ListColumns: []string{"title", "screen", "priority", "isActive"},
		},
		&Resource{
			Name: "cartoons", Title: "Cartoon sections", Singular: "Cartoon section",
			Fields: []Field{
				fieldTitle,
				{Name: "items", Label: "Cartoon IDs", Kind: KindList},
				{Name: "background", Label: "Background", Kind: KindFile, Accept: AcceptImage},
				{Name: "ageRating", Label: "Age rating", Kind: KindSelect, Options: []string{"0+", "6+", "12+"}},
				fieldActive,
			},
			Placement:   nested("injection", placement.ZeroMeansUnbounded, 1),
			ListColumns: []string{"title", "ageRating", "isActive"},
		},
		&Resource{
			Name: "spotlights", Title: "Spotlights", Singular: "Spotlight",
			UpdateMethod: http.MethodPatch,
			Fields: []Field{
				fieldTitle,
				{Name: "subtitle", Label: "Subtitle", Kind: KindText},
				{Name: "items", Label: "Item IDs", Kind: KindList},
				{Name: "background", Label: "Background", Kind: KindFile, Accept: AcceptImage},
				{Name: "countries", Label: "Countries", Kind: KindCountries,
					Help: "Leave empty to show everywhere."},
				fieldActive,
			},
			Placement:   nested("anchor", placement.ZeroMeansOnce, 0),
			ListColumns: []string{"title", "subtitle", "isActive"},
		},
		&Resource{
			Name: "videos", Title: "Videos", Singular: "Video",
			Fields: []Field{
				fieldTitle,
				{Name: "slug", Label: "Slug", Kind: KindSlug, From: "title"},
				{Name: "description", Label: "Description", Kind: KindMarkdown},
				{Name: "media", Label: "Video file", Kind: KindFile, Required: true, Accept: AcceptVideo},
				{Name: "poster", Label: "Poster", Kind: KindFile, Accept: AcceptImage},
				{Name: "duration", Label: "Duration (seconds)", Kind: KindNumber, Rules: "gte=0"},
				{Name: "sectionId", Label: "Section ID", Kind: KindText},
				fieldActive,
			},
			ListColumns: []string{"title", "duration", "isActive"},
		},
		&Resource{
			Name: "video-sections", Title: "Video sections", Singular: "Video section",
			Fields: []Field{
				fieldTitle,
				{Name: "videoIds", Label: "Video IDs", Kind: KindList},
				{Name: "layout", Label: "Layout", Kind: KindSelect, Required: true,
					Options: []string{"carousel", "grid", "hero"}},
				{Name: "countries", Label: "Countries", Kind: KindCountries},
				fieldPriority,
				fieldActive,
			},
			Placement:   nested("injection", placement.ZeroMeansUnbounded, 1),
			ListColumns: []string{"title", "layout", "priority", "isActive"},
		},
	)
}
