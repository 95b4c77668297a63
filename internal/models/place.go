package models

import (
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/uptrace/bun"
)

// Source tags identify the open-data file a Place was imported from.
const (
	SourceShelter         = "hinanjo"
	SourceEvacuationSite  = "hinanbasyo"
	SourceStrandedSupport = "kitakukonnan"
)

// Categories shown to residents. One per source.
const (
	CategoryShelter         = "避難所"
	CategoryEvacuationSite  = "避難場所"
	CategoryStrandedSupport = "帰宅困難者支援施設"
)

// Categories is the fixed list offered by the category filter, in display order.
func Categories() []string {
	return []string{CategoryShelter, CategoryEvacuationSite, CategoryStrandedSupport}
}

// Sources lists every import source in import order.
func Sources() []string {
	return []string{SourceShelter, SourceEvacuationSite, SourceStrandedSupport}
}

// Place is one disaster-related facility (shelter, evacuation site or
// stranded-commuter support facility) normalized from a municipal CSV row.
type Place struct {
	bun.BaseModel `bun:"table:places,alias:p"`

	ID            int64             `bun:"id,pk,autoincrement" json:"id"`
	Source        string            `bun:"source,notnull" json:"source"`
	SourceNo      *string           `bun:"source_no" json:"source_no"`
	Category      string            `bun:"category,notnull" json:"category"`
	Subtype       *string           `bun:"subtype" json:"subtype"`
	Name          string            `bun:"name,notnull" json:"name"`
	NameKana      *string           `bun:"name_kana" json:"name_kana"`
	Address       string            `bun:"address,notnull,default:''" json:"address"`
	Lat           *float64          `bun:"lat" json:"lat"`
	Lng           *float64          `bun:"lng" json:"lng"`
	Capacity      *int              `bun:"capacity" json:"capacity"`
	DisasterFlags map[string]string `bun:"disaster_flags,nullzero" json:"disaster_flags"` // open-ended: disaster label -> raw flag
	URL           *string           `bun:"url" json:"url"`
	Notes         *string           `bun:"notes" json:"notes"`
	SyncedAt      time.Time         `bun:"synced_at,notnull" json:"synced_at"`
}

// MapURL links to Google Maps, preferring coordinates, then the address, then the name.
func (p *Place) MapURL() string {
	if p.Lat != nil && p.Lng != nil {
		return "https://www.google.com/maps?q=" +
			strconv.FormatFloat(*p.Lat, 'f', -1, 64) + "," +
			strconv.FormatFloat(*p.Lng, 'f', -1, 64)
	}
	query := strings.TrimSpace(p.Address)
	if query == "" {
		query = p.Name
	}
	return "https://www.google.com/maps/search/?" + url.Values{"api": {"1"}, "query": {query}}.Encode()
}

func (p *Place) String() string {
	return p.Category + ":" + p.Name
}

// PlaceFilterParams defines query parameters for filtering places
type PlaceFilterParams struct {
	Category string   // exact match, empty = all
	Query    string   // case-insensitive substring of name or address
	Sources  []string // hinanjo, hinanbasyo, kitakukonnan
}

// PlaceView adds derived fields for display.
type PlaceView struct {
	Place
	MapURL string `json:"map_url"`
}

// NewPlaceView wraps a place with its map link.
func NewPlaceView(p Place) PlaceView {
	return PlaceView{Place: p, MapURL: p.MapURL()}
}

// PlaceListResponse is what the list page renders from.
type PlaceListResponse struct {
	Success          bool        `json:"success"`
	Data             []PlaceView `json:"data"`
	Total            int         `json:"total"`
	Categories       []string    `json:"categories"`
	SelectedCategory string      `json:"selected_category"`
	Q                string      `json:"q"`
}
