package importer

import (
	"strings"
	"time"

	"hinan-bknd/internal/models"
)

// Candidate header names per field. The first non-empty match wins.
var (
	facilityNameKeys = []string{"施設名", "名称", "施設名称"}
	nameKanaKeys     = []string{"名称_カナ", "名称カナ", "施設名_カナ", "施設名カナ"}
	addressKeys      = []string{"住所", "所在地"}
	subtypeKeys      = []string{"種別", "施設種別"}
	addressExtraKeys = []string{"方書"}
	latKeys          = []string{"緯度"}
	lngKeys          = []string{"経度"}
	capacityKeys     = []string{"想定収容人数", "収容人数"}
	urlKeys          = []string{"URL", "url"}
)

// DisasterFlagColumns are the disaster-type columns of the evacuation site
// dataset. Values are kept verbatim (usually "1" or "◯").
var DisasterFlagColumns = []string{
	"洪水",
	"崖崩れ、土石流及び地滑り",
	"高潮",
	"地震",
	"津波",
	"大規模な火事",
	"内水氾濫",
	"火山現象",
}

const capacityLabel = "想定収容人数"

// noteColumns are folded into Notes as "label: value" lines, in this order.
var noteColumns = []string{
	"対象となる町会・自治会",
	"指定避難所との重複",
	"備考",
	"電話番号",
	"内線番号",
}

// Normalizer turns one raw row into a Place stamped with the run's sync time.
type Normalizer func(row Row, syncedAt time.Time) models.Place

// NormalizeShelter maps a row of the designated shelter (避難所) dataset.
func NormalizeShelter(row Row, syncedAt time.Time) models.Place {
	return normalizeFacility(row, syncedAt, models.SourceShelter, models.CategoryShelter)
}

// NormalizeStrandedSupport maps a row of the stranded commuter support
// facility (帰宅困難者支援施設) dataset. Same layout as the shelter file.
func NormalizeStrandedSupport(row Row, syncedAt time.Time) models.Place {
	return normalizeFacility(row, syncedAt, models.SourceStrandedSupport, models.CategoryStrandedSupport)
}

func normalizeFacility(row Row, syncedAt time.Time, source, category string) models.Place {
	return models.Place{
		Source:   source,
		SourceNo: optional(ResolveRowKey(row, IDKeys...)),
		Category: category,
		Subtype:  optional(ResolveRowKey(row, subtypeKeys...)),
		Name:     strings.TrimSpace(ResolveRowKey(row, facilityNameKeys...)),
		Address:  strings.TrimSpace(ResolveRowKey(row, addressKeys...)),
		SyncedAt: syncedAt,
	}
}

// NormalizeEvacuationSite maps a row of the designated emergency evacuation
// site (避難場所) dataset: address plus 方書, coordinates, capacity with a notes
// fallback, disaster flags and the free-text columns collected into Notes.
func NormalizeEvacuationSite(row Row, syncedAt time.Time) models.Place {
	var notes []string

	capacityRaw := strings.TrimSpace(ResolveRowKey(row, capacityKeys...))
	capacity := ParseIntOrNull(capacityRaw)
	if capacity == nil && capacityRaw != "" {
		notes = append(notes, capacityLabel+": "+capacityRaw)
	}

	for _, col := range noteColumns {
		if v := strings.TrimSpace(row[col]); v != "" {
			notes = append(notes, col+": "+v)
		}
	}

	return models.Place{
		Source:        models.SourceEvacuationSite,
		SourceNo:      optional(ResolveRowKey(row, IDKeys...)),
		Category:      models.CategoryEvacuationSite,
		Name:          strings.TrimSpace(ResolveRowKey(row, facilityNameKeys...)),
		NameKana:      optional(ResolveRowKey(row, nameKanaKeys...)),
		Address:       joinAddress(ResolveRowKey(row, addressKeys...), ResolveRowKey(row, addressExtraKeys...)),
		Lat:           ParseFloatOrNull(ResolveRowKey(row, latKeys...)),
		Lng:           ParseFloatOrNull(ResolveRowKey(row, lngKeys...)),
		Capacity:      capacity,
		DisasterFlags: disasterFlags(row),
		URL:           optional(ResolveRowKey(row, urlKeys...)),
		Notes:         joinNotes(notes),
		SyncedAt:      syncedAt,
	}
}

// joinAddress appends the building/block supplement with a single space.
func joinAddress(base, extra string) string {
	base = strings.TrimSpace(base)
	extra = strings.TrimSpace(extra)
	if extra == "" {
		return base
	}
	if base == "" {
		return extra
	}
	return base + " " + extra
}

func disasterFlags(row Row) map[string]string {
	var flags map[string]string
	for _, col := range DisasterFlagColumns {
		v := strings.TrimSpace(row[col])
		if v == "" {
			continue
		}
		if flags == nil {
			flags = make(map[string]string, len(DisasterFlagColumns))
		}
		flags[col] = v
	}
	return flags
}

func joinNotes(lines []string) *string {
	if len(lines) == 0 {
		return nil
	}
	s := strings.Join(lines, "\n")
	return &s
}
