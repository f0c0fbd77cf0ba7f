package assetinfo

import (
	"encoding/json"
	"fmt"
)

// Info is the typed view of an asset's metadata record. Keys the current
// schema does not know about are preserved in Extra and written back
// verbatim, so the sidecar can be shared with older tooling.
type Info struct {
	Name        string
	URL         string
	Author      string
	AuthorURL   string
	Licence     string
	LicenceURL  string
	Description string

	// Tags and SystemTags are persisted as lists but carry set semantics;
	// merge-updates append-deduplicate them.
	Tags       []string
	SystemTags []string

	// Dimensions maps up to three axis names (x, y, z) to sizes in meters.
	Dimensions map[string]float64

	// Ctime is the asset creation time as Unix seconds.
	Ctime float64

	// SystemTagsMtime is the folder scan time backing system tag freshness.
	SystemTagsMtime float64

	// Extra holds unknown/legacy keys verbatim.
	Extra map[string]interface{}
}

// knownKeys are the sidecar keys owned by the typed fields above.
var knownKeys = map[string]bool{
	"name": true, "url": true, "author": true, "author_url": true,
	"licence": true, "licence_url": true, "description": true,
	"tags": true, "system_tags": true, "dimensions": true,
	"ctime": true, "system_tags_mtime": true,
}

// NewInfo returns an empty record with initialized collections.
func NewInfo() *Info {
	return &Info{
		Dimensions: map[string]float64{},
		Extra:      map[string]interface{}{},
	}
}

// GetExtra returns the value of an unknown/legacy key, if present.
func (inf *Info) GetExtra(key string) (interface{}, bool) {
	v, ok := inf.Extra[key]
	return v, ok
}

// SetExtra stores an unknown/legacy key.
func (inf *Info) SetExtra(key string, value interface{}) {
	if inf.Extra == nil {
		inf.Extra = map[string]interface{}{}
	}
	inf.Extra[key] = value
}

// ToMap flattens the record into the generic JSON shape used for
// merge-updates and persistence.
func (inf *Info) ToMap() map[string]interface{} {
	m := map[string]interface{}{
		"name":              inf.Name,
		"url":               inf.URL,
		"author":            inf.Author,
		"author_url":        inf.AuthorURL,
		"licence":           inf.Licence,
		"licence_url":       inf.LicenceURL,
		"description":       inf.Description,
		"tags":              stringsToList(inf.Tags),
		"system_tags":       stringsToList(inf.SystemTags),
		"dimensions":        dimensionsToMap(inf.Dimensions),
		"ctime":             inf.Ctime,
		"system_tags_mtime": inf.SystemTagsMtime,
	}
	for k, v := range inf.Extra {
		if !knownKeys[k] {
			m[k] = v
		}
	}
	return m
}

// FromMap populates the record from the generic JSON shape. The map is
// expected to have been through Migrate and Standardize already.
func FromMap(m map[string]interface{}) *Info {
	inf := NewInfo()
	inf.Name = asString(m["name"])
	inf.URL = asString(m["url"])
	inf.Author = asString(m["author"])
	inf.AuthorURL = asString(m["author_url"])
	inf.Licence = asString(m["licence"])
	inf.LicenceURL = asString(m["licence_url"])
	inf.Description = asString(m["description"])
	inf.Tags = asStrings(m["tags"])
	inf.SystemTags = asStrings(m["system_tags"])
	inf.Dimensions = asDimensions(m["dimensions"])
	inf.Ctime = asFloat(m["ctime"])
	inf.SystemTagsMtime = asFloat(m["system_tags_mtime"])

	for k, v := range m {
		if !knownKeys[k] {
			inf.Extra[k] = v
		}
	}
	return inf
}

// MarshalJSON writes the record in its on-disk shape.
func (inf Info) MarshalJSON() ([]byte, error) {
	return json.Marshal(inf.ToMap())
}

// UnmarshalJSON reads the on-disk shape, applying legacy migration and
// dimension standardization.
func (inf *Info) UnmarshalJSON(data []byte) error {
	var m map[string]interface{}
	if err := json.Unmarshal(data, &m); err != nil {
		return err
	}
	Migrate(m)
	Standardize(m)
	*inf = *FromMap(m)
	return nil
}

// Migrate applies the versioned legacy-key renames in place. It runs once
// at load time rather than as scattered fallback lookups.
func Migrate(m map[string]interface{}) {
	renames := [][2]string{
		{"link", "url"},
		{"author_link", "author_url"},
		{"license", "licence"},
		{"license_url", "licence_url"},
	}
	for _, r := range renames {
		old, new := r[0], r[1]
		if v, ok := m[old]; ok {
			if _, exists := m[new]; !exists {
				m[new] = v
			}
			delete(m, old)
		}
	}
}

// Standardize enforces that "dimensions" is a mapping. A legacy
// 3-element list is converted to {x, y, z}.
func Standardize(m map[string]interface{}) {
	dims, ok := m["dimensions"]
	if !ok {
		return
	}
	list, ok := dims.([]interface{})
	if !ok {
		return
	}
	axes := []string{"x", "y", "z"}
	out := map[string]interface{}{}
	for i, v := range list {
		if i >= len(axes) {
			break
		}
		out[axes[i]] = v
	}
	m["dimensions"] = out
}

func asString(v interface{}) string {
	s, _ := v.(string)
	return s
}

func asFloat(v interface{}) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case int:
		return float64(n)
	case json.Number:
		f, _ := n.Float64()
		return f
	}
	return 0
}

func asStrings(v interface{}) []string {
	list, ok := v.([]interface{})
	if !ok {
		return nil
	}
	out := make([]string, 0, len(list))
	for _, item := range list {
		if s, ok := item.(string); ok {
			out = append(out, s)
		} else {
			out = append(out, fmt.Sprintf("%v", item))
		}
	}
	return out
}

func asDimensions(v interface{}) map[string]float64 {
	out := map[string]float64{}
	m, ok := v.(map[string]interface{})
	if !ok {
		return out
	}
	for k, item := range m {
		out[k] = asFloat(item)
	}
	return out
}

func stringsToList(list []string) []interface{} {
	out := make([]interface{}, len(list))
	for i, s := range list {
		out[i] = s
	}
	return out
}

func dimensionsToMap(dims map[string]float64) map[string]interface{} {
	out := map[string]interface{}{}
	for k, v := range dims {
		out[k] = v
	}
	return out
}
