package data

import (
	"encoding/json"
	"strings"
	"time"
)

// ViewState is the initial camera position of a map project.
type ViewState struct {
	Longitude float64 `json:"longitude"`
	Latitude  float64 `json:"latitude"`
	Zoom      float64 `json:"zoom"`
}

// DefaultViewState returns the view state applied when a project is
// created without one.
func DefaultViewState() ViewState {
	return ViewState{
		Longitude: 77.216721,
		Latitude:  28.6448,
		Zoom:      4,
	}
}

// Project is a named map workspace with view state and an opaque
// geometry payload.
type Project struct {
	ID               string          `json:"id"`
	Name             string          `json:"name"`
	Description      string          `json:"description"`
	InitialViewState ViewState       `json:"initialViewState"`
	GeoJSONData      json.RawMessage `json:"geojsonData,omitempty"`
	LastModified     time.Time       `json:"lastModified"`
	CreatedAt        time.Time       `json:"createdAt"`
}

// Theme is the presentation palette assigned to a data source.
type Theme struct {
	Color           string `json:"color"`
	BackgroundColor string `json:"backgroundColor"`
}

// DataSource is a named external polling endpoint, optionally scoped
// to a project. The id is caller-supplied and unique across the whole
// catalog.
type DataSource struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	URL       string `json:"url"`
	ProjectID string `json:"projectId,omitempty"`
	Theme     Theme  `json:"theme"`
}

// ThemeForID derives a source's palette from substrings of its id.
func ThemeForID(id string) Theme {
	switch {
	case strings.Contains(id, "traffic"):
		return Theme{Color: "#10b981", BackgroundColor: "#064e3b"}
	case strings.Contains(id, "weather"):
		return Theme{Color: "#a855f7", BackgroundColor: "#4c1d95"}
	case strings.Contains(id, "bus"):
		return Theme{Color: "#f97316", BackgroundColor: "#7c2d12"}
	default:
		return Theme{Color: "#60a5fa", BackgroundColor: "#1e3a8a"}
	}
}
