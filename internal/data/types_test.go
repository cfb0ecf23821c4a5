package data

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestThemeForID(t *testing.T) {
	tests := []struct {
		id    string
		color string
		bg    string
	}{
		{"traffic-1", "#10b981", "#064e3b"},
		{"city-traffic-feed", "#10b981", "#064e3b"},
		{"weather-station", "#a855f7", "#4c1d95"},
		{"bus-routes", "#f97316", "#7c2d12"},
		{"air-quality", "#60a5fa", "#1e3a8a"},
		{"", "#60a5fa", "#1e3a8a"},
	}

	for _, tt := range tests {
		theme := ThemeForID(tt.id)
		assert.Equal(t, tt.color, theme.Color, "id %q", tt.id)
		assert.Equal(t, tt.bg, theme.BackgroundColor, "id %q", tt.id)
	}
}

func TestDefaultViewState(t *testing.T) {
	vs := DefaultViewState()
	assert.Equal(t, 77.216721, vs.Longitude)
	assert.Equal(t, 28.6448, vs.Latitude)
	assert.Equal(t, 4.0, vs.Zoom)
}
