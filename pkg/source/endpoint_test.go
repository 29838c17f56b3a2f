package source

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSheetTitle(t *testing.T) {
	tests := []struct {
		name     string
		endpoint Endpoint
		want     string
	}{
		{"single word", Endpoint{Name: "users"}, "Users"},
		{"two words", Endpoint{Name: "registration_folders"}, "Registration Folders"},
		{"explicit override", Endpoint{Name: "users", Sheet: "Utilisateurs"}, "Utilisateurs"},
		{"already capitalized", Endpoint{Name: "Users"}, "Users"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.endpoint.SheetTitle())
		})
	}
}

func TestDefaultEndpoints(t *testing.T) {
	endpoints := DefaultEndpoints()
	require.Len(t, endpoints, 11)

	seen := make(map[string]bool)
	for _, ep := range endpoints {
		assert.NotEmpty(t, ep.Name)
		assert.NotEmpty(t, ep.Path)
		assert.False(t, seen[ep.Name], "duplicate endpoint %s", ep.Name)
		seen[ep.Name] = true
	}

	assert.Equal(t, "users", endpoints[0].Name)
}
