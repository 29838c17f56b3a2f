// Package source implements the paginated Wedof API client: endpoint
// catalog, page fetching under the provider rate limit, throttle backoff,
// and bounded retries.
package source

import "strings"

// Endpoint identifies one category of remote data to mirror. Endpoints are
// defined at process start and never mutated afterwards.
type Endpoint struct {
	// Name is the catalog key, e.g. "registration_folders"
	Name string `yaml:"name"`
	// Path is the API path, e.g. "/api/registrationFolders"
	Path string `yaml:"path"`
	// Sheet overrides the destination sheet title; derived from Name if empty
	Sheet string `yaml:"sheet,omitempty"`
	// PageLimit overrides the configured page size for this endpoint
	PageLimit int `yaml:"page_limit,omitempty"`
	// Params holds extra query parameters (field filters)
	Params map[string]string `yaml:"params,omitempty"`
}

// SheetTitle returns the destination sheet title for this endpoint:
// the explicit override if set, otherwise the name with underscores turned
// into spaces and words capitalized ("registration_folders" → "Registration
// Folders"), matching the sheet names the destination already contains.
func (e Endpoint) SheetTitle() string {
	if e.Sheet != "" {
		return e.Sheet
	}

	words := strings.Split(e.Name, "_")
	for i, w := range words {
		if w == "" {
			continue
		}
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}

// DefaultEndpoints returns the full Wedof endpoint catalog.
func DefaultEndpoints() []Endpoint {
	return []Endpoint{
		{Name: "users", Path: "/api/users"},
		{Name: "trainings", Path: "/api/trainings"},
		{Name: "sessions", Path: "/api/sessions"},
		{Name: "attendees", Path: "/api/attendees"},
		{Name: "registration_folders", Path: "/api/registrationFolders"},
		{Name: "certification_folders", Path: "/api/certificationFolders"},
		{Name: "organisms", Path: "/api/organisms"},
		{Name: "activities", Path: "/api/activities"},
		{Name: "evaluations", Path: "/api/evaluations"},
		{Name: "invoices", Path: "/api/invoices"},
		{Name: "payments", Path: "/api/payments"},
	}
}
