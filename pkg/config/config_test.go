package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wedof-tools/sheetsync/pkg/errors"
)

func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("WEDOF_API_KEY", "test-key")
	t.Setenv("GOOGLE_CREDENTIALS_PATH", "/tmp/creds.json")
	t.Setenv("GOOGLE_SPREADSHEET_ID", "sheet-123")
}

func TestLoadDefaults(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := Load()
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "test-key", cfg.Wedof.APIKey)
	assert.Equal(t, "https://www.wedof.fr", cfg.Wedof.BaseURL)
	assert.Equal(t, 600*time.Millisecond, cfg.Wedof.MinRequestInterval)
	assert.Equal(t, 100, cfg.Wedof.PageLimit)
	assert.Equal(t, "09:00", cfg.Schedule.Time)
	assert.Equal(t, 4, cfg.Reliability.RetryAttempts)
	assert.Equal(t, time.Second, cfg.Reliability.RetryDelay)
	assert.Equal(t, 30*time.Second, cfg.Reliability.MaxRetryDelay)
	assert.Equal(t, 10, cfg.Reliability.ThrottleRetryLimit)
	assert.Equal(t, "info", cfg.Logging.Level)
}

func TestLoadOverrides(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("WEDOF_BASE_URL", "https://staging.wedof.fr")
	t.Setenv("SYNC_TIME", "23:30")
	t.Setenv("SYNC_RETRY_ATTEMPTS", "6")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := Load()
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "https://staging.wedof.fr", cfg.Wedof.BaseURL)
	assert.Equal(t, "23:30", cfg.Schedule.Time)
	assert.Equal(t, 6, cfg.Reliability.RetryAttempts)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestValidateReportsAllMissing(t *testing.T) {
	t.Setenv("WEDOF_API_KEY", "")
	t.Setenv("GOOGLE_CREDENTIALS_PATH", "")
	t.Setenv("GOOGLE_SPREADSHEET_ID", "")

	cfg, err := Load()
	require.NoError(t, err)

	err = cfg.Validate()
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))
	assert.Contains(t, err.Error(), "WEDOF_API_KEY")
	assert.Contains(t, err.Error(), "GOOGLE_CREDENTIALS_PATH")
	assert.Contains(t, err.Error(), "GOOGLE_SPREADSHEET_ID")
}

func TestValidateRejectsBadSyncTime(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("SYNC_TIME", "9am")

	cfg, err := Load()
	require.NoError(t, err)

	err = cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SYNC_TIME")
}

func TestLoadEndpointsDefaults(t *testing.T) {
	endpoints, err := LoadEndpoints("")
	require.NoError(t, err)
	require.Len(t, endpoints, 11)

	names := make(map[string]string, len(endpoints))
	for _, ep := range endpoints {
		names[ep.Name] = ep.Path
	}
	assert.Equal(t, "/api/registrationFolders", names["registration_folders"])
	assert.Equal(t, "/api/certificationFolders", names["certification_folders"])
	assert.Equal(t, "/api/users", names["users"])
}

func TestLoadEndpointsFromFile(t *testing.T) {
	t.Setenv("TEST_FILTER_STATE", "active")

	content := `
endpoints:
  - name: users
    path: /api/users
    page_limit: 50
  - name: folders
    path: /api/registrationFolders
    sheet: Dossiers
    params:
      state: ${TEST_FILTER_STATE}
`
	path := filepath.Join(t.TempDir(), "endpoints.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	endpoints, err := LoadEndpoints(path)
	require.NoError(t, err)
	require.Len(t, endpoints, 2)

	assert.Equal(t, 50, endpoints[0].PageLimit)
	assert.Equal(t, "Dossiers", endpoints[1].Sheet)
	assert.Equal(t, "active", endpoints[1].Params["state"])
}

func TestLoadEndpointsRejectsIncomplete(t *testing.T) {
	content := `
endpoints:
  - name: users
`
	path := filepath.Join(t.TempDir(), "endpoints.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	_, err := LoadEndpoints(path)
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))
}

func TestLoadEndpointsMissingFile(t *testing.T) {
	_, err := LoadEndpoints(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))
}
