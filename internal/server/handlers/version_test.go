package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVersionHandler(t *testing.T) {
	tests := []struct {
		name        string
		info        BuildInfo
		wantName    string
		wantVersion string
	}{
		{
			name:        "injected",
			info:        BuildInfo{Name: "visionforge-test", Version: "1.2.3", Commit: "abcd123", BuildDate: "2026-01-02T00:00:00Z"},
			wantName:    "visionforge-test",
			wantVersion: "1.2.3",
		},
		{name: "defaults", wantName: "visionforge", wantVersion: "dev"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			VersionHandler(tt.info)(rec, httptest.NewRequest(http.MethodGet, "/version", nil))
			require.Equal(t, http.StatusOK, rec.Code)

			var resp VersionResponse
			require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
			assert.Equal(t, tt.wantName, resp.App.Name)
			assert.Equal(t, tt.wantVersion, resp.App.Version)
			assert.Equal(t, tt.info.Commit, resp.App.Commit)
			assert.NotEmpty(t, resp.Dependencies.Gofulmen)
			assert.NotEmpty(t, resp.Runtime.Platform)
		})
	}
}
