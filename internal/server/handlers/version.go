package handlers

import (
	"net/http"
	"runtime"

	"github.com/fulmenhq/gofulmen/crucible"
)

// BuildInfo is injected from main at link time.
type BuildInfo struct {
	Name      string
	Version   string
	Commit    string
	BuildDate string
}

// VersionResponse is the /version body.
type VersionResponse struct {
	App          AppInfo     `json:"app"`
	Dependencies DepInfo     `json:"dependencies"`
	Runtime      RuntimeInfo `json:"runtime"`
}

// AppInfo contains application version details.
type AppInfo struct {
	Name      string `json:"name"`
	Version   string `json:"version"`
	Commit    string `json:"git_commit"`
	BuildDate string `json:"build_date"`
	GoVersion string `json:"go_version,omitempty"`
}

// DepInfo contains dependency versions.
type DepInfo struct {
	Gofulmen string `json:"gofulmen"`
	Crucible string `json:"crucible"`
}

// RuntimeInfo describes the process.
type RuntimeInfo struct {
	Platform      string `json:"platform"`
	NumCPU        int    `json:"num_cpu"`
	NumGoroutines int    `json:"num_goroutines"`
}

// VersionHandler returns a handler reporting info.
func VersionHandler(info BuildInfo) http.HandlerFunc {
	if info.Name == "" {
		info.Name = "visionforge"
	}
	if info.Version == "" {
		info.Version = "dev"
	}
	return func(w http.ResponseWriter, r *http.Request) {
		deps := crucible.GetVersion()
		writeJSON(w, http.StatusOK, VersionResponse{
			App: AppInfo{
				Name:      info.Name,
				Version:   info.Version,
				Commit:    info.Commit,
				BuildDate: info.BuildDate,
				GoVersion: runtime.Version(),
			},
			Dependencies: DepInfo{Gofulmen: deps.Gofulmen, Crucible: deps.Crucible},
			Runtime: RuntimeInfo{
				Platform:      runtime.GOOS + "/" + runtime.GOARCH,
				NumCPU:        runtime.NumCPU(),
				NumGoroutines: runtime.NumGoroutine(),
			},
		})
	}
}
