// Package version carries build metadata and the about text shown by the
// CLI and the /api/about endpoint.
package version

var (
	// Version is the current application version
	Version = "1.0"
	// GitSHA is the git commit SHA
	GitSHA = "unknown"
	// BuildTime is the build timestamp
	BuildTime = "unknown"
)

const (
	// Name is the product name.
	Name = "Spur Analyzer"
	// Author of the crossing spur method implementation.
	Author = "Steve Harbin"
	// Description summarises what the tool does.
	Description = "Mixer Spurious Signal Analysis. Based on traditional crossing spur techniques"
)

// About describes the running build.
type About struct {
	Name        string `json:"name"`
	Version     string `json:"version"`
	GitSHA      string `json:"git_sha"`
	BuildTime   string `json:"build_time"`
	Author      string `json:"author"`
	Description string `json:"description"`
}

// Info returns the about record for this build.
func Info() About {
	return About{
		Name:        Name,
		Version:     Version,
		GitSHA:      GitSHA,
		BuildTime:   BuildTime,
		Author:      Author,
		Description: Description,
	}
}

// String renders the record as a one-line banner.
func (a About) String() string {
	return a.Name + " v" + a.Version + " (" + a.GitSHA + ", built " + a.BuildTime + ")"
}
