package version

import (
	"runtime/debug"
	"strings"
	"sync"
	"time"
)

// Set with -ldflags "-X github.com/kbukum/lexstream/version.Version=v1.2.0".
var (
	Version   = "dev"
	GitCommit = ""
	GitBranch = ""
	BuildTime = ""
)

// Info describes the running build.
type Info struct {
	Version   string    `json:"version"`
	GitCommit string    `json:"git_commit,omitempty"`
	GitBranch string    `json:"git_branch,omitempty"`
	BuildTime time.Time `json:"build_time,omitzero"`
	GoVersion string    `json:"go_version"`
	IsRelease bool      `json:"is_release"`
	IsDirty   bool      `json:"is_dirty"`
}

var readBuildInfo = sync.OnceValues(debug.ReadBuildInfo)

// Get returns the build information. Values set at link time win over the
// VCS stamps the Go toolchain embeds.
func Get() Info {
	info := Info{
		Version:   Version,
		GitCommit: GitCommit,
		GitBranch: GitBranch,
	}
	if t, err := time.Parse(time.RFC3339, BuildTime); err == nil {
		info.BuildTime = t
	}

	if bi, ok := readBuildInfo(); ok {
		info.GoVersion = bi.GoVersion
		for _, s := range bi.Settings {
			switch s.Key {
			case "vcs.revision":
				if info.GitCommit == "" {
					info.GitCommit = s.Value
				}
			case "vcs.modified":
				info.IsDirty = s.Value == "true"
			case "vcs.time":
				if info.BuildTime.IsZero() {
					info.BuildTime, _ = time.Parse(time.RFC3339, s.Value)
				}
			}
		}
	}
	if len(info.GitCommit) > 7 {
		info.GitCommit = info.GitCommit[:7]
	}
	info.IsRelease = Version != "dev" && !info.IsDirty && !strings.Contains(Version, "dirty")
	return info
}

// String formats the build as "v1.2.0-abc1234-dirty (built 2026-01-02T15:04:05Z)".
// Branches other than main are included.
func (i Info) String() string {
	parts := []string{i.Version}
	if i.GitCommit != "" {
		parts = append(parts, i.GitCommit)
	}
	if i.GitBranch != "" && i.GitBranch != "main" && i.GitBranch != "master" {
		parts = append(parts, i.GitBranch)
	}
	if i.IsDirty {
		parts = append(parts, "dirty")
	}
	s := strings.Join(parts, "-")
	if !i.BuildTime.IsZero() {
		s += " (built " + i.BuildTime.UTC().Format(time.RFC3339) + ")"
	}
	return s
}
