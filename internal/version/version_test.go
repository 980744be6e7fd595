package version

import (
	"strings"
	"testing"
)

func TestResolve(t *testing.T) {
	tests := []struct {
		name        string
		version     string
		commit      string
		settings    map[string]string
		wantVersion string
		wantCommit  string
	}{
		{
			name:        "ldflags win",
			version:     "v0.3.0",
			commit:      "abc1234",
			settings:    map[string]string{"vcs.revision": "ffffffffffff"},
			wantVersion: "v0.3.0",
			wantCommit:  "abc1234",
		},
		{
			name:    "from vcs stamp",
			version: "",
			settings: map[string]string{
				"vcs.revision": "0123456789abcdef",
				"vcs.modified": "true",
				"vcs.time":     "2026-03-01T10:00:00Z",
			},
			wantVersion: "dev-2026-03-01",
			wantCommit:  "0123456-dirty",
		},
		{
			name:        "nothing known",
			settings:    map[string]string{},
			wantVersion: "dev",
			wantCommit:  "unknown",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			info := resolve(tt.version, tt.commit, tt.settings)
			if info.Version != tt.wantVersion {
				t.Errorf("Version = %q, want %q", info.Version, tt.wantVersion)
			}
			if info.Commit != tt.wantCommit {
				t.Errorf("Commit = %q, want %q", info.Commit, tt.wantCommit)
			}
			if info.GoVersion == "" || !strings.Contains(info.Platform, "/") {
				t.Errorf("runtime fields not set: %+v", info)
			}
		})
	}
}

func TestFull(t *testing.T) {
	if !strings.Contains(Full(), "commit:") {
		t.Errorf("Full() = %q", Full())
	}
	if !strings.HasPrefix(Get().String(), "fwdump ") {
		t.Errorf("String() = %q", Get().String())
	}
}
