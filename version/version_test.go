package version

import (
	"strings"
	"testing"
)

func TestGet_LinkTimeValues(t *testing.T) {
	origVersion, origCommit, origTime := Version, GitCommit, BuildTime
	defer func() { Version, GitCommit, BuildTime = origVersion, origCommit, origTime }()

	Version, GitCommit, BuildTime = "1.2.3", "abc1234", "2026-01-02T03:04:05Z"
	info := Get()
	if info.Version != "1.2.3" || info.GitCommit != "abc1234" || info.BuildTime != "2026-01-02T03:04:05Z" {
		t.Errorf("Get() = %+v", info)
	}
}

func TestInfo_String(t *testing.T) {
	tests := []struct {
		info Info
		want string
	}{
		{Info{Version: "dev"}, "dev"},
		{Info{Version: "1.0.0", GitCommit: "abc1234", Dirty: true}, "1.0.0-abc1234-dirty"},
		{Info{Version: "1.0.0", BuildTime: "t", GoVersion: "go1.25.0"}, "1.0.0 (built t) go1.25.0"},
	}
	for _, tt := range tests {
		if got := tt.info.String(); got != tt.want {
			t.Errorf("got %q, want %q", got, tt.want)
		}
	}
	if !strings.HasPrefix(Get().String(), Version) {
		t.Error("String() should start with the version")
	}
}
