// SPDX-License-Identifier: MIT
package build

import (
	"errors"
	"strings"
	"testing"
)

// link sets the linker variables for one test and restores them afterwards.
func link(t *testing.T, n, d, tm, c, v string) {
	t.Helper()
	saved := [...]string{name, description, time, commit, version}
	savedInfo := current
	t.Cleanup(func() {
		name, description, time, commit, version = saved[0], saved[1], saved[2], saved[3], saved[4]
		current = savedInfo
	})
	name, description, time, commit, version = n, d, tm, c, v
	current = defaults()
}

func TestInitializeMissing(t *testing.T) {
	tests := []struct {
		name    string
		vars    [4]string // name, time, commit, version
		missing []string
	}{
		{"no name", [4]string{"", "2026-01-02", "4f2c9e1", "v0.3.0"}, []string{"name"}},
		{"no time", [4]string{"beamform", "", "4f2c9e1", "v0.3.0"}, []string{"time"}},
		{"no commit", [4]string{"beamform", "2026-01-02", "", "v0.3.0"}, []string{"commit"}},
		{"no version", [4]string{"beamform", "2026-01-02", "4f2c9e1", ""}, []string{"version"}},
		{"nothing linked", [4]string{}, []string{"name", "time", "commit", "version"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			link(t, tt.vars[0], "", tt.vars[1], tt.vars[2], tt.vars[3])

			err := Initialize()
			if !errors.Is(err, ErrNotLinked) {
				t.Fatalf("Initialize() error = %v, want ErrNotLinked", err)
			}
			for _, m := range tt.missing {
				if !strings.Contains(err.Error(), ": "+m) {
					t.Errorf("Initialize() error %q does not name %q", err, m)
				}
			}
			if Get() != defaults() {
				t.Errorf("Get() = %+v after failed Initialize, want defaults", Get())
			}
		})
	}
}

func TestInitialize(t *testing.T) {
	tests := []struct {
		name        string
		description string
		want        string
	}{
		{"default description", "", DefaultDescription},
		{"linked description", "Array test bench", "Array test bench"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			link(t, "beamform", tt.description, "2026-01-02", "4f2c9e1", "v0.3.0")

			if err := Initialize(); err != nil {
				t.Fatalf("Initialize() unexpected error: %v", err)
			}
			want := Info{
				Name:        "beamform",
				Description: tt.want,
				Time:        "2026-01-02",
				Commit:      "4f2c9e1",
				Version:     "v0.3.0",
			}
			if got := Get(); got != want {
				t.Errorf("Get() = %+v, want %+v", got, want)
			}
		})
	}
}

func TestInfoString(t *testing.T) {
	info := Info{Name: "beamform", Time: "2026-01-02", Commit: "4f2c9e1", Version: "v0.3.0"}
	want := "beamform v0.3.0 (commit 4f2c9e1, built 2026-01-02)"
	if got := info.String(); got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
}

func TestGetDefaults(t *testing.T) {
	link(t, "", "", "", "", "")
	got := Get()
	if got.Name != "beamform" || got.Version != "dev" || got.Description != DefaultDescription {
		t.Errorf("Get() = %+v, want development defaults", got)
	}
}
