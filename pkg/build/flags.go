// SPDX-License-Identifier: MIT
//
// Package build carries the release metadata of the beamform binary. Release
// builds link it in with
//
//	go build -ldflags "-X beamform/pkg/build.name=beamform -X beamform/pkg/build.version=v0.3.0 ..."
//
// Development builds skip the flags and report the defaults.
package build

import (
	"errors"
	"fmt"
)

// ErrNotLinked reports a required linker variable that was left empty.
var ErrNotLinked = errors.New("build: variable not linked")

// DefaultDescription is used when no description is linked in.
const DefaultDescription = "Frequency-domain acoustic beamforming"

// Info describes one build of the binary.
type Info struct {
	Name        string
	Description string
	Time        string
	Commit      string
	Version     string
}

// String renders the one-line version banner.
func (i Info) String() string {
	return fmt.Sprintf("%s %s (commit %s, built %s)", i.Name, i.Version, i.Commit, i.Time)
}

// Set with -X at link time.
var (
	name        string
	description string
	time        string
	commit      string
	version     string
)

var current = defaults()

func defaults() Info {
	return Info{
		Name:        "beamform",
		Description: DefaultDescription,
		Time:        "unknown",
		Commit:      "unknown",
		Version:     "dev",
	}
}

// Initialize publishes the linked variables. Every missing required variable
// is reported, joined into one error, and the defaults stay in place. The
// description is optional.
func Initialize() error {
	var errs []error
	for _, v := range []struct{ name, value string }{
		{"name", name},
		{"time", time},
		{"commit", commit},
		{"version", version},
	} {
		if v.value == "" {
			errs = append(errs, fmt.Errorf("%w: %s", ErrNotLinked, v.name))
		}
	}
	if err := errors.Join(errs...); err != nil {
		return err
	}

	info := Info{Name: name, Description: DefaultDescription, Time: time, Commit: commit, Version: version}
	if description != "" {
		info.Description = description
	}
	current = info
	return nil
}

// Get returns the build information, or the defaults before a successful
// Initialize.
func Get() Info {
	return current
}
