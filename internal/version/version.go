// Copyright Envoy AI Gateway Authors
// SPDX-License-Identifier: Apache-2.0
// The full text of the Apache license is available in the LICENSE file at
// the root of the repo.

// Package version exposes the build version, set at link time with
// -ldflags "-X github.com/envoyproxy/filtertest/internal/version.Version=...".
package version

// Version is the version of the build. "dev" for local builds.
var Version = "dev"

// gitCommitID is set at link time alongside Version.
var gitCommitID string

// Info is the build information.
type Info struct {
	Version     string `json:"version"`
	GitCommitID string `json:"gitCommitID,omitempty"`
}

// String implements fmt.Stringer.
func (i Info) String() string {
	if i.GitCommitID == "" {
		return i.Version
	}
	return i.Version + " (" + i.GitCommitID + ")"
}

// Get returns the build information.
func Get() Info {
	return Info{Version: Version, GitCommitID: gitCommitID}
}
