// Package config holds the run configuration for portboard: repository
// locations, tree-scan exclusions, scoring weights, and the boilerplate
// lines ignored by out-of-sync detection.
//
// Everything has a default matching the mathlib port; a portboard.yaml in
// the working directory overrides fields, and the environment supplies the
// site URL and GitHub token.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"

	"gopkg.in/yaml.v3"
)

// DefaultFileName is the config file looked up in the working directory.
const DefaultFileName = "portboard.yaml"

// Scoring weights the priority sort key. Unported dependencies weigh more
// than in-progress ones; the defaults encode "in progress is almost as bad
// as unported".
type Scoring struct {
	UnportedWeight   int `yaml:"unported_weight,omitempty"`
	InProgressWeight int `yaml:"in_progress_weight,omitempty"`
}

// Repos locates the two clones the dashboard reads.
type Repos struct {
	// SourceDir is the original-library clone.
	SourceDir string `yaml:"source_dir,omitempty"`
	// TargetDir is the successor-library clone.
	TargetDir string `yaml:"target_dir,omitempty"`
	// SourceName/TargetName are the expected GitHub names; used to match
	// status records to repositories.
	SourceName string `yaml:"source_name,omitempty"`
	TargetName string `yaml:"target_name,omitempty"`
	// SourceRoot is the subdirectory of SourceDir scanned for imports.
	SourceRoot string `yaml:"source_root,omitempty"`
}

// Config is the full run configuration.
type Config struct {
	BuildDir   string  `yaml:"build_dir,omitempty"`
	StatusFile string  `yaml:"status_file,omitempty"`
	Repos      Repos   `yaml:"repos,omitempty"`
	Scoring    Scoring `yaml:"scoring,omitempty"`

	// ExcludedPrefixes are top-level namespaces left out of the graph.
	ExcludedPrefixes []string `yaml:"excluded_prefixes,omitempty"`
	// ExternalPrefix namespaces imports that resolve outside the tree.
	ExternalPrefix string `yaml:"external_prefix,omitempty"`

	// SyncIgnoreLines are literal lines discounted when deciding whether
	// a ported file has drifted from its sync commit. Domain data, not
	// logic; the defaults are the synchronization banner of the port.
	SyncIgnoreLines []string `yaml:"sync_ignore_lines,omitempty"`
	// SyncIgnorePatterns are regex alternatives discounted the same way,
	// for banner lines with a variable part such as the PR number.
	SyncIgnorePatterns []string `yaml:"sync_ignore_patterns,omitempty"`
	// UninterestingPrefixes marks commits recorded without a diff in
	// history walks even when they touched the file.
	UninterestingPrefixes []string `yaml:"uninteresting_prefixes,omitempty"`
	// UninterestingCommits lists individual commits treated the same way.
	UninterestingCommits []string `yaml:"uninteresting_commits,omitempty"`

	// SiteURL is the base URL prefixed to intra-site links. Empty works
	// for local browsing.
	SiteURL string `yaml:"-"`
	// GitHubToken authenticates label fetches.
	GitHubToken string `yaml:"-"`
	// TolerateRateLimit downgrades label rate-limit errors to warnings.
	TolerateRateLimit bool `yaml:"-"`
}

// Default returns the configuration of the mathlib port dashboard.
func Default() Config {
	return Config{
		BuildDir:         "build",
		StatusFile:       "status.yaml",
		ExcludedPrefixes: []string{"tactic", "meta"},
		ExternalPrefix:   "lean_core.",
		Scoring:          Scoring{UnportedWeight: 5, InProgressWeight: 1},
		Repos: Repos{
			SourceDir:  filepath.Join("build", "repos", "mathlib"),
			TargetDir:  filepath.Join("build", "repos", "mathlib4"),
			SourceName: "leanprover-community/mathlib",
			TargetName: "leanprover-community/mathlib4",
			SourceRoot: "src",
		},
		SyncIgnoreLines: []string{
			"> THIS FILE IS SYNCHRONIZED WITH MATHLIB4.",
			"> Any changes to this file require a corresponding PR to mathlib4.",
			"",
		},
		SyncIgnorePatterns: []string{
			regexp.QuoteMeta("> https://github.com/leanprover-community/mathlib4/pull/") + "[0-9]*",
		},
		UninterestingPrefixes: []string{
			"chore(*): add mathlib4 synchronization comments",
		},
		UninterestingCommits: []string{
			"448144f7ae193a8990cb7473c9e9a01990f64ac7",
		},
	}
}

// Load reads the config file at path when it exists, overlaying Default,
// then applies the environment. A missing file is not an error; a
// malformed one is.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		path = DefaultFileName
	}
	raw, err := os.ReadFile(path)
	switch {
	case os.IsNotExist(err):
		// defaults only
	case err != nil:
		return cfg, fmt.Errorf("read config: %w", err)
	default:
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return cfg, fmt.Errorf("parse %s: %w", path, err)
		}
	}
	cfg.applyEnv()
	return cfg, nil
}

func (c *Config) applyEnv() {
	c.SiteURL = os.Getenv("SITE_URL")
	c.GitHubToken = os.Getenv("GITHUB_TOKEN")
	// Gitpod workspaces run unauthenticated smoke builds; rate limiting
	// there is expected rather than a defect in the deployment.
	c.TolerateRateLimit = os.Getenv("GITPOD_HOST") != "" ||
		os.Getenv("PORTBOARD_TOLERATE_RATE_LIMIT") != ""
}

// HTMLDir returns the rendered-site directory under the build dir.
func (c Config) HTMLDir() string {
	return filepath.Join(c.BuildDir, "html")
}

// SourcePath maps an import path to the file path inside the source clone,
// relative to the clone root.
func (c Config) SourcePath(importPath []string) string {
	return filepath.Join(append([]string{c.Repos.SourceRoot}, importPath...)...) + ".lean"
}
