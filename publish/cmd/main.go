// Command publish_pr publishes the changeset described
// by a request file as a pull request on the configured
// git hosting platform.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/byte4ever/pr_publisher/git"
	"github.com/byte4ever/pr_publisher/git/bitbucket"
	"github.com/byte4ever/pr_publisher/git/github"
	"github.com/byte4ever/pr_publisher/git/gitlab"
	"github.com/byte4ever/pr_publisher/notify"
	"github.com/byte4ever/pr_publisher/publish"
)

// sliceFlag implements flag.Value for multi-value
// string flags (repeated --flag=val usage).
type sliceFlag []string

// String returns the flag value as a comma-separated
// string representation.
func (s *sliceFlag) String() string {
	if s == nil {
		return ""
	}

	return strings.Join(*s, ",")
}

// Set appends a value to the slice.
func (s *sliceFlag) Set(val string) error {
	*s = append(*s, val)

	return nil
}

func main() {
	if err := run(); err != nil {
		slog.Error("fatal", "error", err)
		os.Exit(1)
	}
}

//nolint:funlen // CLI flag setup is inherently long
func run() error {
	const errCtx = "running publish_pr"

	// Request flags.
	request := flag.String(
		"request", "",
		"Path to the publish request file "+
			"(.yaml or .json)",
	)
	dryRun := flag.Bool(
		"dry_run", false,
		"Skip publishing and PR creation",
	)

	// Stamp flags.
	var stampInfoFiles sliceFlag

	flag.Var(
		&stampInfoFiles,
		"stamp_info_file",
		"KEY VALUE stamp file (repeatable)",
	)

	var setVars sliceFlag

	flag.Var(
		&setVars,
		"set",
		"Extra template variable KEY=VALUE "+
			"(repeatable)",
	)

	// Git host selection.
	gitServer := flag.String(
		"git_server", "github",
		"Git hosting platform: github, gitlab, "+
			"or bitbucket",
	)

	// GitHub-specific flags.
	ghToken := flag.String(
		"github_access_token",
		envOr("GITHUB_TOKEN", ""),
		"GitHub personal access token "+
			"(default $GITHUB_TOKEN)",
	)
	ghEnterprise := flag.String(
		"github_enterprise_host", "",
		"GitHub Enterprise hostname",
	)

	// GitLab-specific flags.
	glHost := flag.String(
		"gitlab_host", "",
		"GitLab instance URL",
	)
	glToken := flag.String(
		"gitlab_access_token",
		envOr("GITLAB_TOKEN", ""),
		"GitLab personal access token "+
			"(default $GITLAB_TOKEN)",
	)

	// Bitbucket-specific flags.
	bbBaseURL := flag.String(
		"bitbucket_base_url", "",
		"Bitbucket Cloud REST API root",
	)
	bbUser := flag.String(
		"bitbucket_user", "",
		"Bitbucket username",
	)
	bbAppPassword := flag.String(
		"bitbucket_app_password",
		envOr("BITBUCKET_APP_PASSWORD", ""),
		"Bitbucket app password "+
			"(default $BITBUCKET_APP_PASSWORD)",
	)

	flag.Parse()

	if *request == "" {
		return fmt.Errorf(
			"%s: -request must be set", errCtx,
		)
	}

	req, err := publish.LoadRequest(*request)
	if err != nil {
		return fmt.Errorf("%s: %w", errCtx, err)
	}

	host, err := newGitHost(
		*gitServer,
		hostFlags{
			ghToken:       *ghToken,
			ghEnterprise:  *ghEnterprise,
			glHost:        *glHost,
			glToken:       *glToken,
			bbBaseURL:     *bbBaseURL,
			bbUser:        *bbUser,
			bbAppPassword: *bbAppPassword,
		},
	)
	if err != nil {
		return fmt.Errorf(
			"%s: create host: %w", errCtx, err,
		)
	}

	vars, err := parseVars(setVars)
	if err != nil {
		return fmt.Errorf("%s: %w", errCtx, err)
	}

	cfg := publish.Config{
		Changeset:      req.Changeset,
		PullRequest:    req.PullRequest,
		StampInfoFiles: stampInfoFiles,
		StampVars:      vars,
		DryRun:         *dryRun,
		Host:           host,
		Sink:           notify.LogSink{},
	}

	if err := publish.Run(
		context.Background(), cfg,
	); err != nil {
		return fmt.Errorf("%s: %w", errCtx, err)
	}

	return nil
}

// envOr returns the environment value for key, or def
// when unset.
func envOr(key string, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}

	return def
}

// parseVars splits KEY=VALUE pairs into a template
// variable map.
func parseVars(
	pairs []string,
) (map[string]interface{}, error) {
	const errCtx = "parsing set variables"

	vars := make(
		map[string]interface{}, len(pairs),
	)

	for _, pair := range pairs {
		k, v, ok := strings.Cut(pair, "=")
		if !ok || k == "" {
			return nil, fmt.Errorf(
				"%s: malformed pair %q",
				errCtx, pair,
			)
		}

		vars[k] = v
	}

	return vars, nil
}

// hostFlags bundles host-specific flag values to keep
// newGitHost under the 4-argument limit.
type hostFlags struct {
	ghToken       string
	ghEnterprise  string
	glHost        string
	glToken       string
	bbBaseURL     string
	bbUser        string
	bbAppPassword string
}

// newGitHost creates a git.Host based on the server
// name. Pattern: Factory -- selects platform
// implementation at runtime.
func newGitHost(
	server string,
	hf hostFlags,
) (git.Host, error) {
	const errCtx = "creating git host"

	switch server {
	case "github":
		p, err := github.NewProvider(github.Config{
			AccessToken:    hf.ghToken,
			EnterpriseHost: hf.ghEnterprise,
		})
		if err != nil {
			return nil, fmt.Errorf(
				"%s: %w", errCtx, err,
			)
		}

		return p, nil

	case "gitlab":
		p, err := gitlab.NewProvider(gitlab.Config{
			Host:        hf.glHost,
			AccessToken: hf.glToken,
		})
		if err != nil {
			return nil, fmt.Errorf(
				"%s: %w", errCtx, err,
			)
		}

		return p, nil

	case "bitbucket":
		p, err := bitbucket.NewProvider(
			bitbucket.Config{
				BaseURL:     hf.bbBaseURL,
				User:        hf.bbUser,
				AppPassword: hf.bbAppPassword,
			},
		)
		if err != nil {
			return nil, fmt.Errorf(
				"%s: %w", errCtx, err,
			)
		}

		return p, nil

	default:
		return nil, fmt.Errorf(
			"%s: unknown server %q", errCtx, server,
		)
	}
}
