// Package publish orchestrates the publishing of a
// changeset as a pull request. A run expands stamp
// variables, embeds the published file list in the
// commit message, pushes the changeset through a
// git.Host, opens the pull request, and reports exactly
// one outcome into the notification sink.
package publish

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/byte4ever/pr_publisher/commitmsg"
	"github.com/byte4ever/pr_publisher/git"
	"github.com/byte4ever/pr_publisher/notify"
	"github.com/byte4ever/pr_publisher/stamper"
)

// Config holds all settings for a publish run. Use a
// Config struct instead of many arguments.
type Config struct {
	// Changeset is the file set to publish together
	// with its branch and commit metadata.
	Changeset git.Changeset

	// PullRequest describes the pull request to open
	// once the changeset is on its branch. Source
	// fields left empty default from the changeset.
	PullRequest git.PullRequestSpec

	// StampInfoFiles are KEY VALUE stamp files merged
	// into the template variables.
	StampInfoFiles []string

	// StampVars are extra template variables. They
	// override values loaded from the stamp files.
	StampVars map[string]interface{}

	// DryRun stops before any remote call and reports
	// what would be published.
	DryRun bool

	// Host publishes changesets and pull requests on
	// a git hosting platform.
	Host git.Host

	// Sink receives exactly one outcome per run.
	Sink notify.Sink
}

// Run executes a publish run. Exactly one sink outcome
// is emitted per run; failures are additionally
// returned to the caller.
func Run(ctx context.Context, cfg Config) error {
	const errCtx = "publishing pull request"

	if cfg.Sink == nil {
		return fmt.Errorf(
			"%s: %w", errCtx, notify.ErrNoSink,
		)
	}

	if cfg.Host == nil {
		return fail(cfg.Sink, fmt.Errorf(
			"%s: git host must be set", errCtx,
		))
	}

	// Step 1: Load and merge template variables.
	vars, err := stamper.LoadStamps(
		cfg.StampInfoFiles,
	)
	if err != nil {
		return fail(cfg.Sink, fmt.Errorf(
			"%s: %w", errCtx, err,
		))
	}

	for k, v := range cfg.StampVars {
		vars[k] = v
	}

	// Step 2: Expand templates and default the pull
	// request source fields from the changeset.
	cs := stamper.ExpandChangeset(cfg.Changeset, vars)

	spec := defaultSpec(
		stamper.ExpandPullRequest(
			cfg.PullRequest, vars,
		),
		cs,
	)

	// Step 3: Embed the published file list in the
	// commit message.
	cs.Message += commitmsg.Generate(cs.Paths())

	if cfg.DryRun {
		slog.Info(
			"dry run: skipping publish and pull request",
			"repo", cs.Repo.String(),
			"branch", cs.Branch,
			"files", len(cs.Files),
			"digest", cs.Digest(),
		)

		cfg.Sink.Info("dry run: nothing published")

		return nil
	}

	// Step 4: Push the changeset onto its branch.
	res, err := cfg.Host.PublishChangeset(ctx, cs)
	if err != nil {
		return fail(cfg.Sink, fmt.Errorf(
			"%s: %w", errCtx, err,
		))
	}

	if res.Unchanged {
		cfg.Sink.Info(
			"changeset already published, branch left untouched",
		)

		return nil
	}

	// Step 5: Open the pull request and report.
	pr, err := cfg.Host.CreatePullRequest(ctx, spec)
	if err != nil {
		return fail(cfg.Sink, fmt.Errorf(
			"%s: %w", errCtx, err,
		))
	}

	if pr.State == git.PullRequestAlreadyExists {
		cfg.Sink.Info(
			"pull request updated via existing branch",
		)

		return nil
	}

	cfg.Sink.Success(pr.URL)

	return nil
}

// defaultSpec fills the pull request source fields from
// the changeset when the caller left them empty.
func defaultSpec(
	spec git.PullRequestSpec,
	cs git.Changeset,
) git.PullRequestSpec {
	if spec.SourceOwner == "" {
		spec.SourceOwner = cs.Repo.Owner
	}

	if spec.SourceRepo == "" {
		spec.SourceRepo = cs.Repo.Name
	}

	if spec.SourceBranch == "" {
		spec.SourceBranch = cs.Branch
	}

	if spec.DestinationBranch == "" {
		spec.DestinationBranch = cs.BaseBranch
	}

	return spec
}

// fail reports err into the sink and returns it so the
// caller sees the same failure.
func fail(sink notify.Sink, err error) error {
	sink.Error(err.Error())

	return err
}
