package gitlab

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	gl "gitlab.com/gitlab-org/api/client-go"

	"github.com/byte4ever/pr_publisher/git"
)

// draftPrefix marks a merge request title as draft.
const draftPrefix = "Draft: "

// Config holds the settings needed to create a GitLab
// publishing provider.
type Config struct {
	// Host is the base URL of the GitLab instance
	// (e.g. "https://gitlab.com").
	Host string
	// AccessToken is a personal or project access
	// token used for authentication.
	AccessToken string
}

// Provider publishes changesets and merge requests on
// GitLab.
//
// Pattern: Strategy -- implements git.Host on top of
// the commits and merge requests APIs.
type Provider struct {
	client *gl.Client
}

// NewProvider validates cfg and returns a Provider
// ready to publish.
func NewProvider(cfg Config) (*Provider, error) {
	const errCtx = "creating gitlab provider"

	if cfg.AccessToken == "" {
		return nil, fmt.Errorf(
			"%s: access token must be set", errCtx,
		)
	}

	host := cfg.Host
	if host == "" {
		host = "https://gitlab.com"
	}

	client, err := gl.NewClient(
		cfg.AccessToken,
		gl.WithBaseURL(host),
	)
	if err != nil {
		return nil, fmt.Errorf(
			"%s: new client: %w", errCtx, err,
		)
	}

	return &Provider{client: client}, nil
}

// ensureBranch returns the tip of branch, creating it
// from baseBranch when it does not exist yet.
func (p *Provider) ensureBranch(
	ctx context.Context,
	repo git.Repo,
	baseBranch string,
	branch string,
) (git.BranchRef, error) {
	const errCtx = "resolving branch"

	existing, resp, err := p.client.Branches.GetBranch(
		repo.String(), branch, gl.WithContext(ctx),
	)
	if err == nil {
		return git.BranchRef{
			Name: branch,
			SHA:  existing.Commit.ID,
		}, nil
	}

	if !isStatus(resp, http.StatusNotFound) {
		return git.BranchRef{}, fmt.Errorf(
			"%s: %w", errCtx, classify(resp, err),
		)
	}

	created, resp, err := p.client.Branches.CreateBranch(
		repo.String(),
		&gl.CreateBranchOptions{
			Branch: &branch,
			Ref:    &baseBranch,
		},
		gl.WithContext(ctx),
	)
	if err != nil {
		return git.BranchRef{}, fmt.Errorf(
			"%s: create branch %s: %w",
			errCtx, branch, classify(resp, err),
		)
	}

	slog.Info(
		"created branch",
		"branch", branch,
		"from", baseBranch,
		"sha", created.Commit.ID,
	)

	return git.BranchRef{
		Name: branch,
		SHA:  created.Commit.ID,
	}, nil
}

// changesetActions maps the changeset files onto commit
// actions, probing each file on the target branch to
// choose between create and update. The second return
// is true when every file already matches its remote
// content.
func (p *Provider) changesetActions(
	ctx context.Context,
	cs git.Changeset,
) ([]*gl.CommitActionOptions, bool, error) {
	const errCtx = "mapping changeset actions"

	actions := make(
		[]*gl.CommitActionOptions, 0, len(cs.Files),
	)

	unchanged := true

	for _, f := range cs.Files {
		raw, resp, err := p.client.RepositoryFiles.GetRawFile(
			cs.Repo.String(),
			f.Path,
			&gl.GetRawFileOptions{Ref: &cs.Branch},
			gl.WithContext(ctx),
		)

		action := gl.FileUpdate

		switch {
		case err == nil:
			if string(raw) != f.Content {
				unchanged = false
			}
		case isStatus(resp, http.StatusNotFound):
			action = gl.FileCreate
			unchanged = false
		default:
			return nil, false, fmt.Errorf(
				"%s: probe %s: %w",
				errCtx, f.Path, classify(resp, err),
			)
		}

		filePath := f.Path
		content := f.Content
		fileAction := action

		actions = append(
			actions,
			&gl.CommitActionOptions{
				Action:   &fileAction,
				FilePath: &filePath,
				Content:  &content,
			},
		)
	}

	return actions, unchanged, nil
}

// PublishChangeset materializes the changeset as a
// single commit on its branch, creating the branch from
// the base branch first when needed. A changeset whose
// files all match the branch content is reported
// unchanged and no commit is created.
func (p *Provider) PublishChangeset(
	ctx context.Context,
	cs git.Changeset,
) (git.ChangesetResult, error) {
	const errCtx = "publishing changeset"

	ref, err := p.ensureBranch(
		ctx, cs.Repo, cs.BaseBranch, cs.Branch,
	)
	if err != nil {
		return git.ChangesetResult{}, fmt.Errorf(
			"%s: %w", errCtx, err,
		)
	}

	actions, unchanged, err := p.changesetActions(
		ctx, cs,
	)
	if err != nil {
		return git.ChangesetResult{}, fmt.Errorf(
			"%s: %w", errCtx, err,
		)
	}

	if unchanged {
		slog.Info(
			"changeset already on branch",
			"branch", ref.Name,
			"digest", cs.Digest(),
		)

		return git.ChangesetResult{
			Ref:       ref,
			Unchanged: true,
		}, nil
	}

	commit, resp, err := p.client.Commits.CreateCommit(
		cs.Repo.String(),
		&gl.CreateCommitOptions{
			Branch:        &cs.Branch,
			CommitMessage: &cs.Message,
			AuthorName:    &cs.Author.Name,
			AuthorEmail:   &cs.Author.Email,
			Actions:       actions,
		},
		gl.WithContext(ctx),
	)
	if err != nil {
		return git.ChangesetResult{}, fmt.Errorf(
			"%s: commit: %w",
			errCtx, classify(resp, err),
		)
	}

	slog.Info(
		"published changeset",
		"branch", cs.Branch,
		"commit", commit.ID,
		"files", len(cs.Files),
	)

	return git.ChangesetResult{
		Ref: git.BranchRef{
			Name: cs.Branch,
			SHA:  commit.ID,
		},
	}, nil
}

// CreatePullRequest opens a merge request from the
// resolved head branch into the resolved base branch.
// A merge request that already exists for this source
// branch (HTTP 409) is reported through the result
// state rather than as an error.
func (p *Provider) CreatePullRequest(
	ctx context.Context,
	spec git.PullRequestSpec,
) (git.PullRequestResult, error) {
	const errCtx = "creating merge request"

	rp := spec.Resolve()

	title := rp.Title
	if rp.Draft && !strings.HasPrefix(title, draftPrefix) {
		title = draftPrefix + title
	}

	opts := gl.CreateMergeRequestOptions{
		Title:              &title,
		Description:        &rp.Description,
		SourceBranch:       &rp.Head,
		TargetBranch:       &rp.Base,
		AllowCollaboration: &rp.MaintainerCanModify,
	}

	if rp.Source != rp.Destination {
		project, resp, err := p.client.Projects.GetProject(
			rp.Destination.String(),
			nil,
			gl.WithContext(ctx),
		)
		if err != nil {
			return git.PullRequestResult{}, fmt.Errorf(
				"%s: target project %s: %w",
				errCtx,
				rp.Destination.String(),
				classify(resp, err),
			)
		}

		opts.TargetProjectID = &project.ID
	}

	created, resp, err := p.client.MergeRequests.CreateMergeRequest(
		rp.Source.String(),
		&opts,
		gl.WithContext(ctx),
	)
	if err == nil {
		slog.Info(
			"created merge request",
			"url", created.WebURL,
		)

		return git.PullRequestResult{
			State: git.PullRequestCreated,
			URL:   created.WebURL,
		}, nil
	}

	// HTTP 409: a merge request already exists for
	// this source branch.
	if isStatus(resp, http.StatusConflict) {
		slog.Info("reusing existing merge request")

		return git.PullRequestResult{
			State: git.PullRequestAlreadyExists,
		}, nil
	}

	logResponseBody(resp)

	return git.PullRequestResult{}, fmt.Errorf(
		"%s: %w", errCtx, classify(resp, err),
	)
}

// isStatus reports whether the response carries the
// given HTTP status code.
func isStatus(resp *gl.Response, code int) bool {
	return resp != nil && resp.StatusCode == code
}

// classify maps transport failures onto the shared
// sentinel errors so callers can test with errors.Is.
func classify(resp *gl.Response, err error) error {
	if resp == nil {
		return err
	}

	switch resp.StatusCode {
	case http.StatusUnauthorized,
		http.StatusForbidden:
		return fmt.Errorf(
			"%w: %v", git.ErrUnauthorized, err,
		)
	case http.StatusNotFound:
		return fmt.Errorf(
			"%w: %v", git.ErrNotFound, err,
		)
	default:
		return err
	}
}

// logResponseBody logs the raw response body for
// debugging.
func logResponseBody(resp *gl.Response) {
	if resp == nil || resp.Body == nil {
		return
	}

	defer resp.Body.Close() //nolint:errcheck

	rb, err := io.ReadAll(resp.Body)
	if err != nil {
		slog.Warn(
			"cannot read response body",
			"error", err,
		)

		return
	}

	slog.Warn("gitlab response", "body", string(rb))
}
