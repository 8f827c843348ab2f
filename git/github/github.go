package github

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	gh "github.com/google/go-github/v68/github"
	"golang.org/x/oauth2"

	"github.com/byte4ever/pr_publisher/git"
)

// Git tree entry constants for regular file blobs.
const (
	treeModeFile = "100644"
	treeTypeBlob = "blob"
)

// Config holds the settings needed to create a GitHub
// publishing provider.
type Config struct {
	// AccessToken is a personal access token or
	// GitHub App token used for authentication.
	AccessToken string

	// EnterpriseHost is an optional GitHub Enterprise
	// hostname (e.g. "git.corp.example.com"). Leave
	// empty for github.com.
	EnterpriseHost string

	// HTTPClient is an optional base client the
	// authenticated transport wraps. Tests inject a
	// recorder or a fake-server client here.
	HTTPClient *http.Client
}

// Provider publishes changesets and creates pull
// requests on GitHub. All fields are set at
// construction time; the provider holds no mutable
// state between calls.
//
// Pattern: Strategy -- implements git.Host.
type Provider struct {
	client *gh.Client
}

// NewProvider validates cfg and returns a Provider
// ready to publish.
func NewProvider(cfg Config) (*Provider, error) {
	const errCtx = "creating github provider"

	if cfg.AccessToken == "" {
		return nil, fmt.Errorf(
			"%s: access token must be set", errCtx,
		)
	}

	client := gh.NewClient(oauth2Client(
		cfg.AccessToken, cfg.HTTPClient,
	))

	if cfg.EnterpriseHost != "" {
		baseURL := "https://" +
			cfg.EnterpriseHost + "/api/v3/"
		uploadURL := "https://" +
			cfg.EnterpriseHost + "/api/uploads/"

		var err error

		client, err = client.WithEnterpriseURLs(
			baseURL, uploadURL,
		)
		if err != nil {
			return nil, fmt.Errorf(
				"%s: enterprise urls: %w",
				errCtx, err,
			)
		}
	}

	return &Provider{client: client}, nil
}

// oauth2Client builds a token-authenticated HTTP
// client. A non-nil base becomes the underlying
// transport.
func oauth2Client(
	token string,
	base *http.Client,
) *http.Client {
	ctx := context.Background()

	if base != nil {
		ctx = context.WithValue(
			ctx, oauth2.HTTPClient, base,
		)
	}

	return oauth2.NewClient(
		ctx,
		oauth2.StaticTokenSource(
			&oauth2.Token{AccessToken: token},
		),
	)
}

// ResolveOrCreateBranch returns the tip of branch,
// creating it from baseBranch's current tip when it
// does not exist yet. Lookup failures other than
// not-found are fatal; verify credentials and
// permissions when they occur.
func (p *Provider) ResolveOrCreateBranch(
	ctx context.Context,
	repo git.Repo,
	baseBranch string,
	branch string,
) (git.BranchRef, error) {
	const errCtx = "resolving branch"

	ref, resp, err := p.client.Git.GetRef(
		ctx, repo.Owner, repo.Name,
		headsRef(branch),
	)
	if err == nil {
		return git.BranchRef{
			Name: branch,
			SHA:  ref.GetObject().GetSHA(),
		}, nil
	}

	if !isStatus(resp, http.StatusNotFound) {
		return git.BranchRef{}, fmt.Errorf(
			"%s: %w", errCtx, classify(resp, err),
		)
	}

	baseRef, resp, err := p.client.Git.GetRef(
		ctx, repo.Owner, repo.Name,
		headsRef(baseBranch),
	)
	if err != nil {
		return git.BranchRef{}, fmt.Errorf(
			"%s: base branch %s: %w",
			errCtx, baseBranch, classify(resp, err),
		)
	}

	sha := baseRef.GetObject().GetSHA()
	refName := headsRef(branch)

	created, resp, err := p.client.Git.CreateRef(
		ctx, repo.Owner, repo.Name,
		&gh.Reference{
			Ref: &refName,
			Object: &gh.GitObject{
				SHA: &sha,
			},
		},
	)
	if err != nil {
		// HTTP 422: the branch appeared between the
		// lookup and the create.
		if isStatus(
			resp, http.StatusUnprocessableEntity,
		) {
			return git.BranchRef{}, fmt.Errorf(
				"%s: create branch %s: %w: %v",
				errCtx, branch,
				git.ErrBranchConflict, err,
			)
		}

		return git.BranchRef{}, fmt.Errorf(
			"%s: create branch %s: %w",
			errCtx, branch, classify(resp, err),
		)
	}

	slog.Info(
		"created branch",
		"branch", branch,
		"from", baseBranch,
		"sha", created.GetObject().GetSHA(),
	)

	return git.BranchRef{
		Name: branch,
		SHA:  created.GetObject().GetSHA(),
	}, nil
}

// BuildTree creates a tree holding the changeset files
// layered on the base tree. Every entry is submitted
// as a regular-file blob; paths not listed are
// inherited unchanged from the base tree.
func (p *Provider) BuildTree(
	ctx context.Context,
	repo git.Repo,
	baseTreeSHA string,
	files []git.FileEntry,
) (git.TreeObject, error) {
	const errCtx = "building tree"

	entries := make([]*gh.TreeEntry, 0, len(files))

	for _, f := range files {
		entries = append(entries, &gh.TreeEntry{
			Path:    gh.String(f.Path),
			Mode:    gh.String(treeModeFile),
			Type:    gh.String(treeTypeBlob),
			Content: gh.String(f.Content),
		})
	}

	tree, resp, err := p.client.Git.CreateTree(
		ctx, repo.Owner, repo.Name,
		baseTreeSHA, entries,
	)
	if err != nil {
		return git.TreeObject{}, fmt.Errorf(
			"%s: %w", errCtx, classify(resp, err),
		)
	}

	return git.TreeObject{SHA: tree.GetSHA()}, nil
}

// PublishCommit creates a commit carrying treeSHA on
// top of the branch tip and advances the branch to it
// with a non-force update. The parent commit is
// re-read from the remote rather than trusted from the
// caller; a branch advanced outside this process is
// then rejected at update time and surfaced as
// git.ErrBranchConflict.
func (p *Provider) PublishCommit(
	ctx context.Context,
	repo git.Repo,
	ref git.BranchRef,
	treeSHA string,
	author git.Author,
	message string,
) (git.BranchRef, error) {
	const errCtx = "publishing commit"

	parent, resp, err := p.client.Git.GetCommit(
		ctx, repo.Owner, repo.Name, ref.SHA,
	)
	if err != nil {
		return git.BranchRef{}, fmt.Errorf(
			"%s: parent %s: %w",
			errCtx, ref.SHA, classify(resp, err),
		)
	}

	now := gh.Timestamp{Time: time.Now()}

	commit := &gh.Commit{
		Message: &message,
		Tree:    &gh.Tree{SHA: &treeSHA},
		Parents: []*gh.Commit{
			{SHA: parent.SHA},
		},
		Author: &gh.CommitAuthor{
			Name:  &author.Name,
			Email: &author.Email,
			Date:  &now,
		},
	}

	created, resp, err := p.client.Git.CreateCommit(
		ctx, repo.Owner, repo.Name, commit, nil,
	)
	if err != nil {
		return git.BranchRef{}, fmt.Errorf(
			"%s: create commit: %w",
			errCtx, classify(resp, err),
		)
	}

	refName := headsRef(ref.Name)

	updated, resp, err := p.client.Git.UpdateRef(
		ctx, repo.Owner, repo.Name,
		&gh.Reference{
			Ref: &refName,
			Object: &gh.GitObject{
				SHA: created.SHA,
			},
		},
		false,
	)
	if err != nil {
		// HTTP 422: non-force update rejected, the
		// branch moved since the parent was read.
		if isStatus(
			resp, http.StatusUnprocessableEntity,
		) {
			return git.BranchRef{}, fmt.Errorf(
				"%s: advance %s: %w: %v",
				errCtx, ref.Name,
				git.ErrBranchConflict, err,
			)
		}

		return git.BranchRef{}, fmt.Errorf(
			"%s: advance %s: %w",
			errCtx, ref.Name, classify(resp, err),
		)
	}

	return git.BranchRef{
		Name: ref.Name,
		SHA:  updated.GetObject().GetSHA(),
	}, nil
}

// PublishChangeset runs the full pipeline: resolve or
// create the branch, build the tree, create the commit,
// advance the branch. When the built tree equals the
// branch tip's tree the changeset is already on the
// branch; nothing is committed and the result reports
// Unchanged.
func (p *Provider) PublishChangeset(
	ctx context.Context,
	cs git.Changeset,
) (git.ChangesetResult, error) {
	const errCtx = "publishing changeset"

	ref, err := p.ResolveOrCreateBranch(
		ctx, cs.Repo, cs.BaseBranch, cs.Branch,
	)
	if err != nil {
		return git.ChangesetResult{}, fmt.Errorf(
			"%s: %w", errCtx, err,
		)
	}

	tip, resp, err := p.client.Git.GetCommit(
		ctx, cs.Repo.Owner, cs.Repo.Name, ref.SHA,
	)
	if err != nil {
		return git.ChangesetResult{}, fmt.Errorf(
			"%s: tip %s: %w",
			errCtx, ref.SHA, classify(resp, err),
		)
	}

	tree, err := p.BuildTree(
		ctx, cs.Repo,
		tip.GetTree().GetSHA(), cs.Files,
	)
	if err != nil {
		return git.ChangesetResult{}, fmt.Errorf(
			"%s: %w", errCtx, err,
		)
	}

	if tree.SHA == tip.GetTree().GetSHA() {
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

	updated, err := p.PublishCommit(
		ctx, cs.Repo, ref,
		tree.SHA, cs.Author, cs.Message,
	)
	if err != nil {
		return git.ChangesetResult{}, fmt.Errorf(
			"%s: %w", errCtx, err,
		)
	}

	slog.Info(
		"published changeset",
		"branch", updated.Name,
		"commit", updated.SHA,
		"files", len(cs.Files),
	)

	return git.ChangesetResult{Ref: updated}, nil
}

// CreatePullRequest opens the pull request described
// by spec. If a PR for this head/base pair already
// exists (HTTP 422) the result reports AlreadyExists;
// the commit published beforehand has already updated
// it.
func (p *Provider) CreatePullRequest(
	ctx context.Context,
	spec git.PullRequestSpec,
) (git.PullRequestResult, error) {
	const errCtx = "creating pull request"

	rp := spec.Resolve()

	pr := &gh.NewPullRequest{
		Title:               &rp.Title,
		Head:                &rp.Head,
		Base:                &rp.QualifiedBase,
		Body:                &rp.Description,
		MaintainerCanModify: &rp.MaintainerCanModify,
		Draft:               &rp.Draft,
	}

	created, resp, err := p.client.PullRequests.Create(
		ctx,
		rp.Destination.Owner,
		rp.Destination.Name,
		pr,
	)
	if err == nil {
		slog.Info(
			"created pull request",
			"url", created.GetHTMLURL(),
		)

		return git.PullRequestResult{
			State: git.PullRequestCreated,
			URL:   created.GetHTMLURL(),
		}, nil
	}

	// HTTP 422: PR already exists for this head/base
	// pair.
	if isStatus(
		resp, http.StatusUnprocessableEntity,
	) {
		slog.Info("reusing existing pull request")

		return git.PullRequestResult{
			State: git.PullRequestAlreadyExists,
		}, nil
	}

	logResponseBody(resp)

	return git.PullRequestResult{}, fmt.Errorf(
		"%s: %w", errCtx, classify(resp, err),
	)
}

// headsRef returns the fully qualified refs/heads/
// form of a branch name.
func headsRef(branch string) string {
	return "refs/heads/" + branch
}

// isStatus reports whether resp carries the given
// HTTP status code.
func isStatus(resp *gh.Response, code int) bool {
	return resp != nil && resp.StatusCode == code
}

// classify maps a failed GitHub call onto the shared
// git error classes. The raw error stays in the
// message for diagnosis.
func classify(resp *gh.Response, err error) error {
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
func logResponseBody(resp *gh.Response) {
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

	slog.Warn("github response", "body", string(rb))
}
