package bitbucket

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	json "github.com/goccy/go-json"

	"github.com/byte4ever/pr_publisher/git"
)

const (
	defaultBaseURL = "https://api.bitbucket.org/2.0"

	contentTypeJSON = "application/json; charset=utf-8"
	contentTypeForm = "application/x-www-form-urlencoded"
)

// srcFormFields are the metadata field names of the src
// commit endpoint. File paths share the form namespace
// with them, so a changeset cannot use one as a path.
var srcFormFields = map[string]bool{
	"message": true,
	"branch":  true,
	"author":  true,
	"parents": true,
	"files":   true,
}

// Config holds the settings needed to create a
// Bitbucket Cloud publishing provider.
type Config struct {
	// BaseURL is the REST API root. Leave empty for
	// https://api.bitbucket.org/2.0.
	BaseURL string
	// User is the Bitbucket username.
	User string
	// AppPassword is an app password with repository
	// and pull request write scopes.
	AppPassword string
}

// Provider publishes changesets and pull requests on
// Bitbucket Cloud.
//
// Pattern: Strategy -- implements git.Host.
type Provider struct {
	baseURL     string
	user        string
	appPassword string
}

type branchTarget struct {
	Hash string `json:"hash,omitempty"`
}

type branch struct {
	Name   string       `json:"name,omitempty"`
	Target branchTarget `json:"target"`
}

type prBranch struct {
	Name string `json:"name,omitempty"`
}

type prRepository struct {
	FullName string `json:"full_name,omitempty"`
}

type prEndpoint struct {
	Branch     prBranch      `json:"branch"`
	Repository *prRepository `json:"repository,omitempty"`
}

type pullrequest struct {
	Title       string     `json:"title,omitempty"`
	Description string     `json:"description,omitempty"`
	Draft       bool       `json:"draft,omitempty"`
	Source      prEndpoint `json:"source"`
	Destination prEndpoint `json:"destination"`
}

type link struct {
	Href string `json:"href,omitempty"`
}

type prLinks struct {
	HTML link `json:"html"`
}

type prResponse struct {
	ID    int     `json:"id,omitempty"`
	Links prLinks `json:"links"`
}

// NewProvider validates cfg and returns a Provider
// ready to publish.
func NewProvider(cfg Config) (*Provider, error) {
	const errCtx = "creating bitbucket provider"

	if cfg.User == "" {
		return nil, fmt.Errorf(
			"%s: user must be set", errCtx,
		)
	}

	if cfg.AppPassword == "" {
		return nil, fmt.Errorf(
			"%s: app password must be set", errCtx,
		)
	}

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}

	return &Provider{
		baseURL:     strings.TrimSuffix(baseURL, "/"),
		user:        cfg.User,
		appPassword: cfg.AppPassword,
	}, nil
}

// repoURL builds an API URL under the repository root.
func (p *Provider) repoURL(
	repo git.Repo,
	parts ...string,
) string {
	u := p.baseURL + "/repositories/" +
		repo.Owner + "/" + repo.Name

	for _, part := range parts {
		u += "/" + part
	}

	return u
}

// do sends an authenticated request and returns the
// status code with the drained response body.
func (p *Provider) do(
	ctx context.Context,
	method string,
	rawURL string,
	contentType string,
	payload io.Reader,
) (int, []byte, error) {
	req, err := http.NewRequestWithContext(
		ctx, method, rawURL, payload,
	)
	if err != nil {
		return 0, nil, fmt.Errorf(
			"build request: %w", err,
		)
	}

	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	req.SetBasicAuth(p.user, p.appPassword)

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf(
			"send request: %w", err,
		)
	}

	defer resp.Body.Close() //nolint:errcheck

	rb, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, fmt.Errorf(
			"read response: %w", err,
		)
	}

	return resp.StatusCode, rb, nil
}

// statusError maps a non-success status onto the shared
// git error classes.
func statusError(status int, body []byte) error {
	switch status {
	case http.StatusUnauthorized,
		http.StatusForbidden:
		return fmt.Errorf(
			"%w: status %d",
			git.ErrUnauthorized, status,
		)
	case http.StatusNotFound:
		return fmt.Errorf(
			"%w: status %d",
			git.ErrNotFound, status,
		)
	default:
		return fmt.Errorf(
			"unexpected status %d: %s",
			status, body,
		)
	}
}

// getBranch reads the branch tip. The status code is
// returned alongside the error so callers can branch on
// not-found.
func (p *Provider) getBranch(
	ctx context.Context,
	repo git.Repo,
	name string,
) (git.BranchRef, int, error) {
	u := p.repoURL(
		repo, "refs", "branches",
		url.PathEscape(name),
	)

	status, body, err := p.do(
		ctx, http.MethodGet, u, "", nil,
	)
	if err != nil {
		return git.BranchRef{}, 0, err
	}

	if status != http.StatusOK {
		return git.BranchRef{}, status,
			statusError(status, body)
	}

	var br branch

	if err := json.Unmarshal(body, &br); err != nil {
		return git.BranchRef{}, status, fmt.Errorf(
			"decode branch: %w", err,
		)
	}

	return git.BranchRef{
		Name: name,
		SHA:  br.Target.Hash,
	}, status, nil
}

// ensureBranch returns the tip of branchName, creating
// the branch from baseBranch when it does not exist
// yet.
func (p *Provider) ensureBranch(
	ctx context.Context,
	repo git.Repo,
	baseBranch string,
	branchName string,
) (git.BranchRef, error) {
	const errCtx = "resolving branch"

	ref, status, err := p.getBranch(
		ctx, repo, branchName,
	)
	if err == nil {
		return ref, nil
	}

	if status != http.StatusNotFound {
		return git.BranchRef{}, fmt.Errorf(
			"%s: %w", errCtx, err,
		)
	}

	base, _, err := p.getBranch(
		ctx, repo, baseBranch,
	)
	if err != nil {
		return git.BranchRef{}, fmt.Errorf(
			"%s: base branch %s: %w",
			errCtx, baseBranch, err,
		)
	}

	payload, err := json.Marshal(&branch{
		Name:   branchName,
		Target: branchTarget{Hash: base.SHA},
	})
	if err != nil {
		return git.BranchRef{}, fmt.Errorf(
			"%s: marshal request: %w", errCtx, err,
		)
	}

	u := p.repoURL(repo, "refs", "branches")

	status, body, err := p.do(
		ctx, http.MethodPost, u,
		contentTypeJSON,
		bytes.NewBuffer(payload),
	)
	if err != nil {
		return git.BranchRef{}, fmt.Errorf(
			"%s: %w", errCtx, err,
		)
	}

	if status != http.StatusCreated {
		return git.BranchRef{}, fmt.Errorf(
			"%s: create branch %s: %w",
			errCtx, branchName,
			statusError(status, body),
		)
	}

	var created branch

	if err := json.Unmarshal(
		body, &created,
	); err != nil {
		return git.BranchRef{}, fmt.Errorf(
			"%s: decode branch: %w", errCtx, err,
		)
	}

	slog.Info(
		"created branch",
		"branch", branchName,
		"from", baseBranch,
		"sha", created.Target.Hash,
	)

	return git.BranchRef{
		Name: branchName,
		SHA:  created.Target.Hash,
	}, nil
}

// changesetOnBranch reports whether every changeset
// file already has its target content at the given
// commit.
func (p *Provider) changesetOnBranch(
	ctx context.Context,
	cs git.Changeset,
	commit string,
) (bool, error) {
	for _, f := range cs.Files {
		u := p.repoURL(
			cs.Repo, "src", commit, f.Path,
		)

		status, body, err := p.do(
			ctx, http.MethodGet, u, "", nil,
		)
		if err != nil {
			return false, fmt.Errorf(
				"probe %s: %w", f.Path, err,
			)
		}

		if status == http.StatusNotFound {
			return false, nil
		}

		if status != http.StatusOK {
			return false, fmt.Errorf(
				"probe %s: %w",
				f.Path, statusError(status, body),
			)
		}

		if string(body) != f.Content {
			return false, nil
		}
	}

	return true, nil
}

// PublishChangeset commits the changeset files onto its
// branch through the src endpoint, creating the branch
// from the base branch first when needed. A changeset
// whose files all match the branch tip is reported
// unchanged and nothing is committed.
func (p *Provider) PublishChangeset(
	ctx context.Context,
	cs git.Changeset,
) (git.ChangesetResult, error) {
	const errCtx = "publishing changeset"

	for _, f := range cs.Files {
		if srcFormFields[f.Path] {
			return git.ChangesetResult{}, fmt.Errorf(
				"%s: file path %q collides with a src commit field",
				errCtx, f.Path,
			)
		}
	}

	ref, err := p.ensureBranch(
		ctx, cs.Repo, cs.BaseBranch, cs.Branch,
	)
	if err != nil {
		return git.ChangesetResult{}, fmt.Errorf(
			"%s: %w", errCtx, err,
		)
	}

	onBranch, err := p.changesetOnBranch(
		ctx, cs, ref.SHA,
	)
	if err != nil {
		return git.ChangesetResult{}, fmt.Errorf(
			"%s: %w", errCtx, err,
		)
	}

	if onBranch {
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

	form := url.Values{}
	form.Set("message", cs.Message)
	form.Set("branch", cs.Branch)
	form.Set(
		"author",
		cs.Author.Name+" <"+cs.Author.Email+">",
	)

	for _, f := range cs.Files {
		form.Set(f.Path, f.Content)
	}

	u := p.repoURL(cs.Repo, "src")

	status, body, err := p.do(
		ctx, http.MethodPost, u,
		contentTypeForm,
		strings.NewReader(form.Encode()),
	)
	if err != nil {
		return git.ChangesetResult{}, fmt.Errorf(
			"%s: %w", errCtx, err,
		)
	}

	if status != http.StatusCreated {
		return git.ChangesetResult{}, fmt.Errorf(
			"%s: commit: %w",
			errCtx, statusError(status, body),
		)
	}

	// The src endpoint returns no commit object;
	// re-read the branch for the new tip.
	updated, _, err := p.getBranch(
		ctx, cs.Repo, cs.Branch,
	)
	if err != nil {
		return git.ChangesetResult{}, fmt.Errorf(
			"%s: new tip: %w", errCtx, err,
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

// CreatePullRequest opens the pull request described by
// spec. A pull request that already exists for this
// branch pair (HTTP 409) is reported through the result
// state rather than as an error.
func (p *Provider) CreatePullRequest(
	ctx context.Context,
	spec git.PullRequestSpec,
) (git.PullRequestResult, error) {
	const errCtx = "creating pull request"

	rp := spec.Resolve()

	pr := pullrequest{
		Title:       rp.Title,
		Description: rp.Description,
		Draft:       rp.Draft,
		Source: prEndpoint{
			Branch: prBranch{Name: rp.Head},
		},
		Destination: prEndpoint{
			Branch: prBranch{Name: rp.Base},
		},
	}

	if rp.Source != rp.Destination {
		pr.Source.Repository = &prRepository{
			FullName: rp.Source.String(),
		}
	}

	payload, err := json.Marshal(&pr)
	if err != nil {
		return git.PullRequestResult{}, fmt.Errorf(
			"%s: marshal request: %w", errCtx, err,
		)
	}

	u := p.repoURL(rp.Destination, "pullrequests")

	status, body, err := p.do(
		ctx, http.MethodPost, u,
		contentTypeJSON,
		bytes.NewBuffer(payload),
	)
	if err != nil {
		return git.PullRequestResult{}, fmt.Errorf(
			"%s: %w", errCtx, err,
		)
	}

	// 201 Created: the PR was created.
	if status == http.StatusCreated {
		var created prResponse

		if err := json.Unmarshal(
			body, &created,
		); err != nil {
			return git.PullRequestResult{},
				fmt.Errorf(
					"%s: decode response: %w",
					errCtx, err,
				)
		}

		slog.Info(
			"created pull request",
			"url", created.Links.HTML.Href,
		)

		return git.PullRequestResult{
			State: git.PullRequestCreated,
			URL:   created.Links.HTML.Href,
		}, nil
	}

	// 409 Conflict: PR already exists for this branch
	// pair.
	if status == http.StatusConflict {
		slog.Info("reusing existing pull request")

		return git.PullRequestResult{
			State: git.PullRequestAlreadyExists,
		}, nil
	}

	slog.Warn(
		"bitbucket response",
		"status", status,
		"body", string(body),
	)

	return git.PullRequestResult{}, fmt.Errorf(
		"%s: %w", errCtx, statusError(status, body),
	)
}
