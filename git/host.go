package git

import "context"

// Pattern: Strategy -- swap git hosting platform
// without changing publish logic.

// Host publishes changesets and opens pull requests on
// a git hosting platform.
type Host interface {
	// PublishChangeset makes sure the changeset branch
	// exists, commits the changeset files onto it, and
	// advances the branch with a non-force update. A
	// changeset whose files already match the branch
	// tip publishes nothing and reports Unchanged.
	PublishChangeset(
		ctx context.Context,
		cs Changeset,
	) (ChangesetResult, error)

	// CreatePullRequest opens the pull request
	// described by spec. A pull request that already
	// exists for the same head/base pair is not an
	// error; it is reported through the result state.
	CreatePullRequest(
		ctx context.Context,
		spec PullRequestSpec,
	) (PullRequestResult, error)
}

// HostFuncs adapts plain functions to the Host
// interface. When the pull request description is
// empty the title is used as description.
type HostFuncs struct {
	PublishFunc func(
		ctx context.Context,
		cs Changeset,
	) (ChangesetResult, error)

	PullRequestFunc func(
		ctx context.Context,
		spec PullRequestSpec,
	) (PullRequestResult, error)
}

// PublishChangeset delegates to PublishFunc.
func (f HostFuncs) PublishChangeset(
	ctx context.Context,
	cs Changeset,
) (ChangesetResult, error) {
	return f.PublishFunc(ctx, cs)
}

// CreatePullRequest delegates to PullRequestFunc. If
// the description is empty, the title is substituted.
func (f HostFuncs) CreatePullRequest(
	ctx context.Context,
	spec PullRequestSpec,
) (PullRequestResult, error) {
	if spec.Description == "" {
		spec.Description = spec.Title
	}

	return f.PullRequestFunc(ctx, spec)
}
