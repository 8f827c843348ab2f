package git

// PullRequestSpec describes the pull request to open
// once a changeset is published. Destination fields
// left empty are filled in by Resolve.
type PullRequestSpec struct {
	// SourceOwner and SourceRepo identify the
	// repository holding the source branch.
	SourceOwner string
	SourceRepo  string

	// SourceBranch is the head branch of the pull
	// request.
	SourceBranch string

	// DestinationOwner defaults to SourceOwner when
	// empty. A differing owner addresses a cross-fork
	// pull request.
	DestinationOwner string

	// DestinationRepo defaults to SourceRepo when
	// empty.
	DestinationRepo string

	// DestinationBranch is the base branch of the pull
	// request.
	DestinationBranch string

	// Title and Description of the pull request.
	Title       string
	Description string

	// MaintainerCanModify lets maintainers of the
	// destination repository push to the source
	// branch.
	MaintainerCanModify bool

	// Draft marks the pull request not yet ready for
	// review.
	Draft bool
}

// ResolvedPullRequest is a PullRequestSpec after
// destination defaulting. This is what goes on the
// wire.
type ResolvedPullRequest struct {
	// Source is the repository holding Head.
	Source Repo

	// Destination is the repository the pull request
	// targets.
	Destination Repo

	// Head is the source branch.
	Head string

	// Base is the destination branch, without owner
	// qualification.
	Base string

	// QualifiedBase equals Base when source and
	// destination owners match. Otherwise it is
	// "sourceOwner:base", the cross-fork addressing
	// convention.
	QualifiedBase string

	Title               string
	Description         string
	MaintainerCanModify bool
	Draft               bool
}

// Resolve applies destination defaulting: owner and
// repo fall back to the source ones, and the base
// branch is owner-qualified when the destination owner
// differs from the source owner.
func (s PullRequestSpec) Resolve() ResolvedPullRequest {
	owner := s.DestinationOwner
	if owner == "" {
		owner = s.SourceOwner
	}

	repo := s.DestinationRepo
	if repo == "" {
		repo = s.SourceRepo
	}

	qualified := s.DestinationBranch
	if owner != s.SourceOwner {
		qualified = s.SourceOwner + ":" +
			s.DestinationBranch
	}

	return ResolvedPullRequest{
		Source: Repo{
			Owner: s.SourceOwner,
			Name:  s.SourceRepo,
		},
		Destination: Repo{
			Owner: owner,
			Name:  repo,
		},
		Head:                s.SourceBranch,
		Base:                s.DestinationBranch,
		QualifiedBase:       qualified,
		Title:               s.Title,
		Description:         s.Description,
		MaintainerCanModify: s.MaintainerCanModify,
		Draft:               s.Draft,
	}
}

// PullRequestState is the terminal state of a pull
// request creation attempt. Failed attempts are
// reported as errors, not states.
type PullRequestState int

const (
	// PullRequestCreated means a new pull request was
	// opened; the result carries its URL.
	PullRequestCreated PullRequestState = iota

	// PullRequestAlreadyExists means a pull request
	// for this head/base pair already existed. The
	// commit published beforehand updated it; the
	// remote does not disclose its URL on this path.
	PullRequestAlreadyExists
)

// String returns the state name for logging.
func (s PullRequestState) String() string {
	switch s {
	case PullRequestCreated:
		return "created"
	case PullRequestAlreadyExists:
		return "already-exists"
	default:
		return "unknown"
	}
}

// PullRequestResult reports the outcome of a creation
// attempt.
type PullRequestResult struct {
	State PullRequestState

	// URL of the created pull request. Empty when
	// State is PullRequestAlreadyExists.
	URL string
}
