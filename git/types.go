package git

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"
)

// Repo identifies a remote repository.
type Repo struct {
	// Owner is the user or organisation that owns the
	// repository.
	Owner string
	// Name is the repository name (without owner).
	Name string
}

// String returns the "owner/name" form.
func (r Repo) String() string {
	return r.Owner + "/" + r.Name
}

// BranchRef is a branch name together with the commit
// it points at. It is a transient view; the remote
// service owns the ref.
type BranchRef struct {
	// Name is the branch name without the refs/heads/
	// prefix.
	Name string
	// SHA is the commit the branch points at.
	SHA string
}

// FileEntry is one file of a changeset. Paths are
// slash separated and unique within one changeset;
// entry order carries no meaning.
type FileEntry struct {
	Path    string
	Content string
}

// TreeObject is the content-addressed identifier of a
// tree created on the remote service. Never mutated
// once created.
type TreeObject struct {
	SHA string
}

// Author identifies the author recorded on a published
// commit.
type Author struct {
	Name  string
	Email string
}

// Changeset is the commit half of a publish request:
// the files to write and the metadata of the commit
// that will carry them.
type Changeset struct {
	// Repo is the repository receiving the commit.
	Repo Repo

	// BaseBranch seeds Branch when Branch does not
	// exist yet.
	BaseBranch string

	// Branch receives the published commit.
	Branch string

	// Files are written create-or-overwrite; paths not
	// listed are inherited unchanged from the branch
	// tip.
	Files []FileEntry

	// Author is recorded on the created commit.
	Author Author

	// Message is the commit message.
	Message string
}

// Digest returns a stable sha256 hex digest over the
// changeset files. Entries are sorted by path first so
// insertion order does not matter.
func (c Changeset) Digest() string {
	entries := make([]FileEntry, len(c.Files))
	copy(entries, c.Files)

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Path < entries[j].Path
	})

	var sb strings.Builder

	for _, e := range entries {
		sb.WriteString(e.Path)
		sb.WriteByte(0)
		sb.WriteString(e.Content)
		sb.WriteByte(0)
	}

	sum := sha256.Sum256([]byte(sb.String()))

	return hex.EncodeToString(sum[:])
}

// Paths returns the file paths of the changeset in
// sorted order.
func (c Changeset) Paths() []string {
	paths := make([]string, 0, len(c.Files))

	for _, f := range c.Files {
		paths = append(paths, f.Path)
	}

	sort.Strings(paths)

	return paths
}

// ChangesetResult reports where a published changeset
// ended up.
type ChangesetResult struct {
	// Ref is the branch after publishing.
	Ref BranchRef

	// Unchanged is true when the changeset files match
	// the branch tip exactly; no commit was created in
	// that case.
	Unchanged bool
}
