package stamper

import (
	"fmt"
	"os"
	"strings"

	"github.com/valyala/fasttemplate"

	"github.com/byte4ever/pr_publisher/git"
)

const (
	startTag = "{{"
	endTag   = "}}"
)

// LoadStamps reads stamp files and merges them into a
// single map. Each line is "KEY VALUE" with the first
// space as delimiter. Lines without a space are silently
// skipped; later files override earlier ones.
func LoadStamps(
	infoFiles []string,
) (map[string]interface{}, error) {
	const errCtx = "loading stamps"

	stamps := make(map[string]interface{})

	for _, sf := range infoFiles {
		content, err := os.ReadFile(sf) //nolint:gosec // paths from CLI flags
		if err != nil {
			return nil, fmt.Errorf(
				"%s: %w", errCtx, err,
			)
		}

		for _, line := range strings.Split(
			string(content), "\n",
		) {
			parts := strings.SplitN(line, " ", 2)
			if len(parts) == 2 {
				stamps[parts[0]] = parts[1]
			}
		}
	}

	return stamps, nil
}

// Expand substitutes {{VAR}} placeholders in format.
// Unknown variables are preserved as-is.
func Expand(
	format string,
	vars map[string]interface{},
) string {
	return fasttemplate.ExecuteStringStd(
		format, startTag, endTag, vars,
	)
}

// ExpandChangeset returns a copy of cs with every
// templated field expanded: branch names, message, file
// paths and file contents.
func ExpandChangeset(
	cs git.Changeset,
	vars map[string]interface{},
) git.Changeset {
	out := cs

	out.BaseBranch = Expand(cs.BaseBranch, vars)
	out.Branch = Expand(cs.Branch, vars)
	out.Message = Expand(cs.Message, vars)

	out.Files = make([]git.FileEntry, len(cs.Files))

	for i, f := range cs.Files {
		out.Files[i] = git.FileEntry{
			Path:    Expand(f.Path, vars),
			Content: Expand(f.Content, vars),
		}
	}

	return out
}

// ExpandPullRequest returns a copy of spec with the
// branch names, title and description expanded.
func ExpandPullRequest(
	spec git.PullRequestSpec,
	vars map[string]interface{},
) git.PullRequestSpec {
	out := spec

	out.SourceBranch = Expand(spec.SourceBranch, vars)
	out.DestinationBranch = Expand(
		spec.DestinationBranch, vars,
	)
	out.Title = Expand(spec.Title, vars)
	out.Description = Expand(spec.Description, vars)

	return out
}
