// Package gitlab implements a git.Host that publishes changesets as commit
// actions and opens merge requests on a GitLab instance. Files are probed on
// the target branch to choose between create and update actions; a changeset
// whose files all match the branch is reported unchanged without committing.
// Cross-project merge requests address the target project by ID. Draft maps
// onto GitLab's "Draft:" title convention.
package gitlab
