// Package bitbucket implements a git.Host on the Bitbucket Cloud 2.0 REST
// API. Changesets are committed through the src endpoint, which takes the
// whole file set as one form-encoded request; branch tips are re-read after
// the commit because that endpoint returns no commit object. File paths that
// name one of the endpoint's own metadata fields are rejected. Files are probed
// on the branch tip first so a changeset whose files all match is reported
// unchanged without committing. MaintainerCanModify has no Bitbucket
// equivalent and is ignored.
package bitbucket
