// Package github implements a git.Host that publishes changesets and creates
// pull requests on GitHub (cloud or enterprise) through the Git Data API.
//
// A publish runs four remote stages in order: resolve or create the branch,
// build a tree layered on the branch tip, create a commit carrying the tree,
// and advance the branch ref without force. Each stage is exported on
// Provider so callers can drive them individually. Configure with a Config
// containing an access token; set EnterpriseHost for GitHub Enterprise
// installations.
package github
