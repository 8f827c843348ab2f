// Package git defines the data model of a publish operation and a strategy
// interface for carrying it out on a git hosting platform.
//
// A Changeset is a set of file entries plus the commit metadata that will
// carry them onto a branch. A PullRequestSpec describes the pull request to
// open once the changeset is published. The Host interface abstracts both
// steps; implementations exist for GitHub, GitLab, and Bitbucket Cloud in
// sub-packages. HostFuncs is a convenience adapter that lets plain functions
// satisfy the interface.
package git
