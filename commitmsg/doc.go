// Package commitmsg generates and parses published file lists embedded in
// git commit messages. Paths are encoded between marker lines so that later
// runs and review tooling can detect which files a publishing commit carries.
package commitmsg
