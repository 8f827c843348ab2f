// Package commitmsg generates and parses published file
// lists embedded in git commit messages.
package commitmsg

import (
	"log"
	"strings"
)

const (
	begin = "--- published files begin ---"
	end   = "--- published files end ---"
)

// ExtractPaths extracts the list of published file paths
// from a commit message delimited by begin/end markers.
func ExtractPaths(msg string) []string {
	var paths []string

	betweenMarkers := false

	for _, line := range strings.Split(msg, "\n") {
		switch line {
		case begin:
			betweenMarkers = true
		case end:
			betweenMarkers = false
		default:
			if betweenMarkers {
				paths = append(paths, line)
			}
		}
	}

	if betweenMarkers {
		log.Print("unable to find end marker in commit message")

		return nil
	}

	return paths
}

// Generate produces a commit message section containing the
// given list of published file paths between begin/end
// markers.
func Generate(paths []string) string {
	var sb strings.Builder

	sb.WriteByte('\n')
	sb.WriteString(begin)
	sb.WriteByte('\n')

	for _, p := range paths {
		sb.WriteString(p)
		sb.WriteByte('\n')
	}

	sb.WriteString(end)
	sb.WriteByte('\n')

	return sb.String()
}
