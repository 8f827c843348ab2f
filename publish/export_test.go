package publish

// Exported aliases for testing internal helpers from
// the publish_test package.

// DefaultSpecForTest exposes defaultSpec.
var DefaultSpecForTest = defaultSpec

// ResolveFilesForTest exposes resolveFiles.
var ResolveFilesForTest = resolveFiles

// RequestFileEntry is an alias for requestFileEntry.
type RequestFileEntry = requestFileEntry
