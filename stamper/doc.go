// Package stamper reads build stamp files and substitutes double-brace
// {{VAR}} placeholders in strings. LoadStamps parses one or more KEY VALUE
// status files into a variable map; Expand substitutes into a single string,
// while ExpandChangeset and ExpandPullRequest stamp every templated field of
// the publishing inputs.
package stamper
