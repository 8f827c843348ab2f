// Package main provides the stamper CLI that reads stamp
// info files and substitutes {{VAR}} placeholders in a
// format string or file.
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/byte4ever/pr_publisher/stamper"
)

type arrayFlags []string

func (af *arrayFlags) String() string {
	return ""
}

func (af *arrayFlags) Set(value string) error {
	*af = append(*af, value)
	return nil
}

func run() error {
	const errCtx = "stamper"

	var (
		stampInfoFiles arrayFlags
		setVars        arrayFlags
	)

	var (
		output     string
		format     string
		formatFile string
	)

	flag.Var(
		&stampInfoFiles,
		"stamp-info-file",
		"path to stamp info file (repeatable)",
	)

	flag.Var(
		&setVars,
		"set",
		"NAME=VALUE variable override (repeatable)",
	)

	flag.StringVar(
		&output, "output", "",
		"output file path (default: stdout)",
	)

	flag.StringVar(
		&formatFile, "format-file", "",
		"file containing stamp variable placeholders",
	)

	flag.StringVar(
		&format, "format", "",
		"format string containing stamp variables",
	)

	flag.Parse()

	if formatFile != "" && format != "" {
		return fmt.Errorf(
			"%s: only one of --format or"+
				" --format-file may be specified",
			errCtx,
		)
	}

	if formatFile != "" {
		content, err := os.ReadFile( //nolint:gosec // path from CLI flag
			formatFile,
		)
		if err != nil {
			return fmt.Errorf(
				"%s: reading format file: %w",
				errCtx, err,
			)
		}

		format = string(content)
	}

	vars, err := stamper.LoadStamps(stampInfoFiles)
	if err != nil {
		return fmt.Errorf("%s: %w", errCtx, err)
	}

	for _, pair := range setVars {
		name, value, ok := strings.Cut(pair, "=")
		if !ok {
			return fmt.Errorf(
				"%s: malformed pair %q", errCtx, pair,
			)
		}

		vars[name] = value
	}

	result := stamper.Expand(format, vars)

	if output != "" {
		err = os.WriteFile( //nolint:gosec // path from CLI flag
			output, []byte(result), 0o666,
		)
		if err != nil {
			return fmt.Errorf(
				"%s: writing output: %w",
				errCtx, err,
			)
		}

		return nil
	}

	_, err = os.Stdout.WriteString(result)
	if err != nil {
		return fmt.Errorf(
			"%s: writing to stdout: %w",
			errCtx, err,
		)
	}

	return nil
}

func main() {
	if err := run(); err != nil {
		slog.Error(err.Error())
		os.Exit(1)
	}
}
