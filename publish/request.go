package publish

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	json "github.com/goccy/go-json"
	yaml "github.com/goccy/go-yaml"

	"github.com/byte4ever/pr_publisher/git"
)

// Request bundles the changeset and pull request halves
// of a publish request descriptor.
type Request struct {
	Changeset   git.Changeset
	PullRequest git.PullRequestSpec
}

// requestFile mirrors the YAML/JSON publish request
// descriptor.
type requestFile struct {
	Repo        requestRepo        `json:"repo"         yaml:"repo"`
	BaseBranch  string             `json:"base_branch"  yaml:"base_branch"`
	Branch      string             `json:"branch"       yaml:"branch"`
	Author      requestAuthor      `json:"author"       yaml:"author"`
	Message     string             `json:"message"      yaml:"message"`
	Files       []requestFileEntry `json:"files"        yaml:"files"`
	PullRequest requestPullRequest `json:"pull_request" yaml:"pull_request"`
}

type requestRepo struct {
	Owner string `json:"owner" yaml:"owner"`
	Name  string `json:"name"  yaml:"name"`
}

type requestAuthor struct {
	Name  string `json:"name"  yaml:"name"`
	Email string `json:"email" yaml:"email"`
}

// requestFileEntry carries one published file. Content
// is either inline or read from ContentFile, resolved
// relative to the descriptor.
type requestFileEntry struct {
	Path        string `json:"path"         yaml:"path"`
	Content     string `json:"content"      yaml:"content"`
	ContentFile string `json:"content_file" yaml:"content_file"`
}

type requestPullRequest struct {
	SourceBranch        string `json:"source_branch"         yaml:"source_branch"`
	DestinationOwner    string `json:"destination_owner"     yaml:"destination_owner"`
	DestinationRepo     string `json:"destination_repo"      yaml:"destination_repo"`
	DestinationBranch   string `json:"destination_branch"    yaml:"destination_branch"`
	Title               string `json:"title"                 yaml:"title"`
	Description         string `json:"description"           yaml:"description"`
	MaintainerCanModify bool   `json:"maintainer_can_modify" yaml:"maintainer_can_modify"`
	Draft               bool   `json:"draft"                 yaml:"draft"`
}

// LoadRequest reads a publish request descriptor from
// path. The format is chosen by extension: .yaml, .yml
// or .json. File entries either inline their content or
// point at a content_file relative to the descriptor.
func LoadRequest(path string) (*Request, error) {
	const errCtx = "loading publish request"

	data, err := os.ReadFile(path) //nolint:gosec // path from CLI flag
	if err != nil {
		return nil, fmt.Errorf(
			"%s: %w", errCtx, err,
		)
	}

	var rf requestFile

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(
			data, &rf,
		); err != nil {
			return nil, fmt.Errorf(
				"%s: parse yaml: %w", errCtx, err,
			)
		}
	case ".json":
		if err := json.Unmarshal(
			data, &rf,
		); err != nil {
			return nil, fmt.Errorf(
				"%s: parse json: %w", errCtx, err,
			)
		}
	default:
		return nil, fmt.Errorf(
			"%s: unsupported extension %q",
			errCtx, filepath.Ext(path),
		)
	}

	files, err := resolveFiles(
		rf.Files, filepath.Dir(path),
	)
	if err != nil {
		return nil, fmt.Errorf(
			"%s: %w", errCtx, err,
		)
	}

	return &Request{
		Changeset: git.Changeset{
			Repo: git.Repo{
				Owner: rf.Repo.Owner,
				Name:  rf.Repo.Name,
			},
			BaseBranch: rf.BaseBranch,
			Branch:     rf.Branch,
			Files:      files,
			Author: git.Author{
				Name:  rf.Author.Name,
				Email: rf.Author.Email,
			},
			Message: rf.Message,
		},
		PullRequest: git.PullRequestSpec{
			SourceBranch:        rf.PullRequest.SourceBranch,
			DestinationOwner:    rf.PullRequest.DestinationOwner,
			DestinationRepo:     rf.PullRequest.DestinationRepo,
			DestinationBranch:   rf.PullRequest.DestinationBranch,
			Title:               rf.PullRequest.Title,
			Description:         rf.PullRequest.Description,
			MaintainerCanModify: rf.PullRequest.MaintainerCanModify,
			Draft:               rf.PullRequest.Draft,
		},
	}, nil
}

// resolveFiles maps descriptor file entries onto file
// entries, reading content_file references relative to
// baseDir.
func resolveFiles(
	entries []requestFileEntry,
	baseDir string,
) ([]git.FileEntry, error) {
	files := make([]git.FileEntry, 0, len(entries))

	for _, f := range entries {
		entry := git.FileEntry{
			Path:    f.Path,
			Content: f.Content,
		}

		if f.ContentFile != "" {
			if f.Content != "" {
				return nil, fmt.Errorf(
					"file %s: content and content_file are mutually exclusive",
					f.Path,
				)
			}

			content, err := os.ReadFile( //nolint:gosec // path from descriptor
				filepath.Join(
					baseDir, f.ContentFile,
				),
			)
			if err != nil {
				return nil, fmt.Errorf(
					"file %s: %w", f.Path, err,
				)
			}

			entry.Content = string(content)
		}

		files = append(files, entry)
	}

	return files, nil
}
