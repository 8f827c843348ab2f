package bitbucket_test

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/byte4ever/pr_publisher/git"
	bb "github.com/byte4ever/pr_publisher/git/bitbucket"
)

// writeJSON writes a canned JSON response.
func writeJSON(
	w http.ResponseWriter,
	status int,
	body string,
) {
	w.Header().Set(
		"Content-Type", "application/json",
	)
	w.WriteHeader(status)
	fmt.Fprint(w, body)
}

// readBody drains the request body; on failure it fails
// the exchange rather than the test, which must not be
// stopped from a handler goroutine.
func readBody(
	w http.ResponseWriter,
	r *http.Request,
) ([]byte, bool) {
	b, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(
			w, "read error",
			http.StatusInternalServerError,
		)

		return nil, false
	}

	return b, true
}

func newTestProvider(
	t *testing.T,
	ts *httptest.Server,
) *bb.Provider {
	t.Helper()

	pv, err := bb.NewProvider(bb.Config{
		BaseURL:     ts.URL,
		User:        "admin",
		AppPassword: "secret",
	})
	require.NoError(t, err)

	return pv
}

func testChangeset() git.Changeset {
	return git.Changeset{
		Repo: git.Repo{
			Owner: "alice",
			Name:  "demo",
		},
		BaseBranch: "main",
		Branch:     "release-notes",
		Files: []git.FileEntry{
			{
				Path:    "notes/v1.md",
				Content: "v1 notes\n",
			},
		},
		Author: git.Author{
			Name:  "Release Bot",
			Email: "bot@example.com",
		},
		Message: "publish notes",
	}
}

func TestNewProvider_valid(t *testing.T) {
	t.Parallel()

	pv, err := bb.NewProvider(bb.Config{
		User:        "admin",
		AppPassword: "secret",
	})

	require.NoError(t, err)
	assert.NotNil(t, pv)
}

func TestNewProvider_missing_user(t *testing.T) {
	t.Parallel()

	pv, err := bb.NewProvider(bb.Config{
		AppPassword: "secret",
	})

	assert.Nil(t, pv)
	assert.ErrorContains(t, err, "user must be set")
}

func TestNewProvider_missing_app_password(
	t *testing.T,
) {
	t.Parallel()

	pv, err := bb.NewProvider(bb.Config{
		User: "admin",
	})

	assert.Nil(t, pv)
	assert.ErrorContains(t, err, "app password")
}

func TestProvider_PublishChangeset_creates_branch(
	t *testing.T,
) {
	t.Parallel()

	var (
		tip       string
		gotBranch string
		gotForm   url.Values
	)

	mux := http.NewServeMux()
	mux.HandleFunc(
		"GET /repositories/alice/demo/refs/branches/{branch}",
		func(w http.ResponseWriter, r *http.Request) {
			switch r.PathValue("branch") {
			case "main":
				writeJSON(
					w, http.StatusOK,
					`{"name":"main",
					  "target":{"hash":"base456"}}`,
				)
			case "release-notes":
				if tip == "" {
					writeJSON(
						w, http.StatusNotFound,
						`{"type":"error"}`,
					)

					return
				}

				writeJSON(
					w, http.StatusOK,
					fmt.Sprintf(
						`{"name":"release-notes",
						  "target":{"hash":"%s"}}`,
						tip,
					),
				)
			default:
				writeJSON(
					w, http.StatusNotFound,
					`{"type":"error"}`,
				)
			}
		},
	)
	mux.HandleFunc(
		"POST /repositories/alice/demo/refs/branches",
		func(w http.ResponseWriter, r *http.Request) {
			b, ok := readBody(w, r)
			if !ok {
				return
			}

			gotBranch = string(b)
			tip = "base456"

			writeJSON(
				w, http.StatusCreated,
				`{"name":"release-notes",
				  "target":{"hash":"base456"}}`,
			)
		},
	)
	mux.HandleFunc(
		"GET /repositories/alice/demo/src/{commit}/{path...}",
		func(w http.ResponseWriter, r *http.Request) {
			writeJSON(
				w, http.StatusNotFound,
				`{"type":"error"}`,
			)
		},
	)
	mux.HandleFunc(
		"POST /repositories/alice/demo/src",
		func(w http.ResponseWriter, r *http.Request) {
			if err := r.ParseForm(); err != nil {
				http.Error(
					w, "bad form",
					http.StatusBadRequest,
				)

				return
			}

			gotForm = r.PostForm
			tip = "newtip789"

			w.WriteHeader(http.StatusCreated)
		},
	)

	ts := httptest.NewServer(mux)
	defer ts.Close()

	pv := newTestProvider(t, ts)

	res, err := pv.PublishChangeset(
		context.Background(), testChangeset(),
	)

	require.NoError(t, err)
	assert.False(t, res.Unchanged)
	assert.Equal(t, "newtip789", res.Ref.SHA)
	assert.Equal(t, "release-notes", res.Ref.Name)

	assert.Contains(
		t, gotBranch, `"name":"release-notes"`,
	)
	assert.Contains(t, gotBranch, `"hash":"base456"`)

	assert.Equal(
		t, "publish notes", gotForm.Get("message"),
	)
	assert.Equal(
		t, "release-notes", gotForm.Get("branch"),
	)
	assert.Equal(
		t,
		"Release Bot <bot@example.com>",
		gotForm.Get("author"),
	)
	assert.Equal(
		t, "v1 notes\n", gotForm.Get("notes/v1.md"),
	)
}

func TestProvider_PublishChangeset_unchanged(
	t *testing.T,
) {
	t.Parallel()

	committed := false

	mux := http.NewServeMux()
	mux.HandleFunc(
		"GET /repositories/alice/demo/refs/branches/{branch}",
		func(w http.ResponseWriter, r *http.Request) {
			writeJSON(
				w, http.StatusOK,
				`{"name":"release-notes",
				  "target":{"hash":"tip123"}}`,
			)
		},
	)
	mux.HandleFunc(
		"GET /repositories/alice/demo/src/{commit}/{path...}",
		func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set(
				"Content-Type", "text/plain",
			)
			fmt.Fprint(w, "v1 notes\n")
		},
	)
	mux.HandleFunc(
		"POST /repositories/alice/demo/src",
		func(w http.ResponseWriter, r *http.Request) {
			committed = true

			w.WriteHeader(http.StatusCreated)
		},
	)

	ts := httptest.NewServer(mux)
	defer ts.Close()

	pv := newTestProvider(t, ts)

	res, err := pv.PublishChangeset(
		context.Background(), testChangeset(),
	)

	require.NoError(t, err)
	assert.True(t, res.Unchanged)
	assert.Equal(t, "tip123", res.Ref.SHA)
	assert.False(t, committed)
}

func TestProvider_PublishChangeset_unauthorized(
	t *testing.T,
) {
	t.Parallel()

	mux := http.NewServeMux()
	mux.HandleFunc(
		"GET /repositories/alice/demo/refs/branches/{branch}",
		func(w http.ResponseWriter, r *http.Request) {
			writeJSON(
				w, http.StatusUnauthorized,
				`{"type":"error"}`,
			)
		},
	)

	ts := httptest.NewServer(mux)
	defer ts.Close()

	pv := newTestProvider(t, ts)

	_, err := pv.PublishChangeset(
		context.Background(), testChangeset(),
	)

	assert.ErrorIs(t, err, git.ErrUnauthorized)
}

func TestProvider_PublishChangeset_reserved_path(
	t *testing.T,
) {
	t.Parallel()

	// Rejected before anything goes on the wire.
	mux := http.NewServeMux()
	mux.HandleFunc(
		"/",
		func(w http.ResponseWriter, r *http.Request) {
			t.Errorf(
				"unexpected request: %s %s",
				r.Method, r.URL.Path,
			)
			http.NotFound(w, r)
		},
	)

	ts := httptest.NewServer(mux)
	defer ts.Close()

	pv := newTestProvider(t, ts)

	cs := testChangeset()
	cs.Files = []git.FileEntry{
		{Path: "message", Content: "not a file"},
	}

	_, err := pv.PublishChangeset(
		context.Background(), cs,
	)

	assert.ErrorContains(
		t, err,
		`file path "message" collides`,
	)
}

func TestProvider_CreatePullRequest_created(
	t *testing.T,
) {
	t.Parallel()

	var gotBody string

	mux := http.NewServeMux()
	mux.HandleFunc(
		"POST /repositories/alice/demo/pullrequests",
		func(w http.ResponseWriter, r *http.Request) {
			b, ok := readBody(w, r)
			if !ok {
				return
			}

			gotBody = string(b)

			writeJSON(
				w, http.StatusCreated,
				`{"id":7,
				  "links":{"html":{"href":"https://bitbucket.org/alice/demo/pull-requests/7"}}}`,
			)
		},
	)

	ts := httptest.NewServer(mux)
	defer ts.Close()

	pv := newTestProvider(t, ts)

	res, err := pv.CreatePullRequest(
		context.Background(),
		git.PullRequestSpec{
			SourceOwner:       "alice",
			SourceRepo:        "demo",
			SourceBranch:      "release-notes",
			DestinationBranch: "main",
			Title:             "Add release notes",
			Description:       "notes body",
		},
	)

	require.NoError(t, err)
	assert.Equal(
		t, git.PullRequestCreated, res.State,
	)
	assert.Equal(
		t,
		"https://bitbucket.org/alice/demo/pull-requests/7",
		res.URL,
	)

	assert.Contains(
		t, gotBody, `"title":"Add release notes"`,
	)
	assert.Contains(
		t, gotBody, `"description":"notes body"`,
	)
	assert.Contains(
		t, gotBody, `"name":"release-notes"`,
	)
	assert.Contains(t, gotBody, `"name":"main"`)
}

func TestProvider_CreatePullRequest_already_exists(
	t *testing.T,
) {
	t.Parallel()

	mux := http.NewServeMux()
	mux.HandleFunc(
		"POST /repositories/alice/demo/pullrequests",
		func(w http.ResponseWriter, r *http.Request) {
			writeJSON(
				w, http.StatusConflict,
				`{"type":"error"}`,
			)
		},
	)

	ts := httptest.NewServer(mux)
	defer ts.Close()

	pv := newTestProvider(t, ts)

	res, err := pv.CreatePullRequest(
		context.Background(),
		git.PullRequestSpec{
			SourceOwner:       "alice",
			SourceRepo:        "demo",
			SourceBranch:      "release-notes",
			DestinationBranch: "main",
			Title:             "Add release notes",
		},
	)

	require.NoError(t, err)
	assert.Equal(
		t, git.PullRequestAlreadyExists, res.State,
	)
	assert.Empty(t, res.URL)
}

func TestProvider_CreatePullRequest_cross_fork(
	t *testing.T,
) {
	t.Parallel()

	var gotBody string

	mux := http.NewServeMux()
	mux.HandleFunc(
		"POST /repositories/upstream/demo/pullrequests",
		func(w http.ResponseWriter, r *http.Request) {
			b, ok := readBody(w, r)
			if !ok {
				return
			}

			gotBody = string(b)

			writeJSON(
				w, http.StatusCreated,
				`{"id":8,
				  "links":{"html":{"href":"https://bitbucket.org/upstream/demo/pull-requests/8"}}}`,
			)
		},
	)

	ts := httptest.NewServer(mux)
	defer ts.Close()

	pv := newTestProvider(t, ts)

	res, err := pv.CreatePullRequest(
		context.Background(),
		git.PullRequestSpec{
			SourceOwner:      "alice",
			SourceRepo:       "demo",
			SourceBranch:     "release-notes",
			DestinationOwner: "upstream",
			DestinationRepo:  "demo",
			Title:            "Add release notes",
		},
	)

	require.NoError(t, err)
	assert.Equal(
		t, git.PullRequestCreated, res.State,
	)
	assert.Contains(
		t, gotBody, `"full_name":"alice/demo"`,
	)
}

func TestProvider_CreatePullRequest_unexpected_status(
	t *testing.T,
) {
	t.Parallel()

	mux := http.NewServeMux()
	mux.HandleFunc(
		"POST /repositories/alice/demo/pullrequests",
		func(w http.ResponseWriter, r *http.Request) {
			writeJSON(
				w,
				http.StatusInternalServerError,
				`{"type":"error"}`,
			)
		},
	)

	ts := httptest.NewServer(mux)
	defer ts.Close()

	pv := newTestProvider(t, ts)

	_, err := pv.CreatePullRequest(
		context.Background(),
		git.PullRequestSpec{
			SourceOwner:       "alice",
			SourceRepo:        "demo",
			SourceBranch:      "release-notes",
			DestinationBranch: "main",
			Title:             "Add release notes",
		},
	)

	assert.ErrorContains(t, err, "unexpected status")
}
