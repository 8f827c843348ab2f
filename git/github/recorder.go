package github

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"testing"

	"gopkg.in/dnaeon/go-vcr.v2/cassette"
	vcr "gopkg.in/dnaeon/go-vcr.v2/recorder"
)

// RecordEnv switches the test recorder to record mode
// when set to "record". The default is replaying
// cassettes from testdata.
const RecordEnv = "PRPUB_VCR_MODE"

// Recorder replays recorded GitHub API traffic in
// tests and captures fresh cassettes when RecordEnv is
// set. Pass HTTPClient() as Config.HTTPClient.
type Recorder struct {
	rec *vcr.Recorder
}

// NewRecorder opens the named cassette under
// testdata/cassettes. In replay mode a missing
// cassette is reported as os.ErrNotExist so callers
// can skip the test.
func NewRecorder(
	t *testing.T,
	name string,
) (*Recorder, error) {
	t.Helper()

	const errCtx = "creating recorder"

	mode := vcr.ModeReplaying
	if os.Getenv(RecordEnv) == "record" {
		mode = vcr.ModeRecording
	}

	path := filepath.Join(
		"testdata", "cassettes", name,
	)

	rec, err := vcr.NewAsMode(path, mode, nil)
	if err != nil {
		if errors.Is(
			err, cassette.ErrCassetteNotFound,
		) {
			return nil, fmt.Errorf(
				"%s: cassette %q: %w",
				errCtx, path, os.ErrNotExist,
			)
		}

		return nil, fmt.Errorf(
			"%s: %w", errCtx, err,
		)
	}

	// Credentials must never end up in a cassette.
	rec.AddSaveFilter(
		func(i *cassette.Interaction) error {
			delete(i.Request.Headers, "Authorization")

			return nil
		},
	)

	return &Recorder{rec: rec}, nil
}

// HTTPClient returns a client whose transport replays
// or records through the cassette.
func (r *Recorder) HTTPClient() *http.Client {
	return &http.Client{Transport: r.rec}
}

// Stop flushes and closes the cassette.
func (r *Recorder) Stop() error {
	const errCtx = "stopping recorder"

	if err := r.rec.Stop(); err != nil {
		return fmt.Errorf("%s: %w", errCtx, err)
	}

	return nil
}
