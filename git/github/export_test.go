package github

import "net/url"

// Exported helpers for pointing a Provider at a test
// server from the github_test package.

// SetBaseURLForTest redirects the underlying API
// client. The raw URL must end with a slash.
func SetBaseURLForTest(
	p *Provider,
	raw string,
) error {
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}

	p.client.BaseURL = u

	return nil
}

// HeadsRefForTest exposes headsRef.
var HeadsRefForTest = headsRef
