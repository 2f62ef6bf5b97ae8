// Package labels fetches GitHub pull-request labels and derives a readable
// text color for each. Fetches are memoized per PR for the run; the GitHub
// API would otherwise be hit once per render of the same PR.
package labels

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/goccy/go-json"

	"github.com/vanderheijden86/portboard/pkg/model"
)

// ErrRateLimited reports GitHub rate-limit exhaustion. Callers in
// rate-limit-tolerant environments degrade to an empty label list;
// everywhere else silently missing labels would be misleading and the
// error propagates.
var ErrRateLimited = errors.New("github rate limit exceeded")

// Client fetches labels for pull requests of a single repository.
type Client struct {
	// Repo is the GitHub "owner/name" whose PRs are queried.
	Repo string
	// Token authenticates requests when non-empty. Unauthenticated
	// access works but with a much lower rate limit.
	Token string
	// BaseURL overrides the API endpoint, for tests.
	BaseURL string

	HTTPClient *http.Client

	cache map[int][]model.Label
}

// NewClient returns a client for the given repository.
func NewClient(repo, token string) *Client {
	return &Client{
		Repo:       repo,
		Token:      token,
		HTTPClient: &http.Client{Timeout: 30 * time.Second},
		cache:      make(map[int][]model.Label),
	}
}

type apiLabel struct {
	Name  string `json:"name"`
	Color string `json:"color"`
}

// Labels returns the labels on a pull request, with text colors derived
// from the label colors.
func (c *Client) Labels(ctx context.Context, pr int) ([]model.Label, error) {
	if cached, ok := c.cache[pr]; ok {
		return cached, nil
	}

	base := c.BaseURL
	if base == "" {
		base = "https://api.github.com"
	}
	url := fmt.Sprintf("%s/repos/%s/issues/%d/labels", base, c.Repo, pr)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/vnd.github+json")
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch labels for PR %d: %w", pr, err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("fetch labels for PR %d: %w", pr, err)
	}

	if rateLimited(resp) {
		return nil, fmt.Errorf("PR %d: %w", pr, ErrRateLimited)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch labels for PR %d: %s", pr, resp.Status)
	}

	var raw []apiLabel
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("decode labels for PR %d: %w", pr, err)
	}

	out := make([]model.Label, 0, len(raw))
	for _, l := range raw {
		out = append(out, model.Label{
			Name:      l.Name,
			Color:     l.Color,
			TextColor: TextColorFor(l.Color),
		})
	}
	c.cache[pr] = out
	return out, nil
}

// rateLimited recognizes both 403 and 429 rate-limit responses; GitHub
// signals exhaustion with X-RateLimit-Remaining: 0.
func rateLimited(resp *http.Response) bool {
	if resp.StatusCode != http.StatusForbidden && resp.StatusCode != http.StatusTooManyRequests {
		return false
	}
	return resp.Header.Get("X-RateLimit-Remaining") == "0" || resp.StatusCode == http.StatusTooManyRequests
}

// TextColorFor picks black or white text for a 6-hex-digit background
// color, using relative luminance with the threshold GitHub's own label
// rendering uses.
func TextColorFor(color string) string {
	const threshold = 0.453
	if len(color) != 6 {
		return "black"
	}
	channel := func(i int) float64 {
		v, err := strconv.ParseUint(color[i:i+2], 16, 8)
		if err != nil {
			return 0
		}
		return float64(v)
	}
	r, g, b := channel(0), channel(2), channel(4)
	lightness := (r*0.2126 + g*0.7152 + b*0.0722) / 255
	if lightness > threshold {
		return "black"
	}
	return "white"
}
