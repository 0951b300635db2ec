package forge

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/joescharf/cr/internal/models"
)

const defaultGitHubBaseURL = "https://api.github.com"

// GitHub fetches pull requests from the GitHub REST API. The diff comes
// from the same pulls endpoint requested with the diff media type.
type GitHub struct {
	token   string
	baseURL string
	client  *http.Client
}

// NewGitHub creates a GitHub fetcher.
func NewGitHub(cfg Config) *GitHub {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultGitHubBaseURL
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = defaultTimeout
	}
	return &GitHub{
		token:   cfg.Token,
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
	}
}

// FetchPR returns the pull request title and body.
func (g *GitHub) FetchPR(ctx context.Context, owner, repo string, number int) (*PullRequest, error) {
	body, err := g.get(ctx, g.pullURL(owner, repo, number), "application/vnd.github+json",
		fmt.Sprintf("pull request %s/%s#%d", owner, repo, number))
	if err != nil {
		return nil, err
	}
	var pr struct {
		Title string `json:"title"`
		Body  string `json:"body"`
	}
	if err := json.Unmarshal(body, &pr); err != nil {
		return nil, &models.MalformedResponseError{Reason: "github pull request JSON", Err: err}
	}
	return &PullRequest{Title: pr.Title, Body: pr.Body}, nil
}

// FetchDiff returns the unified diff for the pull request.
func (g *GitHub) FetchDiff(ctx context.Context, owner, repo string, number int) (string, error) {
	body, err := g.get(ctx, g.pullURL(owner, repo, number), "application/vnd.github.v3.diff",
		fmt.Sprintf("diff for %s/%s#%d", owner, repo, number))
	if err != nil {
		return "", err
	}
	return string(body), nil
}

func (g *GitHub) pullURL(owner, repo string, number int) string {
	return fmt.Sprintf("%s/repos/%s/%s/pulls/%d", g.baseURL, owner, repo, number)
}

func (g *GitHub) get(ctx context.Context, url, accept, what string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	if g.token != "" {
		// GitHub documents both schemes; "token" matches classic PATs.
		req.Header.Set("Authorization", "token "+g.token)
	}
	req.Header.Set("Accept", accept)

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, &models.TransportError{Service: "github", Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &models.TransportError{Service: "github", Err: err}
	}
	if err := checkStatus("github", resp.StatusCode, what); err != nil {
		return nil, err
	}
	return body, nil
}

// checkStatus maps a non-2xx platform response onto the error taxonomy.
func checkStatus(service string, status int, what string) error {
	switch {
	case status >= 200 && status < 300:
		return nil
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return &models.AuthError{Service: service, Status: status}
	case status == http.StatusNotFound:
		return &models.TransportError{
			Service: service,
			Status:  status,
			Err:     fmt.Errorf("%s not found", what),
		}
	default:
		return &models.TransportError{
			Service: service,
			Status:  status,
			Err:     fmt.Errorf("fetching %s", what),
		}
	}
}
