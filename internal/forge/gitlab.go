package forge

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/joescharf/cr/internal/models"
)

const defaultGitLabBaseURL = "https://gitlab.com/api/v4"

// GitLab fetches merge requests from the GitLab REST API. Project paths
// are URL-escaped ("owner/repo" becomes "owner%2Frepo"); the diff is
// assembled from the per-file diffs of the /changes endpoint.
type GitLab struct {
	token   string
	baseURL string
	client  *http.Client
}

// NewGitLab creates a GitLab fetcher.
func NewGitLab(cfg Config) *GitLab {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultGitLabBaseURL
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = defaultTimeout
	}
	return &GitLab{
		token:   cfg.Token,
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
	}
}

// FetchPR returns the merge request title and description.
func (g *GitLab) FetchPR(ctx context.Context, owner, repo string, number int) (*PullRequest, error) {
	body, err := g.get(ctx, g.mrURL(owner, repo, number),
		fmt.Sprintf("merge request %s/%s!%d", owner, repo, number))
	if err != nil {
		return nil, err
	}
	var mr struct {
		Title       string `json:"title"`
		Description string `json:"description"`
	}
	if err := json.Unmarshal(body, &mr); err != nil {
		return nil, &models.MalformedResponseError{Reason: "gitlab merge request JSON", Err: err}
	}
	return &PullRequest{Title: mr.Title, Body: mr.Description}, nil
}

// FetchDiff returns the merge request diff: each changed file's diff text
// joined with newlines, in the order the API lists them.
func (g *GitLab) FetchDiff(ctx context.Context, owner, repo string, number int) (string, error) {
	body, err := g.get(ctx, g.mrURL(owner, repo, number)+"/changes",
		fmt.Sprintf("changes for %s/%s!%d", owner, repo, number))
	if err != nil {
		return "", err
	}
	var changes struct {
		Changes []struct {
			Diff string `json:"diff"`
		} `json:"changes"`
	}
	if err := json.Unmarshal(body, &changes); err != nil {
		return "", &models.MalformedResponseError{Reason: "gitlab changes JSON", Err: err}
	}
	diffs := make([]string, 0, len(changes.Changes))
	for _, c := range changes.Changes {
		diffs = append(diffs, c.Diff)
	}
	return strings.Join(diffs, "\n"), nil
}

func (g *GitLab) mrURL(owner, repo string, number int) string {
	project := url.PathEscape(owner + "/" + repo)
	return fmt.Sprintf("%s/projects/%s/merge_requests/%d", g.baseURL, project, number)
}

func (g *GitLab) get(ctx context.Context, reqURL, what string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	if g.token != "" {
		req.Header.Set("Authorization", "Bearer "+g.token)
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, &models.TransportError{Service: "gitlab", Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &models.TransportError{Service: "gitlab", Err: err}
	}
	if err := checkStatus("gitlab", resp.StatusCode, what); err != nil {
		return nil, err
	}
	return body, nil
}
