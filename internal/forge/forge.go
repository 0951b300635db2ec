// Package forge fetches pull/merge request metadata and diffs from the
// supported hosting platforms.
package forge

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Platform identifies a source hosting platform.
type Platform string

const (
	PlatformGitHub Platform = "github"
	PlatformGitLab Platform = "gitlab"
)

// ParsePlatform converts a user-supplied platform name.
func ParsePlatform(s string) (Platform, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "github":
		return PlatformGitHub, nil
	case "gitlab":
		return PlatformGitLab, nil
	default:
		return "", fmt.Errorf("unknown platform %q (expected github or gitlab)", s)
	}
}

// PullRequest is the request metadata a review needs. GitLab calls these
// merge requests; the distinction stops at the fetcher boundary.
type PullRequest struct {
	Title string
	Body  string
}

// Fetcher retrieves PR metadata and unified diffs. Metadata and diff are
// separate calls that fail independently; a review requires both.
type Fetcher interface {
	FetchPR(ctx context.Context, owner, repo string, number int) (*PullRequest, error)
	FetchDiff(ctx context.Context, owner, repo string, number int) (string, error)
}

// Config configures a fetcher. BaseURL overrides the platform API root.
type Config struct {
	Token   string
	BaseURL string
	Timeout time.Duration
}

const defaultTimeout = 30 * time.Second

// New creates a fetcher for the given platform.
func New(platform Platform, cfg Config) (Fetcher, error) {
	switch platform {
	case PlatformGitHub:
		return NewGitHub(cfg), nil
	case PlatformGitLab:
		return NewGitLab(cfg), nil
	default:
		return nil, fmt.Errorf("unknown platform %q", platform)
	}
}

// ParseRef parses a "owner/repo#number" pull request reference.
func ParseRef(ref string) (owner, repo string, number int, err error) {
	ref = strings.TrimSpace(ref)
	path, num, ok := strings.Cut(ref, "#")
	if !ok {
		return "", "", 0, fmt.Errorf("invalid PR reference %q (expected owner/repo#number)", ref)
	}
	owner, repo, ok = strings.Cut(path, "/")
	if !ok || owner == "" || repo == "" {
		return "", "", 0, fmt.Errorf("invalid PR reference %q (expected owner/repo#number)", ref)
	}
	number, err = strconv.Atoi(num)
	if err != nil || number <= 0 {
		return "", "", 0, fmt.Errorf("invalid PR number in %q", ref)
	}
	return owner, repo, number, nil
}
