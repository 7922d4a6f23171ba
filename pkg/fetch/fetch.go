// Package fetch obtains isolated repository snapshots for analysis jobs.
//
// A snapshot is a filesystem extraction of a GitHub repository archive at a
// given reference, rooted at a fresh, uniquely named workspace directory.
// Snapshots are owned exclusively by the job that created them and are
// removed when the job reaches a terminal state. Failed fetches never leave
// partial extractions behind.
package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/depscout/depscout/pkg/errors"
	"github.com/depscout/depscout/pkg/httputil"
)

// DefaultBaseURL is the GitHub API endpoint serving repository archives.
const DefaultBaseURL = "https://api.github.com"

// transferTimeout bounds a single archive download attempt.
const transferTimeout = 60 * time.Second

// RepositorySpec identifies the repository to snapshot. Immutable once a job
// starts.
type RepositorySpec struct {
	Owner string
	Repo  string
	Ref   string // branch, tag or commit; empty falls back to main/master
	Token string // optional credential for private repositories
}

// Slug returns the owner/name form.
func (s RepositorySpec) Slug() string {
	return s.Owner + "/" + s.Repo
}

// Snapshot is a local extraction of a RepositorySpec.
type Snapshot struct {
	Dir  string
	Spec RepositorySpec
}

// Remove deletes the snapshot's workspace directory.
func (s *Snapshot) Remove() error {
	if s == nil || s.Dir == "" {
		return nil
	}
	return os.RemoveAll(s.Dir)
}

// Client downloads repository archives and extracts them into workspace
// directories under a configured root.
type Client struct {
	http          *http.Client
	baseURL       string
	workspaceRoot string
}

// NewClient creates a fetch client extracting snapshots under workspaceRoot.
// An empty root means the system temporary directory.
func NewClient(workspaceRoot string) *Client {
	if workspaceRoot == "" {
		workspaceRoot = os.TempDir()
	}
	return &Client{
		http:          &http.Client{Timeout: transferTimeout},
		baseURL:       DefaultBaseURL,
		workspaceRoot: workspaceRoot,
	}
}

// WithBaseURL overrides the archive endpoint. Used by tests.
func (c *Client) WithBaseURL(url string) *Client {
	c.baseURL = strings.TrimRight(url, "/")
	return c
}

// Fetch downloads the repository archive and extracts it into a fresh
// workspace directory. When the spec names no ref, the default branches main
// and master are tried in order.
//
// Failures are classified as NOT_FOUND, UNAUTHORIZED, RATE_LIMITED or
// TRANSFER_ERROR. On any failure path the partially written workspace is
// removed before the error is returned.
func (c *Client) Fetch(ctx context.Context, spec RepositorySpec) (*Snapshot, error) {
	refs := []string{spec.Ref}
	if spec.Ref == "" {
		refs = []string{"main", "master"}
	}

	var archive []byte
	var err error
	for i, ref := range refs {
		archive, err = c.download(ctx, spec, ref)
		if err == nil {
			break
		}
		// Fall through to the next default branch only on NotFound.
		if i < len(refs)-1 && errors.Is(err, errors.ErrCodeNotFound) {
			continue
		}
		return nil, err
	}
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(c.workspaceRoot, 0o755); err != nil {
		return nil, errors.Wrap(errors.ErrCodeTransfer, err, "create workspace root")
	}

	// Concurrent fetches must not collide: each snapshot gets a random
	// suffix in addition to the repository identity.
	dir, err := os.MkdirTemp(c.workspaceRoot,
		fmt.Sprintf("repo_%s_%s_%.8s_", spec.Owner, spec.Repo, uuid.NewString()))
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeTransfer, err, "create workspace")
	}

	if err := extractArchive(archive, dir); err != nil {
		_ = os.RemoveAll(dir)
		return nil, err
	}

	return &Snapshot{Dir: dir, Spec: spec}, nil
}

// download retrieves the zipball for one ref, retrying transient transfer
// failures with backoff.
func (c *Client) download(ctx context.Context, spec RepositorySpec, ref string) ([]byte, error) {
	url := fmt.Sprintf("%s/repos/%s/%s/zipball/%s", c.baseURL, spec.Owner, spec.Repo, ref)

	var payload []byte
	err := httputil.RetryWithBackoff(ctx, func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return errors.Wrap(errors.ErrCodeTransfer, err, "build archive request")
		}
		req.Header.Set("Accept", "application/vnd.github.v3+json")
		if spec.Token != "" {
			req.Header.Set("Authorization", "Bearer "+spec.Token)
		}

		resp, err := c.http.Do(req)
		if err != nil {
			return &httputil.RetryableError{
				Err: errors.Wrap(errors.ErrCodeTransfer, err, "download %s", spec.Slug()),
			}
		}
		defer resp.Body.Close()

		if err := checkStatus(resp, spec, ref); err != nil {
			return err
		}

		payload, err = io.ReadAll(resp.Body)
		if err != nil {
			return &httputil.RetryableError{
				Err: errors.Wrap(errors.ErrCodeTransfer, err, "read archive for %s", spec.Slug()),
			}
		}
		return nil
	})
	return payload, err
}

func checkStatus(resp *http.Response, spec RepositorySpec, ref string) error {
	switch {
	case resp.StatusCode == http.StatusOK:
		return nil
	case resp.StatusCode == http.StatusNotFound:
		return errors.New(errors.ErrCodeNotFound, "repository %s at ref %q not found", spec.Slug(), ref)
	case resp.StatusCode == http.StatusUnauthorized:
		return errors.New(errors.ErrCodeUnauthorized, "credential rejected for %s", spec.Slug())
	case resp.StatusCode == http.StatusForbidden:
		// GitHub signals exhausted rate limits with 403.
		if resp.Header.Get("X-RateLimit-Remaining") == "0" {
			return errors.New(errors.ErrCodeRateLimited, "rate limited fetching %s", spec.Slug())
		}
		return errors.New(errors.ErrCodeUnauthorized, "access forbidden for %s", spec.Slug())
	case resp.StatusCode == http.StatusTooManyRequests:
		return errors.New(errors.ErrCodeRateLimited, "rate limited fetching %s", spec.Slug())
	case resp.StatusCode >= 500:
		return &httputil.RetryableError{
			Err: errors.New(errors.ErrCodeTransfer, "archive server returned %d for %s", resp.StatusCode, spec.Slug()),
		}
	default:
		return errors.New(errors.ErrCodeTransfer, "unexpected status %d for %s", resp.StatusCode, spec.Slug())
	}
}
