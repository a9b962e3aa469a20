package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

// SourceItem is one work artifact pulled from an external system:
// a pull request, an issue-tracker ticket or a chat message.
type SourceItem struct {
	ExternalID string    `json:"external_id"`
	Title      string    `json:"title"`
	URL        string    `json:"url"`
	Author     string    `json:"author"`
	OccurredAt time.Time `json:"occurred_at"`
}

// SourceClient pulls work artifacts from one external system, one page at a
// time. Page is 1-based; an empty page means the pull is done.
type SourceClient struct {
	baseURL  string
	apiToken string
	kind     string // github | jira | slack
	httpc    *http.Client
}

func NewGithubClient(baseURL, token string) *SourceClient {
	return newSourceClient(baseURL, token, "github")
}

func NewJiraClient(baseURL, token string) *SourceClient {
	return newSourceClient(baseURL, token, "jira")
}

func NewSlackClient(baseURL, token string) *SourceClient {
	return newSourceClient(baseURL, token, "slack")
}

func newSourceClient(baseURL, token, kind string) *SourceClient {
	return &SourceClient{
		baseURL:  baseURL,
		apiToken: token,
		kind:     kind,
		httpc:    &http.Client{Timeout: 30 * time.Second},
	}
}

// Fetch returns one page of artifacts in [since, until].
func (c *SourceClient) Fetch(ctx context.Context, since, until time.Time, page int) ([]SourceItem, error) {
	q := url.Values{}
	q.Set("since", since.UTC().Format(time.RFC3339))
	q.Set("until", until.UTC().Format(time.RFC3339))
	q.Set("page", fmt.Sprintf("%d", page))

	endpoint := fmt.Sprintf("%s/api/%s/items?%s", c.baseURL, c.kind, q.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiToken)

	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s request: %w", c.kind, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%s returned %d", c.kind, resp.StatusCode)
	}

	var items []SourceItem
	if err := json.NewDecoder(resp.Body).Decode(&items); err != nil {
		return nil, fmt.Errorf("%s response decode: %w", c.kind, err)
	}
	return items, nil
}
