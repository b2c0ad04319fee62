package loadtest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	service "github.com/okian/scoreboard/internal/app"
)

// Outcome of one submission as seen by the client.
type outcome int

const (
	outcomeSuccess outcome = iota
	outcomeDuplicate
	outcomeRejected
	outcomeFailed
)

// client is a thin JSON client of the scoreboard API.
type client struct {
	http    *http.Client
	baseURL string
}

func newClient(baseURL string, hc *http.Client) *client {
	return &client{http: hc, baseURL: baseURL}
}

func (c *client) do(ctx context.Context, method, path string, body, out any) (int, error) {
	var rd io.Reader = http.NoBody
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return 0, fmt.Errorf("failed to marshal request body: %w", err)
		}
		rd = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rd)
	if err != nil {
		return 0, fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return resp.StatusCode, fmt.Errorf("HTTP %d: %s", resp.StatusCode, bytes.TrimSpace(data))
	}
	if out != nil {
		if err := json.Unmarshal(data, out); err != nil {
			return resp.StatusCode, fmt.Errorf("failed to parse response: %w", err)
		}
	}
	return resp.StatusCode, nil
}

func (c *client) health(ctx context.Context) error {
	_, err := c.do(ctx, http.MethodGet, "/healthz", nil, nil)
	return err
}

func (c *client) submit(ctx context.Context, sub service.Submission) outcome {
	var res service.Result
	status, err := c.do(ctx, http.MethodPost, "/v1/courses/"+url.PathEscape(sub.CourseID)+"/scores", sub, &res)
	switch {
	case err == nil && res.Duplicate:
		return outcomeDuplicate
	case err == nil:
		return outcomeSuccess
	case status == http.StatusBadRequest || status == http.StatusNotFound:
		return outcomeRejected
	default:
		return outcomeFailed
	}
}

func (c *client) rank(ctx context.Context, courseID, learnerID string) (service.RankInfo, error) {
	var info service.RankInfo
	path := fmt.Sprintf("/v1/courses/%s/learners/%s/rank", url.PathEscape(courseID), url.PathEscape(learnerID))
	_, err := c.do(ctx, http.MethodGet, path, nil, &info)
	return info, err
}

func (c *client) leaderboard(ctx context.Context, courseID string, page, limit int) (service.LeaderboardPage, error) {
	var out service.LeaderboardPage
	path := fmt.Sprintf("/v1/courses/%s/leaderboard?page=%d&limit=%d", url.PathEscape(courseID), page, limit)
	_, err := c.do(ctx, http.MethodGet, path, nil, &out)
	return out, err
}

func (c *client) resweep(ctx context.Context, courseID string) error {
	_, err := c.do(ctx, http.MethodPost, "/v1/admin/courses/"+url.PathEscape(courseID)+"/resweep", nil, nil)
	return err
}
