// Package client talks to a running hera API on behalf of the CLI.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/caesium-cloud/hera/api/rest/controller"
	"github.com/caesium-cloud/hera/internal/dispatch"
	"github.com/caesium-cloud/hera/internal/inherit"
	"github.com/caesium-cloud/hera/internal/models"
	"github.com/pkg/errors"
)

// Error is a non-2xx answer from the API.
type Error struct {
	Status  int
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%d %s: %s", e.Status, http.StatusText(e.Status), e.Message)
}

type Client struct {
	base string
	user string
	http *http.Client
}

// New returns a client for the API at base acting as user.
func New(base, user string) *Client {
	return &Client{
		base: strings.TrimSuffix(base, "/"),
		user: user,
		http: &http.Client{Timeout: 30 * time.Second},
	}
}

func (c *Client) Switch(ctx context.Context, jobID uint) (*models.Job, error) {
	job := &models.Job{}
	if err := c.do(ctx, http.MethodPost, fmt.Sprintf("/v1/jobs/%d/switch", jobID), nil, job); err != nil {
		return nil, err
	}
	return job, nil
}

// Delete removes a job, or a group given as group_<n>.
func (c *Client) Delete(ctx context.Context, target string) error {
	return c.do(ctx, http.MethodDelete, "/v1/targets/"+target, nil, nil)
}

func (c *Client) Config(ctx context.Context, target string) (inherit.Config, error) {
	cfg := inherit.Config{}
	if err := c.do(ctx, http.MethodGet, "/v1/targets/"+target+"/config", nil, &cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ExecuteLatest re-runs the newest action of a job.
func (c *Client) ExecuteLatest(ctx context.Context, jobID uint) (*dispatch.Result, error) {
	return c.command(ctx, fmt.Sprintf("/v1/jobs/%d/execute", jobID), nil)
}

func (c *Client) Execute(ctx context.Context, actionID string) (*dispatch.Result, error) {
	return c.command(ctx, "/v1/actions/"+actionID+"/execute", nil)
}

func (c *Client) Cancel(ctx context.Context, historyID, jobID uint) (*dispatch.Result, error) {
	return c.command(ctx, fmt.Sprintf("/v1/histories/%d/cancel", historyID), map[string]uint{"job_id": jobID})
}

func (c *Client) Generate(ctx context.Context, jobID uint) (*dispatch.Result, error) {
	return c.command(ctx, fmt.Sprintf("/v1/jobs/%d/versions", jobID), nil)
}

func (c *Client) GenerateAll(ctx context.Context) (*dispatch.Result, error) {
	return c.command(ctx, "/v1/versions", nil)
}

func (c *Client) command(ctx context.Context, path string, body any) (*dispatch.Result, error) {
	res := &dispatch.Result{}
	if err := c.do(ctx, http.MethodPost, path, body, res); err != nil {
		return nil, err
	}
	return res, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return errors.Wrap(err, "encode request")
		}
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.base+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set(controller.HeaderUser, c.user)

	resp, err := c.http.Do(req)
	if err != nil {
		return errors.Wrapf(err, "%s %s", method, path)
	}
	defer resp.Body.Close()

	buf, err := io.ReadAll(resp.Body)
	if err != nil {
		return errors.Wrap(err, "read response")
	}

	if resp.StatusCode >= http.StatusBadRequest {
		apiErr := &Error{Status: resp.StatusCode}
		var msg struct {
			Message string `json:"message"`
		}
		if json.Unmarshal(buf, &msg) == nil {
			apiErr.Message = msg.Message
		}
		return apiErr
	}

	if out == nil || len(buf) == 0 {
		return nil
	}
	return errors.Wrap(json.Unmarshal(buf, out), "decode response")
}
