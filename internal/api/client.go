package api

import (
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
)

// Client talks to a running agent's control API. Used by the CLI
// subcommands; requests block for as long as the underlying transition
// does, plus a generous cap.
type Client struct {
	rc *resty.Client
}

func NewClient(baseURL string) *Client {
	rc := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(30*time.Second).
		SetHeader("Content-Type", "application/json")
	return &Client{rc: rc}
}

// SetFrequency requests a frequency change and returns the frequency the
// core settled on.
func (c *Client) SetFrequency(core uint, targetKHz uint, relation string) (*FrequencyResponse, error) {
	var resp FrequencyResponse
	var apiErr ErrorResponse

	r, err := c.rc.R().
		SetBody(FrequencyRequest{TargetKHz: targetKHz, Relation: relation}).
		SetResult(&resp).
		SetError(&apiErr).
		Post(fmt.Sprintf("/v1/cores/%d/frequency", core))
	if err != nil {
		return nil, err
	}
	if r.IsError() {
		return nil, fmt.Errorf("agent rejected request (%s): %s", r.Status(), apiErr.Error)
	}
	return &resp, nil
}

// Status fetches the per-core status listing.
func (c *Client) Status() (*StatusResponse, error) {
	var resp StatusResponse
	var apiErr ErrorResponse

	r, err := c.rc.R().
		SetResult(&resp).
		SetError(&apiErr).
		Get("/v1/cores")
	if err != nil {
		return nil, err
	}
	if r.IsError() {
		return nil, fmt.Errorf("agent rejected request (%s): %s", r.Status(), apiErr.Error)
	}
	return &resp, nil
}

func (c *Client) Suspend() error {
	return c.post("/v1/suspend")
}

func (c *Client) Resume() error {
	return c.post("/v1/resume")
}

func (c *Client) CoreOnline(core uint) error {
	return c.post(fmt.Sprintf("/v1/cores/%d/online", core))
}

func (c *Client) CoreOfflinePrepare(core uint) error {
	return c.post(fmt.Sprintf("/v1/cores/%d/offline-prepare", core))
}

func (c *Client) CoreOfflineAbort(core uint) error {
	return c.post(fmt.Sprintf("/v1/cores/%d/offline-abort", core))
}

func (c *Client) post(path string) error {
	var apiErr ErrorResponse
	r, err := c.rc.R().SetError(&apiErr).Post(path)
	if err != nil {
		return err
	}
	if r.IsError() {
		return fmt.Errorf("agent rejected request (%s): %s", r.Status(), apiErr.Error)
	}
	return nil
}
