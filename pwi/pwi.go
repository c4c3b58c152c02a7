// Package pwi talks to a mount through the PWI4 HTTP API.
package pwi

import (
	"context"
	"fmt"
	"io/ioutil"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/w1xm/slew_interface/rotator"
)

const (
	connectPath = "/mount/connect"
	enablePath  = "/mount/enable"
	gotoPath    = "/mount/goto_alt_az"
	stopPath    = "/mount/stop"
	statusPath  = "/status"
)

// Client implements rotator.Mount and rotator.Stopper.
type Client struct {
	baseURL string
	http    *http.Client
}

func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
	}
}

func (c *Client) get(ctx context.Context, op, path string, params url.Values) (string, error) {
	u := c.baseURL + path
	if len(params) > 0 {
		u += "?" + params.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return "", &rotator.TransportError{Op: op, Err: err}
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return "", &rotator.TransportError{Op: op, Err: err}
	}
	defer resp.Body.Close()
	body, err := ioutil.ReadAll(resp.Body)
	if err != nil {
		return "", &rotator.TransportError{Op: op, Err: err}
	}
	if resp.StatusCode != http.StatusOK {
		return "", &rotator.TransportError{Op: op, Err: fmt.Errorf("bad status code: %s\n%s", resp.Status, string(body))}
	}
	return string(body), nil
}

func (c *Client) Connect(ctx context.Context) error {
	_, err := c.get(ctx, "connect", connectPath, nil)
	return err
}

func (c *Client) Enable(ctx context.Context) error {
	_, err := c.get(ctx, "enable", enablePath, nil)
	return err
}

func (c *Client) GotoAltAz(ctx context.Context, altitude, azimuth float64) error {
	_, err := c.get(ctx, "goto", gotoPath, url.Values{
		"alt_degs": {strconv.FormatFloat(altitude, 'f', -1, 64)},
		"az_degs":  {strconv.FormatFloat(azimuth, 'f', -1, 64)},
	})
	return err
}

func (c *Client) Stop(ctx context.Context) error {
	_, err := c.get(ctx, "stop", stopPath, nil)
	return err
}

// Status returns the parsed key/value status body.
func (c *Client) Status(ctx context.Context) (map[string]string, error) {
	body, err := c.get(ctx, "status", statusPath, nil)
	if err != nil {
		return nil, err
	}
	return rotator.ParseStatus(body), nil
}
