package tracker

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/go-logr/logr"
	"kubegems.io/trackx/pkg/errors"
	"kubegems.io/trackx/pkg/version"
)

var UserAgent = "trackx/" + version.Get().GitVersion

// Client talks to the experiment tracking server.
type Client struct {
	Server        string
	Authorization string
	HTTPClient    *http.Client
}

func NewClient(server string, auth string) *Client {
	return &Client{
		Server:        strings.TrimSuffix(server, "/"),
		Authorization: auth,
		HTTPClient:    http.DefaultClient,
	}
}

func (c *Client) Ping(ctx context.Context) error {
	_, err := c.request(ctx, http.MethodGet, "/healthz", nil, nil, nil)
	return err
}

func (c *Client) request(ctx context.Context, method, url string, header map[string]string, body any, into any) (*http.Response, error) {
	url = c.Server + url

	var reqbody io.Reader
	switch val := body.(type) {
	case io.Reader:
		reqbody = val
	case nil:
		reqbody = nil
	default:
		b, err := json.Marshal(val)
		if err != nil {
			return nil, err
		}
		reqbody = bytes.NewReader(b)
		if header == nil {
			header = map[string]string{}
		}
		if _, ok := header["Content-Type"]; !ok {
			header["Content-Type"] = "application/json"
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, url, reqbody)
	if err != nil {
		return nil, err
	}
	for k, v := range header {
		req.Header.Set(k, v)
	}
	if c.Authorization != "" {
		req.Header.Set("Authorization", c.Authorization)
	}
	req.Header.Set("User-Agent", UserAgent)

	logr.FromContextOrDiscard(ctx).V(1).Info("tracker request", "method", method, "url", url)

	cli := c.HTTPClient
	if cli == nil {
		cli = http.DefaultClient
	}
	resp, err := cli.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= http.StatusBadRequest {
		defer resp.Body.Close()
		var apierr errors.ErrorInfo
		if strings.HasPrefix(resp.Header.Get("Content-Type"), "application/json") {
			if err := json.NewDecoder(resp.Body).Decode(&apierr); err != nil {
				return nil, err
			}
		} else {
			bodystr, _ := io.ReadAll(resp.Body)
			apierr.Message = string(bodystr)
		}
		apierr.HttpStatus = resp.StatusCode
		return nil, apierr
	}
	if into != nil {
		defer resp.Body.Close()
		if err := json.NewDecoder(resp.Body).Decode(into); err != nil {
			return nil, err
		}
	} else {
		resp.Body.Close()
	}
	return resp, nil
}
