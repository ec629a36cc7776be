package tracker

import (
	"context"
	"encoding/base64"
	"net/http"
	"net/url"
)

type ScalarEvent struct {
	Title     string  `json:"title"`
	Series    string  `json:"series"`
	Iteration int     `json:"iteration"`
	Value     float64 `json:"value"`
}

type ImageEvent struct {
	Title     string `json:"title"`
	Series    string `json:"series"`
	Iteration int    `json:"iteration"`
	// PNG encoded image, base64
	Image string `json:"image"`
}

func (c *Client) ReportScalar(ctx context.Context, id string, title, series string, iteration int, value float64) error {
	event := ScalarEvent{Title: title, Series: series, Iteration: iteration, Value: value}
	path := "/tasks/" + url.PathEscape(id) + "/events/scalars"
	_, err := c.request(ctx, http.MethodPost, path, nil, event, &struct{}{})
	return err
}

func (c *Client) ReportImage(ctx context.Context, id string, title, series string, iteration int, png []byte) error {
	event := ImageEvent{
		Title:     title,
		Series:    series,
		Iteration: iteration,
		Image:     base64.StdEncoding.EncodeToString(png),
	}
	path := "/tasks/" + url.PathEscape(id) + "/events/images"
	_, err := c.request(ctx, http.MethodPost, path, nil, event, &struct{}{})
	return err
}
