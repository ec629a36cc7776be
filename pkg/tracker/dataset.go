package tracker

import (
	"context"
	"net/http"
	"net/url"

	"golang.org/x/exp/slices"
	"kubegems.io/trackx/pkg/errors"
	"kubegems.io/trackx/pkg/types"
)

func (c *Client) ListDatasets(ctx context.Context, project string) ([]types.Dataset, error) {
	list := &types.DatasetList{}
	path := "/datasets?" + url.Values{"project": {project}}.Encode()
	if _, err := c.request(ctx, http.MethodGet, path, nil, nil, list); err != nil {
		return nil, err
	}
	return list.Datasets, nil
}

// GetDataset returns the most recently created version of the named dataset.
func (c *Client) GetDataset(ctx context.Context, project, name string) (*types.Dataset, error) {
	list := &types.DatasetList{}
	path := "/datasets?" + url.Values{"project": {project}, "name": {name}}.Encode()
	if _, err := c.request(ctx, http.MethodGet, path, nil, nil, list); err != nil {
		return nil, err
	}
	if len(list.Datasets) == 0 {
		return nil, errors.NewDatasetUnknownError(project, name)
	}
	datasets := list.Datasets
	slices.SortFunc(datasets, func(a, b types.Dataset) bool {
		return a.Created.After(b.Created)
	})
	latest := datasets[0]
	slices.SortFunc(latest.Files, types.SortDescriptorName)
	return &latest, nil
}
