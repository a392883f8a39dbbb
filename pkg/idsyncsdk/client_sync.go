package idsyncsdk

import (
	"context"
	"net/http"
)

func (c *SDKClient) SyncStatus(ctx context.Context) (*Status, error) {
	var st Status
	if err := c.call(ctx, http.MethodGet, "/v1/sync/status", "", nil, &st, http.StatusOK); err != nil {
		return nil, err
	}
	return &st, nil
}

// SyncRun drains the queue once.
func (c *SDKClient) SyncRun(ctx context.Context) (*DrainReport, error) {
	var report DrainReport
	if err := c.call(ctx, http.MethodPost, "/v1/sync/run", "", nil, &report, http.StatusOK); err != nil {
		return nil, err
	}
	return &report, nil
}

// RetryFailed requeues permanently failed operations.
func (c *SDKClient) RetryFailed(ctx context.Context) (*RetryFailedResponse, error) {
	var out RetryFailedResponse
	if err := c.call(ctx, http.MethodPost, "/v1/sync/retry-failed", "", nil, &out, http.StatusOK); err != nil {
		return nil, err
	}
	return &out, nil
}
