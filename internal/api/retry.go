package api

import (
	"context"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v5"
)

const (
	retryInitialInterval = 500 * time.Millisecond
	retryMaxInterval     = 5 * time.Second
	retryMaxTries        = 3
)

// getJSON issues a GET with exponential backoff. Only transport failures
// and 5xx responses are retried; anything the server decided on purpose
// (4xx) is permanent. Mutations never go through this path.
func (c *Client) getJSON(ctx context.Context, hc *http.Client, path, token string, out any) error {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = retryInitialInterval
	bo.MaxInterval = retryMaxInterval

	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		err := c.do(ctx, hc, http.MethodGet, path, token, nil, out)
		if err != nil {
			if apiErr, ok := AsError(err); ok && apiErr.Status < 500 {
				return struct{}{}, backoff.Permanent(err)
			}
			return struct{}{}, err
		}
		return struct{}{}, nil
	}, backoff.WithBackOff(bo), backoff.WithMaxTries(retryMaxTries))

	return err
}
