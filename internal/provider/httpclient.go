// SPDX-License-Identifier: Apache-2.0

package provider

import (
	"time"

	"github.com/go-resty/resty/v2"
)

const (
	defaultTimeout       = 10 * time.Second
	defaultRetryCount    = 3
	defaultRetryWaitTime = 500 * time.Millisecond
)

// NewHTTPClient returns a resty.Client preconfigured the way every provider
// implementation talks to its upstream REST API: a bounded timeout, a small
// retry budget for transient 5xx/network errors, and baseURL pinned to the
// provider's API root.
func NewHTTPClient(baseURL string) *resty.Client {
	c := resty.New()
	c.SetBaseURL(baseURL)
	c.SetTimeout(defaultTimeout)
	c.SetRetryCount(defaultRetryCount)
	c.SetRetryWaitTime(defaultRetryWaitTime)
	c.AddRetryCondition(func(r *resty.Response, err error) bool {
		return err != nil || r.StatusCode() >= 500
	})
	return c
}
