// Package publish talks to the destination index: the registration probe and
// the legacy register and upload actions.
package publish

import (
	"net/http"
	"strings"
	"time"

	"github.com/spachava753/granny/internal/config"
)

const defaultUserAgent = "granny/1.0"

// client holds what the Checker and Publisher share.
type client struct {
	resolver  config.RepositoryResolver
	http      *http.Client
	userAgent string
}

// Option configures a Checker or Publisher.
type Option func(*client)

// WithHTTPClient replaces the underlying http.Client.
func WithHTTPClient(c *http.Client) Option {
	return func(cl *client) { cl.http = c }
}

// WithTimeout sets a per-request timeout. Zero means none.
func WithTimeout(d time.Duration) Option {
	return func(cl *client) { cl.http.Timeout = d }
}

func WithUserAgent(ua string) Option {
	return func(cl *client) {
		if ua != "" {
			cl.userAgent = ua
		}
	}
}

func newClient(resolver config.RepositoryResolver, opts []Option) client {
	c := client{
		resolver:  resolver,
		http:      &http.Client{},
		userAgent: defaultUserAgent,
	}
	for _, opt := range opts {
		opt(&c)
	}
	return c
}

func endpoint(repoURL string) string {
	return strings.TrimRight(repoURL, "/")
}
