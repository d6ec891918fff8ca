// Package proxy builds the per-upstream forwarding handlers the gateway
// hands permitted requests to.
package proxy

import (
	"fmt"
	"net/http"
	"net/http/httputil"
	"net/url"
	"time"

	pkglog "github.com/marketplace/edge/pkg/log"
	"github.com/marketplace/edge/pkg/metrics"
	"github.com/marketplace/edge/pkg/problem"
)

// Options configure the reverse proxy for one upstream.
type Options struct {
	Target   string
	Upstream string
	Registry *metrics.Registry
}

// New constructs a reverse proxy handler for the given upstream. The
// pipeline has already decided Permit and rewritten identity headers by the
// time a request reaches this handler; responses pass back unmodified.
func New(opts Options) (http.Handler, error) {
	target, err := url.Parse(opts.Target)
	if err != nil {
		return nil, err
	}

	rp := httputil.NewSingleHostReverseProxy(target)
	rp.FlushInterval = 200 * time.Millisecond

	originalDirector := rp.Director
	rp.Director = func(r *http.Request) {
		originalDirector(r)
		r.URL.Scheme = target.Scheme
		r.URL.Host = target.Host
		r.Host = target.Host
	}

	rp.ErrorHandler = func(w http.ResponseWriter, r *http.Request, err error) {
		pkglog.Logger().Errorw("proxy upstream failure", "error", err, "upstream", opts.Upstream, "url", r.URL.String())
		detail := fmt.Sprintf("Failed to reach %s service", opts.Upstream)
		problem.Write(w, http.StatusBadGateway, "Upstream Service Unavailable", detail, r.Header.Get("X-Trace-Id"), r.URL.Path)
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rp.ServeHTTP(w, r)
		if opts.Registry != nil {
			opts.Registry.ObserveProxyDuration(opts.Upstream, time.Since(start))
		}
	}), nil
}
