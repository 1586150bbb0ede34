package telegram

import (
	"net"
	"net/http"
	"time"

	"github.com/m3rciful/catchbot/core/telegram/netutil"
)

const (
	dialTimeout      = 5 * time.Second
	tlsTimeout       = 5 * time.Second
	idleConnTimeout  = 90 * time.Second
	keepAlive        = 30 * time.Second
	responseSlack    = 5 * time.Second
	clientSlack      = 20 * time.Second
	dialRetries      = 2
	dialRetryBackoff = time.Second
)

// BuildHTTPClient returns the Bot API client. Timeouts outlast the long poll
// window so an idle getUpdates is never cut short.
func BuildHTTPClient(poll time.Duration) *http.Client {
	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           (&net.Dialer{Timeout: dialTimeout, KeepAlive: keepAlive}).DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   10,
		IdleConnTimeout:       idleConnTimeout,
		TLSHandshakeTimeout:   tlsTimeout,
		ResponseHeaderTimeout: poll + responseSlack,
		ExpectContinueTimeout: time.Second,
	}
	return &http.Client{
		Timeout:   poll + clientSlack,
		Transport: &dialRetryTransport{base: transport, retries: dialRetries, backoff: dialRetryBackoff},
	}
}

// dialRetryTransport replays requests that never reached Telegram. Anything
// that failed after the connection was up is left to the dispatcher, since
// the API may already have acted on it.
type dialRetryTransport struct {
	base    http.RoundTripper
	retries int
	backoff time.Duration
}

func (t *dialRetryTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	resp, err := t.base.RoundTrip(req)
	for attempt := 1; err != nil && attempt <= t.retries && netutil.DialFailure(err); attempt++ {
		if req.Body != nil && req.GetBody == nil {
			return nil, err
		}
		timer := time.NewTimer(t.backoff * time.Duration(attempt))
		select {
		case <-req.Context().Done():
			timer.Stop()
			return nil, req.Context().Err()
		case <-timer.C:
		}
		next := req.Clone(req.Context())
		if req.GetBody != nil {
			body, berr := req.GetBody()
			if berr != nil {
				return nil, berr
			}
			next.Body = body
		}
		resp, err = t.base.RoundTrip(next)
	}
	return resp, err
}
