// Package netutil classifies Telegram call failures for the retry loops of
// the HTTP transport and the outbound dispatcher.
package netutil

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	tele "gopkg.in/telebot.v4"
)

// DialFailure reports whether err happened before the request reached
// Telegram: a refused or timed out dial, or a DNS lookup failure. Only these
// are safe to replay at the transport level, since a sendMessage that timed
// out after being written may already have been delivered.
func DialFailure(err error) bool {
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return true
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return opErr.Op == "dial"
	}
	return false
}

// Timeout reports whether err is a network or context timeout.
func Timeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	var urlErr *url.Error
	return errors.As(err, &urlErr) && urlErr.Timeout()
}

// Retry reports whether a failed Bot API call is worth another attempt and
// how long Telegram asked us to wait first. A zero wait means the caller
// picks its own backoff.
func Retry(err error) (bool, time.Duration) {
	if err == nil {
		return false, 0
	}
	var flood tele.FloodError
	if errors.As(err, &flood) {
		return true, time.Duration(flood.RetryAfter) * time.Second
	}
	if code := StatusCode(err); code >= http.StatusInternalServerError {
		return true, 0
	}
	return DialFailure(err) || Timeout(err), 0
}

// StatusCode extracts the Bot API status code carried by err, or 0.
func StatusCode(err error) int {
	if err == nil {
		return 0
	}
	var flood tele.FloodError
	if errors.As(err, &flood) {
		return http.StatusTooManyRequests
	}
	var group tele.GroupError
	if errors.As(err, &group) {
		return http.StatusBadRequest
	}
	var apiErr *tele.Error
	if errors.As(err, &apiErr) {
		return apiErr.Code
	}
	// codes telebot has no sentinel for arrive as "telegram: <description> (<code>)"
	msg := err.Error()
	open, end := strings.LastIndexByte(msg, '('), strings.LastIndexByte(msg, ')')
	if !strings.HasPrefix(msg, "telegram: ") || open < 0 || end != len(msg)-1 {
		return 0
	}
	code, _ := strconv.Atoi(msg[open+1 : end])
	return code
}

// Kind is a short label for logs.
func Kind(err error) string {
	switch code := StatusCode(err); {
	case err == nil:
		return ""
	case code == http.StatusTooManyRequests:
		return "flood"
	case code >= 500:
		return "http_5xx"
	case code >= 400:
		return "http_4xx"
	case Timeout(err):
		return "timeout"
	case DialFailure(err):
		return "dial"
	}
	return "unknown"
}
