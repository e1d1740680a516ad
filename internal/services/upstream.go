package services

import (
	"errors"
	"fmt"
	"io"
	"net/http"
)

// ErrUpstream is wrapped by every error caused by a third-party provider answering with something
// other than a usable payload.
var ErrUpstream = errors.New("upstream error")

func upstreamStatusError(resp *http.Response) error {
	// We read a bounded prefix of the body to give the log some context
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	return fmt.Errorf("%w: status %d: %s", ErrUpstream, resp.StatusCode, string(body))
}
