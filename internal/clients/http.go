// Package clients provides thin HTTP/JSON clients for the sibling services
// this backend consumes: participant records, giveaway metadata, and
// channel-membership checks. The contracts are narrow request/response
// pairs; none of the collaborator logic is reimplemented here.
//
// All calls run with a short timeout so a slow dependency cannot stall the
// intake path. Failures are returned to the caller, which surfaces a
// generic "try again later" to the user and abandons the operation;
// interactive collaborator calls are never retried in the background.
package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// serviceNameHeader identifies this service to collaborators.
const serviceNameHeader = "bot-service"

// DefaultTimeout bounds every collaborator call.
const DefaultTimeout = 5 * time.Second

type baseClient struct {
	baseURL string
	hc      *http.Client
}

func newBaseClient(baseURL string, timeout time.Duration) baseClient {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return baseClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		hc:      &http.Client{Timeout: timeout},
	}
}

// doJSON performs one request and decodes the response body into out (when
// out is non-nil). Non-2xx statuses are returned as errors carrying the
// status code.
func (c baseClient) doJSON(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Service-Name", serviceNameHeader)

	resp, err := c.hc.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("%s %s: unexpected status %d", method, path, resp.StatusCode)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
