// Package client is the Go SDK for the Darasa API: a configured Gateway for
// typed REST and SSE access, an explicit Session owning auth state, and
// per-domain stores that keep local snapshots in sync with the change feed.
package client

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/darasa/realtime"
)

const defaultTimeout = 30 * time.Second

// TokenSource supplies the current bearer token; empty means anonymous.
type TokenSource func() string

type Gateway struct {
	baseURL string
	http    *http.Client
	token   TokenSource
}

type GatewayOption func(*Gateway)

func WithHTTPClient(c *http.Client) GatewayOption {
	return func(g *Gateway) { g.http = c }
}

func WithTokenSource(ts TokenSource) GatewayOption {
	return func(g *Gateway) { g.token = ts }
}

// NewGateway returns a Gateway rooted at baseURL (e.g. "https://api.darasa.cd").
func NewGateway(baseURL string, opts ...GatewayOption) *Gateway {
	g := &Gateway{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: defaultTimeout},
		token:   func() string { return "" },
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// UseTokenSource swaps the token source; Session wires itself in here.
func (g *Gateway) UseTokenSource(ts TokenSource) { g.token = ts }

// do runs one JSON round trip. A nil out discards the response body; API
// errors come back as *Error.
func (g *Gateway) do(ctx context.Context, method, path string, in, out interface{}) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return errors.Wrap(err, "encoding request body")
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, g.baseURL+path, body)
	if err != nil {
		return errors.Wrap(err, "building request")
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	g.authorize(req)

	resp, err := g.http.Do(req)
	if err != nil {
		return errors.Wrap(err, "calling API")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= http.StatusBadRequest {
		return decodeError(resp)
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err = json.NewDecoder(resp.Body).Decode(out); err != nil {
		return errors.Wrap(err, "decoding response body")
	}
	return nil
}

// upload posts one multipart file part named "file" plus extra form fields.
func (g *Gateway) upload(
	ctx context.Context,
	path, filename, contentType string,
	content []byte,
	fields map[string]string,
	out interface{},
) error {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	hdr := make(textproto.MIMEHeader)
	hdr.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, filename))
	hdr.Set("Content-Type", contentType)
	part, err := w.CreatePart(hdr)
	if err != nil {
		return errors.Wrap(err, "creating form file")
	}
	if _, err = part.Write(content); err != nil {
		return errors.Wrap(err, "writing form file")
	}
	for k, v := range fields {
		if err = w.WriteField(k, v); err != nil {
			return errors.Wrapf(err, "writing form field %q", k)
		}
	}
	if err = w.Close(); err != nil {
		return errors.Wrap(err, "closing multipart writer")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+path, &buf)
	if err != nil {
		return errors.Wrap(err, "building request")
	}
	req.Header.Set("Content-Type", w.FormDataContentType())
	g.authorize(req)

	resp, err := g.http.Do(req)
	if err != nil {
		return errors.Wrap(err, "calling API")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= http.StatusBadRequest {
		return decodeError(resp)
	}
	if out == nil {
		return nil
	}
	if err = json.NewDecoder(resp.Body).Decode(out); err != nil {
		return errors.Wrap(err, "decoding response body")
	}
	return nil
}

// download fetches raw bytes (e.g. an attachment body).
func (g *Gateway) download(ctx context.Context, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.baseURL+path, nil)
	if err != nil {
		return nil, errors.Wrap(err, "building request")
	}
	g.authorize(req)

	resp, err := g.http.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "calling API")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= http.StatusBadRequest {
		return nil, decodeError(resp)
	}
	data, err := io.ReadAll(resp.Body)
	return data, errors.Wrap(err, "reading response body")
}

// Subscribe consumes the SSE change feed for one (table, scope) pair. Events
// flow until cancel is called or ctx is done; cancel is idempotent.
func (g *Gateway) Subscribe(ctx context.Context, table, scopeID string) (<-chan realtime.Event, func(), error) {
	ctx, cancelCtx := context.WithCancel(ctx)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.baseURL+"/v1/feed/"+table+"/"+scopeID, nil)
	if err != nil {
		cancelCtx()
		return nil, nil, errors.Wrap(err, "building request")
	}
	req.Header.Set("Accept", "text/event-stream")
	g.authorize(req)

	// the stream outlives the client timeout; use a dedicated transport-only client
	sseClient := &http.Client{Transport: g.http.Transport}
	resp, err := sseClient.Do(req)
	if err != nil {
		cancelCtx()
		return nil, nil, errors.Wrap(err, "opening stream")
	}
	if resp.StatusCode != http.StatusOK {
		defer func() { _ = resp.Body.Close() }()
		cancelCtx()
		return nil, nil, decodeError(resp)
	}

	events := make(chan realtime.Event, 16)
	go func() {
		defer close(events)
		defer func() { _ = resp.Body.Close() }()

		scanner := bufio.NewScanner(resp.Body)
		for scanner.Scan() {
			line := scanner.Text()
			if !strings.HasPrefix(line, "data: ") {
				continue // heartbeats and blank lines
			}
			var ev realtime.Event
			if err := json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &ev); err != nil {
				continue
			}
			select {
			case events <- ev:
			case <-ctx.Done():
				return
			}
		}
	}()

	var once sync.Once
	cancel := func() { once.Do(cancelCtx) }
	return events, cancel, nil
}

func (g *Gateway) authorize(req *http.Request) {
	if token := g.token(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
}

func decodeError(resp *http.Response) error {
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	apiErr := new(Error)
	if err := json.Unmarshal(data, apiErr); err != nil || (apiErr.Message == "" && apiErr.Kind == "") {
		return &Error{Message: http.StatusText(resp.StatusCode), Kind: kindForStatus(resp.StatusCode)}
	}
	if apiErr.Kind == "" {
		apiErr.Kind = kindForStatus(resp.StatusCode)
	}
	return apiErr
}

func kindForStatus(code int) string {
	switch code {
	case http.StatusBadRequest:
		return KindValidation
	case http.StatusUnauthorized:
		return KindUnauthorized
	case http.StatusForbidden:
		return KindForbidden
	case http.StatusNotFound:
		return KindNotFound
	case http.StatusConflict:
		return KindConflict
	}
	return KindInternal
}
