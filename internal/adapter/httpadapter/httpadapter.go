package httpadapter

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Response is a fully read HTTP answer.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

type httpAdapter struct {
	cl *http.Client
}

func NewHTTPAdapter(timeout time.Duration, sslVerify bool) *httpAdapter {
	tr := http.DefaultTransport.(*http.Transport).Clone()
	if !sslVerify {
		tr.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec
	}

	return NewHTTPAdapterWithClient(&http.Client{
		Timeout:   timeout,
		Transport: tr,
	})
}

func NewHTTPAdapterWithClient(cl *http.Client) *httpAdapter {
	return &httpAdapter{cl: cl}
}

func (a *httpAdapter) Do(ctx context.Context, method, url string, header http.Header, body []byte) (*Response, error) {
	var rd io.Reader
	if body != nil {
		rd = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, rd)
	if err != nil {
		return nil, fmt.Errorf("cannot create request: %w", err)
	}

	for key, values := range header {
		for _, value := range values {
			req.Header.Add(key, value)
		}
	}

	resp, err := a.cl.Do(req)
	if err != nil {
		return nil, fmt.Errorf("cannot send request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("cannot read response body: %w", err)
	}

	return &Response{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       data,
	}, nil
}
