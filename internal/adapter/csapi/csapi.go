package csapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/google/uuid"
	"github.com/jgivc/csclient/internal/adapter/httpadapter"
	"github.com/jgivc/csclient/internal/common"
)

const (
	pathUsers                = "/api/users/"
	pathClients              = "/api/clients"
	pathProducts             = "/api/products/"
	pathPassword             = "/api/password"
	pathPasswordRequirements = "/api/password/requirements"
	pathTransfers            = "/api/transfers/"

	contentTypeJSON   = "application/json"
	contentTypeBinary = "application/octet-stream"
)

type Requester interface {
	Do(ctx context.Context, method, url string, header http.Header, body []byte) (*httpadapter.Response, error)
}

// Result is a successful answer: Data for 200, Location for 201, nothing for 204.
type Result struct {
	StatusCode int
	Location   string
	Data       json.RawMessage
}

func (r *Result) Decode(v any) error {
	if r == nil || len(r.Data) == 0 {
		return fmt.Errorf("empty response: %w", common.ErrUnexpectedResponseFormat)
	}

	if err := json.Unmarshal(r.Data, v); err != nil {
		return fmt.Errorf("cannot decode response: %w", err)
	}

	return nil
}

type errorBody struct {
	ErrorCode    int    `json:"errorCode"`
	ErrorMessage string `json:"errorMessage"`
}

type Client struct {
	server string
	rq     Requester
	header *Header
	log    *slog.Logger
}

func NewClient(server, apiVersion string, rq Requester, log *slog.Logger) (*Client, error) {
	header, err := NewHeader(apiVersion)
	if err != nil {
		return nil, err
	}

	return &Client{
		server: strings.TrimRight(server, "/"),
		rq:     rq,
		header: header,
		log:    log.With(slog.String("item", "CSAPIClient")),
	}, nil
}

func (c *Client) Server() string {
	return c.server
}

func (c *Client) Header() *Header {
	return c.header
}

func (c *Client) SetClientID(id string) {
	c.header.SetClientID(id)
}

func (c *Client) SetVerificationToken(token string) {
	c.header.SetVerificationToken(token)
}

func (c *Client) UsersURL(email string) string {
	return c.server + pathUsers + url.PathEscape(email)
}

func (c *Client) SessionsURL(email string) string {
	return c.UsersURL(email) + "/transfer-sessions"
}

func (c *Client) TransfersURL(email string) string {
	return c.UsersURL(email) + "/transfers"
}

func (c *Client) StatusURL(email, trackingID string) string {
	return c.TransfersURL(email) + "/" + url.PathEscape(trackingID)
}

// Call sends payload as JSON when it is not nil.
func (c *Client) Call(ctx context.Context, method, url string, payload any) (*Result, error) {
	hdr := c.header.HTTPHeader()

	var body []byte
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("cannot encode request: %w", err)
		}

		body = data
		hdr.Set("Content-Type", contentTypeJSON)
	}

	resp, err := c.do(ctx, method, url, hdr, body)
	if err != nil {
		return nil, err
	}

	return handleResponse(resp)
}

func (c *Client) Upload(ctx context.Context, url string, content []byte) (*Result, error) {
	hdr := c.header.HTTPHeader()
	hdr.Set("Content-Type", contentTypeBinary)

	if content == nil {
		content = []byte{}
	}

	resp, err := c.do(ctx, http.MethodPut, url, hdr, content)
	if err != nil {
		return nil, err
	}

	return handleResponse(resp)
}

// Download returns the raw body of a successful GET.
func (c *Client) Download(ctx context.Context, url string) ([]byte, error) {
	resp, err := c.do(ctx, http.MethodGet, url, c.header.HTTPHeader(), nil)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, newRemoteError(resp)
	}

	return resp.Body, nil
}

func (c *Client) do(ctx context.Context, method, url string, hdr http.Header, body []byte) (*httpadapter.Response, error) {
	log := c.log.With(slog.String("request_id", uuid.NewString()), slog.String("method", method), slog.String("url", redact(url)))
	log.Debug("Send request")

	resp, err := c.rq.Do(ctx, method, url, hdr, body)
	if err != nil {
		log.Error("Cannot send request", slog.Any("error", err))

		return nil, fmt.Errorf("cannot %s %s: %w", method, redact(url), err)
	}

	log.Debug("Got response", slog.Int("status", resp.StatusCode), slog.Int("body_size", len(resp.Body)))

	return resp, nil
}

func handleResponse(resp *httpadapter.Response) (*Result, error) {
	res := &Result{StatusCode: resp.StatusCode}

	switch {
	case resp.StatusCode == http.StatusCreated:
		res.Location = resp.Header.Get("Location")
	case resp.StatusCode == http.StatusNoContent:
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		res.Data = unwrapData(resp.Body)
	default:
		return nil, newRemoteError(resp)
	}

	return res, nil
}

// unwrapData returns the "data" member of an envelope, or the body itself.
func unwrapData(body []byte) json.RawMessage {
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return nil
	}

	var envelope map[string]json.RawMessage
	if err := json.Unmarshal(body, &envelope); err == nil {
		if data, exists := envelope["data"]; exists {
			return data
		}
	}

	return json.RawMessage(body)
}

func newRemoteError(resp *httpadapter.Response) error {
	rerr := &common.RemoteError{Status: resp.StatusCode}

	var eb errorBody
	if err := json.Unmarshal(resp.Body, &eb); err == nil {
		rerr.Code = eb.ErrorCode
		rerr.Message = eb.ErrorMessage
	}

	return rerr
}

// redact drops query strings, they may carry transfer passwords.
func redact(rawURL string) string {
	if i := strings.IndexByte(rawURL, '?'); i >= 0 {
		return rawURL[:i]
	}

	return rawURL
}
