// Package fus talks to the vendor firmware update service: the nonce
// handshake, signed binary-inform and binary-init requests, and the binary
// download itself.
package fus

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/pkg/errors"
)

const (
	DefaultBaseURL     = "https://neofussvr.sslcs.cdngc.net/"
	DefaultDownloadURL = "http://cloud-neofussvr.samsungmobile.com/"

	userAgent = "Kies2.0_FUS"

	pathGenerateNonce = "NF_DownloadGenerateNonce.do"
	pathBinaryInform  = "NF_DownloadBinaryInform.do"
	pathBinaryInit    = "NF_DownloadBinaryInitForMass.do"
	pathBinaryForMass = "NF_DownloadBinaryForMass.do"
)

// StatusError is returned when the server answers with an HTTP error.
type StatusError struct {
	Path string
	Code int
	Body string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("fus: %s: HTTP %d", e.Path, e.Code)
	}
	return fmt.Sprintf("fus: %s: HTTP %d - %s", e.Path, e.Code, e.Body)
}

// Client holds one FUS session. It is not safe for concurrent use; every
// request may rotate the nonce and session cookie.
type Client struct {
	auth     string
	sessID   string
	encNonce string
	nonce    string

	baseURL     string
	downloadURL string
	client      *http.Client
	log         *slog.Logger
}

type Option func(*Client)

func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = withSlash(u) }
}

func WithDownloadURL(u string) Option {
	return func(c *Client) { c.downloadURL = withSlash(u) }
}

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.client = hc }
}

func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.log = l }
}

func withSlash(u string) string {
	if strings.HasSuffix(u, "/") {
		return u
	}
	return u + "/"
}

// NewClient opens a session by requesting a fresh nonce.
func NewClient(ctx context.Context, opts ...Option) (*Client, error) {
	c := &Client{
		baseURL:     DefaultBaseURL,
		downloadURL: DefaultDownloadURL,
		client:      &http.Client{},
		log:         slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if _, err := c.MakeReq(ctx, pathGenerateNonce, nil); err != nil {
		return nil, errors.Wrap(err, "fus: generate nonce")
	}
	if c.nonce == "" {
		return nil, errors.New("fus: server did not send a nonce")
	}
	return c, nil
}

// Nonce returns the decrypted nonce of the current session.
func (c *Client) Nonce() string {
	return c.nonce
}

// MakeReq posts data to a FUS endpoint and returns the response body.
func (c *Client) MakeReq(ctx context.Context, path string, data []byte) ([]byte, error) {
	authv := fmt.Sprintf(`FUS nonce="", signature="%s", nc="", type="", realm="", newauth="1"`, c.auth)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", authv)
	req.Header.Set("User-Agent", userAgent)
	if c.sessID != "" {
		req.AddCookie(&http.Cookie{Name: "JSESSIONID", Value: c.sessID})
	}

	c.log.Debug("fus request", "path", path, "bytes", len(data))
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, errors.Wrapf(err, "fus: %s", path)
	}
	defer resp.Body.Close()

	if err := c.updateSession(resp); err != nil {
		return nil, err
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrapf(err, "fus: read %s response", path)
	}
	if resp.StatusCode >= 400 {
		return nil, &StatusError{Path: path, Code: resp.StatusCode, Body: string(body)}
	}
	return body, nil
}

func (c *Client) updateSession(resp *http.Response) error {
	if encNonce := resp.Header.Get("NONCE"); encNonce != "" {
		nonce, err := DecryptNonce(encNonce)
		if err != nil {
			return err
		}
		auth, err := Signature(nonce)
		if err != nil {
			return err
		}
		c.encNonce, c.nonce, c.auth = encNonce, nonce, auth
		c.log.Debug("fus nonce rotated")
	}
	for _, cookie := range resp.Cookies() {
		if cookie.Name == "JSESSIONID" {
			c.sessID = cookie.Value
		}
	}
	return nil
}

// BinaryInform asks the server for the binary metadata of a firmware version.
func (c *Client) BinaryInform(ctx context.Context, req InformRequest) (*BinaryInfo, error) {
	body, err := BuildBinaryInform(req, c.nonce)
	if err != nil {
		return nil, errors.Wrap(err, "fus: build binary inform")
	}
	resp, err := c.MakeReq(ctx, pathBinaryInform, body)
	if err != nil {
		return nil, err
	}
	info, err := ParseBinaryInfo(resp)
	if err != nil {
		return nil, err
	}
	c.log.Debug("binary inform", "model", req.Model, "region", req.Region, "status", info.Status)
	return info, nil
}

// BinaryInit must precede a download of filename.
func (c *Client) BinaryInit(ctx context.Context, filename string) error {
	body, err := BuildBinaryInit(filename, c.nonce)
	if err != nil {
		return errors.Wrap(err, "fus: build binary init")
	}
	_, err = c.MakeReq(ctx, pathBinaryInit, body)
	return err
}

// DownloadFile starts downloading a binary at byte offset start. The caller
// closes the response body.
func (c *Client) DownloadFile(ctx context.Context, filename string, start int64) (*http.Response, error) {
	authv := fmt.Sprintf(`FUS nonce="%s", signature="%s", nc="", type="", realm="", newauth="1"`, c.encNonce, c.auth)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.downloadURL+pathBinaryForMass+"?file="+filename, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", authv)
	req.Header.Set("User-Agent", userAgent)
	if start > 0 {
		req.Header.Set("Range", fmt.Sprintf("bytes=%d-", start))
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "fus: download")
	}
	if resp.StatusCode >= 400 {
		resp.Body.Close()
		return nil, &StatusError{Path: pathBinaryForMass, Code: resp.StatusCode}
	}
	return resp, nil
}
