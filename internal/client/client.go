package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/datacove/exporttrack/internal/config"
	"github.com/datacove/exporttrack/internal/domain"
)

// Client interfaces with the backend that owns the exportable objects and
// their export jobs.
type Client interface {
	// FetchExportRecords returns the object's export history, newest first,
	// together with the object's last modification time.
	FetchExportRecords(ctx context.Context, objectID domain.ObjectID) (*RecordPage, error)
	// RequestExport asks the backend to start a new export job.
	RequestExport(ctx context.Context, objectID domain.ObjectID, format string) (domain.RecordID, error)
	// RequestDownload resolves a ready export record to a download URL.
	RequestDownload(ctx context.Context, recordID domain.RecordID) (string, error)
	// RequestReimport materializes a ready export as a new object and
	// returns the new object's identifier.
	RequestReimport(ctx context.Context, recordID domain.RecordID) (domain.ObjectID, error)
	// ArchiveURL composes the stable share link for a record. No I/O.
	ArchiveURL(recordID domain.RecordID) string
}

// RecordPage is one fetch response: the raw records plus the source object's
// last modification time, reported together so staleness can be derived.
type RecordPage struct {
	SourceUpdatedAt time.Time
	Records         []domain.RawRecord
}

// HTTPClient implements Client against the backend's REST API.
type HTTPClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewClient creates a new backend API client.
func NewClient(cfg config.BackendConfig) *HTTPClient {
	return &HTTPClient{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
	}
}

// exportListResponse is the wire shape of the export history endpoint.
type exportListResponse struct {
	UpdateTime string             `json:"update_time"`
	Exports    []domain.RawRecord `json:"exports"`
}

// FetchExportRecords returns the object's export history, newest first.
func (c *HTTPClient) FetchExportRecords(ctx context.Context, objectID domain.ObjectID) (*RecordPage, error) {
	const op = "fetch export records"

	var listResp exportListResponse
	url := fmt.Sprintf("%s/api/objects/%s/exports", c.baseURL, objectID)
	if err := c.do(ctx, op, http.MethodGet, url, nil, nil, &listResp); err != nil {
		return nil, err
	}

	updatedAt, err := time.Parse(time.RFC3339Nano, listResp.UpdateTime)
	if err != nil {
		return nil, domain.NewTransportError(op, 0, fmt.Errorf("parse update_time: %w", err))
	}

	return &RecordPage{
		SourceUpdatedAt: updatedAt,
		Records:         listResp.Exports,
	}, nil
}

// RequestExport asks the backend to start a new export job for objectID.
func (c *HTTPClient) RequestExport(ctx context.Context, objectID domain.ObjectID, format string) (domain.RecordID, error) {
	const op = "request export"

	reqBody := struct {
		Format string `json:"format"`
	}{Format: format}

	var resp struct {
		ID string `json:"id"`
	}
	url := fmt.Sprintf("%s/api/objects/%s/exports", c.baseURL, objectID)
	if err := c.do(ctx, op, http.MethodPost, url, nil, reqBody, &resp); err != nil {
		return "", err
	}
	if resp.ID == "" {
		return "", domain.NewTransportError(op, 0, errors.New("backend returned no record id"))
	}
	return domain.RecordID(resp.ID), nil
}

// RequestDownload resolves recordID to a download URL. The backend rejects
// the request if the record is not ready.
func (c *HTTPClient) RequestDownload(ctx context.Context, recordID domain.RecordID) (string, error) {
	const op = "request download"

	var resp struct {
		DownloadURL string `json:"download_url"`
	}
	url := fmt.Sprintf("%s/api/exports/%s/download", c.baseURL, recordID)
	if err := c.do(ctx, op, http.MethodPost, url, nil, nil, &resp); err != nil {
		return "", err
	}
	if resp.DownloadURL == "" {
		return "", domain.NewTransportError(op, 0, errors.New("backend returned no download URL"))
	}
	return resp.DownloadURL, nil
}

// RequestReimport materializes the exported archive as a new object. An
// idempotency key guards against the backend seeing a stray duplicate of a
// request whose response was lost.
func (c *HTTPClient) RequestReimport(ctx context.Context, recordID domain.RecordID) (domain.ObjectID, error) {
	const op = "request reimport"

	headers := map[string]string{
		"Idempotency-Key": uuid.NewString(),
	}

	var resp struct {
		ObjectID string `json:"object_id"`
	}
	url := fmt.Sprintf("%s/api/exports/%s/reimport", c.baseURL, recordID)
	if err := c.do(ctx, op, http.MethodPost, url, headers, nil, &resp); err != nil {
		return "", err
	}
	if resp.ObjectID == "" {
		return "", domain.NewTransportError(op, 0, errors.New("backend returned no object id"))
	}
	return domain.ObjectID(resp.ObjectID), nil
}

// ArchiveURL composes the stable share link for a record.
func (c *HTTPClient) ArchiveURL(recordID domain.RecordID) string {
	return fmt.Sprintf("%s/api/exports/%s/archive", c.baseURL, recordID)
}

// do issues one request and decodes a JSON response into out. Any network
// failure or non-2xx status is wrapped in a TransportError.
func (c *HTTPClient) do(ctx context.Context, op, method, url string, headers map[string]string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return domain.NewTransportError(op, 0, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return domain.NewTransportError(op, 0, fmt.Errorf("read response: %w", err))
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return domain.NewTransportError(op, resp.StatusCode, errors.New(backendMessage(respBody)))
	}

	if err := json.Unmarshal(respBody, out); err != nil {
		return domain.NewTransportError(op, 0, fmt.Errorf("unmarshal response: %w", err))
	}
	return nil
}

// backendMessage extracts the backend's error message from an error body,
// falling back to the raw body.
func backendMessage(body []byte) string {
	var e struct {
		Message string `json:"err_msg"`
	}
	if err := json.Unmarshal(body, &e); err == nil && e.Message != "" {
		return e.Message
	}
	msg := strings.TrimSpace(string(body))
	if msg == "" {
		return "no error detail"
	}
	return msg
}
