package source

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

const (
	UpdatePositionPath = "/gps-tracking/update-position"
	StartTrackingPath  = "/gps-tracking/start-tracking"
	StopTrackingPath   = "/gps-tracking/stop-tracking"
)

// APIError is a non-2xx answer from the tracking service.
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("tracking service returned %d", e.Status)
	}
	return fmt.Sprintf("tracking service returned %d %s: %s", e.Status, e.Code, e.Message)
}

// HTTPSender posts fixes to the tracking service as the worker owning token.
type HTTPSender struct {
	baseURL string
	token   string
	client  *http.Client
}

// NewHTTPSender returns a sender for the service at baseURL. A nil client
// gets a 10 second timeout.
func NewHTTPSender(baseURL, token string, client *http.Client) *HTTPSender {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &HTTPSender{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		client:  client,
	}
}

type updatePositionBody struct {
	Latitude  float64  `json:"latitude"`
	Longitude float64  `json:"longitude"`
	Accuracy  *float64 `json:"accuracy,omitempty"`
	Speed     *float64 `json:"speed,omitempty"`
	Heading   *float64 `json:"heading,omitempty"`
}

type errorBody struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func (h *HTTPSender) Send(ctx context.Context, f Fix) error {
	return h.post(ctx, UpdatePositionPath, updatePositionBody{
		Latitude:  f.Latitude,
		Longitude: f.Longitude,
		Accuracy:  f.Accuracy,
		Speed:     f.Speed,
		Heading:   f.Heading,
	})
}

// StartTracking opens a tracking session. Empty ids are omitted.
func (h *HTTPSender) StartTracking(ctx context.Context, routeID, vehicleID string) error {
	body := map[string]string{}
	if routeID != "" {
		body["routeId"] = routeID
	}
	if vehicleID != "" {
		body["vehicleId"] = vehicleID
	}
	return h.post(ctx, StartTrackingPath, body)
}

func (h *HTTPSender) StopTracking(ctx context.Context) error {
	return h.post(ctx, StopTrackingPath, nil)
}

func (h *HTTPSender) post(ctx context.Context, path string, payload any) error {
	var body io.Reader = http.NoBody
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.baseURL+path, body)
	if err != nil {
		return err
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Authorization", "Bearer "+h.token)

	resp, err := h.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}

	apiErr := &APIError{Status: resp.StatusCode}
	var eb errorBody
	if err := json.NewDecoder(io.LimitReader(resp.Body, 64<<10)).Decode(&eb); err == nil {
		apiErr.Code = eb.Error.Code
		apiErr.Message = eb.Error.Message
	}
	return apiErr
}
