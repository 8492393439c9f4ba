package ai

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"inventorycounter/internal/config"
	"inventorycounter/internal/dto"
)

// maxResponseBytes caps how much of an inference response is read.
const maxResponseBytes = 4 << 20

// ContractError is a response the detection service should never send:
// missing fields, wrong types, out of range confidence.
type ContractError struct {
	Field  string
	Index  int // prediction index, -1 for the envelope
	Reason string
}

func (e *ContractError) Error() string {
	if e.Index < 0 {
		return fmt.Sprintf("inference contract violation: %s %s", e.Field, e.Reason)
	}
	return fmt.Sprintf("inference contract violation: prediction %d: %s %s", e.Index, e.Field, e.Reason)
}

// IsContractError reports whether err is or wraps a *ContractError.
func IsContractError(err error) bool {
	var ce *ContractError
	return errors.As(err, &ce)
}

// Client calls a Roboflow-style hosted detection endpoint: the JPEG is posted
// base64-encoded and predictions come back in center form.
type Client struct {
	endpoint   string
	httpClient *http.Client
}

// NewClient builds a client for cfg.InferenceURL/cfg.InferenceModel.
func NewClient(cfg *config.Config) (*Client, error) {
	base, err := url.Parse(strings.TrimRight(cfg.InferenceURL, "/") + "/" + strings.Trim(cfg.InferenceModel, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid inference url: %w", err)
	}

	q := base.Query()
	if cfg.InferenceAPIKey != "" {
		q.Set("api_key", cfg.InferenceAPIKey)
	}
	q.Set("format", "json")
	base.RawQuery = q.Encode()

	return &Client{
		endpoint: base.String(),
		httpClient: &http.Client{
			Timeout: cfg.InferenceTimeout,
		},
	}, nil
}

// Detect sends one encoded frame and returns its detections. Transport
// failures, timeouts and non-2xx statuses are returned as plain errors;
// malformed bodies as *ContractError.
func (c *Client) Detect(ctx context.Context, jpeg []byte) ([]dto.Detection, error) {
	body := base64.StdEncoding.EncodeToString(jpeg)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewBufferString(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build inference request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("inference request failed after %s: %w", time.Since(start).Round(time.Millisecond), err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read inference response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("inference service returned %d: %s", resp.StatusCode, truncate(string(data), 200))
	}

	return ParsePredictions(data)
}

// ParsePredictions decodes {"predictions":[{class,confidence,x,y,width,height}]}.
// Every field must be present with the right type.
func ParsePredictions(data []byte) ([]dto.Detection, error) {
	if !gjson.ValidBytes(data) {
		return nil, &ContractError{Field: "body", Index: -1, Reason: "is not valid JSON"}
	}

	predictions := gjson.GetBytes(data, "predictions")
	if !predictions.Exists() {
		return nil, &ContractError{Field: "predictions", Index: -1, Reason: "is missing"}
	}
	if !predictions.IsArray() {
		return nil, &ContractError{Field: "predictions", Index: -1, Reason: "is not an array"}
	}

	items := predictions.Array()
	detections := make([]dto.Detection, 0, len(items))
	for i, item := range items {
		det, err := parsePrediction(i, item)
		if err != nil {
			return nil, err
		}
		detections = append(detections, det)
	}
	return detections, nil
}

func parsePrediction(index int, item gjson.Result) (dto.Detection, error) {
	if !item.IsObject() {
		return dto.Detection{}, &ContractError{Field: "prediction", Index: index, Reason: "is not an object"}
	}

	class := item.Get("class")
	if class.Type != gjson.String || class.String() == "" {
		return dto.Detection{}, &ContractError{Field: "class", Index: index, Reason: "is missing or not a string"}
	}

	numbers := make(map[string]float64, 5)
	for _, field := range []string{"confidence", "x", "y", "width", "height"} {
		value := item.Get(field)
		if value.Type != gjson.Number {
			return dto.Detection{}, &ContractError{Field: field, Index: index, Reason: "is missing or not a number"}
		}
		numbers[field] = value.Float()
	}

	if numbers["confidence"] < 0 || numbers["confidence"] > 1 {
		return dto.Detection{}, &ContractError{Field: "confidence", Index: index, Reason: "is outside [0,1]"}
	}

	return dto.Detection{
		Class:      class.String(),
		Confidence: numbers["confidence"],
		X:          numbers["x"],
		Y:          numbers["y"],
		Width:      numbers["width"],
		Height:     numbers["height"],
	}, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
