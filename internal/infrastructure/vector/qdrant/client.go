package qdrant

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kirillkom/alpine-guardian/internal/core/domain"
	"github.com/kirillkom/alpine-guardian/internal/infrastructure/resilience"
)

const (
	payloadIndexID = "index_id"
	payloadText    = "text"
)

// pointNamespace derives stable Qdrant point ids from index ids, so re-upserting doc_N overwrites.
var pointNamespace = uuid.MustParse("6f1c3e52-8f0b-4a57-9d3e-2b7a1c9e4d10")

type Client struct {
	baseURL    string
	collection string
	httpClient *http.Client
	executor   *resilience.Executor

	ensureMu          sync.Mutex
	ensuredCollection bool
	ensuredVectorSize int
}

func New(baseURL, collection string, executor *resilience.Executor) *Client {
	if executor == nil {
		executor = resilience.NewExecutor(resilience.DefaultConfig())
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		collection: collection,
		httpClient: &http.Client{Timeout: 60 * time.Second},
		executor:   executor,
	}
}

type point struct {
	ID      string         `json:"id"`
	Vector  []float32      `json:"vector"`
	Payload map[string]any `json:"payload"`
}

func (c *Client) Insert(ctx context.Context, items []domain.IndexedVector) error {
	if len(items) == 0 {
		return nil
	}
	size := len(items[0].Vector)
	points := make([]point, 0, len(items))
	for _, item := range items {
		if len(item.Vector) != size {
			return fmt.Errorf("vector %s dimension mismatch: got %d, expected %d", item.ID, len(item.Vector), size)
		}
		payload := make(map[string]any, len(item.Metadata)+2)
		for k, v := range item.Metadata {
			payload[k] = v
		}
		payload[payloadIndexID] = item.ID
		payload[payloadText] = item.Text
		points = append(points, point{
			ID:      PointID(item.ID),
			Vector:  item.Vector,
			Payload: payload,
		})
	}

	if err := c.ensureCollection(ctx, size); err != nil {
		return err
	}

	path := fmt.Sprintf("/collections/%s/points?wait=true", c.collection)
	return c.do(ctx, "upsert", http.MethodPut, path, map[string]any{"points": points}, nil)
}

func (c *Client) Query(
	ctx context.Context,
	vector []float32,
	k int,
	filter domain.RetrievalFilter,
) ([]domain.IndexMatch, error) {
	if k <= 0 {
		return []domain.IndexMatch{}, nil
	}
	reqBody := map[string]any{
		"vector":       vector,
		"limit":        k,
		"with_payload": true,
	}
	if must := mustConditions(filter); len(must) > 0 {
		reqBody["filter"] = map[string]any{"must": must}
	}

	var searchResp struct {
		Result []struct {
			Score   float64        `json:"score"`
			Payload map[string]any `json:"payload"`
		} `json:"result"`
	}
	path := fmt.Sprintf("/collections/%s/points/search", c.collection)
	if err := c.do(ctx, "search", http.MethodPost, path, reqBody, &searchResp); err != nil {
		if isMissingCollection(err) {
			return []domain.IndexMatch{}, nil
		}
		return nil, err
	}

	out := make([]domain.IndexMatch, 0, len(searchResp.Result))
	for _, r := range searchResp.Result {
		metadata := make(map[string]string, len(r.Payload))
		for key := range r.Payload {
			if key == payloadText || key == payloadIndexID {
				continue
			}
			metadata[key] = getStringPayload(r.Payload, key)
		}
		out = append(out, domain.IndexMatch{
			ID:       getStringPayload(r.Payload, payloadIndexID),
			Text:     getStringPayload(r.Payload, payloadText),
			Metadata: metadata,
			Distance: 1 - r.Score,
		})
	}
	return out, nil
}

func (c *Client) Count(ctx context.Context) (int, error) {
	var countResp struct {
		Result struct {
			Count int `json:"count"`
		} `json:"result"`
	}
	path := fmt.Sprintf("/collections/%s/points/count", c.collection)
	if err := c.do(ctx, "count", http.MethodPost, path, map[string]any{"exact": true}, &countResp); err != nil {
		if isMissingCollection(err) {
			return 0, nil
		}
		return 0, err
	}
	return countResp.Result.Count, nil
}

// Clear drops the collection. The next Insert recreates it.
func (c *Client) Clear(ctx context.Context) error {
	path := fmt.Sprintf("/collections/%s", c.collection)
	if err := c.do(ctx, "delete collection", http.MethodDelete, path, nil, nil); err != nil && !isMissingCollection(err) {
		return err
	}
	c.ensureMu.Lock()
	c.ensuredCollection = false
	c.ensuredVectorSize = 0
	c.ensureMu.Unlock()
	return nil
}

// Ping checks that Qdrant answers. Used by health reporting.
func (c *Client) Ping(ctx context.Context) error {
	return c.do(ctx, "list collections", http.MethodGet, "/collections", nil, nil)
}

// PointID maps an index id to the uuid Qdrant stores it under.
func PointID(indexID string) string {
	return uuid.NewSHA1(pointNamespace, []byte(indexID)).String()
}

func mustConditions(filter domain.RetrievalFilter) []map[string]any {
	var must []map[string]any
	if filter.Location != "" {
		must = append(must, matchCondition(domain.MetaLocation, filter.Location))
	}
	if filter.Category != "" {
		must = append(must, matchCondition(domain.MetaCategory, filter.Category))
	}
	return must
}

func matchCondition(key, value string) map[string]any {
	return map[string]any{
		"key":   key,
		"match": map[string]any{"value": value},
	}
}

func (c *Client) ensureCollection(ctx context.Context, vectorSize int) error {
	c.ensureMu.Lock()
	if c.ensuredCollection && c.ensuredVectorSize == vectorSize {
		c.ensureMu.Unlock()
		return nil
	}
	c.ensureMu.Unlock()

	reqBody := map[string]any{
		"vectors": map[string]any{
			"size":     vectorSize,
			"distance": "Cosine",
		},
	}
	path := fmt.Sprintf("/collections/%s", c.collection)
	err := c.do(ctx, "ensure collection", http.MethodPut, path, reqBody, nil)
	if err != nil && !isStatus(err, http.StatusConflict) {
		return err
	}

	c.ensureMu.Lock()
	c.ensuredCollection = true
	c.ensuredVectorSize = vectorSize
	c.ensureMu.Unlock()
	return nil
}

func (c *Client) do(ctx context.Context, operation, method, path string, body any, out any) error {
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal %s body: %w", operation, err)
		}
	}

	err := c.executor.Execute(ctx, "qdrant."+operation, func(callCtx context.Context) error {
		var reader io.Reader
		if payload != nil {
			reader = bytes.NewReader(payload)
		}
		req, err := http.NewRequestWithContext(callCtx, method, c.baseURL+path, reader)
		if err != nil {
			return fmt.Errorf("create %s request: %w", operation, err)
		}
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("qdrant %s request: %w", operation, err)
		}
		defer resp.Body.Close()

		if resp.StatusCode >= 300 {
			return resilience.StatusError("qdrant", operation, resp)
		}
		if out == nil {
			return nil
		}
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode %s response: %w", operation, err)
		}
		return nil
	}, classifyQdrantError)
	return resilience.WrapTemporary("qdrant "+operation, err, classifyQdrantError)
}

// Missing collections and conflicts are expected states, not provider failures.
func classifyQdrantError(err error) resilience.ErrorClassification {
	if isMissingCollection(err) || isStatus(err, http.StatusConflict) {
		return resilience.ErrorClassification{}
	}
	return resilience.ClassifyHTTPError(err)
}

func isMissingCollection(err error) bool {
	return isStatus(err, http.StatusNotFound)
}

func isStatus(err error, status int) bool {
	var statusErr *resilience.HTTPStatusError
	return errors.As(err, &statusErr) && statusErr.StatusCode == status
}

func getStringPayload(payload map[string]any, key string) string {
	v, ok := payload[key]
	if !ok || v == nil {
		return ""
	}
	s, ok := v.(string)
	if ok {
		return s
	}
	return fmt.Sprintf("%v", v)
}
