// 包 cityapi：城市存储服务（REST）的客户端，是 cities.Store 的远端后端
package cityapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"

	"worldwise/internal/city"
	"worldwise/internal/errs"
	"worldwise/internal/logger"
	"worldwise/internal/metrics"
)

// Client：按 GET/POST/DELETE /cities 契约访问城市存储服务
// 约束：非 2xx 一律视为失败；不区分网络、解码与状态码错误类型，统一为 KindTransport
type Client struct {
	baseURL    string
	httpClient *http.Client
}

func NewClient(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 5 * time.Second}
	}
	return &Client{baseURL: baseURL, httpClient: httpClient}
}

func (c *Client) ListCities(ctx context.Context) ([]city.City, error) {
	var out []city.City
	if err := c.do(ctx, "list", http.MethodGet, "/cities", nil, &out); err != nil {
		return nil, err
	}
	if out == nil {
		out = []city.City{}
	}
	return out, nil
}

func (c *Client) GetCity(ctx context.Context, id string) (city.City, error) {
	var out city.City
	if err := c.do(ctx, "get", http.MethodGet, "/cities/"+url.PathEscape(id), nil, &out); err != nil {
		return city.City{}, err
	}
	return out, nil
}

// CreateCity：提交草稿（ID 由服务端分配，请求体不含 id），返回带 ID 的记录
func (c *Client) CreateCity(ctx context.Context, draft city.City) (city.City, error) {
	draft.ID = 0
	body, err := json.Marshal(draft)
	if err != nil {
		return city.City{}, errs.Wrap(errs.KindTransport, "cityapi.create", "could not encode city", err)
	}
	var out city.City
	if err := c.do(ctx, "create", http.MethodPost, "/cities", body, &out); err != nil {
		return city.City{}, err
	}
	return out, nil
}

func (c *Client) DeleteCity(ctx context.Context, id city.ID) error {
	return c.do(ctx, "delete", http.MethodDelete, "/cities/"+id.String(), nil, nil)
}

func (c *Client) do(ctx context.Context, op, method, path string, body []byte, out any) error {
	opName := "cityapi." + op
	var rd io.Reader
	if body != nil {
		rd = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rd)
	if err != nil {
		return errs.Wrap(errs.KindTransport, opName, "failed to create request", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	reqID := uuid.NewString()
	req.Header.Set("X-Request-Id", reqID)

	t0 := time.Now()
	metrics.CityAPIRequestsTotal.WithLabelValues(op).Inc()
	logger.L().Debug("cityapi_req", "op", op, "method", method, "path", path, "request_id", reqID)
	fail := func(msg string, cause error) error {
		metrics.CityAPIFailTotal.WithLabelValues(op).Inc()
		logger.L().Error("cityapi_error", "op", op, "request_id", reqID, "err", cause)
		return errs.Wrap(errs.KindTransport, opName, msg, cause)
	}

	resp, err := c.httpClient.Do(req)
	metrics.CityAPIDurationMs.WithLabelValues(op).Observe(float64(time.Since(t0).Milliseconds()))
	if err != nil {
		return fail("failed to call city store", err)
	}
	defer resp.Body.Close()

	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return fail("failed to read response", err)
	}
	if resp.StatusCode/100 != 2 {
		return fail("city store returned an error", fmt.Errorf("status %d: %s", resp.StatusCode, string(b)))
	}
	if out != nil {
		if err := json.Unmarshal(b, out); err != nil {
			return fail("failed to decode response", err)
		}
	}
	logger.L().Debug("cityapi_resp", "op", op, "status", resp.StatusCode, "duration_ms", time.Since(t0).Milliseconds())
	return nil
}
