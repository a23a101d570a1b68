// 包 geocode：按坐标反查国家/城市，并由国家代码生成国旗 emoji
package geocode

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"worldwise/internal/errs"
	"worldwise/internal/logger"
	"worldwise/internal/metrics"
)

// NotACountryMessage 面向用户的提示文本
const NotACountryMessage = "It's not a country. Please click somewhere else."

// ErrNotACountry：响应中缺少国家代码（点击在海洋、极地等位置）
var ErrNotACountry = errors.New("geocode: position is not inside a country")

// 文档注释：反地理编码服务响应
// 背景：仅解析本流程需要的字段；city 为空时以 locality 兜底。
type response struct {
	CountryCode string `json:"countryCode"`
	CountryName string `json:"countryName"`
	City        string `json:"city"`
	Locality    string `json:"locality"`
}

// Result：一次表单会话内有效的查询结果，不做持久化
type Result struct {
	CountryCode string
	CountryName string
	City        string
	Emoji       string
}

// Client：反地理编码服务客户端
// 约束：每次调用只发一次请求；不缓存、不重试
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient：client 为空时使用 5s 超时的默认客户端
func NewClient(baseURL string, client *http.Client) *Client {
	if client == nil {
		client = &http.Client{Timeout: 5 * time.Second}
	}
	return &Client{baseURL: baseURL, http: client}
}

// ReverseGeocode：坐标齐全时的便捷入口，等价于 Lookup(&lat, &lng)
func (c *Client) ReverseGeocode(ctx context.Context, lat, lng float64) (Result, error) {
	return c.Lookup(ctx, &lat, &lng)
}

// 文档注释：按坐标查询国家与城市
// 参数：lat/lng 可以只给一个，缺失的一侧不带查询参数，由服务自行判定。
// 返回：Result；失败时返回 *errs.Error，传输类为 KindTransport，无国家代码为 KindSemantic（包装 ErrNotACountry）。
func (c *Client) Lookup(ctx context.Context, lat, lng *float64) (Result, error) {
	const op = "geocode.ReverseGeocode"
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return Result{}, errs.Wrap(errs.KindConfig, op, "invalid geocoding url", err)
	}
	q := u.Query()
	if lat != nil {
		q.Set("latitude", strconv.FormatFloat(*lat, 'f', -1, 64))
	}
	if lng != nil {
		q.Set("longitude", strconv.FormatFloat(*lng, 'f', -1, 64))
	}
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return Result{}, errs.Wrap(errs.KindTransport, op, "could not build geocoding request", err)
	}
	t0 := time.Now()
	metrics.GeocodeRequestsTotal.Inc()
	logger.L().Debug("geocode_req", "query", u.RawQuery)
	defer func() { metrics.GeocodeDurationMs.Observe(float64(time.Since(t0).Milliseconds())) }()

	resp, err := c.http.Do(req)
	if err != nil {
		logger.L().Error("geocode_http_error", "err", err)
		metrics.GeocodeFailTotal.WithLabelValues("transport").Inc()
		return Result{}, errs.Wrap(errs.KindTransport, op, "Could not reach the geocoding service", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		metrics.GeocodeFailTotal.WithLabelValues("status").Inc()
		logger.L().Error("geocode_status_error", "status", resp.StatusCode)
		return Result{}, errs.Wrap(errs.KindTransport, op, "The geocoding service returned an error",
			fmt.Errorf("status %d: %s", resp.StatusCode, string(body)))
	}

	var r response
	if err := json.NewDecoder(resp.Body).Decode(&r); err != nil {
		logger.L().Error("geocode_decode_error", "err", err)
		metrics.GeocodeFailTotal.WithLabelValues("decode").Inc()
		return Result{}, errs.Wrap(errs.KindTransport, op, "Could not read the geocoding response", err)
	}
	if r.CountryCode == "" {
		metrics.GeocodeFailTotal.WithLabelValues("not_a_country").Inc()
		logger.L().Debug("geocode_not_a_country", "query", u.RawQuery)
		return Result{}, &errs.Error{Kind: errs.KindSemantic, Op: op, Message: NotACountryMessage, Cause: ErrNotACountry}
	}

	name := r.City
	if name == "" {
		name = r.Locality
	}
	out := Result{
		CountryCode: r.CountryCode,
		CountryName: r.CountryName,
		City:        name,
		Emoji:       FlagEmoji(r.CountryCode),
	}
	logger.L().Debug("geocode_resp", "country", out.CountryName, "city", out.City, "duration_ms", time.Since(t0).Milliseconds())
	return out, nil
}
