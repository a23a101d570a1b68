// 包 api：城市存储服务的 REST 路由，契约与客户端 cityapi 一致
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"worldwise/internal/cache"
	"worldwise/internal/city"
	"worldwise/internal/errs"
	"worldwise/internal/logger"
	"worldwise/internal/metrics"
	"worldwise/internal/store"
)

// Repository：由 *store.Store 实现
type Repository interface {
	ListCities(ctx context.Context) ([]city.City, error)
	GetCity(ctx context.Context, id city.ID) (city.City, error)
	CreateCity(ctx context.Context, c city.City) (city.City, error)
	DeleteCity(ctx context.Context, id city.ID) error
	GetTotals(ctx context.Context) (store.Totals, error)
}

// Locator：由 *position.GeoIP 实现
type Locator interface {
	Locate(ip string) (city.Position, error)
}

const listKey = "cities:all"

func cityKey(id city.ID) string { return "city:" + id.String() }

// Deps：路由依赖；Cache 为空时不缓存，Geo 为空时 /position 返回 503
type Deps struct {
	Store    Repository
	Cache    cache.Cache
	CacheTTL time.Duration
	Geo      Locator
}

type handler struct{ Deps }

// 文档注释：构建城市存储服务路由
// 背景：GET 走热点缓存（列表与单条），POST/DELETE 后失效相关键；缓存故障只降级不报错。
// 约束：id 必须为整数（400），不存在返回 404；新增要求 cityName 非空（400）。
func BuildRoutes(d Deps) *http.ServeMux {
	h := &handler{Deps: d}
	mux := http.NewServeMux()
	mux.HandleFunc("GET /cities", h.listCities)
	mux.HandleFunc("GET /cities/{id}", h.getCity)
	mux.HandleFunc("POST /cities", h.createCity)
	mux.HandleFunc("DELETE /cities/{id}", h.deleteCity)
	mux.HandleFunc("GET /stats", h.stats)
	mux.HandleFunc("GET /position", h.position)
	return mux
}

func (h *handler) listCities(w http.ResponseWriter, r *http.Request) {
	const route = "list"
	if b, ok := h.cached(r.Context(), listKey); ok {
		writeRaw(w, route, http.StatusOK, b)
		return
	}
	cs, err := h.Store.ListCities(r.Context())
	if err != nil {
		writeError(w, route, http.StatusInternalServerError, "could not load cities", err)
		return
	}
	b, _ := json.Marshal(cs)
	h.remember(r.Context(), listKey, b)
	writeRaw(w, route, http.StatusOK, b)
}

func (h *handler) getCity(w http.ResponseWriter, r *http.Request) {
	const route = "get"
	id, ok := parseID(w, route, r)
	if !ok {
		return
	}
	if b, ok := h.cached(r.Context(), cityKey(id)); ok {
		writeRaw(w, route, http.StatusOK, b)
		return
	}
	c, err := h.Store.GetCity(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, route, http.StatusNotFound, "city not found", nil)
		return
	}
	if err != nil {
		writeError(w, route, http.StatusInternalServerError, "could not load city", err)
		return
	}
	b, _ := json.Marshal(c)
	h.remember(r.Context(), cityKey(id), b)
	writeRaw(w, route, http.StatusOK, b)
}

func (h *handler) createCity(w http.ResponseWriter, r *http.Request) {
	const route = "create"
	var in city.City
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(&in); err != nil {
		writeError(w, route, http.StatusBadRequest, "invalid city payload", err)
		return
	}
	if strings.TrimSpace(in.CityName) == "" {
		writeError(w, route, http.StatusBadRequest, "cityName is required", nil)
		return
	}
	in.ID = 0
	c, err := h.Store.CreateCity(r.Context(), in)
	if err != nil {
		writeError(w, route, http.StatusInternalServerError, "could not create city", err)
		return
	}
	b, _ := json.Marshal(c)
	h.forget(r.Context(), listKey)
	h.remember(r.Context(), cityKey(c.ID), b)
	logger.L().Info("city_created", "id", c.ID.String(), "city", c.CityName, "country", c.Country)
	writeRaw(w, route, http.StatusCreated, b)
}

func (h *handler) deleteCity(w http.ResponseWriter, r *http.Request) {
	const route = "delete"
	id, ok := parseID(w, route, r)
	if !ok {
		return
	}
	err := h.Store.DeleteCity(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, route, http.StatusNotFound, "city not found", nil)
		return
	}
	if err != nil {
		writeError(w, route, http.StatusInternalServerError, "could not delete city", err)
		return
	}
	h.forget(r.Context(), listKey, cityKey(id))
	logger.L().Info("city_deleted", "id", id.String())
	writeRaw(w, route, http.StatusOK, []byte("{}"))
}

func (h *handler) stats(w http.ResponseWriter, r *http.Request) {
	t, err := h.Store.GetTotals(r.Context())
	if err != nil {
		writeError(w, "stats", http.StatusInternalServerError, "could not load stats", err)
		return
	}
	b, _ := json.Marshal(t)
	writeRaw(w, "stats", http.StatusOK, b)
}

func (h *handler) position(w http.ResponseWriter, r *http.Request) {
	const route = "position"
	if h.Geo == nil {
		writeError(w, route, http.StatusServiceUnavailable, "geoip database is not configured", nil)
		return
	}
	ip := clientIP(r)
	p, err := h.Geo.Locate(ip)
	if err != nil {
		status := http.StatusInternalServerError
		if errs.IsKind(err, errs.KindSemantic) {
			status = http.StatusNotFound
		}
		writeError(w, route, status, "no position for "+ip, err)
		return
	}
	b, _ := json.Marshal(p)
	writeRaw(w, route, http.StatusOK, b)
}

func (h *handler) cached(ctx context.Context, key string) ([]byte, bool) {
	if h.Cache == nil {
		return nil, false
	}
	b, ok, err := h.Cache.Get(ctx, key)
	if err != nil || !ok {
		metrics.CacheMissesTotal.Inc()
		return nil, false
	}
	metrics.CacheHitsTotal.Inc()
	logger.L().Debug("cache_hit", "key", key)
	return b, true
}

func (h *handler) remember(ctx context.Context, key string, b []byte) {
	if h.Cache == nil {
		return
	}
	if err := h.Cache.Set(ctx, key, b, h.CacheTTL); err != nil {
		logger.L().Warn("cache_set_error", "key", key, "err", err)
	}
}

func (h *handler) forget(ctx context.Context, keys ...string) {
	if h.Cache == nil {
		return
	}
	if err := h.Cache.Delete(ctx, keys...); err != nil {
		logger.L().Warn("cache_delete_error", "keys", keys, "err", err)
	}
}

func parseID(w http.ResponseWriter, route string, r *http.Request) (city.ID, bool) {
	raw := r.PathValue("id")
	id, err := city.ParseID(raw)
	if err != nil {
		writeError(w, route, http.StatusBadRequest, "invalid city id "+strconv.Quote(raw), nil)
		return 0, false
	}
	return id, true
}

func writeRaw(w http.ResponseWriter, route string, status int, b []byte) {
	metrics.ServerRequestsTotal.WithLabelValues(route, strconv.Itoa(status)).Inc()
	w.Header().Set("content-type", "application/json; charset=utf-8")
	w.Header().Set("cache-control", "no-store")
	w.WriteHeader(status)
	_, _ = w.Write(b)
}

func writeError(w http.ResponseWriter, route string, status int, msg string, cause error) {
	if cause != nil {
		logger.L().Error("api_error", "route", route, "status", status, "err", cause)
	}
	b, _ := json.Marshal(map[string]string{"error": msg})
	writeRaw(w, route, status, b)
}
