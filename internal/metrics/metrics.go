package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var durationBuckets = []float64{1, 5, 10, 20, 50, 100, 200, 500, 1000, 2000}

var (
	// 客户端：城市存储服务调用
	CityAPIRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "worldwise_cityapi_requests_total",
		Help: "Total city store requests issued by the client, by operation",
	}, []string{"op"})
	CityAPIFailTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "worldwise_cityapi_fail_total",
		Help: "Total failed city store requests, by operation",
	}, []string{"op"})
	CityAPIDurationMs = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "worldwise_cityapi_duration_ms",
		Help:    "City store request duration in milliseconds",
		Buckets: durationBuckets,
	}, []string{"op"})

	// 客户端：反地理编码
	GeocodeRequestsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "worldwise_geocode_requests_total",
		Help: "Total reverse geocoding requests",
	})
	GeocodeFailTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "worldwise_geocode_fail_total",
		Help: "Total reverse geocoding failures by reason",
	}, []string{"reason"})
	GeocodeDurationMs = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "worldwise_geocode_duration_ms",
		Help:    "Reverse geocoding duration in milliseconds",
		Buckets: durationBuckets,
	})

	// 客户端：状态机分发
	StoreDispatchTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "worldwise_store_dispatch_total",
		Help: "Actions applied to the city collection state, by kind",
	}, []string{"action"})
	StoreStaleDroppedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "worldwise_store_stale_dropped_total",
		Help: "Terminal actions dropped because a newer request of the same kind was issued",
	}, []string{"action"})

	// 服务端：城市存储服务
	ServerRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "worldwise_server_requests_total",
		Help: "Total city store server requests by route and status",
	}, []string{"route", "status"})
	CacheHitsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "worldwise_cache_hits_total",
		Help: "Total city cache hits",
	})
	CacheMissesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "worldwise_cache_misses_total",
		Help: "Total city cache misses",
	})
	RateLimitedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "worldwise_rate_limited_total",
		Help: "Requests rejected by the token bucket",
	})
)

func init() {
	prometheus.MustRegister(
		CityAPIRequestsTotal,
		CityAPIFailTotal,
		CityAPIDurationMs,
		GeocodeRequestsTotal,
		GeocodeFailTotal,
		GeocodeDurationMs,
		StoreDispatchTotal,
		StoreStaleDroppedTotal,
		ServerRequestsTotal,
		CacheHitsTotal,
		CacheMissesTotal,
		RateLimitedTotal,
	)
}

// Handler：暴露已注册指标，由城市存储服务挂载到 {API_BASE}/metrics
func Handler() http.Handler { return promhttp.Handler() }
