package position

import (
	"context"
	"net"
	"strings"

	"github.com/oschwald/geoip2-golang"

	"worldwise/internal/city"
	"worldwise/internal/errs"
	"worldwise/internal/form"
	"worldwise/internal/logger"
)

// 文档注释：基于 GeoLite2 City 数据库的 IP 定位
// 背景：mmdb 由部署方自行下载放到 GEOIP_DB_PATH；打开失败不影响其余功能。
// 约束：精度为城市级；库中无坐标的 IP 视为语义失败。
type GeoIP struct {
	db *geoip2.Reader
}

func OpenGeoIP(path string) (*GeoIP, error) {
	db, err := geoip2.Open(path)
	if err != nil {
		return nil, errs.Wrap(errs.KindConfig, "position.OpenGeoIP", "could not open geoip database", err)
	}
	logger.L().Debug("geoip_open_ok", "path", path)
	return &GeoIP{db: db}, nil
}

func (g *GeoIP) Close() error { return g.db.Close() }

// Locate：按 IP 查询坐标
func (g *GeoIP) Locate(ip string) (city.Position, error) {
	const op = "position.Locate"
	parsed := net.ParseIP(strings.TrimSpace(ip))
	if parsed == nil {
		return city.Position{}, errs.New(errs.KindSemantic, op, "invalid ip address "+ip)
	}
	rec, err := g.db.City(parsed)
	if err != nil {
		return city.Position{}, errs.Wrap(errs.KindStorage, op, "geoip lookup failed", err)
	}
	lat, lng := rec.Location.Latitude, rec.Location.Longitude
	if lat == 0 && lng == 0 {
		return city.Position{}, errs.New(errs.KindSemantic, op, "no location for ip "+ip)
	}
	logger.L().Debug("geoip_locate", "ip", ip, "lat", lat, "lng", lng, "city", rec.City.Names["en"])
	return city.Position{Lat: lat, Lng: lng}, nil
}

// ForIP：固定 IP 的 Source
func (g *GeoIP) ForIP(ip string) Source {
	return SourceFunc(func(context.Context) (form.Position, error) {
		p, err := g.Locate(ip)
		if err != nil {
			return form.Position{}, err
		}
		return form.At(p.Lat, p.Lng), nil
	})
}
