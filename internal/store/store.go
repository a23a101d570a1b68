// 包 store：城市存储服务的数据访问层（PostgreSQL）
package store

import (
	"context"
	"database/sql"
	"errors"

	_ "github.com/lib/pq"

	"worldwise/internal/city"
	"worldwise/internal/errs"
	"worldwise/internal/logger"
)

// ErrNotFound：按 ID 查询或删除时记录不存在
var ErrNotFound = errors.New("store: city not found")

// Store：持有连接池，提供城市的增删查
type Store struct {
	db *sql.DB
}

func AttachDB(db *sql.DB) *Store { return &Store{db: db} }

func (s *Store) Close() error { return s.db.Close() }

const selectCity = `SELECT id, city_name, country, emoji, visited_at, notes, lat, lng FROM cities`

type scanner interface {
	Scan(dest ...any) error
}

func scanCity(sc scanner) (city.City, error) {
	var (
		c       city.City
		visited sql.NullTime
	)
	if err := sc.Scan(&c.ID, &c.CityName, &c.Country, &c.Emoji, &visited, &c.Notes, &c.Position.Lat, &c.Position.Lng); err != nil {
		return city.City{}, err
	}
	if visited.Valid {
		c.Date = city.NewDate(visited.Time)
	}
	return c, nil
}

// ListCities：按创建顺序返回全部城市；无记录时返回空切片
func (s *Store) ListCities(ctx context.Context) ([]city.City, error) {
	rows, err := s.db.QueryContext(ctx, selectCity+` ORDER BY id`)
	if err != nil {
		return nil, errs.Wrap(errs.KindStorage, "store.ListCities", "query failed", err)
	}
	defer rows.Close()
	out := []city.City{}
	for rows.Next() {
		c, err := scanCity(rows)
		if err != nil {
			return nil, errs.Wrap(errs.KindStorage, "store.ListCities", "scan failed", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, errs.Wrap(errs.KindStorage, "store.ListCities", "iteration failed", err)
	}
	logger.L().Debug("db_cities_listed", "count", len(out))
	return out, nil
}

// GetCity：不存在时返回 ErrNotFound
func (s *Store) GetCity(ctx context.Context, id city.ID) (city.City, error) {
	c, err := scanCity(s.db.QueryRowContext(ctx, selectCity+` WHERE id=$1`, int64(id)))
	if errors.Is(err, sql.ErrNoRows) {
		return city.City{}, ErrNotFound
	}
	if err != nil {
		return city.City{}, errs.Wrap(errs.KindStorage, "store.GetCity", "query failed", err)
	}
	return c, nil
}

// CreateCity：忽略入参 ID，返回带数据库分配 ID 的记录
func (s *Store) CreateCity(ctx context.Context, c city.City) (city.City, error) {
	var visited sql.NullTime
	if !c.Date.IsZero() {
		visited = sql.NullTime{Time: c.Date.Time, Valid: true}
	}
	var id int64
	err := s.db.QueryRowContext(ctx,
		`INSERT INTO cities(city_name, country, emoji, visited_at, notes, lat, lng)
		VALUES($1,$2,$3,$4,$5,$6,$7) RETURNING id`,
		c.CityName, c.Country, c.Emoji, visited, c.Notes, c.Position.Lat, c.Position.Lng,
	).Scan(&id)
	if err != nil {
		return city.City{}, errs.Wrap(errs.KindStorage, "store.CreateCity", "insert failed", err)
	}
	c.ID = city.ID(id)
	logger.L().Debug("db_city_created", "id", id, "city", c.CityName)
	return c, nil
}

// DeleteCity：不存在时返回 ErrNotFound
func (s *Store) DeleteCity(ctx context.Context, id city.ID) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM cities WHERE id=$1`, int64(id))
	if err != nil {
		return errs.Wrap(errs.KindStorage, "store.DeleteCity", "delete failed", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return errs.Wrap(errs.KindStorage, "store.DeleteCity", "delete failed", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	logger.L().Debug("db_city_deleted", "id", int64(id))
	return nil
}

// Totals：统计返回结构
type Totals struct {
	Cities    int64 `json:"cities"`
	Countries int64 `json:"countries"`
}

// GetTotals：城市数与不同国家数
func (s *Store) GetTotals(ctx context.Context) (Totals, error) {
	var t Totals
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(1), COUNT(DISTINCT country) FROM cities`).Scan(&t.Cities, &t.Countries)
	if err != nil {
		return Totals{}, errs.Wrap(errs.KindStorage, "store.GetTotals", "query failed", err)
	}
	logger.L().Debug("stats_totals", "cities", t.Cities, "countries", t.Countries)
	return t, nil
}
