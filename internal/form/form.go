// 包 form：新增城市表单，按地图坐标反查国家与城市后预填草稿，再提交到城市集合
package form

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"worldwise/internal/city"
	"worldwise/internal/errs"
	"worldwise/internal/geocode"
	"worldwise/internal/logger"
)

const (
	PromptStart = "Start by clicking somewhere on the map"
	// AppPath：提交后返回的应用首页
	AppPath = "/app"
)

type Phase int

const (
	AwaitingPosition Phase = iota
	Geocoding
	Failed
	Ready
)

func (p Phase) String() string {
	switch p {
	case AwaitingPosition:
		return "awaiting_position"
	case Geocoding:
		return "geocoding"
	case Failed:
		return "failed"
	case Ready:
		return "ready"
	default:
		return "unknown"
	}
}

// Position：地图选点，任一坐标可缺失
type Position struct {
	Lat *float64
	Lng *float64
}

// At：构造坐标齐全的选点
func At(lat, lng float64) Position { return Position{Lat: &lat, Lng: &lng} }

func (p Position) empty() bool { return p.Lat == nil && p.Lng == nil }

// 缺失的坐标按 0 提交
func deref(v *float64) float64 {
	if v == nil {
		return 0
	}
	return *v
}

func (p Position) equal(q Position) bool {
	return sameCoord(p.Lat, q.Lat) && sameCoord(p.Lng, q.Lng)
}

func sameCoord(a, b *float64) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

// Geocoder：由 geocode.Client 实现；缺失的坐标传 nil
type Geocoder interface {
	Lookup(ctx context.Context, lat, lng *float64) (geocode.Result, error)
}

// Creator：由 cities.Store 实现
type Creator interface {
	CreateCity(ctx context.Context, draft city.City) error
}

type Navigator interface {
	Navigate(path string)
}

// Draft：用户可编辑的字段；CityName/Country/Emoji 由反查结果预填
type Draft struct {
	CityName string
	Country  string
	Emoji    string
	Date     city.Date
	Notes    string
}

// View：表单的只读快照
type View struct {
	Phase    Phase
	Message  string
	Position Position
	Draft    Draft
}

type Option func(*Form)

// WithClock：注入当前时间，用于默认到访日期
func WithClock(now func() time.Time) Option { return func(f *Form) { f.now = now } }

// WithNavigateOnFailure：提交失败时是否仍跳转回应用首页，默认跳转
func WithNavigateOnFailure(v bool) Option { return func(f *Form) { f.navigateOnFailure = v } }

func WithLogger(l *slog.Logger) Option { return func(f *Form) { f.log = l } }

// 文档注释：反查驱动的新增表单
// 背景：坐标来自地图点击或定位；两个坐标都缺失时不反查，至少有一个时发起一次反查。
// 约束：
// - 同一坐标重复设置不会重新反查；
// - 反查期间坐标再次变化时，旧结果被丢弃；
// - 只有 Ready 且城市名与日期非空时 Submit 才会提交。
type Form struct {
	geocoder          Geocoder
	creator           Creator
	nav               Navigator
	now               func() time.Time
	navigateOnFailure bool
	log               *slog.Logger

	mu      sync.Mutex
	pos     Position
	phase   Phase
	message string
	draft   Draft
	gen     uint64
}

func New(g Geocoder, c Creator, nav Navigator, opts ...Option) *Form {
	f := &Form{
		geocoder:          g,
		creator:           c,
		nav:               nav,
		now:               time.Now,
		navigateOnFailure: true,
	}
	for _, o := range opts {
		o(f)
	}
	if f.log == nil {
		f.log = logger.L()
	}
	f.phase = AwaitingPosition
	f.message = PromptStart
	f.draft.Date = city.NewDate(f.now())
	return f
}

func (f *Form) View() View {
	f.mu.Lock()
	defer f.mu.Unlock()
	return View{Phase: f.phase, Message: f.message, Position: f.pos, Draft: f.draft}
}

// SetPosition：更新选点；至少有一个坐标时阻塞直到反查结束
// 返回：反查失败时的错误；未发起反查或结果已被更新的选点取代时返回 nil
func (f *Form) SetPosition(ctx context.Context, pos Position) error {
	f.mu.Lock()
	if pos.equal(f.pos) {
		f.mu.Unlock()
		return nil
	}
	f.pos = pos
	f.gen++
	gen := f.gen
	if pos.empty() {
		f.phase, f.message = AwaitingPosition, PromptStart
		f.mu.Unlock()
		return nil
	}
	f.phase, f.message = Geocoding, ""
	f.mu.Unlock()

	res, err := f.geocoder.Lookup(ctx, pos.Lat, pos.Lng)

	f.mu.Lock()
	defer f.mu.Unlock()
	if gen != f.gen {
		f.log.Debug("form_geocode_superseded", "gen", gen)
		return nil
	}
	if err != nil {
		f.phase, f.message = Failed, errs.Message(err)
		f.log.Debug("form_geocode_failed", "err", err)
		return err
	}
	f.phase, f.message = Ready, ""
	f.draft.CityName = res.City
	f.draft.Country = res.CountryName
	f.draft.Emoji = res.Emoji
	return nil
}

func (f *Form) SetCityName(v string) { f.edit(func(d *Draft) { d.CityName = v }) }
func (f *Form) SetCountry(v string)  { f.edit(func(d *Draft) { d.Country = v }) }
func (f *Form) SetDate(v time.Time)  { f.edit(func(d *Draft) { d.Date = city.NewDate(v) }) }
func (f *Form) SetNotes(v string)    { f.edit(func(d *Draft) { d.Notes = v }) }

func (f *Form) edit(fn func(*Draft)) {
	f.mu.Lock()
	fn(&f.draft)
	f.mu.Unlock()
}

// 文档注释：提交草稿
// 返回：submitted 表示是否实际调用了 Creator；err 为 Creator 的错误
// 约束：调用结束后跳转 AppPath；WithNavigateOnFailure(false) 时失败保持在表单
func (f *Form) Submit(ctx context.Context) (bool, error) {
	f.mu.Lock()
	if f.phase != Ready || strings.TrimSpace(f.draft.CityName) == "" || f.draft.Date.IsZero() {
		f.mu.Unlock()
		return false, nil
	}
	d := f.draft
	c := city.City{
		CityName: d.CityName,
		Country:  d.Country,
		Emoji:    d.Emoji,
		Date:     d.Date,
		Notes:    d.Notes,
		Position: city.Position{Lat: deref(f.pos.Lat), Lng: deref(f.pos.Lng)},
	}
	f.mu.Unlock()

	err := f.creator.CreateCity(ctx, c)
	if err != nil {
		f.log.Warn("form_submit_failed", "city", c.CityName, "err", err)
	}
	if err == nil || f.navigateOnFailure {
		f.nav.Navigate(AppPath)
	}
	return true, err
}
