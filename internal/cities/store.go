package cities

import (
	"context"
	"log/slog"
	"strings"
	"sync"

	evbus "github.com/asaskevich/EventBus"
	"golang.org/x/sync/errgroup"

	"worldwise/internal/city"
	"worldwise/internal/errs"
	"worldwise/internal/logger"
	"worldwise/internal/metrics"
)

// TopicState：每次状态变更后发布 (kind string, state State)
const TopicState = "cities:state"

// 各操作失败时写入 State.Error 的固定文案
const (
	MsgListFailed   = "Something went wrong while loading cities"
	MsgGetFailed    = "Something went wrong while loading the city"
	MsgCreateFailed = "Something went wrong while adding the city"
	MsgDeleteFailed = "Something went wrong while deleting the city"
)

// Backend：远端城市存储服务契约，由 cityapi.Client 实现
type Backend interface {
	ListCities(ctx context.Context) ([]city.City, error)
	GetCity(ctx context.Context, id string) (city.City, error)
	CreateCity(ctx context.Context, draft city.City) (city.City, error)
	DeleteCity(ctx context.Context, id city.ID) error
}

type opKind string

const (
	opList   opKind = "list"
	opGet    opKind = "get"
	opCreate opKind = "create"
	opDelete opKind = "delete"
)

// 文档注释：城市集合 Provider
// 背景：每个 Store 是一份独立状态（非进程单例），由持有者创建与关闭；状态只经 Reduce 修改。
// 约束：
// - 同一操作内 Loading 严格先于终态分发；
// - 每类操作维护递增序号，只有最新发起的请求能写入终态，旧响应丢弃；
// - Close 之后不再写入任何状态，在途请求被取消；再次读取或调用操作会 panic（KindUsage）；
// - 订阅者收到的事件顺序与 Reduce 的顺序一致；订阅回调内不得再调用 Store 的操作。
type Store struct {
	backend Backend
	bus     evbus.Bus
	log     *slog.Logger

	// pub 覆盖 Reduce 到 publish 的整个区间，先于 mu 获取
	pub    sync.Mutex
	mu     sync.Mutex
	state  State
	seq    map[opKind]uint64
	closed bool

	ctx    context.Context
	cancel context.CancelFunc
	group  *errgroup.Group
	loaded chan struct{}
}

type Option func(*Store)

// WithBus：共享外部事件总线；默认每个 Store 自建一个
func WithBus(b evbus.Bus) Option { return func(s *Store) { s.bus = b } }

func WithLogger(l *slog.Logger) Option { return func(s *Store) { s.log = l } }

// New：创建 Provider 并立即拉取一次完整城市列表
// 约束：ctx 结束等价于 Close 的取消效果，但仍需调用 Close 等待在途任务退出
func New(ctx context.Context, backend Backend, opts ...Option) *Store {
	scope, cancel := context.WithCancel(ctx)
	g, gctx := errgroup.WithContext(scope)
	s := &Store{
		backend: backend,
		seq:     make(map[opKind]uint64),
		ctx:     gctx,
		cancel:  cancel,
		group:   g,
		loaded:  make(chan struct{}),
	}
	for _, o := range opts {
		o(s)
	}
	if s.bus == nil {
		s.bus = evbus.New()
	}
	if s.log == nil {
		s.log = logger.L()
	}
	done := s.start(context.Background(), opList, s.listCall)
	go func() {
		<-done
		close(s.loaded)
	}()
	return s
}

// Loaded：首次列表拉取结束（成功或失败）后关闭
func (s *Store) Loaded() <-chan struct{} { return s.loaded }

// Close：结束 Provider 生命周期，取消在途请求并等待其退出；可重复调用
func (s *Store) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()
	s.cancel()
	err := s.group.Wait()
	s.log.Debug("cities_store_closed")
	return err
}

// Snapshot：返回状态副本，调用方修改不会影响 Store
func (s *Store) Snapshot() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		panic(usage("cities.Snapshot"))
	}
	return s.state.clone()
}

// Countries：当前集合的国家列表
func (s *Store) Countries() []Country {
	return Countries(s.Snapshot().Cities)
}

// Subscribe：订阅状态变更，fn 在分发所在 goroutine 中同步调用
func (s *Store) Subscribe(fn func(kind string, st State)) error {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		panic(usage("cities.Subscribe"))
	}
	return s.bus.Subscribe(TopicState, fn)
}

// List：重新拉取完整列表并整体替换
func (s *Store) List(ctx context.Context) error {
	return <-s.start(ctx, opList, s.listCall)
}

// GetCity：加载单个城市为当前城市
// 约束：id 按整数解析后等于当前城市 ID 时直接返回，不分发、不请求；只与当前城市比较，不与在途请求去重
func (s *Store) GetCity(ctx context.Context, id string) error {
	s.mu.Lock()
	closed, cur := s.closed, s.state.CurrentCity.ID
	s.mu.Unlock()
	if closed {
		panic(usage("cities.GetCity"))
	}
	if n, err := city.ParseID(id); err == nil && !cur.IsZero() && n == cur {
		s.log.Debug("cities_get_skipped", "id", id)
		return nil
	}
	id = strings.TrimSpace(id)
	return <-s.start(ctx, opGet, func(ctx context.Context) (Action, error) {
		c, err := s.backend.GetCity(ctx, id)
		if err != nil {
			return Rejected{Message: MsgGetFailed}, err
		}
		return CityLoaded{City: c}, nil
	})
}

// CreateCity：提交草稿；成功后追加服务端返回的记录并设为当前城市
func (s *Store) CreateCity(ctx context.Context, draft city.City) error {
	return <-s.start(ctx, opCreate, func(ctx context.Context) (Action, error) {
		c, err := s.backend.CreateCity(ctx, draft)
		if err != nil {
			return Rejected{Message: MsgCreateFailed}, err
		}
		return CityCreated{City: c}, nil
	})
}

// DeleteCity：删除远端记录；成功后按 ID 从集合移除，ID 不存在时集合不变
func (s *Store) DeleteCity(ctx context.Context, id city.ID) error {
	return <-s.start(ctx, opDelete, func(ctx context.Context) (Action, error) {
		if err := s.backend.DeleteCity(ctx, id); err != nil {
			return Rejected{Message: MsgDeleteFailed}, err
		}
		return CityDeleted{ID: id}, nil
	})
}

func (s *Store) listCall(ctx context.Context) (Action, error) {
	cs, err := s.backend.ListCities(ctx)
	if err != nil {
		return Rejected{Message: MsgListFailed}, err
	}
	return CitiesLoaded{Cities: cs}, nil
}

// start：分发 Loading 并在 Provider 的任务域内执行 call，返回的通道在终态处理后收到 call 的错误
// 约束：任务在持锁期间登记到 errgroup，保证 Close 的 Wait 一定覆盖它；Loading 发布完成后任务才开始执行
func (s *Store) start(ctx context.Context, kind opKind, call func(context.Context) (Action, error)) <-chan error {
	result := make(chan error, 1)
	gate := make(chan struct{})

	s.pub.Lock()
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		s.pub.Unlock()
		panic(usage("cities." + string(kind)))
	}
	s.seq[kind]++
	seq := s.seq[kind]
	s.state = Reduce(s.state, Loading{})
	snap := s.state.clone()
	s.group.Go(func() error {
		<-gate
		reqCtx, cancel := context.WithCancel(s.ctx)
		defer cancel()
		stop := context.AfterFunc(ctx, cancel)
		defer stop()

		act, err := call(reqCtx)
		if err != nil {
			s.log.Error("cities_op_failed", "op", string(kind), "err", err)
		}
		s.finish(kind, seq, act)
		result <- err
		return nil
	})
	s.mu.Unlock()

	metrics.StoreDispatchTotal.WithLabelValues(Loading{}.Kind()).Inc()
	s.publish(Loading{}.Kind(), snap)
	s.pub.Unlock()
	close(gate)
	return result
}

// finish：写入终态；Provider 已关闭或存在更新的同类请求时丢弃
func (s *Store) finish(kind opKind, seq uint64, act Action) {
	s.pub.Lock()
	defer s.pub.Unlock()
	s.mu.Lock()
	if s.closed || s.ctx.Err() != nil {
		s.mu.Unlock()
		s.log.Debug("cities_dispatch_after_close", "op", string(kind), "action", act.Kind())
		return
	}
	if s.seq[kind] != seq {
		s.mu.Unlock()
		metrics.StoreStaleDroppedTotal.WithLabelValues(act.Kind()).Inc()
		s.log.Debug("cities_stale_dropped", "op", string(kind), "seq", seq, "action", act.Kind())
		return
	}
	s.state = Reduce(s.state, act)
	snap := s.state.clone()
	s.mu.Unlock()

	metrics.StoreDispatchTotal.WithLabelValues(act.Kind()).Inc()
	s.log.Debug("cities_dispatch", "action", act.Kind(), "cities", len(snap.Cities), "loading", snap.IsLoading)
	s.publish(act.Kind(), snap)
}

func (s *Store) publish(kind string, st State) {
	s.bus.Publish(TopicState, kind, st)
}

func usage(op string) *errs.Error {
	return errs.Usage(op, "Cities store was used outside of its provider")
}
