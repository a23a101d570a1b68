package cities

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"testing"
	"time"

	evbus "github.com/asaskevich/EventBus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"worldwise/internal/city"
	"worldwise/internal/errs"
)

type fakeBackend struct {
	mu     sync.Mutex
	cities []city.City
	nextID city.ID
	calls  map[string]int

	listErr   error
	getErr    error
	createErr error
	deleteErr error

	// getHook 替换默认的按 ID 查找
	getHook func(ctx context.Context, id string) (city.City, error)
	// listHook 在返回前调用
	listHook func(ctx context.Context) error
}

func newFakeBackend(cs ...city.City) *fakeBackend {
	fb := &fakeBackend{calls: map[string]int{}, nextID: 100}
	fb.cities = append(fb.cities, cs...)
	return fb
}

func (f *fakeBackend) count(op string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[op]
}

func (f *fakeBackend) hit(op string) {
	f.mu.Lock()
	f.calls[op]++
	f.mu.Unlock()
}

func (f *fakeBackend) ListCities(ctx context.Context) ([]city.City, error) {
	f.hit("list")
	if f.listHook != nil {
		if err := f.listHook(ctx); err != nil {
			return nil, err
		}
	}
	if f.listErr != nil {
		return nil, f.listErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]city.City{}, f.cities...), nil
}

func (f *fakeBackend) GetCity(ctx context.Context, id string) (city.City, error) {
	f.hit("get")
	if f.getHook != nil {
		return f.getHook(ctx, id)
	}
	if f.getErr != nil {
		return city.City{}, f.getErr
	}
	n, err := city.ParseID(id)
	if err != nil {
		return city.City{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range f.cities {
		if c.ID == n {
			return c, nil
		}
	}
	return city.City{}, errors.New("status 404")
}

func (f *fakeBackend) CreateCity(ctx context.Context, draft city.City) (city.City, error) {
	f.hit("create")
	if f.createErr != nil {
		return city.City{}, f.createErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	draft.ID = f.nextID
	f.cities = append(f.cities, draft)
	return draft, nil
}

func (f *fakeBackend) DeleteCity(ctx context.Context, id city.ID) error {
	f.hit("delete")
	if f.deleteErr != nil {
		return f.deleteErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	kept := f.cities[:0]
	for _, c := range f.cities {
		if c.ID != id {
			kept = append(kept, c)
		}
	}
	f.cities = kept
	return nil
}

func openStore(t *testing.T, fb *fakeBackend) *Store {
	t.Helper()
	s := New(context.Background(), fb)
	t.Cleanup(func() { _ = s.Close() })
	select {
	case <-s.Loaded():
	case <-time.After(2 * time.Second):
		t.Fatal("initial list did not finish")
	}
	return s
}

type recorder struct {
	mu    sync.Mutex
	kinds []string
	last  State
}

func (r *recorder) on(kind string, st State) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.kinds = append(r.kinds, kind)
	r.last = st
}

func (r *recorder) seen() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string{}, r.kinds...)
}

func requireUsagePanic(t *testing.T, fn func()) {
	t.Helper()
	defer func() {
		r := recover()
		require.NotNil(t, r, "expected panic")
		err, ok := r.(error)
		require.True(t, ok, "panic value %T is not an error", r)
		assert.True(t, errs.IsKind(err, errs.KindUsage))
	}()
	fn()
}

func TestNewLoadsCities(t *testing.T) {
	fb := newFakeBackend(lisbon, madrid)
	s := openStore(t, fb)

	st := s.Snapshot()
	assert.Equal(t, []city.City{lisbon, madrid}, st.Cities)
	assert.False(t, st.IsLoading)
	assert.Empty(t, st.Error)
	assert.Equal(t, 1, fb.count("list"))
}

func TestListFailureRecordsMessage(t *testing.T) {
	fb := newFakeBackend()
	fb.listErr = errors.New("connection refused")
	s := openStore(t, fb)

	st := s.Snapshot()
	assert.False(t, st.IsLoading)
	assert.Equal(t, MsgListFailed, st.Error)
	assert.Empty(t, st.Cities)
}

func TestGetCitySkipsCurrent(t *testing.T) {
	fb := newFakeBackend(lisbon, madrid)
	s := openStore(t, fb)
	ctx := context.Background()

	require.NoError(t, s.GetCity(ctx, "1"))
	assert.Equal(t, 1, fb.count("get"))
	assert.Equal(t, lisbon, s.Snapshot().CurrentCity)

	rec := &recorder{}
	require.NoError(t, s.Subscribe(rec.on))

	// 字符串形式的同一 ID 不触发请求也不分发
	require.NoError(t, s.GetCity(ctx, "1"))
	require.NoError(t, s.GetCity(ctx, " 1"))
	assert.Equal(t, 1, fb.count("get"))
	assert.Empty(t, rec.seen())

	require.NoError(t, s.GetCity(ctx, "2"))
	assert.Equal(t, 2, fb.count("get"))
	assert.Equal(t, madrid, s.Snapshot().CurrentCity)
	assert.Equal(t, []string{"loading", "city/loaded"}, rec.seen())
}

func TestGetCityWithNoCurrentAlwaysFetches(t *testing.T) {
	fb := newFakeBackend(lisbon)
	s := openStore(t, fb)

	err := s.GetCity(context.Background(), "0")
	require.Error(t, err)
	assert.Equal(t, 1, fb.count("get"))
	assert.Equal(t, MsgGetFailed, s.Snapshot().Error)
}

func TestLoadingVisibleDuringRequest(t *testing.T) {
	fb := newFakeBackend(lisbon)
	s := openStore(t, fb)

	var during State
	fb.getHook = func(ctx context.Context, id string) (city.City, error) {
		during = s.Snapshot()
		return lisbon, nil
	}
	require.NoError(t, s.GetCity(context.Background(), "1"))
	assert.True(t, during.IsLoading)
	assert.False(t, s.Snapshot().IsLoading)
}

// 场景：新增城市后出现在列表末尾并成为当前城市
func TestCreateCityScenario(t *testing.T) {
	fb := newFakeBackend(lisbon)
	s := openStore(t, fb)
	rec := &recorder{}
	require.NoError(t, s.Subscribe(rec.on))

	draft := city.City{
		CityName: "Porto", Country: "Portugal", Emoji: "🇵🇹",
		Date:     city.NewDate(time.Date(2027, 3, 4, 0, 0, 0, 0, time.UTC)),
		Position: city.Position{Lat: 41.15, Lng: -8.61},
	}
	require.NoError(t, s.CreateCity(context.Background(), draft))

	st := s.Snapshot()
	require.Len(t, st.Cities, 2)
	created := st.Cities[1]
	assert.Equal(t, city.ID(101), created.ID)
	assert.Equal(t, "Porto", created.CityName)
	assert.Equal(t, created, st.CurrentCity)
	assert.Equal(t, []Country{{Country: "Portugal", Emoji: "🇵🇹"}}, s.Countries())
	assert.Equal(t, []string{"loading", "city/created"}, rec.seen())
}

func TestCreateCityFailureKeepsCollection(t *testing.T) {
	fb := newFakeBackend(lisbon)
	fb.createErr = errors.New("status 500")
	s := openStore(t, fb)

	require.Error(t, s.CreateCity(context.Background(), city.City{CityName: "Porto"}))
	st := s.Snapshot()
	assert.Equal(t, []city.City{lisbon}, st.Cities)
	assert.Equal(t, MsgCreateFailed, st.Error)
	assert.False(t, st.IsLoading)
}

// 场景：删除一个存在的城市，再次删除同一个 ID 集合不变
func TestDeleteCityScenario(t *testing.T) {
	fb := newFakeBackend(lisbon, madrid, berlin)
	s := openStore(t, fb)
	ctx := context.Background()

	require.NoError(t, s.DeleteCity(ctx, madrid.ID))
	assert.Equal(t, []city.City{lisbon, berlin}, s.Snapshot().Cities)

	require.NoError(t, s.DeleteCity(ctx, madrid.ID))
	assert.Equal(t, []city.City{lisbon, berlin}, s.Snapshot().Cities)
	assert.Equal(t, 2, fb.count("delete"))
}

func TestDeleteFailureThenSuccessKeepsError(t *testing.T) {
	fb := newFakeBackend(lisbon, madrid)
	fb.deleteErr = errors.New("status 503")
	s := openStore(t, fb)
	ctx := context.Background()

	require.Error(t, s.DeleteCity(ctx, lisbon.ID))
	assert.Len(t, s.Snapshot().Cities, 2)

	fb.mu.Lock()
	fb.deleteErr = nil
	fb.mu.Unlock()
	require.NoError(t, s.DeleteCity(ctx, lisbon.ID))

	st := s.Snapshot()
	assert.Equal(t, []city.City{madrid}, st.Cities)
	assert.Equal(t, MsgDeleteFailed, st.Error)
}

func TestStaleResponseDropped(t *testing.T) {
	fb := newFakeBackend(lisbon, madrid)
	s := openStore(t, fb)
	ctx := context.Background()

	release := make(chan struct{})
	fb.getHook = func(ctx context.Context, id string) (city.City, error) {
		if id == "1" {
			<-release
		}
		n, _ := strconv.Atoi(id)
		return city.City{ID: city.ID(n), CityName: "city-" + id}, nil
	}

	first := make(chan error, 1)
	go func() { first <- s.GetCity(ctx, "1") }()
	require.Eventually(t, func() bool { return fb.count("get") == 1 }, 2*time.Second, 5*time.Millisecond)

	require.NoError(t, s.GetCity(ctx, "2"))
	close(release)
	require.NoError(t, <-first)

	assert.Equal(t, city.ID(2), s.Snapshot().CurrentCity.ID)
}

func TestCallerCancelRejects(t *testing.T) {
	fb := newFakeBackend(lisbon)
	s := openStore(t, fb)

	fb.getHook = func(ctx context.Context, id string) (city.City, error) {
		<-ctx.Done()
		return city.City{}, ctx.Err()
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := s.GetCity(ctx, "7")
	assert.ErrorIs(t, err, context.Canceled)
	st := s.Snapshot()
	assert.False(t, st.IsLoading)
	assert.Equal(t, MsgGetFailed, st.Error)
}

func TestCloseCancelsInFlightWithoutDispatch(t *testing.T) {
	fb := newFakeBackend(lisbon)
	s := openStore(t, fb)
	rec := &recorder{}
	require.NoError(t, s.Subscribe(rec.on))

	entered := make(chan struct{})
	fb.getHook = func(ctx context.Context, id string) (city.City, error) {
		close(entered)
		<-ctx.Done()
		return city.City{}, ctx.Err()
	}

	done := make(chan error, 1)
	go func() { done <- s.GetCity(context.Background(), "9") }()
	<-entered

	require.NoError(t, s.Close())
	assert.ErrorIs(t, <-done, context.Canceled)
	assert.Equal(t, []string{"loading"}, rec.seen())
	require.NoError(t, s.Close())
}

func TestClosedStorePanics(t *testing.T) {
	s := openStore(t, newFakeBackend(lisbon))
	require.NoError(t, s.Close())
	ctx := context.Background()

	requireUsagePanic(t, func() { s.Snapshot() })
	requireUsagePanic(t, func() { _ = s.List(ctx) })
	requireUsagePanic(t, func() { _ = s.GetCity(ctx, "1") })
	requireUsagePanic(t, func() { _ = s.CreateCity(ctx, city.City{}) })
	requireUsagePanic(t, func() { _ = s.DeleteCity(ctx, 1) })
	requireUsagePanic(t, func() { _ = s.Subscribe(func(string, State) {}) })
}

func TestFromContext(t *testing.T) {
	requireUsagePanic(t, func() { FromContext(context.Background()) })

	s := openStore(t, newFakeBackend())
	ctx := WithStore(context.Background(), s)
	assert.Same(t, s, FromContext(ctx))
}

func TestSnapshotIsCopy(t *testing.T) {
	s := openStore(t, newFakeBackend(lisbon))
	snap := s.Snapshot()
	snap.Cities[0].CityName = "changed"
	assert.Equal(t, "Lisbon", s.Snapshot().Cities[0].CityName)
}

func TestListReplacesCollection(t *testing.T) {
	fb := newFakeBackend(lisbon)
	s := openStore(t, fb)

	fb.mu.Lock()
	fb.cities = []city.City{berlin}
	fb.mu.Unlock()

	require.NoError(t, s.List(context.Background()))
	assert.Equal(t, []city.City{berlin}, s.Snapshot().Cities)
	assert.Equal(t, 2, fb.count("list"))
}

func TestConcurrentOpsPublishInReduceOrder(t *testing.T) {
	fb := newFakeBackend(lisbon)
	s := openStore(t, fb)
	rec := &recorder{}
	require.NoError(t, s.Subscribe(rec.on))

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_ = s.CreateCity(context.Background(), city.City{CityName: "c" + strconv.Itoa(i), Country: "Portugal"})
		}(i)
	}
	wg.Wait()

	st := s.Snapshot()
	rec.mu.Lock()
	last := rec.last
	rec.mu.Unlock()
	assert.Len(t, last.Cities, len(st.Cities))
	assert.Equal(t, st, last)
	assert.False(t, last.IsLoading)

	loading := 0
	for _, k := range rec.seen() {
		if k == "loading" {
			loading++
		}
	}
	assert.Equal(t, 8, loading)
}

func TestSharedBusReceivesEvents(t *testing.T) {
	bus := evbus.New()
	rec := &recorder{}
	require.NoError(t, bus.Subscribe(TopicState, rec.on))

	s := New(context.Background(), newFakeBackend(lisbon), WithBus(bus))
	t.Cleanup(func() { _ = s.Close() })
	select {
	case <-s.Loaded():
	case <-time.After(2 * time.Second):
		t.Fatal("initial list did not finish")
	}
	assert.Equal(t, []string{"loading", "cities/loaded"}, rec.seen())

	require.NoError(t, s.DeleteCity(context.Background(), lisbon.ID))
	assert.Equal(t, []string{"loading", "cities/loaded", "loading", "city/deleted"}, rec.seen())
	assert.Empty(t, s.Snapshot().Cities)
}
