package form

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"worldwise/internal/city"
	"worldwise/internal/errs"
	"worldwise/internal/geocode"
)

type stubGeocoder struct {
	calls  atomic.Int32
	result geocode.Result
	err    error
	hook   func(lat, lng *float64)
}

func (g *stubGeocoder) Lookup(ctx context.Context, lat, lng *float64) (geocode.Result, error) {
	g.calls.Add(1)
	if g.hook != nil {
		g.hook(lat, lng)
	}
	return g.result, g.err
}

type stubCreator struct {
	mu      sync.Mutex
	created []city.City
	err     error
}

func (c *stubCreator) CreateCity(ctx context.Context, draft city.City) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.created = append(c.created, draft)
	return c.err
}

type stubNav struct{ paths []string }

func (n *stubNav) Navigate(path string) { n.paths = append(n.paths, path) }

var visit = time.Date(2027, 5, 1, 9, 30, 0, 0, time.UTC)

func fixedClock() time.Time { return visit }

func parisResult() geocode.Result {
	return geocode.Result{CountryCode: "FR", CountryName: "France", City: "Paris", Emoji: geocode.FlagEmoji("FR")}
}

func TestNewFormAwaitsPosition(t *testing.T) {
	g := &stubGeocoder{}
	f := New(g, &stubCreator{}, &stubNav{}, WithClock(fixedClock))

	v := f.View()
	assert.Equal(t, AwaitingPosition, v.Phase)
	assert.Equal(t, PromptStart, v.Message)
	assert.True(t, v.Draft.Date.Equal(visit))

	require.NoError(t, f.SetPosition(context.Background(), Position{}))
	assert.Equal(t, int32(0), g.calls.Load())
}

func TestHalfPositionStillGeocodes(t *testing.T) {
	g := &stubGeocoder{result: parisResult()}
	f := New(g, &stubCreator{}, &stubNav{})
	ctx := context.Background()
	lat, lng := 48.85, 2.35

	var sawLat, sawLng []*float64
	g.hook = func(la, ln *float64) {
		sawLat = append(sawLat, la)
		sawLng = append(sawLng, ln)
	}

	require.NoError(t, f.SetPosition(ctx, Position{Lat: &lat}))
	assert.Equal(t, int32(1), g.calls.Load())
	assert.Equal(t, Ready, f.View().Phase)
	require.NotNil(t, sawLat[0])
	assert.Equal(t, 48.85, *sawLat[0])
	assert.Nil(t, sawLng[0])

	require.NoError(t, f.SetPosition(ctx, Position{Lat: &lat}))
	assert.Equal(t, int32(1), g.calls.Load())

	require.NoError(t, f.SetPosition(ctx, At(lat, lng)))
	assert.Equal(t, int32(2), g.calls.Load())
	require.NotNil(t, sawLng[1])
	assert.Equal(t, 2.35, *sawLng[1])
}

func TestHalfPositionFailureFromService(t *testing.T) {
	g := &stubGeocoder{err: errs.New(errs.KindSemantic, "test", geocode.NotACountryMessage)}
	creator := &stubCreator{}
	f := New(g, creator, &stubNav{})
	lng := 2.35

	err := f.SetPosition(context.Background(), Position{Lng: &lng})
	require.Error(t, err)
	v := f.View()
	assert.Equal(t, Failed, v.Phase)
	assert.Equal(t, geocode.NotACountryMessage, v.Message)
	assert.Equal(t, int32(1), g.calls.Load())

	submitted, err := f.Submit(context.Background())
	assert.False(t, submitted)
	assert.NoError(t, err)
}

func TestHalfPositionSubmitsZeroForMissingSide(t *testing.T) {
	creator := &stubCreator{}
	f := New(&stubGeocoder{result: parisResult()}, creator, &stubNav{}, WithClock(fixedClock))
	ctx := context.Background()
	lat := 48.85

	require.NoError(t, f.SetPosition(ctx, Position{Lat: &lat}))
	submitted, err := f.Submit(ctx)
	require.NoError(t, err)
	assert.True(t, submitted)
	require.Len(t, creator.created, 1)
	assert.Equal(t, city.Position{Lat: 48.85, Lng: 0}, creator.created[0].Position)
}

func TestGeocodeFillsDraft(t *testing.T) {
	g := &stubGeocoder{result: parisResult()}
	f := New(g, &stubCreator{}, &stubNav{})

	var during Phase
	g.hook = func(lat, lng *float64) {
		during = f.View().Phase
		require.NotNil(t, lat)
		require.NotNil(t, lng)
		assert.Equal(t, 48.85, *lat)
		assert.Equal(t, 2.35, *lng)
	}
	require.NoError(t, f.SetPosition(context.Background(), At(48.85, 2.35)))

	v := f.View()
	assert.Equal(t, Geocoding, during)
	assert.Equal(t, Ready, v.Phase)
	assert.Equal(t, "Paris", v.Draft.CityName)
	assert.Equal(t, "France", v.Draft.Country)
	assert.Equal(t, "🇫🇷", v.Draft.Emoji)
}

func TestRefiresOncePerDistinctPair(t *testing.T) {
	g := &stubGeocoder{result: parisResult()}
	f := New(g, &stubCreator{}, &stubNav{})
	ctx := context.Background()

	require.NoError(t, f.SetPosition(ctx, At(1, 2)))
	require.NoError(t, f.SetPosition(ctx, At(1, 2)))
	assert.Equal(t, int32(1), g.calls.Load())

	require.NoError(t, f.SetPosition(ctx, At(1, 3)))
	assert.Equal(t, int32(2), g.calls.Load())

	require.NoError(t, f.SetPosition(ctx, At(1, 2)))
	assert.Equal(t, int32(3), g.calls.Load())
}

func TestSupersededResultDropped(t *testing.T) {
	g := &stubGeocoder{}
	f := New(g, &stubCreator{}, &stubNav{})
	ctx := context.Background()

	g.hook = func(lat, lng *float64) {
		if *lat == 1 {
			// 反查期间用户又点了一个海洋位置
			g.hook = nil
			g.err = errs.New(errs.KindSemantic, "test", geocode.NotACountryMessage)
			_ = f.SetPosition(ctx, At(0, 0))
			g.err = nil
			g.result = parisResult()
		}
	}
	require.NoError(t, f.SetPosition(ctx, At(1, 1)))

	v := f.View()
	assert.Equal(t, Failed, v.Phase)
	assert.Equal(t, geocode.NotACountryMessage, v.Message)
}

// 场景：点击海洋位置，只发一次请求并提示换个位置，Submit 不提交
func TestNotACountryScenario(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"countryCode":"","countryName":"","city":"","locality":"Atlantic Ocean"}`))
	}))
	defer srv.Close()

	creator := &stubCreator{}
	nav := &stubNav{}
	f := New(geocode.NewClient(srv.URL, srv.Client()), creator, nav)

	err := f.SetPosition(context.Background(), At(30, -40))
	require.Error(t, err)
	assert.True(t, errs.IsKind(err, errs.KindSemantic))
	assert.ErrorIs(t, err, geocode.ErrNotACountry)

	v := f.View()
	assert.Equal(t, Failed, v.Phase)
	assert.Equal(t, "It's not a country. Please click somewhere else.", v.Message)
	assert.Equal(t, int32(1), hits.Load())

	f.SetCityName("Somewhere")
	submitted, err := f.Submit(context.Background())
	assert.False(t, submitted)
	assert.NoError(t, err)
	assert.Empty(t, creator.created)
	assert.Empty(t, nav.paths)
}

func TestTransportFailureMessage(t *testing.T) {
	cause := errs.Wrap(errs.KindTransport, "test", "Could not reach the geocoding service", errors.New("refused"))
	f := New(&stubGeocoder{err: cause}, &stubCreator{}, &stubNav{})

	err := f.SetPosition(context.Background(), At(10, 10))
	require.Error(t, err)
	v := f.View()
	assert.Equal(t, Failed, v.Phase)
	assert.Equal(t, "Could not reach the geocoding service", v.Message)
}

func TestSubmitCreatesAndNavigates(t *testing.T) {
	creator := &stubCreator{}
	nav := &stubNav{}
	f := New(&stubGeocoder{result: parisResult()}, creator, nav, WithClock(fixedClock))
	ctx := context.Background()

	require.NoError(t, f.SetPosition(ctx, At(48.85, 2.35)))
	f.SetNotes("croissants")
	f.SetCityName("Paris 5e")

	submitted, err := f.Submit(ctx)
	require.NoError(t, err)
	assert.True(t, submitted)
	require.Len(t, creator.created, 1)

	got := creator.created[0]
	assert.True(t, got.ID.IsZero())
	assert.Equal(t, "Paris 5e", got.CityName)
	assert.Equal(t, "France", got.Country)
	assert.Equal(t, "🇫🇷", got.Emoji)
	assert.Equal(t, "croissants", got.Notes)
	assert.True(t, got.Date.Equal(visit))
	assert.Equal(t, city.Position{Lat: 48.85, Lng: 2.35}, got.Position)
	assert.Equal(t, []string{AppPath}, nav.paths)
}

func TestSubmitRequiresNameAndDate(t *testing.T) {
	creator := &stubCreator{}
	nav := &stubNav{}
	f := New(&stubGeocoder{result: geocode.Result{CountryCode: "AQ", CountryName: "Antarctica"}}, creator, nav)
	ctx := context.Background()

	require.NoError(t, f.SetPosition(ctx, At(-80, 0)))
	submitted, err := f.Submit(ctx)
	assert.False(t, submitted)
	assert.NoError(t, err)

	f.SetCityName("Base")
	f.SetDate(time.Time{})
	submitted, _ = f.Submit(ctx)
	assert.False(t, submitted)
	assert.Empty(t, creator.created)
	assert.Empty(t, nav.paths)
}

func TestSubmitFailureNavigation(t *testing.T) {
	ctx := context.Background()

	t.Run("navigates by default", func(t *testing.T) {
		nav := &stubNav{}
		f := New(&stubGeocoder{result: parisResult()}, &stubCreator{err: errors.New("status 500")}, nav)
		require.NoError(t, f.SetPosition(ctx, At(1, 1)))

		submitted, err := f.Submit(ctx)
		assert.True(t, submitted)
		assert.Error(t, err)
		assert.Equal(t, []string{AppPath}, nav.paths)
	})

	t.Run("stays when disabled", func(t *testing.T) {
		nav := &stubNav{}
		f := New(&stubGeocoder{result: parisResult()}, &stubCreator{err: errors.New("status 500")}, nav,
			WithNavigateOnFailure(false))
		require.NoError(t, f.SetPosition(ctx, At(1, 1)))

		submitted, err := f.Submit(ctx)
		assert.True(t, submitted)
		assert.Error(t, err)
		assert.Empty(t, nav.paths)
	})
}

func TestPhaseString(t *testing.T) {
	assert.Equal(t, "ready", Ready.String())
	assert.Equal(t, "awaiting_position", AwaitingPosition.String())
	assert.Equal(t, "unknown", Phase(42).String())
}
