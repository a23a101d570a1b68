// worldwise：记录到访城市的命令行客户端，访问城市存储服务与反地理编码服务
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"

	evbus "github.com/asaskevich/EventBus"
	"github.com/spf13/cobra"

	"worldwise/internal/auth"
	"worldwise/internal/cities"
	"worldwise/internal/cityapi"
	"worldwise/internal/config"
	"worldwise/internal/errs"
	"worldwise/internal/logger"
)

// navigator：CLI 没有页面，只记录最后一次跳转
type navigator struct {
	log  *slog.Logger
	last string
}

func (n *navigator) Navigate(path string) {
	n.last = path
	n.log.Debug("navigate", "path", path)
}

type app struct {
	cfg      *config.Config
	out      io.Writer
	format   string
	email    string
	password string

	auth *auth.Provider
	nav  *navigator
	http *http.Client
	// bus 在各命令挂载的 Store 之间共享
	bus evbus.Bus
}

func newApp(cfg *config.Config, out io.Writer) *app {
	a := &app{
		cfg:      cfg,
		out:      out,
		format:   envOr("WORLDWISE_OUT", "text"),
		email:    cfg.Auth.Email,
		password: cfg.Auth.Password,
		nav:      &navigator{log: logger.L()},
		http:     &http.Client{Timeout: cfg.Client.HTTPTimeout},
		bus:      evbus.New(),
	}
	_ = a.bus.Subscribe(cities.TopicState, func(kind string, st cities.State) {
		logger.L().Debug("cities_state", "action", kind, "cities", len(st.Cities), "loading", st.IsLoading, "error", st.Error)
	})
	return a
}

// gated：未登录时闸门跳转到首页，CLI 把这次跳转转成错误
func (a *app) gated(ctx context.Context, view func(ctx context.Context) error) error {
	a.nav.last = ""
	g := auth.Gate{Auth: auth.FromContext(ctx), Navigator: a.nav}
	if err := g.Render(func() error { return view(ctx) }); err != nil {
		return err
	}
	if a.nav.last == auth.HomePath {
		return errs.New(errs.KindUsage, "worldwise", "login required (--email/--password or WORLDWISE_EMAIL/WORLDWISE_PASSWORD)")
	}
	return nil
}

// withStore：挂载城市集合 Provider，等首次列表拉取结束后执行 fn
func (a *app) withStore(ctx context.Context, fn func(ctx context.Context) error) error {
	s := cities.New(ctx, cityapi.NewClient(a.cfg.Client.CityAPIURL, a.http), cities.WithBus(a.bus))
	defer s.Close()
	select {
	case <-s.Loaded():
	case <-ctx.Done():
		return ctx.Err()
	}
	return fn(cities.WithStore(ctx, s))
}

func (a *app) rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "worldwise",
		Short:         "Keep track of the cities you have visited",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if a.format != "text" && a.format != "json" {
				return fmt.Errorf("--out must be json or text, got %q", a.format)
			}
			a.auth = auth.NewProvider()
			if a.email != "" {
				a.auth.Login(a.email, a.password)
			}
			cmd.SetContext(auth.WithProvider(cmd.Context(), a.auth))
			return nil
		},
	}
	root.PersistentFlags().StringVar(&a.cfg.Client.CityAPIURL, "api-url", a.cfg.Client.CityAPIURL, "city store base URL (env CITY_API_URL)")
	root.PersistentFlags().StringVar(&a.email, "email", a.email, "login email (env WORLDWISE_EMAIL)")
	root.PersistentFlags().StringVar(&a.password, "password", a.password, "login password (env WORLDWISE_PASSWORD)")
	root.PersistentFlags().StringVar(&a.format, "out", a.format, "output format: json|text")

	root.AddCommand(a.citiesCmd(), a.cityCmd(), a.countriesCmd(), a.addCmd(), a.deleteCmd())
	return root
}

func envOr(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func main() {
	logger.Setup()
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", errs.Message(err))
		os.Exit(1)
	}
	a := newApp(cfg, os.Stdout)
	if err := a.rootCmd().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "error:", errs.Message(err))
		os.Exit(1)
	}
}
