package main

import (
	"context"
	"errors"

	"github.com/spf13/cobra"

	"worldwise/internal/cities"
	"worldwise/internal/city"
	"worldwise/internal/form"
	"worldwise/internal/geocode"
	"worldwise/internal/logger"
	"worldwise/internal/position"
)

// stateErr：操作失败时 Store 只记录固定文案，这里把它转成命令错误
func stateErr(err error, s *cities.Store) error {
	if err == nil {
		return nil
	}
	if msg := s.Snapshot().Error; msg != "" {
		return errors.New(msg)
	}
	return err
}

func (a *app) citiesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "cities",
		Short: "List visited cities",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.gated(cmd.Context(), func(ctx context.Context) error {
				return a.withStore(ctx, func(ctx context.Context) error {
					s := cities.FromContext(ctx)
					st := s.Snapshot()
					if st.Error != "" {
						return errors.New(st.Error)
					}
					return a.printCities(st.Cities)
				})
			})
		},
	}
}

func (a *app) cityCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "city <id>",
		Short: "Show one city",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.gated(cmd.Context(), func(ctx context.Context) error {
				return a.withStore(ctx, func(ctx context.Context) error {
					s := cities.FromContext(ctx)
					if err := s.GetCity(ctx, args[0]); err != nil {
						return stateErr(err, s)
					}
					return a.printCity(s.Snapshot().CurrentCity)
				})
			})
		},
	}
}

func (a *app) countriesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "countries",
		Short: "List the countries of visited cities",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.gated(cmd.Context(), func(ctx context.Context) error {
				return a.withStore(ctx, func(ctx context.Context) error {
					s := cities.FromContext(ctx)
					if msg := s.Snapshot().Error; msg != "" {
						return errors.New(msg)
					}
					return a.printCountries(s.Countries())
				})
			})
		},
	}
}

func (a *app) deleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a city",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := city.ParseID(args[0])
			if err != nil {
				return err
			}
			return a.gated(cmd.Context(), func(ctx context.Context) error {
				return a.withStore(ctx, func(ctx context.Context) error {
					s := cities.FromContext(ctx)
					if err := s.DeleteCity(ctx, id); err != nil {
						return stateErr(err, s)
					}
					return a.printCities(s.Snapshot().Cities)
				})
			})
		},
	}
}

type addFlags struct {
	lat, lng float64
	here     bool
	ip       string
	name     string
	country  string
	date     string
	notes    string
}

func (a *app) addCmd() *cobra.Command {
	var f addFlags
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add a city from a map position",
		Long: "Reverse-geocodes the position to pre-fill the city, country and flag, then saves it.\n" +
			"The position comes from --lat/--lng or, with --here, from your IP address.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			src, err := a.positionSource(cmd, f)
			if err != nil {
				return err
			}
			return a.gated(cmd.Context(), func(ctx context.Context) error {
				return a.withStore(ctx, func(ctx context.Context) error {
					return a.runAdd(ctx, src, f)
				})
			})
		},
	}
	cmd.Flags().Float64Var(&f.lat, "lat", 0, "latitude of the clicked position")
	cmd.Flags().Float64Var(&f.lng, "lng", 0, "longitude of the clicked position")
	cmd.Flags().BoolVar(&f.here, "here", false, "use your current position")
	cmd.Flags().StringVar(&f.ip, "ip", "", "with --here: locate this IP in the local GeoIP database")
	cmd.Flags().StringVar(&f.name, "name", "", "override the geocoded city name")
	cmd.Flags().StringVar(&f.country, "country", "", "override the geocoded country")
	cmd.Flags().StringVar(&f.date, "date", "", "visit date (2006-01-02), defaults to today")
	cmd.Flags().StringVar(&f.notes, "notes", "", "notes about the trip")
	return cmd
}

// positionSource：--here 优先；否则只把显式给出的坐标交给表单，缺失的一侧不参与反查
func (a *app) positionSource(cmd *cobra.Command, f addFlags) (position.Source, error) {
	if f.here {
		if f.ip != "" {
			// 数据库在取点时才打开，登录检查先于它
			return position.SourceFunc(func(ctx context.Context) (form.Position, error) {
				geo, err := position.OpenGeoIP(a.cfg.Client.GeoIPPath)
				if err != nil {
					return form.Position{}, err
				}
				defer geo.Close()
				return geo.ForIP(f.ip).Current(ctx)
			}), nil
		}
		return position.NewRemote(a.cfg.Client.CityAPIURL, a.http), nil
	}
	var p form.Position
	if cmd.Flags().Changed("lat") {
		lat := f.lat
		p.Lat = &lat
	}
	if cmd.Flags().Changed("lng") {
		lng := f.lng
		p.Lng = &lng
	}
	return position.SourceFunc(func(context.Context) (form.Position, error) { return p, nil }), nil
}

func (a *app) runAdd(ctx context.Context, src position.Source, f addFlags) error {
	s := cities.FromContext(ctx)
	pos, err := src.Current(ctx)
	if err != nil {
		return err
	}
	fm := form.New(geocode.NewClient(a.cfg.Client.GeocodeURL, a.http), s, a.nav,
		form.WithNavigateOnFailure(false), form.WithLogger(logger.L()))
	if err := fm.SetPosition(ctx, pos); err != nil {
		return err
	}
	v := fm.View()
	if v.Phase != form.Ready {
		return errors.New(v.Message)
	}
	if f.name != "" {
		fm.SetCityName(f.name)
	}
	if f.country != "" {
		fm.SetCountry(f.country)
	}
	if f.notes != "" {
		fm.SetNotes(f.notes)
	}
	if f.date != "" {
		d, err := city.ParseDate(f.date)
		if err != nil {
			return err
		}
		fm.SetDate(d.Time)
	}
	submitted, err := fm.Submit(ctx)
	if err != nil {
		return stateErr(err, s)
	}
	if !submitted {
		return errors.New("a city name is required (--name)")
	}
	return a.printCity(s.Snapshot().CurrentCity)
}
