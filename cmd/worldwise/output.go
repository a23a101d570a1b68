package main

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"worldwise/internal/cities"
	"worldwise/internal/city"
)

func (a *app) printJSON(v any) error {
	enc := json.NewEncoder(a.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func formatDate(d city.Date) string {
	if d.IsZero() {
		return "-"
	}
	return d.Format("January 2, 2006")
}

func (a *app) printCities(cs []city.City) error {
	if a.format == "json" {
		return a.printJSON(cs)
	}
	if len(cs) == 0 {
		_, err := fmt.Fprintln(a.out, cities.EmptyMessage)
		return err
	}
	tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tCITY\tCOUNTRY\tDATE")
	for _, c := range cs {
		fmt.Fprintf(tw, "%s\t%s %s\t%s\t%s\n", c.ID, c.Emoji, c.CityName, c.Country, formatDate(c.Date))
	}
	return tw.Flush()
}

func (a *app) printCity(c city.City) error {
	if a.format == "json" {
		return a.printJSON(c)
	}
	fmt.Fprintf(a.out, "%s %s (%s)\n", c.Emoji, c.CityName, c.Country)
	fmt.Fprintf(a.out, "id:       %s\n", c.ID)
	fmt.Fprintf(a.out, "visited:  %s\n", formatDate(c.Date))
	fmt.Fprintf(a.out, "position: %g, %g\n", c.Position.Lat, c.Position.Lng)
	if c.Notes != "" {
		fmt.Fprintf(a.out, "notes:    %s\n", c.Notes)
	}
	return nil
}

func (a *app) printCountries(cs []cities.Country) error {
	if a.format == "json" {
		return a.printJSON(cs)
	}
	if len(cs) == 0 {
		_, err := fmt.Fprintln(a.out, cities.EmptyMessage)
		return err
	}
	for _, c := range cs {
		fmt.Fprintf(a.out, "%s %s\n", c.Emoji, c.Country)
	}
	return nil
}
