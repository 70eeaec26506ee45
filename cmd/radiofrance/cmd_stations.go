/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/friendsincode/radiofrance_bridge/internal/calendar"
	"github.com/friendsincode/radiofrance_bridge/internal/coordinator"
	"github.com/friendsincode/radiofrance_bridge/internal/logging"
	"github.com/friendsincode/radiofrance_bridge/internal/radiofrance"
	"github.com/friendsincode/radiofrance_bridge/internal/server"
	"github.com/friendsincode/radiofrance_bridge/internal/station"
)

var (
	nowJSON        bool
	calendarOutput string
	calendarTracks bool
)

var stationsCmd = &cobra.Command{
	Use:   "stations",
	Short: "List the station codes the API accepts",
	Args:  cobra.NoArgs,
	RunE:  runStations,
}

var nowCmd = &cobra.Command{
	Use:   "now <station>",
	Short: "Fetch the grid once and print what is airing",
	Args:  cobra.ExactArgs(1),
	RunE:  runNow,
}

var calendarCmd = &cobra.Command{
	Use:   "calendar <station>",
	Short: "Fetch the grid once and write its iCalendar feed",
	Args:  cobra.ExactArgs(1),
	RunE:  runCalendar,
}

func init() {
	nowCmd.Flags().BoolVar(&nowJSON, "json", false, "Print the state as JSON")
	calendarCmd.Flags().StringVarP(&calendarOutput, "output", "o", "", "Output file, - for stdout (default: <station>-<start>-<end>.ics)")
	calendarCmd.Flags().BoolVar(&calendarTracks, "tracks", false, "Include individual tracks")

	rootCmd.AddCommand(stationsCmd)
	rootCmd.AddCommand(nowCmd)
	rootCmd.AddCommand(calendarCmd)
}

// loadOneShotConfig loads configuration with logs on stderr, keeping stdout for output.
func loadOneShotConfig(cmd *cobra.Command) error {
	if err := loadConfig(); err != nil {
		return err
	}
	logger = logging.SetupWithWriter(cfg.Environment, cmd.ErrOrStderr())
	return nil
}

func runStations(cmd *cobra.Command, args []string) error {
	if err := loadOneShotConfig(cmd); err != nil {
		return err
	}
	client, ok := server.NewFetcher(cfg, logger).(interface {
		GetStations(ctx context.Context) ([]radiofrance.Brand, error)
	})
	if !ok {
		return fmt.Errorf("station listing is not supported by this source")
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
	defer cancel()
	brands, err := client.GetStations(ctx)
	if err != nil {
		return err
	}

	index := radiofrance.StationIndex(brands)
	codes := make([]string, 0, len(index))
	for code := range index {
		codes = append(codes, code)
	}
	sort.Strings(codes)

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "CODE\tTITLE")
	for _, code := range codes {
		fmt.Fprintf(w, "%s\t%s\n", code, index[code])
	}
	return w.Flush()
}

// fetchTracker runs one grid update for code and evaluates it.
func fetchTracker(ctx context.Context, code string, tracks bool) (*station.Tracker, error) {
	code = strings.ToUpper(code)
	if !radiofrance.ValidStationCode(code) {
		return nil, fmt.Errorf("invalid station code %q", code)
	}
	name := code
	if st, ok := cfg.Station(code); ok {
		name = st.DisplayName()
		tracks = tracks || st.CalendarTracks
	}

	c := coordinator.New(server.NewFetcher(cfg, logger), nil, coordinator.Options{
		Station:      code,
		Lookbehind:   cfg.Lookbehind,
		Lookahead:    cfg.Lookahead,
		ForceFailure: cfg.APIFail,
	}, logger)
	if err := c.Refresh(ctx); err != nil {
		return nil, err
	}

	t := station.NewTracker(c, nil, station.Options{Code: code, Name: name, CalendarTracks: tracks || cfg.CalendarTracks}, logger)
	t.Evaluate()
	return t, nil
}

func runNow(cmd *cobra.Command, args []string) error {
	if err := loadOneShotConfig(cmd); err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
	defer cancel()

	t, err := fetchTracker(ctx, args[0], false)
	if err != nil {
		return err
	}
	state := t.State()

	out := cmd.OutOrStdout()
	if nowJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(state)
	}
	printState(out, state)
	return nil
}

func printState(w io.Writer, s station.NowPlaying) {
	if !s.Airing {
		fmt.Fprintf(w, "%s: nothing airing\n", s.Name)
	} else {
		fmt.Fprintf(w, "%s: %s (%s to %s)\n", s.Name, s.Title, s.Start.Local().Format("15:04"), s.End.Local().Format("15:04"))
		if s.Description != "" {
			fmt.Fprintf(w, "  %s\n", s.Description)
		}
		if len(s.Artists) > 0 {
			fmt.Fprintf(w, "  by %s\n", strings.Join(s.Artists, ", "))
		}
	}
	if s.Next != nil {
		fmt.Fprintf(w, "next: %s at %s\n", s.Next.Title, s.Next.Start.Local().Format("15:04"))
	}
}

func runCalendar(cmd *cobra.Command, args []string) error {
	if err := loadOneShotConfig(cmd); err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
	defer cancel()

	t, err := fetchTracker(ctx, args[0], calendarTracks)
	if err != nil {
		return err
	}
	g := t.Grid()
	body := calendar.Render(t.Name(), t.Events(g.Start, g.End), time.Now())

	switch calendarOutput {
	case "-":
		_, err = cmd.OutOrStdout().Write(body)
		return err
	case "":
		calendarOutput = calendar.Filename(t.Code(), g.Start, g.End)
	}
	if err := os.WriteFile(calendarOutput, body, 0o644); err != nil {
		return fmt.Errorf("write calendar: %w", err)
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "wrote %s\n", calendarOutput)
	return nil
}
