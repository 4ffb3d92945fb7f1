package main

import (
	"fmt"
	"net/http"
	"os"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sourcegraph/conc/pool"
	"github.com/spf13/cobra"

	"github.com/ripplekit/ripple/pkg/ripple"
	"github.com/ripplekit/ripple/pkg/ripplemetrics"
)

// profile bundles the knobs of one bench scenario.
type profile struct {
	Name     string
	Writers  int
	Duration time.Duration
	Layers   int
	Width    int
}

var profiles = map[string]profile{
	"fast": {
		Name:     "fast",
		Writers:  2,
		Duration: 5 * time.Second,
		Layers:   4,
		Width:    16,
	},
	"standard": {
		Name:     "standard",
		Writers:  4,
		Duration: 15 * time.Second,
		Layers:   6,
		Width:    64,
	},
	"stress": {
		Name:     "stress",
		Writers:  8,
		Duration: 30 * time.Second,
		Layers:   8,
		Width:    256,
	},
}

type benchCounters struct {
	writes    atomic.Uint64
	effectRun atomic.Uint64
}

type benchReport struct {
	Profile    string  `json:"profile"`
	Writers    int     `json:"writers"`
	Writes     uint64  `json:"writes"`
	EffectRuns uint64  `json:"effect_runs"`
	Seconds    float64 `json:"seconds"`
	WritesPS   float64 `json:"writes_per_second"`
	RunsPS     float64 `json:"effect_runs_per_second"`
}

func runCmd() *cobra.Command {
	var (
		profileName string
		listenAddr  string
		jsonOut     string
	)
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a bench profile against the runtime",
		RunE: func(cmd *cobra.Command, args []string) error {
			p, ok := profiles[profileName]
			if !ok {
				return fmt.Errorf("unknown profile %q (have: fast, standard, stress)", profileName)
			}
			return runBench(p, listenAddr, jsonOut)
		},
	}
	cmd.Flags().StringVar(&profileName, "profile", "fast", "bench profile: fast, standard, stress")
	cmd.Flags().StringVar(&listenAddr, "listen", "127.0.0.1:8077", "address for /metrics and /events")
	cmd.Flags().StringVar(&jsonOut, "json", "", "write the final report to this file")
	return cmd
}

func runBench(p profile, listenAddr, jsonOut string) error {
	prom := ripplemetrics.Default()

	var counters benchCounters
	stats := newStatsHub(&counters)

	srv := serveObservability(listenAddr, stats)
	defer srv.Close()
	fmt.Printf("profile=%s writers=%d duration=%s listening on http://%s\n",
		p.Name, p.Writers, p.Duration, listenAddr)

	// The runtime is single-threaded cooperative, so each writer drives its
	// own isolated realm: one layered graph per writer, all feeding the same
	// shared introspection adapter and counters.
	start := time.Now()
	deadline := start.Add(p.Duration)
	writers := pool.New().WithErrors()
	for i := 0; i < p.Writers; i++ {
		writers.Go(func() error {
			return driveRealm(p, prom, &counters, deadline)
		})
	}
	err := writers.Wait()
	stats.close()
	if err != nil {
		return err
	}

	elapsed := time.Since(start).Seconds()
	report := benchReport{
		Profile:    p.Name,
		Writers:    p.Writers,
		Writes:     counters.writes.Load(),
		EffectRuns: counters.effectRun.Load(),
		Seconds:    elapsed,
	}
	report.WritesPS = float64(report.Writes) / elapsed
	report.RunsPS = float64(report.EffectRuns) / elapsed

	out, merr := json.MarshalIndent(report, "", "  ")
	if merr != nil {
		return merr
	}
	fmt.Println(string(out))
	if jsonOut != "" {
		if werr := os.WriteFile(jsonOut, out, 0o644); werr != nil {
			return werr
		}
	}
	return nil
}

// driveRealm builds one layered reactive graph — Width records per layer,
// each layer-n+1 record held at upstream+1 by an effect — and hammers layer
// zero until the deadline.
func driveRealm(p profile, prom *ripplemetrics.Prometheus, counters *benchCounters, deadline time.Time) error {
	realm := ripple.NewRealm()
	realm.SetIntrospector(prom)

	layers := make([][]*ripple.Record, p.Layers)
	for l := range layers {
		layers[l] = make([]*ripple.Record, p.Width)
		for w := range layers[l] {
			layers[l][w] = realm.Wrap(map[string]any{"v": 0}).(*ripple.Record)
		}
	}
	var handles []*ripple.Handle
	for l := 1; l < p.Layers; l++ {
		for w := 0; w < p.Width; w++ {
			up, down := layers[l-1][w], layers[l][w]
			h := realm.NewEffect(func(ripple.Access) ripple.Cleanup {
				counters.effectRun.Add(1)
				v, _ := up.Get("v").(int)
				ripple.Untracked(func() { down.Set("v", v+1) })
				return nil
			}, ripple.WithName(fmt.Sprintf("layer-%d-%d", l, w)))
			handles = append(handles, h)
		}
	}
	defer func() {
		for _, h := range handles {
			h.Stop()
		}
	}()

	n := 0
	for time.Now().Before(deadline) {
		cell := layers[0][n%p.Width]
		realm.Atomic(func() {
			cur, _ := cell.Get("v").(int)
			cell.Set("v", cur+1)
		})
		counters.writes.Add(1)
		n++
	}
	return nil
}

// serveObservability mounts /metrics and /events on a chi router.
func serveObservability(addr string, stats *statsHub) *http.Server {
	r := chi.NewRouter()
	r.Handle("/metrics", promhttp.Handler())
	r.Get("/events", stats.handleWS)
	srv := &http.Server{Addr: addr, Handler: r}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			fmt.Fprintf(os.Stderr, "observability server: %v\n", err)
		}
	}()
	return srv
}
