package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"memgov/internal/common/fsutil"
	"memgov/internal/config"
	"memgov/internal/httpapi"
	"memgov/internal/manager"
	"memgov/internal/probe"
	"memgov/internal/registry"
	"memgov/internal/tier"
	"memgov/pkg/types"
)

func main() {
	// Flags with environment variable defaults
	defaultAddr := ":8080"
	if v := os.Getenv("MEMGOV_ADDR"); v != "" {
		defaultAddr = v
	}
	addr := flag.String("addr", defaultAddr, "HTTP listen address, e.g. :8080")
	cfgPath := flag.String("config", "", "Optional config file (.yaml/.json/.toml); flags override it")
	manifestPath := flag.String("manifest", "", "Component manifest (YAML) to register at startup")
	tierOverride := flag.String("tier", "", "Force a tier instead of selecting from detected capacity")
	marginMB := flag.Int("margin-mb", 0, "Safety margin in MB kept free inside the placement budget")
	debounceMS := flag.Int("debounce-ms", 0, "Pressure event coalescing window in milliseconds")
	probeIntervalMS := flag.Int("probe-interval-ms", 5000, "Background usage sampling interval in milliseconds")
	corsOrigins := flag.String("cors-origins", "", "Comma-separated CORS origins; empty disables CORS")
	logLevel := flag.String("log-level", "info", "Log level: debug, info, warn, error")
	flag.Parse()

	set := map[string]bool{}
	flag.Visit(func(f *flag.Flag) { set[f.Name] = true })

	if *cfgPath != "" {
		fileCfg, err := config.Load(*cfgPath)
		if err != nil {
			l := zerolog.New(os.Stderr)
			l.Fatal().Err(err).Str("path", *cfgPath).Msg("load config")
		}
		if !set["addr"] && fileCfg.Addr != "" {
			*addr = fileCfg.Addr
		}
		if !set["manifest"] && fileCfg.ManifestPath != "" {
			*manifestPath = fileCfg.ManifestPath
		}
		if !set["tier"] && fileCfg.TierOverride != "" {
			*tierOverride = fileCfg.TierOverride
		}
		if !set["margin-mb"] && fileCfg.MarginMB > 0 {
			*marginMB = fileCfg.MarginMB
		}
		if !set["debounce-ms"] && fileCfg.DebounceMS > 0 {
			*debounceMS = fileCfg.DebounceMS
		}
		if !set["probe-interval-ms"] && fileCfg.ProbeIntervalMS > 0 {
			*probeIntervalMS = fileCfg.ProbeIntervalMS
		}
		if !set["log-level"] && fileCfg.LogLevel != "" {
			*logLevel = fileCfg.LogLevel
		}
	}

	lvl, err := zerolog.ParseLevel(*logLevel)
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	log := zerolog.New(os.Stderr).Level(lvl).With().Timestamp().Str("service", "memgovd").Logger()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	snap := probe.New(probe.WithLogger(log)).Detect(ctx)
	profile, conflict, err := tier.Select(snap, tier.Name(*tierOverride))
	if err != nil {
		log.Fatal().Err(err).Msg("tier selection")
	}
	if conflict != nil {
		log.Warn().
			Str("override", string(conflict.Override)).
			Str("detected", string(conflict.Detected)).
			Msg("tier override conflicts with detected capacity")
	}
	log.Info().
		Str("tier", string(profile.Name)).
		Str("device", snap.DeviceName).
		Uint64("free_bytes", snap.FreeBytes).
		Bool("accelerator", !snap.Unavailable).
		Msg("capacity detected")

	mgr := manager.NewWithConfig(manager.Config{
		Profile:     profile,
		Snapshot:    snap,
		MarginBytes: uint64(*marginMB) << 20,
		Debounce:    time.Duration(*debounceMS) * time.Millisecond,
		Publisher: manager.FanoutPublisher{
			manager.ZerologPublisher{Log: log},
			httpapi.PromPublisher{},
		},
		Log: log,
	})
	defer mgr.Close()

	if *manifestPath != "" {
		mPath, err := fsutil.ExpandHome(*manifestPath)
		if err != nil {
			log.Fatal().Err(err).Str("path", *manifestPath).Msg("resolve manifest path")
		}
		if !fsutil.PathExists(mPath) {
			log.Fatal().Str("path", mPath).Msg("manifest not found")
		}
		components, err := registry.LoadManifest(mPath)
		if err != nil {
			log.Fatal().Err(err).Str("path", mPath).Msg("load manifest")
		}
		for _, c := range components {
			if err := mgr.RegisterComponent(ctx, c.ID, c.SizeBytes(), c.RestDevice()); err != nil {
				log.Fatal().Err(err).Str("component", c.ID).Msg("register component")
			}
		}
		log.Info().Int("components", len(components)).Msg("manifest registered")
	}

	mgr.StartBackgroundSampling(time.Duration(*probeIntervalMS) * time.Millisecond)

	if origins := splitCSV(*corsOrigins); len(origins) > 0 {
		httpapi.SetCORSOptions(true, origins,
			[]string{"GET", "POST", "OPTIONS"},
			[]string{"Accept", "Content-Type", "X-Log-Level"})
	}
	httpapi.SetLogger(log)
	httpapi.SetBaseContext(ctx)

	srv := &http.Server{Addr: *addr, Handler: httpapi.NewMux(service{mgr})}

	go func() {
		log.Info().Str("addr", *addr).Msg("memgovd listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	// Graceful shutdown (Ctrl+C / SIGTERM)
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown")
	}
}

// service adapts the manager to the HTTP layer.
type service struct {
	mgr *manager.Manager
}

func (s service) Status() types.StatusResponse   { return s.mgr.Status() }
func (s service) Runtime() types.RuntimeSettings { return s.mgr.ConfigureRuntime() }

func (s service) Reset() error {
	s.mgr.Reset()
	return nil
}

func splitCSV(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		p := strings.TrimSpace(part)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
