// Command spur-analyzer draws mixer crossing-spur charts. By default it
// renders one scene to the -out files and prints the spurs that cross the
// filter box; with -serve it runs the HTTP API instead.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/banshee-data/spur.analyzer/internal/api"
	"github.com/banshee-data/spur.analyzer/internal/config"
	"github.com/banshee-data/spur.analyzer/internal/db"
	"github.com/banshee-data/spur.analyzer/internal/fsutil"
	"github.com/banshee-data/spur.analyzer/internal/harmonics"
	"github.com/banshee-data/spur.analyzer/internal/monitoring"
	"github.com/banshee-data/spur.analyzer/internal/render"
	"github.com/banshee-data/spur.analyzer/internal/security"
	"github.com/banshee-data/spur.analyzer/internal/spur"
	"github.com/banshee-data/spur.analyzer/internal/version"
)

const shutdownTimeout = 5 * time.Second

// outputList collects repeated -out flags.
type outputList []string

func (o *outputList) String() string { return strings.Join(*o, ",") }

func (o *outputList) Set(v string) error {
	if v == "" {
		return errors.New("output path must not be empty")
	}
	*o = append(*o, v)
	return nil
}

type cliOptions struct {
	configPath  string
	outputs     outputList
	serve       bool
	migrate     string
	showVersion bool
	cfg         *config.AnalyzerConfig
}

// parseFlags reads args into options. Flags that were set explicitly
// override the values from -config; the rest keep the config's values.
func parseFlags(args []string, stderr io.Writer) (*cliOptions, error) {
	fs := flag.NewFlagSet("spur-analyzer", flag.ContinueOnError)
	fs.SetOutput(stderr)

	var (
		o       cliOptions
		mixer   = fs.String("mixer", "", "Mixer harmonics table (.spr or .csv)")
		rfMin   = fs.Float64("rf-min", 0, "Lower RF filter bound")
		rfMax   = fs.Float64("rf-max", 0, "Upper RF filter bound")
		ifMin   = fs.Float64("if-min", 0, "Lower IF filter bound")
		ifMax   = fs.Float64("if-max", 0, "Upper IF filter bound")
		lo      = fs.Float64("lo", 0, "LO frequency")
		maxHarm = fs.Int("max-harm", 0, "Highest combined harmonic order |m|+|n|")
		alpha   = fs.Bool("alpha", true, "Fade lines by spur level")
		listen  = fs.String("listen", "", "Listen address in serve mode (default "+config.DefaultAnalyzerConfig().GetListen()+")")
		dbPath  = fs.String("db", "", "SQLite database path in serve mode")
	)
	fs.StringVar(&o.configPath, "config", "", "Path to an analyzer config JSON file")
	fs.Var(&o.outputs, "out", "Output chart file (.png, .svg, .pdf or .html); repeatable")
	fs.BoolVar(&o.serve, "serve", false, "Run the HTTP API instead of rendering once")
	fs.StringVar(&o.migrate, "migrate", "", "Apply a schema migration action ("+strings.Join(db.MigrateActions, ", ")+") to the -db database and exit")
	fs.BoolVar(&o.showVersion, "version", false, "Print version information and exit")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if fs.NArg() > 0 {
		return nil, fmt.Errorf("unexpected arguments: %s", strings.Join(fs.Args(), " "))
	}

	cfg := config.DefaultAnalyzerConfig()
	if o.configPath != "" {
		loaded, err := config.LoadAnalyzerConfig(o.configPath)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "mixer":
			cfg.MixerFile = mixer
		case "rf-min":
			cfg.RFMin = rfMin
		case "rf-max":
			cfg.RFMax = rfMax
		case "if-min":
			cfg.IFMin = ifMin
		case "if-max":
			cfg.IFMax = ifMax
		case "lo":
			cfg.LO = lo
		case "max-harm":
			cfg.MaxHarm = maxHarm
		case "alpha":
			cfg.UseAlpha = alpha
		case "listen":
			cfg.Listen = listen
		case "db":
			cfg.DBPath = dbPath
		}
	})
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	o.cfg = cfg
	return &o, nil
}

// loadStore returns a store with the configured mixer table active. A
// mixer file that cannot be used is reported and the default table kept.
func loadStore(cfg *config.AnalyzerConfig) *harmonics.Store {
	store := harmonics.NewStore(fsutil.OSFileSystem{})
	if path := cfg.GetMixerFile(); path != "" {
		if _, err := store.LoadFile(path); err != nil {
			monitoring.Logf("continuing with %s", harmonics.DefaultSource)
		}
	}
	return store
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	o, err := parseFlags(args, stderr)
	if err != nil {
		return err
	}
	if o.showVersion {
		about := version.Info()
		fmt.Fprintln(stdout, about)
		fmt.Fprintln(stdout, about.Description)
		fmt.Fprintln(stdout, "Author:", about.Author)
		return nil
	}

	if o.migrate != "" {
		return db.RunMigrateCommand(stdout, o.cfg.GetDBPath(), o.migrate)
	}

	store := loadStore(o.cfg)
	if o.serve {
		return serve(ctx, o.cfg, store)
	}
	return renderOnce(o, store, stdout)
}

func renderOnce(o *cliOptions, store *harmonics.Store, stdout io.Writer) error {
	for _, path := range o.outputs {
		if err := security.ValidateOutputPath(path); err != nil {
			return fmt.Errorf("invalid output path: %w", err)
		}
	}

	table, source := store.Snapshot()
	scene := spur.NewEngine().Compute(o.cfg.Params(), table)
	opts := render.Options{
		Unit:     o.cfg.GetUnits(),
		Source:   source,
		WidthIn:  o.cfg.GetPlotWidthIn(),
		HeightIn: o.cfg.GetPlotHeightIn(),
	}
	for _, path := range o.outputs {
		if err := render.SaveFile(fsutil.OSFileSystem{}, path, scene, opts); err != nil {
			return err
		}
		monitoring.Logf("wrote %s", path)
	}

	printCrossings(stdout, scene, source, o.cfg.GetUnits())
	return nil
}

func printCrossings(w io.Writer, scene *spur.Scene, source, unit string) {
	fmt.Fprintf(w, "Mixer: %s\n", source)
	fmt.Fprintf(w, "Params (%s): %s\n", unit, scene.Params)
	for _, a := range scene.Adjustments {
		fmt.Fprintf(w, "Adjusted: %s\n", a)
	}

	crossings := scene.Crossings()
	if len(crossings) == 0 {
		fmt.Fprintln(w, "No spurs cross the filter bounds.")
		return
	}
	fmt.Fprintf(w, "%d crossing spurs, strongest first:\n", len(crossings))
	for _, l := range crossings {
		fmt.Fprintf(w, "  %s\n", l.Label)
	}
}

func serve(ctx context.Context, cfg *config.AnalyzerConfig, store *harmonics.Store) error {
	database, err := db.NewDB(cfg.GetDBPath())
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer database.Close()

	mux := http.NewServeMux()
	mux.Handle("/api/", api.NewServer(store, database, cfg).ServeMux())
	mux.Handle("GET /{$}", http.RedirectHandler("/api/chart", http.StatusFound))

	// mount the admin debugging routes (accessible only over loopback or Tailscale)
	if err := database.AttachAdminRoutes(mux); err != nil {
		return fmt.Errorf("failed to attach admin routes: %w", err)
	}

	server := &http.Server{
		Addr:    cfg.GetListen(),
		Handler: api.LoggingMiddleware(mux),
	}

	errc := make(chan error, 1)
	go func() {
		monitoring.Logf("%s listening on %s (mixer: %s)", version.Name, server.Addr, store)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
		close(errc)
	}()

	select {
	case err := <-errc:
		if err != nil {
			return fmt.Errorf("failed to start server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	monitoring.Logf("shutting down HTTP server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("HTTP server shutdown error: %w", err)
	}
	return nil
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return
		}
		log.Fatalf("spur-analyzer: %v", err)
	}
}
