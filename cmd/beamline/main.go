// Beamline Core - device factory and connection tool
//
// This is the command-line entry point for the beamline core. It builds a
// beamline's wiring module, creates every device in dependency order and
// connects them concurrently, then reports which devices came up.
//
//	beamline connect i03 --mock
//	beamline connect i04-1 --all --config configs/config.yaml
//	beamline list
//	beamline runs --beamline i03 --failed
//	beamline history undulator
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"maps"
	"os"
	"os/signal"
	"slices"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/pflag"

	_ "github.com/nerrad567/beamline-core/migrations"

	"github.com/nerrad567/beamline-core/internal/audit"
	"github.com/nerrad567/beamline-core/internal/beamline"
	"github.com/nerrad567/beamline-core/internal/beamlines"
	"github.com/nerrad567/beamline-core/internal/infrastructure/config"
	"github.com/nerrad567/beamline-core/internal/infrastructure/database"
	"github.com/nerrad567/beamline-core/internal/infrastructure/influxdb"
	"github.com/nerrad567/beamline-core/internal/infrastructure/logging"
	"github.com/nerrad567/beamline-core/internal/infrastructure/mqtt"
	"github.com/nerrad567/beamline-core/internal/loader"
	"github.com/nerrad567/beamline-core/internal/pathprovider"
	"github.com/nerrad567/beamline-core/internal/pv"
	"github.com/nerrad567/beamline-core/internal/telemetry"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"     // Semantic version (e.g., "1.0.0")
	commit  = "unknown" // Git commit hash
	date    = "unknown" // Build date
)

// Default configuration file path
const defaultConfigPath = "configs/config.yaml"

var (
	errUsage           = errors.New("usage")
	errNoBeamline      = errors.New("no beamline given and $BEAMLINE is not set")
	errDevicesFailed   = errors.New("some devices failed to connect")
	errJournalDisabled = errors.New("the connection journal needs database.enabled")
)

func main() {
	// Cancel on Ctrl+C / SIGTERM so in-flight connects stop promptly
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		cancel()
		os.Exit(1)
	}
}

// options holds the parsed command line.
type options struct {
	configPath string
	all        bool
	mock       bool
	beamline   string
	failedOnly bool
	limit      int
	prune      time.Duration
}

// run is the actual application logic, separated from main for testability.
//
// Parameters:
//   - ctx: Context for cancellation and shutdown signals
//   - args: Command line without the program name
//   - stdout: Where reports are written
//
// Returns:
//   - error: nil on success, or error describing failure
func run(ctx context.Context, args []string, stdout io.Writer) error {
	var opts options
	var showVersion bool

	flagSet := pflag.NewFlagSet("beamline", pflag.ContinueOnError)
	flagSet.SetOutput(io.Discard)
	flagSet.StringVarP(&opts.configPath, "config", "c", "", "path to config.yaml (default: $BEAMLINE_CONFIG or "+defaultConfigPath+")")
	flagSet.BoolVar(&opts.all, "all", false, "also create devices marked skip")
	flagSet.BoolVar(&opts.mock, "mock", false, "connect every device in simulation mode")
	flagSet.StringVar(&opts.beamline, "beamline", "", "runs: only show runs of this beamline")
	flagSet.BoolVar(&opts.failedOnly, "failed", false, "runs: only show runs with errors")
	flagSet.IntVar(&opts.limit, "limit", 20, "runs, history: maximum rows to show")
	flagSet.DurationVar(&opts.prune, "prune", 0, "runs: delete runs older than this before listing")
	flagSet.BoolVar(&showVersion, "version", false, "print version and exit")
	flagSet.BoolP("help", "h", false, "show help")

	if err := flagSet.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			printHelp(stdout, flagSet)
			return nil
		}
		return err
	}
	if help, _ := flagSet.GetBool("help"); help { //nolint:errcheck // Flag is registered above
		printHelp(stdout, flagSet)
		return nil
	}
	if showVersion {
		fmt.Fprintf(stdout, "beamline %s (commit %s, built %s)\n", version, commit, date)
		return nil
	}

	rest := flagSet.Args()
	if len(rest) == 0 {
		printHelp(stdout, flagSet)
		return fmt.Errorf("%w: a command is required", errUsage)
	}

	switch rest[0] {
	case "list":
		return listBeamlines(stdout)
	case "connect":
		if len(rest) > 2 {
			return fmt.Errorf("%w: connect takes at most one beamline", errUsage)
		}
		var name string
		if len(rest) == 2 {
			name = rest[1]
		}
		return connectBeamline(ctx, opts, name, stdout)
	case "runs":
		var runID string
		if len(rest) > 1 {
			runID = rest[1]
		}
		return showRuns(ctx, opts, runID, stdout)
	case "history":
		if len(rest) != 2 {
			return fmt.Errorf("%w: history takes one device name", errUsage)
		}
		return showHistory(ctx, opts, rest[1], stdout)
	default:
		return fmt.Errorf("%w: unknown command %q", errUsage, rest[0])
	}
}

func printHelp(w io.Writer, flagSet *pflag.FlagSet) {
	fmt.Fprintf(w, `beamline - create and connect the devices of a beamline

Usage:
  beamline connect [beamline] [--all] [--mock] [--config path]
  beamline list
  beamline runs [run-id] [--beamline name] [--failed] [--limit n] [--prune age]
  beamline history <device> [--limit n]

The beamline defaults to $BEAMLINE. Failures are always reported; with
--all, connect also exits non-zero if any device failed.

Flags:
%s`, flagSet.FlagUsages())
}

// listBeamlines prints every supported beamline and the module serving it.
func listBeamlines(stdout io.Writer) error {
	tw := tabwriter.NewWriter(stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "BEAMLINE\tMODULE")
	for _, name := range beamlines.All() {
		fmt.Fprintf(tw, "%s\t%s\n", name, beamline.ModuleNameForBeamline(name))
	}
	return tw.Flush()
}

// connectBeamline builds the beamline's module and connects every device.
func connectBeamline(ctx context.Context, opts options, name string, stdout io.Writer) error {
	cfg, err := loadConfig(opts.configPath)
	if err != nil {
		return err
	}
	if name == "" {
		name = cfg.Beamline.Name
	}
	if name == "" {
		return errNoBeamline
	}
	if _, err := beamlines.Lookup(name); err != nil {
		return err
	}

	log := logging.New(cfg.Logging, version, name)
	log.Info("starting beamline connect",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	svc, err := openServices(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer svc.close()

	env := beamline.NewContext()
	env.SetPathProvider(newPathProvider(cfg, svc.db, name, log))
	if svc.gateway != nil {
		env.SetControlSystem(svc.gateway)
	}

	module, err := beamlines.Load(env, name)
	if err != nil {
		return fmt.Errorf("loading beamline %s: %w", name, err)
	}

	l := loader.New()
	l.SetLogger(log.Component("loader"))
	for _, r := range svc.recorders {
		l.AddRecorder(r)
	}

	result, err := l.MakeAllDevices(ctx, module,
		loader.Mock(opts.mock || cfg.Beamline.Mock),
		loader.IncludeSkipped(opts.all),
		loader.ConnectTimeout(cfg.GetConnectTimeout()),
	)
	if err != nil {
		return fmt.Errorf("connecting %s: %w", name, err)
	}

	if err := printResult(stdout, result); err != nil {
		return err
	}
	if !result.OK() && opts.all {
		return fmt.Errorf("%w: %d of %d", errDevicesFailed, len(result.Errors), len(result.States)-result.Count(loader.StateSkipped))
	}
	return nil
}

// printResult writes one line per device, then the failures in full.
func printResult(stdout io.Writer, result *loader.BatchResult) error {
	tw := tabwriter.NewWriter(stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "DEVICE\tSTATE")
	for _, name := range slices.Sorted(maps.Keys(result.States)) {
		fmt.Fprintf(tw, "%s\t%s\n", name, result.States[name])
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	fmt.Fprintf(stdout, "\n%d connected, %d skipped, %d failed (run %s)\n",
		result.Count(loader.StateConnected), result.Count(loader.StateSkipped), len(result.Errors), result.RunID)
	if _, err := result.OrRaise(); err != nil {
		fmt.Fprintf(stdout, "\nFailures:\n%v\n", err)
	}
	return nil
}

// showRuns lists journalled runs, or the entries of one run.
func showRuns(ctx context.Context, opts options, runID string, stdout io.Writer) error {
	repo, closeDB, err := openJournal(ctx, opts.configPath)
	if err != nil {
		return err
	}
	defer closeDB()

	if opts.prune > 0 {
		n, err := repo.Prune(ctx, time.Now().Add(-opts.prune))
		if err != nil {
			return err
		}
		fmt.Fprintf(stdout, "pruned %d runs\n", n)
	}

	if runID != "" {
		entries, err := repo.Entries(ctx, runID)
		if err != nil {
			return err
		}
		return printEntries(stdout, entries)
	}

	list, err := repo.ListRuns(ctx, audit.Filter{
		Beamline:   opts.beamline,
		FailedOnly: opts.failedOnly,
		Limit:      opts.limit,
	})
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "RUN\tBEAMLINE\tSTARTED\tDEVICES\tERRORS\tMOCK")
	for _, r := range list.Runs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\t%t\n",
			r.ID, r.Beamline, r.StartedAt.Local().Format(time.DateTime), r.DeviceCount, r.ErrorCount, r.Mock)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	fmt.Fprintf(stdout, "\n%d of %d runs\n", len(list.Runs), list.Total)
	return nil
}

// showHistory lists a device's most recent outcomes.
func showHistory(ctx context.Context, opts options, device string, stdout io.Writer) error {
	repo, closeDB, err := openJournal(ctx, opts.configPath)
	if err != nil {
		return err
	}
	defer closeDB()

	entries, err := repo.DeviceHistory(ctx, device, opts.limit)
	if err != nil {
		return err
	}
	return printEntries(stdout, entries)
}

func printEntries(stdout io.Writer, entries []audit.Entry) error {
	tw := tabwriter.NewWriter(stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "RUN\tDEVICE\tSTATE\tKIND\tDURATION\tERROR")
	for _, e := range entries {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n", e.RunID, e.Device, e.State, e.ErrorKind, e.Duration, e.Error)
	}
	return tw.Flush()
}

// openJournal opens the configured database read-write for journal queries.
func openJournal(ctx context.Context, configPath string) (*audit.SQLiteRepository, func(), error) {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return nil, nil, err
	}
	if !cfg.Database.Enabled {
		return nil, nil, errJournalDisabled
	}
	db, err := database.Open(ctx, database.FromConfig(cfg.Database))
	if err != nil {
		return nil, nil, fmt.Errorf("opening database: %w", err)
	}
	if err := db.Migrate(ctx); err != nil {
		db.Close() //nolint:errcheck // Best effort cleanup on error path
		return nil, nil, fmt.Errorf("running migrations: %w", err)
	}
	closeDB := func() {
		_ = db.Close() //nolint:errcheck // Nothing useful to do on a query-only path
	}
	return audit.NewSQLiteRepository(db), closeDB, nil
}

// services holds the optional infrastructure a connect run uses.
type services struct {
	db        *database.DB
	gateway   *pv.Gateway
	recorders []loader.Recorder
	closers   []func()
}

// close releases services in reverse order of opening.
func (s *services) close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
}

// openServices connects the database, MQTT broker and InfluxDB that are
// enabled in cfg. A disabled service is simply absent.
func openServices(ctx context.Context, cfg *config.Config, log *logging.Logger) (*services, error) {
	svc := &services{}

	if cfg.Database.Enabled {
		db, err := database.Open(ctx, database.FromConfig(cfg.Database))
		if err != nil {
			return nil, fmt.Errorf("opening database: %w", err)
		}
		svc.closers = append(svc.closers, func() {
			if closeErr := db.Close(); closeErr != nil {
				log.Error("error closing database", "error", closeErr)
			}
		})
		if err := db.Migrate(ctx); err != nil {
			svc.close()
			return nil, fmt.Errorf("running migrations: %w", err)
		}
		log.Info("database connected", "path", db.Path())
		svc.db = db
		svc.recorders = append(svc.recorders, audit.NewSQLiteRepository(db))
	}

	if cfg.MQTT.Enabled {
		client, err := mqtt.Connect(cfg.MQTT)
		if err != nil {
			svc.close()
			return nil, fmt.Errorf("connecting to MQTT: %w", err)
		}
		client.SetLogger(log.Component("mqtt"))
		svc.closers = append(svc.closers, func() {
			if closeErr := client.Close(); closeErr != nil {
				log.Error("error closing MQTT", "error", closeErr)
			}
		})
		log.Info("MQTT connected",
			"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
			"client_id", cfg.MQTT.Broker.ClientID,
		)
		svc.recorders = append(svc.recorders, telemetry.NewStatusPublisher(client, client.Topics(), client.QoS()))

		if cfg.MQTT.PVGateway {
			gw := pv.NewGateway(client, client.Topics(), client.QoS())
			gw.SetLogger(log.Component("pv"))
			svc.closers = append(svc.closers, func() {
				if closeErr := gw.Close(); closeErr != nil {
					log.Warn("error closing PV gateway", "error", closeErr)
				}
			})
			svc.gateway = gw
		}
	}

	if cfg.InfluxDB.Enabled {
		client, err := influxdb.Connect(ctx, cfg.InfluxDB)
		if err != nil {
			svc.close()
			return nil, fmt.Errorf("connecting to InfluxDB: %w", err)
		}
		client.SetOnError(func(err error) {
			log.Warn("influxdb write failed", "error", err)
		})
		svc.closers = append(svc.closers, func() {
			client.Flush()
			if closeErr := client.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		})
		log.Info("InfluxDB connected", "url", cfg.InfluxDB.URL, "bucket", cfg.InfluxDB.Bucket)
		svc.recorders = append(svc.recorders, telemetry.NewMetricsRecorder(client))
	}

	return svc, nil
}

// newPathProvider builds the visit path provider for detectors, backed by
// the configured collection-number service.
func newPathProvider(cfg *config.Config, db *database.DB, name string, log *logging.Logger) *pathprovider.StaticVisitProvider {
	root := cfg.DataRootFor(name)
	var service pathprovider.DirectoryService = pathprovider.NewLocalDirectoryService()
	if cfg.Paths.DirectoryService == config.DirectoryServiceSQLite && db != nil {
		service = pathprovider.NewSQLiteDirectoryService(db, name, root)
	}
	p := pathprovider.NewStaticVisitProvider(name, root, service)
	p.SetLogger(log.Component("paths"))
	return p
}

// loadConfig loads the file at path. With no explicit path it falls back
// to $BEAMLINE_CONFIG, then the default path, then built-in defaults.
func loadConfig(path string) (*config.Config, error) {
	explicit := path != ""
	if !explicit {
		path = getConfigPath()
		explicit = os.Getenv("BEAMLINE_CONFIG") != ""
	}

	if !explicit {
		if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
			return config.Default()
		}
	}

	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	return cfg, nil
}

// getConfigPath returns the configuration file path.
//
// Checks BEAMLINE_CONFIG environment variable first, then falls back to default.
func getConfigPath() string {
	if path := os.Getenv("BEAMLINE_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}
