package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"syscall"

	"github.com/tartampluch/go-birthday-bot/internal/bot"
	"github.com/tartampluch/go-birthday-bot/internal/calendar"
	"github.com/tartampluch/go-birthday-bot/internal/config"
	"github.com/tartampluch/go-birthday-bot/internal/engine"
	"github.com/tartampluch/go-birthday-bot/internal/locale"
	"github.com/tartampluch/go-birthday-bot/internal/metrics"
	"github.com/tartampluch/go-birthday-bot/internal/scheduler"
	"github.com/tartampluch/go-birthday-bot/internal/server"
	"github.com/tartampluch/go-birthday-bot/internal/store"
	"github.com/tartampluch/go-birthday-bot/internal/store/postgres"
	"github.com/tartampluch/go-birthday-bot/internal/store/sqlite"
)

// main delegates to runMain so deferred calls run before os.Exit.
func main() {
	os.Exit(runMain())
}

// runMain manages the application lifecycle, argument parsing, and exit codes.
func runMain() int {
	showVersion := flag.Bool(config.FlagVersion, false, config.FlagDescVersion)
	debugMode := flag.Bool(config.FlagDebug, false, config.FlagDescDebug)
	storeToken := flag.Bool(config.FlagStoreToken, false, config.FlagDescStoreToken)
	importPath := flag.String(config.FlagImport, "", config.FlagDescImport)
	flag.Parse()

	if *showVersion {
		printVersion()
		return config.ExitCodeSuccess
	}

	logCloser := setupLogging(*debugMode)
	if logCloser != nil {
		defer func() {
			_ = logCloser.Close()
		}()
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	logStartupInfo()

	settings, err := config.LoadSettings()
	if err == nil {
		switch {
		case *storeToken:
			err = settings.StoreToken()
		case *importPath != "":
			err = importRoster(ctx, settings, *importPath)
		default:
			err = run(ctx, settings, *debugMode)
		}
	}
	if err != nil {
		slog.Error(config.ErrAppFailed,
			config.LogKeyComponent, config.CompMain,
			config.LogKeyError, err,
		)
		return config.ExitCodeError
	}

	slog.Info(config.MsgAppStop, config.LogKeyComponent, config.CompMain)
	return config.ExitCodeSuccess
}

// openStore picks the backend from DATABASE_URL.
func openStore(ctx context.Context, databaseURL string) (store.Store, error) {
	backend := store.BackendFor(databaseURL)
	slog.Info(config.MsgStoreOpen,
		config.LogKeyComponent, config.CompMain,
		config.LogKeyDriver, string(backend),
	)
	if backend == store.BackendPostgres {
		pg, err := postgres.Open(ctx, databaseURL)
		if err != nil {
			return nil, err
		}
		return pg, nil
	}
	lite, err := sqlite.Open(databaseURL)
	if err != nil {
		return nil, err
	}
	return lite, nil
}

// newService wires the store, photo cache and renderer. linker may be nil when
// no bot is running; members then render with the placeholder.
func newService(settings config.Settings, st store.Store, loc *locale.Localizer, clock engine.Clock, linker engine.FileLinker) (*engine.Service, error) {
	placeholder := filepath.Join(settings.ImagesDir, config.PlaceholderFileName)
	if err := calendar.EnsurePlaceholder(placeholder); err != nil {
		return nil, err
	}
	geom := calendar.Geometry{
		CellSize:     settings.CellSize,
		Padding:      settings.Padding,
		HeaderHeight: config.DefaultHeaderHeight,
		FontPath:     settings.FontPath,
	}
	photos := &engine.PhotoResolver{
		Dir:         settings.ImagesDir,
		Placeholder: placeholder,
		Linker:      linker,
		Fetcher:     engine.NewHTTPFetcher(),
		Store:       st,
		Clock:       clock,
	}
	return &engine.Service{
		Store:    st,
		Photos:   photos,
		Renderer: calendar.NewRenderer(geom, loc.CalendarLabels()),
		Captions: loc.CaptionFormatter(),
		Clock:    clock,
	}, nil
}

// importRoster loads a vCard file into the store and exits.
func importRoster(ctx context.Context, settings config.Settings, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("%s: %w", config.ErrImport, err)
	}
	defer func() { _ = f.Close() }()

	st, err := openStore(ctx, settings.DatabaseURL)
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()

	svc := &engine.Service{Store: st}
	_, err = svc.ImportVCards(ctx, f)
	return err
}

// run starts the bot, the scheduler and the HTTP server and blocks until ctx
// is cancelled or one of them fails.
func run(ctx context.Context, settings config.Settings, debug bool) error {
	tz, err := settings.Location()
	if err != nil {
		return err
	}
	token, err := settings.ResolveToken()
	if err != nil {
		return err
	}

	metrics.Register()

	st, err := openStore(ctx, settings.DatabaseURL)
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()

	loc := locale.NewBundle().Localizer(settings.Language)
	clock := engine.RealClock{Location: tz}

	api, err := bot.NewAPI(token, debug)
	if err != nil {
		return err
	}
	svc, err := newService(settings, st, loc, clock, bot.FileLinker{API: api})
	if err != nil {
		return err
	}

	renderDir := filepath.Join(os.TempDir(), config.AppID)
	if err := os.MkdirAll(renderDir, config.DirPermUserRWX); err != nil {
		return fmt.Errorf("%s: %w", config.ErrCreateDir, err)
	}

	b, err := bot.New(bot.Options{
		API:       api,
		Store:     st,
		Calendar:  svc,
		Localize:  loc,
		Clock:     clock,
		RenderDir: renderDir,
		FeedURL:   settings.FeedURL(),
	})
	if err != nil {
		return err
	}

	srv := server.New(settings.BindAddr, settings.Port, svc)

	sched, err := scheduler.New(scheduler.Options{
		Location:    tz,
		NotifyCron:  settings.NotifyCron,
		RefreshCron: settings.RefreshCron,
		Notifier:    svc,
		Broadcaster: b,
		Feed:        svc,
		Sink:        srv,
	})
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	units := []func(context.Context) error{b.Run, sched.Run, srv.Start}
	errs := make(chan error, len(units))
	for _, unit := range units {
		go func() {
			err := unit(ctx)
			if err != nil {
				// One failed unit takes the others down.
				cancel()
			}
			errs <- err
		}()
	}

	var firstErr error
	for range units {
		if err := <-errs; err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// printVersion outputs the build information to stdout.
func printVersion() {
	fmt.Printf(config.MsgVersionOutput,
		config.AppName,
		config.Version,
		runtime.GOOS,
		runtime.GOARCH,
	)
}

// logStartupInfo logs environment details useful for debugging.
func logStartupInfo() {
	slog.Info(config.MsgAppStarting,
		config.LogKeyComponent, config.CompMain,
		slog.Group(config.LogKeyBuild,
			slog.String(config.LogKeyApp, config.AppName),
			slog.String(config.LogKeyVersion, config.Version),
			slog.String(config.LogKeyGoVer, runtime.Version()),
		),
		slog.Group(config.LogKeyEnv,
			slog.String(config.LogKeyOS, runtime.GOOS),
			slog.String(config.LogKeyArch, runtime.GOARCH),
			slog.Int(config.LogKeyPID, os.Getpid()),
		),
	)
}

// setupLogging writes JSON logs to stdout and, when possible, to a log file
// in the user cache directory that is truncated on every start.
func setupLogging(debugMode bool) io.Closer {
	writers := []io.Writer{os.Stdout}
	var logFile *os.File

	if logPath, err := getLogFilePath(); err == nil {
		f, err := os.OpenFile(logPath, os.O_TRUNC|os.O_CREATE|os.O_WRONLY, config.FilePermUserRW)
		if err == nil {
			writers = append(writers, f)
			logFile = f
		} else {
			fmt.Fprintf(os.Stderr, config.MsgLogWarning, config.ErrLogFile, logPath, err)
		}
	}

	level := slog.LevelInfo
	if debugMode {
		level = slog.LevelDebug
	}

	logger := slog.New(slog.NewJSONHandler(io.MultiWriter(writers...), &slog.HandlerOptions{
		Level:     level,
		AddSource: debugMode,
	}))
	slog.SetDefault(logger)

	if logFile == nil {
		return nil
	}
	return logFile
}

// getLogFilePath determines the platform-specific cache directory for logs.
func getLogFilePath() (string, error) {
	cacheDir, err := os.UserCacheDir()
	if err != nil {
		return "", fmt.Errorf("%s: %w", config.ErrCacheDir, err)
	}

	appDir := filepath.Join(cacheDir, config.AppID)
	if err := os.MkdirAll(appDir, config.DirPermUserRWX); err != nil {
		return "", fmt.Errorf("%s: %w", config.ErrCreateDir, err)
	}

	return filepath.Join(appDir, config.LogFileName), nil
}
