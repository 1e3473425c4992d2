package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"

	"github.com/ayusman/mudra/internal/action"
	"github.com/ayusman/mudra/internal/app"
	"github.com/ayusman/mudra/internal/bus"
	"github.com/ayusman/mudra/internal/capture"
	"github.com/ayusman/mudra/internal/config"
	"github.com/ayusman/mudra/internal/detector"
	"github.com/ayusman/mudra/internal/gesture"
	mlog "github.com/ayusman/mudra/internal/log"
	"github.com/ayusman/mudra/internal/plugin"
	"github.com/ayusman/mudra/internal/server"
	"github.com/ayusman/mudra/internal/store"
	"github.com/ayusman/mudra/internal/tray"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

func main() {
	configPath := flag.String("config", filepath.Join(config.DefaultDataDir(), "config.json"), "path to the configuration file")
	addr := flag.String("addr", "", "listen address, overrides the configuration")
	useTray := flag.Bool("tray", false, "show the system tray menu")
	dryRun := flag.Bool("dry-run", false, "log actions instead of performing them")
	mockDetector := flag.Bool("mock-detector", false, "use the built-in mock detector")
	flag.Parse()

	// .env is optional
	_ = godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "mudra: %v\n", err)
		os.Exit(1)
	}
	if *addr != "" {
		cfg.Server.Addr = *addr
	}
	if *dryRun {
		cfg.Actions.DryRun = true
	}
	if *useTray {
		cfg.Tray = true
	}

	log, err := mlog.New(mlog.Options{Level: cfg.LogLevel, Dir: cfg.LogDir()})
	if err != nil {
		fmt.Fprintf(os.Stderr, "mudra: %v\n", err)
		os.Exit(1)
	}

	if err := run(cfg, *mockDetector, log); err != nil {
		log.WithError(err).Fatal("mudra stopped")
	}
}

func run(cfg *config.Config, mockDetector bool, log *logrus.Logger) error {
	log.Info("Mudra - Hand Gesture Recognition")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		return fmt.Errorf("create data directory: %w", err)
	}

	st, err := store.New(cfg.DatabasePath())
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	seeded, err := st.Bindings().Seed(ctx, cfg.Seeds())
	if err != nil {
		return fmt.Errorf("seed bindings: %w", err)
	}
	if seeded > 0 {
		log.WithField("count", seeded).Info("seeded default bindings")
	}

	var publisher bus.Publisher = bus.Nop{}
	if cfg.Redis.Enabled {
		publisher = bus.NewRedis(bus.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			Channel:  cfg.Redis.Channel,
		}, log.WithField("component", "bus"))
	}

	plugins := plugin.NewManager(cfg.Actions.PluginDir, log.WithField("component", "plugin"))
	if err := plugins.Discover(); err != nil {
		log.WithError(err).Warn("plugin discovery failed")
	}

	var sink action.Sink
	if cfg.Actions.DryRun {
		sink = action.LogSink{Log: log.WithField("component", "dry-run")}
	} else {
		sink = plugin.NewSink(plugins, plugin.NewExecutor(cfg.Actions.Timeout.Std()),
			filepath.Join(cfg.DataDir, "scripts"), log.WithField("component", "sink"))
	}

	det := newDetector(cfg, mockDetector, log)

	camera := capture.NewCamera(capture.Options{
		DeviceID: cfg.Camera.DeviceID,
		Width:    cfg.Camera.Width,
		Height:   cfg.Camera.Height,
		FPS:      cfg.Camera.IdleFPS,
	})

	hub := server.NewHub(log.WithField("component", "live"))

	application, err := app.New(ctx, app.Options{
		Config:   cfg,
		Store:    st,
		Camera:   camera,
		Detector: det,
		Sink:     sink,
		Plugins:  plugins,
		Hub:      hub,
		Bus:      publisher,
		Log:      log.WithField("component", "app"),
	})
	if err != nil {
		return err
	}
	defer application.Close()

	webDir := findWebDir(cfg.DataDir)
	if webDir != "" {
		log.WithField("dir", webDir).Info("serving static files")
	}

	srv := server.New(server.Config{
		StaticDir:  webDir,
		Store:      st,
		Hub:        hub,
		Frames:     application,
		Controller: application,
		Log:        log.WithField("component", "server"),
		RateLimit:  cfg.Server.RateLimit,
		RateBurst:  cfg.Server.RateBurst,
		OnBindingsChanged: func() {
			if err := application.ReloadBindings(context.Background()); err != nil {
				log.WithError(err).Error("reload bindings")
			}
		},
	})

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		wg   sync.WaitGroup
		errs = make(chan error, 2)
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		if err := srv.ListenAndServe(ctx, cfg.Server.Addr); err != nil {
			errs <- fmt.Errorf("server: %w", err)
		}
		cancel()
	}()
	go func() {
		defer wg.Done()
		if err := application.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			errs <- fmt.Errorf("recognition: %w", err)
		}
		cancel()
	}()

	if cfg.Tray {
		// systray owns the main goroutine until Quit.
		t := tray.New(application, log.WithField("component", "tray"))
		t.OnQuit(cancel)
		t.OnSettings(func() {
			log.Infof("settings: http://%s", cfg.Server.Addr)
		})
		application.OnGesture(func(ev gesture.Event) {
			t.SetLastGesture(ev)
		})
		go func() {
			<-ctx.Done()
			t.Quit()
		}()
		t.Run()
	}

	<-ctx.Done()
	wg.Wait()
	close(errs)

	var joined error
	for err := range errs {
		joined = errors.Join(joined, err)
	}
	if joined == nil {
		log.Info("shut down cleanly")
	}
	return joined
}

// newDetector returns the MediaPipe detector, or the mock detector when the
// service script is missing or a mock was requested.
func newDetector(cfg *config.Config, mock bool, log *logrus.Logger) detector.Detector {
	if !mock {
		d, err := detector.NewMediaPipeDetector(detector.Config{
			MaxHands:        cfg.Detector.MaxHands,
			MinConfidence:   cfg.Detector.MinConfidence,
			MinTrackingConf: cfg.Detector.MinTrackingConf,
		}, log.WithField("component", "detector"))
		if err == nil {
			return d
		}
		log.WithError(err).Warn("MediaPipe unavailable, using mock detector")
	}
	return detector.NewMockDetector()
}

// findWebDir searches for the web directory in common locations.
// It checks: "web", "../web", "../../web", and <dataDir>/web.
// Returns the first existing directory or empty string if none found.
func findWebDir(dataDir string) string {
	relativePaths := []string{"web", "../web", "../../web"}
	for _, p := range relativePaths {
		if info, err := os.Stat(p); err == nil && info.IsDir() {
			absPath, err := filepath.Abs(p)
			if err == nil {
				return absPath
			}
			return p
		}
	}

	dataWebDir := filepath.Join(dataDir, "web")
	if info, err := os.Stat(dataWebDir); err == nil && info.IsDir() {
		return dataWebDir
	}

	return ""
}
