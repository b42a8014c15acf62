package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"

	"axlcd/internal/config"
	"axlcd/internal/lcd"
	appLog "axlcd/internal/log"
	"axlcd/internal/model"
	"axlcd/internal/serial"
)

// flagConfig holds CLI flag values.
type flagConfig struct {
	configPath string
	device     string
	once       bool
}

func main() {
	appLog.Info("axlcd starting", "version", "0.1.0")

	flags := parseFlags()

	conf, err := config.Load(flags.configPath)
	if err != nil {
		appLog.Error("failed to load config", err, "config_path", flags.configPath)
		os.Exit(1)
	}

	// CLI --device overrides config file device if provided.
	if flags.device != "" {
		conf.Device = flags.device
	}

	level, ok := appLog.ParseLevel(conf.LogLevel)
	if !ok {
		appLog.Warn("unknown log level, using info", "log_level", conf.LogLevel)
	}
	appLog.SetLevel(level)

	appLog.Info("effective config",
		"device", conf.Device,
		"speed", conf.Speed,
		"refresh", conf.RefreshCron,
		"log_level", level,
		"once", flags.once,
	)

	display, err := lcd.Init(conf, appLog.Default())
	if err != nil {
		appLog.Error("failed to open display", err, "device", conf.Device)
		os.Exit(1)
	}
	defer display.Close()

	hostname, _ := os.Hostname()
	screen := newStatusScreen(display, hostname, time.Now())

	if flags.once {
		screen.Render(time.Now())
		display.Flush()
		return
	}

	// Root context with cancellation on SIGINT/SIGTERM.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		appLog.Info("signal received, shutting down", "signal", sig.String())
		cancel()
	}()

	sched := cron.New(
		cron.WithLogger(cronLogger{}),
		cron.WithChain(cron.SkipIfStillRunning(cronLogger{})),
	)
	if _, err := sched.AddFunc(conf.RefreshCron, func() {
		screen.Render(time.Now())
		display.Flush()
	}); err != nil {
		appLog.Error("invalid refresh schedule", err, "refresh", conf.RefreshCron)
		os.Exit(1)
	}

	// Draw immediately rather than waiting for the first tick.
	screen.Render(time.Now())
	display.Flush()
	sched.Start()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		pollKeys(ctx, display, screen, serial.ReadTimeout)
	}()

	<-ctx.Done()

	<-sched.Stop().Done()
	wg.Wait()

	if err := display.Halt(); err != nil {
		appLog.Error("failed to blank display", err)
	}
	appLog.Info("axlcd exiting")
}

// reopenAfter is how many failed or hung-up key polls in a row make the
// daemon reopen the serial line.
const reopenAfter = 5

// keyPoller is the part of the session the key loop needs.
type keyPoller interface {
	PollKey() model.Button
	Flush()
	LineFaults() int
	Reopen() error
}

// pollKeys reads buttons until ctx is done. A poll that comes back early
// (hung-up line, poll failure) is padded out to interval so a dead line does
// not turn into a busy loop.
func pollKeys(ctx context.Context, d keyPoller, screen *statusScreen, interval time.Duration) {
	for ctx.Err() == nil {
		start := time.Now()

		key := d.PollKey()
		if key != model.ButtonNone {
			appLog.Debug("key pressed", "key", key)
			if screen.HandleKey(key) {
				screen.Render(time.Now())
				d.Flush()
			}
			continue
		}

		if faults := d.LineFaults(); faults >= reopenAfter {
			appLog.Warn("serial line unresponsive, reopening", "faults", faults)
			if err := d.Reopen(); err != nil {
				appLog.Error("failed to reopen display", err)
			} else {
				screen.Render(time.Now())
				d.Flush()
			}
		}

		if rest := interval - time.Since(start); rest > 0 {
			select {
			case <-ctx.Done():
				return
			case <-time.After(rest):
			}
		}
	}
}

func parseFlags() flagConfig {
	var cfg flagConfig

	flag.StringVar(&cfg.configPath, "config", "/etc/axlcd/config.yaml", "Path to config file")
	flag.StringVar(&cfg.device, "device", "", "Serial device (overrides config if set)")
	flag.BoolVar(&cfg.once, "once", false, "Draw the status screen once and exit")

	flag.Parse()

	return cfg
}

// cronLogger routes robfig/cron diagnostics into the application log.
type cronLogger struct{}

func (cronLogger) Info(msg string, kv ...interface{}) {
	appLog.Debug("cron: "+msg, kv...)
}

func (cronLogger) Error(err error, msg string, kv ...interface{}) {
	appLog.Error("cron: "+msg, err, kv...)
}
