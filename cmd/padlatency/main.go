// Command padlatency runs a pad-latency tracer against a synthetic pipeline.
//
// The real engine is meant to be embedded in a pipeline host; this binary
// stands up the host side itself so the whole measurement path (topology
// cache, transit recorder, aggregate store, exporter) can be exercised and
// scraped without a media framework installed.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/marmos91/padlatency/internal/logger"
	"github.com/marmos91/padlatency/internal/ratelimiter"
	"github.com/marmos91/padlatency/pkg/config"
	"github.com/marmos91/padlatency/pkg/journal"
	"github.com/marmos91/padlatency/pkg/pipeline"
	"github.com/marmos91/padlatency/pkg/tracer"
)

func main() {
	configPath := flag.String("config", "", "Path to config file (default: XDG config dir)")
	logLevel := flag.String("log-level", "", "Override configured log level")
	initConfig := flag.Bool("init-config", false, "Write a default config file and exit")
	elements := flag.Int("elements", 3, "Number of elements in the synthetic pipeline")
	pushRate := flag.Uint("rate", 1000, "Buffer pushes per second (0 = unpaced)")
	runFor := flag.Duration("duration", 0, "How long to run (0 = until interrupted)")
	flag.Parse()

	if *initConfig {
		if err := writeDefaultConfig(*configPath); err != nil {
			log.Fatalf("Failed to write config: %v", err)
		}
		return
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	if *logLevel != "" {
		cfg.Logging.Level = *logLevel
	}
	logger.SetLevel(cfg.Logging.Level)
	logger.SetFormat(cfg.Logging.Format)
	logger.SetOutput(cfg.Logging.Output)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	engine := tracer.New(tracer.Options{
		Buffers:       cfg.Tracer.Buffers,
		BufferLists:   cfg.Tracer.BufferLists,
		Port:          cfg.Metrics.Port,
		LogInterval:   cfg.Metrics.LogInterval,
		MaxPending:    cfg.Tracer.MaxPending,
		MaxPendingAge: cfg.Tracer.MaxPendingAge,
	})
	if err := engine.Attach(ctx); err != nil {
		// Measurement and the on-demand query still work without the pull
		// listener, so keep running; the final snapshot is printed on exit.
		logger.Error("Pull listener failed to start: %v", err)
	}
	defer func() {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		_ = engine.Close(shutdownCtx)
	}()

	if cfg.Journal.Type == "badger" {
		jcfg, err := journal.ConfigFromMap(cfg.Journal.Badger)
		if err != nil {
			log.Fatalf("Invalid journal configuration: %v", err)
		}
		j, err := journal.Open(jcfg, engine.Store())
		if err != nil {
			log.Fatalf("Failed to open journal: %v", err)
		}
		defer func() { _ = j.Close() }()
		go j.Run(ctx)
		logger.Info("Snapshot journal at %s every %s", jcfg.Path, jcfg.Interval)
	}

	runCtx := ctx
	if *runFor > 0 {
		var runCancel context.CancelFunc
		runCtx, runCancel = context.WithTimeout(ctx, *runFor)
		defer runCancel()
	}

	drive(runCtx, engine, *elements, *pushRate)

	text, err := engine.RenderText()
	if err != nil {
		logger.Error("Failed to render final snapshot: %v", err)
		return
	}
	fmt.Print(text)
}

// drive pushes buffers through a linear synthetic pipeline until ctx is
// done. Every element charges a small, distinct processing delay so the
// exported latencies are visibly different per pad pair.
func drive(ctx context.Context, engine *tracer.Tracer, elements int, pushRate uint) {
	if elements < 2 {
		elements = 2
	}

	p := pipeline.New("padlatency-demo", engine, pipeline.NewWallClock())

	chain := make([]*pipeline.Element, elements)
	for i := range chain {
		name := fmt.Sprintf("element%d", i)
		chain[i] = p.AddElement(name, time.Duration(i+1)*200*time.Microsecond)
	}
	for i := 0; i+1 < len(chain); i++ {
		p.Link(chain[i], chain[i+1])
	}

	limiter := ratelimiter.New(pushRate, pushRate/10+1)
	th := p.NewThread()

	logger.Info("Driving %d-element pipeline at %d pushes/s", elements, pushRate)

	pushes := 0
	for {
		if err := limiter.Wait(ctx); err != nil {
			logger.Info("Driver stopped after %d pushes", pushes)
			return
		}

		// A list push every 100th iteration keeps the list path warm.
		if pushes%100 == 99 {
			th.PushList(chain[0], p.NewBufferList(4))
		} else {
			th.Push(chain[0], p.NewBuffer())
		}
		pushes++
	}
}

// writeDefaultConfig writes a commented-out starting configuration to path,
// or to ./config.yaml when path is empty.
func writeDefaultConfig(path string) error {
	if path == "" {
		path = "config.yaml"
	}

	defaults := map[string]any{
		"logging": map[string]any{
			"level":  "INFO",
			"format": "text",
			"output": "stdout",
		},
		"metrics": map[string]any{
			"port":         9464,
			"log_interval": "0s",
		},
		"tracer": map[string]any{
			"buffers":         true,
			"buffer_lists":    true,
			"max_pending":     4096,
			"max_pending_age": "5s",
		},
		"journal": map[string]any{
			"type": "none",
		},
	}

	data, err := yaml.Marshal(defaults)
	if err != nil {
		return fmt.Errorf("failed to encode default config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	fmt.Printf("Wrote default configuration to %s\n", path)
	return nil
}
