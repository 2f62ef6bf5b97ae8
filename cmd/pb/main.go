package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"runtime/pprof"
	"syscall"

	"github.com/vanderheijden86/portboard/pkg/config"
	"github.com/vanderheijden86/portboard/pkg/pipeline"
	"github.com/vanderheijden86/portboard/pkg/version"
	"github.com/vanderheijden86/portboard/pkg/watcher"
)

func main() {
	cpuProfile := flag.String("cpu-profile", "", "Write CPU profile to file")
	help := flag.Bool("help", false, "Show help")
	versionFlag := flag.Bool("version", false, "Show version")
	configPath := flag.String("config", "portboard.yaml", "Path to the config file")
	buildDir := flag.String("build-dir", "", "Override the build output directory")
	statusFile := flag.String("status", "", "Override the port status file path")
	skipLabels := flag.Bool("skip-labels", false, "Skip fetching PR labels from GitHub")
	watch := flag.Bool("watch", false, "Rebuild whenever the status file changes")
	flag.Parse()

	if *cpuProfile != "" {
		f, err := os.Create(*cpuProfile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Could not create CPU profile: %v\n", err)
			os.Exit(1)
		}
		defer f.Close()
		if err := pprof.StartCPUProfile(f); err != nil {
			fmt.Fprintf(os.Stderr, "Could not start CPU profile: %v\n", err)
			os.Exit(1)
		}
		defer pprof.StopCPUProfile()
	}

	if *help {
		fmt.Println("Usage: pb [options]")
		fmt.Println("\nGenerates a static port-status dashboard from a status file and two git clones.")
		flag.PrintDefaults()
		os.Exit(0)
	}

	if *versionFlag {
		fmt.Printf("pb %s\n", version.Version)
		os.Exit(0)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}
	if *buildDir != "" {
		cfg.BuildDir = *buildDir
	}
	if *statusFile != "" {
		cfg.StatusFile = *statusFile
	}

	p, err := pipeline.New(cfg, pipeline.Options{SkipLabels: *skipLabels})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := p.Run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if !*watch {
		return
	}
	if err := watchLoop(ctx, p, cfg.StatusFile); err != nil && ctx.Err() == nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// watchLoop rebuilds the site every time the status file changes. Build
// errors do not end the loop; the next edit gets another chance.
func watchLoop(ctx context.Context, p *pipeline.Pipeline, path string) error {
	w, err := watcher.New(path)
	if err != nil {
		return err
	}
	if err := w.Start(); err != nil {
		return err
	}
	defer w.Stop()

	if w.IsPolling() {
		fmt.Fprintf(os.Stderr, "watching %s (polling)\n", path)
	} else {
		fmt.Fprintf(os.Stderr, "watching %s\n", path)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case _, ok := <-w.Changed():
			if !ok {
				return nil
			}
			fmt.Fprintf(os.Stderr, "%s changed, rebuilding\n", path)
			if err := p.Run(ctx); err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			}
		}
	}
}
