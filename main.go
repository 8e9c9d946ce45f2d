// gonettopo walks a network breadth-first over SSH, asking each device for
// its CDP/LLDP neighbors and writing the resulting device table and topology
// graph to JSON.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/lukeod/gonettopo/config"
	"github.com/lukeod/gonettopo/crawler"
	"github.com/lukeod/gonettopo/creds"
	"github.com/lukeod/gonettopo/datamodel"
	"github.com/lukeod/gonettopo/logger"
	"github.com/lukeod/gonettopo/output"
	"github.com/lukeod/gonettopo/parser"
)

func main() {
	seedFlag := flag.String("seed", "", "Seed devices: HOST,IP pairs separated by ';' (bare IPs accepted)")
	excludeFlag := flag.String("exclude", "", "Comma-separated hostname substrings to exclude")
	maxHops := flag.Int("max-hops", -1, "Hop limit, 0 visits seeds only (overrides config when set)")
	credsFile := flag.String("creds-file", "creds.json", "Path to the credentials JSON file")
	configFile := flag.String("config", "", "Path to the YAML configuration file")
	templateDir := flag.String("template-dir", "", "Directory of structured parse templates (overrides config)")
	outputPath := flag.String("output", "", "Device table output path (overrides config)")
	graphPath := flag.String("graph-output", "", "Topology graph output path (overrides config)")
	verbosity := flag.String("verbosity", "info", "Log level: debug, info, warn, error")
	flag.Parse()

	logger.Init(parseLevel(*verbosity))

	cfg, err := loadConfig(*configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading configuration: %v\n", err)
		os.Exit(1)
	}
	applyOverrides(cfg, *maxHops, *excludeFlag, *templateDir, *outputPath, *graphPath)

	seeds, err := parseSeeds(*seedFlag)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error parsing seeds: %v\n", err)
		os.Exit(1)
	}
	if len(seeds) == 0 {
		fmt.Fprintln(os.Stderr, "Error: at least one seed device is required (--seed)")
		flag.Usage()
		os.Exit(1)
	}

	credentials, err := creds.Load(*credsFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading credentials: %v\n", err)
		os.Exit(1)
	}

	registry := parser.NewRegistry(parser.NewTextFSMEngine())
	registry.LoadTemplatesFromDirectory(cfg.DiscoveryCommands, cfg.TemplateDir)
	registry.RegisterBuiltinFallbacks()

	writer := output.NewWriter(cfg.OutputPath, cfg.GraphOutputPath)

	c := crawler.New(cfg, credentials, registry, writer)
	c.Progress = func(line string) {
		fmt.Println(line)
	}
	for _, s := range seeds {
		if err := c.AddSeed(s.hostname, s.ip); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	devices, err := c.Run(ctx)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			fmt.Fprintln(os.Stderr, "Interrupted; partial results written.")
		} else {
			fmt.Fprintf(os.Stderr, "Error: crawl failed: %v\n", err)
			os.Exit(1)
		}
	}

	visited := 0
	for _, d := range devices {
		if d.Visited {
			visited++
		}
	}
	logger.Info("Crawl complete", "devices", len(devices), "visited", visited,
		"output", cfg.OutputPath, "graph", cfg.GraphOutputPath)
	fmt.Println("gonettopo finished.")
}

func parseLevel(s string) logger.LogLevel {
	switch strings.ToLower(s) {
	case "debug":
		return logger.LevelDebug
	case "warn", "warning":
		return logger.LevelWarn
	case "error":
		return logger.LevelError
	default:
		return logger.LevelInfo
	}
}

func loadConfig(path string) (*datamodel.CrawlConfig, error) {
	if path == "" {
		return config.Default(), nil
	}
	return config.LoadConfig(path)
}

func applyOverrides(cfg *datamodel.CrawlConfig, maxHops int, exclude, templateDir, outputPath, graphPath string) {
	if maxHops >= 0 {
		cfg.MaxHops = maxHops
	}
	if exclude != "" {
		for _, p := range strings.Split(exclude, ",") {
			if p = strings.TrimSpace(p); p != "" {
				cfg.ExcludePatterns = append(cfg.ExcludePatterns, p)
			}
		}
	}
	if templateDir != "" {
		cfg.TemplateDir = templateDir
	}
	if outputPath != "" {
		cfg.OutputPath = outputPath
	}
	if graphPath != "" {
		cfg.GraphOutputPath = graphPath
	}
}

type seed struct {
	hostname string
	ip       string
}

// parseSeeds accepts "core1,10.0.0.1;edge2,10.0.0.2" as well as bare
// addresses like "10.0.0.1;10.0.0.2".
func parseSeeds(raw string) ([]seed, error) {
	var seeds []seed
	for _, entry := range strings.Split(raw, ";") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		parts := strings.SplitN(entry, ",", 2)
		if len(parts) == 1 {
			seeds = append(seeds, seed{ip: strings.TrimSpace(parts[0])})
			continue
		}
		host := strings.TrimSpace(parts[0])
		ip := strings.TrimSpace(parts[1])
		if ip == "" {
			return nil, fmt.Errorf("seed entry %q has no address", entry)
		}
		seeds = append(seeds, seed{hostname: host, ip: ip})
	}
	return seeds, nil
}
