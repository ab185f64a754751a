// Command gate runs the dispatch gateway: a queue-draining worker that
// assembles prompts, packs cache-friendly batches, and executes them
// against policy-approved providers.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/skaldlabs/gate"
	"github.com/skaldlabs/gate/audit"
	"github.com/skaldlabs/gate/provider"
)

const version = "0.3.0"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "run":
		runCmd(os.Args[2:])
	case "policies":
		policiesCmd(os.Args[2:])
	case "version":
		fmt.Printf("gate %s\n", version)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`gate - sensitivity-aware dispatch gateway

Usage:
  gate <command> [flags]

Commands:
  run       Start the gateway worker
  policies  List the built-in routing policies
  version   Print the version
  help      Show this help

Run 'gate <command> -h' for command flags.`)
}

func runCmd(args []string) {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	configPath := fs.String("config", "", "path to YAML config file")
	policyName := fs.String("policy", "", "routing policy (overrides config)")
	localServer := fs.Bool("local-server", false, "manage a local model server container via Docker")
	verbose := fs.Bool("v", false, "verbose logging")
	fs.Parse(args)

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	cfg := gate.DefaultConfig()
	if *configPath != "" {
		var err error
		cfg, err = gate.LoadConfig(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "config: %v\n", err)
			os.Exit(1)
		}
	}
	if *policyName != "" {
		cfg.Policy = *policyName
	}

	policy, err := gate.ResolvePolicy(cfg.Policy, cfg.ProviderSet())
	if err != nil {
		fmt.Fprintf(os.Stderr, "policy: %v\n", err)
		os.Exit(1)
	}

	sink, closeSink, err := buildSink(cfg.Audit)
	if err != nil {
		fmt.Fprintf(os.Stderr, "audit: %v\n", err)
		os.Exit(1)
	}
	defer closeSink()

	if *localServer {
		runtime, err := provider.NewRuntime()
		if err == nil && runtime.IsAvailable() {
			defer runtime.Close()
			ctx := context.Background()
			id, err := runtime.EnsureRunning(ctx, provider.ServerSpec{Name: "ollama"})
			if err != nil {
				slog.Warn("local model server not started", "error", err)
			} else {
				slog.Info("local model server running", "container", id)
			}
		} else {
			slog.Warn("docker unavailable, expecting an external model server")
		}
	}

	gateway := gate.NewSecurityGateway(policy, gate.WithAuditSink(sink))
	for _, name := range cfg.LocalProviders {
		gateway.RegisterProviderStatus(name, gate.ProviderStatus{Available: true})
	}
	gateway.RegisterProviderStatus(cfg.CloudProvider, gate.ProviderStatus{Available: true})

	queue := gate.NewMemoryQueue()
	scheduler, err := gate.NewBatchScheduler(cfg.MaxBatchTokens)
	if err != nil {
		fmt.Fprintf(os.Stderr, "scheduler: %v\n", err)
		os.Exit(1)
	}
	prompts := gate.NewPromptAssemblyEngine()

	client := buildClient(cfg)
	worker, err := gate.NewWorker(queue, scheduler, prompts, client,
		gate.WithMaxDequeue(cfg.MaxDequeue),
		gate.WithPollInterval(cfg.PollInterval()),
		gate.WithStopTimeout(cfg.StopTimeout()),
	)
	if err != nil {
		fmt.Fprintf(os.Stderr, "worker: %v\n", err)
		os.Exit(1)
	}

	worker.Start()
	slog.Info("gateway started",
		"policy", policy.Name(),
		"max_batch_tokens", cfg.MaxBatchTokens,
		"max_dequeue", cfg.MaxDequeue)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	slog.Info("shutting down")
	worker.Stop()

	for _, r := range worker.DrainResults() {
		if !r.Success {
			slog.Warn("job failed", "job_id", r.JobID, "error", r.Error)
		}
	}
}

// buildSink constructs the configured audit sink and a close function.
func buildSink(cfg gate.AuditConfig) (audit.Sink, func(), error) {
	noop := func() {}
	switch cfg.Backend {
	case "", "slog":
		return audit.NewSlogSink(nil), noop, nil
	case "none":
		return audit.NopSink{}, noop, nil
	case "memory":
		return audit.NewMemorySink(), noop, nil
	case "sqlite":
		s, err := audit.NewSQLiteSink(cfg.Path)
		if err != nil {
			return nil, noop, err
		}
		return s, func() { s.Close() }, nil
	default:
		return nil, noop, fmt.Errorf("unknown backend %q", cfg.Backend)
	}
}

// buildClient picks the execution backend. A configured Anthropic key
// selects the cloud client; otherwise jobs run against the local server.
func buildClient(cfg gate.Config) provider.Client {
	if os.Getenv("ANTHROPIC_API_KEY") != "" {
		opts := []provider.AnthropicOption{
			provider.WithAnthropicProviderName(cfg.CloudProvider),
		}
		if cfg.Providers.Anthropic.Model != "" {
			opts = append(opts, provider.WithAnthropicModel(cfg.Providers.Anthropic.Model))
		}
		if cfg.Providers.Anthropic.BaseURL != "" {
			opts = append(opts, provider.WithAnthropicBaseURL(cfg.Providers.Anthropic.BaseURL))
		}
		return provider.NewAnthropicClient(opts...)
	}

	opts := []provider.OllamaOption{}
	if cfg.Providers.Ollama.Model != "" {
		opts = append(opts, provider.WithOllamaModel(cfg.Providers.Ollama.Model))
	}
	if cfg.Providers.Ollama.BaseURL != "" {
		opts = append(opts, provider.WithOllamaBaseURL(cfg.Providers.Ollama.BaseURL))
	}
	return provider.NewOllamaClient(opts...)
}

func policiesCmd(args []string) {
	fs := flag.NewFlagSet("policies", flag.ExitOnError)
	fs.Parse(args)

	providers := gate.DefaultProviderSet()
	names := []string{gate.PolicyDefault, gate.PolicyEnterprise, gate.PolicyCompliance}
	tiers := []gate.Sensitivity{
		gate.SensitivityPublic,
		gate.SensitivityInternal,
		gate.SensitivitySensitive,
		gate.SensitivityCritical,
	}

	for _, name := range names {
		policy, err := gate.ResolvePolicy(name, providers)
		if err != nil {
			continue
		}
		fmt.Printf("%s:\n", policy.Name())
		for _, tier := range tiers {
			fmt.Printf("  %-10s %v\n", tier.String(), policy.AllowedProviders(tier))
		}
		fmt.Println()
	}
}
