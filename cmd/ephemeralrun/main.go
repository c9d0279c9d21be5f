// Command ephemeralrun loads a workflow definition from a JSON file and
// runs it once, in-process, through the runtime core with the ephemeral
// seam — no database, no queue, no durability. Useful for local
// development.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/fluxwell/runtime/internal/config"
	"github.com/fluxwell/runtime/internal/domain"
	"github.com/fluxwell/runtime/internal/logging"
	"github.com/fluxwell/runtime/internal/node"
	"github.com/fluxwell/runtime/internal/node/builtin"
	"github.com/fluxwell/runtime/internal/runtime/core"
	"github.com/fluxwell/runtime/internal/runtime/mapper"
	"github.com/fluxwell/runtime/internal/runtime/nodeexec"
	"github.com/fluxwell/runtime/internal/runtime/step"
	"github.com/fluxwell/runtime/internal/services/credential"
	"github.com/fluxwell/runtime/internal/services/credit"
	"github.com/fluxwell/runtime/internal/services/execstore"
	"github.com/fluxwell/runtime/internal/services/monitoring"
	"github.com/fluxwell/runtime/internal/services/objectstore"
)

func main() {
	workflowPath := flag.String("workflow", "", "path to a JSON-encoded workflow definition")
	orgID := flag.String("org", "local", "organization id to run as")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}
	logger := logging.New(cfg.LogLevel, cfg.LogPretty)

	if *workflowPath == "" {
		logger.Fatal().Msg("-workflow is required")
	}
	data, err := os.ReadFile(*workflowPath)
	if err != nil {
		logger.Fatal().Err(err).Str("path", *workflowPath).Msg("failed to read workflow file")
	}
	var wf domain.Workflow
	if err := json.Unmarshal(data, &wf); err != nil {
		logger.Fatal().Err(err).Msg("failed to parse workflow file")
	}

	store := objectstore.NewMemory()
	registry := node.NewRegistry()
	builtin.Register(registry)

	executor := &nodeexec.Executor{
		Mapper:      mapper.New(store),
		Registry:    registry,
		Credentials: credential.NewVault(),
		Queues:      nil,
		Databases:   nil,
		Datasets:    nil,
		Logger:      logger,
	}

	c := &core.Core{
		Executor:       executor,
		Credits:        credit.NewLedger(),
		Executions:     execstore.NewMemory(),
		Monitoring:     nil,
		Metrics:        monitoring.NewMetrics(prometheus.NewRegistry()),
		Logger:         logger,
		MaxParallelism: cfg.MaxParallelism,
	}

	if err := executor.Credentials.Initialize(context.Background(), *orgID); err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize credential vault")
	}

	exec, err := c.Run(context.Background(), core.RunParams{
		Workflow:       wf,
		OrganizationID: *orgID,
		Seam:           step.NewEphemeral(),
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("run failed")
	}

	out, _ := json.MarshalIndent(exec, "", "  ")
	fmt.Println(string(out))
}
