// orchestratorctl is a thin operational CLI over the worker-facing API
// (spec.md §6.2): enqueue, cancel, status, and list, for ad hoc use
// against a running orchestrator's metadata store, generalized from the
// teacher's cmd/seed one-shot database tooling.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/etlcore/orchestrator/config"
	"github.com/etlcore/orchestrator/internal/domain"
	"github.com/etlcore/orchestrator/internal/executor"
	"github.com/etlcore/orchestrator/internal/metadata/postgres"
	"github.com/etlcore/orchestrator/internal/obslog"
	"github.com/etlcore/orchestrator/internal/orchestrator"
	"github.com/etlcore/orchestrator/internal/queue"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	cmd := os.Args[1]
	args := os.Args[2:]

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	ctx := context.Background()
	pool, err := postgres.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("metadata db: %v", err)
	}
	defer pool.Close()

	gw := postgres.New(pool, cfg.SchemaPrefix)
	logger := obslog.New(cfg.Env, cfg.SlogLevel())
	q := queue.New(gw.Requests, logger)
	ex := executor.New(executor.DefaultConfig(), gw, q, nil, nil, logger)
	core := orchestrator.New(q, ex, gw.RunLogs)

	switch cmd {
	case "enqueue":
		fs := flag.NewFlagSet("enqueue", flag.ExitOnError)
		mappingRef := fs.String("mapping-ref", "", "mapping reference to run")
		loadMode := fs.String("load-mode", "", "INSERT, TRUNCATE_LOAD, or UPSERT (defaults to the mapping's configured mode)")
		_ = fs.Parse(args)
		if *mappingRef == "" {
			log.Fatal("enqueue: -mapping-ref is required")
		}
		id, err := core.Enqueue(ctx, *mappingRef, domain.RequestParameters{
			LoadMode: domain.LoadMode(*loadMode),
			Source:   "CLI",
		})
		if err != nil {
			log.Fatalf("enqueue: %v", err)
		}
		fmt.Println(id)

	case "cancel":
		fs := flag.NewFlagSet("cancel", flag.ExitOnError)
		requestID := fs.String("request-id", "", "request id to cancel")
		_ = fs.Parse(args)
		if *requestID == "" {
			log.Fatal("cancel: -request-id is required")
		}
		if err := core.Cancel(ctx, *requestID); err != nil {
			log.Fatalf("cancel: %v", err)
		}

	case "status":
		fs := flag.NewFlagSet("status", flag.ExitOnError)
		requestID := fs.String("request-id", "", "request id to inspect")
		_ = fs.Parse(args)
		if *requestID == "" {
			log.Fatal("status: -request-id is required")
		}
		st, err := core.Status(ctx, *requestID)
		if err != nil {
			log.Fatalf("status: %v", err)
		}
		printJSON(st)

	case "list":
		fs := flag.NewFlagSet("list", flag.ExitOnError)
		status := fs.String("status", "", "filter by request status")
		cursor := fs.String("cursor", "", "pagination cursor")
		limit := fs.Int("limit", 50, "page size")
		_ = fs.Parse(args)
		items, nextCursor, err := core.List(ctx, domain.RequestStatus(*status), *cursor, *limit)
		if err != nil {
			log.Fatalf("list: %v", err)
		}
		printJSON(map[string]any{"requests": items, "next_cursor": nextCursor})

	default:
		usage()
		os.Exit(2)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: orchestratorctl <enqueue|cancel|status|list> [flags]")
}

func printJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		log.Fatalf("encode output: %v", err)
	}
}
