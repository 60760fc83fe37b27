// Command smartindex is the process entry point for the persistent
// workspace symbol index (SPEC_FULL.md §9). Grounded on cmd/uispec/main.go's
// flat os.Args[1] subcommand dispatch: no flag package, no cobra, each
// subcommand parses its own remaining args by hand.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/smartindex/core/pkg/freshness"
	mcpserver "github.com/smartindex/core/pkg/mcp"
	"github.com/smartindex/core/pkg/mcplog"
	"github.com/smartindex/core/pkg/mergedindex"
	"github.com/smartindex/core/pkg/openfileindex"
	"github.com/smartindex/core/pkg/parser"
	"github.com/smartindex/core/pkg/parser/queries"
	"github.com/smartindex/core/pkg/persistentindex"
	"github.com/smartindex/core/pkg/shardstore"
	"github.com/smartindex/core/pkg/smartconfig"
	"github.com/smartindex/core/pkg/util"
	"github.com/smartindex/core/pkg/workerpool"
)

const version = "0.1.0-dev"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	var err error
	switch os.Args[1] {
	case "index":
		err = runIndex(os.Args[2:])
	case "serve":
		err = runServe(os.Args[2:])
	case "watch":
		err = runWatch(os.Args[2:])
	case "status":
		err = runStatus(os.Args[2:])
	case "version":
		fmt.Printf("smartindex %s\n", version)
		return
	case "help":
		printUsage()
		return
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "smartindex %s: %v\n", os.Args[1], err)
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("Usage: smartindex <command> [workspace]")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  index [dir]   One-shot bulk index of a workspace")
	fmt.Println("  serve [dir]   Start the MCP server on stdio, watching dir for changes")
	fmt.Println("  watch [dir]   Run the filesystem/VCS watchers without an MCP server")
	fmt.Println("  status [dir]  Report persisted index stats")
	fmt.Println("  version       Print version")
	fmt.Println("  help          Show this help message")
}

func workspaceArg(args []string) string {
	if len(args) > 0 {
		return args[0]
	}
	wd, err := os.Getwd()
	if err != nil {
		return "."
	}
	return wd
}

// components bundles the full stack every subcommand but "status" needs.
type components struct {
	cfg        smartconfig.Config
	pm         *parser.ParserManager
	qm         *queries.QueryManager
	pool       *workerpool.Pool
	store      *shardstore.Store
	persistent *persistentindex.Index
	openFiles  *openfileindex.Index
	index      *mergedindex.Index
	logger     *mcplog.Logger
}

func buildComponents(workspaceRoot string) (*components, error) {
	cfg, err := smartconfig.Load(workspaceRoot)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	logger, err := mcplog.NewLogger(filepath.Join(cfg.Root, "mcp.log"))
	if err != nil {
		return nil, fmt.Errorf("open mcp log: %w", err)
	}

	pm := parser.NewParserManager(nil)
	qm := queries.NewQueryManager(pm, nil)

	fileCache := util.NewFileCache(util.DefaultFileCacheConfig())

	pool := workerpool.New(workerpool.Config{
		TaskTimeout: cfg.Timeouts.WorkerTask,
		FileCache:   fileCache,
	}, pm, qm, nil)

	store := shardstore.New(shardstore.Config{
		Root:           filepath.Join(cfg.Root, "index"),
		CoalesceWindow: cfg.Timeouts.WriteCoalesceWindow,
	}, nil)

	exclude := smartconfig.ExcludeMatcher(cfg.Exclude)

	persistent := persistentindex.New(persistentindex.Config{
		FinalizeTimeout: cfg.Timeouts.FinalizationWrite,
		Exclude:         exclude,
		ShardCacheSize:  cfg.MaxCachedShards,
	}, store, pool, nil)
	if err := persistent.Load(); err != nil {
		return nil, fmt.Errorf("load persistent index: %w", err)
	}

	openFiles := openfileindex.New(openfileindex.Config{}, pool, persistent, nil)
	index := mergedindex.New(openFiles, persistent)

	return &components{
		cfg:        cfg,
		pm:         pm,
		qm:         qm,
		pool:       pool,
		store:      store,
		persistent: persistent,
		openFiles:  openFiles,
		index:      index,
		logger:     logger,
	}, nil
}

func (c *components) Close() {
	c.pool.Stop()
	_ = c.pm.Close()
	_ = c.qm.Close()
	if c.logger != nil {
		_ = c.logger.Close()
	}
}

func runIndex(args []string) error {
	root := workspaceArg(args)
	c, err := buildComponents(root)
	if err != nil {
		return err
	}
	defer c.Close()

	files, err := discoverSourceFiles(root, smartconfig.ExcludeMatcher(c.cfg.Exclude))
	if err != nil {
		return fmt.Errorf("discover files: %w", err)
	}

	ctx := context.Background()
	err = c.persistent.EnsureUpToDateWithProgress(ctx, files, func(done, total int, currentFile string) {
		fmt.Printf("\r[%d/%d] %s", done, total, currentFile)
	})
	fmt.Println()
	if err != nil {
		return fmt.Errorf("index: %w", err)
	}

	stats := c.persistent.Stats()
	fmt.Printf("indexed %d files, %d symbols\n", stats.IndexedFiles, stats.TotalSymbols)
	return nil
}

func runServe(args []string) error {
	root := workspaceArg(args)
	c, err := buildComponents(root)
	if err != nil {
		return err
	}
	defer c.Close()

	watcher, vcs, err := startWatchers(root, c)
	if err != nil {
		return err
	}
	if watcher != nil {
		defer watcher.Stop()
	}
	if vcs != nil {
		defer vcs.Stop()
	}

	srv := mcpserver.NewServer(c.index, c.persistent, c.logger)
	defer srv.Close()

	return srv.ServeStdio()
}

func runWatch(args []string) error {
	root := workspaceArg(args)
	c, err := buildComponents(root)
	if err != nil {
		return err
	}
	defer c.Close()

	watcher, vcs, err := startWatchers(root, c)
	if err != nil {
		return err
	}
	if watcher != nil {
		defer watcher.Stop()
	}
	if vcs != nil {
		defer vcs.Stop()
	}

	fmt.Println("watching", root, "— press Ctrl-C to stop")
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh
	return nil
}

func startWatchers(root string, c *components) (*freshness.FileWatcher, *freshness.VCSWatcher, error) {
	exclude := smartconfig.ExcludeMatcher(c.cfg.Exclude)

	watcher, err := freshness.NewFileWatcher(c.persistent, freshness.WatcherOptions{
		Debounce: c.cfg.Timeouts.FileSystemDebounce,
		Exclude:  exclude,
	}, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("new file watcher: %w", err)
	}
	if err := watcher.Start(root); err != nil {
		return nil, nil, fmt.Errorf("start file watcher: %w", err)
	}

	var vcs *freshness.VCSWatcher
	if isGitWorkTree(root) {
		vcs, err = freshness.NewVCSWatcher(root, c.persistent, freshness.DefaultVCSPollInterval, nil)
		if err != nil {
			watcher.Stop()
			return nil, nil, fmt.Errorf("new vcs watcher: %w", err)
		}
		vcs.Start()
	}

	return watcher, vcs, nil
}

func isGitWorkTree(root string) bool {
	_, err := os.Stat(filepath.Join(root, ".git"))
	return err == nil
}

func runStatus(args []string) error {
	root := workspaceArg(args)
	cfg, err := smartconfig.Load(root)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	store := shardstore.New(shardstore.Config{Root: filepath.Join(cfg.Root, "index")}, nil)
	persistent := persistentindex.New(persistentindex.Config{}, store, nil, nil)
	if err := persistent.Load(); err != nil {
		return fmt.Errorf("load persistent index: %w", err)
	}

	stats := persistent.Stats()
	fmt.Printf("root:          %s\n", cfg.Root)
	fmt.Printf("indexed files: %d\n", stats.IndexedFiles)
	fmt.Printf("symbols:       %d\n", stats.TotalSymbols)
	fmt.Printf("cached shards: %d\n", stats.CachedShards)
	return nil
}
