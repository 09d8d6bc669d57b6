// Command filesetfs is a CLI for operating on fileset virtual paths.
//
// Every subcommand addresses data through logical paths of the form
// [fileset://vfs]/catalog/schema/fileset/sub/path; resolution against
// the metadata service and delegation to physical storage happen
// inside the proxy.
//
// Usage:
//
//	filesetfs [flags] <command> [args]
//
// Commands:
//
//	stat <path>            print file status
//	ls <path>              list directory entries
//	mkdir <path>           create directory with parents
//	rm [-r] <path>         delete file or directory
//	mv <src> <dst>         rename within one fileset
//	cp <src> <dst>         copy a file within one fileset
//	cat <path>             print file contents
//	put <local> <path>     upload a local file
//	exists <path>          report whether the path exists
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/filesetfs/filesetfs/internal/logger"
	"github.com/filesetfs/filesetfs/pkg/catalog"
	"github.com/filesetfs/filesetfs/pkg/config"
	"github.com/filesetfs/filesetfs/pkg/metrics"
	"github.com/filesetfs/filesetfs/pkg/proxy"
)

func main() {
	configPath := flag.String("config", "", "Path to config file (default: "+config.GetDefaultConfigPath()+")")
	logLevel := flag.String("log-level", "", "Override log level (DEBUG, INFO, WARN, ERROR)")
	flag.Parse()

	args := flag.Args()
	if len(args) == 0 {
		flag.Usage()
		os.Exit(2)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "filesetfs: %v\n", err)
		os.Exit(1)
	}
	if *logLevel != "" {
		cfg.Logging.Level = *logLevel
	}

	if err := logger.Configure(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Output); err != nil {
		fmt.Fprintf(os.Stderr, "filesetfs: %v\n", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Cancel outstanding operations on interrupt
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		logger.Warn("Interrupt received, cancelling")
		cancel()
	}()

	var proxyMetrics *metrics.ProxyMetrics
	var metricsServer *metrics.Server
	if cfg.Metrics.Enabled {
		metrics.InitRegistry()
		proxyMetrics = metrics.NewProxyMetrics()

		metricsServer = metrics.NewServer(cfg.Metrics.ListenAddr)
		go func() {
			if err := metricsServer.Start(ctx); err != nil {
				logger.Error("Metrics server error: %v", err)
			}
		}()
	}

	client, err := catalog.Connect(config.ClientConfig(&cfg.Metadata))
	if err != nil {
		fmt.Fprintf(os.Stderr, "filesetfs: %v\n", err)
		os.Exit(1)
	}

	registry, err := config.CreateDriverRegistry(ctx, &cfg.Drivers)
	if err != nil {
		fmt.Fprintf(os.Stderr, "filesetfs: %v\n", err)
		os.Exit(1)
	}

	fs, err := proxy.New(proxy.Options{
		Client:            client,
		Tenant:            cfg.Metadata.Tenant,
		Drivers:           registry,
		CacheCapacity:     cfg.Cache.MaxCapacity,
		ExpireAfterAccess: cfg.Cache.ExpireAfterAccess,
		SweepInterval:     cfg.Cache.SweepInterval,
		Metrics:           proxyMetrics,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "filesetfs: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = fs.Close() }()

	if err := run(ctx, fs, args[0], args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "filesetfs: %s: %v\n", args[0], err)
		os.Exit(1)
	}
}

// run dispatches one subcommand against the proxy.
func run(ctx context.Context, fs *proxy.Proxy, command string, args []string) error {
	switch command {
	case "stat":
		if len(args) != 1 {
			return fmt.Errorf("usage: stat <path>")
		}
		info, err := fs.Stat(ctx, args[0])
		if err != nil {
			return err
		}
		printInfo(info.Path, info.IsDir, info.Size, info.ModTime.String())
		return nil

	case "ls":
		if len(args) != 1 {
			return fmt.Errorf("usage: ls <path>")
		}
		infos, err := fs.List(ctx, args[0])
		if err != nil {
			return err
		}
		for _, info := range infos {
			printInfo(info.Path, info.IsDir, info.Size, info.ModTime.String())
		}
		return nil

	case "mkdir":
		if len(args) != 1 {
			return fmt.Errorf("usage: mkdir <path>")
		}
		return fs.MkdirAll(ctx, args[0])

	case "rm":
		rmFlags := flag.NewFlagSet("rm", flag.ContinueOnError)
		recursive := rmFlags.Bool("r", false, "delete directories recursively")
		if err := rmFlags.Parse(args); err != nil {
			return err
		}
		if rmFlags.NArg() != 1 {
			return fmt.Errorf("usage: rm [-r] <path>")
		}
		return fs.Delete(ctx, rmFlags.Arg(0), *recursive)

	case "mv":
		if len(args) != 2 {
			return fmt.Errorf("usage: mv <src> <dst>")
		}
		return fs.Rename(ctx, args[0], args[1])

	case "cp":
		if len(args) != 2 {
			return fmt.Errorf("usage: cp <src> <dst>")
		}
		return fs.CopyFile(ctx, args[0], args[1])

	case "cat":
		if len(args) != 1 {
			return fmt.Errorf("usage: cat <path>")
		}
		data, err := fs.ReadFile(ctx, args[0])
		if err != nil {
			return err
		}
		_, err = os.Stdout.Write(data)
		return err

	case "put":
		if len(args) != 2 {
			return fmt.Errorf("usage: put <local> <path>")
		}
		src, err := os.Open(args[0])
		if err != nil {
			return err
		}
		defer func() { _ = src.Close() }()

		dst, err := fs.Create(ctx, args[1], true)
		if err != nil {
			return err
		}
		if _, err := io.Copy(dst, src); err != nil {
			_ = dst.Close()
			return err
		}
		return dst.Close()

	case "exists":
		if len(args) != 1 {
			return fmt.Errorf("usage: exists <path>")
		}
		exists, err := fs.Exists(ctx, args[0])
		if err != nil {
			return err
		}
		fmt.Println(exists)
		return nil

	default:
		return fmt.Errorf("unknown command (supported: stat, ls, mkdir, rm, mv, cp, cat, put, exists)")
	}
}

// printInfo writes one ls/stat output line.
func printInfo(path string, isDir bool, size int64, modTime string) {
	kind := "-"
	if isDir {
		kind = "d"
	}
	fmt.Printf("%s %12d %s %s\n", kind, size, modTime, path)
}
