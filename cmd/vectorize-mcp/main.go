package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/ironsheep/vectorize-mcp/internal/config"
	"github.com/ironsheep/vectorize-mcp/internal/convert"
	"github.com/ironsheep/vectorize-mcp/internal/server"
	"github.com/ironsheep/vectorize-mcp/internal/trace"
	"github.com/ironsheep/vectorize-mcp/internal/transport"
)

// Version information - set by ldflags during build
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func main() {
	mode := "mcp"

	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "--version", "-v", "version":
			fmt.Printf("vectorize-mcp %s\n", Version)
			fmt.Printf("  Build time: %s\n", BuildTime)
			fmt.Printf("  Git commit: %s\n", GitCommit)
			return
		case "--help", "-h", "help":
			printHelp()
			return
		case "http":
			mode = "http"
		default:
			fmt.Fprintf(os.Stderr, "unknown argument %q (see --help)\n", os.Args[1])
			os.Exit(2)
		}
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		os.Exit(1)
	}

	log := newLogger(cfg.Log, mode)
	if log.IsLevelEnabled(logrus.DebugLevel) {
		log.Debugf("Vectorize MCP Server v%s (built %s, commit %s)", Version, BuildTime, GitCommit)
	}

	potrace := trace.NewPotrace(cfg.Trace.PotracePath, log)
	if !potrace.Available() {
		log.WithField("path", cfg.Trace.PotracePath).Warn("potrace binary not found; conversions will fail until it is installed")
	}
	svc := convert.NewService(cfg.Service(), potrace, log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if mode == "http" {
		err = runHTTP(ctx, cfg, svc, potrace, log)
	} else {
		srv := server.New(svc,
			server.WithLogger(log),
			server.WithTracer(potrace),
			server.WithVersion(Version),
		)
		err = srv.Run(ctx)
	}
	if err != nil && ctx.Err() == nil {
		log.WithError(err).Fatal("Server error")
	}
}

func runHTTP(ctx context.Context, cfg *config.Config, svc *convert.Service, tracer transport.TracerStatus, log *logrus.Logger) error {
	if cfg.Server.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	h := transport.NewConvertHandler(svc, tracer, Version, log)
	srv := transport.NewServer(cfg.Server, transport.InitRoutes(h, cfg.Server.Timeout, log), log)
	return srv.Serve(ctx, log)
}

// newLogger logs to stderr since stdout carries the MCP protocol.
func newLogger(cfg config.LogConfig, mode string) *logrus.Logger {
	log := logrus.New()
	log.SetOutput(os.Stderr)

	if mode == "http" {
		log.SetFormatter(&logrus.JSONFormatter{})
	} else {
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}

	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		log.WithField("level", cfg.Level).Warn("unknown log level, using info")
		level = logrus.InfoLevel
	}
	log.SetLevel(level)
	return log
}

func printHelp() {
	fmt.Println("vectorize-mcp - raster to SVG conversion over MCP or HTTP")
	fmt.Println()
	fmt.Println("Usage: vectorize-mcp [http] [options]")
	fmt.Println()
	fmt.Println("Modes:")
	fmt.Println("  (none)           MCP server over stdin/stdout")
	fmt.Println("  http             HTTP API: POST /api/convert, GET /health")
	fmt.Println()
	fmt.Println("Options:")
	fmt.Println("  --version, -v    Print version information")
	fmt.Println("  --help, -h       Print this help message")
	fmt.Println()
	fmt.Println("Configuration is read from config/config.yaml when present.")
	fmt.Println("Environment variables override it:")
	fmt.Println("  VECTORIZE_LOG_LEVEL=debug            Enable debug logging")
	fmt.Println("  VECTORIZE_TRACE_POTRACE_PATH=...     Path to the potrace binary")
	fmt.Println("  VECTORIZE_SERVER_PORT=8080           HTTP listen port")
	fmt.Println("  VECTORIZE_LIMITS_MAX_UPLOAD_BYTES=N  Upload size limit")
	fmt.Println()
	fmt.Println("The potrace binary must be installed and on PATH.")
}
