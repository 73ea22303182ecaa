package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/ironsheep/spot-engine/internal/server"
	"github.com/sirupsen/logrus"
)

// Version information - set by ldflags during build
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func main() {
	// Handle version and help before flag parsing, as MCP clients may pass them bare
	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "--version", "-v", "version":
			fmt.Printf("spot-mcp %s\n", Version)
			fmt.Printf("  Build time: %s\n", BuildTime)
			fmt.Printf("  Git commit: %s\n", GitCommit)
			return
		case "--help", "-h", "help":
			printHelp()
			return
		}
	}

	debugMode := flag.Bool("debug", false, "Enable debug logging")
	configPath := flag.String("config", "", "Path to a TOML configuration file")
	flag.Parse()

	logger := initLogger(*debugMode, os.Getenv("SPOT_MCP_LOG_LEVEL"))
	logger.WithFields(logrus.Fields{
		"version":    Version,
		"build_time": BuildTime,
		"commit":     GitCommit,
	}).Info("Starting spot-mcp")

	cfg, err := server.LoadConfig(*configPath)
	if err != nil {
		logger.WithError(err).Fatal("Invalid configuration")
	}
	logger.WithFields(logrus.Fields{
		"pixel_size_um":  cfg.PixelSizeUM,
		"max_components": cfg.MaxComponents,
	}).Debug("Configuration loaded")

	srv := server.New(cfg, logger)
	if err := srv.Run(); err != nil {
		logger.WithError(err).Fatal("Server error")
	}
	logger.Info("Input closed, shutting down")
}

// initLogger configures logrus on stderr; stdout carries the MCP protocol.
// An explicit level from the environment wins over the debug flag.
func initLogger(debugMode bool, envLevel string) *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(os.Stderr)

	if debugMode || envLevel == "debug" {
		logger.SetLevel(logrus.DebugLevel)
		logger.SetFormatter(&logrus.TextFormatter{
			FullTimestamp: true,
		})
	} else {
		logger.SetLevel(logrus.InfoLevel)
		logger.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: "2006-01-02 15:04:05",
		})
	}
	if envLevel != "" {
		if level, err := logrus.ParseLevel(envLevel); err == nil {
			logger.SetLevel(level)
		} else {
			logger.WithField("level", envLevel).Warn("Ignoring unknown SPOT_MCP_LOG_LEVEL")
		}
	}
	return logger
}

func printHelp() {
	fmt.Println("spot-mcp - MCP server for spot and shadow detection in grey images")
	fmt.Println()
	fmt.Println("Usage: spot-mcp [options]")
	fmt.Println()
	fmt.Println("Options:")
	fmt.Println("  --version, -v    Print version information")
	fmt.Println("  --help, -h       Print this help message")
	fmt.Println("  --debug          Enable debug logging")
	fmt.Println("  --config FILE    Read defaults from a TOML file")
	fmt.Println()
	fmt.Println("Environment variables:")
	fmt.Println("  SPOT_MCP_LOG_LEVEL=debug       Log level (trace, debug, info, warn, error)")
	fmt.Println("  SPOT_MCP_PIXEL_SIZE_UM=10      Default pixel size in microns")
	fmt.Println("  SPOT_MCP_MAX_COMPONENTS=N      Cap on spots per extraction")
	fmt.Println()
	fmt.Println("This server communicates via MCP protocol over stdin/stdout.")
	fmt.Println("Configure it in your MCP client.")
}
