// Package startup loads configuration from the environment and
// performs the fail-fast checks that must pass before the server
// accepts work.
package startup

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"

	"github.com/joho/godotenv"

	"photo-catalog/internal/logging"
)

// Build information, set via ldflags at build time.
var (
	Version   = "dev"
	BuildTime = "unknown"
	GoVersion = runtime.Version()
)

// Config holds all application configuration.
type Config struct {
	DataDir          string
	Port             string
	ExiftoolBin      string
	RequireVips      bool
	AccelerateVision bool

	// Derived paths
	DatabasePath  string
	DerivativeDir string
}

// LoadConfig reads configuration from the environment (and a .env
// file when present) and validates the data directory.
func LoadConfig() (*Config, error) {
	// .env is a development convenience; absence is normal.
	if err := godotenv.Load(); err == nil {
		logging.Debug("Loaded environment from .env")
	}

	printBanner()

	dataDir := getEnv("DATA_DIR", "./data")
	port := getEnv("PORT", "8080")
	exiftoolBin := getEnv("EXIFTOOL_PATH", "")
	requireVips := getEnvBool("REQUIRE_ACCELERATION", false)
	accelerateVision := getEnvBool("VISION_ACCELERATION", false)

	logging.Info("------------------------------------------------------------")
	logging.Info("CONFIGURATION")
	logging.Info("------------------------------------------------------------")
	logging.Info("  DATA_DIR:             %s", dataDir)
	logging.Info("  PORT:                 %s", port)
	logging.Info("  EXIFTOOL_PATH:        %s", orDefault(exiftoolBin, "(from PATH)"))
	logging.Info("  REQUIRE_ACCELERATION: %v", requireVips)
	logging.Info("  VISION_ACCELERATION:  %v", accelerateVision)
	logging.Info("  LOG_LEVEL:            %s", logging.GetLevel())

	dataDir, err := filepath.Abs(dataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve data directory: %w", err)
	}

	if err := ensureDirectory(dataDir, "data"); err != nil {
		return nil, fmt.Errorf("data directory unusable: %w", err)
	}
	if err := testWriteAccess(dataDir); err != nil {
		return nil, fmt.Errorf("data directory not writable: %w", err)
	}

	return &Config{
		DataDir:          dataDir,
		Port:             port,
		ExiftoolBin:      exiftoolBin,
		RequireVips:      requireVips,
		AccelerateVision: accelerateVision,
		DatabasePath:     filepath.Join(dataDir, "catalog.db"),
		DerivativeDir:    filepath.Join(dataDir, "derivatives"),
	}, nil
}

func printBanner() {
	logging.Info("============================================================")
	logging.Info("  photo-catalog")
	logging.Info("  Version:    %s", Version)
	logging.Info("  Built:      %s", BuildTime)
	logging.Info("  Go version: %s", GoVersion)
	logging.Info("  CPUs:       %d", runtime.NumCPU())
	logging.Info("============================================================")
}

func ensureDirectory(path, name string) error {
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		logging.Debug("  %s directory does not exist, creating %s", name, path)
		if err := os.MkdirAll(path, 0o755); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to stat directory: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("path exists but is not a directory")
	}
	return nil
}

func testWriteAccess(dir string) error {
	testFile := filepath.Join(dir, ".write-test")
	if err := os.WriteFile(testFile, []byte("test"), 0o644); err != nil {
		return err
	}
	if err := os.Remove(testFile); err != nil {
		logging.Warn("failed to remove write test file %s: %v", testFile, err)
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		logging.Warn("Invalid boolean value for %s: %q, using default: %v", key, value, defaultValue)
		return defaultValue
	}
	return parsed
}

func orDefault(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}
