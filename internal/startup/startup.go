package startup

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"time"

	"fileindex/internal/database"
	"fileindex/internal/indexer"
	"fileindex/internal/logging"
	"fileindex/internal/mediatypes"
	"fileindex/internal/memory"

	"github.com/gorilla/mux"
	"github.com/spf13/viper"
)

// Build-time variables (injected via -ldflags)
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
	GoVersion = runtime.Version()
)

// BuildInfo contains version and build information
type BuildInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildTime string `json:"buildTime"`
	GoVersion string `json:"goVersion"`
	OS        string `json:"os"`
	Arch      string `json:"arch"`
}

// GetBuildInfo returns the current build information
func GetBuildInfo() BuildInfo {
	return BuildInfo{
		Version:   Version,
		Commit:    Commit,
		BuildTime: BuildTime,
		GoVersion: GoVersion,
		OS:        runtime.GOOS,
		Arch:      runtime.GOARCH,
	}
}

// RouteInfo contains information about a registered route
type RouteInfo struct {
	Method string
	Path   string
	Name   string
}

// ConfigFileEnv names the environment variable holding an optional config
// file. Values from the file are overridden by environment variables.
const ConfigFileEnv = "INDEX_CONFIG"

// settings mirrors the configuration keys. Keys are matched against
// upper-cased environment variables, so media_dir reads MEDIA_DIR.
type settings struct {
	MediaDir        string        `mapstructure:"media_dir"`
	DatabaseDir     string        `mapstructure:"database_dir"`
	Port            string        `mapstructure:"port"`
	MetricsPort     string        `mapstructure:"metrics_port"`
	MetricsEnabled  bool          `mapstructure:"metrics_enabled"`
	LogHealthChecks bool          `mapstructure:"log_health_checks"`
	IndexOnStart    bool          `mapstructure:"index_on_start"`
	IndexInterval   time.Duration `mapstructure:"index_interval"`
	IndexMode       string        `mapstructure:"index_mode"`
	IndexStorage    string        `mapstructure:"index_storage"`
	IndexWorkers    int           `mapstructure:"index_workers"`
	IndexBatchSize  int           `mapstructure:"index_batch_size"`
	IndexChunkSize  int           `mapstructure:"index_chunk_size"`
	IndexConcurrent int           `mapstructure:"index_concurrency"`
	IndexSkipHidden bool          `mapstructure:"index_skip_hidden"`
	MimeCacheSize   int           `mapstructure:"mime_cache_size"`
	DBMaxOpenConns  int           `mapstructure:"db_max_open_conns"`
	DBBusyTimeout   time.Duration `mapstructure:"db_busy_timeout"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("media_dir", "/media")
	v.SetDefault("database_dir", "/database")
	v.SetDefault("port", "8080")
	v.SetDefault("metrics_port", "9090")
	v.SetDefault("metrics_enabled", true)
	v.SetDefault("log_health_checks", true)
	v.SetDefault("index_on_start", true)
	v.SetDefault("index_interval", "0s")
	v.SetDefault("index_mode", string(indexer.ModeBFS))
	v.SetDefault("index_storage", string(indexer.StorageImmediate))
	v.SetDefault("index_workers", 0)
	v.SetDefault("index_batch_size", indexer.DefaultBatchSize)
	v.SetDefault("index_chunk_size", indexer.DefaultChunkSize)
	v.SetDefault("index_concurrency", 0)
	v.SetDefault("index_skip_hidden", true)
	v.SetDefault("mime_cache_size", mediatypes.DefaultCacheSize)
	v.SetDefault("db_max_open_conns", 25)
	v.SetDefault("db_busy_timeout", "5s")
}

// Config holds all application configuration
type Config struct {
	MediaDir        string
	DatabaseDir     string
	Port            string
	MetricsPort     string
	MetricsEnabled  bool
	LogHealthChecks bool

	// IndexOnStart runs a build at startup when the index is not built
	// for MediaDir.
	IndexOnStart bool
	// IndexInterval schedules periodic rebuilds. Zero disables them.
	IndexInterval time.Duration

	Build         indexer.BuildOptions
	MimeCacheSize int
	Database      database.Options

	// ConfigFile is the file the values were read from, if any.
	ConfigFile string
}

// Engine returns the indexer configuration for this Config.
func (c *Config) Engine(monitor *memory.Monitor) indexer.Config {
	dbOpts := c.Database
	return indexer.Config{
		Root:          c.MediaDir,
		DataDir:       c.DatabaseDir,
		Build:         c.Build,
		MimeCacheSize: c.MimeCacheSize,
		Database:      &dbOpts,
		Monitor:       monitor,
	}
}

// Load reads configuration from an optional config file and the environment
// without touching the filesystem otherwise. configFile may be empty.
func Load(configFile string) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.AutomaticEnv()

	var used string
	if configFile != "" {
		v.SetConfigFile(configFile)
		err := v.ReadInConfig()
		var notFound viper.ConfigFileNotFoundError
		switch {
		case err == nil:
			used = v.ConfigFileUsed()
		case errors.As(err, &notFound) || errors.Is(err, os.ErrNotExist):
			logging.Warn("  Config file %s not found, using environment and defaults", configFile)
		default:
			return nil, fmt.Errorf("read config file %s: %w", configFile, err)
		}
	}

	var s settings
	if err := v.Unmarshal(&s); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	mode, err := indexer.ParseTraversalMode(s.IndexMode)
	if err != nil {
		return nil, fmt.Errorf("INDEX_MODE: %w", err)
	}
	storage, err := indexer.ParseStorageMode(s.IndexStorage)
	if err != nil {
		return nil, fmt.Errorf("INDEX_STORAGE: %w", err)
	}
	if s.IndexWorkers < 0 {
		return nil, fmt.Errorf("INDEX_WORKERS must not be negative, got %d", s.IndexWorkers)
	}
	if s.IndexInterval < 0 {
		return nil, fmt.Errorf("INDEX_INTERVAL must not be negative, got %v", s.IndexInterval)
	}

	return &Config{
		MediaDir:        s.MediaDir,
		DatabaseDir:     s.DatabaseDir,
		Port:            s.Port,
		MetricsPort:     s.MetricsPort,
		MetricsEnabled:  s.MetricsEnabled,
		LogHealthChecks: s.LogHealthChecks,
		IndexOnStart:    s.IndexOnStart,
		IndexInterval:   s.IndexInterval,
		Build: indexer.BuildOptions{
			Mode:        mode,
			Storage:     storage,
			Workers:     s.IndexWorkers,
			BatchSize:   s.IndexBatchSize,
			ChunkSize:   s.IndexChunkSize,
			Concurrency: s.IndexConcurrent,
			SkipHidden:  s.IndexSkipHidden,
		},
		MimeCacheSize: s.MimeCacheSize,
		Database: database.Options{
			MaxOpenConns: s.DBMaxOpenConns,
			BusyTimeout:  s.DBBusyTimeout,
		},
		ConfigFile: used,
	}, nil
}

// LoadConfig loads and validates configuration, logs it, and prepares the
// media and database directories.
func LoadConfig() (*Config, error) {
	printBanner()
	logSystemInfo()

	logging.Info("------------------------------------------------------------")
	logging.Info("CONFIGURATION")
	logging.Info("------------------------------------------------------------")

	config, err := Load(os.Getenv(ConfigFileEnv))
	if err != nil {
		return nil, err
	}

	if config.ConfigFile != "" {
		logging.Info("  Config file:         %s", config.ConfigFile)
	}
	logging.Info("  MEDIA_DIR:           %s", config.MediaDir)
	logging.Info("  DATABASE_DIR:        %s", config.DatabaseDir)
	logging.Info("  PORT:                %s", config.Port)
	logging.Info("  METRICS_PORT:        %s", config.MetricsPort)
	logging.Info("  METRICS_ENABLED:     %v", config.MetricsEnabled)
	logging.Info("  INDEX_ON_START:      %v", config.IndexOnStart)
	logging.Info("  INDEX_INTERVAL:      %s", intervalString(config.IndexInterval))
	logging.Info("  INDEX_MODE:          %s", config.Build.Mode)
	logging.Info("  INDEX_STORAGE:       %s", config.Build.Storage)
	logging.Info("  INDEX_WORKERS:       %s", workersString(config.Build.Workers))
	logging.Info("  INDEX_SKIP_HIDDEN:   %v", config.Build.SkipHidden)
	logging.Info("  MIME_CACHE_SIZE:     %d", config.MimeCacheSize)
	logging.Info("  LOG_HEALTH_CHECKS:   %v", config.LogHealthChecks)
	logging.Info("  LOG_LEVEL:           %s", logging.GetLevel())

	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("DIRECTORY SETUP")
	logging.Info("------------------------------------------------------------")

	config.MediaDir, err = filepath.Abs(config.MediaDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve media directory path: %w", err)
	}
	logging.Info("  Media directory (absolute): %s", config.MediaDir)

	config.DatabaseDir, err = filepath.Abs(config.DatabaseDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve database directory path: %w", err)
	}
	logging.Info("  Database directory (absolute): %s", config.DatabaseDir)

	// The index root is not created: builds report a missing root instead.
	if err := checkDirectory(config.MediaDir, "media"); err != nil {
		logging.Warn("  Media directory issue: %v", err)
	}

	if err := ensureDirectory(config.DatabaseDir, "database"); err != nil {
		return nil, fmt.Errorf("database directory error: %w", err)
	}

	logging.Debug("  Testing database directory write access...")
	if err := testWriteAccess(config.DatabaseDir); err != nil {
		return nil, fmt.Errorf("database directory is not writable (required for database): %w", err)
	}
	logging.Info("  [OK] Database directory is writable")

	logging.Info("")
	logging.Info("  Feature availability:")
	logging.Info("    Database:         ENABLED (required)")
	logging.Info("    Periodic rebuild: %s", enabledString(config.IndexInterval > 0))
	logging.Info("    Metrics:          %s", enabledString(config.MetricsEnabled))

	return config, nil
}

func enabledString(enabled bool) string {
	if enabled {
		return "ENABLED"
	}
	return "DISABLED"
}

func intervalString(d time.Duration) string {
	if d <= 0 {
		return "disabled"
	}
	return d.String()
}

func workersString(n int) string {
	if n <= 0 {
		return "auto"
	}
	return fmt.Sprintf("%d", n)
}

// LogMemoryConfig logs how the Go memory limit was configured
func LogMemoryConfig(mc memory.ConfigResult) {
	logging.Info("------------------------------------------------------------")
	logging.Info("MEMORY CONFIGURATION")
	logging.Info("------------------------------------------------------------")

	if !mc.Configured {
		logging.Info("  Memory limit:    not configured")
		logging.Info("  (set MEMORY_LIMIT or GOMEMLIMIT to enable build backpressure)")
		logging.Info("")
		return
	}

	logging.Info("  Source:          %s", mc.Source)
	if mc.ContainerLimit > 0 {
		logging.Info("  Container limit: %s", memory.FormatBytes(mc.ContainerLimit))
		logging.Info("  Ratio:           %.0f%%", mc.Ratio*100)
	}
	logging.Info("  GOMEMLIMIT:      %s", memory.FormatBytes(mc.GoMemLimit))
	logging.Info("")
}

// LogDatabaseInit logs database initialization
func LogDatabaseInit(path string, duration time.Duration) {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("DATABASE INITIALIZATION")
	logging.Info("------------------------------------------------------------")
	logging.Info("  Database file: %s", path)
	logging.Info("  [OK] Database initialized in %v", duration)
}

// LogIndexerInit logs indexer initialization
func LogIndexerInit(built bool, lastBuilt *time.Time, interval time.Duration) {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("INDEXER INITIALIZATION")
	logging.Info("------------------------------------------------------------")
	if built && lastBuilt != nil {
		logging.Info("  Index is built (last build %s)", lastBuilt.Format(time.RFC1123))
	} else {
		logging.Info("  Index is not built for this root")
	}
	logging.Info("  Rebuild interval: %s", intervalString(interval))
}

// LogIndexerStarted logs that a background build was started
func LogIndexerStarted() {
	logging.Info("  [OK] Background index build started")
}

// GetRoutes extracts all registered routes from a mux.Router
func GetRoutes(router *mux.Router) ([]RouteInfo, error) {
	var routes []RouteInfo

	err := router.Walk(func(route *mux.Route, _ *mux.Router, _ []*mux.Route) error {
		pathTemplate, err := route.GetPathTemplate()
		if err != nil {
			return err
		}

		methods, err := route.GetMethods()
		if err != nil {
			methods = []string{"*"}
		}

		for _, method := range methods {
			routes = append(routes, RouteInfo{
				Method: method,
				Path:   pathTemplate,
				Name:   route.GetName(),
			})
		}

		return nil
	})

	return routes, err
}

// LogHTTPRoutes logs all registered HTTP routes at debug level
func LogHTTPRoutes(router *mux.Router, logHealthChecks bool) {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("HTTP SERVER SETUP")
	logging.Info("------------------------------------------------------------")

	if logging.IsDebugEnabled() {
		routes, err := GetRoutes(router)
		if err != nil {
			logging.Warn("error walking routes: %v", err)
		}

		logging.Debug("  Registered routes (%d total):", len(routes))
		logging.Debug("")

		groups := make(map[string][]RouteInfo)
		for _, route := range routes {
			prefix := getRouteGroup(route.Path)
			groups[prefix] = append(groups[prefix], route)
		}

		groupKeys := make([]string, 0, len(groups))
		for k := range groups {
			groupKeys = append(groupKeys, k)
		}
		sort.Strings(groupKeys)

		for _, group := range groupKeys {
			if group != "" {
				logging.Debug("  [%s]", group)
			} else {
				logging.Debug("  [root]")
			}
			for _, route := range groups[group] {
				logging.Debug("    %-6s %s", route.Method, route.Path)
			}
			logging.Debug("")
		}
	}

	logging.Info("  HTTP logging enabled")
	if logHealthChecks {
		logging.Info("    Health check logging: ON")
	} else {
		logging.Info("    Health check logging: OFF (set LOG_HEALTH_CHECKS=true to enable)")
	}
}

// getRouteGroup extracts a group name from a route path
func getRouteGroup(path string) string {
	path = strings.TrimPrefix(path, "/")

	parts := strings.SplitN(path, "/", 2)
	first := parts[0]

	if first == "api" && len(parts) > 1 {
		subParts := strings.SplitN(parts[1], "/", 2)
		return "api/" + subParts[0]
	}

	return first
}

// ServerConfig holds configuration for the server startup log
type ServerConfig struct {
	Port            string
	MetricsPort     string
	MetricsEnabled  bool
	StartupDuration time.Duration
}

// LogServerStarted logs successful server start with all endpoint information
func LogServerStarted(config ServerConfig) {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("SERVER STARTED")
	logging.Info("------------------------------------------------------------")
	logging.Info("  Startup time:    %v", config.StartupDuration)
	logging.Info("")
	logging.Info("  Endpoints:")
	logging.Info("    Index API:     http://0.0.0.0:%s/api/index", config.Port)
	if config.MetricsEnabled {
		logging.Info("    Metrics:       http://0.0.0.0:%s/metrics", config.MetricsPort)
	} else {
		logging.Info("    Metrics:       DISABLED")
	}
	logging.Info("")
	logging.Info("  Press Ctrl+C to stop the server")
	logging.Info("------------------------------------------------------------")
	logging.Info("")
}

// LogShutdownInitiated logs shutdown start
func LogShutdownInitiated(signal string) {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("SHUTDOWN INITIATED (received %s)", signal)
	logging.Info("------------------------------------------------------------")
}

// LogShutdownStep logs a shutdown step
func LogShutdownStep(step string) {
	logging.Debug("  %s...", step)
}

// LogShutdownStepComplete logs a completed shutdown step
func LogShutdownStepComplete(step string) {
	logging.Info("  [OK] %s", step)
}

// LogShutdownComplete logs shutdown completion
func LogShutdownComplete() {
	logging.Info("  [OK] Shutdown complete")
}

// LogFatal logs a fatal error and exits
func LogFatal(format string, args ...interface{}) {
	logging.Fatal(format, args...)
}

func printBanner() {
	banner := `
------------------------------------------------------------
    _______ __        ____          __
   / ____(_) /__     /  _/___  ____/ /__  _  __
  / /_  / / / _ \    / // __ \/ __  / _ \| |/_/
 / __/ / / /  __/  _/ // / / / /_/ /  __/>  <
/_/   /_/_/\___/  /___/_/ /_/\__,_/\___/_/|_|

------------------------------------------------------------`
	fmt.Println(banner)
	logging.Info("  Version:    %s", Version)
	logging.Info("  Commit:     %s", Commit)
	logging.Info("  Build Time: %s", BuildTime)
	logging.Info("  Started:    %s", time.Now().Format(time.RFC1123))
	logging.Info("")
}

func logSystemInfo() {
	logging.Info("------------------------------------------------------------")
	logging.Info("SYSTEM INFORMATION")
	logging.Info("------------------------------------------------------------")
	logging.Info("  Go version:      %s", runtime.Version())
	logging.Info("  OS/Arch:         %s/%s", runtime.GOOS, runtime.GOARCH)
	logging.Info("  CPUs available:  %d", runtime.NumCPU())
	logging.Info("  GOMAXPROCS:      %d", runtime.GOMAXPROCS(0))
	if avail := memory.Available(); avail > 0 {
		logging.Info("  Memory:          %s", memory.FormatBytes(int64(avail)))
	}

	if runtime.GOMAXPROCS(0) < runtime.NumCPU() {
		logging.Info("  (Container CPU limit detected)")
	}

	if logging.IsDebugEnabled() {
		logging.Debug("  Goroutines:      %d", runtime.NumGoroutine())

		if wd, err := os.Getwd(); err == nil {
			logging.Debug("  Working dir:     %s", wd)
		}
		if hostname, err := os.Hostname(); err == nil {
			logging.Debug("  Hostname:        %s", hostname)
		}
	}

	logging.Info("")
}

// checkDirectory verifies path is an existing directory and logs its top
// level contents at debug level.
func checkDirectory(path, name string) error {
	logging.Debug("  Checking %s directory: %s", name, path)

	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("failed to stat directory: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("path exists but is not a directory")
	}

	if logging.IsDebugEnabled() {
		entries, err := os.ReadDir(path)
		if err == nil {
			fileCount, dirCount := 0, 0
			for _, e := range entries {
				if e.IsDir() {
					dirCount++
				} else {
					fileCount++
				}
			}
			logging.Debug("    Contents: %d files, %d directories (top level)", fileCount, dirCount)
		}
	}
	return nil
}

func ensureDirectory(path, name string) error {
	logging.Debug("  Checking %s directory: %s", name, path)

	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		logging.Debug("    Directory does not exist, creating...")
		if err := os.MkdirAll(path, 0o755); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
		logging.Debug("    [OK] Created directory: %s", path)
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to stat directory: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("path exists but is not a directory")
	}

	logging.Debug("    [OK] Directory exists")
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
