package main

import (
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/route-plotter/backend/internal/api"
	"github.com/route-plotter/backend/internal/config"
	"github.com/route-plotter/backend/internal/directions"
	"github.com/route-plotter/backend/internal/geocode"
	"github.com/route-plotter/backend/internal/parser"
	"github.com/route-plotter/backend/internal/session"
	"github.com/route-plotter/backend/internal/storage"
	"github.com/route-plotter/backend/internal/web"
)

// Version info (set during build)
var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	// Get the executable's directory for config resolution
	exePath, err := os.Executable()
	if err != nil {
		fmt.Printf("Failed to get executable path: %v\n", err)
		os.Exit(1)
	}
	exeDir := filepath.Dir(exePath)

	// Load XML configuration
	configPath := filepath.Join(exeDir, "RoutePlotter.exe.config")
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Ensure all data directories exist
	if err := cfg.EnsureDirectories(); err != nil {
		fmt.Printf("Failed to create directories: %v\n", err)
		os.Exit(1)
	}

	// Check if running in embedded mode (frontend built into binary)
	embeddedMode := web.HasEmbeddedFiles()

	// Initialize storage
	fileStore, err := storage.NewLocalStore(cfg.GetUploadDir())
	if err != nil {
		fmt.Printf("Failed to initialize storage: %v\n", err)
		os.Exit(1)
	}

	// Initialize the geocoding client, with a persistent cache when enabled
	geocodeOpts := []geocode.Option{
		geocode.WithHTTPClient(&http.Client{Timeout: time.Duration(cfg.Geocoding.TimeoutSeconds) * time.Second}),
		geocode.WithRateLimit(cfg.Geocoding.RequestsPerSecond),
		geocode.WithNominatimBaseURL(cfg.Geocoding.NominatimBaseURL),
		geocode.WithUserAgent(cfg.Geocoding.UserAgent),
		geocode.WithCountryCodes(cfg.Geocoding.CountryCodes),
	}
	if cfg.Geocoding.GoogleAPIKey != "" {
		geocodeOpts = append(geocodeOpts, geocode.WithGoogleAPIKey(cfg.Geocoding.GoogleAPIKey))
	}

	var geocodeCache *geocode.DuckCache
	if cfg.Geocoding.EnableCache {
		geocodeCache, err = geocode.NewDuckCache(cfg.GetCacheDir(), geocode.CacheOptions{
			MemoryLimit: cfg.Advanced.DuckDBMemoryLimit,
			Threads:     cfg.Advanced.DuckDBThreads,
		})
		if err != nil {
			fmt.Printf("Warning: geocode cache unavailable, continuing without: %v\n", err)
		} else {
			defer geocodeCache.Close()
			geocodeOpts = append(geocodeOpts, geocode.WithCache(geocodeCache))
		}
	}
	geocoder := geocode.NewClient(geocodeOpts...)

	// Initialize the directions client
	router := directions.NewClient(
		directions.WithBaseURL(cfg.Routing.OSRMBaseURL),
		directions.WithProfile(cfg.Routing.Profile),
		directions.WithHTTPClient(&http.Client{Timeout: time.Duration(cfg.Routing.TimeoutSeconds) * time.Second}),
	)

	// Initialize the CSV parser, with custom column aliases when configured
	addrParser := parser.NewAddressParser()
	if cfg.Processing.ColumnMappingFile != "" {
		mapping, err := parser.LoadMappingFile(cfg.Processing.ColumnMappingFile)
		if err != nil {
			fmt.Printf("Warning: failed to load column mapping: %v\n", err)
		} else {
			addrParser = parser.NewAddressParserWithMapping(mapping)
			fmt.Printf("Custom column mapping loaded from %s\n", cfg.Processing.ColumnMappingFile)
		}
	}

	// Initialize session manager
	sessionMgr := session.NewManager(addrParser, geocoder, router)
	defer sessionMgr.Close()

	// Start background session cleanup
	go func() {
		ticker := time.NewTicker(time.Duration(cfg.Processing.CleanupIntervalMinutes) * time.Minute)
		defer ticker.Stop()
		for range ticker.C {
			sessionMgr.CleanupOldSessions(time.Duration(cfg.Processing.SessionTimeoutMinutes) * time.Minute)
		}
	}()

	// Initialize API handlers
	handlers := api.NewHandlers(&api.Dependencies{
		Store:             fileStore,
		SessionMgr:        sessionMgr,
		Suggester:         geocoder,
		Version:           Version,
		AllowedFileTypes:  cfg.Security.AllowedFileTypes,
		AllowFileDeletion: cfg.Security.AllowFileDeletion,
	})

	e := echo.New()
	e.HideBanner = true

	// Configure middleware
	e.Use(middleware.LoggerWithConfig(middleware.LoggerConfig{
		Skipper: func(c echo.Context) bool {
			// Skip logging if disabled in config
			if !cfg.Advanced.EnableRequestLogging {
				return true
			}
			path := c.Request().URL.Path
			return strings.HasSuffix(path, "/status") ||
				strings.HasSuffix(path, "/progress") ||
				path == "/api/health"
		},
	}))

	e.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{
		StackSize:         1024 * 4,
		DisablePrintStack: false,
		LogLevel:          0,
	}))

	e.Use(middleware.TimeoutWithConfig(middleware.TimeoutConfig{
		Timeout: time.Duration(cfg.Server.ReadTimeout) * time.Second,
		Skipper: func(c echo.Context) bool {
			path := c.Request().URL.Path
			return strings.Contains(path, "/upload") ||
				strings.Contains(path, "/ws/") ||
				c.Request().Header.Get("Accept") == "text/event-stream"
		},
		ErrorMessage: "Request timeout - plot took too long",
	}))

	// Compression middleware
	if cfg.Processing.EnableCompression {
		e.Use(middleware.GzipWithConfig(middleware.GzipConfig{
			Level: cfg.Processing.CompressionLevel,
			Skipper: func(c echo.Context) bool {
				return c.Request().Header.Get("Accept") == "text/event-stream"
			},
		}))
	}

	// Body limit middleware
	e.Use(middleware.BodyLimit(cfg.Server.BodyLimit))

	// CORS configuration
	if cfg.Server.EnableCORS {
		if embeddedMode {
			// In embedded mode, use config settings
			origins := strings.Split(cfg.Server.AllowOrigins, ",")
			for i := range origins {
				origins[i] = strings.TrimSpace(origins[i])
			}
			if len(origins) == 0 || (len(origins) == 1 && origins[0] == "") {
				origins = []string{"*"}
			}
			e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
				AllowOrigins: origins,
				AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
				AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization},
			}))
		} else {
			// Development mode - only allow localhost
			e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
				AllowOrigins: []string{
					"http://localhost:5173", "http://127.0.0.1:5173",
					"http://localhost:5174", "http://127.0.0.1:5174",
					"http://localhost:3000", "http://127.0.0.1:3000",
				},
				AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
				AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept},
			}))
		}
	}

	// API routes
	api.RegisterRoutes(e, handlers)

	// Register embedded frontend if available
	if embeddedMode {
		if err := web.RegisterStaticRoutes(e); err != nil {
			fmt.Printf("Warning: failed to register static routes: %v\n", err)
		} else {
			fmt.Println("Serving embedded frontend from binary")
		}
	}

	// Configure server with settings from XML config
	s := &http.Server{
		Addr:         cfg.GetServerAddr(),
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		IdleTimeout:  time.Duration(cfg.Server.IdleTimeout) * time.Second,
	}

	// Print startup banner
	mode := "Development"
	if embeddedMode {
		mode = "Standalone (Embedded)"
	}

	cacheState := "disabled"
	if geocodeCache != nil {
		cacheState = filepath.Join(cfg.GetCacheDir(), "geocode_cache.duckdb")
	}

	fmt.Printf("\n")
	fmt.Printf("╔═══════════════════════════════════════════════════════════╗\n")
	fmt.Printf("║           Route Plotter Server                            ║\n")
	fmt.Printf("╠═══════════════════════════════════════════════════════════╣\n")
	fmt.Printf("║  Version:    %-45s║\n", Version)
	fmt.Printf("║  Build Time: %-45s║\n", BuildTime)
	fmt.Printf("║  Mode:       %-45s║\n", mode)
	fmt.Printf("╠═══════════════════════════════════════════════════════════╣\n")
	fmt.Printf("║  Config:    %-46s║\n", configPath)
	fmt.Printf("║  Listen:    http://%-38s║\n", cfg.GetServerAddr())
	fmt.Printf("║  Data Dir:  %-46s║\n", cfg.GetDataDir())
	fmt.Printf("║  Cache:     %-46s║\n", cacheState)
	fmt.Printf("╚═══════════════════════════════════════════════════════════╝\n")
	fmt.Printf("\n")

	if embeddedMode {
		fmt.Printf("Open http://localhost:%d in your browser\n\n", cfg.Server.Port)
	}

	e.Logger.Fatal(e.StartServer(s))
}
