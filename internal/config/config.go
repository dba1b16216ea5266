// Package config provides XML-based configuration management.
package config

import (
	"encoding/xml"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
)

// AppConfig represents the root XML configuration structure
type AppConfig struct {
	XMLName xml.Name `xml:"RoutePlotter"`

	Server     ServerConfig     `xml:"Server"`
	Storage    StorageConfig    `xml:"Storage"`
	Geocoding  GeocodingConfig  `xml:"Geocoding"`
	Routing    RoutingConfig    `xml:"Routing"`
	Processing ProcessingConfig `xml:"Processing"`
	Security   SecurityConfig   `xml:"Security"`
	Advanced   AdvancedConfig   `xml:"Advanced"`
}

// ServerConfig contains HTTP server settings
type ServerConfig struct {
	Port         int    `xml:"Port"`
	BindAddress  string `xml:"BindAddress"`
	EnableCORS   bool   `xml:"EnableCORS"`
	AllowOrigins string `xml:"AllowOrigins"`
	ReadTimeout  int    `xml:"ReadTimeoutSeconds"`
	WriteTimeout int    `xml:"WriteTimeoutSeconds"`
	IdleTimeout  int    `xml:"IdleTimeoutSeconds"`
	BodyLimit    string `xml:"BodyLimit"`
}

// StorageConfig contains file storage settings
type StorageConfig struct {
	DataDirectory    string `xml:"DataDirectory"`
	UploadsDirectory string `xml:"UploadsDirectory"`
	CacheDirectory   string `xml:"CacheDirectory"`
	MaxUploadSize    string `xml:"MaxUploadSize"`
}

// GeocodingConfig contains geocoding provider settings
type GeocodingConfig struct {
	NominatimBaseURL  string  `xml:"NominatimBaseURL"`
	GoogleAPIKey      string  `xml:"GoogleAPIKey"`
	RequestsPerSecond float64 `xml:"RequestsPerSecond"`
	CountryCodes      string  `xml:"CountryCodes"`
	UserAgent         string  `xml:"UserAgent"`
	EnableCache       bool    `xml:"EnableCache"`
	TimeoutSeconds    int     `xml:"TimeoutSeconds"`
}

// RoutingConfig contains directions provider settings
type RoutingConfig struct {
	OSRMBaseURL    string `xml:"OSRMBaseURL"`
	Profile        string `xml:"Profile"`
	TimeoutSeconds int    `xml:"TimeoutSeconds"`
}

// ProcessingConfig contains plot job settings
type ProcessingConfig struct {
	MaxConcurrentPlots     int    `xml:"MaxConcurrentPlots"`
	SessionTimeoutMinutes  int    `xml:"SessionTimeoutMinutes"`
	CleanupIntervalMinutes int    `xml:"CleanupIntervalMinutes"`
	EnableCompression      bool   `xml:"EnableCompression"`
	CompressionLevel       int    `xml:"CompressionLevel"`
	ColumnMappingFile      string `xml:"ColumnMappingFile"` // optional YAML header-alias overrides
}

// SecurityConfig contains security settings
type SecurityConfig struct {
	AllowFileDeletion bool   `xml:"AllowFileDeletion"`
	AllowedFileTypes  string `xml:"AllowedFileTypes"`
}

// AdvancedConfig contains advanced/tuning options
type AdvancedConfig struct {
	EnableRequestLogging    bool   `xml:"EnableRequestLogging"`
	DuckDBThreads           int    `xml:"DuckDBThreads"`
	DuckDBMemoryLimit       string `xml:"DuckDBMemoryLimit"`
	WebSocketMaxMessageSize int    `xml:"WebSocketMaxMessageSizeKB"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() *AppConfig {
	return &AppConfig{
		Server: ServerConfig{
			Port:         8090,
			BindAddress:  "0.0.0.0",
			EnableCORS:   true,
			AllowOrigins: "*",
			ReadTimeout:  30,
			WriteTimeout: 60,
			IdleTimeout:  120,
			BodyLimit:    "32M",
		},
		Storage: StorageConfig{
			DataDirectory:    "./data",
			UploadsDirectory: "./data/uploads",
			CacheDirectory:   "./data/cache",
			MaxUploadSize:    "32M",
		},
		Geocoding: GeocodingConfig{
			NominatimBaseURL:  "https://nominatim.openstreetmap.org",
			GoogleAPIKey:      "",
			RequestsPerSecond: 1,
			CountryCodes:      "",
			UserAgent:         "RoutePlotter/1.0",
			EnableCache:       true,
			TimeoutSeconds:    10,
		},
		Routing: RoutingConfig{
			OSRMBaseURL:    "https://router.project-osrm.org",
			Profile:        "driving",
			TimeoutSeconds: 15,
		},
		Processing: ProcessingConfig{
			MaxConcurrentPlots:     3,
			SessionTimeoutMinutes:  30,
			CleanupIntervalMinutes: 5,
			EnableCompression:      true,
			CompressionLevel:       5,
		},
		Security: SecurityConfig{
			AllowFileDeletion: true,
			AllowedFileTypes:  ".csv,.txt",
		},
		Advanced: AdvancedConfig{
			EnableRequestLogging:    true,
			DuckDBThreads:           2,
			DuckDBMemoryLimit:       "256MB",
			WebSocketMaxMessageSize: 1024,
		},
	}
}

// LoadConfig loads configuration from XML file
func LoadConfig(configPath string) (*AppConfig, error) {
	// If file doesn't exist, create default
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		config := DefaultConfig()
		if err := config.Save(configPath); err != nil {
			return nil, fmt.Errorf("failed to create default config: %w", err)
		}
		return config, nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := &AppConfig{}
	if err := xml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	config.applyEnvironmentOverrides()
	config.resolvePaths(filepath.Dir(configPath))

	return config, nil
}

// Save saves the configuration to XML file
func (c *AppConfig) Save(configPath string) error {
	output, err := xml.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	header := []byte(xml.Header + "\n<!-- Route Plotter Configuration -->\n<!-- This file is auto-generated on first run -->\n\n")
	content := append(header, output...)

	if err := os.WriteFile(configPath, content, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// applyEnvironmentOverrides allows environment variables to override config values
func (c *AppConfig) applyEnvironmentOverrides() {
	if port := os.Getenv("PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			c.Server.Port = p
		}
	}

	if dataDir := os.Getenv("DATA_DIR"); dataDir != "" {
		c.Storage.DataDirectory = dataDir
		c.Storage.UploadsDirectory = filepath.Join(dataDir, "uploads")
		c.Storage.CacheDirectory = filepath.Join(dataDir, "cache")
	}

	if key := os.Getenv("GOOGLE_GEOCODE_API_KEY"); key != "" {
		c.Geocoding.GoogleAPIKey = key
	}

	if base := os.Getenv("OSRM_BASE_URL"); base != "" {
		c.Routing.OSRMBaseURL = base
	}

	if base := os.Getenv("NOMINATIM_BASE_URL"); base != "" {
		c.Geocoding.NominatimBaseURL = base
	}
}

// resolvePaths converts relative paths to absolute based on config file location
func (c *AppConfig) resolvePaths(configDir string) {
	if !filepath.IsAbs(c.Storage.DataDirectory) {
		c.Storage.DataDirectory = filepath.Join(configDir, c.Storage.DataDirectory)
	}
	if !filepath.IsAbs(c.Storage.UploadsDirectory) {
		c.Storage.UploadsDirectory = filepath.Join(configDir, c.Storage.UploadsDirectory)
	}
	if !filepath.IsAbs(c.Storage.CacheDirectory) {
		c.Storage.CacheDirectory = filepath.Join(configDir, c.Storage.CacheDirectory)
	}
	if c.Processing.ColumnMappingFile != "" && !filepath.IsAbs(c.Processing.ColumnMappingFile) {
		c.Processing.ColumnMappingFile = filepath.Join(configDir, c.Processing.ColumnMappingFile)
	}
}

// EnsureDirectories creates all configured data directories.
func (c *AppConfig) EnsureDirectories() error {
	for _, dir := range []string{
		c.Storage.DataDirectory,
		c.Storage.UploadsDirectory,
		c.Storage.CacheDirectory,
	} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("creating directory %s: %w", dir, err)
		}
	}
	return nil
}

// GetServerAddr returns the host:port the server should bind to.
func (c *AppConfig) GetServerAddr() string {
	return net.JoinHostPort(c.Server.BindAddress, strconv.Itoa(c.Server.Port))
}

// GetUploadDir returns the uploads directory.
func (c *AppConfig) GetUploadDir() string {
	return c.Storage.UploadsDirectory
}

// GetCacheDir returns the cache directory (geocode cache database).
func (c *AppConfig) GetCacheDir() string {
	return c.Storage.CacheDirectory
}

// GetDataDir returns the root data directory.
func (c *AppConfig) GetDataDir() string {
	return c.Storage.DataDirectory
}
