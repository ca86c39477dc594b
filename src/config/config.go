package config

import (
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	EnvPathVar              = "SCREENSHOT_NATIVE_ENV"
	HotkeyEnvVar            = "HOTKEY"
	FullscreenHotkeyVar     = "HOTKEY_FULLSCREEN"
	ChannelAddrEnvVar       = "CHANNEL_ADDR"
	WindowSettleEnvVar      = "WINDOW_SETTLE_MS"
	DefaultHotkey           = "Ctrl+Shift+A"
	DefaultChannelAddr      = "127.0.0.1:47653"
	DefaultWindowSettle     = 200 * time.Millisecond
	RegionCaptureAction     = "regionCapture"
	FullscreenCaptureAction = "fullscreenCapture"
)

type LoadOptions struct {
	ChannelAddrOverride string
	HotkeyOverride      string
}

type Config struct {
	EnableFileLogging bool
	Hotkey            string
	FullscreenHotkey  string
	ChannelAddr       string
	WindowSettle      time.Duration
	EnvPath           string
}

func Load() (*Config, error) {
	return LoadWithOptions(LoadOptions{})
}

func LoadWithOptions(opts LoadOptions) (*Config, error) {
	// Load configuration from sources in priority order:
	// 1) .env in the application (executable) directory
	// 2) If not found, use SCREENSHOT_NATIVE_ENV env var as a path to a config file
	envPath := resolveEnvPath()
	dotenvValues := readDotenvValues(envPath)
	if envPath != "" {
		_ = godotenv.Load(envPath)
	}

	settle := DefaultWindowSettle
	if v := os.Getenv(WindowSettleEnvVar); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			settle = time.Duration(n) * time.Millisecond
		}
	}

	addr, err := resolveChannelAddr(opts, dotenvValues)
	if err != nil {
		return nil, err
	}

	hotkey := getEnvWithDefault(HotkeyEnvVar, DefaultHotkey)
	if override := strings.TrimSpace(opts.HotkeyOverride); override != "" {
		hotkey = override
	}

	cfg := &Config{
		EnableFileLogging: strings.ToLower(os.Getenv("ENABLE_FILE_LOGGING")) == "true",
		Hotkey:            hotkey,
		FullscreenHotkey:  strings.TrimSpace(os.Getenv(FullscreenHotkeyVar)),
		ChannelAddr:       addr,
		WindowSettle:      settle,
		EnvPath:           envPath,
	}

	return cfg, nil
}

func resolveEnvPath() string {
	execPath, err := os.Executable()
	if err != nil {
		return ""
	}

	execDir := filepath.Dir(execPath)
	exeEnv := filepath.Join(execDir, ".env")
	if _, err := os.Stat(exeEnv); err == nil {
		return exeEnv
	}

	if alt := os.Getenv(EnvPathVar); alt != "" {
		if _, err := os.Stat(alt); err == nil {
			return alt
		}
	}

	return ""
}

func readDotenvValues(envPath string) map[string]string {
	if envPath == "" {
		return map[string]string{}
	}

	values, err := godotenv.Read(envPath)
	if err != nil {
		return map[string]string{}
	}

	return values
}

// resolveChannelAddr picks the channel address: flag, then .env, then the
// process environment. The channel carries screen contents, so only
// loopback hosts are accepted.
func resolveChannelAddr(opts LoadOptions, dotenvValues map[string]string) (string, error) {
	addr := DefaultChannelAddr

	if envAddr := strings.TrimSpace(os.Getenv(ChannelAddrEnvVar)); envAddr != "" {
		addr = envAddr
	}

	if dotenvAddr := strings.TrimSpace(dotenvValues[ChannelAddrEnvVar]); dotenvAddr != "" {
		addr = dotenvAddr
	}

	if override := strings.TrimSpace(opts.ChannelAddrOverride); override != "" {
		addr = override
	}

	if err := validateLoopback(addr); err != nil {
		return "", fmt.Errorf("%s: %w", ChannelAddrEnvVar, err)
	}
	return addr, nil
}

func validateLoopback(addr string) error {
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return err
	}
	if _, err := strconv.ParseUint(port, 10, 16); err != nil {
		return fmt.Errorf("invalid port %q", port)
	}
	if host == "localhost" {
		return nil
	}
	if ip := net.ParseIP(host); ip == nil || !ip.IsLoopback() {
		return fmt.Errorf("host %q is not a loopback address", host)
	}
	return nil
}

func getEnvWithDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
