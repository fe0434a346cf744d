package paths

import (
	"os"
	"path/filepath"
)

// Default locations. The manager normally runs as a system service, so state
// lives under the usual system directories; every path can be overridden
// through the environment for development and tests.
const (
	defaultDataDir        = "/var/lib/hytun"
	defaultLogDir         = "/var/log/hytun"
	defaultHysteriaConfig = "/etc/hysteria2/client.yaml"
	defaultHysteriaBin    = "/usr/local/bin/hysteria"
)

// DataDir returns the state directory (settings, node/user/session documents,
// history database), creating it if needed.
func DataDir() (string, error) {
	dir := defaultDataDir
	if v := os.Getenv("HYTUN_DATA_DIR"); v != "" {
		dir = v
	}
	if err := os.MkdirAll(dir, 0700); err != nil {
		return "", err
	}
	return dir, nil
}

// LogDir returns the log directory, creating it if needed.
func LogDir() (string, error) {
	dir := defaultLogDir
	if v := os.Getenv("HYTUN_LOG_DIR"); v != "" {
		dir = v
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", err
	}
	return dir, nil
}

// HysteriaConfig returns the path the emitted client config is written to.
// This path is a contract with the hysteria systemd unit.
func HysteriaConfig() string {
	if v := os.Getenv("HYTUN_HYSTERIA_CONFIG"); v != "" {
		return v
	}
	return defaultHysteriaConfig
}

// HysteriaBin returns the hysteria binary path.
func HysteriaBin() string {
	if v := os.Getenv("HYTUN_HYSTERIA_BIN"); v != "" {
		return v
	}
	return defaultHysteriaBin
}

// HysteriaLog returns the log file the hysteria process is told to write to.
func HysteriaLog() (string, error) {
	dir, err := LogDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "hysteria.log"), nil
}

// ManagerLog returns the manager's own log file.
func ManagerLog() (string, error) {
	dir, err := LogDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "manager.log"), nil
}
