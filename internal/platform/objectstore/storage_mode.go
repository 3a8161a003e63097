package objectstore

import (
	"fmt"
	"net/url"
	"os"
	"strings"

	"google.golang.org/api/option"
)

type StorageMode string

const (
	StorageModeGCS         StorageMode = "gcs"
	StorageModeGCSEmulator StorageMode = "gcs_emulator"
)

type StorageConfig struct {
	Mode         StorageMode
	EmulatorHost string
}

func (cfg StorageConfig) IsEmulatorMode() bool {
	return cfg.Mode == StorageModeGCSEmulator
}

// ResolveStorageConfigFromEnv picks the storage mode. An explicit
// OBJECT_STORAGE_MODE wins; otherwise a set STORAGE_EMULATOR_HOST
// implies emulator mode.
func ResolveStorageConfigFromEnv() (StorageConfig, error) {
	cfg := StorageConfig{
		EmulatorHost: strings.TrimSpace(os.Getenv("STORAGE_EMULATOR_HOST")),
	}

	rawMode := strings.TrimSpace(os.Getenv("OBJECT_STORAGE_MODE"))
	switch StorageMode(strings.ToLower(rawMode)) {
	case "":
		if cfg.EmulatorHost != "" {
			cfg.Mode = StorageModeGCSEmulator
		} else {
			cfg.Mode = StorageModeGCS
		}
	case StorageModeGCS:
		cfg.Mode = StorageModeGCS
	case StorageModeGCSEmulator:
		cfg.Mode = StorageModeGCSEmulator
	default:
		return cfg, fmt.Errorf(
			"invalid OBJECT_STORAGE_MODE=%q (allowed: %q, %q)",
			rawMode, StorageModeGCS, StorageModeGCSEmulator,
		)
	}

	if err := validateStorageConfig(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func validateStorageConfig(cfg StorageConfig) error {
	if !cfg.IsEmulatorMode() {
		return nil
	}
	host := strings.TrimSpace(cfg.EmulatorHost)
	if host == "" {
		return fmt.Errorf("OBJECT_STORAGE_MODE=%q requires STORAGE_EMULATOR_HOST to be set", StorageModeGCSEmulator)
	}
	parsed, err := url.Parse(host)
	if err != nil || strings.TrimSpace(parsed.Scheme) == "" || strings.TrimSpace(parsed.Host) == "" {
		return fmt.Errorf("invalid STORAGE_EMULATOR_HOST=%q; expected absolute URL like http://fake-gcs:4443", host)
	}
	return nil
}

func clientOptionsFromEnv() []option.ClientOption {
	creds := strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS_JSON"))
	if creds == "" {
		creds = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}
	if creds == "" {
		return nil
	}
	if strings.HasPrefix(creds, "{") {
		return []option.ClientOption{option.WithCredentialsJSON([]byte(creds))}
	}
	return []option.ClientOption{option.WithCredentialsFile(creds)}
}
