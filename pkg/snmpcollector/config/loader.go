// Package config loads the two configuration inputs the orchestrator needs
// at startup: the inventory CSV (host/profile/credential rows) and the
// server configuration YAML document (store location, profile table,
// credential tables, enrichment rules). A third, optional directory feeds
// the enum registry used by the producer stage to resolve integer/bitmap
// SNMP values to text labels.
//
//	INVENTORY_PATH                                   -> inventory.Parse
//	CONFIG_PATH                                      -> LoadServerConfig
//	PROCESSOR_SNMP_ENUM_DEFINITIONS_DIRECTORY_PATH   -> EnumRegistry
//
// The teacher's device/defaults/device-group/object-group YAML trees have
// no counterpart here: a poll target's connection parameters are resolved
// per (host, profile) from the inventory row plus the server config's
// communities/usernames tables (see ResolveDeviceConfig), and a profile's
// poll targets are the VarBinds selectors parsed straight out of the
// profiles table — there is no separate object-definition tree to load.
package config

import (
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/sc4snmp/snmp-poller/producer/metrics"
)

// ─────────────────────────────────────────────────────────────────────────────
// Paths
// ─────────────────────────────────────────────────────────────────────────────

// Paths holds the locations of the two config inputs plus the optional enum
// definitions directory.
type Paths struct {
	Inventory string // INVENTORY_PATH
	Server    string // CONFIG_PATH
	Enums     string // PROCESSOR_SNMP_ENUM_DEFINITIONS_DIRECTORY_PATH
}

// PathsFromEnv reads each path from its environment variable, falling back
// to the documented default when the variable is unset or empty.
func PathsFromEnv() Paths {
	return Paths{
		Inventory: envOr("INVENTORY_PATH", "/etc/snmp_collector/inventory.csv"),
		Server:    envOr("CONFIG_PATH", "/etc/snmp_collector/config.yaml"),
		Enums:     envOr("PROCESSOR_SNMP_ENUM_DEFINITIONS_DIRECTORY_PATH", "/etc/snmp_collector/snmp/enums"),
	}
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// ─────────────────────────────────────────────────────────────────────────────
// LoadedConfig
// ─────────────────────────────────────────────────────────────────────────────

// LoadedConfig bundles the server config plus the pre-built enum registry.
// The inventory is loaded separately and on its own refresh cadence (see the
// orchestrator's reconcile_inventory task) rather than once at startup.
type LoadedConfig struct {
	Server ServerConfig
	Enums  *metrics.EnumRegistry
}

// Load reads the server config document and the enum definitions directory.
// The inventory CSV is intentionally not read here — the orchestrator owns
// its own reload cadence for that file.
func Load(paths Paths, logger *slog.Logger) (*LoadedConfig, error) {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(noopWriter{}, nil))
	}

	f, err := os.Open(paths.Server)
	if err != nil {
		return nil, fmt.Errorf("config: open server config %q: %w", paths.Server, err)
	}
	defer f.Close()

	server, err := LoadServerConfig(f)
	if err != nil {
		return nil, err
	}

	enums, err := loadEnums(paths.Enums, logger)
	if err != nil {
		return nil, fmt.Errorf("config: load enums: %w", err)
	}

	return &LoadedConfig{Server: server, Enums: enums}, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Enum definitions
// ─────────────────────────────────────────────────────────────────────────────

// loadEnums reads every YAML file under dir and populates an EnumRegistry.
// A missing directory is not an error — enum resolution is an optional
// enrichment (the -processor.enum.enable flag gates its use downstream).
func loadEnums(dir string, logger *slog.Logger) (*metrics.EnumRegistry, error) {
	reg := metrics.NewEnumRegistry()

	files, err := yamlFiles(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return reg, nil
		}
		return reg, fmt.Errorf("list enums dir %q: %w", dir, err)
	}

	for _, path := range files {
		// Unmarshal as map[string]interface{} so we can type-switch the values.
		var raw map[string]interface{}
		if err := decodeFile(path, &raw); err != nil {
			logger.Warn("config: skip malformed enum file", "file", path, "error", err.Error())
			continue
		}

		for oid, val := range raw {
			normOID := normaliseOID(oid)
			switch v := val.(type) {
			case string:
				// OID enum: value is a label string, key is the OID value.
				reg.RegisterOIDEnum(normOID, v)

			case map[string]interface{}:
				// Integer / bitmap enum: keys are integer values (as strings in yaml.v3).
				intMap, err := parseIntEnumMap(v)
				if err != nil {
					logger.Warn("config: skip unparseable int enum", "oid", oid, "error", err.Error())
					continue
				}
				reg.RegisterIntEnum(normOID, strings.HasSuffix(path, "_bitmap.yml") || strings.HasSuffix(path, "_bitmap.yaml"), intMap)

			case map[interface{}]interface{}:
				// yaml.v3 decodes YAML maps with integer keys as map[interface{}]interface{}.
				intMap, err := parseIntEnumMapGeneric(v)
				if err != nil {
					logger.Warn("config: skip unparseable int enum", "oid", oid, "error", err.Error())
					continue
				}
				reg.RegisterIntEnum(normOID, strings.HasSuffix(path, "_bitmap.yml") || strings.HasSuffix(path, "_bitmap.yaml"), intMap)

			default:
				logger.Warn("config: unknown enum value type", "oid", oid, "type", fmt.Sprintf("%T", val))
			}
		}
		logger.Debug("config: loaded enum file", "file", path)
	}
	return reg, nil
}

// parseIntEnumMap converts a map[string]interface{} (from YAML) into the
// map[int64]string that EnumRegistry expects.
func parseIntEnumMap(raw map[string]interface{}) (map[int64]string, error) {
	out := make(map[int64]string, len(raw))
	for k, v := range raw {
		i, err := strconv.ParseInt(fmt.Sprintf("%v", k), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("non-integer key %q: %w", k, err)
		}
		out[i] = fmt.Sprintf("%v", v)
	}
	return out, nil
}

// parseIntEnumMapGeneric converts a map[interface{}]interface{} (produced by
// yaml.v3 when YAML map keys are integers) into the map[int64]string that
// EnumRegistry expects.
func parseIntEnumMapGeneric(raw map[interface{}]interface{}) (map[int64]string, error) {
	out := make(map[int64]string, len(raw))
	for k, v := range raw {
		i, err := strconv.ParseInt(fmt.Sprintf("%v", k), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("non-integer key %v: %w", k, err)
		}
		out[i] = fmt.Sprintf("%v", v)
	}
	return out, nil
}

// normaliseOID strips a leading dot from an OID string.
func normaliseOID(oid string) string {
	return strings.TrimPrefix(strings.TrimSpace(oid), ".")
}

// ─────────────────────────────────────────────────────────────────────────────
// Helpers
// ─────────────────────────────────────────────────────────────────────────────

// yamlFiles returns all *.yml / *.yaml files under dir, sorted by path.
func yamlFiles(dir string) ([]string, error) {
	var paths []string
	err := filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		ext := strings.ToLower(filepath.Ext(p))
		if ext == ".yml" || ext == ".yaml" {
			paths = append(paths, p)
		}
		return nil
	})
	return paths, err
}

// decodeFile opens path and unmarshals the YAML content into out.
func decodeFile(path string, out interface{}) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	dec := yaml.NewDecoder(f)
	dec.KnownFields(false) // be lenient — extra keys are fine
	return dec.Decode(out)
}

// ─────────────────────────────────────────────────────────────────────────────
// no-op logger writer
// ─────────────────────────────────────────────────────────────────────────────

type noopWriter struct{}

func (noopWriter) Write(p []byte) (int, error) { return len(p), nil }
