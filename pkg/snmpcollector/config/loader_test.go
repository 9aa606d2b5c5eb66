package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/sc4snmp/snmp-poller/models"
	"github.com/sc4snmp/snmp-poller/pkg/snmpcollector/config"
)

func tmpDir(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
	return dir
}

// ── PathsFromEnv ─────────────────────────────────────────────────────────────

func TestPathsFromEnvDefaults(t *testing.T) {
	for _, v := range []string{"INVENTORY_PATH", "CONFIG_PATH", "PROCESSOR_SNMP_ENUM_DEFINITIONS_DIRECTORY_PATH"} {
		t.Setenv(v, "")
	}
	p := config.PathsFromEnv()
	if p.Inventory != "/etc/snmp_collector/inventory.csv" {
		t.Errorf("Inventory = %q", p.Inventory)
	}
	if p.Server != "/etc/snmp_collector/config.yaml" {
		t.Errorf("Server = %q", p.Server)
	}
	if p.Enums != "/etc/snmp_collector/snmp/enums" {
		t.Errorf("Enums = %q", p.Enums)
	}
}

func TestPathsFromEnvOverride(t *testing.T) {
	t.Setenv("INVENTORY_PATH", "/custom/inventory.csv")
	p := config.PathsFromEnv()
	if p.Inventory != "/custom/inventory.csv" {
		t.Errorf("Inventory = %q, want /custom/inventory.csv", p.Inventory)
	}
}

// ── Server config ─────────────────────────────────────────────────────────────

var serverConfigYAML = `
mongo:
  database: snmp_collector
  walked_collection: walked
  unwalked_collection: unwalked
profiles:
  switches:
    frequency: 60
    patterns:
      - "^Cisco"
    varBinds:
      - ["SNMPv2-MIB", "sysDescr"]
      - ["IF-MIB", "ifInOctets"]
communities:
  public:
    communityIndex: "public"
    securityName: "public"
usernames:
  snmpv3user:
    authKey: "authpass"
    privKey: "privpass"
    authProtocol: "SHA"
    privProtocol: "AES"
enricher:
  oidFamily:
    IF-MIB:
      existingVarBinds:
        - symbolicName: ifDescr
          dimensionName: ifDescr
          ttlSeconds: 300
      additionalVarBinds:
        - "sc4snmp\\.IF-MIB\\.(?P<ifIndex>\\d+)\\."
additionalMetricField:
  - vendor
`

func writeServerConfig(t *testing.T, dir string, yaml string) string {
	t.Helper()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(yaml), 0o644); err != nil {
		t.Fatalf("write server config: %v", err)
	}
	return path
}

func TestLoadServerPopulatesProfilesAndCredentials(t *testing.T) {
	dir := t.TempDir()
	path := writeServerConfig(t, dir, serverConfigYAML)

	loaded, err := config.Load(config.Paths{Server: path, Enums: t.TempDir()}, nil)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if loaded.Server.Mongo.Database != "snmp_collector" {
		t.Errorf("mongo database = %q", loaded.Server.Mongo.Database)
	}
	profiles := loaded.Server.ToProfiles()
	p, ok := profiles["switches"]
	if !ok {
		t.Fatal("switches profile not found")
	}
	if p.FrequencySeconds != 60 {
		t.Errorf("frequency = %d, want 60", p.FrequencySeconds)
	}
	if len(p.VarBinds) != 2 {
		t.Fatalf("varBinds count = %d, want 2", len(p.VarBinds))
	}

	comm, ok := loaded.Server.Communities["public"]
	if !ok || comm.CommunityIndex != "public" {
		t.Errorf("communities[public] = %+v", comm)
	}
	user, ok := loaded.Server.Usernames["snmpv3user"]
	if !ok || user.AuthProtocol != "SHA" {
		t.Errorf("usernames[snmpv3user] = %+v", user)
	}

	enricherCfg := loaded.Server.ToEnricherConfig()
	rules, ok := enricherCfg.Families["IF-MIB"]
	if !ok {
		t.Fatal("IF-MIB family not found")
	}
	if len(rules.ExistingVarBinds) != 1 || rules.ExistingVarBinds[0].SymbolicName != "ifDescr" {
		t.Errorf("existingVarBinds = %+v", rules.ExistingVarBinds)
	}
}

func TestParseVarBindSelectorShapes(t *testing.T) {
	sel, err := config.ParseVarBindSelector([]any{"SNMPv2-MIB", "sysDescr"})
	if err != nil {
		t.Fatalf("tuple-2: %v", err)
	}
	if sel.Kind != models.SelectorBulk {
		t.Errorf("tuple-2 Kind = %v, want SelectorBulk", sel.Kind)
	}

	sel, err = config.ParseVarBindSelector("1.3.6.1.2.1.1.1.0")
	if err != nil {
		t.Fatalf("scalar OID: %v", err)
	}
	if sel.OID != "1.3.6.1.2.1.1.1.0" {
		t.Errorf("OID = %q", sel.OID)
	}

	sel, err = config.ParseVarBindSelector("1.3.6.1.2.1.2.2.1.10.*")
	if err != nil {
		t.Fatalf("subtree OID: %v", err)
	}
	if sel.OID != "1.3.6.1.2.1.2.2.1.10" {
		t.Errorf("subtree OID = %q, want trailing .* stripped", sel.OID)
	}

	if _, err := config.ParseVarBindSelector(42); err == nil {
		t.Error("expected error for unsupported varBind shape")
	}
}

// ── Enum definitions ──────────────────────────────────────────────────────────

var intEnumYAML = `
.1.3.6.1.2.1.2.2.1.8:
  1: 'up'
  2: 'down'
  3: 'testing'
`

var oidEnumYAML = `
.1.3.6.1.2.1.25.2.1.1: 'other'
.1.3.6.1.2.1.25.2.1.2: 'RAM'
.1.3.6.1.2.1.25.2.1.4: 'fixed disk'
`

var bitmapEnumYAML = `
.1.3.6.1.2.1.10.166.3.2.10.1.5:
  0: 'PDR'
  1: 'PBS'
  2: 'CDR'
  3: 'CBS'
`

func loadWithEnums(t *testing.T, enumFiles map[string]string) *config.LoadedConfig {
	t.Helper()
	dir := t.TempDir()
	serverPath := writeServerConfig(t, dir, "profiles: {}\n")
	enumDir := tmpDir(t, enumFiles)

	loaded, err := config.Load(config.Paths{Server: serverPath, Enums: enumDir}, nil)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	return loaded
}

func TestLoadIntegerEnum(t *testing.T) {
	loaded := loadWithEnums(t, map[string]string{"ifOperStatus.yml": intEnumYAML})

	got := loaded.Enums.Resolve("1.3.6.1.2.1.2.2.1.8", int64(1))
	if got != "up" {
		t.Errorf("Resolve(1) = %v, want %q", got, "up")
	}
	got = loaded.Enums.Resolve("1.3.6.1.2.1.2.2.1.8", int64(99))
	if got != int64(99) {
		t.Errorf("Resolve(99) = %v, want passthrough", got)
	}
}

func TestLoadOIDEnum(t *testing.T) {
	loaded := loadWithEnums(t, map[string]string{"hrStorageType.yml": oidEnumYAML})

	got := loaded.Enums.Resolve("unused", "1.3.6.1.2.1.25.2.1.2")
	if got != "RAM" {
		t.Errorf("OID enum Resolve = %v, want %q", got, "RAM")
	}
}

func TestLoadBitmapEnum(t *testing.T) {
	loaded := loadWithEnums(t, map[string]string{"crldp_bitmap.yml": bitmapEnumYAML})

	// Bits 0 and 2 set (mask = 5 = 0b101) -> "PDR,CDR"
	got := loaded.Enums.Resolve("1.3.6.1.2.1.10.166.3.2.10.1.5", int64(5))
	if got != "PDR,CDR" {
		t.Errorf("bitmap Resolve(5) = %v, want %q", got, "PDR,CDR")
	}
}

// ── Missing / malformed inputs ─────────────────────────────────────────────────

func TestLoadMissingEnumDirIsIgnored(t *testing.T) {
	dir := t.TempDir()
	serverPath := writeServerConfig(t, dir, "profiles: {}\n")

	_, err := config.Load(config.Paths{Server: serverPath, Enums: "/tmp/no-such-enums"}, nil)
	if err != nil {
		t.Errorf("missing enum dir should not cause error, got: %v", err)
	}
}

func TestLoadMissingServerConfigErrors(t *testing.T) {
	_, err := config.Load(config.Paths{Server: "/tmp/no-such-config.yaml", Enums: t.TempDir()}, nil)
	if err == nil {
		t.Error("expected error for missing server config file")
	}
}

func TestLoadSkipsMalformedEnumFile(t *testing.T) {
	loaded := loadWithEnums(t, map[string]string{
		"broken.yml": "not_valid_yaml: [1, 2",
		"good.yml":   oidEnumYAML,
	})
	got := loaded.Enums.Resolve("unused", "1.3.6.1.2.1.25.2.1.2")
	if got != "RAM" {
		t.Errorf("well-formed file should still load despite a malformed sibling, got %v", got)
	}
}
