package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/flemzord/majlis/internal/core"
	"gopkg.in/yaml.v3"
)

type stubModule struct {
	id string
}

func (m *stubModule) ModuleInfo() core.ModuleInfo {
	return core.ModuleInfo{
		ID:  core.ModuleID(m.id),
		New: func() core.Module { return &stubModule{id: m.id} },
	}
}

func registerStub(t *testing.T, id string) {
	t.Helper()
	core.RegisterModule(&stubModule{id: id})
}

func TestValidate_Valid(t *testing.T) {
	id := "provider." + t.Name()
	registerStub(t, id)
	cfg := &Config{
		Version: "1",
		Modules: map[string]yaml.Node{id: {}},
	}
	if err := Validate(cfg); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidate_Errors(t *testing.T) {
	nonProvider := "channel." + t.Name()
	registerStub(t, nonProvider)

	tests := []struct {
		name string
		cfg  *Config
		want string
	}{
		{"missing version", &Config{Modules: map[string]yaml.Node{nonProvider: {}}}, "version field is required"},
		{"unsupported version", &Config{Version: "2", Modules: map[string]yaml.Node{nonProvider: {}}}, "unsupported version"},
		{"no modules", &Config{Version: "1"}, "at least one module"},
		{"unknown module", &Config{Version: "1", Modules: map[string]yaml.Node{"nope.nope": {}}}, `unknown module "nope.nope"`},
		{"no provider", &Config{Version: "1", Modules: map[string]yaml.Node{nonProvider: {}}}, "provider module is required"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(tt.cfg)
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error = %q, want substring %q", err, tt.want)
			}
		})
	}
}

func TestResolve_NamespaceOrder(t *testing.T) {
	t.Parallel()

	cfg := &Config{Modules: map[string]yaml.Node{
		"channel.telegram":           {},
		"gateway.http":               {},
		"provider.openai_compatible": {},
		"memory.sqlite":              {},
		"provider.gemini":            {},
		"search.duckduckgo":          {},
	}}
	got := Resolve(cfg)
	want := []string{
		"memory.sqlite",
		"provider.gemini",
		"provider.openai_compatible",
		"search.duckduckgo",
		"channel.telegram",
		"gateway.http",
	}
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("Resolve() = %v, want %v", got, want)
	}
}

func TestParse_ExpandsEnv(t *testing.T) {
	t.Setenv("MAJLIS_TEST_KEY", "secret")

	raw := []byte(`version: "1"
modules:
  provider.gemini:
    api_key: ${MAJLIS_TEST_KEY}
    model: ${MAJLIS_TEST_MODEL:-gemini-2.0-flash}
`)
	cfg, err := Parse(raw)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	node := cfg.Modules["provider.gemini"]
	var got struct {
		APIKey string `yaml:"api_key"`
		Model  string `yaml:"model"`
	}
	if err := node.Decode(&got); err != nil {
		t.Fatal(err)
	}
	if got.APIKey != "secret" || got.Model != "gemini-2.0-flash" {
		t.Errorf("decoded = %+v", got)
	}
}

func TestParse_UnresolvedVariable(t *testing.T) {
	_, err := Parse([]byte("version: ${MAJLIS_DEFINITELY_UNSET_VAR}\n"))
	if err == nil || !strings.Contains(err.Error(), "MAJLIS_DEFINITELY_UNSET_VAR") {
		t.Fatalf("expected unresolved variable error, got %v", err)
	}
}

func TestLoad_ReadsDotEnv(t *testing.T) {
	dir := t.TempDir()
	// Registered via t.Setenv so the value set by godotenv is restored afterwards.
	t.Setenv("MAJLIS_DOTENV_VALUE", "")
	os.Unsetenv("MAJLIS_DOTENV_VALUE")

	if err := os.WriteFile(filepath.Join(dir, ".env"), []byte("MAJLIS_DOTENV_VALUE=from-dotenv\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(dir, "majlis.yaml")
	if err := os.WriteFile(path, []byte("version: ${MAJLIS_DOTENV_VALUE}\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Version != "from-dotenv" {
		t.Errorf("Version = %q, want %q", cfg.Version, "from-dotenv")
	}
}

func TestResolvePath_XDGConfigHome(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "majlis", "majlis.yaml")
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte("version: \"1\"\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("XDG_CONFIG_HOME", dir)

	if got := ResolvePath(); got != path {
		t.Errorf("ResolvePath() = %q, want %q", got, path)
	}
}
