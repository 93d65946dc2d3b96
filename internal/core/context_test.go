package core

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"

	"gopkg.in/yaml.v3"
)

func TestAppContext_ForModule(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo}))

	ctx := NewAppContext(logger, "/data")
	child := ctx.ForModule("memory.sqlite")

	child.Logger.Info("hello")

	if !bytes.Contains(buf.Bytes(), []byte("memory.sqlite")) {
		t.Errorf("expected child logger to contain module ID, got: %s", buf.String())
	}
}

func TestAppContext_ServicesSharedAcrossModules(t *testing.T) {
	t.Parallel()

	root := NewAppContext(nil, "/data")
	a := root.ForModule("provider.gemini")
	b := root.ForModule("channel.telegram")

	a.RegisterService("provider.gemini", 42)

	got, ok := Service[int](b, "provider.gemini")
	if !ok || got != 42 {
		t.Fatalf("Service = %v, %v; want 42, true", got, ok)
	}
	if _, ok := Service[string](b, "provider.gemini"); ok {
		t.Error("expected type mismatch to report false")
	}
	if _, ok := root.GetService("missing"); ok {
		t.Error("expected missing service to report false")
	}
}

func TestModuleID_Parts(t *testing.T) {
	t.Parallel()

	tests := []struct {
		id        ModuleID
		namespace string
		name      string
	}{
		{"memory.sqlite", "memory", "sqlite"},
		{"provider.openai_compatible", "provider", "openai_compatible"},
		{"router", "router", "router"},
	}
	for _, tt := range tests {
		if got := tt.id.Namespace(); got != tt.namespace {
			t.Errorf("%s Namespace() = %q, want %q", tt.id, got, tt.namespace)
		}
		if got := tt.id.Name(); got != tt.name {
			t.Errorf("%s Name() = %q, want %q", tt.id, got, tt.name)
		}
	}
}

func TestAppContext_LoadModule(t *testing.T) {
	t.Cleanup(resetRegistry)

	provisioned := false
	validated := false

	RegisterModule(&trackingModule{
		id:          "test.loadmod",
		onProvision: func() { provisioned = true },
		onValidate:  func() { validated = true },
	})

	ctx := NewAppContext(nil, "/data")
	mod, err := ctx.LoadModule("test.loadmod")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if mod == nil {
		t.Fatal("expected non-nil module")
	}
	if !provisioned {
		t.Error("expected Provision to be called")
	}
	if !validated {
		t.Error("expected Validate to be called")
	}
}

func TestAppContext_LoadModule_Errors(t *testing.T) {
	t.Cleanup(resetRegistry)

	RegisterModule(&trackingModule{id: "test.provfail", provisionErr: errors.New("provision boom")})
	RegisterModule(&trackingModule{id: "test.valfail", validateErr: errors.New("validate boom")})

	ctx := NewAppContext(nil, "/data")
	for _, id := range []string{"does.not.exist", "test.provfail", "test.valfail"} {
		if _, err := ctx.LoadModule(id); err == nil {
			t.Errorf("LoadModule(%q): expected error", id)
		}
	}
}

func TestAppContext_LoadModule_WithConfig(t *testing.T) {
	t.Cleanup(resetRegistry)

	receivedKey := ""
	RegisterModule(&configurableMod{id: "test.cfgmod", receivedKey: &receivedKey})

	var node yaml.Node
	if err := yaml.Unmarshal([]byte("key: hello"), &node); err != nil {
		t.Fatal(err)
	}

	ctx := NewAppContext(nil, "/data").WithModuleConfigs(map[string]yaml.Node{
		"test.cfgmod": *node.Content[0],
	})

	if _, err := ctx.LoadModule("test.cfgmod"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if receivedKey != "hello" {
		t.Errorf("receivedKey = %q, want %q", receivedKey, "hello")
	}
}

func TestApp_StartStopOrder(t *testing.T) {
	t.Parallel()

	var order []string
	app := NewApp(NewAppContext(nil, t.TempDir()))
	app.AppendModule(&lifecycleMod{id: "a", order: &order})
	app.AppendModule(&lifecycleMod{id: "b", order: &order})

	if err := app.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	app.Stop()

	want := []string{"start a", "start b", "stop b", "stop a"}
	if len(order) != len(want) {
		t.Fatalf("order = %v, want %v", order, want)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("order = %v, want %v", order, want)
		}
	}
	if _, ok := app.Module("b"); !ok {
		t.Error("expected Module(b) to be found")
	}
}

func TestApp_StartFailureStopsStarted(t *testing.T) {
	t.Parallel()

	var order []string
	app := NewApp(NewAppContext(nil, t.TempDir()))
	app.AppendModule(&lifecycleMod{id: "a", order: &order})
	app.AppendModule(&lifecycleMod{id: "b", order: &order, startErr: errors.New("boom")})

	if err := app.Start(); err == nil {
		t.Fatal("expected start error")
	}
	if got := order[len(order)-1]; got != "stop a" {
		t.Errorf("last event = %q, want %q", got, "stop a")
	}
}

type trackingModule struct {
	id           ModuleID
	onProvision  func()
	onValidate   func()
	provisionErr error
	validateErr  error
}

func (m *trackingModule) ModuleInfo() ModuleInfo {
	cp := *m
	return ModuleInfo{ID: m.id, New: func() Module { c := cp; return &c }}
}

func (m *trackingModule) Provision(_ *AppContext) error {
	if m.onProvision != nil {
		m.onProvision()
	}
	return m.provisionErr
}

func (m *trackingModule) Validate() error {
	if m.onValidate != nil {
		m.onValidate()
	}
	return m.validateErr
}

type configurableMod struct {
	id          ModuleID
	receivedKey *string
}

func (m *configurableMod) ModuleInfo() ModuleInfo {
	cp := *m
	return ModuleInfo{ID: m.id, New: func() Module { c := cp; return &c }}
}

func (m *configurableMod) Configure(node *yaml.Node) error {
	var parsed struct {
		Key string `yaml:"key"`
	}
	if err := node.Decode(&parsed); err != nil {
		return err
	}
	*m.receivedKey = parsed.Key
	return nil
}

type lifecycleMod struct {
	id       ModuleID
	order    *[]string
	startErr error
}

func (m *lifecycleMod) ModuleInfo() ModuleInfo {
	return ModuleInfo{ID: m.id, New: func() Module { return m }}
}

func (m *lifecycleMod) Start() error {
	if m.startErr != nil {
		return m.startErr
	}
	*m.order = append(*m.order, "start "+string(m.id))
	return nil
}

func (m *lifecycleMod) Stop(context.Context) error {
	*m.order = append(*m.order, "stop "+string(m.id))
	return nil
}

func TestApp_CloseStopsUnstarted(t *testing.T) {
	t.Parallel()

	var order []string
	app := NewApp(NewAppContext(nil, t.TempDir()))
	app.AppendModule(&lifecycleMod{id: "a", order: &order})
	app.AppendModule(&lifecycleMod{id: "b", order: &order})

	app.Close()

	if len(order) != 2 || order[0] != "stop b" || order[1] != "stop a" {
		t.Fatalf("order = %v, want [stop b stop a]", order)
	}
	if _, ok := app.Module("a"); ok {
		t.Error("expected modules to be released after Close")
	}
}
