package orchestrator

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
)

func newTestEngine(t *testing.T, transport *fakeTransport, opts func(*Options)) (*Engine, *fakeDocument) {
	t.Helper()
	doc := newFakeDocument()
	o := Options{
		Transport: transport,
		Document:  doc,
		Evaluator: newFakeEvaluator(),
		Logger:    zerolog.New(nil).Level(zerolog.Disabled),
	}
	if opts != nil {
		opts(&o)
	}
	eng, err := New(o)
	if err != nil {
		t.Fatalf("failed to create engine: %v", err)
	}
	return eng, doc
}

func TestNewRequiresCollaborators(t *testing.T) {
	tests := []struct {
		name string
		opts Options
	}{
		{"missing transport", Options{Document: newFakeDocument(), Evaluator: newFakeEvaluator()}},
		{"missing document", Options{Transport: newFakeTransport(), Evaluator: newFakeEvaluator()}},
		{"missing evaluator", Options{Transport: newFakeTransport(), Document: newFakeDocument()}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := New(tt.opts); err == nil {
				t.Error("expected constructor error")
			}
		})
	}
}

func TestBootstrapLoadsAndMountsStartupModules(t *testing.T) {
	transport := newFakeTransport()
	transport.tree = []*ContainerConfig{
		{Name: "shell", MicroFrontEnds: []*ContainerConfig{
			{Name: "product-list"},
		}},
		{Name: "help"},
	}
	transport.details["shell"] = &MicroFrontEndConfig{Name: "shell", LoadOnInit: true}
	transport.details["product-list"] = &MicroFrontEndConfig{Name: "product-list", LoadOnInit: true}
	transport.details["help"] = &MicroFrontEndConfig{Name: "help"}

	status := &fakeStatusStore{}
	eng, doc := newTestEngine(t, transport, func(o *Options) { o.Status = status })

	if err := eng.Bootstrap(context.Background()); err != nil {
		t.Fatalf("bootstrap failed: %v", err)
	}

	if status.cleared != 1 {
		t.Errorf("status store cleared %d times, want 1", status.cleared)
	}
	tags := doc.main.tagCounts()
	for _, name := range []string{"shell", "product-list"} {
		if tags[name] != 1 {
			t.Errorf("main region has %d %s elements, want 1", tags[name], name)
		}
	}
	if tags["help"] != 0 {
		t.Error("non-startup module mounted at bootstrap")
	}
	// One loader element per successful bundle load stays attached.
	if tags["script"] != 2 {
		t.Errorf("main region has %d loader elements, want 2", tags["script"])
	}
	if eng.Registry().BundleLoaded("help") {
		t.Error("non-startup module loaded at bootstrap")
	}
	for _, name := range []string{"shell", "product-list"} {
		if !eng.Registry().BundleLoaded(name) {
			t.Errorf("startup module %s not loaded", name)
		}
	}
}

func TestBootstrapSurvivesTreeFetchFailure(t *testing.T) {
	transport := newFakeTransport()
	transport.treeErr = errors.New("config service down")

	eng, doc := newTestEngine(t, transport, nil)

	if err := eng.Bootstrap(context.Background()); err != nil {
		t.Fatalf("bootstrap returned error on tree failure: %v", err)
	}
	if got := len(doc.main.Children()); got != 0 {
		t.Errorf("main region has %d elements, want 0", got)
	}
}

func TestDetailFetchFailureIsContainedPerModule(t *testing.T) {
	transport := newFakeTransport()
	transport.tree = []*ContainerConfig{{Name: "x"}, {Name: "y"}}
	transport.details["x"] = &MicroFrontEndConfig{Name: "x", LoadOnInit: true}
	transport.detErr["y"] = errors.New("bad gateway")

	eng, _ := newTestEngine(t, transport, nil)
	if err := eng.Bootstrap(context.Background()); err != nil {
		t.Fatalf("bootstrap failed: %v", err)
	}

	if _, ok := eng.Registry().Detail("x"); !ok {
		t.Error("sibling detail configuration lost to unrelated failure")
	}
	if _, ok := eng.Registry().Detail("y"); ok {
		t.Error("failed detail configuration recorded")
	}
	if !eng.Registry().BundleLoaded("x") {
		t.Error("startup module x not loaded")
	}
}

func TestDetailConfigNormalizesNavigation(t *testing.T) {
	transport := newFakeTransport()
	transport.tree = []*ContainerConfig{{Name: "nav"}}
	transport.details["nav"] = &MicroFrontEndConfig{
		Name: "nav",
		NavigationBarItem: &NavigationBarItem{
			Title:     "Navigation",
			Route:     "/nav",
			MenuItems: []MenuItem{{Title: "Sub", Route: "/nav/sub"}},
		},
	}

	eng, _ := newTestEngine(t, transport, nil)
	eng.LoadContainerConfigurations(context.Background())
	eng.LoadMicroFrontEndConfigurations(context.Background())

	detail, ok := eng.Registry().Detail("nav")
	if !ok {
		t.Fatal("detail configuration missing")
	}
	if detail.NavigationBarItem.Route != "" {
		t.Errorf("route %q survived alongside menu items", detail.NavigationBarItem.Route)
	}
	if len(detail.NavigationBarItem.MenuItems) != 1 {
		t.Errorf("menu items lost during normalization")
	}
}

func TestLoadMicroFrontEndByName(t *testing.T) {
	transport := newFakeTransport()
	transport.tree = []*ContainerConfig{{Name: "orders"}}
	transport.details["orders"] = &MicroFrontEndConfig{Name: "orders"}

	eng, doc := newTestEngine(t, transport, nil)
	if err := eng.Bootstrap(context.Background()); err != nil {
		t.Fatalf("bootstrap failed: %v", err)
	}

	if err := eng.LoadMicroFrontEndByName(context.Background(), "orders"); err != nil {
		t.Fatalf("load by name failed: %v", err)
	}
	tags := doc.main.tagCounts()
	if tags["orders"] != 1 {
		t.Errorf("main region has %d orders elements, want 1", tags["orders"])
	}
	if tags["script"] != 1 {
		t.Errorf("main region has %d loader elements, want 1", tags["script"])
	}

	err := eng.LoadMicroFrontEndByName(context.Background(), "missing")
	if err == nil {
		t.Fatal("expected error for unknown module")
	}
	var oe *Error
	if !errors.As(err, &oe) || oe.Code != ErrCodeNotFound {
		t.Errorf("expected %s error, got %v", ErrCodeNotFound, err)
	}
}

func TestLoadMicroFrontEndByContextNotifiesSession(t *testing.T) {
	transport := newFakeTransport()
	transport.tree = []*ContainerConfig{{Name: "orders"}}
	transport.details["orders"] = &MicroFrontEndConfig{Name: "orders", Context: "order-history"}

	session := &fakeSession{}
	eng, _ := newTestEngine(t, transport, func(o *Options) { o.Session = session })
	if err := eng.Bootstrap(context.Background()); err != nil {
		t.Fatalf("bootstrap failed: %v", err)
	}

	if err := eng.LoadMicroFrontEndByContext(context.Background(), "order-history"); err != nil {
		t.Fatalf("load by context failed: %v", err)
	}
	if session.count() != 1 {
		t.Errorf("session reset %d times, want 1", session.count())
	}

	// The session is touched even when the context is unknown: any
	// routing activity counts as user activity.
	if err := eng.LoadMicroFrontEndByContext(context.Background(), "nope"); err == nil {
		t.Fatal("expected error for unknown context")
	}
	if session.count() != 2 {
		t.Errorf("session reset %d times, want 2", session.count())
	}
}

func TestBundleFailureSkipsMount(t *testing.T) {
	transport := newFakeTransport()
	transport.tree = []*ContainerConfig{{Name: "broken"}}
	transport.details["broken"] = &MicroFrontEndConfig{Name: "broken"}
	transport.bunErr["broken"] = errors.New("corrupt bundle")

	eng, doc := newTestEngine(t, transport, nil)
	if err := eng.Bootstrap(context.Background()); err != nil {
		t.Fatalf("bootstrap failed: %v", err)
	}

	if err := eng.LoadMicroFrontEndByName(context.Background(), "broken"); err == nil {
		t.Fatal("expected bundle load error")
	}
	if got := len(doc.main.Children()); got != 0 {
		t.Errorf("main region has %d elements after failed bundle, want 0", got)
	}
	if _, mounted := eng.Registry().Mounted("broken"); mounted {
		t.Error("module mounted despite bundle failure")
	}
}
