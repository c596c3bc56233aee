package wasmhost

import (
	"context"
	"sync"
	"testing"

	"github.com/rs/zerolog"

	"github.com/openmosaic/openmosaic/pkg/document"
	"github.com/openmosaic/openmosaic/pkg/orchestrator"
)

// emptyModule is the smallest valid WebAssembly binary: the magic
// number and version, no sections.
var emptyModule = []byte{0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00}

func newTestEvaluator(t *testing.T, doc orchestrator.Document) *Evaluator {
	t.Helper()

	e, err := New(context.Background(), doc, Config{}, zerolog.Nop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { _ = e.Close(context.Background()) })
	return e
}

func TestEvaluateRegistersTag(t *testing.T) {
	doc := document.New()
	e := newTestEvaluator(t, doc)

	cc := &orchestrator.ContainerConfig{Name: "cart", Version: "1.0.0"}
	if err := e.Evaluate(context.Background(), cc, emptyModule); err != nil {
		t.Fatalf("Evaluate: %v", err)
	}

	if !doc.TagRegistered("cart") {
		t.Error("tag not registered after evaluation")
	}

	el := doc.CreateElement("cart")
	if el == nil || el.TagName() != "cart" {
		t.Errorf("factory element wrong: %v", el)
	}
}

func TestEvaluateRejectsMalformedBundle(t *testing.T) {
	doc := document.New()
	e := newTestEvaluator(t, doc)

	cc := &orchestrator.ContainerConfig{Name: "cart"}
	if err := e.Evaluate(context.Background(), cc, []byte("not wasm")); err == nil {
		t.Error("malformed bundle accepted")
	}
	if doc.TagRegistered("cart") {
		t.Error("tag registered for a failed bundle")
	}
}

func TestEvaluateRejectsDuplicateTag(t *testing.T) {
	doc := document.New()
	e := newTestEvaluator(t, doc)

	cc := &orchestrator.ContainerConfig{Name: "cart"}
	if err := e.Evaluate(context.Background(), cc, emptyModule); err != nil {
		t.Fatalf("first Evaluate: %v", err)
	}

	other := newTestEvaluator(t, doc)
	if err := other.Evaluate(context.Background(), cc, emptyModule); err == nil {
		t.Error("second claim of the tag accepted")
	}
}

func TestElementBindingIsRaceFree(t *testing.T) {
	// The factory binds the element while emit_event may be reading
	// it from a guest call. Both run concurrently here so the race
	// detector can check the instance accessors.
	doc := document.New()
	e := newTestEvaluator(t, doc)

	cc := &orchestrator.ContainerConfig{Name: "cart"}
	if err := e.Evaluate(context.Background(), cc, emptyModule); err != nil {
		t.Fatalf("Evaluate: %v", err)
	}

	e.mu.RLock()
	inst := e.instances["cart"]
	e.mu.RUnlock()
	if inst == nil {
		t.Fatal("instance not recorded after evaluation")
	}

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < 200; i++ {
			doc.CreateElement("cart")
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 200; i++ {
			inst.mountedElement()
		}
	}()
	wg.Wait()

	if inst.mountedElement() == nil {
		t.Error("element not bound after mounts")
	}
}

func TestCloseIsIdempotentPerRuntime(t *testing.T) {
	e := newTestEvaluator(t, document.New())
	if err := e.Close(context.Background()); err != nil {
		t.Errorf("Close: %v", err)
	}
}
