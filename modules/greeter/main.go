//go:build wasip1

// Package main implements the greeter sample micro front-end for
// OpenMosaic. It compiles to a WASM bundle served from
// bundles/greeter/<version>/greeter.wasm and demonstrates the module
// contract: mosaic_alloc and mosaic_on_event exports for receiving
// relayed events, and the mosaic.emit_event import for publishing
// them.
//
// The module answers every relayed request event with a greeting
// response addressed back at the requesting module.
package main

import (
	"encoding/json"
	"fmt"
	"unsafe"
)

// event mirrors the host's relay event wire format.
type event struct {
	ID      string          `json:"id,omitempty"`
	Type    string          `json:"type"`
	Source  string          `json:"source,omitempty"`
	Target  string          `json:"target"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

const (
	eventTypeRequest  = "mosaic.request"
	eventTypeResponse = "mosaic.response"
	relaySuffix       = ".relayed"
)

//go:wasmimport mosaic emit_event
func emitEvent(ptr, length uint32) uint32

// eventBuffer receives host-delivered events. The host calls
// mosaic_alloc before each delivery, so the buffer is resized to fit.
var eventBuffer []byte

//go:wasmexport mosaic_alloc
func mosaicAlloc(size uint32) uint32 {
	if uint32(cap(eventBuffer)) < size {
		eventBuffer = make([]byte, size)
	}
	eventBuffer = eventBuffer[:size]
	return uint32(uintptr(unsafe.Pointer(&eventBuffer[0])))
}

//go:wasmexport mosaic_on_event
func mosaicOnEvent(ptr, length uint32) {
	var ev event
	if err := json.Unmarshal(eventBuffer[:length], &ev); err != nil {
		return
	}

	// Only original requests get an answer. Responses and already
	// relayed copies would loop forever otherwise.
	if ev.Type != eventTypeRequest+relaySuffix {
		return
	}

	greeting := fmt.Sprintf("hello from greeter, %s", ev.Source)
	payload, err := json.Marshal(map[string]string{"greeting": greeting})
	if err != nil {
		return
	}

	reply := event{
		Type:    eventTypeResponse,
		Target:  ev.Source,
		Payload: payload,
	}
	raw, err := json.Marshal(reply)
	if err != nil {
		return
	}

	emitEvent(uint32(uintptr(unsafe.Pointer(&raw[0]))), uint32(len(raw)))
}

func main() {}
