//go:build js && wasm

package browser

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"syscall/js"

	"github.com/rs/zerolog"

	"github.com/noah-isme/checkout-bootstrap/internal/checkout"
)

// ErrSDKMissing is returned when the checkout SDK script has not defined its constructor.
var ErrSDKMissing = errors.New("browser: AdyenCheckout is not defined")

// SDK constructs widgets with the global AdyenCheckout constructor.
type SDK struct {
	Logger zerolog.Logger

	// callbacks stay referenced for the lifetime of the page.
	callbacks []js.Func
}

// NewSDK returns an SDK logging handler failures to logger.
func NewSDK(logger zerolog.Logger) *SDK {
	return &SDK{Logger: logger}
}

// New builds the native configuration object, attaches the event handlers and awaits the
// constructor.
func (s *SDK) New(ctx context.Context, cfg checkout.WidgetConfig) (checkout.Instance, error) {
	ctor := js.Global().Get("AdyenCheckout")
	if ctor.Type() != js.TypeFunction {
		return nil, ErrSDKMissing
	}
	native, err := toJS(cfg)
	if err != nil {
		return nil, fmt.Errorf("encode configuration: %w", err)
	}
	if cfg.OnSubmit != nil {
		native.Set("onSubmit", s.handler(ctx, "submit", cfg.OnSubmit))
	}
	if cfg.OnAdditionalDetails != nil {
		native.Set("onAdditionalDetails", s.handler(ctx, "additional_details", cfg.OnAdditionalDetails))
	}
	created, err := call(func() js.Value { return ctor.New(native) })
	if err != nil {
		return nil, err
	}
	instance, err := await(created)
	if err != nil {
		return nil, err
	}
	return jsInstance{v: instance}, nil
}

// handler wraps h in a JS function. The Go handler runs on its own goroutine since it
// blocks on a network round trip and JS callbacks must return immediately.
func (s *SDK) handler(ctx context.Context, event string, h checkout.EventHandler) js.Func {
	fn := js.FuncOf(func(_ js.Value, args []js.Value) any {
		var state, component js.Value
		if len(args) > 0 {
			state = args[0]
		}
		if len(args) > 1 {
			component = args[1]
		}
		submission := decodeState(state)
		go func() {
			if err := h(ctx, submission, jsComponent{v: component}); err != nil {
				s.Logger.Error().Err(err).Str("event", event).Msg("checkout_event_failed")
			}
		}()
		return nil
	})
	s.callbacks = append(s.callbacks, fn)
	return fn
}

type jsInstance struct{ v js.Value }

func (i jsInstance) Create(paymentType string) (checkout.Element, error) {
	el, err := call(func() js.Value { return i.v.Call("create", paymentType) })
	if err != nil {
		return nil, err
	}
	if !present(el) {
		return nil, fmt.Errorf("payment method %q is not available", paymentType)
	}
	return jsElement{v: el}, nil
}

type jsElement struct{ v js.Value }

func (e jsElement) Mount(target checkout.Target) error {
	node, ok := target.(js.Value)
	if !ok || !present(node) {
		return fmt.Errorf("mount target #%s not found", MountID)
	}
	_, err := call(func() js.Value { return e.v.Call("mount", node) })
	return err
}

type jsComponent struct{ v js.Value }

func (c jsComponent) HandleAction(action json.RawMessage) {
	if !present(c.v) {
		return
	}
	c.v.Call("handleAction", js.Global().Get("JSON").Call("parse", string(action)))
}

func decodeState(state js.Value) checkout.SubmissionState {
	if !present(state) {
		return checkout.SubmissionState{}
	}
	out := checkout.SubmissionState{IsValid: state.Get("isValid").Truthy()}
	if data := state.Get("data"); present(data) {
		out.Data = json.RawMessage(js.Global().Get("JSON").Call("stringify", data).String())
	}
	return out
}

func toJS(v any) (js.Value, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return js.Undefined(), err
	}
	return call(func() js.Value { return js.Global().Get("JSON").Call("parse", string(raw)) })
}

// call converts a JS exception raised by fn into an error.
func call(fn func() js.Value) (v js.Value, err error) {
	defer func() {
		if r := recover(); r != nil {
			if jsErr, ok := r.(js.Error); ok {
				err = jsErr
				return
			}
			err = fmt.Errorf("javascript: %v", r)
		}
	}()
	return fn(), nil
}

// await blocks the calling goroutine until a thenable settles. Plain values are returned as is.
func await(v js.Value) (js.Value, error) {
	if !present(v) || v.Type() != js.TypeObject || v.Get("then").Type() != js.TypeFunction {
		return v, nil
	}
	type settled struct {
		value js.Value
		err   error
	}
	done := make(chan settled, 1)
	onResolve := js.FuncOf(func(_ js.Value, args []js.Value) any {
		value := js.Undefined()
		if len(args) > 0 {
			value = args[0]
		}
		done <- settled{value: value}
		return nil
	})
	onReject := js.FuncOf(func(_ js.Value, args []js.Value) any {
		reason := "promise rejected"
		if len(args) > 0 && present(args[0]) {
			reason = args[0].Call("toString").String()
		}
		done <- settled{err: errors.New(reason)}
		return nil
	})
	defer onResolve.Release()
	defer onReject.Release()

	v.Call("then", onResolve, onReject)
	result := <-done
	return result.value, result.err
}
