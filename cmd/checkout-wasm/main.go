//go:build js && wasm

package main

import (
	"context"
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/noah-isme/checkout-bootstrap/internal/browser"
	"github.com/noah-isme/checkout-bootstrap/internal/checkout"
)

// Redirect return pages are served on this path by the page host.
const redirectPath = "/redirect"

func main() {
	// stdout is routed to the browser console by wasm_exec.js.
	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout, NoColor: true, TimeFormat: time.RFC3339}).
		With().Timestamp().Str("component", "checkout").Logger()

	page := browser.NewPage()
	bootstrap := (&checkout.Bootstrap{
		Settings: page.Settings(),
		Page:     page,
		SDK:      browser.NewSDK(logger),
		Poster:   checkout.NewClient(page.Origin(), 0),
	}).WithLogger(logger)

	ctx := context.Background()
	if page.Path() == redirectPath {
		_ = bootstrap.CompleteRedirect(ctx, page.QueryParam("redirectResult"))
	} else {
		_ = bootstrap.Initialize(ctx)
	}

	// Keep the runtime alive for the widget callbacks.
	select {}
}
