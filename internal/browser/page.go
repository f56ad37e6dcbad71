//go:build js && wasm

// Package browser adapts the checkout bootstrap to a browser page through syscall/js.
package browser

import (
	"strconv"
	"strings"
	"syscall/js"

	"github.com/noah-isme/checkout-bootstrap/internal/checkout"
)

// MountID is the id of the element the widget is mounted into.
const MountID = "payment"

// Page is the current browser document.
type Page struct {
	window js.Value
	doc    js.Value
}

// NewPage binds to the global window.
func NewPage() *Page {
	return newPage(js.Global())
}

func newPage(window js.Value) *Page {
	return &Page{window: window, doc: window.Get("document")}
}

// Settings reads the values embedded by the page host. The client key and type are text
// nodes; the presentation defaults are data attributes of the mount element and may be
// absent, in which case the bootstrap falls back to its own defaults.
func (p *Page) Settings() checkout.Settings {
	var dataset js.Value
	if mount := p.element(MountID); present(mount) {
		dataset = mount.Get("dataset")
	}
	return settingsFrom(p.text("clientKey"), p.text("type"), dataset)
}

// settingsFrom maps the mount element dataset onto checkout settings. Missing or partial
// attributes leave the matching fields unset.
func settingsFrom(clientKey, paymentType string, dataset js.Value) checkout.Settings {
	s := checkout.Settings{ClientKey: clientKey, Type: paymentType}
	if !present(dataset) {
		return s
	}
	s.Locale = stringField(dataset, "locale")
	s.Environment = stringField(dataset, "environment")
	s.CardName = stringField(dataset, "cardName")
	if currency := stringField(dataset, "amountCurrency"); currency != "" {
		value, err := strconv.ParseInt(stringField(dataset, "amountValue"), 10, 64)
		if err == nil {
			s.Amount = checkout.Amount{Value: value, Currency: currency}
		}
	}
	return s
}

// Origin returns the scheme and host of the page, used as the base for backend requests.
func (p *Page) Origin() string {
	return p.window.Get("location").Get("origin").String()
}

// Path returns the path of the current document.
func (p *Page) Path() string {
	return p.window.Get("location").Get("pathname").String()
}

// QueryParam returns a query parameter of the current document.
func (p *Page) QueryParam(name string) string {
	params := p.window.Get("URLSearchParams").New(p.window.Get("location").Get("search"))
	v := params.Call("get", name)
	if !present(v) {
		return ""
	}
	return v.String()
}

func (p *Page) MountTarget() checkout.Target {
	return p.element(MountID)
}

func (p *Page) Navigate(path string) {
	p.window.Get("location").Set("href", path)
}

func (p *Page) Alert(message string) {
	p.window.Call("alert", message)
}

func (p *Page) element(id string) js.Value {
	return p.doc.Call("getElementById", id)
}

func (p *Page) text(id string) string {
	el := p.element(id)
	if !present(el) {
		return ""
	}
	return strings.TrimSpace(el.Get("innerHTML").String())
}

func stringField(v js.Value, name string) string {
	field := v.Get(name)
	if !present(field) {
		return ""
	}
	return strings.TrimSpace(field.String())
}

func present(v js.Value) bool {
	return !v.IsNull() && !v.IsUndefined()
}
