package web

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/noah-isme/checkout-bootstrap/internal/checkout"
	"github.com/noah-isme/checkout-bootstrap/internal/obs"
)

//go:embed templates/*.html
var templateFS embed.FS

var pageNames = []string{"index.html", "preview.html", "checkout.html", "redirect.html", "result.html"}

// PageConfig carries the values embedded into the rendered pages.
type PageConfig struct {
	ClientKey    string
	Defaults     checkout.Settings
	SDKScriptURL string
	SDKStyleURL  string
	PaymentTypes []string
}

// Pages renders the shopper-facing pages. It holds no payment logic; the checkout page only
// embeds the values the browser bootstrap reads at load time.
type Pages struct {
	Config  PageConfig
	Metrics *obs.CheckoutMetrics
	Logger  zerolog.Logger

	templates map[string]*template.Template
}

// NewPages parses the embedded templates.
func NewPages(cfg PageConfig, metrics *obs.CheckoutMetrics, logger zerolog.Logger) (*Pages, error) {
	templates := make(map[string]*template.Template, len(pageNames))
	for _, name := range pageNames {
		tmpl, err := template.ParseFS(templateFS, "templates/"+name, "templates/base.html")
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", name, err)
		}
		templates[name] = tmpl
	}
	return &Pages{Config: cfg, Metrics: metrics, Logger: logger, templates: templates}, nil
}

type pageData struct {
	Title        string
	SDKScriptURL string
	SDKStyleURL  string

	PaymentTypes []string
	Type         string
	Amount       string

	ClientKey      string
	Locale         string
	Environment    string
	AmountValue    int64
	AmountCurrency string
	CardName       string

	Outcome string
	Heading string
	Message string
	Reason  string
}

var resultCopy = map[checkout.ResultPage][2]string{
	checkout.PageSuccess: {"Payment successful", "Your order has been placed."},
	checkout.PagePending: {"Payment pending", "We have received your order and will confirm the payment shortly."},
	checkout.PageFailed:  {"Payment refused", "The payment was refused. Try another payment method."},
	checkout.PageError:   {"Something went wrong", "The payment could not be completed."},
}

// Index lists the configured payment method types.
func (p *Pages) Index(w http.ResponseWriter, r *http.Request) {
	p.render(w, "index.html", p.base("Checkout"), func(d *pageData) {
		d.PaymentTypes = p.Config.PaymentTypes
	})
}

// Preview shows the cart for a payment method type.
func (p *Pages) Preview(w http.ResponseWriter, r *http.Request) {
	paymentType, ok := requiredType(w, r)
	if !ok {
		return
	}
	p.render(w, "preview.html", p.base("Cart"), func(d *pageData) {
		d.Type = paymentType
		d.Amount = formatAmount(p.defaults().Amount)
	})
}

// Checkout renders the page hosting the widget. The client key and type are embedded as
// text nodes and the widget presentation defaults as data attributes of the mount element.
func (p *Pages) Checkout(w http.ResponseWriter, r *http.Request) {
	paymentType, ok := requiredType(w, r)
	if !ok {
		return
	}
	s := p.defaults()
	p.render(w, "checkout.html", p.base("Checkout"), func(d *pageData) {
		d.ClientKey = p.Config.ClientKey
		d.Type = paymentType
		d.Locale = s.Locale
		d.Environment = s.Environment
		d.AmountValue = s.Amount.Value
		d.AmountCurrency = s.Amount.Currency
		d.CardName = s.CardName
	})
}

// Redirect renders the page shoppers return to from an external payment step.
func (p *Pages) Redirect(w http.ResponseWriter, r *http.Request) {
	p.render(w, "redirect.html", p.base("Checkout"), func(d *pageData) {
		d.ClientKey = p.Config.ClientKey
	})
}

// Result renders one of the fixed result pages. Unknown outcomes get the error page.
func (p *Pages) Result(w http.ResponseWriter, r *http.Request) {
	page := checkout.ParseResultPage(chi.URLParam(r, "type"))
	if p.Metrics != nil {
		p.Metrics.ResultViews.WithLabelValues(string(page)).Inc()
	}
	text := resultCopy[page]
	p.render(w, "result.html", p.base(text[0]), func(d *pageData) {
		d.Outcome = string(page)
		d.Heading = text[0]
		d.Message = text[1]
		d.Reason = strings.TrimSpace(r.URL.Query().Get("reason"))
	})
}

func (p *Pages) base(title string) pageData {
	return pageData{
		Title:        title,
		SDKScriptURL: p.Config.SDKScriptURL,
		SDKStyleURL:  p.Config.SDKStyleURL,
	}
}

func (p *Pages) defaults() checkout.Settings {
	return p.Config.Defaults.WithDefaults()
}

// render executes into a buffer so a template failure never leaves a half-written page.
func (p *Pages) render(w http.ResponseWriter, name string, data pageData, fill func(*pageData)) {
	fill(&data)
	tmpl, ok := p.templates[name]
	if !ok {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, name, data); err != nil {
		p.Logger.Error().Err(err).Str("page", name).Msg("render_page_failed")
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}

func requiredType(w http.ResponseWriter, r *http.Request) (string, bool) {
	paymentType := strings.TrimSpace(r.URL.Query().Get("type"))
	if paymentType == "" {
		http.Error(w, "missing type parameter", http.StatusBadRequest)
		return "", false
	}
	return paymentType, true
}

func formatAmount(a checkout.Amount) string {
	sign := ""
	value := a.Value
	if value < 0 {
		sign = "-"
		value = -value
	}
	return fmt.Sprintf("%s%d.%02d %s", sign, value/100, value%100, a.Currency)
}
