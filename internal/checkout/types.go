package checkout

import (
	"bytes"
	"context"
	"encoding/json"
)

// Backend endpoints consumed by the bootstrap. All of them accept and return JSON over POST.
const (
	PaymentMethodsPath = "/api/paymentMethods"
	PaymentsPath       = "/api/payments"
	PaymentDetailsPath = "/api/payments/details"
)

// AlertMessage is shown to the shopper when the widget cannot be started.
const AlertMessage = "Error occurred. Look at console for details."

// Amount is a minor-unit value paired with an ISO currency code.
type Amount struct {
	Value    int64  `json:"value"`
	Currency string `json:"currency"`
}

// Settings holds the page-embedded values read once at load time. Only ClientKey and Type
// come from the page; the remaining fields default to the values the widget has always been
// configured with.
type Settings struct {
	ClientKey   string
	Type        string
	Locale      string
	Environment string
	Amount      Amount
	CardName    string
}

// DefaultSettings returns the fixed widget presentation values.
func DefaultSettings() Settings {
	return Settings{
		Locale:      "en_US",
		Environment: "test",
		Amount:      Amount{Value: 9999, Currency: "EUR"},
		CardName:    "Credit or debit card",
	}
}

// WithDefaults fills every unset presentation value from DefaultSettings.
func (s Settings) WithDefaults() Settings {
	def := DefaultSettings()
	if s.Locale == "" {
		s.Locale = def.Locale
	}
	if s.Environment == "" {
		s.Environment = def.Environment
	}
	if s.Amount.Currency == "" {
		s.Amount = def.Amount
	}
	if s.CardName == "" {
		s.CardName = def.CardName
	}
	return s
}

// SubmissionState is raised by the widget on submit and on additional details.
type SubmissionState struct {
	IsValid bool            `json:"isValid"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// payload returns the value to post, or nil when the widget supplied no data so the request
// goes out with an empty body.
func (s SubmissionState) payload() any {
	if len(bytes.TrimSpace(s.Data)) == 0 {
		return nil
	}
	return s.Data
}

// PaymentResponse is the subset of a backend payment response the bootstrap acts on.
type PaymentResponse struct {
	Action     json.RawMessage
	ResultCode string
}

// HasAction reports whether the backend asked the widget to render another step.
func (r PaymentResponse) HasAction() bool {
	trimmed := bytes.TrimSpace(r.Action)
	return len(trimmed) > 0 && !bytes.Equal(trimmed, []byte("null"))
}

// ParsePaymentResponse extracts the action and result code from a raw JSON document. A
// document that is not an object, or a resultCode that is not a string, yields an empty
// result code rather than an error.
func ParsePaymentResponse(raw json.RawMessage) (PaymentResponse, error) {
	if !json.Valid(raw) {
		return PaymentResponse{}, ErrMalformedResponse
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return PaymentResponse{}, nil
	}
	resp := PaymentResponse{Action: fields["action"]}
	if code, ok := fields["resultCode"]; ok {
		var s string
		if err := json.Unmarshal(code, &s); err == nil {
			resp.ResultCode = s
		}
	}
	return resp, nil
}

// CardConfiguration is the card-specific section of the widget configuration.
type CardConfiguration struct {
	HasHolderName      bool   `json:"hasHolderName"`
	HolderNameRequired bool   `json:"holderNameRequired"`
	Name               string `json:"name"`
	Amount             Amount `json:"amount"`
}

// MethodsConfiguration groups per payment method settings.
type MethodsConfiguration struct {
	Card CardConfiguration `json:"card"`
}

// EventHandler receives a widget event together with the component that raised it.
type EventHandler func(ctx context.Context, state SubmissionState, component Component) error

// WidgetConfig is handed to the SDK constructor. The handlers are not serialised; adapters
// attach them to the native configuration object themselves.
type WidgetConfig struct {
	PaymentMethodsResponse      json.RawMessage      `json:"paymentMethodsResponse"`
	ClientKey                   string               `json:"clientKey"`
	Locale                      string               `json:"locale"`
	Environment                 string               `json:"environment"`
	ShowPayButton               bool                 `json:"showPayButton"`
	PaymentMethodsConfiguration MethodsConfiguration `json:"paymentMethodsConfiguration"`

	OnSubmit            EventHandler `json:"-"`
	OnAdditionalDetails EventHandler `json:"-"`
}

// Target is an opaque handle on the page region the widget mounts into.
type Target any

// Page is the browsing context hosting the widget.
type Page interface {
	// MountTarget returns the element the widget is attached to.
	MountTarget() Target
	// Navigate replaces the current document with path.
	Navigate(path string)
	// Alert shows a blocking notification.
	Alert(message string)
}

// SDK constructs checkout instances from a configuration.
type SDK interface {
	New(ctx context.Context, cfg WidgetConfig) (Instance, error)
}

// Instance is a configured checkout able to create payment method elements.
type Instance interface {
	Create(paymentType string) (Element, error)
}

// Element is a UI element that can be attached to a page region.
type Element interface {
	Mount(target Target) error
}

// Component is the widget instance that raised an event.
type Component interface {
	HandleAction(action json.RawMessage)
}

// Poster sends JSON POST requests and returns the decoded body.
type Poster interface {
	SendPostRequest(ctx context.Context, url string, data any) (json.RawMessage, error)
}
