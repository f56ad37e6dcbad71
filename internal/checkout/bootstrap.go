package checkout

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

var nopLogger = zerolog.Nop()

// Bootstrap starts the hosted checkout widget on a page and relays its events to the backend.
// It holds no mutable state; every handler runs one request and returns.
type Bootstrap struct {
	Settings  Settings
	Page      Page
	SDK       SDK
	Poster    Poster
	SessionID string

	logger *zerolog.Logger
}

// WithLogger attaches a logger tagged with the checkout session identifier.
func (b *Bootstrap) WithLogger(logger zerolog.Logger) *Bootstrap {
	if b.SessionID == "" {
		b.SessionID = uuid.NewString()
	}
	l := logger.With().Str("checkout_session", b.SessionID).Logger()
	b.logger = &l
	return b
}

// Initialize fetches the available payment methods, builds the widget and mounts it. Any
// failure is logged and reported to the shopper through a blocking alert; nothing is retried.
func (b *Bootstrap) Initialize(ctx context.Context) error {
	if b == nil {
		return ErrNotConfigured
	}
	if err := b.start(ctx); err != nil {
		b.log().Error().Err(err).Str("type", b.Settings.Type).Msg("checkout_start_failed")
		if b.Page != nil {
			b.Page.Alert(AlertMessage)
		}
		return err
	}
	return nil
}

func (b *Bootstrap) start(ctx context.Context) error {
	if b.Page == nil || b.SDK == nil || b.Poster == nil {
		return ErrNotConfigured
	}
	methods, err := b.Poster.SendPostRequest(ctx, PaymentMethodsPath, nil)
	if err != nil {
		return fmt.Errorf("fetch payment methods: %w", err)
	}
	instance, err := b.SDK.New(ctx, b.WidgetConfig(methods))
	if err != nil {
		return fmt.Errorf("construct checkout: %w", err)
	}
	element, err := instance.Create(b.Settings.Type)
	if err != nil {
		return fmt.Errorf("create %q element: %w", b.Settings.Type, err)
	}
	if err := element.Mount(b.Page.MountTarget()); err != nil {
		return fmt.Errorf("mount %q element: %w", b.Settings.Type, err)
	}
	b.log().Info().Str("type", b.Settings.Type).Msg("checkout_mounted")
	return nil
}

// WidgetConfig assembles the configuration handed to the SDK.
func (b *Bootstrap) WidgetConfig(methods json.RawMessage) WidgetConfig {
	s := b.Settings.WithDefaults()
	return WidgetConfig{
		PaymentMethodsResponse: methods,
		ClientKey:              s.ClientKey,
		Locale:                 s.Locale,
		Environment:            s.Environment,
		ShowPayButton:          true,
		PaymentMethodsConfiguration: MethodsConfiguration{
			Card: CardConfiguration{
				HasHolderName:      true,
				HolderNameRequired: true,
				Name:               s.CardName,
				Amount:             s.Amount,
			},
		},
		OnSubmit:            b.OnSubmit,
		OnAdditionalDetails: b.OnAdditionalDetails,
	}
}

// OnSubmit forwards a valid submission to the payments endpoint. Invalid states are ignored;
// the widget keeps control and prompts the shopper again.
func (b *Bootstrap) OnSubmit(ctx context.Context, state SubmissionState, component Component) error {
	if !state.IsValid {
		return nil
	}
	return b.forward(ctx, PaymentsPath, state, component)
}

// OnAdditionalDetails forwards challenge and redirect details to the details endpoint.
func (b *Bootstrap) OnAdditionalDetails(ctx context.Context, state SubmissionState, component Component) error {
	return b.forward(ctx, PaymentDetailsPath, state, component)
}

func (b *Bootstrap) forward(ctx context.Context, path string, state SubmissionState, component Component) error {
	if b == nil || b.Poster == nil {
		return ErrNotConfigured
	}
	raw, err := b.Poster.SendPostRequest(ctx, path, state.payload())
	if err != nil {
		b.log().Error().Err(err).Str("endpoint", path).Msg("checkout_forward_failed")
		return err
	}
	resp, err := ParsePaymentResponse(raw)
	if err != nil {
		b.log().Error().Err(err).Str("endpoint", path).Msg("checkout_forward_failed")
		return fmt.Errorf("parse response from %s: %w", path, err)
	}
	b.HandleResponse(resp, component)
	return nil
}

// CompleteRedirect submits the redirectResult the shopper returned with to the details
// endpoint and routes the answer. There is no widget on the return page, so an action in the
// response cannot be rendered and the result code decides the page.
func (b *Bootstrap) CompleteRedirect(ctx context.Context, redirectResult string) error {
	if b == nil {
		return ErrNotConfigured
	}
	redirectResult = strings.TrimSpace(redirectResult)
	if redirectResult == "" {
		b.log().Warn().Msg("checkout_redirect_result_missing")
		if b.Page != nil {
			b.Page.Navigate(PageError.Path())
		}
		return ErrMissingRedirectResult
	}
	data, err := json.Marshal(redirectDetails{Details: map[string]string{"redirectResult": redirectResult}})
	if err != nil {
		return fmt.Errorf("encode redirect details: %w", err)
	}
	return b.forward(ctx, PaymentDetailsPath, SubmissionState{IsValid: true, Data: data}, nil)
}

type redirectDetails struct {
	Details map[string]string `json:"details"`
}

// HandleResponse hands a pending action back to the widget, or redirects to the result page
// matching the result code.
func (b *Bootstrap) HandleResponse(resp PaymentResponse, component Component) {
	if resp.HasAction() && component != nil {
		b.log().Info().Msg("checkout_action")
		component.HandleAction(resp.Action)
		return
	}
	page := RouteResult(resp.ResultCode)
	b.log().Info().Str("result_code", resp.ResultCode).Str("page", string(page)).Msg("checkout_redirect")
	if b != nil && b.Page != nil {
		b.Page.Navigate(page.Path())
	}
}

func (b *Bootstrap) log() *zerolog.Logger {
	if b == nil || b.logger == nil {
		return &nopLogger
	}
	return b.logger
}
