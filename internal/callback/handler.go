// Package callback processes OAuth redirects: it redeems the authorization code at
// most once per page instance and renders the outcome.
package callback

import (
	"context"
	"net/url"
	"sync"
	"sync/atomic"

	slogctx "github.com/veqryn/slog-context"

	"github.com/waabox/ghlconnect/internal/domain"
)

// Messages shown on the callback page.
const (
	MsgProcessing     = "Processing OAuth callback..."
	MsgMissingCode    = "No authorization code received"
	MsgSuccess        = "Successfully obtained tokens!"
	MsgExchangeFailed = "Failed to exchange authorization code"
	MsgNoParams       = "No parameters received."
	MsgParamsReceived = "Parameters received."
)

// Outcome is a snapshot of what the callback page shows.
type Outcome struct {
	Status  domain.ViewStatus
	Message string
	// Detail carries the provider's error/error_description parameters, if any.
	Detail string
	Params url.Values
	// Tokens is set only on a successful exchange.
	Tokens *domain.TokenPayload
}

// Terminal reports whether the outcome will no longer change.
func (o Outcome) Terminal() bool {
	return o.Status != domain.StatusLoading
}

// Handler is the controller for one callback page instance.
// Handle may be called any number of times, from any goroutine; only the first call
// does work. The latch is set before any I/O and never reset, so at most one
// exchange is issued even when the exchange fails.
type Handler struct {
	exchanger   domain.TokenExchanger
	params      url.Values
	redirectURI string
	onDone      func(Outcome)

	handled atomic.Bool

	mu      sync.Mutex
	outcome Outcome
}

// NewHandler creates a handler for the given query parameters.
// A nil exchanger selects display-only mode: the parameters are shown and no
// network call is made.
func NewHandler(exchanger domain.TokenExchanger, params url.Values, redirectURI string) *Handler {
	return newHandler(exchanger, params, redirectURI, nil)
}

func newHandler(exchanger domain.TokenExchanger, params url.Values, redirectURI string, onDone func(Outcome)) *Handler {
	return &Handler{
		exchanger:   exchanger,
		params:      cloneValues(params),
		redirectURI: redirectURI,
		onDone:      onDone,
		outcome: Outcome{
			Status:  domain.StatusLoading,
			Message: MsgProcessing,
		},
	}
}

// Handle processes the redirect on the first call and returns the current outcome.
// Later calls return immediately with a snapshot, which is StatusLoading while the
// first call's exchange is still in flight.
func (h *Handler) Handle(ctx context.Context) Outcome {
	if !h.handled.CompareAndSwap(false, true) {
		return h.Outcome()
	}

	code := h.params.Get("code")
	state := h.params.Get("state")
	detail := providerError(h.params)
	if detail != "" {
		slogctx.Warn(ctx, "provider redirected with an error", "detail", detail)
	}

	if h.exchanger == nil {
		msg := MsgParamsReceived
		if len(h.params) == 0 {
			msg = MsgNoParams
		}
		return h.finish(Outcome{Status: domain.StatusSuccess, Message: msg, Detail: detail, Params: h.params})
	}

	if code == "" {
		slogctx.Info(ctx, "callback without authorization code")
		return h.finish(Outcome{Status: domain.StatusError, Message: MsgMissingCode, Detail: detail, Params: h.params})
	}

	slogctx.Info(ctx, "exchanging authorization code", "state", state, "redirectUri", h.redirectURI)
	tokens, err := h.exchanger.ExchangeToken(ctx, domain.ExchangeRequest{
		Code:        code,
		State:       state,
		RedirectURI: h.redirectURI,
	})
	if err != nil {
		slogctx.Error(ctx, "token exchange failed", "error", err)
		return h.finish(Outcome{
			Status:  domain.StatusError,
			Message: domain.MessageOr(err, MsgExchangeFailed),
			Detail:  detail,
			Params:  h.params,
		})
	}
	slogctx.Info(ctx, "token exchange succeeded", "locationId", tokens.LocationID, "companyId", tokens.CompanyID)
	return h.finish(Outcome{Status: domain.StatusSuccess, Message: MsgSuccess, Params: h.params, Tokens: &tokens})
}

// Outcome returns the current snapshot without triggering any work.
func (h *Handler) Outcome() Outcome {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.outcome
}

func (h *Handler) finish(o Outcome) Outcome {
	h.mu.Lock()
	h.outcome = o
	h.mu.Unlock()
	if h.onDone != nil {
		h.onDone(o)
	}
	return o
}

// providerError formats the error parameters an authorization server adds when
// the user denies access.
func providerError(params url.Values) string {
	e := params.Get("error")
	if e == "" {
		return ""
	}
	if desc := params.Get("error_description"); desc != "" {
		return e + ": " + desc
	}
	return e
}

func cloneValues(v url.Values) url.Values {
	out := make(url.Values, len(v))
	for k, vals := range v {
		out[k] = append([]string(nil), vals...)
	}
	return out
}
