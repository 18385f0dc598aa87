package cards

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/greentic/messaging/pkg/message"
	"github.com/greentic/messaging/pkg/oauth"
)

// WarnTierDowngraded is emitted when a requested tier exceeds the
// renderer's target and is clamped down.
const WarnTierDowngraded = "tier.downgraded"

// Engine composes the platform renderers, resolves tiers, and hydrates
// OAuth cards through the broker collaborator before rendering.
type Engine struct {
	renderers map[message.Platform]Renderer
	broker    oauth.Broker
	logger    *slog.Logger
	warnings  *prometheus.CounterVec
}

// NewEngine creates an engine over the given renderers. broker may be nil
// when no OAuth cards are expected; warnings may be nil.
func NewEngine(logger *slog.Logger, broker oauth.Broker, warnings *prometheus.CounterVec, renderers ...Renderer) *Engine {
	m := make(map[message.Platform]Renderer, len(renderers))
	for _, r := range renderers {
		m[r.Platform()] = r
	}
	return &Engine{renderers: m, broker: broker, logger: logger, warnings: warnings}
}

// NewDefaultEngine creates an engine with every built-in platform renderer.
func NewDefaultEngine(logger *slog.Logger, broker oauth.Broker, warnings *prometheus.CounterVec) *Engine {
	return NewEngine(logger, broker, warnings,
		NewTeamsRenderer(),
		NewWebChatRenderer(),
		NewSlackRenderer(),
		NewTelegramRenderer(),
		NewWhatsAppRenderer(),
		NewWebexRenderer(),
	)
}

// Renderer returns the renderer registered for a platform.
func (e *Engine) Renderer(p message.Platform) (Renderer, bool) {
	r, ok := e.renderers[p]
	return r, ok
}

// Render translates an OutMessage into its platform payload. Precedence:
// adaptive_card pass-through, then message_card, then plain text.
func (e *Engine) Render(ctx context.Context, out *message.OutMessage, requested Tier) (RenderOutput, error) {
	r, ok := e.renderers[out.Platform]
	if !ok {
		return RenderOutput{}, fmt.Errorf("no renderer for platform %q", out.Platform)
	}

	var ir *IR
	switch {
	case out.Kind == message.OutCard && len(out.Adaptive) > 0:
		parsed, err := ACToIR(out.Adaptive)
		if err != nil {
			return RenderOutput{}, err
		}
		ir = parsed
		ir.Meta.AdaptivePayload = out.Adaptive
	case out.Kind == message.OutCard && out.Card != nil:
		if out.Card.Kind == message.CardOAuth {
			return e.renderAuth(ctx, r, out)
		}
		ir = FromMessageCard(out.Card)
		if len(out.Card.Adaptive) > 0 {
			ir.Meta.AdaptivePayload = out.Card.Adaptive
		}
	default:
		ir = FromText(out.Text)
	}

	if link, ok := out.Meta["app_link"]; ok {
		ir.Meta.AppLink = link
	}

	output := e.renderWithTier(r, ir, requested)
	e.recordWarnings(r.Platform(), output.Warnings)
	return output, nil
}

// renderWithTier clamps the requested tier against the renderer's target and
// records a downgrade warning ahead of the renderer's own warnings.
func (e *Engine) renderWithTier(r Renderer, ir *IR, requested Tier) RenderOutput {
	if requested == "" {
		requested = r.TargetTier()
	}
	resolved := Clamp(requested, r.TargetTier())
	ir.Meta.Tier = resolved
	ir.Meta.TargetTier = r.TargetTier()

	output := r.Render(ir)
	if resolved != requested {
		output.Warnings = append([]string{WarnTierDowngraded}, output.Warnings...)
	}
	return output
}

// renderAuth hydrates the OAuth start URL and renders the sign-in card,
// falling back to a standard card with a single open-url action when the
// platform lacks a native auth render.
func (e *Engine) renderAuth(ctx context.Context, r Renderer, out *message.OutMessage) (RenderOutput, error) {
	card := out.Card
	spec := AuthSpec{
		Provider:       card.OAuth.Provider,
		Scopes:         card.OAuth.Scopes,
		Resource:       card.OAuth.Resource,
		Prompt:         card.OAuth.Prompt,
		StartURL:       card.OAuth.StartURL,
		ConnectionName: card.OAuth.ConnectionName,
		Title:          card.Title,
	}
	if spec.Title == "" {
		spec.Title = "Sign in with " + spec.Provider
	}

	if spec.StartURL == "" {
		if e.broker == nil {
			return RenderOutput{}, fmt.Errorf("oauth card without start url and no broker configured")
		}
		res, err := e.broker.Start(ctx, oauth.StartRequest{
			Tenant:   out.Tenant,
			Provider: spec.Provider,
			Scopes:   spec.Scopes,
			Resource: spec.Resource,
			Prompt:   spec.Prompt,
		})
		if err != nil {
			return RenderOutput{}, fmt.Errorf("oauth start for %s: %w", spec.Provider, err)
		}
		spec.StartURL = res.URL
		if spec.ConnectionName == "" {
			spec.ConnectionName = res.ConnectionName
		}
	}

	if ar, ok := r.(AuthRenderer); ok {
		payload, err := ar.RenderAuth(spec)
		if err == nil {
			return RenderOutput{Payload: payload}, nil
		}
		e.logger.Warn("native auth render failed, falling back to open-url card",
			"platform", r.Platform(), "error", err)
	}

	fallback := &IR{
		Head:    Head{Title: spec.Title, Text: card.Text},
		Actions: []Action{OpenURL(spec.Title, spec.StartURL)},
	}
	output := e.renderWithTier(r, fallback, "")
	e.recordWarnings(r.Platform(), output.Warnings)
	return output, nil
}

func (e *Engine) recordWarnings(platform message.Platform, warnings []string) {
	if e.warnings == nil {
		return
	}
	for _, w := range warnings {
		e.warnings.WithLabelValues(string(platform), w).Inc()
	}
}
