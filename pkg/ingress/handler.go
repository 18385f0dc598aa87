// Package ingress exposes the per-platform HTTP endpoints that normalize,
// verify, deduplicate, and publish inbound events.
package ingress

import (
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/greentic/messaging/internal/telemetry"
	"github.com/greentic/messaging/pkg/bus"
	"github.com/greentic/messaging/pkg/idempotency"
	"github.com/greentic/messaging/pkg/message"
	"github.com/greentic/messaging/pkg/ratelimit"
	"github.com/greentic/messaging/pkg/subject"
)

// maxBody bounds inbound webhook bodies.
const maxBody = 1 << 20

// Options configures a Gateway.
type Options struct {
	Env         string
	DefaultTeam string
	Verify      VerifyConfig
	RateLimit   ratelimit.Limit
	// TTL is the idempotency window communicated to operators via config;
	// the guard's store owns enforcement.
	TTL time.Duration
}

// Gateway is the ingress HTTP surface. One instance serves every platform;
// platform and tenant arrive as URL parameters.
type Gateway struct {
	opts        Options
	logger      *slog.Logger
	publisher   bus.Publisher
	guard       *idempotency.Guard
	limiter     *ratelimit.Limiter
	normalizers map[message.Platform]Normalizer
}

// NewGateway creates the ingress gateway with every built-in normalizer.
func NewGateway(opts Options, logger *slog.Logger, publisher bus.Publisher, guard *idempotency.Guard) *Gateway {
	g := &Gateway{
		opts:        opts,
		logger:      logger,
		publisher:   publisher,
		guard:       guard,
		limiter:     ratelimit.NewLimiter(opts.RateLimit),
		normalizers: make(map[message.Platform]Normalizer),
	}
	for _, n := range []Normalizer{
		NewSlackNormalizer(),
		NewTeamsNormalizer(),
		NewTelegramNormalizer(),
		NewWhatsAppNormalizer(),
		NewWebexNormalizer(),
		NewWebChatNormalizer(),
	} {
		g.normalizers[n.Platform()] = n
	}
	return g
}

// Routes mounts the ingress endpoints.
func (g *Gateway) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(RequestID)
	r.Use(middleware.Recoverer)
	r.Post("/{platform}/{tenant}", g.handleEvent)
	return r
}

// handleEvent runs the fixed ingress pipeline: verify → rate limit → parse →
// normalize → dedupe → publish → ack.
func (g *Gateway) handleEvent(w http.ResponseWriter, r *http.Request) {
	requestID := RequestIDFrom(r.Context())

	platform, err := message.ParsePlatform(chi.URLParam(r, "platform"))
	if err != nil {
		g.finish(w, "unknown", http.StatusBadRequest, "unsupported platform")
		return
	}
	tenant := chi.URLParam(r, "tenant")
	if tenant == "" {
		g.finish(w, string(platform), http.StatusBadRequest, "missing tenant")
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBody))
	if err != nil {
		g.finish(w, string(platform), http.StatusBadRequest, "unreadable body")
		return
	}

	if err := g.verify(platform, r, body); err != nil {
		g.finish(w, string(platform), http.StatusUnauthorized, "unauthorized")
		return
	}

	if !g.limiter.Allow(ClientIP(r)) {
		telemetry.RateLimitRejectionsTotal.WithLabelValues("ingress").Inc()
		g.finish(w, string(platform), http.StatusTooManyRequests, "rate limit exceeded")
		return
	}

	normalizer, ok := g.normalizers[platform]
	if !ok {
		g.finish(w, string(platform), http.StatusBadRequest, "unsupported platform")
		return
	}

	envelope, immediate, err := normalizer.Normalize(tenant, body)
	if err != nil {
		g.logger.Debug("normalization failed", "platform", platform, "error", err)
		g.finish(w, string(platform), http.StatusBadRequest, "invalid payload")
		return
	}
	if immediate != nil {
		telemetry.IngressRequestsTotal.WithLabelValues(string(platform), strconv.Itoa(immediate.Status)).Inc()
		Respond(w, immediate.Status, immediate.Body)
		return
	}

	if err := envelope.Validate(); err != nil {
		g.logger.Debug("envelope validation failed", "platform", platform, "error", err)
		g.finish(w, string(platform), http.StatusBadRequest, "invalid payload")
		return
	}

	if g.guard.SeenOrMark(r.Context(), envelope.Tenant, string(platform), envelope.ChatID, envelope.MsgID) {
		telemetry.IngressDuplicatesTotal.WithLabelValues(string(platform)).Inc()
		telemetry.IngressRequestsTotal.WithLabelValues(string(platform), "202").Inc()
		Ack202(w, requestID)
		return
	}

	subj := subject.Ingress(g.opts.Env, envelope.Tenant, g.opts.DefaultTeam, string(platform))
	if err := g.publisher.Publish(r.Context(), subj, envelope); err != nil {
		g.logger.Error("publish failed", "subject", subj, "error", err)
		g.finish(w, string(platform), http.StatusInternalServerError, "publish failed")
		return
	}

	g.logger.Info("event admitted",
		"platform", platform,
		"tenant", envelope.Tenant,
		"chat_id", envelope.ChatID,
		"msg_id", envelope.MsgID,
		"request_id", requestID,
	)
	telemetry.IngressRequestsTotal.WithLabelValues(string(platform), "202").Inc()
	Ack202(w, requestID)
}

// verify applies the configured checks in order: bearer, then signature.
// Absent configuration skips a check.
func (g *Gateway) verify(platform message.Platform, r *http.Request, body []byte) error {
	cfg := g.opts.Verify

	if cfg.Bearer != "" {
		if err := VerifyBearer(cfg.Bearer, r.Header.Get("Authorization")); err != nil {
			return err
		}
	}

	if cfg.HMACSecret == "" {
		return nil
	}

	if platform == message.PlatformWebex {
		header := cfg.WebexHeader
		if header == "" {
			header = "X-Webex-Signature"
		}
		return VerifyHexSignature(cfg.HMACSecret, cfg.WebexAlgo, body, r.Header.Get(header))
	}

	header := cfg.HMACHeader
	if header == "" {
		header = "x-signature"
	}
	return VerifyHMACBase64(cfg.HMACSecret, body, r.Header.Get(header))
}

func (g *Gateway) finish(w http.ResponseWriter, platform string, status int, msg string) {
	telemetry.IngressRequestsTotal.WithLabelValues(platform, strconv.Itoa(status)).Inc()
	RespondError(w, status, msg)
}
