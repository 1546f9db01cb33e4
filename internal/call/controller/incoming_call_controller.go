package controller

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"pizzacall/internal/domain"
	apperrors "pizzacall/internal/errors"
	"pizzacall/internal/telephony"
)

const streamPath = "/voice/stream"

type TenantRepository interface {
	FindByPhoneNumber(ctx context.Context, phoneNumber string) (*domain.Tenant, error)
}

type SignatureChecker interface {
	Valid(r *http.Request, publicURL string) bool
}

type Options struct {
	// StreamURL, when set, replaces wss://{host}/voice/stream.
	StreamURL string
	Apology   string
	SayVoice  string
	Language  string
}

type IncomingCallController struct {
	tenants   TenantRepository
	signature SignatureChecker
	opts      Options
	logger    *zap.Logger
}

// NewIncomingCallController answers Twilio's call webhook. A nil signature
// checker accepts every request.
func NewIncomingCallController(tenants TenantRepository, signature SignatureChecker, opts Options, logger *zap.Logger) *IncomingCallController {
	return &IncomingCallController{
		tenants:   tenants,
		signature: signature,
		opts:      opts,
		logger:    logger,
	}
}

// Authenticated is false whenever signature checks are disabled.
func (c *IncomingCallController) Authenticated(r *http.Request) bool {
	return c.signature != nil && c.signature.Valid(r, publicURL(r))
}

func (c *IncomingCallController) HandleIncomingCall(w http.ResponseWriter, r *http.Request) {
	traceID := uuid.New().String()
	logger := c.logger.With(zap.String("traceId", traceID))

	if err := r.ParseForm(); err != nil {
		logger.Warn("invalid webhook form", zap.Error(err))
		http.Error(w, "invalid form body", http.StatusBadRequest)
		return
	}

	if c.signature != nil && !c.signature.Valid(r, publicURL(r)) {
		logger.Warn("rejecting webhook with invalid signature")
		http.Error(w, "invalid signature", http.StatusForbidden)
		return
	}

	called := strings.TrimSpace(r.PostForm.Get("To"))
	callSID := r.PostForm.Get("CallSid")
	caller := r.PostForm.Get("From")
	logger = logger.With(zap.String("callSid", callSID), zap.String("to", called))

	if called == "" {
		logger.Warn("webhook without called number")
		c.writeApology(w, logger)
		return
	}

	tenant, err := c.tenants.FindByPhoneNumber(r.Context(), called)
	if err != nil {
		if _, ok := apperrors.IsNotFoundError(err); ok {
			logger.Warn("no pizzeria for called number")
		} else {
			logger.Error("resolving pizzeria", zap.Error(err))
		}
		c.writeApology(w, logger)
		return
	}

	doc, err := telephony.ConnectStream(c.streamURL(r),
		telephony.StreamParameter{Name: "pizzeriaId", Value: tenant.ID},
		telephony.StreamParameter{Name: "callSid", Value: callSID},
		telephony.StreamParameter{Name: "callerNumber", Value: caller},
		telephony.StreamParameter{Name: "pizzeriaName", Value: tenant.Name},
	)
	if err != nil {
		logger.Error("building stream twiml", zap.Error(err))
		c.writeApology(w, logger)
		return
	}

	logger.Info("connecting call to media stream", zap.String("pizzeriaId", tenant.ID))
	writeTwiML(w, doc)
}

func (c *IncomingCallController) writeApology(w http.ResponseWriter, logger *zap.Logger) {
	doc, err := telephony.SayAndHangup(c.opts.Apology, c.opts.SayVoice, c.opts.Language)
	if err != nil {
		logger.Error("building apology twiml", zap.Error(err))
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	writeTwiML(w, doc)
}

func (c *IncomingCallController) streamURL(r *http.Request) string {
	if c.opts.StreamURL != "" {
		return c.opts.StreamURL
	}
	return "wss://" + r.Host + streamPath
}

// publicURL rebuilds the URL Twilio signed. Behind a TLS-terminating proxy
// the scheme comes from X-Forwarded-Proto.
func publicURL(r *http.Request) string {
	scheme := "https"
	if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
		scheme = proto
	} else if r.TLS == nil {
		scheme = "http"
	}
	return scheme + "://" + r.Host + r.URL.RequestURI()
}

func writeTwiML(w http.ResponseWriter, doc string) {
	w.Header().Set("Content-Type", "text/xml")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(doc))
}
