package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"pizzacall/internal/dialogue"
	"pizzacall/internal/domain"
	apperrors "pizzacall/internal/errors"
	"pizzacall/internal/infrastructure/logger"
	"pizzacall/internal/script"
	"pizzacall/internal/stream"
)

const hangupTimeout = 5 * time.Second

type CatalogLoader interface {
	Load(ctx context.Context, tenantID string) (domain.CatalogSnapshot, error)
}

type OrderCommitter interface {
	Commit(ctx context.Context, tenantID string, req domain.OrderCommitRequest) (*domain.Order, error)
}

// Registry guarantees at most one live session per call id, possibly across
// instances.
type Registry interface {
	Acquire(ctx context.Context, callID string) (bool, error)
	Release(ctx context.Context, callID string) error
}

type Options struct {
	EngineStartTimeout time.Duration
	CatalogLoadTimeout time.Duration
	ToolTimeout        time.Duration
	MaxCallDuration    time.Duration
	FarewellTimeout    time.Duration
	InboundQueueSize   int
	BrowserInputRate   int
	BrowserOutputRate  int
}

type Handler struct {
	catalog  CatalogLoader
	engine   dialogue.Engine
	orders   OrderCommitter
	calls    CallEnder
	registry Registry
	script   *script.Script
	opts     Options
	logger   *zap.Logger
}

func NewHandler(
	catalog CatalogLoader,
	engine dialogue.Engine,
	orders OrderCommitter,
	calls CallEnder,
	registry Registry,
	script *script.Script,
	opts Options,
	logger *zap.Logger,
) *Handler {
	if opts.InboundQueueSize < 1 {
		opts.InboundQueueSize = 1
	}
	defaults := map[*time.Duration]time.Duration{
		&opts.EngineStartTimeout: 10 * time.Second,
		&opts.CatalogLoadTimeout: 5 * time.Second,
		&opts.ToolTimeout:        8 * time.Second,
		&opts.FarewellTimeout:    10 * time.Second,
	}
	for d, def := range defaults {
		if *d <= 0 {
			*d = def
		}
	}
	return &Handler{
		catalog:  catalog,
		engine:   engine,
		orders:   orders,
		calls:    calls,
		registry: registry,
		script:   script,
		opts:     opts,
		logger:   logger,
	}
}

type inbound struct {
	msg stream.Message
	err error
}

type toolOutcome struct {
	requestID string
	order     *domain.Order
	err       error
}

// Serve runs one call over conn until it completes or fails. It returns the
// final state; the connection is closed on return.
func (h *Handler) Serve(ctx context.Context, conn Transport) State {
	ctx, cancel := context.WithCancel(ctx)

	var wg sync.WaitGroup
	defer wg.Wait()
	defer conn.Close()
	defer cancel()

	frames := make(chan inbound, h.opts.InboundQueueSize)
	wg.Add(1)
	go func() {
		defer wg.Done()
		h.read(ctx, conn, frames)
	}()

	// Bloque 1: esperar el evento start
	start, ok := h.awaitStart(ctx, conn, frames)
	if !ok {
		return StateFailed
	}

	callID := start.CallID
	if callID == "" {
		callID = uuid.New().String()
	}
	log := logger.ForCall(h.logger, callID, start.TenantID).With(zap.Stringer("variant", start.Variant()))

	acquired, err := h.registry.Acquire(ctx, callID)
	if err != nil {
		log.Error("acquiring call registration", zap.Error(err))
		return StateFailed
	}
	if !acquired {
		log.Warn("a session is already active for this call")
		return StateFailed
	}
	defer func() {
		if err := h.registry.Release(context.WithoutCancel(ctx), callID); err != nil {
			log.Warn("releasing call registration", zap.Error(err))
		}
	}()

	cs := newCallSession(start, callID, log)
	leg := h.newLeg(conn, start, callID)

	run := &callRun{
		h:       h,
		session: cs,
		leg:     leg,
		frames:  frames,
		start:   start,
		logger:  log,
	}
	run.serve(ctx)

	log.Info("call finished",
		zap.Stringer("state", cs.State()),
		zap.Duration("duration", time.Since(cs.startedAt)),
		zap.Int("utterances", len(cs.transcript)),
	)
	return cs.State()
}

func (h *Handler) newLeg(conn Transport, start stream.Start, callID string) CallerLeg {
	if start.Variant() == stream.VariantTelephony {
		return &telephonyLeg{conn: conn, streamSID: start.StreamSID, callSID: callID, calls: h.calls}
	}
	return &browserLeg{conn: conn, inputRate: h.opts.BrowserInputRate, outputRate: h.opts.BrowserOutputRate}
}

// read pushes parsed frames into out. Media is dropped rather than blocking
// when the queue is full; every other frame waits for room. A start event
// that cannot open the call ends reading while no call has started yet.
func (h *Handler) read(ctx context.Context, conn Transport, out chan<- inbound) {
	started := false
	for {
		data, err := conn.ReadFrame()
		if err != nil {
			select {
			case out <- inbound{err: err}:
			case <-ctx.Done():
			}
			return
		}

		msg, err := stream.Parse(data)
		if err != nil {
			if _, invalidStart := stream.IsInvalidStart(err); invalidStart && !started {
				select {
				case out <- inbound{err: err}:
				case <-ctx.Done():
				}
				return
			}
			h.logger.Warn("dropping inbound frame", zap.Error(err))
			continue
		}
		if _, isStart := msg.(stream.Start); isStart {
			started = true
		}

		if _, isMedia := msg.(stream.Media); isMedia {
			select {
			case out <- inbound{msg: msg}:
			default:
				h.logger.Warn("inbound queue full, dropping media frame")
			}
			continue
		}

		select {
		case out <- inbound{msg: msg}:
		case <-ctx.Done():
			return
		}
	}
}

func (h *Handler) awaitStart(ctx context.Context, conn Transport, frames <-chan inbound) (stream.Start, bool) {
	for {
		select {
		case <-ctx.Done():
			return stream.Start{}, false
		case in := <-frames:
			if ise, ok := stream.IsInvalidStart(in.err); ok {
				h.rejectStart(ctx, conn, ise)
				return stream.Start{}, false
			}
			if in.err != nil {
				if !stream.IsClosure(in.err) {
					h.logger.Warn("stream closed before start", zap.Error(in.err))
				}
				return stream.Start{}, false
			}

			switch msg := in.msg.(type) {
			case stream.Start:
				return msg, true
			case stream.Stop:
				h.logger.Info("stream stopped before start")
				return stream.Start{}, false
			case stream.Connected:
				h.logger.Debug("media stream connected")
			default:
				h.logger.Debug("ignoring frame before start", zap.String("frame", fmt.Sprintf("%T", msg)))
			}
		}
	}
}

// rejectStart apologises through whatever leg the invalid start still
// identifies. A telephony start without a call sid cannot be reached out of
// band; closing the stream ends its <Connect> and with it the call.
func (h *Handler) rejectStart(ctx context.Context, conn Transport, ise *stream.InvalidStartError) {
	partial := ise.Start
	log := h.logger.With(zap.String("callSid", partial.CallID), zap.String("streamSid", partial.StreamSID))
	log.Warn("rejecting start event", zap.String("reason", ise.Reason))

	if partial.Variant() == stream.VariantTelephony && partial.CallID == "" {
		return
	}

	hangupCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), hangupTimeout)
	defer cancel()
	if err := h.newLeg(conn, partial, partial.CallID).Hangup(hangupCtx, h.script.Apologies.Unavailable); err != nil {
		log.Warn("hanging up rejected call", zap.Error(err))
	}
}

// callRun holds what one started call needs while it streams.
type callRun struct {
	h       *Handler
	session *CallSession
	leg     CallerLeg
	frames  <-chan inbound
	start   stream.Start
	logger  *zap.Logger

	engine   dialogue.Session
	controls chan dialogue.Event
	legErrs  chan error
	tools    chan toolOutcome

	// dispatchCtx ends with the call; in-flight commits are abandoned.
	dispatchCtx context.Context
	dispatches  sync.WaitGroup
}

func (r *callRun) serve(ctx context.Context) {
	h := r.h

	// Bloque 2: cargar el catálogo una sola vez
	loadCtx, cancelLoad := context.WithTimeout(ctx, h.opts.CatalogLoadTimeout)
	snapshot, err := h.catalog.Load(loadCtx, r.session.tenantID)
	if errors.Is(err, context.DeadlineExceeded) {
		err = apperrors.NewTimeoutError("catalog load", h.opts.CatalogLoadTimeout)
	}
	cancelLoad()
	if err != nil {
		r.logger.Error("loading catalog", zap.Error(err))
		r.fail(ctx, h.script.Apologies.Unavailable)
		return
	}
	r.session.catalog = snapshot

	// Bloque 3: abrir la sesión del motor de diálogo
	pizzeria := r.start.PizzeriaName
	if pizzeria == "" {
		pizzeria = h.script.PizzeriaLabel
	}
	startCtx, cancelStart := context.WithTimeout(ctx, h.opts.EngineStartTimeout)
	engine, err := h.engine.Start(startCtx, dialogue.StartRequest{
		CallID:           r.session.callID,
		TenantID:         r.session.tenantID,
		PizzeriaName:     pizzeria,
		Catalog:          snapshot,
		Tools:            dialogue.OrderTools(),
		InputFormat:      r.leg.InputFormat(),
		OutputSampleRate: r.leg.OutputSampleRate(),
	})
	if errors.Is(err, context.DeadlineExceeded) {
		err = apperrors.NewTimeoutError("engine start", h.opts.EngineStartTimeout)
	}
	cancelStart()
	if err != nil {
		r.logger.Error("starting dialogue engine", zap.Error(err))
		r.fail(ctx, h.script.Apologies.EngineFailure)
		return
	}
	r.engine = engine
	defer func() {
		if err := engine.End(); err != nil {
			r.logger.Warn("ending dialogue session", zap.Error(err))
		}
	}()

	if err := r.session.transition(StateStreaming); err != nil {
		r.logger.Error("entering streaming", zap.Error(err))
		return
	}

	r.controls = make(chan dialogue.Event, 8)
	r.legErrs = make(chan error, 1)
	r.tools = make(chan toolOutcome, 1)

	dispatchCtx, abandonDispatches := context.WithCancel(ctx)
	r.dispatchCtx = dispatchCtx
	defer func() {
		abandonDispatches()
		r.dispatches.Wait()
	}()

	relayCtx, stopRelay := context.WithCancel(ctx)
	relayDone := make(chan struct{})
	go func() {
		defer close(relayDone)
		r.relay(relayCtx)
	}()
	defer func() {
		stopRelay()
		engine.End()
		<-relayDone
	}()

	r.loop(ctx)
}

// relay writes engine speech to the caller as it arrives and hands every
// other event to the control loop.
func (r *callRun) relay(ctx context.Context) {
	defer close(r.controls)

	for ev := range r.engine.Events() {
		var err error
		switch ev.Kind {
		case dialogue.EventText:
			err = r.leg.SendText(ev.Text)
		case dialogue.EventAudio:
			err = r.leg.SendAudio(ev.Audio)
		case dialogue.EventCallerTranscript:
			err = r.leg.Interrupt()
		}
		if err != nil {
			select {
			case r.legErrs <- err:
			default:
			}
			return
		}
		if ev.Kind == dialogue.EventAudio {
			continue
		}

		select {
		case r.controls <- ev:
		case <-ctx.Done():
			return
		}
	}
}

func (r *callRun) loop(ctx context.Context) {
	h := r.h

	var timeLimit <-chan time.Time
	if h.opts.MaxCallDuration > 0 {
		timer := time.NewTimer(h.opts.MaxCallDuration)
		defer timer.Stop()
		timeLimit = timer.C
	}

	var (
		controls     = r.controls
		farewell     <-chan time.Time
		awaitingMark bool
		agentSpoke   bool
	)

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("session cancelled")
			r.session.transition(StateFailed)
			return

		case in := <-r.frames:
			if in.err != nil {
				if awaitingMark {
					r.complete(ctx, "")
					return
				}
				if stream.IsClosure(in.err) {
					r.session.transition(StateCompleted)
					return
				}
				r.logger.Warn("stream transport failed", zap.Error(in.err))
				r.session.transition(StateFailed)
				return
			}

			switch msg := in.msg.(type) {
			case stream.Media:
				if err := r.engine.ForwardAudio(ctx, msg.Payload); err != nil {
					if errors.Is(err, dialogue.ErrSessionClosed) {
						continue
					}
					r.logger.Error("forwarding caller audio", zap.Error(err))
					r.fail(ctx, h.script.Apologies.EngineFailure)
					return
				}
			case stream.Stop:
				r.logger.Info("stream stopped by caller leg")
				r.session.transition(StateCompleted)
				return
			case stream.Mark:
				if awaitingMark && msg.Name == farewellMark {
					r.complete(ctx, "")
					return
				}
			case stream.DTMF:
				r.logger.Debug("dtmf received", zap.String("digit", msg.Digit))
			case stream.Start:
				r.logger.Warn("ignoring repeated start event")
			case stream.Connected:
			}

		case ev, ok := <-controls:
			if !ok {
				select {
				case err := <-r.legErrs:
					r.logger.Warn("writing to caller leg", zap.Error(err))
					r.session.transition(StateFailed)
					return
				default:
				}
				r.logger.Error("dialogue session stopped without ending the call")
				r.fail(ctx, h.script.Apologies.EngineFailure)
				return
			}

			switch ev.Kind {
			case dialogue.EventText:
				r.session.record(SpeakerAgent, ev.Text)
				agentSpoke = true
			case dialogue.EventCallerTranscript:
				r.session.record(SpeakerCaller, ev.Text)
				agentSpoke = false
			case dialogue.EventToolRequest:
				if err := r.session.transition(StateAwaitingToolResult); err != nil {
					r.logger.Warn("tool request while another is pending", zap.Error(err))
					if err := r.engine.RespondToTool(ctx, ev.Tool.ID, dialogue.ToolResult{Message: h.script.OrderRejected}); err != nil {
						r.logger.Error("relaying tool result", zap.Error(err))
						r.fail(ctx, h.script.Apologies.OrderFailure)
						return
					}
					continue
				}
				r.dispatches.Add(1)
				go func(req *dialogue.ToolRequest) {
					defer r.dispatches.Done()
					r.dispatch(r.dispatchCtx, req)
				}(ev.Tool)
			case dialogue.EventEndOfCall:
				controls = nil
				if agentSpoke {
					marked, err := r.leg.MarkPlayback(farewellMark)
					if err != nil {
						r.logger.Warn("marking farewell playback", zap.Error(err))
					}
					if marked {
						awaitingMark = true
						farewell = time.After(h.opts.FarewellTimeout)
						continue
					}
					r.complete(ctx, "")
					return
				}
				r.complete(ctx, h.script.Farewell)
				return
			case dialogue.EventError:
				r.logger.Error("dialogue engine failed", zap.Error(ev.Err))
				r.fail(ctx, h.script.Apologies.EngineFailure)
				return
			}

		case out := <-r.tools:
			result := r.toolResult(out)
			if err := r.session.transition(StateStreaming); err != nil {
				r.logger.Error("leaving awaiting tool result", zap.Error(err))
			}
			if err := r.engine.RespondToTool(ctx, out.requestID, result); err != nil {
				r.logger.Error("relaying tool result", zap.Error(err))
				r.fail(ctx, h.script.Apologies.OrderFailure)
				return
			}

		case <-farewell:
			r.logger.Warn("farewell playback not acknowledged")
			r.complete(ctx, "")
			return

		case <-timeLimit:
			r.logger.Warn("maximum call duration reached", zap.Duration("limit", h.opts.MaxCallDuration))
			r.complete(ctx, h.script.TimeLimit)
			return

		case err := <-r.legErrs:
			r.logger.Warn("writing to caller leg", zap.Error(err))
			r.session.transition(StateFailed)
			return
		}
	}
}

func (r *callRun) dispatch(ctx context.Context, req *dialogue.ToolRequest) {
	h := r.h

	order := req.Order
	order.CallID = r.session.callID
	order.CustomerPhone = r.session.callerNumber

	dispatchCtx, cancel := context.WithTimeout(ctx, h.opts.ToolTimeout)
	defer cancel()

	persisted, err := h.orders.Commit(dispatchCtx, r.session.tenantID, order)
	if err != nil && errors.Is(dispatchCtx.Err(), context.DeadlineExceeded) {
		err = apperrors.NewTimeoutError("order dispatch", h.opts.ToolTimeout)
	}
	if ctx.Err() != nil {
		// The call is gone; nobody is left to hear the result.
		return
	}

	r.tools <- toolOutcome{requestID: req.ID, order: persisted, err: err}
}

func (r *callRun) toolResult(out toolOutcome) dialogue.ToolResult {
	h := r.h

	if out.err == nil {
		r.logger.Info("order saved", zap.Uint("orderId", out.order.ID), zap.Float64("totalPrice", out.order.TotalPrice))
		return dialogue.ToolResult{OK: true, OrderID: out.order.ID, Message: h.script.OrderConfirmed}
	}

	if ve, ok := apperrors.IsValidationError(out.err); ok {
		r.logger.Warn("order rejected", zap.Error(ve))
		return dialogue.ToolResult{Message: h.script.OrderRejected + " " + ve.Error()}
	}

	r.logger.Error("saving order", zap.Error(out.err))
	return dialogue.ToolResult{Message: h.script.Apologies.OrderFailure}
}

func (r *callRun) fail(ctx context.Context, apology string) {
	r.session.transition(StateFailed)
	r.hangup(ctx, apology)
}

func (r *callRun) complete(ctx context.Context, message string) {
	r.session.transition(StateCompleted)
	r.hangup(ctx, message)
}

// hangup outlives a cancelled session context so the caller still hears
// the message after the stream dropped.
func (r *callRun) hangup(ctx context.Context, message string) {
	hangupCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), hangupTimeout)
	defer cancel()

	if err := r.leg.Hangup(hangupCtx, message); err != nil {
		r.logger.Warn("hanging up call", zap.Error(err))
	}
}
