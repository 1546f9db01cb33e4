package controller

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"pizzacall/internal/session"
	"pizzacall/internal/stream"
)

type CallServer interface {
	Serve(ctx context.Context, conn session.Transport) session.State
}

type StreamController struct {
	handler      CallServer
	upgrader     websocket.Upgrader
	baseCtx      context.Context
	readTimeout  time.Duration
	writeTimeout time.Duration
	sessions     sync.WaitGroup
	logger       *zap.Logger
}

// NewStreamController serves media streams. Sessions live under baseCtx,
// not the upgrade request, so cancelling it ends every call in flight.
func NewStreamController(baseCtx context.Context, handler CallServer, readTimeout, writeTimeout time.Duration, logger *zap.Logger) *StreamController {
	return &StreamController{
		handler: handler,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			// Twilio and the browser client do not send a matching Origin.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		baseCtx:      baseCtx,
		readTimeout:  readTimeout,
		writeTimeout: writeTimeout,
		logger:       logger,
	}
}

func (c *StreamController) HandleStream(w http.ResponseWriter, r *http.Request) {
	traceID := uuid.New().String()
	logger := c.logger.With(zap.String("traceId", traceID))

	ws, err := c.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error.
		logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	logger.Info("media stream opened", zap.String("remoteAddr", r.RemoteAddr))

	c.sessions.Add(1)
	defer c.sessions.Done()

	state := c.handler.Serve(c.baseCtx, stream.NewConn(ws, c.readTimeout, c.writeTimeout))
	logger.Info("media stream closed", zap.Stringer("state", state))
}

// Wait blocks until every session has returned or ctx is done.
func (c *StreamController) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		c.sessions.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
