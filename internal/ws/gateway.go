package ws

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
	"nhooyr.io/websocket"

	"github.com/franciscolir/pre-reserva/internal/domain"
	"github.com/franciscolir/pre-reserva/internal/telemetry"
)

// ReservationService is the slice of the reservation state machine the
// gateway needs.
type ReservationService interface {
	PreReserve(ctx context.Context, id string) (domain.Slot, error)
	CancelPreReservation(ctx context.Context, id string) (domain.Slot, bool, error)
	Reserve(ctx context.Context, id, holderName string) (domain.Slot, error)
	ListAll(ctx context.Context) ([]domain.Slot, error)
}

// Sweeper frees expired soft-locks and reports what it freed.
type Sweeper interface {
	Sweep(ctx context.Context) ([]string, error)
}

// Gateway runs the per-connection request/response loop: sweep and snapshot
// on connect, then decode, sweep, dispatch and broadcast per action.
type Gateway struct {
	hub      *Hub
	svc      ReservationService
	sweeper  Sweeper
	logger   zerolog.Logger
	msgRate  rate.Limit
	msgBurst int
}

const (
	defaultMsgRate  = 10
	defaultMsgBurst = 20
)

func NewGateway(hub *Hub, svc ReservationService, sweeper Sweeper, logger zerolog.Logger, opts ...GatewayOption) *Gateway {
	g := &Gateway{
		hub:      hub,
		svc:      svc,
		sweeper:  sweeper,
		logger:   logger.With().Str("component", "gateway").Logger(),
		msgRate:  defaultMsgRate,
		msgBurst: defaultMsgBurst,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

type GatewayOption func(*Gateway)

// WithMessageBudget overrides the per-session inbound message rate limit.
func WithMessageBudget(perSecond float64, burst int) GatewayOption {
	return func(g *Gateway) {
		if perSecond > 0 && burst > 0 {
			g.msgRate = rate.Limit(perSecond)
			g.msgBurst = burst
		}
	}
}

func (g *Gateway) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true,
	})
	if err != nil {
		g.logger.Error().Err(err).Msg("websocket accept failed")
		return
	}

	sess := newSession(conn, g.logger)
	defer sess.close(websocket.StatusNormalClosure, "")

	telemetry.WSSessions.Inc()
	defer telemetry.WSSessions.Dec()

	g.hub.add(sess)
	defer g.hub.remove(sess)

	ctx := r.Context()
	go sess.writePump(ctx)

	g.logger.Debug().Str("session", sess.id).Int("observers", g.hub.Count()).Msg("observer connected")

	g.sweepAndNotify(ctx)

	slots, err := g.svc.ListAll(ctx)
	if err != nil {
		g.logger.Error().Err(err).Msg("load initial state")
		sess.close(websocket.StatusInternalError, "initial state unavailable")
		return
	}
	sess.sendMessage(newInitialState(slots))

	limiter := rate.NewLimiter(g.msgRate, g.msgBurst)
	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			g.logger.Debug().Str("session", sess.id).Err(err).Msg("observer disconnected")
			return
		}
		if !limiter.Allow() {
			sess.sendMessage(newError("too many requests"))
			continue
		}
		g.dispatch(ctx, sess, data)
	}
}

func (g *Gateway) dispatch(ctx context.Context, sess *session, data []byte) {
	var req actionRequest
	if err := json.Unmarshal(data, &req); err != nil {
		telemetry.Actions.WithLabelValues("malformed", "rejected").Inc()
		sess.sendMessage(newError("invalid format"))
		return
	}

	switch req.Type {
	case actionPreReserve:
		g.sweepAndNotify(ctx)
		slot, err := g.svc.PreReserve(ctx, req.Slot)
		g.finish(sess, req.Type, slot, true, err)
	case actionCancel:
		g.sweepAndNotify(ctx)
		slot, applied, err := g.svc.CancelPreReservation(ctx, req.Slot)
		g.finish(sess, req.Type, slot, applied, err)
	case actionReserve:
		g.sweepAndNotify(ctx)
		slot, err := g.svc.Reserve(ctx, req.Slot, req.HolderName)
		g.finish(sess, req.Type, slot, true, err)
	default:
		telemetry.Actions.WithLabelValues("unknown", "rejected").Inc()
		sess.sendMessage(newError("unrecognized action type"))
	}
}

// finish reports the action outcome: committed transitions broadcast to all
// observers, failures go to the requester only, no-ops stay silent.
func (g *Gateway) finish(sess *session, action string, slot domain.Slot, applied bool, err error) {
	if err != nil {
		telemetry.Actions.WithLabelValues(action, "rejected").Inc()
		sess.sendMessage(newError(rejectionMessage(err)))
		if !isPrecondition(err) {
			g.logger.Error().Str("action", action).Err(err).Msg("action failed")
		}
		return
	}
	if !applied {
		telemetry.Actions.WithLabelValues(action, "noop").Inc()
		return
	}
	telemetry.Actions.WithLabelValues(action, "ok").Inc()
	g.hub.BroadcastSlotState(slot)
}

// sweepAndNotify frees expired soft-locks and announces only the slots this
// sweep actually changed. Sweep failures are transient: log and move on.
func (g *Gateway) sweepAndNotify(ctx context.Context) {
	ids, err := g.sweeper.Sweep(ctx)
	if err != nil {
		g.logger.Error().Err(err).Msg("sweep failed")
		return
	}
	for _, id := range ids {
		g.hub.BroadcastSlotState(domain.NewFreeSlot(id))
	}
}

func isPrecondition(err error) bool {
	return errors.Is(err, domain.ErrSlotNotFound) ||
		errors.Is(err, domain.ErrSlotUnavailable) ||
		errors.Is(err, domain.ErrSlotNotPreReserved) ||
		errors.Is(err, domain.ErrNameRequired)
}

func rejectionMessage(err error) string {
	if isPrecondition(err) {
		return err.Error()
	}
	return "internal error"
}
