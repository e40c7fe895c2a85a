package service

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/yousiff139-lang/LAS/internal/dto"
	"github.com/yousiff139-lang/LAS/internal/middleware"
	"github.com/yousiff139-lang/LAS/internal/models"
	"github.com/yousiff139-lang/LAS/internal/observability"
)

const (
	feedRedisTTL       = 30 * time.Minute
	feedSendBufferSize = 32
)

// Feed event kinds.
const (
	FeedKindScan  = "scan"
	FeedKindSweep = "sweep"
)

// FeedConnectionOptions wraps metadata extracted during the HTTP upgrade.
type FeedConnectionOptions struct {
	CorrelationID string
	Context       context.Context
}

// LiveFeedService fans matching outcomes out to websocket subscribers.
// Redis pub/sub and NATS relay events between nodes so every subscriber
// sees scans processed anywhere in the cluster; both are optional and the
// hub degrades to single-node delivery without them.
type LiveFeedService interface {
	FeedBroadcaster
	ServeConnection(conn *websocket.Conn, opts FeedConnectionOptions)
	Start(ctx context.Context)
}

type liveFeedService struct {
	redis       *redis.Client
	redisStream string
	redisCache  string
	nats        *nats.Conn
	natsSubject string
	logger      zerolog.Logger
	hub         *feedHub
	nodeID      string
}

// feedHub keeps track of active websocket clients and handles fan-out.
type feedHub struct {
	mu      sync.RWMutex
	clients map[*feedClient]struct{}
	log     zerolog.Logger
}

type feedClient struct {
	conn    *websocket.Conn
	send    chan dto.FeedEvent
	service *liveFeedService
	closed  chan struct{}
	once    sync.Once
	baseCtx context.Context
}

type feedEnvelope struct {
	Source string        `json:"source"`
	Event  dto.FeedEvent `json:"event"`
	SentAt time.Time     `json:"sent_at"`
}

// NewLiveFeedService creates the live feed hub. channelBase seeds the
// Redis channel, the replay cache key and the NATS subject; empty
// disables cross-node relay for that backend.
func NewLiveFeedService(redisClient *redis.Client, channelBase string, natsConn *nats.Conn, logger zerolog.Logger) LiveFeedService {
	hub := &feedHub{
		clients: make(map[*feedClient]struct{}),
		log:     logger.With().Str("component", "feed_hub").Logger(),
	}

	streamChannel := ""
	cacheKey := ""
	natsSubject := ""
	if channelBase != "" {
		streamChannel = channelBase + ":feed"
		cacheKey = channelBase + ":feed:last"
		natsSubject = strings.ReplaceAll(channelBase, ":", ".") + ".feed"
	}

	return &liveFeedService{
		redis:       redisClient,
		redisStream: streamChannel,
		redisCache:  cacheKey,
		nats:        natsConn,
		natsSubject: natsSubject,
		logger:      logger.With().Str("component", "feed_service").Logger(),
		hub:         hub,
		nodeID:      uuid.NewString(),
	}
}

func (s *liveFeedService) Start(ctx context.Context) {
	if s.redis != nil && s.redisStream != "" {
		go s.consumeRedis(ctx)
	}
	if s.nats != nil && s.natsSubject != "" {
		go s.consumeNATS(ctx)
	}
}

func (s *liveFeedService) ServeConnection(conn *websocket.Conn, opts FeedConnectionOptions) {
	baseCtx := opts.Context
	if baseCtx == nil {
		baseCtx = context.Background()
	}
	correlation := opts.CorrelationID
	if correlation == "" {
		correlation = middleware.CorrelationIDFromContext(baseCtx)
	}

	client := &feedClient{
		conn:    conn,
		send:    make(chan dto.FeedEvent, feedSendBufferSize),
		service: s,
		closed:  make(chan struct{}),
		baseCtx: baseCtx,
	}

	s.hub.register(client)
	s.logger.Debug().Str("correlation_id", correlation).Msg("feed subscriber connected")

	if last := s.fetchLastEvent(baseCtx); last != nil {
		select {
		case client.send <- *last:
		default:
			s.logger.Debug().Msg("dropping cached feed event due to slow consumer")
		}
	}

	go client.writer()
	client.reader()
}

func (s *liveFeedService) BroadcastScan(ctx context.Context, decision ScanDecision, raw models.RawLog) {
	event := dto.FeedEvent{
		Kind:            FeedKindScan,
		Outcome:         decision.Outcome,
		At:              raw.ScannedAt,
		BiometricUserID: raw.BiometricUserID,
	}
	if decision.Student != nil {
		student := dto.NewStudentResponse(*decision.Student)
		event.Student = &student
	}
	if decision.Window != nil {
		window := dto.NewWindowResponse(*decision.Window)
		event.Window = &window
	}
	if decision.Record != nil {
		record := dto.NewAttendanceResponse(*decision.Record)
		event.Record = &record
	}

	s.dispatch(ctx, event)
}

func (s *liveFeedService) BroadcastSweep(ctx context.Context, report AbsenceReport) {
	event := dto.FeedEvent{
		Kind: FeedKindSweep,
		At:   time.Now().UTC(),
		Sweep: &dto.SweepReport{
			WindowID:      report.WindowID,
			Date:          report.Date,
			TotalStudents: report.TotalStudents,
			AlreadyMarked: report.AlreadyMarked,
			MarkedAbsent:  report.MarkedAbsent,
		},
	}

	s.dispatch(ctx, event)
}

// dispatch delivers one locally produced event: cache for replay, fan out
// to local clients, relay to the other nodes.
func (s *liveFeedService) dispatch(ctx context.Context, event dto.FeedEvent) {
	observability.FeedEvents().WithLabelValues(event.Kind).Inc()

	s.cacheLastEvent(ctx, event)
	s.hub.broadcast(event)
	if err := s.publish(ctx, event); err != nil {
		s.logger.Warn().Err(err).Msg("failed to publish feed event")
	}
}

func (s *liveFeedService) cacheLastEvent(ctx context.Context, event dto.FeedEvent) {
	if s.redis == nil || s.redisCache == "" {
		return
	}

	payload, err := json.Marshal(event)
	if err != nil {
		s.logger.Warn().Err(err).Msg("failed to marshal feed event for cache")
		return
	}

	if err := s.redis.Set(ctx, s.redisCache, payload, feedRedisTTL).Err(); err != nil {
		s.logger.Warn().Err(err).Msg("failed to cache feed event")
	}
}

func (s *liveFeedService) fetchLastEvent(ctx context.Context) *dto.FeedEvent {
	if s.redis == nil || s.redisCache == "" {
		return nil
	}

	result, err := s.redis.Get(ctx, s.redisCache).Result()
	if err != nil {
		return nil
	}

	var event dto.FeedEvent
	if err := json.Unmarshal([]byte(result), &event); err != nil {
		s.logger.Warn().Err(err).Msg("failed to unmarshal cached feed event")
		return nil
	}

	return &event
}

func (s *liveFeedService) publish(ctx context.Context, event dto.FeedEvent) error {
	envelope := feedEnvelope{
		Source: s.nodeID,
		Event:  event,
		SentAt: time.Now().UTC(),
	}

	payload, err := json.Marshal(envelope)
	if err != nil {
		return err
	}

	if s.redis != nil && s.redisStream != "" {
		if err := s.redis.Publish(ctx, s.redisStream, payload).Err(); err != nil {
			return err
		}
	}

	if s.nats != nil && s.natsSubject != "" {
		if err := s.nats.Publish(s.natsSubject, payload); err != nil {
			return err
		}
	}

	return nil
}

func (s *liveFeedService) consumeRedis(ctx context.Context) {
	pubsub := s.redis.Subscribe(ctx, s.redisStream)
	defer func() {
		_ = pubsub.Close()
	}()
	for {
		msg, err := pubsub.ReceiveMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			s.logger.Error().Err(err).Msg("feed redis subscription closed")
			return
		}
		s.handleEnvelope([]byte(msg.Payload))
	}
}

func (s *liveFeedService) consumeNATS(ctx context.Context) {
	sub, err := s.nats.QueueSubscribe(s.natsSubject, "las-feed", func(msg *nats.Msg) {
		s.handleEnvelope(msg.Data)
	})
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to subscribe to nats feed subject")
		return
	}
	go func() {
		<-ctx.Done()
		if err := sub.Drain(); err != nil {
			s.logger.Warn().Err(err).Msg("failed to drain feed nats subscription")
		}
	}()
}

func (s *liveFeedService) handleEnvelope(data []byte) {
	var envelope feedEnvelope
	if err := json.Unmarshal(data, &envelope); err != nil {
		s.logger.Warn().Err(err).Msg("invalid feed envelope")
		return
	}

	if envelope.Source == s.nodeID {
		return
	}

	observability.FeedEvents().WithLabelValues(envelope.Event.Kind).Inc()
	s.hub.broadcast(envelope.Event)
}

func (h *feedHub) register(client *feedClient) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.clients[client] = struct{}{}
	observability.FeedConnections().Inc()
	h.log.Debug().Int("clients", len(h.clients)).Msg("feed client connected")
}

func (h *feedHub) unregister(client *feedClient) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[client]; !ok {
		return
	}
	delete(h.clients, client)
	observability.FeedConnections().Dec()
	h.log.Debug().Int("clients", len(h.clients)).Msg("feed client disconnected")
}

func (h *feedHub) broadcast(event dto.FeedEvent) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for client := range h.clients {
		select {
		case client.send <- event:
		default:
			h.log.Warn().Msg("dropping feed event for slow client")
		}
	}
}

// reader drains the connection. Subscribers never send application
// frames; reading keeps control frames flowing and detects the close.
func (c *feedClient) reader() {
	defer c.close()

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			c.service.logger.Debug().Err(err).Msg("feed read loop ended")
			return
		}
	}
}

func (c *feedClient) writer() {
	defer c.close()

	for {
		select {
		case event, ok := <-c.send:
			if !ok {
				return
			}
			if err := c.conn.WriteJSON(event); err != nil {
				c.service.logger.Debug().Err(err).Msg("feed write loop terminated")
				return
			}
		case <-time.After(30 * time.Second):
			if err := c.conn.WriteMessage(websocket.PingMessage, []byte("keepalive")); err != nil {
				c.service.logger.Debug().Err(err).Msg("feed ping failed")
				return
			}
		case <-c.closed:
			return
		}
	}
}

func (c *feedClient) close() {
	c.once.Do(func() {
		close(c.closed)
		c.service.hub.unregister(c)
		_ = c.conn.Close()
	})
}
