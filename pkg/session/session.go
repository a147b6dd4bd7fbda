package session

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/iotcraft/mqttsession/pkg/engine"
	"github.com/iotcraft/mqttsession/pkg/logging"
)

// Session is one logical client connection to an MQTT broker. It owns
// exactly one engine handle for its whole lifetime and tracks the
// connection state machine, the topic registry, and the registered
// callback pair.
//
// A Session is safe for concurrent use. Operations never block on
// network round-trips; results of the protocol exchange arrive through
// callbacks on the engine's notification goroutine.
type Session struct {
	mu           sync.Mutex
	settings     Settings
	eng          engine.Engine
	status       Status
	lastErr      error
	onConnected  ConnectionHandler
	onDisconnect ConnectionHandler
	acquired     bool

	registry  *registry
	hooks     Hooks
	log       *slog.Logger
	newEngine engine.Factory

	closeOnce sync.Once
}

// Option customizes a Session at construction.
type Option func(*Session)

// WithLogger sets the logger for session and engine diagnostics.
// Defaults to a no-op logger.
func WithLogger(log *slog.Logger) Option {
	return func(s *Session) {
		if log != nil {
			s.log = log
		}
	}
}

// WithHooks sets the session's default event handlers.
func WithHooks(h Hooks) Option {
	return func(s *Session) { s.hooks = h }
}

// WithEngineFactory replaces the production paho engine factory. Used to
// substitute a fake engine in tests.
func WithEngineFactory(f engine.Factory) Option {
	return func(s *Session) {
		if f != nil {
			s.newEngine = f
		}
	}
}

// New creates a Session and its engine handle. The client id is validated
// here: if it exceeds MaxClientIDLength, or the engine handle cannot be
// created, the returned Session is in StatusFaulted and the error
// explains why. A Faulted session fails every subsequent operation with
// ErrNotConnected and must be reconstructed.
//
// Every Session, including a Faulted one, must be released with Close.
func New(settings Settings, opts ...Option) (*Session, error) {
	s := &Session{
		settings:  settings,
		status:    StatusDisconnected,
		registry:  newRegistry(),
		log:       logging.Nop(),
		newEngine: engine.NewPaho,
	}
	for _, opt := range opts {
		opt(s)
	}

	if n := len(settings.ClientID); n > MaxClientIDLength {
		err := &Error{
			Kind: KindInvalidArgument,
			Op:   "new",
			Err:  fmt.Errorf("client id is %d bytes, limit is %d", n, MaxClientIDLength),
		}
		s.status = StatusFaulted
		s.lastErr = err
		return s, err
	}

	if err := engine.Acquire(); err != nil {
		werr := &Error{Kind: KindAllocationFailure, Op: "new", Err: err}
		s.status = StatusFaulted
		s.lastErr = werr
		return s, werr
	}
	s.acquired = true

	eng, err := s.newEngine(engine.Config{
		ClientID:     settings.ClientID,
		Protocol:     settings.Protocol,
		CleanSession: settings.Policy == SessionCleanup,
		Logger:       s.log,
	}, engine.Callbacks{
		OnConnected:    s.engineConnected,
		OnDisconnected: s.engineDisconnected,
		OnMessage:      s.engineMessage,
		OnPublished:    s.enginePublished,
		OnSubscribed:   s.engineSubscribed,
		OnUnsubscribed: s.engineUnsubscribed,
	})
	if err != nil {
		werr := &Error{Kind: KindAllocationFailure, Op: "new", Err: err}
		s.status = StatusFaulted
		s.lastErr = werr
		engine.Release()
		s.acquired = false
		return s, werr
	}
	s.eng = eng

	s.log.Debug("session created",
		"client_id", settings.ClientID,
		"protocol", settings.Protocol)
	return s, nil
}

// Connect starts a non-blocking connection to the broker. On success the
// engine's background I/O loop is running and the handshake is in
// flight; the outcome arrives via the OnConnected callback (or the
// OnDisconnected callback when the handshake fails).
//
// Connecting while already connected is a no-op returning nil; the
// registered callback pair is left untouched and no duplicate connection
// callback fires. Connecting a Faulted session fails immediately without
// any network attempt.
func (s *Session) Connect(opts ConnectOptions) error {
	s.mu.Lock()
	if s.status == StatusFaulted || s.eng == nil {
		s.mu.Unlock()
		return s.fail(&Error{Kind: KindNotConnected, Op: "connect", Err: errors.New("no engine handle")})
	}
	if s.status == StatusConnected {
		s.mu.Unlock()
		return nil
	}
	s.onConnected = opts.OnConnected
	s.onDisconnect = opts.OnDisconnected
	eng := s.eng
	s.mu.Unlock()

	err := eng.Connect(engine.ConnectConfig{
		Address: opts.Address,
		Port:    opts.Port,
		Timeout: opts.Timeout,
	})
	if err != nil {
		return s.fail(wrapEngineErr("connect", err))
	}
	return nil
}

// Disconnect requests a clean disconnect. The state transition happens
// asynchronously when the engine confirms; until then the session still
// reports StatusConnected.
func (s *Session) Disconnect() error {
	s.mu.Lock()
	eng := s.eng
	faulted := s.status == StatusFaulted
	s.mu.Unlock()

	if faulted || eng == nil {
		return s.fail(&Error{Kind: KindNotConnected, Op: "disconnect", Err: errors.New("no engine handle")})
	}
	if err := eng.Disconnect(); err != nil {
		return s.fail(wrapEngineErr("disconnect", err))
	}
	return nil
}

// Subscribe registers a subscription for topic with the broker and
// installs handler for exact matches of topic.Name. A nil handler routes
// the topic's messages to the OnMessage hook. On success the
// engine-assigned subscription id is written into topic.ID.
//
// Matching is by exact topic string only. A wildcard filter such as
// "sensors/+/temp" is accepted by the broker, but inbound messages carry
// the concrete topic name, which will not equal the filter, so they fall
// through to the OnMessage hook rather than the filter's handler.
func (s *Session) Subscribe(topic *Topic, qos QoS, handler MessageHandler) error {
	if topic == nil || topic.Name == "" {
		return s.fail(&Error{Kind: KindInvalidArgument, Op: "subscribe", Err: errors.New("empty topic name")})
	}

	s.mu.Lock()
	eng := s.eng
	faulted := s.status == StatusFaulted
	s.mu.Unlock()

	if faulted || eng == nil {
		return s.fail(&Error{Kind: KindNotConnected, Op: "subscribe", Err: errors.New("no engine handle")})
	}

	id, err := eng.Subscribe(topic.Name, qos)
	if err != nil {
		return s.fail(wrapEngineErr("subscribe", err))
	}

	topic.ID = id
	s.registry.set(topic.Name, handler)
	s.log.Debug("subscribed", "topic", topic.Name, "qos", qos, "id", id)
	return nil
}

// Unsubscribe removes the subscription for topic.Name. The registry
// entry is removed as soon as the engine call has been issued, even if
// the engine reports a failure, so local dispatch state never retains a
// handler for a topic whose removal was requested.
func (s *Session) Unsubscribe(topic *Topic) error {
	if topic == nil || topic.Name == "" {
		return s.fail(&Error{Kind: KindInvalidArgument, Op: "unsubscribe", Err: errors.New("empty topic name")})
	}

	s.mu.Lock()
	eng := s.eng
	faulted := s.status == StatusFaulted
	s.mu.Unlock()

	if faulted || eng == nil {
		return s.fail(&Error{Kind: KindNotConnected, Op: "unsubscribe", Err: errors.New("no engine handle")})
	}

	err := eng.Unsubscribe(topic.Name)
	s.registry.remove(topic.Name)
	if err != nil {
		return s.fail(wrapEngineErr("unsubscribe", err))
	}
	s.log.Debug("unsubscribed", "topic", topic.Name)
	return nil
}

// Publish enqueues payload on topic without blocking for the broker's
// acknowledgment. Completion is reported through the OnPublished hook
// with the engine-assigned message id; the id is also written into
// topic.ID.
func (s *Session) Publish(topic *Topic, payload []byte, qos QoS) error {
	if topic == nil || topic.Name == "" {
		return s.fail(&Error{Kind: KindInvalidArgument, Op: "publish", Err: errors.New("empty topic name")})
	}

	s.mu.Lock()
	eng := s.eng
	faulted := s.status == StatusFaulted
	s.mu.Unlock()

	if faulted || eng == nil {
		return s.fail(&Error{Kind: KindNotConnected, Op: "publish", Err: errors.New("no engine handle")})
	}

	mid, err := eng.Publish(topic.Name, payload, qos, topic.Retain)
	if err != nil {
		return s.fail(wrapEngineErr("publish", err))
	}
	topic.ID = int(mid)
	return nil
}

// PublishString publishes a string payload. See Publish.
func (s *Session) PublishString(topic *Topic, payload string, qos QoS) error {
	return s.Publish(topic, []byte(payload), qos)
}

// Status returns the current connection state.
func (s *Session) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// LastError returns the error recorded by the most recent failing
// operation, or nil. It is kept until the next failing call overwrites
// it.
func (s *Session) LastError() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

// Version reports the engine, wrapper, and protocol versions. The engine
// tuple is zero for a Faulted session that never obtained a handle.
func (s *Session) Version() Version {
	s.mu.Lock()
	eng := s.eng
	proto := s.settings.Protocol
	s.mu.Unlock()

	v := Version{Wrapper: wrapperVersion, Protocol: proto.Tuple()}
	if eng != nil {
		v.Engine = eng.Version()
	}
	return v
}

// Close disconnects if connected, destroys the engine handle, and
// releases the process-wide engine reference exactly once. It is safe to
// call multiple times and on Faulted sessions.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		eng := s.eng
		st := s.status
		acquired := s.acquired
		s.eng = nil
		s.acquired = false
		if s.status != StatusFaulted {
			s.status = StatusDisconnected
		}
		s.onConnected = nil
		s.onDisconnect = nil
		s.mu.Unlock()

		s.registry.clear()
		if eng != nil {
			if st == StatusConnected {
				_ = eng.Disconnect()
			}
			eng.Close()
		}
		if acquired {
			engine.Release()
		}
		s.log.Debug("session closed")
	})
	return nil
}

// fail records err as the session's last error and returns it.
func (s *Session) fail(err *Error) error {
	s.mu.Lock()
	s.lastErr = err
	s.mu.Unlock()
	s.log.Debug("operation failed", "op", err.Op, "error", err)
	return err
}

// engineConnected handles the engine's connected notification: enter
// StatusConnected, reset the registry for the fresh session, and fire the
// registered connection callback (or the OnConnect hook when none is
// registered). A duplicate notification while already connected fires no
// callback.
func (s *Session) engineConnected(code ReasonCode) {
	s.mu.Lock()
	if s.status == StatusFaulted {
		s.mu.Unlock()
		return
	}
	already := s.status == StatusConnected
	s.status = StatusConnected
	cb := s.onConnected
	s.mu.Unlock()

	if already {
		return
	}

	s.registry.clear()
	s.log.Debug("session connected", "code", code)

	if cb != nil {
		cb(code)
		return
	}
	if h := s.hooks.OnConnect; h != nil {
		h(code)
	}
}

// engineDisconnected handles the engine's disconnected notification,
// whether broker-initiated, requested through Disconnect, or a failed
// connect handshake. The callback pair and the registry are cleared
// before the disconnection callback runs, so a callback that re-invokes
// Connect installs a fresh pair without losing it.
func (s *Session) engineDisconnected(code ReasonCode) {
	s.mu.Lock()
	if s.status == StatusFaulted {
		s.mu.Unlock()
		return
	}
	s.status = StatusDisconnected
	cb := s.onDisconnect
	s.onConnected = nil
	s.onDisconnect = nil
	s.mu.Unlock()

	s.registry.clear()
	s.log.Debug("session disconnected", "code", code)

	if cb != nil {
		cb(code)
		return
	}
	if h := s.hooks.OnDisconnect; h != nil {
		h(code)
	}
}

// engineMessage dispatches one inbound message: exact-match lookup in the
// registry, falling back to the OnMessage hook when the topic has no
// entry or an entry without a handler. Runs synchronously on the engine's
// notification goroutine.
func (s *Session) engineMessage(m engine.Message) {
	msg := Message{
		Topic:     m.Topic,
		Payload:   m.Payload,
		QoS:       m.QoS,
		Retain:    m.Retain,
		ID:        m.ID,
		Duplicate: m.Duplicate,
	}

	if handler, found := s.registry.lookup(m.Topic); found && handler != nil {
		handler(msg)
		return
	}
	if h := s.hooks.OnMessage; h != nil {
		h(msg)
	}
}

func (s *Session) enginePublished(mid uint16) {
	if h := s.hooks.OnPublished; h != nil {
		h(mid)
	}
}

func (s *Session) engineSubscribed(topic string, granted QoS) {
	if h := s.hooks.OnSubscribed; h != nil {
		h(topic, granted)
	}
}

func (s *Session) engineUnsubscribed(topic string) {
	if h := s.hooks.OnUnsubscribed; h != nil {
		h(topic)
	}
}
