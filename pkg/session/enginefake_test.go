package session

import (
	"sync"

	"github.com/iotcraft/mqttsession/pkg/engine"
)

// fakeEngine is a scripted engine.Engine for state-machine tests. Tests
// drive broker-side behavior by firing notifications directly.
type fakeEngine struct {
	mu  sync.Mutex
	cb  engine.Callbacks
	err error // returned by every operation when set

	connects    int
	disconnects int
	subs        []string
	unsubs      []string
	pubs        []fakePub
	nextSubID   int
	nextMID     uint16
	closed      bool
}

type fakePub struct {
	topic   string
	payload []byte
	qos     engine.QoS
	retain  bool
}

var _ engine.Engine = (*fakeEngine)(nil)

func newFakeEngine() *fakeEngine {
	return &fakeEngine{}
}

// factory returns an engine.Factory handing out this fake and capturing
// the session's callbacks.
func (f *fakeEngine) factory() engine.Factory {
	return func(_ engine.Config, cb engine.Callbacks) (engine.Engine, error) {
		f.mu.Lock()
		f.cb = cb
		f.mu.Unlock()
		return f, nil
	}
}

func (f *fakeEngine) setErr(err error) {
	f.mu.Lock()
	f.err = err
	f.mu.Unlock()
}

func (f *fakeEngine) Connect(engine.ConnectConfig) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.connects++
	return nil
}

func (f *fakeEngine) Disconnect() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.disconnects++
	return nil
}

func (f *fakeEngine) Publish(topic string, payload []byte, qos engine.QoS, retain bool) (uint16, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return 0, f.err
	}
	f.nextMID++
	f.pubs = append(f.pubs, fakePub{topic: topic, payload: payload, qos: qos, retain: retain})
	return f.nextMID, nil
}

func (f *fakeEngine) Subscribe(topic string, _ engine.QoS) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return 0, f.err
	}
	f.nextSubID++
	f.subs = append(f.subs, topic)
	return f.nextSubID, nil
}

func (f *fakeEngine) Unsubscribe(topic string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.unsubs = append(f.unsubs, topic)
	return f.err
}

func (f *fakeEngine) Version() [3]int {
	return [3]int{9, 9, 9}
}

func (f *fakeEngine) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
}

func (f *fakeEngine) callbacks() engine.Callbacks {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.cb
}

// fireConnected simulates the broker acknowledging the connection.
func (f *fakeEngine) fireConnected() {
	if cb := f.callbacks().OnConnected; cb != nil {
		cb(engine.CodeSuccess)
	}
}

// fireDisconnected simulates the connection ending with the given code.
func (f *fakeEngine) fireDisconnected(code engine.ReasonCode) {
	if cb := f.callbacks().OnDisconnected; cb != nil {
		cb(code)
	}
}

// deliver simulates an inbound message on topic.
func (f *fakeEngine) deliver(topic string, payload []byte) {
	if cb := f.callbacks().OnMessage; cb != nil {
		cb(engine.Message{Topic: topic, Payload: payload, QoS: engine.QoS0})
	}
}

func (f *fakeEngine) connectCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connects
}
