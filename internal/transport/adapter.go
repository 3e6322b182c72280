package transport

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"marketplace-chat/internal/events"
	chat_errors "marketplace-chat/pkg/errors"
	"marketplace-chat/pkg/logger"

	"github.com/cenkalti/backoff/v4"
)

type Config struct {
	QueueSize    int
	ReconnectMin time.Duration
	ReconnectMax time.Duration
	WriteTimeout time.Duration
}

func (c Config) withDefaults() Config {
	if c.QueueSize <= 0 {
		c.QueueSize = 256
	}
	if c.ReconnectMin <= 0 {
		c.ReconnectMin = time.Second
	}
	if c.ReconnectMax < c.ReconnectMin {
		c.ReconnectMax = 30 * time.Second
		if c.ReconnectMax < c.ReconnectMin {
			c.ReconnectMax = c.ReconnectMin
		}
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = 10 * time.Second
	}
	return c
}

type EventHandler func(events.Envelope)
type StateHandler func(State)

// Adapter multiplexes every conversation over one connection. Only the run
// goroutine writes to the connection.
type Adapter struct {
	dialer   Dialer
	cfg      Config
	logger   *logger.Logger
	recorder Recorder

	mu            sync.Mutex
	state         State
	queue         []events.Intent
	waiters       map[string]chan events.AckPayload
	eventHandlers []EventHandler
	stateHandlers []StateHandler
	cancel        context.CancelFunc
	done          chan struct{}

	wake chan struct{}
}

func NewAdapter(dialer Dialer, cfg Config, l *logger.Logger) *Adapter {
	if l == nil {
		l = logger.NewNop()
	}
	return &Adapter{
		dialer:   dialer,
		cfg:      cfg.withDefaults(),
		logger:   l.Named("transport"),
		recorder: nopRecorder{},
		state:    StateDisconnected,
		waiters:  make(map[string]chan events.AckPayload),
		wake:     make(chan struct{}, 1),
	}
}

// SetRecorder installs a telemetry sink. Call before Connect.
func (a *Adapter) SetRecorder(r Recorder) {
	if r != nil {
		a.recorder = r
	}
}

func (a *Adapter) State() State {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

func (a *Adapter) QueueLen() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.queue)
}

// OnEvent registers h for every inbound event. Handlers run on the read
// goroutine in arrival order and must not block.
func (a *Adapter) OnEvent(h EventHandler) {
	a.mu.Lock()
	a.eventHandlers = append(a.eventHandlers, h)
	a.mu.Unlock()
}

func (a *Adapter) OnStateChange(h StateHandler) {
	a.mu.Lock()
	a.stateHandlers = append(a.stateHandlers, h)
	a.mu.Unlock()
}

// Connect starts the connection loop. It returns immediately; progress is
// reported through OnStateChange.
func (a *Adapter) Connect(ctx context.Context) {
	a.mu.Lock()
	if a.cancel != nil {
		a.mu.Unlock()
		return
	}
	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	a.cancel = cancel
	a.done = done
	a.mu.Unlock()

	a.setState(StateConnecting)
	go a.run(runCtx, done)
}

// Disconnect closes the connection and stops reconnecting. Queued intents
// are kept and flushed on the next Connect.
func (a *Adapter) Disconnect() {
	a.mu.Lock()
	cancel, done := a.cancel, a.done
	a.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// Send enqueues an intent for delivery in FIFO order. While the adapter is
// disconnected the intent is still queued and ErrTransportDisconnected is
// returned so the caller knows delivery is deferred.
func (a *Adapter) Send(in events.Intent) error {
	if in.ID == "" || in.Type == "" {
		return fmt.Errorf("%w: intent requires id and type", chat_errors.ErrInvalidInput)
	}
	a.mu.Lock()
	if len(a.queue) >= a.cfg.QueueSize {
		a.mu.Unlock()
		return chat_errors.ErrQueueFull
	}
	a.queue = append(a.queue, in)
	depth := len(a.queue)
	state := a.state
	a.mu.Unlock()

	a.recorder.QueueDepth(depth)
	a.signal()
	if state == StateDisconnected {
		return chat_errors.ErrTransportDisconnected
	}
	return nil
}

// Request sends in and waits for the ack event correlated by in.ID. If ctx
// ends first the intent is withdrawn from the queue when still unsent.
func (a *Adapter) Request(ctx context.Context, in events.Intent) (events.AckPayload, error) {
	ch := make(chan events.AckPayload, 1)
	a.mu.Lock()
	a.waiters[in.ID] = ch
	a.mu.Unlock()
	defer func() {
		a.mu.Lock()
		if a.waiters[in.ID] == ch {
			delete(a.waiters, in.ID)
		}
		a.mu.Unlock()
	}()

	if err := a.Send(in); err != nil && !errors.Is(err, chat_errors.ErrTransportDisconnected) {
		return events.AckPayload{}, err
	}

	select {
	case ack := <-ch:
		if ack.Error != "" {
			return ack, ackError(ack)
		}
		return ack, nil
	case <-ctx.Done():
		a.withdraw(in.ID)
		return events.AckPayload{}, chat_errors.Network(ctx.Err())
	}
}

func ackError(ack events.AckPayload) error {
	switch ack.Code {
	case "VALIDATION_ERROR":
		return fmt.Errorf("%w: %s", chat_errors.ErrValidation, ack.Error)
	case "CONFLICT", "NOT_FOUND":
		return fmt.Errorf("%w: %s", chat_errors.ErrConflict, ack.Error)
	default:
		return fmt.Errorf("%w: %s", chat_errors.ErrNetwork, ack.Error)
	}
}

func (a *Adapter) withdraw(id string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	for i, in := range a.queue {
		if in.ID == id {
			a.queue = append(a.queue[:i:i], a.queue[i+1:]...)
			return
		}
	}
}

func (a *Adapter) signal() {
	select {
	case a.wake <- struct{}{}:
	default:
	}
}

func (a *Adapter) setState(s State) {
	a.mu.Lock()
	if a.state == s {
		a.mu.Unlock()
		return
	}
	a.state = s
	handlers := append([]StateHandler(nil), a.stateHandlers...)
	a.mu.Unlock()

	a.logger.Infof("transport state: %s", s)
	a.recorder.ConnectionState(string(s))
	for _, h := range handlers {
		h(s)
	}
}

func (a *Adapter) newBackoff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = a.cfg.ReconnectMin
	b.MaxInterval = a.cfg.ReconnectMax
	b.Multiplier = 2
	b.RandomizationFactor = 0
	b.MaxElapsedTime = 0
	b.Reset()
	return b
}

func (a *Adapter) run(ctx context.Context, done chan struct{}) {
	defer func() {
		a.mu.Lock()
		if a.done == done {
			a.cancel = nil
			a.done = nil
		}
		a.mu.Unlock()
		a.setState(StateDisconnected)
		close(done)
	}()

	b := a.newBackoff()
	for {
		a.setState(StateConnecting)
		conn, err := a.dialer.Dial(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			if errors.Is(err, chat_errors.ErrUnauthorized) {
				a.logger.Errorf("transport dial rejected: %v", err)
				return
			}
			wait := b.NextBackOff()
			a.logger.Warnf("transport dial failed, retrying in %s: %v", wait, err)
			if !sleep(ctx, wait) {
				return
			}
			continue
		}

		b.Reset()
		a.setState(StateConnected)
		err = a.serve(ctx, conn)
		if ctx.Err() != nil {
			return
		}

		a.setState(StateConnecting)
		a.recorder.Reconnect()
		wait := b.NextBackOff()
		a.logger.Warnf("transport connection dropped, reconnecting in %s: %v", wait, err)
		if !sleep(ctx, wait) {
			return
		}
	}
}

// serve pumps the queue into conn until the connection fails or ctx ends.
// It returns only after the read goroutine has exited.
func (a *Adapter) serve(ctx context.Context, conn Conn) error {
	sessCtx, cancel := context.WithCancel(ctx)
	readErr := make(chan error, 1)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		readErr <- a.readLoop(sessCtx, conn)
	}()
	defer func() {
		cancel()
		_ = conn.Close()
		wg.Wait()
	}()

	for {
		if err := a.flush(sessCtx, conn); err != nil {
			return err
		}
		select {
		case <-sessCtx.Done():
			return sessCtx.Err()
		case err := <-readErr:
			return err
		case <-a.wake:
		}
	}
}

func (a *Adapter) flush(ctx context.Context, conn Conn) error {
	for {
		a.mu.Lock()
		if len(a.queue) == 0 {
			a.mu.Unlock()
			return nil
		}
		in := a.queue[0]
		a.mu.Unlock()

		wctx, cancel := context.WithTimeout(ctx, a.cfg.WriteTimeout)
		err := conn.WriteIntent(wctx, in)
		cancel()
		if err != nil {
			return err
		}

		a.mu.Lock()
		if len(a.queue) > 0 && a.queue[0].ID == in.ID {
			a.queue = a.queue[1:]
		}
		depth := len(a.queue)
		a.mu.Unlock()
		a.recorder.IntentWritten(string(in.Type))
		a.recorder.QueueDepth(depth)
	}
}

func (a *Adapter) readLoop(ctx context.Context, conn Conn) error {
	for {
		env, err := conn.ReadEnvelope(ctx)
		if err != nil {
			return err
		}
		a.dispatch(env)
	}
}

func (a *Adapter) dispatch(env events.Envelope) {
	a.recorder.EventReceived(string(env.Type))
	if env.Type == events.EventAck {
		var ack events.AckPayload
		if err := env.Decode(&ack); err != nil {
			a.logger.Warnf("dropping malformed ack: %v", err)
		} else {
			a.mu.Lock()
			ch, ok := a.waiters[ack.ClientID]
			a.mu.Unlock()
			if ok {
				select {
				case ch <- ack:
				default:
				}
			}
		}
	}

	a.mu.Lock()
	handlers := append([]EventHandler(nil), a.eventHandlers...)
	a.mu.Unlock()
	for _, h := range handlers {
		h(env)
	}
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
