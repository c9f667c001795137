// Package dispatch runs the side effects of the pricer (quote persistence and
// heatmap e-mails) on a single background worker, so request handlers never
// wait on a database or an SMTP relay.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/jwaldner/bsheat/internal/blackscholes"
	"github.com/jwaldner/bsheat/internal/logger"
	"github.com/jwaldner/bsheat/internal/mailer"
)

var (
	ErrQueueFull = errors.New("dispatch queue full")
	ErrDisabled  = errors.New("collaborator not configured")
	ErrClosed    = errors.New("dispatcher closed")
)

// QuoteSaver persists priced quotes.
type QuoteSaver interface {
	SaveQuote(ctx context.Context, q blackscholes.Quote, price float64) error
}

// Sender delivers heatmap e-mails.
type Sender interface {
	Send(ctx context.Context, m mailer.Message) error
}

// ActionType names the operations carried on the queue
type ActionType string

const (
	ActionSaveQuote    ActionType = "save_quote"
	ActionEmailHeatmap ActionType = "email_heatmap"
)

// Action is one queued side effect.
type Action struct {
	Type  ActionType
	Quote blackscholes.Quote
	Price float64
	Email mailer.Message
}

// Options tunes the queue and the retry policy.
type Options struct {
	QueueSize       int
	MaxAttempts     int
	InitialInterval time.Duration
	Timeout         time.Duration // per attempt
}

func (o Options) withDefaults() Options {
	if o.QueueSize <= 0 {
		o.QueueSize = 100
	}
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = 3
	}
	if o.InitialInterval <= 0 {
		o.InitialInterval = 500 * time.Millisecond
	}
	if o.Timeout <= 0 {
		o.Timeout = 30 * time.Second
	}
	return o
}

// Dispatcher owns all collaborator I/O through one goroutine.
type Dispatcher struct {
	saver  QuoteSaver
	sender Sender
	opts   Options

	actions chan Action
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup

	mu     sync.RWMutex
	closed bool

	// done is notified after each action with its final error, for tests
	done func(Action, error)
}

// New creates a dispatcher. Either collaborator may be nil, which disables the
// matching action.
func New(saver QuoteSaver, sender Sender, opts Options) *Dispatcher {
	opts = opts.withDefaults()
	ctx, cancel := context.WithCancel(context.Background())
	return &Dispatcher{
		saver:   saver,
		sender:  sender,
		opts:    opts,
		actions: make(chan Action, opts.QueueSize),
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Start launches the worker goroutine.
func (d *Dispatcher) Start() {
	d.wg.Add(1)
	go d.worker()
}

// Close stops accepting actions, drains the queue and waits for the worker.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	close(d.actions)
	d.mu.Unlock()

	d.wg.Wait()
	d.cancel()
}

func (d *Dispatcher) SavesQuotes() bool { return d.saver != nil }
func (d *Dispatcher) SendsEmail() bool  { return d.sender != nil }

// SaveQuote queues a priced quote for persistence.
func (d *Dispatcher) SaveQuote(q blackscholes.Quote, price float64) error {
	if d.saver == nil {
		return fmt.Errorf("quote persistence: %w", ErrDisabled)
	}
	return d.enqueue(Action{Type: ActionSaveQuote, Quote: q, Price: price})
}

// EmailHeatmap queues a heatmap e-mail.
func (d *Dispatcher) EmailHeatmap(m mailer.Message) error {
	if d.sender == nil {
		return fmt.Errorf("e-mail delivery: %w", ErrDisabled)
	}
	return d.enqueue(Action{Type: ActionEmailHeatmap, Email: m})
}

func (d *Dispatcher) enqueue(a Action) error {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return ErrClosed
	}

	select {
	case d.actions <- a:
		logger.Debug.Printf("📨 DISPATCH: queued %s (%d/%d)", a.Type, len(d.actions), cap(d.actions))
		return nil
	default:
		logger.Warn.Printf("⚠️ DISPATCH: queue full, dropping %s", a.Type)
		return ErrQueueFull
	}
}

// worker processes every action in order - OWNS ALL COLLABORATOR I/O
func (d *Dispatcher) worker() {
	defer d.wg.Done()

	for action := range d.actions {
		err := d.process(action)
		if err != nil {
			logger.Error.Printf("DISPATCH: %s failed: %v", action.Type, err)
		} else {
			logger.Info.Printf("✅ DISPATCH: %s done", action.Type)
		}
		if d.done != nil {
			d.done(action, err)
		}
	}
}

func (d *Dispatcher) process(a Action) error {
	var op func(ctx context.Context) error

	switch a.Type {
	case ActionSaveQuote:
		op = func(ctx context.Context) error {
			return d.saver.SaveQuote(ctx, a.Quote, a.Price)
		}
	case ActionEmailHeatmap:
		op = func(ctx context.Context) error {
			err := d.sender.Send(ctx, a.Email)
			if errors.Is(err, mailer.ErrInvalidRecipient) {
				return backoff.Permanent(err)
			}
			return err
		}
	default:
		return fmt.Errorf("unknown action type %q", a.Type)
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = d.opts.InitialInterval

	attempt := 0
	_, err := backoff.Retry(d.ctx, func() (struct{}, error) {
		attempt++
		ctx, cancel := context.WithTimeout(d.ctx, d.opts.Timeout)
		defer cancel()
		err := op(ctx)
		if err != nil {
			logger.Warn.Printf("⚠️ DISPATCH: %s attempt %d/%d: %v", a.Type, attempt, d.opts.MaxAttempts, err)
		}
		return struct{}{}, err
	}, backoff.WithBackOff(b), backoff.WithMaxTries(uint(d.opts.MaxAttempts)))
	return err
}
