package poller

import (
	"context"
	"sync"
	"time"
)

// State is the lifecycle position of a Poller.
type State int

const (
	StateIdle State = iota
	StatePolling
	StateSettled
	StateStopped
)

func (s State) String() string {
	switch s {
	case StatePolling:
		return "polling"
	case StateSettled:
		return "settled"
	case StateStopped:
		return "stopped"
	default:
		return "idle"
	}
}

// Mode selects how attempts are scheduled.
type Mode int

const (
	// Sequential schedules the next attempt only after the previous one
	// returned.
	Sequential Mode = iota
	// FixedRate fires an attempt every interval regardless of whether earlier
	// attempts finished, so attempts may overlap.
	FixedRate
)

// Attempt performs one poll. It returns true while polling should continue.
type Attempt func(ctx context.Context) bool

// Poller drives an Attempt on an interval until it reports completion or is
// stopped. The first attempt runs immediately on Start.
type Poller struct {
	interval time.Duration
	mode     Mode
	attempt  Attempt
	after    func(State)

	mu     sync.Mutex
	state  State
	gen    uint64
	ctx    context.Context
	cancel context.CancelFunc
	timer  *time.Timer
	halt   chan struct{}
	wg     sync.WaitGroup

	// serial keeps sequential attempts from overlapping, including Kick.
	serial sync.Mutex
}

// New builds an idle poller.
func New(interval time.Duration, mode Mode, attempt Attempt) *Poller {
	if interval <= 0 {
		interval = time.Second
	}
	return &Poller{
		interval: interval,
		mode:     mode,
		attempt:  attempt,
	}
}

// OnSettle registers fn to run after each attempt outcome is applied. It must
// be set before Start.
func (p *Poller) OnSettle(fn func(State)) {
	p.after = fn
}

// State returns the current lifecycle state.
func (p *Poller) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Interval returns the configured period.
func (p *Poller) Interval() time.Duration {
	return p.interval
}

// Start begins polling. It is a no-op while already polling or settled.
func (p *Poller) Start(parent context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state == StatePolling || p.state == StateSettled {
		return
	}
	p.gen++
	p.ctx, p.cancel = context.WithCancel(parent)
	p.state = StatePolling
	p.halt = make(chan struct{})
	gen := p.gen

	ctx := p.ctx
	p.wg.Add(1)
	if p.mode == FixedRate {
		go p.tick(ctx, gen, p.halt)
		return
	}
	go func() {
		defer p.wg.Done()
		p.run(ctx, gen)
	}()
}

// Kick runs one attempt synchronously on ctx and applies its outcome: a
// settled sequential poller is re-armed when the attempt asks to continue.
// In sequential mode Kick waits for an attempt already in flight.
// Kick on an idle or stopped poller only runs the attempt.
func (p *Poller) Kick(ctx context.Context) bool {
	release := p.serialize()
	defer release()
	p.mu.Lock()
	gen := p.gen
	p.mu.Unlock()
	cont := p.attempt(ctx)
	p.apply(gen, cont)
	return cont
}

// Stop cancels pending work. Attempts already in flight see a cancelled
// context and their outcome is ignored.
func (p *Poller) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state == StateIdle || p.state == StateStopped {
		p.state = StateStopped
		return
	}
	p.gen++
	p.state = StateStopped
	p.stopLocked()
}

// Wait blocks until goroutines owned by the poller have returned.
func (p *Poller) Wait() {
	p.wg.Wait()
}

func (p *Poller) stopLocked() {
	if p.timer != nil {
		p.timer.Stop()
		p.timer = nil
	}
	if p.halt != nil {
		close(p.halt)
		p.halt = nil
	}
	if p.cancel != nil {
		p.cancel()
		p.cancel = nil
	}
}

func (p *Poller) run(ctx context.Context, gen uint64) {
	release := p.serialize()
	defer release()
	if ctx.Err() != nil {
		return
	}
	p.apply(gen, p.attempt(ctx))
}

func (p *Poller) serialize() func() {
	if p.mode != Sequential {
		return func() {}
	}
	p.serial.Lock()
	return p.serial.Unlock
}

func (p *Poller) apply(gen uint64, cont bool) {
	state, fresh := p.settle(gen, cont, p.mode == Sequential)
	if fresh && p.after != nil {
		p.after(state)
	}
}

// settle applies an attempt outcome unless the poller moved on since gen.
// fresh is false for outcomes that arrived after a stop or restart.
func (p *Poller) settle(gen uint64, cont bool, reschedule bool) (state State, fresh bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if gen != p.gen || p.state == StateStopped {
		return p.state, false
	}
	if p.state == StateIdle {
		return p.state, true
	}
	if !cont {
		if p.timer != nil {
			p.timer.Stop()
			p.timer = nil
		}
		if p.mode == FixedRate && p.halt != nil {
			close(p.halt)
			p.halt = nil
		}
		p.state = StateSettled
		return p.state, true
	}
	if !reschedule {
		return p.state, true
	}
	if p.timer != nil {
		p.timer.Stop()
	}
	p.state = StatePolling
	p.timer = time.AfterFunc(p.interval, func() { p.fire(gen) })
	return p.state, true
}

func (p *Poller) fire(gen uint64) {
	p.mu.Lock()
	if gen != p.gen || p.state != StatePolling {
		p.mu.Unlock()
		return
	}
	ctx := p.ctx
	p.timer = nil
	p.wg.Add(1)
	p.mu.Unlock()
	defer p.wg.Done()
	p.run(ctx, gen)
}

func (p *Poller) tick(ctx context.Context, gen uint64, halt <-chan struct{}) {
	defer p.wg.Done()
	p.launch(ctx, gen)
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-halt:
			return
		case <-ticker.C:
			p.launch(ctx, gen)
		}
	}
}

func (p *Poller) launch(ctx context.Context, gen uint64) {
	p.mu.Lock()
	if gen != p.gen || p.state != StatePolling {
		p.mu.Unlock()
		return
	}
	p.wg.Add(1)
	p.mu.Unlock()
	go func() {
		defer p.wg.Done()
		p.run(ctx, gen)
	}()
}
