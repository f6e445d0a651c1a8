package automod

import (
	"context"
	"log/slog"
	"sync"
)

// userScheduler runs work on a fixed number of workers, serializing all work
// for a given user: no two events for the same user run concurrently, and one
// user's events are handled in submission order. Distinct users proceed in
// parallel. This is the only mutual-exclusion domain the pipeline needs to
// keep the violation ledger consistent.
type userScheduler struct {
	do func(MessageEvent)

	feeder chan *userTask
	out    chan struct{}

	concurrency int

	lk     sync.Mutex
	active map[string][]*userTask

	log *slog.Logger
}

type userTask struct {
	user string
	evt  MessageEvent
	stop bool
}

func newUserScheduler(concurrency int, logger *slog.Logger, do func(MessageEvent)) *userScheduler {
	if concurrency < 1 {
		concurrency = 1
	}
	p := &userScheduler{
		do:          do,
		feeder:      make(chan *userTask),
		out:         make(chan struct{}),
		concurrency: concurrency,
		active:      make(map[string][]*userTask),
		log:         logger.With("system", "user-scheduler"),
	}
	for i := 0; i < concurrency; i++ {
		go p.worker()
	}
	return p
}

func (p *userScheduler) AddWork(ctx context.Context, user string, evt MessageEvent) error {
	t := &userTask{user: user, evt: evt}
	p.lk.Lock()

	a, ok := p.active[user]
	if ok {
		// a worker is already processing this user; queue behind it
		p.active[user] = append(a, t)
		p.lk.Unlock()
		return nil
	}

	p.active[user] = []*userTask{}
	p.lk.Unlock()

	select {
	case p.feeder <- t:
		return nil
	case <-ctx.Done():
		p.lk.Lock()
		delete(p.active, user)
		p.lk.Unlock()
		return ctx.Err()
	}
}

// Shutdown waits for all in-flight work to finish and stops the workers.
func (p *userScheduler) Shutdown() {
	for i := 0; i < p.concurrency; i++ {
		p.feeder <- &userTask{stop: true}
	}
	close(p.feeder)
	for i := 0; i < p.concurrency; i++ {
		<-p.out
	}
}

func (p *userScheduler) worker() {
	for work := range p.feeder {
		for work != nil {
			if work.stop {
				p.out <- struct{}{}
				return
			}

			p.do(work.evt)

			p.lk.Lock()
			rem, ok := p.active[work.user]
			if !ok {
				p.log.Error("worker finished a user with no active entry")
			}
			if len(rem) == 0 {
				delete(p.active, work.user)
				work = nil
			} else {
				work = rem[0]
				p.active[work.user] = rem[1:]
			}
			p.lk.Unlock()
		}
	}
}
