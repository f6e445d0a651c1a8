package health

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/alphababoon/alphababoon/automod/oracle"
	"github.com/alphababoon/alphababoon/irc"

	"github.com/stretchr/testify/assert"
)

type fakeController struct {
	lk      sync.Mutex
	status  irc.Status
	forced  int
	reasons []string
}

func (f *fakeController) Status() irc.Status {
	f.lk.Lock()
	defer f.lk.Unlock()
	return f.status
}

func (f *fakeController) ForceReconnect(reason string) {
	f.lk.Lock()
	defer f.lk.Unlock()
	f.forced++
	f.reasons = append(f.reasons, reason)
}

func (f *fakeController) forceCount() int {
	f.lk.Lock()
	defer f.lk.Unlock()
	return f.forced
}

type fakeProber struct {
	err error
}

func (f *fakeProber) Classify(ctx context.Context, text string) (*oracle.Classification, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &oracle.Classification{Score: 0}, nil
}

func (f *fakeProber) Probe(ctx context.Context) error {
	return f.err
}

func newTestMonitor(ctrl ConnectionController, cls oracle.Classifier) *Monitor {
	return NewMonitor(slog.Default(), MonitorConfig{
		Interval:         time.Minute,
		FailureThreshold: 3,
		ProbeTimeout:     time.Second,
		ExpectedChannels: []string{"#accueil", "#apero"},
	}, ctrl, cls, &State{})
}

func TestMonitorForcesReconnectOnMissingChannels(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	ctrl := &fakeController{status: irc.Status{
		State:          irc.StateActive,
		JoinedChannels: []string{"#accueil"},
	}}
	m := newTestMonitor(ctrl, &fakeProber{})

	// below threshold: observed but tolerated
	m.runPass(ctx)
	m.runPass(ctx)
	assert.Equal(0, ctrl.forceCount())

	// third consecutive failure triggers intervention, and the counter
	// restarts for the next episode
	m.runPass(ctx)
	assert.Equal(1, ctrl.forceCount())
	m.runPass(ctx)
	m.runPass(ctx)
	assert.Equal(1, ctrl.forceCount())
}

func TestMonitorHealthyPassResetsCounter(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	ctrl := &fakeController{status: irc.Status{
		State:          irc.StateActive,
		JoinedChannels: []string{"#accueil"},
	}}
	m := newTestMonitor(ctrl, &fakeProber{})

	m.runPass(ctx)
	m.runPass(ctx)

	// channels recover before the threshold
	ctrl.lk.Lock()
	ctrl.status.JoinedChannels = []string{"#accueil", "#apero"}
	ctrl.lk.Unlock()
	m.runPass(ctx)

	ctrl.lk.Lock()
	ctrl.status.JoinedChannels = []string{"#accueil"}
	ctrl.lk.Unlock()
	m.runPass(ctx)
	m.runPass(ctx)
	assert.Equal(0, ctrl.forceCount())
}

func TestMonitorIgnoresReconnectingSession(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	ctrl := &fakeController{status: irc.Status{State: irc.StateReconnecting}}
	m := newTestMonitor(ctrl, &fakeProber{})

	for i := 0; i < 5; i++ {
		m.runPass(ctx)
	}
	assert.Equal(0, ctrl.forceCount())
}

func TestMonitorOracleFailuresNeverTouchConnection(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	ctrl := &fakeController{status: irc.Status{
		State:          irc.StateActive,
		JoinedChannels: []string{"#accueil", "#apero"},
	}}
	prober := &fakeProber{err: errors.New("classifier down")}
	m := newTestMonitor(ctrl, prober)

	for i := 0; i < 5; i++ {
		m.runPass(ctx)
	}
	assert.Equal(0, ctrl.forceCount())
	assert.Equal(5, m.State.oracleFailureCount())

	// recovery resets the failure streak
	prober.err = nil
	m.runPass(ctx)
	assert.Equal(0, m.State.oracleFailureCount())
}
