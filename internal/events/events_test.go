package events

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/golibos/libos/internal/rt"
)

type PolleeTest struct {
	suite.Suite
}

func TestPolleeTestSuite(t *testing.T) {
	suite.Run(t, new(PolleeTest))
}

func (t *PolleeTest) TestPollReturnsActiveSubsetPlusAlwaysPoll() {
	p := NewPollee()
	p.AddEvents(In)

	active := p.Poll(In|Out, nil)
	assert.Equal(t.T(), In, active)
}

func (t *PolleeTest) TestRegisterIsIdempotentByIdentity() {
	p := NewPollee()
	calls := 0
	obs := ObserverFunc(func(*Pollee, Mask) { calls++ })

	p.Register(obs, In, nil)
	p.Register(obs, In, nil)
	p.AddEvents(In)

	assert.Equal(t.T(), 1, calls)
}

func (t *PolleeTest) TestUnregisterStopsNotifications() {
	p := NewPollee()
	calls := 0
	obs := ObserverFunc(func(*Pollee, Mask) { calls++ })
	p.Register(obs, In, nil)
	p.Unregister(obs)

	p.AddEvents(In)
	assert.Equal(t.T(), 0, calls)
}

func (t *PolleeTest) TestPollerWaitWakesOnAddEvents() {
	p := NewPollee()
	poller := NewPoller()
	defer poller.Close()
	p.Poll(In, poller)

	done := make(chan struct{})
	go func() {
		_, err := rt.BlockOn(poller.Wait())
		require.NoError(t.T(), err)
		close(done)
	}()

	time.Sleep(5 * time.Millisecond)
	p.AddEvents(In)

	select {
	case <-done:
	case <-time.After(time.Second):
		t.T().Fatal("poller never woke")
	}
}

type EpollTest struct {
	suite.Suite
}

func TestEpollTestSuite(t *testing.T) {
	suite.Run(t, new(EpollTest))
}

func (t *EpollTest) TestLevelTriggeredReAddsWhileActive() {
	ep := NewEpoll()
	p := NewPollee()
	p.AddEvents(In)
	require.NoError(t.T(), ep.Add(3, p, In, 0))

	first, err := rt.BlockOn(ep.Wait(10))
	require.NoError(t.T(), err)
	require.Len(t.T(), first, 1)
	assert.Equal(t.T(), 3, first[0].FD)

	second, err := rt.BlockOn(ep.Wait(10))
	require.NoError(t.T(), err)
	require.Len(t.T(), second, 1)
}

func (t *EpollTest) TestEdgeTriggeredFiresOnceUntilNewBits() {
	ep := NewEpoll()
	p := NewPollee()
	require.NoError(t.T(), ep.Add(4, p, In|Out, EdgeTriggered))

	resultCh := make(chan []ReadyEvent, 1)
	go func() {
		evs, _ := rt.BlockOn(ep.Wait(10))
		resultCh <- evs
	}()
	time.Sleep(5 * time.Millisecond)
	p.AddEvents(In)

	select {
	case evs := <-resultCh:
		require.Len(t.T(), evs, 1)
		assert.True(t.T(), evs[0].Events.Has(In))
	case <-time.After(time.Second):
		t.T().Fatal("edge-triggered wait never resolved")
	}
}

func (t *EpollTest) TestOneShotDisablesAfterFirstDelivery() {
	ep := NewEpoll()
	p := NewPollee()
	p.AddEvents(In)
	require.NoError(t.T(), ep.Add(5, p, In, OneShot))

	evs, err := rt.BlockOn(ep.Wait(10))
	require.NoError(t.T(), err)
	require.Len(t.T(), evs, 1)

	p.AddEvents(In)
	p.AddEvents(Out)

	ep.mu.Lock()
	e := ep.entries[5]
	disabled := e.disabled
	ep.mu.Unlock()
	assert.True(t.T(), disabled)
}

func (t *EpollTest) TestDelRemovesEntry() {
	ep := NewEpoll()
	p := NewPollee()
	require.NoError(t.T(), ep.Add(6, p, In, 0))
	require.NoError(t.T(), ep.Del(6))
	assert.Error(t.T(), ep.Del(6))
}
