package cmt

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRuntime(t *testing.T, clock *Clock) *Runtime {
	t.Helper()
	r := New(CoreConfig{}, CoreConfig{}, WithClock(clock))
	r.Init()
	return r
}

func TestRuntime_InitTwiceAborts(t *testing.T) {
	r := New(CoreConfig{}, CoreConfig{}, WithClock(NewManualClock()))
	r.Init()
	assert.Panics(t, func() { r.Init() })
}

func TestRuntime_PostStampsStrictlyIncreasingSequence(t *testing.T) {
	r := newTestRuntime(t, NewManualClock())

	r.Post(Core0, NewMessage(0x1))
	r.Post(Core1, NewMessage(0x1))

	m0, ok := r.queues[0].TryRetrieve()
	require.True(t, ok)
	m1, ok := r.queues[1].TryRetrieve()
	require.True(t, ok)

	assert.Less(t, m0.Sequence, m1.Sequence)
}

func TestRuntime_ScheduleInMsDeliversThroughScheduler(t *testing.T) {
	clock := NewManualClock()
	r := newTestRuntime(t, clock)

	r.ScheduleInMs(Core0, 5, NewMessage(0x42))
	assert.True(t, r.Exists(0x42))
	assert.Equal(t, uint32(1), r.Count())

	clock.Advance(5 * time.Millisecond)

	msg, ok := r.queues[0].TryRetrieve()
	require.True(t, ok)
	assert.Equal(t, MessageID(0x42), msg.ID)
	assert.False(t, r.Exists(0x42))
}

func TestRuntime_SleepMsInvokesRegisteredCallback(t *testing.T) {
	clock := NewManualClock()
	r := newTestRuntime(t, clock)

	var gotUser uint32
	called := false
	idx := r.RegisterSleepCallback(func(user uint32) {
		called = true
		gotUser = user
	})

	r.SleepMs(Core0, 3, idx, 0xBEEF)
	clock.Advance(3 * time.Millisecond)

	msg, ok := r.queues[0].TryRetrieve()
	require.True(t, ok)
	require.Equal(t, MsgSleepExpired, msg.ID)

	r.dispatchSleep(msg)
	assert.True(t, called)
	assert.Equal(t, uint32(0xBEEF), gotUser)
}

func TestRuntime_CancelRemovesScheduledSlot(t *testing.T) {
	r := newTestRuntime(t, NewManualClock())
	r.ScheduleInMs(Core0, 100, NewMessage(0x7))
	require.True(t, r.Exists(0x7))

	r.Cancel(0x7)
	assert.False(t, r.Exists(0x7))
	assert.Equal(t, uint32(0), r.Count())
}

func TestRuntime_LaunchCore1RunsDispatcherConcurrently(t *testing.T) {
	clock := NewManualClock()
	r := newTestRuntime(t, clock)

	ctx1, cancel1 := context.WithCancel(context.Background())
	r.LaunchCore1(ctx1, nil)

	r.PostDiscardable(Core1, NewMessageWithHandler(0x1, PriorityNormal, func(Message) { cancel1() }))

	ctx0, cancel0 := context.WithCancel(context.Background())
	cancel0()
	err := r.RunLoop(Core0, ctx0, nil)
	assert.ErrorIs(t, err, context.Canceled)

	<-ctx1.Done()
}

func TestRuntime_WaitingIDsReflectsOutstandingSlots(t *testing.T) {
	r := newTestRuntime(t, NewManualClock())
	r.ScheduleInMs(Core0, 10, NewMessage(0x1))
	r.ScheduleInMs(Core1, 20, NewMessage(0x2))

	ids := r.WaitingIDs(make([]MessageID, 2))
	assert.ElementsMatch(t, []MessageID{0x1, 0x2}, ids)
}

func TestRuntime_QueueDepthReflectsPostedMessages(t *testing.T) {
	r := newTestRuntime(t, NewManualClock())
	r.PostDiscardable(Core0, NewMessageWithPriority(0x1, PriorityHigh))

	depth := r.QueueDepth(Core0)
	assert.Equal(t, 1, depth.High)
}
