package clocktypes

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestScheduleAt_AtTime_ToDurationFromClampsToZeroIfPast(t *testing.T) {
	now := FromTime(time.Now())
	past := now.Add(FromDuration(-time.Hour))
	s := AtTime(past)
	assert.Equal(t, TimeDuration(0), s.ToDurationFrom(now))
}

func TestScheduleAt_AtTime_ToDurationFromFuture(t *testing.T) {
	now := FromTime(time.Now())
	future := now.Add(FromDuration(10 * time.Second))
	s := AtTime(future)
	assert.Equal(t, FromDuration(10*time.Second), s.ToDurationFrom(now))
}

func TestScheduleAt_AtInterval_ToTimestampFromAddsInterval(t *testing.T) {
	now := FromTime(time.Now())
	s := AtInterval(FromDuration(5 * time.Second))
	assert.Equal(t, now.Add(FromDuration(5*time.Second)), s.ToTimestampFrom(now))
	assert.True(t, s.IsRecurring())
}

func TestScheduleAt_AtTime_ToTimestampFromReturnsAt(t *testing.T) {
	target := FromTime(time.Now().Add(time.Minute))
	s := AtTime(target)
	assert.Equal(t, target, s.ToTimestampFrom(FromTime(time.Now())))
	assert.False(t, s.IsRecurring())
}

func TestTimestamp_RoundTripsThroughTime(t *testing.T) {
	now := time.Now()
	ts := FromTime(now)
	assert.Equal(t, now.UnixMicro(), ts.Time().UnixMicro())
}
