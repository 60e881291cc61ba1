package process

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/synthkernel/kerneld/domain"
)

func TestRoundRobinCyclesInOrder(t *testing.T) {
	s := NewScheduler(domain.RoundRobin, 10*time.Millisecond)
	s.Add(domain.PID(1), 5)
	s.Add(domain.PID(2), 5)
	s.Add(domain.PID(3), 5)

	var got []domain.PID
	for i := 0; i < 6; i++ {
		pid, ok := s.Schedule()
		require.True(t, ok)
		got = append(got, pid)
		time.Sleep(15 * time.Millisecond)
	}

	assert.Equal(t, []domain.PID{1, 2, 3, 1, 2, 3}, got)
}

func TestPreemptionAfterQuantumElapses(t *testing.T) {
	s := NewScheduler(domain.RoundRobin, 10*time.Millisecond)
	s.Add(domain.PID(1), 5)
	s.Add(domain.PID(2), 5)

	first, ok := s.Schedule()
	require.True(t, ok)
	assert.Equal(t, domain.PID(1), first)

	time.Sleep(15 * time.Millisecond)

	second, ok := s.Schedule()
	require.True(t, ok)
	assert.NotEqual(t, first, second)
	assert.Equal(t, uint64(1), s.Stats().Preemptions)
}

func TestPriorityPolicyPicksHighestFirst(t *testing.T) {
	s := NewScheduler(domain.Priority, 10*time.Millisecond)
	s.Add(domain.PID(1), 3)
	s.Add(domain.PID(2), 9)
	s.Add(domain.PID(3), 5)

	pid, ok := s.Schedule()
	require.True(t, ok)
	assert.Equal(t, domain.PID(2), pid)
}

func TestFairPolicyBalancesEqualPriority(t *testing.T) {
	s := NewScheduler(domain.Fair, 10*time.Millisecond)
	s.Add(domain.PID(1), 5)
	s.Add(domain.PID(2), 5)

	seen := map[domain.PID]int{}
	for i := 0; i < 4; i++ {
		pid, ok := s.Schedule()
		require.True(t, ok)
		seen[pid]++
		time.Sleep(12 * time.Millisecond)
	}

	assert.Equal(t, 2, seen[domain.PID(1)])
	assert.Equal(t, 2, seen[domain.PID(2)])
}

func TestSetPolicyPreservesLenAndPidsWithCurrentSet(t *testing.T) {
	s := NewScheduler(domain.RoundRobin, 10*time.Millisecond)
	s.Add(domain.PID(1), 5)
	s.Add(domain.PID(2), 5)
	_, ok := s.Schedule()
	require.True(t, ok)

	before := s.Len()
	s.SetPolicy(domain.Fair)
	assert.Equal(t, before, s.Len())

	found := map[domain.PID]bool{}
	for i := 0; i < 2; i++ {
		pid, ok := s.Schedule()
		require.True(t, ok)
		found[pid] = true
		time.Sleep(12 * time.Millisecond)
	}
	assert.True(t, found[domain.PID(1)])
}

func TestYieldProcessReschedulesImmediately(t *testing.T) {
	s := NewScheduler(domain.RoundRobin, 50*time.Millisecond)
	s.Add(domain.PID(1), 5)
	s.Add(domain.PID(2), 5)

	first, ok := s.Schedule()
	require.True(t, ok)
	assert.Equal(t, domain.PID(1), first)

	s.YieldProcess()
	assert.Equal(t, uint64(1), s.Stats().ContextSwitches)
}

func TestSetTimeQuantumInvokesRetuneHook(t *testing.T) {
	s := NewScheduler(domain.RoundRobin, 10*time.Millisecond)

	var got time.Duration
	s.SetRetuneHook(func(d time.Duration) { got = d })

	s.SetTimeQuantum(25 * time.Millisecond)
	assert.Equal(t, 25*time.Millisecond, got)
}

func TestBoostAndLowerStepClamp(t *testing.T) {
	s := NewScheduler(domain.RoundRobin, 10*time.Millisecond)
	assert.Equal(t, 10, s.BoostStep(10))
	assert.Equal(t, 6, s.BoostStep(5))
	assert.Equal(t, 0, s.LowerStep(0))
	assert.Equal(t, 4, s.LowerStep(5))
}

func TestRemoveClearsCurrent(t *testing.T) {
	s := NewScheduler(domain.RoundRobin, 10*time.Millisecond)
	s.Add(domain.PID(1), 5)
	pid, ok := s.Schedule()
	require.True(t, ok)
	require.Equal(t, domain.PID(1), pid)

	s.Remove(domain.PID(1))
	_, ok = s.Schedule()
	assert.False(t, ok)
}
