package ps

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionPidsSorted(t *testing.T) {
	f := newFakeProvider()
	f.add(30, 1, "c", 3)
	f.add(10, 1, "a", 1)
	f.add(20, 1, "b", 2)
	s := NewSession(f)

	pids, err := s.Pids()
	require.NoError(t, err)
	assert.Equal(t, []int32{10, 20, 30}, pids)
}

func TestSessionPidExists(t *testing.T) {
	f := newFakeProvider()
	f.add(10, 1, "a", 1)
	s := NewSession(f)

	ok, err := s.PidExists(10)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.PidExists(99)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = s.PidExists(-1)
	require.NoError(t, err)
	assert.False(t, ok)

	// PID 0 is resolved against the PID list, not the existence probe
	ok, err = s.PidExists(0)
	require.NoError(t, err)
	assert.False(t, ok)

	f.add(0, 0, "sched", 0)
	ok, err = s.PidExists(0)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestSessionProcess(t *testing.T) {
	f := newFakeProvider()
	f.add(10, 1, "a", 100.25)
	s := NewSession(f)

	p, err := s.Process(10)
	require.NoError(t, err)
	assert.Equal(t, int32(10), p.Pid())
	assert.True(t, p.Identity().Equal(NewIdentity(10, 100.25)))

	_, err = s.Process(99)
	assert.ErrorIs(t, err, ErrNoSuchProcess)

	_, err = s.Process(-3)
	assert.ErrorIs(t, err, ErrNegativePid)
}

func TestSessionProcessDeniedCreateTime(t *testing.T) {
	f := newFakeProvider()
	f.add(10, 1, "a", 100).denyCreate = true
	s := NewSession(f)

	// the handle is still usable, with the weaker PID-only identity
	p, err := s.Process(10)
	require.NoError(t, err)
	assert.False(t, p.Identity().HasCreateTime())

	_, err = p.CreateTime()
	assert.ErrorIs(t, err, ErrAccessDenied)
}

func TestIterAscendingAndCached(t *testing.T) {
	f := newFakeProvider()
	f.add(30, 1, "c", 3)
	f.add(10, 1, "a", 1)
	f.add(20, 1, "b", 2)
	s := NewSession(f)

	first, err := s.Processes()
	require.NoError(t, err)
	require.Len(t, first, 3)
	assert.Equal(t, int32(10), first[0].Pid())
	assert.Equal(t, int32(20), first[1].Pid())
	assert.Equal(t, int32(30), first[2].Pid())

	// a second pass returns the same handles, not new ones
	second, err := s.Processes()
	require.NoError(t, err)
	require.Len(t, second, 3)
	for i := range first {
		assert.Same(t, first[i], second[i])
	}
}

func TestIterReplacesRecycledPid(t *testing.T) {
	f := newFakeProvider()
	f.add(10, 1, "old", 100)
	s := NewSession(f)

	first, err := s.Processes()
	require.NoError(t, err)
	require.Len(t, first, 1)
	old := first[0]

	// same PID, different create time: a different process now
	f.remove(10)
	f.add(10, 1, "new", 200)

	second, err := s.Processes()
	require.NoError(t, err)
	require.Len(t, second, 1)
	assert.NotSame(t, old, second[0])
	assert.False(t, old.Equal(second[0]))

	// the old handle is gone for good
	running, err := old.IsRunning()
	require.NoError(t, err)
	assert.False(t, running)
}

func TestIterPurgesExited(t *testing.T) {
	f := newFakeProvider()
	f.add(10, 1, "a", 1)
	f.add(20, 1, "b", 2)
	s := NewSession(f)

	_, err := s.Processes()
	require.NoError(t, err)
	require.Len(t, s.cache, 2)

	f.remove(20)
	procs, err := s.Processes()
	require.NoError(t, err)
	require.Len(t, procs, 1)
	assert.Equal(t, int32(10), procs[0].Pid())
	assert.Len(t, s.cache, 1)
}

func TestIterYieldsStaleOnDeniedRecheck(t *testing.T) {
	f := newFakeProvider()
	fp := f.add(10, 1, "a", 100)
	s := NewSession(f)

	first, err := s.Processes()
	require.NoError(t, err)
	require.Len(t, first, 1)

	// identity can no longer be re-verified; the cached handle is yielded
	// as-is instead of failing the enumeration
	fp.denyCreate = true
	second, err := s.Processes()
	require.NoError(t, err)
	require.Len(t, second, 1)
	assert.Same(t, first[0], second[0])
}

func TestIterSkipsVanishedNewPid(t *testing.T) {
	f := newFakeProvider()
	f.add(10, 1, "a", 1)
	f.phantom = []int32{15}
	s := NewSession(f)

	procs, err := s.Processes()
	require.NoError(t, err)
	require.Len(t, procs, 1)
	assert.Equal(t, int32(10), procs[0].Pid())
}

func TestIterEarlyBreak(t *testing.T) {
	f := newFakeProvider()
	f.add(10, 1, "a", 1)
	f.add(20, 1, "b", 2)
	f.add(30, 1, "c", 3)
	s := NewSession(f)

	var got []int32
	for p, err := range s.Iter() {
		require.NoError(t, err)
		got = append(got, p.Pid())
		if len(got) == 2 {
			break
		}
	}
	assert.Equal(t, []int32{10, 20}, got)
}

func TestSessionReset(t *testing.T) {
	f := newFakeProvider()
	f.add(10, 1, "a", 1)
	s := NewSession(f)

	first, err := s.Processes()
	require.NoError(t, err)

	s.Reset()
	second, err := s.Processes()
	require.NoError(t, err)
	require.Len(t, second, 1)
	assert.NotSame(t, first[0], second[0])
}
