package ps

import (
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsRunningStickyGone(t *testing.T) {
	f := newFakeProvider()
	f.add(10, 1, "a", 100)
	s := NewSession(f)
	p, err := s.Process(10)
	require.NoError(t, err)

	running, err := p.IsRunning()
	require.NoError(t, err)
	assert.True(t, running)

	f.remove(10)
	running, err = p.IsRunning()
	require.NoError(t, err)
	assert.False(t, running)

	// the PID coming back with the same create time does not resurrect
	// the handle: gone is permanent
	f.add(10, 1, "a", 100)
	running, err = p.IsRunning()
	require.NoError(t, err)
	assert.False(t, running)
}

func TestIsRunningDetectsRecycledPid(t *testing.T) {
	f := newFakeProvider()
	f.add(10, 1, "a", 100)
	s := NewSession(f)
	p, err := s.Process(10)
	require.NoError(t, err)

	f.remove(10)
	f.add(10, 1, "b", 250)

	running, err := p.IsRunning()
	require.NoError(t, err)
	assert.False(t, running)
}

func TestIsRunningUnverifiable(t *testing.T) {
	f := newFakeProvider()
	fp := f.add(10, 1, "a", 100)
	s := NewSession(f)
	p, err := s.Process(10)
	require.NoError(t, err)

	fp.denyCreate = true
	_, err = p.IsRunning()
	assert.ErrorIs(t, err, ErrAccessDenied)
}

func TestNameCached(t *testing.T) {
	f := newFakeProvider()
	fp := f.add(10, 1, "orig", 100)
	s := NewSession(f)
	p, err := s.Process(10)
	require.NoError(t, err)

	name, err := p.Name()
	require.NoError(t, err)
	assert.Equal(t, "orig", name)

	fp.name = "renamed"
	name, err = p.Name()
	require.NoError(t, err)
	assert.Equal(t, "orig", name, "name is read once and cached")
}

func TestPpidNotCached(t *testing.T) {
	f := newFakeProvider()
	fp := f.add(10, 5, "a", 100)
	s := NewSession(f)
	p, err := s.Process(10)
	require.NoError(t, err)

	ppid, err := p.Ppid()
	require.NoError(t, err)
	assert.Equal(t, int32(5), ppid)

	// orphaned and reparented to init
	fp.ppid = 1
	ppid, err = p.Ppid()
	require.NoError(t, err)
	assert.Equal(t, int32(1), ppid)
}

func TestSignals(t *testing.T) {
	f := newFakeProvider()
	f.add(10, 1, "a", 100)
	s := NewSession(f)
	p, err := s.Process(10)
	require.NoError(t, err)

	require.NoError(t, p.Suspend())
	require.NoError(t, p.Resume())
	require.NoError(t, p.Terminate())
	require.NoError(t, p.Kill())
	assert.Equal(t, []syscall.Signal{
		syscall.SIGSTOP, syscall.SIGCONT, syscall.SIGTERM, syscall.SIGKILL,
	}, f.signals[10])
}

func TestSignalRecycledPid(t *testing.T) {
	f := newFakeProvider()
	f.add(10, 1, "a", 100)
	s := NewSession(f)
	p, err := s.Process(10)
	require.NoError(t, err)

	// the PID now belongs to someone else; the signal must not go through
	f.remove(10)
	f.add(10, 1, "b", 300)

	err = p.Terminate()
	assert.ErrorIs(t, err, ErrNoSuchProcess)
	assert.Empty(t, f.signals[10], "no signal may reach the recycled PID")
}

func TestSignalGoneProcess(t *testing.T) {
	f := newFakeProvider()
	f.add(10, 1, "a", 100)
	s := NewSession(f)
	p, err := s.Process(10)
	require.NoError(t, err)

	f.remove(10)
	assert.ErrorIs(t, p.Terminate(), ErrNoSuchProcess)
	assert.ErrorIs(t, p.Suspend(), ErrNoSuchProcess)
	assert.ErrorIs(t, p.SetNice(5), ErrNotImplemented, "capability check precedes the identity guard")
}

func TestWaitValidation(t *testing.T) {
	f := newFakeProvider()
	f.add(10, 1, "a", 100)
	s := NewSession(f)
	p, err := s.Process(10)
	require.NoError(t, err)

	_, _, err = p.Wait(-time.Second)
	assert.ErrorIs(t, err, ErrNegativeTimeout)
}

func TestWaitAlreadyGone(t *testing.T) {
	f := newFakeProvider()
	f.add(10, 1, "a", 100)
	s := NewSession(f)
	p, err := s.Process(10)
	require.NoError(t, err)

	f.remove(10)
	code, hasCode, err := p.Wait(0)
	require.NoError(t, err, "waiting on an already-terminated process is not an error")
	assert.Equal(t, 0, code)
	assert.False(t, hasCode)
}

func TestWaitTimeout(t *testing.T) {
	f := newFakeProvider()
	f.add(10, 1, "a", 100)
	s := NewSession(f)
	p, err := s.Process(10)
	require.NoError(t, err)

	_, _, err = p.Wait(10 * time.Millisecond)
	require.ErrorIs(t, err, ErrTimeout)

	var te *TimeoutExpiredError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, int32(10), te.Pid)
	assert.Equal(t, 10*time.Millisecond, te.Timeout)
	assert.False(t, p.Exited())
}

func TestWaitCollectsExitCode(t *testing.T) {
	f := newFakeProvider()
	fp := f.add(10, 1, "a", 100)
	fp.exitsAfter = 1
	fp.exitCode = 7
	fp.hasExit = true
	s := NewSession(f)
	p, err := s.Process(10)
	require.NoError(t, err)

	code, hasCode, err := p.Wait(time.Second)
	require.NoError(t, err)
	assert.Equal(t, 7, code)
	assert.True(t, hasCode)

	assert.True(t, p.Exited())
	got, ok := p.ExitCode()
	assert.True(t, ok)
	assert.Equal(t, 7, got)
}

func TestOptionalCapabilitiesAbsent(t *testing.T) {
	f := newFakeProvider()
	f.add(10, 1, "a", 100)
	s := NewSession(f)
	p, err := s.Process(10)
	require.NoError(t, err)

	_, err = p.MemoryInfo()
	assert.ErrorIs(t, err, ErrNotImplemented)
	_, err = p.IOCounters()
	assert.ErrorIs(t, err, ErrNotImplemented)
	_, err = p.Nice()
	assert.ErrorIs(t, err, ErrNotImplemented)
	assert.ErrorIs(t, p.SetNice(0), ErrNotImplemented)
}
