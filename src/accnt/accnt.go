// Package accnt accumulates per-environment scheduling and CPU-time
// accounting, the way biscuit's accnt package accumulates per-process
// user/system time.
package accnt

import "sync"
import "sync/atomic"
import "time"

/**
 * Accnt_t accumulates per-environment accounting information.
 *
 * Userns and Sysns store runtime in nanoseconds, attributed by the
 * scheduler to whichever side of the kernel boundary the env was
 * running on. Runs and Ticks track scheduling activity directly,
 * since env_run in this kernel is driven by tick count rather than a
 * free-running timer. The embedded mutex lets callers take a
 * consistent snapshot of all four fields together.
 */
type Accnt_t struct {
	/// Nanoseconds of user time consumed.
	Userns int64
	/// Nanoseconds of system time consumed.
	Sysns int64
	/// Number of times env_run dispatched this environment.
	Runs int64
	/// Number of scheduler ticks this environment has been charged for
	/// (RR quantum ticks or EDF runtime ticks).
	Ticks int64
	/// Protects concurrent access when reporting usage data.
	sync.Mutex
}

/// Utadd adds delta nanoseconds to the user-time counter.
func (a *Accnt_t) Utadd(delta int) {
	atomic.AddInt64(&a.Userns, int64(delta))
}

/// Systadd adds delta nanoseconds to the system-time counter.
func (a *Accnt_t) Systadd(delta int) {
	atomic.AddInt64(&a.Sysns, int64(delta))
}

/// Now returns the current time in nanoseconds since the Unix epoch.
func (a *Accnt_t) Now() int {
	return int(time.Now().UnixNano())
}

/// Finish finalizes accounting by adding time since inttime to system time.
func (a *Accnt_t) Finish(inttime int) {
	a.Systadd(a.Now() - inttime)
}

/// Run records one env_run dispatch.
func (a *Accnt_t) Run() {
	atomic.AddInt64(&a.Runs, 1)
}

/// Tick charges one scheduler tick (RR quantum or EDF runtime unit)
/// against this environment.
func (a *Accnt_t) Tick() {
	atomic.AddInt64(&a.Ticks, 1)
}

/// Add merges another accounting record into this one. Used when a
/// child's accounting should be folded into a parent's on reap.
func (a *Accnt_t) Add(n *Accnt_t) {
	n.Lock()
	userns, sysns, runs, ticks := n.Userns, n.Sysns, n.Runs, n.Ticks
	n.Unlock()

	a.Lock()
	a.Userns += userns
	a.Sysns += sysns
	a.Runs += runs
	a.Ticks += ticks
	a.Unlock()
}

/// Snapshot returns a consistent copy of the accounting fields.
func (a *Accnt_t) Snapshot() Accnt_t {
	a.Lock()
	defer a.Unlock()
	return Accnt_t{Userns: a.Userns, Sysns: a.Sysns, Runs: a.Runs, Ticks: a.Ticks}
}
