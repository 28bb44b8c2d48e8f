// Package sched implements the dual scheduler: a hard EDF class that
// always wins the CPU when it has work, layered over a priority
// Round-Robin class for everything else. The algorithm is a direct
// port of the kernel's own schedule() — same clock-driven period
// rollover, same tie-break on env id, same "EDF preempts RR
// unconditionally" behavior — adapted to return the chosen
// environment instead of making a noreturn jump into it.
package sched

import "container/list"
import "sync"

import "defs"
import "proc"

/// Sched_t holds both run queues. One instance is shared by every env
/// in the system; AddEdf/AddRR/Remove are the only mutators besides
/// Schedule itself.
type Sched_t struct {
	sync.Mutex
	edf    []*proc.Env_t
	rr     *list.List
	rrElem map[*proc.Env_t]*list.Element
	lastRR *proc.Env_t
	count  int
	clock  int
}

/// New builds an empty scheduler. The clock starts at -1, exactly as
/// the original scheduler's static counter does, so that the first
/// Schedule call lands on tick 0 — the same tick newly admitted EDF
/// envs are initialized against.
func New() *Sched_t {
	return &Sched_t{rr: list.New(), rrElem: make(map[*proc.Env_t]*list.Element), clock: -1}
}

/// AddEdf admits e into the EDF class with the given period and
/// runtime budget (in scheduler ticks). Its first period deadline is
/// tick 0, the same fixed starting point env_create_edf uses, so the
/// very first Schedule call (which lands on tick 0) rolls it over and
/// arms env_runtime_left for every newly admitted EDF env alike.
func (s *Sched_t) AddEdf(e *proc.Env_t, runtime, period int) {
	s.Lock()
	defer s.Unlock()
	e.IsEdf = true
	e.EdfRuntime = runtime
	e.EdfPeriod = period
	e.PeriodDeadline = 0
	e.RuntimeLeft = 0
	s.edf = append(s.edf, e)
}

/// AddRR admits e into the Round-Robin class.
func (s *Sched_t) AddRR(e *proc.Env_t) {
	s.Lock()
	defer s.Unlock()
	el := s.rr.PushBack(e)
	s.rrElem[e] = el
}

/// Remove drops e from whichever classes it belongs to, for
/// env_destroy.
func (s *Sched_t) Remove(e *proc.Env_t) {
	s.Lock()
	defer s.Unlock()
	for i, o := range s.edf {
		if o == e {
			s.edf = append(s.edf[:i], s.edf[i+1:]...)
			break
		}
	}
	if el, ok := s.rrElem[e]; ok {
		s.rr.Remove(el)
		delete(s.rrElem, e)
	}
	if s.lastRR == e {
		s.lastRR = nil
	}
}

/// Clock returns the current scheduler tick count, for tests asserting
/// on EDF period rollover.
func (s *Sched_t) Clock() int {
	s.Lock()
	defer s.Unlock()
	return s.clock
}

/// Schedule advances the clock by one tick and returns the
/// environment that should run next. yield forces the current
/// Round-Robin env to be requeued and a new one picked even if its
/// quantum has not expired, mirroring the syscall of the same name.
//
// It panics if no runnable environment exists in either class, the
// same impossible-condition panic the original scheduler takes
// because it has nothing else it could legally do.
func (s *Sched_t) Schedule(yield bool) *proc.Env_t {
	s.Lock()
	defer s.Unlock()

	s.clock++

	for _, e := range s.edf {
		if s.clock == e.PeriodDeadline {
			e.PeriodDeadline += e.EdfPeriod
			e.RuntimeLeft = e.EdfRuntime
		}
	}

	var minEnv *proc.Env_t
	minDeadline := -1
	minId := defs.Envid_t(0)
	for _, e := range s.edf {
		if e.RuntimeLeft <= 0 {
			continue
		}
		if minDeadline == -1 || e.PeriodDeadline < minDeadline ||
			(e.PeriodDeadline == minDeadline && e.Id < minId) {
			minDeadline = e.PeriodDeadline
			minId = e.Id
			minEnv = e
		}
	}
	if minEnv != nil {
		minEnv.RuntimeLeft--
		minEnv.Acct.Run()
		return minEnv
	}

	e := s.lastRR
	if yield || s.count == 0 || e == nil || e.Status != proc.ENV_RUNNABLE {
		if e != nil {
			if el, ok := s.rrElem[e]; ok {
				s.rr.Remove(el)
				delete(s.rrElem, e)
			}
			if e.Status == proc.ENV_RUNNABLE {
				el := s.rr.PushBack(e)
				s.rrElem[e] = el
			}
		}
		front := s.rr.Front()
		for front != nil && front.Value.(*proc.Env_t).Status != proc.ENV_RUNNABLE {
			front = front.Next()
		}
		if front == nil {
			panic("sched: no runnable envs are available")
		}
		e = front.Value.(*proc.Env_t)
		s.lastRR = e
		s.count = e.Pri
	}
	s.count--
	e.Acct.Run()
	return e
}
