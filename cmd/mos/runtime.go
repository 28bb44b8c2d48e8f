package main

import (
	"fmt"
	"os"

	"fd"
	"stream"
)

/// program is one built-in demo executable: everything this CLI can
/// "spawn" is one of these, run synchronously to completion against
/// its own stdin/stdout descriptors. There is no ELF loader or MIPS
/// interpreter driving real user binaries here (see DESIGN.md) — each
/// program is the Go-native equivalent of one of the tiny C programs
/// under original_source/user, standing in for a real one.
type program func(argv []string, stdin, stdout *fd.Fd_t) int32

/// kernelRuntime implements shell.Runtime directly against one running
/// kernel: pipes and redirected files are slots in the shell
/// environment's own descriptor table, variables and the working
/// directory are the environment's own state, and "spawning" a
/// program runs it synchronously in this same process.
type kernelRuntime struct {
	k        *kernel
	programs map[string]program

	nextPid  int32
	statuses map[int32]int32

	histStream *stream.Stream_t
	histBuf    []byte

	trace bool
}

func newKernelRuntime(k *kernel, trace bool) *kernelRuntime {
	rt := &kernelRuntime{
		k:        k,
		statuses: map[int32]int32{},
		histBuf:  make([]byte, 4096),
		trace:    trace,
	}
	rt.histStream = stream.Fmemopen(rt.histBuf, "w")
	rt.programs = defaultPrograms()
	return rt
}

func (rt *kernelRuntime) logTrace(format string, args ...interface{}) {
	if rt.trace {
		fmt.Fprintf(os.Stderr, "+ "+format+"\n", args...)
	}
}

func (rt *kernelRuntime) Spawn(argv []string, stdin, stdout int) (int32, error) {
	prog, ok := rt.programs[argv[0]]
	if !ok {
		return -1, fmt.Errorf("mos: %s: program not found", argv[0])
	}
	rt.logTrace("spawn %v", argv)

	var inFd, outFd *fd.Fd_t
	if stdin != -1 {
		f, err := rt.k.shell.Files.Get(stdin)
		if err != 0 {
			return -1, fmt.Errorf("mos: bad stdin fd %d", stdin)
		}
		inFd = f
	}
	if stdout != -1 {
		f, err := rt.k.shell.Files.Get(stdout)
		if err != 0 {
			return -1, fmt.Errorf("mos: bad stdout fd %d", stdout)
		}
		outFd = f
	}

	rt.nextPid++
	pid := rt.nextPid
	rt.statuses[pid] = prog(argv, inFd, outFd)
	return pid, nil
}

func (rt *kernelRuntime) Wait(pid int32) (int32, error) {
	status, ok := rt.statuses[pid]
	if !ok {
		return 0, fmt.Errorf("mos: wait: no such pid %d", pid)
	}
	delete(rt.statuses, pid)
	return status, nil
}

func (rt *kernelRuntime) Pipe() (int, int, error) {
	p := fd.NewPipe(rt.k.phys)
	r, err := rt.k.shell.Files.Alloc(fd.NewPipeEnd(p, true))
	if err != 0 {
		return 0, 0, fmt.Errorf("mos: out of descriptors")
	}
	w, err := rt.k.shell.Files.Alloc(fd.NewPipeEnd(p, false))
	if err != 0 {
		rt.k.shell.Files.Close(r, rt.k.phys)
		return 0, 0, fmt.Errorf("mos: out of descriptors")
	}
	return r, w, nil
}

func (rt *kernelRuntime) ReadFd(fdno int, buf []byte) (int, error) {
	f, err := rt.k.shell.Files.Get(fdno)
	if err != 0 {
		return 0, fmt.Errorf("mos: bad fd %d", fdno)
	}
	n, rerr := f.Read(buf)
	if rerr != 0 {
		return 0, fmt.Errorf("mos: read fd %d: err %d", fdno, rerr)
	}
	return n, nil
}

func (rt *kernelRuntime) WriteFd(fdno int, buf []byte) (int, error) {
	f, err := rt.k.shell.Files.Get(fdno)
	if err != 0 {
		return 0, fmt.Errorf("mos: bad fd %d", fdno)
	}
	n, werr := f.Write(buf)
	if werr != 0 {
		return 0, fmt.Errorf("mos: write fd %d: err %d", fdno, werr)
	}
	return n, nil
}

func (rt *kernelRuntime) CloseFd(fdno int) {
	rt.k.shell.Files.Close(fdno, rt.k.phys)
}

/// OpenRead backs a named file with fd.NewFile: a one-shot snapshot of
/// its current bytes, which also gives it a real KindFile Stat()
/// (size, mode) rather than the unknowable size a callback hook
/// would report. OpenWrite still needs fd.ConsoleFd's hook mechanism,
/// since a write must flush back into namedFiles on every call and
/// fd.Fd_t's file_t has no exported accessor for reading that back out.
func (rt *kernelRuntime) OpenRead(path string) (int, error) {
	content, ok := rt.k.namedFiles[path]
	if !ok {
		return -1, fmt.Errorf("mos: %s: no such file", path)
	}
	fdno, err := rt.k.shell.Files.Alloc(fd.NewFile(content))
	if err != 0 {
		return -1, fmt.Errorf("mos: out of descriptors")
	}
	return fdno, nil
}

func (rt *kernelRuntime) OpenWrite(path string, truncate bool) (int, error) {
	if truncate {
		rt.k.namedFiles[path] = nil
	}
	writer := fd.NewConsole(&fd.ConsoleFd{
		Read: func(p []byte) int { return 0 },
		Write: func(p []byte) int {
			rt.k.namedFiles[path] = append(rt.k.namedFiles[path], p...)
			return len(p)
		},
	})
	fdno, err := rt.k.shell.Files.Alloc(writer)
	if err != 0 {
		return -1, fmt.Errorf("mos: out of descriptors")
	}
	return fdno, nil
}

/// StatFd reports the size and mode of an already-open descriptor,
/// fed by src/fd's Fd_t.Stat rather than any ad hoc bookkeeping of its
/// own.
func (rt *kernelRuntime) StatFd(fdno int) (uint, uint, error) {
	f, err := rt.k.shell.Files.Get(fdno)
	if err != 0 {
		return 0, 0, fmt.Errorf("mos: bad fd %d", fdno)
	}
	st, serr := f.Stat()
	if serr != 0 {
		return 0, 0, fmt.Errorf("mos: stat fd %d: err %d", fdno, serr)
	}
	return st.Size(), st.Mode(), nil
}

func (rt *kernelRuntime) GetVar(name string) string {
	return rt.k.shell.Get(name, rt.k.shell.ShellId)
}

func (rt *kernelRuntime) SetVar(name, value string, perm int, global bool) error {
	caller := rt.k.shell.ShellId
	if global {
		caller = 0
	}
	if err := rt.k.shell.Declare(name, value, perm, caller); err != 0 {
		return fmt.Errorf("mos: declare %s: err %d", name, err)
	}
	return nil
}

func (rt *kernelRuntime) UnsetVar(name string) error {
	if err := rt.k.shell.Unset(name); err != 0 {
		return fmt.Errorf("mos: unset %s: err %d", name, err)
	}
	return nil
}

func (rt *kernelRuntime) AllVars() string {
	vars := rt.k.shell.GetAll(rt.k.shell.ShellId)
	out := ""
	for _, v := range vars {
		out += v.Name + "=" + v.Value + "\n"
	}
	return out
}

func (rt *kernelRuntime) Chdir(path string) error {
	rt.k.shell.Cwd.Chdir(path)
	return nil
}

func (rt *kernelRuntime) Getwd() string {
	return rt.k.shell.Cwd.Getwd()
}

func (rt *kernelRuntime) Print(s string) {
	rt.k.console.c.Write([]byte(s))
}

/// persistHistory is wired as the shell.History's Persist callback: it
/// rewrites the in-memory history stream from scratch on every change,
/// exercising stream.Fmemopen/Fmemprintf the way a FILE*-backed
/// history file would be rewritten on a real filesystem.
func (rt *kernelRuntime) persistHistory(entries []string) {
	rt.histStream = stream.Fmemopen(rt.histBuf, "w")
	for _, e := range entries {
		rt.histStream.Fmemprintf("%s\n", e)
	}
}
