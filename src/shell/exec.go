package shell

import (
	"fmt"
	"strings"
)

/// Runtime is everything Execute needs from the kernel/user-library
/// boundary. shell.Execute itself only sequences operators, wires
/// redirections, and decides which built-in (if any) applies — the
/// actual fork/exec mechanics belong to ulib.Fork and a real spawn
/// syscall, which Spawn stands in for here: each pipeline stage is an
/// independently spawned command coordinated by the fds this interface
/// hands back, the same external effect `parsecmd`'s recursive
/// fork-per-stage achieves without this package re-deriving fork
/// mechanics ulib already owns.
type Runtime interface {
	/// Spawn starts argv as a child with the given stdin/stdout fds (-1
	/// means "inherit the shell's own") and returns its pid.
	Spawn(argv []string, stdin, stdout int) (pid int32, err error)
	Wait(pid int32) (status int32, err error)

	Pipe() (r, w int, err error)
	ReadFd(fd int, buf []byte) (int, error)
	WriteFd(fd int, buf []byte) (int, error)
	CloseFd(fd int)
	OpenRead(path string) (fd int, err error)
	OpenWrite(path string, truncate bool) (fd int, err error)
	StatFd(fd int) (size uint, mode uint, err error)

	GetVar(name string) string
	SetVar(name, value string, perm int, global bool) error
	UnsetVar(name string) error
	AllVars() string

	Chdir(path string) error
	Getwd() string

	Print(s string)
}

/// Shell ties a parser, a variable-expansion pass, the built-in table,
/// and a Runtime together into one command interpreter.
type Shell struct {
	RT      Runtime
	ShellId int
	Hist    *History
}

/// New builds a Shell bound to rt.
func New(rt Runtime, shellId int, hist *History) *Shell {
	return &Shell{RT: rt, ShellId: shellId, Hist: hist}
}

/// RunLine tokenizes, parses, and executes one input line, returning
/// the exit status of whatever ran last.
func (sh *Shell) RunLine(line string) (int32, error) {
	toks := Tokenize(line, func(cmd string) string {
		out, _ := sh.runCaptured(cmd)
		return out
	})
	l, err := Parse(toks)
	if err != nil {
		return 1, err
	}
	if sh.Hist != nil && strings.TrimSpace(line) != "" {
		sh.Hist.Add(line)
	}
	return sh.runLineNode(l)
}

func (sh *Shell) runLineNode(l *Line) (int32, error) {
	if len(l.Pipelines) == 0 {
		return 0, nil
	}
	status, err := sh.runPipeline(l.Pipelines[0])
	if err != nil {
		return status, err
	}
	for i, op := range l.Ops {
		pl := l.Pipelines[i+1]
		switch op {
		case Semi:
			status, err = sh.runPipeline(pl)
		case And:
			if status == 0 {
				status, err = sh.runPipeline(pl)
			}
		case Or:
			if status != 0 {
				status, err = sh.runPipeline(pl)
			}
		}
		if err != nil {
			return status, err
		}
	}
	return status, nil
}

/// runCaptured runs cmd and returns up to BacktickMaxBytes of its
/// standard output, for backtick substitution during tokenizing. Only
/// the first simple command of cmd's first pipeline is run; later
/// pipeline stages and list-separated commands are ignored.
func (sh *Shell) runCaptured(cmd string) (string, error) {
	r, w, err := sh.RT.Pipe()
	if err != nil {
		return "", err
	}
	toks := Tokenize(cmd, nil)
	l, err := Parse(toks)
	if err != nil {
		sh.RT.CloseFd(r)
		sh.RT.CloseFd(w)
		return "", err
	}
	if len(l.Pipelines) > 0 {
		sh.execSimple(l.Pipelines[0].Cmds[0], -1, w)
	}
	sh.RT.CloseFd(w)

	buf := make([]byte, BacktickMaxBytes)
	total := 0
	for total < len(buf) {
		n, err := sh.RT.ReadFd(r, buf[total:])
		if n <= 0 || err != nil {
			break
		}
		total += n
	}
	sh.RT.CloseFd(r)
	return string(buf[:total]), nil
}

func (sh *Shell) runPipeline(pl Pipeline) (int32, error) {
	if len(pl.Cmds) == 0 {
		return 0, nil
	}
	var status int32
	var err error
	stdin := -1
	for i, cmd := range pl.Cmds {
		stdout := -1
		var pr, pw int
		if i < len(pl.Cmds)-1 {
			pr, pw, err = sh.RT.Pipe()
			if err != nil {
				return 1, err
			}
			stdout = pw
		}
		status, err = sh.execSimple(cmd, stdin, stdout)
		if stdin != -1 {
			sh.RT.CloseFd(stdin)
		}
		if stdout != -1 {
			sh.RT.CloseFd(stdout)
		}
		stdin = pr
		if err != nil {
			return status, err
		}
	}
	return status, nil
}

func (sh *Shell) execSimple(cmd Simple, stdin, stdout int) (int32, error) {
	argv := ExpandVars(cmd.Argv, func(name string) string { return sh.RT.GetVar(name) })
	if len(argv) == 0 {
		return 0, nil
	}

	var opened []int
	for _, r := range cmd.Redirs {
		switch r.Kind {
		case RedirIn:
			fd, err := sh.RT.OpenRead(r.Word)
			if err != nil {
				return 1, err
			}
			stdin = fd
			opened = append(opened, fd)
		case RedirOut:
			fd, err := sh.RT.OpenWrite(r.Word, true)
			if err != nil {
				return 1, err
			}
			stdout = fd
			opened = append(opened, fd)
		case Append:
			fd, err := sh.RT.OpenWrite(r.Word, false)
			if err != nil {
				return 1, err
			}
			stdout = fd
			opened = append(opened, fd)
		}
	}
	defer func() {
		for _, fd := range opened {
			sh.RT.CloseFd(fd)
		}
	}()

	if status, handled, err := sh.runBuiltin(argv, stdout); handled {
		return status, err
	}

	pid, err := sh.RT.Spawn(argv, stdin, stdout)
	if err != nil || pid < 0 {
		toggled := toggleDotB(argv[0])
		argv2 := append([]string{toggled}, argv[1:]...)
		pid, err = sh.RT.Spawn(argv2, stdin, stdout)
	}
	if err != nil || pid < 0 {
		sh.RT.Print(fmt.Sprintf("spawn %s: failed\n", argv[0]))
		return 1, nil
	}
	return sh.RT.Wait(pid)
}

/// toggleDotB implements the spawn fallback: if name already carries
/// the ".b" binary suffix, strip it; otherwise append it.
func toggleDotB(name string) string {
	const suffix = ".b"
	if strings.HasSuffix(name, suffix) {
		return strings.TrimSuffix(name, suffix)
	}
	return name + suffix
}
