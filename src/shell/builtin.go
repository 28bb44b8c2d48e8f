package shell

import (
	"fmt"
	"strings"

	"bpath"
)

/// runBuiltin recognizes the six inline built-ins; handled is false
/// for anything else, in which case Execute falls through to spawn.
/// Built-ins run directly against the Shell's own Runtime rather than
/// a spawned child, since their entire purpose is mutating the
/// caller's own state (cwd, variables, history). stdout is the fd
/// execSimple resolved for this command (-1 means the console), so a
/// builtin's normal output is redirectable and backtick-capturable
/// exactly like a spawned command's.
func (sh *Shell) runBuiltin(argv []string, stdout int) (status int32, handled bool, err error) {
	switch argv[0] {
	case "cd":
		return sh.builtinCd(argv), true, nil
	case "pwd":
		sh.writeOut(stdout, sh.RT.Getwd()+"\n")
		return 0, true, nil
	case "declare":
		return sh.builtinDeclare(argv, stdout), true, nil
	case "unset":
		return sh.builtinUnset(argv), true, nil
	case "history":
		sh.builtinHistory(stdout)
		return 0, true, nil
	case "stat":
		return sh.builtinStat(argv, stdout), true, nil
	}
	return 0, false, nil
}

/// writeOut sends a builtin's output to stdout if execSimple resolved
/// one (a pipe or a redirection target), falling back to the console
/// when the command runs with no redirection.
func (sh *Shell) writeOut(stdout int, s string) {
	if stdout != -1 {
		sh.RT.WriteFd(stdout, []byte(s))
		return
	}
	sh.RT.Print(s)
}

func (sh *Shell) builtinCd(argv []string) int32 {
	target := "/"
	if len(argv) > 1 {
		target = argv[1]
	}
	resolved := bpath.Canonicalize(sh.RT.Getwd(), target)
	if err := sh.RT.Chdir(resolved); err != nil {
		sh.RT.Print(fmt.Sprintf("cd: %s: %v\n", target, err))
		return 1
	}
	return 0
}

/// builtinDeclare parses [-r] [-x] NAME[=VALUE]: -r marks the variable
/// readonly, -x makes it global (owner 0) rather than scoped to this
/// shell instance. With no assignment argument it lists every variable
/// visible to this shell.
func (sh *Shell) builtinDeclare(argv []string, stdout int) int32 {
	readonly := 0
	global := false
	i := 1
	for i < len(argv) && strings.HasPrefix(argv[i], "-") && len(argv[i]) > 1 {
		for _, c := range argv[i][1:] {
			switch c {
			case 'r':
				readonly = 1
			case 'x':
				global = true
			default:
				sh.RT.Print(fmt.Sprintf("declare: unknown flag -%c\n", c))
				return 1
			}
		}
		i++
	}

	if i >= len(argv) {
		sh.writeOut(stdout, sh.RT.AllVars())
		return 0
	}

	assignment := argv[i]
	name, value := assignment, ""
	if eq := strings.IndexByte(assignment, '='); eq >= 0 {
		name, value = assignment[:eq], assignment[eq+1:]
	}
	if err := sh.RT.SetVar(name, value, readonly, global); err != nil {
		sh.RT.Print(fmt.Sprintf("declare: failed to declare variable %s\n", name))
		return 1
	}
	return 0
}

func (sh *Shell) builtinUnset(argv []string) int32 {
	if len(argv) < 2 {
		sh.RT.Print("unset: missing variable name\n")
		return 1
	}
	if err := sh.RT.UnsetVar(argv[1]); err != nil {
		sh.RT.Print(fmt.Sprintf("unset: failed to remove variable %s\n", argv[1]))
		return 1
	}
	return 0
}

/// builtinStat opens path read-only just long enough to report its
/// size and mode, the same information a real stat(2) would return
/// for the filesystem collaborator the fd layer externalizes.
func (sh *Shell) builtinStat(argv []string, stdout int) int32 {
	if len(argv) < 2 {
		sh.RT.Print("stat: missing path\n")
		return 1
	}
	fdno, err := sh.RT.OpenRead(argv[1])
	if err != nil {
		sh.RT.Print(fmt.Sprintf("stat: %s: %v\n", argv[1], err))
		return 1
	}
	defer sh.RT.CloseFd(fdno)
	size, mode, err := sh.RT.StatFd(fdno)
	if err != nil {
		sh.RT.Print(fmt.Sprintf("stat: %s: %v\n", argv[1], err))
		return 1
	}
	sh.writeOut(stdout, fmt.Sprintf("size=%d mode=0%o\n", size, mode))
	return 0
}

func (sh *Shell) builtinHistory(stdout int) {
	if sh.Hist == nil {
		return
	}
	for _, cmd := range sh.Hist.Entries() {
		sh.writeOut(stdout, cmd+"\n")
	}
}
