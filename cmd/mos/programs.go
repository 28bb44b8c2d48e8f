package main

import (
	"strconv"
	"strings"

	"fd"
)

/// readAll drains f to EOF. Since programs run synchronously with no
/// concurrent producer, a zero-length read always means "nothing more
/// is coming", not "try again".
func readAll(f *fd.Fd_t) string {
	if f == nil {
		return ""
	}
	var sb strings.Builder
	buf := make([]byte, 512)
	for {
		n, err := f.Read(buf)
		if n <= 0 || err != 0 {
			break
		}
		sb.Write(buf[:n])
	}
	return sb.String()
}

func writeOut(f *fd.Fd_t, s string) {
	if f == nil {
		return
	}
	f.Write([]byte(s))
}

/// defaultPrograms is the demo's fixed menu of built-in executables,
/// one Go closure standing in for each of a handful of the tiny C
/// programs under original_source/user (echo/cat/true/false have no
/// direct original counterpart there, but follow the same one-job,
/// read-argv-write-stdout shape those programs do).
func defaultPrograms() map[string]program {
	return map[string]program{
		"echo": func(argv []string, stdin, stdout *fd.Fd_t) int32 {
			writeOut(stdout, strings.Join(argv[1:], " ")+"\n")
			return 0
		},
		"cat": func(argv []string, stdin, stdout *fd.Fd_t) int32 {
			writeOut(stdout, readAll(stdin))
			return 0
		},
		"wc": func(argv []string, stdin, stdout *fd.Fd_t) int32 {
			data := readAll(stdin)
			lines := strings.Count(data, "\n")
			words := len(strings.Fields(data))
			writeOut(stdout, strconv.Itoa(lines)+" "+strconv.Itoa(words)+" "+strconv.Itoa(len(data))+"\n")
			return 0
		},
		"true": func(argv []string, stdin, stdout *fd.Fd_t) int32 {
			return 0
		},
		"false": func(argv []string, stdin, stdout *fd.Fd_t) int32 {
			return 1
		},
		// legacy.b exists only under its ".b" name, demonstrating the
		// shell's toggleDotB spawn fallback: "legacy" fails to spawn,
		// is retried as "legacy.b", and succeeds.
		"legacy.b": func(argv []string, stdin, stdout *fd.Fd_t) int32 {
			writeOut(stdout, "legacy tool invoked\n")
			return 0
		},
	}
}
