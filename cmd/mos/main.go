package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"console"
	"shell"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

/// newRootCmd builds the "mos" command: `mos [-i] [-x] [script-file]`,
/// the same shape original_source/user/sh.c's argv handling offers —
/// an optional script path to run non-interactively, or drop into the
/// line-editing loop when none is given (or -i forces it anyway).
func newRootCmd() *cobra.Command {
	var interactive bool
	var trace bool

	cmd := &cobra.Command{
		Use:   "mos [script-file]",
		Short: "run the MOS educational kernel's shell",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			k, err := bootKernel(console.New(os.Stdin, os.Stdout))
			if err != nil {
				return err
			}
			rt := newKernelRuntime(k, trace)
			hist := shell.NewHistory(rt.persistHistory)
			sh := shell.New(rt, k.shell.ShellId, hist)

			if len(args) == 1 && !interactive {
				return runScript(sh, args[0])
			}
			return runInteractive(sh, rt)
		},
	}

	cmd.Flags().BoolVarP(&interactive, "interactive", "i", false, "force the line-editing shell even when a script file is given")
	cmd.Flags().BoolVarP(&trace, "trace", "x", false, "print each spawned command to stderr before running it")
	return cmd
}

/// runScript feeds a file's lines through the shell one at a time,
/// the way sh.c runs a script passed on argv rather than reading from
/// its own terminal.
func runScript(sh *shell.Shell, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("mos: %s: %w", path, err)
	}
	for _, line := range strings.Split(string(data), "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		if _, err := sh.RunLine(line); err != nil {
			fmt.Fprintf(os.Stderr, "mos: %v\n", err)
		}
	}
	return nil
}

/// runInteractive puts the terminal in raw mode and drives the line
/// editor byte by byte, running each completed line through the
/// shell and restoring the terminal on exit.
func runInteractive(sh *shell.Shell, rt *kernelRuntime) error {
	raw, err := console.Enable(int(os.Stdin.Fd()))
	if err != nil {
		// Not a real terminal (e.g. piped stdin in a test harness);
		// fall back to running whatever lines arrive on stdin.
		return runPipedStdin(sh)
	}
	defer raw.Restore()

	const prompt = "mos$ "
	rt.Print(prompt)
	editor := shell.NewEditor(prompt, sh.Hist, rt.Print)

	buf := make([]byte, 1)
	for {
		n, err := os.Stdin.Read(buf)
		if n == 0 || err != nil {
			break
		}
		line, done := editor.Feed(buf[0])
		if !done {
			continue
		}
		if strings.TrimSpace(line) != "" {
			if _, err := sh.RunLine(line); err != nil {
				fmt.Fprintf(os.Stderr, "mos: %v\n", err)
			}
		}
		rt.Print(prompt)
	}
	return nil
}

/// runPipedStdin is the non-tty fallback: read whole lines directly,
/// without the raw-mode editor, so scripted input (or a test harness)
/// still works without a real terminal underneath it.
func runPipedStdin(sh *shell.Shell) error {
	buf := make([]byte, 4096)
	var pending strings.Builder
	for {
		n, err := os.Stdin.Read(buf)
		if n > 0 {
			pending.Write(buf[:n])
			for {
				s := pending.String()
				i := strings.IndexByte(s, '\n')
				if i < 0 {
					break
				}
				line := s[:i]
				pending.Reset()
				pending.WriteString(s[i+1:])
				if strings.TrimSpace(line) != "" {
					if _, rerr := sh.RunLine(line); rerr != nil {
						fmt.Fprintf(os.Stderr, "mos: %v\n", rerr)
					}
				}
			}
		}
		if err != nil {
			break
		}
	}
	return nil
}
