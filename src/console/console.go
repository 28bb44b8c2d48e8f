// Package console is MOS's concrete stand-in for the serial console
// driver spec.md treats as an external collaborator: a real terminal,
// put into raw mode so the shell's own line editor (src/shell) can see
// every keystroke — including Ctrl-A/E/K/U/W and arrow-key escape
// sequences — instead of the tty driver's own line discipline
// consuming them first.
package console

import "fmt"
import "os"

import "golang.org/x/sys/unix"

/// Raw puts a file descriptor into cbreak/raw mode (no canonical line
/// buffering, no echo, one-byte-at-a-time reads) and remembers the
/// prior termios so Restore can undo it.
type Raw struct {
	fd   int
	saved unix.Termios
	live bool
}

/// Enable switches fd into raw mode, saving its current settings.
func Enable(fd int) (*Raw, error) {
	saved, err := unix.IoctlGetTermios(fd, unix.TCGETS)
	if err != nil {
		return nil, fmt.Errorf("console: get termios: %w", err)
	}
	raw := *saved

	raw.Iflag &^= unix.IXON | unix.ICRNL | unix.BRKINT | unix.INPCK | unix.ISTRIP
	raw.Oflag &^= unix.OPOST
	raw.Lflag &^= unix.ECHO | unix.ICANON | unix.IEXTEN | unix.ISIG
	raw.Cflag |= unix.CS8
	raw.Cc[unix.VMIN] = 1
	raw.Cc[unix.VTIME] = 0

	if err := unix.IoctlSetTermios(fd, unix.TCSETS, &raw); err != nil {
		return nil, fmt.Errorf("console: set termios: %w", err)
	}
	return &Raw{fd: fd, saved: *saved, live: true}, nil
}

/// Restore puts the terminal back the way Enable found it. Safe to
/// call more than once.
func (r *Raw) Restore() error {
	if !r.live {
		return nil
	}
	r.live = false
	return unix.IoctlSetTermios(r.fd, unix.TCSETS, &r.saved)
}

/// Console adapts a raw-mode terminal to the byte-oriented Putc/Getc
/// surface fd.ConsoleFd and sysgate's SYS_PUTCHAR/SYS_CGETC/
/// write_dev/read_dev handlers expect.
type Console struct {
	in  *os.File
	out *os.File
}

/// New wraps the given input/output files (ordinarily os.Stdin and
/// os.Stdout) as a Console.
func New(in, out *os.File) *Console {
	return &Console{in: in, out: out}
}

/// Putc writes one byte to the console's output stream.
func (c *Console) Putc(b byte) {
	c.out.Write([]byte{b})
}

/// Getc blocks for exactly one byte from the console's input stream,
/// returning 0 on read error (end of the underlying stream).
func (c *Console) Getc() byte {
	var buf [1]byte
	if _, err := c.in.Read(buf[:]); err != nil {
		return 0
	}
	return buf[0]
}

/// Write implements the multi-byte half of fd.ConsoleFd.
func (c *Console) Write(p []byte) int {
	n, _ := c.out.Write(p)
	return n
}

/// Read implements the multi-byte half of fd.ConsoleFd.
func (c *Console) Read(p []byte) int {
	n, _ := c.in.Read(p)
	return n
}
