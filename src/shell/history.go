package shell

/// HistorySize is the fixed number of remembered commands.
const HistorySize = 20

/// Persist receives the history's entries in insertion (oldest-first)
/// order every time a command is added, so the caller can replay them
/// into /.mos_history exactly as the original shell rewrites its
/// history file on every store.
type Persist func(entries []string)

/// History is a circular buffer of the last HistorySize non-empty
/// commands entered.
type History struct {
	buf     [HistorySize]string
	next    int
	count   int
	persist Persist
}

/// NewHistory builds an empty history, optionally wired to a Persist
/// callback invoked after every Add.
func NewHistory(persist Persist) *History {
	return &History{persist: persist}
}

/// Add stores cmd as the newest entry, evicting the oldest once the
/// buffer is full, and invokes Persist with the full ordered list.
func (h *History) Add(cmd string) {
	if cmd == "" {
		return
	}
	h.buf[h.next] = cmd
	h.next = (h.next + 1) % HistorySize
	if h.count < HistorySize {
		h.count++
	}
	if h.persist != nil {
		h.persist(h.Entries())
	}
}

/// Entries returns every stored command, oldest first.
func (h *History) Entries() []string {
	out := make([]string, 0, h.count)
	start := (h.next - h.count + HistorySize) % HistorySize
	for i := 0; i < h.count; i++ {
		out = append(out, h.buf[(start+i)%HistorySize])
	}
	return out
}

/// Len reports how many commands are currently stored.
func (h *History) Len() int { return h.count }

/// At returns the i'th most recent command (0 is the newest), for the
/// line editor's up/down history walk.
func (h *History) At(i int) (string, bool) {
	if i < 0 || i >= h.count {
		return "", false
	}
	idx := (h.next - 1 - i + HistorySize) % HistorySize
	return h.buf[idx], true
}
