// Package terminal renders the client's user-facing output on a text stream.
package terminal

import (
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"

	"github.com/pscheid92/leavenotify/internal/domain"
)

// Navigator tracks the current location of a terminal session. Navigating
// prints the new location so a wrapping UI can follow it.
type Navigator struct {
	mu   sync.Mutex
	out  io.Writer
	path string
}

var _ domain.Navigator = (*Navigator)(nil)

func NewNavigator(out io.Writer, initial string) *Navigator {
	if initial == "" {
		initial = "/"
	}
	return &Navigator{out: out, path: initial}
}

func (n *Navigator) CurrentPath() string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.path
}

func (n *Navigator) Navigate(path string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	slog.Info("Navigating", "from", n.path, "to", path)
	n.path = path
	_, _ = fmt.Fprintf(n.out, "-> %s\n", path)
}

// Printer writes toasts, notifications and connection changes as single lines.
type Printer struct {
	mu  sync.Mutex
	out io.Writer
}

func NewPrinter(out io.Writer) *Printer {
	return &Printer{out: out}
}

func (p *Printer) Toast(t domain.Toast) {
	p.printf("[%s] %s\n", strings.ToUpper(string(t.Severity)), t.Message)
}

func (p *Printer) Notification(r domain.NotificationRecord) {
	p.printf("%s  %s (%s)\n", r.CreatedAt.Local().Format("15:04:05"), r.Message, r.Audience)
}

func (p *Printer) Connection(st domain.ConnectionStatus) {
	switch {
	case st.LastError != "" && st.State != domain.StateOpen:
		p.printf("connection %s (attempt %d/%d): %s\n", st.StateName, st.Attempt, st.MaxAttempts, st.LastError)
	default:
		p.printf("connection %s\n", st.StateName)
	}
}

func (p *Printer) printf(format string, args ...any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, _ = fmt.Fprintf(p.out, format, args...)
}
