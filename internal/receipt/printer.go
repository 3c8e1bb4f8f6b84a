package receipt

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"
)

// ErrPopupBlocked means no print window could be opened.
var ErrPopupBlocked = errors.New("print window could not be opened")

// Window is an open print target.
type Window interface {
	Write(html []byte) error
	// Loaded is closed once the written document is ready to print.
	Loaded() <-chan struct{}
	Print(ctx context.Context) error
	Close() error
}

type Opener interface {
	Open(ctx context.Context, name string) (Window, error)
}

// Spooler drives a print window through open, write, print and close.
type Spooler struct {
	opener   Opener
	fallback time.Duration
	logger   *zap.Logger
}

// NewSpooler returns a spooler that prints after the window reports loaded,
// or after fallback if it never does.
func NewSpooler(opener Opener, fallback time.Duration, logger *zap.Logger) *Spooler {
	return &Spooler{opener: opener, fallback: fallback, logger: logger}
}

func (s *Spooler) Print(ctx context.Context, doc Document) error {
	html, err := doc.HTML()
	if err != nil {
		return err
	}

	win, err := s.opener.Open(ctx, doc.Bill.Number)
	if err != nil {
		s.logger.Warn("Print window blocked", zap.String("bill_number", doc.Bill.Number), zap.Error(err))
		return fmt.Errorf("%w: %v", ErrPopupBlocked, err)
	}
	defer func() {
		if err := win.Close(); err != nil {
			s.logger.Warn("Failed to close print window", zap.Error(err))
		}
	}()

	if err := win.Write(html); err != nil {
		return fmt.Errorf("write receipt %s: %w", doc.Bill.Number, err)
	}

	timer := time.NewTimer(s.fallback)
	defer timer.Stop()
	select {
	case <-win.Loaded():
	case <-timer.C:
		s.logger.Debug("Print window load timed out, printing anyway", zap.String("bill_number", doc.Bill.Number))
	case <-ctx.Done():
		return ctx.Err()
	}

	if err := win.Print(ctx); err != nil {
		return fmt.Errorf("print receipt %s: %w", doc.Bill.Number, err)
	}
	s.logger.Info("Receipt printed",
		zap.String("bill_number", doc.Bill.Number),
		zap.Int("pages", len(doc.Pages)))
	return nil
}

// DirOpener spools receipts as HTML files into Dir and, when Command is
// set, runs it with the file path appended (e.g. "lp -d thermal").
type DirOpener struct {
	Dir     string
	Command string
	Logger  *zap.Logger
}

func (o DirOpener) Open(ctx context.Context, name string) (Window, error) {
	if err := os.MkdirAll(o.Dir, 0o755); err != nil {
		return nil, err
	}
	if name == "" {
		name = "receipt"
	}
	path := filepath.Join(o.Dir, fmt.Sprintf("%s-%d.html", sanitize(name), time.Now().UnixNano()))
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, err
	}
	return &fileWindow{file: f, command: o.Command, loaded: make(chan struct{}), logger: o.Logger}, nil
}

type fileWindow struct {
	file    *os.File
	command string
	loaded  chan struct{}
	closed  bool
	logger  *zap.Logger
}

func (w *fileWindow) Write(html []byte) error {
	if _, err := w.file.Write(html); err != nil {
		return err
	}
	if err := w.file.Sync(); err != nil {
		return err
	}
	close(w.loaded)
	return nil
}

func (w *fileWindow) Loaded() <-chan struct{} {
	return w.loaded
}

func (w *fileWindow) Print(ctx context.Context) error {
	if w.command == "" {
		if w.logger != nil {
			w.logger.Info("Receipt spooled", zap.String("path", w.file.Name()))
		}
		return nil
	}
	args := strings.Fields(w.command)
	cmd := exec.CommandContext(ctx, args[0], append(args[1:], w.file.Name())...)
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("%s: %w: %s", args[0], err, strings.TrimSpace(string(out)))
	}
	return nil
}

func (w *fileWindow) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true
	return w.file.Close()
}

func sanitize(name string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		}
		return '_'
	}, name)
}

// Printer renders bills with a fixed header and page size and spools them.
type Printer struct {
	header  Header
	perPage int
	spooler *Spooler
}

func NewPrinter(header Header, perPage int, spooler *Spooler) *Printer {
	return &Printer{header: header, perPage: perPage, spooler: spooler}
}

func (p *Printer) Document(b Bill) Document {
	return Render(b, p.header, p.perPage)
}

func (p *Printer) PrintBill(ctx context.Context, b Bill) error {
	return p.spooler.Print(ctx, p.Document(b))
}
