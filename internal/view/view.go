// Package view renders the branch decoration of a set of files to a
// terminal.
package view

import (
	"bytes"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"sync"
	"text/tabwriter"
	"time"

	"github.com/pmezard/go-difflib/difflib"

	"github.com/thiagokokada/branchlens/internal/debounce"
	"github.com/thiagokokada/branchlens/internal/status"
)

const (
	DefaultRefreshDelay = 50 * time.Millisecond

	// Unknown stands in for a status that is still being computed.
	Unknown = "…"
)

// Source supplies decorations. A miss is expected to schedule a lookup.
type Source interface {
	Decoration(path string) (status.Status, bool)
	DecorationsShown() bool
}

type Options struct {
	// RefreshDelay coalesces refresh requests arriving in a burst.
	RefreshDelay time.Duration
	// Diff prints a unified diff against the previous rendering instead of
	// the whole table.
	Diff bool
	// OnRender is called after every rendering with the number of files
	// still waiting for a decoration.
	OnRender func(missing int)
}

// Decorator implements status.Sink by redrawing the decoration table.
type Decorator struct {
	out   io.Writer
	files []string
	opts  Options

	refresh *debounce.Debouncer

	mu      sync.Mutex
	src     Source
	last    string
	renders int
}

func New(out io.Writer, files []string, opts Options) *Decorator {
	if opts.RefreshDelay <= 0 {
		opts.RefreshDelay = DefaultRefreshDelay
	}
	d := &Decorator{
		out:   out,
		files: slices.Clone(files),
		opts:  opts,
	}
	d.refresh = debounce.New(opts.RefreshDelay, func() { d.Render() })
	return d
}

// Bind sets the decoration source. Refreshes before Bind render nothing.
func (d *Decorator) Bind(src Source) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.src = src
}

// Refresh requests a redraw after the refresh delay.
func (d *Decorator) Refresh() {
	d.refresh.Trigger()
}

// Flush runs a pending redraw right away.
func (d *Decorator) Flush() bool {
	return d.refresh.Flush()
}

func (d *Decorator) Stop() {
	d.refresh.Stop()
}

// Renders returns how many renderings were written.
func (d *Decorator) Renders() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.renders
}

// Last returns the most recent table, without diff framing.
func (d *Decorator) Last() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.last
}

// Render draws the table now and reports whether every file was decorated.
func (d *Decorator) Render() bool {
	d.mu.Lock()
	if d.src == nil {
		d.mu.Unlock()
		return false
	}
	table, missing := d.table()
	out, err := d.frame(table)
	if err == nil {
		_, err = io.WriteString(d.out, out)
	}
	d.last = table
	d.renders++
	onRender := d.opts.OnRender
	d.mu.Unlock()

	if err != nil {
		slog.Error("render decorations", slog.Any("error", err))
	}
	if onRender != nil {
		onRender(missing)
	}
	return missing == 0
}

func (d *Decorator) table() (string, int) {
	var buf bytes.Buffer
	tw := tabwriter.NewWriter(&buf, 0, 4, 2, ' ', 0)
	shown := d.src.DecorationsShown()
	missing := 0
	for _, f := range d.files {
		if !shown {
			fmt.Fprintln(tw, f)
			continue
		}
		label := Unknown
		if s, ok := d.src.Decoration(f); ok {
			label = s.String()
		} else {
			missing++
		}
		fmt.Fprintf(tw, "%s\t%s\n", f, label)
	}
	_ = tw.Flush()
	return buf.String(), missing
}

func (d *Decorator) frame(table string) (string, error) {
	if !d.opts.Diff || d.renders == 0 {
		return table, nil
	}
	ud := difflib.UnifiedDiff{
		A:        difflib.SplitLines(d.last),
		B:        difflib.SplitLines(table),
		FromFile: fmt.Sprintf("rendering/%d", d.renders),
		ToFile:   fmt.Sprintf("rendering/%d", d.renders+1),
		Context:  1,
	}
	return difflib.GetUnifiedDiffString(ud)
}
