package train

import (
	"fmt"
	"io"
	"strings"
	"time"
)

// barWidth is the rendered bar segment length in characters.
const barWidth = 20

// Progress renders a single-line progress bar in the familiar layout
//
//	desc: 45%|█████████           | 45/100 [00:12, 3.67it/s]
//
// where desc is the slot the trainer fills with the running loss. Each
// update rewrites the line in place with a carriage return.
type Progress struct {
	w       io.Writer
	total   int
	done    int
	desc    string
	started time.Time
}

// NewProgress creates a bar over total units writing to w.
func NewProgress(w io.Writer, total int) *Progress {
	return &Progress{w: w, total: total, started: time.Now()}
}

// SetDescription replaces the text before the percentage and redraws.
func (p *Progress) SetDescription(desc string) {
	p.desc = desc
	p.render()
}

// Increment advances the bar one unit and redraws.
func (p *Progress) Increment() {
	p.done++
	p.render()
}

// Finish redraws one last time and terminates the line.
func (p *Progress) Finish() {
	p.render()
	fmt.Fprintln(p.w)
}

func (p *Progress) render() {
	fmt.Fprintf(p.w, "\r%s", p.line())
}

// line formats the current state.
func (p *Progress) line() string {
	percent := 0
	filled := 0
	if p.total > 0 {
		percent = p.done * 100 / p.total
		filled = p.done * barWidth / p.total
		if filled > barWidth {
			filled = barWidth
		}
	}
	bar := strings.Repeat("█", filled) + strings.Repeat(" ", barWidth-filled)

	elapsed := time.Since(p.started)
	rate := 0.0
	if secs := elapsed.Seconds(); secs > 0 {
		rate = float64(p.done) / secs
	}

	prefix := ""
	if p.desc != "" {
		prefix = p.desc + ": "
	}
	return fmt.Sprintf("%s%3d%%|%s| %d/%d [%s, %.2fit/s]",
		prefix, percent, bar, p.done, p.total, formatDuration(elapsed), rate)
}

// formatDuration renders mm:ss, growing to hh:mm:ss past an hour.
func formatDuration(d time.Duration) string {
	secs := int(d.Seconds())
	if secs >= 3600 {
		return fmt.Sprintf("%02d:%02d:%02d", secs/3600, secs%3600/60, secs%60)
	}
	return fmt.Sprintf("%02d:%02d", secs/60, secs%60)
}
