package components

import (
	"fmt"
	"strings"

	"github.com/felixgeelhaar/kostore/internal/tui/ui"
)

// Progress renders a completed/total bar.
type Progress struct {
	current int
	total   int
	width   int
	styles  ui.Styles
}

// NewProgress creates a progress bar for total items.
func NewProgress(total int) Progress {
	if total < 0 {
		total = 0
	}
	return Progress{
		total:  total,
		width:  ui.DefaultProgressBarWidth,
		styles: ui.DefaultStyles(),
	}
}

// Current returns the number of completed items.
func (p Progress) Current() int {
	return p.current
}

// Percent returns the completed fraction in [0, 1].
func (p Progress) Percent() float64 {
	if p.total == 0 {
		return 0
	}
	return float64(p.current) / float64(p.total)
}

// Increment marks one more item complete.
func (p Progress) Increment() Progress {
	if p.current < p.total {
		p.current++
	}
	return p
}

// WithWidth sets the bar width including brackets.
func (p Progress) WithWidth(width int) Progress {
	if width < 3 {
		width = 3
	}
	p.width = width
	return p
}

// View renders the bar followed by the counts.
func (p Progress) View() string {
	barWidth := p.width - 2
	filled := int(p.Percent() * float64(barWidth))

	bar := fmt.Sprintf("[%s%s]",
		strings.Repeat("█", filled),
		strings.Repeat("░", barWidth-filled),
	)
	return fmt.Sprintf("%s %d/%d", p.styles.ProgressBar.Render(bar), p.current, p.total)
}
