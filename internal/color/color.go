package color

import (
	"fmt"
	"os"
	"strings"

	"github.com/diodeinc/pcb-layout-lens/internal/oplog"
)

// ANSI color codes
const (
	Reset   = "\033[0m"
	Red     = "\033[31m"
	Green   = "\033[32m"
	Yellow  = "\033[33m"
	Blue    = "\033[34m"
	Magenta = "\033[35m"
	Cyan    = "\033[36m"
	White   = "\033[37m"
	Bold    = "\033[1m"
)

// Color represents a colorizer that can be enabled or disabled
type Color struct {
	enabled bool
}

// New creates a new Color instance
func New(enabled bool) *Color {
	return &Color{enabled: enabled && shouldEnableColor()}
}

// shouldEnableColor determines if color should be enabled based on environment
func shouldEnableColor() bool {
	// Check NO_COLOR environment variable (https://no-color.org/)
	if os.Getenv("NO_COLOR") != "" {
		return false
	}

	// Check TERM environment variable
	term := os.Getenv("TERM")
	if term == "dumb" || term == "" {
		return false
	}

	// Check if output is to a terminal
	// This is a simplified check - in a real implementation you might use
	// a package like github.com/mattn/go-isatty
	return true
}

// Add colors a string to indicate additions (green, like Terraform)
func (c *Color) Add(text string) string {
	if !c.enabled {
		return text
	}
	return Green + text + Reset
}

// Change colors a string to indicate modifications (yellow, like Terraform)
func (c *Color) Change(text string) string {
	if !c.enabled {
		return text
	}
	return Yellow + text + Reset
}

// Destroy colors a string to indicate deletions (red, like Terraform)
func (c *Color) Destroy(text string) string {
	if !c.enabled {
		return text
	}
	return Red + text + Reset
}

// Bold makes text bold
func (c *Color) Bold(text string) string {
	if !c.enabled {
		return text
	}
	return Bold + text + Reset
}

// Cyan colors text cyan (for headers and labels)
func (c *Color) Cyan(text string) string {
	if !c.enabled {
		return text
	}
	return Cyan + text + Reset
}

// Blue colors text blue
func (c *Color) Blue(text string) string {
	if !c.enabled {
		return text
	}
	return Blue + text + Reset
}

// eventSymbol classifies an OpLog event kind into the add/change/destroy
// vocabulary the rest of this package colors by.
func (c *Color) eventSymbol(kind oplog.Kind) string {
	switch kind {
	case oplog.KindFootprintAdd, oplog.KindGroupAdd:
		return c.Add("+")
	case oplog.KindFootprintRemove, oplog.KindGroupRemove:
		return c.Destroy("-")
	case oplog.KindFootprintReplace:
		return c.Change("~")
	default:
		return " "
	}
}

// FormatEventLine renders one OpLog event as a colored summary line,
// the sync-report analogue of the teacher's Terraform-style plan line.
func (c *Color) FormatEventLine(e oplog.Event) string {
	return fmt.Sprintf("  %s %s", c.eventSymbol(e.Kind), e.Kind)
}

// FormatSyncSummary formats the added/changed/removed footprint counts
// for a sync run's trailing summary line.
func (c *Color) FormatSyncSummary(added, changed, removed int) string {
	parts := []string{
		c.Add(fmt.Sprintf("%d to add", added)),
		c.Change(fmt.Sprintf("%d to change", changed)),
		c.Destroy(fmt.Sprintf("%d to remove", removed)),
	}
	return fmt.Sprintf("Sync: %s.", strings.Join(parts, ", "))
}
