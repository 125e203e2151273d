// Package irfmt renders an ir.Module's instruction stream as a human-readable
// table, styled with lipgloss/termenv the way backends/simplego's benchmark
// tests style their terminal tables. Used by optimize.Run's verify-failure
// diagnostics, as a readable dump instead of a slice of pointers.
package irfmt

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"

	"github.com/gomlx/tensorir/ir"
)

var (
	headerStyle = lipgloss.NewStyle().Bold(true)
	stripeStyle = lipgloss.NewStyle().Background(lipgloss.ANSIColor(0))
	spotlight   = lipgloss.NewStyle().Background(lipgloss.ANSIColor(1)).Bold(true)
)

// Dump renders every instruction in m in stream order as a table of index,
// kind, name, and operands. highlight, if >= 0, marks that index's row as the
// one the caller wants the reader's eye drawn to (e.g. the instruction that
// failed a verify predicate). Diagnostics (verify failures, test dumps) run
// outside a terminal as often as not, so the color profile is forced to
// ANSI256 for the duration of the render and restored afterward, the way
// backends/simplego's benchmark tables do.
func Dump(m *ir.Module, highlight int) string {
	originalProfile := lipgloss.ColorProfile()
	lipgloss.SetColorProfile(termenv.ANSI256)
	defer lipgloss.SetColorProfile(originalProfile)

	var b strings.Builder
	header := fmt.Sprintf("%-5s %-20s %-24s %s", "#", "Kind", "Name", "Operands")
	b.WriteString(headerStyle.Render(header))
	b.WriteString("\n")
	b.WriteString(strings.Repeat("-", len(header)))
	b.WriteString("\n")

	for i, instr := range m.InstructionSlice() {
		row := fmt.Sprintf("%-5d %-20s %-24s %s", i, instr.Kind, instr.Name, formatOperands(instr))
		style := lipgloss.NewStyle()
		if i%2 == 1 {
			style = stripeStyle
		}
		if i == highlight {
			style = spotlight
		}
		b.WriteString(style.Render(row))
		b.WriteString("\n")
	}
	return b.String()
}

func formatOperands(instr *ir.Instruction) string {
	if instr.Kind == ir.KindTensorView {
		if instr.View == nil {
			return "<nil view>"
		}
		return fmt.Sprintf("%s = view(%s)", instr.View.Name(), instr.View.Source.Name())
	}
	parts := make([]string, len(instr.Operands))
	for i, op := range instr.Operands {
		parts[i] = fmt.Sprintf("%s:%s", op.Kind, op.Value.Name())
	}
	return strings.Join(parts, ", ")
}
