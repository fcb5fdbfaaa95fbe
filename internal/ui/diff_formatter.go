package ui

import "strings"

// FormatPatchForDisplay renders a raw patch document (the "*** Begin Patch"
// grammar) for the approval dialog: section headers and @@ context markers
// are dimmed, "+" hunk lines are green, "-" hunk lines are red, and
// unprefixed context lines are gray.
func FormatPatchForDisplay(rawPatch string) string {
	lines := strings.Split(rawPatch, "\n")

	var formatted strings.Builder
	for i, line := range lines {
		switch {
		case strings.HasPrefix(line, "*** ") || strings.HasPrefix(line, "@@"):
			formatted.WriteString(diffContextStyle.Render(line))
		case strings.HasPrefix(line, "+"):
			formatted.WriteString(diffAddedStyle.Render(line))
		case strings.HasPrefix(line, "-"):
			formatted.WriteString(diffRemovedStyle.Render(line))
		case line == "":
			// leave blank lines unstyled
		default:
			formatted.WriteString(diffContextStyle.Render(line))
		}
		if i < len(lines)-1 {
			formatted.WriteString("\n")
		}
	}

	return formatted.String()
}
