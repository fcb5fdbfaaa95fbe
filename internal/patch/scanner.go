package patch

import "strings"

// lineMode is the classification assigned to a single raw hunk line.
type lineMode int

const (
	modeKeep lineMode = iota
	modeAdd
	modeDelete
)

// endSectionPrefixes lists the line prefixes that close the current hunk
// section. A bare "***" also closes a section (the lone separator between
// two update-file hunks that share no blank line).
var endSectionPrefixes = []string{
	"@@",
	patchSuffix,
	updateFilePrefix,
	deleteFilePrefix,
	addFilePrefix,
	endOfFilePrefix,
}

// peekNextSection scans forward from start, classifying each raw line as
// keep/add/delete and grouping contiguous add/delete runs into Chunks. It
// stops at the first line matching one of endSectionPrefixes (compared
// against each prefix's trimmed form, per the reference implementation's
// startswith(prefix.strip()) quirk) or at a bare "***" separator. If the
// section is immediately followed by "*** End of File", eof is true and that
// marker line is consumed.
func peekNextSection(lines []string, start int) (context []string, chunks []Chunk, next int, eof bool, err error) {
	index := start
	var old []string
	var delLines, insLines []string
	mode := modeKeep

	flush := func() {
		if len(insLines) > 0 || len(delLines) > 0 {
			chunks = append(chunks, Chunk{
				OrigIndex: len(old) - len(delLines),
				DelLines:  delLines,
				InsLines:  insLines,
			})
		}
		delLines = nil
		insLines = nil
	}

	for index < len(lines) {
		s := lines[index]

		if matchesEndPrefix(s) || s == "***" {
			break
		}
		if strings.HasPrefix(s, "***") {
			return nil, nil, 0, false, diffErrorf("Invalid Line: %s", s)
		}

		index++
		lastMode := mode
		line := s

		switch {
		case strings.HasPrefix(line, "+"):
			mode = modeAdd
		case strings.HasPrefix(line, "-"):
			mode = modeDelete
		case strings.HasPrefix(line, " "):
			mode = modeKeep
		default:
			// Tolerate a hunk line missing its leading context space.
			mode = modeKeep
			line = " " + line
		}
		line = line[1:]

		if mode == modeKeep && lastMode != mode {
			flush()
		}

		switch mode {
		case modeDelete:
			delLines = append(delLines, line)
			old = append(old, line)
		case modeAdd:
			insLines = append(insLines, line)
		default:
			old = append(old, line)
		}
	}

	flush()

	if index < len(lines) && lines[index] == endOfFilePrefix {
		index++
		return old, chunks, index, true, nil
	}

	return old, chunks, index, false, nil
}

func matchesEndPrefix(s string) bool {
	for _, p := range endSectionPrefixes {
		if strings.HasPrefix(s, strings.TrimSpace(p)) {
			return true
		}
	}
	return false
}
