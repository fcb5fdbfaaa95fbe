package patch

import "strings"

// Parser drives the patch grammar over a fixed line slice, consuming one
// section per iteration and accumulating fuzz from both the @@ defline
// rebase and the context locator.
type Parser struct {
	CurrentFiles FileSnapshot
	Lines        []string
	Index        int
	Patch        Patch
	Fuzz         int
}

func newParser(lines []string, orig FileSnapshot) *Parser {
	return &Parser{
		CurrentFiles: orig,
		Lines:        lines,
		Patch:        newPatch(),
	}
}

// isDone reports whether parsing has reached the end of the line slice, or
// the current line matches one of the given (trimmed) terminator prefixes.
func (p *Parser) isDone(prefixes []string) bool {
	if p.Index >= len(p.Lines) {
		return true
	}
	if len(prefixes) == 0 {
		return false
	}
	cur := p.Lines[p.Index]
	for _, prefix := range prefixes {
		if strings.HasPrefix(cur, strings.TrimSpace(prefix)) {
			return true
		}
	}
	return false
}

func (p *Parser) startsWith(prefixes ...string) bool {
	if p.Index >= len(p.Lines) {
		return false
	}
	cur := p.Lines[p.Index]
	for _, prefix := range prefixes {
		if strings.HasPrefix(cur, prefix) {
			return true
		}
	}
	return false
}

// readStr consumes the current line if it starts with prefix, returning the
// remainder (or the whole line if returnEverything) and advancing the
// cursor. It returns "" without advancing if the current line doesn't match.
func (p *Parser) readStr(prefix string, returnEverything bool) (string, error) {
	if p.Index >= len(p.Lines) {
		return "", diffErrorf("Index: %d >= %d", p.Index, len(p.Lines))
	}
	line := p.Lines[p.Index]
	if !strings.HasPrefix(line, prefix) {
		return "", nil
	}
	text := line[len(prefix):]
	if returnEverything {
		text = line
	}
	p.Index++
	return text, nil
}

var updateEndPrefixes = []string{
	patchSuffix, updateFilePrefix, deleteFilePrefix, addFilePrefix, endOfFilePrefix,
}

var addEndPrefixes = []string{
	patchSuffix, updateFilePrefix, deleteFilePrefix, addFilePrefix,
}

// parse drives the top-level loop: one Update/Delete/Add section per
// iteration, until the patch-suffix terminator is reached.
func (p *Parser) parse() error {
	for !p.isDone([]string{patchSuffix}) {
		path, err := p.readStr(updateFilePrefix, false)
		if err != nil {
			return err
		}
		if path != "" {
			if _, exists := p.Patch.Actions[path]; exists {
				return diffErrorf("Update File Error: Duplicate Path: %s", path)
			}
			moveTo, err := p.readStr(moveFilePrefix, false)
			if err != nil {
				return err
			}
			text, ok := p.CurrentFiles[path]
			if !ok {
				return diffErrorf("Update File Error: Missing File: %s", path)
			}
			action, err := p.parseUpdateFile(text)
			if err != nil {
				return err
			}
			if moveTo != "" {
				action.MovePath = moveTo
			}
			p.Patch.add(path, action)
			continue
		}

		path, err = p.readStr(deleteFilePrefix, false)
		if err != nil {
			return err
		}
		if path != "" {
			if _, exists := p.Patch.Actions[path]; exists {
				return diffErrorf("Delete File Error: Duplicate Path: %s", path)
			}
			if _, ok := p.CurrentFiles[path]; !ok {
				return diffErrorf("Delete File Error: Missing File: %s", path)
			}
			p.Patch.add(path, PatchAction{Kind: ActionDelete})
			continue
		}

		path, err = p.readStr(addFilePrefix, false)
		if err != nil {
			return err
		}
		if path != "" {
			if _, exists := p.Patch.Actions[path]; exists {
				return diffErrorf("Add File Error: Duplicate Path: %s", path)
			}
			if _, ok := p.CurrentFiles[path]; ok {
				return diffErrorf("Add File Error: File already exists: %s", path)
			}
			action, err := p.parseAddFile()
			if err != nil {
				return err
			}
			p.Patch.add(path, action)
			continue
		}

		return diffErrorf("Unknown Line: %s", p.Lines[p.Index])
	}

	if !p.startsWith(strings.TrimSpace(patchSuffix)) {
		return diffErrorf("Missing End Patch")
	}
	p.Index++
	return nil
}

// parseUpdateFile walks the hunks of a single Update section, rebasing each
// one's @@ defline anchor (if present) and its context lines onto text's
// line vector, accumulating chunks with file-absolute OrigIndex values.
func (p *Parser) parseUpdateFile(text string) (PatchAction, error) {
	action := PatchAction{Kind: ActionUpdate}
	fileLines := strings.Split(text, "\n")
	index := 0

	for !p.isDone(updateEndPrefixes) {
		defStr, err := p.readStr("@@ ", false)
		if err != nil {
			return PatchAction{}, err
		}
		sectionStr := ""
		if defStr == "" && p.Index < len(p.Lines) && p.Lines[p.Index] == "@@" {
			sectionStr = p.Lines[p.Index]
			p.Index++
		}

		if defStr == "" && sectionStr == "" && index != 0 {
			return PatchAction{}, diffErrorf("Invalid Line:\n%s", p.Lines[p.Index])
		}

		if strings.TrimSpace(defStr) != "" {
			found := false
			canonicalDef := canon(defStr)

			for i := index; i < len(fileLines); i++ {
				if canon(fileLines[i]) == canonicalDef {
					index = i + 1
					found = true
					break
				}
			}

			if !found {
				canonicalDefTrimmed := canon(strings.TrimSpace(defStr))
				for i := index; i < len(fileLines); i++ {
					if canon(strings.TrimSpace(fileLines[i])) == canonicalDefTrimmed {
						index = i + 1
						p.Fuzz++
						found = true
						break
					}
				}
			}
		}

		nextChunkContext, chunks, endPatchIndex, eof, err := peekNextSection(p.Lines, p.Index)
		if err != nil {
			return PatchAction{}, err
		}
		newIndex, fuzz := findContext(fileLines, nextChunkContext, index, eof)

		if newIndex == -1 {
			ctxText := strings.Join(nextChunkContext, "\n")
			errorType := "Invalid Context"
			if eof {
				errorType = "Invalid EOF Context"
			}
			return PatchAction{}, diffErrorf("%s %d:\n%s", errorType, index, ctxText)
		}

		p.Fuzz += fuzz
		for _, ch := range chunks {
			ch.OrigIndex += newIndex
			action.Chunks = append(action.Chunks, ch)
		}

		index = newIndex + len(nextChunkContext)
		p.Index = endPatchIndex
	}

	return action, nil
}

// parseAddFile consumes lines until the next section terminator, requiring
// every line to carry the "+" add prefix.
func (p *Parser) parseAddFile() (PatchAction, error) {
	var lines []string

	for !p.isDone(addEndPrefixes) {
		s, err := p.readStr("", false)
		if err != nil {
			return PatchAction{}, err
		}
		if !strings.HasPrefix(s, hunkAddPrefix) {
			return PatchAction{}, diffErrorf("Invalid Add File Line: %s", s)
		}
		lines = append(lines, s[1:])
	}

	return PatchAction{Kind: ActionAdd, NewFile: strings.Join(lines, "\n")}, nil
}

// TextToPatch parses a full patch document against orig, the snapshot of
// every file the patch's Update/Delete sections reference. It returns the
// parsed Patch and the total fuzz accumulated locating context and @@
// deflines.
func TextToPatch(text string, orig FileSnapshot) (Patch, int, error) {
	lines := strings.Split(strings.TrimSpace(text), "\n")
	if len(lines) < 2 || !strings.HasPrefix(lines[0], strings.TrimSpace(patchPrefix)) ||
		lines[len(lines)-1] != strings.TrimSpace(patchSuffix) {
		return Patch{}, 0, diffErrorf("Invalid patch format")
	}

	p := newParser(lines, orig)
	p.Index = 1
	if err := p.parse(); err != nil {
		return Patch{}, 0, err
	}
	return p.Patch, p.Fuzz, nil
}
