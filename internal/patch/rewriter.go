package patch

import "strings"

// Rewrite applies chunks, in order, to orig's line vector, producing the
// updated file content. Each chunk's OrigIndex must be non-decreasing across
// the walk and must not exceed len(orig); Rewrite reports a DiffError
// otherwise rather than silently reordering the patch.
func Rewrite(orig []string, chunks []Chunk) (string, error) {
	var dest []string
	origIndex := 0

	for _, chunk := range chunks {
		if chunk.OrigIndex > len(orig) {
			return "", diffErrorf("chunk.orig_index %d > len(lines) %d", chunk.OrigIndex, len(orig))
		}
		if origIndex > chunk.OrigIndex {
			return "", diffErrorf("orig_index %d > chunk.orig_index %d", origIndex, chunk.OrigIndex)
		}

		dest = append(dest, orig[origIndex:chunk.OrigIndex]...)
		origIndex = chunk.OrigIndex

		dest = append(dest, chunk.InsLines...)
		origIndex += len(chunk.DelLines)
	}

	dest = append(dest, orig[origIndex:]...)
	return strings.Join(dest, "\n"), nil
}
