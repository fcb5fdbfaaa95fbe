package patch

import "testing"

func TestFindContextCoreExactMatch(t *testing.T) {
	lines := []string{"line1", "line2", "line3", "line4"}
	context := []string{"line2", "line3"}
	index, fuzz := findContextCore(lines, context, 0)
	if index != 1 || fuzz != 0 {
		t.Errorf("got (%d, %d), want (1, 0)", index, fuzz)
	}
}

func TestFindContextCoreWhitespaceTolerance(t *testing.T) {
	lines := []string{"line1", "line2  ", "line3", "line4"}
	context := []string{"line2", "line3"}
	index, fuzz := findContextCore(lines, context, 0)
	if index != 1 || fuzz != 1 {
		t.Errorf("got (%d, %d), want (1, 1)", index, fuzz)
	}
}

func TestFindContextCoreFullWhitespaceTolerance(t *testing.T) {
	lines := []string{"line1", "  line2  ", "  line3  ", "line4"}
	context := []string{"line2", "line3"}
	index, fuzz := findContextCore(lines, context, 0)
	if index != 1 || fuzz != 100 {
		t.Errorf("got (%d, %d), want (1, 100)", index, fuzz)
	}
}

func TestFindContextCoreNoMatch(t *testing.T) {
	lines := []string{"line1", "line2", "line3", "line4"}
	context := []string{"notfound", "alsomissing"}
	index, _ := findContextCore(lines, context, 0)
	if index != -1 {
		t.Errorf("got index %d, want -1", index)
	}
}

func TestFindContextCoreEmptyContext(t *testing.T) {
	lines := []string{"line1", "line2"}
	index, fuzz := findContextCore(lines, nil, 1)
	if index != 1 || fuzz != 0 {
		t.Errorf("got (%d, %d), want (1, 0)", index, fuzz)
	}
}

func TestFindContextEOFAnchored(t *testing.T) {
	lines := []string{"a", "b", "c", "d"}
	context := []string{"c", "d"}
	index, fuzz := findContext(lines, context, 0, true)
	if index != 2 || fuzz != 0 {
		t.Errorf("got (%d, %d), want (2, 0)", index, fuzz)
	}
}

func TestFindContextEOFFallbackPenalty(t *testing.T) {
	lines := []string{"a", "b", "c", "d"}
	context := []string{"b", "c"}
	index, fuzz := findContext(lines, context, 0, true)
	if index != 1 || fuzz != 10000 {
		t.Errorf("got (%d, %d), want (1, 10000)", index, fuzz)
	}
}
