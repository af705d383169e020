// Package splice applies non-overlapping text edits to a source string and
// produces the matching source map.
package splice

import (
	"fmt"
	"sort"
	"strings"
	"unicode/utf16"
	"unicode/utf8"

	"github.com/rollup/plugins-sub001/internal/sourcemap"
)

type editKind int

const (
	kindInsert editKind = iota
	kindOverwrite
)

type edit struct {
	start int
	end   int
	text  string
	kind  editKind
	seq   int
}

// Editor records edits against an immutable original string.
type Editor struct {
	original string
	head     []string
	tail     []string
	edits    []edit
}

func New(original string) *Editor {
	return &Editor{original: original}
}

func (e *Editor) Original() string {
	return e.original
}

// Prepend adds text before everything else, including earlier prepends.
func (e *Editor) Prepend(text string) {
	e.head = append([]string{text}, e.head...)
}

func (e *Editor) Append(text string) {
	e.tail = append(e.tail, text)
}

// Insert places text immediately before the original byte at pos. Several
// inserts at the same position keep their call order.
func (e *Editor) Insert(pos int, text string) {
	e.edits = append(e.edits, edit{start: pos, end: pos, text: text, kind: kindInsert, seq: len(e.edits)})
}

// Overwrite replaces original[start:end] with text.
func (e *Editor) Overwrite(start, end int, text string) error {
	if start < 0 || end > len(e.original) || start > end {
		return fmt.Errorf("edit range %d:%d out of bounds", start, end)
	}
	for _, existing := range e.edits {
		if existing.kind != kindOverwrite {
			continue
		}
		if start < existing.end && existing.start < end {
			return fmt.Errorf("edit range %d:%d overlaps %d:%d", start, end, existing.start, existing.end)
		}
	}
	e.edits = append(e.edits, edit{start: start, end: end, text: text, kind: kindOverwrite, seq: len(e.edits)})
	return nil
}

func (e *Editor) Remove(start, end int) error {
	return e.Overwrite(start, end, "")
}

// Changed reports whether any edit was recorded.
func (e *Editor) Changed() bool {
	return len(e.head) > 0 || len(e.tail) > 0 || len(e.edits) > 0
}

func (e *Editor) String() string {
	out, _ := e.render(false)
	return out
}

// Result returns the edited text together with a source map pointing back at
// the original. Replaced ranges map to their original start.
func (e *Editor) Result(file, source string) (string, *sourcemap.Map) {
	out, builder := e.render(true)
	return out, builder.Build(file, source, e.original)
}

func (e *Editor) sortedEdits() []edit {
	edits := append([]edit(nil), e.edits...)
	sort.SliceStable(edits, func(i, j int) bool {
		if edits[i].start != edits[j].start {
			return edits[i].start < edits[j].start
		}
		if edits[i].kind != edits[j].kind {
			return edits[i].kind < edits[j].kind
		}
		return edits[i].seq < edits[j].seq
	})
	return edits
}

func (e *Editor) render(withMap bool) (string, *sourcemap.Builder) {
	w := &writer{original: e.original, mapped: withMap, builder: &sourcemap.Builder{}}
	if withMap {
		w.lineStarts = lineStarts(e.original)
	}
	w.builder.NewLine()
	for _, text := range e.head {
		w.writeText(text, -1)
	}
	pos := 0
	for _, ed := range e.sortedEdits() {
		if ed.start > pos {
			w.writeOriginal(pos, ed.start)
			pos = ed.start
		}
		switch ed.kind {
		case kindInsert:
			w.writeText(ed.text, -1)
		case kindOverwrite:
			w.writeText(ed.text, ed.start)
			pos = ed.end
		}
	}
	if pos < len(e.original) {
		w.writeOriginal(pos, len(e.original))
	}
	for _, text := range e.tail {
		w.writeText(text, -1)
	}
	return w.out.String(), w.builder
}

type writer struct {
	original   string
	lineStarts []int
	mapped     bool
	out        strings.Builder
	builder    *sourcemap.Builder
	genCol     int
}

func (w *writer) writeText(text string, originalPos int) {
	if text == "" {
		return
	}
	if originalPos >= 0 {
		w.mark(originalPos)
	}
	w.out.WriteString(text)
	w.advance(text)
}

func (w *writer) writeOriginal(start, end int) {
	chunk := w.original[start:end]
	w.mark(start)
	offset := start
	for {
		idx := strings.IndexByte(chunk, '\n')
		if idx < 0 {
			w.out.WriteString(chunk)
			w.genCol += utf16Len(chunk)
			return
		}
		w.out.WriteString(chunk[:idx+1])
		w.newLine()
		offset += idx + 1
		chunk = chunk[idx+1:]
		if chunk == "" {
			return
		}
		w.mark(offset)
	}
}

func (w *writer) advance(text string) {
	for {
		idx := strings.IndexByte(text, '\n')
		if idx < 0 {
			w.genCol += utf16Len(text)
			return
		}
		w.newLine()
		text = text[idx+1:]
	}
}

func (w *writer) newLine() {
	w.genCol = 0
	if w.mapped {
		w.builder.NewLine()
	}
}

func (w *writer) mark(originalPos int) {
	if !w.mapped {
		return
	}
	line, col := w.position(originalPos)
	w.builder.Add(sourcemap.Segment{GeneratedColumn: w.genCol, OriginalLine: line, OriginalColumn: col})
}

// position converts a byte offset to a zero-based line and UTF-16 column.
func (w *writer) position(offset int) (int, int) {
	line := sort.SearchInts(w.lineStarts, offset+1) - 1
	return line, utf16Len(w.original[w.lineStarts[line]:offset])
}

func lineStarts(text string) []int {
	starts := []int{0}
	for i := 0; i < len(text); i++ {
		if text[i] == '\n' {
			starts = append(starts, i+1)
		}
	}
	return starts
}

func utf16Len(s string) int {
	n := 0
	for len(s) > 0 {
		r, size := utf8.DecodeRuneInString(s)
		s = s[size:]
		n += len(utf16.Encode([]rune{r}))
	}
	return n
}
