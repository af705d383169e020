// Package sourcemap builds version 3 source maps.
package sourcemap

import (
	"encoding/base64"
	"encoding/json"
	"strings"
)

const base64Digits = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789+/"

// Map is the JSON form of a version 3 source map.
type Map struct {
	Version        int      `json:"version"`
	File           string   `json:"file,omitempty"`
	Sources        []string `json:"sources"`
	SourcesContent []string `json:"sourcesContent,omitempty"`
	Names          []string `json:"names"`
	Mappings       string   `json:"mappings"`
}

func (m *Map) JSON() ([]byte, error) {
	return json.Marshal(m)
}

// DataURL returns the map as an inline base64 data URL.
func (m *Map) DataURL() (string, error) {
	payload, err := m.JSON()
	if err != nil {
		return "", err
	}
	return "data:application/json;charset=utf-8;base64," + base64.StdEncoding.EncodeToString(payload), nil
}

// Segment maps a generated column to an original position within a single
// source. All values are zero-based.
type Segment struct {
	GeneratedColumn int
	OriginalLine    int
	OriginalColumn  int
}

// Builder accumulates segments line by line.
type Builder struct {
	lines [][]Segment
}

func (b *Builder) NewLine() {
	b.lines = append(b.lines, nil)
}

func (b *Builder) Add(segment Segment) {
	if len(b.lines) == 0 {
		b.lines = append(b.lines, nil)
	}
	last := len(b.lines) - 1
	b.lines[last] = append(b.lines[last], segment)
}

// Build encodes the accumulated segments for a single source.
func (b *Builder) Build(file, source, content string) *Map {
	m := &Map{
		Version:  3,
		File:     file,
		Sources:  []string{source},
		Names:    []string{},
		Mappings: b.encode(),
	}
	if content != "" {
		m.SourcesContent = []string{content}
	}
	return m
}

func (b *Builder) encode() string {
	var out strings.Builder
	prevOrigLine, prevOrigCol := 0, 0
	for i, line := range b.lines {
		if i > 0 {
			out.WriteByte(';')
		}
		prevGenCol := 0
		for j, seg := range line {
			if j > 0 {
				out.WriteByte(',')
			}
			encodeVLQ(&out, seg.GeneratedColumn-prevGenCol)
			encodeVLQ(&out, 0)
			encodeVLQ(&out, seg.OriginalLine-prevOrigLine)
			encodeVLQ(&out, seg.OriginalColumn-prevOrigCol)
			prevGenCol = seg.GeneratedColumn
			prevOrigLine = seg.OriginalLine
			prevOrigCol = seg.OriginalColumn
		}
	}
	return out.String()
}

func encodeVLQ(out *strings.Builder, value int) {
	vlq := value << 1
	if value < 0 {
		vlq = (-value << 1) | 1
	}
	for {
		digit := vlq & 31
		vlq >>= 5
		if vlq > 0 {
			digit |= 32
		}
		out.WriteByte(base64Digits[digit])
		if vlq == 0 {
			return
		}
	}
}
