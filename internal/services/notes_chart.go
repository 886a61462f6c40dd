package services

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"math"
	"strings"
)

const (
	chartSize     = 320
	chartRadius   = 110.0
	chartLevels   = 5
	chartMaxValue = 10
)

// RenderNotesChart draws notes as an SVG radar chart: one axis per note,
// each vertex at intensity/10 of the radius and filled with the note color.
func RenderNotesChart(notes []Note) []byte {
	var b bytes.Buffer
	center := float64(chartSize) / 2
	fmt.Fprintf(&b, `<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 %d %d" width="%d" height="%d" role="img" aria-label="Notas olfativas">`,
		chartSize, chartSize, chartSize, chartSize)

	if len(notes) == 0 {
		fmt.Fprintf(&b, `<text x="%.0f" y="%.0f" text-anchor="middle" font-family="sans-serif" font-size="14" fill="#888">Sin notas</text></svg>`, center, center)
		return b.Bytes()
	}

	n := len(notes)
	point := func(i int, r float64) (float64, float64) {
		angle := -math.Pi/2 + 2*math.Pi*float64(i)/float64(n)
		return center + r*math.Cos(angle), center + r*math.Sin(angle)
	}

	b.WriteString(`<g fill="none" stroke="#ddd" stroke-width="1">`)
	for level := 1; level <= chartLevels; level++ {
		r := chartRadius * float64(level) / chartLevels
		if n < 3 {
			fmt.Fprintf(&b, `<circle cx="%.1f" cy="%.1f" r="%.1f"/>`, center, center, r)
			continue
		}
		pts := make([]string, n)
		for i := range notes {
			x, y := point(i, r)
			pts[i] = fmt.Sprintf("%.1f,%.1f", x, y)
		}
		fmt.Fprintf(&b, `<polygon points="%s"/>`, strings.Join(pts, " "))
	}
	for i := range notes {
		x, y := point(i, chartRadius)
		fmt.Fprintf(&b, `<line x1="%.1f" y1="%.1f" x2="%.1f" y2="%.1f"/>`, center, center, x, y)
	}
	b.WriteString(`</g>`)

	vertices := make([]string, n)
	for i, note := range notes {
		x, y := point(i, chartRadius*float64(clampIntensity(note.Intensity))/chartMaxValue)
		vertices[i] = fmt.Sprintf("%.1f,%.1f", x, y)
	}
	fill := chartColor(notes[0].Color)
	fmt.Fprintf(&b, `<polygon points="%s" fill="%s" fill-opacity="0.25" stroke="%s" stroke-width="2"/>`,
		strings.Join(vertices, " "), fill, fill)

	for i, note := range notes {
		x, y := point(i, chartRadius*float64(clampIntensity(note.Intensity))/chartMaxValue)
		fmt.Fprintf(&b, `<circle cx="%.1f" cy="%.1f" r="4" fill="%s" stroke="#333" stroke-width="0.5"/>`, x, y, chartColor(note.Color))

		lx, ly := point(i, chartRadius+18)
		anchor := "middle"
		switch {
		case lx < center-1:
			anchor = "end"
		case lx > center+1:
			anchor = "start"
		}
		fmt.Fprintf(&b, `<text x="%.1f" y="%.1f" text-anchor="%s" dominant-baseline="middle" font-family="sans-serif" font-size="12" fill="#333">`, lx, ly, anchor)
		_ = xml.EscapeText(&b, []byte(note.Name))
		b.WriteString(`</text>`)
	}
	b.WriteString(`</svg>`)
	return b.Bytes()
}

func clampIntensity(v int) int {
	return max(0, min(v, chartMaxValue))
}

// chartColor passes through validated hex colors and falls back to grey.
func chartColor(c string) string {
	c = strings.TrimSpace(c)
	if noteColorOK(c) {
		return c
	}
	return "#999999"
}

func noteColorOK(c string) bool {
	if len(c) != 4 && len(c) != 7 || c[0] != '#' {
		return false
	}
	for _, r := range c[1:] {
		if !strings.ContainsRune("0123456789abcdefABCDEF", r) {
			return false
		}
	}
	return true
}
