package services

import (
	"strings"
	"testing"
)

func TestRenderNotesChartEmpty(t *testing.T) {
	svg := string(RenderNotesChart(nil))
	if !strings.Contains(svg, "Sin notas") || !strings.HasSuffix(svg, "</svg>") {
		t.Fatalf("unexpected empty chart %s", svg)
	}
}

func TestRenderNotesChartPolygon(t *testing.T) {
	svg := string(RenderNotesChart([]Note{
		{Name: "Bergamota", Intensity: 9, Color: "#e8c547"},
		{Name: "Rosa & Oud", Intensity: 5, Color: "#aa3355"},
		{Name: "Almizcle", Intensity: 40, Color: "javascript:alert(1)"},
	}))
	if got := strings.Count(svg, "<polygon"); got != 6 {
		t.Fatalf("expected 5 grid polygons and one data polygon, got %d", got)
	}
	if !strings.Contains(svg, "Rosa &amp; Oud") {
		t.Fatal("labels must be escaped")
	}
	if strings.Contains(svg, "javascript") {
		t.Fatal("unsafe colors must be replaced")
	}
	if !strings.Contains(svg, `fill="#999999"`) {
		t.Fatal("expected fallback color")
	}
}

func TestRenderNotesChartFewNotesUsesCircles(t *testing.T) {
	svg := string(RenderNotesChart([]Note{{Name: "Cedro", Intensity: 4, Color: "#7a5c3e"}}))
	if strings.Count(svg, "<circle") < 5 {
		t.Fatalf("expected circular grid for a single note: %s", svg)
	}
}

func TestClampIntensity(t *testing.T) {
	for in, want := range map[int]int{-3: 0, 0: 0, 5: 5, 10: 10, 12: 10} {
		if got := clampIntensity(in); got != want {
			t.Fatalf("clampIntensity(%d) = %d, want %d", in, got, want)
		}
	}
}
