// Package graphviz renders the two static visualizations on the
// dashboard: the per-file blocking subgraph as SVG, and the overall
// progress chart as PNG.
//
// The visual language is small: one column per dependency depth, one
// state color per node.
package graphviz

import (
	"fmt"
	"image/color"
	"io"
	"sort"

	"git.sr.ht/~sbinet/gg"
	svg "github.com/ajstarks/svgo"
	"golang.org/x/image/font/basicfont"

	"github.com/vanderheijden86/portboard/pkg/model"
)

const (
	nodeW   = 180
	nodeH   = 34
	colGap  = 70
	rowGap  = 16
	padding = 24
)

func stateFill(s model.PortState) string {
	switch s {
	case model.Ported:
		return "#c8e6c9"
	case model.InProgress:
		return "#fff9c4"
	default:
		return "#ffcdd2"
	}
}

// Subgraph is the input to SVG rendering: edges run dependency ->
// dependent, and States carries the port state of every known node.
type Subgraph struct {
	Edges  [][2]string
	States map[string]model.PortState
}

// Empty reports whether there is anything worth drawing.
func (s Subgraph) Empty() bool {
	return len(s.Edges) == 0 && len(s.States) <= 1
}

// RenderSVG draws the subgraph layered by dependency depth. Nodes without
// a known state (untracked imports) render gray.
func RenderSVG(w io.Writer, sub Subgraph) error {
	nodes := collectNodes(sub)
	if len(nodes) == 0 {
		return fmt.Errorf("empty subgraph")
	}
	levels := assignLevels(nodes, sub.Edges)

	// Column per level, alphabetical within a column.
	byLevel := make(map[int][]string)
	maxLevel := 0
	for key, lvl := range levels {
		byLevel[lvl] = append(byLevel[lvl], key)
		if lvl > maxLevel {
			maxLevel = lvl
		}
	}
	maxRows := 0
	for _, keys := range byLevel {
		sort.Strings(keys)
		if len(keys) > maxRows {
			maxRows = len(keys)
		}
	}

	width := padding*2 + (maxLevel+1)*nodeW + maxLevel*colGap
	height := padding*2 + maxRows*nodeH + (maxRows-1)*rowGap

	pos := make(map[string][2]int, len(nodes))
	for lvl := 0; lvl <= maxLevel; lvl++ {
		for row, key := range byLevel[lvl] {
			x := padding + lvl*(nodeW+colGap)
			y := padding + row*(nodeH+rowGap)
			pos[key] = [2]int{x, y}
		}
	}

	canvas := svg.New(w)
	canvas.Start(width, height)
	canvas.Title("dependency graph")

	for _, e := range sub.Edges {
		from, okF := pos[e[0]]
		to, okT := pos[e[1]]
		if !okF || !okT {
			continue
		}
		canvas.Line(from[0]+nodeW, from[1]+nodeH/2, to[0], to[1]+nodeH/2,
			`stroke="#90a4ae"`, `stroke-width="1.5"`)
	}

	keys := make([]string, 0, len(pos))
	for k := range pos {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, key := range keys {
		p := pos[key]
		fill := "#eceff1"
		if st, ok := sub.States[key]; ok {
			fill = stateFill(st)
		}
		canvas.Roundrect(p[0], p[1], nodeW, nodeH, 5, 5,
			fmt.Sprintf(`fill="%s"`, fill), `stroke="#546e7a"`)
		canvas.Text(p[0]+8, p[1]+nodeH/2+4, truncate(key, 26),
			`font-family="monospace"`, `font-size="11px"`, `fill="#263238"`)
	}

	canvas.End()
	return nil
}

func collectNodes(sub Subgraph) map[string]bool {
	nodes := make(map[string]bool)
	for k := range sub.States {
		nodes[k] = true
	}
	for _, e := range sub.Edges {
		nodes[e[0]] = true
		nodes[e[1]] = true
	}
	return nodes
}

// assignLevels computes longest-path depth within the subgraph; edges run
// dependency -> dependent so dependencies sit in earlier columns.
func assignLevels(nodes map[string]bool, edges [][2]string) map[string]int {
	levels := make(map[string]int, len(nodes))
	for k := range nodes {
		levels[k] = 0
	}
	// The subgraph is tiny; fixed-point relaxation is simpler than a
	// topological pass and converges in at most len(nodes) rounds.
	for i := 0; i < len(nodes); i++ {
		changed := false
		for _, e := range edges {
			if levels[e[1]] < levels[e[0]]+1 {
				levels[e[1]] = levels[e[0]] + 1
				changed = true
			}
		}
		if !changed {
			break
		}
	}
	return levels
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return "…" + s[len(s)-n+1:]
}

// Progress summarizes line totals per port state for the chart.
type Progress struct {
	UnportedLines   int
	InProgressLines int
	PortedLines     int
}

func (p Progress) total() int {
	return p.UnportedLines + p.InProgressLines + p.PortedLines
}

// RenderProgressPNG draws a horizontal stacked bar of ported versus
// remaining lines and writes it as PNG.
func RenderProgressPNG(w io.Writer, p Progress) error {
	const (
		width  = 720
		height = 96
		barX   = 16
		barY   = 40
		barW   = width - 2*barX
		barH   = 28
	)
	if p.total() == 0 {
		return fmt.Errorf("no lines counted")
	}

	dc := gg.NewContext(width, height)
	dc.SetColor(color.White)
	dc.Clear()
	dc.SetFontFace(basicfont.Face7x13)

	segments := []struct {
		lines int
		col   color.Color
		name  string
	}{
		{p.PortedLines, color.RGBA{R: 0x4c, G: 0xaf, B: 0x50, A: 0xff}, "ported"},
		{p.InProgressLines, color.RGBA{R: 0xff, G: 0xc1, B: 0x07, A: 0xff}, "in progress"},
		{p.UnportedLines, color.RGBA{R: 0xef, G: 0x53, B: 0x50, A: 0xff}, "unported"},
	}

	x := float64(barX)
	for _, seg := range segments {
		wSeg := float64(barW) * float64(seg.lines) / float64(p.total())
		dc.SetColor(seg.col)
		dc.DrawRectangle(x, barY, wSeg, barH)
		dc.Fill()
		x += wSeg
	}

	dc.SetColor(color.Black)
	percent := 100 * float64(p.PortedLines) / float64(p.total())
	dc.DrawString(fmt.Sprintf("%.1f%% of %d lines ported", percent, p.total()), barX, barY-10)

	lx := float64(barX)
	for _, seg := range segments {
		dc.SetColor(seg.col)
		dc.DrawRectangle(lx, barY+barH+12, 10, 10)
		dc.Fill()
		dc.SetColor(color.Black)
		label := fmt.Sprintf("%s (%d)", seg.name, seg.lines)
		dc.DrawString(label, lx+14, barY+barH+22)
		lw, _ := dc.MeasureString(label)
		lx += 14 + lw + 24
	}

	return dc.EncodePNG(w)
}
