package render

import (
	"fmt"

	"github.com/gdamore/tcell/v2"
	"github.com/mattn/go-runewidth"

	"rednet.ai/internal/sim/engine"
	"rednet.ai/internal/sim/grid"
	"rednet.ai/internal/sim/voxel"
)

const hudRows = 6

// Glyphs used for each cell kind.
const (
	GlyphConduit  = '═'
	GlyphLogic    = '◆'
	GlyphEmitter  = 'E'
	GlyphPanel    = 'P'
	GlyphLever    = 'L'
	GlyphBlock    = '█'
	GlyphUnloaded = '░'
	GlyphDetached = '×'
)

var gridPalette = []tcell.Color{
	tcell.ColorRed,
	tcell.ColorGreen,
	tcell.ColorYellow,
	tcell.ColorBlue,
	tcell.ColorFuchsia,
	tcell.ColorAqua,
	tcell.ColorOrange,
	tcell.ColorPurple,
}

// Renderer draws a top-down slice of the voxel store.
type Renderer struct {
	screen tcell.Screen
	camera *Camera
	layer  int
}

func NewRenderer(screen tcell.Screen) *Renderer {
	w, h := screen.Size()
	viewH := h - hudRows
	if viewH < 1 {
		viewH = 1
	}
	return &Renderer{
		screen: screen,
		camera: NewCamera(0, 0, w, viewH),
	}
}

func (r *Renderer) Camera() *Camera { return r.camera }

func (r *Renderer) Layer() int { return r.layer }

// SetLayer selects the Y slice to draw.
func (r *Renderer) SetLayer(y int) { r.layer = y }

func (r *Renderer) CenterOn(x, z int) { r.camera.Center(x, z) }

// DrawFrame renders the slice, then the HUD for entry.
func (r *Renderer) DrawFrame(s *voxel.Store, entry engine.TickEntry, messages []string) {
	r.screen.Clear()
	r.drawSlice(s)
	r.drawHUD(entry, messages)
	r.screen.Show()
}

func (r *Renderer) drawSlice(s *voxel.Store) {
	h := s.Handler()
	for sy := 0; sy < r.camera.ViewHeight; sy++ {
		for sx := 0; sx+1 < r.camera.ViewWidth; sx += 2 {
			wx, wz := r.camera.ScreenToWorld(sx, sy)
			p := grid.Vec3i{X: wx, Y: r.layer, Z: wz}
			if !s.IsLoaded(p) {
				if _, known := s.ChunkState(p.Chunk()); known {
					r.putCell(sx, sy, GlyphUnloaded, tcell.StyleDefault.Foreground(tcell.ColorDimGray))
				}
				continue
			}
			cell, ok := s.CellAt(p)
			if !ok {
				continue
			}
			glyph, style := cellGlyph(h, cell)
			r.putCell(sx, sy, glyph, style)
		}
	}
}

func cellGlyph(h *grid.Handler, cell voxel.Cell) (rune, tcell.Style) {
	style := tcell.StyleDefault
	switch cell.Kind {
	case voxel.CellConduit:
		n := h.NetworkOf(cell.Conduit)
		if n == nil {
			return GlyphDetached, style.Foreground(tcell.ColorGray)
		}
		style = style.Foreground(NetworkColor(n.ID()))
		if levels := n.PowerLevels(); levels != ([grid.Channels]int{}) {
			style = style.Bold(true)
		}
		if cell.Conduit.LogicNode {
			return GlyphLogic, style
		}
		return GlyphConduit, style
	case voxel.CellDevice:
		style = style.Foreground(tcell.ColorWhite)
		if cell.Device.Kind() == "panel" {
			return GlyphPanel, style
		}
		return GlyphEmitter, style
	case voxel.CellLever:
		if cell.Power > 0 {
			return GlyphLever, style.Foreground(tcell.ColorRed).Bold(true)
		}
		return GlyphLever, style.Foreground(tcell.ColorMaroon)
	case voxel.CellBlock:
		return GlyphBlock, style.Foreground(tcell.ColorSilver)
	}
	return ' ', style
}

// NetworkColor picks a stable colour per grid id.
func NetworkColor(id grid.GridID) tcell.Color {
	if id == 0 {
		return tcell.ColorGray
	}
	return gridPalette[int(uint64(id-1)%uint64(len(gridPalette)))]
}

// putCell draws glyph in the left column of a cell and pads the right one.
func (r *Renderer) putCell(x, y int, glyph rune, style tcell.Style) {
	r.screen.SetContent(x, y, glyph, nil, style)
	if runewidth.RuneWidth(glyph) < 2 {
		r.screen.SetContent(x+1, y, ' ', nil, style)
	}
}

func (r *Renderer) drawHUD(e engine.TickEntry, messages []string) {
	screenW, screenH := r.screen.Size()
	hudY := screenH - hudRows
	if hudY < 0 {
		return
	}
	r.drawHLine(hudY, screenW, tcell.ColorGray)

	digest := e.Digest
	if len(digest) > 8 {
		digest = digest[:8]
	}
	status := fmt.Sprintf("tick %d  y=%d  networks %d (ticking %d)  conduits %d  digest %s",
		e.Tick, r.layer, e.Stats.Networks, e.Stats.Ticking, e.Stats.Conduits, digest)
	r.drawText(0, hudY+1, status, tcell.StyleDefault.Foreground(tcell.ColorWhite))

	row := hudY + 2
	for _, n := range e.Networks {
		if row >= screenH-1 {
			break
		}
		line := fmt.Sprintf("grid %d: %d conduits, %d nodes  %s", n.ID, n.Conduits, n.Nodes, FormatLevels(n.Levels))
		r.drawText(0, row, line, tcell.StyleDefault.Foreground(NetworkColor(grid.GridID(n.ID))))
		row++
	}

	if len(messages) > 0 {
		r.drawText(0, screenH-1, messages[len(messages)-1], tcell.StyleDefault.Foreground(tcell.ColorLightYellow))
	}
}

// FormatLevels lists the non-zero channels, e.g. "ch0=7 ch3=-2".
func FormatLevels(levels [grid.Channels]int) string {
	out := ""
	for ch, v := range levels {
		if v == 0 {
			continue
		}
		if out != "" {
			out += " "
		}
		out += fmt.Sprintf("ch%d=%d", ch, v)
	}
	if out == "" {
		return "off"
	}
	return out
}

func (r *Renderer) drawHLine(y, w int, color tcell.Color) {
	style := tcell.StyleDefault.Foreground(color)
	for x := 0; x < w; x++ {
		r.screen.SetContent(x, y, '─', nil, style)
	}
}

func (r *Renderer) drawText(x, y int, text string, style tcell.Style) {
	w, _ := r.screen.Size()
	col := x
	for _, ch := range text {
		cw := runewidth.RuneWidth(ch)
		if col+cw > w {
			return
		}
		r.screen.SetContent(col, y, ch, nil, style)
		col += cw
	}
}
