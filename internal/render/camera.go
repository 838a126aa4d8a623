package render

// Camera translates between world (x, z) and screen coordinates for one
// horizontal slice. Each cell is 2 terminal columns wide to keep cells square.
type Camera struct {
	OffsetX    int
	OffsetZ    int
	ViewWidth  int // in terminal columns
	ViewHeight int // in terminal rows
}

func NewCamera(cx, cz, viewW, viewH int) *Camera {
	c := &Camera{ViewWidth: viewW, ViewHeight: viewH}
	c.Center(cx, cz)
	return c
}

// Center repositions the camera so that (cx, cz) is in the middle.
func (c *Camera) Center(cx, cz int) {
	c.OffsetX = cx - (c.ViewWidth/2)/2
	c.OffsetZ = cz - c.ViewHeight/2
}

func (c *Camera) Pan(dx, dz int) {
	c.OffsetX += dx
	c.OffsetZ += dz
}

// WorldToScreen converts (wx, wz) to screen (sx, sy). visible is false outside
// the viewport.
func (c *Camera) WorldToScreen(wx, wz int) (sx, sy int, visible bool) {
	sx = (wx - c.OffsetX) * 2
	sy = wz - c.OffsetZ
	visible = sx >= 0 && sx+1 < c.ViewWidth && sy >= 0 && sy < c.ViewHeight
	return
}

func (c *Camera) ScreenToWorld(sx, sy int) (int, int) {
	return sx/2 + c.OffsetX, sy + c.OffsetZ
}
