package effects

import (
	"image"
	"image/color"
	"math"

	"golang.org/x/image/vector"

	"github.com/ivlev/liveoverlay/internal/mapper"
)

type pt struct{ x, y float64 }

// painter rasterises filled paths into a destination frame. The rasterizer
// covers only the bounds of the current shape.
type painter struct {
	dst    *image.RGBA
	z      vector.Rasterizer
	r      image.Rectangle
	ox, oy float32
	pts    []pt
}

// begin prepares a shape covering bounds. It reports false when nothing of
// the shape lands inside the destination.
func (p *painter) begin(bounds mapper.Rect) bool {
	r := bounds.Bounds().Inset(-2).Intersect(p.dst.Bounds())
	if r.Empty() {
		return false
	}
	p.r = r
	p.z.Reset(r.Dx(), r.Dy())
	p.ox, p.oy = float32(r.Min.X), float32(r.Min.Y)
	return true
}

func (p *painter) polygon(pts []pt, reverse bool) {
	n := len(pts)
	if n < 3 {
		return
	}
	at := func(i int) pt {
		if reverse {
			return pts[n-1-i]
		}
		return pts[i]
	}
	first := at(0)
	p.z.MoveTo(float32(first.x)-p.ox, float32(first.y)-p.oy)
	for i := 1; i < n; i++ {
		q := at(i)
		p.z.LineTo(float32(q.x)-p.ox, float32(q.y)-p.oy)
	}
	p.z.ClosePath()
}

func (p *painter) rect(r mapper.Rect) {
	p.pts = append(p.pts[:0],
		pt{r.Left, r.Top}, pt{r.Right, r.Top}, pt{r.Right, r.Bottom}, pt{r.Left, r.Bottom})
	p.polygon(p.pts, false)
}

func (p *painter) fill(src image.Image) {
	p.z.Draw(p.dst, p.r, src, p.r.Min)
}

// fillRoundRect fills r with corner radius.
func (p *painter) fillRoundRect(r mapper.Rect, radius float64, src image.Image) {
	if !p.begin(r) {
		return
	}
	p.pts = roundRectPoints(p.pts, r, radius)
	p.polygon(p.pts, false)
	p.fill(src)
}

// strokeRoundRect draws a ring of the given width centred on r's outline.
// The inner outline is wound in reverse so it cuts the hole.
func (p *painter) strokeRoundRect(r mapper.Rect, radius, width float64, src image.Image) {
	outer := inset(r, -width/2)
	if !p.begin(outer) {
		return
	}
	p.pts = roundRectPoints(p.pts, outer, radius+width/2)
	p.polygon(p.pts, false)
	if in := inset(r, width/2); in.Width() > 0 && in.Height() > 0 {
		p.pts = roundRectPoints(p.pts, in, max(radius-width/2, 0))
		p.polygon(p.pts, true)
	}
	p.fill(src)
}

// corners draws L-shaped accents of the given arm length at the four corners.
func (p *painter) corners(r mapper.Rect, arm, width float64, src image.Image) {
	if !p.begin(inset(r, -width)) {
		return
	}
	arm = min(arm, r.Width()/2, r.Height()/2)
	h := width / 2
	for _, c := range [4]struct{ x, y, sx, sy float64 }{
		{r.Left, r.Top, 1, 1},
		{r.Right, r.Top, -1, 1},
		{r.Left, r.Bottom, 1, -1},
		{r.Right, r.Bottom, -1, -1},
	} {
		p.rect(normalize(mapper.Rect{Left: c.x - c.sx*h, Top: c.y - c.sy*h, Right: c.x + c.sx*arm, Bottom: c.y + c.sy*h}))
		p.rect(normalize(mapper.Rect{Left: c.x - c.sx*h, Top: c.y - c.sy*h, Right: c.x + c.sx*h, Bottom: c.y + c.sy*arm}))
	}
	p.fill(src)
}

const arcSteps = 6

// roundRectPoints flattens a rounded rectangle into buf, clockwise on screen.
func roundRectPoints(buf []pt, r mapper.Rect, radius float64) []pt {
	buf = buf[:0]
	w, h := r.Width(), r.Height()
	if w <= 0 || h <= 0 {
		return buf
	}
	radius = max(min(radius, w/2, h/2), 0)
	for _, c := range [4]struct{ cx, cy, start float64 }{
		{r.Right - radius, r.Top + radius, -math.Pi / 2},
		{r.Right - radius, r.Bottom - radius, 0},
		{r.Left + radius, r.Bottom - radius, math.Pi / 2},
		{r.Left + radius, r.Top + radius, math.Pi},
	} {
		for i := 0; i <= arcSteps; i++ {
			a := c.start + math.Pi/2*float64(i)/arcSteps
			buf = append(buf, pt{c.cx + radius*math.Cos(a), c.cy + radius*math.Sin(a)})
		}
	}
	return buf
}

func inset(r mapper.Rect, d float64) mapper.Rect {
	return mapper.Rect{Left: r.Left + d, Top: r.Top + d, Right: r.Right - d, Bottom: r.Bottom - d}
}

func normalize(r mapper.Rect) mapper.Rect {
	if r.Left > r.Right {
		r.Left, r.Right = r.Right, r.Left
	}
	if r.Top > r.Bottom {
		r.Top, r.Bottom = r.Bottom, r.Top
	}
	return r
}

// linearGradient is an unbounded image that blends two colours along the
// segment (x0,y0)-(x1,y1), clamped past either end.
type linearGradient struct {
	x0, y0, dx, dy float64
	invLen2        float64
	c0, c1         color.NRGBA
	alpha          float64
}

func newLinearGradient(x0, y0, x1, y1 float64, g Gradient, alpha float64) *linearGradient {
	lg := &linearGradient{x0: x0, y0: y0, dx: x1 - x0, dy: y1 - y0, c0: g.Start, c1: g.End, alpha: clampUnit(alpha)}
	if l2 := lg.dx*lg.dx + lg.dy*lg.dy; l2 > 0 {
		lg.invLen2 = 1 / l2
	}
	return lg
}

func (g *linearGradient) ColorModel() color.Model { return color.NRGBAModel }

func (g *linearGradient) Bounds() image.Rectangle {
	return image.Rect(-1<<30, -1<<30, 1<<30, 1<<30)
}

func (g *linearGradient) At(x, y int) color.Color {
	t := ((float64(x)+0.5-g.x0)*g.dx + (float64(y)+0.5-g.y0)*g.dy) * g.invLen2
	t = clampUnit(t)
	mix := func(a, b uint8) uint8 { return uint8(float64(a) + (float64(b)-float64(a))*t + 0.5) }
	return color.NRGBA{
		R: mix(g.c0.R, g.c1.R),
		G: mix(g.c0.G, g.c1.G),
		B: mix(g.c0.B, g.c1.B),
		A: uint8(float64(mix(g.c0.A, g.c1.A))*g.alpha + 0.5),
	}
}
