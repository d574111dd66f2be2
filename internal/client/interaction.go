package client

import (
	"github.com/wirejam/wirejam/internal/models"
	"github.com/wirejam/wirejam/internal/wireframe"
)

// minDrawSize is the smallest gesture, in both directions, that counts as drawing a shape.
const minDrawSize = 10

// Handle is the resize grip being dragged.
type Handle string

const (
	HandleN  Handle = "n"
	HandleNE Handle = "ne"
	HandleE  Handle = "e"
	HandleSE Handle = "se"
	HandleS  Handle = "s"
	HandleSW Handle = "sw"
	HandleW  Handle = "w"
	HandleNW Handle = "nw"
)

func (h Handle) north() bool { return h == HandleN || h == HandleNE || h == HandleNW }
func (h Handle) south() bool { return h == HandleS || h == HandleSE || h == HandleSW }
func (h Handle) west() bool  { return h == HandleW || h == HandleNW || h == HandleSW }
func (h Handle) east() bool  { return h == HandleE || h == HandleNE || h == HandleSE }

// Interaction is the local gesture state of one client. Remote updates never touch a shape
// that is Active.
type Interaction struct {
	Selected string
	Dragging string
	Resizing string
	Focused  string // shape whose editable control holds input focus

	// Drawing is the rubber band of a draw gesture. It is not part of the canvas until the
	// type is confirmed, so clears and snapshots leave it alone.
	Drawing *models.Shape

	// gesture anchors
	startX, startY int
	origin         models.Shape
	handle         Handle
	awaitingType   bool
}

// Active reports whether id is under local interactive edit.
func (i *Interaction) Active(id string) bool {
	if id == "" {
		return false
	}
	return i.Selected == id || i.Dragging == id || i.Resizing == id || i.Focused == id
}

// forget drops every reference to id.
func (i *Interaction) forget(id string) {
	if i.Selected == id {
		i.Selected = ""
	}
	if i.Dragging == id {
		i.Dragging = ""
	}
	if i.Resizing == id {
		i.Resizing = ""
	}
	if i.Focused == id {
		i.Focused = ""
	}
}

// reset clears selection and gestures on committed shapes; an in-progress draw survives.
func (i *Interaction) reset() {
	i.Selected, i.Dragging, i.Resizing, i.Focused = "", "", "", ""
}

// rubberBand normalizes a draw gesture from (x0,y0) to (x1,y1).
func rubberBand(x0, y0, x1, y1 int) (x, y, w, h int) {
	return min(x0, x1), min(y0, y1), abs(x1 - x0), abs(y1 - y0)
}

// dragTo places s at (x, y) kept inside the canvas.
func dragTo(s models.Shape, x, y int, canvas wireframe.Canvas) models.Shape {
	s.X = clamp(x, 0, canvas.Width-s.Width)
	s.Y = clamp(y, 0, canvas.Height-s.Height)
	return s
}

// resizeBy applies a pointer delta to the grip h of orig. Width and height never drop below
// models.MinShapeSize; a north or west grip keeps the opposite edge fixed when it hits the
// minimum. The result is kept inside the canvas.
func resizeBy(orig models.Shape, h Handle, dx, dy int, canvas wireframe.Canvas) models.Shape {
	s := orig
	if h.west() {
		s.X = orig.X + dx
		s.Width = orig.Width - dx
	}
	if h.east() {
		s.Width = orig.Width + dx
	}
	if h.north() {
		s.Y = orig.Y + dy
		s.Height = orig.Height - dy
	}
	if h.south() {
		s.Height = orig.Height + dy
	}

	if s.Width < models.MinShapeSize {
		if h.west() {
			s.X = orig.X + orig.Width - models.MinShapeSize
		}
		s.Width = models.MinShapeSize
	}
	if s.Height < models.MinShapeSize {
		if h.north() {
			s.Y = orig.Y + orig.Height - models.MinShapeSize
		}
		s.Height = models.MinShapeSize
	}

	s.X = clamp(s.X, 0, canvas.Width-s.Width)
	s.Y = clamp(s.Y, 0, canvas.Height-s.Height)
	return s
}

func clamp(v, lo, hi int) int {
	if hi < lo {
		hi = lo
	}
	return max(lo, min(v, hi))
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
