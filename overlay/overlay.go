// Package overlay manages the floating text labels of a note, independent
// of the page bitmaps, including interactive drag and resize.
package overlay

import (
	"math"
	"strings"

	"github.com/dayzy/notes/models"
	"github.com/gofrs/uuid/v5"
)

const (
	labelOriginX = 50
	labelOriginY = 50
	// LabelStep is the vertical distance between successively added labels.
	LabelStep = 30

	// Horizontal pointer pixels per font size point while resizing.
	resizeDivisor = 5
)

type Style struct {
	FontSize int
	Color    string
	Bold     bool
	Italic   bool
}

// StyleToggle flips the flags that are set.
type StyleToggle struct {
	Bold   bool `json:"bold"`
	Italic bool `json:"italic"`
}

type dragState struct {
	id    string
	last  models.Point
	moved bool
}

type resizeState struct {
	id        string
	start     models.Point
	startSize int
	changed   bool
}

type Overlay struct {
	labels   []models.TextLabel
	selected string
	drag     *dragState
	resize   *resizeState
	newId    func() string
}

func New(labels []models.TextLabel) *Overlay {
	return &Overlay{
		labels: models.CloneLabels(labels),
		newId:  newLabelId,
	}
}

func newLabelId() string {
	id, err := uuid.NewV7()
	if err != nil {
		id = uuid.Must(uuid.NewV4())
	}
	return "text_" + id.String()
}

func (o *Overlay) Labels() []models.TextLabel {
	labels := models.CloneLabels(o.labels)
	if labels == nil {
		return []models.TextLabel{}
	}
	return labels
}

// SetLabels replaces the whole set, as undo/redo and remote updates do.
// Interaction state is dropped; the selection survives only if its label
// still exists.
func (o *Overlay) SetLabels(labels []models.TextLabel) {
	o.labels = models.CloneLabels(labels)
	o.drag = nil
	o.resize = nil
	if o.selected != "" && o.find(o.selected) < 0 {
		o.selected = ""
	}
}

func (o *Overlay) find(id string) int {
	for i := range o.labels {
		if o.labels[i].Id == id {
			return i
		}
	}
	return -1
}

func (o *Overlay) Label(id string) (models.TextLabel, bool) {
	i := o.find(id)
	if i < 0 {
		return models.TextLabel{}, false
	}
	return o.labels[i], true
}

// AddLabel places a new label one step below the previously added one.
// Text that is empty after trimming is ignored.
func (o *Overlay) AddLabel(text string, style Style) (models.TextLabel, bool) {
	if strings.TrimSpace(text) == "" {
		return models.TextLabel{}, false
	}

	x, y := float64(labelOriginX), float64(labelOriginY)
	if n := len(o.labels); n > 0 {
		prev := o.labels[n-1]
		x, y = prev.X, prev.Y+LabelStep
	}

	size := style.FontSize
	if size == 0 {
		size = models.DefaultFontSize
	}
	color := style.Color
	if !models.ValidColor(color) {
		color = models.DefaultColor
	}

	label := models.TextLabel{
		Id:       o.newId(),
		Text:     text,
		X:        x,
		Y:        y,
		FontSize: models.ClampFontSize(size),
		Color:    color,
		Bold:     style.Bold,
		Italic:   style.Italic,
	}
	o.labels = append(o.labels, label)
	return label, true
}

func (o *Overlay) Active() bool {
	return o.drag != nil || o.resize != nil
}

func (o *Overlay) Dragging() (string, bool) {
	if o.drag == nil {
		return "", false
	}
	return o.drag.id, true
}

func (o *Overlay) Resizing() (string, bool) {
	if o.resize == nil {
		return "", false
	}
	return o.resize.id, true
}

// BeginDrag starts moving a label and selects it. Only one drag or resize
// can be active at a time.
func (o *Overlay) BeginDrag(id string, p models.Point) bool {
	if o.Active() || o.find(id) < 0 {
		return false
	}
	o.selected = id
	o.drag = &dragState{id: id, last: p}
	return true
}

// UpdateDrag translates the dragged label by the delta since the last event.
func (o *Overlay) UpdateDrag(p models.Point) bool {
	if o.drag == nil {
		return false
	}
	i := o.find(o.drag.id)
	if i < 0 {
		o.drag = nil
		return false
	}
	dx, dy := p.X-o.drag.last.X, p.Y-o.drag.last.Y
	o.drag.last = p
	if dx == 0 && dy == 0 {
		return false
	}
	o.labels[i].X += dx
	o.labels[i].Y += dy
	o.drag.moved = true
	return true
}

func (o *Overlay) EndDrag() bool {
	if o.drag == nil {
		return false
	}
	moved := o.drag.moved
	o.drag = nil
	return moved
}

func (o *Overlay) BeginResize(id string, p models.Point) bool {
	if o.Active() {
		return false
	}
	i := o.find(id)
	if i < 0 {
		return false
	}
	o.selected = id
	o.resize = &resizeState{id: id, start: p, startSize: o.labels[i].FontSize}
	return true
}

// UpdateResize sets the font size from the horizontal distance to the point
// where the resize began. Vertical movement is ignored.
func (o *Overlay) UpdateResize(p models.Point) bool {
	if o.resize == nil {
		return false
	}
	i := o.find(o.resize.id)
	if i < 0 {
		o.resize = nil
		return false
	}
	size := int(math.Round(float64(o.resize.startSize) + (p.X-o.resize.start.X)/resizeDivisor))
	size = models.ClampFontSize(size)
	if size == o.labels[i].FontSize {
		return false
	}
	o.labels[i].FontSize = size
	o.resize.changed = true
	return true
}

func (o *Overlay) EndResize() bool {
	if o.resize == nil {
		return false
	}
	changed := o.resize.changed
	o.resize = nil
	return changed
}

// Update routes a pointer move to whichever interaction is active.
func (o *Overlay) Update(p models.Point) bool {
	if o.drag != nil {
		return o.UpdateDrag(p)
	}
	if o.resize != nil {
		return o.UpdateResize(p)
	}
	return false
}

// Release ends any drag or resize, as pointer-up and pointer-leave do, and
// reports whether a label changed.
func (o *Overlay) Release() bool {
	moved := o.EndDrag()
	resized := o.EndResize()
	return moved || resized
}

func (o *Overlay) ToggleStyle(id string, toggle StyleToggle) bool {
	i := o.find(id)
	if i < 0 || (!toggle.Bold && !toggle.Italic) {
		return false
	}
	if toggle.Bold {
		o.labels[i].Bold = !o.labels[i].Bold
	}
	if toggle.Italic {
		o.labels[i].Italic = !o.labels[i].Italic
	}
	return true
}

func (o *Overlay) DeleteLabel(id string) bool {
	i := o.find(id)
	if i < 0 {
		return false
	}
	o.labels = append(o.labels[:i], o.labels[i+1:]...)
	if o.selected == id {
		o.selected = ""
	}
	if o.drag != nil && o.drag.id == id {
		o.drag = nil
	}
	if o.resize != nil && o.resize.id == id {
		o.resize = nil
	}
	return true
}

// Select marks a label as selected; an empty or unknown id clears it.
func (o *Overlay) Select(id string) {
	if o.find(id) < 0 {
		o.selected = ""
		return
	}
	o.selected = id
}

func (o *Overlay) Selected() string {
	return o.selected
}
