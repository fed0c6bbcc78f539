// Package editor binds the page renderer, the label overlay and the undo
// history to one open note.
package editor

import (
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/dayzy/notes/canvas"
	"github.com/dayzy/notes/history"
	"github.com/dayzy/notes/models"
	"github.com/dayzy/notes/overlay"
)

type Role int

const (
	// RoleOwner edits the owner's private note, with undo history.
	RoleOwner Role = iota
	// RoleViewer edits a share publication directly and has no history.
	RoleViewer
)

func (r Role) String() string {
	if r == RoleViewer {
		return "viewer"
	}
	return "owner"
}

const (
	MinBrushSize     = 1
	MaxBrushSize     = 20
	DefaultBrushSize = 3
)

var (
	ErrNoHistory         = errors.New("undo is not available in shared view")
	ErrPageOutOfRange    = errors.New("page out of range")
	ErrInvalidBrushSize  = errors.New("invalid brush size")
	ErrTextToolRequired  = errors.New("labels can only be moved with the text tool")
	ErrInteractionActive = errors.New("another interaction is in progress")
	ErrLabelNotFound     = errors.New("label not found")
)

// Outcome tells the caller what an operation changed.
type Outcome int

const (
	// OutcomeNone means nothing visible changed.
	OutcomeNone Outcome = iota
	// OutcomeView means local view state changed (selection, label
	// position mid-drag, tool, page).
	OutcomeView
	// OutcomeCommit means the document content changed and should be synced.
	OutcomeCommit
)

// ToolSettings is the brush and text configuration. Zero values keep the
// current setting.
type ToolSettings struct {
	Tool      string `json:"tool,omitempty"`
	Color     string `json:"color,omitempty"`
	BrushSize int    `json:"brushSize,omitempty"`
	FontSize  int    `json:"fontSize,omitempty"`
}

type Options struct {
	Role          Role
	Width, Height int
	Fetch         canvas.Fetcher
}

type Session struct {
	mu sync.Mutex

	role    Role
	note    models.Note
	pages   []models.Page
	surface *canvas.Surface
	overlay *overlay.Overlay
	history *history.Store

	page      int
	tool      canvas.Tool
	color     string
	brushSize int
	fontSize  int

	// rev counts content changes; noteSaved and shareSaved record the last
	// revision each destination is known to hold.
	rev        uint64
	noteSaved  uint64
	shareSaved uint64
	updatedAt  time.Time
}

func NewSession(note models.Note, opts Options) *Session {
	if opts.Width <= 0 || opts.Height <= 0 {
		opts.Width, opts.Height = canvas.DefaultWidth, canvas.DefaultHeight
	}

	pages := models.SanitizePages(note.Pages)
	labels := models.SanitizeLabels(note.TextObjects)
	note.Pages = nil
	note.TextObjects = nil

	s := &Session{
		role:      opts.Role,
		note:      note,
		pages:     pages,
		surface:   canvas.NewSurface(opts.Width, opts.Height, opts.Fetch),
		overlay:   overlay.New(labels),
		tool:      canvas.ToolDraw,
		color:     models.DefaultColor,
		brushSize: DefaultBrushSize,
		fontSize:  models.DefaultFontSize,
		updatedAt: note.UpdatedAt,
	}
	if opts.Role == RoleOwner {
		s.history = history.New()
		s.history.Push(s.snapshotLocked())
	}
	s.surface.LoadPage(s.pages[0])
	return s
}

func (s *Session) Role() Role {
	return s.role
}

func (s *Session) NoteId() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.note.Id
}

func (s *Session) OwnerId() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.note.OwnerId
}

func (s *Session) ShareCode() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.note.ShareCode
}

// SetShareCode records a new publication created from revision rev.
func (s *Session) SetShareCode(code string, rev uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.note.ShareCode = code
	s.shareSaved = rev
}

// Surface exposes the page renderer, mainly for export and tests.
func (s *Session) Surface() *canvas.Surface {
	return s.surface
}

func (s *Session) snapshotLocked() models.Snapshot {
	return models.Snapshot{
		Pages:       models.ClonePages(s.pages),
		TextObjects: s.overlay.Labels(),
	}
}

// commitLocked records a content change and adds a history entry.
func (s *Session) commitLocked() Outcome {
	s.rev++
	if s.history != nil {
		s.history.Push(s.snapshotLocked())
	}
	return OutcomeCommit
}

// Busy reports whether a stroke or label interaction is in progress.
func (s *Session) Busy() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.busyLocked()
}

func (s *Session) busyLocked() bool {
	return s.surface.Stroking() || s.overlay.Active()
}

func (s *Session) SetTool(settings ToolSettings) (Outcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tool := s.tool
	if settings.Tool != "" {
		t, ok := canvas.ParseTool(settings.Tool)
		if !ok {
			return OutcomeNone, canvas.ErrInvalidTool
		}
		tool = t
	}
	if settings.Color != "" && !models.ValidColor(settings.Color) {
		return OutcomeNone, canvas.ErrInvalidColor
	}
	if settings.BrushSize != 0 && (settings.BrushSize < MinBrushSize || settings.BrushSize > MaxBrushSize) {
		return OutcomeNone, ErrInvalidBrushSize
	}

	s.tool = tool
	if settings.Color != "" {
		s.color = settings.Color
	}
	if settings.BrushSize != 0 {
		s.brushSize = settings.BrushSize
	}
	if settings.FontSize != 0 {
		s.fontSize = models.ClampFontSize(settings.FontSize)
	}
	return OutcomeView, nil
}

// BeginStroke starts a stroke with the current brush. It waits for a
// pending page load so the stroke lands on the decoded page.
func (s *Session) BeginStroke(p models.Point) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.overlay.Active() {
		return ErrInteractionActive
	}
	c, err := canvas.ParseHexColor(s.color)
	if err != nil {
		return err
	}
	return s.surface.BeginStroke(p, canvas.Brush{Tool: s.tool, Color: c, Size: float64(s.brushSize)})
}

// PointerMove extends the active stroke or moves the active label
// interaction.
func (s *Session) PointerMove(p models.Point) Outcome {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.surface.ExtendStroke(p) {
		return OutcomeNone
	}
	if s.overlay.Update(p) {
		return OutcomeView
	}
	return OutcomeNone
}

// EndStroke serializes the page and adds one history entry.
func (s *Session) EndStroke() (Outcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.endStrokeLocked()
}

func (s *Session) endStrokeLocked() (Outcome, error) {
	if !s.surface.Stroking() {
		return OutcomeNone, nil
	}
	data, err := s.surface.EndStroke()
	if err != nil {
		return OutcomeNone, err
	}
	s.pages[s.page] = models.Page{ImageData: data}
	return s.commitLocked(), nil
}

// PointerUp ends whichever interaction is active.
func (s *Session) PointerUp() (Outcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.releaseLocked()
}

// PointerLeave behaves like PointerUp so no drag or stroke is left stuck.
func (s *Session) PointerLeave() (Outcome, error) {
	return s.PointerUp()
}

func (s *Session) releaseLocked() (Outcome, error) {
	if s.surface.Stroking() {
		return s.endStrokeLocked()
	}
	if s.overlay.Release() {
		return s.commitLocked(), nil
	}
	return OutcomeNone, nil
}

func (s *Session) AddLabel(text string) (models.TextLabel, Outcome) {
	s.mu.Lock()
	defer s.mu.Unlock()

	label, ok := s.overlay.AddLabel(text, overlay.Style{FontSize: s.fontSize, Color: s.color})
	if !ok {
		return models.TextLabel{}, OutcomeNone
	}
	return label, s.commitLocked()
}

func (s *Session) BeginLabelDrag(id string, p models.Point) (Outcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkLabelInteractionLocked(id); err != nil {
		return OutcomeNone, err
	}
	if !s.overlay.BeginDrag(id, p) {
		return OutcomeNone, ErrInteractionActive
	}
	return OutcomeView, nil
}

func (s *Session) BeginLabelResize(id string, p models.Point) (Outcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkLabelInteractionLocked(id); err != nil {
		return OutcomeNone, err
	}
	if !s.overlay.BeginResize(id, p) {
		return OutcomeNone, ErrInteractionActive
	}
	return OutcomeView, nil
}

func (s *Session) checkLabelInteractionLocked(id string) error {
	if s.tool != canvas.ToolText {
		return ErrTextToolRequired
	}
	if s.surface.Stroking() {
		return ErrInteractionActive
	}
	if _, ok := s.overlay.Label(id); !ok {
		return ErrLabelNotFound
	}
	return nil
}

func (s *Session) ToggleStyle(id string, toggle overlay.StyleToggle) Outcome {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.overlay.ToggleStyle(id, toggle) {
		return OutcomeNone
	}
	return s.commitLocked()
}

func (s *Session) DeleteLabel(id string) Outcome {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.overlay.DeleteLabel(id) {
		return OutcomeNone
	}
	return s.commitLocked()
}

func (s *Session) SelectLabel(id string) Outcome {
	s.mu.Lock()
	defer s.mu.Unlock()

	before := s.overlay.Selected()
	s.overlay.Select(id)
	if s.overlay.Selected() == before {
		return OutcomeNone
	}
	return OutcomeView
}

func (s *Session) Undo() (Outcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.history == nil {
		return OutcomeNone, ErrNoHistory
	}
	snap, ok := s.history.Undo()
	if !ok {
		return OutcomeNone, nil
	}
	s.restoreLocked(snap)
	return OutcomeCommit, nil
}

func (s *Session) Redo() (Outcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.history == nil {
		return OutcomeNone, ErrNoHistory
	}
	snap, ok := s.history.Redo()
	if !ok {
		return OutcomeNone, nil
	}
	s.restoreLocked(snap)
	return OutcomeCommit, nil
}

// restoreLocked replaces the document content without touching history.
// Any interaction in progress is abandoned.
func (s *Session) restoreLocked(snap models.Snapshot) {
	s.pages = models.SanitizePages(snap.Pages)
	s.overlay.SetLabels(snap.TextObjects)
	if s.page >= len(s.pages) {
		s.page = len(s.pages) - 1
	}
	s.surface.LoadPage(s.pages[s.page])
	s.rev++
}

func (s *Session) SelectPage(i int) (Outcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if i < 0 || i >= len(s.pages) {
		return OutcomeNone, ErrPageOutOfRange
	}
	outcome, err := s.releaseLocked()
	if err != nil {
		return OutcomeNone, err
	}
	if i == s.page && outcome == OutcomeNone {
		return OutcomeNone, nil
	}
	s.page = i
	s.surface.LoadPage(s.pages[i])
	if outcome == OutcomeCommit {
		return OutcomeCommit, nil
	}
	return OutcomeView, nil
}

// AddPage appends a blank page and switches to it.
func (s *Session) AddPage() (Outcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.releaseLocked(); err != nil {
		return OutcomeNone, err
	}
	s.pages = append(s.pages, models.Page{})
	s.page = len(s.pages) - 1
	s.surface.LoadPage(s.pages[s.page])
	return s.commitLocked(), nil
}

// SetTitle renames the note. Titles that are empty after trimming are
// ignored.
func (s *Session) SetTitle(title string) Outcome {
	s.mu.Lock()
	defer s.mu.Unlock()

	title = strings.TrimSpace(title)
	if title == "" || title == s.note.Title {
		return OutcomeNone
	}
	s.note.Title = title
	s.rev++
	return OutcomeCommit
}

// Document is a consistent copy of the session content at one revision.
type Document struct {
	Note     models.Note
	Revision uint64
	// NoteDirty is set when the owner's private copy is behind.
	NoteDirty bool
	// ShareDirty is set when a publication exists and is behind.
	ShareDirty bool
}

func (s *Session) Document() Document {
	s.mu.Lock()
	defer s.mu.Unlock()

	note := s.note
	note.Pages = models.ClonePages(s.pages)
	note.TextObjects = s.overlay.Labels()
	note.UpdatedAt = s.updatedAt

	return Document{
		Note:       note,
		Revision:   s.rev,
		NoteDirty:  s.role == RoleOwner && s.noteSaved < s.rev,
		ShareDirty: s.note.ShareCode != "" && s.shareSaved < s.rev,
	}
}

// Target names a destination a document was written to.
type Target int

const (
	TargetNote Target = 1 << iota
	TargetShare
)

// MarkSaved records that the document at rev reached the given targets
// with timestamp at. The known UpdatedAt only moves forward.
func (s *Session) MarkSaved(rev uint64, targets Target, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if targets&TargetNote != 0 && rev > s.noteSaved {
		s.noteSaved = rev
	}
	if targets&TargetShare != 0 && rev > s.shareSaved {
		s.shareSaved = rev
	}
	if at.After(s.updatedAt) {
		s.updatedAt = at
	}
}

// UpdatedAt is the last timestamp this session wrote or accepted.
func (s *Session) UpdatedAt() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.updatedAt
}

// ApplyRemote replaces the content with a fetched publication when accept
// approves its timestamp against the known one. It refuses while a stroke
// or label interaction is in progress.
func (s *Session) ApplyRemote(snap models.Snapshot, remoteAt time.Time, accept func(known, remote time.Time) bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.busyLocked() {
		return false
	}
	if !accept(s.updatedAt, remoteAt) {
		return false
	}

	s.restoreLocked(snap)
	s.updatedAt = remoteAt
	// The publication already holds this revision. The owner's private copy
	// still needs it.
	s.shareSaved = s.rev
	if s.role == RoleViewer {
		s.noteSaved = s.rev
	}
	return true
}

// View is what a connected client renders.
type View struct {
	NoteId      string             `json:"noteId"`
	Title       string             `json:"title"`
	ShareCode   string             `json:"shareCode,omitempty"`
	Role        string             `json:"role"`
	Page        int                `json:"page"`
	PageCount   int                `json:"pageCount"`
	ImageData   string             `json:"imageData,omitempty"`
	TextObjects []models.TextLabel `json:"textObjects"`
	Selected    string             `json:"selected,omitempty"`
	Dragging    string             `json:"dragging,omitempty"`
	Resizing    string             `json:"resizing,omitempty"`
	Tool        string             `json:"tool"`
	Color       string             `json:"color"`
	BrushSize   int                `json:"brushSize"`
	FontSize    int                `json:"fontSize"`
	CanUndo     bool               `json:"canUndo"`
	CanRedo     bool               `json:"canRedo"`
	UpdatedAt   time.Time          `json:"updatedAt"`
}

func (s *Session) View() View {
	s.mu.Lock()
	defer s.mu.Unlock()

	v := View{
		NoteId:      s.note.Id,
		Title:       s.note.Title,
		ShareCode:   s.note.ShareCode,
		Role:        s.role.String(),
		Page:        s.page,
		PageCount:   len(s.pages),
		ImageData:   s.pages[s.page].ImageData,
		TextObjects: s.overlay.Labels(),
		Selected:    s.overlay.Selected(),
		Tool:        s.tool.String(),
		Color:       s.color,
		BrushSize:   s.brushSize,
		FontSize:    s.fontSize,
		UpdatedAt:   s.updatedAt,
	}
	v.Dragging, _ = s.overlay.Dragging()
	v.Resizing, _ = s.overlay.Resizing()
	if s.history != nil {
		v.CanUndo = s.history.CanUndo()
		v.CanRedo = s.history.CanRedo()
	}
	return v
}

// HistoryLen is the number of undo entries, zero for viewers.
func (s *Session) HistoryLen() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.history == nil {
		return 0
	}
	return s.history.Len()
}
