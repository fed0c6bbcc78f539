// Package notesync keeps an open note, the owner's stored copy and its share
// publication converging.
package notesync

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/dayzy/notes/editor"
	"github.com/dayzy/notes/models"
	"github.com/dayzy/notes/store"
)

const maxShareCodeAttempts = 5

var (
	ErrNotOwner          = errors.New("only the owner can publish a note")
	ErrShareCodesTaken   = errors.New("could not find a free share code")
	ErrPublicationAbsent = errors.New("shared note no longer exists")
)

type Config struct {
	AutosaveInterval time.Duration
	PollInterval     time.Duration
	// EchoGuard is how much newer a fetched publication must be than the
	// known timestamp before it replaces local state.
	EchoGuard time.Duration
	Now       func() time.Time
	NewCode   func() (string, error)
}

func DefaultConfig() Config {
	return Config{
		AutosaveInterval: 5 * time.Second,
		PollInterval:     3 * time.Second,
		EchoGuard:        500 * time.Millisecond,
		Now:              time.Now,
		NewCode:          GenerateShareCode,
	}
}

// Persistence is the part of the document store the loop writes through.
type Persistence interface {
	SaveNotes(ctx context.Context, ownerId string, notes []models.Note, fields []string) error
	GetPublication(ctx context.Context, code string) (models.SharePublication, error)
	CreatePublication(ctx context.Context, pub models.SharePublication) (bool, error)
	SetPublication(ctx context.Context, pub models.SharePublication, fields []string) error
}

// Listener receives what a connected client should be told.
type Listener interface {
	Notify(msg string)
	RemoteApplied()
}

type nopListener struct{}

func (nopListener) Notify(string)  {}
func (nopListener) RemoteApplied() {}

var (
	noteFields  = []string{models.FieldTitle, models.FieldPages, models.FieldTextObjects, models.FieldUpdatedAt}
	shareFields = []string{models.FieldPages, models.FieldTextObjects, models.FieldUpdatedAt}
)

// ShouldApply reports whether a publication stamped remote replaces local
// state last stamped known.
func ShouldApply(known, remote time.Time, guard time.Duration) bool {
	return remote.Sub(known) > guard
}

// Loop runs the autosave and poll timers of one editor session. Writes are
// single-flight: a write requested while another is running is folded into
// one trailing write.
type Loop struct {
	session  *editor.Session
	store    Persistence
	listener Listener
	cfg      Config

	nudge chan struct{}

	// busy is held by one write or poll at a time. Writes requested
	// meanwhile are folded into pending and run with the context of the
	// latest request.
	mu         sync.Mutex
	busy       bool
	pending    editor.Target
	pendingCtx context.Context
	idle       *sync.Cond
}

func NewLoop(session *editor.Session, persistence Persistence, listener Listener, cfg Config) *Loop {
	def := DefaultConfig()
	if cfg.AutosaveInterval <= 0 {
		cfg.AutosaveInterval = def.AutosaveInterval
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = def.PollInterval
	}
	if cfg.Now == nil {
		cfg.Now = def.Now
	}
	if cfg.NewCode == nil {
		cfg.NewCode = def.NewCode
	}
	if listener == nil {
		listener = nopListener{}
	}

	l := &Loop{
		session:  session,
		store:    persistence,
		listener: listener,
		cfg:      cfg,
		nudge:    make(chan struct{}, 1),
	}
	l.idle = sync.NewCond(&l.mu)
	return l
}

func (l *Loop) Session() *editor.Session {
	return l.session
}

// Run drives both timers until ctx is cancelled.
func (l *Loop) Run(ctx context.Context) {
	autosave := time.NewTicker(l.cfg.AutosaveInterval)
	defer autosave.Stop()
	poll := time.NewTicker(l.cfg.PollInterval)
	defer poll.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-autosave.C:
			l.Autosave(ctx)
		case <-poll.C:
			l.Poll(ctx)
		case <-l.nudge:
			l.Poll(ctx)
		}
	}
}

// Nudge asks Run to poll now instead of waiting for the next tick.
func (l *Loop) Nudge() {
	select {
	case l.nudge <- struct{}{}:
	default:
	}
}

// Autosave writes whatever is behind: the owner's note and the publication.
func (l *Loop) Autosave(ctx context.Context) {
	l.flush(ctx, editor.TargetNote|editor.TargetShare)
}

// Commit pushes an interaction's result to the publication in the
// background. Private notes wait for the autosave tick.
func (l *Loop) Commit(ctx context.Context) {
	if l.session.ShareCode() == "" {
		return
	}
	go l.flush(ctx, editor.TargetShare)
}

// Close writes anything still pending with ctx and waits for in-flight
// writes. Writes queued behind a running one use ctx too, so a cancelled
// session context cannot drop the last save.
func (l *Loop) Close(ctx context.Context) {
	l.flush(ctx, editor.TargetNote|editor.TargetShare)
	l.mu.Lock()
	for l.busy {
		l.idle.Wait()
	}
	l.mu.Unlock()
}

// acquire takes the single-flight slot. When it is taken, targets are
// queued for the holder to run on release.
func (l *Loop) acquire(ctx context.Context, targets editor.Target) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.busy {
		if targets != 0 {
			l.pending |= targets
			l.pendingCtx = ctx
		}
		return false
	}
	l.busy = true
	return true
}

// release runs the queued writes and frees the slot.
func (l *Loop) release() {
	for {
		l.mu.Lock()
		if l.pending == 0 {
			l.busy = false
			l.pendingCtx = nil
			l.idle.Broadcast()
			l.mu.Unlock()
			return
		}
		targets, ctx := l.pending, l.pendingCtx
		l.pending = 0
		l.pendingCtx = nil
		l.mu.Unlock()

		l.write(ctx, targets)
	}
}

func (l *Loop) flush(ctx context.Context, targets editor.Target) {
	if !l.acquire(ctx, targets) {
		return
	}
	l.write(ctx, targets)
	l.release()
}

func (l *Loop) write(ctx context.Context, targets editor.Target) {
	doc := l.session.Document()
	writeNote := targets&editor.TargetNote != 0 && doc.NoteDirty
	writeShare := targets&editor.TargetShare != 0 && doc.ShareDirty
	if !writeNote && !writeShare {
		return
	}

	at := l.cfg.Now()
	note := doc.Note
	note.UpdatedAt = at

	if writeNote {
		if err := l.store.SaveNotes(ctx, note.OwnerId, []models.Note{note}, noteFields); err != nil {
			log.Printf("Failed to save note %s: %v", note.Id, err)
			l.listener.Notify("Save failed")
			return
		}
		l.session.MarkSaved(doc.Revision, editor.TargetNote, at)
	}

	if writeShare {
		pub := models.SharePublication{
			Code:        note.ShareCode,
			Pages:       note.Pages,
			TextObjects: note.TextObjects,
			UpdatedAt:   at,
		}
		if err := l.store.SetPublication(ctx, pub, shareFields); err != nil {
			log.Printf("Failed to push shared note %s: %v", note.ShareCode, err)
			l.listener.Notify("Sync to shared note failed")
			return
		}
		l.session.MarkSaved(doc.Revision, editor.TargetShare, at)
	}
}

// Poll fetches the publication and applies it when it is newer than the
// known timestamp by more than the echo guard and no gesture is active.
// It is skipped while a write is in flight.
func (l *Loop) Poll(ctx context.Context) {
	code := l.session.ShareCode()
	if code == "" {
		return
	}
	// A running write holds a snapshot the fetched copy could overtake.
	// The next tick polls again.
	if !l.acquire(ctx, 0) {
		return
	}
	defer l.release()

	pub, err := l.store.GetPublication(ctx, code)
	if errors.Is(err, store.ErrItemNotFound) {
		if l.session.Role() == editor.RoleViewer {
			l.listener.Notify(ErrPublicationAbsent.Error())
		}
		return
	}
	if err != nil {
		log.Printf("Failed to poll shared note %s: %v", code, err)
		return
	}

	snap := models.Snapshot{Pages: pub.Pages, TextObjects: pub.TextObjects}
	accept := func(known, remote time.Time) bool {
		return ShouldApply(known, remote, l.cfg.EchoGuard)
	}
	if l.session.ApplyRemote(snap, pub.UpdatedAt, accept) {
		l.listener.RemoteApplied()
	}
}

// Publish creates a publication holding the current content and records
// its code on the owner's note. A note that is already shared keeps its
// code.
func (l *Loop) Publish(ctx context.Context, ownerName string) (string, error) {
	if l.session.Role() != editor.RoleOwner {
		return "", ErrNotOwner
	}
	if code := l.session.ShareCode(); code != "" {
		return code, nil
	}

	doc := l.session.Document()
	at := l.cfg.Now()
	pub := models.SharePublication{
		NoteId:      doc.Note.Id,
		OwnerId:     doc.Note.OwnerId,
		OwnerName:   ownerName,
		Title:       doc.Note.Title,
		Pages:       doc.Note.Pages,
		TextObjects: doc.Note.TextObjects,
		CreatedAt:   at,
		UpdatedAt:   at,
	}

	created := false
	for range maxShareCodeAttempts {
		code, err := l.cfg.NewCode()
		if err != nil {
			return "", err
		}
		pub.Code = code
		created, err = l.store.CreatePublication(ctx, pub)
		if err != nil {
			log.Printf("Failed to create publication for note %s: %v", doc.Note.Id, err)
			l.listener.Notify("Share failed")
			return "", err
		}
		if created {
			break
		}
	}
	if !created {
		l.listener.Notify("Share failed")
		return "", ErrShareCodesTaken
	}

	update := models.Note{Id: doc.Note.Id, OwnerId: doc.Note.OwnerId, ShareCode: pub.Code}
	if err := l.store.SaveNotes(ctx, doc.Note.OwnerId, []models.Note{update}, []string{models.FieldShareCode}); err != nil {
		log.Printf("Failed to record share code on note %s: %v", doc.Note.Id, err)
		l.listener.Notify("Share failed")
		return "", err
	}

	l.session.SetShareCode(pub.Code, doc.Revision)
	l.session.MarkSaved(doc.Revision, editor.TargetShare, at)
	l.listener.Notify("Share link created!")
	return pub.Code, nil
}
