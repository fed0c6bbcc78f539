package notesync

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/dayzy/notes/editor"
	"github.com/dayzy/notes/models"
	"github.com/dayzy/notes/store"
	"github.com/dayzy/notes/store/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

type recordingListener struct {
	mu       sync.Mutex
	messages []string
	applied  int
}

func (r *recordingListener) Notify(msg string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages = append(r.messages, msg)
}

func (r *recordingListener) RemoteApplied() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.applied++
}

func (r *recordingListener) appliedCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.applied
}

func wrapMockWithSignal(call *mock.Call) chan struct{} {
	done := make(chan struct{})
	var once sync.Once
	call.Run(func(args mock.Arguments) {
		once.Do(func() { close(done) })
	})
	return done
}

func waitSignal(t *testing.T, ch chan struct{}, what string) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for %s", what)
	}
}

func fixedClock(at time.Time) func() time.Time {
	return func() time.Time { return at }
}

func ownerSession(shareCode string) *editor.Session {
	return editor.NewSession(models.Note{
		Id:        "note_1",
		OwnerId:   "user_1",
		Title:     "Note 1",
		ShareCode: shareCode,
		UpdatedAt: t0,
	}, editor.Options{Role: editor.RoleOwner, Width: 40, Height: 40})
}

func viewerSession() *editor.Session {
	return editor.NewSession(models.Note{
		Id:        "note_1",
		OwnerId:   "user_1",
		Title:     "Note 1",
		ShareCode: "ABC123",
		UpdatedAt: t0,
	}, editor.Options{Role: editor.RoleViewer, Width: 40, Height: 40})
}

func remotePublication(at time.Time) models.SharePublication {
	return models.SharePublication{
		Code:        "ABC123",
		NoteId:      "note_1",
		Pages:       []models.Page{{}, {}},
		TextObjects: []models.TextLabel{{Id: "text_r", Text: "remote", X: 1, Y: 2, FontSize: 16, Color: "#000000"}},
		UpdatedAt:   at,
	}
}

func TestShouldApply_EchoGuard(t *testing.T) {
	guard := DefaultConfig().EchoGuard

	assert.False(t, ShouldApply(t0, t0.Add(400*time.Millisecond), guard))
	assert.False(t, ShouldApply(t0, t0.Add(500*time.Millisecond), guard))
	assert.True(t, ShouldApply(t0, t0.Add(600*time.Millisecond), guard))
	assert.False(t, ShouldApply(t0, t0.Add(-time.Hour), guard))
}

func TestPoll_WithinGuardNotApplied(t *testing.T) {
	mockStore := new(mocks.MockStore)
	listener := &recordingListener{}
	session := ownerSession("ABC123")
	loop := NewLoop(session, mockStore, listener, DefaultConfig())

	mockStore.On("GetPublication", mock.Anything, "ABC123").Return(remotePublication(t0.Add(400*time.Millisecond)), nil)

	loop.Poll(context.Background())

	assert.Equal(t, 0, listener.appliedCount())
	assert.Len(t, session.Document().Note.Pages, 1)
	assert.Equal(t, t0, session.UpdatedAt())
}

func TestPoll_NewerApplied(t *testing.T) {
	mockStore := new(mocks.MockStore)
	listener := &recordingListener{}
	session := ownerSession("ABC123")
	loop := NewLoop(session, mockStore, listener, DefaultConfig())

	mockStore.On("GetPublication", mock.Anything, "ABC123").Return(remotePublication(t0.Add(600*time.Millisecond)), nil)

	loop.Poll(context.Background())

	assert.Equal(t, 1, listener.appliedCount())
	doc := session.Document()
	assert.Len(t, doc.Note.Pages, 2)
	assert.Equal(t, "remote", doc.Note.TextObjects[0].Text)
	assert.Equal(t, t0.Add(600*time.Millisecond), session.UpdatedAt())
}

func TestPoll_MidStrokeDeferred(t *testing.T) {
	mockStore := new(mocks.MockStore)
	listener := &recordingListener{}
	session := ownerSession("ABC123")
	loop := NewLoop(session, mockStore, listener, DefaultConfig())

	mockStore.On("GetPublication", mock.Anything, "ABC123").Return(remotePublication(t0.Add(time.Minute)), nil)

	require.NoError(t, session.BeginStroke(models.Point{X: 5, Y: 20}))
	session.PointerMove(models.Point{X: 35, Y: 20})
	before := session.Surface().Image()

	loop.Poll(context.Background())

	assert.Equal(t, 0, listener.appliedCount())
	assert.True(t, session.Surface().Stroking())
	assert.Equal(t, before.Pix, session.Surface().Image().Pix)

	_, err := session.PointerUp()
	require.NoError(t, err)
	loop.Poll(context.Background())
	assert.Equal(t, 1, listener.appliedCount())
}

func TestPoll_PrivateNoteDoesNothing(t *testing.T) {
	mockStore := new(mocks.MockStore)
	loop := NewLoop(ownerSession(""), mockStore, nil, DefaultConfig())

	loop.Poll(context.Background())

	mockStore.AssertNotCalled(t, "GetPublication", mock.Anything, mock.Anything)
}

func TestPoll_ViewerToldWhenShareRemoved(t *testing.T) {
	mockStore := new(mocks.MockStore)
	listener := &recordingListener{}
	loop := NewLoop(viewerSession(), mockStore, listener, DefaultConfig())

	mockStore.On("GetPublication", mock.Anything, "ABC123").Return(models.SharePublication{}, store.ErrItemNotFound)

	loop.Poll(context.Background())

	assert.Equal(t, []string{ErrPublicationAbsent.Error()}, listener.messages)
}

func TestAutosave_OwnerWritesNoteAndShare(t *testing.T) {
	mockStore := new(mocks.MockStore)
	session := ownerSession("ABC123")
	savedAt := t0.Add(time.Minute)
	cfg := DefaultConfig()
	cfg.Now = fixedClock(savedAt)
	loop := NewLoop(session, mockStore, nil, cfg)

	session.AddLabel("hello")

	mockStore.On("SaveNotes", mock.Anything, "user_1", mock.MatchedBy(func(notes []models.Note) bool {
		return len(notes) == 1 && notes[0].Id == "note_1" && notes[0].UpdatedAt.Equal(savedAt) && len(notes[0].TextObjects) == 1
	}), noteFields).Return(nil).Once()
	mockStore.On("SetPublication", mock.Anything, mock.MatchedBy(func(pub models.SharePublication) bool {
		return pub.Code == "ABC123" && pub.UpdatedAt.Equal(savedAt)
	}), shareFields).Return(nil).Once()

	loop.Autosave(context.Background())
	// Nothing left to write
	loop.Autosave(context.Background())

	mockStore.AssertExpectations(t)
	assert.Equal(t, savedAt, session.UpdatedAt())

	// A poll echoing our own write is not applied
	mockStore.On("GetPublication", mock.Anything, "ABC123").Return(remotePublication(savedAt), nil)
	loop.Poll(context.Background())
	assert.Len(t, session.Document().Note.TextObjects, 1)
	assert.Equal(t, "hello", session.Document().Note.TextObjects[0].Text)
}

func TestAutosave_CleanSessionSkipsWrite(t *testing.T) {
	mockStore := new(mocks.MockStore)
	loop := NewLoop(ownerSession("ABC123"), mockStore, nil, DefaultConfig())

	loop.Autosave(context.Background())

	mockStore.AssertNotCalled(t, "SaveNotes", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	mockStore.AssertNotCalled(t, "SetPublication", mock.Anything, mock.Anything, mock.Anything)
}

func TestAutosave_FailureNotifiesAndStaysDirty(t *testing.T) {
	mockStore := new(mocks.MockStore)
	listener := &recordingListener{}
	session := ownerSession("")
	loop := NewLoop(session, mockStore, listener, DefaultConfig())

	session.AddLabel("x")
	mockStore.On("SaveNotes", mock.Anything, "user_1", mock.Anything, noteFields).Return(errors.New("boom"))

	loop.Autosave(context.Background())

	assert.Equal(t, []string{"Save failed"}, listener.messages)
	assert.True(t, session.Document().NoteDirty)
}

func TestViewer_EditsReachPublicationOnly(t *testing.T) {
	mockStore := new(mocks.MockStore)
	session := viewerSession()
	cfg := DefaultConfig()
	cfg.AutosaveInterval = 20 * time.Millisecond
	cfg.PollInterval = time.Hour
	loop := NewLoop(session, mockStore, nil, cfg)

	pushed := wrapMockWithSignal(mockStore.On("SetPublication", mock.Anything, mock.MatchedBy(func(pub models.SharePublication) bool {
		return pub.Code == "ABC123" && len(pub.TextObjects) == 1 && pub.TextObjects[0].Text == "guest"
	}), shareFields).Return(nil))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go loop.Run(ctx)

	_, outcome := session.AddLabel("guest")
	require.Equal(t, editor.OutcomeCommit, outcome)
	loop.Commit(ctx)

	waitSignal(t, pushed, "SetPublication")
	mockStore.AssertNotCalled(t, "SaveNotes", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestFlush_SingleFlightCoalesces(t *testing.T) {
	mockStore := new(mocks.MockStore)
	session := viewerSession()
	loop := NewLoop(session, mockStore, nil, DefaultConfig())

	started := make(chan struct{})
	release := make(chan struct{})
	mockStore.On("SetPublication", mock.Anything, mock.Anything, shareFields).Run(func(args mock.Arguments) {
		close(started)
		<-release
	}).Return(nil).Once()
	mockStore.On("SetPublication", mock.Anything, mock.Anything, shareFields).Return(nil)

	session.AddLabel("first")
	done := make(chan struct{})
	go func() {
		loop.Autosave(context.Background())
		close(done)
	}()
	waitSignal(t, started, "first write")

	session.AddLabel("second")
	loop.flush(context.Background(), editor.TargetShare)
	loop.flush(context.Background(), editor.TargetShare)
	close(release)
	waitSignal(t, done, "trailing write")

	loop.Close(context.Background())
	mockStore.AssertNumberOfCalls(t, "SetPublication", 2)
	assert.False(t, session.Document().ShareDirty)
}

func TestClose_QueuedWriteUsesCloseContext(t *testing.T) {
	mockStore := new(mocks.MockStore)
	session := ownerSession("ABC123")
	loop := NewLoop(session, mockStore, nil, DefaultConfig())

	started := make(chan struct{})
	release := make(chan struct{})
	mockStore.On("SetPublication", mock.Anything, mock.Anything, shareFields).Run(func(args mock.Arguments) {
		close(started)
		<-release
	}).Return(nil).Once()
	var saveErr error
	mockStore.On("SaveNotes", mock.Anything, "user_1", mock.Anything, noteFields).Run(func(args mock.Arguments) {
		saveErr = args.Get(0).(context.Context).Err()
	}).Return(nil).Once()

	session.AddLabel("last words")
	sessionCtx, cancel := context.WithCancel(context.Background())
	loop.Commit(sessionCtx)
	waitSignal(t, started, "share push")
	// The connection goes away while the push is running
	cancel()

	closed := make(chan struct{})
	go func() {
		loop.Close(context.Background())
		close(closed)
	}()
	require.Eventually(t, func() bool {
		loop.mu.Lock()
		defer loop.mu.Unlock()
		return loop.pending != 0
	}, time.Second, time.Millisecond)
	close(release)
	waitSignal(t, closed, "close")

	mockStore.AssertExpectations(t)
	assert.NoError(t, saveErr)
	assert.False(t, session.Document().NoteDirty)
}

func TestPoll_SkippedWhileWriteInFlight(t *testing.T) {
	mockStore := new(mocks.MockStore)
	listener := &recordingListener{}
	session := ownerSession("ABC123")
	cfg := DefaultConfig()
	cfg.Now = fixedClock(t0.Add(time.Minute))
	loop := NewLoop(session, mockStore, listener, cfg)

	started := make(chan struct{})
	release := make(chan struct{})
	mockStore.On("SetPublication", mock.Anything, mock.Anything, shareFields).Run(func(args mock.Arguments) {
		close(started)
		<-release
	}).Return(nil).Once()
	mockStore.On("SaveNotes", mock.Anything, "user_1", mock.Anything, noteFields).Return(nil)
	mockStore.On("GetPublication", mock.Anything, "ABC123").Return(remotePublication(t0.Add(10*time.Minute)), nil)

	session.AddLabel("local")
	loop.Commit(context.Background())
	waitSignal(t, started, "share push")

	loop.Poll(context.Background())
	mockStore.AssertNotCalled(t, "GetPublication", mock.Anything, mock.Anything)

	close(release)
	loop.Close(context.Background())

	doc := session.Document()
	assert.Equal(t, "local", doc.Note.TextObjects[0].Text)
	assert.False(t, doc.ShareDirty)
	assert.Equal(t, 0, listener.appliedCount())

	// Once the push landed, a newer copy is taken as usual
	loop.Poll(context.Background())
	assert.Equal(t, 1, listener.appliedCount())
	assert.Equal(t, "remote", session.Document().Note.TextObjects[0].Text)
}

func TestPublish_RetriesTakenCode(t *testing.T) {
	mockStore := new(mocks.MockStore)
	listener := &recordingListener{}
	session := ownerSession("")
	codes := []string{"TAKEN1", "ABC123"}
	cfg := DefaultConfig()
	cfg.NewCode = func() (string, error) {
		c := codes[0]
		codes = codes[1:]
		return c, nil
	}
	loop := NewLoop(session, mockStore, listener, cfg)

	mockStore.On("CreatePublication", mock.Anything, mock.MatchedBy(func(p models.SharePublication) bool {
		return p.Code == "TAKEN1"
	})).Return(false, nil)
	mockStore.On("CreatePublication", mock.Anything, mock.MatchedBy(func(p models.SharePublication) bool {
		return p.Code == "ABC123" && p.NoteId == "note_1" && p.OwnerName == "me@example.com" && p.Title == "Note 1"
	})).Return(true, nil)
	mockStore.On("SaveNotes", mock.Anything, "user_1", mock.MatchedBy(func(notes []models.Note) bool {
		return len(notes) == 1 && notes[0].ShareCode == "ABC123"
	}), []string{models.FieldShareCode}).Return(nil)

	code, err := loop.Publish(context.Background(), "me@example.com")
	require.NoError(t, err)
	assert.Equal(t, "ABC123", code)
	assert.Equal(t, "ABC123", session.ShareCode())
	assert.False(t, session.Document().ShareDirty)

	// Publishing again keeps the code
	again, err := loop.Publish(context.Background(), "me@example.com")
	require.NoError(t, err)
	assert.Equal(t, code, again)
	mockStore.AssertNumberOfCalls(t, "CreatePublication", 2)
}

func TestPublish_GivesUpAfterMaxAttempts(t *testing.T) {
	mockStore := new(mocks.MockStore)
	session := ownerSession("")
	cfg := DefaultConfig()
	cfg.NewCode = func() (string, error) { return "ZZZZZZ", nil }
	loop := NewLoop(session, mockStore, nil, cfg)

	mockStore.On("CreatePublication", mock.Anything, mock.Anything).Return(false, nil)

	_, err := loop.Publish(context.Background(), "me")
	assert.ErrorIs(t, err, ErrShareCodesTaken)
	mockStore.AssertNumberOfCalls(t, "CreatePublication", maxShareCodeAttempts)
	assert.Empty(t, session.ShareCode())
}

func TestPublish_ViewerRejected(t *testing.T) {
	loop := NewLoop(viewerSession(), new(mocks.MockStore), nil, DefaultConfig())

	_, err := loop.Publish(context.Background(), "me")
	assert.ErrorIs(t, err, ErrNotOwner)
}
