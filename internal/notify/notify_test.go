package notify

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/cristianoliveira/maildirwatch/internal/actions"
	mwerrors "github.com/cristianoliveira/maildirwatch/internal/errors"
	"github.com/cristianoliveira/maildirwatch/internal/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func showXTable(t *testing.T) *actions.Table {
	t.Helper()
	table, err := actions.NewTable([]actions.Spec{
		{Name: "Show X", Argv: []string{"/bin/true", "arg1"}},
		{Name: "Archive", Argv: []string{"/bin/echo", "archive"}},
	}, "Show X")
	require.NoError(t, err)
	return table
}

func inboxEvent() Event {
	return Event{
		ID:           "batch-1",
		MaildirPath:  "/home/u/Maildir/INBOX",
		RelativePath: "Maildir/INBOX",
		MessageCount: 3,
		Unseen:       7,
	}
}

func TestBuild(t *testing.T) {
	n := Build(inboxEvent(), showXTable(t))
	assert.Equal(t, "3 new messages in INBOX", n.Summary)
	assert.Equal(t, "Maildir/INBOX\n7 unseen", n.Body)
	assert.Equal(t, Icon, n.Icon)
	assert.True(t, n.Default)
	assert.Equal(t, []Button{{Key: "Show X", Label: "Show X"}, {Key: "Archive", Label: "Archive"}}, n.Actions)

	e := inboxEvent()
	e.MessageCount = 1
	e.Unseen = -1
	n = Build(e, nil)
	assert.Equal(t, "1 new message in INBOX", n.Summary)
	assert.Equal(t, "Maildir/INBOX", n.Body)
	assert.False(t, n.Default)
	assert.Empty(t, n.Actions)
}

func TestBuildRootMaildir(t *testing.T) {
	e := Event{MaildirPath: "/home/u/Mail", RelativePath: ".", MessageCount: 2, Unseen: -1}
	n := Build(e, nil)
	assert.Equal(t, "2 new messages in Mail", n.Summary)
	assert.Equal(t, "/home/u/Mail", n.Body)
}

func TestBodyClickLaunchesDefault(t *testing.T) {
	p := newMockPresenter()
	l := &mockLauncher{}
	d := NewDispatcher(p, showXTable(t), l, nil)

	p.On("Show", mock.Anything, mock.Anything).Return(uint32(11), nil)
	l.On("Detach", []string{"/bin/true", "arg1"}).Return(4242, nil)

	id, err := d.Dispatch(context.Background(), inboxEvent())
	require.NoError(t, err)
	assert.Equal(t, uint32(11), id)
	assert.Equal(t, 1, d.Live())

	def, launched, err := d.Handle(Interaction{ID: 11, Action: BodyAction})
	require.NoError(t, err)
	assert.True(t, launched)
	assert.Equal(t, "Show X", def.Name)
	assert.Equal(t, 0, d.Live())
	l.AssertExpectations(t)
}

func TestButtonLaunchesNamedAction(t *testing.T) {
	p := newMockPresenter()
	l := &mockLauncher{}
	d := NewDispatcher(p, showXTable(t), l, nil)

	p.On("Show", mock.Anything, mock.Anything).Return(uint32(3), nil)
	l.On("Detach", []string{"/bin/echo", "archive"}).Return(1, nil)

	_, err := d.Dispatch(context.Background(), inboxEvent())
	require.NoError(t, err)
	_, launched, err := d.Handle(Interaction{ID: 3, Action: "Archive"})
	require.NoError(t, err)
	assert.True(t, launched)
	l.AssertExpectations(t)
}

func TestBodyClickWithoutDefaultDoesNothing(t *testing.T) {
	table, err := actions.NewTable([]actions.Spec{{Name: "A", Argv: []string{"/bin/true"}}}, "")
	require.NoError(t, err)
	p := newMockPresenter()
	l := &mockLauncher{}
	d := NewDispatcher(p, table, l, nil)

	p.On("Show", mock.Anything, mock.Anything).Return(uint32(1), nil)
	_, err = d.Dispatch(context.Background(), inboxEvent())
	require.NoError(t, err)

	_, launched, err := d.Handle(Interaction{ID: 1, Action: BodyAction})
	require.NoError(t, err)
	assert.False(t, launched)
	l.AssertNotCalled(t, "Detach", mock.Anything)
	assert.Equal(t, 1, d.Live())
}

func TestUnknownInteractionIgnored(t *testing.T) {
	l := &mockLauncher{}
	d := NewDispatcher(newMockPresenter(), showXTable(t), l, nil)
	_, launched, err := d.Handle(Interaction{ID: 99, Action: BodyAction})
	require.NoError(t, err)
	assert.False(t, launched)
	l.AssertNotCalled(t, "Detach", mock.Anything)
}

func TestClosedDropsHandle(t *testing.T) {
	p := newMockPresenter()
	d := NewDispatcher(p, showXTable(t), &mockLauncher{}, nil)
	p.On("Show", mock.Anything, mock.Anything).Return(uint32(5), nil)
	_, err := d.Dispatch(context.Background(), inboxEvent())
	require.NoError(t, err)

	_, launched, err := d.Handle(Interaction{ID: 5, Closed: true})
	require.NoError(t, err)
	assert.False(t, launched)
	assert.Equal(t, 0, d.Live())
	_, ok := d.lookup(5)
	assert.False(t, ok)
}

func TestLaunchFailureIsLogged(t *testing.T) {
	var buf bytes.Buffer
	p := newMockPresenter()
	l := &mockLauncher{}
	d := NewDispatcher(p, showXTable(t), l, logging.New(&buf, "info"))

	p.On("Show", mock.Anything, mock.Anything).Return(uint32(2), nil)
	l.On("Detach", mock.Anything).Return(0, errors.New("no such file"))

	_, err := d.Dispatch(context.Background(), inboxEvent())
	require.NoError(t, err)
	_, launched, err := d.Handle(Interaction{ID: 2, Action: BodyAction})
	assert.True(t, launched)
	require.Error(t, err)
	assert.True(t, errors.Is(err, mwerrors.ErrActionLaunch))
	assert.Contains(t, buf.String(), "action launch failed")
}

func TestDispatchReplacesLiveNotification(t *testing.T) {
	p := newMockPresenter()
	d := NewDispatcher(p, showXTable(t), &mockLauncher{}, nil)

	p.On("Show", mock.Anything, mock.MatchedBy(func(n Notification) bool { return n.ReplacesID == 0 })).Return(uint32(8), nil).Once()
	p.On("Show", mock.Anything, mock.MatchedBy(func(n Notification) bool { return n.ReplacesID == 8 })).Return(uint32(8), nil).Once()

	_, err := d.Dispatch(context.Background(), inboxEvent())
	require.NoError(t, err)
	_, err = d.Dispatch(context.Background(), inboxEvent())
	require.NoError(t, err)
	assert.Equal(t, 1, d.Live())
	p.AssertExpectations(t)
}

func TestDispatchShowError(t *testing.T) {
	p := newMockPresenter()
	d := NewDispatcher(p, showXTable(t), &mockLauncher{}, nil)
	p.On("Show", mock.Anything, mock.Anything).Return(uint32(0), errors.New("no bus"))
	_, err := d.Dispatch(context.Background(), inboxEvent())
	require.Error(t, err)
	assert.Equal(t, 0, d.Live())
}

func TestForgetDismisses(t *testing.T) {
	p := newMockPresenter()
	d := NewDispatcher(p, showXTable(t), &mockLauncher{}, nil)
	p.On("Show", mock.Anything, mock.Anything).Return(uint32(4), nil)
	p.On("Dismiss", mock.Anything, uint32(4)).Return(errors.New("gone"))

	_, err := d.Dispatch(context.Background(), inboxEvent())
	require.NoError(t, err)
	d.Forget(context.Background(), inboxEvent().MaildirPath)
	assert.Equal(t, 0, d.Live())

	// second forget is a no-op
	d.Forget(context.Background(), inboxEvent().MaildirPath)
	p.AssertNumberOfCalls(t, "Dismiss", 1)
}

func TestLogPresenter(t *testing.T) {
	var buf bytes.Buffer
	p := NewLogPresenter(logging.New(&buf, "info"))
	id, err := p.Show(context.Background(), Build(inboxEvent(), showXTable(t)))
	require.NoError(t, err)
	assert.Equal(t, uint32(1), id)
	assert.Contains(t, buf.String(), "3 new messages in INBOX")

	id, err = p.Show(context.Background(), Notification{Summary: "again", ReplacesID: 1})
	require.NoError(t, err)
	assert.Equal(t, uint32(1), id)

	require.NoError(t, p.Close())
	require.NoError(t, p.Close())
	_, ok := <-p.Interactions()
	assert.False(t, ok)
}
