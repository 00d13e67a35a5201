package notify

import (
	"context"

	"github.com/cristianoliveira/maildirwatch/internal/launcher"
	"github.com/stretchr/testify/mock"
)

type mockPresenter struct {
	mock.Mock
	ch chan Interaction
}

func newMockPresenter() *mockPresenter {
	return &mockPresenter{ch: make(chan Interaction, 4)}
}

func (m *mockPresenter) Show(ctx context.Context, n Notification) (uint32, error) {
	args := m.Called(ctx, n)
	return args.Get(0).(uint32), args.Error(1)
}

func (m *mockPresenter) Dismiss(ctx context.Context, id uint32) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *mockPresenter) Interactions() <-chan Interaction {
	return m.ch
}

func (m *mockPresenter) Close() error {
	return nil
}

type mockLauncher struct {
	mock.Mock
}

func (m *mockLauncher) Start(ctx context.Context, argv []string) (*launcher.Process, error) {
	args := m.Called(ctx, argv)
	p, _ := args.Get(0).(*launcher.Process)
	return p, args.Error(1)
}

func (m *mockLauncher) Detach(argv []string) (int, error) {
	args := m.Called(argv)
	return args.Int(0), args.Error(1)
}
