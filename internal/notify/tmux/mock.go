package tmux

import (
	"github.com/stretchr/testify/mock"
)

// MockClient is a mock implementation of Client for testing.
//
// Example usage:
//
//	mockClient := new(MockClient)
//	mockClient.On("HasSession").Return(true, nil)
//	mockClient.On("DisplayMessage", "1 new message in INBOX (INBOX)", DefaultDisplayTime).Return(nil)
type MockClient struct {
	mock.Mock
}

// HasSession returns a mocked server state.
func (m *MockClient) HasSession() (bool, error) {
	args := m.Called()
	return args.Bool(0), args.Error(1)
}

// DisplayMessage returns a mocked error.
func (m *MockClient) DisplayMessage(msg string, durationMs int) error {
	args := m.Called(msg, durationMs)
	return args.Error(0)
}

// SetStatusOption returns a mocked error.
func (m *MockClient) SetStatusOption(name, value string) error {
	args := m.Called(name, value)
	return args.Error(0)
}

// Run returns mocked stdout, stderr and error.
func (m *MockClient) Run(args ...string) (string, string, error) {
	callArgs := m.Called(args)
	return callArgs.String(0), callArgs.String(1), callArgs.Error(2)
}
