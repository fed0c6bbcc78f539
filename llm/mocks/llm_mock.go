package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"
)

type MockCompleter struct {
	mock.Mock
}

func (m *MockCompleter) Complete(ctx context.Context, system string, message string) (string, error) {
	args := m.Called(ctx, system, message)
	return args.String(0), args.Error(1)
}
