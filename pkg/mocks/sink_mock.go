package mocks

import (
	"context"

	"github.com/Stefan/orka-ppm-sub007/pkg/notify"
	"github.com/stretchr/testify/mock"
)

// MockSink is a mock implementation of notify.Sink interface.
type MockSink struct {
	mock.Mock
}

func (m *MockSink) Notify(ctx context.Context, intent notify.Intent) {
	m.Called(ctx, intent)
}
