package booking

import (
	"context"

	"classbook/internal/model"
	"classbook/internal/notify"

	"github.com/stretchr/testify/mock"
)

type mockWriter struct {
	mock.Mock
}

func (m *mockWriter) CreateBooking(ctx context.Context, b model.Booking) (string, error) {
	args := m.Called(ctx, b)
	return args.String(0), args.Error(1)
}

func (m *mockWriter) CreateRecurring(ctx context.Context, r model.RecurringBooking) (string, error) {
	args := m.Called(ctx, r)
	return args.String(0), args.Error(1)
}

func (m *mockWriter) GetRecurring(ctx context.Context, id string) (model.RecurringBooking, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(model.RecurringBooking), args.Error(1)
}

func (m *mockWriter) UpdateExceptions(ctx context.Context, id string, exceptions []string) error {
	return m.Called(ctx, id, exceptions).Error(0)
}

func (m *mockWriter) DeleteBooking(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

func (m *mockWriter) DeleteRecurring(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

type mockNotifier struct {
	mock.Mock
}

func (m *mockNotifier) NotifyBooking(ctx context.Context, b model.Booking, roomName string) (*notify.Result, error) {
	args := m.Called(ctx, b, roomName)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*notify.Result), args.Error(1)
}

func (m *mockNotifier) NotifyRecurring(ctx context.Context, r model.RecurringBooking, roomName string) (*notify.Result, error) {
	args := m.Called(ctx, r, roomName)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*notify.Result), args.Error(1)
}
