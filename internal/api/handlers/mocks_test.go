package handlers_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"

	"github.com/stretchr/testify/mock"
	"github.com/zatekoja/mindcare-directory/internal/api/middleware"
	"github.com/zatekoja/mindcare-directory/internal/application/services"
	"github.com/zatekoja/mindcare-directory/internal/domain/entities"
	"github.com/zatekoja/mindcare-directory/internal/domain/repositories"
)

type MockBookingService struct {
	mock.Mock
}

func (m *MockBookingService) view(args mock.Arguments) (*services.BookingView, error) {
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*services.BookingView), args.Error(1)
}

func (m *MockBookingService) StartSession(ctx context.Context, userID, providerID string) (*services.BookingView, error) {
	return m.view(m.Called(ctx, userID, providerID))
}

func (m *MockBookingService) GetSession(ctx context.Context, userID, sessionID string) (*services.BookingView, error) {
	return m.view(m.Called(ctx, userID, sessionID))
}

func (m *MockBookingService) SelectLocation(ctx context.Context, userID, sessionID, locationID string) (*services.BookingView, error) {
	return m.view(m.Called(ctx, userID, sessionID, locationID))
}

func (m *MockBookingService) SelectDate(ctx context.Context, userID, sessionID string, date entities.CalendarDate) (*services.BookingView, error) {
	return m.view(m.Called(ctx, userID, sessionID, date))
}

func (m *MockBookingService) SetBand(ctx context.Context, userID, sessionID string, band entities.DayBand) (*services.BookingView, error) {
	return m.view(m.Called(ctx, userID, sessionID, band))
}

func (m *MockBookingService) ChooseSlot(ctx context.Context, userID, sessionID, slot string) (*services.BookingView, error) {
	return m.view(m.Called(ctx, userID, sessionID, slot))
}

func (m *MockBookingService) AdvanceMonth(ctx context.Context, userID, sessionID string, direction int) (*services.BookingView, error) {
	return m.view(m.Called(ctx, userID, sessionID, direction))
}

func (m *MockBookingService) Confirm(ctx context.Context, userID, sessionID string) (*entities.BookingRecord, error) {
	args := m.Called(ctx, userID, sessionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.BookingRecord), args.Error(1)
}

func (m *MockBookingService) Discard(ctx context.Context, userID, sessionID string) error {
	return m.Called(ctx, userID, sessionID).Error(0)
}

func (m *MockBookingService) ListBookings(ctx context.Context, userID string, filter repositories.BookingFilter) ([]*entities.BookingRecord, error) {
	args := m.Called(ctx, userID, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*entities.BookingRecord), args.Error(1)
}

type MockContactService struct {
	mock.Mock
}

func (m *MockContactService) view(args mock.Arguments) (*services.ContactFlowView, error) {
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*services.ContactFlowView), args.Error(1)
}

func (m *MockContactService) QuotaStatus(ctx context.Context, userID string) (entities.ContactQuotaState, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).(entities.ContactQuotaState), args.Error(1)
}

func (m *MockContactService) ListDependents(ctx context.Context, userID string) ([]entities.DependentPatient, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]entities.DependentPatient), args.Error(1)
}

func (m *MockContactService) StartRequest(ctx context.Context, userID, providerID string) (*services.ContactFlowView, error) {
	return m.view(m.Called(ctx, userID, providerID))
}

func (m *MockContactService) GetRequest(ctx context.Context, userID, flowID string) (*services.ContactFlowView, error) {
	return m.view(m.Called(ctx, userID, flowID))
}

func (m *MockContactService) SelectPatient(ctx context.Context, userID, flowID string, requesterIsPatient bool, dependentID string) (*services.ContactFlowView, error) {
	return m.view(m.Called(ctx, userID, flowID, requesterIsPatient, dependentID))
}

func (m *MockContactService) SubmitDetails(ctx context.Context, userID, flowID, reason, urgency, notes string) (*services.ContactFlowView, error) {
	return m.view(m.Called(ctx, userID, flowID, reason, urgency, notes))
}

func (m *MockContactService) Reveal(ctx context.Context, userID, flowID string) (*entities.ContactDetails, error) {
	args := m.Called(ctx, userID, flowID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.ContactDetails), args.Error(1)
}

func (m *MockContactService) Discard(ctx context.Context, userID, flowID string) error {
	return m.Called(ctx, userID, flowID).Error(0)
}

func (m *MockContactService) ListRequests(ctx context.Context, userID string, limit int) ([]*entities.ContactRecord, error) {
	args := m.Called(ctx, userID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*entities.ContactRecord), args.Error(1)
}

func (m *MockContactService) ResetQuota(ctx context.Context, userID string) (entities.ContactQuotaState, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).(entities.ContactQuotaState), args.Error(1)
}

type MockAvailabilityService struct {
	mock.Mock
}

func (m *MockAvailabilityService) MonthSummary(ctx context.Context, providerID, locationID string, month entities.YearMonth) (*services.MonthSummary, error) {
	args := m.Called(ctx, providerID, locationID, month)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*services.MonthSummary), args.Error(1)
}

// newRequest builds a request as the router would hand it over: path values
// set and, when userID is non-empty, the caller identified
func newRequest(method, target, body, userID string, pathValues map[string]string) *http.Request {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	for k, v := range pathValues {
		req.SetPathValue(k, v)
	}
	if userID != "" {
		req = req.WithContext(middleware.WithUserID(req.Context(), userID))
	}
	return req
}
