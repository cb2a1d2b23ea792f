package handler

import (
	"context"
	stderrors "errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"todocal/internal/auth"
	"todocal/internal/errors"
	"todocal/internal/model"
	"todocal/internal/service"
)

type MockAuthService struct {
	mock.Mock
}

func (m *MockAuthService) Register(ctx context.Context, email, password, name string) (string, *model.UserSummary, error) {
	args := m.Called(ctx, email, password, name)
	user, _ := args.Get(1).(*model.UserSummary)
	return args.String(0), user, args.Error(2)
}

func (m *MockAuthService) Login(ctx context.Context, email, password string) (string, *model.UserSummary, error) {
	args := m.Called(ctx, email, password)
	user, _ := args.Get(1).(*model.UserSummary)
	return args.String(0), user, args.Error(2)
}

func (m *MockAuthService) Me(ctx context.Context, userID uint) (*model.UserSummary, error) {
	args := m.Called(ctx, userID)
	user, _ := args.Get(0).(*model.UserSummary)
	return user, args.Error(1)
}

func (m *MockAuthService) Logout(ctx context.Context, claims *auth.Claims) error {
	return m.Called(ctx, claims).Error(0)
}

type MockTodoService struct {
	mock.Mock
}

func (m *MockTodoService) List(ctx context.Context, userID uint, dueDate *model.Date) ([]model.Todo, error) {
	args := m.Called(ctx, userID, dueDate)
	todos, _ := args.Get(0).([]model.Todo)
	return todos, args.Error(1)
}

func (m *MockTodoService) Calendar(ctx context.Context, userID uint, year, month int) ([]model.CalendarDay, error) {
	args := m.Called(ctx, userID, year, month)
	days, _ := args.Get(0).([]model.CalendarDay)
	return days, args.Error(1)
}

func (m *MockTodoService) Create(ctx context.Context, userID uint, req model.NewTodo) (*model.Todo, error) {
	args := m.Called(ctx, userID, req)
	todo, _ := args.Get(0).(*model.Todo)
	return todo, args.Error(1)
}

func (m *MockTodoService) Update(ctx context.Context, userID, id uint, patch model.TodoPatch) (*model.Todo, error) {
	args := m.Called(ctx, userID, id, patch)
	todo, _ := args.Get(0).(*model.Todo)
	return todo, args.Error(1)
}

func (m *MockTodoService) Delete(ctx context.Context, userID, id uint) error {
	return m.Called(ctx, userID, id).Error(0)
}

type MockAttachmentService struct {
	mock.Mock
}

func (m *MockAttachmentService) IssueUploadURL(ctx context.Context, filename, contentType string) (*service.UploadURL, error) {
	args := m.Called(ctx, filename, contentType)
	out, _ := args.Get(0).(*service.UploadURL)
	return out, args.Error(1)
}

func (m *MockAttachmentService) UploadDirect(ctx context.Context, filename, contentType string, body []byte) (string, error) {
	args := m.Called(ctx, filename, contentType, body)
	return args.String(0), args.Error(1)
}

func newContext(method, target, body string, claims *auth.Claims) (echo.Context, *httptest.ResponseRecorder) {
	e := echo.New()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	if claims != nil {
		c.Set(ClaimsContextKey, claims)
	}
	return c, rec
}

// httpError unwraps the *echo.HTTPError a handler returned.
func httpError(t *testing.T, err error) (*echo.HTTPError, errors.ErrorResponse) {
	t.Helper()
	var he *echo.HTTPError
	require.True(t, stderrors.As(err, &he), "expected *echo.HTTPError, got %v", err)
	body, ok := he.Message.(errors.ErrorResponse)
	require.True(t, ok)
	return he, body
}

var alice = &auth.Claims{UserID: 7, Email: "alice@example.com", Name: "Alice"}

func TestAuthHandler_Me(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		svc := new(MockAuthService)
		svc.On("Me", mock.Anything, uint(7)).Return(&model.UserSummary{ID: 7, Email: "alice@example.com", Name: "Alice"}, nil)

		c, rec := newContext(http.MethodGet, "/api/auth/me", "", alice)
		require.NoError(t, NewAuthHandler(svc).Me(c))
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `{"user":{"id":7,"email":"alice@example.com","name":"Alice"}}`, rec.Body.String())
	})

	t.Run("user deleted", func(t *testing.T) {
		svc := new(MockAuthService)
		svc.On("Me", mock.Anything, uint(7)).Return(nil, errors.ErrUserNotFound)

		c, _ := newContext(http.MethodGet, "/api/auth/me", "", alice)
		he, body := httpError(t, NewAuthHandler(svc).Me(c))
		assert.Equal(t, http.StatusNotFound, he.Code)
		assert.Equal(t, "NOT_FOUND", body.Code)
		assert.ErrorIs(t, he.Internal, errors.ErrUserNotFound)
	})

	t.Run("no claims", func(t *testing.T) {
		c, _ := newContext(http.MethodGet, "/api/auth/me", "", nil)
		he, _ := httpError(t, NewAuthHandler(new(MockAuthService)).Me(c))
		assert.Equal(t, http.StatusUnauthorized, he.Code)
	})
}

func TestAuthHandler_RegisterMalformedBody(t *testing.T) {
	c, _ := newContext(http.MethodPost, "/api/auth/register", `{"email":`, nil)
	he, body := httpError(t, NewAuthHandler(new(MockAuthService)).Register(c))
	assert.Equal(t, http.StatusBadRequest, he.Code)
	assert.Equal(t, "INVALID_ARGUMENT", body.Code)
}

func TestAuthHandler_Logout(t *testing.T) {
	svc := new(MockAuthService)
	svc.On("Logout", mock.Anything, alice).Return(nil)

	c, rec := newContext(http.MethodPost, "/api/auth/logout", "", alice)
	require.NoError(t, NewAuthHandler(svc).Logout(c))
	assert.Equal(t, http.StatusNoContent, rec.Code)
	svc.AssertExpectations(t)
}

func TestTodoHandler_List(t *testing.T) {
	day := model.NewDate(2024, 6, 1)
	svc := new(MockTodoService)
	svc.On("List", mock.Anything, uint(7), &day).Return([]model.Todo{{ID: 1, Title: "Buy milk", DueDate: day}}, nil)

	c, rec := newContext(http.MethodGet, "/api/todos?date=2024-06-01", "", alice)
	require.NoError(t, NewTodoHandler(svc).List(c))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"title":"Buy milk"`)
	svc.AssertExpectations(t)
}

func TestTodoHandler_Calendar(t *testing.T) {
	tests := []struct {
		name       string
		query      string
		setup      func(*MockTodoService)
		wantStatus int
	}{
		{
			name:  "success",
			query: "?year=2024&month=6",
			setup: func(m *MockTodoService) {
				m.On("Calendar", mock.Anything, uint(7), 2024, 6).
					Return([]model.CalendarDay{{DueDate: model.NewDate(2024, 6, 1), Count: 2, CompletedCount: 1}}, nil)
			},
			wantStatus: http.StatusOK,
		},
		{name: "missing year", query: "?month=6", wantStatus: http.StatusBadRequest},
		{name: "non-numeric month", query: "?year=2024&month=june", wantStatus: http.StatusBadRequest},
		{
			name:  "month out of range",
			query: "?year=2024&month=13",
			setup: func(m *MockTodoService) {
				m.On("Calendar", mock.Anything, uint(7), 2024, 13).Return(nil, errors.Invalid("month must be between 1 and 12"))
			},
			wantStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(MockTodoService)
			if tt.setup != nil {
				tt.setup(svc)
			}
			c, rec := newContext(http.MethodGet, "/api/todos/calendar"+tt.query, "", alice)
			err := NewTodoHandler(svc).Calendar(c)
			if tt.wantStatus == http.StatusOK {
				require.NoError(t, err)
				assert.Equal(t, http.StatusOK, rec.Code)
				assert.JSONEq(t, `[{"due_date":"2024-06-01","count":2,"completed_count":1}]`, rec.Body.String())
			} else {
				he, _ := httpError(t, err)
				assert.Equal(t, tt.wantStatus, he.Code)
			}
			svc.AssertExpectations(t)
		})
	}
}

func TestTodoHandler_Create(t *testing.T) {
	svc := new(MockTodoService)
	minutes := 15
	svc.On("Create", mock.Anything, uint(7), mock.MatchedBy(func(req model.NewTodo) bool {
		return req.Title == "Dentist" &&
			req.DueDate != nil && *req.DueDate == model.NewDate(2024, 6, 3) &&
			req.DueTime != nil && req.DueTime.String() == "14:00" &&
			req.NotifyEmail && req.NotifyMinutes != nil && *req.NotifyMinutes == 15
	})).Return(&model.Todo{ID: 3, Title: "Dentist", NotifyEmail: true, NotifyMinutes: &minutes}, nil)

	body := `{"title":"Dentist","due_date":"2024-06-03","due_time":"14:00","notify_email":true,"notify_minutes":15}`
	c, rec := newContext(http.MethodPost, "/api/todos", body, alice)
	require.NoError(t, NewTodoHandler(svc).Create(c))
	assert.Equal(t, http.StatusCreated, rec.Code)
	svc.AssertExpectations(t)
}

func TestTodoHandler_UpdatePassesTriStatePatch(t *testing.T) {
	svc := new(MockTodoService)
	svc.On("Update", mock.Anything, uint(7), uint(3), mock.MatchedBy(func(p model.TodoPatch) bool {
		return p.ImageURL.Set && p.ImageURL.Null && !p.Title.Set && p.Completed.HasValue()
	})).Return(&model.Todo{ID: 3, Completed: true}, nil)

	c, rec := newContext(http.MethodPatch, "/api/todos/3", `{"image_url":null,"completed":true}`, alice)
	c.SetParamNames("id")
	c.SetParamValues("3")
	require.NoError(t, NewTodoHandler(svc).Update(c))
	assert.Equal(t, http.StatusOK, rec.Code)
	svc.AssertExpectations(t)
}

func TestTodoHandler_Delete(t *testing.T) {
	svc := new(MockTodoService)
	svc.On("Delete", mock.Anything, uint(7), uint(9)).Return(errors.ErrTodoNotFound)

	c, _ := newContext(http.MethodDelete, "/api/todos/9", "", alice)
	c.SetParamNames("id")
	c.SetParamValues("9")
	he, body := httpError(t, NewTodoHandler(svc).Delete(c))
	assert.Equal(t, http.StatusNotFound, he.Code)
	assert.Equal(t, "todo not found", body.Error)

	c, _ = newContext(http.MethodDelete, "/api/todos/0", "", alice)
	c.SetParamNames("id")
	c.SetParamValues("0")
	he, _ = httpError(t, NewTodoHandler(svc).Delete(c))
	assert.Equal(t, http.StatusBadRequest, he.Code)
}

func TestUploadHandler_UploadURL(t *testing.T) {
	svc := new(MockAttachmentService)
	svc.On("IssueUploadURL", mock.Anything, "cat.png", "image/png").
		Return(&service.UploadURL{UploadURL: "https://put", ImageURL: "https://get"}, nil)
	svc.On("IssueUploadURL", mock.Anything, "dog.png", "image/png").
		Return(nil, errors.Upstream("presign", stderrors.New("no credentials")))

	c, rec := newContext(http.MethodGet, "/api/upload-url?filename=cat.png&contentType=image/png", "", nil)
	require.NoError(t, NewUploadHandler(svc, 1024).UploadURL(c))
	assert.JSONEq(t, `{"uploadUrl":"https://put","imageUrl":"https://get"}`, rec.Body.String())

	c, _ = newContext(http.MethodGet, "/api/upload-url?filename=dog.png&contentType=image/png", "", nil)
	he, body := httpError(t, NewUploadHandler(svc, 1024).UploadURL(c))
	assert.Equal(t, http.StatusInternalServerError, he.Code)
	assert.Equal(t, "UPSTREAM_ERROR", body.Code)
	assert.NotContains(t, body.Error, "credentials")
}

func TestHealth(t *testing.T) {
	c, rec := newContext(http.MethodGet, "/api/health", "", nil)
	require.NoError(t, Health(c))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"ok"`)
}

func TestTodoHandler_CreateRejectsMalformedBody(t *testing.T) {
	svc := new(MockTodoService)

	for _, body := range []string{`{"title":`, `{"title":"x","due_date":"June 1"}`, `{"title":"x","due_time":"25:00"}`} {
		c, _ := newContext(http.MethodPost, "/api/todos", body, alice)
		he, resp := httpError(t, NewTodoHandler(svc).Create(c))
		assert.Equal(t, http.StatusBadRequest, he.Code, body)
		assert.Equal(t, "invalid request body", resp.Error)
	}
	svc.AssertNotCalled(t, "Create", mock.Anything, mock.Anything, mock.Anything)
}

func TestTodoHandler_UpdateRejectsMalformedPatch(t *testing.T) {
	svc := new(MockTodoService)

	c, _ := newContext(http.MethodPatch, "/api/todos/3", `{"due_date":"tomorrow"}`, alice)
	c.SetParamNames("id")
	c.SetParamValues("3")
	he, _ := httpError(t, NewTodoHandler(svc).Update(c))
	assert.Equal(t, http.StatusBadRequest, he.Code)
	svc.AssertNotCalled(t, "Update", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}
