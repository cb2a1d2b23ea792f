package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"todocal/internal/cache"
	apperrors "todocal/internal/errors"
	"todocal/internal/model"
	"todocal/internal/repository"
)

const (
	// DefaultNotifyMinutes applies when a reminder is enabled without an offset.
	DefaultNotifyMinutes = 30

	calendarCacheTTL = 5 * time.Minute
)

// TitleCodec encrypts titles for storage and decrypts them for display.
type TitleCodec interface {
	EncryptTitle(ctx context.Context, plaintext string) (string, error)
	DecryptTitle(ctx context.Context, stored string) string
}

// TodoService implements the owner-scoped todo operations.
type TodoService interface {
	List(ctx context.Context, userID uint, dueDate *model.Date) ([]model.Todo, error)
	Calendar(ctx context.Context, userID uint, year, month int) ([]model.CalendarDay, error)
	Create(ctx context.Context, userID uint, req model.NewTodo) (*model.Todo, error)
	Update(ctx context.Context, userID, id uint, patch model.TodoPatch) (*model.Todo, error)
	Delete(ctx context.Context, userID, id uint) error
}

type todoService struct {
	todoRepo repository.TodoRepository
	codec    TitleCodec
	cache    *cache.Client
	loc      *time.Location
	now      func() time.Time
}

// NewTodoService creates a todo service. "Today" is evaluated in loc.
func NewTodoService(todoRepo repository.TodoRepository, codec TitleCodec, cache *cache.Client, loc *time.Location) TodoService {
	if loc == nil {
		loc = time.UTC
	}
	return &todoService{
		todoRepo: todoRepo,
		codec:    codec,
		cache:    cache,
		loc:      loc,
		now:      time.Now,
	}
}

// List returns the user's todos, newest first, with titles decrypted.
func (s *todoService) List(ctx context.Context, userID uint, dueDate *model.Date) ([]model.Todo, error) {
	todos, err := s.todoRepo.ListByUser(ctx, userID, dueDate)
	if err != nil {
		return nil, fmt.Errorf("list todos: %w", err)
	}
	for i := range todos {
		todos[i].Title = s.codec.DecryptTitle(ctx, todos[i].Title)
	}
	return todos, nil
}

// Calendar returns per-day counts for one month of the user's todos.
func (s *todoService) Calendar(ctx context.Context, userID uint, year, month int) ([]model.CalendarDay, error) {
	if year < 1 || year > 9999 {
		return nil, apperrors.Invalid("year must be between 1 and 9999")
	}
	if month < 1 || month > 12 {
		return nil, apperrors.Invalid("month must be between 1 and 12")
	}

	key := calendarCacheKey(userID, year, time.Month(month))
	if data, _ := s.cache.Get(ctx, key); data != nil {
		var days []model.CalendarDay
		if err := json.Unmarshal(data, &days); err == nil {
			return days, nil
		}
	}

	days, err := s.todoRepo.CalendarSummary(ctx, userID, year, time.Month(month))
	if err != nil {
		return nil, fmt.Errorf("calendar summary: %w", err)
	}
	if data, err := json.Marshal(days); err == nil {
		_ = s.cache.Set(ctx, key, data, calendarCacheTTL)
	}
	return days, nil
}

// Create validates and stores a new todo. The title is encrypted before it is written.
func (s *todoService) Create(ctx context.Context, userID uint, req model.NewTodo) (*model.Todo, error) {
	title := strings.TrimSpace(req.Title)
	if title == "" {
		return nil, apperrors.ErrTitleRequired
	}
	if req.NotifyMinutes != nil && *req.NotifyMinutes < 0 {
		return nil, apperrors.ErrInvalidNotifyMinutes
	}

	dueDate := model.DateOf(s.now().In(s.loc))
	if req.DueDate != nil {
		dueDate = *req.DueDate
	}

	var notifyMinutes *int
	if req.NotifyEmail {
		minutes := DefaultNotifyMinutes
		if req.NotifyMinutes != nil {
			minutes = *req.NotifyMinutes
		}
		notifyMinutes = &minutes
	}

	ciphertext, err := s.codec.EncryptTitle(ctx, title)
	if err != nil {
		return nil, err
	}

	todo := &model.Todo{
		UserID:        userID,
		Title:         ciphertext,
		DueDate:       dueDate,
		DueTime:       req.DueTime,
		ImageURL:      req.ImageURL,
		NotifyEmail:   req.NotifyEmail,
		NotifyMinutes: notifyMinutes,
	}
	if err := s.todoRepo.Create(ctx, todo); err != nil {
		return nil, fmt.Errorf("create todo: %w", err)
	}

	s.invalidateCalendar(ctx, userID, dueDate)
	todo.Title = title
	return todo, nil
}

// Update applies a partial update to a todo owned by userID.
func (s *todoService) Update(ctx context.Context, userID, id uint, patch model.TodoPatch) (*model.Todo, error) {
	existing, err := s.findOwned(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	if patch.IsEmpty() {
		return nil, apperrors.ErrNoFieldsToUpdate
	}

	fields, err := s.buildUpdate(ctx, existing, patch)
	if err != nil {
		return nil, err
	}
	if err := s.todoRepo.UpdateFields(ctx, userID, id, fields); err != nil {
		return nil, fmt.Errorf("update todo: %w", err)
	}

	updated, err := s.findOwned(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	s.invalidateCalendar(ctx, userID, existing.DueDate, updated.DueDate)
	updated.Title = s.codec.DecryptTitle(ctx, updated.Title)
	return updated, nil
}

// Delete hard-deletes a todo owned by userID.
func (s *todoService) Delete(ctx context.Context, userID, id uint) error {
	existing, err := s.findOwned(ctx, userID, id)
	if err != nil {
		return err
	}
	deleted, err := s.todoRepo.DeleteByIDAndUser(ctx, userID, id)
	if err != nil {
		return fmt.Errorf("delete todo: %w", err)
	}
	if !deleted {
		return apperrors.ErrTodoNotFound
	}
	s.invalidateCalendar(ctx, userID, existing.DueDate)
	return nil
}

// buildUpdate turns a patch into column assignments. Null clears optional columns
// and is rejected for required ones. notify_minutes is NULL exactly when notify_email is false.
func (s *todoService) buildUpdate(ctx context.Context, existing *model.Todo, patch model.TodoPatch) (map[string]any, error) {
	fields := make(map[string]any)

	if patch.Title.Set {
		title := strings.TrimSpace(patch.Title.Value)
		if patch.Title.Null || title == "" {
			return nil, apperrors.ErrTitleRequired
		}
		ciphertext, err := s.codec.EncryptTitle(ctx, title)
		if err != nil {
			return nil, err
		}
		fields["title"] = ciphertext
	}

	if patch.Completed.Set {
		if patch.Completed.Null {
			return nil, apperrors.Invalid("completed must not be null")
		}
		fields["completed"] = patch.Completed.Value
	}

	if patch.DueDate.Set {
		if patch.DueDate.Null {
			return nil, apperrors.Invalid("due_date must not be null")
		}
		fields["due_date"] = patch.DueDate.Value
	}

	if patch.DueTime.Set {
		if patch.DueTime.Null {
			fields["due_time"] = nil
		} else {
			fields["due_time"] = patch.DueTime.Value
		}
	}

	if patch.ImageURL.Set {
		if patch.ImageURL.Null {
			fields["image_url"] = nil
		} else {
			fields["image_url"] = patch.ImageURL.Value
		}
	}

	notifyEmail := existing.NotifyEmail
	if patch.NotifyEmail.Set {
		if patch.NotifyEmail.Null {
			return nil, apperrors.Invalid("notify_email must not be null")
		}
		notifyEmail = patch.NotifyEmail.Value
		fields["notify_email"] = notifyEmail
	}

	if patch.NotifyMinutes.HasValue() && patch.NotifyMinutes.Value < 0 {
		return nil, apperrors.ErrInvalidNotifyMinutes
	}

	switch {
	case !notifyEmail:
		if patch.NotifyEmail.Set || patch.NotifyMinutes.Set {
			fields["notify_minutes"] = nil
		}
	case patch.NotifyMinutes.HasValue():
		fields["notify_minutes"] = patch.NotifyMinutes.Value
	case patch.NotifyMinutes.Null:
		// reminders stay on, so null falls back to the default offset as on create
		fields["notify_minutes"] = DefaultNotifyMinutes
	case patch.NotifyEmail.Set && existing.NotifyMinutes == nil:
		fields["notify_minutes"] = DefaultNotifyMinutes
	}

	return fields, nil
}

func (s *todoService) findOwned(ctx context.Context, userID, id uint) (*model.Todo, error) {
	todo, err := s.todoRepo.FindByIDAndUser(ctx, userID, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrTodoNotFound
		}
		return nil, fmt.Errorf("find todo: %w", err)
	}
	return todo, nil
}

func (s *todoService) invalidateCalendar(ctx context.Context, userID uint, dates ...model.Date) {
	keys := make([]string, 0, len(dates))
	seen := make(map[string]struct{}, len(dates))
	for _, d := range dates {
		key := calendarCacheKey(userID, d.Year, d.Month)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		keys = append(keys, key)
	}
	_ = s.cache.Delete(ctx, keys...)
}

func calendarCacheKey(userID uint, year int, month time.Month) string {
	return fmt.Sprintf("calendar:%d:%04d-%02d", userID, year, int(month))
}
