package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"todocal/internal/model"
)

// TodoRepository defines todo persistence operations.
// Every user-facing lookup is scoped by owner so foreign rows are indistinguishable from missing ones.
type TodoRepository interface {
	Create(ctx context.Context, todo *model.Todo) error
	FindByIDAndUser(ctx context.Context, userID, id uint) (*model.Todo, error)
	ListByUser(ctx context.Context, userID uint, dueDate *model.Date) ([]model.Todo, error)
	CalendarSummary(ctx context.Context, userID uint, year int, month time.Month) ([]model.CalendarDay, error)
	UpdateFields(ctx context.Context, userID, id uint, fields map[string]any) error
	DeleteByIDAndUser(ctx context.Context, userID, id uint) (bool, error)
	ListReminderCandidates(ctx context.Context, from, to model.Date) ([]model.ReminderCandidate, error)
	MarkNotified(ctx context.Context, id uint) (bool, error)
}

type todoRepository struct {
	db *gorm.DB
}

// NewTodoRepository creates a new todo repository.
func NewTodoRepository(db *gorm.DB) TodoRepository {
	return &todoRepository{db: db}
}

// Create inserts a todo and fills in its generated ID and timestamps.
func (r *todoRepository) Create(ctx context.Context, todo *model.Todo) error {
	return r.db.WithContext(ctx).Create(todo).Error
}

// FindByIDAndUser returns gorm.ErrRecordNotFound unless the todo exists and belongs to userID.
func (r *todoRepository) FindByIDAndUser(ctx context.Context, userID, id uint) (*model.Todo, error) {
	var todo model.Todo
	if err := r.db.WithContext(ctx).Where("id = ? AND user_id = ?", id, userID).First(&todo).Error; err != nil {
		return nil, err
	}
	return &todo, nil
}

// ListByUser returns the user's todos, newest first, optionally restricted to one due date.
func (r *todoRepository) ListByUser(ctx context.Context, userID uint, dueDate *model.Date) ([]model.Todo, error) {
	q := r.db.WithContext(ctx).Where("user_id = ?", userID)
	if dueDate != nil {
		q = q.Where("due_date = ?", *dueDate)
	}
	todos := make([]model.Todo, 0)
	if err := q.Order("created_at DESC").Order("id DESC").Find(&todos).Error; err != nil {
		return nil, err
	}
	return todos, nil
}

// CalendarSummary counts the user's todos per due date within one month, ordered by date.
func (r *todoRepository) CalendarSummary(ctx context.Context, userID uint, year int, month time.Month) ([]model.CalendarDay, error) {
	first := model.FirstOfMonth(year, month)
	next := model.NewDate(year, month+1, 1)

	days := make([]model.CalendarDay, 0)
	err := r.db.WithContext(ctx).
		Model(&model.Todo{}).
		Select("due_date, COUNT(*) AS count, SUM(CASE WHEN completed THEN 1 ELSE 0 END) AS completed_count").
		Where("user_id = ? AND due_date >= ? AND due_date < ?", userID, first, next).
		Group("due_date").
		Order("due_date").
		Scan(&days).Error
	if err != nil {
		return nil, err
	}
	return days, nil
}

// UpdateFields applies column updates to a todo owned by userID. A nil value clears the column.
func (r *todoRepository) UpdateFields(ctx context.Context, userID, id uint, fields map[string]any) error {
	if len(fields) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).
		Model(&model.Todo{}).
		Where("id = ? AND user_id = ?", id, userID).
		Updates(fields).Error
}

// DeleteByIDAndUser hard-deletes a todo and reports whether a row was removed.
func (r *todoRepository) DeleteByIDAndUser(ctx context.Context, userID, id uint) (bool, error) {
	res := r.db.WithContext(ctx).Where("id = ? AND user_id = ?", id, userID).Delete(&model.Todo{})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// ListReminderCandidates returns pending reminders due between from and to inclusive, joined with their owner.
func (r *todoRepository) ListReminderCandidates(ctx context.Context, from, to model.Date) ([]model.ReminderCandidate, error) {
	candidates := make([]model.ReminderCandidate, 0)
	err := r.db.WithContext(ctx).
		Table("todos").
		Select("todos.id, todos.user_id, todos.title, todos.due_date, todos.due_time, todos.notify_minutes, users.email, users.name").
		Joins("JOIN users ON users.id = todos.user_id").
		Where("todos.notify_email = ? AND todos.notified = ?", true, false).
		Where("todos.due_time IS NOT NULL").
		Where("todos.due_date BETWEEN ? AND ?", from, to).
		Order("todos.due_date").Order("todos.due_time").Order("todos.id").
		Scan(&candidates).Error
	if err != nil {
		return nil, err
	}
	return candidates, nil
}

// MarkNotified flips notified to true once. It reports false when another writer already did.
func (r *todoRepository) MarkNotified(ctx context.Context, id uint) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&model.Todo{}).
		Where("id = ? AND notified = ?", id, false).
		Update("notified", true)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}
