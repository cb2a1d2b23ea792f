package model

import "time"

// Todo is a dated task owned by exactly one user.
// Title holds KMS ciphertext at rest; services swap in the plaintext before returning it.
type Todo struct {
	ID            uint       `json:"id" gorm:"primaryKey"`
	UserID        uint       `json:"user_id" gorm:"not null;index:idx_todos_user_due,priority:1"`
	Title         string     `json:"title" gorm:"type:text;not null"`
	Completed     bool       `json:"completed" gorm:"not null;default:false"`
	DueDate       Date       `json:"due_date" gorm:"type:date;not null;index:idx_todos_user_due,priority:2;index:idx_todos_reminder,priority:3"`
	DueTime       *TimeOfDay `json:"due_time" gorm:"type:time"`
	ImageURL      *string    `json:"image_url" gorm:"size:512"`
	NotifyEmail   bool       `json:"notify_email" gorm:"not null;default:false;index:idx_todos_reminder,priority:1"`
	NotifyMinutes *int       `json:"notify_minutes"`
	Notified      bool       `json:"notified" gorm:"not null;default:false;index:idx_todos_reminder,priority:2"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// HasReminder reports whether the todo is configured for an email reminder.
func (t *Todo) HasReminder() bool {
	return t.NotifyEmail && t.DueTime != nil
}

// TodoPatch is a partial update. Only fields present in the request body are applied.
type TodoPatch struct {
	Title         Field[string]    `json:"title"`
	Completed     Field[bool]      `json:"completed"`
	DueDate       Field[Date]      `json:"due_date"`
	DueTime       Field[TimeOfDay] `json:"due_time"`
	ImageURL      Field[string]    `json:"image_url"`
	NotifyEmail   Field[bool]      `json:"notify_email"`
	NotifyMinutes Field[int]       `json:"notify_minutes"`
}

// IsEmpty reports whether no field was provided.
func (p *TodoPatch) IsEmpty() bool {
	return !p.Title.Set && !p.Completed.Set && !p.DueDate.Set && !p.DueTime.Set &&
		!p.ImageURL.Set && !p.NotifyEmail.Set && !p.NotifyMinutes.Set
}

// NewTodo carries the inputs for creating a todo. Nil pointers mean "not provided".
type NewTodo struct {
	Title         string
	DueDate       *Date
	DueTime       *TimeOfDay
	ImageURL      *string
	NotifyEmail   bool
	NotifyMinutes *int
}

// CalendarDay aggregates the todos due on one date.
type CalendarDay struct {
	DueDate        Date  `json:"due_date"`
	Count          int64 `json:"count"`
	CompletedCount int64 `json:"completed_count"`
}

// ReminderCandidate is a pending reminder joined with its owner's address.
type ReminderCandidate struct {
	ID            uint
	UserID        uint
	Title         string
	DueDate       Date
	DueTime       TimeOfDay
	NotifyMinutes *int
	Email         string
	Name          string
}

// Offset returns how long before the due time the reminder should go out.
func (c ReminderCandidate) Offset() time.Duration {
	if c.NotifyMinutes == nil || *c.NotifyMinutes < 0 {
		return 0
	}
	return time.Duration(*c.NotifyMinutes) * time.Minute
}

// RemindAt returns the instant the reminder is due in loc.
func (c ReminderCandidate) RemindAt(loc *time.Location) time.Time {
	return c.DueTime.On(c.DueDate, loc).Add(-c.Offset())
}
