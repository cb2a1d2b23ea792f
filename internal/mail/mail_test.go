package mail

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"todocal/internal/model"
)

func sampleReminder() Reminder {
	return Reminder{
		To:      "alice@example.com",
		Name:    "Alice",
		Title:   "Buy milk <2L>",
		DueDate: model.NewDate(2024, 6, 1),
		DueTime: model.TimeOfDay{Hour: 9},
		Minutes: 30,
	}
}

func TestRender(t *testing.T) {
	msg, err := Render(sampleReminder())
	require.NoError(t, err)

	assert.Equal(t, "[Todo Reminder] Buy milk <2L>", msg.Subject)
	assert.Contains(t, msg.Text, "Title: Buy milk <2L>")
	assert.Contains(t, msg.Text, "Date:  2024-06-01")
	assert.Contains(t, msg.Text, "Time:  09:00")
	assert.Contains(t, msg.Text, "in 30 minutes")

	// titles are user input and must be escaped in the HTML part
	assert.Contains(t, msg.HTML, "Buy milk &lt;2L&gt;")
	assert.NotContains(t, msg.HTML, "<2L>")
	assert.Contains(t, msg.HTML, "Hi Alice,")
}

func TestRender_NoOffsetNoName(t *testing.T) {
	r := sampleReminder()
	r.Minutes = 0
	r.Name = ""

	msg, err := Render(r)
	require.NoError(t, err)
	assert.Contains(t, msg.Text, "Hi there,")
	assert.Contains(t, msg.Text, "Your todo is coming up.")
}

func TestSMTPSender_BuildMessage(t *testing.T) {
	s := NewSMTPSender(SMTPConfig{Host: "smtp.example.com", Username: "noreply@example.com", Password: "pw"})
	assert.Equal(t, 587, s.cfg.Port)
	assert.Equal(t, "noreply@example.com", s.cfg.From)
	assert.Equal(t, 10*time.Second, s.cfg.Timeout)

	m, err := s.buildMessage(sampleReminder())
	require.NoError(t, err)

	var buf bytes.Buffer
	_, err = m.WriteTo(&buf)
	require.NoError(t, err)
	raw := buf.String()
	assert.Contains(t, raw, "To: <alice@example.com>")
	assert.Contains(t, raw, "From: <noreply@example.com>")
	assert.True(t, strings.Contains(raw, "text/html") && strings.Contains(raw, "text/plain"))
}

func TestSMTPSender_InvalidRecipient(t *testing.T) {
	s := NewSMTPSender(SMTPConfig{Host: "smtp.example.com", Username: "noreply@example.com"})
	r := sampleReminder()
	r.To = "not an address"

	err := s.SendReminder(context.Background(), r)
	assert.ErrorContains(t, err, "invalid recipient")
}
