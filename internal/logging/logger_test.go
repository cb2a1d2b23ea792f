package logging

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNew_TextFormatRespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	log := newWithWriter(&buf, "warn", "text")
	ctx := context.Background()

	log.Info(ctx, "hidden", "a", 1)
	log.Warn(ctx, "shown", "b", 2)

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "level=WARN")
	assert.Contains(t, out, "msg=shown")
	assert.Contains(t, out, "b=2")
}

func TestNew_JSONFormatWithAttributes(t *testing.T) {
	var buf bytes.Buffer
	log := newWithWriter(&buf, "debug", "json").With("component", "reminder")

	log.Debug(context.Background(), "sweep", "fired", 3)

	out := buf.String()
	assert.Contains(t, out, `"component":"reminder"`)
	assert.Contains(t, out, `"fired":3`)
	assert.Contains(t, out, `"level":"DEBUG"`)
}

func TestDiscard_DoesNotPanic(t *testing.T) {
	log := Discard()
	log.Error(context.TODO(), "nothing", "k", "v")
	log.With("x", 1).Info(context.TODO(), "nothing")
}
