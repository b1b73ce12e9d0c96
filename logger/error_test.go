//nolint:err113 // Test file uses errors.New() for creating test errors
package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAnnotateError_NilError(t *testing.T) {
	t.Parallel()

	assert.NoError(t, AnnotateError(nil, "key", "value"))
}

func TestAnnotateError_PreservesChain(t *testing.T) {
	t.Parallel()

	base := errors.New("version conflict")
	annotated := AnnotateError(base, "lifecycle_id", "abc", "event", "REFINE")

	assert.Equal(t, "version conflict", annotated.Error())
	require.ErrorIs(t, annotated, base)
	require.ErrorIs(t, fmt.Errorf("dispatch: %w", annotated), base)

	attrs := ErrorAttrs(annotated)
	require.Len(t, attrs, 2)
	assert.Equal(t, "lifecycle_id", attrs[0].Key)
	assert.Equal(t, "abc", attrs[0].Value.String())
	assert.Equal(t, "event", attrs[1].Key)
}

func TestErrorAttrs_Nested(t *testing.T) {
	t.Parallel()

	inner := AnnotateError(errors.New("boom"), "inner", 1)
	outer := AnnotateError(fmt.Errorf("wrap: %w", inner), "outer", 2)

	attrs := ErrorAttrs(outer)
	require.Len(t, attrs, 2)
	assert.Equal(t, "outer", attrs[0].Key)
	assert.Equal(t, "inner", attrs[1].Key)

	assert.Empty(t, ErrorAttrs(errors.New("plain")))
	assert.Empty(t, ErrorAttrs(nil))
}

func decodeLine(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()

	var out map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &out))

	return out
}

func TestAnnotatedErrorHandler_LiftsAttributes(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer

	handler := &annotatedErrorHandler{inner: slog.NewJSONHandler(&buf, nil)}

	record := slog.NewRecord(time.Now(), slog.LevelError, "dispatch failed", 0)
	record.AddAttrs(slog.Any("error", AnnotateError(errors.New("boom"), "lifecycle_id", "abc")))

	require.NoError(t, handler.Handle(context.Background(), record))

	line := decodeLine(t, &buf)
	assert.Equal(t, "dispatch failed", line["msg"])
	assert.Equal(t, "boom", line["error"])
	assert.Equal(t, "abc", line["lifecycle_id"])
}

func TestAnnotatedErrorHandler_KeepsPlainErrors(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer

	handler := &annotatedErrorHandler{inner: slog.NewJSONHandler(&buf, nil)}

	record := slog.NewRecord(time.Now(), slog.LevelError, "failed", 0)
	record.AddAttrs(slog.Any("error", errors.New("plain error")), slog.String("kind", "entity-lifecycle"))

	require.NoError(t, handler.Handle(context.Background(), record))

	line := decodeLine(t, &buf)
	assert.Equal(t, "plain error", line["error"])
	assert.Equal(t, "entity-lifecycle", line["kind"])
}

func TestAnnotatedErrorHandler_WithAttrsAndGroup(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer

	var handler slog.Handler = &annotatedErrorHandler{inner: slog.NewJSONHandler(&buf, nil)}

	handler = handler.WithAttrs([]slog.Attr{slog.String("subsystem", "test")})
	_, ok := handler.(*annotatedErrorHandler)
	require.True(t, ok)

	handler = handler.WithGroup("g")
	_, ok = handler.(*annotatedErrorHandler)
	require.True(t, ok)

	slog.New(handler).Error("x", "error", AnnotateError(errors.New("boom"), "id", "1"))

	line := decodeLine(t, &buf)
	assert.Equal(t, "test", line["subsystem"])

	group, ok := line["g"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "1", group["id"])
}
