package ctxlog

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"
)

func TestNewPretty(t *testing.T) {
	tests := []struct {
		name    string
		options *slog.HandlerOptions
		opts    []Option
	}{
		{
			name:    "with nil options",
			options: nil,
			opts:    []Option{},
		},
		{
			name: "with custom options",
			options: &slog.HandlerOptions{
				Level:     slog.LevelDebug,
				AddSource: true,
			},
			opts: []Option{},
		},
		{
			name:    "with functional options",
			options: &slog.HandlerOptions{},
			opts: []Option{
				WithColor(),
				WithOutputEmptyAttrs(),
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := NewPretty(tt.options, tt.opts...)
			if handler == nil {
				t.Fatal("NewPretty() returned nil")
			}
			if handler.h == nil {
				t.Error("NewPretty() created handler with nil inner handler")
			}
			if handler.b == nil {
				t.Error("NewPretty() created handler with nil buffer")
			}
			if handler.m == nil {
				t.Error("NewPretty() created handler with nil mutex")
			}
		})
	}
}

func TestPrettyHandler_Enabled(t *testing.T) {
	tests := []struct {
		name    string
		level   slog.Level
		options *slog.HandlerOptions
		want    bool
	}{
		{name: "debug level with debug handler", level: slog.LevelDebug, options: &slog.HandlerOptions{Level: slog.LevelDebug}, want: true},
		{name: "debug level with info handler", level: slog.LevelDebug, options: &slog.HandlerOptions{Level: slog.LevelInfo}, want: false},
		{name: "info level with debug handler", level: slog.LevelInfo, options: &slog.HandlerOptions{Level: slog.LevelDebug}, want: true},
		{name: "error level with warn handler", level: slog.LevelError, options: &slog.HandlerOptions{Level: slog.LevelWarn}, want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := NewPretty(tt.options)
			got := handler.Enabled(context.Background(), tt.level)
			if got != tt.want {
				t.Errorf("PrettyHandler.Enabled() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestPrettyHandler_WithAttrs(t *testing.T) {
	handler := NewPretty(&slog.HandlerOptions{})
	attrs := []slog.Attr{
		slog.String("key1", "value1"),
		slog.Int("key2", 42),
	}

	newHandler := handler.WithAttrs(attrs)
	prettyHandler, ok := newHandler.(*PrettyHandler)
	if !ok {
		t.Fatal("WithAttrs() did not return *PrettyHandler")
	}

	if prettyHandler.b != handler.b {
		t.Error("WithAttrs() should share the same buffer")
	}
	if prettyHandler.m != handler.m {
		t.Error("WithAttrs() should share the same mutex")
	}
}

func TestPrettyHandler_WithGroup(t *testing.T) {
	handler := NewPretty(&slog.HandlerOptions{})

	newHandler := handler.WithGroup("test_group")
	prettyHandler, ok := newHandler.(*PrettyHandler)
	if !ok {
		t.Fatal("WithGroup() did not return *PrettyHandler")
	}

	if prettyHandler.b != handler.b {
		t.Error("WithGroup() should share the same buffer")
	}
	if prettyHandler.m != handler.m {
		t.Error("WithGroup() should share the same mutex")
	}
}

func TestPrettyHandler_Handle(t *testing.T) {
	tests := []struct {
		name           string
		level          slog.Level
		message        string
		attrs          []any
		options        []Option
		expectInOutput []string
	}{
		{
			name:           "basic info message",
			level:          slog.LevelInfo,
			message:        "test message",
			expectInOutput: []string{"INFO:", "test message"},
		},
		{
			name:           "debug message with attributes",
			level:          slog.LevelDebug,
			message:        "debug message",
			attrs:          []any{"key", "value", "number", 42},
			expectInOutput: []string{"DEBUG:", "debug message", "key", "value", "42"},
		},
		{
			name:           "warning message",
			level:          slog.LevelWarn,
			message:        "warning message",
			expectInOutput: []string{"WARN:", "warning message"},
		},
		{
			name:           "error message",
			level:          slog.LevelError,
			message:        "error message",
			expectInOutput: []string{"ERROR:", "error message"},
		},
		{
			name:           "message with empty attrs output enabled",
			level:          slog.LevelInfo,
			message:        "test message",
			options:        []Option{WithOutputEmptyAttrs()},
			expectInOutput: []string{"INFO:", "test message", "{}"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			opts := append([]Option{WithDestinationWriter(&buf)}, tt.options...)
			handler := NewPretty(&slog.HandlerOptions{Level: slog.LevelDebug}, opts...)

			record := slog.NewRecord(time.Now(), tt.level, tt.message, 0)
			record.Add(tt.attrs...)

			if err := handler.Handle(context.Background(), record); err != nil {
				t.Errorf("Handle() returned error: %v", err)
			}

			output := buf.String()
			for _, expected := range tt.expectInOutput {
				if !strings.Contains(output, expected) {
					t.Errorf("expected output to contain %q, got: %s", expected, output)
				}
			}

			if !strings.HasSuffix(output, "\n") {
				t.Error("output should end with newline")
			}
		})
	}
}

func TestPrettyHandler_Handle_WithReplaceAttr(t *testing.T) {
	var buf bytes.Buffer
	replaceAttr := func(groups []string, a slog.Attr) slog.Attr {
		if a.Key == slog.TimeKey {
			return slog.Attr{}
		}
		if a.Key == "secret" {
			return slog.String("secret", "[REDACTED]")
		}
		return a
	}

	handler := NewPretty(&slog.HandlerOptions{
		Level:       slog.LevelDebug,
		ReplaceAttr: replaceAttr,
	}, WithDestinationWriter(&buf))

	record := slog.NewRecord(time.Now(), slog.LevelInfo, "test message", 0)
	record.Add("secret", "password123", "public", "data")

	if err := handler.Handle(context.Background(), record); err != nil {
		t.Errorf("Handle() returned error: %v", err)
	}

	output := buf.String()

	if !strings.Contains(output, "[REDACTED]") {
		t.Error("expected secret to be redacted")
	}
	if strings.Contains(output, "password123") {
		t.Error("original password should not appear in output")
	}
	if !strings.Contains(output, "public") {
		t.Error("public data should appear in output")
	}
}

func TestPrettyHandler_computeAttrs_Error(t *testing.T) {
	handler := &PrettyHandler{
		h: &failingHandler{},
		b: &bytes.Buffer{},
		m: &sync.Mutex{},
	}

	record := slog.NewRecord(time.Now(), slog.LevelInfo, "test", 0)
	if _, err := handler.computeAttrs(context.Background(), record); err == nil {
		t.Error("computeAttrs() should return error when inner handler fails")
	}
}

func TestFunctionalOptions(t *testing.T) {
	t.Run("WithDestinationWriter", func(t *testing.T) {
		var buf bytes.Buffer
		handler := NewPretty(nil, WithDestinationWriter(&buf))

		if handler.writer != &buf {
			t.Error("WithDestinationWriter() did not set writer correctly")
		}
	})

	t.Run("WithColor", func(t *testing.T) {
		handler := NewPretty(nil, WithColor())

		if !handler.colour {
			t.Error("WithColor() did not enable colour")
		}
	})

	t.Run("WithOutputEmptyAttrs", func(t *testing.T) {
		handler := NewPretty(nil, WithOutputEmptyAttrs())

		if !handler.outputEmptyAttrs {
			t.Error("WithOutputEmptyAttrs() did not enable outputEmptyAttrs")
		}
	})
}

func TestSuppressDefaults(t *testing.T) {
	suppressFunc := suppressDefaults(nil)

	tests := []struct {
		name string
		attr slog.Attr
		want slog.Attr
	}{
		{name: "time key should be suppressed", attr: slog.Time(slog.TimeKey, time.Now()), want: slog.Attr{}},
		{name: "level key should be suppressed", attr: slog.Any(slog.LevelKey, slog.LevelInfo), want: slog.Attr{}},
		{name: "message key should be suppressed", attr: slog.String(slog.MessageKey, "test"), want: slog.Attr{}},
		{name: "custom key should not be suppressed", attr: slog.String("custom", "value"), want: slog.String("custom", "value")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := suppressFunc([]string{}, tt.attr)
			if !got.Equal(tt.want) {
				t.Errorf("suppressDefaults() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSuppressDefaults_WithNext(t *testing.T) {
	nextFunc := func(groups []string, a slog.Attr) slog.Attr {
		if a.Key == "transform" {
			return slog.String("transform", "transformed")
		}
		return a
	}

	suppressFunc := suppressDefaults(nextFunc)

	tests := []struct {
		name string
		attr slog.Attr
		want slog.Attr
	}{
		{name: "time key should still be suppressed", attr: slog.Time(slog.TimeKey, time.Now()), want: slog.Attr{}},
		{name: "transform key should be transformed", attr: slog.String("transform", "original"), want: slog.String("transform", "transformed")},
		{name: "other key should pass through", attr: slog.String("other", "value"), want: slog.String("other", "value")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := suppressFunc([]string{}, tt.attr)
			if !got.Equal(tt.want) {
				t.Errorf("suppressDefaults() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestErrorConstants(t *testing.T) {
	if ErrMarshalAttribute == nil {
		t.Error("ErrMarshalAttribute should not be nil")
	}
	if ErrIOWrite == nil {
		t.Error("ErrIOWrite should not be nil")
	}
	if ErrMarshalAttribute.Error() == "" {
		t.Error("ErrMarshalAttribute should have non-empty error message")
	}
	if ErrIOWrite.Error() == "" {
		t.Error("ErrIOWrite should have non-empty error message")
	}
}

type failingHandler struct{}

func (h *failingHandler) Enabled(ctx context.Context, level slog.Level) bool { return true }

func (h *failingHandler) Handle(ctx context.Context, r slog.Record) error {
	return errors.New("failing handler error")
}

func (h *failingHandler) WithAttrs(attrs []slog.Attr) slog.Handler { return h }

func (h *failingHandler) WithGroup(name string) slog.Handler { return h }

type failingWriter struct{}

func (w *failingWriter) Write(p []byte) (n int, err error) {
	return 0, errors.New("write failed")
}

func TestPrettyHandler_Handle_WriteError(t *testing.T) {
	handler := NewPretty(&slog.HandlerOptions{Level: slog.LevelDebug}, WithDestinationWriter(&failingWriter{}))

	record := slog.NewRecord(time.Now(), slog.LevelInfo, "test message", 0)
	err := handler.Handle(context.Background(), record)

	if err == nil {
		t.Fatal("Handle() should return error when writer fails")
	}
	if !errors.Is(err, ErrIOWrite) {
		t.Errorf("Handle() should return ErrIOWrite, got: %v", err)
	}
}

func TestTimeFormat(t *testing.T) {
	if TimeFormat != "[15:04:05.000]" {
		t.Errorf("TimeFormat = %q, want %q", TimeFormat, "[15:04:05.000]")
	}
}

func TestPrettyHandler_LevelColors(t *testing.T) {
	var buf bytes.Buffer
	handler := NewPretty(&slog.HandlerOptions{Level: slog.LevelDebug}, WithDestinationWriter(&buf), WithColor())

	levels := []slog.Level{
		slog.LevelDebug,
		slog.LevelInfo,
		slog.LevelWarn,
		slog.LevelError,
		slog.LevelError + 2,
	}

	for _, level := range levels {
		buf.Reset()
		record := slog.NewRecord(time.Now(), level, "test message", 0)
		if err := handler.Handle(context.Background(), record); err != nil {
			t.Errorf("Handle() returned error for level %v: %v", level, err)
		}

		if buf.String() == "" {
			t.Errorf("no output for level %v", level)
		}
	}
}
