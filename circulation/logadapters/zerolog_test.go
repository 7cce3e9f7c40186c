package logadapters_test

import (
	"bytes"
	"context"
	"testing"

	jsoniter "github.com/json-iterator/go"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AntonStoeckl/library-circulation/circulation/logadapters"
)

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()

	var lines []map[string]any

	for _, raw := range bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n")) {
		if len(raw) == 0 {
			continue
		}

		var line map[string]any
		require.NoError(t, jsoniter.Unmarshal(raw, &line))
		lines = append(lines, line)
	}

	return lines
}

func Test_ZerologLogger_WritesJSONWithFields(t *testing.T) {
	// arrange
	var buf bytes.Buffer
	logger, err := logadapters.NewZerologLogger(&buf, "debug", logadapters.FormatJSON)
	require.NoError(t, err)

	// act
	logger.Info("copy added", "copy_id", "c-1", "attempt", 2)

	// assert
	lines := decodeLines(t, &buf)
	require.Len(t, lines, 1)
	assert.Equal(t, "info", lines[0]["level"])
	assert.Equal(t, "copy added", lines[0]["message"])
	assert.Equal(t, "c-1", lines[0]["copy_id"])
	assert.InDelta(t, 2.0, lines[0]["attempt"], 0.0001)
}

func Test_ZerologLogger_DropsMessagesBelowLevel(t *testing.T) {
	// arrange
	var buf bytes.Buffer
	logger, err := logadapters.NewZerologLogger(&buf, "warn", logadapters.FormatJSON)
	require.NoError(t, err)

	// act
	logger.Debug("noise")
	logger.InfoContext(context.Background(), "more noise")
	logger.WarnContext(context.Background(), "hold sweep failed")

	// assert
	lines := decodeLines(t, &buf)
	require.Len(t, lines, 1)
	assert.Equal(t, "hold sweep failed", lines[0]["message"])
}

func Test_ZerologLogger_UsesFieldsAttachedToContext(t *testing.T) {
	// arrange
	var buf bytes.Buffer
	logger, err := logadapters.NewZerologLogger(&buf, "info", logadapters.FormatJSON)
	require.NoError(t, err)

	ctx := logger.WithContext(context.Background())
	zerolog.Ctx(ctx).UpdateContext(func(c zerolog.Context) zerolog.Context {
		return c.Str("request_id", "r-1")
	})

	// act
	logger.ErrorContext(ctx, "request failed")

	// assert
	lines := decodeLines(t, &buf)
	require.Len(t, lines, 1)
	assert.Equal(t, "r-1", lines[0]["request_id"])
}

func Test_NewZerologLogger_RejectsInvalidSettings(t *testing.T) {
	_, err := logadapters.NewZerologLogger(&bytes.Buffer{}, "loud", logadapters.FormatJSON)
	assert.Error(t, err)

	_, err = logadapters.NewZerologLogger(&bytes.Buffer{}, "info", "xml")
	assert.ErrorIs(t, err, logadapters.ErrUnknownFormat)
}
