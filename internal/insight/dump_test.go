package insight

import (
	"bytes"
	"strings"
	"testing"
	"time"

	json "github.com/json-iterator/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/glimpsehq/glimpse/api/schemas"
)

func sampleRecord(id string) *schemas.DumpRecord {
	return &schemas.DumpRecord{
		ID:        id,
		Kind:      schemas.ActionLocate,
		Query:     "the submit button",
		Task:      &schemas.TaskInfo{DurationMs: 12},
		Timestamp: time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC),
	}
}

func TestEmit_WritesOneJSONLinePerRecord(t *testing.T) {
	var buf bytes.Buffer
	e := NewDumpEmitterWithWriter(&buf, zap.NewNop())

	e.Emit(sampleRecord("d1"), nil)
	e.Emit(sampleRecord("d2"), nil)

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	require.Len(t, lines, 2)

	var rec schemas.DumpRecord
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &rec))
	assert.Equal(t, "d1", rec.ID)
	assert.Equal(t, schemas.ActionLocate, rec.Kind)
	assert.Equal(t, "the submit button", rec.Query)
}

func TestEmit_SubscriberReceivesRecord(t *testing.T) {
	e := NewDumpEmitterWithWriter(nil, zap.NewNop())

	var got *schemas.DumpRecord
	e.Emit(sampleRecord("d3"), func(r *schemas.DumpRecord) { got = r })

	require.NotNil(t, got)
	assert.Equal(t, "d3", got.ID)
}

func TestEmit_SubscriberPanicIsSwallowed(t *testing.T) {
	var buf bytes.Buffer
	e := NewDumpEmitterWithWriter(&buf, zap.NewNop())

	assert.NotPanics(t, func() {
		e.Emit(sampleRecord("d4"), func(*schemas.DumpRecord) { panic("boom") })
	})
	assert.Contains(t, buf.String(), `"d4"`, "the file line is written even when the subscriber panics")
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, assert.AnError }

func TestEmit_WriteFailureIsSwallowed(t *testing.T) {
	e := NewDumpEmitterWithWriter(failingWriter{}, zap.NewNop())

	assert.NotPanics(t, func() { e.Emit(sampleRecord("d5"), nil) })
}
