// File: internal/insight/dump.go
package insight

import (
	"io"
	"sync"

	json "github.com/json-iterator/go"
	"go.uber.org/zap"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/glimpsehq/glimpse/api/schemas"
	"github.com/glimpsehq/glimpse/internal/config"
)

// DumpEmitter publishes diagnostic dump records. Delivery is fire-and-forget:
// subscriber panics and write failures are logged and swallowed so they can
// never alter the result being returned to the caller.
type DumpEmitter struct {
	logger *zap.Logger
	mu     sync.Mutex
	writer io.Writer
}

// NewDumpEmitter builds an emitter. When cfg.DumpFile is set, every record is
// also appended as one JSON line to a lumberjack-rotated file.
func NewDumpEmitter(cfg config.InsightConfig, logger *zap.Logger) *DumpEmitter {
	e := &DumpEmitter{logger: logger.Named("dump")}
	if cfg.DumpFile != "" {
		e.writer = &lumberjack.Logger{
			Filename:   cfg.DumpFile,
			MaxSize:    cfg.DumpMaxSizeMB,
			MaxBackups: cfg.DumpMaxBackups,
		}
	}
	return e
}

// NewDumpEmitterWithWriter builds an emitter over an explicit writer.
func NewDumpEmitterWithWriter(w io.Writer, logger *zap.Logger) *DumpEmitter {
	return &DumpEmitter{logger: logger.Named("dump"), writer: w}
}

// Emit delivers one record to the optional subscriber and the optional dump
// file. Each insight call emits exactly one record, on both the success and
// the error path.
func (e *DumpEmitter) Emit(rec *schemas.DumpRecord, sink schemas.DumpSink) {
	if e.writer != nil {
		line, err := json.Marshal(rec)
		if err != nil {
			e.logger.Error("Failed to marshal dump record", zap.Error(err), zap.String("dump_id", rec.ID))
		} else {
			e.mu.Lock()
			_, werr := e.writer.Write(append(line, '\n'))
			e.mu.Unlock()
			if werr != nil {
				e.logger.Error("Failed to write dump record", zap.Error(werr), zap.String("dump_id", rec.ID))
			}
		}
	}

	if sink == nil {
		return
	}
	func() {
		defer func() {
			if r := recover(); r != nil {
				e.logger.Error("Dump subscriber panicked",
					zap.Any("panic_value", r),
					zap.String("dump_id", rec.ID),
				)
			}
		}()
		sink(rec)
	}()
}
