package storage

import (
	"go.uber.org/zap"

	"github.com/aayushbajaj/trigcap/internal/capture"
	"github.com/aayushbajaj/trigcap/internal/engine"
)

// Recorder is an engine.Sink that saves every completed capture.
type Recorder struct {
	engine.NopSink
	store *Store
	log   *zap.Logger
}

// NewRecorder returns a sink writing to store.
func NewRecorder(store *Store, logger *zap.Logger) *Recorder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Recorder{store: store, log: logger.Named("storage")}
}

func (r *Recorder) OnCaptureCompleted(rec capture.Record) {
	if err := r.store.SaveCapture(rec); err != nil {
		r.log.Error("failed to save capture", zap.String("id", rec.ID), zap.Error(err))
		return
	}
	r.log.Debug("capture saved",
		zap.String("id", rec.ID),
		zap.Stringer("kind", rec.Kind),
		zap.Int("tags", len(rec.Tags)))
}
