package local

import (
	"context"
	"log/slog"
	"time"
)

// GCStats summarises one collection pass.
type GCStats struct {
	Deleted    int
	FreedBytes int64
}

func (s *Store) gcLogger() *slog.Logger {
	return s.Logger.With(slog.String("sub", "gc"))
}

// CollectGarbage removes up to batch blobs that no object or open part
// references and that are older than minAge.
func (s *Store) CollectGarbage(ctx context.Context, batch int, minAge time.Duration) (GCStats, error) {
	log := s.gcLogger()
	var stats GCStats

	rows, err := s.db.BlobsForGC(batch, minAge)
	if err != nil {
		log.Error("gc.query_fail", "err", err)
		return stats, err
	}
	if len(rows) == 0 {
		log.Debug("gc.nothing_to_do")
		return stats, nil
	}

	log.Info("gc.pass_begin", "candidates", len(rows))
	for _, r := range rows {
		if err := s.blobs.Delete(ctx, r.ID); err != nil {
			log.Error("gc.storage_delete_fail", "blob_id", r.ID, "err", err)
			// keep the record, next pass retries
			continue
		}
		if err := s.db.DeleteBlobRecordTx(s.db.DB, r.ID); err != nil {
			log.Error("gc.db_delete_fail", "blob_id", r.ID, "err", err)
			continue
		}
		stats.Deleted++
		stats.FreedBytes += r.Size
	}
	return stats, nil
}

// StartGC runs CollectGarbage every interval until ctx is done or the store
// is closed. A second call while the loop runs is a no-op.
func (s *Store) StartGC(ctx context.Context, every time.Duration, batch int) {
	s.gcMu.Lock()
	defer s.gcMu.Unlock()
	if s.gcStop != nil {
		return
	}
	ctx, s.gcStop = context.WithCancel(ctx)
	s.gcDone = make(chan struct{})
	done := s.gcDone
	log := s.gcLogger()

	go func() {
		defer close(done)
		log.Info("gc.started", "every", every.String(), "batch", batch)
		t := time.NewTicker(every)
		defer t.Stop()

		for {
			select {
			case <-ctx.Done():
				log.Info("gc.stopped")
				return
			case <-t.C:
				start := time.Now()
				stats, err := s.CollectGarbage(ctx, batch, every)
				if err != nil {
					continue
				}
				log.Info("gc.pass_end",
					"deleted_files", stats.Deleted,
					"freed_bytes", stats.FreedBytes,
					"dur_ms", time.Since(start).Milliseconds(),
				)
			}
		}
	}()
}

// stopGC cancels the GC loop and waits for it to exit.
func (s *Store) stopGC() {
	s.gcMu.Lock()
	stop, done := s.gcStop, s.gcDone
	s.gcStop, s.gcDone = nil, nil
	s.gcMu.Unlock()

	if stop == nil {
		return
	}
	stop()
	<-done
}
