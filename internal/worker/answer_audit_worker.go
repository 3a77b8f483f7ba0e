package worker

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/ept-backend/internal/config"
	"github.com/stemsi/ept-backend/internal/model"
)

const upsertAnswerSQL = `INSERT INTO session_answers (attempt_id, candidate_id, item_id, option_index, selected_at)
	 VALUES ($1, $2, $3, $4, $5)
	 ON CONFLICT (attempt_id, item_id) DO UPDATE
	 SET option_index = EXCLUDED.option_index, selected_at = EXCLUDED.selected_at
	 WHERE session_answers.selected_at <= EXCLUDED.selected_at`

// AnswerAuditWorker consumes persist_answers_queue and UPSERTs the latest
// selection per item into session_answers.
type AnswerAuditWorker struct {
	pool *pgxpool.Pool
	rdb  *redis.Client
	log  zerolog.Logger
}

// NewAnswerAuditWorker creates a new AnswerAuditWorker.
func NewAnswerAuditWorker(pool *pgxpool.Pool, rdb *redis.Client, log zerolog.Logger) *AnswerAuditWorker {
	return &AnswerAuditWorker{
		pool: pool,
		rdb:  rdb,
		log:  log.With().Str("component", "answer_audit_worker").Logger(),
	}
}

// Start begins the infinite worker loop. Call in a goroutine.
func (w *AnswerAuditWorker) Start(ctx context.Context) {
	w.log.Info().Msg("Worker started")

	buffer := make([]model.AnswerAudit, 0, BatchSize)
	lastFlushTime := time.Now()

	for {
		if len(buffer) > 0 && (len(buffer) >= BatchSize || time.Since(lastFlushTime) >= BatchTimeout) {
			w.flush(ctx, buffer)
			buffer = buffer[:0]
			lastFlushTime = time.Now()
		}

		select {
		case <-ctx.Done():
			w.log.Info().Msg("Worker stopping...")
			w.drain(buffer)
			w.log.Info().Msg("Worker stopped")
			return
		default:
		}

		result, err := w.rdb.BLPop(ctx, PollTimeout, config.WorkerKey.PersistAnswersQueue).Result()
		if err != nil {
			if !errors.Is(err, redis.Nil) && ctx.Err() == nil {
				w.log.Error().Err(err).Msg("BLPop error")
				time.Sleep(time.Second)
			}
			continue
		}
		if len(result) < 2 {
			continue
		}

		var a model.AnswerAudit
		if err := json.Unmarshal([]byte(result[1]), &a); err != nil {
			w.log.Error().Err(err).Msg("Unmarshal error")
			continue
		}
		buffer = append(buffer, a)
	}
}

// flush upserts a batch in one round trip and requeues it on failure.
func (w *AnswerAuditWorker) flush(ctx context.Context, batch []model.AnswerAudit) {
	latest := latestSelections(batch)

	b := &pgx.Batch{}
	for _, a := range latest {
		b.Queue(upsertAnswerSQL, a.AttemptID, a.CandidateID, a.ItemID, a.Option, a.SelectedAt)
	}
	if err := w.pool.SendBatch(ctx, b).Close(); err != nil {
		w.log.Error().Err(err).Int("count", len(latest)).Msg("Persist error, requeueing")
		requeue(ctx, w.rdb, w.log, config.WorkerKey.PersistAnswersQueue, latest)
	}
}

// drain persists the buffer and whatever is left in the queue before shutdown.
func (w *AnswerAuditWorker) drain(buffer []model.AnswerAudit) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	pending := append([]model.AnswerAudit(nil), buffer...)
	for len(pending) < 10*BatchSize {
		raw, err := w.rdb.LPop(ctx, config.WorkerKey.PersistAnswersQueue).Result()
		if err != nil {
			break
		}
		var a model.AnswerAudit
		if err := json.Unmarshal([]byte(raw), &a); err != nil {
			w.log.Error().Err(err).Msg("Drain unmarshal error")
			continue
		}
		pending = append(pending, a)
	}

	if len(pending) > 0 {
		w.flush(ctx, pending)
		w.log.Info().Int("count", len(pending)).Msg("Drained remaining items")
	}
}

// latestSelections keeps the newest selection per (attempt, item), in first
// seen order.
func latestSelections(batch []model.AnswerAudit) []model.AnswerAudit {
	type key struct {
		attempt string
		item    string
	}
	index := make(map[key]int, len(batch))
	out := make([]model.AnswerAudit, 0, len(batch))
	for _, a := range batch {
		k := key{a.AttemptID.String(), a.ItemID}
		if i, ok := index[k]; ok {
			if !a.SelectedAt.Before(out[i].SelectedAt) {
				out[i] = a
			}
			continue
		}
		index[k] = len(out)
		out = append(out, a)
	}
	return out
}
