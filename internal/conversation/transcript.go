package conversation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

const (
	transcriptKeyPrefix = "turn_transcript:"
	transcriptTTL       = 72 * time.Hour
)

// TranscriptEntry records one conversational turn: the caller's message and
// the engine's answer. Purely observational; the engine never reads it, so
// the caller-transported attribute bag stays the only state carrier.
type TranscriptEntry struct {
	ID        string    `json:"id"`
	Message   string    `json:"message"`
	Response  string    `json:"response"`
	Action    string    `json:"action"`
	State     string    `json:"state"`
	Timestamp time.Time `json:"timestamp"`
}

// TranscriptStore keeps a capped, expiring turn log per caller phone in
// Redis. All methods are nil-safe no-ops when the store is disabled.
type TranscriptStore struct {
	redis    *redis.Client
	tracer   trace.Tracer
	maxTurns int64
}

func NewTranscriptStore(redisClient *redis.Client) *TranscriptStore {
	if redisClient == nil {
		return nil
	}
	return &TranscriptStore{
		redis:    redisClient,
		tracer:   otel.Tracer("medassist.internal.conversation.transcript"),
		maxTurns: 200,
	}
}

func (s *TranscriptStore) Append(ctx context.Context, phone string, entry TranscriptEntry) error {
	if s == nil || s.redis == nil {
		return nil
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if phone == "" {
		return errors.New("conversation: transcript phone required")
	}

	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}

	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("conversation: marshal transcript entry: %w", err)
	}

	ctx, span := s.tracer.Start(ctx, "conversation.transcript.append")
	defer span.End()

	key := transcriptKey(phone)
	pipe := s.redis.TxPipeline()
	pipe.RPush(ctx, key, data)
	pipe.Expire(ctx, key, transcriptTTL)
	if s.maxTurns > 0 {
		pipe.LTrim(ctx, key, -s.maxTurns, -1)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		span.RecordError(err)
		return fmt.Errorf("conversation: append transcript entry: %w", err)
	}
	return nil
}

func (s *TranscriptStore) List(ctx context.Context, phone string, limit int64) ([]TranscriptEntry, error) {
	if s == nil || s.redis == nil {
		return nil, nil
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if phone == "" {
		return nil, errors.New("conversation: transcript phone required")
	}

	ctx, span := s.tracer.Start(ctx, "conversation.transcript.list")
	defer span.End()

	start := int64(0)
	if limit > 0 {
		start = -limit
	}

	raw, err := s.redis.LRange(ctx, transcriptKey(phone), start, -1).Result()
	if err != nil {
		span.RecordError(err)
		if err == redis.Nil {
			return []TranscriptEntry{}, nil
		}
		return nil, fmt.Errorf("conversation: list transcript: %w", err)
	}

	out := make([]TranscriptEntry, 0, len(raw))
	for _, item := range raw {
		var entry TranscriptEntry
		if err := json.Unmarshal([]byte(item), &entry); err != nil {
			span.RecordError(err)
			continue
		}
		out = append(out, entry)
	}
	return out, nil
}

func transcriptKey(phone string) string {
	return transcriptKeyPrefix + phone
}
