package journal

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"

	"github.com/example/pharma-exchange/internal/domain/stock"
)

// Journal is the audit sink movement records are appended to.
type Journal interface {
	Append(ctx context.Context, m *stock.Movement) error
}

// Handler consumes movement records from Kafka and appends them to the
// journal.
type Handler struct {
	journal Journal
	logger  *zap.Logger
}

func NewHandler(journal Journal, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{journal: journal, logger: logger}
}

// HandleMessage processes one message from the movements topic.
func (h *Handler) HandleMessage(ctx context.Context, key, value []byte) error {
	var m stock.Movement
	if err := json.Unmarshal(value, &m); err != nil {
		h.logger.Warn("malformed movement record",
			zap.String("key", string(key)),
			zap.Error(err))
		return err
	}

	if err := h.journal.Append(ctx, &m); err != nil {
		h.logger.Error("failed to journal movement",
			zap.String("item_id", m.ItemID),
			zap.String("event_type", m.EventType),
			zap.Error(err))
		return err
	}

	h.logger.Info("movement journaled",
		zap.String("item_id", m.ItemID),
		zap.String("event_type", m.EventType))
	return nil
}
