package worker

import (
	"context"

	"github.com/goccy/go-json"

	"calndr/pkg/logger"
)

type Handler struct {
	custodyProcessor   *CustodyProcessor
	syncProcessor      *SyncProcessor
	integrityProcessor *IntegrityProcessor
}

func NewHandler(
	custodyProcessor *CustodyProcessor,
	syncProcessor *SyncProcessor,
	integrityProcessor *IntegrityProcessor,
) *Handler {
	return &Handler{
		custodyProcessor:   custodyProcessor,
		syncProcessor:      syncProcessor,
		integrityProcessor: integrityProcessor,
	}
}

func (h *Handler) Process(ctx context.Context, msg *Message) error {
	logger.Debug("Processing message: %s", msg.Type)

	switch msg.Type {
	case JobCustodyGenerate:
		return h.custodyProcessor.ProcessGenerate(ctx, msg)

	case JobProviderSync:
		return h.syncProcessor.ProcessSync(ctx, msg)
	case JobProviderSyncBatch:
		return h.syncProcessor.ProcessBatch(ctx, msg)
	case JobProviderSyncRetry:
		return h.syncProcessor.ProcessSync(ctx, msg)

	case JobIntegrityAudit:
		return h.integrityProcessor.ProcessAudit(ctx, msg)

	default:
		logger.Warn("Unknown job type: %s", msg.Type)
		return nil
	}
}

func ParsePayload[T any](msg *Message) (*T, error) {
	var payload T
	data, err := json.Marshal(msg.Payload)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, err
	}
	return &payload, nil
}
