package services

import (
	"context"

	"github.com/fastygo/taskpilot/domain"
	"github.com/fastygo/taskpilot/internal/infrastructure/buffer"
	"github.com/fastygo/taskpilot/usecase"
)

// BufferBridge hands stamps the task use case could not write to the processor.
type BufferBridge struct {
	processor *BufferProcessor
}

func NewBufferBridge(processor *BufferProcessor) *BufferBridge {
	return &BufferBridge{processor: processor}
}

func (b *BufferBridge) BufferStamp(ctx context.Context, intent domain.StampIntent) error {
	if b == nil || b.processor == nil || intent.TaskID == "" {
		return domain.ErrInvalidPayload
	}
	return b.processor.Enqueue(buffer.FromIntent(intent))
}

var _ usecase.StampBuffer = (*BufferBridge)(nil)
