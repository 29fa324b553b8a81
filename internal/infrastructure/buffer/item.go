package buffer

import (
	"time"

	"github.com/google/uuid"

	"github.com/fastygo/taskpilot/domain"
)

// Item is a "last suggested" stamp that could not be written when the task
// was recommended. Only the newest stamp per task is kept.
type Item struct {
	ID          string    `json:"id"`
	TaskID      string    `json:"task_id"`
	SuggestedAt time.Time `json:"suggested_at"`
	Attempts    int       `json:"attempts"`
	EnqueuedAt  time.Time `json:"enqueued_at"`
}

// FromIntent builds a fresh item for intent.
func FromIntent(intent domain.StampIntent) Item {
	return Item{
		ID:          uuid.NewString(),
		TaskID:      intent.TaskID,
		SuggestedAt: intent.SuggestedAt,
		EnqueuedAt:  time.Now().UTC(),
	}
}

// Intent converts the item back into the mutation it stands for.
func (i Item) Intent() domain.StampIntent {
	return domain.StampIntent{TaskID: i.TaskID, SuggestedAt: i.SuggestedAt}
}
