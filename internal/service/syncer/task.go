package syncer

import (
	"context"

	"github.com/kazusato/trade-journal/internal/schedule"
)

type syncTask struct {
	svc *Service
}

// NewTask wraps the sync engine as a schedulable one-shot task.
func NewTask(svc *Service) schedule.Task {
	return &syncTask{svc: svc}
}

func (t *syncTask) Run(ctx context.Context) error {
	_, err := t.svc.RunSync(ctx)
	return err
}

func (t *syncTask) Name() string {
	return "ledger sync task"
}
