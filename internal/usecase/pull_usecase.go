package usecase

import (
	"context"

	"github.com/retailsync/ledger/internal/domain"
)

const maxPullPage = 200

// PullUseCase serves the server-to-device catalog feed: items, prices,
// rates and customers, streamed by ascending sequence.
type PullUseCase struct {
	updateRepo UpdateRepository
}

// NewPullUseCase creates a new PullUseCase.
func NewPullUseCase(updateRepo UpdateRepository) *PullUseCase {
	return &PullUseCase{updateRepo: updateRepo}
}

// Pull returns the next page after the device's cursor. The cursor to
// persist is NextSeq; a device that loses it replays from zero, which is
// safe because updates are idempotent upserts on the device side.
func (uc *PullUseCase) Pull(ctx context.Context, afterSeq int64, limit int) (*domain.UpdateBatch, error) {
	if limit <= 0 || limit > maxPullPage {
		limit = maxPullPage
	}

	// Fetch one extra row to learn whether more pages remain.
	updates, err := uc.updateRepo.ListSince(ctx, afterSeq, limit+1)
	if err != nil {
		return nil, err
	}

	batch := &domain.UpdateBatch{NextSeq: afterSeq}
	if len(updates) > limit {
		batch.HasMore = true
		updates = updates[:limit]
	}
	batch.Updates = updates
	if len(updates) > 0 {
		batch.NextSeq = updates[len(updates)-1].Seq
	}
	return batch, nil
}

// Publish appends an update to the feed.
func (uc *PullUseCase) Publish(ctx context.Context, kind domain.UpdateKind, refID string, body []byte) (int64, error) {
	return uc.updateRepo.Append(ctx, kind, refID, body)
}
