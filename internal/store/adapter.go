package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/lowtide/hexplore/internal/explore"
)

// ExploreSaver adapts *Store to explore.Saver, translating the
// exploration package's store-agnostic snapshot into the concrete
// db_explore/db_finished_event rows.
type ExploreSaver struct {
	store *Store
}

// NewExploreSaver wraps s as an explore.Saver.
func NewExploreSaver(s *Store) *ExploreSaver { return &ExploreSaver{store: s} }

type positionJSON struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// Save implements explore.Saver.
func (a *ExploreSaver) Save(ctx context.Context, snap explore.SaveSnapshot) ([]explore.FinishedEventRow, error) {
	posBytes, err := json.Marshal(positionJSON{X: snap.Position.X, Y: snap.Position.Y})
	if err != nil {
		return nil, fmt.Errorf("store: encode position: %w", err)
	}

	if _, err := a.store.LoadExplore(ctx, snap.PlayerID); err != nil {
		if err != ErrNotFound {
			return nil, err
		}
		if err := a.store.CreateExplore(ctx, ExploreRow{
			PlayerID:   snap.PlayerID,
			State:      snap.State,
			ExploreID:  snap.ExploreID,
			CreateTime: snap.CreateTime,
			Token:      snap.Token,
			Position:   string(posBytes),
			Food:       snap.Food,
		}); err != nil {
			return nil, err
		}
	}

	finished := make([]FinishedEventRow, 0, len(snap.NewlyFinished))
	for _, f := range snap.NewlyFinished {
		posJSON, err := json.Marshal(positionJSON{X: f.Position.X, Y: f.Position.Y})
		if err != nil {
			return nil, fmt.Errorf("store: encode finished-event position: %w", err)
		}
		finished = append(finished, FinishedEventRow{
			PlayerID:      snap.PlayerID,
			SceneType:     f.SceneType,
			SceneID:       f.SceneID,
			EventID:       f.EventID,
			EventType:     f.EventType,
			Position:      string(posJSON),
			ProgressEvent: f.ProgressEvent,
		})
	}

	inserted, err := a.store.Save(ctx, SaveResult{
		Explore: ExploreRow{
			PlayerID:      snap.PlayerID,
			State:         snap.State,
			MaxEvent:      snap.MaxEvent,
			FinishedEvent: snap.FinishedEvent,
			Token:         snap.Token,
			Position:      string(posBytes),
			Food:          snap.Food,
		},
		NewlyFinished: finished,
	})
	if err != nil {
		return nil, err
	}

	out := make([]explore.FinishedEventRow, 0, len(inserted))
	for _, row := range inserted {
		for _, f := range snap.NewlyFinished {
			if f.EventID == row.EventID {
				out = append(out, f)
				break
			}
		}
	}
	return out, nil
}
