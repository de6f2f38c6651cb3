package services

import (
	"context"
	"errors"

	"git.solsynth.dev/hypernet/confession/pkg/internal/models"
	"git.solsynth.dev/hypernet/confession/pkg/internal/store"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

func countByPost(ctx context.Context, db store.Store, collection string) (map[string]int64, error) {
	snapshot, err := db.Query(ctx, collection, store.Query{})
	if err != nil {
		return nil, err
	}
	out := make(map[string]int64)
	for _, record := range snapshot {
		out[record.Data.String("post_id")]++
	}
	return out, nil
}

// AuditCounters recounts likes and comments of every post and reports the
// counters that disagree. With repair set, each drifted counter is moved by
// the missing delta through Increment.
func AuditCounters(ctx context.Context, db store.Store, repair bool) ([]*models.CounterDriftWarning, error) {
	posts, err := db.Query(ctx, models.CollectionPosts, store.Query{})
	if err != nil {
		return nil, err
	}
	likes, err := countByPost(ctx, db, models.CollectionLikes)
	if err != nil {
		return nil, err
	}
	comments, err := countByPost(ctx, db, models.CollectionComments)
	if err != nil {
		return nil, err
	}

	var warnings []*models.CounterDriftWarning
	for _, record := range posts {
		post := models.PostFromDocument(record.ID, record.Data)
		for field, counted := range map[string]int64{
			"like_count":    likes[post.ID],
			"comment_count": comments[post.ID],
		} {
			stored := record.Data.Int(field)
			if stored == counted {
				continue
			}
			warning := &models.CounterDriftWarning{
				PostID:  post.ID,
				Field:   field,
				Stored:  stored,
				Counted: counted,
				Delta:   counted - stored,
			}
			warnings = append(warnings, warning)

			if repair {
				if err := db.Increment(ctx, models.CollectionPosts, post.ID, field, warning.Delta); err != nil && !errors.Is(err, models.ErrNotFound) {
					return warnings, err
				}
			}
		}
	}
	return warnings, nil
}

func DoCounterAudit() {
	repair := viper.GetBool("reconcile.repair")
	warnings, err := AuditCounters(context.Background(), store.C, repair)
	if err != nil {
		log.Error().Err(err).Msg("An error occurred when auditing counters...")
		return
	}
	for _, warning := range warnings {
		log.Warn().Err(warning).Bool("repaired", repair).Msg("Found a drifted counter.")
	}
	log.Info().Int("drifted", len(warnings)).Bool("repair", repair).Msg("Counter audit finished.")
}
