package storage

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	apperrors "github.com/paper-trader/internal/errors"
	"github.com/paper-trader/internal/models"
	"github.com/paper-trader/internal/types"
)

// RecommendationRepository persists model output as an append-only history.
// Rows are never updated; the newest row per symbol is the current advice.
type RecommendationRepository struct {
	db *PostgresDB
}

// NewRecommendationRepository creates a new recommendation repository
func NewRecommendationRepository(db *PostgresDB) *RecommendationRepository {
	return &RecommendationRepository{db: db}
}

// AppendBatch inserts one row per recommendation. IDs and timestamps are
// assigned here when missing so callers can pass raw model output.
func (r *RecommendationRepository) AppendBatch(ctx context.Context, userID string, recs []*models.Recommendation) error {
	if len(recs) == 0 {
		return nil
	}

	query := `
		INSERT INTO recommendations (id, user_id, symbol, label, confidence_score, sentiment_score, prediction_score, explanation, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	batch := &pgx.Batch{}
	now := time.Now()
	for _, rec := range recs {
		if rec.ID == "" {
			rec.ID = uuid.New().String()
		}
		rec.UserID = userID
		if rec.CreatedAt.IsZero() {
			rec.CreatedAt = now
		}
		batch.Queue(query,
			rec.ID,
			rec.UserID,
			rec.Symbol,
			string(rec.Label),
			rec.ConfidenceScore,
			rec.SentimentScore,
			rec.PredictionScore,
			rec.Explanation,
			rec.CreatedAt,
		)
	}

	results := r.db.Pool().SendBatch(ctx, batch)
	defer results.Close()

	for range recs {
		if _, err := results.Exec(); err != nil {
			return apperrors.NewDatabaseError("append recommendations", err)
		}
	}

	return nil
}

// LatestPerSymbol returns the newest recommendation per symbol for a user,
// restricted to rows younger than maxAge, ordered by symbol.
func (r *RecommendationRepository) LatestPerSymbol(ctx context.Context, userID string, maxAge time.Duration) ([]*models.Recommendation, error) {
	query := `
		SELECT DISTINCT ON (symbol)
			id, user_id, symbol, label, confidence_score, sentiment_score, prediction_score, explanation, created_at
		FROM recommendations
		WHERE user_id = $1 AND created_at > $2
		ORDER BY symbol, created_at DESC
	`

	rows, err := r.db.Pool().Query(ctx, query, userID, time.Now().Add(-maxAge))
	if err != nil {
		return nil, apperrors.NewDatabaseError("list recommendations", err)
	}
	defer rows.Close()

	var recs []*models.Recommendation
	for rows.Next() {
		var (
			rec   models.Recommendation
			label string
		)
		err := rows.Scan(
			&rec.ID,
			&rec.UserID,
			&rec.Symbol,
			&label,
			&rec.ConfidenceScore,
			&rec.SentimentScore,
			&rec.PredictionScore,
			&rec.Explanation,
			&rec.CreatedAt,
		)
		if err != nil {
			return nil, apperrors.NewDatabaseError("scan recommendation", err)
		}
		rec.Label = types.RecommendationLabel(label)
		recs = append(recs, &rec)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewDatabaseError("iterate recommendations", err)
	}

	return recs, nil
}
