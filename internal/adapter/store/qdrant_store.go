package store

import (
	"context"
	"fmt"

	"review-responder/internal/domain/entity"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"
	"go.uber.org/zap"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// QdrantIndex stores each generation under the embedding of its review so a
// user can look up how they answered similar reviews before.
type QdrantIndex struct {
	client         *qdrant.Client
	collectionName string
	logger         *zap.Logger
}

func NewQdrantIndex(client *qdrant.Client, collectionName string, logger *zap.Logger) *QdrantIndex {
	return &QdrantIndex{
		client:         client,
		collectionName: collectionName,
		logger:         logger,
	}
}

func (s *QdrantIndex) InitCollection(ctx context.Context, dim uint64) error {
	_, err := s.client.GetCollectionInfo(ctx, s.collectionName)
	if err != nil {
		st, ok := status.FromError(err)
		if !ok || st.Code() != codes.NotFound {
			return err
		}
		err := s.client.CreateCollection(ctx, &qdrant.CreateCollection{
			CollectionName: s.collectionName,
			VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
				Size:     dim,
				Distance: qdrant.Distance_Cosine,
			}),
		})
		if err != nil {
			return fmt.Errorf("failed to create collection: %w", err)
		}
	}

	// Every search filters on the owner.
	_, err = s.client.CreateFieldIndex(ctx, &qdrant.CreateFieldIndexCollection{
		CollectionName: s.collectionName,
		FieldName:      "user_id",
		FieldType:      qdrant.FieldType_FieldTypeKeyword.Enum(),
		Wait:           qdrant.PtrOf(true),
	})
	if err != nil {
		s.logger.Warn("could not create user_id index (might already exist)", zap.Error(err))
	}
	return nil
}

func (s *QdrantIndex) Save(ctx context.Context, rec *entity.GenerationRecord, vector []float32) error {
	payload := map[string]any{
		"user_id":       rec.UserID,
		"generation_id": rec.ID,
		"review_text":   rec.OriginalText,
		"business_type": string(rec.BusinessType),
		"tone":          string(rec.Tone),
		"created_at":    rec.CreatedAt.Unix(),
	}
	if rec.Result != nil {
		payload["sentiment"] = string(rec.Result.Sentiment.Sentiment)
		if len(rec.Result.Candidates) > 0 {
			payload["response_text"] = rec.Result.Candidates[0].Text
		}
	}

	values, err := qdrant.TryValueMap(payload)
	if err != nil {
		return fmt.Errorf("failed to encode payload: %w", err)
	}

	_, err = s.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: s.collectionName,
		Points: []*qdrant.PointStruct{
			{
				Id:      qdrant.NewIDUUID(uuid.NewString()),
				Vectors: qdrant.NewVectors(vector...),
				Payload: values,
			},
		},
	})
	return err
}

// Search returns the user's past generations whose review embedding scores at
// least threshold against vector, best first.
func (s *QdrantIndex) Search(ctx context.Context, userID string, vector []float32, threshold float32, limit int) ([]entity.SimilarResponse, error) {
	res, err := s.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: s.collectionName,
		Query:          qdrant.NewQuery(vector...),
		Filter: &qdrant.Filter{
			Must: []*qdrant.Condition{qdrant.NewMatch("user_id", userID)},
		},
		Limit:          qdrant.PtrOf(uint64(limit)),
		WithPayload:    qdrant.NewWithPayload(true),
		ScoreThreshold: &threshold,
	})
	if err != nil {
		return nil, err
	}

	out := make([]entity.SimilarResponse, 0, len(res))
	for _, hit := range res {
		out = append(out, similarFromPayload(hit.Payload, hit.Score))
	}
	return out, nil
}

func similarFromPayload(p map[string]*qdrant.Value, score float32) entity.SimilarResponse {
	return entity.SimilarResponse{
		GenerationID: p["generation_id"].GetIntegerValue(),
		ReviewText:   p["review_text"].GetStringValue(),
		ResponseText: p["response_text"].GetStringValue(),
		BusinessType: entity.BusinessType(p["business_type"].GetStringValue()),
		Tone:         entity.Tone(p["tone"].GetStringValue()),
		Sentiment:    entity.Sentiment(p["sentiment"].GetStringValue()),
		Score:        score,
	}
}
