package storage

import (
	"context"
	"fmt"
	"slices"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"

	"github.com/peakee-labs/blinders/domain"
)

type pointsAPI interface {
	ListCollections(ctx context.Context) ([]string, error)
	CreateCollection(ctx context.Context, request *qdrant.CreateCollection) error
	Upsert(ctx context.Context, request *qdrant.UpsertPoints) (*qdrant.UpdateResult, error)
	Query(ctx context.Context, request *qdrant.QueryPoints) ([]*qdrant.ScoredPoint, error)
}

// VectorConfig locates the Qdrant collection holding match embeddings.
type VectorConfig struct {
	Host       string
	Port       int
	APIKey     string
	UseTLS     bool
	Collection string
	Dimension  uint64
}

// VectorStore keeps one embedding per user for partner matching.
type VectorStore struct {
	api        pointsAPI
	collection string
	dimension  uint64
}

// Match is a stored profile scored against a query vector.
type Match struct {
	UserID string  `json:"userId"`
	Score  float32 `json:"score"`
}

var pointNamespace = uuid.MustParse("6f1c1f0e-58a4-4a55-9d43-0b7e8a5cbe0e")

func NewVectorStore(cfg VectorConfig) (*VectorStore, error) {
	port := cfg.Port
	if port == 0 {
		port = 6334
	}
	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   cfg.Host,
		Port:   port,
		APIKey: cfg.APIKey,
		UseTLS: cfg.UseTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("qdrant client: %w", err)
	}
	return newVectorStore(client, cfg.Collection, cfg.Dimension), nil
}

func newVectorStore(api pointsAPI, collection string, dimension uint64) *VectorStore {
	return &VectorStore{api: api, collection: collection, dimension: dimension}
}

// EnsureCollection creates the collection when it does not exist yet.
func (v *VectorStore) EnsureCollection(ctx context.Context) error {
	collections, err := v.api.ListCollections(ctx)
	if err != nil {
		return fmt.Errorf("list collections: %w", err)
	}
	if slices.Contains(collections, v.collection) {
		return nil
	}
	return v.api.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: v.collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     v.dimension,
			Distance: qdrant.Distance_Cosine,
		}),
	})
}

// PointID derives a stable point id for userID so re-embedding a profile
// replaces the previous vector.
func PointID(userID string) string {
	return uuid.NewSHA1(pointNamespace, []byte(userID)).String()
}

// UpsertMatch stores vector for info.UserID.
func (v *VectorStore) UpsertMatch(ctx context.Context, info domain.MatchInfo, vector []float32) error {
	if v.dimension != 0 && uint64(len(vector)) != v.dimension {
		return fmt.Errorf("vector has %d dimensions, collection expects %d", len(vector), v.dimension)
	}
	wait := true
	_, err := v.api.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: v.collection,
		Wait:           &wait,
		Points: []*qdrant.PointStruct{{
			Id:      qdrant.NewID(PointID(info.UserID)),
			Vectors: qdrant.NewVectors(vector...),
			Payload: qdrant.NewValueMap(matchPayload(info)),
		}},
	})
	if err != nil {
		return fmt.Errorf("upsert match: %w", err)
	}
	return nil
}

// Similar returns up to limit users closest to vector, leaving out the user
// named by exclude.
func (v *VectorStore) Similar(ctx context.Context, vector []float32, exclude string, limit uint64) ([]Match, error) {
	req := &qdrant.QueryPoints{
		CollectionName: v.collection,
		Query:          qdrant.NewQuery(vector...),
		Limit:          &limit,
		WithPayload:    qdrant.NewWithPayload(true),
	}
	if exclude != "" {
		req.Filter = &qdrant.Filter{MustNot: []*qdrant.Condition{qdrant.NewMatch("userId", exclude)}}
	}
	res, err := v.api.Query(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("query matches: %w", err)
	}
	out := make([]Match, 0, len(res))
	for _, p := range res {
		userID := p.GetPayload()["userId"].GetStringValue()
		if userID == "" || userID == exclude {
			continue
		}
		out = append(out, Match{UserID: userID, Score: p.GetScore()})
	}
	return out, nil
}

func matchPayload(info domain.MatchInfo) map[string]any {
	return map[string]any{
		"userId":    info.UserID,
		"name":      info.Name,
		"gender":    info.Gender,
		"major":     info.Major,
		"native":    info.Native,
		"country":   info.Country,
		"learnings": toAny(info.Learnings),
		"interests": toAny(info.Interests),
		"age":       int64(info.Age),
	}
}

func toAny(ss []string) []any {
	out := make([]any, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return out
}
