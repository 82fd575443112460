package vectorstore

import (
	"context"
	"fmt"
	"net"
	"strconv"

	"github.com/qdrant/go-client/qdrant"

	"github.com/outbrain/memoryd/internal/retrieval"
)

// DefaultCollection is the default Qdrant collection holding record points.
const DefaultCollection = "records"

// QdrantStore implements VectorStore using Qdrant. All user records live in
// one collection; isolation is enforced with a mandatory user_id payload
// filter on every query.
type QdrantStore struct {
	client     *qdrant.Client
	collection string
}

// NewQdrantStore creates a new Qdrant vector store client.
// url should be in format "host:port" (e.g., "localhost:6334").
func NewQdrantStore(ctx context.Context, url, collection string) (*QdrantStore, error) {
	host, portStr, err := net.SplitHostPort(url)
	if err != nil {
		// If no port specified, assume the default gRPC port
		host = url
		portStr = "6334"
	}

	port, err := strconv.Atoi(portStr)
	if err != nil {
		return nil, fmt.Errorf("invalid port in qdrant url: %w", err)
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host: host,
		Port: port,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotConnected, err)
	}

	if collection == "" {
		collection = DefaultCollection
	}

	return &QdrantStore{client: client, collection: collection}, nil
}

// Close closes the Qdrant client connection.
func (s *QdrantStore) Close() error {
	return s.client.Close()
}

// EnsureCollection creates the records collection if it does not exist.
func (s *QdrantStore) EnsureCollection(ctx context.Context, dimension int) error {
	exists, err := s.client.CollectionExists(ctx, s.collection)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrNotConnected, err)
	}
	if exists {
		return nil
	}

	err = s.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: s.collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     uint64(dimension),
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil {
		return fmt.Errorf("failed to create collection: %w", err)
	}

	return nil
}

// Upsert inserts or updates record points.
func (s *QdrantStore) Upsert(ctx context.Context, points []Point) error {
	if len(points) == 0 {
		return nil
	}

	qpoints := make([]*qdrant.PointStruct, len(points))
	for i, p := range points {
		qpoints[i] = &qdrant.PointStruct{
			Id:      qdrant.NewIDUUID(p.ID),
			Vectors: qdrant.NewVectors(p.Vector...),
			Payload: map[string]*qdrant.Value{
				"record_id": qdrant.NewValueString(p.RecordID),
				"user_id":   qdrant.NewValueString(p.UserID),
				"title":     qdrant.NewValueString(p.Title),
				"content":   qdrant.NewValueString(p.Content),
				"date":      qdrant.NewValueString(p.Date),
			},
		}
	}

	_, err := s.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: s.collection,
		Points:         qpoints,
	})
	if err != nil {
		return fmt.Errorf("failed to upsert points: %w", err)
	}

	return nil
}

// Search performs similarity search scoped to a single user.
func (s *QdrantStore) Search(ctx context.Context, userID string, vector []float32, topK int) ([]retrieval.Candidate, error) {
	response, err := s.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: s.collection,
		Query:          qdrant.NewQuery(vector...),
		Limit:          qdrant.PtrOf(uint64(topK)),
		WithPayload:    qdrant.NewWithPayload(true),
		Filter: &qdrant.Filter{
			Must: []*qdrant.Condition{
				qdrant.NewMatch("user_id", userID),
			},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotConnected, err)
	}

	results := make([]retrieval.Candidate, 0, len(response))
	for _, hit := range response {
		payload := hit.GetPayload()
		results = append(results, retrieval.Candidate{
			ID:       hit.GetId().GetUuid(),
			RecordID: payload["record_id"].GetStringValue(),
			Title:    payload["title"].GetStringValue(),
			Content:  payload["content"].GetStringValue(),
			Date:     payload["date"].GetStringValue(),
			Score:    hit.GetScore(),
		})
	}

	return results, nil
}

// Delete removes the point belonging to a record.
func (s *QdrantStore) Delete(ctx context.Context, recordID string) error {
	_, err := s.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: s.collection,
		Points: qdrant.NewPointsSelectorFilter(&qdrant.Filter{
			Must: []*qdrant.Condition{
				qdrant.NewMatch("record_id", recordID),
			},
		}),
	})
	if err != nil {
		return fmt.Errorf("failed to delete point: %w", err)
	}

	return nil
}

// Ensure QdrantStore implements VectorStore.
var _ VectorStore = (*QdrantStore)(nil)
