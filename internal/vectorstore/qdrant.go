package vectorstore

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	pb "github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// QdrantStore is a vector store backed by a Qdrant instance over gRPC.
// Chunk IDs are not valid Qdrant point IDs, so each point gets a
// deterministic UUID derived from its chunk ID and carries the real chunk ID
// in the payload.
type QdrantStore struct {
	conn        *grpc.ClientConn
	points      pb.PointsClient
	collections pb.CollectionsClient
}

// NewQdrantStore connects to Qdrant at host:port.
func NewQdrantStore(host string, port int) (*QdrantStore, error) {
	addr := fmt.Sprintf("%s:%d", host, port)
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("qdrant connect: %w", err)
	}
	return &QdrantStore{
		conn:        conn,
		points:      pb.NewPointsClient(conn),
		collections: pb.NewCollectionsClient(conn),
	}, nil
}

func pointID(chunkID string) *pb.PointId {
	id := uuid.NewSHA1(uuid.NameSpaceOID, []byte(chunkID))
	return &pb.PointId{PointIdOptions: &pb.PointId_Uuid{Uuid: id.String()}}
}

// CreateCollection creates the collection with cosine distance if it does
// not already exist.
func (s *QdrantStore) CreateCollection(ctx context.Context, collection string, dimensions int) error {
	exists, err := s.collections.CollectionExists(ctx, &pb.CollectionExistsRequest{
		CollectionName: collection,
	})
	if err != nil {
		return fmt.Errorf("qdrant collection exists check: %w", err)
	}
	if exists.GetResult().GetExists() {
		return nil
	}
	_, err = s.collections.Create(ctx, &pb.CreateCollection{
		CollectionName: collection,
		VectorsConfig: &pb.VectorsConfig{
			Config: &pb.VectorsConfig_Params{
				Params: &pb.VectorParams{
					Size:     uint64(dimensions),
					Distance: pb.Distance_Cosine,
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("qdrant create collection: %w", err)
	}
	return nil
}

// Upsert writes vectors as points keyed by UUIDs derived from chunk IDs.
func (s *QdrantStore) Upsert(ctx context.Context, collection string, ids []string, vectors [][]float32) error {
	if len(ids) != len(vectors) {
		return fmt.Errorf("ids and vectors length mismatch: %d vs %d", len(ids), len(vectors))
	}
	points := make([]*pb.PointStruct, len(ids))
	for i, id := range ids {
		points[i] = &pb.PointStruct{
			Id: pointID(id),
			Vectors: &pb.Vectors{
				VectorsOptions: &pb.Vectors_Vector{Vector: &pb.Vector{Data: vectors[i]}},
			},
			Payload: map[string]*pb.Value{
				"chunk_id": {Kind: &pb.Value_StringValue{StringValue: id}},
			},
		}
	}
	_, err := s.points.Upsert(ctx, &pb.UpsertPoints{
		CollectionName: collection,
		Points:         points,
	})
	if err != nil {
		return fmt.Errorf("qdrant upsert: %w", err)
	}
	return nil
}

// Query searches the collection and maps payload chunk IDs back into hits.
func (s *QdrantStore) Query(ctx context.Context, collection string, vector []float32, k int) ([]Hit, error) {
	if k <= 0 {
		return nil, nil
	}
	resp, err := s.points.Search(ctx, &pb.SearchPoints{
		CollectionName: collection,
		Vector:         vector,
		Limit:          uint64(k),
		WithPayload: &pb.WithPayloadSelector{
			SelectorOptions: &pb.WithPayloadSelector_Enable{Enable: true},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("qdrant search: %w", err)
	}
	hits := make([]Hit, 0, len(resp.Result))
	for _, pt := range resp.Result {
		chunkID := pt.Payload["chunk_id"].GetStringValue()
		if chunkID == "" {
			continue
		}
		hits = append(hits, Hit{ChunkID: chunkID, Score: float64(pt.Score)})
	}
	return hits, nil
}

// DeleteCollection drops the collection.
func (s *QdrantStore) DeleteCollection(ctx context.Context, collection string) error {
	_, err := s.collections.Delete(ctx, &pb.DeleteCollection{CollectionName: collection})
	if err != nil {
		return fmt.Errorf("qdrant delete collection: %w", err)
	}
	return nil
}

// Size returns the exact point count of the collection.
func (s *QdrantStore) Size(ctx context.Context, collection string) (int, error) {
	exact := true
	resp, err := s.points.Count(ctx, &pb.CountPoints{
		CollectionName: collection,
		Exact:          &exact,
	})
	if err != nil {
		return 0, fmt.Errorf("qdrant count: %w", err)
	}
	return int(resp.GetResult().GetCount()), nil
}

// Close tears down the gRPC connection.
func (s *QdrantStore) Close() error { return s.conn.Close() }
