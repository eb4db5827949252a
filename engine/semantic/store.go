package semantic

import (
	"context"
	"fmt"
	"strings"

	pb "github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/florinhegedus/rag-system-romanian-laws/engine/domain"
)

// pointsClient is the subset of pb.PointsClient used by VectorStore.
type pointsClient interface {
	Upsert(ctx context.Context, in *pb.UpsertPoints, opts ...grpc.CallOption) (*pb.PointsOperationResponse, error)
	Delete(ctx context.Context, in *pb.DeletePoints, opts ...grpc.CallOption) (*pb.PointsOperationResponse, error)
	Get(ctx context.Context, in *pb.GetPoints, opts ...grpc.CallOption) (*pb.GetResponse, error)
	Search(ctx context.Context, in *pb.SearchPoints, opts ...grpc.CallOption) (*pb.SearchResponse, error)
	Count(ctx context.Context, in *pb.CountPoints, opts ...grpc.CallOption) (*pb.CountResponse, error)
}

// collectionsClient is the subset of pb.CollectionsClient used by VectorStore.
type collectionsClient interface {
	CollectionExists(ctx context.Context, in *pb.CollectionExistsRequest, opts ...grpc.CallOption) (*pb.CollectionExistsResponse, error)
	Get(ctx context.Context, in *pb.GetCollectionInfoRequest, opts ...grpc.CallOption) (*pb.GetCollectionInfoResponse, error)
	Create(ctx context.Context, in *pb.CreateCollection, opts ...grpc.CallOption) (*pb.CollectionOperationResponse, error)
	Delete(ctx context.Context, in *pb.DeleteCollection, opts ...grpc.CallOption) (*pb.CollectionOperationResponse, error)
}

// VectorStore is the sole owner of all Qdrant operations.
type VectorStore struct {
	conn        *grpc.ClientConn
	points      pointsClient
	collections collectionsClient
	collection  string
}

var _ Index = (*VectorStore)(nil)

// New creates a VectorStore connected to Qdrant at the given gRPC address.
func New(addr string, collection string) (*VectorStore, error) {
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("semantic: dial qdrant %s: %w", addr, err)
	}
	return &VectorStore{
		conn:        conn,
		points:      pb.NewPointsClient(conn),
		collections: pb.NewCollectionsClient(conn),
		collection:  collection,
	}, nil
}

// NewWithClients builds a VectorStore over existing clients. Close is a no-op.
func NewWithClients(points pointsClient, collections collectionsClient, collection string) *VectorStore {
	return &VectorStore{points: points, collections: collections, collection: collection}
}

// Name returns the collection name.
func (v *VectorStore) Name() string { return v.collection }

// Close closes the underlying gRPC connection.
func (v *VectorStore) Close() error {
	if v.conn == nil {
		return nil
	}
	return v.conn.Close()
}

func unavailable(op string, err error) error {
	return domain.Wrap(domain.ErrStoreUnavailable, "semantic: "+op, err)
}

// CollectionExists probes for the collection. A failed probe is an error, never "absent".
func (v *VectorStore) CollectionExists(ctx context.Context) (bool, error) {
	resp, err := v.collections.CollectionExists(ctx, &pb.CollectionExistsRequest{CollectionName: v.collection})
	if err != nil {
		return false, unavailable("collection exists "+v.collection, err)
	}
	return resp.GetResult().GetExists(), nil
}

// CollectionInfo returns the vector size and distance of the collection.
func (v *VectorStore) CollectionInfo(ctx context.Context) (CollectionInfo, error) {
	resp, err := v.collections.Get(ctx, &pb.GetCollectionInfoRequest{CollectionName: v.collection})
	if err != nil {
		return CollectionInfo{}, unavailable("collection info "+v.collection, err)
	}
	params := resp.GetResult().GetConfig().GetParams().GetVectorsConfig().GetParams()
	if params == nil {
		return CollectionInfo{}, fmt.Errorf("semantic: collection %s has no single unnamed vector: %w",
			v.collection, domain.ErrConfiguration)
	}
	return CollectionInfo{
		Dimensions: int(params.GetSize()),
		Distance:   strings.ToLower(params.GetDistance().String()),
	}, nil
}

// CreateCollection creates a cosine collection of the given dimension.
func (v *VectorStore) CreateCollection(ctx context.Context, dims int) error {
	_, err := v.collections.Create(ctx, &pb.CreateCollection{
		CollectionName: v.collection,
		VectorsConfig: &pb.VectorsConfig{
			Config: &pb.VectorsConfig_Params{
				Params: &pb.VectorParams{
					Size:     uint64(dims),
					Distance: pb.Distance_Cosine,
				},
			},
		},
	})
	if err != nil {
		return unavailable("create collection "+v.collection, err)
	}
	return nil
}

// DeleteCollection deletes the collection.
func (v *VectorStore) DeleteCollection(ctx context.Context) error {
	_, err := v.collections.Delete(ctx, &pb.DeleteCollection{CollectionName: v.collection})
	if err != nil {
		return unavailable("delete collection "+v.collection, err)
	}
	return nil
}

func pointID(id string) *pb.PointId {
	return &pb.PointId{PointIdOptions: &pb.PointId_Uuid{Uuid: id}}
}

// Upsert writes all points in one request and waits for them to be applied.
func (v *VectorStore) Upsert(ctx context.Context, points []Point) error {
	if len(points) == 0 {
		return nil
	}
	out := make([]*pb.PointStruct, len(points))
	for i, p := range points {
		out[i] = &pb.PointStruct{
			Id: pointID(p.ID),
			Vectors: &pb.Vectors{
				VectorsOptions: &pb.Vectors_Vector{
					Vector: &pb.Vector{Data: p.Vector},
				},
			},
			Payload: p.Payload.toPB(),
		}
	}
	wait := true
	_, err := v.points.Upsert(ctx, &pb.UpsertPoints{
		CollectionName: v.collection,
		Wait:           &wait,
		Points:         out,
	})
	if err != nil {
		return unavailable(fmt.Sprintf("upsert %d points", len(points)), err)
	}
	return nil
}

// Existing returns the subset of ids already present, in one request.
func (v *VectorStore) Existing(ctx context.Context, ids []string) (map[string]bool, error) {
	found := make(map[string]bool, len(ids))
	if len(ids) == 0 {
		return found, nil
	}
	req := &pb.GetPoints{
		CollectionName: v.collection,
		Ids:            make([]*pb.PointId, len(ids)),
		WithPayload:    &pb.WithPayloadSelector{SelectorOptions: &pb.WithPayloadSelector_Enable{Enable: false}},
		WithVectors:    &pb.WithVectorsSelector{SelectorOptions: &pb.WithVectorsSelector_Enable{Enable: false}},
	}
	for i, id := range ids {
		req.Ids[i] = pointID(id)
	}
	resp, err := v.points.Get(ctx, req)
	if err != nil {
		return nil, unavailable(fmt.Sprintf("get %d points", len(ids)), err)
	}
	for _, p := range resp.GetResult() {
		found[p.GetId().GetUuid()] = true
	}
	return found, nil
}

// Search performs k-NN similarity search, highest score first.
func (v *VectorStore) Search(ctx context.Context, vector []float32, topK int) ([]Hit, error) {
	resp, err := v.points.Search(ctx, &pb.SearchPoints{
		CollectionName: v.collection,
		Vector:         vector,
		Limit:          uint64(topK),
		WithPayload:    &pb.WithPayloadSelector{SelectorOptions: &pb.WithPayloadSelector_Enable{Enable: true}},
	})
	if err != nil {
		return nil, unavailable("search", err)
	}
	hits := make([]Hit, len(resp.GetResult()))
	for i, r := range resp.GetResult() {
		hits[i] = Hit{
			ID:      r.GetId().GetUuid(),
			Score:   r.GetScore(),
			Payload: payloadFromPB(r.GetPayload()),
		}
	}
	return hits, nil
}

// DeleteStale removes the article's points with chunk_index >= fromChunk.
func (v *VectorStore) DeleteStale(ctx context.Context, source, articleKey string, fromChunk int) error {
	wait := true
	_, err := v.points.Delete(ctx, &pb.DeletePoints{
		CollectionName: v.collection,
		Wait:           &wait,
		Points: &pb.PointsSelector{
			PointsSelectorOneOf: &pb.PointsSelector_Filter{
				Filter: staleFilter(source, articleKey, fromChunk),
			},
		},
	})
	if err != nil {
		return unavailable(fmt.Sprintf("delete stale %s from chunk %d", domain.Reference(source, articleKey), fromChunk), err)
	}
	return nil
}

// Count returns the exact number of points in the collection.
func (v *VectorStore) Count(ctx context.Context) (uint64, error) {
	exact := true
	resp, err := v.points.Count(ctx, &pb.CountPoints{CollectionName: v.collection, Exact: &exact})
	if err != nil {
		return 0, unavailable("count", err)
	}
	return resp.GetResult().GetCount(), nil
}

func staleFilter(source, articleKey string, fromChunk int) *pb.Filter {
	gte := float64(fromChunk)
	return &pb.Filter{
		Must: []*pb.Condition{
			fieldMatch("source", source),
			fieldMatch("article_key", articleKey),
			{
				ConditionOneOf: &pb.Condition_Field{
					Field: &pb.FieldCondition{
						Key:   "chunk_index",
						Range: &pb.Range{Gte: &gte},
					},
				},
			},
		},
	}
}

func fieldMatch(key, value string) *pb.Condition {
	return &pb.Condition{
		ConditionOneOf: &pb.Condition_Field{
			Field: &pb.FieldCondition{
				Key: key,
				Match: &pb.Match{
					MatchValue: &pb.Match_Keyword{Keyword: value},
				},
			},
		},
	}
}
