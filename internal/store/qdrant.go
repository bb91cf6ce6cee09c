package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	pb "github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"

	"few-shots/internal/embeddings"
	"few-shots/internal/shot"
)

const (
	qdrantNamespaceField = "namespace"
	qdrantIDField        = "id"
	qdrantPayloadField   = "payload"
	qdrantUpdatedField   = "updated_at"
)

// pointNamespace seeds point ids so that (namespace, id) pairs map to
// distinct, valid Qdrant UUIDs whatever the shot id looks like.
var pointNamespace = uuid.MustParse("5c0f0e6e-58a2-4b8e-9e43-0f9f3c1b7a10")

// QdrantStore implements Store on a single Qdrant collection; namespaces are
// a keyword payload field.
type QdrantStore struct {
	conn        *grpc.ClientConn
	points      pb.PointsClient
	collections pb.CollectionsClient
	collection  string
	euclidean   bool
}

// NewQdrant creates a Qdrant-backed store over gRPC.
func NewQdrant(host string, port int, collection, distance string) (*QdrantStore, error) {
	if collection == "" {
		return nil, errors.New("qdrant collection required")
	}
	var euclidean bool
	switch distance {
	case "", "cosine":
	case "euclidean", "l2":
		euclidean = true
	default:
		return nil, fmt.Errorf("unsupported qdrant distance %q", distance)
	}
	addr := fmt.Sprintf("%s:%d", host, port)
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, Unavailable("qdrant connect", err)
	}
	return &QdrantStore{
		conn:        conn,
		points:      pb.NewPointsClient(conn),
		collections: pb.NewCollectionsClient(conn),
		collection:  collection,
		euclidean:   euclidean,
	}, nil
}

// Setup creates the collection and its namespace index if they are missing.
func (r *QdrantStore) Setup(ctx context.Context, dimensions int) error {
	exists, err := r.collections.CollectionExists(ctx, &pb.CollectionExistsRequest{CollectionName: r.collection})
	if err != nil {
		return classifyGRPC("qdrant collection exists", err)
	}
	if exists.GetResult().GetExists() {
		return nil
	}
	dist := pb.Distance_Cosine
	if r.euclidean {
		dist = pb.Distance_Euclid
	}
	_, err = r.collections.Create(ctx, &pb.CreateCollection{
		CollectionName: r.collection,
		VectorsConfig: &pb.VectorsConfig{Config: &pb.VectorsConfig_Params{
			Params: &pb.VectorParams{Size: uint64(dimensions), Distance: dist},
		}},
	})
	if err != nil {
		return classifyGRPC("qdrant create collection", err)
	}
	wait := true
	_, err = r.points.CreateFieldIndex(ctx, &pb.CreateFieldIndexCollection{
		CollectionName: r.collection,
		Wait:           &wait,
		FieldName:      qdrantNamespaceField,
		FieldType:      pb.FieldType_FieldTypeKeyword.Enum(),
	})
	return classifyGRPC("qdrant create index", err)
}

func (r *QdrantStore) Add(ctx context.Context, shots []shot.Shot, vectors []embeddings.Vector, namespace string) error {
	if err := checkLengths(shots, vectors); err != nil {
		return err
	}
	if len(shots) == 0 {
		return nil
	}
	if _, err := batchDimension(vectors); err != nil {
		return err
	}
	updatedAt := time.Now().UTC().Format(time.RFC3339Nano)
	points := make([]*pb.PointStruct, len(shots))
	for i, s := range shots {
		p, err := encodePayload(s)
		if err != nil {
			return err
		}
		points[i] = &pb.PointStruct{
			Id:      pointID(namespace, s.ID),
			Vectors: &pb.Vectors{VectorsOptions: &pb.Vectors_Vector{Vector: &pb.Vector{Data: vectors[i]}}},
			Payload: map[string]*pb.Value{
				qdrantNamespaceField: stringValue(namespace),
				qdrantIDField:        stringValue(s.ID),
				qdrantPayloadField:   stringValue(p),
				qdrantUpdatedField:   stringValue(updatedAt),
			},
		}
	}

	wait := true
	_, err := r.points.Upsert(ctx, &pb.UpsertPoints{
		CollectionName: r.collection,
		Wait:           &wait,
		Points:         points,
	})
	return classifyGRPC("qdrant upsert", err)
}

func (r *QdrantStore) Remove(ctx context.Context, ids []string, namespace string) error {
	if len(ids) == 0 {
		return nil
	}
	wait := true
	_, err := r.points.Delete(ctx, &pb.DeletePoints{
		CollectionName: r.collection,
		Wait:           &wait,
		Points: &pb.PointsSelector{PointsSelectorOneOf: &pb.PointsSelector_Points{
			Points: &pb.PointsIdsList{Ids: pointIDs(namespace, ids)},
		}},
	})
	return classifyGRPC("qdrant delete", err)
}

func (r *QdrantStore) Clear(ctx context.Context, namespace string) error {
	wait := true
	_, err := r.points.Delete(ctx, &pb.DeletePoints{
		CollectionName: r.collection,
		Wait:           &wait,
		Points: &pb.PointsSelector{PointsSelectorOneOf: &pb.PointsSelector_Filter{
			Filter: namespaceFilter(namespace),
		}},
	})
	return classifyGRPC("qdrant clear", err)
}

func (r *QdrantStore) List(ctx context.Context, query embeddings.Vector, namespace string, limit int) ([]shot.ScoredShot, error) {
	if limit <= 0 {
		return []shot.ScoredShot{}, nil
	}
	resp, err := r.points.Search(ctx, &pb.SearchPoints{
		CollectionName: r.collection,
		Vector:         query,
		Filter:         namespaceFilter(namespace),
		Limit:          uint64(limit),
		WithPayload:    &pb.WithPayloadSelector{SelectorOptions: &pb.WithPayloadSelector_Enable{Enable: true}},
	})
	if err != nil {
		return nil, classifyGRPC("qdrant search", err)
	}

	results := make([]shot.ScoredShot, 0, len(resp.Result))
	for _, pt := range resp.Result {
		s, err := shotFromPayload(pt.Payload)
		if err != nil {
			return nil, err
		}
		results = append(results, shot.ScoredShot{Distance: r.distance(pt.Score), Shot: s})
	}
	return results, nil
}

func (r *QdrantStore) Get(ctx context.Context, ids []string, namespace string) ([]shot.Shot, error) {
	found := make(map[string]shot.Shot)
	if len(ids) == 0 {
		return orderByRequest(ids, found), nil
	}
	resp, err := r.points.Get(ctx, &pb.GetPoints{
		CollectionName: r.collection,
		Ids:            pointIDs(namespace, ids),
		WithPayload:    &pb.WithPayloadSelector{SelectorOptions: &pb.WithPayloadSelector_Enable{Enable: true}},
	})
	if err != nil {
		return nil, classifyGRPC("qdrant get", err)
	}
	for _, pt := range resp.Result {
		s, err := shotFromPayload(pt.Payload)
		if err != nil {
			return nil, err
		}
		found[s.ID] = s
	}
	return orderByRequest(ids, found), nil
}

func (r *QdrantStore) Close() error {
	return r.conn.Close()
}

// distance converts a Qdrant score: cosine collections report similarity,
// euclidean collections report the distance itself.
func (r *QdrantStore) distance(score float32) float64 {
	if r.euclidean {
		return float64(score)
	}
	d := 1 - float64(score)
	if d < 0 {
		return 0
	}
	return d
}

func pointID(namespace, id string) *pb.PointId {
	u := uuid.NewSHA1(pointNamespace, []byte(namespace+"\x00"+id))
	return &pb.PointId{PointIdOptions: &pb.PointId_Uuid{Uuid: u.String()}}
}

func pointIDs(namespace string, ids []string) []*pb.PointId {
	out := make([]*pb.PointId, len(ids))
	for i, id := range ids {
		out[i] = pointID(namespace, id)
	}
	return out
}

func namespaceFilter(namespace string) *pb.Filter {
	return &pb.Filter{Must: []*pb.Condition{{
		ConditionOneOf: &pb.Condition_Field{Field: &pb.FieldCondition{
			Key:   qdrantNamespaceField,
			Match: &pb.Match{MatchValue: &pb.Match_Keyword{Keyword: namespace}},
		}},
	}}}
}

func stringValue(s string) *pb.Value {
	return &pb.Value{Kind: &pb.Value_StringValue{StringValue: s}}
}

func shotFromPayload(p map[string]*pb.Value) (shot.Shot, error) {
	id := p[qdrantIDField].GetStringValue()
	raw := p[qdrantPayloadField].GetStringValue()
	if id == "" || raw == "" {
		return shot.Shot{}, errors.New("qdrant point is missing shot payload")
	}
	return decodePayload(id, []byte(raw))
}

func classifyGRPC(op string, err error) error {
	if err == nil {
		return nil
	}
	st, ok := status.FromError(err)
	if !ok {
		return fmt.Errorf("%s: %w", op, err)
	}
	switch st.Code() {
	case codes.Unavailable, codes.DeadlineExceeded, codes.ResourceExhausted:
		return Unavailable(op, err)
	case codes.InvalidArgument:
		if strings.Contains(strings.ToLower(st.Message()), "dimension") {
			return fmt.Errorf("%s: %w: %s", op, ErrSchema, st.Message())
		}
	}
	return fmt.Errorf("%s: %w", op, err)
}

var _ Store = (*QdrantStore)(nil)
