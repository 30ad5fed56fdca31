package repository

import (
	"context"
	"crypto/tls"
	"fmt"
	"strings"

	pb "github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/renzlucero/capstonehub/internal/logger"
)

const defaultVectorDimension = 768

// QdrantConnectionConfig holds configuration for Qdrant connection
type QdrantConnectionConfig struct {
	Host            string
	Port            int
	Collection      string
	APIKey          string // Qdrant Cloud API Key (enables TLS automatically)
	UseTLS          bool   // Explicitly enable TLS without API Key
	VectorDimension int
}

// apiKeyInterceptor creates a unary interceptor that adds API key to metadata
func apiKeyInterceptor(apiKey string) grpc.UnaryClientInterceptor {
	return func(ctx context.Context, method string, req, reply interface{}, cc *grpc.ClientConn, invoker grpc.UnaryInvoker, opts ...grpc.CallOption) error {
		ctx = metadata.AppendToOutgoingContext(ctx, "api-key", apiKey)
		return invoker(ctx, method, req, reply, cc, opts...)
	}
}

// PointsErrorKind is the closed set of failure reasons the rest of the
// application reasons about. Backend-specific error bodies never leave
// this package.
type PointsErrorKind string

const (
	// KindMissingFieldIndex means the search filter referenced a payload
	// field that has no secondary index yet.
	KindMissingFieldIndex PointsErrorKind = "missing_field_index"
	// KindSearchFailed covers every other search failure.
	KindSearchFailed PointsErrorKind = "search_failed"
	// KindUpsertFailed covers upsert failures.
	KindUpsertFailed PointsErrorKind = "upsert_failed"
	// KindDeleteFailed covers delete failures.
	KindDeleteFailed PointsErrorKind = "delete_failed"
)

// PointsError carries a machine-readable reason code for a vector index
// failure, plus the payload field involved for the missing-index case.
type PointsError struct {
	Kind  PointsErrorKind
	Field string
	Err   error
}

func (e *PointsError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("qdrant %s (field %q): %v", e.Kind, e.Field, e.Err)
	}
	return fmt.Sprintf("qdrant %s: %v", e.Kind, e.Err)
}

func (e *PointsError) Unwrap() error {
	return e.Err
}

// classifySearchError translates a raw backend search error into a
// PointsError. Detecting the missing-index case by message content is a
// fragile integration detail of Qdrant's API, so it is isolated here.
func classifySearchError(err error) *PointsError {
	msg := status.Convert(err).Message()
	if strings.Contains(msg, "Index required but not found") {
		return &PointsError{
			Kind:  KindMissingFieldIndex,
			Field: quotedField(msg),
			Err:   err,
		}
	}
	return &PointsError{Kind: KindSearchFailed, Err: err}
}

// quotedField extracts the first double-quoted token from an error message,
// which is how Qdrant names the unindexed field.
func quotedField(msg string) string {
	start := strings.Index(msg, `"`)
	if start < 0 {
		return ""
	}
	rest := msg[start+1:]
	end := strings.Index(rest, `"`)
	if end < 0 {
		return ""
	}
	return rest[:end]
}

// CapstonePayload is the denormalized subset of a capstone record stored
// with its vector. It is a display/filter cache, eventually consistent with
// the relational store.
type CapstonePayload struct {
	CapstoneID int64  `json:"capstone_id"`
	Title      string `json:"title"`
	CategoryID int64  `json:"category_id"`
	Category   string `json:"category"`
	Abstract   string `json:"abstract"`
	UpdatedAt  string `json:"updated_at"`
}

// ScoredPoint is one similarity search hit, most-similar first in results.
type ScoredPoint struct {
	ID      int64
	Score   float32
	Payload *CapstonePayload
}

// QdrantRepository handles vector operations with Qdrant. Point ids map 1:1
// to capstone record ids (numeric point ids), a documented invariant of the
// system rather than incidental coupling.
type QdrantRepository struct {
	conn            *grpc.ClientConn
	pointsClient    pb.PointsClient
	collectClient   pb.CollectionsClient
	collectionName  string
	vectorDimension int
}

// NewQdrantRepository creates a new QdrantRepository.
// Supports both local Qdrant (insecure) and Qdrant Cloud (TLS + API Key).
func NewQdrantRepository(cfg *QdrantConnectionConfig) (*QdrantRepository, error) {
	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)

	vectorDimension := cfg.VectorDimension
	if vectorDimension <= 0 {
		vectorDimension = defaultVectorDimension
	}

	var opts []grpc.DialOption

	// TLS is enabled if: APIKey is set OR UseTLS is explicitly true
	useTLS := cfg.UseTLS || cfg.APIKey != ""

	if useTLS {
		tlsConfig := &tls.Config{
			MinVersion: tls.VersionTLS13,
		}
		creds := credentials.NewTLS(tlsConfig)
		opts = append(opts, grpc.WithTransportCredentials(creds))

		if cfg.APIKey != "" {
			opts = append(opts, grpc.WithUnaryInterceptor(apiKeyInterceptor(cfg.APIKey)))
		}
	} else {
		opts = append(opts, grpc.WithTransportCredentials(insecure.NewCredentials()))
	}

	conn, err := grpc.NewClient(addr, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to qdrant: %w", err)
	}

	return &QdrantRepository{
		conn:            conn,
		pointsClient:    pb.NewPointsClient(conn),
		collectClient:   pb.NewCollectionsClient(conn),
		collectionName:  cfg.Collection,
		vectorDimension: vectorDimension,
	}, nil
}

// Close closes the gRPC connection.
func (r *QdrantRepository) Close() error {
	return r.conn.Close()
}

// EnsureCollection creates the collection if it doesn't exist, and verifies
// the vector size of an existing one against the configured dimensionality.
func (r *QdrantRepository) EnsureCollection(ctx context.Context) error {
	info, err := r.collectClient.Get(ctx, &pb.GetCollectionInfoRequest{
		CollectionName: r.collectionName,
	})
	if err == nil {
		if size, ok := collectionVectorSize(info.GetResult()); ok {
			if size != uint64(r.vectorDimension) {
				return fmt.Errorf("collection %s has vector size %d, expected %d", r.collectionName, size, r.vectorDimension)
			}
		}
		return nil
	}

	_, err = r.collectClient.Create(ctx, &pb.CreateCollection{
		CollectionName: r.collectionName,
		VectorsConfig: &pb.VectorsConfig{
			Config: &pb.VectorsConfig_Params{
				Params: &pb.VectorParams{
					Size:     uint64(r.vectorDimension),
					Distance: pb.Distance_Cosine,
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to create collection: %w", err)
	}

	return nil
}

func collectionVectorSize(info *pb.CollectionInfo) (uint64, bool) {
	if info == nil {
		return 0, false
	}

	config := info.GetConfig()
	if config == nil {
		return 0, false
	}

	params := config.GetParams()
	if params == nil {
		return 0, false
	}

	vectors := params.GetVectorsConfig()
	if vectors == nil {
		return 0, false
	}

	if single := vectors.GetParams(); single != nil {
		if size := single.GetSize(); size > 0 {
			return size, true
		}
	}

	return 0, false
}

// Upsert inserts or updates the point for a capstone record. The write waits
// for index visibility before returning, so a successful return means the
// point is immediately searchable.
func (r *QdrantRepository) Upsert(ctx context.Context, id int64, vector []float32, payload *CapstonePayload) error {
	points := []*pb.PointStruct{
		{
			Id: numericPointID(id),
			Vectors: &pb.Vectors{
				VectorsOptions: &pb.Vectors_Vector{
					Vector: &pb.Vector{
						Data: vector,
					},
				},
			},
			Payload: map[string]*pb.Value{
				"capstone_id": {Kind: &pb.Value_IntegerValue{IntegerValue: payload.CapstoneID}},
				"title":       {Kind: &pb.Value_StringValue{StringValue: payload.Title}},
				"category_id": {Kind: &pb.Value_IntegerValue{IntegerValue: payload.CategoryID}},
				"category":    {Kind: &pb.Value_StringValue{StringValue: payload.Category}},
				"abstract":    {Kind: &pb.Value_StringValue{StringValue: payload.Abstract}},
				"updated_at":  {Kind: &pb.Value_StringValue{StringValue: payload.UpdatedAt}},
			},
		},
	}

	_, err := r.pointsClient.Upsert(ctx, &pb.UpsertPoints{
		CollectionName: r.collectionName,
		Wait:           optionalBool(true),
		Points:         points,
	})
	if err != nil {
		return &PointsError{Kind: KindUpsertFailed, Err: err}
	}

	return nil
}

// Delete removes the point for a capstone record. Used as a compensating
// action; callers log-and-continue when it fails.
func (r *QdrantRepository) Delete(ctx context.Context, id int64) error {
	_, err := r.pointsClient.Delete(ctx, &pb.DeletePoints{
		CollectionName: r.collectionName,
		Wait:           optionalBool(true),
		Points: &pb.PointsSelector{
			PointsSelectorOneOf: &pb.PointsSelector_Points{
				Points: &pb.PointsIdsList{
					Ids: []*pb.PointId{numericPointID(id)},
				},
			},
		},
	})
	if err != nil {
		return &PointsError{Kind: KindDeleteFailed, Err: err}
	}

	return nil
}

// Search performs a nearest-neighbor search restricted to one category.
// When the category_id payload field has no secondary index yet, the index
// is created on demand and the search retried exactly once; a second failure
// is fatal for the call.
func (r *QdrantRepository) Search(ctx context.Context, vector []float32, limit int, categoryID int64) ([]ScoredPoint, error) {
	results, err := r.searchOnce(ctx, vector, limit, categoryID)
	if err == nil {
		return results, nil
	}

	perr := classifySearchError(err)
	if perr.Kind != KindMissingFieldIndex {
		return nil, perr
	}

	field := perr.Field
	if field == "" {
		field = "category_id"
	}
	logger.CtxWarn(ctx, "Payload index missing, creating and retrying once: field=%s, collection=%s", field, r.collectionName)

	if err := r.EnsureFieldIndex(ctx, field); err != nil {
		return nil, err
	}

	results, err = r.searchOnce(ctx, vector, limit, categoryID)
	if err != nil {
		return nil, &PointsError{Kind: KindSearchFailed, Err: err}
	}
	return results, nil
}

func (r *QdrantRepository) searchOnce(ctx context.Context, vector []float32, limit int, categoryID int64) ([]ScoredPoint, error) {
	req := &pb.SearchPoints{
		CollectionName: r.collectionName,
		Vector:         vector,
		Limit:          uint64(limit),
		WithPayload: &pb.WithPayloadSelector{
			SelectorOptions: &pb.WithPayloadSelector_Enable{Enable: true},
		},
	}

	if categoryID > 0 {
		req.Filter = &pb.Filter{
			Must: []*pb.Condition{
				{
					ConditionOneOf: &pb.Condition_Field{
						Field: &pb.FieldCondition{
							Key: "category_id",
							Match: &pb.Match{
								MatchValue: &pb.Match_Integer{Integer: categoryID},
							},
						},
					},
				},
			},
		}
	}

	resp, err := r.pointsClient.Search(ctx, req)
	if err != nil {
		return nil, err
	}

	results := make([]ScoredPoint, len(resp.Result))
	for i, scored := range resp.Result {
		results[i] = ScoredPoint{
			ID:      int64(scored.GetId().GetNum()),
			Score:   scored.Score,
			Payload: parsePayload(scored.Payload),
		}
	}

	return results, nil
}

// EnsureFieldIndex creates an integer payload index for the given field.
// The only filterable field in this system is category_id, so the schema is
// fixed to integer.
func (r *QdrantRepository) EnsureFieldIndex(ctx context.Context, field string) error {
	_, err := r.pointsClient.CreateFieldIndex(ctx, &pb.CreateFieldIndexCollection{
		CollectionName: r.collectionName,
		Wait:           optionalBool(true),
		FieldName:      field,
		FieldType:      pb.FieldType_FieldTypeInteger.Enum(),
	})
	if err != nil {
		return fmt.Errorf("failed to create payload index for %q: %w", field, err)
	}
	return nil
}

func parsePayload(payload map[string]*pb.Value) *CapstonePayload {
	if payload == nil {
		return nil
	}

	p := &CapstonePayload{}
	if v, ok := payload["capstone_id"]; ok {
		p.CapstoneID = v.GetIntegerValue()
	}
	if v, ok := payload["title"]; ok {
		p.Title = v.GetStringValue()
	}
	if v, ok := payload["category_id"]; ok {
		p.CategoryID = v.GetIntegerValue()
	}
	if v, ok := payload["category"]; ok {
		p.Category = v.GetStringValue()
	}
	if v, ok := payload["abstract"]; ok {
		p.Abstract = v.GetStringValue()
	}
	if v, ok := payload["updated_at"]; ok {
		p.UpdatedAt = v.GetStringValue()
	}

	return p
}

func numericPointID(id int64) *pb.PointId {
	return &pb.PointId{
		PointIdOptions: &pb.PointId_Num{Num: uint64(id)},
	}
}

func optionalBool(v bool) *bool {
	return &v
}
