package repository

import (
	"context"
	"errors"
	"testing"

	pb "github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// missingIndexMessage mirrors the error body Qdrant returns when a filter
// references an unindexed payload field.
const missingIndexMessage = `Index required but not found for "category_id" of one of the following types: [integer]`

// fakePointsClient implements the subset of pb.PointsClient the repository
// exercises; everything else panics via the embedded nil interface.
type fakePointsClient struct {
	pb.PointsClient

	searchErrs  []error
	searchResp  *pb.SearchResponse
	searchCalls int

	fieldIndexErr   error
	fieldIndexCalls int
	fieldIndexNames []string

	upsertErr error
	upsertReq *pb.UpsertPoints

	deleteErr error
	deleteReq *pb.DeletePoints
}

func (f *fakePointsClient) Search(ctx context.Context, in *pb.SearchPoints, opts ...grpc.CallOption) (*pb.SearchResponse, error) {
	call := f.searchCalls
	f.searchCalls++
	if call < len(f.searchErrs) && f.searchErrs[call] != nil {
		return nil, f.searchErrs[call]
	}
	if f.searchResp != nil {
		return f.searchResp, nil
	}
	return &pb.SearchResponse{}, nil
}

func (f *fakePointsClient) CreateFieldIndex(ctx context.Context, in *pb.CreateFieldIndexCollection, opts ...grpc.CallOption) (*pb.PointsOperationResponse, error) {
	f.fieldIndexCalls++
	f.fieldIndexNames = append(f.fieldIndexNames, in.FieldName)
	if f.fieldIndexErr != nil {
		return nil, f.fieldIndexErr
	}
	return &pb.PointsOperationResponse{}, nil
}

func (f *fakePointsClient) Upsert(ctx context.Context, in *pb.UpsertPoints, opts ...grpc.CallOption) (*pb.PointsOperationResponse, error) {
	f.upsertReq = in
	if f.upsertErr != nil {
		return nil, f.upsertErr
	}
	return &pb.PointsOperationResponse{}, nil
}

func (f *fakePointsClient) Delete(ctx context.Context, in *pb.DeletePoints, opts ...grpc.CallOption) (*pb.PointsOperationResponse, error) {
	f.deleteReq = in
	if f.deleteErr != nil {
		return nil, f.deleteErr
	}
	return &pb.PointsOperationResponse{}, nil
}

func newTestRepo(client *fakePointsClient) *QdrantRepository {
	return &QdrantRepository{
		pointsClient:    client,
		collectionName:  "capstones",
		vectorDimension: 4,
	}
}

func TestClassifySearchError(t *testing.T) {
	testCases := []struct {
		name      string
		err       error
		wantKind  PointsErrorKind
		wantField string
	}{
		{
			name:      "missing index with field",
			err:       status.Error(codes.InvalidArgument, missingIndexMessage),
			wantKind:  KindMissingFieldIndex,
			wantField: "category_id",
		},
		{
			name:     "missing index without quoted field",
			err:      status.Error(codes.InvalidArgument, "Index required but not found"),
			wantKind: KindMissingFieldIndex,
		},
		{
			name:     "unrelated grpc error",
			err:      status.Error(codes.Unavailable, "connection refused"),
			wantKind: KindSearchFailed,
		},
		{
			name:     "plain error",
			err:      errors.New("boom"),
			wantKind: KindSearchFailed,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			perr := classifySearchError(tc.err)
			if perr.Kind != tc.wantKind {
				t.Errorf("Kind: got %q, want %q", perr.Kind, tc.wantKind)
			}
			if perr.Field != tc.wantField {
				t.Errorf("Field: got %q, want %q", perr.Field, tc.wantField)
			}
			if !errors.Is(perr, tc.err) {
				t.Error("PointsError must wrap the original error")
			}
		})
	}
}

func TestQuotedField(t *testing.T) {
	testCases := []struct {
		msg  string
		want string
	}{
		{msg: missingIndexMessage, want: "category_id"},
		{msg: `no quotes here`, want: ""},
		{msg: `dangling "quote`, want: ""},
		{msg: `"first" and "second"`, want: "first"},
	}

	for _, tc := range testCases {
		if got := quotedField(tc.msg); got != tc.want {
			t.Errorf("quotedField(%q): got %q, want %q", tc.msg, got, tc.want)
		}
	}
}

func TestSearchCreatesMissingIndexAndRetriesOnce(t *testing.T) {
	client := &fakePointsClient{
		searchErrs: []error{status.Error(codes.InvalidArgument, missingIndexMessage)},
		searchResp: &pb.SearchResponse{
			Result: []*pb.ScoredPoint{
				{
					Id:    numericPointID(42),
					Score: 0.91,
					Payload: map[string]*pb.Value{
						"capstone_id": {Kind: &pb.Value_IntegerValue{IntegerValue: 42}},
						"title":       {Kind: &pb.Value_StringValue{StringValue: "A Title"}},
						"category_id": {Kind: &pb.Value_IntegerValue{IntegerValue: 7}},
					},
				},
			},
		},
	}
	r := newTestRepo(client)

	results, err := r.Search(context.Background(), []float32{0.1, 0.2, 0.3, 0.4}, 5, 7)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}

	if client.searchCalls != 2 {
		t.Errorf("Search calls: got %d, want 2 (original + one retry)", client.searchCalls)
	}
	if client.fieldIndexCalls != 1 {
		t.Errorf("CreateFieldIndex calls: got %d, want 1", client.fieldIndexCalls)
	}
	if len(client.fieldIndexNames) != 1 || client.fieldIndexNames[0] != "category_id" {
		t.Errorf("Indexed field: got %v, want [category_id]", client.fieldIndexNames)
	}

	if len(results) != 1 {
		t.Fatalf("Results: got %d, want 1", len(results))
	}
	if results[0].ID != 42 {
		t.Errorf("Result id: got %d, want 42", results[0].ID)
	}
	if results[0].Payload == nil || results[0].Payload.Title != "A Title" {
		t.Errorf("Result payload: %+v", results[0].Payload)
	}
}

func TestSearchRetriesExactlyOnce(t *testing.T) {
	// The index is created but the retry hits the same error again; the
	// second failure is final.
	client := &fakePointsClient{
		searchErrs: []error{
			status.Error(codes.InvalidArgument, missingIndexMessage),
			status.Error(codes.InvalidArgument, missingIndexMessage),
		},
	}
	r := newTestRepo(client)

	_, err := r.Search(context.Background(), []float32{0.1}, 5, 7)
	if err == nil {
		t.Fatal("Expected the retried search to fail")
	}
	var perr *PointsError
	if !errors.As(err, &perr) || perr.Kind != KindSearchFailed {
		t.Errorf("Expected a final search_failed error, got %v", err)
	}
	if client.searchCalls != 2 {
		t.Errorf("Search calls: got %d, want 2", client.searchCalls)
	}
	if client.fieldIndexCalls != 1 {
		t.Errorf("CreateFieldIndex calls: got %d, want 1", client.fieldIndexCalls)
	}
}

func TestSearchDoesNotRetryOtherErrors(t *testing.T) {
	client := &fakePointsClient{
		searchErrs: []error{status.Error(codes.Unavailable, "connection refused")},
	}
	r := newTestRepo(client)

	_, err := r.Search(context.Background(), []float32{0.1}, 5, 7)
	var perr *PointsError
	if !errors.As(err, &perr) || perr.Kind != KindSearchFailed {
		t.Fatalf("Expected search_failed, got %v", err)
	}
	if client.searchCalls != 1 {
		t.Errorf("Search calls: got %d, want 1", client.searchCalls)
	}
	if client.fieldIndexCalls != 0 {
		t.Errorf("CreateFieldIndex calls: got %d, want 0", client.fieldIndexCalls)
	}
}

func TestSearchIndexCreationFailureIsFatal(t *testing.T) {
	client := &fakePointsClient{
		searchErrs:    []error{status.Error(codes.InvalidArgument, missingIndexMessage)},
		fieldIndexErr: status.Error(codes.Unavailable, "connection refused"),
	}
	r := newTestRepo(client)

	if _, err := r.Search(context.Background(), []float32{0.1}, 5, 7); err == nil {
		t.Fatal("Expected an error when index creation fails")
	}
	if client.searchCalls != 1 {
		t.Errorf("Search calls: got %d, want 1 (no retry without an index)", client.searchCalls)
	}
}

func TestUpsertUsesRecordIDAsPointID(t *testing.T) {
	client := &fakePointsClient{}
	r := newTestRepo(client)

	payload := &CapstonePayload{CapstoneID: 42, Title: "A Title", CategoryID: 7, Category: "IoT"}
	if err := r.Upsert(context.Background(), 42, []float32{0.1, 0.2, 0.3, 0.4}, payload); err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}

	req := client.upsertReq
	if req == nil || len(req.Points) != 1 {
		t.Fatalf("Unexpected upsert request: %+v", req)
	}
	if got := req.Points[0].Id.GetNum(); got != 42 {
		t.Errorf("Point id: got %d, want 42", got)
	}
	if req.Wait == nil || !*req.Wait {
		t.Error("Upsert must wait for index visibility")
	}
	if got := req.Points[0].Payload["category_id"].GetIntegerValue(); got != 7 {
		t.Errorf("category_id payload: got %d, want 7", got)
	}
}

func TestUpsertErrorKind(t *testing.T) {
	client := &fakePointsClient{upsertErr: status.Error(codes.Unavailable, "down")}
	r := newTestRepo(client)

	err := r.Upsert(context.Background(), 1, []float32{0.1}, &CapstonePayload{})
	var perr *PointsError
	if !errors.As(err, &perr) || perr.Kind != KindUpsertFailed {
		t.Errorf("Expected upsert_failed, got %v", err)
	}
}

func TestDeleteTargetsPointID(t *testing.T) {
	client := &fakePointsClient{}
	r := newTestRepo(client)

	if err := r.Delete(context.Background(), 42); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}

	req := client.deleteReq
	ids := req.GetPoints().GetPoints().GetIds()
	if len(ids) != 1 || ids[0].GetNum() != 42 {
		t.Errorf("Delete ids: %+v", ids)
	}
	if req.Wait == nil || !*req.Wait {
		t.Error("Delete must wait for index visibility")
	}
}

func TestDeleteErrorKind(t *testing.T) {
	client := &fakePointsClient{deleteErr: status.Error(codes.Unavailable, "down")}
	r := newTestRepo(client)

	err := r.Delete(context.Background(), 1)
	var perr *PointsError
	if !errors.As(err, &perr) || perr.Kind != KindDeleteFailed {
		t.Errorf("Expected delete_failed, got %v", err)
	}
}
