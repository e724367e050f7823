package s3store

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/KaramelBytes/dataprof/internal/storage"
)

// fakeS3 is an in-memory bucket recording the calls Store makes.
type fakeS3 struct {
	exists  bool
	headErr error
	created *s3.CreateBucketInput
	cors    *s3.PutBucketCorsInput
	objects map[string]*s3.PutObjectInput
	bodies  map[string][]byte
}

func newFake() *fakeS3 {
	return &fakeS3{objects: map[string]*s3.PutObjectInput{}, bodies: map[string][]byte{}}
}

func (f *fakeS3) HeadBucket(_ context.Context, in *s3.HeadBucketInput, _ ...func(*s3.Options)) (*s3.HeadBucketOutput, error) {
	if f.headErr != nil {
		return nil, f.headErr
	}
	if !f.exists {
		return nil, &types.NotFound{}
	}
	return &s3.HeadBucketOutput{}, nil
}

func (f *fakeS3) CreateBucket(_ context.Context, in *s3.CreateBucketInput, _ ...func(*s3.Options)) (*s3.CreateBucketOutput, error) {
	f.created = in
	f.exists = true
	return &s3.CreateBucketOutput{}, nil
}

func (f *fakeS3) PutBucketCors(_ context.Context, in *s3.PutBucketCorsInput, _ ...func(*s3.Options)) (*s3.PutBucketCorsOutput, error) {
	f.cors = in
	return &s3.PutBucketCorsOutput{}, nil
}

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	b, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.objects[aws.ToString(in.Key)] = in
	f.bodies[aws.ToString(in.Key)] = b
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	key := aws.ToString(in.Key)
	b, ok := f.bodies[key]
	if !ok {
		return nil, &types.NoSuchKey{}
	}
	return &s3.GetObjectOutput{
		Body:        io.NopCloser(bytes.NewReader(b)),
		ContentType: f.objects[key].ContentType,
	}, nil
}

func TestInit_CreatesBucketAndCORS(t *testing.T) {
	fake := newFake()
	st := newWithAPI(fake, storage.S3Config{Bucket: "b1", Region: "us-west-2", AllowedOrigins: []string{"https://app.example"}})
	if err := st.Init(context.Background()); err != nil {
		t.Fatalf("Init: %v", err)
	}
	if fake.created == nil || aws.ToString(fake.created.Bucket) != "b1" {
		t.Fatalf("bucket not created: %+v", fake.created)
	}
	if got := fake.created.CreateBucketConfiguration.LocationConstraint; got != types.BucketLocationConstraint("us-west-2") {
		t.Fatalf("location constraint=%q", got)
	}
	rule := fake.cors.CORSConfiguration.CORSRules[0]
	if len(rule.AllowedOrigins) != 1 || rule.AllowedOrigins[0] != "https://app.example" {
		t.Fatalf("cors origins=%v", rule.AllowedOrigins)
	}

	// second Init finds the bucket and only refreshes CORS
	fake.created = nil
	if err := st.Init(context.Background()); err != nil {
		t.Fatalf("second Init: %v", err)
	}
	if fake.created != nil {
		t.Fatalf("existing bucket must not be recreated")
	}
}

func TestInit_UsEast1HasNoLocationConstraint(t *testing.T) {
	fake := newFake()
	st := newWithAPI(fake, storage.S3Config{Bucket: "b1", Region: "us-east-1"})
	if err := st.Init(context.Background()); err != nil {
		t.Fatalf("Init: %v", err)
	}
	if fake.created.CreateBucketConfiguration != nil {
		t.Fatalf("us-east-1 must not send a location constraint")
	}
	if got := fake.cors.CORSConfiguration.CORSRules[0].AllowedOrigins; len(got) != 1 || got[0] != "*" {
		t.Fatalf("default origins=%v", got)
	}
}

func TestInit_HeadErrorIsReturned(t *testing.T) {
	fake := newFake()
	boom := errors.New("access denied")
	fake.headErr = boom
	st := newWithAPI(fake, storage.S3Config{Bucket: "b1", Region: "us-west-2"})
	if err := st.Init(context.Background()); !errors.Is(err, boom) {
		t.Fatalf("expected head error, got %v", err)
	}
	if fake.created != nil {
		t.Fatalf("bucket must not be created on unexpected errors")
	}
}

func TestPutGet(t *testing.T) {
	fake := newFake()
	st := newWithAPI(fake, storage.S3Config{Bucket: "b1", Region: "us-west-2"})
	ctx := context.Background()
	key := storage.Key("ds", storage.OriginalCSV)
	if err := st.Put(ctx, key, []byte("a\n1\n"), ""); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if got := aws.ToString(fake.objects[key].ContentType); got != "text/csv" {
		t.Fatalf("content type=%q", got)
	}
	obj, err := st.Get(ctx, key)
	if err != nil || string(obj.Data) != "a\n1\n" || obj.ContentType != "text/csv" {
		t.Fatalf("Get: %v %+v", err, obj)
	}
	if _, err := st.Get(ctx, "ds/none.json"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := st.Put(ctx, "/abs", nil, ""); err == nil {
		t.Fatalf("expected invalid key error")
	}
}
