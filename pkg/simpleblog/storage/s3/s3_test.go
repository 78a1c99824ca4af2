package s3

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/tendant/simple-blog/pkg/simpleblog"
)

type mockClient struct {
	mock.Mock
}

func (m *mockClient) HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error) {
	args := m.Called(ctx, params)
	out, _ := args.Get(0).(*s3.HeadObjectOutput)
	return out, args.Error(1)
}

func (m *mockClient) DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	args := m.Called(ctx, params)
	out, _ := args.Get(0).(*s3.DeleteObjectOutput)
	return out, args.Error(1)
}

func (m *mockClient) ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	args := m.Called(ctx, params)
	out, _ := args.Get(0).(*s3.ListObjectsV2Output)
	return out, args.Error(1)
}

func (m *mockClient) HeadBucket(ctx context.Context, params *s3.HeadBucketInput, optFns ...func(*s3.Options)) (*s3.HeadBucketOutput, error) {
	args := m.Called(ctx, params)
	out, _ := args.Get(0).(*s3.HeadBucketOutput)
	return out, args.Error(1)
}

func (m *mockClient) CreateBucket(ctx context.Context, params *s3.CreateBucketInput, optFns ...func(*s3.Options)) (*s3.CreateBucketOutput, error) {
	args := m.Called(ctx, params)
	out, _ := args.Get(0).(*s3.CreateBucketOutput)
	return out, args.Error(1)
}

type mockUploader struct {
	mock.Mock
}

func (m *mockUploader) Upload(ctx context.Context, input *s3.PutObjectInput, opts ...func(*manager.Uploader)) (*manager.UploadOutput, error) {
	args := m.Called(ctx, input)
	out, _ := args.Get(0).(*manager.UploadOutput)
	return out, args.Error(1)
}

func TestS3Backend_EmptyBucket(t *testing.T) {
	_, err := New(Config{Region: "us-east-1"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bucket name is required")
}

func TestS3Backend_UploadWithParams(t *testing.T) {
	client := &mockClient{}
	up := &mockUploader{}
	backend := newBackend(Config{Bucket: "blog"}, client, up)
	ctx := context.Background()

	up.On("Upload", ctx, mock.MatchedBy(func(in *s3.PutObjectInput) bool {
		return aws.ToString(in.Bucket) == "blog" &&
			aws.ToString(in.Key) == "simpleblog/avatars/a.png" &&
			aws.ToString(in.ContentType) == "image/png"
	})).Return(&manager.UploadOutput{}, nil).Once()

	err := backend.UploadWithParams(ctx, strings.NewReader("png"), simpleblog.UploadParams{
		ObjectKey: "simpleblog/avatars/a.png",
		MimeType:  "image/png",
	})
	require.NoError(t, err)
	up.AssertExpectations(t)

	up.On("Upload", ctx, mock.Anything).Return(nil, errors.New("connection reset")).Once()
	err = backend.UploadWithParams(ctx, strings.NewReader("png"), simpleblog.UploadParams{ObjectKey: "k"})
	assert.ErrorContains(t, err, "connection reset")
}

func TestS3Backend_GetObjectURL(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name   string
		config Config
		want   string
	}{
		{
			name:   "public base url",
			config: Config{Bucket: "blog", Region: "us-east-1", PublicBaseURL: "https://cdn.example.com/"},
			want:   "https://cdn.example.com/simpleblog/blogs/a%20b.png",
		},
		{
			name:   "custom endpoint",
			config: Config{Bucket: "blog", Region: "us-east-1", Endpoint: "http://localhost:9000"},
			want:   "http://localhost:9000/blog/simpleblog/blogs/a%20b.png",
		},
		{
			name:   "aws virtual host",
			config: Config{Bucket: "blog", Region: "eu-west-1"},
			want:   "https://blog.s3.eu-west-1.amazonaws.com/simpleblog/blogs/a%20b.png",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			backend := newBackend(tt.config, &mockClient{}, &mockUploader{})
			got, err := backend.GetObjectURL(ctx, "simpleblog/blogs/a b.png")
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestS3Backend_GetObjectMeta(t *testing.T) {
	client := &mockClient{}
	backend := newBackend(Config{Bucket: "blog"}, client, &mockUploader{})
	ctx := context.Background()
	modified := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	client.On("HeadObject", ctx, mock.MatchedBy(func(in *s3.HeadObjectInput) bool {
		return aws.ToString(in.Key) == "present"
	})).Return(&s3.HeadObjectOutput{
		ContentLength: aws.Int64(42),
		ContentType:   aws.String("image/jpeg"),
		LastModified:  aws.Time(modified),
	}, nil)
	client.On("HeadObject", ctx, mock.MatchedBy(func(in *s3.HeadObjectInput) bool {
		return aws.ToString(in.Key) == "missing"
	})).Return(nil, &smithy.GenericAPIError{Code: "NotFound", Message: "Not Found"})

	meta, err := backend.GetObjectMeta(ctx, "present")
	require.NoError(t, err)
	assert.Equal(t, int64(42), meta.Size)
	assert.Equal(t, "image/jpeg", meta.ContentType)
	assert.Equal(t, modified, meta.UpdatedAt)

	_, err = backend.GetObjectMeta(ctx, "missing")
	assert.ErrorIs(t, err, simpleblog.ErrObjectNotFound)
}

func TestS3Backend_ListPaginates(t *testing.T) {
	client := &mockClient{}
	backend := newBackend(Config{Bucket: "blog"}, client, &mockUploader{})
	ctx := context.Background()

	client.On("ListObjectsV2", mock.Anything, mock.MatchedBy(func(in *s3.ListObjectsV2Input) bool {
		return in.ContinuationToken == nil && aws.ToString(in.Prefix) == "simpleblog/"
	})).Return(&s3.ListObjectsV2Output{
		Contents:              []types.Object{{Key: aws.String("simpleblog/avatars/1.png"), Size: aws.Int64(1)}},
		IsTruncated:           aws.Bool(true),
		NextContinuationToken: aws.String("page-2"),
	}, nil).Once()
	client.On("ListObjectsV2", mock.Anything, mock.MatchedBy(func(in *s3.ListObjectsV2Input) bool {
		return aws.ToString(in.ContinuationToken) == "page-2"
	})).Return(&s3.ListObjectsV2Output{
		Contents:    []types.Object{{Key: aws.String("simpleblog/blogs/2.png"), Size: aws.Int64(2)}},
		IsTruncated: aws.Bool(false),
	}, nil).Once()

	metas, err := backend.List(ctx, "simpleblog/")
	require.NoError(t, err)
	require.Len(t, metas, 2)
	assert.Equal(t, "simpleblog/avatars/1.png", metas[0].Key)
	assert.Equal(t, "simpleblog/blogs/2.png", metas[1].Key)
	client.AssertExpectations(t)
}

func TestS3Backend_Delete(t *testing.T) {
	client := &mockClient{}
	backend := newBackend(Config{Bucket: "blog"}, client, &mockUploader{})
	ctx := context.Background()

	client.On("DeleteObject", ctx, mock.Anything).Return(&s3.DeleteObjectOutput{}, nil).Once()
	require.NoError(t, backend.Delete(ctx, "simpleblog/blogs/1.png"))

	client.On("DeleteObject", ctx, mock.Anything).Return(nil, errors.New("timeout")).Once()
	assert.ErrorContains(t, backend.Delete(ctx, "simpleblog/blogs/1.png"), "timeout")
}

func TestS3Backend_CreateBucketIfNotExists(t *testing.T) {
	ctx := context.Background()

	t.Run("exists", func(t *testing.T) {
		client := &mockClient{}
		backend := newBackend(Config{Bucket: "blog", Region: "us-east-1"}, client, &mockUploader{})
		client.On("HeadBucket", ctx, mock.Anything).Return(&s3.HeadBucketOutput{}, nil)

		require.NoError(t, backend.createBucketIfNotExists(ctx))
		client.AssertNotCalled(t, "CreateBucket", mock.Anything, mock.Anything)
	})

	t.Run("missing", func(t *testing.T) {
		client := &mockClient{}
		backend := newBackend(Config{Bucket: "blog", Region: "eu-west-1"}, client, &mockUploader{})
		client.On("HeadBucket", ctx, mock.Anything).Return(nil, &types.NotFound{})
		client.On("CreateBucket", ctx, mock.MatchedBy(func(in *s3.CreateBucketInput) bool {
			return in.CreateBucketConfiguration != nil &&
				in.CreateBucketConfiguration.LocationConstraint == types.BucketLocationConstraint("eu-west-1")
		})).Return(&s3.CreateBucketOutput{}, nil)

		require.NoError(t, backend.createBucketIfNotExists(ctx))
		client.AssertExpectations(t)
	})
}
