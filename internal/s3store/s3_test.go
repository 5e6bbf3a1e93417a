package s3store

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Lllllllleong/datasegmentationflow/internal/config"
	"github.com/Lllllllleong/datasegmentationflow/internal/models"
	"github.com/Lllllllleong/datasegmentationflow/internal/services"
)

type fakeS3 struct {
	objects map[string]string
	puts    []*s3.PutObjectInput
	ranges  []string
	err     error
}

func key(bucket, k *string) string { return aws.ToString(bucket) + "/" + aws.ToString(k) }

func (f *fakeS3) HeadObject(_ context.Context, in *s3.HeadObjectInput, _ ...func(*s3.Options)) (*s3.HeadObjectOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	if _, ok := f.objects[key(in.Bucket, in.Key)]; !ok {
		return nil, &types.NotFound{}
	}
	return &s3.HeadObjectOutput{}, nil
}

func (f *fakeS3) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.ranges = append(f.ranges, aws.ToString(in.Range))
	body, ok := f.objects[key(in.Bucket, in.Key)]
	if !ok {
		return nil, &types.NoSuchKey{}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(strings.NewReader(body))}, nil
}

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	f.puts = append(f.puts, in)
	k := key(in.Bucket, in.Key)
	if _, ok := f.objects[k]; ok && aws.ToString(in.IfNoneMatch) == "*" {
		return nil, &smithy.GenericAPIError{Code: "PreconditionFailed", Message: "At least one of the pre-conditions you specified did not hold"}
	}
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.objects[k] = string(data)
	return &s3.PutObjectOutput{}, nil
}

func ref(k string) models.ObjectRef {
	return models.ObjectRef{Scheme: "s3", Bucket: "data-raw", Key: k}
}

func TestStore_Head(t *testing.T) {
	s := &Store{client: &fakeS3{objects: map[string]string{"data-raw/a.csv": "x"}}}

	ok, err := s.Head(context.Background(), ref("a.csv"))
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.Head(context.Background(), ref("b.csv"))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestStore_HeadTransportError(t *testing.T) {
	s := &Store{client: &fakeS3{err: errors.New("dial tcp: connection refused")}}

	_, err := s.Head(context.Background(), ref("a.csv"))
	assert.Error(t, err)
}

func TestStore_Read(t *testing.T) {
	fake := &fakeS3{objects: map[string]string{"data-raw/a.csv": "id\n1\n"}}
	s := &Store{client: fake}

	data, err := s.Read(context.Background(), ref("a.csv"), 1024)
	require.NoError(t, err)
	assert.Equal(t, "id\n1\n", string(data))
	assert.Equal(t, "bytes=0-1023", fake.ranges[0])

	_, err = s.Read(context.Background(), ref("a.csv"), 0)
	require.NoError(t, err)
	assert.Equal(t, "", fake.ranges[1])

	_, err = s.Read(context.Background(), ref("missing.csv"), 0)
	assert.ErrorIs(t, err, services.ErrObjectNotFound)
}

func TestStore_WriteIsCreateOnly(t *testing.T) {
	fake := &fakeS3{objects: map[string]string{}}
	s := &Store{client: fake}
	ctx := context.Background()

	require.NoError(t, s.Write(ctx, ref("scripts/x.py"), []byte("print(1)"), "text/x-python"))
	assert.Equal(t, "print(1)", fake.objects["data-raw/scripts/x.py"])
	assert.Equal(t, "text/x-python", aws.ToString(fake.puts[0].ContentType))
	assert.Equal(t, "*", aws.ToString(fake.puts[0].IfNoneMatch))

	err := s.Write(ctx, ref("scripts/x.py"), []byte("print(2)"), "text/x-python")
	assert.ErrorIs(t, err, services.ErrObjectExists)
	assert.Equal(t, "print(1)", fake.objects["data-raw/scripts/x.py"])
}

func TestNew(t *testing.T) {
	s := New(config.S3Config{Region: "eu-west-1", Endpoint: "http://localhost:9000", KeyID: "k", Secret: "s"})
	require.NotNil(t, s)
	client, ok := s.client.(*s3.Client)
	require.True(t, ok)
	assert.True(t, client.Options().UsePathStyle)
	assert.Equal(t, "eu-west-1", client.Options().Region)
}
