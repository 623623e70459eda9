package objectstore_test

import (
	"bytes"
	"context"
	"io"
	"testing"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/request"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/stretchr/testify/require"

	"github.com/dwspace/dwc/internal/resource/objectstore"
)

// fakeS3 is an in-memory stand-in for the narrow s3API surface the backend
// uses, good enough to exercise manifest listing/round-tripping without a
// real bucket.
type fakeS3 struct {
	objects map[string][]byte // key (with prefix) -> current content
}

func (f *fakeS3) ListObjectVersionsWithContext(
	_ aws.Context, in *s3.ListObjectVersionsInput, _ ...request.Option,
) (*s3.ListObjectVersionsOutput, error) {
	prefix := aws.StringValue(in.Prefix)

	var versions []*s3.ObjectVersion

	for key := range f.objects {
		if len(key) < len(prefix) || key[:len(prefix)] != prefix {
			continue
		}

		k, v := key, "v-"+key

		versions = append(versions, &s3.ObjectVersion{
			Key:       aws.String(k),
			VersionId: aws.String(v),
			IsLatest:  aws.Bool(true),
		})
	}

	return &s3.ListObjectVersionsOutput{Versions: versions}, nil
}

func (f *fakeS3) PutObjectWithContext(
	_ aws.Context, in *s3.PutObjectInput, _ ...request.Option,
) (*s3.PutObjectOutput, error) {
	buf, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}

	f.objects[aws.StringValue(in.Key)] = buf

	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) GetObjectWithContext(
	_ aws.Context, in *s3.GetObjectInput, _ ...request.Option,
) (*s3.GetObjectOutput, error) {
	content, ok := f.objects[aws.StringValue(in.Key)]
	if !ok {
		return nil, &s3.NoSuchKey{}
	}

	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(content))}, nil
}

func TestSnapshotWritesManifestAndActivatesOnRestore(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	fake := &fakeS3{objects: map[string][]byte{
		"data/a.csv": []byte("1,2,3"),
		"data/b.csv": []byte("4,5,6"),
	}}

	adaptor := objectstore.New("bucket-data", "my-bucket", "data", fake, t.TempDir())

	hash, token, err := adaptor.Snapshot(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, hash)
	require.Equal(t, hash, token)

	require.NoError(t, adaptor.PrecheckRestore(ctx, hash, token))
	require.NoError(t, adaptor.Restore(ctx, hash, token))

	keys, err := adaptor.Ls(ctx, "")
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"a.csv", "b.csv"}, keys)

	r, err := adaptor.Open(ctx, "a.csv")
	require.NoError(t, err)

	content, err := io.ReadAll(r)
	require.NoError(t, err)
	require.Equal(t, "1,2,3", string(content))
}

func TestPrecheckRestore_RefusesUnknownHash(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	fake := &fakeS3{objects: map[string][]byte{}}

	adaptor := objectstore.New("bucket-data", "my-bucket", "data", fake, t.TempDir())

	err := adaptor.PrecheckRestore(ctx, "deadbeef", "deadbeef")
	require.Error(t, err)
}

func TestPush_IsANoOp(t *testing.T) {
	t.Parallel()

	fake := &fakeS3{objects: map[string][]byte{}}
	adaptor := objectstore.New("bucket-data", "my-bucket", "data", fake, t.TempDir())

	require.NoError(t, adaptor.Push(context.Background()))
	require.NoError(t, adaptor.Pull(context.Background()))
}
