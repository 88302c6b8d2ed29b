package delivery

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

func TestCheckName(t *testing.T) {
	for _, ok := range []string{"promo-1700000000000.png", "a.jpg"} {
		assert.NoError(t, checkName(ok), ok)
	}
	for _, bad := range []string{"", ".", "..", "../escape.png", "dir/file.png", `dir\file.png`} {
		assert.ErrorIs(t, checkName(bad), ErrInvalidName, bad)
	}
}

func TestNop(t *testing.T) {
	loc, err := Nop{}.Put(context.Background(), "x.png", "image/png", []byte{1})
	assert.NoError(t, err)
	assert.Empty(t, loc)
}

// =========================================================================
// FILESYSTEM
// =========================================================================

func TestFilesystem_Put(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "exports")
	sink, err := NewFilesystem(dir, discard)
	require.NoError(t, err)

	loc, err := sink.Put(context.Background(), "promo.png", "image/png", []byte("pixels"))
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(dir, "promo.png"), loc)
	data, err := os.ReadFile(loc)
	require.NoError(t, err)
	assert.Equal(t, "pixels", string(data))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp files must not be left behind")
}

func TestFilesystem_RejectsTraversal(t *testing.T) {
	sink, err := NewFilesystem(t.TempDir(), discard)
	require.NoError(t, err)

	_, err = sink.Put(context.Background(), "../../etc/passwd", "text/plain", []byte("x"))
	assert.ErrorIs(t, err, ErrInvalidName)
}

// =========================================================================
// S3
// =========================================================================

type fakeS3 struct {
	in  *s3.PutObjectInput
	err error
}

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	f.in = in
	if f.err != nil {
		return nil, f.err
	}
	return &s3.PutObjectOutput{}, nil
}

func TestS3_Put(t *testing.T) {
	client := &fakeS3{}
	sink := NewS3WithClient(client, "promo-bucket", "exports", discard)

	loc, err := sink.Put(context.Background(), "promo.png", "image/png", []byte("pixels"))
	require.NoError(t, err)

	assert.Equal(t, "s3://promo-bucket/exports/promo.png", loc)
	assert.Equal(t, "promo-bucket", aws.ToString(client.in.Bucket))
	assert.Equal(t, "exports/promo.png", aws.ToString(client.in.Key))
	assert.Equal(t, "image/png", aws.ToString(client.in.ContentType))
	assert.Equal(t, int64(6), aws.ToInt64(client.in.ContentLength))
}

func TestS3_PutError(t *testing.T) {
	boom := errors.New("access denied")
	sink := NewS3WithClient(&fakeS3{err: boom}, "b", "", discard)

	_, err := sink.Put(context.Background(), "promo.png", "image/png", nil)
	assert.ErrorIs(t, err, boom)
}

func TestNewS3_RequiresBucket(t *testing.T) {
	_, err := NewS3(context.Background(), "", "", discard)
	assert.Error(t, err)
}
