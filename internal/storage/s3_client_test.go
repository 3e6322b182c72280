package storage

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePutter struct {
	got     []byte
	key     string
	err     error
	rereads int
}

func (f *fakePutter) PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.key = *in.Key
	// read twice, like a checksum pass followed by the send
	for i := 0; i <= f.rereads; i++ {
		if seeker, ok := in.Body.(io.Seeker); ok {
			_, _ = seeker.Seek(0, io.SeekStart)
		}
		data, err := io.ReadAll(in.Body)
		if err != nil {
			return nil, err
		}
		f.got = data
	}
	return &s3.PutObjectOutput{}, nil
}

func TestUploadReportsMonotonicProgress(t *testing.T) {
	payload := bytes.Repeat([]byte("x"), 4096)
	putter := &fakePutter{rereads: 1}
	c := &Client{cfg: S3Config{Bucket: "b", PublicBase: "https://cdn.example.com/"}, s3: putter}

	var seen []int
	obj, err := c.Upload(context.Background(), "attachments/c1/a1/pic.png", "image/png", bytes.NewReader(payload), int64(len(payload)), func(p int) {
		seen = append(seen, p)
	})
	require.NoError(t, err)
	assert.Equal(t, payload, putter.got)
	assert.Equal(t, "https://cdn.example.com/attachments/c1/a1/pic.png", obj.URL)
	require.NotEmpty(t, seen)
	assert.Equal(t, 100, seen[len(seen)-1])
	for i := 1; i < len(seen); i++ {
		assert.Greater(t, seen[i], seen[i-1])
	}
}

func TestUploadError(t *testing.T) {
	c := &Client{cfg: S3Config{Bucket: "b"}, s3: &fakePutter{err: errors.New("denied")}}
	_, err := c.Upload(context.Background(), "k", "", bytes.NewReader([]byte("a")), 1, nil)
	assert.ErrorContains(t, err, "denied")

	_, err = c.Upload(context.Background(), "", "", bytes.NewReader(nil), 0, nil)
	assert.Error(t, err)
}

func TestObjectKey(t *testing.T) {
	assert.Equal(t, "attachments/c1/a1/report.pdf", ObjectKey("c1", "a1", `C:\docs\report.pdf`))
	assert.Equal(t, "attachments/c1/a1/file", ObjectKey("c1", "a1", ""))
	assert.Equal(t, "attachments/c1/a1/passwd", ObjectKey("c1", "a1", "../../etc/passwd"))
}

func TestFileURLWithoutPresigner(t *testing.T) {
	c := &Client{cfg: S3Config{Bucket: "b"}}
	url, err := c.FileURL(context.Background(), "k")
	require.NoError(t, err)
	assert.Equal(t, "s3://b/k", url)
}
