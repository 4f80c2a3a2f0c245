package store

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/salesops-cli/internal/config"
)

func TestFileSink_WriteAndReplace(t *testing.T) {
	dir := t.TempDir()
	sink := NewFileSink(dir)
	ctx := context.Background()

	require.NoError(t, sink.WriteDocument(ctx, "月次営業分析レポート", "月次サマリー_2024-10.json", []byte(`{"v":1}`)))
	require.NoError(t, sink.WriteDocument(ctx, "月次営業分析レポート", "月次サマリー_2024-10.json", []byte(`{"v":2}`)))

	data, err := os.ReadFile(filepath.Join(dir, "月次営業分析レポート", "月次サマリー_2024-10.json"))
	require.NoError(t, err)
	assert.JSONEq(t, `{"v":2}`, string(data))

	entries, err := os.ReadDir(filepath.Join(dir, "月次営業分析レポート"))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no temp files left behind")
	assert.Equal(t, dir, sink.Location())
}

func TestFileSink_InvalidName(t *testing.T) {
	sink := NewFileSink(t.TempDir())
	for _, name := range []string{"", "../escape.json", `a\b.json`} {
		assert.Error(t, sink.WriteDocument(context.Background(), "f", name, nil), name)
	}
}

func TestFileSink_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.Error(t, NewFileSink(t.TempDir()).WriteDocument(ctx, "f", "a.json", nil))
}

type fakeS3 struct {
	puts map[string][]byte
	err  error
}

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	body, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	if f.puts == nil {
		f.puts = make(map[string][]byte)
	}
	f.puts[aws.ToString(in.Bucket)+"/"+aws.ToString(in.Key)] = body
	return &s3.PutObjectOutput{}, nil
}

func TestS3Sink_WriteDocument(t *testing.T) {
	client := &fakeS3{}
	sink := NewS3SinkWithClient(client, "reports", "salesops")

	require.NoError(t, sink.WriteDocument(context.Background(), "all", "merged_sales_data.json", []byte(`[]`)))
	assert.Equal(t, []byte(`[]`), client.puts["reports/salesops/all/merged_sales_data.json"])
	assert.Equal(t, "s3://reports/salesops", sink.Location())
}

func TestS3Sink_Error(t *testing.T) {
	sink := NewS3SinkWithClient(&fakeS3{err: errors.New("denied")}, "reports", "")

	err := sink.WriteDocument(context.Background(), "f", "a.json", []byte(`{}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "f/a.json")
}

func TestNewS3Sink_RequiresBucket(t *testing.T) {
	_, err := NewS3Sink(context.Background(), config.S3Config{})
	require.Error(t, err)
}

func TestOpen(t *testing.T) {
	ctx := context.Background()
	st, err := Open(ctx, config.StoreConfig{Driver: DriverSQLite, DatabaseURL: filepath.Join(t.TempDir(), "runs.db")})
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck

	_, err = Open(ctx, config.StoreConfig{Driver: "mongo"})
	require.Error(t, err)

	sink, err := OpenSink(ctx, config.SinkConfig{Driver: DriverSQLite}, st)
	require.NoError(t, err)
	assert.Same(t, st, sink)

	_, err = OpenSink(ctx, config.SinkConfig{Driver: DriverPostgres}, st)
	require.Error(t, err, "postgres sink needs the postgres store")

	sink, err = OpenSink(ctx, config.SinkConfig{Driver: DriverFile, Dir: "out"}, st)
	require.NoError(t, err)
	assert.Equal(t, "out", sink.Location())

	_, err = OpenSink(ctx, config.SinkConfig{Driver: "ftp"}, st)
	require.Error(t, err)
}
