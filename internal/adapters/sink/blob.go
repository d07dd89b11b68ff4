package sink

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/streaming"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/to"
	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/appendblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/blob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/bloberror"
	"github.com/okian/profiler/internal/domain/quiz"
)

// appendTarget is the slice of the append blob API the sink needs.
type appendTarget interface {
	// create makes the blob if absent and reports whether it did.
	create(ctx context.Context) (bool, error)
	appendBlock(ctx context.Context, b []byte) error
	download(ctx context.Context) (io.ReadCloser, error)
}

// Blob appends feedback as CSV rows to one Azure append blob, the
// spreadsheet-style destination. Each record is a single block, so
// concurrent appends never interleave within a row.
type Blob struct {
	target appendTarget
}

// OpenBlob connects to the blob named by s, creating it with a header row
// when it does not exist yet.
func OpenBlob(ctx context.Context, s BlobSettings) (*Blob, error) {
	if s.Container == "" || s.Blob == "" {
		return nil, fmt.Errorf("%w: blob container and name are required", ErrUnavailable)
	}
	var (
		c   *appendblob.Client
		err error
	)
	switch {
	case s.ConnectionString != "":
		c, err = appendblob.NewClientFromConnectionString(s.ConnectionString, s.Container, s.Blob, nil)
	case s.AccountURL != "":
		var cred *azidentity.DefaultAzureCredential
		cred, err = azidentity.NewDefaultAzureCredential(nil)
		if err != nil {
			return nil, unavailable("azure credential", err)
		}
		url := strings.TrimRight(s.AccountURL, "/") + "/" + s.Container + "/" + s.Blob
		c, err = appendblob.NewClient(url, cred, nil)
	default:
		return nil, fmt.Errorf("%w: blob needs a connection string or account url", ErrUnavailable)
	}
	if err != nil {
		return nil, unavailable("blob client", err)
	}
	return newBlob(ctx, azureAppendBlob{c: c})
}

func newBlob(ctx context.Context, t appendTarget) (*Blob, error) {
	created, err := t.create(ctx)
	if err != nil {
		return nil, unavailable("create blob", err)
	}
	if created {
		header, err := encodeCSV(nil, true)
		if err != nil {
			return nil, unavailable("encode header", err)
		}
		if err := t.appendBlock(ctx, header); err != nil {
			return nil, unavailable("write header", err)
		}
	}
	return &Blob{target: t}, nil
}

func (b *Blob) Append(ctx context.Context, r quiz.FeedbackRecord) error {
	line, err := encodeCSV([]quiz.FeedbackRecord{r}, false)
	if err != nil {
		return unavailable("encode record", err)
	}
	if err := b.target.appendBlock(ctx, line); err != nil {
		return unavailable("append", err)
	}
	return nil
}

// AppendBatch writes rs as one block.
func (b *Blob) AppendBatch(ctx context.Context, rs []quiz.FeedbackRecord) error {
	if len(rs) == 0 {
		return nil
	}
	lines, err := encodeCSV(rs, false)
	if err != nil {
		return unavailable("encode batch", err)
	}
	if err := b.target.appendBlock(ctx, lines); err != nil {
		return unavailable("append batch", err)
	}
	return nil
}

func (b *Blob) Records(ctx context.Context) ([]quiz.FeedbackRecord, error) {
	body, err := b.target.download(ctx)
	if err != nil {
		return nil, unavailable("download", err)
	}
	defer body.Close()
	rs, err := decodeCSV(body)
	if err != nil {
		return nil, unavailable("decode", err)
	}
	return rs, nil
}

func (b *Blob) Tally(ctx context.Context) ([]Tally, error) {
	rs, err := b.Records(ctx)
	if err != nil {
		return nil, err
	}
	return tally(rs), nil
}

func (b *Blob) Count(ctx context.Context) (int, error) {
	rs, err := b.Records(ctx)
	if err != nil {
		return 0, err
	}
	return len(rs), nil
}

func (b *Blob) Close() error { return nil }

type azureAppendBlob struct {
	c *appendblob.Client
}

func (a azureAppendBlob) create(ctx context.Context) (bool, error) {
	_, err := a.c.Create(ctx, &appendblob.CreateOptions{
		AccessConditions: &blob.AccessConditions{
			ModifiedAccessConditions: &blob.ModifiedAccessConditions{IfNoneMatch: to.Ptr(azcore.ETagAny)},
		},
	})
	switch {
	case err == nil:
		return true, nil
	case bloberror.HasCode(err, bloberror.BlobAlreadyExists, bloberror.ConditionNotMet):
		return false, nil
	default:
		return false, err
	}
}

func (a azureAppendBlob) appendBlock(ctx context.Context, b []byte) error {
	_, err := a.c.AppendBlock(ctx, streaming.NopCloser(bytes.NewReader(b)), nil)
	return err
}

func (a azureAppendBlob) download(ctx context.Context) (io.ReadCloser, error) {
	resp, err := a.c.DownloadStream(ctx, nil)
	if err != nil {
		return nil, err
	}
	return resp.Body, nil
}
