package s3

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"
)

const emptyListing = `<?xml version="1.0" encoding="UTF-8"?>
<ListBucketResult><Name>bucket</Name><KeyCount>0</KeyCount><IsTruncated>false</IsTruncated></ListBucketResult>`

// newTestFS points the driver at a stub S3 endpoint. Retries are
// disabled so error paths are exercised with a single request.
func newTestFS(t *testing.T, handler http.HandlerFunc) *S3FileSystem {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client := awss3.New(awss3.Options{
		Region:       "us-east-1",
		BaseEndpoint: aws.String(server.URL),
		UsePathStyle: true,
		Credentials:  credentials.NewStaticCredentialsProvider("test", "test", ""),
		Retryer:      aws.NopRetryer{},
	})
	return New(client)
}

func TestS3_StatReturnsObjectInfo(t *testing.T) {
	fs := newTestFS(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodHead {
			t.Errorf("Unexpected request: %s %s", r.Method, r.URL.Path)
		}
		w.Header().Set("Content-Length", "7")
		w.Header().Set("Last-Modified", "Mon, 02 Jan 2006 15:04:05 GMT")
		w.WriteHeader(http.StatusOK)
	})

	info, err := fs.Stat(context.Background(), "s3://bucket/data/part-0")
	if err != nil {
		t.Fatalf("Stat: %v", err)
	}
	if info.Size != 7 || info.IsDir {
		t.Errorf("Unexpected info: %+v", info)
	}
	if info.Path != "s3://bucket/data/part-0" {
		t.Errorf("Expected path echoed back, got %q", info.Path)
	}
}

func TestS3_StatMissingObjectFallsBackToListing(t *testing.T) {
	fs := newTestFS(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodHead {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "application/xml")
		_, _ = io.WriteString(w, emptyListing)
	})

	_, err := fs.Stat(context.Background(), "s3://bucket/missing")
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("Expected ErrNotExist, got: %v", err)
	}
}

func TestS3_StatPropagatesHeadFailure(t *testing.T) {
	// A head failure that is not a missing object (auth, network) must
	// surface, not be reported as a missing file.
	var listed bool
	fs := newTestFS(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodHead {
			listed = true
		}
		w.WriteHeader(http.StatusForbidden)
	})

	_, err := fs.Stat(context.Background(), "s3://bucket/data/part-0")
	if err == nil {
		t.Fatal("Expected error from forbidden head request")
	}
	if errors.Is(err, os.ErrNotExist) {
		t.Errorf("Expected the real failure, got ErrNotExist: %v", err)
	}
	if listed {
		t.Error("Expected no directory listing after a non-NotFound head failure")
	}
}
