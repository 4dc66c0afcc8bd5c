package pictures

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

func testConfig() Config {
	return Config{
		Region:       "us-east-1",
		AccessKey:    "minioadmin",
		SecretKey:    "minioadmin",
		BaseEndpoint: "http://127.0.0.1:9000",
		Bucket:       "fitshare",
	}
}

func Test_getPresignClient(t *testing.T) {
	svc := NewService(testConfig())

	origLoad := loadDefaultAWSConfig
	origNewS3 := newS3ClientFromConfig
	origNewPre := newS3PresignClient
	t.Cleanup(func() {
		loadDefaultAWSConfig = origLoad
		newS3ClientFromConfig = origNewS3
		newS3PresignClient = origNewPre
	})

	loadDefaultAWSConfig = func(ctx context.Context, optFns ...func(*awsconfig.LoadOptions) error) (aws.Config, error) {
		var lo awsconfig.LoadOptions
		for _, fn := range optFns {
			if err := fn(&lo); err != nil {
				t.Fatalf("load options fn error: %v", err)
			}
		}
		if lo.Region != "us-east-1" {
			t.Fatalf("region not applied: %q", lo.Region)
		}
		return aws.Config{}, nil
	}

	var capturedBaseEndpoint string
	newS3ClientFromConfig = func(cfg aws.Config, optFns ...func(*s3.Options)) *s3.Client {
		var opts s3.Options
		for _, fn := range optFns {
			fn(&opts)
		}
		if opts.BaseEndpoint == nil {
			t.Fatalf("BaseEndpoint not set")
		}
		capturedBaseEndpoint = *opts.BaseEndpoint
		return &s3.Client{}
	}

	newS3PresignClient = func(c *s3.Client) *s3.PresignClient {
		if c == nil {
			t.Fatalf("nil client passed to presign")
		}
		return &s3.PresignClient{}
	}

	pc, err := svc.getPresignClient()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if pc == nil {
		t.Fatalf("expected presign client")
	}
	if capturedBaseEndpoint != "http://127.0.0.1:9000" {
		t.Fatalf("base endpoint not applied: %q", capturedBaseEndpoint)
	}

	wantErr := errors.New("aws config failed")
	loadDefaultAWSConfig = func(ctx context.Context, optFns ...func(*awsconfig.LoadOptions) error) (aws.Config, error) {
		return aws.Config{}, wantErr
	}
	if _, err := svc.getPresignClient(); !errors.Is(err, wantErr) {
		t.Fatalf("expected config error, got %v", err)
	}
}

func TestPresignPut(t *testing.T) {
	svc := NewService(testConfig())

	origLoad := loadDefaultAWSConfig
	origNewS3 := newS3ClientFromConfig
	origNewPre := newS3PresignClient
	origPut := presignPutObject
	t.Cleanup(func() {
		loadDefaultAWSConfig = origLoad
		newS3ClientFromConfig = origNewS3
		newS3PresignClient = origNewPre
		presignPutObject = origPut
	})

	loadDefaultAWSConfig = func(ctx context.Context, optFns ...func(*awsconfig.LoadOptions) error) (aws.Config, error) {
		return aws.Config{}, nil
	}
	newS3ClientFromConfig = func(cfg aws.Config, optFns ...func(*s3.Options)) *s3.Client {
		return &s3.Client{}
	}
	newS3PresignClient = func(c *s3.Client) *s3.PresignClient {
		return &s3.PresignClient{}
	}
	presignPutObject = func(pc *s3.PresignClient, ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
		if *in.Bucket != "fitshare" {
			t.Fatalf("wrong bucket: %q", *in.Bucket)
		}
		return &v4.PresignedHTTPRequest{URL: "http://127.0.0.1:9000/fitshare/" + *in.Key + "?X-Amz-Signature=abc"}, nil
	}

	key, url, err := svc.PresignPut(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.HasPrefix(key, "pictures/") {
		t.Fatalf("unexpected key: %q", key)
	}
	if !strings.Contains(url, key) || !strings.Contains(url, "X-Amz-Signature") {
		t.Fatalf("unexpected url: %q", url)
	}

	wantErr := errors.New("presign failed")
	presignPutObject = func(pc *s3.PresignClient, ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
		return nil, wantErr
	}
	if _, _, err := svc.PresignPut(context.Background()); !errors.Is(err, wantErr) {
		t.Fatalf("expected presign error, got %v", err)
	}
}

func TestObjectURL(t *testing.T) {
	svc := NewService(testConfig())
	got := svc.ObjectURL("pictures/2026/1/1/abc")
	want := "http://127.0.0.1:9000/fitshare/pictures/2026/1/1/abc"
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestUpload(t *testing.T) {
	picture := []byte("fake png bytes")

	t.Run("success", func(t *testing.T) {
		var gotMethod, gotCT string
		var gotBody []byte
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotMethod = r.Method
			gotCT = r.Header.Get("Content-Type")
			gotBody, _ = io.ReadAll(r.Body)
			w.WriteHeader(http.StatusOK)
		}))
		defer ts.Close()

		if err := Upload(ts.URL+"/fitshare/key?X-Amz-Signature=abc", picture); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if gotMethod != http.MethodPut {
			t.Fatalf("expected PUT, got %s", gotMethod)
		}
		if gotCT != "application/octet-stream" {
			t.Fatalf("unexpected content type: %q", gotCT)
		}
		if string(gotBody) != string(picture) {
			t.Fatalf("body mismatch")
		}
	})

	t.Run("non-200 is an error", func(t *testing.T) {
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "access denied", http.StatusForbidden)
		}))
		defer ts.Close()

		err := Upload(ts.URL, picture)
		if err == nil || !strings.Contains(err.Error(), "403") {
			t.Fatalf("expected 403 error, got %v", err)
		}
	})
}
