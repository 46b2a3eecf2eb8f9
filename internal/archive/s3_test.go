package archive

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/s3"
)

type fakePutter struct {
	inputs []*s3.PutObjectInput
	bodies []string
	err    error
}

func (f *fakePutter) PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	body, _ := io.ReadAll(params.Body)
	f.inputs = append(f.inputs, params)
	f.bodies = append(f.bodies, string(body))
	return &s3.PutObjectOutput{}, nil
}

func TestKey(t *testing.T) {
	s := New(nil, "bucket", "/km/prod/")
	at := time.Date(2024, 3, 9, 23, 30, 0, 0, time.UTC)

	got := s.Key("CLICK", "c1", at)
	want := "km/prod/callbacks/click/2024/03/09/c1_1710027000000000000.json"
	if got != want {
		t.Errorf("Key() = %s, want %s", got, want)
	}

	if got := New(nil, "b", "").Key("", "", at); got != "callbacks/unknown/2024/03/09/no-checkout_1710027000000000000.json" {
		t.Errorf("Key() without names = %s", got)
	}
}

func TestKeyStaysUnderPrefix(t *testing.T) {
	s := New(nil, "bucket", "km")
	at := time.Date(2024, 3, 9, 23, 30, 0, 0, time.UTC)

	tests := []struct {
		provider   string
		checkoutID string
		want       string
	}{
		{"CLICK", "../../../etc/passwd", "km/callbacks/click/2024/03/09/etcpasswd_1710027000000000000.json"},
		{"CLICK", "..", "km/callbacks/click/2024/03/09/no-checkout_1710027000000000000.json"},
		{"../PAYME", "c/1", "km/callbacks/payme/2024/03/09/c1_1710027000000000000.json"},
		{"UZUM", "7f0c2a9e-1b2c-4d5e-8f90-a1b2c3d4e5f6", "km/callbacks/uzum/2024/03/09/7f0c2a9e-1b2c-4d5e-8f90-a1b2c3d4e5f6_1710027000000000000.json"},
	}
	for _, tt := range tests {
		if got := s.Key(tt.provider, tt.checkoutID, at); got != tt.want {
			t.Errorf("Key(%q, %q) = %s, want %s", tt.provider, tt.checkoutID, got, tt.want)
		}
	}

	long := s.Key("CLICK", strings.Repeat("a", 500), at)
	if !strings.HasPrefix(long, "km/callbacks/click/2024/03/09/"+strings.Repeat("a", maxKeySegment)+"_") {
		t.Errorf("long id key = %s", long)
	}
}

func TestArchiveCallback(t *testing.T) {
	putter := &fakePutter{}
	s := New(putter, "payments-archive", "raw")
	s.now = func() time.Time { return time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC) }

	if err := s.ArchiveCallback(context.Background(), "PAYME", "c9", []byte(`{"amount":"1000"}`)); err != nil {
		t.Fatal(err)
	}
	if len(putter.inputs) != 1 {
		t.Fatalf("uploads = %d, want 1", len(putter.inputs))
	}
	in := putter.inputs[0]
	if *in.Bucket != "payments-archive" || *in.ContentType != "application/json" {
		t.Errorf("input = bucket %s type %s", *in.Bucket, *in.ContentType)
	}
	if putter.bodies[0] != `{"amount":"1000"}` {
		t.Errorf("body = %s", putter.bodies[0])
	}
}

func TestArchiveCallbackErrors(t *testing.T) {
	s := New(&fakePutter{err: errors.New("access denied")}, "b", "")
	if err := s.ArchiveCallback(context.Background(), "CLICK", "c1", []byte("{}")); err == nil {
		t.Error("expected an upload error")
	}
}

func TestNilStoreIsNoop(t *testing.T) {
	var s *Store
	if err := s.ArchiveCallback(context.Background(), "CLICK", "c1", []byte("{}")); err != nil {
		t.Errorf("nil store: err = %v", err)
	}
}
