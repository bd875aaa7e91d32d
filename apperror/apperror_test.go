package apperror

import (
	"errors"
	"fmt"
	"os"
	"testing"
)

func TestKind(t *testing.T) {
	cases := []struct {
		err  error
		want string
	}{
		{NewValidationError("video", "too long"), "validation"},
		{&AssetMissingError{Asset: "bold font", Path: "/fonts/b.ttf", Err: os.ErrNotExist}, "asset_missing"},
		{&MediaReadError{Path: "/in.mp4", Err: os.ErrNotExist}, "media_read"},
		{fmt.Errorf("job x: %w", &TranscodeError{Message: "engine exited with error"}), "transcode"},
		{errors.Join(ErrNonRetryable, &PublishError{Key: "processed/a.mp4", Err: errors.New("denied")}), "publish"},
		{errors.New("boom"), "internal"},
	}
	for _, tc := range cases {
		if got := Kind(tc.err); got != tc.want {
			t.Errorf("Kind(%v) = %q, want %q", tc.err, got, tc.want)
		}
	}
}

func TestUnwrapKeepsCause(t *testing.T) {
	err := &MediaReadError{Path: "/in.mp4", Err: os.ErrNotExist}
	if !errors.Is(err, os.ErrNotExist) {
		t.Fatal("MediaReadError must unwrap to its cause")
	}
	asset := &AssetMissingError{Asset: "disclaimer image", Path: "/d.jpeg", Err: os.ErrNotExist}
	if !errors.Is(asset, os.ErrNotExist) {
		t.Fatal("AssetMissingError must unwrap to its cause")
	}
}

func TestEngineStderr(t *testing.T) {
	err := errors.Join(ErrNonRetryable, &TranscodeError{Message: "engine exited with error", EngineStderr: "Invalid argument"})
	if got := EngineStderr(err); got != "Invalid argument" {
		t.Fatalf("EngineStderr = %q", got)
	}
	if EngineStderr(errors.New("other")) != "" {
		t.Fatal("non-transcode errors carry no stderr")
	}
}

func TestValidationErrorMessage(t *testing.T) {
	if got := NewValidationError("city", "is required").Error(); got != "validation: city: is required" {
		t.Fatalf("unexpected message %q", got)
	}
	if got := (&ValidationError{Reason: "bad"}).Error(); got != "validation: bad" {
		t.Fatalf("unexpected message %q", got)
	}
}
