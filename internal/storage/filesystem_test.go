package storage

import (
	"context"
	"testing"
)

func TestFileStoreWriteRead(t *testing.T) {
	fs, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}

	key, err := fs.Write(context.Background(), "videos/video_42_1.mp4", []byte("mp4 bytes"))
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	if key != "videos/video_42_1.mp4" {
		t.Errorf("key = %q", key)
	}

	data, err := fs.Read(context.Background(), key)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if string(data) != "mp4 bytes" {
		t.Errorf("data = %q", data)
	}
}

func TestSanitizeKeyRejectsTraversal(t *testing.T) {
	tests := []struct {
		key     string
		wantErr bool
	}{
		{"videos/v.mp4", false},
		{"./videos/v.mp4", false},
		{"/videos/v.mp4", false},
		{"", true},
		{"..", true},
		{"../etc/passwd", true},
		{"videos/../../etc/passwd", true},
	}
	for _, tt := range tests {
		_, err := sanitizeKey(tt.key)
		if (err != nil) != tt.wantErr {
			t.Errorf("sanitizeKey(%q) error = %v, wantErr %v", tt.key, err, tt.wantErr)
		}
	}
}

func TestNilStoreErrors(t *testing.T) {
	var fs *FileStore
	if _, err := fs.Write(context.Background(), "k", nil); err == nil {
		t.Error("Write on nil store should error")
	}
	if _, err := fs.Read(context.Background(), "k"); err == nil {
		t.Error("Read on nil store should error")
	}
}
