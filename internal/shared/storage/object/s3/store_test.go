package s3

import (
	"io"
	"strings"
	"testing"
)

func TestApplyPrefix(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		prefix string
		key    string
		want   string
	}{
		{name: "no prefix", prefix: "", key: "batch/recete.pdf", want: "batch/recete.pdf"},
		{name: "simple prefix", prefix: "intake", key: "batch/recete.pdf", want: "intake/batch/recete.pdf"},
		{name: "prefix trailing slash", prefix: "intake/", key: "batch/recete.pdf", want: "intake/batch/recete.pdf"},
		{name: "prefix and key slashes", prefix: "/intake/", key: "/batch/recete.pdf", want: "intake/batch/recete.pdf"},
		{name: "nested prefix", prefix: "intake/originals", key: "batch/recete.pdf", want: "intake/originals/batch/recete.pdf"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := applyPrefix(tt.prefix, tt.key); got != tt.want {
				t.Fatalf("applyPrefix(%q, %q) = %q, want %q", tt.prefix, tt.key, got, tt.want)
			}
		})
	}
}

func TestCountingReader(t *testing.T) {
	t.Parallel()

	payload := "odyogram raporu"
	counter := &countingReader{r: strings.NewReader(payload)}
	if _, err := io.ReadAll(counter); err != nil {
		t.Fatalf("read: %v", err)
	}
	if counter.n != int64(len(payload)) {
		t.Fatalf("counted %d bytes, want %d", counter.n, len(payload))
	}
}
