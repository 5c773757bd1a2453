package serial

import (
	"slices"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func collect(f *Framer) []string {
	return slices.Collect(f.Records())
}

func TestFramer_Chunks(t *testing.T) {
	tests := []struct {
		name   string
		chunks []string
		want   []string
		rest   int
	}{
		{name: "single record", chunks: []string{"T:36.5\n"}, want: []string{"T:36.5"}},
		{name: "split across reads", chunks: []string{"T:3", "", "6.", "5\n"}, want: []string{"T:36.5"}},
		{name: "several in one read", chunks: []string{"T:1\nT:2\nT:"}, want: []string{"T:1", "T:2"}, rest: 2},
		{name: "crlf and padding", chunks: []string{"  T:20.25 \r\n"}, want: []string{"T:20.25"}},
		{name: "empty lines", chunks: []string{"\n\r\n"}, want: []string{"", ""}},
		{name: "non ascii dropped", chunks: []string{"T:2\xc3\xa91\xff.5\n"}, want: []string{"T:21.5"}},
		{name: "no newline yet", chunks: []string{"T:12"}, rest: 4},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := NewFramer(0)
			var got []string
			for _, c := range tt.chunks {
				f.Push([]byte(c))
				got = append(got, collect(f)...)
			}
			require.Equal(t, tt.want, got)
			require.Equal(t, tt.rest, f.Buffered())
		})
	}
}

func TestFramer_Reset(t *testing.T) {
	f := NewFramer(0)
	f.Push([]byte("T:36"))
	require.Empty(t, collect(f))

	// reconnect: the partial record must not be stitched to new data
	f.Reset()
	f.Push([]byte(".5\nT:1\n"))
	require.Equal(t, []string{".5", "T:1"}, collect(f))
	require.Zero(t, f.Buffered())
}

func TestFramer_EarlyBreakKeepsRemaining(t *testing.T) {
	f := NewFramer(0)
	f.Push([]byte("a\nb\nc\n"))
	for r := range f.Records() {
		require.Equal(t, "a", r)
		break
	}
	require.Equal(t, []string{"b", "c"}, collect(f))
}

func TestFramer_Overflow(t *testing.T) {
	f := NewFramer(8)
	f.Push([]byte(strings.Repeat("x", 20)))
	require.Empty(t, collect(f))
	require.Zero(t, f.Buffered())
	require.Equal(t, 1, f.Overflows())

	f.Push([]byte("T:1\n"))
	require.Equal(t, []string{"T:1"}, collect(f))
}
