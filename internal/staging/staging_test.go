package staging

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoundTrip(t *testing.T) {
	terms := [][]byte{
		[]byte("<http://x/apple>"),
		{},
		[]byte(`"chat"@fr`),
		make([]byte, 70000),
	}
	for i := 0; i < 500; i++ {
		terms = append(terms, []byte(fmt.Sprintf("<http://x/item/%d>", i)))
	}

	for _, c := range []Compression{CompressionNone, CompressionLZ4, CompressionZSTD} {
		t.Run(c.String(), func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "input.stage")
			w, err := Create(nil, path, c)
			require.NoError(t, err)
			for _, term := range terms {
				require.NoError(t, w.Append(term))
			}
			assert.Equal(t, uint64(len(terms)), w.Count())
			require.NoError(t, w.Close())

			var got [][]byte
			err = Replay(t.Context(), nil, path, func(term []byte) error {
				got = append(got, append([]byte{}, term...))
				return nil
			})
			require.NoError(t, err)
			assert.Equal(t, terms, got)
		})
	}
}

func TestReplayStopsOnVisitorError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "input.stage")
	w, err := Create(nil, path, CompressionLZ4)
	require.NoError(t, err)
	for i := 0; i < 10; i++ {
		require.NoError(t, w.Append([]byte("x")))
	}
	require.NoError(t, w.Close())

	stop := errors.New("stop")
	calls := 0
	err = Replay(t.Context(), nil, path, func([]byte) error {
		calls++
		if calls == 3 {
			return stop
		}
		return nil
	})
	assert.ErrorIs(t, err, stop)
	assert.Equal(t, 3, calls)
}

func TestReplayHonoursCancel(t *testing.T) {
	path := filepath.Join(t.TempDir(), "input.stage")
	w, err := Create(nil, path, CompressionNone)
	require.NoError(t, err)
	require.NoError(t, w.Append([]byte("x")))
	require.NoError(t, w.Close())

	ctx, cancel := context.WithCancel(t.Context())
	cancel()
	err = Replay(ctx, nil, path, func([]byte) error { return nil })
	assert.ErrorIs(t, err, context.Canceled)
}

func TestReplayRejectsGarbage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "junk")
	require.NoError(t, os.WriteFile(path, []byte("not a staging file"), 0o644))
	err := Replay(t.Context(), nil, path, func([]byte) error { return nil })
	assert.ErrorIs(t, err, ErrFormat)

	require.NoError(t, os.WriteFile(path, append(magic[:], byte(CompressionNone), 0x05, 'a'), 0o644))
	err = Replay(t.Context(), nil, path, func([]byte) error { return nil })
	assert.ErrorIs(t, err, ErrFormat)
}
