package memory

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/inkseal/inkseal/internal/storage"
)

func TestStore_PutGetDelete(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := New()

	require.NoError(t, s.Put(ctx, "a", []byte("abc"), "application/pdf", false))
	got, err := s.Get(ctx, "a")
	require.NoError(t, err)
	require.Equal(t, []byte("abc"), got)

	require.NoError(t, s.Delete(ctx, "a"))
	require.ErrorIs(t, s.Delete(ctx, "a"), storage.ErrNotExist)
	require.Equal(t, 0, s.Len())
}

func TestStore_WriteOnceUnderConcurrency(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := New()

	var wg sync.WaitGroup
	okCh := make(chan error, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			okCh <- s.Put(ctx, "signed/doc.pdf", []byte("x"), "application/pdf", false)
		}()
	}
	wg.Wait()
	close(okCh)

	var wins, losses int
	for err := range okCh {
		if err == nil {
			wins++
		} else {
			require.ErrorIs(t, err, storage.ErrExists)
			losses++
		}
	}
	require.Equal(t, 1, wins)
	require.Equal(t, 7, losses)
}
