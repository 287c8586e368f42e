package koda

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestDecodeOffThread(t *testing.T) {
	data, err := Encode(NewInt(42), DefaultEncodeOptions())
	require.NoError(t, err)

	fut := Decode(data, DefaultDecodeOptions())
	v, err := fut.Wait()
	require.NoError(t, err)
	require.True(t, v.Equal(NewInt(42)))
}

func TestFutureWaitContextCancel(t *testing.T) {
	fut := newFuture[int]()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err := fut.WaitContext(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestDecoderPoolDecodesAll(t *testing.T) {
	pool := NewDecoderPool(4)
	defer pool.Destroy()

	const n = 50
	futures := make([]*Future[*Value], n)
	for i := 0; i < n; i++ {
		data, err := Encode(NewInt(int64(i)), DefaultEncodeOptions())
		require.NoError(t, err)
		fut, err := pool.Decode(data, DefaultDecodeOptions())
		require.NoError(t, err)
		futures[i] = fut
	}
	for i, fut := range futures {
		v, err := fut.Wait()
		require.NoError(t, err)
		require.Truef(t, v.Equal(NewInt(int64(i))), "job %d mismatch", i)
	}
}

func TestDecoderPoolRejectsAfterDestroy(t *testing.T) {
	pool := NewDecoderPool(2)
	pool.Destroy()

	data, err := Encode(NewInt(1), DefaultEncodeOptions())
	require.NoError(t, err)
	_, err = pool.Decode(data, DefaultDecodeOptions())
	require.ErrorIs(t, err, ErrPoolClosed)
}

func TestDecoderPoolDestroyIsIdempotent(t *testing.T) {
	pool := NewDecoderPool(2)
	pool.Destroy()
	pool.Destroy()
}

func TestDecoderPoolConcurrentSubmitters(t *testing.T) {
	pool := NewDecoderPool(8)
	defer pool.Destroy()

	var wg sync.WaitGroup
	errs := make(chan error, 100)
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			data, err := Encode(NewInt(int64(i)), DefaultEncodeOptions())
			if err != nil {
				errs <- err
				return
			}
			fut, err := pool.Decode(data, DefaultDecodeOptions())
			if err != nil {
				errs <- err
				return
			}
			v, err := fut.Wait()
			if err != nil {
				errs <- err
				return
			}
			if !v.Equal(NewInt(int64(i))) {
				errs <- fmt.Errorf("job %d decoded to a different value", i)
			}
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Errorf("concurrent submit error: %v", err)
		}
	}
}
