// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

//go:build !race

// These tests run the executor on its own goroutine while the test acts as
// the host thread. Nodes cross goroutines through atomix-ordered queues,
// which the race detector reports as false positives.

package ull_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"code.hybscloud.com/ull"
	"code.hybscloud.com/ull/mayfly"
)

// running starts c.Run and returns a stop function that waits for it.
func running(t *testing.T, c *ull.Controller) func() {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	exited := make(chan error, 1)
	go func() { exited <- c.Run(ctx) }()
	return func() {
		cancel()
		select {
		case err := <-exited:
			if !errors.Is(err, context.Canceled) {
				t.Errorf("Run: got %v, want context.Canceled", err)
			}
		case <-time.After(5 * time.Second):
			t.Errorf("Run did not stop")
		}
	}
}

// post runs fn in LLL on the running executor and waits for it.
func post(t *testing.T, c *ull.Controller, fn func()) {
	t.Helper()
	ran := make(chan struct{})
	job := mayfly.NewJob(func(any) {
		fn()
		close(ran)
	}, nil)
	require.NoError(t, c.Scheduler().Enqueue(mayfly.Thread, mayfly.LLL, false, job))
	select {
	case <-ran:
	case <-time.After(5 * time.Second):
		t.Fatalf("LLL job did not run")
	}
}

func TestDisableWaitsForQuiesce(t *testing.T) {
	c := ull.New().DisableTimeout(5 * time.Second).Build()
	stop := running(t, c)
	defer stop()

	a := newRole(c, true)
	a.hdr.RefInc()
	var err error
	post(t, c, func() {
		err = c.Prepare(a.isAbort, a.abort, a.prepare, &ull.PrepareParam{Param: a})
	})
	require.NoError(t, err)

	require.NoError(t, c.Disable(context.Background(), &a.hdr, a))
	require.Zero(t, a.hdr.Refs())
	require.ErrorIs(t, c.Disable(context.Background(), &a.hdr, a), ull.ErrAlreadyDisabled)

	var aborted int
	var synced bool
	post(t, c, func() {
		aborted, synced = a.aborted, c.DoneSynced()
	})
	require.Equal(t, 1, aborted)
	require.True(t, synced)
}

func TestDisableHonoursContext(t *testing.T) {
	c := ull.New().DisableTimeout(5 * time.Second).Build()
	stop := running(t, c)
	defer stop()

	// the role never reports done for an abort
	a := newRole(c, false)
	a.hdr.RefInc()
	post(t, c, func() {
		_ = c.Prepare(a.isAbort, a.abort, a.prepare, &ull.PrepareParam{Param: a})
	})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	require.ErrorIs(t, c.Disable(ctx, &a.hdr, a), context.DeadlineExceeded)
	require.Equal(t, uint32(1), a.hdr.Refs())
}

func TestDisableTimeoutIsFatal(t *testing.T) {
	c := ull.New().DisableTimeout(50 * time.Millisecond).Build()
	stop := running(t, c)
	defer stop()

	a := newRole(c, false)
	a.hdr.RefInc()
	post(t, c, func() {
		_ = c.Prepare(a.isAbort, a.abort, a.prepare, &ull.PrepareParam{Param: a})
	})

	require.PanicsWithValue(t, "ull: disable timed out", func() {
		_ = c.Disable(context.Background(), &a.hdr, a)
	})
}

func TestRxWaitWakesHost(t *testing.T) {
	c := ull.New().Build()
	stop := running(t, c)
	defer stop()

	waited := make(chan error, 1)
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		waited <- c.RxWait(ctx)
	}()

	post(t, c, func() {
		n := c.RxAlloc()
		n.Type = ull.NodeDCPDU
		n.Handle = 42
		c.RxPut(n)
		c.RxSched()
	})
	require.NoError(t, <-waited)

	n, _, _ := c.RxGet()
	require.NotNil(t, n)
	require.Equal(t, uint16(42), n.Handle)
	c.RxMemRelease(c.RxDequeue())
}

func TestHostAndRadioStream(t *testing.T) {
	const total = 200
	c := ull.New().RxCount(4).Build()
	stop := running(t, c)
	defer stop()

	// the radio side hands over whatever rx nodes it has on each tick
	sent := 0
	tick := mayfly.NewJob(func(any) {
		for sent < total {
			n := c.RxAlloc()
			if n == nil {
				break
			}
			n.Type = ull.NodeDCPDU
			n.Handle = uint16(sent)
			c.RxPut(n)
			sent++
		}
		c.RxSched()
	}, nil)

	// a tick may find the radio ring empty before ULL refilled it; the
	// host then waits briefly and ticks again
	deadline := time.Now().Add(10 * time.Second)
	for want := 0; want < total; {
		if time.Now().After(deadline) {
			t.Fatalf("stream stalled at %d of %d", want, total)
		}
		_ = c.Scheduler().Enqueue(mayfly.Thread, mayfly.LLL, false, tick)
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
		_ = c.RxWait(ctx)
		cancel()
		for {
			n, _, _ := c.RxGet()
			if n == nil {
				break
			}
			c.RxDequeue()
			if n.Handle != uint16(want) {
				t.Fatalf("handle: got %d, want %d", n.Handle, want)
			}
			want++
			c.RxMemRelease(n)
		}
	}
}
