package imapclient

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/driftmail/go-imap"
)

// idleUpdateBuffer is the capacity of the IDLE update stream. A consumer
// that falls further behind than this starts losing updates.
const idleUpdateBuffer = 64

// Idle sends an IDLE command.
//
// Updates pushed by the server are delivered on the Updates channel until
// Close is called or ctx is cancelled. While the IDLE is active no other
// command can be sent on the connection.
func (c *SelectedClient) Idle(ctx context.Context) (*IdleCommand, error) {
	return c.c.idle(ctx)
}

func (c *conn) idle(ctx context.Context) (*IdleCommand, error) {
	if !c.hasCap(imap.CapIdle) {
		return nil, fmt.Errorf("imapclient: server does not support IDLE")
	}

	cmd := &IdleCommand{
		client:   c,
		updates:  make(chan imap.UnilateralData, idleUpdateBuffer),
		finished: make(chan struct{}),
	}
	enc := c.beginCommand("IDLE", cmd)
	if cmd.err != nil {
		enc.end()
		return nil, cmd.err
	}
	cont := c.registerContReq(cmd.base())
	enc.flush()

	if _, err := cont.Wait(); err != nil {
		// The server rejected IDLE; the tagged response has been (or will
		// be) delivered on the command itself.
		c.encMutex.Unlock()
		cmd.closeUpdates()
		return nil, err
	}

	c.mutex.Lock()
	c.idleCmd = cmd
	c.mutex.Unlock()

	go func() {
		select {
		case <-ctx.Done():
			cmd.Close()
		case <-cmd.finished:
		}
	}()

	return cmd, nil
}

// IdleCommand is an in-progress IDLE command.
type IdleCommand struct {
	cmd
	client   *conn
	updates  chan imap.UnilateralData
	finished chan struct{}

	closeOnce    sync.Once
	closeErr     error
	updatesOnce  sync.Once
	finishedOnce sync.Once
}

// Updates returns the stream of server updates received while idling. The
// channel is closed when the IDLE ends.
func (cmd *IdleCommand) Updates() <-chan imap.UnilateralData {
	return cmd.updates
}

// Close ends the IDLE by sending DONE and waits for the server to
// acknowledge it.
//
// The wait is bounded by Options.DoneTimeout: a server that sits on the
// DONE would otherwise pin the connection forever. On expiry the
// connection is force-closed and an *imap.TimeoutError is returned.
func (cmd *IdleCommand) Close() error {
	cmd.closeOnce.Do(func() {
		cmd.closeErr = cmd.doClose()
	})
	return cmd.closeErr
}

func (cmd *IdleCommand) doClose() error {
	c := cmd.client

	c.mutex.Lock()
	if c.idleCmd == cmd {
		c.idleCmd = nil
	}
	c.mutex.Unlock()

	_, writeErr := c.bw.WriteString("DONE\r\n")
	if err := c.bw.Flush(); writeErr == nil {
		writeErr = err
	}
	c.encMutex.Unlock()

	timeout := c.options.doneTimeout()
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case err := <-cmd.done:
		if cmd.err == nil {
			cmd.err = err
		}
		cmd.closeUpdates()
		if writeErr != nil {
			return writeErr
		}
		return err
	case <-timer.C:
		err := &imap.TimeoutError{Op: "idle done", Duration: timeout}
		c.fatal(err)
		cmd.closeUpdates()
		if cmd.err == nil {
			cmd.err = err
		}
		return err
	}
}

// closeUpdates closes the update stream exactly once, from whichever of
// Close or the read loop teardown gets there first.
func (cmd *IdleCommand) closeUpdates() {
	cmd.updatesOnce.Do(func() {
		close(cmd.updates)
	})
	cmd.finishedOnce.Do(func() {
		close(cmd.finished)
	})
}
