package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"workguard/internal/activity"
)

type timer interface {
	RecordInput(at time.Time)
	Resume(now time.Time)
	Stop()
	Reset()
	Snapshot() activity.State
}

// console maps stdin commands onto a tracker.
type console struct {
	tracker timer
	out     io.Writer
	now     func() time.Time
}

func newConsole(t timer, out io.Writer) *console {
	return &console{tracker: t, out: out, now: time.Now}
}

// Run handles lines until logout, EOF or ctx cancellation.
func (c *console) Run(ctx context.Context, in io.Reader) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	lines := make(chan string)
	scanErr := make(chan error, 1)
	go func() {
		defer close(lines)
		sc := bufio.NewScanner(in)
		for sc.Scan() {
			select {
			case lines <- sc.Text():
			case <-ctx.Done():
				return
			}
		}
		scanErr <- sc.Err()
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				select {
				case err := <-scanErr:
					return err
				default:
					return nil
				}
			}
			done, err := c.handle(line)
			if err != nil || done {
				return err
			}
		}
	}
}

func (c *console) handle(line string) (done bool, err error) {
	switch cmd := strings.ToLower(strings.TrimSpace(line)); cmd {
	case "":
		return false, nil
	case "input":
		c.tracker.RecordInput(c.now())
	case "resume":
		c.tracker.Resume(c.now())
	case "status":
		return false, json.NewEncoder(c.out).Encode(c.tracker.Snapshot())
	case "logout":
		c.tracker.Stop()
		c.tracker.Reset()
		return true, nil
	default:
		_, err = fmt.Fprintf(c.out, "unknown command %q\n", cmd)
	}
	return false, err
}
