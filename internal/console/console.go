// Package console is a line-based terminal transport for the Smart Repeat
// engine.
package console

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/abhisek/smartrepeat/internal/session"
	"github.com/abhisek/smartrepeat/internal/smartrepeat"
	"go.uber.org/zap"
)

// Handler applies actions. *smartrepeat.Engine implements it.
type Handler interface {
	Handle(ctx context.Context, a smartrepeat.Action) []smartrepeat.Reply
}

// Console reads one action per line and prints the replies.
type Console struct {
	handler Handler
	user    string
	profile string
	logger  *zap.Logger

	mu     sync.Mutex // guards out and prompt
	out    io.Writer
	prompt *smartrepeat.Reply
}

// New creates a Console for one user.
func New(h Handler, user, profile string, out io.Writer, logger *zap.Logger) *Console {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Console{
		handler: h,
		user:    user,
		profile: profile,
		out:     out,
		logger:  logger.Named("console"),
	}
}

// Run starts a pass and serves input until EOF, "quit" or ctx is done.
func (c *Console) Run(ctx context.Context, in io.Reader) error {
	lines := make(chan string)
	errc := make(chan error, 1)
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
		errc <- sc.Err()
	}()

	c.show(c.handler.Handle(ctx, smartrepeat.Action{
		UserID:  c.user,
		Kind:    smartrepeat.ActionStart,
		Profile: c.profile,
	}))

	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				select {
				case err := <-errc:
					return err
				default:
					return nil
				}
			}
			switch strings.ToLower(strings.TrimSpace(line)) {
			case "q", "quit", "exit":
				return nil
			}
			a, err := ParseInput(line, c.current())
			if err != nil {
				c.println(hintStyle.Render(err.Error()))
				continue
			}
			a.UserID = c.user
			a.Profile = c.profile
			c.logger.Debug("action", zap.Stringer("kind", a.Kind), zap.String("token", a.Token))
			c.show(c.handler.Handle(ctx, a))
		}
	}
}

// Expired tells the user their session was collected. Expiries of other
// users are ignored.
func (c *Console) Expired(e session.Expired) {
	if e.UserID != c.user {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.prompt = nil
	fmt.Fprintln(c.out, hintStyle.Render(fmt.Sprintf("Your session expired after %s of inactivity. Type start to begin again.", e.Idle.Round(time.Second))))
}

func (c *Console) show(replies []smartrepeat.Reply) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, r := range replies {
		fmt.Fprintln(c.out, Render(r))
		switch r.Kind {
		case smartrepeat.ReplyPrompt:
			p := r
			c.prompt = &p
		case smartrepeat.ReplyDone, smartrepeat.ReplyRestartRequired, smartrepeat.ReplyNoWords:
			c.prompt = nil
		}
	}
	if len(replies) > 0 && replies[len(replies)-1].Kind == smartrepeat.ReplyDone {
		fmt.Fprintln(c.out, hintStyle.Render("Type start for another round or quit to leave."))
	}
}

func (c *Console) current() *smartrepeat.Reply {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.prompt
}

func (c *Console) println(s string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintln(c.out, s)
}
