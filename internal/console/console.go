// Package console is a line-oriented terminal front end bound to one session.
//
// Every command is turned into a dispatcher request; the console only renders
// results. Plain lines are questions, lines starting with ':' are commands.
package console

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/nadzzz/qadesk/internal/message"
	"github.com/nadzzz/qadesk/internal/transport"
)

const help = `Commands:
  :voice            ask by voice (text mode)
  :image <path>     upload an image (image mode)
  :hear <out-file>  save the last response as audio
  :history on|off   show or hide question history
  :back             return to the menu
  :quit             leave`

// Console drives one session from a reader and renders to a writer.
type Console struct {
	handler transport.Handler
	in      *bufio.Scanner
	out     io.Writer

	sessionID string
	view      *message.View

	readFile  func(string) ([]byte, error)
	writeFile func(string, []byte) error
}

// New creates a console reading commands from in.
func New(handler transport.Handler, in io.Reader, out io.Writer) *Console {
	return &Console{
		handler:   handler,
		in:        bufio.NewScanner(in),
		out:       out,
		readFile:  os.ReadFile,
		writeFile: func(name string, data []byte) error { return os.WriteFile(name, data, 0o644) },
	}
}

// Run creates a session and processes lines until :quit, EOF or ctx ends.
// The session is ended on return.
func (c *Console) Run(ctx context.Context) error {
	res, err := c.handler(ctx, &message.Request{Action: message.ActionCreateSession})
	if err != nil {
		return fmt.Errorf("creating session: %w", err)
	}
	c.sessionID = res.View.SessionID
	c.view = res.View
	defer func() {
		_, _ = c.handler(context.WithoutCancel(ctx), &message.Request{SessionID: c.sessionID, Action: message.ActionEndSession})
	}()

	c.prompt()
	for c.in.Scan() {
		if ctx.Err() != nil {
			return nil
		}
		line := strings.TrimSpace(c.in.Text())
		quit, err := c.exec(ctx, line)
		if err != nil {
			return err
		}
		if quit {
			return nil
		}
		c.prompt()
	}
	return c.in.Err()
}

func (c *Console) prompt() {
	switch c.view.Mode {
	case message.ModeLanding:
		c.printf("\nWelcome to the Q&A Application\n  1) Ask a Question\n  2) Ask a Question from Image\n> ")
	case message.ModeTextQuestion:
		c.printf("\nEnter your question (:voice, :hear, :history, :back, :quit)\n> ")
	case message.ModeImageQuestion:
		if c.view.HasImageContext {
			c.printf("\nAsk a question about the image (:image, :hear, :back, :quit)\n> ")
		} else {
			c.printf("\nUpload an image containing text with :image <path> (:back, :quit)\n> ")
		}
	}
}

// exec runs one input line. It reports whether the console should stop.
func (c *Console) exec(ctx context.Context, line string) (bool, error) {
	if line == "" {
		return false, nil
	}

	cmd, arg, _ := strings.Cut(line, " ")
	arg = strings.TrimSpace(arg)

	switch cmd {
	case ":quit", ":q":
		return true, nil
	case ":help":
		c.printf("%s\n", help)
		return false, nil
	case ":back":
		return false, c.do(ctx, &message.Request{Action: message.ActionBack})
	case ":history":
		show := arg == "on"
		if !show && arg != "off" {
			c.printf("usage: :history on|off\n")
			return false, nil
		}
		return false, c.do(ctx, &message.Request{Action: message.ActionSetHistoryVisibility, ShowHistory: show})
	case ":voice":
		c.printf("Listening...\n")
		return false, c.do(ctx, &message.Request{Action: message.ActionSubmitVoice})
	case ":image":
		if arg == "" {
			c.printf("usage: :image <path>\n")
			return false, nil
		}
		data, err := c.readFile(arg)
		if err != nil {
			c.printf("error: %v\n", err)
			return false, nil
		}
		return false, c.do(ctx, &message.Request{Action: message.ActionUploadImage, Image: data})
	case ":hear":
		if arg == "" {
			c.printf("usage: :hear <out-file>\n")
			return false, nil
		}
		return false, c.hear(ctx, arg)
	}

	if strings.HasPrefix(cmd, ":") {
		c.printf("unknown command %s\n%s\n", cmd, help)
		return false, nil
	}

	switch c.view.Mode {
	case message.ModeLanding:
		switch strings.ToLower(line) {
		case "1", "text":
			return false, c.do(ctx, &message.Request{Action: message.ActionChooseText})
		case "2", "image":
			return false, c.do(ctx, &message.Request{Action: message.ActionChooseImage})
		default:
			c.printf("choose 1 or 2\n")
			return false, nil
		}
	case message.ModeTextQuestion:
		return false, c.do(ctx, &message.Request{Action: message.ActionSubmitText, Question: line})
	case message.ModeImageQuestion:
		return false, c.do(ctx, &message.Request{Action: message.ActionSubmitImageQuestion, Question: line})
	default:
		return false, fmt.Errorf("unhandled mode %s", c.view.Mode)
	}
}

func (c *Console) hear(ctx context.Context, path string) error {
	res, err := c.send(ctx, &message.Request{Action: message.ActionHearResponse})
	if err != nil || res.Error != "" {
		return err
	}
	audio, err := res.AudioBytes()
	if err != nil {
		c.printf("error: %v\n", err)
		return nil
	}
	if err := c.writeFile(path, audio); err != nil {
		c.printf("error: %v\n", err)
		return nil
	}
	c.printf("Saved %d bytes of %s to %s\n", len(audio), res.AudioContentType, path)
	return nil
}

func (c *Console) do(ctx context.Context, req *message.Request) error {
	_, err := c.send(ctx, req)
	return err
}

// send dispatches req for the console's session and renders the result.
func (c *Console) send(ctx context.Context, req *message.Request) (*message.Result, error) {
	req.SessionID = c.sessionID
	res, err := c.handler(ctx, req)
	if err != nil {
		return nil, err
	}
	if res.View == nil {
		return nil, errors.New("session ended: " + res.Error)
	}
	c.view = res.View
	c.render(res)
	return res, nil
}

func (c *Console) render(res *message.Result) {
	if res.Transcript != "" {
		c.printf("Recognized: %s\n", res.Transcript)
	}
	for _, n := range res.Notices {
		c.printf("[%s] %s\n", n.Level, n.Message)
	}
	if res.Response != "" {
		c.printf("\nResponse:\n%s\n", res.Response)
	}

	answered := res.Action == message.ActionSubmitText || res.Action == message.ActionSubmitVoice
	if c.view.ShowHistory && (answered || res.Action == message.ActionSetHistoryVisibility) {
		c.printf("\nQuestion History\n")
		for i, e := range c.view.History {
			c.printf("Q%d: %s\nA%d: %s\n---\n", i+1, e.Question, i+1, e.Response)
		}
	}
}

func (c *Console) printf(format string, args ...any) {
	fmt.Fprintf(c.out, format, args...)
}
