package cli

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/chzyer/readline"
	"github.com/spf13/cobra"

	"github.com/duckllm/duckllm/internal/nl2sql"
	"github.com/duckllm/duckllm/internal/query"
	"github.com/duckllm/duckllm/internal/session"
)

const followUpPrompt = "follow-up> "

// LineReader is the prompt the follow-up loop reads from. Readline returns
// readline.ErrInterrupt on Ctrl-C and io.EOF on Ctrl-D.
type LineReader interface {
	Readline() (string, error)
	Close() error
}

func (a *app) lineReader(cmd *cobra.Command) (LineReader, error) {
	if a.opts.NewLineReader != nil {
		return a.opts.NewLineReader(followUpPrompt)
	}
	rl, err := readline.NewEx(a.readlineConfig(cmd))
	if err != nil {
		return nil, fmt.Errorf("start follow-up prompt: %w", err)
	}
	return rl, nil
}

// readlineConfig keeps no history file; follow-up questions can quote data
// from the user's files.
func (a *app) readlineConfig(cmd *cobra.Command) *readline.Config {
	cfg := &readline.Config{
		Prompt:          followUpPrompt,
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
		Stdout:          cmd.OutOrStdout(),
		Stderr:          cmd.ErrOrStderr(),
	}
	if a.opts.Stdin != nil {
		cfg.Stdin = io.NopCloser(a.opts.Stdin)
	}
	return cfg
}

// followUps answers each line with the analyzer until the user leaves. A
// failed answer is reported and the loop keeps going unless ctx is done.
func (a *app) followUps(cmd *cobra.Command, sess *session.Session, result query.Result, conv *nl2sql.Conversation) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	rl, err := a.lineReader(cmd)
	if err != nil {
		return err
	}
	defer func() { _ = rl.Close() }()

	printBanner(out)
	for {
		line, err := rl.Readline()
		if errors.Is(err, readline.ErrInterrupt) || errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("read follow-up: %w", err)
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		switch strings.ToLower(line) {
		case "exit", "quit":
			return nil
		}

		answer, err := sess.Analyze(ctx, line, result, conv)
		if err != nil {
			_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "Error: %v\n", err)
			if ctx.Err() != nil {
				return nil
			}
			continue
		}
		_, _ = fmt.Fprintf(out, "%s\n\n", answer)
		conv.Append(line, answer)
	}
}

// ScannerLineReader reads follow-ups from a plain reader, one per line.
type ScannerLineReader struct {
	scanner *bufio.Scanner
}

func NewScannerLineReader(r io.Reader) *ScannerLineReader {
	return &ScannerLineReader{scanner: bufio.NewScanner(r)}
}

func (s *ScannerLineReader) Readline() (string, error) {
	if s.scanner.Scan() {
		return s.scanner.Text(), nil
	}
	if err := s.scanner.Err(); err != nil {
		return "", err
	}
	return "", io.EOF
}

func (s *ScannerLineReader) Close() error { return nil }
