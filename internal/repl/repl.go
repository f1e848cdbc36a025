// Package repl implements the two CLI entry points spec.md §6 documents
// as visible-through-the-core behavior: free-form prompt generation and
// the fixed benchmark scenario. Neither is part of the specified core
// itself — the core is internal/engine — but both are how a caller
// drives it, grounded on the teacher's cmd/cmd_run.go interactive loop.
package repl

import (
	"context"
	"fmt"

	"github.com/dddimcha/embodiOS-sub004/internal/console"
	"github.com/dddimcha/embodiOS-sub004/internal/engine"
	"github.com/dddimcha/embodiOS-sub004/internal/sampler"
)

// Session wires one loaded engine to one console and one vocabulary.
type Session struct {
	Engine   *engine.Engine
	Vocab    *sampler.Vocab
	Sampler  *sampler.Sampler
	Console  console.Console
	MaxOut   int
	EOSToken int32
}

// Prompt runs one generation for a single line of prompt text, printing
// the decoded output tokens to the console as they're produced.
func (s *Session) Prompt(ctx context.Context, text string) error {
	promptIDs := s.Vocab.Encode(text)
	out, err := s.Engine.Generate(ctx, promptIDs, s.MaxOut, s.Sampler, s.EOSToken)
	if err != nil {
		return fmt.Errorf("generate: %w", err)
	}
	decoded := s.Vocab.Decode(out)
	_, err = s.Console.Print([]byte(decoded))
	return err
}

// Loop reads lines from the console until ReadLine reports EOF, running
// Prompt on each non-empty line.
func (s *Session) Loop(ctx context.Context) error {
	buf := make([]byte, 4096)
	for {
		n, err := s.Console.ReadLine(buf)
		if n > 0 {
			if perr := s.Prompt(ctx, string(buf[:n])); perr != nil {
				return perr
			}
			if _, werr := s.Console.Print([]byte("\n")); werr != nil {
				return werr
			}
		}
		if err != nil {
			return nil // EOF ends the loop cleanly, exit code 0 per spec.md §6
		}
	}
}
