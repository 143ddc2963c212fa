// Copyright 2025 ByteDance Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     https://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package approval

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/pkg/errors"

	"github.com/danula-rathnayaka/CodePulse-AI/internal/pipeline"
)

// Console is a Signal that prints each draft and reads one line of input.
// Reads block; cancellation is observed between drafts.
type Console struct {
	in       *bufio.Reader
	out      io.Writer
	renderer *glamour.TermRenderer
	prompt   string
}

// NewConsole reads from in and writes to out. When render is set drafts are
// rendered as markdown.
func NewConsole(in io.Reader, out io.Writer, render bool) *Console {
	c := &Console{
		in:     bufio.NewReader(in),
		out:    out,
		prompt: "\nDo you approve this draft? (/yes to approve, or give feedback): ",
	}
	if render {
		c.renderer, _ = glamour.NewTermRenderer(
			glamour.WithAutoStyle(),
			glamour.WithWordWrap(100),
		)
	}
	return c
}

func (c *Console) Next(ctx context.Context, s pipeline.Session) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	fmt.Fprintf(c.out, "\nDraft (revision %d):\n\n%s\n", s.Revision, c.render(s.Draft))
	fmt.Fprint(c.out, c.prompt)
	line, err := c.in.ReadString('\n')
	if err != nil && (err != io.EOF || line == "") {
		if err == io.EOF {
			return "", pipeline.NewError(pipeline.KindCanceled, errors.New("input closed before approval"))
		}
		return "", errors.Wrap(err, "read approval input")
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func (c *Console) render(md string) string {
	if c.renderer == nil {
		return md
	}
	out, err := c.renderer.Render(md)
	if err != nil {
		return md
	}
	return out
}

// Scripted replies from a fixed list, repeating the last entry.
func Scripted(replies ...string) pipeline.Signal {
	i := 0
	return pipeline.SignalFunc(func(ctx context.Context, s pipeline.Session) (string, error) {
		if len(replies) == 0 {
			return pipeline.DefaultApproveToken, nil
		}
		r := replies[len(replies)-1]
		if i < len(replies) {
			r = replies[i]
		}
		i++
		return r, nil
	})
}
