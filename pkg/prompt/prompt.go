/*
Copyright 2025 Kube-ZEN Contributors

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package prompt collects interactive input. Business logic depends on the
// Prompter interface only.
package prompt

import (
	"bufio"
	stderrors "errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/manifoldco/promptui"

	"github.com/kube-zen/kubeseal-auto/pkg/errors"
)

// ErrCancelled is returned when the user interrupts a prompt.
var ErrCancelled = errors.New(errors.TypeInvalidArguments, "cancelled by user")

// Prompter asks the user for input.
type Prompter interface {
	// Select returns the index of the chosen item.
	Select(label string, items []string) (int, error)
	// Input reads a line; validate may be nil.
	Input(label, defaultValue string, validate func(string) error) (string, error)
	// Secret reads a line without echoing it.
	Secret(label string) (string, error)
	// Lines reads lines until an empty one.
	Lines(label string) ([]string, error)
}

// Terminal is a Prompter backed by promptui.
type Terminal struct {
	Stdin  io.ReadCloser
	Stdout io.WriteCloser
}

// NewTerminal returns a Terminal on the process's standard streams.
func NewTerminal() *Terminal {
	return &Terminal{Stdin: os.Stdin, Stdout: os.Stderr}
}

// Select implements Prompter.
func (t *Terminal) Select(label string, items []string) (int, error) {
	sel := promptui.Select{
		Label:  label,
		Items:  items,
		Size:   10,
		Stdin:  t.Stdin,
		Stdout: t.Stdout,
	}
	i, _, err := sel.Run()
	return i, translate(err)
}

// Input implements Prompter.
func (t *Terminal) Input(label, defaultValue string, validate func(string) error) (string, error) {
	p := promptui.Prompt{
		Label:    label,
		Default:  defaultValue,
		Validate: validate,
		Stdin:    t.Stdin,
		Stdout:   t.Stdout,
	}
	v, err := p.Run()
	return strings.TrimSpace(v), translate(err)
}

// Secret implements Prompter.
func (t *Terminal) Secret(label string) (string, error) {
	p := promptui.Prompt{
		Label:  label,
		Mask:   '*',
		Stdin:  t.Stdin,
		Stdout: t.Stdout,
	}
	v, err := p.Run()
	return v, translate(err)
}

// Lines implements Prompter.
func (t *Terminal) Lines(label string) ([]string, error) {
	fmt.Fprintf(t.Stdout, "%s (finish with an empty line):\n", label)
	var lines []string
	scanner := bufio.NewScanner(t.Stdin)
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r")
		if line == "" {
			break
		}
		lines = append(lines, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(err, errors.TypeInvalidArguments, "reading input")
	}
	return lines, nil
}

func translate(err error) error {
	if err == nil {
		return nil
	}
	if stderrors.Is(err, promptui.ErrInterrupt) || stderrors.Is(err, promptui.ErrEOF) || stderrors.Is(err, promptui.ErrAbort) {
		return ErrCancelled
	}
	return errors.Wrap(err, errors.TypeInvalidArguments, "reading input")
}
