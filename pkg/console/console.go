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

// Package console writes user-facing progress, warnings and results.
// Diagnostics for --debug go through pkg/logging instead.
package console

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/briandowns/spinner"
	"golang.org/x/term"
)

// Console prints to a single stream, stderr in the CLI.
type Console struct {
	mu       sync.Mutex
	w        io.Writer
	animated bool
	warnings []string
}

// New returns a Console writing to w. Spinners are only animated when w is
// a terminal.
func New(w io.Writer) *Console {
	c := &Console{w: w}
	if f, ok := w.(*os.File); ok {
		c.animated = term.IsTerminal(int(f.Fd()))
	}
	return c
}

// Successf prints a success line.
func (c *Console) Successf(format string, args ...interface{}) {
	c.printf("%s %s\n", Success.Sprint("✓"), fmt.Sprintf(format, args...))
}

// Infof prints an informational line.
func (c *Console) Infof(format string, args ...interface{}) {
	c.printf("%s %s\n", Info.Sprint("→"), fmt.Sprintf(format, args...))
}

// Warnf prints a warning line and remembers it.
func (c *Console) Warnf(format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	c.mu.Lock()
	c.warnings = append(c.warnings, msg)
	c.mu.Unlock()
	c.printf("%s %s\n", Warning.Sprint("⚠"), msg)
}

// Errorf prints an error line.
func (c *Console) Errorf(format string, args ...interface{}) {
	c.printf("%s %s\n", Error.Sprint("✗"), fmt.Sprintf(format, args...))
}

// Warnings returns every warning printed so far.
func (c *Console) Warnings() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.warnings...)
}

// Step shows msg while a blocking call runs and returns a func that ends it.
func (c *Console) Step(msg string) func() {
	if !c.animated {
		c.printf("%s %s\n", Muted.Sprint("…"), msg)
		return func() {}
	}
	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond, spinner.WithWriter(c.w))
	s.Suffix = " " + msg
	s.Start()
	return s.Stop
}

func (c *Console) printf(format string, args ...interface{}) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintf(c.w, format, args...)
}
