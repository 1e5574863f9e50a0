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

// Package prompttest provides a scripted prompt.Prompter for tests.
package prompttest

import (
	"fmt"
	"sync"
)

// Answer is one scripted response.
type Answer struct {
	// Choice is the item selected by Select, matched by text.
	Choice string
	// Text is returned by Input and Secret.
	Text string
	// Lines is returned by Lines.
	Lines []string
	// Err is returned instead of a value.
	Err error
}

// Script replays answers in order and records every label it was asked.
type Script struct {
	mu      sync.Mutex
	answers []Answer
	Asked   []string
}

// New creates a Script.
func New(answers ...Answer) *Script {
	return &Script{answers: answers}
}

// Choose is shorthand for a Select answer.
func Choose(item string) Answer { return Answer{Choice: item} }

// Type is shorthand for an Input or Secret answer.
func Type(text string) Answer { return Answer{Text: text} }

// Paste is shorthand for a Lines answer.
func Paste(lines ...string) Answer { return Answer{Lines: lines} }

// Remaining returns the number of unused answers.
func (s *Script) Remaining() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.answers)
}

func (s *Script) next(label string) (Answer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Asked = append(s.Asked, label)
	if len(s.answers) == 0 {
		return Answer{}, fmt.Errorf("prompttest: no answer scripted for %q", label)
	}
	a := s.answers[0]
	s.answers = s.answers[1:]
	return a, a.Err
}

// Select implements prompt.Prompter.
func (s *Script) Select(label string, items []string) (int, error) {
	a, err := s.next(label)
	if err != nil {
		return 0, err
	}
	for i, item := range items {
		if item == a.Choice {
			return i, nil
		}
	}
	return 0, fmt.Errorf("prompttest: %q is not offered by %q (items %v)", a.Choice, label, items)
}

// Input implements prompt.Prompter. Validation runs like the terminal does.
func (s *Script) Input(label, defaultValue string, validate func(string) error) (string, error) {
	a, err := s.next(label)
	if err != nil {
		return "", err
	}
	v := a.Text
	if v == "" {
		v = defaultValue
	}
	if validate != nil {
		if err := validate(v); err != nil {
			return "", err
		}
	}
	return v, nil
}

// Secret implements prompt.Prompter.
func (s *Script) Secret(label string) (string, error) {
	a, err := s.next(label)
	return a.Text, err
}

// Lines implements prompt.Prompter.
func (s *Script) Lines(label string) ([]string, error) {
	a, err := s.next(label)
	return a.Lines, err
}
