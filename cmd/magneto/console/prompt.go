package console

import (
	"io"
	"os"
	"strings"

	"github.com/chzyer/readline"
)

const (
	Yes = "y"
	No  = "n"
)

var input io.ReadCloser = os.Stdin

// SetInput replaces the terminal as the source of prompt answers.
func SetInput(r io.Reader) {
	input = io.NopCloser(r)
}

// Confirm asks a yes/no question defaulting to no.
func Confirm(question string) (bool, error) {
	answer, err := Prompt(question, No, Yes)
	if err != nil {
		return false, err
	}
	return answer == Yes, nil
}

// Prompt reads one line. With constraints the answer is normalized to one of
// them and the first one is the default.
func Prompt(question string, constraints ...string) (string, error) {
	var prompt strings.Builder
	prompt.WriteString(question)
	if len(constraints) > 0 {
		prompt.WriteString(" [")
		prompt.WriteString(strings.ToUpper(constraints[0]))
		for _, c := range constraints[1:] {
			prompt.WriteString("/")
			prompt.WriteString(c)
		}
		prompt.WriteString("]: ")
	}
	rl, err := readline.NewEx(&readline.Config{
		Prompt: prompt.String(),
		Stdin:  input,
		Stdout: writer,
		Stderr: errWriter,
	})
	if err != nil {
		return "", err
	}
	defer func() { _ = rl.Close() }()
	response, err := rl.Readline()
	if err != nil {
		return "", err
	}
	if len(constraints) == 0 {
		return response, nil
	}
	normalized := strings.ToLower(strings.TrimSpace(response))
	for _, c := range constraints {
		if normalized == c {
			return normalized, nil
		}
	}
	// no input or no constraint matched, return default
	return constraints[0], nil
}
