package controller

import (
	"bufio"
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

// TerminalPrompter asks questions on the command's streams and reads
// one-line answers.
type TerminalPrompter struct {
	cmd *cobra.Command
}

// NewTerminalPrompter creates a prompter bound to the command's input and
// output streams.
func NewTerminalPrompter(cmd *cobra.Command) *TerminalPrompter {
	return &TerminalPrompter{cmd: cmd}
}

// Choose prints question with its choices and reads one answer. Empty
// input selects fallback; an unknown answer asks again.
func (p *TerminalPrompter) Choose(ctx context.Context, question string, choices []string, fallback string) (string, error) {
	reader := bufio.NewReader(p.cmd.InOrStdin())

	for {
		if err := ctx.Err(); err != nil {
			return "", err
		}

		p.cmd.Printf("%s [%s] (%s): ", question, strings.Join(choices, "/"), fallback)

		line, err := reader.ReadString('\n')
		if err != nil && line == "" {
			return "", fmt.Errorf("read answer: %w", err)
		}

		answer := strings.ToLower(strings.TrimSpace(line))
		if answer == "" {
			return fallback, nil
		}

		for _, choice := range choices {
			if answer == strings.ToLower(choice) {
				return answer, nil
			}
		}

		p.cmd.Println("Please answer one of:", strings.Join(choices, ", "))

		if err != nil {
			// EOF after a partial line: nothing more will arrive.
			return "", fmt.Errorf("read answer: %w", err)
		}
	}
}
