package safety

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

// PromptOptions controls how Confirm behaves without a human at the terminal.
type PromptOptions struct {
	// Yes answers every question affirmatively without reading input.
	Yes bool
}

// Confirm asks a yes/no question on out and reads the answer from in.
// Anything other than "y" or "yes" declines, including end of input.
func Confirm(opts PromptOptions, in io.Reader, out io.Writer, question string) (bool, error) {
	if opts.Yes {
		return true, nil
	}
	if out != nil {
		fmt.Fprintf(out, "%s [y/N]: ", strings.TrimSpace(question))
	}
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && err != io.EOF {
		return false, err
	}
	ans := strings.ToLower(strings.TrimSpace(line))
	return ans == "y" || ans == "yes", nil
}
