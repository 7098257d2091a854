package setup

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

// Prompter provides reusable terminal prompts backed by an io.Reader/Writer
// pair. In production these are os.Stdin and os.Stdout; tests can inject
// buffers for deterministic input.
type Prompter struct {
	scanner *bufio.Scanner
	w       io.Writer
}

// NewPrompter creates a Prompter wired to the given reader and writer.
func NewPrompter(r io.Reader, w io.Writer) *Prompter {
	return &Prompter{scanner: bufio.NewScanner(r), w: w}
}

// String prompts the user for a text value. If the user presses Enter without
// typing anything, defaultVal is returned. An empty defaultVal means the field
// is required and the prompt repeats until a non-empty value is given.
func (p *Prompter) String(label, defaultVal string) string {
	for {
		if defaultVal != "" {
			_, _ = fmt.Fprintf(p.w, "  %s [%s]: ", label, defaultVal)
		} else {
			_, _ = fmt.Fprintf(p.w, "  %s: ", label)
		}

		if !p.scanner.Scan() {
			return defaultVal
		}

		val := strings.TrimSpace(p.scanner.Text())
		if val == "" {
			if defaultVal != "" {
				return defaultVal
			}
			_, _ = fmt.Fprintf(p.w, "  (required, please enter a value)\n")
			continue
		}
		return val
	}
}

// Secret prompts for a sensitive value (like a password). The value is not
// masked (terminal raw mode would require a dependency), but is marked as
// sensitive in the prompt label.
func (p *Prompter) Secret(label string) string {
	for {
		_, _ = fmt.Fprintf(p.w, "  %s: ", label)

		if !p.scanner.Scan() {
			return ""
		}

		val := strings.TrimSpace(p.scanner.Text())
		if val == "" {
			_, _ = fmt.Fprintf(p.w, "  (required, please enter a value)\n")
			continue
		}
		return val
	}
}

// Confirm asks a yes/no question. defaultYes controls what happens when the
// user presses Enter without typing: true means yes, false means no.
func (p *Prompter) Confirm(label string, defaultYes bool) bool {
	hint := "[y/N]"
	if defaultYes {
		hint = "[Y/n]"
	}

	_, _ = fmt.Fprintf(p.w, "  %s %s: ", label, hint)

	if !p.scanner.Scan() {
		return defaultYes
	}

	answer := strings.TrimSpace(strings.ToLower(p.scanner.Text()))
	if answer == "" {
		return defaultYes
	}
	return answer == "y" || answer == "yes"
}
