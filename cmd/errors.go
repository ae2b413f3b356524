package cmd

import (
	"fmt"
	"strings"

	"github.com/josephgoksu/Wayline/internal/app"
)

// describeError expands cycle and policy failures so the user can see what
// to change. Other errors pass through.
func describeError(err error) error {
	if err == nil {
		return nil
	}
	body := app.Describe(err)
	if len(body.Nodes) == 0 && len(body.Violations) == 0 {
		return err
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "[%s] %s", body.Code, body.Message)
	if len(body.Nodes) > 0 {
		fmt.Fprintf(&sb, "\n  tasks in the cycle: %s", strings.Join(body.Nodes, ", "))
	}
	for _, v := range body.Violations {
		sb.WriteString("\n  - " + v)
	}
	return &cliError{msg: sb.String(), err: err}
}

type cliError struct {
	msg string
	err error
}

func (e *cliError) Error() string { return e.msg }
func (e *cliError) Unwrap() error { return e.err }

// exitCode maps the error taxonomy onto process exit codes.
func exitCode(err error) int {
	if err == nil {
		return 0
	}
	switch app.Kind(err) {
	case app.KindValidation, app.KindInvariant:
		return 2
	case app.KindNotFound:
		return 3
	case app.KindExternal:
		return 4
	}
	return 1
}
