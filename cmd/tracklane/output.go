package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/tracklane/tracklane/internal/commands"
)

// handleResult prints an operation result. In JSON mode the whole result is
// emitted as-is; otherwise render (when set) formats the entity, falling
// back to the human-readable message. Failures become command errors.
func handleResult(res commands.Result, render func(entity any) string) error {
	if jsonOutput {
		out, err := json.MarshalIndent(res, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(out))
		if !res.Success {
			return errors.New(res.Error.Message)
		}
		return nil
	}

	if !res.Success {
		if res.Error.Kind == commands.FailureAmbiguous {
			fmt.Fprintln(os.Stderr, res.Error.Message)
			for _, c := range res.Error.Candidates {
				fmt.Fprintf(os.Stderr, "  %s  %s\n", c.ID, c.Label)
			}
			return errors.New("ambiguous reference")
		}
		return errors.New(res.Error.Message)
	}

	if render != nil && res.Entity != nil {
		fmt.Println(render(res.Entity))
		return nil
	}
	fmt.Println(res.Message)
	return nil
}

func outputJSON(v any) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}
