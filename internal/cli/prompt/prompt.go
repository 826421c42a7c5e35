// Package prompt provides interactive terminal prompts for CLI commands.
package prompt

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/manifoldco/promptui"
	"golang.org/x/term"
)

var (
	// ErrAborted is returned when the user aborts a prompt (Ctrl+C).
	ErrAborted = errors.New("aborted")

	// ErrNotInteractive is returned when stdin is not a terminal.
	ErrNotInteractive = errors.New("stdin is not a terminal")
)

// IsAborted reports whether err came from the user cancelling a prompt.
func IsAborted(err error) bool {
	return errors.Is(err, promptui.ErrInterrupt) || errors.Is(err, promptui.ErrAbort) || errors.Is(err, ErrAborted)
}

// wrapError converts promptui interrupt/abort errors to ErrAborted.
func wrapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, promptui.ErrInterrupt) || errors.Is(err, promptui.ErrEOF) {
		return ErrAborted
	}
	return err
}

// Interactive reports whether prompts can be shown.
func Interactive() bool {
	return term.IsTerminal(int(os.Stdin.Fd()))
}

// Secret prompts for a value with masked input. Blank input is rejected.
func Secret(label string) (string, error) {
	if !Interactive() {
		return "", ErrNotInteractive
	}

	p := promptui.Prompt{
		Label: label,
		Mask:  '*',
		Validate: func(input string) error {
			if input == "" {
				return errors.New("value is required")
			}
			return nil
		},
	}

	result, err := p.Run()
	return result, wrapError(err)
}

// Confirm prompts for yes/no confirmation.
func Confirm(label string, defaultYes bool) (bool, error) {
	if !Interactive() {
		return false, ErrNotInteractive
	}

	defaultStr := "y/N"
	if defaultYes {
		defaultStr = "Y/n"
	}

	p := promptui.Prompt{
		Label:     fmt.Sprintf("%s [%s]", label, defaultStr),
		IsConfirm: true,
	}

	result, err := p.Run()
	if err != nil {
		if errors.Is(err, promptui.ErrInterrupt) {
			return false, ErrAborted
		}
		// promptui reports "n" as ErrAbort.
		if errors.Is(err, promptui.ErrAbort) {
			return false, nil
		}
		if result == "" {
			return defaultYes, nil
		}
		return false, err
	}

	result = strings.ToLower(result)
	return result == "y" || result == "yes", nil
}

// ConfirmWithForce returns true immediately if force is set, otherwise
// prompts with a "no" default.
func ConfirmWithForce(label string, force bool) (bool, error) {
	if force {
		return true, nil
	}
	return Confirm(label, false)
}
