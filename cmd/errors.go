package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/viper"

	"github.com/josephgoksu/guidedmodules/types"
)

// HandleFatalError handles unrecoverable errors that should terminate the application.
func HandleFatalError(userMsg string, technicalErr error) {
	PrintError(userMsg, technicalErr)
	os.Exit(1)
}

// PrintError prints an error message without exiting, allowing for recovery.
func PrintError(userMsg string, technicalErr error) {
	if viper.GetBool("verbose") && technicalErr != nil {
		// In verbose mode, print the detailed, underlying technical error.
		fmt.Fprintf(os.Stderr, "Error: %v\n", technicalErr)
	} else {
		// By default, print the clean, user-friendly message.
		fmt.Fprintln(os.Stderr, userMsg)
	}
}

// LogError logs an error without printing to stderr if verbose mode is off.
func LogError(msg string, err error) {
	if viper.GetBool("verbose") {
		if err != nil {
			fmt.Fprintf(os.Stderr, "[DEBUG] %s: %v\n", msg, err)
		} else {
			fmt.Fprintf(os.Stderr, "[DEBUG] %s\n", msg)
		}
	}
}

// userMessage turns an engine error into the line shown without --verbose.
// Configuration errors are for operators and keep their details.
func userMessage(err error) string {
	switch types.KindOf(err) {
	case types.KindValidation:
		return "Invalid answer: " + err.Error()
	case types.KindConfiguration:
		return "Module configuration problem: " + err.Error()
	case types.KindPermission:
		return "Permission denied."
	case types.KindCycle:
		return "That link would make a task depend on itself."
	case types.KindNotFound:
		return "Not found: " + err.Error()
	}
	return "Error: " + err.Error()
}

// exitCode maps error kinds to process exit codes.
func exitCode(err error) int {
	switch types.KindOf(err) {
	case types.KindValidation, types.KindCycle:
		return 2
	case types.KindPermission:
		return 3
	case types.KindNotFound:
		return 4
	case types.KindConfiguration:
		return 5
	}
	return 1
}
