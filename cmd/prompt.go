package cmd

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/camden-git/facebench/recognition"
)

// parseModelChoice accepts a 1-based menu number or a model name.
func parseModelChoice(input string) (recognition.ModelName, bool) {
	input = strings.TrimSpace(input)
	if n, err := strconv.Atoi(input); err == nil {
		if n >= 1 && n <= len(recognition.KnownModels) {
			return recognition.KnownModels[n-1], true
		}
		return "", false
	}
	return recognition.ParseModel(input)
}

// promptModel shows the model menu and reads until a valid choice is made.
func promptModel(in *bufio.Reader, out io.Writer) (recognition.ModelName, error) {
	fmt.Fprintln(out, "\nAvailable models:")
	for i, m := range recognition.KnownModels {
		fmt.Fprintf(out, "%d. %s\n", i+1, m)
	}
	for {
		fmt.Fprintf(out, "Select model (1-%d): ", len(recognition.KnownModels))
		line, err := in.ReadString('\n')
		if model, ok := parseModelChoice(line); ok {
			return model, nil
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				return "", errors.New("no model selected")
			}
			return "", err
		}
		fmt.Fprintln(out, "Invalid selection. Please try again.")
	}
}

// promptParticipant asks for the expected identity. Empty means no verification.
func promptParticipant(in *bufio.Reader, out io.Writer) (string, error) {
	fmt.Fprint(out, "Participant name (leave empty to skip verification): ")
	line, err := in.ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", err
	}
	return strings.TrimSpace(line), nil
}
