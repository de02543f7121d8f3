package common

import (
	"context"
	"fmt"
	"io"

	"cvtailor/internal/errors"
)

// CreateInputFunc builds a command input from the positional arguments
type CreateInputFunc[Input any] func(fp *FileProcessor, args []string) (Input, error)

// LogDetailsFunc logs the start of an operation.
type LogDetailsFunc[Input any] func(input Input, cfg CommandConfig)

// OperationFunc runs the command's work on a prepared input
type OperationFunc[Input, Output any] func(context.Context, Input) (Output, error)

// Runner holds what every file based command needs
type Runner struct {
	Logger      *errors.Logger
	Out         io.Writer
	MaxFileSize int64
}

// RunCommand reads the input, runs the operation and writes the formatted
// result. logDetails may be nil.
func RunCommand[Input, Output any](
	ctx context.Context,
	r Runner,
	cmdConfig CommandConfig,
	args []string,
	createInput CreateInputFunc[Input],
	operation OperationFunc[Input, Output],
	logDetails LogDetailsFunc[Input],
) error {
	fileProcessor := NewFileProcessor(r.Logger, r.MaxFileSize)
	outputHandler := NewOutputHandlerTo(r.Out, r.Logger)

	input, err := createInput(fileProcessor, args)
	if err != nil {
		if _, ok := errors.As(err); ok {
			return err
		}
		return fmt.Errorf("failed to create input from file contents: %w", err)
	}

	if logDetails != nil {
		logDetails(input, cmdConfig)
	}

	result, err := operation(ctx, input)
	if err != nil {
		return err
	}

	return outputHandler.HandleOutput(result, cmdConfig)
}
