// Copyright 2025 Tom Barlow
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package shared

import (
	"errors"
	"fmt"
	"os"

	pkgerrors "github.com/tombee/strand/pkg/errors"
)

// Exit codes for strand commands
const (
	ExitSuccess         = 0
	ExitExecutionFailed = 1
	ExitInvalidConfig   = 2
	ExitNotFound        = 3
	ExitExportFailed    = 4
)

// ExitError is an error that carries an exit code
type ExitError struct {
	Code    int
	Message string
	Cause   error
}

func (e *ExitError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *ExitError) Unwrap() error {
	return e.Cause
}

// NewExecutionError creates an error for demo or tracing failures
func NewExecutionError(msg string, cause error) *ExitError {
	return &ExitError{
		Code:    ExitExecutionFailed,
		Message: msg,
		Cause:   cause,
	}
}

// HandleExitError prints err and exits with its mapped code. Typed domain
// errors get dedicated codes so scripts can branch on them.
func HandleExitError(err error) {
	if err == nil {
		return
	}

	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		fmt.Fprintln(os.Stderr, "Error:", exitErr.Error())
		os.Exit(exitErr.Code)
	}

	fmt.Fprintln(os.Stderr, "Error:", err.Error())

	var notFound *pkgerrors.NotFoundError
	if errors.As(err, &notFound) {
		os.Exit(ExitNotFound)
	}

	var cfgErr *pkgerrors.ConfigError
	if errors.As(err, &cfgErr) {
		os.Exit(ExitInvalidConfig)
	}

	var exportErr *pkgerrors.ExportError
	if errors.As(err, &exportErr) {
		os.Exit(ExitExportFailed)
	}

	os.Exit(ExitExecutionFailed)
}
