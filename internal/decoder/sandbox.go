// Package decoder compiles operator-authored decoder scripts and executes
// them against inbound webhook payloads.
//
// A decoder script is the body of a JavaScript function receiving a single
// `payload` argument and returning a plain object. Scripts are untrusted
// input executed on the request path, so every failure mode (compile error,
// thrown value, runtime panic, wall-clock interrupt, non-object return) is
// caught here and converted to a typed *Error; nothing propagates as a crash.
//
// Each invocation runs in a fresh interpreter with no host bindings: the
// script sees only its payload and returns plain data. It has no access to
// the filesystem, network, storage, or the audit log.
package decoder

import (
	"errors"
	"fmt"
	"time"

	"github.com/dop251/goja"
)

// DefaultTimeout bounds a single script invocation when the caller does not
// supply its own budget. Scripts run synchronously in the request path, so
// a runaway loop must not be able to hold a connection open indefinitely.
const DefaultTimeout = 2 * time.Second

// Stages at which a decoder can fail.
const (
	StageCompile = "compile"
	StageRuntime = "runtime"
)

// Error describes a decoder failure. Compile and runtime failures are the
// same failure class to callers; Stage exists for metrics and audit detail.
type Error struct {
	Stage   string
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("decoder %s error: %s", e.Stage, e.Message)
}

// AsError returns the *Error wrapped in err, if any.
func AsError(err error) (*Error, bool) {
	var decodeErr *Error
	ok := errors.As(err, &decodeErr)
	return decodeErr, ok
}

// Script is a compiled decoder ready for invocation. A Script is immutable
// and safe for concurrent use; every Invoke runs in its own interpreter.
type Script struct {
	program *goja.Program
}

// Compile turns a decoder script body into an invocable Script.
func Compile(source string) (*Script, error) {
	// The script is the function body; wrapping keeps the operator-facing
	// contract identical to `function(payload) { ... }`.
	wrapped := "(function(payload) {\n" + source + "\n})"

	program, err := goja.Compile("decoder", wrapped, false)
	if err != nil {
		return nil, &Error{Stage: StageCompile, Message: err.Error()}
	}
	return &Script{program: program}, nil
}

// Invoke runs the decoder against payload under the given wall-clock budget
// (DefaultTimeout when timeout is not positive) and returns the decoded
// object. The payload should be the unmarshalled JSON body of the request.
func (s *Script) Invoke(payload any, timeout time.Duration) (result map[string]any, err error) {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	defer func() {
		if r := recover(); r != nil {
			result = nil
			err = &Error{Stage: StageRuntime, Message: fmt.Sprintf("script panicked: %v", r)}
		}
	}()

	vm := goja.New()

	interrupt := time.AfterFunc(timeout, func() {
		vm.Interrupt("execution time budget exceeded")
	})
	defer interrupt.Stop()

	value, err := vm.RunProgram(s.program)
	if err != nil {
		return nil, runtimeError(err)
	}

	fn, ok := goja.AssertFunction(value)
	if !ok {
		return nil, &Error{Stage: StageRuntime, Message: "script did not evaluate to a function"}
	}

	returned, err := fn(goja.Undefined(), vm.ToValue(payload))
	if err != nil {
		return nil, runtimeError(err)
	}

	exported := returned.Export()
	object, ok := exported.(map[string]any)
	if !ok || object == nil {
		return nil, &Error{Stage: StageRuntime, Message: "decoder did not return an object"}
	}
	return object, nil
}

// runtimeError normalizes goja's error types into a single runtime *Error.
func runtimeError(err error) *Error {
	var interrupted *goja.InterruptedError
	if errors.As(err, &interrupted) {
		return &Error{Stage: StageRuntime, Message: "execution time budget exceeded"}
	}

	var exception *goja.Exception
	if errors.As(err, &exception) {
		return &Error{Stage: StageRuntime, Message: exception.Value().String()}
	}
	return &Error{Stage: StageRuntime, Message: err.Error()}
}
