// Package errdefs defines the error taxonomy shared by the frycook engine.
//
// Configuration and target-resolution errors are fatal to a whole run and are
// raised before any remote action. File-set, remote-action and recipe errors
// abort the current work item and the remaining items of the current host.
package errdefs

import (
	"errors"
	"fmt"
)

// Kind classifies an error for propagation decisions.
type Kind string

const (
	// KindConfigLoad marks an unreadable or malformed settings/environment document.
	KindConfigLoad Kind = "config_load"

	// KindInvalidTarget marks a target token that is neither a computer nor a group.
	KindInvalidTarget Kind = "invalid_target"

	// KindUnknownComponent marks a recipe or cookbook name missing from the registry.
	KindUnknownComponent Kind = "unknown_component"

	// KindFileSet marks a failure while synchronizing a package file set.
	KindFileSet Kind = "file_set"

	// KindRemoteAction marks a failed remote command outside file-set synchronization.
	KindRemoteAction Kind = "remote_action"

	// KindRecipe marks a failed recipe precondition raised by a recipe author.
	KindRecipe Kind = "recipe"
)

// Error is a classified error with the subject it concerns.
type Error struct {
	// Kind is the error classification.
	Kind Kind

	// Message is the human-readable message.
	Message string

	// Subject names what failed: a file, a target token, a remote path or a command.
	Subject string

	// Stage is the lifecycle stage or operation in progress, if known.
	Stage string

	// Err is the underlying error.
	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := fmt.Sprintf("[%s] %s", e.Kind, e.Message)
	if e.Subject != "" {
		msg += fmt.Sprintf(" (%s)", e.Subject)
	}
	if e.Stage != "" {
		msg += fmt.Sprintf(" during %s", e.Stage)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying error for error chain inspection.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports kind equality so errors.Is(err, &Error{Kind: KindFileSet}) works.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

// WithSubject sets the subject of the error.
func (e *Error) WithSubject(subject string) *Error {
	e.Subject = subject
	return e
}

// WithStage sets the stage of the error.
func (e *Error) WithStage(stage string) *Error {
	e.Stage = stage
	return e
}

// NewConfigLoadError reports a document that could not be read or parsed.
func NewConfigLoadError(file string, err error) *Error {
	return &Error{
		Kind:    KindConfigLoad,
		Message: "failed to load configuration",
		Subject: file,
		Err:     err,
	}
}

// NewInvalidTargetError reports a target token that could not be resolved.
func NewInvalidTargetError(token string) *Error {
	return &Error{
		Kind:    KindInvalidTarget,
		Message: "computer or group not defined in environment",
		Subject: token,
	}
}

// NewUnknownComponentError reports a recipe or cookbook name with no registration.
func NewUnknownComponentError(kind, name string) *Error {
	return &Error{
		Kind:    KindUnknownComponent,
		Message: fmt.Sprintf("unknown %s", kind),
		Subject: name,
	}
}

// NewFileSetError reports a failed file-set operation on path.
func NewFileSetError(path string, err error) *Error {
	return &Error{
		Kind:    KindFileSet,
		Message: "file set synchronization failed",
		Subject: path,
		Err:     err,
	}
}

// NewRemoteActionError reports a failed remote command.
func NewRemoteActionError(command string, err error) *Error {
	return &Error{
		Kind:    KindRemoteAction,
		Message: "remote action failed",
		Subject: command,
		Err:     err,
	}
}

// NewRecipeError reports a failed recipe precondition.
func NewRecipeError(format string, args ...interface{}) *Error {
	return &Error{
		Kind:    KindRecipe,
		Message: fmt.Sprintf(format, args...),
	}
}

func hasKind(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}

// IsConfigLoad returns true if err is a configuration load error.
func IsConfigLoad(err error) bool { return hasKind(err, KindConfigLoad) }

// IsInvalidTarget returns true if err is an invalid target error.
func IsInvalidTarget(err error) bool { return hasKind(err, KindInvalidTarget) }

// IsUnknownComponent returns true if err names an unregistered recipe or cookbook.
func IsUnknownComponent(err error) bool { return hasKind(err, KindUnknownComponent) }

// IsFileSet returns true if err is a file-set synchronization error.
func IsFileSet(err error) bool { return hasKind(err, KindFileSet) }

// IsRemoteAction returns true if err is a remote action error.
func IsRemoteAction(err error) bool { return hasKind(err, KindRemoteAction) }

// IsRecipe returns true if err is a recipe precondition error.
func IsRecipe(err error) bool { return hasKind(err, KindRecipe) }

// IsFatal returns true for errors that must stop the whole run: nothing has been
// mutated yet when they occur.
func IsFatal(err error) bool {
	return IsConfigLoad(err) || IsInvalidTarget(err) || IsUnknownComponent(err)
}
