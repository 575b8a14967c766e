package types

import (
	"errors"
	"fmt"
)

// PreconditionError signals a missing input the pipeline cannot proceed
// without (plugin manifest, build descriptor, package info). These abort the
// run immediately and are never retried.
type PreconditionError struct {
	What string
	Path string
}

func (e *PreconditionError) Error() string {
	return fmt.Sprintf("precondition failed: %s not found at %s", e.What, e.Path)
}

// NewPreconditionError creates a new PreconditionError
func NewPreconditionError(what, path string) *PreconditionError {
	return &PreconditionError{What: what, Path: path}
}

// IsPreconditionError checks if the error is or wraps a PreconditionError
func IsPreconditionError(err error) bool {
	var pe *PreconditionError
	return err != nil && errors.As(err, &pe)
}

// MergeConflictError signals that two build jobs contributed the same
// relative path to the canonical distribution tree. A silent overwrite would
// mask a packaging bug, so the merge fails instead.
type MergeConflictError struct {
	Path string
}

func (e *MergeConflictError) Error() string {
	return fmt.Sprintf("duplicate files in dist folders: %s", e.Path)
}

// NewMergeConflictError creates a new MergeConflictError
func NewMergeConflictError(path string) *MergeConflictError {
	return &MergeConflictError{Path: path}
}

// IsMergeConflictError checks if the error is or wraps a MergeConflictError
func IsMergeConflictError(err error) bool {
	var me *MergeConflictError
	return err != nil && errors.As(err, &me)
}

// IntegrityError signals a produced artifact that fails verification, such
// as an archive below the minimum viable size.
type IntegrityError struct {
	Artifact string
	Reason   string
}

func (e *IntegrityError) Error() string {
	return fmt.Sprintf("artifact integrity failure: %s: %s", e.Artifact, e.Reason)
}

// NewIntegrityError creates a new IntegrityError
func NewIntegrityError(artifact, reason string) *IntegrityError {
	return &IntegrityError{Artifact: artifact, Reason: reason}
}

// IsIntegrityError checks if the error is or wraps an IntegrityError
func IsIntegrityError(err error) bool {
	var ie *IntegrityError
	return err != nil && errors.As(err, &ie)
}

// VersionMismatchError signals that the live instance under test is running
// a different build than the artifact just deployed. Pass/fail counts
// against the wrong build would be misleading, so the test stage records
// this into its results instead of producing them.
type VersionMismatchError struct {
	Expected string
	Got      string
}

func (e *VersionMismatchError) Error() string {
	return fmt.Sprintf("version mismatch: instance is running build %q, artifact under test is %q", e.Got, e.Expected)
}

// NewVersionMismatchError creates a new VersionMismatchError
func NewVersionMismatchError(expected, got string) *VersionMismatchError {
	return &VersionMismatchError{Expected: expected, Got: got}
}

// IsVersionMismatchError checks if the error is or wraps a VersionMismatchError
func IsVersionMismatchError(err error) bool {
	var ve *VersionMismatchError
	return err != nil && errors.As(err, &ve)
}

// AlreadyRegisteredError signals an attempt to publish to a job key that is
// already occupied. A given (plugin, run, build number) may be published at
// most once; retried CI invocations trip this instead of duplicating
// history.
type AlreadyRegisteredError struct {
	Key string
}

func (e *AlreadyRegisteredError) Error() string {
	return fmt.Sprintf("job already registered: %s", e.Key)
}

// NewAlreadyRegisteredError creates a new AlreadyRegisteredError
func NewAlreadyRegisteredError(key string) *AlreadyRegisteredError {
	return &AlreadyRegisteredError{Key: key}
}

// IsAlreadyRegisteredError checks if the error is or wraps an AlreadyRegisteredError
func IsAlreadyRegisteredError(err error) bool {
	var ae *AlreadyRegisteredError
	return err != nil && errors.As(err, &ae)
}
