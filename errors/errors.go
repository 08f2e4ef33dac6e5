package errors

import (
	stderrors "errors"
	"fmt"

	"github.com/pkg/errors"
)

type ErrorCode int

const (
	InternalError ErrorCode = iota
	InvalidConfiguration
	ConfigurationError
	ResourceError
	DeviceBusy
	TransferFailed
	KernelFailed
	UnknownKernel
	PipelineAborted
	InvalidArgument
)

func NewInvalidConfigurationError(msg string) FabriqError {
	return NewFabriqErrorf(InvalidConfiguration, "Invalid configuration: %s", msg)
}

func NewConfigurationError(msg string) FabriqError {
	return NewFabriqErrorf(ConfigurationError, msg)
}

// NewDeviceStorageMissingError is raised when a transfer or kernel binding references
// a buffer whose device storage has not been allocated yet.
func NewDeviceStorageMissingError(bufferName string) FabriqError {
	return NewFabriqErrorf(ResourceError, "Buffer %s has no device storage allocated", bufferName)
}

func NewResourceError(msg string) FabriqError {
	return NewFabriqErrorf(ResourceError, msg)
}

func NewDeviceBusyError(kernelName string) FabriqError {
	return NewFabriqErrorf(DeviceBusy, "Kernel engine %s has an unretired invocation", kernelName)
}

func NewSchemaMismatchError(kernelName string, bufferName string, msg string) FabriqError {
	return NewFabriqErrorf(ConfigurationError, "Kernel %s port does not match buffer %s: %s", kernelName, bufferName, msg)
}

func NewTransferFailedError(name string, cause error) FabriqError {
	return NewFabriqErrorf(TransferFailed, "Transfer %s failed: %v", name, cause)
}

func NewKernelFailedError(name string, cause error) FabriqError {
	return NewFabriqErrorf(KernelFailed, "Kernel %s failed: %v", name, cause)
}

func NewUnknownKernelError(name string) FabriqError {
	return NewFabriqErrorf(UnknownKernel, "Device binary does not provide kernel %s", name)
}

func NewPipelineAbortedError(stageIndex int, stageName string, cause error) FabriqError {
	return NewFabriqErrorf(PipelineAborted, "Pipeline aborted at stage %d (%s): %v", stageIndex, stageName, cause)
}

func NewFabriqErrorf(errorCode ErrorCode, msgFormat string, args ...interface{}) FabriqError {
	msg := fmt.Sprintf(fmt.Sprintf("FBQ%04d - %s", errorCode, msgFormat), args...)
	return FabriqError{Code: errorCode, Msg: msg}
}

// FabriqError is any kind of error that is exposed to the user via external interfaces
// like the CLI.
type FabriqError struct {
	Code ErrorCode
	Msg  string
}

func (u FabriqError) Error() string {
	return u.Msg
}

// Code extracts the ErrorCode from an error chain, or InternalError if the chain does
// not contain a FabriqError.
func Code(err error) ErrorCode {
	var ferr FabriqError
	if As(err, &ferr) {
		return ferr.Code
	}
	return InternalError
}

func Error(msg string) error {
	return New(msg)
}

// pkg/errors passthroughs so callers only import this package.

func New(msg string) error {
	return errors.New(msg)
}

func Errorf(format string, args ...interface{}) error {
	return errors.Errorf(format, args...)
}

func Wrap(err error, msg string) error {
	return errors.Wrap(err, msg)
}

func Wrapf(err error, format string, args ...interface{}) error {
	return errors.Wrapf(err, format, args...)
}

func WithStack(err error) error {
	return errors.WithStack(err)
}

func Is(err, target error) bool { return stderrors.Is(err, target) }

func As(err error, target interface{}) bool { return stderrors.As(err, target) }
