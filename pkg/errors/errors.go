package errors

import (
	"errors"
	"fmt"
	"net/http"
)

const (
	ErrCodeTaskUnknown      ErrCode = "TASK_UNKNOWN"
	ErrCodeTaskInvalid      ErrCode = "TASK_INVALID"
	ErrCodeDatasetUnknown   ErrCode = "DATASET_UNKNOWN"
	ErrCodeQueueUnknown     ErrCode = "QUEUE_UNKNOWN"
	ErrCodeDigestInvalid    ErrCode = "DIGEST_INVALID"
	ErrCodeUnauthorized     ErrCode = "UNAUTHORIZED"
	ErrCodeUnsupported      ErrCode = "UNSUPPORTED"
	ErrCodeInvalidParameter ErrCode = "INVALID_PARAMETER"
	ErrCodeUnknow           ErrCode = "UNKNOWN"
	ErrCodeInternal         ErrCode = "INTERNAL"
)

type ErrCode string

// ErrorInfo is the error body returned by the tracking server.
type ErrorInfo struct {
	HttpStatus int     `json:"-"`
	Code       ErrCode `json:"code"`
	Message    string  `json:"message"`
	Detail     string  `json:"detail,omitempty"`
}

func (e ErrorInfo) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("%d: %s", e.HttpStatus, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func IsErrCode(err error, code ErrCode) bool {
	if err == nil {
		return false
	}
	info := ErrorInfo{}
	if errors.As(err, &info) {
		return info.Code == code
	}
	return false
}

func NewUnauthorizedError(msg string) ErrorInfo {
	return ErrorInfo{HttpStatus: http.StatusUnauthorized, Code: ErrCodeUnauthorized, Message: msg}
}

func NewUnsupportedError(msg string) ErrorInfo {
	return ErrorInfo{HttpStatus: http.StatusNotImplemented, Code: ErrCodeUnsupported, Message: msg}
}

func NewInternalError(err error) ErrorInfo {
	return ErrorInfo{HttpStatus: http.StatusInternalServerError, Code: ErrCodeInternal, Message: err.Error()}
}

func NewTaskUnknownError(id string) ErrorInfo {
	return ErrorInfo{HttpStatus: http.StatusNotFound, Code: ErrCodeTaskUnknown, Message: fmt.Sprintf("task: %s not found", id)}
}

func NewTaskInvalidError(msg string) ErrorInfo {
	return ErrorInfo{HttpStatus: http.StatusBadRequest, Code: ErrCodeTaskInvalid, Message: msg}
}

func NewDatasetUnknownError(project, name string) ErrorInfo {
	return ErrorInfo{HttpStatus: http.StatusNotFound, Code: ErrCodeDatasetUnknown, Message: fmt.Sprintf("dataset: %s/%s not found", project, name)}
}

func NewQueueUnknownError(queue string) ErrorInfo {
	return ErrorInfo{HttpStatus: http.StatusNotFound, Code: ErrCodeQueueUnknown, Message: fmt.Sprintf("queue: %s not found", queue)}
}

func NewDigestInvalidError(expected, got string) ErrorInfo {
	return ErrorInfo{HttpStatus: http.StatusBadRequest, Code: ErrCodeDigestInvalid, Message: fmt.Sprintf("digest invalid: expected %s, got %s", expected, got)}
}

func NewParameterInvalidError(msg string) ErrorInfo {
	return ErrorInfo{HttpStatus: http.StatusBadRequest, Code: ErrCodeInvalidParameter, Message: msg}
}
