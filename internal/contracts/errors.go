package contracts

import (
	"errors"
	"fmt"
)

// ⭐ SSOT: 도메인 에러 정의는 여기서만
var (
	// ErrValidation is matched by every *ValidationError
	ErrValidation = errors.New("validation failed")

	// ErrNotFound is matched by every *NotFoundError
	ErrNotFound = errors.New("not found")

	// ErrExternalService is matched by every *ExternalServiceError
	ErrExternalService = errors.New("external service failed")
)

// ValidationError 잘못된 입력 (범위 밖 점수, 알 수 없는 enum 등)
// 입력을 조용히 보정하지 않고 즉시 반환한다
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// NewValidationError creates a ValidationError with a formatted message
func NewValidationError(field, format string, args ...interface{}) *ValidationError {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation: " + e.Message
	}
	return fmt.Sprintf("validation: %s: %s", e.Field, e.Message)
}

// Is makes errors.Is(err, ErrValidation) work
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// NotFoundError 참조 대상(영업기회, 예측, 이력) 없음
type NotFoundError struct {
	Resource string `json:"resource"`
	ID       string `json:"id"`
}

// NewNotFoundError creates a NotFoundError; id is formatted with %v
func NewNotFoundError(resource string, id interface{}) *NotFoundError {
	return &NotFoundError{Resource: resource, ID: fmt.Sprintf("%v", id)}
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Resource, e.ID)
}

// Is makes errors.Is(err, ErrNotFound) work
func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

// ExternalServiceError 외부 LLM 호출 실패 (네트워크/타임아웃/파싱)
// 게이트웨이 내부에서만 생성되고 폴백으로 대체된다
type ExternalServiceError struct {
	Provider string
	Op       string
	Err      error
}

func (e *ExternalServiceError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Provider, e.Op, e.Err)
}

func (e *ExternalServiceError) Unwrap() error {
	return e.Err
}

// Is makes errors.Is(err, ErrExternalService) work
func (e *ExternalServiceError) Is(target error) bool {
	return target == ErrExternalService
}
