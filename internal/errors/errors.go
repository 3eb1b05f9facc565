package errors

import "fmt"

type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

const (
	CodeValidation = "E100"
	CodeStorage    = "E200"
	CodeTransport  = "E300"
	CodeLogic      = "E400"
	CodeRateLimit  = "E500"
)

// GenericUserMessage is shown whenever nothing more specific can be said.
const GenericUserMessage = "❌ Произошла ошибка. Попробуй еще раз или нажми /start"

type AppError struct {
	Code        string
	Message     string
	UserMessage string
	Severity    Severity
	Retryable   bool
	cause       error
}

func (e *AppError) Error() string {
	if e == nil {
		return ""
	}

	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.cause)
	}

	return e.Message
}

func (e *AppError) Unwrap() error {
	if e == nil {
		return nil
	}

	return e.cause
}

func (e *AppError) Cause() error {
	return e.Unwrap()
}

// NewValidationError reports malformed user input. userMessage is shown verbatim.
func NewValidationError(userMessage string) *AppError {
	return &AppError{
		Code:        CodeValidation,
		Message:     fmt.Sprintf("validation failed: %s", userMessage),
		UserMessage: userMessage,
		Severity:    SeverityLow,
		Retryable:   false,
	}
}

// NewStorageError wraps a persistence failure for op. The raw driver error never reaches users.
func NewStorageError(op string, cause error) *AppError {
	return &AppError{
		Code:        CodeStorage,
		Message:     fmt.Sprintf("storage error: %s", op),
		UserMessage: "❌ Временная проблема с базой данных, попробуй позже",
		Severity:    SeverityHigh,
		Retryable:   true,
		cause:       cause,
	}
}

// NewTransportError wraps a failed outbound call to an external API.
func NewTransportError(apiName string, cause error) *AppError {
	return &AppError{
		Code:        CodeTransport,
		Message:     fmt.Sprintf("transport error: %s", apiName),
		UserMessage: "Сервис временно недоступен",
		Severity:    SeverityMedium,
		Retryable:   true,
		cause:       cause,
	}
}

// NewLogicError reports a session that lacks a field the current step depends on.
func NewLogicError(msg string) *AppError {
	return &AppError{
		Code:        CodeLogic,
		Message:     msg,
		UserMessage: "Операция невозможна в текущем состоянии",
		Severity:    SeverityMedium,
		Retryable:   false,
	}
}

func NewRateLimitError(retryAfter int) *AppError {
	return &AppError{
		Code:        CodeRateLimit,
		Message:     fmt.Sprintf("rate limit exceeded: retry after %d seconds", retryAfter),
		UserMessage: fmt.Sprintf("Слишком много сообщений. Попробуй через %d секунд", retryAfter),
		Severity:    SeverityLow,
		Retryable:   false,
	}
}
