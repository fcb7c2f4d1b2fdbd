package app

import "fmt"

type DomainError struct {
	Status  int
	Code    string
	Message string
	Details any
}

func (e *DomainError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func domainError(status int, code, message string, details any) *DomainError {
	return &DomainError{
		Status:  status,
		Code:    code,
		Message: message,
		Details: details,
	}
}

func errValidation(message string, details any) *DomainError {
	return domainError(422, "VALIDATION_ERROR", message, details)
}

func errDuplicateRange(startDate, endDate string) *DomainError {
	return domainError(409, "DUPLICATE_RANGE",
		fmt.Sprintf("a combined menu already exists for %s to %s", startDate, endDate),
		map[string]string{"startDate": startDate, "endDate": endDate})
}

func errSessionNotFound(menuID string) *DomainError {
	return domainError(404, "SESSION_NOT_FOUND",
		fmt.Sprintf("no editing session for menu %s", menuID), nil)
}
