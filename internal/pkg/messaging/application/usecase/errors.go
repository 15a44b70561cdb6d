package usecase

import "fmt"

// ErrPersistence indicates an infrastructure/repository failure inside a use case
var ErrPersistence = fmt.Errorf("messaging use case persistence error")

// ErrSendFailure indicates the storage layer failed while inserting a message.
// The caller keeps the composed input for resubmission.
var ErrSendFailure = fmt.Errorf("messaging use case send failure")

// ErrInvalidInput marks requests missing required fields.
var ErrInvalidInput = fmt.Errorf("messaging use case invalid input")
