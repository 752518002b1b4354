package main

import "errors"

type usageError struct {
	error
}

func newUsageError(msg string) usageError {
	return usageError{error: errors.New(msg)}
}

func isUsageError(err error) bool {
	var ue usageError
	return errors.As(err, &ue)
}

var errorWantedNoArgs = newUsageError("expected no (non-flag) arguments")
