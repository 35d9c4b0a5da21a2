package models

import "errors"

var (
	ErrEmptyInput        = errors.New("empty input")
	ErrStoreQuery        = errors.New("document store query failed")
	ErrStoreWrite        = errors.New("document store write failed")
	ErrCompletion        = errors.New("completion service failed")
	ErrUnsupportedFormat = errors.New("unsupported file format")
)
