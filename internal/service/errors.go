package service

import "errors"

var (
	ErrNotFound           = errors.New("error not found")
	ErrAlreadyExists      = errors.New("error already exists")
	ErrWrongCredentials   = errors.New("error wrong credentials")
	ErrInsufficientFunds  = errors.New("error not enough cash")
	ErrInsufficientShares = errors.New("error not enough shares")
)
