package store

import "errors"

var (
	ErrInvalidURL          = errors.New("invalid url: only absolute http/https urls are allowed")
	ErrInvalidValidity     = errors.New("validity must be a positive integer (minutes)")
	ErrInvalidShortcode    = errors.New("shortcode must be 3-20 alphanumeric characters")
	ErrCodeInUse           = errors.New("shortcode already in use")
	ErrGenerationExhausted = errors.New("could not generate an unused shortcode")
	ErrNotFound            = errors.New("shortcode not found")
	ErrExpired             = errors.New("link has expired")
)
