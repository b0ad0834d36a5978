package io

import (
	"errors"

	"github.com/ezrec/vml/translate"
)

var f = translate.From

var (
	// Console errors
	ErrInputClosed = errors.New(f("console input closed"))

	// File errors
	ErrFileMissing = errors.New(f("file missing"))
)
