package config

import (
	"github.com/patchvm/patchvm/translate"
)

var f = translate.From

type ErrRead struct {
	Path string
	Err  error
}

func (err *ErrRead) Error() string {
	return f("cannot read %v: %v", err.Path, err.Err)
}

func (err *ErrRead) Unwrap() error {
	return err.Err
}

type ErrParse struct {
	Path string
	Err  error
}

func (err *ErrParse) Error() string {
	return f("parse error in %v: %v", err.Path, err.Err)
}

func (err *ErrParse) Unwrap() error {
	return err.Err
}

type ErrSize struct {
	Text string
	Err  error
}

func (err *ErrSize) Error() string {
	return f("invalid size '%v': %v", err.Text, err.Err)
}

func (err *ErrSize) Unwrap() error {
	return err.Err
}
