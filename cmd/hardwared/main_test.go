package main

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExitCodeForConfigError(t *testing.T) {
	err := &configError{err: errors.New("bad flag")}
	assert.Equal(t, exitConfigError, exitCodeFor(err))
}

func TestExitCodeForStartupFailure(t *testing.T) {
	assert.Equal(t, exitStartupFailure, exitCodeFor(errors.New("listen: address in use")))
}

func TestConfigErrorUnwraps(t *testing.T) {
	cause := errors.New("root cause")
	err := &configError{err: cause}
	assert.Equal(t, cause, errors.Unwrap(err))
	assert.Equal(t, "root cause", err.Error())
}
