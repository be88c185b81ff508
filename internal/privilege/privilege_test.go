package privilege

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	apperrors "hostpin/pkg/errors"
)

func TestCheckMatchesElevation(t *testing.T) {
	err := Check()
	if isElevated() {
		assert.NoError(t, err)
		return
	}
	assert.True(t, errors.Is(err, apperrors.ErrPrivilegeDenied))
}

func TestSkip(t *testing.T) {
	var c Checker = Skip
	assert.NoError(t, c())
}
