package results

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOperationResult(t *testing.T) {
	ok := SuccessResult[int, error](3)
	assert.True(t, ok.IsSuccess())
	assert.False(t, ok.IsFailure())
	assert.Equal(t, 3, *ok.Success)

	fail := FailureResult[int, error](errors.New("boom"))
	assert.True(t, fail.IsFailure())
	assert.False(t, fail.IsSuccess())
	assert.EqualError(t, *fail.Failure, "boom")

	var empty OperationResult[int, error]
	assert.False(t, empty.IsSuccess())
	assert.False(t, empty.IsFailure())
}
