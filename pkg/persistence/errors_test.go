package persistence

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRecordError(t *testing.T) {
	err := NewRecordError("GetByID", "instance", "i-1", ErrInstanceNotFound)

	assert.Equal(t, "GetByID operation failed for instance i-1: workflow instance not found", err.Error())
	assert.True(t, IsInstanceNotFound(err))
	assert.True(t, IsNotFound(fmt.Errorf("wrapped: %w", err)))
	assert.False(t, IsApprovalNotFound(err))

	listErr := NewRecordError("ListByStatus", "definition", "", errors.New("disk"))
	assert.Equal(t, "ListByStatus operation failed for definition records: disk", listErr.Error())
	assert.False(t, IsNotFound(listErr))
}
