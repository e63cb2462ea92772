package db

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAssignmentsUpdateByID(t *testing.T) {
	name := "Bob"
	var email *string

	a := &Assignments{}
	SetIf(a, "name", &name)
	SetIf(a, "email", email)
	a.Set("is_admin", true).Touch()

	sql, args := a.UpdateByID("users", 9)
	assert.Equal(t, `UPDATE "users" SET "name" = $1, "is_admin" = $2, "updated_at" = NOW() WHERE id = $3`, sql)
	assert.Equal(t, []any{"Bob", true, int64(9)}, args)
	assert.False(t, a.Empty())
	assert.True(t, (&Assignments{}).Empty())
}
