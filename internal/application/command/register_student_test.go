package command

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func registerCmd(id, email string) RegisterStudentCommand {
	return RegisterStudentCommand{
		ID:         id,
		Name:       "Ada Lovelace",
		Email:      email,
		NationalID: "12345678",
		BirthDate:  time.Date(1995, 12, 10, 0, 0, 0, 0, time.UTC),
		City:       "London",
	}
}

func TestRegisterStudent(t *testing.T) {
	factory := newFakeUowFactory()
	h := NewRegisterStudentHandler(factory)

	result, err := h.Handle(context.Background(), registerCmd("stu-1", "ada@example.com"))
	require.NoError(t, err)
	assert.True(t, result.Validation.Valid())
	assert.Equal(t, "stu-1", result.StudentID)

	stored, err := factory.students.GetByID(context.Background(), "stu-1")
	require.NoError(t, err)
	// The student shares the account's identifier and is usable right away.
	assert.Equal(t, "stu-1", stored.AccountID)
	assert.True(t, stored.Active)
}

func TestRegisterStudent_CommandValidation(t *testing.T) {
	h := NewRegisterStudentHandler(newFakeUowFactory())

	cmd := registerCmd("stu-1", "not-an-email")
	cmd.NationalID = "123"
	result, err := h.Handle(context.Background(), cmd)
	require.NoError(t, err)
	require.False(t, result.Validation.Valid())

	fields := make([]string, 0)
	for _, fe := range result.Validation.Errors() {
		fields = append(fields, fe.Field)
	}
	assert.Contains(t, fields, "Email")
	assert.Contains(t, fields, "NationalID")
}

func TestRegisterStudent_DuplicateEmail(t *testing.T) {
	factory := newFakeUowFactory()
	h := NewRegisterStudentHandler(factory)

	first, err := h.Handle(context.Background(), registerCmd("stu-1", "ada@example.com"))
	require.NoError(t, err)
	require.True(t, first.Validation.Valid())

	second, err := h.Handle(context.Background(), registerCmd("stu-2", "ada@example.com"))
	require.NoError(t, err)
	require.False(t, second.Validation.Valid())
	assert.Equal(t, "Email", second.Validation.Errors()[0].Field)
	assert.Empty(t, second.StudentID)
}

func TestRegisterStudent_ConcurrentDuplicateEmail(t *testing.T) {
	// Racing registrations with the same email: exactly one commits, every
	// other caller gets the same validation failure a sequential duplicate
	// would get.
	factory := newFakeUowFactory()
	h := NewRegisterStudentHandler(factory)

	const n = 8
	results := make([]*RegisterStudentResult, n)
	errs := make([]error, n)

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			cmd := registerCmd(fmt.Sprintf("stu-%d", i), "ada@example.com")
			results[i], errs[i] = h.Handle(context.Background(), cmd)
		}(i)
	}
	wg.Wait()

	registered := 0
	for i := 0; i < n; i++ {
		require.NoError(t, errs[i])
		if results[i].Validation.Valid() {
			registered++
			assert.NotEmpty(t, results[i].StudentID)
			continue
		}
		assert.Equal(t, "Email", results[i].Validation.Errors()[0].Field)
		assert.Empty(t, results[i].StudentID)
	}
	assert.Equal(t, 1, registered)
	assert.Equal(t, 1, factory.students.count())
}

func TestRegisterStudent_Idempotency(t *testing.T) {
	// Re-registering the same id is rejected, not silently merged: the
	// bridge retries at-most-once, a duplicate delivery means a real bug.
	factory := newFakeUowFactory()
	h := NewRegisterStudentHandler(factory)

	_, err := h.Handle(context.Background(), registerCmd("stu-1", "ada@example.com"))
	require.NoError(t, err)

	result, err := h.Handle(context.Background(), registerCmd("stu-1", "other@example.com"))
	require.NoError(t, err)
	assert.False(t, result.Validation.Valid())
}
