package command

import (
	"context"
	"fmt"
	"sync"

	"github.com/enrollhub/enrollment-hub/internal/domain/enrollment"
	"github.com/enrollhub/enrollment-hub/internal/domain/student"
)

// ══════════════════════════════════════════════════════════════════════════════
// IN-MEMORY TEST DOUBLES
// The fake unit of work applies writes immediately and records whether the
// handler committed; Rollback after Commit is a no-op, mirroring the real
// transaction semantics.
// ══════════════════════════════════════════════════════════════════════════════

type fakeStudentRepo struct {
	mu   sync.Mutex
	byID map[string]*student.Student
	err  error
}

func newFakeStudentRepo() *fakeStudentRepo {
	return &fakeStudentRepo{byID: make(map[string]*student.Student)}
}

func (r *fakeStudentRepo) Create(_ context.Context, s *student.Student) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	if _, ok := r.byID[s.ID]; ok {
		return student.ErrStudentAlreadyExists
	}
	for _, existing := range r.byID {
		if existing.Email == s.Email.Normalized() {
			return student.ErrStudentAlreadyExists
		}
	}
	r.byID[s.ID] = s.Clone()
	return nil
}

func (r *fakeStudentRepo) GetByID(_ context.Context, id string) (*student.Student, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return nil, r.err
	}
	s, ok := r.byID[id]
	if !ok {
		return nil, student.ErrStudentNotFound
	}
	return s.Clone(), nil
}

func (r *fakeStudentRepo) GetByEmail(_ context.Context, email student.Email) (*student.Student, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.byID {
		if s.Email == email.Normalized() {
			return s.Clone(), nil
		}
	}
	return nil, student.ErrStudentNotFound
}

func (r *fakeStudentRepo) Update(_ context.Context, s *student.Student) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byID[s.ID]; !ok {
		return student.ErrStudentNotFound
	}
	r.byID[s.ID] = s.Clone()
	return nil
}

func (r *fakeStudentRepo) Exists(_ context.Context, id string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.byID[id]
	return ok, nil
}

func (r *fakeStudentRepo) ExistsByEmail(_ context.Context, email student.Email) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.byID {
		if s.Email == email.Normalized() {
			return true, nil
		}
	}
	return false, nil
}

func (r *fakeStudentRepo) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.byID)
}

type fakeEnrollmentRepo struct {
	byID      map[string]*enrollment.Enrollment
	createErr error
	updateErr error
}

func newFakeEnrollmentRepo() *fakeEnrollmentRepo {
	return &fakeEnrollmentRepo{byID: make(map[string]*enrollment.Enrollment)}
}

func (r *fakeEnrollmentRepo) Create(_ context.Context, e *enrollment.Enrollment) error {
	if r.createErr != nil {
		return r.createErr
	}
	for _, existing := range r.byID {
		if existing.StudentID == e.StudentID && existing.CourseID == e.CourseID {
			return enrollment.ErrEnrollmentAlreadyExists
		}
	}
	r.byID[e.ID] = e.Clone()
	return nil
}

func (r *fakeEnrollmentRepo) GetByID(_ context.Context, id string) (*enrollment.Enrollment, error) {
	e, ok := r.byID[id]
	if !ok {
		return nil, enrollment.ErrEnrollmentNotFound
	}
	return e.Clone(), nil
}

func (r *fakeEnrollmentRepo) GetByStudentAndCourse(_ context.Context, studentID, courseID string) (*enrollment.Enrollment, error) {
	for _, e := range r.byID {
		if e.StudentID == studentID && e.CourseID == courseID {
			return e.Clone(), nil
		}
	}
	return nil, enrollment.ErrEnrollmentNotFound
}

func (r *fakeEnrollmentRepo) ListByStudent(_ context.Context, studentID string) ([]*enrollment.Enrollment, error) {
	var out []*enrollment.Enrollment
	for _, e := range r.byID {
		if e.StudentID == studentID {
			out = append(out, e.Clone())
		}
	}
	return out, nil
}

func (r *fakeEnrollmentRepo) Update(_ context.Context, e *enrollment.Enrollment) error {
	if r.updateErr != nil {
		return r.updateErr
	}
	if _, ok := r.byID[e.ID]; !ok {
		return enrollment.ErrEnrollmentNotFound
	}
	r.byID[e.ID] = e.Clone()
	return nil
}

type fakeUnitOfWork struct {
	students    *fakeStudentRepo
	enrollments *fakeEnrollmentRepo
	committed   bool
	rolledBack  bool
	commitErr   error
}

func (u *fakeUnitOfWork) Students() student.Repository       { return u.students }
func (u *fakeUnitOfWork) Enrollments() enrollment.Repository { return u.enrollments }

func (u *fakeUnitOfWork) Commit(_ context.Context) error {
	if u.commitErr != nil {
		return u.commitErr
	}
	u.committed = true
	return nil
}

func (u *fakeUnitOfWork) Rollback(_ context.Context) error {
	if !u.committed {
		u.rolledBack = true
	}
	return nil
}

type fakeUowFactory struct {
	mu          sync.Mutex
	students    *fakeStudentRepo
	enrollments *fakeEnrollmentRepo
	beginErr    error
	last        *fakeUnitOfWork
}

func newFakeUowFactory() *fakeUowFactory {
	return &fakeUowFactory{
		students:    newFakeStudentRepo(),
		enrollments: newFakeEnrollmentRepo(),
	}
}

func (f *fakeUowFactory) Begin(_ context.Context) (UnitOfWork, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.beginErr != nil {
		return nil, f.beginErr
	}
	f.last = &fakeUnitOfWork{students: f.students, enrollments: f.enrollments}
	return f.last, nil
}

// stubSnapshots returns a fixed snapshot, or an error.
type stubSnapshots struct {
	snapshot enrollment.CourseSnapshot
	err      error
}

func (s stubSnapshots) GetCourseSnapshot(_ context.Context, _ string) (enrollment.CourseSnapshot, error) {
	if s.err != nil {
		return enrollment.CourseSnapshot{}, s.err
	}
	return s.snapshot, nil
}

// seqIDGen generates predictable ids.
type seqIDGen struct {
	n int
}

func (g *seqIDGen) GenerateID() string {
	g.n++
	return fmt.Sprintf("id-%d", g.n)
}
