package postgres

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 001: CREATE ACCOUNTS
// ══════════════════════════════════════════════════════════════════════════════

const migration001Up = `
-- Migration: Create accounts table (identity service)
-- Version: 001

CREATE TABLE IF NOT EXISTS accounts (
    id UUID PRIMARY KEY,
    email VARCHAR(255) NOT NULL UNIQUE,
    password_hash VARCHAR(100) NOT NULL,
    role VARCHAR(20) NOT NULL,
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    CONSTRAINT valid_role CHECK (role IN ('student', 'instructor', 'admin'))
);

CREATE INDEX IF NOT EXISTS idx_accounts_email ON accounts(email);
`

const migration001Down = `
DROP TABLE IF EXISTS accounts;
`

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 002: CREATE STUDENTS
// ══════════════════════════════════════════════════════════════════════════════

const migration002Up = `
-- Migration: Create students table (enrollment service)
-- Version: 002

-- The email unique constraint is load-bearing: it is the last line of
-- defense against two concurrent registrations with the same email.
CREATE TABLE IF NOT EXISTS students (
    id UUID PRIMARY KEY,
    account_id UUID NOT NULL,
    name VARCHAR(200) NOT NULL,
    email VARCHAR(255) NOT NULL UNIQUE,
    national_id VARCHAR(30) NOT NULL,
    birth_date TIMESTAMP WITH TIME ZONE NOT NULL,
    phone VARCHAR(30) NOT NULL DEFAULT '',
    gender VARCHAR(20) NOT NULL DEFAULT '',
    city VARCHAR(100) NOT NULL DEFAULT '',
    state VARCHAR(100) NOT NULL DEFAULT '',
    postal_code VARCHAR(20) NOT NULL DEFAULT '',
    photo_url TEXT NOT NULL DEFAULT '',
    active BOOLEAN NOT NULL DEFAULT FALSE,
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_students_email ON students(email);
CREATE INDEX IF NOT EXISTS idx_students_account_id ON students(account_id);
`

const migration002Down = `
DROP TABLE IF EXISTS students;
`

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 003: CREATE ENROLLMENTS AND PROGRESS
// ══════════════════════════════════════════════════════════════════════════════

const migration003Up = `
-- Migration: Create enrollments and progress tables
-- Version: 003

CREATE TABLE IF NOT EXISTS enrollments (
    id UUID PRIMARY KEY,
    student_id UUID NOT NULL REFERENCES students(id) ON DELETE CASCADE,
    course_id VARCHAR(100) NOT NULL,
    course_name VARCHAR(255) NOT NULL,
    price DECIMAL(12,2) NOT NULL DEFAULT 0,
    note TEXT NOT NULL DEFAULT '',
    status VARCHAR(30) NOT NULL,
    enrolled_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
    payment_confirmed_at TIMESTAMP WITH TIME ZONE,
    completed_at TIMESTAMP WITH TIME ZONE,
    updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    CONSTRAINT valid_enrollment_status CHECK (status IN ('pending_payment', 'payment_confirmed', 'completed')),
    CONSTRAINT unique_student_course UNIQUE (student_id, course_id)
);

CREATE INDEX IF NOT EXISTS idx_enrollments_student_id ON enrollments(student_id);
CREATE INDEX IF NOT EXISTS idx_enrollments_status ON enrollments(status);

-- Progress records are keyed by (enrollment, lesson): re-recording a lesson
-- overwrites instead of appending.
CREATE TABLE IF NOT EXISTS enrollment_progress (
    enrollment_id UUID NOT NULL REFERENCES enrollments(id) ON DELETE CASCADE,
    course_id VARCHAR(100) NOT NULL,
    lesson_id VARCHAR(100) NOT NULL,
    lesson_name VARCHAR(255) NOT NULL,
    duration_seconds BIGINT NOT NULL DEFAULT 0,
    started_at TIMESTAMP WITH TIME ZONE NOT NULL,
    completed_at TIMESTAMP WITH TIME ZONE,

    PRIMARY KEY (enrollment_id, lesson_id)
);

CREATE INDEX IF NOT EXISTS idx_enrollment_progress_enrollment ON enrollment_progress(enrollment_id);
`

const migration003Down = `
DROP TABLE IF EXISTS enrollment_progress;
DROP TABLE IF EXISTS enrollments;
`

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 004: CREATE CERTIFICATES
// ══════════════════════════════════════════════════════════════════════════════

const migration004Up = `
-- Migration: Create certificates table
-- Version: 004

CREATE TABLE IF NOT EXISTS certificates (
    id UUID PRIMARY KEY,
    enrollment_id UUID NOT NULL UNIQUE REFERENCES enrollments(id) ON DELETE CASCADE,
    course_name VARCHAR(255) NOT NULL,
    instructor_name VARCHAR(200) NOT NULL,
    workload INTEGER NOT NULL DEFAULT 0,
    requested_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
    issued_at TIMESTAMP WITH TIME ZONE,
    storage_path TEXT NOT NULL DEFAULT ''
);

-- The issuance worker polls for pending certificates.
CREATE INDEX IF NOT EXISTS idx_certificates_unissued ON certificates(requested_at) WHERE issued_at IS NULL;
`

const migration004Down = `
DROP TABLE IF EXISTS certificates;
`

// GetMigrations returns all embedded migrations.
func GetMigrations() []Migration {
	return []Migration{
		{
			Version: 1,
			Name:    "create_accounts",
			UpSQL:   migration001Up,
			DownSQL: migration001Down,
		},
		{
			Version: 2,
			Name:    "create_students",
			UpSQL:   migration002Up,
			DownSQL: migration002Down,
		},
		{
			Version: 3,
			Name:    "create_enrollments",
			UpSQL:   migration003Up,
			DownSQL: migration003Down,
		},
		{
			Version: 4,
			Name:    "create_certificates",
			UpSQL:   migration004Up,
			DownSQL: migration004Down,
		},
	}
}
