package main

import (
	"database/sql"
	"errors"
	"sort"
	"sync"
	"time"
)

// ErrDuplicateEmail is returned when a student with the same email already
// exists.
var ErrDuplicateEmail = errors.New("email already registered")

// StudentStore is the persistence interface for student records. Three
// adapters exist: memory, sqlite and postgres, selected by configuration.
type StudentStore interface {
	Init() error
	ListStudents() ([]*Student, error)
	GetStudent(id int64) (*Student, error)
	GetStudentByEmail(email string) (*Student, error)
	CreateStudent(name, email, dob string) (*Student, error)
	UpdateStudent(id int64, name, email, dob string) (*Student, error)
	DeleteStudent(id int64) (bool, error)
}

// Memory store

type MemStudentStore struct {
	mu       sync.RWMutex
	students map[int64]*Student
	seq      int64
}

func NewMemoryStudentStore() *MemStudentStore {
	return &MemStudentStore{students: map[int64]*Student{}, seq: 1}
}

func (m *MemStudentStore) Init() error { return nil }

func (m *MemStudentStore) ListStudents() ([]*Student, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*Student, 0, len(m.students))
	for _, s := range m.students {
		copied := *s
		copied.Age = age(copied.DOB)
		out = append(out, &copied)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *MemStudentStore) GetStudent(id int64) (*Student, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.students[id]
	if !ok {
		return nil, nil
	}
	copied := *s
	copied.Age = age(copied.DOB)
	return &copied, nil
}

func (m *MemStudentStore) GetStudentByEmail(email string) (*Student, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, s := range m.students {
		if s.Email == email {
			copied := *s
			copied.Age = age(copied.DOB)
			return &copied, nil
		}
	}
	return nil, nil
}

func (m *MemStudentStore) CreateStudent(name, email, dob string) (*Student, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.students {
		if s.Email == email {
			return nil, ErrDuplicateEmail
		}
	}
	s := &Student{ID: m.seq, Name: name, Email: email, DOB: dob, CreatedAt: time.Now()}
	m.seq++
	m.students[s.ID] = s
	copied := *s
	copied.Age = age(copied.DOB)
	return &copied, nil
}

func (m *MemStudentStore) UpdateStudent(id int64, name, email, dob string) (*Student, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.students[id]
	if !ok {
		return nil, nil
	}
	for _, other := range m.students {
		if other.ID != id && other.Email == email {
			return nil, ErrDuplicateEmail
		}
	}
	s.Name, s.Email, s.DOB = name, email, dob
	copied := *s
	copied.Age = age(copied.DOB)
	return &copied, nil
}

func (m *MemStudentStore) DeleteStudent(id int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.students[id]; !ok {
		return false, nil
	}
	delete(m.students, id)
	return true, nil
}

// SQLite store

type SQLiteStudentStore struct {
	db   *sql.DB
	path string
}

func NewSQLiteStudentStore(path string) (*SQLiteStudentStore, error) {
	d, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	s := &SQLiteStudentStore{db: d, path: path}
	if err := s.Init(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStudentStore) Init() error {
	_, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS students (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL,
		email TEXT NOT NULL UNIQUE,
		dob TEXT NOT NULL,
		created_at TEXT
	);`)
	return err
}

func scanStudent(row interface{ Scan(...interface{}) error }) (*Student, error) {
	var st Student
	var created string
	if err := row.Scan(&st.ID, &st.Name, &st.Email, &st.DOB, &created); err != nil {
		return nil, err
	}
	st.Age = age(st.DOB)
	return &st, nil
}

func (s *SQLiteStudentStore) ListStudents() ([]*Student, error) {
	rows, err := s.db.Query(`SELECT id,name,email,dob,created_at FROM students ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var students []*Student
	for rows.Next() {
		st, err := scanStudent(rows)
		if err != nil {
			return nil, err
		}
		students = append(students, st)
	}
	return students, rows.Err()
}

func (s *SQLiteStudentStore) GetStudent(id int64) (*Student, error) {
	st, err := scanStudent(s.db.QueryRow(`SELECT id,name,email,dob,created_at FROM students WHERE id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return st, err
}

func (s *SQLiteStudentStore) GetStudentByEmail(email string) (*Student, error) {
	st, err := scanStudent(s.db.QueryRow(`SELECT id,name,email,dob,created_at FROM students WHERE email = ?`, email))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return st, err
}

func (s *SQLiteStudentStore) CreateStudent(name, email, dob string) (*Student, error) {
	existing, err := s.GetStudentByEmail(email)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, ErrDuplicateEmail
	}
	res, err := s.db.Exec(`INSERT INTO students(name,email,dob,created_at) VALUES(?,?,?,datetime('now'))`, name, email, dob)
	if err != nil {
		return nil, err
	}
	id, _ := res.LastInsertId()
	return &Student{ID: id, Name: name, Email: email, DOB: dob, Age: age(dob)}, nil
}

func (s *SQLiteStudentStore) UpdateStudent(id int64, name, email, dob string) (*Student, error) {
	existing, err := s.GetStudentByEmail(email)
	if err != nil {
		return nil, err
	}
	if existing != nil && existing.ID != id {
		return nil, ErrDuplicateEmail
	}
	res, err := s.db.Exec(`UPDATE students SET name = ?, email = ?, dob = ? WHERE id = ?`, name, email, dob, id)
	if err != nil {
		return nil, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, nil
	}
	return &Student{ID: id, Name: name, Email: email, DOB: dob, Age: age(dob)}, nil
}

func (s *SQLiteStudentStore) DeleteStudent(id int64) (bool, error) {
	res, err := s.db.Exec(`DELETE FROM students WHERE id = ?`, id)
	if err != nil {
		return false, err
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

// lifecycle helpers
func (s *SQLiteStudentStore) close() error { return s.db.Close() }
func (s *SQLiteStudentStore) ping() bool   { return s.db.Ping() == nil }

func (m *MemStudentStore) close() error { return nil }
func (m *MemStudentStore) ping() bool   { return true }
