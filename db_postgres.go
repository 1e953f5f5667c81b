package main

import (
	"database/sql"

	"github.com/lib/pq"
)

// PostgresStudentStore is the shared/durable student store adapter.
type PostgresStudentStore struct {
	db  *sql.DB
	dsn string
}

func NewPostgresStudentStore(dsn string) (*PostgresStudentStore, error) {
	d, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	p := &PostgresStudentStore{db: d, dsn: dsn}
	if err := p.Init(); err != nil {
		d.Close()
		return nil, err
	}
	return p, nil
}

func (p *PostgresStudentStore) Init() error {
	// rely on migrations to create tables; just verify connectivity
	return p.db.Ping()
}

func isUniqueViolation(err error) bool {
	if pqErr, ok := err.(*pq.Error); ok {
		return pqErr.Code == "23505"
	}
	return false
}

func (p *PostgresStudentStore) ListStudents() ([]*Student, error) {
	rows, err := p.db.Query(`SELECT id,name,email,to_char(dob,'YYYY-MM-DD'),created_at FROM students ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var students []*Student
	for rows.Next() {
		var st Student
		if err := rows.Scan(&st.ID, &st.Name, &st.Email, &st.DOB, &st.CreatedAt); err != nil {
			return nil, err
		}
		st.Age = age(st.DOB)
		students = append(students, &st)
	}
	return students, rows.Err()
}

func (p *PostgresStudentStore) GetStudent(id int64) (*Student, error) {
	row := p.db.QueryRow(`SELECT id,name,email,to_char(dob,'YYYY-MM-DD'),created_at FROM students WHERE id = $1`, id)
	var st Student
	if err := row.Scan(&st.ID, &st.Name, &st.Email, &st.DOB, &st.CreatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	st.Age = age(st.DOB)
	return &st, nil
}

func (p *PostgresStudentStore) GetStudentByEmail(email string) (*Student, error) {
	row := p.db.QueryRow(`SELECT id,name,email,to_char(dob,'YYYY-MM-DD'),created_at FROM students WHERE email = $1`, email)
	var st Student
	if err := row.Scan(&st.ID, &st.Name, &st.Email, &st.DOB, &st.CreatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	st.Age = age(st.DOB)
	return &st, nil
}

func (p *PostgresStudentStore) CreateStudent(name, email, dob string) (*Student, error) {
	var id int64
	err := p.db.QueryRow(`INSERT INTO students(name,email,dob,created_at) VALUES($1,$2,$3,now()) RETURNING id`, name, email, dob).Scan(&id)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrDuplicateEmail
		}
		return nil, err
	}
	return &Student{ID: id, Name: name, Email: email, DOB: dob, Age: age(dob)}, nil
}

func (p *PostgresStudentStore) UpdateStudent(id int64, name, email, dob string) (*Student, error) {
	res, err := p.db.Exec(`UPDATE students SET name = $1, email = $2, dob = $3 WHERE id = $4`, name, email, dob, id)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrDuplicateEmail
		}
		return nil, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, nil
	}
	return &Student{ID: id, Name: name, Email: email, DOB: dob, Age: age(dob)}, nil
}

func (p *PostgresStudentStore) DeleteStudent(id int64) (bool, error) {
	res, err := p.db.Exec(`DELETE FROM students WHERE id = $1`, id)
	if err != nil {
		return false, err
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

func (p *PostgresStudentStore) close() error { return p.db.Close() }
func (p *PostgresStudentStore) ping() bool   { return p.db.Ping() == nil }
