package main

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
)

// Student CRUD endpoints. All of them sit behind RequireAuth; deletion
// additionally requires the ADMIN role (wired in main.go).

func studentID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	return id, err == nil && id > 0
}

// HandleListStudents returns all students.
// GET /api/v1/students
func (a *App) HandleListStudents(w http.ResponseWriter, r *http.Request) {
	students, err := a.Students.ListStudents()
	if err != nil {
		logger.Errorf("Error listing students: %v", err)
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to list students")
		return
	}
	if students == nil {
		students = []*Student{}
	}
	writeJSON(w, http.StatusOK, students)
}

// HandleGetStudent returns a single student by id.
// GET /api/v1/students/{id}
func (a *App) HandleGetStudent(w http.ResponseWriter, r *http.Request) {
	id, ok := studentID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid student id")
		return
	}
	student, err := a.Students.GetStudent(id)
	if err != nil {
		logger.Errorf("Error fetching student %d: %v", id, err)
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to fetch student")
		return
	}
	if student == nil {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Student not found")
		return
	}
	writeJSON(w, http.StatusOK, student)
}

// HandleCreateStudent registers a new student.
// POST /api/v1/students
func (a *App) HandleCreateStudent(w http.ResponseWriter, r *http.Request) {
	var req StudentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid request body")
		return
	}
	if err := a.validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_REQUEST", "Name, valid email and dob (YYYY-MM-DD) are required")
		return
	}
	student, err := a.Students.CreateStudent(req.Name, req.Email, req.DOB)
	if err != nil {
		if err == ErrDuplicateEmail {
			writeError(w, http.StatusConflict, "EMAIL_TAKEN", "A student with this email already exists")
			return
		}
		logger.Errorf("Error creating student: %v", err)
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to create student")
		return
	}
	writeJSON(w, http.StatusCreated, student)
}

// HandleUpdateStudent replaces a student's mutable fields.
// PUT /api/v1/students/{id}
func (a *App) HandleUpdateStudent(w http.ResponseWriter, r *http.Request) {
	id, ok := studentID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid student id")
		return
	}
	var req StudentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid request body")
		return
	}
	if err := a.validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_REQUEST", "Name, valid email and dob (YYYY-MM-DD) are required")
		return
	}
	student, err := a.Students.UpdateStudent(id, req.Name, req.Email, req.DOB)
	if err != nil {
		if err == ErrDuplicateEmail {
			writeError(w, http.StatusConflict, "EMAIL_TAKEN", "A student with this email already exists")
			return
		}
		logger.Errorf("Error updating student %d: %v", id, err)
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to update student")
		return
	}
	if student == nil {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Student not found")
		return
	}
	writeJSON(w, http.StatusOK, student)
}

// HandleDeleteStudent removes a student record.
// DELETE /api/v1/students/{id}
func (a *App) HandleDeleteStudent(w http.ResponseWriter, r *http.Request) {
	id, ok := studentID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid student id")
		return
	}
	deleted, err := a.Students.DeleteStudent(id)
	if err != nil {
		logger.Errorf("Error deleting student %d: %v", id, err)
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to delete student")
		return
	}
	if !deleted {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Student not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
