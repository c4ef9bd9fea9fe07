package mockbackend

import (
	"encoding/json"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"clinicdesk/internal/models"
	"clinicdesk/internal/queue"
	"clinicdesk/internal/realtime"

	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"golang.org/x/crypto/bcrypt"
)

// Server is the in-process mock of the backend contract: the documented REST
// endpoints plus the realtime push channel. It backs the standalone mock
// binary and the integration tests; there is no real backend in this
// repository.
type Server struct {
	mu        sync.Mutex
	users     []models.User
	passwords map[string][]byte
	patients  []models.Patient
	visits    []models.Visit

	hub       *hub
	jwtSecret []byte
	upgrader  websocket.Upgrader
}

type sessionClaims struct {
	UserID string `json:"user_id"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}

func NewServer() *Server {
	users, passwords := seedUsers()
	patients := seedPatients()
	return &Server{
		users:     users,
		passwords: passwords,
		patients:  patients,
		visits:    seedVisits(patients),
		hub:       newHub(),
		jwtSecret: []byte(uuid.NewString()),
		upgrader:  websocket.Upgrader{ReadBufferSize: 1024, WriteBufferSize: 1024},
	}
}

func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Route("/api", func(r chi.Router) {
		r.Post("/auth/login", s.handleLogin)

		r.Group(func(r chi.Router) {
			r.Use(s.requireAuth)
			r.Post("/auth/logout", s.handleLogout)
			r.Get("/auth/me", s.handleMe)

			r.Get("/patients", s.handleListPatients)
			r.Post("/patients", s.handleCreatePatient)
			r.Get("/patients/{id}", s.handleGetPatient)
			r.Put("/patients/{id}", s.handleUpdatePatient)
			r.Delete("/patients/{id}", s.handleDeletePatient)
			r.Get("/patients/{id}/visits", s.handlePatientHistory)

			r.Get("/queue", s.handleQueue)
			r.Post("/visits", s.handleCreateVisit)
			r.Post("/queue/{id}/call", s.visitAction(queue.ActionCall))
			r.Post("/queue/{id}/start", s.visitAction(queue.ActionStart))
			r.Post("/queue/{id}/finish", s.visitAction(queue.ActionFinish))
			r.Post("/queue/{id}/skip", s.visitAction(queue.ActionSkip))
			r.Delete("/queue/{id}", s.handleCancelVisit)

			r.Get("/stats/daily", s.handleDailyStats)
			r.Get("/users", s.handleUsers)
		})

		r.NotFound(func(w http.ResponseWriter, req *http.Request) {
			writeError(w, http.StatusNotImplemented, "not_implemented",
				"endpoint "+req.Method+" "+req.URL.Path+" not implemented in mock mode")
		})
	})
	r.Get("/realtime", s.handleRealtime)
	return r
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req models.LoginRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "invalid JSON payload")
		return
	}
	req.Email = strings.TrimSpace(req.Email)

	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.findUser(req.Email)
	hash := s.passwords[req.Email]
	if !ok || bcrypt.CompareHashAndPassword(hash, []byte(req.Password)) != nil {
		writeError(w, http.StatusUnauthorized, "invalid_credentials", "invalid email or password")
		return
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, sessionClaims{
		UserID: user.UserID,
		Role:   user.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(24 * time.Hour)),
		},
	})
	signed, err := token.SignedString(s.jwtSecret)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal_error", "internal server error")
		return
	}
	writeJSON(w, http.StatusOK, models.LoginResponse{Token: signed, User: user})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	user, ok := s.userFromRequest(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "invalid token")
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (s *Server) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := s.userFromRequest(r); !ok {
			writeError(w, http.StatusUnauthorized, "unauthorized", "missing or invalid token")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) userFromRequest(r *http.Request) (models.User, bool) {
	token := bearerToken(r.Header.Get("Authorization"))
	if token == "" {
		token = strings.TrimSpace(r.URL.Query().Get("token"))
	}
	return s.userFromToken(token)
}

func (s *Server) userFromToken(tokenString string) (models.User, bool) {
	if tokenString == "" {
		return models.User{}, false
	}
	claims := &sessionClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		return s.jwtSecret, nil
	})
	if err != nil || !token.Valid {
		return models.User{}, false
	}
	for _, user := range s.users {
		if user.UserID == claims.UserID {
			return user, true
		}
	}
	return models.User{}, false
}

func (s *Server) findUser(email string) (models.User, bool) {
	for _, user := range s.users {
		if user.Email == email {
			return user, true
		}
	}
	return models.User{}, false
}

func (s *Server) handleListPatients(w http.ResponseWriter, r *http.Request) {
	search := strings.ToLower(strings.TrimSpace(r.URL.Query().Get("search")))
	page := queryInt(r, "page", 1)
	limit := queryInt(r, "limit", 10)

	s.mu.Lock()
	defer s.mu.Unlock()
	filtered := make([]models.Patient, 0, len(s.patients))
	for _, patient := range s.patients {
		if search != "" &&
			!strings.Contains(strings.ToLower(patient.LastName), search) &&
			!strings.Contains(strings.ToLower(patient.FirstName), search) &&
			!strings.Contains(strings.ToLower(patient.Condition), search) {
			continue
		}
		filtered = append(filtered, patient)
	}

	start := (page - 1) * limit
	if start > len(filtered) {
		start = len(filtered)
	}
	end := start + limit
	if end > len(filtered) {
		end = len(filtered)
	}
	totalPages := (len(filtered) + limit - 1) / limit

	writeJSON(w, http.StatusOK, models.PatientPage{
		Data:       filtered[start:end],
		Total:      len(filtered),
		Page:       page,
		Limit:      limit,
		TotalPages: totalPages,
	})
}

func (s *Server) handleGetPatient(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if patient, i := s.findPatient(chi.URLParam(r, "id")); i >= 0 {
		writeJSON(w, http.StatusOK, patient)
		return
	}
	writeError(w, http.StatusNotFound, "patient_not_found", "patient not found")
}

func (s *Server) handleCreatePatient(w http.ResponseWriter, r *http.Request) {
	var req models.CreatePatientRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "invalid JSON payload")
		return
	}
	now := time.Now().UTC()
	patient := models.Patient{
		PatientID: uuid.NewString(),
		LastName:  req.LastName,
		FirstName: req.FirstName,
		Age:       req.Age,
		WeightKG:  req.WeightKG,
		Condition: req.Condition,
		Notes:     req.Notes,
		Phone:     req.Phone,
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.mu.Lock()
	s.patients = append([]models.Patient{patient}, s.patients...)
	s.mu.Unlock()
	writeJSON(w, http.StatusCreated, patient)
}

func (s *Server) handleUpdatePatient(w http.ResponseWriter, r *http.Request) {
	var req models.CreatePatientRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "invalid JSON payload")
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	_, i := s.findPatient(chi.URLParam(r, "id"))
	if i < 0 {
		writeError(w, http.StatusNotFound, "patient_not_found", "patient not found")
		return
	}
	patient := &s.patients[i]
	patient.LastName = req.LastName
	patient.FirstName = req.FirstName
	patient.Age = req.Age
	patient.WeightKG = req.WeightKG
	patient.Condition = req.Condition
	patient.Notes = req.Notes
	patient.Phone = req.Phone
	patient.UpdatedAt = time.Now().UTC()
	writeJSON(w, http.StatusOK, *patient)
}

func (s *Server) handleDeletePatient(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, i := s.findPatient(chi.URLParam(r, "id"))
	if i < 0 {
		writeError(w, http.StatusNotFound, "patient_not_found", "patient not found")
		return
	}
	s.patients = append(s.patients[:i], s.patients[i+1:]...)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handlePatientHistory(w http.ResponseWriter, r *http.Request) {
	patientID := chi.URLParam(r, "id")
	s.mu.Lock()
	defer s.mu.Unlock()
	history := make([]models.Visit, 0)
	for _, visit := range s.visits {
		if visit.PatientID == patientID {
			history = append(history, visit)
		}
	}
	sort.Slice(history, func(i, j int) bool {
		return history[i].ArrivedAt.After(history[j].ArrivedAt)
	})
	writeJSON(w, http.StatusOK, history)
}

func (s *Server) findPatient(id string) (models.Patient, int) {
	for i, patient := range s.patients {
		if patient.PatientID == id {
			return patient, i
		}
	}
	return models.Patient{}, -1
}

func (s *Server) handleQueue(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	active := s.activeVisits()
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, active)
}

// activeVisits returns the server-filtered, canonically ordered queue.
// Callers hold s.mu.
func (s *Server) activeVisits() []models.Visit {
	active := make([]models.Visit, 0, len(s.visits))
	for _, visit := range s.visits {
		if models.ActiveStatus(visit.Status) {
			active = append(active, visit)
		}
	}
	return queue.Order(active)
}

func (s *Server) handleCreateVisit(w http.ResponseWriter, r *http.Request) {
	var req models.CreateVisitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "invalid JSON payload")
		return
	}
	if req.Urgency == "" {
		req.Urgency = models.UrgencyStandard
	}

	s.mu.Lock()
	patient, i := s.findPatient(req.PatientID)
	if i < 0 {
		s.mu.Unlock()
		writeError(w, http.StatusNotFound, "patient_not_found", "patient not found")
		return
	}
	visit := models.Visit{
		VisitID:     uuid.NewString(),
		PatientID:   req.PatientID,
		Status:      models.StatusWaiting,
		Urgency:     req.Urgency,
		ArrivedAt:   time.Now().UTC(),
		Notes:       req.Notes,
		PatientName: patient.FirstName + " " + patient.LastName,
	}
	s.visits = append(s.visits, visit)
	snapshot := s.activeVisits()
	s.mu.Unlock()

	s.pushQueueUpdate(snapshot)
	writeJSON(w, http.StatusCreated, visit)
}

func (s *Server) visitAction(action string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		visitID := chi.URLParam(r, "id")

		s.mu.Lock()
		i := s.findVisit(visitID)
		if i < 0 {
			s.mu.Unlock()
			writeError(w, http.StatusNotFound, "visit_not_found", "visit not found")
			return
		}
		visit := &s.visits[i]
		if !queue.ValidTransition(action, visit.Status) {
			s.mu.Unlock()
			writeError(w, http.StatusConflict, "invalid_state", "visit state does not allow this action")
			return
		}

		now := time.Now().UTC()
		var event realtime.Envelope
		switch action {
		case queue.ActionCall:
			visit.Status = models.StatusCalled
			visit.CalledAt = &now
			event = envelope(realtime.EventPatientCalled, models.PatientCalledEvent{
				VisitID:     visit.VisitID,
				PatientName: visit.PatientName,
			})
		case queue.ActionStart:
			visit.Status = models.StatusInConsultation
			visit.StartedAt = &now
			event = envelope(realtime.EventConsultationStarted, models.ConsultationStartedEvent{
				VisitID:    visit.VisitID,
				ProviderID: visit.ProviderID,
			})
		case queue.ActionFinish:
			if r.Body != nil {
				var req models.FinishVisitRequest
				if err := json.NewDecoder(r.Body).Decode(&req); err == nil && req.Notes != "" {
					visit.Notes = req.Notes
				}
			}
			visit.Status = models.StatusFinished
			visit.FinishedAt = &now
			duration := 0
			if visit.StartedAt != nil {
				duration = int(now.Sub(*visit.StartedAt).Minutes())
			}
			event = envelope(realtime.EventConsultationFinished, models.ConsultationFinishedEvent{
				VisitID:     visit.VisitID,
				DurationMin: duration,
			})
		case queue.ActionSkip:
			visit.Status = models.StatusWaiting
		}
		result := *visit
		snapshot := s.activeVisits()
		s.mu.Unlock()

		if event.Type != "" {
			s.push("", event)
		}
		s.pushQueueUpdate(snapshot)
		writeJSON(w, http.StatusOK, result)
	}
}

func (s *Server) handleCancelVisit(w http.ResponseWriter, r *http.Request) {
	visitID := chi.URLParam(r, "id")

	s.mu.Lock()
	i := s.findVisit(visitID)
	if i < 0 {
		s.mu.Unlock()
		writeError(w, http.StatusNotFound, "visit_not_found", "visit not found")
		return
	}
	if !queue.ValidTransition(queue.ActionCancel, s.visits[i].Status) {
		s.mu.Unlock()
		writeError(w, http.StatusConflict, "invalid_state", "visit state does not allow this action")
		return
	}
	s.visits[i].Status = models.StatusCancelled
	snapshot := s.activeVisits()
	s.mu.Unlock()

	s.pushQueueUpdate(snapshot)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) findVisit(id string) int {
	for i := range s.visits {
		if s.visits[i].VisitID == id {
			return i
		}
	}
	return -1
}

func (s *Server) handleDailyStats(w http.ResponseWriter, r *http.Request) {
	date := r.URL.Query().Get("date")
	if date == "" {
		date = time.Now().UTC().Format("2006-01-02")
	}
	s.mu.Lock()
	stats := models.DailyStats{
		Date:              date,
		PatientsTotal:     len(s.visits),
		PatientsFinished:  s.countStatus(models.StatusFinished),
		PatientsWaiting:   s.countStatus(models.StatusWaiting),
		PatientsInConsult: s.countStatus(models.StatusInConsultation),
	}
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) countStatus(status string) int {
	count := 0
	for _, visit := range s.visits {
		if visit.Status == status {
			count++
		}
	}
	return count
}

func (s *Server) handleUsers(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	users := make([]models.User, len(s.users))
	copy(users, s.users)
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, users)
}

func bearerToken(header string) string {
	parts := strings.Fields(header)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return ""
	}
	return parts[1]
}

func queryInt(r *http.Request, key string, fallback int) int {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value <= 0 {
		return fallback
	}
	return value
}

type errorResponse struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorResponse{Message: message, Code: code})
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(payload)
}
