package mockbackend

import (
	"time"

	"clinicdesk/internal/models"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// Seed accounts for the mock backend. Passwords match the original demo
// fixtures.
var seedAccounts = []struct {
	name     string
	email    string
	role     string
	password string
}{
	{"Alice Moreau", "admin@clinic.test", models.RoleAdmin, "admin123"},
	{"Dr. Bernard Lang", "provider@clinic.test", models.RoleProvider, "provider123"},
	{"Claire Dubois", "clerk@clinic.test", models.RoleClerk, "clerk123"},
}

func seedUsers() ([]models.User, map[string][]byte) {
	now := time.Now().UTC()
	users := make([]models.User, 0, len(seedAccounts))
	hashes := make(map[string][]byte, len(seedAccounts))
	for _, account := range seedAccounts {
		hash, err := bcrypt.GenerateFromPassword([]byte(account.password), bcrypt.MinCost)
		if err != nil {
			continue
		}
		users = append(users, models.User{
			UserID:    uuid.NewString(),
			Name:      account.name,
			Email:     account.email,
			Role:      account.role,
			CreatedAt: now,
			UpdatedAt: now,
		})
		hashes[account.email] = hash
	}
	return users, hashes
}

func seedPatients() []models.Patient {
	now := time.Now().UTC()
	seeds := []models.Patient{
		{LastName: "Martin", FirstName: "Paul", Age: 54, WeightKG: 82, Condition: "hypertension", Phone: "0601020304"},
		{LastName: "Petit", FirstName: "Lucie", Age: 31, WeightKG: 60, Condition: "asthma"},
		{LastName: "Roux", FirstName: "Henri", Age: 72, WeightKG: 75, Condition: "diabetes", Notes: "fasting blood test pending"},
	}
	for i := range seeds {
		seeds[i].PatientID = uuid.NewString()
		seeds[i].CreatedAt = now
		seeds[i].UpdatedAt = now
	}
	return seeds
}

func seedVisits(patients []models.Patient) []models.Visit {
	now := time.Now().UTC()
	visits := make([]models.Visit, 0, len(patients))
	urgencies := []string{models.UrgencyStandard, models.UrgencyCritical, models.UrgencyPriority}
	for i, patient := range patients {
		visits = append(visits, models.Visit{
			VisitID:     uuid.NewString(),
			PatientID:   patient.PatientID,
			Status:      models.StatusWaiting,
			Urgency:     urgencies[i%len(urgencies)],
			ArrivedAt:   now.Add(-time.Duration(len(patients)-i) * 10 * time.Minute),
			PatientName: patient.FirstName + " " + patient.LastName,
		})
	}
	return visits
}
