package main

import (
	"context"
	"fmt"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/kelseyhightower/envconfig"
	"github.com/spf13/cobra"

	"github.com/vidaplus/hospital-api/internal/config"
	"github.com/vidaplus/hospital-api/internal/model"
	"github.com/vidaplus/hospital-api/internal/repository/postgres"
	authservice "github.com/vidaplus/hospital-api/internal/service/auth"
	"github.com/vidaplus/hospital-api/pkg/auth"
	apperrors "github.com/vidaplus/hospital-api/pkg/errors"
	"github.com/vidaplus/hospital-api/pkg/metrics"
	"github.com/vidaplus/hospital-api/pkg/security"
)

// seedConfig is read from SEED_* environment variables
type seedConfig struct {
	Professionals int    `envconfig:"PROFESSIONALS" default:"10"`
	Patients      int    `envconfig:"PATIENTS" default:"50"`
	Password      string `envconfig:"PASSWORD" default:"vidaplus123"`
	AdminEmail    string `envconfig:"ADMIN_EMAIL" default:"admin@vidaplus.com.br"`
	RandomSeed    int64  `envconfig:"RANDOM_SEED" default:"0"`
}

var specialties = []string{
	"Cardiologia",
	"Clinica Geral",
	"Dermatologia",
	"Endocrinologia",
	"Neurologia",
	"Ortopedia",
	"Pediatria",
	"Psiquiatria",
}

var bloodTypes = []string{"A+", "A-", "B+", "B-", "AB+", "AB-", "O+", "O-"}

func seedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Populate the database with fake identities",
		RunE: func(cmd *cobra.Command, args []string) error {
			var sc seedConfig
			if err := envconfig.Process("seed", &sc); err != nil {
				return fmt.Errorf("failed to read seed config: %w", err)
			}
			return runSeed(cmd.Context(), sc)
		},
	}
}

func runSeed(ctx context.Context, sc seedConfig) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	log := newLogger(cfg).With("seed")

	db, err := postgres.NewDB(ctx, cfg.Database)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := postgres.Migrate(ctx, db); err != nil {
		return err
	}

	repos := postgres.NewRepositories(postgres.NewBaseRepository(db, cfg.Database.QueryTimeout))
	svc := authservice.NewService(
		repos.Identities,
		repos.Patients,
		repos.Professionals,
		security.NewBcryptHasher(cfg.Security.BcryptCost),
		auth.NewJWTService(cfg.JWT.Secret, cfg.JWT.Issuer, cfg.JWT.Expiry),
		metrics.NewNop(),
		log,
	)

	faker := gofakeit.New(uint64(sc.RandomSeed))
	if sc.RandomSeed == 0 {
		faker = gofakeit.New(uint64(time.Now().UnixNano()))
	}

	requests := []*model.RegisterRequest{{
		Name:       "Administrador",
		Email:      sc.AdminEmail,
		Password:   sc.Password,
		Role:       model.RoleAdmin,
		NationalID: faker.Numerify("###########"),
	}}
	for i := 0; i < sc.Professionals; i++ {
		requests = append(requests, fakeProfessional(faker, sc.Password))
	}
	for i := 0; i < sc.Patients; i++ {
		requests = append(requests, fakePatient(faker, sc.Password))
	}

	var created, skipped int
	for _, req := range requests {
		if _, err := svc.Register(ctx, req); err != nil {
			if apperrors.Is(err, apperrors.ErrConflict) {
				skipped++
				continue
			}
			return fmt.Errorf("register %s: %w", req.Email, err)
		}
		created++
	}

	log.Info("seed complete", "created", created, "skipped", skipped)
	return nil
}

func fakeProfessional(faker *gofakeit.Faker, password string) *model.RegisterRequest {
	role := model.RoleDoctor
	if faker.Bool() {
		role = model.RoleNurse
	}

	morning, _ := model.ParseTimeRange("08:00-12:00")
	afternoon, _ := model.ParseTimeRange("14:00-18:00")
	availability := model.WeeklyAvailability{}
	for _, day := range []model.Weekday{model.Monday, model.Tuesday, model.Wednesday, model.Thursday, model.Friday} {
		if faker.Bool() {
			availability[day] = []model.TimeRange{morning, afternoon}
		} else {
			availability[day] = []model.TimeRange{morning}
		}
	}

	council := "CRM"
	if role == model.RoleNurse {
		council = "COREN"
	}

	return &model.RegisterRequest{
		Name:          faker.Name(),
		Email:         faker.Email(),
		Password:      password,
		Role:          role,
		NationalID:    faker.Numerify("###########"),
		Phone:         faker.Numerify("(##) 9####-####"),
		Specialty:     faker.RandomString(specialties),
		LicenseNumber: faker.Numerify(council + "######"),
		Council:       council,
		Availability:  availability,
	}
}

func fakePatient(faker *gofakeit.Faker, password string) *model.RegisterRequest {
	birth := faker.DateRange(
		time.Date(1940, 1, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2015, 12, 31, 0, 0, 0, 0, time.UTC),
	)
	return &model.RegisterRequest{
		Name:             faker.Name(),
		Email:            faker.Email(),
		Password:         password,
		Role:             model.RolePatient,
		NationalID:       faker.Numerify("###########"),
		Phone:            faker.Numerify("(##) 9####-####"),
		BirthDate:        birth.Format(time.DateOnly),
		Address:          faker.Street() + ", " + faker.City(),
		BloodType:        faker.RandomString(bloodTypes),
		EmergencyContact: faker.Name(),
		EmergencyPhone:   faker.Numerify("(##) 9####-####"),
		InsurancePlan:    faker.RandomString([]string{"Unimed", "Amil", "Bradesco Saude", "SUS"}),
		InsuranceNumber:  faker.Numerify("##########"),
	}
}
