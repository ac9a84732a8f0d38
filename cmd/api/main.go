package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/time/rate"

	"github.com/jwalitptl/hospital-api/internal/config"
	adminHandler "github.com/jwalitptl/hospital-api/internal/handler/admin"
	appointmentHandler "github.com/jwalitptl/hospital-api/internal/handler/appointment"
	authHandler "github.com/jwalitptl/hospital-api/internal/handler/auth"
	doctorHandler "github.com/jwalitptl/hospital-api/internal/handler/doctor"
	"github.com/jwalitptl/hospital-api/internal/handler/health"
	patientHandler "github.com/jwalitptl/hospital-api/internal/handler/patient"
	"github.com/jwalitptl/hospital-api/internal/handler/prometheus"
	reportHandler "github.com/jwalitptl/hospital-api/internal/handler/report"
	"github.com/jwalitptl/hospital-api/internal/middleware"
	"github.com/jwalitptl/hospital-api/internal/model"
	"github.com/jwalitptl/hospital-api/internal/repository"
	"github.com/jwalitptl/hospital-api/internal/repository/memory"
	"github.com/jwalitptl/hospital-api/internal/repository/postgres"
	"github.com/jwalitptl/hospital-api/internal/router"
	appointmentService "github.com/jwalitptl/hospital-api/internal/service/appointment"
	authService "github.com/jwalitptl/hospital-api/internal/service/auth"
	doctorService "github.com/jwalitptl/hospital-api/internal/service/doctor"
	eventService "github.com/jwalitptl/hospital-api/internal/service/event"
	patientService "github.com/jwalitptl/hospital-api/internal/service/patient"
	reportService "github.com/jwalitptl/hospital-api/internal/service/report"
	"github.com/jwalitptl/hospital-api/internal/worker"
	"github.com/jwalitptl/hospital-api/pkg/auth"
	"github.com/jwalitptl/hospital-api/pkg/logger"
	"github.com/jwalitptl/hospital-api/pkg/metrics"
	"github.com/jwalitptl/hospital-api/pkg/security"
	"github.com/jwalitptl/hospital-api/pkg/validator"
)

var configPath string

func main() {
	rootCmd := &cobra.Command{
		Use:   "hospital-api",
		Short: "Hospital appointments API server",
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to config.yml")

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(seedAdminCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	var (
		embeddedWorker bool
		adminEmail     string
		adminPassword  string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, l, err := bootstrap()
			if err != nil {
				return err
			}
			return runServer(cfg, l, serveOptions{
				embeddedWorker: embeddedWorker,
				adminEmail:     adminEmail,
				adminPassword:  adminPassword,
			})
		},
	}

	cmd.Flags().BoolVar(&embeddedWorker, "embedded-worker", false, "deliver outbox events from this process (always on with the memory driver)")
	cmd.Flags().StringVar(&adminEmail, "admin-email", "", "seed an administrator with this email at startup")
	cmd.Flags().StringVar(&adminPassword, "admin-password", "", "password for --admin-email")
	return cmd
}

func seedAdminCmd() *cobra.Command {
	var req model.CreateStaffRequest
	var role string

	cmd := &cobra.Command{
		Use:   "seed-admin",
		Short: "Create an administrator or receptionist login",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := bootstrap()
			if err != nil {
				return err
			}
			if cfg.Database.Driver == "memory" {
				return errors.New("seed-admin needs a persistent database; use serve --admin-email with the memory driver")
			}

			ctx := cmd.Context()
			st, err := openStores(ctx, cfg)
			if err != nil {
				return err
			}
			defer st.Close()

			req.Role = model.Role(role)
			svc := newServices(cfg, st, logger.Nop())
			staff, err := svc.auth.CreateStaff(ctx, &req)
			if err != nil {
				return fmt.Errorf("failed to create %s: %w", role, err)
			}

			log.Info().Str("id", staff.ID.String()).Str("email", staff.Email).Str("role", role).Msg("Staff account created")
			return nil
		},
	}

	cmd.Flags().StringVar(&req.Email, "email", "", "login email")
	cmd.Flags().StringVar(&req.Password, "password", "", "login password")
	cmd.Flags().StringVar(&req.FullName, "name", "Administrator", "display name")
	cmd.Flags().StringVar(&role, "role", string(model.RoleAdmin), "admin or receptionist")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}

func bootstrap() (*config.Config, *logger.Logger, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	l := logger.NewLogger(&logger.Config{
		Level: logger.ParseLevel(cfg.Log.Level),
		JSON:  cfg.Log.JSON,
	})
	log.Logger = l.Zerolog()
	return cfg, l, nil
}

// stores holds the repositories for the configured driver.
type stores struct {
	db           *sqlx.DB
	appointments repository.AppointmentRepository
	doctors      repository.DoctorRepository
	patients     repository.PatientRepository
	staff        repository.StaffRepository
	identities   repository.IdentityRepository
	outbox       repository.OutboxRepository
}

func openStores(ctx context.Context, cfg *config.Config) (*stores, error) {
	if cfg.Database.Driver == "memory" {
		mem := memory.NewStore()
		return &stores{
			appointments: mem.Appointments(),
			doctors:      mem.Doctors(),
			patients:     mem.Patients(),
			staff:        mem.Staff(),
			identities:   mem.Identities(),
			outbox:       mem.Outbox(),
		}, nil
	}

	db, err := postgres.NewDB(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}
	return &stores{
		db:           db,
		appointments: postgres.NewAppointmentRepository(db),
		doctors:      postgres.NewDoctorRepository(db),
		patients:     postgres.NewPatientRepository(db),
		staff:        postgres.NewStaffRepository(db),
		identities:   postgres.NewIdentityRepository(db),
		outbox:       postgres.NewOutboxRepository(db),
	}, nil
}

func (s *stores) Close() {
	if s.db != nil {
		_ = s.db.Close()
	}
}

type services struct {
	auth         *authService.Service
	doctors      *doctorService.Service
	patients     *patientService.Service
	appointments *appointmentService.Service
	reports      *reportService.Service
	events       *eventService.Service
	jwt          auth.JWTService
}

func newServices(cfg *config.Config, st *stores, l *logger.Logger) *services {
	validate := validator.New()
	jwtSvc := auth.NewJWTService(cfg.JWT.Secret, cfg.JWT.Issuer, cfg.JWT.TTL)

	authSvc := authService.NewService(
		st.identities,
		st.doctors,
		st.patients,
		st.staff,
		security.NewBcryptHasher(0),
		jwtSvc,
		validate,
	)
	doctors := doctorService.NewService(st.doctors, authSvc, validate, cfg.Cache.DoctorsTTL)

	return &services{
		auth:     authSvc,
		doctors:  doctors,
		patients: patientService.NewService(st.patients, authSvc, validate),
		appointments: appointmentService.NewService(
			st.appointments,
			doctors,
			validate,
			appointmentService.TransitionPolicy(cfg.Appointments.TransitionPolicy),
			l,
		),
		reports: reportService.NewService(st.appointments, st.doctors, st.patients),
		events:  eventService.NewService(st.outbox),
		jwt:     jwtSvc,
	}
}

type serveOptions struct {
	embeddedWorker bool
	adminEmail     string
	adminPassword  string
}

func runServer(cfg *config.Config, l *logger.Logger, opts serveOptions) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st, err := openStores(ctx, cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	svc := newServices(cfg, st, l)

	if opts.adminEmail != "" {
		_, err := svc.auth.CreateStaff(ctx, &model.CreateStaffRequest{
			Role:     model.RoleAdmin,
			FullName: "Administrator",
			Email:    opts.adminEmail,
			Password: opts.adminPassword,
		})
		if err != nil {
			return fmt.Errorf("failed to seed administrator: %w", err)
		}
		log.Info().Str("email", opts.adminEmail).Msg("Administrator seeded")
	}

	promHandler := prometheus.New(cfg.Monitoring.MetricsPrefix)

	var pinger health.Pinger
	if st.db != nil {
		pinger = st.db
	}

	gin.SetMode(gin.ReleaseMode)
	r := router.NewRouter(
		middleware.NewAuthMiddleware(svc.jwt),
		router.Handlers{
			Auth:        authHandler.NewHandler(svc.auth, svc.patients),
			Appointment: appointmentHandler.NewHandler(svc.appointments),
			Doctor:      doctorHandler.NewHandler(svc.doctors),
			Patient:     patientHandler.NewHandler(svc.patients),
			Report:      reportHandler.NewHandler(svc.reports),
			Admin:       adminHandler.NewHandler(svc.reports, svc.auth),
			Health:      health.NewHandler(pinger),
			Metrics:     promHandler,
		},
		router.NewEventTracker(svc.events),
		router.RouterConfig{
			RateLimit:      rate.Limit(cfg.RateLimit.RPS),
			RateBurst:      cfg.RateLimit.Burst,
			RequestTimeout: cfg.Server.RequestTimeout,
			MaxBodyBytes:   cfg.Server.MaxBodyBytes,
			CORSConfig:     middleware.DefaultCORSConfig(cfg.Server.AllowOrigins...),
		},
	)
	r.Setup()

	var wg sync.WaitGroup
	if opts.embeddedWorker || cfg.Database.Driver == "memory" {
		broker, err := worker.NewBroker(ctx, cfg.Redis)
		if err != nil {
			return fmt.Errorf("failed to connect to Redis: %w", err)
		}
		defer broker.Close()

		m := metrics.NewMetrics(cfg.Monitoring.MetricsPrefix, "outbox", promHandler.Registry())
		delivery := worker.NewDelivery(st.outbox, broker, worker.NewNotifier(cfg, m, l), cfg, l, m)

		wg.Add(1)
		go func() {
			defer wg.Done()
			delivery.Run(ctx)
		}()
	}

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      r.Engine(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", srv.Addr).Str("driver", cfg.Database.Driver).Msg("Starting server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		stop()
		wg.Wait()
		return fmt.Errorf("failed to start server: %w", err)
	case <-ctx.Done():
	}

	log.Info().Msg("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	wg.Wait()

	log.Info().Msg("Server exited properly")
	return nil
}
