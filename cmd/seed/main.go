package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"

	"github.com/joho/godotenv"

	"todocal/internal/auth"
	"todocal/internal/cache"
	"todocal/internal/config"
	"todocal/internal/db"
	apperrors "todocal/internal/errors"
	"todocal/internal/kms"
	"todocal/internal/logging"
	"todocal/internal/model"
	"todocal/internal/repository"
	"todocal/internal/service"
)

// seedTodo is one demo todo, placed relative to today.
type seedTodo struct {
	Title         string
	DayOffset     int
	DueTime       string
	NotifyMinutes *int
	Completed     bool
}

func minutes(n int) *int { return &n }

var demoTodos = []seedTodo{
	{Title: "Team standup", DayOffset: 0, DueTime: "09:30", NotifyMinutes: minutes(10)},
	{Title: "Buy groceries", DayOffset: 0, DueTime: "18:00"},
	{Title: "Pay electricity bill", DayOffset: -1, Completed: true},
	{Title: "Dentist appointment", DayOffset: 2, DueTime: "14:00", NotifyMinutes: minutes(60)},
	{Title: "Book flights", DayOffset: 5},
	{Title: "Quarterly review prep", DayOffset: 9, DueTime: "10:00", NotifyMinutes: minutes(30)},
}

func main() {
	email := flag.String("email", "demo@example.com", "demo user email")
	password := flag.String("password", "demo1234", "demo user password")
	name := flag.String("name", "Demo User", "demo user name")
	flag.Parse()

	_ = godotenv.Load()
	log.Println("Starting seed script...")

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}
	loc, _ := cfg.Location()

	gormDB, err := db.NewMySQL(cfg.MySQLDSN)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	if err := db.Migrate(gormDB); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}
	log.Println("Database migrations completed")

	cacheClient := cache.New(cfg.RedisAddr, cfg.RedisPass, cfg.RedisDB)
	defer cacheClient.Close()

	logger := logging.New(cfg.LogLevel, cfg.LogFormat)
	titles := kms.NewTitleCodec(kms.NewNCPClient(kms.NCPConfig{
		Endpoint:  cfg.KMSEndpoint,
		KeyTag:    cfg.KMSKeyTag,
		AccessKey: cfg.NCPAccessKey,
		SecretKey: cfg.NCPSecretKey,
		Timeout:   cfg.KMSTimeout,
	}), logger)

	authService := service.NewAuthService(
		repository.NewUserRepository(gormDB),
		auth.NewJWTService(cfg.JWTSecret),
		auth.NewTokenStore(cacheClient),
	)
	todoService := service.NewTodoService(repository.NewTodoRepository(gormDB), titles, cacheClient, loc)

	ctx := context.Background()
	user, err := ensureUser(ctx, authService, *email, *password, *name)
	if err != nil {
		log.Fatalf("Failed to prepare demo user: %v", err)
	}
	log.Printf("Using demo user %s (id=%d)", user.Email, user.ID)

	created, err := seedTodos(ctx, todoService, user.ID, model.Today(loc))
	if err != nil {
		log.Fatalf("Failed to seed todos: %v", err)
	}

	log.Printf("Seed completed successfully!")
	log.Printf("  - Todos created: %d", created)
	log.Printf("  - Login with: %s / %s", *email, *password)
}

// ensureUser registers the demo user, or logs in when the email is already taken.
func ensureUser(ctx context.Context, svc service.AuthService, email, password, name string) (*model.UserSummary, error) {
	_, user, err := svc.Register(ctx, email, password, name)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, apperrors.ErrEmailTaken) {
		return nil, err
	}
	_, user, err = svc.Login(ctx, email, password)
	if err != nil {
		return nil, fmt.Errorf("demo user exists with a different password: %w", err)
	}
	return user, nil
}

// seedTodos creates the demo todos through the service so titles are encrypted like real writes.
func seedTodos(ctx context.Context, svc service.TodoService, userID uint, today model.Date) (int, error) {
	created := 0
	for _, item := range demoTodos {
		due := today.AddDays(item.DayOffset)
		req := model.NewTodo{
			Title:         item.Title,
			DueDate:       &due,
			NotifyEmail:   item.NotifyMinutes != nil,
			NotifyMinutes: item.NotifyMinutes,
		}
		if item.DueTime != "" {
			t, err := model.ParseTimeOfDay(item.DueTime)
			if err != nil {
				return created, fmt.Errorf("todo %q: %w", item.Title, err)
			}
			req.DueTime = &t
		}

		todo, err := svc.Create(ctx, userID, req)
		if err != nil {
			return created, fmt.Errorf("create todo %q: %w", item.Title, err)
		}
		if item.Completed {
			patch := model.TodoPatch{Completed: model.Some(true)}
			if _, err := svc.Update(ctx, userID, todo.ID, patch); err != nil {
				return created, fmt.Errorf("complete todo %q: %w", item.Title, err)
			}
		}
		created++
	}
	return created, nil
}
