package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httplog/v2"
	"github.com/go-chi/jwtauth/v5"
	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/sksah1842/devbook/pkg/login"
	"github.com/sksah1842/devbook/pkg/tokengenerator"
	"github.com/sksah1842/devbook/pkg/user"
)

type ServerConfig struct {
	Addr            string        `env:"SERVER_ADDR" env-default:":5000"`
	ShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT" env-default:"10s"`
}

type MongoConfig struct {
	URI      string `env:"MONGO_URI" env-default:"mongodb://localhost:27017"`
	Database string `env:"MONGO_DATABASE" env-default:"devbook"`
	// InMem switches the credential store to the in-memory repository,
	// useful for local development without a database.
	InMem bool `env:"MONGO_INMEM" env-default:"false"`
}

type JwtConfig struct {
	Secret            string        `env:"JWT_SECRET" env-default:"very-secure-jwt-secret"`
	Issuer            string        `env:"JWT_ISSUER" env-default:"devbook"`
	Audience          string        `env:"JWT_AUDIENCE" env-default:"devbook"`
	AccessTokenExpiry time.Duration `env:"ACCESS_TOKEN_EXPIRY" env-default:"100h"`
	TempTokenExpiry   time.Duration `env:"TEMP_TOKEN_EXPIRY" env-default:"10m"`
}

type TwoFaConfig struct {
	Issuer string `env:"TOTP_ISSUER" env-default:"DevBook"`
}

type Config struct {
	ServerConfig ServerConfig
	MongoConfig  MongoConfig
	JwtConfig    JwtConfig
	TwoFaConfig  TwoFaConfig
	CORSOrigins  []string `env:"CORS_ORIGINS" env-default:"http://localhost:3000"`
}

// loadEnvFile loads environment variables from a .env file next to the
// executable or in the working directory, without overriding variables
// already set.
func loadEnvFile() {
	envFile := ".env"
	if execPath, err := os.Executable(); err == nil {
		candidate := filepath.Join(filepath.Dir(execPath), ".env")
		if _, err := os.Stat(candidate); err == nil {
			envFile = candidate
		}
	}
	if _, err := os.Stat(envFile); os.IsNotExist(err) {
		return
	}
	if err := godotenv.Load(envFile); err != nil {
		slog.Error("Failed to load .env file", "error", err, "path", envFile)
		return
	}
	slog.Info("Configuration loaded from .env file", "path", envFile)
}

func main() {
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		AddSource: true,
	})))

	loadEnvFile()

	config := Config{}
	if err := cleanenv.ReadEnv(&config); err != nil {
		slog.Error("Failed to read configuration", "error", err)
		os.Exit(-1)
	}

	repo, cleanup, err := newRepository(config.MongoConfig)
	if err != nil {
		slog.Error("Failed to initialize credential store", "error", err)
		os.Exit(-1)
	}
	defer cleanup()

	tokenService := tokengenerator.NewTokenService(
		tokengenerator.NewJwtTokenGenerator(config.JwtConfig.Secret, config.JwtConfig.Issuer, config.JwtConfig.Audience),
		tokengenerator.WithAccessTokenExpiry(config.JwtConfig.AccessTokenExpiry),
		tokengenerator.WithTempTokenExpiry(config.JwtConfig.TempTokenExpiry),
	)
	loginService := login.NewLoginService(repo, tokenService, config.TwoFaConfig.Issuer)
	ja := jwtauth.New("HS256", []byte(config.JwtConfig.Secret), nil)

	requestLogger := httplog.NewLogger("devbook", httplog.Options{
		LogLevel: slog.LevelInfo,
		Concise:  true,
	})

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(httplog.RequestLogger(requestLogger))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: config.CORSOrigins,
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", login.AuthTokenHeader},
		MaxAge:         300,
	}))
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	r.Mount("/auth", login.Handler(login.NewHandle(loginService), ja))

	server := &http.Server{
		Addr:    config.ServerConfig.Addr,
		Handler: r,
	}

	go func() {
		slog.Info("Server starting", "addr", config.ServerConfig.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Server failed", "error", err)
			os.Exit(-1)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	slog.Info("Shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), config.ServerConfig.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		slog.Error("Shutdown failed", "error", err)
	}
}

func newRepository(cfg MongoConfig) (user.Repository, func(), error) {
	if cfg.InMem {
		slog.Info("Using in-memory credential store")
		return user.NewInMemRepository(), func() {}, nil
	}

	client, err := mongo.Connect(options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, nil, err
	}
	cleanup := func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := client.Disconnect(ctx); err != nil {
			slog.Error("Failed to disconnect from MongoDB", "error", err)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	repo, err := user.NewMongoRepository(ctx, client.Database(cfg.Database))
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	slog.Info("Connected to MongoDB", "database", cfg.Database)
	return repo, cleanup, nil
}
