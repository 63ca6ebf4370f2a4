package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/ilyakaznacheev/cleanenv"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/sksah1842/devbook/pkg/login"
	"github.com/sksah1842/devbook/pkg/user"
)

type MongoConfig struct {
	URI      string `env:"MONGO_URI" env-default:"mongodb://localhost:27017"`
	Database string `env:"MONGO_DATABASE" env-default:"devbook"`
}

type Config struct {
	MongoConfig MongoConfig
}

func main() {
	name := flag.String("name", "", "Display name for the new user (required)")
	email := flag.String("email", "", "Email for the new user (required)")
	password := flag.String("password", "", "Password for the new user (required)")
	flag.Parse()

	if *name == "" || *email == "" || *password == "" {
		fmt.Println("Error: name, email, and password are required")
		flag.Usage()
		os.Exit(1)
	}

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		AddSource: true,
	})))

	config := Config{}
	cleanenv.ReadEnv(&config)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(options.Client().ApplyURI(config.MongoConfig.URI))
	if err != nil {
		slog.Error("Failed to connect to MongoDB", "uri", config.MongoConfig.URI, "error", err)
		os.Exit(1)
	}
	defer client.Disconnect(context.Background())

	repo, err := user.NewMongoRepository(ctx, client.Database(config.MongoConfig.Database))
	if err != nil {
		slog.Error("Failed to initialize credential store", "error", err)
		os.Exit(1)
	}

	hash, err := login.HashPassword(*password)
	if err != nil {
		slog.Error("Failed to hash password", "error", err)
		os.Exit(1)
	}

	u := user.User{
		ID:           uuid.New(),
		Name:         *name,
		Email:        user.NormalizeEmail(*email),
		PasswordHash: hash,
		CreatedAt:    time.Now().UTC(),
	}

	slog.Info("Creating user", "email", u.Email)
	if err := repo.Create(ctx, u); err != nil {
		slog.Error("Failed to create user", "error", err)
		os.Exit(1)
	}

	slog.Info("User created successfully", "email", u.Email, "id", u.ID)
}
