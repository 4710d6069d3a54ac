// Package testinfra starts throwaway database servers for integration
// tests. It needs a reachable Docker daemon.
package testinfra

import (
	"context"
	"fmt"
	"time"

	"github.com/docker/go-connections/nat"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/mysql"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/koustreak/racedb/internal/database"
)

const (
	MySQLImage    = "mysql:8.4"
	PostgresImage = "postgres:17-alpine"

	Password = "racedb-test"
)

// Server is a running database container and the config to reach it.
type Server struct {
	Container testcontainers.Container
	Config    database.Config
}

// Terminate stops and removes the container.
func (s *Server) Terminate(ctx context.Context) error {
	return s.Container.Terminate(ctx)
}

// StartMySQL starts MySQL with root access. The returned config targets
// database "ddnet" with setup enabled.
func StartMySQL(ctx context.Context) (*Server, error) {
	ctr, err := mysql.Run(ctx,
		MySQLImage,
		mysql.WithUsername("root"),
		mysql.WithPassword(Password),
		mysql.WithDatabase("ddnet"),
		testcontainers.WithWaitStrategy(
			wait.ForListeningPort("3306/tcp").WithStartupTimeout(90*time.Second),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("start mysql: %w", err)
	}
	return finish(ctx, ctr, "3306/tcp", database.Config{
		Driver:   database.DriverMySQL,
		User:     "root",
		Password: Password,
		Database: "ddnet",
		Prefix:   "record",
		Setup:    true,
	})
}

// StartPostgres starts PostgreSQL. The returned config targets a database
// that does not exist yet, so setup has to create it.
func StartPostgres(ctx context.Context) (*Server, error) {
	ctr, err := postgres.Run(ctx,
		PostgresImage,
		postgres.WithUsername("postgres"),
		postgres.WithPassword(Password),
		postgres.WithDatabase("postgres"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("start postgres: %w", err)
	}
	return finish(ctx, ctr, "5432/tcp", database.Config{
		Driver:   database.DriverPostgres,
		User:     "postgres",
		Password: Password,
		Database: "ddnet",
		Prefix:   "record",
		Setup:    true,
		SSLMode:  "disable",
	})
}

func finish(ctx context.Context, ctr testcontainers.Container, port nat.Port, cfg database.Config) (*Server, error) {
	cfg, err := resolve(ctx, ctr, port, cfg)
	if err != nil {
		ctr.Terminate(ctx) //nolint:errcheck
		return nil, err
	}
	return &Server{Container: ctr, Config: cfg}, nil
}

// endpoint is the part of a container needed to reach it from the host.
type endpoint interface {
	Host(ctx context.Context) (string, error)
	MappedPort(ctx context.Context, port nat.Port) (nat.Port, error)
}

// resolve points cfg at the host side of the container's port.
func resolve(ctx context.Context, ep endpoint, port nat.Port, cfg database.Config) (database.Config, error) {
	host, err := ep.Host(ctx)
	if err != nil {
		return cfg, fmt.Errorf("container host: %w", err)
	}
	mapped, err := ep.MappedPort(ctx, port)
	if err != nil {
		return cfg, fmt.Errorf("container port %s: %w", port, err)
	}
	cfg.Host = host
	cfg.Port = mapped.Int()
	return cfg.WithDefaults(), nil
}
