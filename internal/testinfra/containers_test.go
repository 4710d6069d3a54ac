package testinfra

import (
	"context"
	"errors"
	"testing"

	"github.com/docker/go-connections/nat"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/koustreak/racedb/internal/database"
)

type fakeEndpoint struct {
	host    string
	ports   map[nat.Port]nat.Port
	hostErr error
}

func (f fakeEndpoint) Host(context.Context) (string, error) {
	return f.host, f.hostErr
}

func (f fakeEndpoint) MappedPort(_ context.Context, p nat.Port) (nat.Port, error) {
	mapped, ok := f.ports[p]
	if !ok {
		return "", errors.New("port not exposed")
	}
	return mapped, nil
}

func TestResolve(t *testing.T) {
	ep := fakeEndpoint{
		host:  "localhost",
		ports: map[nat.Port]nat.Port{"3306/tcp": "49154/tcp"},
	}
	cfg, err := resolve(context.Background(), ep, "3306/tcp", database.Config{
		Driver:   database.DriverMySQL,
		Database: "ddnet",
		Prefix:   "record",
	})
	require.NoError(t, err)
	assert.Equal(t, "localhost", cfg.Host)
	assert.Equal(t, 49154, cfg.Port)
	assert.Equal(t, database.DefaultConnectTimeout, cfg.ConnectTimeout)
}

func TestResolve_Errors(t *testing.T) {
	_, err := resolve(context.Background(), fakeEndpoint{host: "localhost"}, "5432/tcp", database.Config{})
	assert.ErrorContains(t, err, "container port 5432/tcp")

	_, err = resolve(context.Background(), fakeEndpoint{hostErr: errors.New("no docker")}, "5432/tcp", database.Config{})
	assert.ErrorContains(t, err, "container host")
}
