package tcpostgres

import (
	"context"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

const defaultImage = "postgres:16-alpine"

// Container wraps the postgres test container used by repository tests.
type Container struct {
	testcontainers.Container
}

type Option func(req *testcontainers.ContainerRequest)

// WithImage replaces the default postgres image.
func WithImage(image string) Option {
	return func(req *testcontainers.ContainerRequest) {
		req.Image = image
	}
}

func WithWaitStrategy(strategies ...wait.Strategy) Option {
	return func(req *testcontainers.ContainerRequest) {
		req.WaitingFor = wait.ForAll(strategies...).WithDeadline(time.Minute)
	}
}

func WithPort(port string) Option {
	return func(req *testcontainers.ContainerRequest) {
		req.ExposedPorts = append(req.ExposedPorts, port)
	}
}

func WithName(name string) Option {
	return func(req *testcontainers.ContainerRequest) {
		req.Name = name
	}
}

// WithCredentials sets user, password and initial database of the instance.
func WithCredentials(user, password, dbName string) Option {
	return func(req *testcontainers.ContainerRequest) {
		req.Env["POSTGRES_USER"] = user
		req.Env["POSTGRES_PASSWORD"] = password
		req.Env["POSTGRES_DB"] = dbName
	}
}

// StartPostgres starts (or reuses) a named postgres container.
// Durability settings are relaxed since the data is thrown away anyway.
func StartPostgres(ctx context.Context, opts ...Option) (*Container, error) {
	req := testcontainers.ContainerRequest{
		Image: defaultImage,
		Env:   map[string]string{},
		Cmd: []string{
			"postgres",
			"-c", "fsync=off",
			"-c", "synchronous_commit=off",
			"-c", "full_page_writes=off",
		},
	}
	for _, opt := range opts {
		opt(&req)
	}

	c, err := testcontainers.GenericContainer(ctx,
		testcontainers.GenericContainerRequest{
			ContainerRequest: req,
			Started:          true,
			Reuse:            req.Name != "",
		})
	if err != nil {
		return nil, err
	}
	return &Container{Container: c}, nil
}
