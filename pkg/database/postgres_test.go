package database

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/noah-isme/grademonitor-api/pkg/config"
)

func TestDSN(t *testing.T) {
	dsn := DSN(config.DatabaseConfig{Host: "db", Port: 5432, User: "moodle", Password: "secret", Name: "gradebook", SSLMode: "disable"})
	assert.Equal(t, "host=db port=5432 user=moodle password=secret dbname=gradebook sslmode=disable", dsn)
}
