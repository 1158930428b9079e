package postgres

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConfig_NewRejectsBadURL(t *testing.T) {
	_, err := (&Config{}).New(context.Background())
	assert.ErrorContains(t, err, "not configured")

	_, err = (&Config{URL: "postgres://%zz"}).New(context.Background())
	assert.ErrorContains(t, err, "parse postgres url")
}
