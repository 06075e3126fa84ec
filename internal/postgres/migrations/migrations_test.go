package migrations_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/NooberThanYall/fixo-crm/internal/postgres/migrations"
)

func TestFiles_Ordered(t *testing.T) {
	files, err := migrations.Files()
	require.NoError(t, err)
	assert.Equal(t, []string{
		"001_create_users.sql",
		"002_create_products.sql",
		"003_create_task_drafts.sql",
	}, files)
}
