package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOperationFromSQL(t *testing.T) {
	cases := map[string]string{
		"SELECT id FROM wishes":                      "SELECT",
		"  update wishes SET current_amount = 1":     "UPDATE",
		"INSERT INTO payments (id) VALUES (1)":       "INSERT",
		"(DELETE FROM wishes WHERE id = 1)":          "DELETE",
		"WITH x AS (SELECT 1) SELECT * FROM x":       "SELECT",
		"":                                           "UNKNOWN",
		"PRAGMA foreign_keys = ON":                   "UNKNOWN",
	}
	for sql, want := range cases {
		assert.Equal(t, want, operationFromSQL(sql), sql)
	}
}

func TestGormLogger_ParamsFilterDropsValues(t *testing.T) {
	l := NewGormLogger(DefaultGormLoggerConfig())
	sql, params := l.ParamsFilter(nil, "SELECT 1 WHERE email = ?", "donor@example.com")
	assert.Equal(t, "SELECT 1 WHERE email = ?", sql)
	assert.Nil(t, params)
}
