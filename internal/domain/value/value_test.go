package value

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNameKey_FoldsCaseAndNormalization(t *testing.T) {
	decomposed := "Empati\u0301a"

	assert.Equal(t, NameKey("Empatía"), NameKey("EMPATÍA"))
	assert.Equal(t, NameKey("Empatía"), NameKey(decomposed))
	assert.Equal(t, NameKey("Respeto"), NameKey("  respeto "))
	assert.NotEqual(t, NameKey("Respeto"), NameKey("Responsabilidad"))
}

func TestNew(t *testing.T) {
	v, err := New("cycle-1", "  Respeto ")
	require.NoError(t, err)
	assert.Equal(t, "Respeto", v.Name)
	assert.True(t, v.Active)
	assert.True(t, v.Nominable())

	_, err = New("cycle-1", " ")
	assert.Error(t, err)

	_, err = New("", "Respeto")
	assert.Error(t, err)
}

func TestNewReserved_IsNotNominable(t *testing.T) {
	at := time.Date(2025, 3, 10, 9, 0, 0, 0, time.FixedZone("CST", -6*60*60))
	v, err := NewReserved("cycle-1", "Excelencia", at)
	require.NoError(t, err)
	assert.True(t, v.Reserved)
	assert.Equal(t, at.UTC(), v.CreatedAt)
	assert.False(t, v.Nominable())
}
