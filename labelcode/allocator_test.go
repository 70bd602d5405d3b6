package labelcode

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kes/apperr"
)

type zeroReader struct{}

func (zeroReader) Read(p []byte) (int, error) {
	for i := range p {
		p[i] = 0
	}
	return len(p), nil
}

type rejectingRegistry struct {
	calls int
}

func (r *rejectingRegistry) Reserve(context.Context, string) (bool, error) {
	r.calls++
	return false, nil
}

type failingRegistry struct{}

func (failingRegistry) Reserve(context.Context, string) (bool, error) {
	return false, errors.New("database is locked")
}

func TestAllocate(t *testing.T) {
	ctx := context.Background()
	reg := NewMemoryRegistry()
	a := NewAllocator(reg)

	codes, err := a.Allocate(ctx, "CASE01/SA001", 3)
	require.NoError(t, err)
	require.Len(t, codes, 3)

	seen := map[string]bool{}
	for i, code := range codes {
		pattern := regexp.MustCompile(`^CASE01/SA001/ET0` + string(rune('1'+i)) + `_[A-Z0-9]{4}$`)
		assert.Regexp(t, pattern, code)
		assert.False(t, seen[code], "duplicate code %s", code)
		seen[code] = true

		taken, err := reg.Exists(ctx, code)
		require.NoError(t, err)
		assert.True(t, taken, "code %s not reserved", code)
	}
}

func TestAllocate_WideSequence(t *testing.T) {
	codes, err := NewAllocator(nil).Allocate(context.Background(), "I001/IEL001", 100)
	require.NoError(t, err)
	assert.Regexp(t, `^I001/IEL001/ET09_`, codes[8])
	assert.Regexp(t, `^I001/IEL001/ET100_`, codes[99])
}

func TestAllocate_InvalidCount(t *testing.T) {
	a := NewAllocator(nil)
	for _, n := range []int{0, -1} {
		codes, err := a.Allocate(context.Background(), "CASE01/SA001", n)
		assert.Nil(t, codes)
		assert.True(t, errors.Is(err, apperr.ErrValidation), "count %d", n)
	}

	_, err := a.Allocate(context.Background(), "", 1)
	assert.True(t, errors.Is(err, apperr.ErrValidation))
}

func TestAllocate_Exhausted(t *testing.T) {
	reg := &rejectingRegistry{}
	codes, err := NewAllocator(reg).Allocate(context.Background(), "CASE01/SA001", 3)

	assert.Nil(t, codes)
	assert.True(t, errors.Is(err, apperr.ErrGenerationExhausted))
	assert.Equal(t, MaxAttempts, reg.calls)
}

func TestAllocate_PersistedCollision(t *testing.T) {
	reg := NewMemoryRegistry("CASE01/SA001/ET01_AAAA")
	a := NewAllocator(reg).WithRandom(zeroReader{})

	_, err := a.Allocate(context.Background(), "CASE01/SA001", 1)
	assert.True(t, errors.Is(err, apperr.ErrGenerationExhausted))

	codes, err := a.Allocate(context.Background(), "CASE01/SA002", 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"CASE01/SA002/ET01_AAAA"}, codes)

	_, err = a.Allocate(context.Background(), "CASE01/SA002", 1)
	assert.True(t, errors.Is(err, apperr.ErrGenerationExhausted))
}

func TestAllocate_RegistryError(t *testing.T) {
	_, err := NewAllocator(failingRegistry{}).Allocate(context.Background(), "X", 1)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "database is locked")
	assert.False(t, errors.Is(err, apperr.ErrGenerationExhausted))
}

func TestMemoryRegistry_Reserve(t *testing.T) {
	ctx := context.Background()
	reg := NewMemoryRegistry()

	ok, err := reg.Reserve(ctx, "A/ET01_ABCD")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, _ = reg.Reserve(ctx, "A/ET01_ABCD")
	assert.False(t, ok)

	exists, _ := reg.Exists(ctx, "A/ET01_ABCD")
	assert.True(t, exists)
}

func TestPrefixAndTemplate(t *testing.T) {
	assert.Equal(t, "IEL", PrefixFor(TypeElectrical))
	assert.Equal(t, "ARC", PrefixFor(TypeArcFlash))
	assert.Equal(t, DefaultPrefix, PrefixFor("unknown"))
	assert.Equal(t, "label_template_vgpeis", TemplateKeyFor(TypeIdentification))
	assert.Equal(t, "", TemplateKeyFor("unknown"))
	assert.Len(t, EquipmentTypes, 8)
}

func TestTypeFromProductName(t *testing.T) {
	cases := map[string]string{
		"Inspection Electrique BT":       TypeElectrical,
		"Analyse thermographique":        TypeThermography,
		"Vérification ascenseur":         TypeElevator,
		"Contrôle extincteur":            TypeExtinguisher,
		"Identification local technique": TypeLocalID,
		"Vérification periodique levage": TypePeriodic,
		"Etude Arc Flash":                TypeArcFlash,
		"Plaque signalétique":            TypeIdentification,
		"Audit énergétique":              TypeElectrical,
	}
	for name, want := range cases {
		assert.Equal(t, want, TypeFromProductName(name), name)
	}
}
