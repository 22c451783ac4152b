package districts

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"greenurban-desktop/internal/greenapi"
)

type fakeSource struct {
	districts []greenapi.District
	err       error
}

func (f *fakeSource) GetDistricts(ctx context.Context) ([]greenapi.District, error) {
	return f.districts, f.err
}

func TestNewRegistryStartsWithFallback(t *testing.T) {
	r := NewRegistry()
	assert.True(t, r.UsingFallback())
	assert.Len(t, r.Names(), 16)

	d, ok := r.Get("Tembalang")
	require.True(t, ok)
	assert.Equal(t, "Tembalang", d.Name)
	assert.Empty(t, d.Geometry)
}

func TestLoadReplacesFallback(t *testing.T) {
	geom := json.RawMessage(`{"type":"Polygon","coordinates":[]}`)
	src := &fakeSource{districts: []greenapi.District{
		{Name: "Tembalang", Geometry: geom},
		{Name: "Banyumanik", Geometry: geom},
	}}

	r := NewRegistry()
	r.Load(context.Background(), src)

	assert.False(t, r.UsingFallback())
	assert.Equal(t, []string{"Banyumanik", "Tembalang"}, r.Names())

	d, ok := r.Get("Tembalang")
	require.True(t, ok)
	assert.NotEmpty(t, d.Geometry)

	_, ok = r.Get("Mijen")
	assert.False(t, ok, "fallback names should be gone after a successful load")
}

func TestLoadFailureKeepsFallback(t *testing.T) {
	src := &fakeSource{err: errors.New("backend unreachable")}

	r := NewRegistry()
	r.Load(context.Background(), src)

	assert.True(t, r.UsingFallback())
	assert.Len(t, r.Names(), 16)
}

func TestLoadEmptyListKeepsFallback(t *testing.T) {
	src := &fakeSource{districts: []greenapi.District{}}

	r := NewRegistry()
	r.Load(context.Background(), src)

	assert.True(t, r.UsingFallback())
	assert.Len(t, r.Names(), 16)
}

func TestLoadSkipsUnusableEntries(t *testing.T) {
	src := &fakeSource{districts: []greenapi.District{
		{Name: "Tembalang"},
		{Name: ""},
		{Name: "Tembalang"},
	}}

	r := NewRegistry()
	r.Load(context.Background(), src)

	assert.False(t, r.UsingFallback())
	assert.Equal(t, []string{"Tembalang"}, r.Names())
}

func TestGetExactNameOnly(t *testing.T) {
	r := NewRegistry()
	_, ok := r.Get("tembalang")
	assert.False(t, ok, "lookup is case sensitive by exact name")
}
