package knowledge

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	kb, err := Default()
	require.NoError(t, err)

	assert.NotEmpty(t, kb.Expectations)
	assert.Equal(t, []string{"Vemurafenib", "Dabrafenib", "Encorafenib"}, kb.MutationTherapies["BRAF"]["p.V600E"])
	assert.Equal(t, []string{"Sotorasib", "Adagrasib"}, kb.HotspotDrugs["KRAS"][12])
	assert.Contains(t, kb.Oncogenes, "KRAS")
	assert.Equal(t, 470, kb.CohortSizes["Melanoma"])
	assert.Nil(t, kb.Hotspots, "hotspot positions default to the variant package table")

	assert.True(t, kb.IsFDAApproved("osimertinib"))
	assert.False(t, kb.IsFDAApproved("AMG-510"))
}

func TestLoad_EmptyPath(t *testing.T) {
	kb, err := Load("")
	require.NoError(t, err)
	assert.NotEmpty(t, kb.FDAApproved)
}

func TestLoad_Override(t *testing.T) {
	path := filepath.Join(t.TempDir(), "kb.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
oncogenes: [MYC]
hotspots:
  MYC: [58]
cancer_type_mappings:
  UCEC: Endometrial
`), 0o644))

	kb, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"MYC"}, kb.Oncogenes)
	assert.Equal(t, []int64{58}, kb.Hotspots["MYC"])
	assert.Equal(t, "Endometrial", kb.CancerTypeMappings["UCEC"])
	assert.NotEmpty(t, kb.FDAApproved, "omitted sections keep the built-in tables")
}

func TestLoad_Fatal(t *testing.T) {
	dir := t.TempDir()

	badYAML := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(badYAML, []byte("oncogenes: [unclosed"), 0o644))

	badRange := filepath.Join(dir, "range.yaml")
	require.NoError(t, os.WriteFile(badRange, []byte(`
expected_frequencies:
  - gene: BRAF
    variant: V600E
    min: 1.5
`), 0o644))

	for name, path := range map[string]string{
		"missing":   filepath.Join(dir, "absent.yaml"),
		"bad yaml":  badYAML,
		"bad range": badRange,
	} {
		t.Run(name, func(t *testing.T) {
			_, err := Load(path)
			require.Error(t, err)
			var fatal *FatalConfigurationError
			assert.True(t, errors.As(err, &fatal))
			assert.Equal(t, path, fatal.Resource)
		})
	}
}
