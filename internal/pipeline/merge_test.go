package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"donorprep/internal"
	"donorprep/internal/schema"
)

func TestHarmonizeUnderscore(t *testing.T) {
	sheet := internal.Sheet{
		Columns: []string{" Date_de_remplissage_de_la_fiche", "Genre ", "Si_autres_raison_préciser_"},
		Rows:    [][]string{{"2019-01-02", "Homme", "nan"}},
	}

	got := Harmonize(sheet, internal.LayoutUnderscore, schema.Default())
	assert.Equal(t, []string{"Date de remplissage de la fiche", "Genre", "Si autres raison préciser"}, got.Columns)
	assert.Equal(t, sheet.Rows, got.Rows)
}

func TestHarmonizeSexCode(t *testing.T) {
	sheet := internal.Sheet{
		Columns: []string{"Horodateur", "Sexe", "Age"},
		Rows: [][]string{
			{"2020-01-01", "F", "20"},
			{"2020-01-02", "M", "21"},
			{"2020-01-03", "X", "22"},
		},
	}

	got := Harmonize(sheet, internal.LayoutSexCode, schema.Default())
	assert.Equal(t, []string{"Date de remplissage de la fiche", "Genre", "Age"}, got.Columns)
	assert.Equal(t, "Femme", got.Rows[0][1])
	assert.Equal(t, "Homme", got.Rows[1][1])
	assert.Equal(t, internal.MissingValue, got.Rows[2][1])
	assert.Equal(t, "F", sheet.Rows[0][1], "input sheet untouched")
}

func TestConcatOrderedUnion(t *testing.T) {
	a := internal.Table{Columns: []string{"x", "y"}, Rows: [][]string{{"1", "2"}}}
	b := internal.Table{Columns: []string{"y", "z"}, Rows: [][]string{{"3", "4"}, {"5", "6"}}}

	got := Concat(a, b)
	assert.Equal(t, []string{"x", "y", "z"}, got.Columns)
	assert.Equal(t, [][]string{
		{"1", "2", "nan"},
		{"nan", "3", "4"},
		{"nan", "5", "6"},
	}, got.Rows)
}

func TestMergeSheetsRowCount(t *testing.T) {
	dataset, _ := writeFixtures(t)
	sheets, err := ReadWorkbook(dataset)
	require.NoError(t, err)

	merged, layouts, err := MergeSheets(sheets, schema.Default())
	require.NoError(t, err)
	require.Len(t, layouts, 3)
	assert.Len(t, merged.Rows, len(sheets[0].Rows)+len(sheets[1].Rows)+len(sheets[2].Rows))

	// Standard rows first, then underscore, then sex-code.
	assert.Equal(t, "Homme", merged.Cell(0, "Genre"))
	assert.Equal(t, "Sans emploi", merged.Cell(2, "Profession"))
	assert.Equal(t, "Femme", merged.Cell(3, "Genre"))
	assert.Equal(t, "2019-08-01 10:00:00", merged.Cell(3, "Date de remplissage de la fiche"))
	assert.Equal(t, internal.MissingValue, merged.Cell(3, "Religion"))

	_, err = schema.Default().Locate(merged.Columns)
	require.NoError(t, err)
}

func TestMergeSheetsTooFew(t *testing.T) {
	_, _, err := MergeSheets([]internal.Sheet{{Name: "only"}}, schema.Default())
	require.ErrorIs(t, err, ErrTooFewSheets)
}
