package pipeline

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/jonas-p/go-shp"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

const (
	critAntibio = "Raison indisponibilité  [Est sous anti-biothérapie  ]"
	critHemo    = "Raison indisponibilité  [Taux d'hemoglobine bas ]"
)

var standardHeader = []any{
	"Date de remplissage de la fiche", "Date de naissance", "Age", "Genre", "Profession",
	"Arrondissement de résidence", "Religion", "Poids", "Taille", "A-t-il (elle) déjà donné le sang",
	"ÉLIGIBILITÉ AU DON.", critAntibio, critHemo, "Si autres raison préciser",
}

var sexCodeHeader = []any{
	"Horodateur", "Sexe", "Age", "Profession", "Arrondissement de résidence",
	"ÉLIGIBILITÉ AU DON.", critAntibio, critHemo, "Si autres raison préciser",
}

var underscoreHeader = []any{
	"Date_de_remplissage_de_la_fiche", "Genre", "Age", "Arrondissement_de_résidence", "Profession",
	"ÉLIGIBILITÉ_AU_DON.", "Raison_indisponibilité__[Est_sous_anti-biothérapie__]",
	"Raison_indisponibilité__[Taux_d'hemoglobine_bas_]", "Si_autres_raison_préciser",
}

func setRows(t *testing.T, f *excelize.File, sheet string, rows [][]any) {
	t.Helper()
	for r, row := range rows {
		for c, v := range row {
			if v == nil {
				continue
			}
			cell, err := excelize.CoordinatesToCellName(c+1, r+1)
			require.NoError(t, err)
			require.NoError(t, f.SetCellValue(sheet, cell, v))
		}
	}
}

// writeSurveyWorkbook writes the three survey sheets in their historical
// order: standard, sex-code, underscore.
func writeSurveyWorkbook(t *testing.T, path string) {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()

	require.NoError(t, f.SetSheetName(f.GetSheetName(0), "2019"))
	_, err := f.NewSheet("2020")
	require.NoError(t, err)
	_, err = f.NewSheet("2021")
	require.NoError(t, err)

	setRows(t, f, "2019", [][]any{
		standardHeader,
		{"15/07/2019", "1990-05-12", nil, "Homme", "Etudiant", "Yaounde I", "Chrétien (Catholique)", "70", "175", "Oui", "eligible", "Non", nil, "Rien"},
		{"2019-07-16", nil, "25", "Femme", "commerçante", "Douala 3", "Musulman", "abc", "0", "non", "temporairement non-eligible", "Oui", "non", "Fatigue"},
	})
	setRows(t, f, "2020", [][]any{
		sexCodeHeader,
		{"2019-08-01 10:00:00", "F", "30", "Enseignant", "Garoua", "eligible", "non", "non", nil},
	})
	setRows(t, f, "2021", [][]any{
		underscoreHeader,
		{time.Date(2019, 9, 2, 0, 0, 0, 0, time.UTC), "Homme", "40", nil, "Sans emploi", "eligible", "non", "non", "aucune douleur"},
	})

	require.NoError(t, f.SaveAs(path))
}

func writeBoundaryShapefile(t *testing.T, path string) {
	t.Helper()
	w, err := shp.Create(path, shp.POLYGON)
	require.NoError(t, err)

	w.SetFields([]shp.Field{shp.StringField("ADM3_FR", 50)})
	for i, name := range []string{"Yaoundé I", "Douala III"} {
		x0 := float64(2 * i)
		line := shp.NewPolyLine([][]shp.Point{{
			{X: x0, Y: 0}, {X: x0, Y: 1}, {X: x0 + 1, Y: 1}, {X: x0 + 1, Y: 0}, {X: x0, Y: 0},
		}})
		poly := shp.Polygon(*line)
		w.Write(&poly)
		w.WriteAttribute(i, 0, name)
	}
	w.Close()

	// go-shp's writer names the attribute table "<base>dbf".
	written := strings.TrimSuffix(path, ".shp") + "dbf"
	if _, err := os.Stat(written); err == nil {
		require.NoError(t, os.Rename(written, strings.TrimSuffix(path, "shp")+"dbf"))
	}
}

func writeFixtures(t *testing.T) (dataset, boundaries string) {
	t.Helper()
	dir := t.TempDir()
	dataset = filepath.Join(dir, "raw", "dataset.xlsx")
	boundaries = filepath.Join(dir, "raw", "adm3.shp")
	require.NoError(t, os.MkdirAll(filepath.Dir(dataset), 0o755))
	writeSurveyWorkbook(t, dataset)
	writeBoundaryShapefile(t, boundaries)
	return dataset, boundaries
}
