package main

import (
	"bytes"
	"path/filepath"
	"testing"

	"dadosmg/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func TestRenderizarRanking(t *testing.T) {
	r := models.RankingMunicipio{
		Municipio:  "PASSOS",
		Candidatos: []models.VotoCandidato{{Candidato: "Y", Votos: 65}, {Candidato: "X", Votos: 60}},
		TotalVotos: 135,
		Zonas:      2,
		Secoes:     3,
		Bairros:    2,
	}

	var buf bytes.Buffer
	renderizarRanking(&buf, r, 1)
	out := buf.String()
	assert.Contains(t, out, "Ranking em PASSOS (total de votos: 135, zonas: 2, secoes: 3, bairros: 2)")
	assert.Contains(t, out, "65")
	assert.NotContains(t, out, "| X ")
}

func TestRenderizarFaltantesVazio(t *testing.T) {
	var buf bytes.Buffer
	renderizarFaltantes(&buf, nil)
	assert.Equal(t, "Nenhum valor faltante encontrado.\n", buf.String())

	buf.Reset()
	renderizarFaltantes(&buf, []models.ValorFaltante{{Coluna: "NU_IDADE_N", Faltantes: 2, Percentual: 50}})
	assert.Contains(t, buf.String(), "50.00%")
}

func TestRenderizarLocais(t *testing.T) {
	var buf bytes.Buffer
	renderizarLocais(&buf, locaisMapa())
	out := buf.String()
	assert.Contains(t, out, "-20.71880, -46.60970")
	assert.Contains(t, out, "58.8")
}

func TestRenderizarCatalogo(t *testing.T) {
	var buf bytes.Buffer
	renderizarAgravos(&buf)
	renderizarAcidentes(&buf)
	renderizarDocumentos(&buf, listarDocumentos())
	out := buf.String()
	assert.Contains(t, out, "Acidente de Trabalho Grave")
	assert.Contains(t, out, "ACGRN")
	assert.Contains(t, out, "ACBION_DIC_DADOS.pdf")
}

func TestExportarRankingXLSX(t *testing.T) {
	caminho := filepath.Join(t.TempDir(), "ranking.xlsx")
	require.NoError(t, exportarRankingXLSX(caminho, models.RankingMunicipio{
		Candidatos: []models.VotoCandidato{{Candidato: "Y", Votos: 65}, {Candidato: "X", Votos: 60}},
	}))

	f, err := excelize.OpenFile(caminho)
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{"Ranking"}, f.GetSheetList())
	v, err := f.GetCellValue("Ranking", "B1")
	require.NoError(t, err)
	assert.Equal(t, "Candidato", v)
	v, err = f.GetCellValue("Ranking", "B3")
	require.NoError(t, err)
	assert.Equal(t, "X", v)
	v, err = f.GetCellValue("Ranking", "C2")
	require.NoError(t, err)
	assert.Equal(t, "65", v)
}

func TestExportarLocaisXLSX(t *testing.T) {
	caminho := filepath.Join(t.TempDir(), "locais.xlsx")
	require.NoError(t, exportarLocaisXLSX(caminho, locaisMapa()))

	f, err := excelize.OpenFile(caminho)
	require.NoError(t, err)
	defer f.Close()

	linhas, err := f.GetRows("Locais")
	require.NoError(t, err)
	require.Len(t, linhas, 3)
	assert.Equal(t, "LON", linhas[0][10])
	assert.Equal(t, "-46.6097", linhas[1][10])
	assert.Equal(t, "1023", linhas[2][0])
}

func TestExportarFrequenciasXLSX(t *testing.T) {
	caminho := filepath.Join(t.TempDir(), "freq.xlsx")
	require.NoError(t, exportarFrequenciasXLSX(caminho, "CS_SEXO", []models.Frequencia{{Valor: "M", Quantidade: 2, Percentual: 66.67}}))

	f, err := excelize.OpenFile(caminho)
	require.NoError(t, err)
	defer f.Close()

	v, err := f.GetCellValue("Frequencias", "A1")
	require.NoError(t, err)
	assert.Equal(t, "CS_SEXO", v)
	v, err = f.GetCellValue("Frequencias", "C2")
	require.NoError(t, err)
	assert.Equal(t, "66.67", v)
}
