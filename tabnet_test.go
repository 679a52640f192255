package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const exportTabnet = "Acidente de Trabalho Grave - Notificações registradas no Sinan Net\r\n" +
	"Frequência por Município de notificação segundo Ano Notificação\r\n" +
	"Período:2020-2021\r\n" +
	"\r\n" +
	"\"Município de notificação\";\"2020\";\"2021\";\"Total\"\r\n" +
	"\"310620 Belo Horizonte\";10;12;22\r\n" +
	"\"314790 Passos\";3;4;7\r\n" +
	"\"Total\";13;16;29\r\n" +
	"\r\n" +
	"Fonte: Ministério da Saúde/SVS - Sinan Net\r\n" +
	"Notas:\r\n"

func TestInicioEFimDadosTabnet(t *testing.T) {
	linhas := dividirLinhas(exportTabnet)
	require.Len(t, linhas, 11)

	inicio := inicioDadosTabnet(linhas)
	assert.Equal(t, 4, inicio)
	assert.Equal(t, 8, fimDadosTabnet(linhas, inicio))
}

func TestInicioDadosTabnetIgnoraTituloSinan(t *testing.T) {
	linhas := dividirLinhas("\"SINAN; Notificacoes por ano\"\nMunicipio;Total\n1;2\n")
	assert.Equal(t, 1, inicioDadosTabnet(linhas))

	// sem cabeçalho reconhecível começa na primeira linha
	assert.Equal(t, 0, inicioDadosTabnet(dividirLinhas("x;y\n1;2\n")))
}

func TestFimDadosTabnetSoCabecalho(t *testing.T) {
	linhas := dividirLinhas("Municipio;Total\nFonte: SVS\n\n")
	assert.Equal(t, 1, fimDadosTabnet(linhas, 0))
}

func TestLinhaDeDados(t *testing.T) {
	assert.True(t, linhaDeDados("\"Total\";13;16;29\r\n"))
	assert.True(t, linhaDeDados("Ignorado 12"))
	assert.False(t, linhaDeDados("   \r\n"))
	assert.False(t, linhaDeDados("Fonte: SVS; 2023"))
	assert.False(t, linhaDeDados("Notas: 1, 2"))
	assert.False(t, linhaDeDados("Sem dados"))
}

func TestLimparCsvTabnet(t *testing.T) {
	dir := t.TempDir()
	entrada := filepath.Join(dir, "acgr_mg.csv")
	require.NoError(t, os.WriteFile(entrada, latin1(t, exportTabnet), 0644))

	saida, err := limparCsvTabnet(entrada, "")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "acgr_mg_limpo.csv"), saida)

	data, err := os.ReadFile(saida)
	require.NoError(t, err)
	assert.Equal(t, string(bomUTF8)+
		"\"Município de notificação\";\"2020\";\"2021\";\"Total\"\r\n"+
		"\"310620 Belo Horizonte\";10;12;22\r\n"+
		"\"314790 Passos\";3;4;7\r\n"+
		"\"Total\";13;16;29\r\n", string(data))

	df, err := carregarDataFrame(saida)
	require.NoError(t, err)
	assert.Equal(t, 3, df.Nrow())
	assert.Equal(t, "Município de notificação", df.Names()[0])
}

func TestLimparCsvTabnetSaidaExplicita(t *testing.T) {
	dir := t.TempDir()
	entrada := filepath.Join(dir, "x.csv")
	require.NoError(t, os.WriteFile(entrada, []byte("Municipio;Total\nPassos;7"), 0644))

	saida := filepath.Join(dir, "limpo.csv")
	got, err := limparCsvTabnet(entrada, saida)
	require.NoError(t, err)
	assert.Equal(t, saida, got)

	data, err := os.ReadFile(saida)
	require.NoError(t, err)
	assert.Equal(t, "Municipio;Total\nPassos;7", strings.TrimPrefix(string(data), string(bomUTF8)))
}

func TestLimparCsvTabnetVazio(t *testing.T) {
	entrada := filepath.Join(t.TempDir(), "vazio.csv")
	require.NoError(t, os.WriteFile(entrada, nil, 0644))

	_, err := limparCsvTabnet(entrada, "")
	assert.ErrorIs(t, err, errSemDados)
}

func TestProcessarPasta(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.csv"), []byte(exportTabnet), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b_limpo.csv"), []byte("x;y\n"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "c.csv"), nil, 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "d.txt"), []byte(exportTabnet), 0644))

	res, err := processarPasta(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(dir, "a_limpo.csv")}, res.Limpos)
	require.Len(t, res.Falhas, 1)
	assert.ErrorIs(t, res.Falhas[filepath.Join(dir, "c.csv")], errSemDados)
	assert.NoFileExists(t, filepath.Join(dir, "b_limpo_limpo.csv"))
}

func TestProcessarPastaInexistente(t *testing.T) {
	_, err := processarPasta(filepath.Join(t.TempDir(), "nao_existe"))
	assert.Error(t, err)

	res, err := processarPasta(t.TempDir())
	require.NoError(t, err)
	assert.Empty(t, res.Limpos)
}

func TestRecortarTabnet(t *testing.T) {
	recorte, err := recortarTabnet(exportTabnet)
	require.NoError(t, err)
	assert.Equal(t, strings.Join(dividirLinhas(exportTabnet)[4:8], ""), recorte)
	assert.True(t, strings.HasPrefix(recorte, "\"Município de notificação\";"))

	_, err = recortarTabnet("")
	assert.ErrorIs(t, err, errSemDados)
}
