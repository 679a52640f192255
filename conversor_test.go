package main

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type dbfFalso struct {
	colunas  []string
	linhas   [][]interface{}
	apagados map[int]bool
	falhaEm  int
	pos      int
	fechado  bool
}

func (d *dbfFalso) Colunas() []string { return d.colunas }
func (d *dbfFalso) Fim() bool         { return d.pos >= len(d.linhas) }
func (d *dbfFalso) Close() error      { d.fechado = true; return nil }

func (d *dbfFalso) Proxima() ([]interface{}, bool, error) {
	i := d.pos
	d.pos++
	if d.falhaEm > 0 && i+1 == d.falhaEm {
		return nil, false, errors.New("registro corrompido")
	}
	return d.linhas[i], d.apagados[i], nil
}

func usarDBFFalso(t *testing.T, novo func() *dbfFalso) {
	t.Helper()
	orig := abrirDBF
	abrirDBF = func(caminho string) (tabelaDBF, error) {
		if novo == nil {
			return nil, errors.New("nao e um DBF")
		}
		return novo(), nil
	}
	t.Cleanup(func() { abrirDBF = orig })
}

func acgrDBF() *dbfFalso {
	return &dbfFalso{
		colunas: []string{"ID_MUNICIP", "NU_IDADE_N", "DT_NOTIFIC", "SG_UF_NOT"},
		linhas: [][]interface{}{
			{"314790", float64(34), time.Date(2023, 5, 1, 0, 0, 0, 0, time.UTC), []byte(" 31 ")},
			{"310620", float64(40), time.Time{}, "31"},
			{"310620", 1.5, nil},
		},
		apagados: map[int]bool{1: true},
	}
}

func conversorTeste(t *testing.T) *conversor {
	t.Helper()
	cfg := padraoConfig()
	cfg.DataDir = t.TempDir()
	cfg.Workers = 2
	return novoConversor(cfg, zap.NewNop())
}

func TestFormatarValorDBF(t *testing.T) {
	tests := []struct {
		name string
		v    interface{}
		want string
	}{
		{"nulo", nil, ""},
		{"texto", "Passos", "Passos"},
		{"bytes", []byte(" MG "), "MG"},
		{"float inteiro", float64(34), "34"},
		{"float", 1.25, "1.25"},
		{"float32", float32(2.5), "2.5"},
		{"data", time.Date(2023, 5, 1, 0, 0, 0, 0, time.UTC), "2023-05-01"},
		{"data e hora", time.Date(2023, 5, 1, 8, 30, 0, 0, time.UTC), "2023-05-01 08:30:00"},
		{"data zero", time.Time{}, ""},
		{"bool", true, "true"},
		{"int", int32(7), "7"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, formatarValorDBF(tt.v))
		})
	}
}

func TestTrocarExtensao(t *testing.T) {
	assert.Equal(t, "ACGRBR23.dbf", trocarExtensao("ACGRBR23.dbc", ".dbf"))
	assert.Equal(t, "LEIAME.csv", trocarExtensao("LEIAME", ".csv"))
}

func TestConverterDbfParaCsv(t *testing.T) {
	var aberto *dbfFalso
	usarDBFFalso(t, func() *dbfFalso { aberto = acgrDBF(); return aberto })
	c := conversorTeste(t)

	res, err := c.converterDbfParaCsv(filepath.Join(c.dbfDir, "ACGRBR23.dbf"))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(c.csvDir, "ACGRBR23.csv"), res.Caminho)
	assert.Equal(t, 2, res.Registros)
	assert.Equal(t, []string{"ID_MUNICIP", "NU_IDADE_N", "DT_NOTIFIC", "SG_UF_NOT"}, res.Colunas)
	assert.True(t, aberto.fechado)

	data, err := os.ReadFile(res.Caminho)
	require.NoError(t, err)
	assert.Equal(t, int64(len(data)), res.Tamanho)
	assert.Equal(t, "ID_MUNICIP,NU_IDADE_N,DT_NOTIFIC,SG_UF_NOT\n"+
		"314790,34,2023-05-01,31\n"+
		"310620,1.5,,\n", semBOMString(data))
}

func TestConverterDbfParaCsvErros(t *testing.T) {
	usarDBFFalso(t, nil)
	c := conversorTeste(t)
	_, err := c.converterDbfParaCsv("x.dbf")
	assert.Error(t, err)

	usarDBFFalso(t, func() *dbfFalso { d := acgrDBF(); d.falhaEm = 3; return d })
	_, err = c.converterDbfParaCsv("x.dbf")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "registro corrompido")
}

func TestConverterDbcSemConversor(t *testing.T) {
	c := conversorTeste(t)
	_, err := c.converterDbcParaDbf(context.Background(), filepath.Join(c.dbcDir, "ACGRBR23.dbc"))
	assert.ErrorIs(t, err, errConversorAusente)
}

func TestProcessarTodosDbcSemArquivos(t *testing.T) {
	c := conversorTeste(t)
	_, err := c.processarTodosDbc(context.Background())
	assert.ErrorIs(t, err, errSemArquivo)
}

func criarDbcs(t *testing.T, c *conversor, nomes ...string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(c.dbcDir, 0755))
	for _, n := range nomes {
		require.NoError(t, os.WriteFile(filepath.Join(c.dbcDir, n), []byte("dbc"), 0644))
	}
}

func TestProcessarTodosDbcRegistraFalhas(t *testing.T) {
	c := conversorTeste(t)
	criarDbcs(t, c, "ACGRBR22.dbc", "ACGRBR23.dbc", "LEIAME.txt")

	res, err := c.processarTodosDbc(context.Background())
	require.NoError(t, err)
	assert.Empty(t, res.Sucessos)
	require.Len(t, res.Falhas, 2)
	for _, e := range res.Falhas {
		assert.ErrorIs(t, e, errConversorAusente)
	}
}

func TestProcessarTodosDbcComConversor(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("conversor falso usa /bin/sh")
	}
	usarDBFFalso(t, acgrDBF)
	c := conversorTeste(t)
	criarDbcs(t, c, "ACGRBR23.dbc", "ACGRBR22.dbc")

	require.NoError(t, os.MkdirAll(filepath.Dir(c.exe), 0755))
	require.NoError(t, os.WriteFile(c.exe, []byte("#!/bin/sh\ncp \"$1\" \"$2\"\n"), 0755))

	res, err := c.processarTodosDbc(context.Background())
	require.NoError(t, err)
	assert.Empty(t, res.Falhas)
	require.Len(t, res.Sucessos, 2)
	assert.Equal(t, filepath.Join(c.csvDir, "ACGRBR22.csv"), res.Sucessos[0].Caminho)
	assert.Equal(t, filepath.Join(c.csvDir, "ACGRBR23.csv"), res.Sucessos[1].Caminho)
	assert.FileExists(t, filepath.Join(c.dbfDir, "ACGRBR23.dbf"))
}
