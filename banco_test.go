package main

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLimparNomeColuna(t *testing.T) {
	tests := map[string]string{
		"Município de Notificação": "municipio_de_notificacao",
		"NU-IDADE N":               "nu_idade_n",
		"%taxa(ano)":               "taxaano",
		"???":                      "coluna",
		"DT_NOTIFIC":               "dt_notific",
	}
	for entrada, want := range tests {
		assert.Equal(t, want, limparNomeColuna(entrada), entrada)
	}
}

func TestEhData(t *testing.T) {
	assert.True(t, ehData("2023-05-01"))
	assert.False(t, ehData("2023-13-01"))
	assert.False(t, ehData("01/05/2023"))
	assert.False(t, ehData("1800-01-01"))
}

func TestInferirTipo(t *testing.T) {
	coluna := func(valores ...string) [][]string {
		var out [][]string
		for _, v := range valores {
			out = append(out, []string{v})
		}
		return out
	}

	tests := []struct {
		name    string
		amostra [][]string
		want    string
	}{
		{"inteiros", coluna("1", "20", "NA"), "INTEGER"},
		{"decimal com ponto", coluna("1", "2.5"), "DECIMAL"},
		{"decimal com virgula", coluna("1,5", "3"), "DECIMAL"},
		{"milhar ambiguo", coluna("1.234,5"), "TEXT"},
		{"datas", coluna("2023-05-01", "", "2024-01-31"), "DATE"},
		{"zero a esquerda", coluna("0310620", "12"), "TEXT"},
		{"zero decimal", coluna("0.5", "0,25"), "DECIMAL"},
		{"zero sozinho", coluna("0", "7"), "INTEGER"},
		{"fora do int32", coluna("3000000000"), "DECIMAL"},
		{"texto", coluna("M", "F"), "TEXT"},
		{"so nulos", coluna("", "null", "N/A"), "TEXT"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, inferirTipo(tt.amostra, 0))
		})
	}

	// coluna além da largura da linha conta como nula
	assert.Equal(t, "TEXT", inferirTipo([][]string{{"1"}}, 3))
}

func TestMontarTabela(t *testing.T) {
	tab := montarTabela("ACGR BR 2023", []string{"ID", "id", "Idade", "ID"}, [][]string{{"1", "x", "34", "2023-01-01"}})

	assert.Equal(t, "acgr_br_2023", tab.nome)
	assert.Equal(t, []string{"id", "id_1", "idade", "id_2"}, tab.colunas)
	assert.Equal(t, []string{"INTEGER", "TEXT", "INTEGER", "DATE"}, tab.tipos)
	assert.Equal(t, "CREATE TABLE IF NOT EXISTS \"acgr_br_2023\" (\n"+
		"  \"id\" INTEGER,\n"+
		"  \"id_1\" TEXT,\n"+
		"  \"idade\" INTEGER,\n"+
		"  \"id_2\" DATE\n"+
		")", tab.createSQL())
}

func TestMontarTabelaSufixoNaoColide(t *testing.T) {
	linha := [][]string{{"1", "2", "3"}}
	assert.Equal(t, []string{"a", "a_1", "a_1_1"}, montarTabela("t", []string{"A", "A", "A_1"}, linha).colunas)
	assert.Equal(t, []string{"a_1", "a", "a_2"}, montarTabela("t", []string{"A_1", "A", "A"}, linha).colunas)
}

func TestLinhasPorLote(t *testing.T) {
	tab := tabelaCSV{colunas: make([]string, 100)}
	assert.Equal(t, 655, tab.linhasPorLote(1000))
	assert.Equal(t, 500, tab.linhasPorLote(500))

	tab = tabelaCSV{colunas: []string{"a", "b"}}
	assert.Equal(t, 1000, tab.linhasPorLote(0))
}

func TestInsertSQL(t *testing.T) {
	tab := tabelaCSV{nome: "acgr", colunas: []string{"id", "peso", "sexo"}, tipos: []string{"INTEGER", "DECIMAL", "TEXT"}}

	q, args := tab.insertSQL([][]string{{"1", "70,5", " M "}, {"2", "NA"}})
	assert.Equal(t, `INSERT INTO "acgr" ("id", "peso", "sexo") VALUES ($1, $2, $3), ($4, $5, $6)`, q)
	assert.Equal(t, []interface{}{"1", "70.5", "M", "2", nil, nil}, args)
}

func TestAbrirCSVCarga(t *testing.T) {
	entrada := string(bomUTF8) + "ID;NOME;PESO\n1;Passos;70,5\n2;\"Belo Horizonte\";80\n"
	cr, header, err := abrirCSVCarga(strings.NewReader(entrada))
	require.NoError(t, err)
	assert.Equal(t, []string{"ID", "NOME", "PESO"}, header)

	registros, err := cr.ReadAll()
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"1", "Passos", "70,5"}, {"2", "Belo Horizonte", "80"}}, registros)

	_, _, err = abrirCSVCarga(strings.NewReader(""))
	assert.Error(t, err)
}

func TestConnStr(t *testing.T) {
	d := DatabaseConfig{Host: "db", Port: "5433", User: "u", Password: "p", Name: "dadosmg", SSLMode: "disable"}
	assert.Equal(t, "host=db port=5433 user=u password=p dbname=dadosmg sslmode=disable", d.connStr())
}
