package main

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"dadosmg/models"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
)

// Colunas que podem identificar a UF, em ordem de preferência.
var colunasUF = []string{"SG_UF", "UF", "SG_UF_NOT", "UF_NOT", "MUNIC_NOT"}

const (
	codigoIBGEMG      = "31"
	limiteValoresUnic = 100
	amostraValores    = 20
)

type painelSinan struct {
	df      dataframe.DataFrame
	arquivo string
	semUF   bool
	tabnet  bool
}

// carregarPainelSinan aceita tanto o CSV convertido quanto o export bruto do
// TabNet; neste caso título e rodapé são removidos em memória.
func carregarPainelSinan(caminho string) (*painelSinan, error) {
	texto, err := lerTexto(caminho)
	if err != nil {
		return nil, err
	}
	tabnet := ehExportTabnet(dividirLinhas(texto))
	if tabnet {
		fmt.Printf("[INFO] %s parece um export do TabNet, removendo titulo e rodape\n", caminho)
		if texto, err = recortarTabnet(texto); err != nil {
			return nil, fmt.Errorf("%s: %w", caminho, err)
		}
	}
	df, err := dataFrameDeTexto(texto, caminho)
	if err != nil {
		return nil, err
	}
	return &painelSinan{df: df, arquivo: caminho, tabnet: tabnet}, nil
}

func ehNulo(v string) bool {
	switch strings.TrimSpace(v) {
	case "", "NA", "NaN", "nan", "null", "NULL":
		return true
	}
	return false
}

func ehMG(v string) bool {
	v = strings.TrimSpace(v)
	return strings.EqualFold(v, "MG") || strings.HasPrefix(v, codigoIBGEMG)
}

// filtrarMG mantém os registros de Minas Gerais usando a primeira coluna de UF
// que produzir resultado. Sem coluna útil, devolve tudo com semUF marcado.
func (p *painelSinan) filtrarMG() *painelSinan {
	for _, col := range colunasUF {
		if !temColuna(p.df, col) {
			continue
		}
		valores := p.df.Col(col).Records()
		var idx []int
		for i, v := range valores {
			if ehMG(v) {
				idx = append(idx, i)
			}
		}
		if len(idx) > 0 {
			return &painelSinan{df: p.df.Subset(idx), arquivo: p.arquivo, tabnet: p.tabnet}
		}
	}
	return &painelSinan{df: p.df, arquivo: p.arquivo, semUF: true, tabnet: p.tabnet}
}

func inferirTipoColuna(valores []string) string {
	tipo := ""
	for _, v := range valores {
		if ehNulo(v) {
			continue
		}
		v = strings.TrimSpace(v)
		if _, err := strconv.ParseInt(v, 10, 64); err == nil {
			if tipo == "" {
				tipo = "int"
			}
			continue
		}
		if _, err := strconv.ParseFloat(v, 64); err == nil {
			tipo = "float"
			continue
		}
		return "string"
	}
	if tipo == "" {
		return "string"
	}
	return tipo
}

func contarNulos(valores []string) int {
	n := 0
	for _, v := range valores {
		if ehNulo(v) {
			n++
		}
	}
	return n
}

func (p *painelSinan) perfilColunas() []models.PerfilColuna {
	var perfil []models.PerfilColuna
	for _, nome := range p.df.Names() {
		valores := p.df.Col(nome).Records()
		nulos := contarNulos(valores)
		perfil = append(perfil, models.PerfilColuna{
			Coluna:   nome,
			Tipo:     inferirTipoColuna(valores),
			NaoNulos: len(valores) - nulos,
			Nulos:    nulos,
		})
	}
	return perfil
}

func (p *painelSinan) percentual(n int) float64 {
	if p.df.Nrow() == 0 {
		return 0
	}
	return arredondar(float64(n)/float64(p.df.Nrow())*100, 2)
}

func (p *painelSinan) valoresFaltantes() []models.ValorFaltante {
	var out []models.ValorFaltante
	for _, nome := range p.df.Names() {
		if n := contarNulos(p.df.Col(nome).Records()); n > 0 {
			out = append(out, models.ValorFaltante{Coluna: nome, Faltantes: n, Percentual: p.percentual(n)})
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Faltantes > out[j].Faltantes })
	return out
}

func (p *painelSinan) frequencias(coluna string, n int) ([]models.Frequencia, error) {
	if !temColuna(p.df, coluna) {
		return nil, fmt.Errorf("%w: %s", errColunaAusente, coluna)
	}
	contagem := map[string]int{}
	for _, v := range p.df.Col(coluna).Records() {
		if !ehNulo(v) {
			contagem[v]++
		}
	}
	out := make([]models.Frequencia, 0, len(contagem))
	for v, q := range contagem {
		out = append(out, models.Frequencia{Valor: v, Quantidade: q, Percentual: p.percentual(q)})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Quantidade != out[j].Quantidade {
			return out[i].Quantidade > out[j].Quantidade
		}
		return out[i].Valor < out[j].Valor
	})
	if n > 0 && len(out) > n {
		out = out[:n]
	}
	return out, nil
}

// valoresUnicos devolve os valores distintos ordenados; acima de 100, só os
// 20 primeiros com truncado=true.
func (p *painelSinan) valoresUnicos(coluna string) (valores []string, truncado bool, err error) {
	if !temColuna(p.df, coluna) {
		return nil, false, fmt.Errorf("%w: %s", errColunaAusente, coluna)
	}
	vistos := map[string]bool{}
	for _, v := range p.df.Col(coluna).Records() {
		if !ehNulo(v) && !vistos[v] {
			vistos[v] = true
			valores = append(valores, v)
		}
	}
	sort.Strings(valores)
	if len(valores) > limiteValoresUnic {
		return valores[:amostraValores], true, nil
	}
	return valores, false, nil
}

func (p *painelSinan) filtrarPorValores(coluna string, valores []string) (*painelSinan, error) {
	if !temColuna(p.df, coluna) {
		return nil, fmt.Errorf("%w: %s", errColunaAusente, coluna)
	}
	if len(valores) == 0 {
		return p, nil
	}
	df := p.df.Filter(dataframe.F{Colname: coluna, Comparator: series.In, Comparando: valores})
	if df.Err != nil {
		return nil, df.Err
	}
	return &painelSinan{df: df, arquivo: p.arquivo, semUF: p.semUF, tabnet: p.tabnet}, nil
}

// descrever aplica o Describe do gota a cada coluna numérica, só com os
// valores não nulos, e junta os resultados.
func (p *painelSinan) descrever() (dataframe.DataFrame, bool) {
	var cols []series.Series
	for _, pc := range p.perfilColunas() {
		if (pc.Tipo != "int" && pc.Tipo != "float") || pc.NaoNulos == 0 {
			continue
		}
		var limpos []string
		for _, v := range p.df.Col(pc.Coluna).Records() {
			if !ehNulo(v) {
				limpos = append(limpos, strings.TrimSpace(v))
			}
		}
		desc := dataframe.New(series.New(limpos, series.Float, pc.Coluna)).Describe()
		if len(cols) == 0 {
			cols = append(cols, desc.Col("column"))
		}
		cols = append(cols, desc.Col(pc.Coluna))
	}
	if len(cols) == 0 {
		return dataframe.DataFrame{}, false
	}
	return dataframe.New(cols...), true
}
