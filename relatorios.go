package main

import (
	"fmt"
	"io"
	"strconv"

	"dadosmg/models"

	"github.com/olekukonko/tablewriter"
	"github.com/xuri/excelize/v2"
)

func novaTabela(w io.Writer, cabecalho ...string) *tablewriter.Table {
	t := tablewriter.NewWriter(w)
	t.SetHeader(cabecalho)
	t.SetAutoWrapText(false)
	return t
}

func itoa(n int) string { return strconv.Itoa(n) }

func pct(v float64) string { return fmt.Sprintf("%.2f%%", v) }

func renderizarRanking(w io.Writer, r models.RankingMunicipio, limite int) {
	fmt.Fprintf(w, "\nRanking em %s (total de votos: %d, zonas: %d, secoes: %d",
		r.Municipio, r.TotalVotos, r.Zonas, r.Secoes)
	if r.Bairros > 0 {
		fmt.Fprintf(w, ", bairros: %d", r.Bairros)
	}
	fmt.Fprintln(w, ")")

	t := novaTabela(w, "#", "Candidato", "Votos")
	for i, c := range r.Candidatos {
		if limite > 0 && i >= limite {
			break
		}
		t.Append([]string{itoa(i + 1), c.Candidato, itoa(c.Votos)})
	}
	t.Render()
}

func renderizarResumo(w io.Writer, r models.ResumoEleicoes) {
	t := novaTabela(w, "Cargo", "Turno", "Registros", "Municipios", "Zonas", "Enderecos")
	t.Append([]string{r.Cargo, r.Turno, itoa(r.Registros), itoa(r.Municipios), itoa(r.Zonas), itoa(r.Enderecos)})
	t.Render()
}

func renderizarLocais(w io.Writer, locais []models.LocalResumo) {
	t := novaTabela(w, "Local", "Nome", "Bairro", "Secoes", "Votos", "Vencedor", "%", "Cor", "Coord")
	for _, l := range locais {
		coord := "-"
		if l.TemCoordenadas() {
			coord = fmt.Sprintf("%.5f, %.5f", *l.Lat, *l.Lon)
		}
		t.Append([]string{
			l.NrLocal, truncar(l.Nome, 40), l.Bairro, itoa(l.Secoes), itoa(l.Votos),
			l.Vencedor, fmt.Sprintf("%.1f", l.Percentual), l.Cor, coord,
		})
	}
	t.Render()
}

func renderizarEstatisticasMapa(w io.Writer, e models.EstatisticasMapa) {
	t := novaTabela(w, "Locais", "Total de Secoes", "Total de Votos", "Media Secoes/Local")
	t.Append([]string{itoa(e.Locais), itoa(e.TotalSecoes), itoa(e.TotalVotos), fmt.Sprintf("%.1f", e.MediaSecoes)})
	t.Render()
}

func renderizarPerfil(w io.Writer, perfil []models.PerfilColuna) {
	t := novaTabela(w, "Coluna", "Tipo", "Nao nulos", "Nulos")
	for _, p := range perfil {
		t.Append([]string{p.Coluna, p.Tipo, itoa(p.NaoNulos), itoa(p.Nulos)})
	}
	t.Render()
}

func renderizarFaltantes(w io.Writer, faltantes []models.ValorFaltante) {
	if len(faltantes) == 0 {
		fmt.Fprintln(w, "Nenhum valor faltante encontrado.")
		return
	}
	t := novaTabela(w, "Coluna", "Faltantes", "Percentual")
	for _, f := range faltantes {
		t.Append([]string{f.Coluna, itoa(f.Faltantes), pct(f.Percentual)})
	}
	t.Render()
}

func renderizarFrequencias(w io.Writer, coluna string, freq []models.Frequencia) {
	fmt.Fprintf(w, "\nFrequencias de %s\n", coluna)
	t := novaTabela(w, coluna, "Quantidade", "Percentual")
	for _, f := range freq {
		t.Append([]string{f.Valor, itoa(f.Quantidade), pct(f.Percentual)})
	}
	t.Render()
}

func renderizarDocumentos(w io.Writer, docs []models.Documento) {
	t := novaTabela(w, "Agravo", "Nome", "Documento", "Caminho")
	for _, d := range docs {
		t.Append([]string{d.Agravo, d.NomeAgravo, d.TipoDocumento, d.Caminho})
	}
	t.Render()
}

func renderizarAgravos(w io.Writer) {
	t := novaTabela(w, "Codigo", "Agravo")
	for _, k := range chavesOrdenadas(agravosDisponiveis) {
		t.Append([]string{k, agravosDisponiveis[k]})
	}
	t.Render()
}

func renderizarAcidentes(w io.Writer) {
	for _, codigo := range chavesOrdenadas(acidentesTrabalho) {
		info := acidentesTrabalho[codigo]
		fmt.Fprintf(w, "\n%s - %s (%s)\n%s\n", codigo, info.Nome, info.CodigoSinan, info.Descricao)
		t := novaTabela(w, "Tipos incluidos", "Variaveis principais")
		n := max(len(info.TiposIncluidos), len(info.VariaveisPrincipais))
		for i := 0; i < n; i++ {
			var tipo, variavel string
			if i < len(info.TiposIncluidos) {
				tipo = info.TiposIncluidos[i]
			}
			if i < len(info.VariaveisPrincipais) {
				variavel = info.VariaveisPrincipais[i]
			}
			t.Append([]string{tipo, variavel})
		}
		t.Render()
	}
}

// planilha grava linhas em uma única aba, uma célula por valor.
func planilha(caminho, aba string, cabecalho []string, linhas [][]interface{}) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", aba); err != nil {
		return err
	}
	for i, h := range cabecalho {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return err
		}
		if err := f.SetCellValue(aba, cell, h); err != nil {
			return err
		}
	}
	for r, linha := range linhas {
		for c, v := range linha {
			cell, err := excelize.CoordinatesToCellName(c+1, r+2)
			if err != nil {
				return err
			}
			if err := f.SetCellValue(aba, cell, v); err != nil {
				return err
			}
		}
	}
	return f.SaveAs(caminho)
}

func exportarRankingXLSX(caminho string, r models.RankingMunicipio) error {
	linhas := make([][]interface{}, 0, len(r.Candidatos))
	for i, c := range r.Candidatos {
		linhas = append(linhas, []interface{}{i + 1, c.Candidato, c.Votos})
	}
	return planilha(caminho, "Ranking", []string{"Posicao", "Candidato", "Votos"}, linhas)
}

func exportarLocaisXLSX(caminho string, locais []models.LocalResumo) error {
	linhas := make([][]interface{}, 0, len(locais))
	for _, l := range locais {
		var lat, lon interface{}
		if l.TemCoordenadas() {
			lat, lon = *l.Lat, *l.Lon
		}
		linhas = append(linhas, []interface{}{
			l.NrLocal, l.Nome, l.Endereco, l.Bairro, l.Secoes, l.Votos,
			l.Vencedor, l.VotosVencedor, l.Percentual, lat, lon,
		})
	}
	return planilha(caminho, "Locais", []string{
		"NR_LOCAL_VOTACAO", "NM_LOCAL_VOTACAO", "DS_LOCAL_VOTACAO_ENDERECO", "BAIRRO",
		"SECOES", "VOTOS", "VENCEDOR", "VOTOS_VENCEDOR", "PERCENTUAL", "LAT", "LON",
	}, linhas)
}

func exportarFrequenciasXLSX(caminho, coluna string, freq []models.Frequencia) error {
	linhas := make([][]interface{}, 0, len(freq))
	for _, f := range freq {
		linhas = append(linhas, []interface{}{f.Valor, f.Quantidade, f.Percentual})
	}
	return planilha(caminho, "Frequencias", []string{coluna, "Quantidade", "Percentual"}, linhas)
}
