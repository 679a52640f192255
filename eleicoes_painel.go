package main

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"dadosmg/models"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
)

const cargoPadrao = "PRESIDENTE"

var votosInvalidos = map[string]bool{"#NULO#": true, "#BRANCO#": true}

var colunasPainel = []string{
	colCargo, colTurno, colMunicipio, colZona, colSecao,
	colNrLocal, colNmLocal, colEndereco, colVotavel, colVotos,
}

// painelEleicoes guarda o CSV agregado e as coordenadas dos locais.
type painelEleicoes struct {
	df        dataframe.DataFrame
	coords    map[string]models.Coordenada
	comBairro bool
}

func lerAgregado(r io.Reader) (dataframe.DataFrame, error) {
	df := dataframe.ReadCSV(semBOM(r),
		dataframe.WithDelimiter(';'),
		dataframe.WithLazyQuotes(true),
		dataframe.DetectTypes(false),
		dataframe.DefaultType(series.String),
		dataframe.WithTypes(map[string]series.Type{colVotos: series.Int}),
	)
	if df.Err != nil {
		return df, df.Err
	}
	for _, c := range colunasPainel {
		if !temColuna(df, c) {
			return df, fmt.Errorf("%w: %s", errColunaAusente, c)
		}
	}
	if _, err := df.Col(colVotos).Int(); err != nil {
		return df, fmt.Errorf("QT_VOTOS invalido: %w", err)
	}
	return df, nil
}

// carregarPainelEleicoes usa o agregado e o geocodificado mais recentes de dir.
func carregarPainelEleicoes(dir string) (*painelEleicoes, error) {
	arquivo, err := arquivoMaisRecente(dir, padraoAgregado)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(arquivo)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	df, err := lerAgregado(f)
	if err != nil {
		return nil, fmt.Errorf("erro ao carregar %s: %w", arquivo, err)
	}

	var geo []models.LocalGeocodificado
	if arqGeo, err := arquivoMaisRecente(dir, padraoGeocodificado); err == nil {
		geo, err = carregarGeocodificados(arqGeo)
		if err != nil {
			return nil, err
		}
	}
	return novoPainelEleicoes(df, geo)
}

func novoPainelEleicoes(df dataframe.DataFrame, geo []models.LocalGeocodificado) (*painelEleicoes, error) {
	p := &painelEleicoes{df: df, coords: map[string]models.Coordenada{}}
	if len(geo) == 0 {
		return p, nil
	}

	for _, g := range geo {
		l := models.LocalVotacao{Numero: g.NrLocalVotacao, Municipio: g.NmMunicipio}
		if _, ok := p.coords[l.Chave()]; ok {
			continue
		}
		p.coords[l.Chave()] = models.Coordenada{Lat: g.Latitude, Lon: g.Longitude, Bairro: g.Bairro}
	}

	// uma passada sobre as linhas, consultando o mapa de coordenadas
	nrs := p.df.Col(colNrLocal).Records()
	muns := p.df.Col(colMunicipio).Records()
	preenchidos := make([]string, len(nrs))
	for i := range nrs {
		c, ok := p.coords[models.LocalVotacao{Numero: nrs[i], Municipio: muns[i]}.Chave()]
		if ok && strings.TrimSpace(c.Bairro) != "" {
			preenchidos[i] = c.Bairro
		} else {
			preenchidos[i] = bairroPadrao
		}
	}
	df = p.df.Mutate(series.New(preenchidos, series.String, colBairro))
	if df.Err != nil {
		return nil, fmt.Errorf("erro ao juntar bairros: %w", df.Err)
	}
	p.df = df
	p.comBairro = true
	return p, nil
}

func unicosOrdenados(df dataframe.DataFrame, col string) []string {
	if df.Nrow() == 0 || !temColuna(df, col) {
		return []string{}
	}
	vistos := map[string]bool{}
	var out []string
	for _, v := range df.Col(col).Records() {
		if !vistos[v] {
			vistos[v] = true
			out = append(out, v)
		}
	}
	sort.Strings(out)
	return out
}

func distintos(df dataframe.DataFrame, col string) int {
	return len(unicosOrdenados(df, col))
}

func filtrarIgual(df dataframe.DataFrame, col, valor string) dataframe.DataFrame {
	return df.Filter(dataframe.F{Colname: col, Comparator: series.Eq, Comparando: valor})
}

func (p *painelEleicoes) cargos() []string { return unicosOrdenados(p.df, colCargo) }
func (p *painelEleicoes) turnos() []string { return unicosOrdenados(p.df, colTurno) }

// cargoInicial devolve PRESIDENTE quando existe, senão o primeiro cargo.
func (p *painelEleicoes) cargoInicial() string {
	cargos := p.cargos()
	for _, c := range cargos {
		if c == cargoPadrao {
			return c
		}
	}
	if len(cargos) > 0 {
		return cargos[0]
	}
	return ""
}

func (p *painelEleicoes) selecionar(cargo, turno string) dataframe.DataFrame {
	df := p.df
	if cargo != "" {
		df = filtrarIgual(df, colCargo, cargo)
	}
	if turno != "" {
		df = filtrarIgual(df, colTurno, turno)
	}
	return df
}

func (p *painelEleicoes) municipios(cargo, turno string) []string {
	return unicosOrdenados(p.selecionar(cargo, turno), colMunicipio)
}

func (p *painelEleicoes) resumo(cargo, turno string) models.ResumoEleicoes {
	df := p.selecionar(cargo, turno)
	return models.ResumoEleicoes{
		Cargo:      cargo,
		Turno:      turno,
		Registros:  df.Nrow(),
		Municipios: distintos(df, colMunicipio),
		Zonas:      distintos(df, colZona),
		Enderecos:  distintos(df, colEndereco),
	}
}

// votosPorCandidato soma QT_VOTOS por NM_VOTAVEL com o GroupBy do gota.
func votosPorCandidato(df dataframe.DataFrame) map[string]int {
	out := map[string]int{}
	if df.Nrow() == 0 {
		return out
	}
	agg := df.GroupBy(colVotavel).Aggregation(
		[]dataframe.AggregationType{dataframe.Aggregation_SUM},
		[]string{colVotos},
	)
	if agg.Err != nil {
		return out
	}
	nomes := agg.Col(colVotavel).Records()
	somas := agg.Col(colVotos + "_SUM").Float()
	for i, n := range nomes {
		out[n] = int(somas[i] + 0.5)
	}
	return out
}

func ordenarVotos(votos map[string]int, incluirInvalidos bool) []models.VotoCandidato {
	lista := []models.VotoCandidato{}
	for nome, v := range votos {
		if !incluirInvalidos && votosInvalidos[nome] {
			continue
		}
		lista = append(lista, models.VotoCandidato{Candidato: nome, Votos: v})
	}
	sort.Slice(lista, func(i, j int) bool {
		if lista[i].Votos != lista[j].Votos {
			return lista[i].Votos > lista[j].Votos
		}
		return lista[i].Candidato < lista[j].Candidato
	})
	return lista
}

func somaVotos(votos map[string]int) int {
	total := 0
	for _, v := range votos {
		total += v
	}
	return total
}

// ranking ordena os candidatos do município por votos, sem nulos e brancos;
// o total inclui todos os votos.
func (p *painelEleicoes) ranking(cargo, turno, municipio string, bairros []string) models.RankingMunicipio {
	df := filtrarIgual(p.selecionar(cargo, turno), colMunicipio, municipio)
	if len(bairros) > 0 && p.comBairro {
		df = df.Filter(dataframe.F{Colname: colBairro, Comparator: series.In, Comparando: bairros})
	}

	votos := votosPorCandidato(df)
	r := models.RankingMunicipio{
		Municipio:  municipio,
		Candidatos: ordenarVotos(votos, false),
		TotalVotos: somaVotos(votos),
		Zonas:      distintos(df, colZona),
		Secoes:     distintos(df, colSecao),
	}
	if p.comBairro {
		r.Bairros = distintos(df, colBairro)
	}
	return r
}

func corMarcador(secoes int) string {
	switch {
	case secoes >= 10:
		return "red"
	case secoes >= 5:
		return "orange"
	default:
		return "blue"
	}
}

type chaveLocal struct {
	nr, nome, endereco, bairro string
}

type acumuladoLocal struct {
	secoes map[string]bool
	votos  int
}

// locais agrupa o município por local de votação, com seções distintas, votos,
// vencedor e coordenadas quando geocodificado.
func (p *painelEleicoes) locais(cargo, turno, municipio string) []models.LocalResumo {
	df := filtrarIgual(p.selecionar(cargo, turno), colMunicipio, municipio)
	if df.Nrow() == 0 {
		return []models.LocalResumo{}
	}

	nrs := df.Col(colNrLocal).Records()
	nomes := df.Col(colNmLocal).Records()
	enderecos := df.Col(colEndereco).Records()
	secoes := df.Col(colSecao).Records()
	votavel := df.Col(colVotavel).Records()
	votos, _ := df.Col(colVotos).Int()
	var bairros []string
	if p.comBairro {
		bairros = df.Col(colBairro).Records()
	}

	grupos := map[chaveLocal]*acumuladoLocal{}
	var ordem []chaveLocal
	porLocal := map[string]map[string]int{}
	for i := range nrs {
		k := chaveLocal{nr: nrs[i], nome: nomes[i], endereco: enderecos[i]}
		if bairros != nil {
			k.bairro = bairros[i]
		}
		g, ok := grupos[k]
		if !ok {
			g = &acumuladoLocal{secoes: map[string]bool{}}
			grupos[k] = g
			ordem = append(ordem, k)
		}
		g.secoes[secoes[i]] = true
		g.votos += votos[i]

		if porLocal[nrs[i]] == nil {
			porLocal[nrs[i]] = map[string]int{}
		}
		porLocal[nrs[i]][votavel[i]] += votos[i]
	}

	sort.Slice(ordem, func(i, j int) bool {
		a, b := ordem[i], ordem[j]
		if a.nr != b.nr {
			return a.nr < b.nr
		}
		if a.nome != b.nome {
			return a.nome < b.nome
		}
		if a.endereco != b.endereco {
			return a.endereco < b.endereco
		}
		return a.bairro < b.bairro
	})

	out := make([]models.LocalResumo, 0, len(ordem))
	for _, k := range ordem {
		g := grupos[k]
		l := models.LocalResumo{
			NrLocal:  k.nr,
			Nome:     k.nome,
			Endereco: k.endereco,
			Bairro:   k.bairro,
			Secoes:   len(g.secoes),
			Votos:    g.votos,
			Vencedor: "N/A",
			Cor:      corMarcador(len(g.secoes)),
		}
		if validos := ordenarVotos(porLocal[k.nr], false); len(validos) > 0 {
			l.Vencedor = validos[0].Candidato
			l.VotosVencedor = validos[0].Votos
			if l.Votos > 0 {
				l.Percentual = arredondar(float64(l.VotosVencedor)/float64(l.Votos)*100, 1)
			}
		}
		chave := models.LocalVotacao{Numero: k.nr, Municipio: municipio}.Chave()
		if c, ok := p.coords[chave]; ok {
			lat, lon := c.Lat, c.Lon
			l.Lat, l.Lon = &lat, &lon
		}
		out = append(out, l)
	}
	return out
}

func locaisComCoordenadas(locais []models.LocalResumo) []models.LocalResumo {
	var out []models.LocalResumo
	for _, l := range locais {
		if l.TemCoordenadas() {
			out = append(out, l)
		}
	}
	return out
}

func estatisticasMapa(locais []models.LocalResumo) models.EstatisticasMapa {
	var e models.EstatisticasMapa
	var comCoord int
	for _, l := range locais {
		e.Locais++
		e.TotalSecoes += l.Secoes
		e.TotalVotos += l.Votos
		if l.TemCoordenadas() {
			e.CentroLat += *l.Lat
			e.CentroLon += *l.Lon
			comCoord++
		}
	}
	if e.Locais > 0 {
		e.MediaSecoes = arredondar(float64(e.TotalSecoes)/float64(e.Locais), 1)
	}
	if comCoord > 0 {
		e.CentroLat /= float64(comCoord)
		e.CentroLon /= float64(comCoord)
	}
	return e
}
