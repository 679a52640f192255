package main

import (
	"archive/zip"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/carlmjohnson/requests"
	"go.uber.org/zap"
)

const (
	colMunicipio   = "NM_MUNICIPIO"
	colVotos       = "QT_VOTOS"
	colEndereco    = "DS_LOCAL_VOTACAO_ENDERECO"
	colVotavel     = "NM_VOTAVEL"
	colNrVotavel   = "NR_VOTAVEL"
	colNrLocal     = "NR_LOCAL_VOTACAO"
	colNmLocal     = "NM_LOCAL_VOTACAO"
	colCargo       = "DS_CARGO"
	colTurno       = "NR_TURNO"
	colZona        = "NR_ZONA"
	colSecao       = "NR_SECAO"
	colBairro      = "BAIRRO"
	prefixoFiltro  = "eleicoes_2022_mg_filtrados_"
	sufixoAgregado = "_agregado.csv"
	formatoTS      = "20060102_150405"
)

type estatisticasFiltro struct {
	Total          int
	Filtradas      int
	Agregadas      int
	Encontrados    []string
	NaoEncontrados []string
}

func (e estatisticasFiltro) reducao() float64 {
	if e.Filtradas == 0 {
		return 0
	}
	return (1 - float64(e.Agregadas)/float64(e.Filtradas)) * 100
}

// filtrarVotacao copia para w as linhas cujo município está em municipios.
// r deve estar em UTF-8; o cabeçalho é sempre escrito.
func filtrarVotacao(r io.Reader, w io.Writer, municipios []string) (estatisticasFiltro, error) {
	var stats estatisticasFiltro

	alvo := make(map[string]string, len(municipios))
	for _, m := range municipios {
		alvo[normalizarNome(m)] = m
	}

	cr := novoLeitorCSV(semBOM(r), ';')
	cr.ReuseRecord = true
	header, err := cr.Read()
	if err != nil {
		return stats, fmt.Errorf("erro ao ler cabeçalho: %w", err)
	}
	header = append([]string(nil), header...)
	idx := indiceColunas(header)
	iMun, ok := idx[colMunicipio]
	if !ok {
		return stats, fmt.Errorf("%w: %s", errColunaAusente, colMunicipio)
	}

	cw, err := escritorCSV(w, ';')
	if err != nil {
		return stats, err
	}
	if err := cw.Write(header); err != nil {
		return stats, err
	}

	encontrados := map[string]bool{}
	for {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return stats, fmt.Errorf("erro na linha %d: %w", stats.Total+2, err)
		}
		stats.Total++

		if iMun < len(row) {
			if _, ok := alvo[normalizarNome(row[iMun])]; ok {
				if err := cw.Write(row); err != nil {
					return stats, err
				}
				stats.Filtradas++
				encontrados[normalizarNome(row[iMun])] = true
			}
		}

		if stats.Total%100000 == 0 {
			fmt.Printf("  Processadas: %d | Filtradas: %d\n", stats.Total, stats.Filtradas)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return stats, err
	}

	for norm, original := range alvo {
		if encontrados[norm] {
			stats.Encontrados = append(stats.Encontrados, norm)
		} else {
			stats.NaoEncontrados = append(stats.NaoEncontrados, original)
		}
	}
	sort.Strings(stats.Encontrados)
	sort.Strings(stats.NaoEncontrados)
	return stats, nil
}

type chaveAgregacao struct {
	endereco, votavel, numero, municipio string
}

func (a chaveAgregacao) menor(b chaveAgregacao) bool {
	if a.endereco != b.endereco {
		return a.endereco < b.endereco
	}
	if a.votavel != b.votavel {
		return a.votavel < b.votavel
	}
	if a.numero != b.numero {
		return a.numero < b.numero
	}
	return a.municipio < b.municipio
}

// agregarVotacao soma QT_VOTOS por (endereço, votável, número, município),
// mantendo os demais campos da primeira linha de cada grupo.
func agregarVotacao(r io.Reader, w io.Writer) (int, error) {
	cr := novoLeitorCSV(semBOM(r), ';')
	header, err := cr.Read()
	if err != nil {
		return 0, fmt.Errorf("erro ao ler cabeçalho: %w", err)
	}
	idx := indiceColunas(header)
	iVotos, ok := idx[colVotos]
	if !ok {
		return 0, fmt.Errorf("%w: %s", errColunaAusente, colVotos)
	}
	if _, ok := idx[colMunicipio]; !ok {
		return 0, fmt.Errorf("%w: %s", errColunaAusente, colMunicipio)
	}

	primeiras := map[chaveAgregacao][]string{}
	somas := map[chaveAgregacao]int64{}
	for linha := 2; ; linha++ {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return 0, fmt.Errorf("erro na linha %d: %w", linha, err)
		}
		votos, err := strconv.ParseInt(strings.TrimSpace(campo(row, idx, colVotos)), 10, 64)
		if err != nil {
			return 0, fmt.Errorf("QT_VOTOS invalido na linha %d: %w", linha, err)
		}

		k := chaveAgregacao{
			endereco:  campo(row, idx, colEndereco),
			votavel:   campo(row, idx, colVotavel),
			numero:    campo(row, idx, colNrVotavel),
			municipio: campo(row, idx, colMunicipio),
		}
		if _, ok := primeiras[k]; !ok {
			primeiras[k] = row
		}
		somas[k] += votos
	}

	chaves := make([]chaveAgregacao, 0, len(somas))
	for k := range somas {
		chaves = append(chaves, k)
	}
	sort.Slice(chaves, func(i, j int) bool { return chaves[i].menor(chaves[j]) })

	cw, err := escritorCSV(w, ';')
	if err != nil {
		return 0, err
	}
	if err := cw.Write(header); err != nil {
		return 0, err
	}
	for _, k := range chaves {
		row := append([]string(nil), primeiras[k]...)
		for len(row) <= iVotos {
			row = append(row, "")
		}
		row[iVotos] = strconv.FormatInt(somas[k], 10)
		if err := cw.Write(row); err != nil {
			return 0, err
		}
	}
	cw.Flush()
	return len(chaves), cw.Error()
}

// escritorProgresso informa a cada 10 MB recebidos.
type escritorProgresso struct {
	w       io.Writer
	total   int64
	proximo int64
}

func (p *escritorProgresso) Write(b []byte) (int, error) {
	n, err := p.w.Write(b)
	p.total += int64(n)
	for p.total >= p.proximo+10*1024*1024 {
		p.proximo += 10 * 1024 * 1024
		fmt.Printf("  Baixados: %.1f MB\n", emMB(p.proximo))
	}
	return n, err
}

func baixarZipVotacao(ctx context.Context, url, destino string) (int64, error) {
	f, err := os.Create(destino)
	if err != nil {
		return 0, err
	}
	prog := &escritorProgresso{w: f}
	err = requests.URL(url).
		Client(httpCliente).
		ToWriter(prog).
		Fetch(ctx)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(destino)
		return 0, fmt.Errorf("erro ao baixar %s: %w", url, err)
	}
	return prog.total, nil
}

// abrirCsvDoZip devolve o primeiro membro .csv do zip.
func abrirCsvDoZip(zr *zip.Reader) (*zip.File, error) {
	for _, f := range zr.File {
		if strings.HasSuffix(strings.ToLower(f.Name), ".csv") {
			return f, nil
		}
	}
	return nil, fmt.Errorf("%w: nenhum .csv no zip", errSemArquivo)
}

type saidaFiltro struct {
	Filtrado string
	Agregado string
	Stats    estatisticasFiltro
}

// processarZipVotacao filtra e agrega o CSV de votação contido em zipPath.
func processarZipVotacao(zipPath, outDir string, municipios []string, agora time.Time) (saidaFiltro, error) {
	var out saidaFiltro

	zr, err := zip.OpenReader(zipPath)
	if err != nil {
		return out, fmt.Errorf("erro ao abrir %s: %w", zipPath, err)
	}
	defer zr.Close()

	membro, err := abrirCsvDoZip(&zr.Reader)
	if err != nil {
		return out, err
	}
	fmt.Printf("  Processando: %s\n", membro.Name)
	rc, err := membro.Open()
	if err != nil {
		return out, err
	}
	defer rc.Close()

	if err := os.MkdirAll(outDir, 0755); err != nil {
		return out, err
	}
	out.Filtrado = filepath.Join(outDir, prefixoFiltro+agora.Format(formatoTS)+".csv")
	f, err := os.Create(out.Filtrado)
	if err != nil {
		return out, err
	}
	out.Stats, err = filtrarVotacao(leitorLatin1(rc), f, municipios)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return out, err
	}

	out.Agregado = strings.TrimSuffix(out.Filtrado, ".csv") + sufixoAgregado
	in, err := os.Open(out.Filtrado)
	if err != nil {
		return out, err
	}
	defer in.Close()
	ag, err := os.Create(out.Agregado)
	if err != nil {
		return out, err
	}
	out.Stats.Agregadas, err = agregarVotacao(in, ag)
	if cerr := ag.Close(); err == nil {
		err = cerr
	}
	return out, err
}

// filtrarEleicoes baixa o zip do TSE (ou usa zipLocal) e gera os CSV filtrado e agregado.
func filtrarEleicoes(ctx context.Context, cfg *Config, zipLocal string, log *zap.Logger) (saidaFiltro, error) {
	fmt.Printf("%s\nFILTRO DE DADOS ELEITORAIS - TSE 2022\n%s\n", strings.Repeat("=", 80), strings.Repeat("=", 80))
	fmt.Printf("\nMunicipios a filtrar: %d\n", len(cfg.Eleicoes.Municipios))
	if len(cfg.Eleicoes.Municipios) == 0 {
		return saidaFiltro{}, errors.New("nenhum municipio configurado")
	}

	zipPath := zipLocal
	if zipPath == "" {
		tmp, err := os.CreateTemp("", "temp_votacao_*.zip")
		if err != nil {
			return saidaFiltro{}, err
		}
		tmp.Close()
		zipPath = tmp.Name()
		defer os.Remove(zipPath)

		fmt.Println("[1/4] Iniciando download...")
		n, err := baixarZipVotacao(ctx, cfg.Eleicoes.DataURL, zipPath)
		if err != nil {
			return saidaFiltro{}, err
		}
		fmt.Printf("[OK] Download concluido: %.2f MB\n", emMB(n))
	}

	fmt.Println("[3/4] Extraindo e filtrando dados...")
	out, err := processarZipVotacao(zipPath, cfg.caminho(cfg.Eleicoes.OutputDir), cfg.Eleicoes.Municipios, time.Now())
	if err != nil {
		return out, err
	}
	log.Info("filtro concluido",
		zap.Int("total", out.Stats.Total),
		zap.Int("filtradas", out.Stats.Filtradas),
		zap.Int("agregadas", out.Stats.Agregadas))

	imprimirResultadoFiltro(out)
	return out, nil
}

func imprimirResultadoFiltro(out saidaFiltro) {
	s := out.Stats
	fmt.Printf("[OK] Total processado: %d linhas\n[OK] Total filtrado: %d linhas\n", s.Total, s.Filtradas)
	fmt.Printf("[OK] Linhas agregadas: %d\n[OK] Reducao: %d linhas (%.1f%%)\n",
		s.Agregadas, s.Filtradas-s.Agregadas, s.reducao())

	fmt.Printf("\nMunicipios encontrados (%d):\n", len(s.Encontrados))
	for _, m := range s.Encontrados {
		fmt.Printf("  [OK] %s\n", m)
	}
	if len(s.NaoEncontrados) > 0 {
		fmt.Printf("\nMunicipios NAO encontrados (%d):\n", len(s.NaoEncontrados))
		for _, m := range s.NaoEncontrados {
			fmt.Printf("  [X] %s\n", m)
		}
	}
	fmt.Printf("\nArquivo filtrado: %s\nArquivo agregado: %s\n", out.Filtrado, out.Agregado)
}
