package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"dadosmg/models"

	"github.com/carlmjohnson/requests"
	"github.com/gocarina/gocsv"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	bairroPadrao        = "Não especificado"
	prefixoGeocodigo    = "locais_votacao_geocodificados_"
	padraoAgregado      = prefixoFiltro + "*" + sufixoAgregado
	padraoGeocodificado = prefixoGeocodigo + "*.csv"
)

var camposBairro = []string{"neighbourhood", "suburb", "quarter", "city_district"}

type resultadoBusca struct {
	Lat     string         `json:"lat"`
	Lon     string         `json:"lon"`
	Address map[string]any `json:"address"`
}

// arquivoMaisRecente devolve o arquivo de dir que casa com padrao e tem o maior mtime.
func arquivoMaisRecente(dir, padrao string) (string, error) {
	arquivos, err := filepath.Glob(filepath.Join(dir, padrao))
	if err != nil {
		return "", err
	}
	var melhor string
	var melhorMod time.Time
	for _, a := range arquivos {
		info, err := os.Stat(a)
		if err != nil {
			continue
		}
		if melhor == "" || info.ModTime().After(melhorMod) {
			melhor, melhorMod = a, info.ModTime()
		}
	}
	if melhor == "" {
		return "", fmt.Errorf("%w com o padrao %s em %s", errSemArquivo, padrao, dir)
	}
	return melhor, nil
}

// locaisUnicos lê o CSV agregado e devolve os locais distintos na ordem em que aparecem.
func locaisUnicos(caminho string) ([]models.LocalVotacao, int, error) {
	f, err := os.Open(caminho)
	if err != nil {
		return nil, 0, err
	}
	defer f.Close()

	cr := novoLeitorCSV(semBOM(f), ';')
	header, err := cr.Read()
	if err != nil {
		return nil, 0, fmt.Errorf("erro ao ler cabeçalho de %s: %w", caminho, err)
	}
	idx := indiceColunas(header)
	for _, c := range []string{colMunicipio, colNmLocal, colEndereco, colNrLocal} {
		if _, ok := idx[c]; !ok {
			return nil, 0, fmt.Errorf("%w: %s", errColunaAusente, c)
		}
	}

	vistos := map[models.LocalVotacao]bool{}
	var locais []models.LocalVotacao
	registros := 0
	for {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, 0, fmt.Errorf("erro na linha %d de %s: %w", registros+2, caminho, err)
		}
		registros++
		l := models.LocalVotacao{
			Municipio: campo(row, idx, colMunicipio),
			Nome:      campo(row, idx, colNmLocal),
			Endereco:  campo(row, idx, colEndereco),
			Numero:    campo(row, idx, colNrLocal),
		}
		if !vistos[l] {
			vistos[l] = true
			locais = append(locais, l)
		}
	}
	return locais, registros, nil
}

type cacheGeocodigo struct {
	caminho string
	dados   map[string]models.Coordenada
}

func carregarCache(caminho string) (*cacheGeocodigo, error) {
	c := &cacheGeocodigo{caminho: caminho, dados: map[string]models.Coordenada{}}
	data, err := os.ReadFile(caminho)
	if errors.Is(err, fs.ErrNotExist) {
		return c, nil
	}
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(data, &c.dados); err != nil {
		return nil, fmt.Errorf("cache %s invalido: %w", caminho, err)
	}
	return c, nil
}

// salvar grava em arquivo temporário e renomeia, para não deixar cache truncado.
func (c *cacheGeocodigo) salvar() error {
	if dir := filepath.Dir(c.caminho); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}
	tmp, err := os.CreateTemp(filepath.Dir(c.caminho), ".geocode_cache_*.json")
	if err != nil {
		return err
	}
	enc := json.NewEncoder(tmp)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(c.dados); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), c.caminho)
}

type geocodificador struct {
	cfg     GeocodeConfig
	cliente *http.Client
	limiter *rate.Limiter
	dormir  func(ctx context.Context, d time.Duration) error
	log     *zap.Logger
}

func novoGeocodificador(cfg GeocodeConfig, log *zap.Logger) *geocodificador {
	return &geocodificador{
		cfg:     cfg,
		cliente: &http.Client{Timeout: cfg.Timeout},
		limiter: rate.NewLimiter(rate.Every(cfg.Delay), 1),
		dormir:  dormir,
		log:     log,
	}
}

func dormir(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func extrairBairro(address map[string]any) string {
	for _, k := range camposBairro {
		if v, ok := address[k].(string); ok && strings.TrimSpace(v) != "" {
			return v
		}
	}
	return bairroPadrao
}

// consultar devolve a primeira coordenada encontrada para q, ou ok=false se não houver resultado.
func (g *geocodificador) consultar(ctx context.Context, q string) (coord models.Coordenada, ok bool, err error) {
	if err := g.limiter.Wait(ctx); err != nil {
		return coord, false, err
	}

	var resultados []resultadoBusca
	rb := requests.URL(g.cfg.APIURL).
		Client(g.cliente).
		Param("q", q).
		Param("format", "json").
		Param("limit", "1").
		ToJSON(&resultados)
	if g.cfg.UserAgent != "" {
		rb.UserAgent(g.cfg.UserAgent)
	}
	if g.cfg.APIKey != "" {
		rb.Param("api_key", g.cfg.APIKey)
	}
	if err := rb.Fetch(ctx); err != nil {
		return coord, false, err
	}
	if len(resultados) == 0 {
		return coord, false, nil
	}

	r := resultados[0]
	coord.Lat, err = strconv.ParseFloat(r.Lat, 64)
	if err != nil {
		return coord, false, fmt.Errorf("latitude invalida %q: %w", r.Lat, err)
	}
	coord.Lon, err = strconv.ParseFloat(r.Lon, 64)
	if err != nil {
		return coord, false, fmt.Errorf("longitude invalida %q: %w", r.Lon, err)
	}
	coord.Bairro = extrairBairro(r.Address)
	return coord, true, nil
}

type estatisticasGeocodigo struct {
	Processados  int
	Novos        int
	DoCache      int
	Erros        int
	PorMunicipio map[string]int
}

func (g *geocodificador) consulta(l models.LocalVotacao) string {
	return fmt.Sprintf("%s, %s, %s", l.Endereco, l.Municipio, g.cfg.Sufixo)
}

// geocodificarLocais resolve as coordenadas de cada local, usando o cache quando possível.
func (g *geocodificador) geocodificarLocais(ctx context.Context, locais []models.LocalVotacao, cache *cacheGeocodigo) ([]models.LocalGeocodificado, estatisticasGeocodigo, error) {
	stats := estatisticasGeocodigo{PorMunicipio: map[string]int{}}
	var resultados []models.LocalGeocodificado
	total := len(locais)

	adicionar := func(l models.LocalVotacao, c models.Coordenada, fonte string) {
		bairro := c.Bairro
		if bairro == "" {
			bairro = bairroPadrao
		}
		resultados = append(resultados, models.LocalGeocodificado{
			NrLocalVotacao: l.Numero,
			NmMunicipio:    l.Municipio,
			NmLocalVotacao: l.Nome,
			DsEndereco:     l.Endereco,
			Bairro:         bairro,
			Latitude:       c.Lat,
			Longitude:      c.Lon,
			Fonte:          fonte,
		})
		stats.PorMunicipio[l.Municipio]++
	}

	for _, l := range locais {
		if err := ctx.Err(); err != nil {
			return resultados, stats, err
		}
		stats.Processados++

		if c, ok := cache.dados[l.Chave()]; ok {
			adicionar(l, c, "cache")
			stats.DoCache++
			continue
		}

		fonte := "api"
		coord, ok, err := g.consultar(ctx, g.consulta(l))
		if err == nil && !ok && g.cfg.FallbackMunicipio {
			fonte = "municipio"
			coord, ok, err = g.consultar(ctx, fmt.Sprintf("%s, %s", l.Municipio, g.cfg.Sufixo))
		}
		switch {
		case err != nil:
			if ctx.Err() != nil {
				return resultados, stats, ctx.Err()
			}
			stats.Erros++
			fmt.Printf("  [%d/%d] ERRO: %s - %v\n", stats.Processados, total, l.Municipio, err)
			if err := g.dormir(ctx, g.cfg.ErrorDelay); err != nil {
				return resultados, stats, err
			}
			continue
		case !ok:
			stats.Erros++
			fmt.Printf("  [%d/%d] SKIP: %s - Sem resultado\n", stats.Processados, total, l.Municipio)
			continue
		}

		cache.dados[l.Chave()] = coord
		adicionar(l, coord, fonte)
		stats.Novos++
		fmt.Printf("  [%d/%d] OK: %s - %s (%.6f, %.6f) - Bairro: %s\n",
			stats.Processados, total, l.Municipio, truncar(l.Nome, 40), coord.Lat, coord.Lon, coord.Bairro)

		if g.cfg.SaveEvery > 0 && stats.Novos%g.cfg.SaveEvery == 0 {
			if err := cache.salvar(); err != nil {
				g.log.Warn("erro ao salvar cache", zap.Error(err))
			} else {
				fmt.Printf("  -> Cache salvo (%d enderecos)\n", len(cache.dados))
			}
		}
		if g.cfg.PauseEvery > 0 && stats.Novos%g.cfg.PauseEvery == 0 {
			fmt.Printf("\n  >> Pausando %s para respeitar limite da API...\n\n", g.cfg.PauseDuration)
			if err := g.dormir(ctx, g.cfg.PauseDuration); err != nil {
				return resultados, stats, err
			}
		}
	}
	return resultados, stats, nil
}

func truncar(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}

func salvarGeocodificados(caminho string, locais []models.LocalGeocodificado) error {
	f, err := os.Create(caminho)
	if err != nil {
		return err
	}
	defer f.Close()
	if _, err := f.Write(bomUTF8); err != nil {
		return err
	}
	if err := gocsv.Marshal(&locais, f); err != nil {
		return err
	}
	return f.Close()
}

func carregarGeocodificados(caminho string) ([]models.LocalGeocodificado, error) {
	f, err := os.Open(caminho)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	var locais []models.LocalGeocodificado
	if err := gocsv.Unmarshal(semBOM(f), &locais); err != nil {
		return nil, fmt.Errorf("erro ao ler %s: %w", caminho, err)
	}
	return locais, nil
}

// executarGeocodificacao é o fluxo completo: agregado mais recente, cache, API e CSV de saída.
func executarGeocodificacao(ctx context.Context, cfg *Config, log *zap.Logger) (string, error) {
	fmt.Printf("%s\nGEOCODIFICACAO DE LOCAIS DE VOTACAO\n%s\n", strings.Repeat("=", 80), strings.Repeat("=", 80))
	dir := cfg.caminho(cfg.Eleicoes.OutputDir)

	arquivo, err := arquivoMaisRecente(dir, padraoAgregado)
	if err != nil {
		return "", fmt.Errorf("%w (execute: dadosmg eleicoes filtrar)", err)
	}
	fmt.Printf("\n[1/4] Usando arquivo: %s\n", filepath.Base(arquivo))

	locais, registros, err := locaisUnicos(arquivo)
	if err != nil {
		return "", err
	}
	fmt.Printf("Total de registros: %d\n[2/4] Locais unicos: %d\n", registros, len(locais))

	cache, err := carregarCache(cfg.caminho(cfg.Geocode.CacheFile))
	if err != nil {
		return "", err
	}
	fmt.Printf("Cache carregado: %d enderecos\n\n[3/4] Geocodificando enderecos...\n", len(cache.dados))

	g := novoGeocodificador(cfg.Geocode, log)
	resultados, stats, geoErr := g.geocodificarLocais(ctx, locais, cache)
	if err := cache.salvar(); err != nil {
		return "", fmt.Errorf("erro ao salvar cache: %w", err)
	}
	if geoErr != nil {
		return "", geoErr
	}
	if len(resultados) == 0 {
		return "", fmt.Errorf("%w: nenhum local foi geocodificado", errSemDados)
	}

	saida := filepath.Join(dir, prefixoGeocodigo+time.Now().Format(formatoTS)+".csv")
	if err := salvarGeocodificados(saida, resultados); err != nil {
		return "", err
	}
	imprimirEstatisticasGeocodigo(stats, len(resultados))
	fmt.Printf("\nArquivo gerado: %s\nCache salvo: %s\n", saida, cache.caminho)
	return saida, nil
}

func imprimirEstatisticasGeocodigo(s estatisticasGeocodigo, geocodificados int) {
	fmt.Printf("\n%s\nESTATISTICAS\n%s\n", strings.Repeat("=", 80), strings.Repeat("=", 80))
	fmt.Printf("\nTotal de locais processados: %d\nGeocodificados com sucesso: %d\n", s.Processados, geocodificados)
	fmt.Printf("Novos geocodes (API): %d\nDo cache: %d\nErros/Skips: %d\n", s.Novos, s.DoCache, s.Erros)

	muns := chavesOrdenadas(s.PorMunicipio)
	sort.SliceStable(muns, func(i, j int) bool { return s.PorMunicipio[muns[i]] > s.PorMunicipio[muns[j]] })
	fmt.Println("\nMunicipios geocodificados:")
	for _, m := range muns {
		fmt.Printf("  - %s: %d locais\n", m, s.PorMunicipio[m])
	}
}
