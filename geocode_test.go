package main

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"dadosmg/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type apiGeocodigo struct {
	mu         sync.Mutex
	consultas  []string
	userAgents []string
	chaves     []string
}

func (a *apiGeocodigo) servir(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query().Get("q")
		a.mu.Lock()
		a.consultas = append(a.consultas, q)
		a.userAgents = append(a.userAgents, r.UserAgent())
		a.chaves = append(a.chaves, r.URL.Query().Get("api_key"))
		a.mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		switch {
		case q == "PASSOS, MG, Brasil":
			fmt.Fprint(w, `[{"lat":"-20.71","lon":"-46.61"}]`)
		case strings.Contains(q, "RUA ERRO"):
			http.Error(w, "falhou", http.StatusInternalServerError)
		case strings.Contains(q, "RUA LAT"):
			fmt.Fprint(w, `[{"lat":"abc","lon":"-46.6"}]`)
		case strings.Contains(q, "RUA"):
			fmt.Fprint(w, `[{"lat":"-20.7188","lon":"-46.6097","address":{"suburb":"Centro","city":"Passos"}}]`)
		default:
			fmt.Fprint(w, `[]`)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func (a *apiGeocodigo) feitas() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]string(nil), a.consultas...)
}

func geocodificadorTeste(t *testing.T, api *apiGeocodigo) (*geocodificador, *[]time.Duration) {
	t.Helper()
	cfg := padraoConfig().Geocode
	cfg.APIURL = api.servir(t).URL
	cfg.Delay = 0
	cfg.ErrorDelay = 3 * time.Second
	cfg.PauseEvery = 0
	cfg.SaveEvery = 0

	var dormidas []time.Duration
	g := novoGeocodificador(cfg, zap.NewNop())
	g.dormir = func(ctx context.Context, d time.Duration) error {
		dormidas = append(dormidas, d)
		return nil
	}
	return g, &dormidas
}

func TestConsultar(t *testing.T) {
	api := &apiGeocodigo{}
	g, _ := geocodificadorTeste(t, api)
	g.cfg.APIKey = "chave"

	coord, ok, err := g.consultar(context.Background(), "RUA A 10, PASSOS, MG, Brasil")
	require.NoError(t, err)
	require.True(t, ok)
	assert.InDelta(t, -20.7188, coord.Lat, 1e-9)
	assert.InDelta(t, -46.6097, coord.Lon, 1e-9)
	assert.Equal(t, "Centro", coord.Bairro)
	api.mu.Lock()
	assert.Equal(t, []string{"dadosmg/1.0"}, api.userAgents)
	assert.Equal(t, []string{"chave"}, api.chaves)
	api.mu.Unlock()

	_, ok, err = g.consultar(context.Background(), "LUGAR NENHUM")
	require.NoError(t, err)
	assert.False(t, ok)

	_, _, err = g.consultar(context.Background(), "RUA ERRO")
	assert.Error(t, err)

	_, _, err = g.consultar(context.Background(), "RUA LAT")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "latitude invalida")
}

func TestExtrairBairro(t *testing.T) {
	assert.Equal(t, "Centro", extrairBairro(map[string]any{"neighbourhood": " ", "suburb": "Centro"}))
	assert.Equal(t, "Jardim", extrairBairro(map[string]any{"city_district": "Jardim"}))
	assert.Equal(t, bairroPadrao, extrairBairro(map[string]any{"quarter": 3}))
	assert.Equal(t, bairroPadrao, extrairBairro(nil))
}

func TestGeocodificarLocais(t *testing.T) {
	api := &apiGeocodigo{}
	g, dormidas := geocodificadorTeste(t, api)
	g.cfg.FallbackMunicipio = true
	g.cfg.PauseEvery = 2
	g.cfg.PauseDuration = 7 * time.Second

	cache := &cacheGeocodigo{
		caminho: filepath.Join(t.TempDir(), "cache.json"),
		dados:   map[string]models.Coordenada{"1023_PASSOS": {Lat: -20.1, Lon: -46.1, Bairro: "Belo Horizonte"}},
	}
	locais := []models.LocalVotacao{
		{Municipio: "PASSOS", Nome: "ESCOLA A", Endereco: "RUA A 10", Numero: "1015"},
		{Municipio: "PASSOS", Nome: "ESCOLA B", Endereco: "RUA B 5", Numero: "1023"},
		{Municipio: "PASSOS", Nome: "ESCOLA C", Endereco: "AV SEM NOME", Numero: "1031"},
		{Municipio: "PASSOS", Nome: "ESCOLA D", Endereco: "RUA ERRO", Numero: "1040"},
	}

	res, stats, err := g.geocodificarLocais(context.Background(), locais, cache)
	require.NoError(t, err)
	require.Len(t, res, 3)

	assert.Equal(t, 4, stats.Processados)
	assert.Equal(t, 2, stats.Novos)
	assert.Equal(t, 1, stats.DoCache)
	assert.Equal(t, 1, stats.Erros)
	assert.Equal(t, map[string]int{"PASSOS": 3}, stats.PorMunicipio)

	assert.Equal(t, "api", res[0].Fonte)
	assert.Equal(t, "Centro", res[0].Bairro)
	assert.Equal(t, "cache", res[1].Fonte)
	assert.Equal(t, "municipio", res[2].Fonte)
	assert.Equal(t, bairroPadrao, res[2].Bairro)

	assert.Contains(t, api.feitas(), "AV SEM NOME, PASSOS, MG, Brasil")
	assert.Contains(t, api.feitas(), "PASSOS, MG, Brasil")
	assert.Equal(t, []time.Duration{7 * time.Second, 3 * time.Second}, *dormidas)

	assert.Contains(t, cache.dados, "1015_PASSOS")
	assert.Contains(t, cache.dados, "1031_PASSOS")
	assert.NotContains(t, cache.dados, "1040_PASSOS")
}

func TestGeocodificarLocaisSemResultado(t *testing.T) {
	g, dormidas := geocodificadorTeste(t, &apiGeocodigo{})
	cache := &cacheGeocodigo{dados: map[string]models.Coordenada{}}

	res, stats, err := g.geocodificarLocais(context.Background(),
		[]models.LocalVotacao{{Municipio: "PASSOS", Endereco: "AV SEM NOME", Numero: "1"}}, cache)
	require.NoError(t, err)
	assert.Empty(t, res)
	assert.Equal(t, 1, stats.Erros)
	assert.Empty(t, *dormidas)
}

func TestGeocodificarLocaisCancelado(t *testing.T) {
	g, _ := geocodificadorTeste(t, &apiGeocodigo{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, stats, err := g.geocodificarLocais(ctx,
		[]models.LocalVotacao{{Municipio: "PASSOS", Endereco: "RUA A", Numero: "1"}},
		&cacheGeocodigo{dados: map[string]models.Coordenada{}})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, stats.Processados)
}

func TestCacheGeocodigo(t *testing.T) {
	caminho := filepath.Join(t.TempDir(), "sub", "cache.json")

	c, err := carregarCache(caminho)
	require.NoError(t, err)
	assert.Empty(t, c.dados)

	c.dados["1015_PASSOS"] = models.Coordenada{Lat: -20.7, Lon: -46.6, Bairro: "Centro"}
	require.NoError(t, c.salvar())

	c2, err := carregarCache(caminho)
	require.NoError(t, err)
	assert.Equal(t, c.dados, c2.dados)

	entradas, err := os.ReadDir(filepath.Dir(caminho))
	require.NoError(t, err)
	assert.Len(t, entradas, 1)

	require.NoError(t, os.WriteFile(caminho, []byte("{"), 0644))
	_, err = carregarCache(caminho)
	assert.Error(t, err)
}

func TestArquivoMaisRecente(t *testing.T) {
	dir := t.TempDir()
	antigo := filepath.Join(dir, prefixoFiltro+"20220101_000000"+sufixoAgregado)
	novo := filepath.Join(dir, prefixoFiltro+"20230101_000000"+sufixoAgregado)
	require.NoError(t, os.WriteFile(novo, []byte("x"), 0644))
	require.NoError(t, os.WriteFile(antigo, []byte("x"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, prefixoFiltro+"20240101_000000.csv"), []byte("x"), 0644))

	velho := time.Now().Add(-time.Hour)
	require.NoError(t, os.Chtimes(antigo, velho, velho))

	got, err := arquivoMaisRecente(dir, padraoAgregado)
	require.NoError(t, err)
	assert.Equal(t, novo, got)

	_, err = arquivoMaisRecente(dir, padraoGeocodificado)
	assert.ErrorIs(t, err, errSemArquivo)
}

func TestLocaisUnicos(t *testing.T) {
	caminho := filepath.Join(t.TempDir(), "agregado.csv")
	require.NoError(t, os.WriteFile(caminho, append(append([]byte{}, bomUTF8...), votacaoMG...), 0644))

	locais, registros, err := locaisUnicos(caminho)
	require.NoError(t, err)
	assert.Equal(t, 5, registros)
	assert.Equal(t, []models.LocalVotacao{
		{Municipio: "PASSOS", Nome: "ESCOLA A", Endereco: "RUA A 10", Numero: "1015"},
		{Municipio: "SÃO SEBASTIÃO DO PARAÍSO", Nome: "ESCOLA B", Endereco: "RUA B 5", Numero: "1023"},
		{Municipio: "BELO HORIZONTE", Nome: "ESCOLA C", Endereco: "AV C 1", Numero: "1104"},
	}, locais)

	require.NoError(t, os.WriteFile(caminho, []byte("NM_MUNICIPIO;QT_VOTOS\nPASSOS;1\n"), 0644))
	_, _, err = locaisUnicos(caminho)
	assert.ErrorIs(t, err, errColunaAusente)
}

func TestTruncar(t *testing.T) {
	assert.Equal(t, "ESCOLA", truncar("ESCOLA", 10))
	assert.Equal(t, "ESCÓ...", truncar("ESCÓLA ESTADUAL", 4))
}

func TestExecutarGeocodificacao(t *testing.T) {
	api := &apiGeocodigo{}
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, prefixoFiltro+"20240101_000000"+sufixoAgregado), []byte(votacaoMG), 0644))

	cfg := padraoConfig()
	cfg.DataDir = dir
	cfg.Geocode.APIURL = api.servir(t).URL
	cfg.Geocode.Delay = 0
	cfg.Geocode.CacheFile = filepath.Join("cache", "geo.json")

	saida, err := executarGeocodificacao(context.Background(), cfg, zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, dir, filepath.Dir(saida))
	assert.True(t, strings.HasPrefix(filepath.Base(saida), prefixoGeocodigo))

	locais, err := carregarGeocodificados(saida)
	require.NoError(t, err)
	require.Len(t, locais, 2)
	assert.Equal(t, "1015", locais[0].NrLocalVotacao)
	assert.Equal(t, "Centro", locais[0].Bairro)
	assert.InDelta(t, -46.6097, locais[1].Longitude, 1e-9)

	cache, err := carregarCache(filepath.Join(dir, "cache", "geo.json"))
	require.NoError(t, err)
	assert.Len(t, cache.dados, 2)

	// segunda execução vem toda do cache
	antes := len(api.feitas())
	_, err = executarGeocodificacao(context.Background(), cfg, zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, []string{"AV C 1, BELO HORIZONTE, MG, Brasil"}, api.feitas()[antes:])
}

func TestExecutarGeocodificacaoSemAgregado(t *testing.T) {
	cfg := padraoConfig()
	cfg.DataDir = t.TempDir()
	_, err := executarGeocodificacao(context.Background(), cfg, zap.NewNop())
	assert.ErrorIs(t, err, errSemArquivo)
}
