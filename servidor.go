package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

// corsMiddleware adiciona headers CORS para aceitar requisições de qualquer origem
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

type servidor struct {
	mu       sync.RWMutex
	eleicoes *painelEleicoes
	sinan    *painelSinan

	dirEleicoes string
	csvSinan    string
	log         *zap.Logger
}

func novoServidor(dirEleicoes, csvSinan string, log *zap.Logger) *servidor {
	return &servidor{dirEleicoes: dirEleicoes, csvSinan: csvSinan, log: log}
}

// recarregar lê os arquivos novamente; um conjunto ausente não impede o outro.
func (s *servidor) recarregar() error {
	var errs []error

	var eleicoes *painelEleicoes
	if s.dirEleicoes != "" {
		p, err := carregarPainelEleicoes(s.dirEleicoes)
		if err != nil {
			errs = append(errs, err)
			s.log.Warn("dados eleitorais nao carregados", zap.Error(err))
		} else {
			eleicoes = p
			s.log.Info("dados eleitorais carregados", zap.Int("registros", p.df.Nrow()), zap.Bool("bairros", p.comBairro))
		}
	}

	var sinan *painelSinan
	if s.csvSinan != "" {
		p, err := carregarPainelSinan(s.csvSinan)
		if err != nil {
			errs = append(errs, err)
			s.log.Warn("dados SINAN nao carregados", zap.Error(err))
		} else {
			sinan = p.filtrarMG()
			s.log.Info("dados SINAN carregados", zap.Int("registros", sinan.df.Nrow()), zap.Bool("sem_uf", sinan.semUF))
		}
	}

	s.mu.Lock()
	s.eleicoes, s.sinan = eleicoes, sinan
	s.mu.Unlock()
	return errors.Join(errs...)
}

func (s *servidor) rotas() http.Handler {
	r := mux.NewRouter()
	r.Use(corsMiddleware)

	e := r.PathPrefix("/eleicoes").Subrouter()
	e.HandleFunc("/cargos", s.comEleicoes(s.cargosHandler)).Methods("GET", "OPTIONS")
	e.HandleFunc("/turnos", s.comEleicoes(s.turnosHandler)).Methods("GET", "OPTIONS")
	e.HandleFunc("/municipios", s.comEleicoes(s.municipiosHandler)).Methods("GET", "OPTIONS")
	e.HandleFunc("/resumo", s.comEleicoes(s.resumoHandler)).Methods("GET", "OPTIONS")
	e.HandleFunc("/ranking", s.comEleicoes(s.rankingHandler)).Methods("GET", "OPTIONS")
	e.HandleFunc("/locais", s.comEleicoes(s.locaisHandler)).Methods("GET", "OPTIONS")
	e.HandleFunc("/locais.geojson", s.comEleicoes(s.locaisGeoJSONHandler)).Methods("GET", "OPTIONS")

	sn := r.PathPrefix("/sinan").Subrouter()
	sn.HandleFunc("/perfil", s.comSinan(s.perfilHandler)).Methods("GET", "OPTIONS")
	sn.HandleFunc("/faltantes", s.comSinan(s.faltantesHandler)).Methods("GET", "OPTIONS")
	sn.HandleFunc("/frequencias", s.comSinan(s.frequenciasHandler)).Methods("GET", "OPTIONS")
	sn.HandleFunc("/filtro", s.comSinan(s.filtroHandler)).Methods("GET", "OPTIONS")

	r.HandleFunc("/recarregar", s.recarregarHandler).Methods("POST", "OPTIONS")
	return r
}

func (s *servidor) iniciar(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.rotas(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	erro := make(chan error, 1)
	go func() {
		s.log.Info("servidor iniciado", zap.String("addr", addr))
		erro <- srv.ListenAndServe()
	}()

	select {
	case err := <-erro:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func escreverJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, "Erro ao codificar JSON: "+err.Error(), http.StatusInternalServerError)
	}
}

func erroJSON(w http.ResponseWriter, status int, msg string) {
	escreverJSON(w, status, map[string]string{"erro": msg})
}

type handlerEleicoes func(w http.ResponseWriter, r *http.Request, p *painelEleicoes)
type handlerSinan func(w http.ResponseWriter, r *http.Request, p *painelSinan)

func (s *servidor) comEleicoes(h handlerEleicoes) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.mu.RLock()
		p := s.eleicoes
		s.mu.RUnlock()
		if p == nil {
			erroJSON(w, http.StatusServiceUnavailable, "dados eleitorais nao carregados")
			return
		}
		h(w, r, p)
	}
}

func (s *servidor) comSinan(h handlerSinan) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.mu.RLock()
		p := s.sinan
		s.mu.RUnlock()
		if p == nil {
			erroJSON(w, http.StatusServiceUnavailable, "dados SINAN nao carregados")
			return
		}
		h(w, r, p)
	}
}

// filtroEleicoes lê cargo e turno da query; cargo vazio usa o cargo inicial.
func filtroEleicoes(r *http.Request, p *painelEleicoes) (cargo, turno string) {
	q := r.URL.Query()
	cargo = q.Get("cargo")
	if cargo == "" {
		cargo = p.cargoInicial()
	}
	return cargo, q.Get("turno")
}

func (s *servidor) cargosHandler(w http.ResponseWriter, r *http.Request, p *painelEleicoes) {
	escreverJSON(w, http.StatusOK, map[string]interface{}{
		"cargos": p.cargos(),
		"padrao": p.cargoInicial(),
	})
}

func (s *servidor) turnosHandler(w http.ResponseWriter, r *http.Request, p *painelEleicoes) {
	escreverJSON(w, http.StatusOK, p.turnos())
}

func (s *servidor) municipiosHandler(w http.ResponseWriter, r *http.Request, p *painelEleicoes) {
	cargo, turno := filtroEleicoes(r, p)
	escreverJSON(w, http.StatusOK, p.municipios(cargo, turno))
}

func (s *servidor) resumoHandler(w http.ResponseWriter, r *http.Request, p *painelEleicoes) {
	cargo, turno := filtroEleicoes(r, p)
	escreverJSON(w, http.StatusOK, p.resumo(cargo, turno))
}

func municipioObrigatorio(w http.ResponseWriter, r *http.Request) (string, bool) {
	m := r.URL.Query().Get("municipio")
	if m == "" {
		erroJSON(w, http.StatusBadRequest, "parametro 'municipio' obrigatorio")
		return "", false
	}
	return m, true
}

func (s *servidor) rankingHandler(w http.ResponseWriter, r *http.Request, p *painelEleicoes) {
	municipio, ok := municipioObrigatorio(w, r)
	if !ok {
		return
	}
	cargo, turno := filtroEleicoes(r, p)
	escreverJSON(w, http.StatusOK, p.ranking(cargo, turno, municipio, r.URL.Query()["bairro"]))
}

func (s *servidor) locaisHandler(w http.ResponseWriter, r *http.Request, p *painelEleicoes) {
	municipio, ok := municipioObrigatorio(w, r)
	if !ok {
		return
	}
	cargo, turno := filtroEleicoes(r, p)
	locais := p.locais(cargo, turno, municipio)
	escreverJSON(w, http.StatusOK, map[string]interface{}{
		"locais":       locais,
		"estatisticas": estatisticasMapa(locais),
	})
}

func (s *servidor) locaisGeoJSONHandler(w http.ResponseWriter, r *http.Request, p *painelEleicoes) {
	municipio, ok := municipioObrigatorio(w, r)
	if !ok {
		return
	}
	cargo, turno := filtroEleicoes(r, p)
	w.Header().Set("Content-Type", "application/geo+json")
	if err := escreverGeoJSON(w, p.locais(cargo, turno, municipio)); err != nil {
		s.log.Error("erro ao gerar geojson", zap.Error(err))
	}
}

func (s *servidor) perfilHandler(w http.ResponseWriter, r *http.Request, p *painelSinan) {
	escreverJSON(w, http.StatusOK, map[string]interface{}{
		"arquivo":   p.arquivo,
		"registros": p.df.Nrow(),
		"sem_uf":    p.semUF,
		"tabnet":    p.tabnet,
		"colunas":   p.perfilColunas(),
	})
}

func (s *servidor) faltantesHandler(w http.ResponseWriter, r *http.Request, p *painelSinan) {
	escreverJSON(w, http.StatusOK, p.valoresFaltantes())
}

func (s *servidor) frequenciasHandler(w http.ResponseWriter, r *http.Request, p *painelSinan) {
	q := r.URL.Query()
	coluna := q.Get("coluna")
	if coluna == "" {
		erroJSON(w, http.StatusBadRequest, "parametro 'coluna' obrigatorio")
		return
	}
	n := 20
	if v := q.Get("n"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed < 1 {
			erroJSON(w, http.StatusBadRequest, "parametro 'n' invalido")
			return
		}
		n = parsed
	}
	freq, err := p.frequencias(coluna, n)
	if err != nil {
		erroJSON(w, http.StatusBadRequest, err.Error())
		return
	}
	escreverJSON(w, http.StatusOK, freq)
}

func (s *servidor) filtroHandler(w http.ResponseWriter, r *http.Request, p *painelSinan) {
	q := r.URL.Query()
	coluna := q.Get("coluna")
	valores := q["valor"]
	if coluna == "" || len(valores) == 0 {
		erroJSON(w, http.StatusBadRequest, "parametros 'coluna' e 'valor' obrigatorios")
		return
	}
	filtrado, err := p.filtrarPorValores(coluna, valores)
	if err != nil {
		erroJSON(w, http.StatusBadRequest, err.Error())
		return
	}
	escreverJSON(w, http.StatusOK, map[string]interface{}{
		"registros": filtrado.df.Nrow(),
		"linhas":    filtrado.df.Maps(),
	})
}

func (s *servidor) recarregarHandler(w http.ResponseWriter, r *http.Request) {
	if err := s.recarregar(); err != nil {
		erroJSON(w, http.StatusInternalServerError, err.Error())
		return
	}
	escreverJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
