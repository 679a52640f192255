package main

import (
	"bufio"
	"context"
	"database/sql"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/lib/pq"
	"go.uber.org/zap"
)

// Limite de parâmetros por comando do protocolo do Postgres.
const maxParametrosPG = 65535

var marcadoresNulos = map[string]bool{"": true, "null": true, "na": true, "nan": true, "n/a": true}

func ehNuloSQL(v string) bool {
	return marcadoresNulos[strings.ToLower(strings.TrimSpace(v))]
}

func conectaDB(ctx context.Context, cfg DatabaseConfig) (*sql.DB, error) {
	db, err := sql.Open("postgres", cfg.connStr())
	if err != nil {
		return nil, fmt.Errorf("erro ao abrir conexão com banco de dados: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("erro ao conectar com banco de dados: %w", err)
	}
	return db, nil
}

// criarBanco cria o banco configurado se não existir, conectando pelo banco postgres.
func criarBanco(ctx context.Context, cfg DatabaseConfig) error {
	admin := cfg
	admin.Name = "postgres"
	db, err := sql.Open("postgres", admin.connStr())
	if err != nil {
		return err
	}
	defer db.Close()

	var existe bool
	err = db.QueryRowContext(ctx, "SELECT EXISTS(SELECT 1 FROM pg_database WHERE datname = $1)", cfg.Name).Scan(&existe)
	if err != nil {
		return err
	}
	if existe {
		fmt.Printf("[OK] Banco '%s' já existe\n", cfg.Name)
		return nil
	}
	if _, err := db.ExecContext(ctx, "CREATE DATABASE "+pq.QuoteIdentifier(cfg.Name)); err != nil {
		return fmt.Errorf("erro ao criar banco: %w", err)
	}
	fmt.Printf("[OK] Banco '%s' criado\n", cfg.Name)
	return nil
}

// limparNomeColuna deixa só [a-z0-9_], em minúsculas.
func limparNomeColuna(nome string) string {
	nome = strings.ToLower(normalizarNome(nome))
	nome = strings.NewReplacer(" ", "_", "-", "_").Replace(nome)
	var b strings.Builder
	for _, r := range nome {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '_' {
			b.WriteRune(r)
		}
	}
	if b.Len() == 0 {
		return "coluna"
	}
	return b.String()
}

func ehData(v string) bool {
	if len(v) != 10 || v[4] != '-' || v[7] != '-' {
		return false
	}
	y, err1 := strconv.Atoi(v[0:4])
	m, err2 := strconv.Atoi(v[5:7])
	d, err3 := strconv.Atoi(v[8:10])
	return err1 == nil && err2 == nil && err3 == nil &&
		y >= 1900 && y <= 2100 && m >= 1 && m <= 12 && d >= 1 && d <= 31
}

// inferirTipo escolhe DATE, INTEGER, DECIMAL ou TEXT a partir de uma amostra da coluna.
func inferirTipo(amostra [][]string, col int) string {
	ehInt, ehFloat, ehDt := true, true, true
	validos := 0
	for _, row := range amostra {
		if col >= len(row) || ehNuloSQL(row[col]) {
			continue
		}
		v := strings.TrimSpace(row[col])
		validos++

		if !ehData(v) {
			ehDt = false
		}
		// códigos com zero à esquerda (IBGE, CNPJ) ficam como texto
		if len(v) > 1 && v[0] == '0' && v[1] != '.' && v[1] != ',' {
			ehInt, ehFloat = false, false
			continue
		}
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil || n > 2147483647 || n < -2147483648 {
			ehInt = false
		}
		if strings.Count(v, ",")+strings.Count(v, ".") > 1 {
			ehFloat = false
		} else if _, err := strconv.ParseFloat(strings.Replace(v, ",", ".", 1), 64); err != nil {
			ehFloat = false
		}
	}

	switch {
	case validos == 0:
		return "TEXT"
	case ehDt:
		return "DATE"
	case ehInt:
		return "INTEGER"
	case ehFloat:
		return "DECIMAL"
	default:
		return "TEXT"
	}
}

type tabelaCSV struct {
	nome    string
	colunas []string
	tipos   []string
}

func (t tabelaCSV) createSQL() string {
	defs := make([]string, len(t.colunas))
	for i, c := range t.colunas {
		defs[i] = pq.QuoteIdentifier(c) + " " + t.tipos[i]
	}
	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (\n  %s\n)",
		pq.QuoteIdentifier(t.nome), strings.Join(defs, ",\n  "))
}

// linhasPorLote limita o lote para não passar do máximo de parâmetros.
func (t tabelaCSV) linhasPorLote(batchSize int) int {
	if batchSize < 1 {
		batchSize = 1000
	}
	if porParam := maxParametrosPG / max(len(t.colunas), 1); batchSize > porParam {
		return porParam
	}
	return batchSize
}

// valorSQL converte o texto do CSV para o valor do INSERT; nulos viram NULL.
func (t tabelaCSV) valorSQL(col int, v string) interface{} {
	if ehNuloSQL(v) {
		return nil
	}
	v = strings.TrimSpace(v)
	if t.tipos[col] == "DECIMAL" {
		v = strings.Replace(v, ",", ".", 1)
	}
	return v
}

func (t tabelaCSV) insertSQL(lote [][]string) (string, []interface{}) {
	cols := make([]string, len(t.colunas))
	for i, c := range t.colunas {
		cols[i] = pq.QuoteIdentifier(c)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "INSERT INTO %s (%s) VALUES ", pq.QuoteIdentifier(t.nome), strings.Join(cols, ", "))
	valores := make([]interface{}, 0, len(lote)*len(t.colunas))
	for i, row := range lote {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString("(")
		for j := range t.colunas {
			if j > 0 {
				b.WriteString(", ")
			}
			v := ""
			if j < len(row) {
				v = row[j]
			}
			valores = append(valores, t.valorSQL(j, v))
			fmt.Fprintf(&b, "$%d", len(valores))
		}
		b.WriteString(")")
	}
	return b.String(), valores
}

// abrirCSVCarga devolve um leitor posicionado após o cabeçalho, com delimitador detectado.
func abrirCSVCarga(r io.Reader) (*csv.Reader, []string, error) {
	br := bufio.NewReader(semBOM(r))
	primeira, err := br.Peek(4096)
	if err != nil && err != io.EOF && err != bufio.ErrBufferFull {
		return nil, nil, err
	}
	cabecalho, _, _ := strings.Cut(string(primeira), "\n")
	cr := novoLeitorCSV(br, detectarDelimitador(cabecalho))
	header, err := cr.Read()
	if err != nil {
		return nil, nil, fmt.Errorf("erro ao ler cabeçalho: %w", err)
	}
	return cr, header, nil
}

// montarTabela lê até 50 linhas de amostra para inferir os tipos.
func montarTabela(nome string, header []string, amostra [][]string) tabelaCSV {
	t := tabelaCSV{nome: limparNomeColuna(nome)}
	sufixos := map[string]int{}
	usados := map[string]bool{}
	for i, h := range header {
		base := limparNomeColuna(h)
		c := base
		// o sufixo pode coincidir com uma coluna real (A;A;A_1)
		for n := sufixos[base]; usados[c]; c = fmt.Sprintf("%s_%d", base, n) {
			n++
			sufixos[base] = n
		}
		usados[c] = true
		t.colunas = append(t.colunas, c)
		t.tipos = append(t.tipos, inferirTipo(amostra, i))
	}
	return t
}

// carregarCSV cria o banco e a tabela se preciso e importa o CSV em uma transação.
func carregarCSV(ctx context.Context, cfg DatabaseConfig, tabela, arquivo string, log *zap.Logger) (int, error) {
	f, err := os.Open(arquivo)
	if err != nil {
		return 0, fmt.Errorf("erro ao abrir CSV: %w", err)
	}
	defer f.Close()

	cr, header, err := abrirCSVCarga(f)
	if err != nil {
		return 0, err
	}
	var amostra [][]string
	for len(amostra) < 50 {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return 0, err
		}
		amostra = append(amostra, row)
	}
	t := montarTabela(tabela, header, amostra)

	if err := criarBanco(ctx, cfg); err != nil {
		return 0, err
	}
	db, err := conectaDB(ctx, cfg)
	if err != nil {
		return 0, err
	}
	defer db.Close()

	if _, err := db.ExecContext(ctx, t.createSQL()); err != nil {
		return 0, fmt.Errorf("erro ao criar tabela: %w", err)
	}
	fmt.Printf("[OK] Tabela '%s' com %d colunas\n", t.nome, len(t.colunas))
	log.Debug("estrutura da tabela", zap.String("sql", t.createSQL()))

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	tamanho := t.linhasPorLote(cfg.BatchSize)
	total := 0
	inserir := func(lote [][]string) error {
		if len(lote) == 0 {
			return nil
		}
		q, args := t.insertSQL(lote)
		if _, err := tx.ExecContext(ctx, q, args...); err != nil {
			return fmt.Errorf("erro no lote iniciado no registro %d: %w", total+1, err)
		}
		total += len(lote)
		fmt.Printf("\r[OK] Importados %d registros...", total)
		return nil
	}

	lote := amostra
	for {
		if len(lote) >= tamanho {
			if err := inserir(lote[:tamanho]); err != nil {
				return total, err
			}
			lote = append([][]string(nil), lote[tamanho:]...)
			continue
		}
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return total, fmt.Errorf("erro ao ler CSV: %w", err)
		}
		lote = append(lote, row)
	}
	if err := inserir(lote); err != nil {
		return total, err
	}

	if err := tx.Commit(); err != nil {
		return total, err
	}
	fmt.Printf("\r[OK] Importados %d registros no total\n", total)
	return total, nil
}
