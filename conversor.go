package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/Valentin-Kaiser/go-dbase/dbase"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/text/encoding/charmap"
)

// tabelaDBF isola a leitura de DBF da biblioteca.
type tabelaDBF interface {
	Colunas() []string
	Fim() bool
	Proxima() (valores []interface{}, apagado bool, err error)
	Close() error
}

type tabelaDbase struct {
	t *dbase.File
}

func (t tabelaDbase) Colunas() []string {
	var nomes []string
	for _, c := range t.t.Columns() {
		nomes = append(nomes, c.Name())
	}
	return nomes
}

func (t tabelaDbase) Fim() bool { return t.t.EOF() }

func (t tabelaDbase) Proxima() ([]interface{}, bool, error) {
	row, err := t.t.Next()
	if err != nil {
		return nil, false, err
	}
	return row.Values(), row.Deleted, nil
}

func (t tabelaDbase) Close() error { return t.t.Close() }

var abrirDBF = func(caminho string) (tabelaDBF, error) {
	t, err := dbase.OpenTable(&dbase.Config{
		Filename:   caminho,
		TrimSpaces: true,
		Converter:  dbase.NewDefaultConverter(charmap.ISO8859_1),
	})
	if err != nil {
		return nil, err
	}
	return tabelaDbase{t: t}, nil
}

type conversor struct {
	exe    string
	dbcDir string
	dbfDir string
	csvDir string
	limite int
	log    *zap.Logger
}

func novoConversor(cfg *Config, log *zap.Logger) *conversor {
	return &conversor{
		exe:    cfg.caminho(cfg.Sinan.Dbf2Dbc),
		dbcDir: cfg.caminho(cfg.Sinan.DbcDir),
		dbfDir: cfg.caminho(cfg.Sinan.DbfDir),
		csvDir: cfg.caminho(cfg.Sinan.CsvDir),
		limite: cfg.Workers,
		log:    log,
	}
}

func trocarExtensao(nome, ext string) string {
	return strings.TrimSuffix(nome, filepath.Ext(nome)) + ext
}

// converterDbcParaDbf descomprime o DBC chamando o dbf2dbc do TabWin.
func (c *conversor) converterDbcParaDbf(ctx context.Context, dbc string) (string, error) {
	if _, err := os.Stat(c.exe); err != nil {
		return "", fmt.Errorf("%w em %s (execute: dadosmg sinan tabwin)", errConversorAusente, c.exe)
	}
	if err := os.MkdirAll(c.dbfDir, 0755); err != nil {
		return "", err
	}

	exe, err := filepath.Abs(c.exe)
	if err != nil {
		return "", err
	}
	dbcAbs, err := filepath.Abs(dbc)
	if err != nil {
		return "", err
	}
	dbf, err := filepath.Abs(filepath.Join(c.dbfDir, trocarExtensao(filepath.Base(dbc), ".dbf")))
	if err != nil {
		return "", err
	}

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, exe, dbcAbs, dbf)
	cmd.Dir = filepath.Dir(exe)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	runErr := cmd.Run()

	info, err := os.Stat(dbf)
	if err != nil {
		return "", fmt.Errorf("arquivo DBF nao foi criado (exec: %v) stdout: %q stderr: %q",
			runErr, stdout.String(), stderr.String())
	}
	c.log.Debug("dbf criado", zap.String("arquivo", dbf), zap.Float64("mb", emMB(info.Size())))
	return dbf, nil
}

func formatarValorDBF(v interface{}) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case []byte:
		return strings.TrimSpace(string(x))
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(x), 'f', -1, 32)
	case time.Time:
		if x.IsZero() {
			return ""
		}
		if x.Hour() == 0 && x.Minute() == 0 && x.Second() == 0 {
			return x.Format("2006-01-02")
		}
		return x.Format("2006-01-02 15:04:05")
	case bool:
		return strconv.FormatBool(x)
	default:
		return fmt.Sprint(x)
	}
}

type resumoCSV struct {
	Caminho   string
	Registros int
	Colunas   []string
	Tamanho   int64
}

// converterDbfParaCsv grava os registros não apagados em CSV UTF-8 com BOM.
func (c *conversor) converterDbfParaCsv(dbf string) (resumoCSV, error) {
	res := resumoCSV{Caminho: filepath.Join(c.csvDir, trocarExtensao(filepath.Base(dbf), ".csv"))}
	if err := os.MkdirAll(c.csvDir, 0755); err != nil {
		return res, err
	}

	tabela, err := abrirDBF(dbf)
	if err != nil {
		return res, fmt.Errorf("erro ao abrir %s: %w", dbf, err)
	}
	defer tabela.Close()

	f, err := os.Create(res.Caminho)
	if err != nil {
		return res, err
	}
	defer f.Close()

	cw, err := escritorCSV(f, ',')
	if err != nil {
		return res, err
	}
	res.Colunas = tabela.Colunas()
	if err := cw.Write(res.Colunas); err != nil {
		return res, err
	}

	linha := make([]string, len(res.Colunas))
	for !tabela.Fim() {
		valores, apagado, err := tabela.Proxima()
		if err != nil {
			return res, fmt.Errorf("erro no registro %d de %s: %w", res.Registros+1, dbf, err)
		}
		if apagado {
			continue
		}
		for i := range linha {
			linha[i] = ""
			if i < len(valores) {
				linha[i] = formatarValorDBF(valores[i])
			}
		}
		if err := cw.Write(linha); err != nil {
			return res, err
		}
		res.Registros++
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return res, err
	}
	if err := f.Close(); err != nil {
		return res, err
	}

	if info, err := os.Stat(res.Caminho); err == nil {
		res.Tamanho = info.Size()
	}
	cols, sufixo := res.Colunas, ""
	if len(cols) > 10 {
		cols, sufixo = cols[:10], "..."
	}
	fmt.Printf("  [INFO] %d registros, %d colunas\n  [OK] CSV criado: %.2f MB\n  [COLUNAS] %s%s\n",
		res.Registros, len(res.Colunas), emMB(res.Tamanho), strings.Join(cols, ", "), sufixo)
	return res, nil
}

func (c *conversor) converterArquivo(ctx context.Context, dbc string) (resumoCSV, error) {
	fmt.Printf("\n%s\nCONVERTENDO: %s\n%s\n", strings.Repeat("=", 70), filepath.Base(dbc), strings.Repeat("=", 70))

	dbf, err := c.converterDbcParaDbf(ctx, dbc)
	if err != nil {
		return resumoCSV{}, err
	}
	res, err := c.converterDbfParaCsv(dbf)
	if err != nil {
		return resumoCSV{}, err
	}
	fmt.Printf("\n[SUCESSO] CSV final: %s\n", res.Caminho)
	return res, nil
}

type resultadoConversao struct {
	Sucessos []resumoCSV
	Falhas   map[string]error
}

// processarTodosDbc converte os *.dbc do diretório configurado; falhas não interrompem o lote.
func (c *conversor) processarTodosDbc(ctx context.Context) (resultadoConversao, error) {
	res := resultadoConversao{Falhas: map[string]error{}}

	arquivos, err := filepath.Glob(filepath.Join(c.dbcDir, "*.dbc"))
	if err != nil {
		return res, err
	}
	if len(arquivos) == 0 {
		return res, fmt.Errorf("%w: nenhum DBC em %s", errSemArquivo, c.dbcDir)
	}
	sort.Strings(arquivos)

	fmt.Printf("%s\nCONVERSOR DBC -> CSV (DATASUS)\n%s\n", strings.Repeat("=", 70), strings.Repeat("=", 70))
	fmt.Printf("\nEncontrados %d arquivos DBC\nOrigem: %s\nDestino: %s\n", len(arquivos), c.dbcDir, c.csvDir)

	var mu sync.Mutex
	resumos := make([]*resumoCSV, len(arquivos))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(c.limite, 1))
	for i, dbc := range arquivos {
		i, dbc := i, dbc
		g.Go(func() error {
			r, err := c.converterArquivo(gctx, dbc)
			if err != nil {
				if errors.Is(err, context.Canceled) {
					return err
				}
				c.log.Warn("falha na conversao", zap.String("arquivo", dbc), zap.Error(err))
				mu.Lock()
				res.Falhas[dbc] = err
				mu.Unlock()
				return nil
			}
			resumos[i] = &r
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return res, err
	}
	for _, r := range resumos {
		if r != nil {
			res.Sucessos = append(res.Sucessos, *r)
		}
	}

	imprimirResumoConversao(res, len(arquivos))
	return res, nil
}

func imprimirResumoConversao(res resultadoConversao, total int) {
	fmt.Printf("\n%s\nRESUMO FINAL\n%s\n", strings.Repeat("=", 70), strings.Repeat("=", 70))
	fmt.Printf("Total: %d arquivos\nSucesso: %d\nFalhas: %d\n", total, len(res.Sucessos), len(res.Falhas))

	if len(res.Sucessos) > 0 {
		fmt.Println("\n[ARQUIVOS CSV CRIADOS]")
		for _, s := range res.Sucessos {
			fmt.Printf("  - %s (%.2f MB)\n", filepath.Base(s.Caminho), emMB(s.Tamanho))
		}
	}
	if len(res.Falhas) > 0 {
		fmt.Println("\n[FALHAS]")
		for _, nome := range chavesOrdenadas(res.Falhas) {
			fmt.Printf("  - %s\n", filepath.Base(nome))
		}
		fmt.Println("\n[ALTERNATIVA MANUAL]")
		fmt.Println("1. Abra: tabwin\\TabWin415.exe")
		fmt.Println("2. Arquivo > Abrir > Selecione o .dbc")
		fmt.Println("3. Arquivo > Salvar Como > CSV")
	}
}
