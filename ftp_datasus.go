package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/jlaffaye/ftp"
	"go.uber.org/zap"
)

// conexaoFTP é o subconjunto do cliente FTP usado pelas ferramentas.
type conexaoFTP interface {
	List(caminho string) ([]*ftp.Entry, error)
	Retr(caminho string) (io.ReadCloser, error)
	Quit() error
}

type clienteFTP struct {
	conn *ftp.ServerConn
}

func (c clienteFTP) List(caminho string) ([]*ftp.Entry, error) {
	return c.conn.List(caminho)
}

func (c clienteFTP) Retr(caminho string) (io.ReadCloser, error) {
	r, err := c.conn.Retr(caminho)
	if err != nil {
		return nil, err
	}
	return r, nil
}

func (c clienteFTP) Quit() error {
	return c.conn.Quit()
}

// conectarFTP abre uma sessão anônima. Substituível nos testes.
var conectarFTP = func(ctx context.Context, host string, timeout time.Duration) (conexaoFTP, error) {
	if !strings.Contains(host, ":") {
		host += ":21"
	}
	conn, err := ftp.Dial(host, ftp.DialWithContext(ctx), ftp.DialWithTimeout(timeout))
	if err != nil {
		return nil, fmt.Errorf("erro ao conectar em %s: %w", host, err)
	}
	if err := conn.Login("anonymous", "anonymous"); err != nil {
		conn.Quit()
		return nil, fmt.Errorf("erro no login anonimo em %s: %w", host, err)
	}
	return clienteFTP{conn: conn}, nil
}

type datasusFTP struct {
	host     string
	basePath string
	log      *zap.Logger
}

func novoDatasusFTP(cfg *Config, log *zap.Logger) *datasusFTP {
	return &datasusFTP{host: cfg.Sinan.FTPHost, basePath: cfg.Sinan.BasePath, log: log}
}

// separarEntradas divide a listagem em pastas e arquivos.
func separarEntradas(entradas []*ftp.Entry) (pastas, arquivos []string) {
	for _, e := range entradas {
		if e.Name == "." || e.Name == ".." {
			continue
		}
		if e.Type == ftp.EntryTypeFolder {
			pastas = append(pastas, e.Name)
		} else {
			arquivos = append(arquivos, e.Name)
		}
	}
	return pastas, arquivos
}

func (d *datasusFTP) explorarFTP(ctx context.Context, caminho string) (pastas, arquivos []string, err error) {
	conn, err := conectarFTP(ctx, d.host, 30*time.Second)
	if err != nil {
		return nil, nil, err
	}
	defer conn.Quit()

	entradas, err := conn.List(caminho)
	if err != nil {
		return nil, nil, fmt.Errorf("erro ao listar %s: %w", caminho, err)
	}
	pastas, arquivos = separarEntradas(entradas)
	d.log.Debug("listagem ftp", zap.String("caminho", caminho),
		zap.Int("pastas", len(pastas)), zap.Int("arquivos", len(arquivos)))
	return pastas, arquivos, nil
}

func imprimirListagem(w io.Writer, caminho string, pastas, arquivos []string) {
	fmt.Fprintf(w, "\n[EXPLORANDO] %s\n%s\n", caminho, strings.Repeat("-", 60))
	if len(pastas) > 0 {
		fmt.Fprintf(w, "\n[PASTAS] (%d):\n", len(pastas))
		for _, p := range limitar(pastas, 20) {
			fmt.Fprintf(w, "  %s/\n", p)
		}
		if len(pastas) > 20 {
			fmt.Fprintf(w, "  ... e mais %d pastas\n", len(pastas)-20)
		}
	}
	if len(arquivos) > 0 {
		fmt.Fprintf(w, "\n[ARQUIVOS] (%d):\n", len(arquivos))
		for _, a := range limitar(arquivos, 10) {
			fmt.Fprintf(w, "  %s\n", a)
		}
		if len(arquivos) > 10 {
			fmt.Fprintf(w, "  ... e mais %d arquivos\n", len(arquivos)-10)
		}
	}
}

func limitar(s []string, n int) []string {
	if len(s) > n {
		return s[:n]
	}
	return s
}

// explorarArvoreSinan desce da raiz até SINAN/DADOS, parando quando o próximo nível não existe.
func (d *datasusFTP) explorarArvoreSinan(ctx context.Context, w io.Writer) error {
	niveis := []string{"dissemin", "publicos", "SINAN", "DADOS"}
	atual := "/"
	for i := 0; ; i++ {
		pastas, arquivos, err := d.explorarFTP(ctx, atual)
		if err != nil {
			return err
		}
		imprimirListagem(w, atual, pastas, arquivos)
		if i == len(niveis) || !contem(pastas, niveis[i]) {
			return nil
		}
		atual = path.Join(atual, niveis[i])
	}
}

func contem(s []string, v string) bool {
	for _, x := range s {
		if x == v {
			return true
		}
	}
	return false
}

// filtrarArquivosDbc mantém os .dbc e, com ano > 0, os que contêm os dois últimos dígitos do ano.
func filtrarArquivosDbc(arquivos []string, ano int) []string {
	var dbc []string
	sufixoAno := ""
	if ano > 0 {
		sufixoAno = fmt.Sprintf("%02d", ano%100)
	}
	for _, nome := range arquivos {
		if !strings.HasSuffix(strings.ToUpper(nome), ".DBC") {
			continue
		}
		if sufixoAno != "" && !strings.Contains(nome, sufixoAno) {
			continue
		}
		dbc = append(dbc, nome)
	}
	return dbc
}

func (d *datasusFTP) dirAgravo(agravo string) string {
	return path.Join(d.basePath, agravo) + "/"
}

func (d *datasusFTP) listarArquivosFTP(ctx context.Context, agravo string, ano int) ([]string, error) {
	_, arquivos, err := d.explorarFTP(ctx, d.dirAgravo(agravo))
	if err != nil {
		return nil, err
	}
	dbc := filtrarArquivosDbc(arquivos, ano)
	fmt.Printf("[OK] Encontrados %d arquivos\n", len(dbc))
	return dbc, nil
}

func (d *datasusFTP) baixarArquivoFTP(ctx context.Context, agravo, nome, destino string) (string, error) {
	return baixarFTP(ctx, d.host, d.dirAgravo(agravo)+nome, filepath.Join(destino, nome))
}

// baixarFTP copia um arquivo remoto para destino, removendo o parcial em caso de erro.
func baixarFTP(ctx context.Context, host, remoto, destino string) (string, error) {
	if err := os.MkdirAll(filepath.Dir(destino), 0755); err != nil {
		return "", fmt.Errorf("erro ao criar diretório: %w", err)
	}

	conn, err := conectarFTP(ctx, host, 60*time.Second)
	if err != nil {
		return "", err
	}
	defer conn.Quit()

	r, err := conn.Retr(remoto)
	if err != nil {
		return "", fmt.Errorf("erro no RETR %s: %w", remoto, err)
	}
	defer r.Close()

	f, err := os.Create(destino)
	if err != nil {
		return "", err
	}
	n, err := io.Copy(f, r)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(destino)
		return "", fmt.Errorf("erro ao baixar %s: %w", remoto, err)
	}
	fmt.Printf("[OK] Download concluido: %s (%.2f MB)\n", destino, emMB(n))
	return destino, nil
}

func (d *datasusFTP) baixarSinanAno(ctx context.Context, agravo string, ano int, destino string) ([]string, error) {
	agravo, err := validarAgravo(agravo)
	if err != nil {
		return nil, err
	}
	fmt.Printf("\n%s\nBaixando dados de %s - Ano %d\n%s\n\n",
		strings.Repeat("=", 60), nomeAgravo(agravo), ano, strings.Repeat("=", 60))

	arquivos, err := d.listarArquivosFTP(ctx, agravo, ano)
	if err != nil {
		return nil, err
	}
	if len(arquivos) == 0 {
		fmt.Printf("[AVISO] Nenhum arquivo encontrado para %s/%d\n", agravo, ano)
		return nil, nil
	}

	fmt.Println("\n[INFO] Arquivos disponiveis:")
	for i, a := range arquivos {
		fmt.Printf("  %d. %s\n", i+1, a)
	}

	var baixados []string
	for _, a := range arquivos {
		caminho, err := d.baixarArquivoFTP(ctx, agravo, a, destino)
		if err != nil {
			d.log.Warn("falha no download", zap.String("arquivo", a), zap.Error(err))
			continue
		}
		baixados = append(baixados, caminho)
	}
	fmt.Printf("\n[SUCESSO] %d arquivo(s) baixado(s)\n", len(baixados))
	return baixados, nil
}

// hostPorta extrai host e caminho de uma URL ftp://.
func hostPorta(u string) (host, caminho string, err error) {
	resto, ok := strings.CutPrefix(u, "ftp://")
	if !ok {
		return "", "", fmt.Errorf("url ftp invalida: %s", u)
	}
	host, caminho, _ = strings.Cut(resto, "/")
	if host == "" {
		return "", "", fmt.Errorf("url ftp sem host: %s", u)
	}
	if h, p, ok := strings.Cut(host, ":"); ok {
		if _, err := strconv.Atoi(p); err != nil || h == "" {
			return "", "", fmt.Errorf("porta invalida em %s", u)
		}
	}
	return host, "/" + caminho, nil
}
