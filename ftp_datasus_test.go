package main

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/jlaffaye/ftp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type ftpFalso struct {
	listagens map[string][]*ftp.Entry
	arquivos  map[string]string
	conexoes  int
	hosts     []string
}

func (f *ftpFalso) List(caminho string) ([]*ftp.Entry, error) {
	e, ok := f.listagens[caminho]
	if !ok {
		return nil, fmt.Errorf("550 %s: no such directory", caminho)
	}
	return e, nil
}

func (f *ftpFalso) Retr(caminho string) (io.ReadCloser, error) {
	c, ok := f.arquivos[caminho]
	if !ok {
		return nil, fmt.Errorf("550 %s: no such file", caminho)
	}
	return io.NopCloser(strings.NewReader(c)), nil
}

func (f *ftpFalso) Quit() error { return nil }

func usarFTPFalso(t *testing.T, f *ftpFalso) {
	t.Helper()
	orig := conectarFTP
	conectarFTP = func(ctx context.Context, host string, timeout time.Duration) (conexaoFTP, error) {
		f.conexoes++
		f.hosts = append(f.hosts, host)
		return f, nil
	}
	t.Cleanup(func() { conectarFTP = orig })
}

func pasta(nome string) *ftp.Entry   { return &ftp.Entry{Name: nome, Type: ftp.EntryTypeFolder} }
func arquivo(nome string) *ftp.Entry { return &ftp.Entry{Name: nome, Type: ftp.EntryTypeFile} }

func novoFTPTeste() *datasusFTP {
	return novoDatasusFTP(padraoConfig(), zap.NewNop())
}

func TestSepararEntradas(t *testing.T) {
	pastas, arquivos := separarEntradas([]*ftp.Entry{
		pasta("."), pasta(".."), pasta("SINAN"),
		arquivo("LEIAME.txt"),
		{Name: "atalho", Type: ftp.EntryTypeLink},
	})
	assert.Equal(t, []string{"SINAN"}, pastas)
	assert.Equal(t, []string{"LEIAME.txt", "atalho"}, arquivos)
}

func TestFiltrarArquivosDbc(t *testing.T) {
	arquivos := []string{"ACGRBR22.dbc", "ACGRBR23.DBC", "ACGRMG23.dbc", "LEIAME.pdf", "ACGR2023.zip"}

	tests := []struct {
		name string
		ano  int
		want []string
	}{
		{"sem ano", 0, []string{"ACGRBR22.dbc", "ACGRBR23.DBC", "ACGRMG23.dbc"}},
		{"com ano", 2023, []string{"ACGRBR23.DBC", "ACGRMG23.dbc"}},
		{"ano sem arquivos", 2019, nil},
		{"ano com um digito", 2005, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, filtrarArquivosDbc(arquivos, tt.ano))
		})
	}
}

func TestListarArquivosFTP(t *testing.T) {
	f := &ftpFalso{listagens: map[string][]*ftp.Entry{
		"/dissemin/publicos/SINAN/DADOS/FINAIS/ACGR/": {
			arquivo("ACGRBR21.dbc"), arquivo("ACGRBR22.dbc"), arquivo("LEIAME.txt"), pasta("antigos"),
		},
	}}
	usarFTPFalso(t, f)

	arquivos, err := novoFTPTeste().listarArquivosFTP(context.Background(), "ACGR", 2022)
	require.NoError(t, err)
	assert.Equal(t, []string{"ACGRBR22.dbc"}, arquivos)
	assert.Equal(t, []string{"ftp.datasus.gov.br"}, f.hosts)
}

func TestBaixarSinanAno(t *testing.T) {
	base := "/dissemin/publicos/SINAN/DADOS/FINAIS/ACGR/"
	f := &ftpFalso{
		listagens: map[string][]*ftp.Entry{base: {arquivo("ACGRBR22.dbc"), arquivo("ACGRMG22.dbc")}},
		arquivos:  map[string]string{base + "ACGRBR22.dbc": "conteudo dbc"},
	}
	usarFTPFalso(t, f)
	dest := t.TempDir()

	baixados, err := novoFTPTeste().baixarSinanAno(context.Background(), "acgr", 2022, dest)
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(dest, "ACGRBR22.dbc")}, baixados)

	data, err := os.ReadFile(filepath.Join(dest, "ACGRBR22.dbc"))
	require.NoError(t, err)
	assert.Equal(t, "conteudo dbc", string(data))

	// o arquivo que falhou não deixa parcial
	assert.NoFileExists(t, filepath.Join(dest, "ACGRMG22.dbc"))
}

func TestBaixarSinanAnoAgravoInvalido(t *testing.T) {
	f := &ftpFalso{}
	usarFTPFalso(t, f)

	_, err := novoFTPTeste().baixarSinanAno(context.Background(), "ZIKA", 2022, t.TempDir())
	require.Error(t, err)
	assert.Zero(t, f.conexoes)
}

func TestExplorarArvoreSinan(t *testing.T) {
	f := &ftpFalso{listagens: map[string][]*ftp.Entry{
		"/":                  {pasta("dissemin"), pasta("tabwin")},
		"/dissemin":          {pasta("publicos")},
		"/dissemin/publicos": {pasta("SIM"), arquivo("LEIAME.txt")},
	}}
	usarFTPFalso(t, f)

	var buf bytes.Buffer
	require.NoError(t, novoFTPTeste().explorarArvoreSinan(context.Background(), &buf))

	out := buf.String()
	assert.Contains(t, out, "[EXPLORANDO] /dissemin/publicos")
	assert.Contains(t, out, "LEIAME.txt")
	assert.NotContains(t, out, "[EXPLORANDO] /dissemin/publicos/SINAN")
	assert.Equal(t, 3, f.conexoes)
}

func TestImprimirListagemLimita(t *testing.T) {
	var pastas, arquivos []string
	for i := 0; i < 25; i++ {
		pastas = append(pastas, fmt.Sprintf("P%02d", i))
		arquivos = append(arquivos, fmt.Sprintf("A%02d.dbc", i))
	}

	var buf bytes.Buffer
	imprimirListagem(&buf, "/x", pastas, arquivos)
	out := buf.String()

	assert.Contains(t, out, "P19/")
	assert.NotContains(t, out, "P20/")
	assert.Contains(t, out, "... e mais 5 pastas")
	assert.Contains(t, out, "A09.dbc")
	assert.NotContains(t, out, "A10.dbc")
	assert.Contains(t, out, "... e mais 15 arquivos")
}

func TestHostPorta(t *testing.T) {
	tests := []struct {
		url     string
		host    string
		caminho string
		erro    bool
	}{
		{"ftp://ftp.datasus.gov.br/dissemin/a.zip", "ftp.datasus.gov.br", "/dissemin/a.zip", false},
		{"ftp://localhost:2121/x", "localhost:2121", "/x", false},
		{"ftp://host", "host", "/", false},
		{"http://host/x", "", "", true},
		{"ftp:///x", "", "", true},
		{"ftp://host:abc/x", "", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			host, caminho, err := hostPorta(tt.url)
			if tt.erro {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.host, host)
			assert.Equal(t, tt.caminho, caminho)
		})
	}
}
