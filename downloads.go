package main

import (
	"archive/zip"
	"context"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/carlmjohnson/requests"
	"go.uber.org/zap"
)

type Job struct {
	ano  int
	url  string
	file string
	dest string
}

type resultadoJob struct {
	job     Job
	tamanho int64
	err     error
}

// httpCliente é usado por todos os downloads HTTP; os testes o substituem.
var httpCliente = http.DefaultClient

// baixarURL salva url em destino. Aceita http(s):// e ftp://.
func baixarURL(ctx context.Context, url, destino string) error {
	if err := os.MkdirAll(filepath.Dir(destino), 0755); err != nil {
		return fmt.Errorf("erro ao criar diretório: %w", err)
	}

	if strings.HasPrefix(url, "ftp://") {
		host, remoto, err := hostPorta(url)
		if err != nil {
			return err
		}
		_, err = baixarFTP(ctx, host, remoto, destino)
		return err
	}

	f, err := os.Create(destino)
	if err != nil {
		return err
	}
	err = requests.
		URL(url).
		Client(httpCliente).
		UserAgent("dadosmg/1.0").
		ToWriter(f).
		Fetch(ctx)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(destino)
		return fmt.Errorf("erro ao baixar %s: %w", url, err)
	}
	return nil
}

// unzip extrai src em dest, recusando entradas que escapem do diretório.
func unzip(src, dest string) error {
	r, err := zip.OpenReader(src)
	if err != nil {
		return err
	}
	defer r.Close()

	destAbs, err := filepath.Abs(dest)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(destAbs, 0755); err != nil {
		return err
	}

	for _, f := range r.File {
		fpath := filepath.Join(destAbs, filepath.FromSlash(f.Name))
		if fpath != destAbs && !strings.HasPrefix(fpath, destAbs+string(os.PathSeparator)) {
			return fmt.Errorf("caminho ilegal no zip: %s", f.Name)
		}

		if f.FileInfo().IsDir() {
			if err := os.MkdirAll(fpath, 0755); err != nil {
				return err
			}
			continue
		}

		if err := os.MkdirAll(filepath.Dir(fpath), 0755); err != nil {
			return err
		}
		if err := extrairArquivo(f, fpath); err != nil {
			return err
		}
	}
	return nil
}

func extrairArquivo(f *zip.File, fpath string) error {
	rc, err := f.Open()
	if err != nil {
		return err
	}
	defer rc.Close()

	out, err := os.OpenFile(fpath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, rc); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

type arquivoListado struct {
	Caminho string
	Tamanho int64
}

// listarArquivos percorre dir recursivamente em ordem, ignorando os nomes em ignorar.
func listarArquivos(dir string, ignorar ...string) ([]arquivoListado, error) {
	var lista []arquivoListado
	err := filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || contem(ignorar, d.Name()) {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		lista = append(lista, arquivoListado{Caminho: p, Tamanho: info.Size()})
		return nil
	})
	sort.Slice(lista, func(i, j int) bool { return lista[i].Caminho < lista[j].Caminho })
	return lista, err
}

// baixarEExtrair baixa um zip para destDir, extrai e devolve os arquivos extraídos.
func baixarEExtrair(ctx context.Context, url, destDir string) ([]arquivoListado, error) {
	nomeZip := path.Base(url)
	zipPath := filepath.Join(destDir, nomeZip)

	fmt.Printf("[DOWNLOAD] %s\nDestino: %s\n", url, zipPath)
	if err := baixarURL(ctx, url, zipPath); err != nil {
		return nil, err
	}
	if info, err := os.Stat(zipPath); err == nil {
		fmt.Printf("[OK] Download concluido: %.2f MB\n", emMB(info.Size()))
	}

	fmt.Println("\n[EXTRAINDO] Descompactando arquivos...")
	if err := unzip(zipPath, destDir); err != nil {
		return nil, fmt.Errorf("erro ao extrair %s: %w", zipPath, err)
	}
	return listarArquivos(destDir, nomeZip)
}

func baixarDocsSinan(ctx context.Context, cfg *Config) error {
	dir := cfg.caminho(cfg.Sinan.DocsDir)
	arquivos, err := baixarEExtrair(ctx, cfg.Sinan.DocsURL, dir)
	if err != nil {
		return err
	}

	fmt.Println("\n[ARQUIVOS] Lista de arquivos extraidos:")
	for _, a := range arquivos {
		fmt.Printf("  - %s (%s)\n", filepath.Base(a.Caminho), formatarTamanho(a.Tamanho))
	}
	fmt.Printf("\n[SUCESSO] Documentacao extraida em: %s\n", dir)
	return nil
}

func baixarTabwin(ctx context.Context, cfg *Config) ([]string, error) {
	dir := cfg.caminho(cfg.Sinan.TabwinDir)
	arquivos, err := baixarEExtrair(ctx, cfg.Sinan.TabwinURL, dir)
	if err != nil {
		return nil, err
	}

	var executaveis []string
	fmt.Println("\n[ARQUIVOS] Conteudo extraido:")
	for _, a := range arquivos {
		fmt.Printf("  - %s (%s)\n", filepath.Base(a.Caminho), formatarTamanho(a.Tamanho))
		if strings.EqualFold(filepath.Ext(a.Caminho), ".exe") {
			executaveis = append(executaveis, a.Caminho)
		}
	}
	fmt.Printf("\n[SUCESSO] TabWin extraido em: %s\n", dir)
	if len(executaveis) > 0 {
		fmt.Println("\nExecutaveis encontrados:")
		for _, exe := range executaveis {
			fmt.Printf("   %s\n", exe)
		}
	}
	return executaveis, nil
}

func jobsAcgrBrasil(cfg *Config, anos []int) []Job {
	dest := cfg.caminho(cfg.Sinan.DbcDir)
	base := strings.TrimSuffix(cfg.Sinan.PrelimURL, "/")
	var jobs []Job
	for _, ano := range anos {
		nome := fmt.Sprintf("ACGRBR%02d.dbc", ano%100)
		jobs = append(jobs, Job{
			ano:  ano,
			url:  base + "/" + nome,
			file: filepath.Join(dest, nome),
			dest: dest,
		})
	}
	return jobs
}

// executarJobs baixa os jobs com no máximo maxWorkers simultâneos.
func executarJobs(ctx context.Context, jobs []Job, maxWorkers int, log *zap.Logger) []resultadoJob {
	if maxWorkers < 1 {
		maxWorkers = 1
	}
	sem := make(chan struct{}, maxWorkers)
	var wg sync.WaitGroup
	resultados := make([]resultadoJob, len(jobs))

	for i, job := range jobs {
		wg.Add(1)
		go func(i int, job Job) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			res := resultadoJob{job: job}
			if err := baixarURL(ctx, job.url, job.file); err != nil {
				res.err = err
				if rmErr := os.Remove(job.file); rmErr != nil && !os.IsNotExist(rmErr) {
					log.Warn("erro ao excluir arquivo parcial", zap.String("arquivo", job.file), zap.Error(rmErr))
				}
			} else if info, err := os.Stat(job.file); err == nil {
				res.tamanho = info.Size()
			}
			resultados[i] = res
		}(i, job)
	}

	wg.Wait()
	return resultados
}

func baixarAcgrBrasil(ctx context.Context, cfg *Config, anos []int, log *zap.Logger) (sucessos, falhas int) {
	if len(anos) == 0 {
		anos = cfg.Sinan.AnosPrelim
	}
	jobs := jobsAcgrBrasil(cfg, anos)

	fmt.Printf("%s\nDOWNLOAD DE DADOS SINAN - ACIDENTES DE TRABALHO GRAVES (BRASIL)\n%s\n",
		strings.Repeat("=", 70), strings.Repeat("=", 70))
	fmt.Printf("Destino: %s\n", cfg.caminho(cfg.Sinan.DbcDir))

	for _, res := range executarJobs(ctx, jobs, cfg.Workers, log) {
		nome := filepath.Base(res.job.file)
		if res.err != nil {
			fmt.Printf("  [ERRO] %s: %v\n", nome, res.err)
			falhas++
			continue
		}
		fmt.Printf("  [OK] %s: %s\n", nome, formatarTamanho(res.tamanho))
		sucessos++
	}

	fmt.Printf("\n%s\nRESUMO DO DOWNLOAD\n%s\n", strings.Repeat("=", 70), strings.Repeat("=", 70))
	fmt.Printf("  Sucesso: %d/%d\n  Falhas: %d/%d\n", sucessos, len(jobs), falhas, len(jobs))
	if sucessos > 0 {
		fmt.Println("\n[PROXIMO PASSO] Converter DBC para CSV: dadosmg sinan converter")
	}
	return sucessos, falhas
}
