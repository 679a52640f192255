package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"unicode"
)

var marcadoresCabecalho = []string{"MUNIC", "ANO", "NOTIF", "RESID", "TOTAL"}

const linhasDeteccaoTabnet = 10

// dividirLinhas quebra o texto mantendo os terminadores de cada linha.
func dividirLinhas(texto string) []string {
	if texto == "" {
		return nil
	}
	linhas := strings.SplitAfter(texto, "\n")
	if linhas[len(linhas)-1] == "" {
		linhas = linhas[:len(linhas)-1]
	}
	return linhas
}

func inicioDadosTabnet(linhas []string) int {
	for i, linha := range linhas {
		if !strings.ContainsAny(linha, ";,") || strings.HasPrefix(strings.TrimSpace(linha), `"SINAN`) {
			continue
		}
		up := strings.ToUpper(linha)
		for _, m := range marcadoresCabecalho {
			if strings.Contains(up, m) {
				return i
			}
		}
	}
	return 0
}

func linhaDeDados(linha string) bool {
	linha = strings.TrimSpace(linha)
	if linha == "" || strings.HasPrefix(linha, "Fonte:") || strings.HasPrefix(linha, "Nota") {
		return false
	}
	return strings.ContainsAny(linha, ";,") || strings.IndexFunc(linha, unicode.IsDigit) >= 0
}

// fimDadosTabnet devolve o índice exclusivo do fim dos dados. Sem linha de
// dados após o início, mantém só o cabeçalho em vez de ir até o fim do
// arquivo: o que sobra nesse caso é título ou rodapé.
func fimDadosTabnet(linhas []string, inicio int) int {
	for i := len(linhas) - 1; i > inicio; i-- {
		if linhaDeDados(linhas[i]) {
			return i + 1
		}
	}
	return inicio + 1
}

// ehExportTabnet reconhece um export bruto do TabNet pelas primeiras linhas.
func ehExportTabnet(linhas []string) bool {
	for i, linha := range linhas {
		if i == linhasDeteccaoTabnet {
			break
		}
		if strings.Contains(linha, "SINAN") || strings.Contains(linha, "Período:") || strings.Contains(linha, "Fonte:") {
			return true
		}
	}
	return false
}

// recortarTabnet devolve só o cabeçalho e as linhas de dados, com os
// terminadores originais.
func recortarTabnet(texto string) (string, error) {
	linhas := dividirLinhas(texto)
	if len(linhas) == 0 {
		return "", errSemDados
	}
	inicio := inicioDadosTabnet(linhas)
	return strings.Join(linhas[inicio:fimDadosTabnet(linhas, inicio)], ""), nil
}

func caminhoLimpo(entrada string) string {
	ext := filepath.Ext(entrada)
	stem := strings.TrimSuffix(filepath.Base(entrada), ext)
	return filepath.Join(filepath.Dir(entrada), stem+"_limpo"+ext)
}

// limparCsvTabnet remove título e rodapé de um export do TabNet e grava o
// resultado em UTF-8 com BOM. saida vazia gera <nome>_limpo.<ext>.
func limparCsvTabnet(entrada, saida string) (string, error) {
	fmt.Printf("[LIMPANDO] %s\n", entrada)
	if saida == "" {
		saida = caminhoLimpo(entrada)
	}

	texto, err := lerTexto(entrada)
	if err != nil {
		return "", fmt.Errorf("erro ao ler %s: %w", entrada, err)
	}
	linhas := dividirLinhas(texto)
	fmt.Printf("[INFO] Total de linhas: %d\n", len(linhas))
	if len(linhas) == 0 {
		return "", fmt.Errorf("%s: %w", entrada, errSemDados)
	}

	inicio := inicioDadosTabnet(linhas)
	fim := fimDadosTabnet(linhas, inicio)
	fmt.Printf("[INFO] Inicio dos dados na linha %d\n[INFO] Fim dos dados na linha %d\n", inicio+1, fim)

	dados := linhas[inicio:fim]
	if len(dados) == 0 {
		return "", fmt.Errorf("%s: %w", entrada, errSemDados)
	}

	conteudo := append(append([]byte{}, bomUTF8...), strings.Join(dados, "")...)
	if err := os.WriteFile(saida, conteudo, 0644); err != nil {
		return "", fmt.Errorf("erro ao salvar %s: %w", saida, err)
	}
	fmt.Printf("[OK] Arquivo limpo salvo: %s\n[INFO] Linhas mantidas: %d\n", saida, len(dados))

	if err := validarCsvLimpo(saida); err != nil {
		fmt.Printf("[AVISO] Arquivo salvo mas pode precisar de ajustes: %v\n", err)
	}
	return saida, nil
}

func validarCsvLimpo(caminho string) error {
	df, err := carregarDataFrame(caminho)
	if err != nil {
		return err
	}
	nomes := df.Names()
	fmt.Printf("[VALIDACAO] CSV valido: %d registros, %d colunas\n", df.Nrow(), df.Ncol())
	sufixo := ""
	if len(nomes) > 5 {
		nomes, sufixo = nomes[:5], "..."
	}
	fmt.Printf("[COLUNAS] %s%s\n", strings.Join(nomes, ", "), sufixo)
	return nil
}

type resultadoPasta struct {
	Limpos []string
	Falhas map[string]error
}

// processarPasta limpa todos os CSV de dir que ainda não foram limpos.
func processarPasta(dir string) (resultadoPasta, error) {
	res := resultadoPasta{Falhas: map[string]error{}}

	info, err := os.Stat(dir)
	if errors.Is(err, os.ErrNotExist) || (err == nil && !info.IsDir()) {
		return res, fmt.Errorf("pasta nao encontrada: %s", dir)
	}
	if err != nil {
		return res, err
	}

	arquivos, err := filepath.Glob(filepath.Join(dir, "*.csv"))
	if err != nil {
		return res, err
	}
	sort.Strings(arquivos)
	if len(arquivos) == 0 {
		fmt.Printf("[INFO] Nenhum arquivo CSV encontrado em %s\n", dir)
		return res, nil
	}
	fmt.Printf("[INFO] Encontrados %d arquivos CSV\n\n", len(arquivos))

	for _, arquivo := range arquivos {
		if strings.Contains(filepath.Base(arquivo), "_limpo") {
			continue
		}
		fmt.Println(strings.Repeat("=", 60))
		saida, err := limparCsvTabnet(arquivo, "")
		if err != nil {
			fmt.Printf("[ERRO] %v\n", err)
			res.Falhas[arquivo] = err
			continue
		}
		res.Limpos = append(res.Limpos, saida)
	}
	return res, nil
}
