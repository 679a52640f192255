package main

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
)

const colArquivoOrigem = "ARQUIVO_ORIGEM"

// consolidarCsvs empilha os CSVs na ordem dada, marcando a origem de cada
// linha. Colunas ausentes em algum arquivo ficam vazias.
func consolidarCsvs(arquivos []string) (dataframe.DataFrame, error) {
	if len(arquivos) == 0 {
		return dataframe.DataFrame{}, errSemArquivo
	}

	var partes []dataframe.DataFrame
	var nomes []string
	vistos := map[string]bool{}
	for _, arquivo := range arquivos {
		df, err := carregarDataFrame(arquivo)
		if err != nil {
			return dataframe.DataFrame{}, err
		}
		origem := make([]string, df.Nrow())
		for i := range origem {
			origem[i] = filepath.Base(arquivo)
		}
		df = df.Mutate(series.New(origem, series.String, colArquivoOrigem))
		for _, n := range df.Names() {
			if !vistos[n] {
				vistos[n] = true
				nomes = append(nomes, n)
			}
		}
		partes = append(partes, df)
		fmt.Printf("  [OK] %s: %d registros\n", filepath.Base(arquivo), df.Nrow())
	}

	var merged dataframe.DataFrame
	for i, df := range partes {
		df = completarColunas(df, nomes)
		if i == 0 {
			merged = df
			continue
		}
		merged = merged.RBind(df)
		if merged.Err != nil {
			return merged, fmt.Errorf("erro ao juntar %s: %w", arquivos[i], merged.Err)
		}
	}
	return merged, nil
}

// completarColunas adiciona as colunas que faltam e fixa a ordem.
func completarColunas(df dataframe.DataFrame, nomes []string) dataframe.DataFrame {
	for _, n := range nomes {
		if !temColuna(df, n) {
			df = df.Mutate(series.New(make([]string, df.Nrow()), series.String, n))
		}
	}
	return df.Select(nomes)
}

// csvsConvertidos devolve os CSVs do diretório que casam com o prefixo, ordenados.
func csvsConvertidos(dir, prefixo string) ([]string, error) {
	arquivos, err := filepath.Glob(filepath.Join(dir, "*.csv"))
	if err != nil {
		return nil, err
	}
	var out []string
	for _, a := range arquivos {
		nome := strings.ToUpper(filepath.Base(a))
		if strings.HasPrefix(nome, strings.ToUpper(prefixo)) && !strings.Contains(nome, "_CONSOLIDADO") {
			out = append(out, a)
		}
	}
	sort.Strings(out)
	return out, nil
}
