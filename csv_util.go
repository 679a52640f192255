package main

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/transform"
)

var bomUTF8 = []byte{0xEF, 0xBB, 0xBF}

// decodificarTexto remove o BOM e converte de latin-1 quando os bytes não são UTF-8 válido.
func decodificarTexto(data []byte) (string, error) {
	data = bytes.TrimPrefix(data, bomUTF8)
	if utf8.Valid(data) {
		return string(data), nil
	}
	out, _, err := transform.Bytes(charmap.ISO8859_1.NewDecoder(), data)
	if err != nil {
		return "", fmt.Errorf("erro ao decodificar latin-1: %w", err)
	}
	return string(out), nil
}

func lerTexto(caminho string) (string, error) {
	data, err := os.ReadFile(caminho)
	if err != nil {
		return "", err
	}
	return decodificarTexto(data)
}

// leitorLatin1 decodifica um fluxo ISO-8859-1 para UTF-8.
func leitorLatin1(r io.Reader) io.Reader {
	return transform.NewReader(r, charmap.ISO8859_1.NewDecoder())
}

// detectarDelimitador escolhe ';' quando o cabeçalho tem mais ';' que ','.
func detectarDelimitador(cabecalho string) rune {
	if strings.Count(cabecalho, ";") > strings.Count(cabecalho, ",") {
		return ';'
	}
	return ','
}

func novoLeitorCSV(r io.Reader, delim rune) *csv.Reader {
	cr := csv.NewReader(r)
	cr.Comma = delim
	cr.LazyQuotes = true
	cr.FieldsPerRecord = -1
	return cr
}

// escritorCSV grava o BOM UTF-8 antes do primeiro registro.
func escritorCSV(w io.Writer, delim rune) (*csv.Writer, error) {
	if _, err := w.Write(bomUTF8); err != nil {
		return nil, err
	}
	cw := csv.NewWriter(w)
	cw.Comma = delim
	return cw, nil
}

func ehNumero(v string) bool {
	_, err := strconv.ParseFloat(strings.ReplaceAll(strings.TrimSpace(v), ",", "."), 64)
	return err == nil
}

// repararLinha tenta recuperar uma linha com aspas soltas ou campos a mais,
// juntando o excesso no primeiro campo não numérico.
func repararLinha(linha string, delim rune, esperado int) []string {
	sep := string(delim)
	linha = strings.ReplaceAll(linha, sep+`"`, sep)
	linha = strings.ReplaceAll(linha, `"`+sep, sep)

	row, err := novoLeitorCSV(strings.NewReader(linha), delim).Read()
	if err != nil {
		row = strings.Split(linha, sep)
	}

	if len(row) > esperado {
		diff := len(row) - esperado
		for i, val := range row {
			if ehNumero(val) || i+diff >= len(row) {
				continue
			}
			merged := strings.Join(row[i:i+diff+1], sep)
			novo := append(append([]string{}, row[:i]...), merged)
			row = append(novo, row[i+diff+1:]...)
			break
		}
	}

	if len(row) != esperado {
		return nil
	}
	for i := range row {
		row[i] = strings.Trim(row[i], `"`)
	}
	return row
}

// lerRegistros lê todas as linhas de um texto CSV, reparando as que não batem com o cabeçalho.
func lerRegistros(texto string, delim rune) (registros [][]string, ignoradas int, err error) {
	scanner := bufio.NewScanner(strings.NewReader(texto))
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	var header []string
	for scanner.Scan() {
		linha := strings.TrimRight(scanner.Text(), "\r")
		if strings.TrimSpace(linha) == "" {
			continue
		}

		row, err := novoLeitorCSV(strings.NewReader(linha), delim).Read()
		if header == nil {
			if err != nil {
				return nil, 0, fmt.Errorf("erro ao ler cabeçalho: %w", err)
			}
			header = row
			registros = append(registros, row)
			continue
		}

		if err != nil || len(row) != len(header) {
			row = repararLinha(linha, delim, len(header))
			if row == nil {
				ignoradas++
				continue
			}
		}
		registros = append(registros, row)
	}
	if err := scanner.Err(); err != nil {
		return nil, ignoradas, err
	}
	if header == nil {
		return nil, 0, errSemDados
	}
	return registros, ignoradas, nil
}

// carregarDataFrame lê um CSV em UTF-8 ou latin-1, com ';' ou ',', como colunas texto.
func carregarDataFrame(caminho string) (dataframe.DataFrame, error) {
	texto, err := lerTexto(caminho)
	if err != nil {
		return dataframe.DataFrame{}, err
	}
	return dataFrameDeTexto(texto, caminho)
}

// dataFrameDeTexto monta o dataframe a partir do CSV já decodificado; origem
// só aparece nas mensagens.
func dataFrameDeTexto(texto, origem string) (dataframe.DataFrame, error) {
	cabecalho, _, _ := strings.Cut(texto, "\n")
	registros, ignoradas, err := lerRegistros(texto, detectarDelimitador(cabecalho))
	if err != nil {
		return dataframe.DataFrame{}, fmt.Errorf("%s: %w", origem, err)
	}
	if ignoradas > 0 {
		fmt.Printf("[AVISO] %d linha(s) irrecuperável(is) ignorada(s) em %s\n", ignoradas, origem)
	}

	df := dataframe.LoadRecords(registros,
		dataframe.DetectTypes(false),
		dataframe.DefaultType(series.String),
		dataframe.HasHeader(true),
	)
	if df.Err != nil {
		return df, fmt.Errorf("erro ao carregar %s: %w", origem, df.Err)
	}
	return df, nil
}

func temColuna(df dataframe.DataFrame, nome string) bool {
	for _, n := range df.Names() {
		if n == nome {
			return true
		}
	}
	return false
}

func escreverDataFrame(df dataframe.DataFrame, caminho string, delim rune) error {
	f, err := os.Create(caminho)
	if err != nil {
		return err
	}
	defer f.Close()

	cw, err := escritorCSV(f, delim)
	if err != nil {
		return err
	}
	if err := cw.WriteAll(df.Records()); err != nil {
		return err
	}
	return f.Close()
}
