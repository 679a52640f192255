package main

import "errors"

var (
	errSemDados         = errors.New("nenhum dado encontrado")
	errConversorAusente = errors.New("conversor dbf2dbc nao encontrado")
	errSemArquivo       = errors.New("nenhum arquivo encontrado")
	errColunaAusente    = errors.New("coluna obrigatoria ausente")
)
