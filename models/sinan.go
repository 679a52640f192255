package models

type Documento struct {
	Agravo        string `json:"agravo"`
	NomeAgravo    string `json:"nome_agravo"`
	TipoDocumento string `json:"tipo_documento"`
	Caminho       string `json:"caminho"`
}

type AcidenteTrabalho struct {
	Nome                string
	Descricao           string
	CodigoSinan         string
	Documentos          map[string]string
	TiposIncluidos      []string
	VariaveisPrincipais []string
}

type PerfilColuna struct {
	Coluna   string `json:"coluna"`
	Tipo     string `json:"tipo"`
	NaoNulos int    `json:"nao_nulos"`
	Nulos    int    `json:"nulos"`
}

type ValorFaltante struct {
	Coluna     string  `json:"coluna"`
	Faltantes  int     `json:"faltantes"`
	Percentual float64 `json:"percentual"`
}

type Frequencia struct {
	Valor      string  `json:"valor"`
	Quantidade int     `json:"quantidade"`
	Percentual float64 `json:"percentual"`
}
