package main

import (
	"fmt"
	"sort"
	"strings"

	"dadosmg/models"
)

// Pastas de agravos em /dissemin/publicos/SINAN/DADOS/FINAIS
var agravosDisponiveis = map[string]string{
	"ACGR":  "Acidente de Trabalho Grave",
	"ACBI":  "Acidente com Material Biologico",
	"DENG":  "Dengue",
	"TUBE":  "Tuberculose",
	"HANS":  "Hanseniase",
	"MENI":  "Meningite",
	"VIOL":  "Violencia",
	"HEPA":  "Hepatites Virais",
	"LEPT":  "Leptospirose",
	"LEIS":  "Leishmaniose Visceral",
	"LEITA": "Leishmaniose Tegumentar",
	"RAIV":  "Raiva",
}

const docsAgravosBase = "sinan_docs/Docs_TAB_SINAN/Documentacao/AGRAVOS"

var acidentesTrabalho = map[string]models.AcidenteTrabalho{
	"ACGRN": {
		Nome:        "Acidente de Trabalho Grave",
		Descricao:   "Notificacao de acidentes de trabalho graves, com mutilacoes ou fatais",
		CodigoSinan: "ACGRAVE",
		Documentos: map[string]string{
			"dicionario_dados":  docsAgravosBase + "/ACGRN_DIC_DADOS.pdf",
			"ficha_notificacao": docsAgravosBase + "/ACGRN_FICHA.pdf",
		},
		TiposIncluidos: []string{
			"Acidentes de trabalho graves",
			"Acidentes com mutilacoes",
			"Acidentes fatais",
			"Acidentes com afastamento prolongado",
		},
		VariaveisPrincipais: []string{
			"Dados demograficos do trabalhador",
			"Caracteristicas do acidente",
			"Local do acidente",
			"Causa do acidente",
			"Parte do corpo atingida",
			"Tipo de lesao",
			"Evolucao do caso",
			"Situacao no mercado de trabalho",
			"CNAE da atividade economica",
		},
	},
	"ACBION": {
		Nome:        "Acidente com Material Biologico",
		Descricao:   "Notificacao de acidentes de trabalho com exposicao a material biologico",
		CodigoSinan: "ACBIO",
		Documentos: map[string]string{
			"dicionario_dados":  docsAgravosBase + "/ACBION_DIC_DADOS.pdf",
			"ficha_notificacao": docsAgravosBase + "/ACBION_FICHA.pdf",
		},
		TiposIncluidos: []string{
			"Exposicao a sangue",
			"Exposicao a fluidos corporais",
			"Acidentes perfurocortantes",
			"Contato com mucosas",
			"Exposicao em profissionais de saude",
		},
		VariaveisPrincipais: []string{
			"Dados demograficos do trabalhador",
			"Tipo de exposicao",
			"Material biologico envolvido",
			"Uso de EPI",
			"Situacao vacinal",
			"Fonte/paciente origem",
			"Profilaxias realizadas",
			"Acompanhamento sorologico",
		},
	},
}

var outrosAgravos = map[string]string{
	"DENGON":  "Dengue",
	"VIOLEN":  "Violencia Interpessoal/Autoprovocada",
	"TUBEN":   "Tuberculose",
	"HANSN":   "Hanseniase",
	"MENIN":   "Meningite",
	"HEPANET": "Hepatites Virais",
	"HIVAN":   "HIV/AIDS",
	"LEPTON":  "Leptospirose",
	"FTIFON":  "Febre Tifoide",
	"LEISHN":  "Leishmaniose Visceral",
	"LTAN":    "Leishmaniose Tegumentar",
	"RAIVAN":  "Raiva",
	"ANIMPN":  "Animais Peconhentos",
	"IEXOGN":  "Intoxicacao Exogena",
}

func infoAcidente(tipo string) *models.AcidenteTrabalho {
	info, ok := acidentesTrabalho[strings.ToUpper(strings.TrimSpace(tipo))]
	if !ok {
		return nil
	}
	return &info
}

func variaveisPrincipais(tipo string) []string {
	if info := infoAcidente(tipo); info != nil {
		return info.VariaveisPrincipais
	}
	return []string{}
}

// listarDocumentos achata agravo x tipo de documento, em ordem alfabética.
func listarDocumentos() []models.Documento {
	var docs []models.Documento
	for _, codigo := range chavesOrdenadas(acidentesTrabalho) {
		info := acidentesTrabalho[codigo]
		for _, tipo := range chavesOrdenadas(info.Documentos) {
			docs = append(docs, models.Documento{
				Agravo:        codigo,
				NomeAgravo:    info.Nome,
				TipoDocumento: tipo,
				Caminho:       info.Documentos[tipo],
			})
		}
	}
	return docs
}

func validarAgravo(codigo string) (string, error) {
	codigo = strings.ToUpper(strings.TrimSpace(codigo))
	if _, ok := agravosDisponiveis[codigo]; !ok {
		return "", fmt.Errorf("agravo '%s' nao encontrado", codigo)
	}
	return codigo, nil
}

func nomeAgravo(codigo string) string {
	if nome, ok := agravosDisponiveis[codigo]; ok {
		return nome
	}
	return codigo
}

func chavesOrdenadas[V any](m map[string]V) []string {
	chaves := make([]string, 0, len(m))
	for k := range m {
		chaves = append(chaves, k)
	}
	sort.Strings(chaves)
	return chaves
}
