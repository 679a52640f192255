package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func criarCmdSinan() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sinan",
		Short: "Notificacoes do SINAN (DATASUS)",
	}
	cmd.AddCommand(criarCmdAgravos())
	cmd.AddCommand(criarCmdExplorar())
	cmd.AddCommand(criarCmdListar())
	cmd.AddCommand(criarCmdBaixar())
	cmd.AddCommand(criarCmdDocs())
	cmd.AddCommand(criarCmdTabwin())
	cmd.AddCommand(criarCmdAcgr())
	cmd.AddCommand(criarCmdConverter())
	cmd.AddCommand(criarCmdConsolidar())
	cmd.AddCommand(criarCmdLimpar())
	cmd.AddCommand(criarCmdPainelSinan())
	return cmd
}

func criarCmdAgravos() *cobra.Command {
	var tipo string
	cmd := &cobra.Command{
		Use:   "agravos",
		Short: "Lista os agravos e a documentacao de acidentes de trabalho",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			if tipo != "" {
				info := infoAcidente(tipo)
				if info == nil {
					return fmt.Errorf("tipo de acidente '%s' nao encontrado", tipo)
				}
				fmt.Fprintf(out, "%s - %s\n\nVariaveis principais:\n", strings.ToUpper(tipo), info.Nome)
				for _, v := range variaveisPrincipais(tipo) {
					fmt.Fprintf(out, "  - %s\n", v)
				}
				return nil
			}

			fmt.Fprintln(out, "AGRAVOS DISPONIVEIS NO FTP")
			renderizarAgravos(out)
			fmt.Fprintln(out, "\nACIDENTES DE TRABALHO")
			renderizarAcidentes(out)
			fmt.Fprintln(out, "\nDOCUMENTOS")
			renderizarDocumentos(out, listarDocumentos())
			fmt.Fprintf(out, "\nOutros agravos documentados: %s\n", strings.Join(chavesOrdenadas(outrosAgravos), ", "))
			return nil
		},
	}
	cmd.Flags().StringVar(&tipo, "tipo", "", "mostra as variaveis principais de um tipo (ACGRN, ACBION)")
	return cmd
}

func criarCmdExplorar() *cobra.Command {
	return &cobra.Command{
		Use:   "explorar [caminho]",
		Short: "Explora o FTP do DATASUS ate a pasta SINAN/DADOS",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			d := novoDatasusFTP(cfg, logger)
			if len(args) == 1 {
				pastas, arquivos, err := d.explorarFTP(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				imprimirListagem(cmd.OutOrStdout(), args[0], pastas, arquivos)
				return nil
			}
			return d.explorarArvoreSinan(cmd.Context(), cmd.OutOrStdout())
		},
	}
}

func criarCmdListar() *cobra.Command {
	var ano int
	cmd := &cobra.Command{
		Use:   "listar <agravo>",
		Short: "Lista os arquivos .dbc de um agravo",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			agravo, err := validarAgravo(args[0])
			if err != nil {
				return err
			}
			arquivos, err := novoDatasusFTP(cfg, logger).listarArquivosFTP(cmd.Context(), agravo, ano)
			if err != nil {
				return err
			}
			for i, a := range arquivos {
				fmt.Fprintf(cmd.OutOrStdout(), "  %d. %s\n", i+1, a)
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&ano, "ano", 0, "filtra pelos dois ultimos digitos do ano")
	return cmd
}

func criarCmdBaixar() *cobra.Command {
	var (
		ano     int
		destino string
	)
	cmd := &cobra.Command{
		Use:   "baixar [agravo]",
		Short: "Baixa os .dbc de um agravo e ano",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			agravo := cfg.Sinan.AgravoPadrao
			if len(args) == 1 {
				agravo = args[0]
			}
			if destino == "" {
				destino = cfg.caminho(cfg.Sinan.DbcDir)
			}
			baixados, err := novoDatasusFTP(cfg, logger).baixarSinanAno(cmd.Context(), agravo, ano, destino)
			if err != nil {
				return err
			}
			if len(baixados) > 0 {
				fmt.Println("\n[PROXIMO PASSO] Converter DBC para CSV: dadosmg sinan converter")
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&ano, "ano", 2023, "ano dos dados")
	cmd.Flags().StringVar(&destino, "destino", "", "diretorio de destino (padrao: sinan.dbc_dir)")
	return cmd
}

func criarCmdDocs() *cobra.Command {
	return &cobra.Command{
		Use:   "docs",
		Short: "Baixa e extrai a documentacao do SINAN",
		RunE: func(cmd *cobra.Command, args []string) error {
			return baixarDocsSinan(cmd.Context(), cfg)
		},
	}
}

func criarCmdTabwin() *cobra.Command {
	return &cobra.Command{
		Use:   "tabwin",
		Short: "Baixa e extrai o TabWin (inclui o dbf2dbc)",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := baixarTabwin(cmd.Context(), cfg)
			return err
		},
	}
}

func criarCmdAcgr() *cobra.Command {
	var anos []int
	cmd := &cobra.Command{
		Use:   "acgr",
		Short: "Baixa os dados preliminares de acidentes graves (Brasil)",
		RunE: func(cmd *cobra.Command, args []string) error {
			sucessos, falhas := baixarAcgrBrasil(cmd.Context(), cfg, anos, logger)
			if sucessos == 0 && falhas > 0 {
				return errors.New("nenhum arquivo foi baixado")
			}
			return nil
		},
	}
	cmd.Flags().IntSliceVar(&anos, "anos", nil, "anos a baixar (padrao: sinan.anos_prelim)")
	return cmd
}

func criarCmdConverter() *cobra.Command {
	return &cobra.Command{
		Use:   "converter [arquivo.dbc]",
		Short: "Converte DBC -> DBF -> CSV",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c := novoConversor(cfg, logger)
			if len(args) == 1 {
				_, err := c.converterArquivo(cmd.Context(), args[0])
				return err
			}
			res, err := c.processarTodosDbc(cmd.Context())
			if err != nil {
				return err
			}
			if len(res.Sucessos) == 0 && len(res.Falhas) > 0 {
				return errors.New("nenhum arquivo foi convertido")
			}
			return nil
		},
	}
}

func criarCmdLimpar() *cobra.Command {
	var saida string
	cmd := &cobra.Command{
		Use:   "limpar <arquivo.csv|pasta>",
		Short: "Remove cabecalho e rodape de exportacoes do TabNet",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			alvo := cfg.caminho(args[0])
			info, err := os.Stat(alvo)
			if err == nil && info.IsDir() {
				res, err := processarPasta(alvo)
				if err != nil {
					return err
				}
				fmt.Printf("\n[OK] %d arquivo(s) limpo(s), %d falha(s)\n", len(res.Limpos), len(res.Falhas))
				return nil
			}
			if err != nil && !errors.Is(err, os.ErrNotExist) {
				return err
			}
			if err != nil && filepath.Ext(alvo) == "" {
				_, err := processarPasta(alvo)
				return err
			}
			_, err = limparCsvTabnet(alvo, saida)
			return err
		},
	}
	cmd.Flags().StringVar(&saida, "saida", "", "arquivo de saida (padrao: <nome>_limpo.csv)")
	return cmd
}

func criarCmdPainelSinan() *cobra.Command {
	var (
		coluna      string
		top         int
		valores     []string
		xlsx        string
		salvar      string
		todasUFs    bool
		comDescribe bool
	)
	cmd := &cobra.Command{
		Use:   "painel <arquivo.csv>",
		Short: "Perfil, valores faltantes e frequencias de um CSV do SINAN",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			p, err := carregarPainelSinan(cfg.caminho(args[0]))
			if err != nil {
				return err
			}
			total := p.df.Nrow()
			if !todasUFs {
				p = p.filtrarMG()
				if p.semUF {
					fmt.Fprintln(out, "[AVISO] Coluna de UF nao encontrada; mostrando todos os registros")
				} else {
					fmt.Fprintf(out, "[OK] Registros de MG: %d de %d\n", p.df.Nrow(), total)
				}
			}
			logger.Debug("painel sinan", zap.String("arquivo", p.arquivo), zap.Int("registros", p.df.Nrow()))

			if coluna != "" && len(valores) > 0 {
				p, err = p.filtrarPorValores(coluna, valores)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "[OK] Registros com %s em %v: %d\n", coluna, valores, p.df.Nrow())
			}

			fmt.Fprintf(out, "\nREGISTROS: %d | COLUNAS: %d\n", p.df.Nrow(), p.df.Ncol())
			renderizarPerfil(out, p.perfilColunas())
			fmt.Fprintln(out, "\nVALORES FALTANTES")
			renderizarFaltantes(out, p.valoresFaltantes())

			if comDescribe {
				if desc, ok := p.descrever(); ok {
					fmt.Fprintln(out, "\nESTATISTICAS DESCRITIVAS")
					fmt.Fprintln(out, desc)
				} else {
					fmt.Fprintln(out, "\nNenhuma coluna numerica para descrever.")
				}
			}

			if coluna != "" {
				freq, err := p.frequencias(coluna, top)
				if err != nil {
					return err
				}
				renderizarFrequencias(out, coluna, freq)

				unicos, truncado, err := p.valoresUnicos(coluna)
				if err != nil {
					return err
				}
				if truncado {
					fmt.Fprintf(out, "Mais de %d valores unicos; primeiros %d: %s\n",
						limiteValoresUnic, amostraValores, strings.Join(unicos, ", "))
				} else {
					fmt.Fprintf(out, "Valores unicos (%d): %s\n", len(unicos), strings.Join(unicos, ", "))
				}

				if xlsx != "" {
					if err := exportarFrequenciasXLSX(xlsx, coluna, freq); err != nil {
						return err
					}
					fmt.Fprintf(out, "[OK] Planilha salva: %s\n", xlsx)
				}
			}

			if salvar != "" {
				if err := escreverDataFrame(p.df, salvar, ','); err != nil {
					return err
				}
				fmt.Fprintf(out, "[OK] Dados filtrados salvos: %s\n", salvar)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&coluna, "coluna", "", "coluna para frequencias e filtro")
	cmd.Flags().IntVar(&top, "top", 20, "quantidade de valores nas frequencias")
	cmd.Flags().StringSliceVar(&valores, "valor", nil, "filtra a coluna por estes valores")
	cmd.Flags().StringVar(&xlsx, "xlsx", "", "exporta as frequencias para XLSX")
	cmd.Flags().StringVar(&salvar, "salvar", "", "grava os registros filtrados em CSV")
	cmd.Flags().BoolVar(&todasUFs, "todas-ufs", false, "nao filtra Minas Gerais")
	cmd.Flags().BoolVar(&comDescribe, "describe", false, "mostra estatisticas das colunas numericas")
	return cmd
}

func criarCmdConsolidar() *cobra.Command {
	var saida string
	cmd := &cobra.Command{
		Use:   "consolidar [prefixo]",
		Short: "Junta os CSVs convertidos (ex.: ACGRBR) em um unico arquivo",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			prefixo := "ACGRBR"
			if len(args) == 1 {
				prefixo = args[0]
			}
			dir := cfg.caminho(cfg.Sinan.CsvDir)
			arquivos, err := csvsConvertidos(dir, prefixo)
			if err != nil {
				return err
			}
			if len(arquivos) == 0 {
				return fmt.Errorf("%w: %s*.csv em %s", errSemArquivo, prefixo, dir)
			}
			df, err := consolidarCsvs(arquivos)
			if err != nil {
				return err
			}
			if saida == "" {
				saida = filepath.Join(dir, strings.ToUpper(prefixo)+"_consolidado.csv")
			}
			if err := escreverDataFrame(df, saida, ','); err != nil {
				return err
			}
			fmt.Printf("[OK] %d arquivos, %d registros, %d colunas: %s\n", len(arquivos), df.Nrow(), df.Ncol(), saida)
			return nil
		},
	}
	cmd.Flags().StringVar(&saida, "saida", "", "arquivo de saida")
	return cmd
}
